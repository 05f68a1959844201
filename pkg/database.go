package reco

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

// LoadConditionsFromDB reads every conditions table valid for runNumber.
func LoadConditionsFromDB(db *sqlx.DB, runNumber int) (Conditions, error) {
	var conditions Conditions
	var err error

	conditions.Calibration, err = queryRows[CalibrationRow](db, "TofCalibration",
		"ModuleType, ModuleIndex, Rpc, Channel, Side, TimeOffset, ChargeGain, ChargeOffset", runNumber)
	if err != nil {
		return Conditions{}, fmt.Errorf("error getting calibration from database: %w", err)
	}
	conditions.Walk, err = queryRows[WalkRow](db, "TofWalk",
		"ModuleType, ModuleIndex, Rpc, Channel, Side, Bin, Value", runNumber)
	if err != nil {
		return Conditions{}, fmt.Errorf("error getting walk curves from database: %w", err)
	}
	conditions.Cells, err = queryRows[CellRow](db, "TofCells",
		"ModuleType, ModuleIndex, Rpc, Channel, Pitch, HalfLength, X, Y, Z, RotX, RotY, RotZ", runNumber)
	if err != nil {
		return Conditions{}, fmt.Errorf("error getting cells from database: %w", err)
	}
	conditions.PositionCorrection, err = queryRows[PositionCorrectionRow](db, "TofPositionCorrection",
		"ModuleType, ModuleIndex, Rpc, Bin, MinPosition, MaxPosition, Value", runNumber)
	if err != nil {
		return Conditions{}, fmt.Errorf("error getting position corrections from database: %w", err)
	}
	return conditions, nil
}

func queryRows[T any](db *sqlx.DB, table string, columns string, runNumber int) ([]T, error) {
	query := "SELECT %s FROM %s WHERE MinRun <= %d and MaxRun >= %d"
	query = fmt.Sprintf(query, columns, table, runNumber, runNumber)

	if verbosity > 0 {
		message := fmt.Sprintf("Reading %s from database", table)
		logger.Info(message, "database")
	}
	if verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}

	rows, err := db.Queryx(query)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return nil, errMessage
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		var result T
		err := rows.StructScan(&result)
		if err != nil {
			errMessage := fmt.Errorf("error scanning DB row: %w", err)
			return nil, errMessage
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
