package reco

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

type CalibrationRow struct {
	ModuleType   int     `db:"ModuleType" json:"module_type"`
	ModuleIndex  int     `db:"ModuleIndex" json:"module_index"`
	Rpc          int     `db:"Rpc" json:"rpc"`
	Channel      int     `db:"Channel" json:"channel"`
	Side         int     `db:"Side" json:"side"`
	TimeOffset   float64 `db:"TimeOffset" json:"time_offset"`
	ChargeGain   float64 `db:"ChargeGain" json:"charge_gain"`
	ChargeOffset float64 `db:"ChargeOffset" json:"charge_offset"`
}

type WalkRow struct {
	ModuleType  int     `db:"ModuleType" json:"module_type"`
	ModuleIndex int     `db:"ModuleIndex" json:"module_index"`
	Rpc         int     `db:"Rpc" json:"rpc"`
	Channel     int     `db:"Channel" json:"channel"`
	Side        int     `db:"Side" json:"side"`
	Bin         int     `db:"Bin" json:"bin"`
	Value       float64 `db:"Value" json:"value"`
}

type CellRow struct {
	ModuleType  int     `db:"ModuleType" json:"module_type"`
	ModuleIndex int     `db:"ModuleIndex" json:"module_index"`
	Rpc         int     `db:"Rpc" json:"rpc"`
	Channel     int     `db:"Channel" json:"channel"`
	Pitch       float64 `db:"Pitch" json:"pitch"`
	HalfLength  float64 `db:"HalfLength" json:"half_length"`
	X           float64 `db:"X" json:"x"`
	Y           float64 `db:"Y" json:"y"`
	Z           float64 `db:"Z" json:"z"`
	RotX        float64 `db:"RotX" json:"rot_x"`
	RotY        float64 `db:"RotY" json:"rot_y"`
	RotZ        float64 `db:"RotZ" json:"rot_z"`
}

type PositionCorrectionRow struct {
	ModuleType  int     `db:"ModuleType" json:"module_type"`
	ModuleIndex int     `db:"ModuleIndex" json:"module_index"`
	Rpc         int     `db:"Rpc" json:"rpc"`
	Bin         int     `db:"Bin" json:"bin"`
	MinPosition float64 `db:"MinPosition" json:"min_position"`
	MaxPosition float64 `db:"MaxPosition" json:"max_position"`
	Value       float64 `db:"Value" json:"value"`
}

func (r CalibrationRow) address() Address {
	return Address{ModuleType: r.ModuleType, ModuleIndex: r.ModuleIndex, Rpc: r.Rpc, Channel: r.Channel, Side: r.Side}
}

func (r WalkRow) address() Address {
	return Address{ModuleType: r.ModuleType, ModuleIndex: r.ModuleIndex, Rpc: r.Rpc, Channel: r.Channel, Side: r.Side}
}

func (r PositionCorrectionRow) module() ModuleKey {
	return ModuleKey{ModuleType: r.ModuleType, ModuleIndex: r.ModuleIndex, Rpc: r.Rpc}
}

// Conditions are the raw rows of the run conditions, either from the
// database or from a JSON file with the same layout.
type Conditions struct {
	Calibration        []CalibrationRow        `json:"calibration"`
	Walk               []WalkRow               `json:"walk"`
	Cells              []CellRow               `json:"cells"`
	PositionCorrection []PositionCorrectionRow `json:"position_correction"`
}

// Tables are the lookup structures the reconstruction runs with.
type Tables struct {
	Calibration *CalibrationTable
	Geometry    *CellGeometry
	Corrector   *PositionTimeCorrector
}

func LoadConditionsFile(filename string) (Conditions, error) {
	var conditions Conditions
	content, err := os.ReadFile(filename)
	if err != nil {
		return conditions, &ErrOpenFile{Filename: filename, Err: err}
	}
	if err := json.Unmarshal(content, &conditions); err != nil {
		return conditions, fmt.Errorf("error parsing conditions file %s: %w", filename, err)
	}
	return conditions, nil
}

// Build turns the rows into lookup tables. Rows that do not fit the
// configured detector layout are logged and skipped. A run without any
// calibration entry returns ErrNoCalibration.
func (c Conditions) Build(config Configuration) (Tables, error) {
	calibration, err := NewCalibrationTable(config.WalkBins, config.WalkChargeMin, config.WalkChargeMax, config.RpcCounts())
	if err != nil {
		return Tables{}, err
	}

	for _, row := range c.Calibration {
		entry := CalibrationEntry{
			TimeOffset:   row.TimeOffset,
			ChargeGain:   row.ChargeGain,
			ChargeOffset: row.ChargeOffset,
		}
		if err := calibration.Set(row.address(), entry); err != nil {
			logger.Error(fmt.Sprintf("skipping calibration row: %v", err))
		}
	}
	if calibration.Len() == 0 {
		return Tables{}, ErrNoCalibration
	}

	for _, row := range c.Walk {
		if err := calibration.SetWalkBin(row.address(), row.Bin, row.Value); err != nil {
			logger.Error(fmt.Sprintf("skipping walk row: %v", err))
		}
	}

	geometry := NewCellGeometry()
	for _, row := range c.Cells {
		key := ChannelKey{
			ModuleKey: ModuleKey{ModuleType: row.ModuleType, ModuleIndex: row.ModuleIndex, Rpc: row.Rpc},
			Channel:   row.Channel,
		}
		info := CellInfo{Pitch: row.Pitch, HalfLength: row.HalfLength}
		geometry.AddCell(key, info, NewPlacement(row.X, row.Y, row.Z, row.RotX, row.RotY, row.RotZ))
	}

	corrector := NewPositionTimeCorrector()
	for key, table := range positionTables(c.PositionCorrection) {
		if err := corrector.SetTable(key, table); err != nil {
			logger.Error(fmt.Sprintf("skipping position correction: %v", err))
		}
	}

	if verbosity > 0 {
		message := fmt.Sprintf("Conditions: %d calibration entries, %d channels, %d position tables",
			calibration.Len(), geometry.TotalChannels(), corrector.Len())
		logger.Info(message, "conditions")
	}
	return Tables{Calibration: calibration, Geometry: geometry, Corrector: corrector}, nil
}

// positionTables groups the rows by RPC. Bins must be numbered 0..n-1
// without holes, otherwise the table is left empty and rejected later.
func positionTables(rows []PositionCorrectionRow) map[ModuleKey]PositionCorrection {
	grouped := make(map[ModuleKey][]PositionCorrectionRow)
	for _, row := range rows {
		grouped[row.module()] = append(grouped[row.module()], row)
	}

	tables := make(map[ModuleKey]PositionCorrection, len(grouped))
	for key, bins := range grouped {
		sort.Slice(bins, func(i, j int) bool { return bins[i].Bin < bins[j].Bin })
		table := PositionCorrection{Min: bins[0].MinPosition, Max: bins[0].MaxPosition}
		for i, bin := range bins {
			if bin.Bin != i {
				table.Values = nil
				break
			}
			table.Values = append(table.Values, bin.Value)
		}
		tables[key] = table
	}
	return tables
}
