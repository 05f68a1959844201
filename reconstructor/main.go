package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	sqlx "github.com/jmoiron/sqlx"
	reco "github.com/next-exp/tofreco_go/pkg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var dbConn *sqlx.DB
var configuration reco.Configuration

var (
	logger         Logger
	VerbosityLevel int
)

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

func main() {
	if err := run(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Parse()

	var err error
	configuration, err = LoadConfiguration(*configFilename)
	if err != nil {
		return fmt.Errorf("Error reading configuration file: %w", err)
	}
	if err := configuration.Validate(); err != nil {
		return err
	}
	reco.SetLogger(logger)
	reco.SetVerbosity(configuration.Verbosity)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	scheme, err := reco.AddressSchemeByName(configuration.AddressScheme)
	if err != nil {
		return err
	}

	tables, err := loadTables()
	if err != nil {
		if errors.Is(err, reco.ErrNoCalibration) {
			return fmt.Errorf("run %d cannot be reconstructed: %w", configuration.RunNumber, err)
		}
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := reco.NewMetrics(registry)

	reconstructor, err := reco.NewReconstructor(configuration, tables.Calibration, tables.Geometry, tables.Corrector, metrics)
	if err != nil {
		return err
	}
	runID := reconstructor.RunID().String()
	logger.Info(fmt.Sprintf("Run %d, reconstruction %s", configuration.RunNumber, runID), "main")

	if configuration.MetricsAddr != "" {
		server := startMetricsServer(configuration.MetricsAddr, registry, runID)
		defer stopMetricsServer(server)
	}

	file, err := os.Open(configuration.FileIn)
	if err != nil {
		return fmt.Errorf("Error opening file: %w", err)
	}
	defer file.Close()

	unitCount, err := countUnits(file)
	if err != nil {
		return err
	}
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Number of units: %d, to process: %d", unitCount,
			numberOfUnitsToProcess(unitCount, configuration.Skip, configuration.MaxUnits))
		logger.Info(message, "main")
	}

	var writer *reco.Writer
	if configuration.WriteData {
		writer, err = reco.NewWriter(configuration.FileOut, configuration.CompressionLevel)
		if err != nil {
			return err
		}
		if err := writer.WriteRunInfo(configuration.RunNumber, runID); err != nil {
			logger.Error(fmt.Sprintf("error writing run info: %v", err))
		}
	}

	start := time.Now()
	jobs := make(chan WorkerData, 100)
	results := make(chan WorkerResult, 100)
	startWorkers(configuration.NumWorkers, reconstructor, jobs, results)
	go sendUnitsToWorkers(NewFileReader(file, scheme, reconstructor.BatchLimit()), jobs)
	summary := processWorkerResults(results, writer)

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error(err.Error())
		}
	}

	message := fmt.Sprintf("Units processed: %d (%d rejected, %d failed), hits: %d, time: %d ms",
		summary.Units, summary.Rejected, summary.Failed, summary.Hits, time.Since(start).Milliseconds())
	logger.Info(message, "main")
	return nil
}

func loadTables() (reco.Tables, error) {
	var conditions reco.Conditions
	var err error
	if configuration.NoDB {
		conditions, err = reco.LoadConditionsFile(configuration.ConditionsFile)
		if err != nil {
			return reco.Tables{}, err
		}
	} else {
		dbConn, err = reco.ConnectToDatabase(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
		if err != nil {
			return reco.Tables{}, fmt.Errorf("Error connection to database: %w", err)
		}
		defer dbConn.Close()

		conditions, err = reco.LoadConditionsFromDB(dbConn, configuration.RunNumber)
		if err != nil {
			return reco.Tables{}, err
		}
	}
	return conditions.Build(configuration)
}
