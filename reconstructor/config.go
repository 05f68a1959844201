package main

import (
	"encoding/json"
	"fmt"
	"os"

	reco "github.com/next-exp/tofreco_go/pkg"
)

// LoadConfiguration reads a JSON configuration. Keys missing from the file
// keep their default value.
func LoadConfiguration(filename string) (reco.Configuration, error) {
	config := reco.DefaultConfiguration()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config reco.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("Write data: %t", config.WriteData), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	if config.NoDB {
		logger.Info(fmt.Sprintf("Conditions file: %s", config.ConditionsFile), "config")
	} else {
		logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
		logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	}
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("Address scheme: %s", config.AddressScheme), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max units: %d", config.MaxUnits), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Module workers: %d", config.ModuleWorkers), "config")
	logger.Info(fmt.Sprintf("Dead time: %g ns", config.DeadTime), "config")
	logger.Info(fmt.Sprintf("Max time distance: %g ns", config.MaxTimeDistance), "config")
	logger.Info(fmt.Sprintf("Max space distance: %g cm", config.MaxSpaceDistance), "config")
	logger.Info(fmt.Sprintf("Signal velocity: %g cm/ns", config.SignalVelocity), "config")
	logger.Info(fmt.Sprintf("Position guard factor: %g", config.PositionGuardFactor), "config")
	logger.Info(fmt.Sprintf("Repair pairs: %t", config.RepairPairs), "config")
	logger.Info(fmt.Sprintf("Walk bins: %d over [%g, %g)", config.WalkBins, config.WalkChargeMin, config.WalkChargeMax), "config")
	logger.Info(fmt.Sprintf("Max multiplicity: %g", config.MaxMultiplicity), "config")
	logger.Info(fmt.Sprintf("Merge hits: %t", config.MergeHits), "config")
	logger.Info(fmt.Sprintf("Correct position time: %t", config.CorrectPositionTime), "config")
	for _, m := range config.Modules {
		logger.Info(fmt.Sprintf("Module type %d: %d RPCs, mergeable %t, tolerance %g cm",
			m.ModuleType, m.RpcCount, m.Mergeable, m.MergeTolerance), "config")
	}
	for _, d := range config.DeadChannels {
		logger.Info(fmt.Sprintf("Dead channels type %d module %d rpc %d: %v",
			d.ModuleType, d.ModuleIndex, d.Rpc, d.Channels), "config")
	}
	if config.MetricsAddr != "" {
		logger.Info(fmt.Sprintf("Metrics address: %s", config.MetricsAddr), "config")
	}
}
