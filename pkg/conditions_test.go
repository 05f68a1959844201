package reco

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testConditions() Conditions {
	return Conditions{
		Calibration: []CalibrationRow{
			{ModuleType: 0, Rpc: 1, Channel: 3, Side: 0, TimeOffset: 1.5, ChargeGain: 2},
			{ModuleType: 0, Rpc: 1, Channel: 3, Side: 1, TimeOffset: -1.5, ChargeGain: 2},
			{ModuleType: 7, Channel: 3, ChargeGain: 1},
		},
		Walk: []WalkRow{
			{ModuleType: 0, Rpc: 1, Channel: 3, Side: 0, Bin: 2, Value: 0.25},
			{ModuleType: 0, Rpc: 1, Channel: 3, Side: 0, Bin: 99, Value: 1},
		},
		Cells: []CellRow{
			{ModuleType: 0, Rpc: 1, Channel: 3, Pitch: 2.5, HalfLength: 50, Z: 10},
			{ModuleType: 0, Rpc: 1, Channel: 4, Pitch: 2.5, HalfLength: 50, Z: 10},
		},
		PositionCorrection: []PositionCorrectionRow{
			{ModuleType: 0, Rpc: 1, Bin: 1, MinPosition: -50, MaxPosition: 50, Value: 0.2},
			{ModuleType: 0, Rpc: 1, Bin: 0, MinPosition: -50, MaxPosition: 50, Value: 0.1},
			{ModuleType: 0, Rpc: 0, Bin: 1, MinPosition: -50, MaxPosition: 50, Value: 0.1},
		},
	}
}

func TestConditionsBuild(t *testing.T) {
	tables, err := testConditions().Build(testConfiguration())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tables.Calibration.Len() != 2 {
		t.Errorf("calibration entries %d, want 2", tables.Calibration.Len())
	}
	entry, ok := tables.Calibration.Lookup(Address{ModuleType: 0, Rpc: 1, Channel: 3})
	if !ok || entry.TimeOffset != 1.5 || entry.Walk[2] != 0.25 {
		t.Errorf("entry %+v", entry)
	}
	key := ModuleKey{ModuleType: 0, Rpc: 1}
	if tables.Geometry.ChannelCount(key) != 5 || tables.Geometry.TotalChannels() != 5 {
		t.Errorf("channel count %d, total %d", tables.Geometry.ChannelCount(key), tables.Geometry.TotalChannels())
	}
	placement, err := tables.Geometry.Transform(key.Address(4, 1))
	if err != nil || placement.Apply(Vec3{}).Z != 10 {
		t.Errorf("placement of channel 4: %v", err)
	}
	// The RPC 0 table has a hole at bin 0 and is dropped.
	if tables.Corrector.Len() != 1 {
		t.Errorf("position tables %d, want 1", tables.Corrector.Len())
	}
}

func TestConditionsWithoutCalibration(t *testing.T) {
	conditions := testConditions()
	conditions.Calibration = conditions.Calibration[2:]
	if _, err := conditions.Build(testConfiguration()); !errors.Is(err, ErrNoCalibration) {
		t.Fatalf("expected ErrNoCalibration, got %v", err)
	}
}

func TestLoadConditionsFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "conditions.json")
	data, err := json.Marshal(testConditions())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		t.Fatal(err)
	}

	conditions, err := LoadConditionsFile(filename)
	if err != nil {
		t.Fatalf("LoadConditionsFile: %v", err)
	}
	if len(conditions.Calibration) != 3 || len(conditions.Cells) != 2 || conditions.Cells[0].Z != 10 {
		t.Errorf("loaded %+v", conditions)
	}

	_, err = LoadConditionsFile(filepath.Join(t.TempDir(), "missing.json"))
	var openErr *ErrOpenFile
	if !errors.As(err, &openErr) {
		t.Errorf("expected ErrOpenFile, got %v", err)
	}
}
