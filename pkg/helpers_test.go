package reco

import (
	"math"
	"testing"
)

const (
	testChannels   = 32
	testPitch      = 2.5
	testHalfLength = 50.0
)

var testModule = ModuleKey{ModuleType: 0, ModuleIndex: 0, Rpc: 0}

func testConfiguration() Configuration {
	config := DefaultConfiguration()
	config.FileIn = "units.bin"
	config.WriteData = false
	config.Modules = []ModuleConfig{
		{ModuleType: 0, RpcCount: 2},
		{ModuleType: 5, RpcCount: 2, Mergeable: true, MergeTolerance: 3},
	}
	return config
}

// testTables builds identity calibration and flat geometry for the modules
// of testConfiguration: every RPC has testChannels strips at z = 10*rpc.
func testTables(t *testing.T, config Configuration) (*CalibrationTable, *CellGeometry) {
	t.Helper()
	calibration, err := NewCalibrationTable(config.WalkBins, config.WalkChargeMin, config.WalkChargeMax, config.RpcCounts())
	if err != nil {
		t.Fatalf("NewCalibrationTable: %v", err)
	}
	geometry := NewCellGeometry()
	for _, m := range config.Modules {
		for rpc := 0; rpc < m.RpcCount; rpc++ {
			key := ModuleKey{ModuleType: m.ModuleType, Rpc: rpc}
			for ch := 0; ch < testChannels; ch++ {
				for side := 0; side < 2; side++ {
					if err := calibration.Set(key.Address(ch, side), CalibrationEntry{ChargeGain: 1}); err != nil {
						t.Fatalf("Set: %v", err)
					}
				}
				cell := CellInfo{Pitch: testPitch, HalfLength: testHalfLength}
				placement := NewPlacement(0, (float64(ch)+0.5)*testPitch, 10*float64(rpc), 0, 0, 0)
				geometry.AddCell(ChannelKey{ModuleKey: key, Channel: ch}, cell, placement)
			}
		}
	}
	return calibration, geometry
}

// pairDigis returns the two side digis of one strip whose pair has the given
// mean time and transverse position for signal velocity v.
func pairDigis(key ModuleKey, ch int, time, y, v, q float64, firstID DigiID) []Digi {
	dt := y / (0.5 * v)
	return []Digi{
		{ID: firstID, Address: key.Address(ch, 0), Time: time - dt/2, Charge: q},
		{ID: firstID + 1, Address: key.Address(ch, 1), Time: time + dt/2, Charge: q},
	}
}

func calibrated(digis ...Digi) []CalibratedDigi {
	out := make([]CalibratedDigi, len(digis))
	for i, d := range digis {
		out[i] = CalibratedDigi{Digi: d, RawTime: d.Time, RawCharge: d.Charge}
	}
	return out
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
