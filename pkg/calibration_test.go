package reco

import (
	"errors"
	"math"
	"testing"
)

func newTable(t *testing.T, bins int, chargeMin, chargeMax float64) *CalibrationTable {
	t.Helper()
	table, err := NewCalibrationTable(bins, chargeMin, chargeMax, map[int]int{0: 2})
	if err != nil {
		t.Fatalf("NewCalibrationTable: %v", err)
	}
	return table
}

func TestCalibrationKeyNumbersRpcsInsideType(t *testing.T) {
	table := newTable(t, 1, 0, 1)
	key, ok := table.Key(Address{ModuleType: 0, ModuleIndex: 3, Rpc: 1, Channel: 7, Side: 1})
	if !ok {
		t.Fatal("Key rejected a valid address")
	}
	want := CalibrationKey{ModuleType: 0, RpcKey: 7, Channel: 7, Side: 1}
	if key != want {
		t.Errorf("Key = %+v, want %+v", key, want)
	}
	if _, ok := table.Key(Address{ModuleType: 0, Rpc: 2}); ok {
		t.Error("Key accepted rpc beyond the module layout")
	}
	if _, ok := table.Key(Address{ModuleType: 4}); ok {
		t.Error("Key accepted an unknown module type")
	}
}

func TestCalibrationSetChecksWalkBins(t *testing.T) {
	table := newTable(t, 4, 0, 4)
	err := table.Set(Address{}, CalibrationEntry{ChargeGain: 1, Walk: []float64{1, 2}})
	var binErr *ErrWalkBinCount
	if !errors.As(err, &binErr) {
		t.Fatalf("expected ErrWalkBinCount, got %v", err)
	}
	if binErr.Got != 2 || binErr.Expected != 4 {
		t.Errorf("error reports %d/%d bins", binErr.Got, binErr.Expected)
	}

	if err := table.Set(Address{}, CalibrationEntry{ChargeGain: 1}); err != nil {
		t.Fatalf("Set without walk: %v", err)
	}
	entry, ok := table.Lookup(Address{})
	if !ok || len(entry.Walk) != 4 {
		t.Fatalf("entry without walk should get a flat curve of 4 bins, got %+v", entry)
	}
}

func TestWalkCorrectionInterpolation(t *testing.T) {
	table := newTable(t, 4, 0, 4)
	walk := []float64{0, 1, 4, 9}
	if err := table.Set(Address{}, CalibrationEntry{ChargeGain: 1, Walk: walk}); err != nil {
		t.Fatal(err)
	}
	entry, _ := table.Lookup(Address{})

	tests := []struct {
		charge float64
		want   float64
		desc   string
	}{
		{0.5, 0, "first bin center"},
		{1.5, 1, "second bin center"},
		{2.0, 2.5, "between second and third centers"},
		{3.5, 9, "last bin center"},
		{-3, 0, "below range"},
		{100, 9, "above range"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := table.WalkCorrection(entry, tt.charge)
			if !almostEqual(got, tt.want, 1e-12) {
				t.Errorf("WalkCorrection(%g) = %g, want %g", tt.charge, got, tt.want)
			}
		})
	}
}

func TestWalkCorrectionIsContinuous(t *testing.T) {
	table := newTable(t, 4, 0, 4)
	walk := []float64{0, 1, 4, 9}
	if err := table.Set(Address{}, CalibrationEntry{ChargeGain: 1, Walk: walk}); err != nil {
		t.Fatal(err)
	}
	entry, _ := table.Lookup(Address{})

	// Largest difference between neighboring bins, per unit charge.
	maxSlope := 5.0
	const eps = 1e-6
	for boundary := 0.0; boundary <= 4.0; boundary += 0.5 {
		below := table.WalkCorrection(entry, boundary-eps)
		above := table.WalkCorrection(entry, boundary+eps)
		if jump := math.Abs(above - below); jump > maxSlope*2*eps+1e-12 {
			t.Errorf("walk jumps by %g at charge %g", jump, boundary)
		}
	}
}

func TestCalibrate(t *testing.T) {
	table := newTable(t, 2, 0, 10)
	entry := CalibrationEntry{TimeOffset: 2, ChargeGain: 2, ChargeOffset: 1, Walk: []float64{0.5, 0.5}}
	if err := table.Set(Address{}, entry); err != nil {
		t.Fatal(err)
	}
	calibrator := NewDigiCalibrator(table)

	cal, err := calibrator.Calibrate(Digi{ID: 3, Time: 10, Charge: 3})
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if !almostEqual(cal.Charge, 4, 1e-12) {
		t.Errorf("charge = %g, want 4", cal.Charge)
	}
	if !almostEqual(cal.Time, 7.5, 1e-12) {
		t.Errorf("time = %g, want 7.5", cal.Time)
	}
	if cal.RawTime != 10 || cal.RawCharge != 3 || cal.ID != 3 {
		t.Errorf("raw values not kept: %+v", cal)
	}

	low, _ := calibrator.Calibrate(Digi{Charge: 0.5})
	if !almostEqual(low.Charge, 2*ChargeFloor, 1e-15) {
		t.Errorf("charge below offset = %g, want %g", low.Charge, 2*ChargeFloor)
	}
}

func TestCalibrateMissingEntry(t *testing.T) {
	table := newTable(t, 1, 0, 1)
	calibrator := NewDigiCalibrator(table)
	_, err := calibrator.Calibrate(Digi{Address: Address{Channel: 9}})
	var missing *ErrMissingCalibration
	if !errors.As(err, &missing) {
		t.Fatalf("expected ErrMissingCalibration, got %v", err)
	}
	if missing.Address.Channel != 9 {
		t.Errorf("error reports %v", missing.Address)
	}
}

func TestCalibrateBatchSortsAndSkips(t *testing.T) {
	table := newTable(t, 1, 0, 1)
	table.Set(Address{Channel: 0}, CalibrationEntry{ChargeGain: 1})
	table.Set(Address{Channel: 1}, CalibrationEntry{ChargeGain: 1, TimeOffset: 6})
	calibrator := NewDigiCalibrator(table)

	digis := []Digi{
		{ID: 0, Address: Address{Channel: 0}, Time: 8, Charge: 1},
		{ID: 1, Address: Address{Channel: 1}, Time: 10, Charge: 1},
		{ID: 2, Address: Address{Channel: 5}, Time: 11, Charge: 1},
	}
	out, missing := calibrator.CalibrateBatch(digis)
	if missing != 1 {
		t.Errorf("missing = %d, want 1", missing)
	}
	if len(out) != 2 {
		t.Fatalf("got %d calibrated digis, want 2", len(out))
	}
	if out[0].ID != 1 || out[1].ID != 0 {
		t.Errorf("calibrated digis not in time order: %d, %d", out[0].ID, out[1].ID)
	}
}
