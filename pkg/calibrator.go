package reco

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ChargeFloor keeps the charge positive after the offset is removed.
const ChargeFloor = 0.001

// DigiCalibrator applies the calibration table to raw digis.
// Missing calibration policy: the digi is rejected.
type DigiCalibrator struct {
	table *CalibrationTable
}

func NewDigiCalibrator(table *CalibrationTable) *DigiCalibrator {
	return &DigiCalibrator{table: table}
}

func (c *DigiCalibrator) Calibrate(raw Digi) (CalibratedDigi, error) {
	entry, ok := c.table.Lookup(raw.Address)
	if !ok {
		return CalibratedDigi{}, &ErrMissingCalibration{Address: raw.Address}
	}

	cal := CalibratedDigi{Digi: raw, RawTime: raw.Time, RawCharge: raw.Charge}
	cal.Time = raw.Time - entry.TimeOffset
	cal.Charge = math.Max(raw.Charge-entry.ChargeOffset, ChargeFloor) * entry.ChargeGain
	cal.Time -= c.table.WalkCorrection(entry, cal.Charge)
	return cal, nil
}

// CalibrateBatch calibrates all digis of a unit and sorts them by time.
// Offsets can invert the original order, so the sort must run over the whole
// batch before any pairing. The second return value counts rejected digis.
func (c *DigiCalibrator) CalibrateBatch(digis []Digi) ([]CalibratedDigi, int) {
	calibrated := make([]CalibratedDigi, 0, len(digis))
	missing := 0
	for _, d := range digis {
		cal, err := c.Calibrate(d)
		if err != nil {
			var missingErr *ErrMissingCalibration
			if errors.As(err, &missingErr) {
				missing++
				if verbosity > 2 {
					logger.Info(err.Error(), "calibrator")
				}
				continue
			}
			logger.Error(fmt.Sprintf("calibrating digi %d: %v", d.ID, err))
			continue
		}
		calibrated = append(calibrated, cal)
	}
	sort.Slice(calibrated, func(i, j int) bool {
		return calibrated[i].Time < calibrated[j].Time
	})
	return calibrated, missing
}
