package reco

import "fmt"

// PositionCorrection is a time correction binned in transverse position.
type PositionCorrection struct {
	Min    float64
	Max    float64
	Values []float64
}

type PositionTimeCorrector struct {
	tables map[ModuleKey]binnedCurve
}

func NewPositionTimeCorrector() *PositionTimeCorrector {
	return &PositionTimeCorrector{tables: make(map[ModuleKey]binnedCurve)}
}

func (c *PositionTimeCorrector) SetTable(key ModuleKey, table PositionCorrection) error {
	if len(table.Values) == 0 || table.Max <= table.Min {
		return fmt.Errorf("invalid position correction for %v: %d bins over [%g, %g)",
			key, len(table.Values), table.Min, table.Max)
	}
	values := make([]float64, len(table.Values))
	copy(values, table.Values)
	c.tables[key] = binnedCurve{
		min:    table.Min,
		width:  (table.Max - table.Min) / float64(len(values)),
		values: values,
	}
	return nil
}

func (c *PositionTimeCorrector) Len() int {
	return len(c.tables)
}

// Correct subtracts the interpolated correction from the hit time. Hits
// already corrected and hits of RPCs without table come back unchanged.
func (c *PositionTimeCorrector) Correct(hit Hit) Hit {
	if hit.TimeCorrected {
		return hit
	}
	table, ok := c.tables[hit.Address.Module()]
	if !ok {
		return hit
	}
	hit.Time -= table.interpolate(hit.Local.Transverse)
	hit.TimeCorrected = true
	return hit
}
