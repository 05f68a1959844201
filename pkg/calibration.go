package reco

import "fmt"

// CalibrationKey follows the run conditions layout, RPCs are numbered
// consecutively inside a module type: RpcKey = ModuleIndex*RpcCount + Rpc.
type CalibrationKey struct {
	ModuleType int
	RpcKey     int
	Channel    int
	Side       int
}

type CalibrationEntry struct {
	TimeOffset   float64
	ChargeGain   float64
	ChargeOffset float64
	Walk         []float64
}

// CalibrationTable is loaded once per run and only read afterwards, so it can
// be shared by all workers without locking.
type CalibrationTable struct {
	walkBins  int
	chargeMin float64
	binWidth  float64
	rpcCount  map[int]int
	entries   map[CalibrationKey]*CalibrationEntry
}

// NewCalibrationTable creates an empty table whose walk curves have walkBins
// bins spanning [chargeMin, chargeMax). rpcCount gives the number of RPCs per
// module type.
func NewCalibrationTable(walkBins int, chargeMin, chargeMax float64, rpcCount map[int]int) (*CalibrationTable, error) {
	if walkBins < 1 {
		return nil, fmt.Errorf("walk bins must be positive, got %d", walkBins)
	}
	if chargeMax <= chargeMin {
		return nil, fmt.Errorf("empty walk charge range [%g, %g)", chargeMin, chargeMax)
	}
	counts := make(map[int]int, len(rpcCount))
	for moduleType, n := range rpcCount {
		counts[moduleType] = n
	}
	return &CalibrationTable{
		walkBins:  walkBins,
		chargeMin: chargeMin,
		binWidth:  (chargeMax - chargeMin) / float64(walkBins),
		rpcCount:  counts,
		entries:   make(map[CalibrationKey]*CalibrationEntry),
	}, nil
}

func (t *CalibrationTable) Key(a Address) (CalibrationKey, bool) {
	n, ok := t.rpcCount[a.ModuleType]
	if !ok || a.Rpc >= n {
		return CalibrationKey{}, false
	}
	return CalibrationKey{
		ModuleType: a.ModuleType,
		RpcKey:     a.ModuleIndex*n + a.Rpc,
		Channel:    a.Channel,
		Side:       a.Side,
	}, true
}

// Set stores a copy of entry. An entry without walk curve gets a flat one.
func (t *CalibrationTable) Set(a Address, entry CalibrationEntry) error {
	key, ok := t.Key(a)
	if !ok {
		return fmt.Errorf("no RPC layout for %v", a)
	}
	walk := make([]float64, t.walkBins)
	switch len(entry.Walk) {
	case 0:
	case t.walkBins:
		copy(walk, entry.Walk)
	default:
		return &ErrWalkBinCount{Key: key, Got: len(entry.Walk), Expected: t.walkBins}
	}
	entry.Walk = walk
	t.entries[key] = &entry
	return nil
}

// SetWalkBin overwrites one bin of an existing entry. Only used while loading.
func (t *CalibrationTable) SetWalkBin(a Address, bin int, value float64) error {
	entry, ok := t.Lookup(a)
	if !ok {
		return &ErrMissingCalibration{Address: a}
	}
	if bin < 0 || bin >= t.walkBins {
		return fmt.Errorf("walk bin %d out of range for %v", bin, a)
	}
	entry.Walk[bin] = value
	return nil
}

func (t *CalibrationTable) Lookup(a Address) (*CalibrationEntry, bool) {
	key, ok := t.Key(a)
	if !ok {
		return nil, false
	}
	entry, ok := t.entries[key]
	return entry, ok
}

func (t *CalibrationTable) Len() int {
	return len(t.entries)
}

func (t *CalibrationTable) WalkBins() int {
	return t.walkBins
}

func (t *CalibrationTable) RpcCount(moduleType int) int {
	return t.rpcCount[moduleType]
}

// WalkCorrection is the time to subtract from a digi with the given
// (already gain corrected) charge.
func (t *CalibrationTable) WalkCorrection(entry *CalibrationEntry, charge float64) float64 {
	curve := binnedCurve{min: t.chargeMin, width: t.binWidth, values: entry.Walk}
	return curve.interpolate(charge)
}
