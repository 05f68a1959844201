package reco

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Reconstructor runs the full hit reconstruction of one processing unit. It
// only reads its tables after construction, ProcessUnit may be called from
// several goroutines.
type Reconstructor struct {
	runID      uuid.UUID
	config     Configuration
	calibrator *DigiCalibrator
	geometry   Geometry
	corrector  *PositionTimeCorrector
	dead       map[ModuleKey]ChannelMask
	metrics    *Metrics
}

func NewReconstructor(config Configuration, calibration *CalibrationTable, geometry Geometry,
	corrector *PositionTimeCorrector, metrics *Metrics) (*Reconstructor, error) {
	if calibration == nil || calibration.Len() == 0 {
		return nil, ErrNoCalibration
	}
	if geometry == nil {
		return nil, fmt.Errorf("reconstructor needs a geometry")
	}
	return &Reconstructor{
		runID:      uuid.New(),
		config:     config,
		calibrator: NewDigiCalibrator(calibration),
		geometry:   geometry,
		corrector:  corrector,
		dead:       config.DeadMasks(),
		metrics:    metrics,
	}, nil
}

// RunID identifies this reconstruction pass in logs and output files.
func (r *Reconstructor) RunID() uuid.UUID {
	return r.runID
}

// BatchLimit is the largest number of digis a unit may carry, 0 when the
// geometry is empty and units are not limited.
func (r *Reconstructor) BatchLimit() int {
	channels := r.geometry.TotalChannels()
	if channels == 0 {
		return 0
	}
	return max(int(r.config.MaxMultiplicity*float64(channels)), 1)
}

// Reject records a unit refused as a whole, also when its digis were never
// read. The result has no hits.
func (r *Reconstructor) Reject(unit Unit, err *ErrOversizedBatch) UnitResult {
	logger.Warn(fmt.Sprintf("run %s: rejecting unit: %v", r.runID, err), "reconstructor")
	result := UnitResult{UnitID: unit.ID, StartTime: unit.StartTime, Rejected: true, Hits: []Hit{}}
	result.Stats.Digis = err.NDigis
	r.metrics.observe(&result)
	return result
}

// unitState is everything that lives for exactly one unit.
type unitState struct {
	filter *DeadTimeFilter
	arena  *channelArena
}

type moduleResult struct {
	hits             []Hit
	observations     int
	rejected         int
	inconsistent     int
	geometryFailures int
}

// ProcessUnit reconstructs the hits of one unit. Per digi and per channel
// problems are counted in the result stats. An oversized unit is rejected as
// a whole with *ErrOversizedBatch and an empty hit list.
func (r *Reconstructor) ProcessUnit(unit Unit) (UnitResult, error) {
	start := time.Now()
	limit := r.BatchLimit()
	if limit > 0 && len(unit.Digis) > limit {
		err := &ErrOversizedBatch{UnitID: unit.ID, NDigis: len(unit.Digis), Limit: limit}
		return r.Reject(unit, err), err
	}

	result := UnitResult{UnitID: unit.ID, StartTime: unit.StartTime}
	result.Stats.Digis = len(unit.Digis)

	state := unitState{
		filter: NewDeadTimeFilter(r.config.DeadTime),
		arena:  newChannelArena(),
	}
	accepted := make([]Digi, 0, len(unit.Digis))
	for _, d := range unit.Digis {
		if state.filter.Accept(d) {
			accepted = append(accepted, d)
		}
	}
	result.Stats.DeadTimeDropped = state.filter.Dropped()

	calibrated, missing := r.calibrator.CalibrateBatch(accepted)
	result.Stats.MissingCalibration = missing
	result.Calibrated = calibrated
	for _, d := range calibrated {
		state.arena.push(d)
	}

	keys := state.arena.moduleKeys()
	modules := make([]moduleResult, len(keys))
	var g errgroup.Group
	g.SetLimit(max(r.config.ModuleWorkers, 1))
	for i, key := range keys {
		i, key := i, key
		channels := state.arena.modules[key]
		g.Go(func() error {
			pairer := NewChannelPairer(r.config.PairingParams())
			builder := NewClusterBuilder(r.config.ClusterParams(), r.geometry, pairer, r.dead[key])
			modules[i] = moduleResult{
				hits:             builder.BuildClusters(key, channels),
				observations:     builder.Observations(),
				rejected:         pairer.Rejected(),
				inconsistent:     builder.InconsistentPairs(),
				geometryFailures: builder.GeometryFailures(),
			}
			return nil
		})
	}
	// Module tasks never fail.
	_ = g.Wait()

	hits := make([]Hit, 0)
	for _, m := range modules {
		hits = append(hits, m.hits...)
		result.Stats.Observations += m.observations
		result.Stats.RejectedPairs += m.rejected
		result.Stats.InconsistentPairs += m.inconsistent
		result.Stats.GeometryFailures += m.geometryFailures
	}

	if r.config.MergeHits {
		merger := NewClusterMerger(r.config.MergeParams())
		hits = merger.Merge(hits)
		result.Stats.Merged = merger.Merged()
	}
	if r.config.CorrectPositionTime && r.corrector != nil {
		for i := range hits {
			hits[i] = r.corrector.Correct(hits[i])
		}
	}

	result.Hits = hits
	result.Stats.Hits = len(hits)
	state.arena.reset()

	if verbosity > 1 {
		logger.Info(fmt.Sprintf("unit %d: %d digis, %d hits (%d dropped, %d uncalibrated, %d rejected pairs)",
			unit.ID, result.Stats.Digis, result.Stats.Hits, result.Stats.DeadTimeDropped,
			result.Stats.MissingCalibration, result.Stats.RejectedPairs), "reconstructor")
	}
	if r.metrics != nil {
		r.metrics.observe(&result)
		r.metrics.UnitDuration.Observe(time.Since(start).Seconds())
	}
	return result, nil
}
