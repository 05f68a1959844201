package reco

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

type MergeRule struct {
	Mergeable bool
	Tolerance float64 // cm, in the global x-y plane
}

type MergeParams struct {
	MaxTimeDistance float64
	Rules           map[int]MergeRule // by module type
}

// ClusterMerger joins hits that a particle left on two neighboring RPCs of the
// same module, e.g. small counters split over several RPCs. Merged hits are
// flagged and never merged again, so Merge is idempotent.
type ClusterMerger struct {
	params MergeParams
	merged int
}

func NewClusterMerger(params MergeParams) *ClusterMerger {
	return &ClusterMerger{params: params}
}

func (m *ClusterMerger) Merged() int {
	return m.merged
}

func (m *ClusterMerger) Merge(hits []Hit) []Hit {
	out := make([]Hit, 0, len(hits))
	consumed := make([]bool, len(hits))
	for i := range hits {
		if consumed[i] {
			continue
		}
		best := -1
		bestDistance := math.Inf(1)
		if m.candidate(hits[i]) {
			for j := i + 1; j < len(hits); j++ {
				if consumed[j] || !m.candidate(hits[j]) {
					continue
				}
				if d, ok := m.adjacent(hits[i], hits[j]); ok && d < bestDistance {
					best, bestDistance = j, d
				}
			}
		}
		if best < 0 {
			out = append(out, hits[i])
			continue
		}
		consumed[best] = true
		m.merged++
		out = append(out, combineHits(hits[i], hits[best]))
	}
	return out
}

func (m *ClusterMerger) candidate(h Hit) bool {
	return !h.Merged && m.params.Rules[h.Address.ModuleType].Mergeable
}

// adjacent reports whether a and b may be merged and their planar distance.
func (m *ClusterMerger) adjacent(a, b Hit) (float64, bool) {
	if a.Address.ModuleType != b.Address.ModuleType || a.Address.ModuleIndex != b.Address.ModuleIndex {
		return 0, false
	}
	if abs(a.Address.Rpc-b.Address.Rpc) != 1 {
		return 0, false
	}
	if abs(a.Time-b.Time) >= m.params.MaxTimeDistance {
		return 0, false
	}
	d := math.Hypot(a.Global.X-b.Global.X, a.Global.Y-b.Global.Y)
	if d >= m.params.Rules[a.Address.ModuleType].Tolerance {
		return 0, false
	}
	return d, true
}

func combineHits(a, b Hit) Hit {
	weights := []float64{a.Charge, b.Charge}
	if a.Charge <= 0 || b.Charge <= 0 {
		weights = nil
	}
	mean := func(x, y float64) float64 {
		return stat.Mean([]float64{x, y}, weights)
	}

	dominant := a
	if b.Charge > a.Charge {
		dominant = b
	}
	merged := Hit{
		Address: dominant.Address,
		Local:   dominant.Local,
		Global: Vec3{
			X: mean(a.Global.X, b.Global.X),
			Y: mean(a.Global.Y, b.Global.Y),
			Z: mean(a.Global.Z, b.Global.Z),
		},
		Time:          mean(a.Time, b.Time),
		Charge:        a.Charge + b.Charge,
		ClusterSize:   a.ClusterSize + b.ClusterSize,
		Channels:      append(append([]int{}, a.Channels...), b.Channels...),
		Provenance:    append(append([]DigiID{}, a.Provenance...), b.Provenance...),
		Merged:        true,
		TimeCorrected: a.TimeCorrected && b.TimeCorrected,
	}
	return merged
}
