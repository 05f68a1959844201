package reco

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

type ClusterParams struct {
	MaxTimeDistance  float64 // ns
	MaxSpaceDistance float64 // cm
}

// ClusterBuilder grows clusters over neighboring strips of one RPC. All
// strips are paired first. Strips are then visited in ascending order, every
// unused observation seeds a cluster and the cluster grows to the next strip
// with the earliest pair that matches it. A strip without a matching pair
// closes the cluster: there is no one-gap tolerance.
type ClusterBuilder struct {
	params   ClusterParams
	geometry Geometry
	pairer   *ChannelPairer
	dead     ChannelMask

	observations     int
	inconsistent     int
	geometryFailures int
}

func NewClusterBuilder(params ClusterParams, geometry Geometry, pairer *ChannelPairer, dead ChannelMask) *ClusterBuilder {
	return &ClusterBuilder{params: params, geometry: geometry, pairer: pairer, dead: dead}
}

// stripObservations are the pairs of one strip in time order.
type stripObservations struct {
	pitch float64
	obs   []ChannelObservation
	used  []bool
}

type clusterAccumulator struct {
	pitch         float64
	weight        float64
	sumTime       float64
	sumTransverse float64
	sumAlong      float64
	charge        float64
	last          int
	members       []ChannelObservation
}

func (a *clusterAccumulator) meanTime() float64 {
	return a.sumTime / a.weight
}

func (a *clusterAccumulator) meanTransverse() float64 {
	return a.sumTransverse / a.weight
}

func newClusterAccumulator(obs ChannelObservation, pitch float64) *clusterAccumulator {
	a := &clusterAccumulator{pitch: pitch}
	a.fold(obs)
	return a
}

func (a *clusterAccumulator) fold(obs ChannelObservation) {
	w := obs.Charge
	if w <= 0 {
		w = ChargeFloor
	}
	a.weight += w
	a.sumTime += w * obs.Time
	a.sumTransverse += w * obs.Transverse
	a.sumAlong += w * (float64(obs.Channel) + 0.5) * a.pitch
	a.charge += obs.Charge
	a.last = obs.Channel
	a.members = append(a.members, obs)
}

// BuildClusters consumes the strip queues of one RPC and returns its hits,
// ordered by first strip and then by time.
func (b *ClusterBuilder) BuildClusters(key ModuleKey, channels map[int]*ChannelAccumulator) []Hit {
	nChannels := b.geometry.ChannelCount(key)
	strips := b.pairStrips(key, channels)

	order := make([]int, 0, len(strips))
	for ch := range strips {
		order = append(order, ch)
	}
	sort.Ints(order)

	hits := make([]Hit, 0)
	for _, ch := range order {
		strip := strips[ch]
		for i, obs := range strip.obs {
			if strip.used[i] {
				continue
			}
			strip.used[i] = true
			acc := newClusterAccumulator(obs, strip.pitch)
			next := ch + 1
			for b.grow(acc, strips[next]) {
				next++
			}
			hits = b.close(key, acc, nChannels, hits)
		}
	}
	return hits
}

// pairStrips drains the pairer on every live strip with a geometry cell.
func (b *ClusterBuilder) pairStrips(key ModuleKey, channels map[int]*ChannelAccumulator) map[int]*stripObservations {
	strips := make(map[int]*stripObservations, len(channels))
	for ch, q := range channels {
		if b.dead.Dead(ch) {
			q.digis = nil
			continue
		}
		if q.Len() < 2 {
			continue
		}
		cell, err := b.geometry.CellInfo(key.Address(ch, 0))
		if err != nil {
			b.geometryFailures++
			if verbosity > 1 {
				logger.Info(err.Error(), "clusters")
			}
			q.digis = nil
			continue
		}

		strip := &stripObservations{pitch: cell.Pitch}
		channelKey := ChannelKey{ModuleKey: key, Channel: ch}
		for {
			obs, ok, err := b.pairer.Next(channelKey, q, cell)
			if err != nil {
				var inconsistent *ErrInconsistentPair
				if errors.As(err, &inconsistent) {
					b.inconsistent++
				}
				if verbosity > 1 {
					logger.Info(err.Error(), "clusters")
				}
				continue
			}
			if !ok {
				break
			}
			strip.obs = append(strip.obs, obs)
		}
		if len(strip.obs) == 0 {
			continue
		}
		b.observations += len(strip.obs)
		sort.SliceStable(strip.obs, func(i, j int) bool { return strip.obs[i].Time < strip.obs[j].Time })
		strip.used = make([]bool, len(strip.obs))
		strips[ch] = strip
	}
	return strips
}

// grow folds the earliest unused observation of strip that matches the
// cluster. It reports false when the strip has none.
func (b *ClusterBuilder) grow(acc *clusterAccumulator, strip *stripObservations) bool {
	if strip == nil {
		return false
	}
	for i, obs := range strip.obs {
		if strip.used[i] || !b.extends(acc, obs) {
			continue
		}
		strip.used[i] = true
		acc.fold(obs)
		return true
	}
	return false
}

func (b *ClusterBuilder) extends(acc *clusterAccumulator, obs ChannelObservation) bool {
	return obs.Channel == acc.last+1 &&
		abs(obs.Time-acc.meanTime()) < b.params.MaxTimeDistance &&
		abs(obs.Transverse-acc.meanTransverse()) < b.params.MaxSpaceDistance
}

// close turns the cluster into a hit.
func (b *ClusterBuilder) close(key ModuleKey, acc *clusterAccumulator, nChannels int, hits []Hit) []Hit {
	channels := make([]int, len(acc.members))
	provenance := make([]DigiID, 0, 2*len(acc.members))
	for i, obs := range acc.members {
		channels[i] = obs.Channel
		provenance = append(provenance, obs.Digis[0], obs.Digis[1])
	}

	along := acc.sumAlong / acc.weight
	transverse := acc.meanTransverse()
	rep := acc.members[0].Channel
	if acc.pitch > 0 {
		rep = clamp(int(math.Floor(along/acc.pitch)), 0, max(nChannels-1, 0))
	}
	addr := key.Address(rep, 0)

	placement, err := b.geometry.Transform(addr)
	if err != nil {
		b.geometryFailures++
		if verbosity > 1 {
			logger.Info(fmt.Sprintf("dropping cluster: %v", err), "clusters")
		}
		return hits
	}
	offset := along - (float64(rep)+0.5)*acc.pitch

	hit := Hit{
		Address:     addr,
		Local:       LocalPosition{Transverse: transverse, AlongStrip: along},
		Global:      placement.Apply(Vec3{X: transverse, Y: offset, Z: 0}),
		Time:        acc.meanTime(),
		Charge:      acc.charge,
		ClusterSize: len(channels),
		Channels:    channels,
		Provenance:  provenance,
	}
	if verbosity > 2 {
		message := fmt.Sprintf("%v: hit ch %d size %d t %.3f y %.2f q %.2f",
			key, rep, hit.ClusterSize, hit.Time, hit.Local.Transverse, hit.Charge)
		logger.Info(message, "clusters")
	}
	return append(hits, hit)
}

func (b *ClusterBuilder) Observations() int {
	return b.observations
}

func (b *ClusterBuilder) InconsistentPairs() int {
	return b.inconsistent
}

func (b *ClusterBuilder) GeometryFailures() int {
	return b.geometryFailures
}
