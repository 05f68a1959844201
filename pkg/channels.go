package reco

import "sort"

// ChannelAccumulator holds the pending calibrated digis of one strip in time
// order. Both sides share one queue so same-side runs can be detected.
type ChannelAccumulator struct {
	digis []CalibratedDigi
}

func (q *ChannelAccumulator) Push(d CalibratedDigi) {
	n := len(q.digis)
	if n == 0 || q.digis[n-1].Time <= d.Time {
		q.digis = append(q.digis, d)
		return
	}
	idx := sort.Search(n, func(i int) bool { return q.digis[i].Time > d.Time })
	q.digis = append(q.digis, CalibratedDigi{})
	copy(q.digis[idx+1:], q.digis[idx:])
	q.digis[idx] = d
}

func (q *ChannelAccumulator) Len() int {
	return len(q.digis)
}

// Pending returns the number of queued digis on one side.
func (q *ChannelAccumulator) Pending(side int) int {
	n := 0
	for _, d := range q.digis {
		if d.Address.Side == side {
			n++
		}
	}
	return n
}

func (q *ChannelAccumulator) State() PairerState {
	switch {
	case len(q.digis) == 0:
		return Empty
	case q.Pending(0) > 0 && q.Pending(1) > 0:
		return PairReady
	default:
		return SingleSidePending
	}
}

// remove erases the digis at the given ascending positions.
func (q *ChannelAccumulator) remove(positions ...int) {
	kept := q.digis[:0]
	next := 0
	for i, d := range q.digis {
		if next < len(positions) && positions[next] == i {
			next++
			continue
		}
		kept = append(kept, d)
	}
	q.digis = kept
}

// channelArena owns every ChannelAccumulator of one processing unit.
type channelArena struct {
	modules map[ModuleKey]map[int]*ChannelAccumulator
}

func newChannelArena() *channelArena {
	return &channelArena{modules: make(map[ModuleKey]map[int]*ChannelAccumulator)}
}

func (a *channelArena) push(d CalibratedDigi) {
	key := d.Address.Module()
	channels, ok := a.modules[key]
	if !ok {
		channels = make(map[int]*ChannelAccumulator)
		a.modules[key] = channels
	}
	q, ok := channels[d.Address.Channel]
	if !ok {
		q = &ChannelAccumulator{}
		channels[d.Address.Channel] = q
	}
	q.Push(d)
}

func (a *channelArena) channel(key ModuleKey, channel int) *ChannelAccumulator {
	return a.modules[key][channel]
}

// moduleKeys returns the modules that received digis, sorted.
func (a *channelArena) moduleKeys() []ModuleKey {
	keys := make([]ModuleKey, 0, len(a.modules))
	for key := range a.modules {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func (a *channelArena) reset() {
	clear(a.modules)
}
