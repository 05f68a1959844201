package reco

// DeadTimeFilter drops digis that follow the last accepted digi of the same
// channel side closer than the dead time. It suppresses double counting from
// electronic ringing.
type DeadTimeFilter struct {
	deadTime float64
	last     map[Address]float64
	dropped  int
}

func NewDeadTimeFilter(deadTime float64) *DeadTimeFilter {
	return &DeadTimeFilter{
		deadTime: deadTime,
		last:     make(map[Address]float64),
	}
}

func (f *DeadTimeFilter) Accept(d Digi) bool {
	if last, ok := f.last[d.Address]; ok && d.Time-last < f.deadTime {
		f.dropped++
		return false
	}
	f.last[d.Address] = d.Time
	return true
}

func (f *DeadTimeFilter) Dropped() int {
	return f.dropped
}

func (f *DeadTimeFilter) Reset() {
	clear(f.last)
	f.dropped = 0
}
