package reco

import (
	"fmt"
	"math"
)

type PairerState int

const (
	Empty PairerState = iota
	SingleSidePending
	PairReady
)

func (s PairerState) String() string {
	switch s {
	case Empty:
		return "Empty"
	case SingleSidePending:
		return "SingleSidePending"
	case PairReady:
		return "PairReady"
	default:
		return "Unknown"
	}
}

type PairingParams struct {
	SignalVelocity float64 // cm/ns
	GuardFactor    float64
	RepairPairs    bool
}

// ChannelPairer turns the two-sided digis of a strip into channel
// observations. One pairer is used by one goroutine.
type ChannelPairer struct {
	params   PairingParams
	rejected int
}

func NewChannelPairer(params PairingParams) *ChannelPairer {
	return &ChannelPairer{params: params}
}

// Rejected counts pairs dropped by the position guard.
func (p *ChannelPairer) Rejected() int {
	return p.rejected
}

// Next returns the next observation of the strip, consuming its digis.
// ok is false once the queue cannot produce another pair.
func (p *ChannelPairer) Next(key ChannelKey, q *ChannelAccumulator, cell CellInfo) (ChannelObservation, bool, error) {
	limit := cell.HalfLength * p.params.GuardFactor
	for q != nil && q.Len() >= 2 {
		p.resolveSameSide(key, q)
		if q.Len() < 2 {
			break
		}

		d0, d1 := q.digis[0], q.digis[1]
		if d0.Address.Side == d1.Address.Side {
			q.remove(0, 1)
			return ChannelObservation{}, false, &ErrInconsistentPair{Channel: key, Reason: "same side after recovery"}
		}
		if !finite(d0.Time, d1.Time, d0.Charge, d1.Charge) {
			q.remove(0, 1)
			return ChannelObservation{}, false, &ErrInconsistentPair{Channel: key, Reason: "non finite time or charge"}
		}

		obs := p.observe(key.Channel, d0, d1)
		if abs(obs.Transverse) <= limit {
			q.remove(0, 1)
			return obs, true, nil
		}

		if p.params.RepairPairs && q.Len() > 2 {
			d2 := q.digis[2]
			var alt ChannelObservation
			if d2.Address.Side == d0.Address.Side {
				alt = p.observe(key.Channel, d1, d2)
			} else {
				alt = p.observe(key.Channel, d0, d2)
			}
			if finite(d2.Time, d2.Charge) && abs(alt.Transverse) < abs(obs.Transverse) && abs(alt.Transverse) <= limit {
				if verbosity > 2 {
					message := fmt.Sprintf("%v: repaired pair, y %.2f -> %.2f", key, obs.Transverse, alt.Transverse)
					logger.Info(message, "pairer")
				}
				q.remove(0, 1, 2)
				return alt, true, nil
			}
		}

		if verbosity > 2 {
			message := fmt.Sprintf("%v: pair rejected, |y| %.2f > %.2f", key, abs(obs.Transverse), limit)
			logger.Info(message, "pairer")
		}
		q.remove(0, 1)
		p.rejected++
	}
	return ChannelObservation{}, false, nil
}

// resolveSameSide clears same-side duplicates from the head of the queue.
// A run of three or more keeps the member farthest in time from the nearest
// opposite-side digi. A run of two loses its earlier digi.
func (p *ChannelPairer) resolveSameSide(key ChannelKey, q *ChannelAccumulator) {
	for q.Len() >= 2 && q.digis[0].Address.Side == q.digis[1].Address.Side {
		side := q.digis[0].Address.Side
		run := 1
		for run < q.Len() && q.digis[run].Address.Side == side {
			run++
		}
		if run < 3 {
			q.remove(0)
			continue
		}

		keep := run - 1
		if run < q.Len() {
			bestGap := -1.0
			for k := 0; k < run; k++ {
				gap := nearestOppositeGap(q.digis, k)
				if gap > bestGap {
					bestGap = gap
					keep = k
				}
			}
		}
		if verbosity > 2 {
			message := fmt.Sprintf("%v: %d same side digis, keeping #%d", key, run, keep)
			logger.Info(message, "pairer")
		}
		erase := make([]int, 0, run-1)
		for k := 0; k < run; k++ {
			if k != keep {
				erase = append(erase, k)
			}
		}
		q.remove(erase...)
	}
}

func nearestOppositeGap(digis []CalibratedDigi, k int) float64 {
	gap := math.Inf(1)
	for _, d := range digis {
		if d.Address.Side != digis[k].Address.Side {
			gap = math.Min(gap, abs(d.Time-digis[k].Time))
		}
	}
	return gap
}

func (p *ChannelPairer) observe(channel int, a, b CalibratedDigi) ChannelObservation {
	side0, side1 := a, b
	if a.Address.Side == 1 {
		side0, side1 = b, a
	}
	return ChannelObservation{
		Channel:    channel,
		Time:       0.5 * (side0.Time + side1.Time),
		Transverse: 0.5 * p.params.SignalVelocity * (side1.Time - side0.Time),
		Charge:     side0.Charge + side1.Charge,
		Digis:      [2]DigiID{side0.ID, side1.ID},
	}
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
