package reco

import (
	"testing"
)

func buildClusters(t *testing.T, dead ChannelMask, digis []Digi) ([]Hit, *ClusterBuilder) {
	t.Helper()
	config := testConfiguration()
	_, geometry := testTables(t, config)
	arena := newChannelArena()
	for _, d := range calibrated(digis...) {
		arena.push(d)
	}
	builder := NewClusterBuilder(config.ClusterParams(), geometry, NewChannelPairer(config.PairingParams()), dead)
	return builder.BuildClusters(testModule, arena.modules[testModule]), builder
}

func stripDigis(channels []int, time float64) []Digi {
	digis := make([]Digi, 0)
	for _, ch := range channels {
		digis = append(digis, pairDigis(testModule, ch, time, 0, 16, 1, DigiID(len(digis)))...)
	}
	return digis
}

func assertContiguous(t *testing.T, hits []Hit) {
	t.Helper()
	for _, h := range hits {
		if h.ClusterSize != len(h.Channels) {
			t.Errorf("hit size %d with channels %v", h.ClusterSize, h.Channels)
		}
		for i := 1; i < len(h.Channels); i++ {
			if h.Channels[i] != h.Channels[i-1]+1 {
				t.Errorf("hit channels %v are not a contiguous ascending run", h.Channels)
			}
		}
		if len(h.Provenance) != 2*len(h.Channels) {
			t.Errorf("hit has %d provenance digis for %d channels", len(h.Provenance), len(h.Channels))
		}
	}
}

func TestClusterMissingChannelCloses(t *testing.T) {
	hits, builder := buildClusters(t, nil, stripDigis([]int{3, 4, 5, 7}, 100))
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	assertContiguous(t, hits)
	if hits[0].ClusterSize != 3 || hits[1].ClusterSize != 1 {
		t.Errorf("cluster sizes %d, %d; want 3, 1", hits[0].ClusterSize, hits[1].ClusterSize)
	}
	if builder.Observations() != 4 {
		t.Errorf("Observations() = %d, want 4", builder.Observations())
	}
	// Channel 4 is the middle strip of the first cluster.
	if hits[0].Address.Channel != 4 {
		t.Errorf("representative channel %d, want 4", hits[0].Address.Channel)
	}
}

func TestClusterDeadChannelCloses(t *testing.T) {
	dead := ChannelMask(nil).With(4)
	hits, _ := buildClusters(t, dead, stripDigis([]int{3, 4, 5}, 100))
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	for _, h := range hits {
		for _, ch := range h.Channels {
			if ch == 4 {
				t.Errorf("dead channel 4 contributed to hit %v", h.Channels)
			}
		}
	}
}

func TestClusterTimeDistanceSplits(t *testing.T) {
	digis := append(stripDigis([]int{3}, 100), pairDigis(testModule, 4, 102, 0, 16, 1, 10)...)
	hits, _ := buildClusters(t, nil, digis)
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
}

func TestClusterMultiplePairsPerStrip(t *testing.T) {
	digis := append(stripDigis([]int{3}, 100), pairDigis(testModule, 3, 200, 0, 16, 1, 10)...)
	hits, _ := buildClusters(t, nil, digis)
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Time != 100 || hits[1].Time != 200 {
		t.Errorf("hit times %g, %g", hits[0].Time, hits[1].Time)
	}
}

func TestClusterPosition(t *testing.T) {
	hits, _ := buildClusters(t, nil, pairDigis(testModule, 4, 100, 1, 16, 1, 0))
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	h := hits[0]
	if !almostEqual(h.Local.Transverse, 1, 1e-9) || !almostEqual(h.Local.AlongStrip, 11.25, 1e-9) {
		t.Errorf("local position %+v", h.Local)
	}
	want := Vec3{X: 1, Y: 11.25, Z: 0}
	if !almostEqual(h.Global.X, want.X, 1e-9) || !almostEqual(h.Global.Y, want.Y, 1e-9) || !almostEqual(h.Global.Z, want.Z, 1e-9) {
		t.Errorf("global position %+v, want %+v", h.Global, want)
	}
}

func TestClusterGeometryFailureSkipsChannel(t *testing.T) {
	digis := append(stripDigis([]int{3}, 100), pairDigis(testModule, testChannels+3, 100, 0, 16, 1, 10)...)
	hits, builder := buildClusters(t, nil, digis)
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if builder.GeometryFailures() != 1 {
		t.Errorf("GeometryFailures() = %d, want 1", builder.GeometryFailures())
	}
}

func TestPlacementRotation(t *testing.T) {
	p := NewPlacement(1, 2, 3, 0, 0, 90)
	g := p.Apply(Vec3{X: 1})
	if !almostEqual(g.X, 1, 1e-12) || !almostEqual(g.Y, 3, 1e-12) || !almostEqual(g.Z, 3, 1e-12) {
		t.Errorf("rotated point %+v, want {1 3 3}", g)
	}
}

func TestChannelMask(t *testing.T) {
	mask := ChannelMask(nil).With(0, 63, 64, 130)
	for _, ch := range []int{0, 63, 64, 130} {
		if !mask.Dead(ch) {
			t.Errorf("channel %d should be dead", ch)
		}
	}
	for _, ch := range []int{-1, 1, 62, 65, 129, 500} {
		if mask.Dead(ch) {
			t.Errorf("channel %d should be alive", ch)
		}
	}
}

func TestClusterLaterPairJoinsNeighbor(t *testing.T) {
	digis := pairDigis(testModule, 4, 100, 0, 16, 1, 0)
	digis = append(digis, pairDigis(testModule, 4, 200, 0, 16, 1, 2)...)
	digis = append(digis, pairDigis(testModule, 5, 200, 0.1, 16, 1, 4)...)
	hits, builder := buildClusters(t, nil, digis)
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	assertContiguous(t, hits)
	if hits[0].Time != 100 || len(hits[0].Channels) != 1 || hits[0].Channels[0] != 4 {
		t.Errorf("first hit t %g channels %v, want t 100 channels [4]", hits[0].Time, hits[0].Channels)
	}
	if !almostEqual(hits[1].Time, 200, 1e-9) || len(hits[1].Channels) != 2 || hits[1].Channels[0] != 4 {
		t.Errorf("second hit t %g channels %v, want t 200 channels [4 5]", hits[1].Time, hits[1].Channels)
	}
	if builder.Observations() != 3 {
		t.Errorf("Observations() = %d, want 3", builder.Observations())
	}
}

func TestClusterSeedTakesMatchingLaterPair(t *testing.T) {
	digis := pairDigis(testModule, 6, 100, 0, 16, 1, 0)
	digis = append(digis, pairDigis(testModule, 7, 50, 0, 16, 1, 2)...)
	digis = append(digis, pairDigis(testModule, 7, 100.2, 0, 16, 1, 4)...)
	hits, _ := buildClusters(t, nil, digis)
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	assertContiguous(t, hits)
	if len(hits[0].Channels) != 2 || hits[0].Channels[0] != 6 || !almostEqual(hits[0].Time, 100.1, 1e-9) {
		t.Errorf("first hit t %g channels %v, want t 100.1 channels [6 7]", hits[0].Time, hits[0].Channels)
	}
	if len(hits[1].Channels) != 1 || hits[1].Channels[0] != 7 || hits[1].Time != 50 {
		t.Errorf("second hit t %g channels %v, want t 50 channels [7]", hits[1].Time, hits[1].Channels)
	}
}
