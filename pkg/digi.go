package reco

// DigiID is the position of a digi inside its processing unit. It is the
// provenance link between hits and the digis that produced them.
type DigiID int32

// Digi is one time and charge stamped edge from one side of one strip.
type Digi struct {
	ID      DigiID
	Address Address
	Time    float64 // ns
	Charge  float64 // time over threshold
}

// CalibratedDigi keeps the raw values next to the calibrated ones so the
// calibration procedure can be fed from the output.
type CalibratedDigi struct {
	Digi
	RawTime   float64
	RawCharge float64
}

// Unit is one event or time slice as delivered by the decoder.
type Unit struct {
	ID        uint32
	StartTime float64
	Digis     []Digi
}

type ChannelObservation struct {
	Channel    int
	Time       float64
	Transverse float64
	Charge     float64
	Digis      [2]DigiID
}

type Vec3 struct {
	X, Y, Z float64
}

type LocalPosition struct {
	Transverse float64
	AlongStrip float64
}

type Hit struct {
	Address       Address
	Local         LocalPosition
	Global        Vec3
	Time          float64
	Charge        float64
	ClusterSize   int
	Channels      []int
	Provenance    []DigiID
	Merged        bool
	TimeCorrected bool
}

type UnitStats struct {
	Digis              int
	DeadTimeDropped    int
	MissingCalibration int
	InconsistentPairs  int
	GeometryFailures   int
	RejectedPairs      int
	Observations       int
	Hits               int
	Merged             int
}

type UnitResult struct {
	UnitID     uint32
	StartTime  float64
	Hits       []Hit
	Calibrated []CalibratedDigi
	Stats      UnitStats
	Rejected   bool
}
