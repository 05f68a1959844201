package reco

import (
	"errors"
	"fmt"
)

// ErrNoCalibration is returned when the conditions contain no calibration
// entry at all. It is the only condition that stops a run.
var ErrNoCalibration = errors.New("calibration table is empty")

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }

// ErrCreateGroup represents an error when creating a group.
type ErrCreateGroup struct {
	GroupName string
	Err       error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %q: %v", e.GroupName, e.Err)
}

func (e *ErrCreateGroup) Unwrap() error { return e.Err }

// ErrCreateTable represents an error when creating a table.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

func (e *ErrCreateTable) Unwrap() error { return e.Err }

// ErrMissingCalibration is returned for a digi whose address has no
// calibration entry. The digi is rejected.
type ErrMissingCalibration struct {
	Address Address
}

func (e *ErrMissingCalibration) Error() string {
	return fmt.Sprintf("no calibration for %v", e.Address)
}

// ErrOversizedBatch rejects a whole processing unit.
type ErrOversizedBatch struct {
	UnitID uint32
	NDigis int
	Limit  int
}

func (e *ErrOversizedBatch) Error() string {
	return fmt.Sprintf("unit %d: %d digis exceed limit of %d", e.UnitID, e.NDigis, e.Limit)
}

// ErrInconsistentPair is returned when a resolved channel pair cannot
// describe a physical signal.
type ErrInconsistentPair struct {
	Channel ChannelKey
	Reason  string
}

func (e *ErrInconsistentPair) Error() string {
	return fmt.Sprintf("inconsistent pair on %v: %s", e.Channel, e.Reason)
}

// ErrGeometryLookup is returned when an address has no geometry cell.
type ErrGeometryLookup struct {
	Address Address
}

func (e *ErrGeometryLookup) Error() string {
	return fmt.Sprintf("no geometry cell for %v", e.Address)
}

// ErrWalkBinCount is returned when a walk curve does not match the bin count
// the calibration table was created with.
type ErrWalkBinCount struct {
	Key      CalibrationKey
	Got      int
	Expected int
}

func (e *ErrWalkBinCount) Error() string {
	return fmt.Sprintf("walk curve for %v has %d bins, expected %d", e.Key, e.Got, e.Expected)
}

type ErrUnknownAddressScheme struct {
	Name string
}

func (e *ErrUnknownAddressScheme) Error() string {
	return fmt.Sprintf("unknown address scheme %q", e.Name)
}
