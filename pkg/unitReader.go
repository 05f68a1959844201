package reco

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unsafe"
)

// UnitMagic marks the start of every unit in a unit file ("TOFU").
const UnitMagic uint32 = 0x55464f54

type UnitHeader struct {
	Magic     uint32
	UnitID    uint32
	NDigis    uint32
	Pad       uint32
	StartTime float64
}

type DigiRecord struct {
	Address uint32
	Pad     uint32
	Time    float64
	Charge  float64
}

var ErrBadMagic = errors.New("unit header magic mismatch")

// ReadUnit reads the next unit from r. It returns io.EOF when r ends cleanly
// before a header and io.ErrUnexpectedEOF when a unit is truncated. Digis with
// undecodable addresses are dropped, their IDs are not reused.
//
// A unit announcing more than maxDigis digis is skipped without reading its
// records into memory: the unit comes back with its ID and start time only,
// together with an *ErrOversizedBatch. maxDigis <= 0 disables the limit.
func ReadUnit(r io.Reader, scheme AddressScheme, maxDigis int) (Unit, error) {
	var header UnitHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return Unit{}, err
	}
	if header.Magic != UnitMagic {
		return Unit{}, fmt.Errorf("unit %d: %w (0x%08x)", header.UnitID, ErrBadMagic, header.Magic)
	}

	if maxDigis > 0 && int64(header.NDigis) > int64(maxDigis) {
		payload := UnitSize(int(header.NDigis)) - UnitSize(0)
		if _, err := io.CopyN(io.Discard, r, payload); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return Unit{}, fmt.Errorf("unit %d: skipping %d digis: %w", header.UnitID, header.NDigis, err)
		}
		unit := Unit{ID: header.UnitID, StartTime: header.StartTime}
		return unit, &ErrOversizedBatch{UnitID: header.UnitID, NDigis: int(header.NDigis), Limit: maxDigis}
	}

	records := make([]DigiRecord, header.NDigis)
	if err := binary.Read(r, binary.LittleEndian, records); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Unit{}, fmt.Errorf("unit %d: reading %d digis: %w", header.UnitID, header.NDigis, err)
	}

	unit := Unit{
		ID:        header.UnitID,
		StartTime: header.StartTime,
		Digis:     make([]Digi, 0, len(records)),
	}
	for i, record := range records {
		address, err := scheme.Decode(record.Address)
		if err != nil {
			logger.Error(fmt.Sprintf("unit %d digi %d: %v", header.UnitID, i, err))
			continue
		}
		unit.Digis = append(unit.Digis, Digi{
			ID:      DigiID(i),
			Address: address,
			Time:    record.Time,
			Charge:  record.Charge,
		})
	}
	return unit, nil
}

// WriteUnit is the inverse of ReadUnit.
func WriteUnit(w io.Writer, unit Unit, scheme AddressScheme) error {
	header := UnitHeader{
		Magic:     UnitMagic,
		UnitID:    unit.ID,
		NDigis:    uint32(len(unit.Digis)),
		StartTime: unit.StartTime,
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	records := make([]DigiRecord, len(unit.Digis))
	for i, d := range unit.Digis {
		word, err := scheme.Encode(d.Address)
		if err != nil {
			return fmt.Errorf("unit %d digi %d: %w", unit.ID, d.ID, err)
		}
		records[i] = DigiRecord{Address: word, Time: d.Time, Charge: d.Charge}
	}
	return binary.Write(w, binary.LittleEndian, records)
}

// UnitSize is the number of bytes a unit with n digis takes on disk.
func UnitSize(n int) int64 {
	var header UnitHeader
	var record DigiRecord
	return int64(unsafe.Sizeof(header)) + int64(n)*int64(unsafe.Sizeof(record))
}
