package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	reco "github.com/next-exp/tofreco_go/pkg"
)

type FileReader struct {
	File      *os.File
	reader    *bufio.Reader
	scheme    reco.AddressScheme
	maxDigis  int
	UnitCount int
}

// NewFileReader reads units of at most maxDigis digis, larger ones are
// skipped on disk. maxDigis <= 0 reads every unit.
func NewFileReader(file *os.File, scheme reco.AddressScheme, maxDigis int) *FileReader {
	return &FileReader{File: file, reader: bufio.NewReader(file), scheme: scheme, maxDigis: maxDigis, UnitCount: -1}
}

// getNextUnit returns io.EOF at the end of the file or once MaxUnits units
// have been read, skipped ones included. An oversized unit comes back without
// digis together with its *reco.ErrOversizedBatch.
func (f *FileReader) getNextUnit() (reco.Unit, error) {
	for {
		unit, err := reco.ReadUnit(f.reader, f.scheme, f.maxDigis)
		var oversized *reco.ErrOversizedBatch
		if err != nil && !errors.As(err, &oversized) {
			return unit, err
		}
		f.UnitCount++
		if f.UnitCount >= configuration.MaxUnits {
			if VerbosityLevel > 0 {
				logger.Info("Max units reached", "fileReader")
			}
			return unit, io.EOF
		}
		if f.UnitCount < configuration.Skip {
			if VerbosityLevel > 0 {
				message := fmt.Sprintf("Skipping unit %d with ID %d", f.UnitCount, unit.ID)
				logger.Info(message, "fileReader")
			}
			continue
		}
		if VerbosityLevel > 1 {
			message := fmt.Sprintf("Reading unit %d with ID %d (%d digis)", f.UnitCount, unit.ID, len(unit.Digis))
			logger.Info(message, "fileReader")
		}
		return unit, err
	}
}

// countUnits walks the unit headers of the file and rewinds it.
func countUnits(file *os.File) (int, error) {
	unitCount := 0
	for {
		var header reco.UnitHeader
		err := binary.Read(file, binary.LittleEndian, &header)
		if err != nil {
			if err != io.EOF {
				errMessage := fmt.Errorf("error reading header counting units: %w", err)
				logger.Error(errMessage.Error())
			}
			break
		}
		if header.Magic != reco.UnitMagic {
			logger.Error(fmt.Sprintf("bad unit header after %d units", unitCount))
			break
		}
		if VerbosityLevel > 2 {
			message := fmt.Sprintf("Unit id: %d. Digis %d", header.UnitID, header.NDigis)
			logger.Info(message, "unitCounter")
		}
		payloadSize := reco.UnitSize(int(header.NDigis)) - reco.UnitSize(0)
		if _, err := file.Seek(payloadSize, io.SeekCurrent); err != nil {
			logger.Error(fmt.Sprintf("error skipping unit %d: %v", header.UnitID, err))
			break
		}
		unitCount++
	}
	// Go back to the beginning of the file
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return unitCount, fmt.Errorf("error rewinding %s: %w", file.Name(), err)
	}
	return unitCount, nil
}

func numberOfUnitsToProcess(fileUnitCount int, skipUnits int, maxUnitCount int) int {
	unitsToRead := min(maxUnitCount, fileUnitCount) - skipUnits
	return max(unitsToRead, 0)
}
