package reco

import (
	"errors"
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// Writer stores reconstructed units in an HDF5 file. It is not safe for
// concurrent use.
type Writer struct {
	File            *hdf5.File
	Filename        string
	RecoGroup       *hdf5.Group
	RunInfoTable    *hdf5.Dataset
	UnitTable       *hdf5.Dataset
	HitTable        *hdf5.Dataset
	ProvenanceTable *hdf5.Dataset
	DigiTable       *hdf5.Dataset

	UnitCounter       int
	HitCounter        int
	ProvenanceCounter int
	DigiCounter       int
}

func NewWriter(filename string, compression int) (*Writer, error) {
	if verbosity > 0 {
		logger.Info(fmt.Sprintf("Creating file %s", filename), "writer")
	}
	file, err := openFile(filename)
	if err != nil {
		return nil, err
	}
	writer := &Writer{File: file, Filename: filename}

	writer.RecoGroup, err = createGroup(file, "RECO")
	if err != nil {
		return nil, errors.Join(err, file.Close())
	}

	tables := []struct {
		dataset **hdf5.Dataset
		name    string
		dtype   interface{}
	}{
		{&writer.RunInfoTable, "runInfo", runInfoHDF5{}},
		{&writer.UnitTable, "units", unitHDF5{}},
		{&writer.HitTable, "hits", hitHDF5{}},
		{&writer.ProvenanceTable, "provenance", provenanceHDF5{}},
		{&writer.DigiTable, "digis", digiHDF5{}},
	}
	for _, table := range tables {
		*table.dataset, err = createTable(writer.RecoGroup, table.name, table.dtype, compression)
		if err != nil {
			return nil, errors.Join(err, writer.Close())
		}
	}
	return writer, nil
}

func (w *Writer) WriteRunInfo(runNumber int, runID string) error {
	info := runInfoHDF5{run_number: int32(runNumber), run_id: convertToHdf5String(runID)}
	return writeEntryToTable(w.RunInfoTable, info, 0)
}

// WriteUnit appends the unit summary, its hits with provenance links and its
// calibrated digis. Rejected units only get the summary row.
func (w *Writer) WriteUnit(result UnitResult) error {
	stats := result.Stats
	unit := unitHDF5{
		unit_id:            result.UnitID,
		start_time:         result.StartTime,
		n_digis:            int32(stats.Digis),
		n_hits:             int32(stats.Hits),
		dead_time_dropped:  int32(stats.DeadTimeDropped),
		missing_calib:      int32(stats.MissingCalibration),
		rejected_pairs:     int32(stats.RejectedPairs),
		inconsistent_pairs: int32(stats.InconsistentPairs),
		geometry_failures:  int32(stats.GeometryFailures),
		rejected:           boolToInt8(result.Rejected),
	}
	if err := writeEntryToTable(w.UnitTable, unit, w.UnitCounter); err != nil {
		return fmt.Errorf("error writing unit %d: %w", result.UnitID, err)
	}
	w.UnitCounter++

	hits := make([]hitHDF5, len(result.Hits))
	links := make([]provenanceHDF5, 0)
	for i, hit := range result.Hits {
		hitID := int32(w.HitCounter + i)
		hits[i] = hitHDF5{
			unit_id:      result.UnitID,
			hit_id:       hitID,
			module_type:  int32(hit.Address.ModuleType),
			module_index: int32(hit.Address.ModuleIndex),
			rpc:          int32(hit.Address.Rpc),
			channel:      int32(hit.Address.Channel),
			transverse:   hit.Local.Transverse,
			along_strip:  hit.Local.AlongStrip,
			x:            hit.Global.X,
			y:            hit.Global.Y,
			z:            hit.Global.Z,
			time:         hit.Time,
			charge:       hit.Charge,
			cluster_size: int32(hit.ClusterSize),
			merged:       boolToInt8(hit.Merged),
			corrected:    boolToInt8(hit.TimeCorrected),
		}
		for _, id := range hit.Provenance {
			links = append(links, provenanceHDF5{unit_id: result.UnitID, hit_id: hitID, digi_id: int32(id)})
		}
	}
	if err := writeArrayToTable(w.HitTable, &hits, w.HitCounter); err != nil {
		return fmt.Errorf("error writing hits of unit %d: %w", result.UnitID, err)
	}
	w.HitCounter += len(hits)
	if err := writeArrayToTable(w.ProvenanceTable, &links, w.ProvenanceCounter); err != nil {
		return fmt.Errorf("error writing provenance of unit %d: %w", result.UnitID, err)
	}
	w.ProvenanceCounter += len(links)

	digis := make([]digiHDF5, len(result.Calibrated))
	for i, d := range result.Calibrated {
		digis[i] = digiHDF5{
			unit_id:      result.UnitID,
			digi_id:      int32(d.ID),
			module_type:  int32(d.Address.ModuleType),
			module_index: int32(d.Address.ModuleIndex),
			rpc:          int32(d.Address.Rpc),
			channel:      int32(d.Address.Channel),
			side:         int32(d.Address.Side),
			raw_time:     d.RawTime,
			raw_charge:   d.RawCharge,
			time:         d.Time,
			charge:       d.Charge,
		}
	}
	if err := writeArrayToTable(w.DigiTable, &digis, w.DigiCounter); err != nil {
		return fmt.Errorf("error writing digis of unit %d: %w", result.UnitID, err)
	}
	w.DigiCounter += len(digis)
	return nil
}

func boolToInt8(b bool) int8 {
	if b {
		return 1
	}
	return 0
}

func (w *Writer) Close() error {
	if verbosity > 0 {
		logger.Info(fmt.Sprintf("Closing file %s", w.Filename), "writer")
	}
	var errs []error

	datasets := []struct {
		dataset *hdf5.Dataset
		name    string
	}{
		{w.RunInfoTable, "run info table"},
		{w.UnitTable, "unit table"},
		{w.HitTable, "hit table"},
		{w.ProvenanceTable, "provenance table"},
		{w.DigiTable, "digi table"},
	}
	for _, d := range datasets {
		if d.dataset == nil {
			continue
		}
		if err := d.dataset.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s: %w", d.name, err))
		}
	}
	if w.RecoGroup != nil {
		if err := w.RecoGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing RECO group: %w", err))
		}
	}
	if err := w.File.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
