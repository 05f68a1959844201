package reco

import (
	hdf5 "github.com/jmbenlloch/go-hdf5"
)

type runInfoHDF5 struct {
	run_number int32
	run_id     [STRLEN]byte
}

type unitHDF5 struct {
	unit_id            uint32
	start_time         float64
	n_digis            int32
	n_hits             int32
	dead_time_dropped  int32
	missing_calib      int32
	rejected_pairs     int32
	inconsistent_pairs int32
	geometry_failures  int32
	rejected           int8
}

type hitHDF5 struct {
	unit_id      uint32
	hit_id       int32
	module_type  int32
	module_index int32
	rpc          int32
	channel      int32
	transverse   float64
	along_strip  float64
	x            float64
	y            float64
	z            float64
	time         float64
	charge       float64
	cluster_size int32
	merged       int8
	corrected    int8
}

type provenanceHDF5 struct {
	unit_id uint32
	hit_id  int32
	digi_id int32
}

type digiHDF5 struct {
	unit_id      uint32
	digi_id      int32
	module_type  int32
	module_index int32
	rpc          int32
	channel      int32
	side         int32
	raw_time     float64
	raw_charge   float64
	time         float64
	charge       float64
}

// STRLEN fits a canonical UUID.
const STRLEN = 36

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

func createTable(group *hdf5.Group, name string, datatype interface{}, compression int) (*hdf5.Dataset, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	file_space, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer file_space.Close()

	// create property list
	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()

	chunks := []uint{32768}
	if err := plist.SetChunk(chunks); err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	if compression > 0 {
		if err := plist.SetDeflate(compression); err != nil {
			return nil, &ErrCreateTable{TableName: name, Err: err}
		}
	}

	// create the memory data type
	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	dset, err := group.CreateDatasetWith(name, dtype, file_space, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

func writeEntryToTable[T any](dataset *hdf5.Dataset, data T, rowsInFile int) error {
	array := []T{data}
	return writeArrayToTable(dataset, &array, rowsInFile)
}

// writeArrayToTable appends data after the first rowsInFile rows.
func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T, rowsInFile int) error {
	length := uint(len(*data))
	if length == 0 {
		return nil
	}
	dims := []uint{length}
	dataspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer dataspace.Close()

	// extend
	start := uint(rowsInFile)
	newsize := []uint{start + length}
	if err := dataset.Resize(newsize); err != nil {
		return err
	}
	filespace := dataset.Space()
	defer filespace.Close()

	count := []uint{length}
	if err := filespace.SelectHyperslab([]uint{start}, nil, count, nil); err != nil {
		return err
	}
	return dataset.WriteSubset(data, dataspace, filespace)
}
