package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Header is the first CSV line, features in vector order then the label.
func Header() []string {
	return append(append([]string{}, FeatureNames...), LabelColumn)
}

// Encode writes d as CSV. Floats use the shortest representation that round-trips, so integer
// measurements print without a decimal point.
func Encode(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	row := make([]string, len(FeatureNames)+1)
	for _, s := range d.Samples {
		for i, v := range s.Vector() {
			row[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		row[len(FeatureNames)] = strconv.Itoa(s.Label)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV replaces path with the encoded dataset, creating parent directories.
func WriteCSV(path string, d *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := Encode(bw, d); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Decode parses a dataset. Columns are located by header name so their order in the file
// does not matter; every sample is then checked by the default cleaning rules.
func Decode(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	positions := make([]int, 0, len(FeatureNames)+1)
	for _, name := range Header() {
		pos, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, name)
		}
		positions = append(positions, pos)
	}

	ds := &Dataset{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		values := make([]float64, len(FeatureNames))
		for i := range FeatureNames {
			v, err := strconv.ParseFloat(row[positions[i]], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", ErrMalformed, line, FeatureNames[i], err)
			}
			values[i] = v
		}
		label, err := strconv.Atoi(row[positions[len(FeatureNames)]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d column %s: %v", ErrMalformed, line, LabelColumn, err)
		}
		ds.Samples = append(ds.Samples, Sample{
			Record: Record{
				Age:           values[0],
				BMI:           values[1],
				BloodPressure: values[2],
				Cholesterol:   values[3],
				Glucose:       values[4],
				Gender:        values[5],
			},
			Label: label,
		})
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrMalformed)
	}
	if err := NewCleaner().Validate(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// ReadCSV loads a dataset file. A missing file yields an error matching fs.ErrNotExist.
func ReadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ds, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}
