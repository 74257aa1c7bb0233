package dataset

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFormat(t *testing.T) {
	ds := &Dataset{Samples: []Sample{
		{Record: Record{Age: 45, BMI: 27.5, BloodPressure: 130, Cholesterol: 210, Glucose: 110, Gender: 1}, Label: 1},
	}}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ds))
	assert.Equal(t, "Age,BMI,BloodPressure,Cholesterol,Glucose,Gender,Disease\n45,27.5,130,210,110,1,1\n", buf.String())
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "synthetic_data.csv")
	ds := NewGenerator(3, 200).Generate()
	require.NoError(t, WriteCSV(path, ds))

	loaded, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, ds.Samples, loaded.Samples)
}

func TestDecodeColumnsByName(t *testing.T) {
	in := "Disease,Gender,Glucose,Cholesterol,BloodPressure,BMI,Age\n2,0,150,250,160,33.1,70\n"
	ds, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, Sample{
		Record: Record{Age: 70, BMI: 33.1, BloodPressure: 160, Cholesterol: 250, Glucose: 150, Gender: 0},
		Label:  2,
	}, ds.Samples[0])
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"missing column": "Age,BMI,BloodPressure,Cholesterol,Glucose,Disease\n45,27.5,130,210,110,1\n",
		"non numeric":    "Age,BMI,BloodPressure,Cholesterol,Glucose,Gender,Disease\nold,27.5,130,210,110,1,1\n",
		"label range":    "Age,BMI,BloodPressure,Cholesterol,Glucose,Gender,Disease\n45,27.5,130,210,110,1,7\n",
		"gender code":    "Age,BMI,BloodPressure,Cholesterol,Glucose,Gender,Disease\n45,27.5,130,210,110,3,1\n",
		"not finite":     "Age,BMI,BloodPressure,Cholesterol,Glucose,Gender,Disease\n45,NaN,130,210,110,1,1\n",
		"no rows":        "Age,BMI,BloodPressure,Cholesterol,Glucose,Gender,Disease\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(in))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.True(t, os.IsNotExist(err))
}
