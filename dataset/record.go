package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// FeatureNames lists the model inputs in vector order.
var FeatureNames = []string{"Age", "BMI", "BloodPressure", "Cholesterol", "Glucose", "Gender"}

// LabelColumn is the CSV header of the label.
const LabelColumn = "Disease"

// NumClasses is the size of the label set.
const NumClasses = 3

// ClassNames maps labels to their display names.
var ClassNames = map[int]string{
	0: "Healthy",
	1: "Diabetes Risk",
	2: "Heart Disease Risk",
}

// Record holds one patient's features. Integer-valued measurements are kept as float64 so the
// record maps straight onto a feature vector.
type Record struct {
	Age           float64 `json:"age"`
	BMI           float64 `json:"bmi"`
	BloodPressure float64 `json:"bp"`
	Cholesterol   float64 `json:"cholesterol"`
	Glucose       float64 `json:"glucose"`
	Gender        float64 `json:"gender"`
}

// Vector returns the features in FeatureNames order.
func (r Record) Vector() []float64 {
	return []float64{r.Age, r.BMI, r.BloodPressure, r.Cholesterol, r.Glucose, r.Gender}
}

// Sample is a labeled record.
type Sample struct {
	Record
	Label int `json:"label"`
}

// Dataset is an ordered list of labeled samples. Loading never reorders or deduplicates it.
type Dataset struct {
	Samples []Sample
}

func (d *Dataset) Len() int {
	return len(d.Samples)
}

func (d *Dataset) Features() [][]float64 {
	out := make([][]float64, len(d.Samples))
	for i, s := range d.Samples {
		out[i] = s.Vector()
	}
	return out
}

func (d *Dataset) Labels() []int {
	out := make([]int, len(d.Samples))
	for i, s := range d.Samples {
		out[i] = s.Label
	}
	return out
}

// ClassCounts returns the number of samples per label.
func (d *Dataset) ClassCounts() map[int]int {
	counts := make(map[int]int)
	for _, s := range d.Samples {
		counts[s.Label]++
	}
	return counts
}

// Distribution formats the class counts as "0=3400 1=900 2=700".
func (d *Dataset) Distribution() string {
	counts := d.ClassCounts()
	labels := make([]int, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	out := ""
	for i, label := range labels {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%d=%d", label, counts[label])
	}
	return out
}

// Split shuffles row positions with seed and holds out ceil(testRatio*n) of them for testing.
// The same seed always yields the same split.
func (d *Dataset) Split(testRatio float64, seed int64) (train, test *Dataset, err error) {
	n := len(d.Samples)
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio must be in (0,1), got %v", testRatio)
	}
	nTest := int(math.Ceil(testRatio * float64(n)))
	if nTest == 0 || nTest >= n {
		return nil, nil, fmt.Errorf("cannot split %d samples with test ratio %v", n, testRatio)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test = &Dataset{Samples: make([]Sample, 0, nTest)}
	train = &Dataset{Samples: make([]Sample, 0, n-nTest)}
	for i, p := range perm {
		if i < nTest {
			test.Samples = append(test.Samples, d.Samples[p])
		} else {
			train.Samples = append(train.Samples, d.Samples[p])
		}
	}
	return train, test, nil
}
