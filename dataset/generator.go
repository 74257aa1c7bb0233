package dataset

import "math/rand"

const (
	DefaultSeed    = 42
	DefaultSamples = 5000

	diseaseThreshold = 1.5
	heartThreshold   = 3.0
	noiseStd         = 1.5
)

// Generator draws synthetic patients from a single seeded source. Per record the draw order
// is age, bmi, bp, cholesterol, glucose, gender, noise; changing it changes every dataset.
type Generator struct {
	Seed    int64
	Samples int
}

// NewGenerator returns a generator for samples patients drawn from seed.
func NewGenerator(seed int64, samples int) *Generator {
	return &Generator{Seed: seed, Samples: samples}
}

// Generate draws every patient from a fresh source, so equal seeds give equal datasets.
func (g *Generator) Generate() *Dataset {
	rng := rand.New(rand.NewSource(g.Seed))
	ds := &Dataset{Samples: make([]Sample, 0, g.Samples)}
	for i := 0; i < g.Samples; i++ {
		rec := Record{
			Age:           float64(20 + rng.Intn(60)),
			BMI:           18.5 + rng.Float64()*(40.0-18.5),
			BloodPressure: float64(90 + rng.Intn(90)),
			Cholesterol:   float64(150 + rng.Intn(150)),
			Glucose:       float64(70 + rng.Intn(130)),
			Gender:        float64(rng.Intn(2)),
		}
		noise := rng.NormFloat64() * noiseStd
		ds.Samples = append(ds.Samples, Sample{Record: rec, Label: Label(RiskScore(rec) + noise)})
	}
	return ds
}

// RiskScore is the noiseless weighted risk of a record. Gender carries no weight.
func RiskScore(r Record) float64 {
	return (r.Age-50)/30*2 +
		(r.BMI-25)/10*1.5 +
		(r.BloodPressure-120)/20*1.5 +
		(r.Cholesterol-200)/40*1.0 +
		(r.Glucose-100)/30*2.0
}

// Label thresholds a noisy risk score: above 3.0 is heart disease risk, above 1.5 diabetes
// risk, anything else healthy.
func Label(score float64) int {
	switch {
	case score > heartThreshold:
		return 2
	case score > diseaseThreshold:
		return 1
	default:
		return 0
	}
}
