package inference

import (
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() map[string]any {
	return map[string]any{
		"age":         45,
		"bmi":         27.5,
		"bp":          130,
		"cholesterol": 210,
		"glucose":     110,
		"gender":      1,
	}
}

func TestParseFeaturesValid(t *testing.T) {
	rec, err := ParseFeatures(validInput())
	require.NoError(t, err)
	assert.Equal(t, FeatureRecord{Age: 45, BMI: 27.5, BP: 130, Cholesterol: 210, Glucose: 110, Gender: 1}, rec)
	assert.Equal(t, []float64{45, 27.5, 130, 210, 110, 1}, rec.Vector())
}

func TestParseFeaturesJSONNumbers(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"age":45,"bmi":"27.5","bp":130.0,"cholesterol":210,"glucose":110,"gender":1.9}`))
	dec.UseNumber()
	var values map[string]any
	require.NoError(t, dec.Decode(&values))

	rec, err := ParseFeatures(values)
	require.NoError(t, err)
	assert.Equal(t, 27.5, rec.BMI)
	assert.Equal(t, 1, rec.Gender, "json numbers truncate toward zero")
}

func TestParseFeaturesMissingField(t *testing.T) {
	for _, name := range FieldNames {
		t.Run(name, func(t *testing.T) {
			values := validInput()
			delete(values, name)
			_, err := ParseFeatures(values)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, name, ve.Field)
			assert.Contains(t, ve.Error(), name)
		})
	}
}

func TestParseFeaturesRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"non numeric string", "age", "forty"},
		{"boolean", "bmi", true},
		{"null", "bp", nil},
		{"empty string", "cholesterol", "  "},
		{"not finite", "glucose", math.Inf(1)},
		{"nan string", "glucose", "NaN"},
		{"fractional gender string", "gender", "1.5"},
		{"gender object", "gender", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := validInput()
			values[tt.field] = tt.value
			_, err := ParseFeatures(values)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestParseFeaturesEveryFieldNonNumeric(t *testing.T) {
	values := map[string]any{}
	for _, name := range FieldNames {
		values[name] = "abc"
	}
	_, err := ParseFeatures(values)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "age", ve.Field)
}

func TestParseForm(t *testing.T) {
	form := url.Values{}
	form.Set("age", "45")
	form.Set("bmi", "27.5")
	form.Set("bp", "130")
	form.Set("cholesterol", "210")
	form.Set("glucose", "110")
	form.Set("gender", "0")

	rec, err := ParseForm(form)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Gender)
	assert.Equal(t, 110.0, rec.Glucose)

	form.Del("gender")
	_, err = ParseForm(form)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "gender", ve.Field)
}
