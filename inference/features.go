package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldNames are the request keys in model vector order.
var FieldNames = []string{"age", "bmi", "bp", "cholesterol", "glucose", "gender"}

// FeatureRecord is a validated prediction input.
type FeatureRecord struct {
	Age         float64 `json:"age"`
	BMI         float64 `json:"bmi"`
	BP          float64 `json:"bp"`
	Cholesterol float64 `json:"cholesterol"`
	Glucose     float64 `json:"glucose"`
	Gender      int     `json:"gender"`
}

// Vector returns the record in the order the model was trained on.
func (r FeatureRecord) Vector() []float64 {
	return []float64{r.Age, r.BMI, r.BP, r.Cholesterol, r.Glucose, float64(r.Gender)}
}

// ValidationError names the first field that could not be turned into a feature.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Message)
}

// IsValidationError reports whether err, or anything it wraps, is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// rawFeatures holds coerced values before the presence check. A nil pointer means the field
// was absent, null, or an empty string.
type rawFeatures struct {
	Age         *float64 `json:"age" validate:"required"`
	BMI         *float64 `json:"bmi" validate:"required"`
	BP          *float64 `json:"bp" validate:"required"`
	Cholesterol *float64 `json:"cholesterol" validate:"required"`
	Glucose     *float64 `json:"glucose" validate:"required"`
	Gender      *int     `json:"gender" validate:"required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ParseFeatures is the single constructor for FeatureRecord. It accepts decoded JSON
// (json.Number or float64), Go integers, and numeric strings. Values of the wrong type are
// reported before missing ones.
func ParseFeatures(values map[string]any) (FeatureRecord, error) {
	var raw rawFeatures
	floats := []**float64{&raw.Age, &raw.BMI, &raw.BP, &raw.Cholesterol, &raw.Glucose}
	for i, name := range FieldNames[:5] {
		v, err := coerceFloat(values[name])
		if err != nil {
			return FeatureRecord{}, &ValidationError{Field: name, Message: err.Error()}
		}
		*floats[i] = v
	}
	gender, err := coerceInt(values["gender"])
	if err != nil {
		return FeatureRecord{}, &ValidationError{Field: "gender", Message: err.Error()}
	}
	raw.Gender = gender

	if err := getValidator().Struct(raw); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return FeatureRecord{}, &ValidationError{Field: firstInOrder(fieldErrs), Message: "is required"}
		}
		return FeatureRecord{}, err
	}
	return FeatureRecord{
		Age:         *raw.Age,
		BMI:         *raw.BMI,
		BP:          *raw.BP,
		Cholesterol: *raw.Cholesterol,
		Glucose:     *raw.Glucose,
		Gender:      *raw.Gender,
	}, nil
}

// ParseForm reads the six fields from a form-encoded body.
func ParseForm(form url.Values) (FeatureRecord, error) {
	values := make(map[string]any, len(FieldNames))
	for _, name := range FieldNames {
		if _, ok := form[name]; ok {
			values[name] = form.Get(name)
		}
	}
	return ParseFeatures(values)
}

func firstInOrder(errs validator.ValidationErrors) string {
	failed := make(map[string]bool, len(errs))
	for _, fe := range errs {
		failed[fe.Field()] = true
	}
	for _, name := range FieldNames {
		if failed[name] {
			return name
		}
	}
	return errs[0].Field()
}

func coerceFloat(v any) (*float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		parsed, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return nil, errors.New("must be a number")
		}
		f = parsed
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.New("must be a number")
		}
		f = parsed
	default:
		return nil, errors.New("must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.New("must be a finite number")
	}
	return &f, nil
}

// coerceInt truncates JSON numbers toward zero; strings must be integers.
func coerceInt(v any) (*int, error) {
	var n int
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.New("must be an integer")
		}
		n = parsed
	case int:
		n = x
	case int64:
		n = int(x)
	default:
		f, err := coerceFloat(v)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, nil
		}
		if math.Abs(*f) > math.MaxInt32 {
			return nil, errors.New("out of range")
		}
		n = int(math.Trunc(*f))
	}
	return &n, nil
}
