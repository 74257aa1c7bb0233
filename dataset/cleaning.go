package dataset

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Rule checks one sample and reports why it is unusable.
type Rule interface {
	Check(s Sample) error
	Name() string
}

// Issue is a rule violation at a 1-based data row.
type Issue struct {
	Row     int    `json:"row"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Cleaner runs every rule over a dataset. It rejects rather than corrects: a malformed
// training file is a fatal error.
type Cleaner struct {
	rules []Rule
}

// NewCleaner applies rules, or DefaultRules when none are given.
func NewCleaner(rules ...Rule) *Cleaner {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Cleaner{rules: rules}
}

// DefaultRules checks finite features, the label range and the gender code.
func DefaultRules() []Rule {
	return []Rule{finiteRule{}, labelRule{}, genderRule{}}
}

// Inspect returns every rule violation in row order.
func (c *Cleaner) Inspect(d *Dataset) []Issue {
	var issues []Issue
	for i, s := range d.Samples {
		for _, rule := range c.rules {
			if err := rule.Check(s); err != nil {
				issues = append(issues, Issue{Row: i + 1, Rule: rule.Name(), Message: err.Error()})
			}
		}
	}
	return issues
}

// Validate returns an error summarising the first few issues, or nil.
func (c *Cleaner) Validate(d *Dataset) error {
	issues := c.Inspect(d)
	if len(issues) == 0 {
		return nil
	}
	const shown = 3
	parts := make([]string, 0, shown)
	for i, issue := range issues {
		if i == shown {
			break
		}
		parts = append(parts, fmt.Sprintf("row %d %s: %s", issue.Row, issue.Rule, issue.Message))
	}
	return fmt.Errorf("%w: %d issue(s): %s", ErrMalformed, len(issues), strings.Join(parts, "; "))
}

// ErrMalformed wraps every dataset parsing or validation failure.
var ErrMalformed = errors.New("malformed dataset")

type finiteRule struct{}

func (finiteRule) Name() string { return "finite_values" }

func (finiteRule) Check(s Sample) error {
	for i, v := range s.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite", FeatureNames[i])
		}
	}
	return nil
}

type labelRule struct{}

func (labelRule) Name() string { return "label_range" }

func (labelRule) Check(s Sample) error {
	if s.Label < 0 || s.Label >= NumClasses {
		return fmt.Errorf("label %d outside [0,%d)", s.Label, NumClasses)
	}
	return nil
}

type genderRule struct{}

func (genderRule) Name() string { return "gender_code" }

func (genderRule) Check(s Sample) error {
	if s.Gender != 0 && s.Gender != 1 {
		return fmt.Errorf("gender %v is not 0 or 1", s.Gender)
	}
	return nil
}
