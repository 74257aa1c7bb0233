package ml

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

// ClassMetrics holds one row of a classification report.
type ClassMetrics struct {
	Class     int     `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ClassificationReport mirrors the usual per-class precision/recall/F1 table.
type ClassificationReport struct {
	Classes     []ClassMetrics `json:"classes"`
	Accuracy    float64        `json:"accuracy"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
	Confusion   [][]int        `json:"confusion"`
	// ClassNames is used by String when set.
	ClassNames map[int]string `json:"-"`
}

// Accuracy is the share of matching labels, 0 for empty or mismatched input.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ConfusionMatrix counts true labels by row and predictions by column.
func ConfusionMatrix(yTrue, yPred []int, nClasses int) ([][]int, error) {
	if len(yTrue) != len(yPred) {
		return nil, errors.New("labels and predictions size mismatch")
	}
	matrix := make([][]int, nClasses)
	for i := range matrix {
		matrix[i] = make([]int, nClasses)
	}
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= nClasses || p < 0 || p >= nClasses {
			return nil, fmt.Errorf("label out of range at row %d: true=%d pred=%d", i, t, p)
		}
		matrix[t][p]++
	}
	return matrix, nil
}

// NewClassificationReport computes per-class metrics. Undefined ratios (no predictions or no
// support for a class) are reported as 0.
func NewClassificationReport(yTrue, yPred []int, nClasses int) (*ClassificationReport, error) {
	if len(yTrue) == 0 {
		return nil, errors.New("no samples to evaluate")
	}
	confusion, err := ConfusionMatrix(yTrue, yPred, nClasses)
	if err != nil {
		return nil, err
	}

	report := &ClassificationReport{
		Classes:   make([]ClassMetrics, nClasses),
		Accuracy:  Accuracy(yTrue, yPred),
		Confusion: confusion,
	}
	total := len(yTrue)
	for c := 0; c < nClasses; c++ {
		tp := confusion[c][c]
		predicted, support := 0, 0
		for k := 0; k < nClasses; k++ {
			predicted += confusion[k][c]
			support += confusion[c][k]
		}
		m := ClassMetrics{Class: c, Support: support}
		if predicted > 0 {
			m.Precision = float64(tp) / float64(predicted)
		}
		if support > 0 {
			m.Recall = float64(tp) / float64(support)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.Classes[c] = m

		w := float64(support) / float64(total)
		report.MacroAvg.Precision += m.Precision / float64(nClasses)
		report.MacroAvg.Recall += m.Recall / float64(nClasses)
		report.MacroAvg.F1 += m.F1 / float64(nClasses)
		report.WeightedAvg.Precision += m.Precision * w
		report.WeightedAvg.Recall += m.Recall * w
		report.WeightedAvg.F1 += m.F1 * w
	}
	report.MacroAvg.Class = -1
	report.MacroAvg.Support = total
	report.WeightedAvg.Class = -1
	report.WeightedAvg.Support = total
	return report, nil
}

func (r *ClassificationReport) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "\tprecision\trecall\tf1-score\tsupport\t")
	for _, m := range r.Classes {
		name := fmt.Sprint(m.Class)
		if label, ok := r.ClassNames[m.Class]; ok {
			name = label
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", name, m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(w, "accuracy\t\t\t%.2f\t%d\t\n", r.Accuracy, r.MacroAvg.Support)
	fmt.Fprintf(w, "macro avg\t%.2f\t%.2f\t%.2f\t%d\t\n", r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1, r.MacroAvg.Support)
	fmt.Fprintf(w, "weighted avg\t%.2f\t%.2f\t%.2f\t%d\t\n", r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1, r.WeightedAvg.Support)
	w.Flush()
	return sb.String()
}

// Evaluate runs the classifier over every row and returns its predictions.
func Evaluate(model Predictor, features [][]float64) ([]int, error) {
	preds := make([]int, len(features))
	for i, row := range features {
		label, _, err := model.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("predict row %d: %w", i, err)
		}
		preds[i] = label
	}
	return preds, nil
}
