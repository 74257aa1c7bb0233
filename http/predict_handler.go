package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"medrisk/inference"
	"medrisk/monitoring"
)

const maxFormMemory = 1 << 20

// PredictResponse formats confidence as a percentage and latency in milliseconds, both with
// two decimals.
type PredictResponse struct {
	Prediction  string `json:"prediction"`
	Probability string `json:"probability"`
	LatencyMS   string `json:"latency_ms"`
}

// PredictHandler serves POST /predict.
type PredictHandler struct {
	svc     *inference.Service
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// ServeHTTP accepts either a JSON object or a form body carrying the six features.
func (h *PredictHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := GetStartTime(r.Context())
	if start.IsZero() {
		start = time.Now()
	}

	rec, apiErr := h.decode(r)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}

	result, err := h.svc.Predict(rec)
	if err != nil {
		h.logger.Error("prediction failed", zap.Error(err))
		render.Render(w, r, ErrInternal)
		return
	}

	latency := time.Since(start)
	h.metrics.ObservePrediction(result.Label, latency)
	render.JSON(w, r, PredictResponse{
		Prediction:  result.Label,
		Probability: fmt.Sprintf("%.2f%%", result.Confidence*100),
		LatencyMS:   fmt.Sprintf("%.2f ms", float64(latency)/float64(time.Millisecond)),
	})
}

func (h *PredictHandler) decode(r *http.Request) (inference.FeatureRecord, *APIError) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		rec inference.FeatureRecord
		err error
	)
	switch {
	case isJSON(mediaType):
		values, derr := decodeJSONObject(r.Body)
		if derr != nil {
			return rec, bodyError(derr)
		}
		rec, err = inference.ParseFeatures(values)
	case mediaType == "multipart/form-data":
		if perr := r.ParseMultipartForm(maxFormMemory); perr != nil {
			return rec, bodyError(perr)
		}
		rec, err = inference.ParseForm(r.PostForm)
	default:
		if perr := r.ParseForm(); perr != nil {
			return rec, bodyError(perr)
		}
		rec, err = inference.ParseForm(r.PostForm)
	}
	if err != nil {
		var ve *inference.ValidationError
		if errors.As(err, &ve) {
			h.metrics.ObserveValidationError(ve.Field)
		}
		return rec, NewAPIError(http.StatusBadRequest, err.Error())
	}
	return rec, nil
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" ||
		(strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json"))
}

// decodeJSONObject reads exactly one JSON object; anything but whitespace after it is an error.
func decodeJSONObject(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("trailing data after JSON object")
		}
		return nil, err
	}
	return values, nil
}

func bodyError(err error) *APIError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ErrBodyTooLarge
	}
	return ErrInvalidBody
}
