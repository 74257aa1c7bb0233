package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"medrisk/inference"
	"medrisk/monitoring"
)

// RegisterRoutes mounts the prediction and health endpoints. The run log routes are only
// mounted when runs is non-nil.
func RegisterRoutes(r chi.Router, svc *inference.Service, runs RunLog, metrics *monitoring.Metrics, logger *zap.Logger) {
	predict := &PredictHandler{svc: svc, metrics: metrics, logger: logger}
	r.Post("/predict", predict.ServeHTTP)
	r.Get("/api/health", handleHealth(svc))
	if runs != nil {
		registerRunRoutes(r, runs, logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, ErrMethodNotAllowed)
	})
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Trees       int    `json:"trees"`
}

func handleHealth(svc *inference.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, HealthResponse{
			Status:      "ok",
			ModelLoaded: svc != nil,
			Trees:       svc.Trees(),
		})
	}
}
