package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"medrisk/db"
)

const defaultRunsLimit = 20

// RunLog is the read side of the training run log.
type RunLog interface {
	ListRuns(ctx context.Context, limit int) ([]db.TrainingRun, error)
	GridResults(ctx context.Context, runID string) ([]db.GridResult, error)
}

// RunsResponse lists recorded training runs, newest first.
type RunsResponse struct {
	Runs []db.TrainingRun `json:"runs"`
}

// GridResponse holds every grid configuration scored in one run.
type GridResponse struct {
	RunID   string          `json:"run_id"`
	Results []db.GridResult `json:"results"`
}

func registerRunRoutes(r chi.Router, runs RunLog, logger *zap.Logger) {
	r.Route("/api/training/runs", func(r chi.Router) {
		r.Get("/", handleListRuns(runs, logger))
		r.Get("/{runID}/grid", handleGridResults(runs, logger))
	})
}

func handleListRuns(runs RunLog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				render.Render(w, r, NewAPIError(http.StatusBadRequest, "limit must be a non-negative integer"))
				return
			}
			limit = n
		}
		list, err := runs.ListRuns(r.Context(), limit)
		if err != nil {
			logger.Error("list training runs", zap.Error(err))
			render.Render(w, r, ErrInternal)
			return
		}
		render.JSON(w, r, RunsResponse{Runs: list})
	}
}

func handleGridResults(runs RunLog, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "runID")
		results, err := runs.GridResults(r.Context(), runID)
		if err != nil {
			logger.Error("load grid results", zap.String("run_id", runID), zap.Error(err))
			render.Render(w, r, ErrInternal)
			return
		}
		if len(results) == 0 {
			render.Render(w, r, NewAPIError(http.StatusNotFound, "run not found"))
			return
		}
		render.JSON(w, r, GridResponse{RunID: runID, Results: results})
	}
}
