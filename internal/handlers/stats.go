package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/stowbot/internal/files"
	"github.com/memohai/stowbot/internal/pipeline"
)

type (
	PipelineStats interface {
		Stats() pipeline.Stats
	}
	ArtifactTotals interface {
		Totals(ctx context.Context) (files.Totals, error)
	}
	IdentityCounter interface {
		Count(ctx context.Context) (int64, error)
	}
)

// StatsResponse is the runtime snapshot served at /stats.
type StatsResponse struct {
	Pipeline   pipeline.Stats `json:"pipeline"`
	Artifacts  files.Totals   `json:"artifacts"`
	Identities int64          `json:"identities"`
}

type StatsHandler struct {
	pipeline   PipelineStats
	artifacts  ArtifactTotals
	identities IdentityCounter
	logger     *slog.Logger
}

func NewStatsHandler(log *slog.Logger, p PipelineStats, artifacts ArtifactTotals, identities IdentityCounter) *StatsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StatsHandler{
		pipeline:   p,
		artifacts:  artifacts,
		identities: identities,
		logger:     log.With(slog.String("handler", "stats")),
	}
}

func (h *StatsHandler) Register(e *echo.Echo) {
	e.GET("/stats", h.Get)
}

// Get godoc
// @Summary Runtime statistics
// @Tags stats
// @Success 200 {object} StatsResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats [get]
func (h *StatsHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	totals, err := h.artifacts.Totals(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	count, err := h.identities.Count(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, StatsResponse{
		Pipeline:   h.pipeline.Stats(),
		Artifacts:  totals,
		Identities: count,
	})
}
