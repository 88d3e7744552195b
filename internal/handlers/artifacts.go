package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/stowbot/internal/files"
)

// ArtifactService is the part of files.Service the console uses.
type ArtifactService interface {
	List(ctx context.Context, identityID string, limit, offset int32) ([]files.Artifact, error)
	Get(ctx context.Context, id string) (files.Artifact, error)
	Delete(ctx context.Context, id string) error
	AccessURL(ctx context.Context, artifact files.Artifact) (string, error)
}

type ArtifactsHandler struct {
	service ArtifactService
	logger  *slog.Logger
}

// ListArtifactsResponse wraps a page of artifacts.
type ListArtifactsResponse struct {
	Items []files.Artifact `json:"items"`
}

// ArtifactURLResponse carries a fresh download link.
type ArtifactURLResponse struct {
	URL string `json:"url"`
}

func NewArtifactsHandler(log *slog.Logger, service ArtifactService) *ArtifactsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ArtifactsHandler{
		service: service,
		logger:  log.With(slog.String("handler", "artifacts")),
	}
}

func (h *ArtifactsHandler) Register(e *echo.Echo) {
	g := e.Group("/artifacts")
	g.GET("", h.List)
	g.GET("/:id/url", h.URL)
	g.DELETE("/:id", h.Delete)
}

// List godoc
// @Summary List stored artifacts
// @Tags artifacts
// @Param identity_id query string false "Owner identity id"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} ListArtifactsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /artifacts [get]
func (h *ArtifactsHandler) List(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	items, err := h.service.List(c.Request().Context(), strings.TrimSpace(c.QueryParam("identity_id")), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ListArtifactsResponse{Items: items})
}

// URL godoc
// @Summary Issue a fresh download link
// @Tags artifacts
// @Param id path string true "Artifact id"
// @Success 200 {object} ArtifactURLResponse
// @Failure 404 {object} ErrorResponse
// @Router /artifacts/{id}/url [get]
func (h *ArtifactsHandler) URL(c echo.Context) error {
	id, err := requireParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	artifact, err := h.service.Get(ctx, id)
	if err != nil {
		return artifactError(err)
	}
	url, err := h.service.AccessURL(ctx, artifact)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ArtifactURLResponse{URL: url})
}

// Delete godoc
// @Summary Delete an artifact and its stored object
// @Tags artifacts
// @Param id path string true "Artifact id"
// @Success 204 "No Content"
// @Failure 404 {object} ErrorResponse
// @Router /artifacts/{id} [delete]
func (h *ArtifactsHandler) Delete(c echo.Context) error {
	id, err := requireParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return artifactError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func artifactError(err error) error {
	if errors.Is(err, files.ErrArtifactNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "artifact not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
