package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/stowbot/internal/users"
)

// IdentityService is the part of users.Service the console uses.
type IdentityService interface {
	List(ctx context.Context, f users.ListFilter) ([]users.Identity, error)
	Get(ctx context.Context, key string) (users.Identity, error)
	SetPrivileged(ctx context.Context, key string, privileged bool) (users.Identity, error)
	ResetQuota(ctx context.Context, key string) (users.Identity, error)
}

type IdentitiesHandler struct {
	service IdentityService
	logger  *slog.Logger
}

// ListIdentitiesResponse wraps a page of identities.
type ListIdentitiesResponse struct {
	Items []users.Identity `json:"items"`
}

func NewIdentitiesHandler(log *slog.Logger, service IdentityService) *IdentitiesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &IdentitiesHandler{
		service: service,
		logger:  log.With(slog.String("handler", "identities")),
	}
}

func (h *IdentitiesHandler) Register(e *echo.Echo) {
	g := e.Group("/identities")
	g.GET("", h.List)
	g.GET("/:key", h.Get)
	g.PUT("/:key/privilege", h.Grant)
	g.DELETE("/:key/privilege", h.Revoke)
	g.POST("/:key/quota/reset", h.ResetQuota)
}

// List godoc
// @Summary List identities
// @Tags identities
// @Param pending query bool false "Only identities with a pending premium request"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} ListIdentitiesResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /identities [get]
func (h *IdentitiesHandler) List(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	items, err := h.service.List(c.Request().Context(), users.ListFilter{
		PendingPrivilegeOnly: c.QueryParam("pending") == "true",
		Limit:                limit,
		Offset:               offset,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ListIdentitiesResponse{Items: items})
}

// Get godoc
// @Summary Get identity by chat user key
// @Tags identities
// @Param key path string true "Chat user key"
// @Success 200 {object} users.Identity
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /identities/{key} [get]
func (h *IdentitiesHandler) Get(c echo.Context) error {
	key, err := requireParam(c, "key")
	if err != nil {
		return err
	}
	identity, err := h.service.Get(c.Request().Context(), key)
	if err != nil {
		return identityError(err)
	}
	return c.JSON(http.StatusOK, identity)
}

// Grant godoc
// @Summary Grant premium
// @Tags identities
// @Param key path string true "Chat user key"
// @Success 200 {object} users.Identity
// @Failure 404 {object} ErrorResponse
// @Router /identities/{key}/privilege [put]
func (h *IdentitiesHandler) Grant(c echo.Context) error {
	return h.setPrivileged(c, true)
}

// Revoke godoc
// @Summary Revoke premium
// @Tags identities
// @Param key path string true "Chat user key"
// @Success 200 {object} users.Identity
// @Failure 404 {object} ErrorResponse
// @Router /identities/{key}/privilege [delete]
func (h *IdentitiesHandler) Revoke(c echo.Context) error {
	return h.setPrivileged(c, false)
}

func (h *IdentitiesHandler) setPrivileged(c echo.Context, privileged bool) error {
	key, err := requireParam(c, "key")
	if err != nil {
		return err
	}
	identity, err := h.service.SetPrivileged(c.Request().Context(), key, privileged)
	if err != nil {
		return identityError(err)
	}
	return c.JSON(http.StatusOK, identity)
}

// ResetQuota godoc
// @Summary Refill an identity's remaining quota
// @Tags identities
// @Param key path string true "Chat user key"
// @Success 200 {object} users.Identity
// @Failure 404 {object} ErrorResponse
// @Router /identities/{key}/quota/reset [post]
func (h *IdentitiesHandler) ResetQuota(c echo.Context) error {
	key, err := requireParam(c, "key")
	if err != nil {
		return err
	}
	identity, err := h.service.ResetQuota(c.Request().Context(), key)
	if err != nil {
		return identityError(err)
	}
	return c.JSON(http.StatusOK, identity)
}

func identityError(err error) error {
	if errors.Is(err, users.ErrIdentityNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "identity not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
