package dashboard

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/platform/auth"
)

type Handler struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewHandler(repo Repository, logger zerolog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard", auth.RequireRole(auth.RoleAdmin))
	g.GET("/stats", h.GetStats)
}

func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.repo.Stats(c.Request().Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("dashboard stats failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load dashboard stats").SetInternal(err)
	}
	stats.GeneratedAt = h.now().UTC()
	return c.JSON(http.StatusOK, stats)
}
