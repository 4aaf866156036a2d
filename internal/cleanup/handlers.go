package cleanup

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for cleanup operations.
type Handlers struct {
	sweeper *Sweeper
	gate    *Gate
}

// NewHandlers creates a new cleanup handlers instance.
func NewHandlers(sweeper *Sweeper, gate *Gate) *Handlers {
	return &Handlers{sweeper: sweeper, gate: gate}
}

// RegisterRoutes registers cleanup routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/run", h.Run)
	g.GET("/gate", h.GateStatus)
}

// Run triggers a sweep immediately and returns its result.
// POST /api/v1/cleanup/run
func (h *Handlers) Run(c echo.Context) error {
	result, err := h.sweeper.Run(c.Request().Context())
	if errors.Is(err, ErrSweepRunning) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// GateStatus reports the current storage gate decision.
// GET /api/v1/cleanup/gate
func (h *Handlers) GateStatus(c echo.Context) error {
	status, err := h.gate.Check(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}
