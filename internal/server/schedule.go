package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/contentpilot/contentpilot/internal/schedule"
	"github.com/contentpilot/contentpilot/internal/store"
	"github.com/contentpilot/contentpilot/models"
)

type ScheduleHandler struct {
	Store *store.Store
}

func (h *ScheduleHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.get)
	g.PUT("", h.put)
}

func (h *ScheduleHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	sc, ok, err := h.Store.GetSchedule(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no schedule configured")
	}
	return c.JSON(http.StatusOK, sc)
}

// put updates the automation policy. Changing the cadence or hour
// recomputes next_run_at from now; untouched policies keep their slot.
func (h *ScheduleHandler) put(c echo.Context) error {
	userID := c.Get("user_id").(string)
	ctx := c.Request().Context()

	var req UpdateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sc, ok, err := h.Store.GetSchedule(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		sc = models.Schedule{Cadence: models.CadenceWeekly, PublishHour: 9, Timezone: "UTC"}
	}

	changed := false
	if req.Cadence != nil && models.Cadence(*req.Cadence) != sc.Cadence {
		sc.Cadence = models.Cadence(*req.Cadence)
		changed = true
	}
	if req.PublishHour != nil && *req.PublishHour != sc.PublishHour {
		sc.PublishHour = *req.PublishHour
		changed = true
	}
	if req.Timezone != nil && *req.Timezone != sc.Timezone {
		sc.Timezone = *req.Timezone
		changed = true
	}

	if changed || sc.NextRunAt == nil {
		next, err := schedule.NextRun(schedule.Policy{Cadence: sc.Cadence, PublishHour: sc.PublishHour, Timezone: sc.Timezone}, time.Now())
		if err != nil {
			if errors.Is(err, schedule.ErrInvalidPolicy) {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		sc.NextRunAt = &next
	}

	if err := h.Store.SaveSchedule(ctx, userID, sc); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sc)
}
