package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/contentpilot/contentpilot/internal/schedule"
	"github.com/contentpilot/contentpilot/internal/store"
	"github.com/contentpilot/contentpilot/models"
	"github.com/contentpilot/contentpilot/provider"
)

type TopicsHandler struct {
	Store *store.Store
	LLM   provider.Provider
}

func (h *TopicsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.POST("/generate", h.generate)
	g.POST("/:id/select", h.selectTopic)
}

func (h *TopicsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	items, err := h.Store.ListTopics(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []models.Topic{}
	}
	return c.JSON(http.StatusOK, items)
}

// generate asks the LLM for a fresh topic batch, replaces the stored
// queue and selects the first suggestion. A schedule row is seeded on
// first use so automation can pick the account up.
func (h *TopicsHandler) generate(c echo.Context) error {
	userID := c.Get("user_id").(string)
	ctx := c.Request().Context()

	profile, ok, err := h.Store.GetProfile(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusPreconditionFailed, "business profile not configured")
	}

	topics, err := h.LLM.GenerateTopics(ctx, profile)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if len(topics) == 0 {
		return echo.NewHTTPError(http.StatusBadGateway, "provider returned no topics")
	}
	if err := h.Store.ReplaceTopics(ctx, userID, topics); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.ensureSchedule(ctx, userID, topics[0].ID); err != nil {
		log.Printf("seed schedule for %s: %v", userID, err)
	}
	return c.JSON(http.StatusOK, topics)
}

func (h *TopicsHandler) selectTopic(c echo.Context) error {
	userID := c.Get("user_id").(string)
	topicID := c.Param("id")
	ctx := c.Request().Context()

	if _, err := h.Store.GetTopicByID(ctx, userID, topicID); err != nil {
		if errors.Is(err, models.ErrTopicNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "topic not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Store.SetSelectedTopic(ctx, userID, topicID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, IDResponse{ID: topicID})
}

// ensureSchedule creates the default weekly policy for accounts that
// have never scheduled anything, then points the selection at topicID.
// An existing next_run_at is left untouched.
func (h *TopicsHandler) ensureSchedule(ctx context.Context, userID, topicID string) error {
	sc, ok, err := h.Store.GetSchedule(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		sc = models.Schedule{Cadence: models.CadenceWeekly, PublishHour: 9, Timezone: "UTC"}
		if err := h.Store.SaveSchedule(ctx, userID, sc); err != nil {
			return err
		}
	}
	if err := h.Store.SetSelectedTopic(ctx, userID, topicID); err != nil {
		return err
	}
	if sc.NextRunAt == nil {
		next, err := schedule.NextRun(schedule.Policy{Cadence: sc.Cadence, PublishHour: sc.PublishHour, Timezone: sc.Timezone}, time.Now())
		if err != nil {
			return err
		}
		return h.Store.SetNextRun(ctx, userID, next)
	}
	return nil
}
