package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/contentpilot/contentpilot/internal/agent"
	"github.com/contentpilot/contentpilot/internal/store"
	"github.com/contentpilot/contentpilot/models"
)

type RunsHandler struct {
	Store        *store.Store
	Orch         *agent.Orchestrator
	Rdb          *redis.Client
	HistoryLimit int
}

func (h *RunsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/trigger", h.trigger)
	g.GET("", h.list)
	g.GET("/:id/preview", h.preview)
}

// Trigger
//
//	@Summary		Run the pipeline now
//	@Description	Generates and dispatches an article for the selected topic
//	@Tags			runs
//	@Produce		json
//	@Success		202	{object}	agent.TriggerResult
//	@Failure		409	{object}	HTTPError	"a run is already in flight"
//	@Failure		412	{object}	HTTPError	"no topic selected"
//	@Failure		500	{object}	HTTPError
//	@Failure		502	{object}	agent.TriggerResult
//	@Router			/api/runs/trigger [post]
func (h *RunsHandler) trigger(c echo.Context) error {
	userID := c.Get("user_id").(string)
	ctx := c.Request().Context()

	topic, ok, err := h.Store.SelectedTopic(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusPreconditionFailed, "no topic selected")
	}

	var channel *models.Channel
	if ch, found, err := h.Store.GetChannel(ctx, userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if found {
		channel = &ch
	}

	res, err := h.Orch.Trigger(ctx, userID, topic, channel, false)
	if errors.Is(err, agent.ErrRunInFlight) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if res.Status == models.RunStatusFailed {
		return c.JSON(http.StatusBadGateway, res)
	}
	// errors without a terminal run status (the ledger write itself
	// failed) must not look like an accepted run
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, res)
}

// list returns the most recent runs, newest first. The limit query
// parameter is clamped to the retained history window.
func (h *RunsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	limit := h.HistoryLimit
	if limit <= 0 {
		limit = 30
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		if n < limit {
			limit = n
		}
	}
	runs, err := h.Store.ListRuns(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []models.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

// preview serves the retained article for a preview-only run. The run
// must belong to the caller. Previews expire with the configured TTL,
// after which this returns 404.
func (h *RunsHandler) preview(c echo.Context) error {
	userID := c.Get("user_id").(string)
	runID := c.Param("id")
	ctx := c.Request().Context()

	owned, err := h.Store.RunBelongsTo(ctx, userID, runID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !owned {
		return echo.NewHTTPError(http.StatusNotFound, "no preview for run")
	}

	raw, err := h.Rdb.Get(ctx, agent.PreviewKey(runID)).Result()
	if err == redis.Nil {
		return echo.NewHTTPError(http.StatusNotFound, "no preview for run")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	var article models.Article
	if err := json.Unmarshal([]byte(raw), &article); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, PreviewResponse{
		RunID:        runID,
		Title:        article.Title,
		BodyMarkdown: article.BodyMarkdown,
		Summary:      article.Summary,
	})
}
