package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/contentpilot/contentpilot/internal/publish"
	"github.com/contentpilot/contentpilot/internal/store"
	"github.com/contentpilot/contentpilot/models"
)

type ChannelHandler struct {
	Store *store.Store
}

func (h *ChannelHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.get)
	g.PUT("", h.put)
}

func (h *ChannelHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	ch, ok, err := h.Store.GetChannel(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no channel configured")
	}
	return c.JSON(http.StatusOK, ch)
}

// put saves the publishing destination. An empty endpoint is valid and
// leaves the account in preview-only mode.
func (h *ChannelHandler) put(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req models.Channel
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	switch req.Type {
	case models.ChannelWordPress, models.ChannelWebhook:
	case "":
		req.Type = models.ChannelWebhook
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown channel type")
	}
	if req.Type == models.ChannelWordPress && req.EndpointURL != "" {
		if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.AppPassword) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "wordpress channel requires username and app_password")
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := h.Store.SaveChannel(c.Request().Context(), userID, req); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, req)
}

// ConnectorsHandler probes candidate destinations without persisting them.
type ConnectorsHandler struct {
	Dispatcher publish.Dispatcher
}

func (h *ConnectorsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/test", h.test)
}

// test verifies reachability and credentials of a destination. The
// probe result is returned with ok=false rather than an error status so
// the caller can surface the reason.
func (h *ConnectorsHandler) test(c echo.Context) error {
	var req ConnectorTestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.EndpointURL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "endpoint_url required")
	}
	ch := models.Channel{
		Type:        models.ChannelType(req.Type),
		EndpointURL: req.EndpointURL,
		Username:    req.Username,
		AppPassword: req.AppPassword,
		Headers:     req.Headers,
	}
	if ch.Type == "" {
		ch.Type = models.ChannelWebhook
	}
	res, err := h.Dispatcher.Verify(c.Request().Context(), ch)
	if err != nil {
		return c.JSON(http.StatusOK, ConnectorTestResponse{OK: false, Status: res.Status, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, ConnectorTestResponse{OK: true, Name: res.Name, Description: res.Description, Status: res.Status})
}
