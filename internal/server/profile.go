package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/contentpilot/contentpilot/internal/store"
	"github.com/contentpilot/contentpilot/models"
)

type ProfileHandler struct {
	Store *store.Store
}

func (h *ProfileHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.get)
	g.PUT("", h.put)
}

// get returns the stored business profile, or 404 when none is saved yet.
func (h *ProfileHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	p, ok, err := h.Store.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "profile not configured")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) put(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req models.BusinessProfile
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	if err := h.Store.SaveProfile(c.Request().Context(), userID, req); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, req)
}
