package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/muluken16/E-liberary/internal/activity"
)

// ActivityHandler exposes the recent-activity feed.
type ActivityHandler struct {
	Store activity.Store
	Log   zerolog.Logger
}

// NewActivityHandler constructs an ActivityHandler.
func NewActivityHandler(s activity.Store, log zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{Store: s, Log: log}
}

// Recent serves GET /api/recent-activities?limit=.  The store caps limit at
// activity.MaxEntries.
func (h *ActivityHandler) Recent(c echo.Context) error {
	limit := queryInt(c, "limit", 10)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()
	entries, err := h.Store.Recent(ctx, limit)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": entries})
}
