package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/larderhq/larder/internal/insight"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/risk"
	"github.com/larderhq/larder/internal/store"
)

// InsightHandler serves the aggregate views over a user's inventory:
// recommendations, the category analysis, and restock alerts.
type InsightHandler struct {
	itemStore *store.ItemStore
	logger    *slog.Logger
}

func NewInsightHandler(is *store.ItemStore, logger *slog.Logger) *InsightHandler {
	return &InsightHandler{itemStore: is, logger: logger}
}

func (h *InsightHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	items, ok := h.listItems(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, insight.Recommendations(risk.ScoreItems(items, now), now))
}

func (h *InsightHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	items, ok := h.listItems(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, insight.Analyze(risk.ScoreItems(items, time.Now().UTC())))
}

func (h *InsightHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	items, ok := h.listItems(w, r)
	if !ok {
		return
	}

	alerts := insight.RestockAlerts(items)
	if alerts == nil {
		alerts = []string{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *InsightHandler) listItems(w http.ResponseWriter, r *http.Request) ([]model.Item, bool) {
	items, err := h.itemStore.ListByUser(UserIDFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list items", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list items")
		return nil, false
	}
	return items, true
}
