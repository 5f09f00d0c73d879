package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/larderhq/larder/internal/classify"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/risk"
	"github.com/larderhq/larder/internal/store"
)

// ItemHandler serves the annotated inventory listing and item CRUD.
type ItemHandler struct {
	itemStore  *store.ItemStore
	classifier *classify.Classifier
	logger     *slog.Logger
}

func NewItemHandler(is *store.ItemStore, c *classify.Classifier, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{itemStore: is, classifier: c, logger: logger}
}

// Inventory returns every item the caller owns, annotated with days until
// expiry, risk tier, and freshness.
func (h *ItemHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	items, err := h.itemStore.ListByUser(userID)
	if err != nil {
		h.logger.Error("list items", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list items")
		return
	}

	writeJSON(w, http.StatusOK, risk.ScoreItems(items, time.Now().UTC()))
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	item, err := h.itemStore.GetByPublicID(userID, r.PathValue("id"))
	if err != nil {
		h.logger.Error("get item", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	writeJSON(w, http.StatusOK, risk.ScoreItem(*item, time.Now().UTC()))
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	f, errMsg := h.parseItemRequest(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	item, err := h.itemStore.Create(userID, f.Name, f.Category, f.Quantity, f.AddedOn, f.Expiry, f.RestockThreshold, f.Barcode)
	if err != nil {
		h.logger.Error("create item", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create item")
		return
	}

	writeJSON(w, http.StatusCreated, risk.ScoreItem(*item, time.Now().UTC()))
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	publicID := r.PathValue("id")

	existing, err := h.itemStore.GetByPublicID(userID, publicID)
	if err != nil {
		h.logger.Error("get item", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load item")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	f, errMsg := h.parseItemRequest(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	item, err := h.itemStore.Update(userID, publicID, f.Name, f.Category, f.Quantity, f.AddedOn, f.Expiry, f.RestockThreshold, f.Barcode)
	if err != nil {
		h.logger.Error("update item", "error", err)
		writeError(w, http.StatusInternalServerError, "could not update item")
		return
	}

	writeJSON(w, http.StatusOK, risk.ScoreItem(*item, time.Now().UTC()))
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	publicID := r.PathValue("id")

	existing, err := h.itemStore.GetByPublicID(userID, publicID)
	if err != nil {
		h.logger.Error("get item", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load item")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := h.itemStore.Delete(userID, publicID); err != nil {
		h.logger.Error("delete item", "error", err)
		writeError(w, http.StatusInternalServerError, "could not delete item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type itemRequest struct {
	Name             string  `json:"name"`
	Category         string  `json:"category"`
	Quantity         *int    `json:"quantity"`
	AddedOn          string  `json:"added_on"`
	Expiry           string  `json:"expiry"`
	RestockThreshold *int    `json:"restock_threshold"`
	Barcode          *string `json:"barcode"`
}

type itemFields struct {
	Name             string
	Category         string
	Quantity         int
	AddedOn          string
	Expiry           string
	RestockThreshold *int
	Barcode          *string
}

// parseItemRequest validates the request body with the same rules as the
// web app's item form: a blank category is classified from the name and a
// blank expiry falls back to the category's shelf life from the added date.
func (h *ItemHandler) parseItemRequest(r *http.Request) (itemFields, string) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return itemFields{}, "invalid request body"
	}

	f := itemFields{
		Name:     strings.TrimSpace(req.Name),
		Category: strings.TrimSpace(req.Category),
		AddedOn:  strings.TrimSpace(req.AddedOn),
		Expiry:   strings.TrimSpace(req.Expiry),
	}

	if f.Name == "" {
		return f, "Name is required"
	}
	if f.AddedOn == "" {
		return f, "Added date is required"
	}
	added, err := time.Parse(model.DateLayout, f.AddedOn)
	if err != nil {
		return f, "Added date must be YYYY-MM-DD"
	}

	if f.Category == "" {
		f.Category = h.classifier.Classify(f.Name)
	}

	if f.Expiry == "" {
		f.Expiry = h.classifier.SuggestExpiry(f.Category, added).Format(model.DateLayout)
	} else if _, err := time.Parse(model.DateLayout, f.Expiry); err != nil {
		return f, "Expiry date must be YYYY-MM-DD"
	}

	// Both dates are YYYY-MM-DD by now, so a string compare orders them.
	if f.Expiry <= f.AddedOn {
		return f, "Expiry must be after the added date."
	}

	f.Quantity = 1
	if req.Quantity != nil {
		if *req.Quantity < 1 {
			return f, "Quantity must be a positive number"
		}
		f.Quantity = *req.Quantity
	}

	if req.RestockThreshold != nil {
		if *req.RestockThreshold < 0 {
			return f, "Restock threshold must be zero or more"
		}
		f.RestockThreshold = req.RestockThreshold
	}

	if req.Barcode != nil {
		if bc := strings.TrimSpace(*req.Barcode); bc != "" {
			f.Barcode = &bc
		}
	}

	return f, ""
}
