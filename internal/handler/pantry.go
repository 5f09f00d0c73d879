package handler

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/larderhq/larder/internal/auth"
	"github.com/larderhq/larder/internal/classify"
	"github.com/larderhq/larder/internal/insight"
	"github.com/larderhq/larder/internal/metrics"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/product"
	"github.com/larderhq/larder/internal/risk"
	"github.com/larderhq/larder/internal/store"
	"github.com/larderhq/larder/internal/websocket"
)

// PantryHandler serves the inventory pages and the HTMX partials that keep
// them live. Item writes broadcast over the hub so other open tabs refresh.
type PantryHandler struct {
	itemStore  *store.ItemStore
	classifier *classify.Classifier
	products   *product.Service
	hub        *websocket.Hub
	metrics    *metrics.Metrics
	templates  *template.Template
	logger     *slog.Logger
}

func NewPantryHandler(
	is *store.ItemStore,
	cl *classify.Classifier,
	ps *product.Service,
	hub *websocket.Hub,
	m *metrics.Metrics,
	templates *template.Template,
	logger *slog.Logger,
) *PantryHandler {
	return &PantryHandler{
		itemStore:  is,
		classifier: cl,
		products:   ps,
		hub:        hub,
		metrics:    m,
		templates:  templates,
		logger:     logger,
	}
}

func (h *PantryHandler) broadcast(userID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(userID, msg)
	}
}

func (h *PantryHandler) recordMutation(action string) {
	if h.metrics != nil {
		h.metrics.RecordItemMutation(action)
	}
}

// inventoryData assembles everything the inventory page and its partials show.
func (h *PantryHandler) inventoryData(userID int64) (map[string]any, error) {
	items, err := h.itemStore.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scored := risk.ScoreItems(items, now)

	return map[string]any{
		"Title":           "Larder",
		"Items":           scored,
		"Count":           len(items),
		"Recommendations": insight.Recommendations(scored, now),
		"Alerts":          insight.RestockAlerts(items),
	}, nil
}

func (h *PantryHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data, err := h.inventoryData(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load inventory", "error", err)
		http.Error(w, "failed to load inventory", http.StatusInternalServerError)
		return
	}
	h.render(w, "layout.html", data)
}

func (h *PantryHandler) ItemRows(w http.ResponseWriter, r *http.Request) {
	data, err := h.inventoryData(auth.UserID(r.Context()))
	if err != nil {
		http.Error(w, "failed to load inventory", http.StatusInternalServerError)
		return
	}
	h.renderPartial(w, "item-rows", data)
}

func (h *PantryHandler) RecommendationsPartial(w http.ResponseWriter, r *http.Request) {
	data, err := h.inventoryData(auth.UserID(r.Context()))
	if err != nil {
		http.Error(w, "failed to load inventory", http.StatusInternalServerError)
		return
	}
	h.renderPartial(w, "recommendations", data)
}

func (h *PantryHandler) AlertsPartial(w http.ResponseWriter, r *http.Request) {
	data, err := h.inventoryData(auth.UserID(r.Context()))
	if err != nil {
		http.Error(w, "failed to load inventory", http.StatusInternalServerError)
		return
	}
	h.renderPartial(w, "restock-alerts", data)
}

func (h *PantryHandler) NewItemForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, "item_form.html", map[string]any{
		"Title":      "Add item - Larder",
		"Categories": h.classifier.Categories(),
		"Today":      time.Now().UTC().Format(model.DateLayout),
	})
}

func (h *PantryHandler) EditItemForm(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	item, err := h.itemStore.GetByPublicID(userID, r.PathValue("id"))
	if err != nil || item == nil {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}

	h.render(w, "item_form.html", map[string]any{
		"Title":      "Edit item - Larder",
		"Categories": h.classifier.Categories(),
		"Item":       item,
	})
}

func (h *PantryHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	f, errMsg := h.parseItemForm(r)
	if errMsg != "" {
		h.renderPartial(w, "form-error", map[string]string{"Error": errMsg})
		return
	}

	item, err := h.itemStore.Create(userID, f.Name, f.Category, f.Quantity, f.AddedOn, f.Expiry, f.RestockThreshold, f.Barcode)
	if err != nil {
		h.logger.Error("create item", "error", err)
		http.Error(w, "failed to create item", http.StatusInternalServerError)
		return
	}

	h.recordMutation("created")
	h.broadcast(userID, websocket.NewMessage("item", "created", item.PublicID, nil))
	redirectHome(w, r)
}

func (h *PantryHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	publicID := r.PathValue("id")

	existing, err := h.itemStore.GetByPublicID(userID, publicID)
	if err != nil || existing == nil {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	f, errMsg := h.parseItemForm(r)
	if errMsg != "" {
		h.renderPartial(w, "form-error", map[string]string{"Error": errMsg})
		return
	}

	item, err := h.itemStore.Update(userID, publicID, f.Name, f.Category, f.Quantity, f.AddedOn, f.Expiry, f.RestockThreshold, f.Barcode)
	if err != nil {
		h.logger.Error("update item", "error", err)
		http.Error(w, "failed to update item", http.StatusInternalServerError)
		return
	}

	h.recordMutation("updated")
	h.broadcast(userID, websocket.NewMessage("item", "updated", item.PublicID, nil))
	redirectHome(w, r)
}

func (h *PantryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	publicID := r.PathValue("id")

	existing, err := h.itemStore.GetByPublicID(userID, publicID)
	if err != nil || existing == nil {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}

	if err := h.itemStore.Delete(userID, publicID); err != nil {
		h.logger.Error("delete item", "error", err)
		http.Error(w, "failed to delete item", http.StatusInternalServerError)
		return
	}

	h.recordMutation("deleted")
	h.broadcast(userID, websocket.NewMessage("item", "deleted", publicID, nil))

	data, err := h.inventoryData(userID)
	if err != nil {
		http.Error(w, "failed to load inventory", http.StatusInternalServerError)
		return
	}
	h.renderPartial(w, "item-rows", data)
}

// ClassifyPreview pre-fills the add-item form: suggested category for the
// typed name plus the expiry that category's shelf life implies.
func (h *PantryHandler) ClassifyPreview(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		h.renderPartial(w, "classify-preview", map[string]any{})
		return
	}

	category := h.classifier.Classify(name)
	expiry := h.classifier.SuggestExpiry(category, time.Now().UTC())

	h.renderPartial(w, "classify-preview", map[string]any{
		"Category": category,
		"Expiry":   expiry.Format(model.DateLayout),
	})
}

func (h *PantryHandler) ProductLookup(w http.ResponseWriter, r *http.Request) {
	barcode := strings.TrimSpace(r.URL.Query().Get("barcode"))
	if barcode == "" {
		h.renderPartial(w, "product-suggestion", product.Product{})
		return
	}

	p, err := h.products.Lookup(barcode)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordProductLookup("error")
		}
		h.logger.Warn("product lookup", "barcode", barcode, "error", err)
		h.renderPartial(w, "product-suggestion", product.Product{})
		return
	}

	if h.metrics != nil {
		if p.Found {
			h.metrics.RecordProductLookup("hit")
		} else {
			h.metrics.RecordProductLookup("miss")
		}
	}

	h.renderPartial(w, "product-suggestion", p)
}

type itemForm struct {
	Name             string
	Category         string
	Quantity         int
	AddedOn          string
	Expiry           string
	RestockThreshold *int
	Barcode          *string
}

// parseItemForm validates the submitted item fields. A blank category is
// classified from the name; a blank expiry falls back to the category's
// shelf life from the added date. Returns the populated form or an error
// message for the inline alert.
func (h *PantryHandler) parseItemForm(r *http.Request) (itemForm, string) {
	f := itemForm{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Category: strings.TrimSpace(r.FormValue("category")),
		AddedOn:  strings.TrimSpace(r.FormValue("added_on")),
		Expiry:   strings.TrimSpace(r.FormValue("expiry")),
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
	if qty := strings.TrimSpace(r.FormValue("quantity")); qty != "" {
		n, err := strconv.Atoi(qty)
		if err != nil || n < 1 {
			return f, "Quantity must be a positive number"
		}
		f.Quantity = n
	}

	if th := strings.TrimSpace(r.FormValue("restock_threshold")); th != "" {
		n, err := strconv.Atoi(th)
		if err != nil || n < 0 {
			return f, "Restock threshold must be zero or more"
		}
		f.RestockThreshold = &n
	}

	if bc := strings.TrimSpace(r.FormValue("barcode")); bc != "" {
		f.Barcode = &bc
	}

	return f, ""
}

// redirectHome sends the browser back to the inventory page. HTMX form posts
// get the redirect as a header so the client swaps the whole page.
func redirectHome(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PantryHandler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("render template", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (h *PantryHandler) renderPartial(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("render partial", "template", name, "error", err)
		fmt.Fprintf(w, `<div class="alert alert-error">Template error</div>`)
	}
}
