package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/larderhq/larder/internal/classify"
	"github.com/larderhq/larder/internal/database"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/risk"
	"github.com/larderhq/larder/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func setupItemHandler(t *testing.T) (*ItemHandler, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user, err := store.NewUserStore(db).Create("dash@example.com", "Dash", "unused-hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	h := NewItemHandler(store.NewItemStore(db), classify.New(classify.Default()), testLogger())
	return h, user.ID
}

// authedJSON builds a request with a JSON body and the user ID already in
// the context, the way the bearer middleware would leave it.
func authedJSON(t *testing.T, userID int64, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(WithUserID(req.Context(), userID))
}

func decodeScored(t *testing.T, rec *httptest.ResponseRecorder) risk.ScoredItem {
	t.Helper()
	var scored risk.ScoredItem
	if err := json.NewDecoder(rec.Body).Decode(&scored); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return scored
}

func TestCreateItemFillsCategoryAndExpiry(t *testing.T) {
	h, userID := setupItemHandler(t)

	req := authedJSON(t, userID, http.MethodPost, "/api/v1/items", map[string]any{
		"name":     "milk",
		"added_on": "2026-03-01",
	})
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	scored := decodeScored(t, rec)
	if scored.Category != "Dairy" {
		t.Errorf("Category = %q, want Dairy", scored.Category)
	}
	// Dairy shelf life is 7 days from the added date.
	if scored.Expiry != "2026-03-08" {
		t.Errorf("Expiry = %q, want 2026-03-08", scored.Expiry)
	}
	if scored.Quantity != 1 {
		t.Errorf("Quantity = %d, want default 1", scored.Quantity)
	}
	if scored.PublicID == "" {
		t.Error("expected a public id")
	}
}

func TestCreateItemValidation(t *testing.T) {
	h, userID := setupItemHandler(t)

	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{"missing name", map[string]any{"added_on": "2026-03-01"}, "Name is required"},
		{"missing added date", map[string]any{"name": "rice"}, "Added date is required"},
		{"bad added date", map[string]any{"name": "rice", "added_on": "03/01/2026"}, "Added date must be YYYY-MM-DD"},
		{"bad expiry", map[string]any{"name": "rice", "added_on": "2026-03-01", "expiry": "soon"}, "Expiry date must be YYYY-MM-DD"},
		{"expiry equals added", map[string]any{"name": "rice", "added_on": "2026-03-01", "expiry": "2026-03-01"}, "Expiry must be after the added date."},
		{"expiry before added", map[string]any{"name": "rice", "added_on": "2026-03-01", "expiry": "2026-02-01"}, "Expiry must be after the added date."},
		{"zero quantity", map[string]any{"name": "rice", "added_on": "2026-03-01", "quantity": 0}, "Quantity must be a positive number"},
		{"negative threshold", map[string]any{"name": "rice", "added_on": "2026-03-01", "restock_threshold": -1}, "Restock threshold must be zero or more"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedJSON(t, userID, http.MethodPost, "/api/v1/items", tt.body)
			rec := httptest.NewRecorder()
			h.Create(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp["error"] != tt.want {
				t.Errorf("error = %q, want %q", resp["error"], tt.want)
			}
		})
	}
}

func TestCreateItemRejectsBadJSON(t *testing.T) {
	h, userID := setupItemHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader("{not json"))
	req = req.WithContext(WithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestInventoryAnnotations(t *testing.T) {
	h, userID := setupItemHandler(t)
	now := time.Now().UTC()
	today := now.Format(model.DateLayout)
	farOut := now.AddDate(0, 0, 30).Format(model.DateLayout)

	for _, body := range []map[string]any{
		{"name": "old yogurt", "added_on": today, "expiry": today, "category": "Dairy"},
		{"name": "canned beans", "added_on": today, "expiry": farOut, "category": "Canned"},
	} {
		// An expiry equal to the added date is rejected, so backdate the
		// first item's added_on.
		if body["expiry"] == today {
			body["added_on"] = now.AddDate(0, 0, -3).Format(model.DateLayout)
		}
		req := authedJSON(t, userID, http.MethodPost, "/api/v1/items", body)
		rec := httptest.NewRecorder()
		h.Create(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed item: got %d: %s", rec.Code, rec.Body.String())
		}
	}

	req := authedJSON(t, userID, http.MethodGet, "/api/v1/inventory", nil)
	rec := httptest.NewRecorder()
	h.Inventory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var scored []risk.ScoredItem
	if err := json.NewDecoder(rec.Body).Decode(&scored); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("got %d items, want 2", len(scored))
	}

	byName := map[string]risk.ScoredItem{}
	for _, s := range scored {
		byName[s.Name] = s
	}

	yogurt := byName["old yogurt"]
	if yogurt.Days == nil {
		t.Fatal("yogurt Days is nil")
	}
	if yogurt.Tier != risk.TierCritical {
		t.Errorf("yogurt Tier = %q, want %q", yogurt.Tier, risk.TierCritical)
	}
	if yogurt.Freshness != risk.FreshnessExpired {
		t.Errorf("yogurt Freshness = %q, want %q", yogurt.Freshness, risk.FreshnessExpired)
	}

	beans := byName["canned beans"]
	if beans.Tier != risk.TierLow {
		t.Errorf("beans Tier = %q, want %q", beans.Tier, risk.TierLow)
	}
	if beans.Freshness != risk.FreshnessFresh {
		t.Errorf("beans Freshness = %q, want %q", beans.Freshness, risk.FreshnessFresh)
	}
}

func TestInventoryEmptyIsArray(t *testing.T) {
	h, userID := setupItemHandler(t)

	req := authedJSON(t, userID, http.MethodGet, "/api/v1/inventory", nil)
	rec := httptest.NewRecorder()
	h.Inventory(rec, req)

	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestGetUpdateDeleteRoundTrip(t *testing.T) {
	h, userID := setupItemHandler(t)

	req := authedJSON(t, userID, http.MethodPost, "/api/v1/items", map[string]any{
		"name":     "rice",
		"added_on": "2026-03-01",
		"expiry":   "2027-03-01",
		"quantity": 3,
	})
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeScored(t, rec)

	// Get
	req = authedJSON(t, userID, http.MethodGet, "/api/v1/items/"+created.PublicID, nil)
	req.SetPathValue("id", created.PublicID)
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d", rec.Code)
	}

	// Update
	req = authedJSON(t, userID, http.MethodPut, "/api/v1/items/"+created.PublicID, map[string]any{
		"name":     "brown rice",
		"category": "Grains",
		"added_on": "2026-03-01",
		"expiry":   "2027-03-01",
		"quantity": 5,
	})
	req.SetPathValue("id", created.PublicID)
	rec = httptest.NewRecorder()
	h.Update(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeScored(t, rec)
	if updated.Name != "brown rice" || updated.Quantity != 5 {
		t.Errorf("updated = %q qty %d, want brown rice qty 5", updated.Name, updated.Quantity)
	}

	// Delete
	req = authedJSON(t, userID, http.MethodDelete, "/api/v1/items/"+created.PublicID, nil)
	req.SetPathValue("id", created.PublicID)
	rec = httptest.NewRecorder()
	h.Delete(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rec.Code)
	}

	req = authedJSON(t, userID, http.MethodGet, "/api/v1/items/"+created.PublicID, nil)
	req.SetPathValue("id", created.PublicID)
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d, want 404", rec.Code)
	}
}

func TestItemsScopedToOwner(t *testing.T) {
	h, userID := setupItemHandler(t)

	req := authedJSON(t, userID, http.MethodPost, "/api/v1/items", map[string]any{
		"name":     "honey",
		"added_on": "2026-03-01",
		"expiry":   "2028-03-01",
	})
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	created := decodeScored(t, rec)

	intruder := userID + 1
	req = authedJSON(t, intruder, http.MethodGet, "/api/v1/items/"+created.PublicID, nil)
	req.SetPathValue("id", created.PublicID)
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("intruder get: got %d, want 404", rec.Code)
	}

	req = authedJSON(t, intruder, http.MethodDelete, "/api/v1/items/"+created.PublicID, nil)
	req.SetPathValue("id", created.PublicID)
	rec = httptest.NewRecorder()
	h.Delete(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("intruder delete: got %d, want 404", rec.Code)
	}
}
