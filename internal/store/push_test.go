package store

import (
	"testing"
	"time"

	"github.com/larderhq/larder/internal/database"
)

func setupPushTestDB(t *testing.T) (*PushStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := NewUserStore(db).Create("alice@example.com", "Alice", "h1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewPushStore(db), u.ID
}

func TestPushCreateSubscription(t *testing.T) {
	ps, userID := setupPushTestDB(t)

	sub, err := ps.CreateSubscription(userID, "https://push.example.com/sub1", "p256dh-key", "auth-key", "Kitchen tablet")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub == nil {
		t.Fatal("expected subscription, got nil")
	}
	if sub.Endpoint != "https://push.example.com/sub1" {
		t.Errorf("endpoint = %q", sub.Endpoint)
	}
	if sub.UserID != userID {
		t.Errorf("user_id = %d, want %d", sub.UserID, userID)
	}
	if sub.DeviceName != "Kitchen tablet" {
		t.Errorf("device_name = %q", sub.DeviceName)
	}
}

func TestPushCreateSubscriptionUpsert(t *testing.T) {
	ps, userID := setupPushTestDB(t)

	first, err := ps.CreateSubscription(userID, "https://push.example.com/sub1", "key-a", "auth-a", "Phone")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	second, err := ps.CreateSubscription(userID, "https://push.example.com/sub1", "key-b", "auth-b", "Phone renamed")
	if err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}
	if second == nil {
		t.Fatal("expected subscription after upsert, got nil")
	}
	if second.ID != first.ID {
		t.Errorf("upsert created new row: id %d -> %d", first.ID, second.ID)
	}
	if second.P256dhKey != "key-b" {
		t.Errorf("p256dh_key = %q, want key-b", second.P256dhKey)
	}

	subs, _ := ps.ListByUser(userID)
	if len(subs) != 1 {
		t.Errorf("subscriptions = %d, want 1", len(subs))
	}
}

func TestPushListByUser(t *testing.T) {
	ps, userID := setupPushTestDB(t)

	ps.CreateSubscription(userID, "https://push.example.com/sub1", "k1", "a1", "Phone")
	ps.CreateSubscription(userID, "https://push.example.com/sub2", "k2", "a2", "Laptop")

	subs, err := ps.ListByUser(userID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(subs) != 2 {
		t.Errorf("len = %d, want 2", len(subs))
	}
}

func TestPushDeleteSubscription(t *testing.T) {
	ps, userID := setupPushTestDB(t)

	sub, _ := ps.CreateSubscription(userID, "https://push.example.com/sub1", "k1", "a1", "Phone")

	if err := ps.DeleteSubscription(sub.ID, userID); err != nil {
		t.Fatalf("delete subscription: %v", err)
	}

	got, err := ps.GetByID(sub.ID, userID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestPushDeleteByEndpoint(t *testing.T) {
	ps, userID := setupPushTestDB(t)

	sub, _ := ps.CreateSubscription(userID, "https://push.example.com/sub1", "k1", "a1", "Phone")

	if err := ps.DeleteByEndpoint(sub.Endpoint); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}

	subs, _ := ps.ListByUser(userID)
	if len(subs) != 0 {
		t.Errorf("subscriptions = %d, want 0", len(subs))
	}
}

func TestPushListUserIDs(t *testing.T) {
	ps, userID := setupPushTestDB(t)

	ids, err := ps.ListUserIDs()
	if err != nil {
		t.Fatalf("list user ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want empty", ids)
	}

	ps.CreateSubscription(userID, "https://push.example.com/sub1", "k1", "a1", "Phone")
	ps.CreateSubscription(userID, "https://push.example.com/sub2", "k2", "a2", "Laptop")

	ids, err = ps.ListUserIDs()
	if err != nil {
		t.Fatalf("list user ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != userID {
		t.Errorf("ids = %v, want [%d]", ids, userID)
	}
}

func TestPushDigestDedupe(t *testing.T) {
	ps, userID := setupPushTestDB(t)

	sent, err := ps.WasDigestSent(userID, "2026-03-01")
	if err != nil {
		t.Fatalf("was digest sent: %v", err)
	}
	if sent {
		t.Error("digest should not be marked sent yet")
	}

	if err := ps.RecordDigest(userID, "2026-03-01"); err != nil {
		t.Fatalf("record digest: %v", err)
	}
	// Recording twice is harmless
	if err := ps.RecordDigest(userID, "2026-03-01"); err != nil {
		t.Fatalf("record digest again: %v", err)
	}

	sent, err = ps.WasDigestSent(userID, "2026-03-01")
	if err != nil {
		t.Fatalf("was digest sent: %v", err)
	}
	if !sent {
		t.Error("digest should be marked sent")
	}

	sent, _ = ps.WasDigestSent(userID, "2026-03-02")
	if sent {
		t.Error("next day should not be marked sent")
	}
}

func TestPushCleanupDigests(t *testing.T) {
	ps, userID := setupPushTestDB(t)

	ps.RecordDigest(userID, "2026-03-01")

	if err := ps.CleanupDigests(time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("cleanup digests: %v", err)
	}

	sent, _ := ps.WasDigestSent(userID, "2026-03-01")
	if sent {
		t.Error("digest record should be cleaned up")
	}
}
