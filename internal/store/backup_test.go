package store

import (
	"testing"
	"time"

	"github.com/larderhq/larder/internal/database"
	"github.com/larderhq/larder/internal/model"
)

func setupBackupTestDB(t *testing.T) *BackupStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBackupStore(db)
}

func TestBackupCreate(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, err := bs.Create("larder-20260301-120000.db.enc", "backups/larder-20260301-120000.db.enc")
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if b.Status != model.BackupStatusPending {
		t.Errorf("status = %q, want %q", b.Status, model.BackupStatusPending)
	}
	if b.StartedAt == nil {
		t.Error("expected started_at to be set")
	}
}

func TestBackupStatusTransitions(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, _ := bs.Create("f.db.enc", "backups/f.db.enc")

	if err := bs.UpdateStatus(b.ID, model.BackupStatusUploading, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := bs.GetByID(b.ID)
	if got.Status != model.BackupStatusUploading {
		t.Errorf("status = %q, want %q", got.Status, model.BackupStatusUploading)
	}

	if err := bs.UpdateCompleted(b.ID, 4096); err != nil {
		t.Fatalf("update completed: %v", err)
	}
	got, _ = bs.GetByID(b.ID)
	if got.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, model.BackupStatusCompleted)
	}
	if got.SizeBytes != 4096 {
		t.Errorf("size_bytes = %d, want 4096", got.SizeBytes)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestBackupFailed(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, _ := bs.Create("f.db.enc", "backups/f.db.enc")

	if err := bs.UpdateStatus(b.ID, model.BackupStatusFailed, "upload timed out"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := bs.GetByID(b.ID)
	if got.Status != model.BackupStatusFailed {
		t.Errorf("status = %q, want %q", got.Status, model.BackupStatusFailed)
	}
	if got.ErrorMessage != "upload timed out" {
		t.Errorf("error_message = %q", got.ErrorMessage)
	}
}

func TestBackupGetByIDNotFound(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, err := bs.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if b != nil {
		t.Error("expected nil for nonexistent backup")
	}
}

func TestBackupList(t *testing.T) {
	bs := setupBackupTestDB(t)

	bs.Create("a.db.enc", "backups/a.db.enc")
	bs.Create("b.db.enc", "backups/b.db.enc")
	bs.Create("c.db.enc", "backups/c.db.enc")

	backups, err := bs.List(2)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 2 {
		t.Errorf("len = %d, want 2", len(backups))
	}
}

func TestBackupLatestCompleted(t *testing.T) {
	bs := setupBackupTestDB(t)

	latest, err := bs.LatestCompleted()
	if err != nil {
		t.Fatalf("latest completed: %v", err)
	}
	if latest != nil {
		t.Error("expected nil with no completed backups")
	}

	a, _ := bs.Create("a.db.enc", "backups/a.db.enc")
	bs.Create("b.db.enc", "backups/b.db.enc")
	bs.UpdateCompleted(a.ID, 1024)

	latest, err = bs.LatestCompleted()
	if err != nil {
		t.Fatalf("latest completed: %v", err)
	}
	if latest == nil || latest.ID != a.ID {
		t.Errorf("latest = %v, want id %d", latest, a.ID)
	}
}

func TestBackupDeleteOlderThan(t *testing.T) {
	bs := setupBackupTestDB(t)

	old, _ := bs.Create("old.db.enc", "backups/old.db.enc")
	bs.Create("new.db.enc", "backups/new.db.enc")

	_, err := bs.db.Exec(`UPDATE backups SET created_at = datetime('now', '-40 days') WHERE id = ?`, old.ID)
	if err != nil {
		t.Fatalf("age backup: %v", err)
	}

	keys, err := bs.DeleteOlderThan(time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if len(keys) != 1 || keys[0] != "backups/old.db.enc" {
		t.Errorf("keys = %v, want [backups/old.db.enc]", keys)
	}

	backups, _ := bs.List(10)
	if len(backups) != 1 {
		t.Errorf("remaining = %d, want 1", len(backups))
	}
}
