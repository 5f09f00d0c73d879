package handler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/larderhq/larder/internal/backup"
	"github.com/larderhq/larder/internal/store"
)

const backupHistoryLimit = 50

type BackupHandler struct {
	manager       *backup.Manager
	backupStore   *store.BackupStore
	settingsStore *store.SettingsStore
	logger        *slog.Logger
}

func NewBackupHandler(m *backup.Manager, bs *store.BackupStore, ss *store.SettingsStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, backupStore: bs, settingsStore: ss, logger: logger}
}

// List handles GET /api/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backupStore.List(backupHistoryLimit)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list backups"})
		return
	}
	if backups == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

// Status handles GET /api/backups/status
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

type passphraseRequest struct {
	Passphrase string `json:"passphrase"`
}

// Run handles POST /api/backups/run
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req passphraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Passphrase == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "passphrase is required"})
		return
	}

	id, err := h.manager.RunNow(r.Context(), req.Passphrase)
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	b, err := h.backupStore.GetByID(id)
	if err != nil || b == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backup record missing"})
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// SetPassphrase handles PUT /api/backups/passphrase. A fresh salt is
// generated and stored; the derived key is cached so scheduled runs can
// encrypt without the operator re-entering the passphrase.
func (h *BackupHandler) SetPassphrase(w http.ResponseWriter, r *http.Request) {
	var req passphraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.Passphrase) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "passphrase must be at least 8 characters"})
		return
	}

	salt, err := backup.GenerateSalt()
	if err != nil {
		h.logger.Error("generate salt", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate salt"})
		return
	}
	if err := h.settingsStore.Set("backup_passphrase_salt", hex.EncodeToString(salt)); err != nil {
		h.logger.Error("save salt", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save passphrase"})
		return
	}

	h.manager.CacheKey(req.Passphrase, salt)
	writeJSON(w, http.StatusOK, map[string]string{"status": "passphrase set"})
}

// GetSettings handles GET /api/backups/settings
func (h *BackupHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsStore.GetBackupSettings()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}
	delete(settings, "backup_passphrase_salt")
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /api/backups/settings
func (h *BackupHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := validateBackupSettings(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	for key, value := range req {
		if err := h.settingsStore.Set(key, value); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
			return
		}
	}

	settings, err := h.settingsStore.GetBackupSettings()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}
	delete(settings, "backup_passphrase_salt")
	writeJSON(w, http.StatusOK, settings)
}

func validateBackupSettings(settings map[string]string) error {
	allowedKeys := map[string]bool{
		"backup_enabled":        true,
		"backup_hour_utc":       true,
		"backup_retention_days": true,
	}

	for key, value := range settings {
		if !allowedKeys[key] {
			return fmt.Errorf("unknown setting: %s", key)
		}

		switch key {
		case "backup_enabled":
			if value != "true" && value != "false" {
				return fmt.Errorf("backup_enabled must be \"true\" or \"false\"")
			}
		case "backup_hour_utc":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 23 {
				return fmt.Errorf("backup_hour_utc must be 0-23")
			}
		case "backup_retention_days":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 365 {
				return fmt.Errorf("backup_retention_days must be 1-365")
			}
		}
	}
	return nil
}

// Restore handles POST /api/backups/{id}/restore. On success the process
// exits so the supervisor restarts it against the restored database; only
// failures produce a response.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req passphraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Passphrase == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "passphrase is required"})
		return
	}

	if err := h.manager.Restore(r.Context(), id, req.Passphrase); err != nil {
		h.logger.Error("restore backup", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
}

// Download handles GET /api/backups/{id}/download, streaming the encrypted
// backup object as stored.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	b, err := h.backupStore.GetByID(id)
	if err != nil || b == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "backup not found"})
		return
	}

	body, size, err := h.manager.Download(r.Context(), id)
	if err != nil {
		h.logger.Error("download backup", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to download backup"})
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Filename))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	io.Copy(w, body)
}
