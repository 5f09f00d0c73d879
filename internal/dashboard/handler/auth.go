package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/larderhq/larder/internal/dashboard/token"
	"github.com/larderhq/larder/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler exchanges credentials for signed bearer tokens.
type AuthHandler struct {
	userStore *store.UserStore
	secret    []byte
	logger    *slog.Logger
}

func NewAuthHandler(us *store.UserStore, secret []byte, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{userStore: us, secret: secret, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// Login verifies email and password and issues a token. Every failure maps
// to the same 401 so the endpoint can't be used to probe for accounts.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("get user", "error", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.issue(w, user.ID)
}

// Refresh re-issues a token for the already-authenticated caller.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.issue(w, UserIDFromContext(r.Context()))
}

func (h *AuthHandler) issue(w http.ResponseWriter, userID int64) {
	signed, err := token.Issue(userID, h.secret)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     signed,
		ExpiresIn: int(token.TTL.Seconds()),
	})
}
