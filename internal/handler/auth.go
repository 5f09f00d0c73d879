package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/larderhq/larder/internal/email"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionCookieName = "larder_session"
	sessionMaxAge     = 30 * 24 * 60 * 60 // matches the session row expiry
	maxCodeAttempts   = 5
	minPasswordLen    = 8
)

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	resetStore   *store.ResetCodeStore
	emailClient  *email.Client
	templates    *template.Template
	logger       *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	rs *store.ResetCodeStore,
	ec *email.Client,
	templates *template.Template,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		sessionStore: ss,
		resetStore:   rs,
		emailClient:  ec,
		templates:    templates,
		logger:       logger,
	}
}

func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.templates.ExecuteTemplate(w, "auth_signup.html", map[string]any{})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	name := strings.TrimSpace(r.FormValue("name"))
	password := r.FormValue("password")

	renderError := func(msg string) {
		h.templates.ExecuteTemplate(w, "auth_signup.html", map[string]any{
			"Email": emailAddr,
			"Name":  name,
			"Error": msg,
		})
	}

	if emailAddr == "" {
		renderError("Email is required")
		return
	}
	if len(password) < minPasswordLen {
		renderError("Password must be at least 8 characters")
		return
	}

	existing, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("signup lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		renderError("An account with that email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	user, err := h.userStore.Create(emailAddr, name, string(hash))
	if err != nil {
		h.logger.Error("create user", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	h.startSession(w, r, user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.templates.ExecuteTemplate(w, "auth_login.html", map[string]any{})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")

	// One generic message for every failure path so login can't be used
	// to probe which emails are registered.
	renderError := func() {
		h.templates.ExecuteTemplate(w, "auth_login.html", map[string]any{
			"Email": emailAddr,
			"Error": "Invalid email or password",
		})
	}

	if emailAddr == "" || password == "" {
		renderError()
		return
	}

	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		renderError()
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		renderError()
		return
	}

	h.startSession(w, r, user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if sess, err := h.sessionStore.GetByToken(cookie.Value); err == nil && sess != nil {
			h.sessionStore.Delete(sess.ID)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) ResetPage(w http.ResponseWriter, r *http.Request) {
	h.templates.ExecuteTemplate(w, "auth_reset.html", map[string]any{})
}

// ResetRequest emails a reset code. The confirm page renders no matter
// what so the form can't be used to probe which emails are registered.
func (h *AuthHandler) ResetRequest(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	if emailAddr == "" {
		h.templates.ExecuteTemplate(w, "auth_reset.html", map[string]any{
			"Error": "Email is required",
		})
		return
	}

	defer func() {
		h.templates.ExecuteTemplate(w, "auth_reset_confirm.html", map[string]any{
			"Email": emailAddr,
		})
	}()

	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("reset lookup", "error", err)
		return
	}
	if user == nil {
		return // unknown email, but we still show the confirm page
	}

	rc, err := h.resetStore.Create(emailAddr)
	if err != nil {
		h.logger.Error("create reset code", "error", err)
		return
	}

	if !h.emailClient.Configured() {
		h.logger.Info("password reset code (email not configured)", "email", emailAddr, "code", rc.Code)
		return
	}
	if err := h.emailClient.SendResetCode(emailAddr, rc.Code); err != nil {
		h.logger.Error("send reset code", "error", err)
	}
}

func (h *AuthHandler) ResetConfirmPage(w http.ResponseWriter, r *http.Request) {
	h.templates.ExecuteTemplate(w, "auth_reset_confirm.html", map[string]any{
		"Email": r.URL.Query().Get("email"),
	})
}

func (h *AuthHandler) ResetConfirm(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	code := strings.TrimSpace(r.FormValue("code"))
	password := r.FormValue("password")

	renderError := func(msg string) {
		h.templates.ExecuteTemplate(w, "auth_reset_confirm.html", map[string]any{
			"Email": emailAddr,
			"Error": msg,
		})
	}

	if len(password) < minPasswordLen {
		renderError("Password must be at least 8 characters")
		return
	}

	rc, errMsg := h.validateCode(emailAddr, code)
	if errMsg != "" {
		renderError(errMsg)
		return
	}

	user, err := h.userStore.GetByEmail(rc.Email)
	if err != nil {
		h.logger.Error("reset confirm lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		// Code was issued for an email that no longer has an account.
		renderError("Code has expired or already been used. Please request a new one.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.userStore.UpdatePassword(user.ID, string(hash)); err != nil {
		h.logger.Error("update password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Old sessions die with the old password.
	if err := h.sessionStore.DeleteByUserID(user.ID); err != nil {
		h.logger.Error("delete sessions", "error", err)
	}

	h.templates.ExecuteTemplate(w, "auth_login.html", map[string]any{
		"Email":  emailAddr,
		"Notice": "Password updated. Sign in with your new password.",
	})
}

// validateCode checks the reset code for the given email, handling attempts
// and expiry. Returns the code row on success, or an error message string.
func (h *AuthHandler) validateCode(emailAddr, code string) (*model.ResetCode, string) {
	if emailAddr == "" || code == "" {
		return nil, "Email and code are required"
	}

	// Look up the latest valid code for this email (for attempt tracking)
	latest, err := h.resetStore.GetLatestByEmail(emailAddr)
	if err != nil {
		h.logger.Error("validate code lookup", "error", err)
		return nil, "Internal error"
	}
	if latest == nil {
		return nil, "Code has expired or already been used. Please request a new one."
	}

	if latest.Attempts >= maxCodeAttempts {
		h.resetStore.MarkUsed(latest.ID)
		return nil, "Too many incorrect attempts. Please request a new code."
	}

	if latest.Code != code {
		newAttempts, err := h.resetStore.IncrementAttempts(latest.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if newAttempts >= maxCodeAttempts {
			h.resetStore.MarkUsed(latest.ID)
			return nil, "Too many incorrect attempts. Please request a new code."
		}
		return nil, "Incorrect code. Please try again."
	}

	if err := h.resetStore.MarkUsed(latest.ID); err != nil {
		h.logger.Error("mark used", "error", err)
		return nil, "Internal error"
	}

	return latest, ""
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, userID int64) {
	sess, err := h.sessionStore.Create(userID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}
