package handlers

import (
	"encoding/base64"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/render"
	"folio/internal/session"
)

const totpIssuer = "Folio"

// Auth groups the admin sign-in handlers.
type Auth struct {
	renderer *render.Renderer
	sessions *session.Store
	users    UserRepo
}

// NewAuth creates the sign-in handlers.
func NewAuth(renderer *render.Renderer, sessions *session.Store, users UserRepo) *Auth {
	return &Auth{renderer: renderer, sessions: sessions, users: users}
}

// LoginPage renders the login form.
func (a *Auth) LoginPage(w http.ResponseWriter, r *http.Request) {
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil && sess.TwoFADone {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	a.renderer.Page(w, r, "login", &render.PageData{Title: "Sign In"})
}

// LoginSubmit checks the password and starts a session that still needs
// the second factor.
func (a *Auth) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")

	loginError := func(status int, msg string) {
		a.renderer.PageStatus(w, r, status, "login", &render.PageData{
			Title: "Sign In",
			Data:  map[string]any{"Error": msg, "Email": email},
		})
	}

	user, err := a.users.FindByEmail(r.Context(), email)
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		loginError(http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	if user == nil || !a.users.CheckPassword(user, password) {
		loginError(http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	_, err = a.sessions.Create(r.Context(), w, &session.Data{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.DisplayName(),
	})
	if err != nil {
		slog.Error("session create failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/2fa", http.StatusSeeOther)
}

// TwoFA shows the enrollment QR code to users without TOTP and the code
// prompt to everyone else.
func (a *Auth) TwoFA(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	user, ok := a.sessionUser(w, r, sess)
	if !ok {
		return
	}
	if sess.TwoFADone {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	if user.Needs2FASetup() {
		key, err := totp.Generate(totp.GenerateOpts{Issuer: totpIssuer, AccountName: user.Email})
		if err != nil {
			slog.Error("totp generate failed", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if err := a.users.SetTOTPSecret(r.Context(), user.ID, key.Secret()); err != nil {
			slog.Error("save totp secret failed", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		a.setupPage(w, r, http.StatusOK, user.Email, key.Secret(), "")
		return
	}

	a.renderer.Page(w, r, "2fa_verify", &render.PageData{Title: "Two-Factor Authentication"})
}

// TwoFASubmit validates the TOTP code and completes the sign-in. The first
// valid code also enables TOTP for the account.
func (a *Auth) TwoFASubmit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	user, ok := a.sessionUser(w, r, sess)
	if !ok {
		return
	}
	if user.TOTPSecret == nil {
		http.Redirect(w, r, "/admin/2fa", http.StatusSeeOther)
		return
	}

	code := strings.TrimSpace(r.FormValue("code"))
	if !totp.Validate(code, *user.TOTPSecret) {
		const msg = "Invalid code. Please try again."
		if !user.TOTPEnabled {
			a.setupPage(w, r, http.StatusUnprocessableEntity, user.Email, *user.TOTPSecret, msg)
			return
		}
		a.renderer.PageStatus(w, r, http.StatusUnprocessableEntity, "2fa_verify", &render.PageData{
			Title: "Two-Factor Authentication",
			Data:  map[string]any{"Error": msg},
		})
		return
	}

	if !user.TOTPEnabled {
		if err := a.users.EnableTOTP(r.Context(), user.ID); err != nil {
			slog.Error("enable totp failed", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	sess.TwoFADone = true
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		slog.Error("session update failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	slog.Info("admin signed in", "user", user.ID)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Logout destroys the session.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

func (a *Auth) sessionUser(w http.ResponseWriter, r *http.Request, sess *session.Data) (*models.User, bool) {
	if sess == nil {
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return nil, false
	}
	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		slog.Error("user lookup for 2fa failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	if user == nil {
		a.Logout(w, r)
		return nil, false
	}
	return user, true
}

func (a *Auth) setupPage(w http.ResponseWriter, r *http.Request, status int, email, secret, errMsg string) {
	qrPNG, err := qrcode.Encode(otpURL(email, secret), qrcode.Medium, 256)
	if err != nil {
		slog.Error("qr code generation failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	data := map[string]any{
		"QRCode": template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(qrPNG)),
		"Secret": secret,
	}
	if errMsg != "" {
		data["Error"] = errMsg
	}
	a.renderer.PageStatus(w, r, status, "2fa_setup", &render.PageData{
		Title: "Set Up Two-Factor Authentication",
		Data:  data,
	})
}

func otpURL(email, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", totpIssuer)
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + totpIssuer + ":" + email,
		RawQuery: v.Encode(),
	}
	return u.String()
}
