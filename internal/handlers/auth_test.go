package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pquerna/otp/totp"

	"folio/internal/middleware"
	"folio/internal/render"
	"folio/internal/session"
)

func newAuth(t *testing.T, env *testEnv) (*Auth, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	renderer, err := render.New()
	if err != nil {
		t.Fatal(err)
	}
	return NewAuth(renderer, session.NewStore(client, false), env.Users), mock
}

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginPage(t *testing.T) {
	env := newTestEnv(t)
	a, _ := newAuth(t, env)

	rec := httptest.NewRecorder()
	a.LoginPage(rec, httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("content type: %q", rec.Header().Get("Content-Type"))
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/login", nil)
	req = req.WithContext(middleware.WithSession(req.Context(), &session.Data{TwoFADone: true}))
	rec = httptest.NewRecorder()
	a.LoginPage(rec, req)
	expectStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/admin" {
		t.Errorf("location: %q", loc)
	}
}

func TestLoginSubmit_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin@folio.test")
	a, mock := newAuth(t, env)

	rec := httptest.NewRecorder()
	a.LoginSubmit(rec, formRequest("/admin/login", url.Values{"email": {"admin@folio.test"}, "password": {"nope"}}))
	expectStatus(t, rec, http.StatusUnauthorized)
	if !strings.Contains(rec.Body.String(), "Invalid email or password.") {
		t.Error("missing error message")
	}
	if !strings.Contains(rec.Body.String(), `value="admin@folio.test"`) {
		t.Error("email should be kept in the form")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLoginSubmit_StartsHalfSession(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin@folio.test")
	a, mock := newAuth(t, env)
	mock.Regexp().ExpectSet(`session:[0-9a-f]{64}`, `.*`, session.DefaultTTL).SetVal("OK")

	rec := httptest.NewRecorder()
	a.LoginSubmit(rec, formRequest("/admin/login", url.Values{"email": {"Admin@Folio.test"}, "password": {"correct horse"}}))
	expectStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/admin/2fa" {
		t.Errorf("location: %q", loc)
	}
	if cookies := rec.Result().Cookies(); len(cookies) != 1 || cookies[0].Name != session.CookieName {
		t.Errorf("cookies: %+v", cookies)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestTwoFA_EnrollmentFlow(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "admin@folio.test")
	a, mock := newAuth(t, env)
	sess := &session.Data{UserID: u.ID, Email: u.Email}

	// First visit generates and stores a secret.
	req := httptest.NewRequest(http.MethodGet, "/admin/2fa", nil)
	req = req.WithContext(middleware.WithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	a.TwoFA(rec, req)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "data:image/png;base64,") {
		t.Error("setup page should embed the QR code")
	}
	stored, _ := env.Users.FindByID(t.Context(), u.ID)
	if stored.TOTPSecret == nil || stored.TOTPEnabled {
		t.Fatalf("after setup: secret=%v enabled=%v", stored.TOTPSecret, stored.TOTPEnabled)
	}
	secret := *stored.TOTPSecret

	submit := func(code string) *httptest.ResponseRecorder {
		req := formRequest("/admin/2fa", url.Values{"code": {code}})
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "abc"})
		req = req.WithContext(middleware.WithSession(req.Context(), sess))
		rec := httptest.NewRecorder()
		a.TwoFASubmit(rec, req)
		return rec
	}

	rec = submit("12345")
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if !strings.Contains(rec.Body.String(), "Invalid code") {
		t.Error("missing invalid code message")
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	mock.Regexp().ExpectSet(`session:abc`, `.*`, session.DefaultTTL).SetVal("OK")
	rec = submit(code)
	expectStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/admin" {
		t.Errorf("location: %q", loc)
	}
	stored, _ = env.Users.FindByID(t.Context(), u.ID)
	if !stored.TOTPEnabled {
		t.Error("first valid code should enable TOTP")
	}
	if !sess.TwoFADone {
		t.Error("session should be marked complete")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestTwoFA_EnrolledUserGetsPrompt(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "admin@folio.test")
	_ = env.Users.SetTOTPSecret(t.Context(), u.ID, "JBSWY3DPEHPK3PXP")
	_ = env.Users.EnableTOTP(t.Context(), u.ID)
	a, _ := newAuth(t, env)

	req := httptest.NewRequest(http.MethodGet, "/admin/2fa", nil)
	req = req.WithContext(middleware.WithSession(req.Context(), &session.Data{UserID: u.ID}))
	rec := httptest.NewRecorder()
	a.TwoFA(rec, req)
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), "data:image/png") {
		t.Error("enrolled users must not see a new QR code")
	}
	stored, _ := env.Users.FindByID(t.Context(), u.ID)
	if *stored.TOTPSecret != "JBSWY3DPEHPK3PXP" {
		t.Error("the secret must not be replaced")
	}
}

func TestTwoFA_NoSessionRedirects(t *testing.T) {
	env := newTestEnv(t)
	a, _ := newAuth(t, env)
	rec := httptest.NewRecorder()
	a.TwoFA(rec, httptest.NewRequest(http.MethodGet, "/admin/2fa", nil))
	expectStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/admin/login" {
		t.Errorf("location: %q", loc)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	a, mock := newAuth(t, env)
	mock.ExpectDel("session:abc").SetVal(1)

	req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "abc"})
	rec := httptest.NewRecorder()
	a.Logout(rec, req)
	expectStatus(t, rec, http.StatusSeeOther)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestOTPURL(t *testing.T) {
	got := otpURL("a@b.c", "SECRET")
	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" || u.Query().Get("secret") != "SECRET" || u.Query().Get("issuer") != "Folio" {
		t.Errorf("otp url: %s", got)
	}
}
