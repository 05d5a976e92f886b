package auth_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/inkwell-press/inkwell/internal/auth"
	"github.com/inkwell-press/inkwell/internal/identity"
	"github.com/inkwell-press/inkwell/internal/shared"
	"github.com/inkwell-press/inkwell/internal/view"
	_ "github.com/inkwell-press/inkwell/testing"
)

func newAuthHandler(t *testing.T, dir auth.Directory) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	handler := auth.NewHandler(logger, auth.NewService(dir, &stubSessions{}), templates, sessionManager, csrfManager)
	return handler, sessionManager
}

func TestLoginPage(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubDirectory{})

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.ShowLoginForTest(res, req)
	if err := sessionManager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "<form") {
		t.Fatalf("expected login form in body")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	dir := &stubDirectory{account: &identity.Account{
		ID: 1, Email: "user@test.local", PasswordHash: hash(t, "correctpass"), Approved: true,
	}}
	handler, sessionManager := newAuthHandler(t, dir)

	// Prime session and CSRF token via GET.
	getReq := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	sess, err := sessionManager.Load(context.Background(), getReq)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	getCtx := shared.ContextWithSession(getReq.Context(), sess)
	getReq = getReq.WithContext(getCtx)
	getRes := httptest.NewRecorder()
	handler.ShowLoginForTest(getRes, getReq)
	if err := sessionManager.Commit(getCtx, getRes, getReq, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}

	token := sess.Get(shared.CSRFSessionKey)
	if token == "" {
		t.Fatalf("csrf token not set")
	}

	postData := url.Values{}
	postData.Set("email", "user@test.local")
	postData.Set("password", "wrongpass")
	postData.Set("csrf_token", token)

	postReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(postData.Encode()))
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	postReq.AddCookie(&http.Cookie{Name: sessionManager.CookieName(), Value: sess.ID})

	loadedSess, err := sessionManager.Load(context.Background(), postReq)
	if err != nil {
		t.Fatalf("load session for post: %v", err)
	}
	postCtx := shared.ContextWithSession(postReq.Context(), loadedSess)
	postReq = postReq.WithContext(postCtx)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, postReq)
	if err := sessionManager.Commit(postCtx, res, postReq, loadedSess); err != nil {
		t.Fatalf("commit session post: %v", err)
	}

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Email or password is not valid") {
		t.Fatalf("expected error message in response")
	}
}

func TestLoginUnapprovedRedirectsToPending(t *testing.T) {
	dir := &stubDirectory{account: &identity.Account{
		ID: 2, Email: "c@c.c", PasswordHash: hash(t, "P@$w0rd"), Approved: false,
	}}
	handler, sessionManager := newAuthHandler(t, dir)

	postData := url.Values{}
	postData.Set("email", "c@c.c")
	postData.Set("password", "P@$w0rd")

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(postData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if location := res.Header().Get("Location"); location != "/auth/pending" {
		t.Fatalf("expected redirect to pending page, got %q", location)
	}
	if sess.User() != "" {
		t.Fatalf("unapproved login must not establish a user session")
	}
}

func TestRegisterRedirectsToPending(t *testing.T) {
	dir := &stubDirectory{}
	handler, sessionManager := newAuthHandler(t, dir)

	postData := url.Values{}
	postData.Set("name", "New Writer")
	postData.Set("email", "writer@test.local")
	postData.Set("password", "longenough")
	postData.Set("password_confirm", "longenough")

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(postData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	handler.HandleRegisterForTest(res, req)

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if location := res.Header().Get("Location"); location != "/auth/pending" {
		t.Fatalf("expected redirect to pending page, got %q", location)
	}
	if dir.account == nil || dir.account.Email != "writer@test.local" {
		t.Fatalf("expected account to be registered")
	}
}

func TestRegisterPasswordMismatch(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubDirectory{})

	postData := url.Values{}
	postData.Set("email", "writer@test.local")
	postData.Set("password", "longenough")
	postData.Set("password_confirm", "different")

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(postData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	handler.HandleRegisterForTest(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Passwords do not match") {
		t.Fatalf("expected mismatch message in response")
	}
}
