package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/logging"
	"github.com/avolkov/authgate/internal/server/models"
)

type fakeService struct {
	registerOut *models.UserOut
	registerErr error

	loginOut *models.TokenPair
	loginErr error
	loginIP  string

	refreshOut *models.TokenPair
	refreshErr error

	authOut *models.User
	authErr error

	logoutErr    error
	logoutUserID int64
}

func (f *fakeService) Register(ctx context.Context, login, password, fullName string) (*models.UserOut, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.registerOut, nil
}

func (f *fakeService) Login(ctx context.Context, clientIP, login, password string) (*models.TokenPair, error) {
	f.loginIP = clientIP
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginOut, nil
}

func (f *fakeService) RefreshToken(ctx context.Context, oldRefreshToken string) (*models.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshOut, nil
}

func (f *fakeService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.authOut, nil
}

func (f *fakeService) Logout(ctx context.Context, userID int64) error {
	f.logoutUserID = userID
	return f.logoutErr
}

func newTestServer(t *testing.T, svc *fakeService) *httptest.Server {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	NewHandler(svc, log).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, path, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest error: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body error: %v", err)
	}
	return resp, data
}

func TestRegister_Created(t *testing.T) {
	svc := &fakeService{
		registerOut: &models.UserOut{ID: 1, Login: "alice@example.com", CreatedAt: time.Now()},
	}
	srv := newTestServer(t, svc)

	resp, body := doJSON(t, srv, "/auth/register",
		`{"username":"alice@example.com","password":"s3cret","full_name":"Alice"}`, nil)

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", resp.StatusCode, body)
	}
	var out models.UserOut
	if err := json.Unmarshal(body, &out); err != nil || out.Login != "alice@example.com" {
		t.Fatalf("bad body %s: %v", body, err)
	}
}

func TestRegister_Conflict(t *testing.T) {
	srv := newTestServer(t, &fakeService{registerErr: common.ErrorLoginIsBusy})

	resp, _ := doJSON(t, srv, "/auth/register", `{"username":"a","password":"b"}`, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("want 409, got %d", resp.StatusCode)
	}
}

func TestRegister_BadRequest(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	resp, _ := doJSON(t, srv, "/auth/register", `{not json`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body: want 400, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, srv, "/auth/register", `{"username":"a"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing password: want 400, got %d", resp.StatusCode)
	}
}

func TestLogin_OK(t *testing.T) {
	svc := &fakeService{loginOut: &models.TokenPair{AccessToken: "at", RefreshToken: "rt"}}
	srv := newTestServer(t, svc)

	resp, body := doJSON(t, srv, "/auth/login", `{"username":"alice","password":"s3cret"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", resp.StatusCode, body)
	}
	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("bad body %s: %v", body, err)
	}
	if out.AccessToken != "at" || out.RefreshToken != "rt" || out.TokenType != "bearer" {
		t.Fatalf("bad token response: %+v", out)
	}
}

func TestLogin_ClientIPFromForwardedHeader(t *testing.T) {
	svc := &fakeService{loginOut: &models.TokenPair{AccessToken: "a", RefreshToken: "r"}}
	srv := newTestServer(t, svc)

	doJSON(t, srv, "/auth/login", `{"username":"a","password":"b"}`,
		map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"})

	if svc.loginIP != "203.0.113.7" {
		t.Fatalf("want forwarded IP, got %q", svc.loginIP)
	}
}

func TestLogin_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"bad credentials", common.ErrorInvalidPassword, http.StatusUnauthorized},
		{"blocked", common.ErrorUserBlocked, http.StatusTooManyRequests},
		{"internal", common.ErrorInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeService{loginErr: tc.err})
			resp, _ := doJSON(t, srv, "/auth/login", `{"username":"a","password":"b"}`, nil)
			if resp.StatusCode != tc.want {
				t.Fatalf("want %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestRefresh_OK(t *testing.T) {
	svc := &fakeService{refreshOut: &models.TokenPair{AccessToken: "at2", RefreshToken: "rt2"}}
	srv := newTestServer(t, svc)

	resp, body := doJSON(t, srv, "/auth/refresh_token", `{"refresh_token":"rt1"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", resp.StatusCode, body)
	}
	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil || out.RefreshToken != "rt2" {
		t.Fatalf("bad body %s: %v", body, err)
	}
}

func TestRefresh_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown token", common.ErrorRefreshTokenNotFound, http.StatusUnauthorized},
		{"user gone", common.ErrorUserNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeService{refreshErr: tc.err})
			resp, _ := doJSON(t, srv, "/auth/refresh_token", `{"refresh_token":"x"}`, nil)
			if resp.StatusCode != tc.want {
				t.Fatalf("want %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestLogout_OK(t *testing.T) {
	svc := &fakeService{authOut: &models.User{ID: 7, Login: "alice"}}
	srv := newTestServer(t, svc)

	resp, body := doJSON(t, srv, "/auth/logout", "", map[string]string{"Authorization": "Bearer tok"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", resp.StatusCode, body)
	}
	if svc.logoutUserID != 7 {
		t.Fatalf("logout must target the token's subject, got %d", svc.logoutUserID)
	}
	var out statusResponse
	if err := json.Unmarshal(body, &out); err != nil || out.Status != "success" {
		t.Fatalf("bad body %s: %v", body, err)
	}
}

func TestLogout_Unauthorized(t *testing.T) {
	srv := newTestServer(t, &fakeService{authErr: common.ErrorTokenExpired})

	resp, _ := doJSON(t, srv, "/auth/logout", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing header: want 401, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, srv, "/auth/logout", "", map[string]string{"Authorization": "Bearer expired"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired token: want 401, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	resp, err := srv.Client().Get(srv.URL + "/auth/login")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("want 405, got %d", resp.StatusCode)
	}
}
