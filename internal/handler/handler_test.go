package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/auth"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/config"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/identifier"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/memstore"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/service"
)

const (
	johnUserID = "5d0e8c2a-7b1f-4e3d-a9c6-3f2b1e0d9c11"
	hankUserID = "a8f3b2c1-6e5d-4c7b-8a9f-4e3d2c1b0a22"
)

type recordingNotifier struct {
	mu     sync.Mutex
	tokens []string
}

func (n *recordingNotifier) SendCredentialEmail(_ context.Context, _, _, _, _, resetToken string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, resetToken)
	return nil
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, _, _, resetToken string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, resetToken)
	return nil
}

type testServer struct {
	h        *Handler
	store    *memstore.Store
	notifier *recordingNotifier
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.RateLimit.GeneralRPM = 1000
	cfg.RateLimit.AuthRPM = 1000
	cfg.CORS.Origins = []string{"http://localhost:5173"}
	for _, m := range mutate {
		m(cfg)
	}

	store := memstore.New()
	notifier := &recordingNotifier{}
	codec := auth.NewTokenCodec("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	svc := service.New(store, codec, identifier.NewGenerator(store, nil), notifier, time.Hour)

	h, err := NewHandler(cfg, svc)
	require.NoError(t, err)
	h.RegisterRoutes()

	return &testServer{h: h, store: store, notifier: notifier}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.h.Mux.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

type authData struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *domain.User `json:"user"`
}

var acme = map[string]string{
	"companyName": "Acme Corp",
	"name":        "Jane Doe",
	"email":       "jane@acme.com",
	"phone":       "+1 555 0100",
	"password":    "securePass1",
}

func (s *testServer) registerAcme(t *testing.T) authData {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/auth/register", acme, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func (s *testServer) addEmployee(t *testing.T, admin *domain.User) {
	t.Helper()
	hash, err := auth.HashPassword("employeePass1")
	require.NoError(t, err)
	employeeID := "ACJOSM20240001"
	s.store.PutUser(&domain.User{
		ID:           johnUserID,
		Email:        "john@acme.com",
		PasswordHash: hash,
		FirstName:    "John",
		LastName:     "Smith",
		Role:         domain.RoleEmployee,
		EmployeeID:   &employeeID,
		CompanyID:    admin.CompanyID,
		CreatedAt:    time.Now().Add(time.Minute),
	}, nil)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.h.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)
	data := s.registerAcme(t)

	require.NotEmpty(t, data.AccessToken)
	require.NotEmpty(t, data.RefreshToken)
	require.Equal(t, domain.RoleAdmin, data.User.Role)
	require.Equal(t, "AC", data.User.Company.Code)
	require.Regexp(t, `^ACJADO\d{4}0001$`, *data.User.EmployeeID)

	rec, env := s.do(t, http.MethodPost, "/api/auth/register", acme, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "Forbidden", env.Error)
	assert.Equal(t, "Registration is disabled. Please contact your HR or Admin to create an account.", env.Message)

	// 注册关闭后，非法请求体同样返回 403
	rec, _ = s.do(t, http.MethodPost, "/api/auth/register", "{not json", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"companyName": "A", "name": "Jane Doe", "email": "jane@acme.com", "password": "securePass1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation Error", env.Error)
	assert.Equal(t, "Company name is required and must be at least 2 characters", env.Message)

	rec, env = s.do(t, http.MethodPost, "/api/auth/register", "{not json", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body must be valid JSON", env.Message)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.store.PutUser(&domain.User{ID: "u-x", Email: "jane@acme.com", Role: domain.RoleAdmin}, nil)

	rec, env := s.do(t, http.MethodPost, "/api/auth/register", acme, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User with this email already exists", env.Message)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	reg := s.registerAcme(t)

	rec, env := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"loginId": *reg.User.EmployeeID, "password": "securePass1",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.AccessToken)
	assert.NotContains(t, string(env.Data), "passwordHash")
	assert.NotContains(t, string(env.Data), "$2a$")

	rec, wrong := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"loginId": *reg.User.EmployeeID, "password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, unknown := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"loginId": "nobody", "password": "securePass1",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, wrong.Message, unknown.Message)

	rec, env = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"loginId": "jane@acme.com"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Login ID and password are required", env.Message)
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	reg := s.registerAcme(t)

	rec, env := s.do(t, http.MethodGet, "/api/auth/me", nil, reg.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var user domain.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, reg.User.ID, user.ID)
	assert.Equal(t, "Acme Corp", user.Company.Name)

	rec, _ = s.do(t, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/auth/me", nil, reg.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	s := newTestServer(t)
	reg := s.registerAcme(t)

	rec, env := s.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": reg.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data["accessToken"])

	rec, env = s.do(t, http.MethodPost, "/api/auth/logout", nil, reg.RefreshToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", env.Message)

	rec, env = s.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": reg.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Refresh token expired or invalid", env.Message)

	rec, env = s.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid refresh token", env.Message)
}

func TestAdminListUsers(t *testing.T) {
	s := newTestServer(t)
	reg := s.registerAcme(t)
	s.addEmployee(t, reg.User)

	rec, env := s.do(t, http.MethodGet, "/api/admin/users", nil, reg.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []*domain.User
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 2)
	assert.Equal(t, johnUserID, users[0].ID)
	assert.NotContains(t, string(env.Data), "$2a$")

	// 普通员工没有权限
	_, login := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"loginId": "john@acme.com", "password": "employeePass1"}, "")
	var employee authData
	require.NoError(t, json.Unmarshal(login.Data, &employee))

	rec, env = s.do(t, http.MethodGet, "/api/admin/users", nil, employee.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", env.Error)

	rec, _ = s.do(t, http.MethodGet, "/api/admin/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminSendCredentials(t *testing.T) {
	s := newTestServer(t)
	reg := s.registerAcme(t)
	s.addEmployee(t, reg.User)

	otherCompany := "c-globex"
	s.store.PutUser(&domain.User{ID: hankUserID, Email: "hank@globex.com", CompanyID: &otherCompany},
		&domain.Company{ID: otherCompany, Name: "Globex", Code: "GL"})

	rec, env := s.do(t, http.MethodPost, "/api/admin/users/"+johnUserID+"/send-credentials", nil, reg.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var msg messageData
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "Login credentials sent successfully via email", msg.Message)
	assert.Len(t, s.store.ResetTokens(johnUserID), 1)

	rec, env = s.do(t, http.MethodPost, "/api/admin/users/"+hankUserID+"/send-credentials", nil, reg.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You can only send credentials to users in your company", env.Message)

	rec, env = s.do(t, http.MethodPost, "/api/admin/users/missing/send-credentials", nil, reg.AccessToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", env.Message)
}

func TestAdminUserRoutesRejectMalformedUserID(t *testing.T) {
	s := newTestServer(t)
	reg := s.registerAcme(t)

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/admin/users/not-a-uuid/send-credentials", nil},
		{http.MethodPut, "/api/admin/users/not-a-uuid/password", map[string]string{"password": "freshPass99"}},
		{http.MethodPost, "/api/admin/users/00000000-0000-4000-8000-000000000000/send-credentials", nil},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec, env := s.do(t, tt.method, tt.path, tt.body, reg.AccessToken)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "Not Found", env.Error)
			assert.Equal(t, "User not found", env.Message)
		})
	}
}

func TestAdminUpdatePassword(t *testing.T) {
	s := newTestServer(t)
	reg := s.registerAcme(t)
	s.addEmployee(t, reg.User)

	rec, env := s.do(t, http.MethodPut, "/api/admin/users/"+johnUserID+"/password", map[string]string{"password": "short"}, reg.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password must be at least 8 characters long", env.Message)

	rec, _ = s.do(t, http.MethodPut, "/api/admin/users/"+johnUserID+"/password", map[string]string{"password": "freshPass99"}, reg.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"loginId": "ACJOSM20240001", "password": "freshPass99"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestForgotAndResetPassword(t *testing.T) {
	s := newTestServer(t)
	s.registerAcme(t)

	rec, env := s.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email is a required field", env.Message)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "nobody@acme.com"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.notifier.tokens)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "jane@acme.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.notifier.tokens, 1)
	token := s.notifier.tokens[0]

	rec, _ = s.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "resetPass42"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "resetPass42"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Reset token is invalid or has expired", env.Message)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"loginId": "jane@acme.com", "password": "resetPass42"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouteNotFound(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/api/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", env.Message)
}

func TestRateLimitOnAuthRoutes(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.RateLimit.AuthRPM = 1 })

	body := map[string]string{"loginId": "nobody", "password": "whatever1"}
	rec, _ := s.do(t, http.MethodPost, "/api/auth/login", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := s.do(t, http.MethodPost, "/api/auth/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "error", env.Status)

	// 健康检查不受限流影响
	rec = httptest.NewRecorder()
	s.h.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.h.Mux.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverer(t *testing.T) {
	s := newTestServer(t)

	panicking := s.h.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	panicking.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "Internal Server Error", env.Error)
	assert.NotContains(t, rec.Body.String(), "boom")
}
