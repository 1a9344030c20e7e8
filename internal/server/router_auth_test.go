package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sandwichproject/coordinator/internal/auth"
	"github.com/sandwichproject/coordinator/internal/users"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/api/me", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionVerifier{err: auth.ErrExpiredSessionToken},
		users:    &stubUserDirectory{},
		logger:   zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "session validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredSessionToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/api/me", http.NoBody)
	request.Header.Set("Authorization", "Bearer invalid-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionVerifier{err: auth.ErrInvalidSessionToken},
		users:    &stubUserDirectory{},
		logger:   zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entries[0].Level)
	}
}

func TestAuthorizeRequestMapsUserResolutionErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testCases := []struct {
		name       string
		resolveErr error
		wantStatus int
	}{
		{name: "inactive", resolveErr: users.ErrInactiveUser, wantStatus: http.StatusForbidden},
		{name: "identity", resolveErr: users.ErrInvalidIdentity, wantStatus: http.StatusUnauthorized},
		{name: "unexpected", resolveErr: errors.New("directory offline"), wantStatus: http.StatusInternalServerError},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(recorder)
			ctx.Request = httptest.NewRequest(http.MethodGet, "/api/me", http.NoBody)

			handler := &httpHandler{
				sessions: stubSessionVerifier{claims: auth.SessionClaims{UserID: "user-1"}},
				users:    &stubUserDirectory{resolveErr: testCase.resolveErr},
				logger:   zap.NewNop(),
			}
			handler.authorizeRequest(ctx)

			if recorder.Code != testCase.wantStatus {
				t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, testCase.wantStatus)
			}
			if !ctx.IsAborted() {
				t.Fatal("expected the request chain to be aborted")
			}
		})
	}
}

func TestRequirePermissionUsesExplicitGrants(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodDelete, "/api/hosts/1", http.NoBody)
	ctx.Set(userContextKey, users.User{ID: "u", Role: auth.RoleVolunteer, Permissions: users.PermissionList{"delete_data"}})

	requirePermission(auth.PermissionDeleteData)(ctx)
	if ctx.IsAborted() {
		t.Fatalf("expected explicit grant to allow the request, got %d", recorder.Code)
	}

	requirePermission(auth.PermissionEditData)(ctx)
	if !ctx.IsAborted() || recorder.Code != http.StatusForbidden {
		t.Fatalf("expected explicit grants to replace role defaults, got %d", recorder.Code)
	}
}

type stubSessionVerifier struct {
	claims auth.SessionClaims
	err    error
}

func (s stubSessionVerifier) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	return s.claims, s.err
}

type stubUserDirectory struct {
	resolveErr error
}

func (s *stubUserDirectory) Resolve(context.Context, auth.SessionClaims) (users.User, error) {
	return users.User{}, s.resolveErr
}

func (s *stubUserDirectory) List(context.Context) ([]users.User, error) {
	return nil, nil
}

func (s *stubUserDirectory) UpdateRole(context.Context, string, string) (users.User, error) {
	return users.User{}, users.ErrUserNotFound
}

func (s *stubUserDirectory) SetActive(context.Context, string, bool) (users.User, error) {
	return users.User{}, users.ErrUserNotFound
}
