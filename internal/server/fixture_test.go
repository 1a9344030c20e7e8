package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sandwichproject/coordinator/internal/auth"
	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/metrics"
	"github.com/sandwichproject/coordinator/internal/storage"
	"github.com/sandwichproject/coordinator/internal/users"
	"go.uber.org/zap"
)

const (
	testSigningSecret = "test-signing-secret"
	testCookieName    = "app_session"
)

var errStoreDown = errors.New("store down")

type apiFixture struct {
	handler    http.Handler
	facade     *storage.Facade
	dispatcher *RealtimeDispatcher
	registry   *prometheus.Registry
}

type fixtureOptions struct {
	primary  func() (storage.Store, error)
	fallback storage.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	return newAPIFixtureWith(t, fixtureOptions{
		primary: func() (storage.Store, error) {
			return storage.NewMemoryStore(), nil
		},
	})
}

func newAPIFixtureWith(t *testing.T, options fixtureOptions) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		t.Fatalf("failed to register http metrics: %v", err)
	}
	facade := storage.NewFacade(storage.FacadeConfig{
		Primary:  options.primary,
		Fallback: options.fallback,
		Logger:   zap.NewNop(),
	})
	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("failed to construct session validator: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Directory: facade})
	if err != nil {
		t.Fatalf("failed to construct user service: %v", err)
	}
	dispatcher := NewRealtimeDispatcher()
	handler, err := NewHTTPHandler(Dependencies{
		Repository:        facade,
		Sessions:          sessions,
		Users:             userService,
		Realtime:          dispatcher,
		Metrics:           httpMetrics,
		Gatherer:          registry,
		HeartbeatInterval: time.Hour,
		Logger:            zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	return &apiFixture{handler: handler, facade: facade, dispatcher: dispatcher, registry: registry}
}

func mintSessionToken(t *testing.T, userID string, email string, roles ...string) string {
	t.Helper()
	now := time.Now()
	claims := auth.SessionClaims{
		UserID:          userID,
		UserEmail:       email,
		UserDisplayName: userID,
		UserRoles:       roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "sandwich-auth",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign session token: %v", err)
	}
	return signed
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(recorder.Body.Bytes(), &value); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return value
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, want int) {
	t.Helper()
	if recorder.Code != want {
		t.Fatalf("unexpected status: got %d, want %d (body %s)", recorder.Code, want, recorder.Body.String())
	}
}

// collectionOutage fails every collection listing while keeping the rest of
// the memory store usable.
type collectionOutage struct {
	*storage.MemoryStore
}

func (collectionOutage) GetAllSandwichCollections(context.Context) ([]collections.Collection, error) {
	return nil, errStoreDown
}

func pathFor(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

func newCookieRequest(method, path, token string) *http.Request {
	request := httptest.NewRequest(method, path, http.NoBody)
	if token != "" {
		request.AddCookie(&http.Cookie{Name: testCookieName, Value: token})
	}
	return request
}

func serve(handler http.Handler, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}
