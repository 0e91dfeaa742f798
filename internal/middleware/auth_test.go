// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/coursegate/internal/audit"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

type stubVerifier map[string]principal.Principal

func (v stubVerifier) VerifyAccessToken(_ context.Context, token string) (principal.Principal, error) {
	switch token {
	case "expired":
		return principal.Principal{}, fmt.Errorf("verify: %w", core.ErrTokenExpired)
	case "garbage":
		return principal.Principal{}, fmt.Errorf("verify: %w", core.ErrTokenInvalid)
	}
	p, ok := v[token]
	if !ok {
		return principal.Principal{}, fmt.Errorf("verify: %w", core.ErrTokenInvalid)
	}
	return p, nil
}

var verifier = stubVerifier{
	"user-token":  principal.New("u1", principal.RoleUser),
	"admin-token": principal.New("a1", principal.RoleAdmin),
	"no-role":     {UserID: "u2"},
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(_ context.Context, e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) kinds() []audit.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Kind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(GetUserID(r.Context())))
})

func request(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticator(t *testing.T) {
	h := Authenticator(verifier)(echoUser)

	tests := []struct {
		name   string
		authz  string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic user-token", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired", "Bearer expired", http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"invalid", "Bearer garbage", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"unknown role", "Bearer no-role", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"valid", "Bearer user-token", http.StatusOK, "u1"},
		{"case insensitive scheme", "bearer user-token", http.StatusOK, "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(h, tt.authz)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	sink := &recordingSink{}
	h := Authenticator(verifier)(RequireAdmin(sink)(echoUser))

	rec := request(h, "Bearer admin-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sink.kinds())

	rec = request(h, "Bearer user-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, []audit.Kind{audit.KindAdminDenied}, sink.kinds())
	assert.Equal(t, "u1", sink.events[0].UserID)
	assert.Equal(t, "/v1/admin/stats", sink.events[0].Path)

	rec = request(RequireAdmin(sink)(echoUser), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrentPrincipal(t *testing.T) {
	rec := httptest.NewRecorder()
	_, ok := CurrentPrincipal(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(principal.WithContext(req.Context(), verifier["admin-token"]))
	rec = httptest.NewRecorder()
	p, ok := CurrentPrincipal(rec, req)
	require.True(t, ok)
	assert.True(t, p.IsAdmin())
}

type storedRoles map[string]principal.Role

func (s storedRoles) Provision(_ context.Context, p principal.Principal) (principal.Principal, error) {
	if p.UserID == "broken" {
		return principal.Principal{}, errors.New("db down")
	}
	role, ok := s[p.UserID]
	if !ok {
		role = p.Role
		s[p.UserID] = role
	}
	return principal.New(p.UserID, role), nil
}

func TestDemotedAdminLosesAdminRoutes(t *testing.T) {
	sink := &recordingSink{}
	roles := storedRoles{}
	h := Chain(Authenticator(verifier), Provision(roles), RequireAdmin(sink))(echoUser)

	rec := request(h, "Bearer admin-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, principal.RoleAdmin, roles["a1"], "first request seeds the row")

	roles["a1"] = principal.RoleUser

	rec = request(h, "Bearer admin-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, []audit.Kind{audit.KindAdminDenied}, sink.kinds())
	assert.Equal(t, "USER", sink.events[0].Detail["role"])
}

func TestProvisionRegistersUnknownSubject(t *testing.T) {
	roles := storedRoles{}
	h := Chain(Authenticator(verifier), Provision(roles))(echoUser)

	rec := request(h, "Bearer user-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
	assert.Equal(t, principal.RoleUser, roles["u1"])
}

func TestProvisionFailureIsServerError(t *testing.T) {
	v := stubVerifier{"t": principal.New("broken", principal.RoleUser)}
	h := Chain(Authenticator(v), Provision(storedRoles{}))(echoUser)

	rec := request(h, "Bearer t")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
