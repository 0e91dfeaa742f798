// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/coursegate/internal/config"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

func testJWTConfig(t *testing.T) config.JWTConfig {
	t.Helper()

	dir := t.TempDir()
	cfg := config.JWTConfig{
		PrivateKeyPath:    filepath.Join(dir, "private.pem"),
		PublicKeyPath:     filepath.Join(dir, "public.pem"),
		AccessTokenExpire: 5 * time.Minute,
		Issuer:            "coursegate",
		Audience:          "coursegate-api",
	}
	require.NoError(t, GenerateKeyPair(cfg.PrivateKeyPath, cfg.PublicKeyPath))

	return cfg
}

func TestSignAndVerify(t *testing.T) {
	cfg := testJWTConfig(t)

	signer, err := NewJWTManager(cfg)
	require.NoError(t, err)

	token, err := signer.CreateAccessToken(principal.New("user-1", principal.RoleAdmin))
	require.NoError(t, err)

	verifier, err := NewJWTVerifier(cfg)
	require.NoError(t, err)
	assert.Equal(t, signer.KeyID(), verifier.KeyID())

	p, err := verifier.VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, principal.RoleAdmin, p.Role)
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	cfg := testJWTConfig(t)

	signer, err := NewJWTManager(cfg)
	require.NoError(t, err)

	token, err := signer.CreateAccessToken(principal.New("user-1", principal.RoleUser))
	require.NoError(t, err)

	other := cfg
	other.Audience = "someone-else"
	verifier, err := NewJWTVerifier(other)
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyRejectsExpired(t *testing.T) {
	cfg := testJWTConfig(t)
	cfg.AccessTokenExpire = -time.Minute

	signer, err := NewJWTManager(cfg)
	require.NoError(t, err)

	token, err := signer.CreateAccessToken(principal.New("user-1", principal.RoleUser))
	require.NoError(t, err)

	_, err = signer.VerifyAccessToken(context.Background(), token)
	require.Error(t, err)
	assert.True(t,
		errors.Is(err, core.ErrTokenExpired) || errors.Is(err, core.ErrTokenInvalid))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	verifier, err := NewJWTVerifier(testJWTConfig(t))
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifierCannotSign(t *testing.T) {
	verifier, err := NewJWTVerifier(testJWTConfig(t))
	require.NoError(t, err)

	_, err = verifier.CreateAccessToken(principal.New("u", principal.RoleUser))
	assert.Error(t, err)
}

func TestJWKSHandler(t *testing.T) {
	verifier, err := NewJWTVerifier(testJWTConfig(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	verifier.JWKSHandler()(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var set struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, verifier.KeyID(), set.Keys[0]["kid"])
	assert.Nil(t, set.Keys[0]["d"])
}
