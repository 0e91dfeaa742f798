// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/coursegate/internal/config"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

const (
	accessTokenType = "access"
	clockSkew       = 30 * time.Second
)

// JWTManager verifies ES256 access tokens issued by the identity service.
// A manager built with NewJWTManager can also sign, which only the dev
// token tool and tests do.
type JWTManager struct {
	signKey   jwk.Key
	verifyKey jwk.Key
	keyID     string
	jwks      jwk.Set
	cfg       config.JWTConfig
}

func NewJWTVerifier(cfg config.JWTConfig) (*JWTManager, error) {
	public, err := readPEMKey(cfg.PublicKeyPath, "public")
	if err != nil {
		return nil, err
	}
	return newManager(nil, public, cfg)
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	private, err := readPEMKey(cfg.PrivateKeyPath, "private")
	if err != nil {
		return nil, err
	}
	public, err := private.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	return newManager(private, public, cfg)
}

func newManager(private, public jwk.Key, cfg config.JWTConfig) (*JWTManager, error) {
	kid, err := thumbprintID(public)
	if err != nil {
		return nil, err
	}

	if private != nil {
		if err := stampKey(private, map[string]any{
			jwk.AlgorithmKey: signingAlg,
			jwk.KeyIDKey:     kid,
		}); err != nil {
			return nil, err
		}
	}
	if err := stampKey(public, map[string]any{
		jwk.AlgorithmKey: signingAlg,
		jwk.KeyIDKey:     kid,
		jwk.KeyUsageKey:  "sig",
	}); err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(public); err != nil {
		return nil, fmt.Errorf("add key to set: %w", err)
	}

	return &JWTManager{
		signKey:   private,
		verifyKey: public,
		keyID:     kid,
		jwks:      set,
		cfg:       cfg,
	}, nil
}

func (m *JWTManager) KeyID() string {
	return m.keyID
}

func (m *JWTManager) CreateAccessToken(p principal.Principal) (string, error) {
	if m.signKey == nil {
		return "", errors.New("create access token: manager has no private key")
	}

	now := time.Now()
	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.cfg.Issuer).
		Audience([]string{m.cfg.Audience}).
		Subject(p.UserID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(m.cfg.AccessTokenExpire)).
		Claim("role", p.Role.String()).
		Claim("type", accessTokenType).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(signingAlg, m.signKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

func invalidToken(reason string) error {
	return fmt.Errorf("verify token: %s: %w", reason, core.ErrTokenInvalid)
}

// VerifyAccessToken checks signature, issuer, audience and lifetime, then
// maps the subject and role claims to a principal.
func (m *JWTManager) VerifyAccessToken(
	_ context.Context,
	raw string,
) (principal.Principal, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(signingAlg, m.verifyKey),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(m.cfg.Audience),
		jwt.WithAcceptableSkew(clockSkew),
	)
	if err != nil {
		if isExpired(err) {
			return principal.Principal{}, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return principal.Principal{}, invalidToken("parse")
	}

	var kind, roleClaim string
	if err := token.Get("type", &kind); err != nil || kind != accessTokenType {
		return principal.Principal{}, invalidToken("not an access token")
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return principal.Principal{}, invalidToken("missing subject")
	}

	if err := token.Get("role", &roleClaim); err != nil {
		return principal.Principal{}, invalidToken("missing role claim")
	}
	role, err := principal.ParseRole(roleClaim)
	if err != nil {
		return principal.Principal{}, invalidToken(fmt.Sprintf("unknown role %q", roleClaim))
	}

	return principal.New(subject, role), nil
}

func isExpired(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "exp") && strings.Contains(msg, "not satisfied")
}

// JWKSHandler serves the public half of the signing key.
func (m *JWTManager) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body, err := json.Marshal(m.jwks)
		if err != nil {
			core.JSONError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(body) //nolint:errcheck // best-effort response
	}
}
