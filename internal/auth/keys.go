// AngelaMos | 2026
// keys.go

package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

func readPEMKey(path, what string) (jwk.Key, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s key: %w", what, err)
	}
	key, err := jwk.ParseKey(raw, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse %s key: %w", what, err)
	}
	return key, nil
}

// thumbprintID derives the key id from the public key so every instance
// sharing a key advertises the same kid.
func thumbprintID(key jwk.Key) (string, error) {
	tp, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(tp)[:16], nil
}

func stampKey(key jwk.Key, fields map[string]any) error {
	for name, v := range fields {
		if err := key.Set(name, v); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

// GenerateKeyPair writes a fresh P-256 key pair as PEM. The private key is
// readable by the owner only.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	private, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}
	public, err := private.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	if err := writePEM(privateKeyPath, private, 0o600); err != nil {
		return err
	}
	return writePEM(publicKeyPath, public, 0o644)
}

func writePEM(path string, key jwk.Key, mode os.FileMode) error {
	pem, err := jwk.Pem(key)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	//nolint:gosec // G306: mode is chosen per key by the caller
	if err := os.WriteFile(path, pem, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var signingAlg = jwa.ES256()
