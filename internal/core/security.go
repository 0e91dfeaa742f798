// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
)

const accessCodeGroupLen = 4

var accessCodeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateAccessCode returns a human-typeable code such as
// "K3QZ-7PMA-2XVD-HT4B". Only its HashToken digest is stored.
func GenerateAccessCode(groups int) (string, error) {
	if groups < 1 {
		groups = 1
	}

	needed := groups * accessCodeGroupLen
	bytes := make([]byte, (needed*5+7)/8)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}

	raw := accessCodeEncoding.EncodeToString(bytes)[:needed]

	parts := make([]string, 0, groups)
	for i := 0; i < needed; i += accessCodeGroupLen {
		parts = append(parts, raw[i:i+accessCodeGroupLen])
	}

	return strings.Join(parts, "-"), nil
}

// NormalizeAccessCode makes user input comparable with a generated code.
func NormalizeAccessCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, " ", "")
	return strings.ReplaceAll(code, "-", "")
}

// HashToken is the stored lookup key for a secret.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
