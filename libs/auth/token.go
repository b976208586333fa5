// Package auth inspects the opaque session token issued by the booking backend.
// The portal never holds the signing secret, so nothing here verifies signatures:
// inspection only answers "who" and "until when" so expired sessions fail fast.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotJWT = errors.New("token is not a JWT")

// Claims mirrors what the backend signs: the user id under "id", plus optional registered claims.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

func Inspect(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return nil, ErrNotJWT
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, errors.Join(ErrNotJWT, err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return &claims, nil
}

// ExpiresAt returns the exp claim, or false for opaque tokens and tokens without exp.
func ExpiresAt(token string) (time.Time, bool) {
	claims, err := Inspect(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Usable reports whether token may be sent to the backend at now.
// Opaque tokens are always usable; the backend is the authority for them.
func Usable(token string, now time.Time) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	exp, ok := ExpiresAt(token)
	if !ok {
		return true
	}
	return now.Before(exp)
}

// Fingerprint is a short stable digest of token, safe to use as a map or cache key.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:8])
}
