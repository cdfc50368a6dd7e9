package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campass/campass-gateway/internal/share"
)

// SessionClaims are the claims carried by a share session token. The
// token is signed with the issuing share's own secret, never a global
// key: rotating or deleting one share cannot affect any other, and
// deleting a share invalidates all its outstanding tokens the moment the
// secret is gone from the store.
type SessionClaims struct {
	Slug string `json:"slug"`
	jwt.RegisteredClaims
}

// SecretLookup resolves the current signing secret for a slug. The ok
// form keeps "share absent" indistinguishable from "bad signature" at the
// API surface.
type SecretLookup func(slug string) ([]byte, bool)

var errInvalidToken = errors.New("invalid session token")

// IssueSessionToken mints an HS256 JWT for the share. Shares with the
// "never" duration get no expiry claim; everything else expires after the
// share's configured session duration.
func IssueSessionToken(sh share.Share) (string, error) {
	if len(sh.Secret) == 0 {
		return "", errors.New("share has no signing secret")
	}

	now := time.Now()
	claims := SessionClaims{
		Slug: sh.Slug,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sh.Slug,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if ttl, ok := share.SessionTTL(sh.Duration); ok {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(sh.Secret)
}

// ParseSessionToken validates a session token. Claims are parsed but not
// trusted until the signature verifies against the secret the lookup
// returns for the claimed slug. Any malformed input yields an error, never
// a panic - this boundary sees attacker-controlled bytes.
func ParseSessionToken(tokenString string, lookup SecretLookup) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, errInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		claims, ok := t.Claims.(*SessionClaims)
		if !ok || claims.Slug == "" {
			return nil, errInvalidToken
		}
		secret, ok := lookup(claims.Slug)
		if !ok || len(secret) == 0 {
			return nil, errInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}
