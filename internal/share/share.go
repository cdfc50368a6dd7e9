// Package share owns the share definitions: the slug-keyed set of
// camera-access grants the gateway exposes. The in-memory store is the
// runtime source of truth; the optional Postgres persistence hydrates it
// at startup and mirrors mutations.
package share

import (
	"time"
)

// Session duration keys, per share. "never" issues tokens without an
// expiry claim.
const (
	Duration1h    = "1h"
	Duration24h   = "24h"
	Duration7d    = "7d"
	Duration30d   = "30d"
	Duration1y    = "1y"
	DurationNever = "never"

	DefaultDuration = Duration24h
)

var sessionDurations = map[string]time.Duration{
	Duration1h:  time.Hour,
	Duration24h: 24 * time.Hour,
	Duration7d:  7 * 24 * time.Hour,
	Duration30d: 30 * 24 * time.Hour,
	Duration1y:  365 * 24 * time.Hour,
}

// SessionTTL resolves a duration key. ok=false with zero duration means
// "never expires".
func SessionTTL(key string) (time.Duration, bool) {
	d, ok := sessionDurations[key]
	return d, ok
}

// ValidDuration reports whether the duration key is a known option.
func ValidDuration(key string) bool {
	if key == DurationNever {
		return true
	}
	_, ok := sessionDurations[key]
	return ok
}

// Share is one configured camera-access grant.
type Share struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	AuthType     string    `json:"auth_type"`
	PasscodeHash string    `json:"-"`
	Secret       []byte    `json:"-"`
	Cameras      []string  `json:"cameras"`
	Duration     string    `json:"session_duration"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Allows reports whether the camera identifier is in the share's whitelist.
func (s *Share) Allows(cameraID string) bool {
	for _, id := range s.Cameras {
		if id == cameraID {
			return true
		}
	}
	return false
}

// clone returns a deep copy so store readers never alias store-owned slices.
func (s *Share) clone() Share {
	out := *s
	out.Cameras = append([]string(nil), s.Cameras...)
	out.Secret = append([]byte(nil), s.Secret...)
	return out
}
