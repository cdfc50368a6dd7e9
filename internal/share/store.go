package share

import (
	"errors"
	"sort"
	"sync"

	"github.com/campass/campass-gateway/pkg/passcode"
	"github.com/campass/campass-gateway/pkg/validation"
)

// ErrNotFound is returned when no share exists for a slug.
var ErrNotFound = errors.New("share not found")

// ErrExists is returned by Create when the slug is already taken.
var ErrExists = errors.New("share already exists")

// Store holds all configured shares, keyed by slug. Mutations are atomic
// with respect to concurrent readers: values are copied in and out, so a
// reader never observes a half-written share.
type Store struct {
	mu     sync.RWMutex
	shares map[string]Share
}

func NewStore() *Store {
	return &Store{
		shares: make(map[string]Share),
	}
}

// Get returns a copy of the share for slug.
func (s *Store) Get(slug string) (Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shares[slug]
	if !ok {
		return Share{}, ErrNotFound
	}
	return sh.clone(), nil
}

// Exists reports whether a share is configured for slug.
func (s *Store) Exists(slug string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.shares[slug]
	return ok
}

// Secret returns the signing secret for slug. The ok form suits token
// verification, where absence must not be an error path that differs from
// a bad signature.
func (s *Store) Secret(slug string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shares[slug]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), sh.Secret...), true
}

// List returns copies of all shares, ordered by slug.
func (s *Store) List() []Share {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Share, 0, len(s.shares))
	for _, sh := range s.shares {
		out = append(out, sh.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Count returns the number of configured shares.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shares)
}

// Upsert validates and stores a share. The passcode must already be
// hashed; shape validation of the plaintext happens where the plaintext
// exists (admin create/update).
func (s *Store) Upsert(sh Share) error {
	if err := Validate(&sh); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[sh.Slug] = sh.clone()
	return nil
}

// Create validates and stores a new share. The existence check and the
// insert happen under one lock, so two concurrent creates for the same
// slug cannot both succeed and silently swap secrets.
func (s *Store) Create(sh Share) error {
	if err := Validate(&sh); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shares[sh.Slug]; ok {
		return ErrExists
	}
	s.shares[sh.Slug] = sh.clone()
	return nil
}

// Delete removes the share for slug. Deleting drops the signing secret,
// which invalidates every outstanding session token for the share.
func (s *Store) Delete(slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shares[slug]; !ok {
		return ErrNotFound
	}
	delete(s.shares, slug)
	return nil
}

// Validate checks the structural invariants every stored share must hold.
func Validate(sh *Share) error {
	if err := validation.ValidateSlug(sh.Slug); err != nil {
		return err
	}
	if sh.Name == "" {
		return errors.New("name is required")
	}
	if !passcode.ValidAuthType(sh.AuthType) {
		return errors.New("unknown auth type: " + sh.AuthType)
	}
	if sh.PasscodeHash == "" {
		return errors.New("passcode hash is required")
	}
	if len(sh.Secret) < 32 {
		return errors.New("signing secret must be at least 32 bytes")
	}
	if len(sh.Cameras) == 0 {
		return errors.New("camera whitelist must not be empty")
	}
	for _, cameraID := range sh.Cameras {
		if err := validation.ValidateCameraID(cameraID); err != nil {
			return err
		}
	}
	if sh.Duration == "" {
		sh.Duration = DefaultDuration
	}
	if !ValidDuration(sh.Duration) {
		return errors.New("unknown session duration: " + sh.Duration)
	}
	return nil
}
