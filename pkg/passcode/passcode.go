// Package passcode stores and verifies share passcodes. Passcodes are
// never kept in plain text: they are hashed with Argon2id and encoded as a
// PHC-style string, and verification is constant-time with respect to the
// stored hash.
package passcode

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Auth types determine the accepted passcode shape.
const (
	AuthTypePin4         = "pin4"
	AuthTypePin6         = "pin6"
	AuthTypeAlphanumeric = "alphanumeric"
)

var (
	pin4Pattern = regexp.MustCompile(`^\d{4}$`)
	pin6Pattern = regexp.MustCompile(`^\d{6}$`)
)

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLen     uint32
	keyLen      uint32
}

func defaultParams() argon2Params {
	return argon2Params{
		memory:      64 * 1024,
		iterations:  3,
		parallelism: 4,
		saltLen:     16,
		keyLen:      32,
	}
}

// ValidAuthType reports whether the auth type enum value is known.
func ValidAuthType(authType string) bool {
	switch authType {
	case AuthTypePin4, AuthTypePin6, AuthTypeAlphanumeric:
		return true
	}
	return false
}

// ValidateShape checks a plaintext passcode against the shape its auth
// type demands: pin4 exactly 4 digits, pin6 exactly 6 digits,
// alphanumeric 4-32 printable characters.
func ValidateShape(passcode, authType string) error {
	switch authType {
	case AuthTypePin4:
		if !pin4Pattern.MatchString(passcode) {
			return errors.New("passcode must be exactly 4 digits")
		}
	case AuthTypePin6:
		if !pin6Pattern.MatchString(passcode) {
			return errors.New("passcode must be exactly 6 digits")
		}
	case AuthTypeAlphanumeric:
		if len(passcode) < 4 || len(passcode) > 32 {
			return errors.New("passcode must be 4 to 32 characters")
		}
		for _, r := range passcode {
			if r < 0x21 || r > 0x7e {
				return errors.New("passcode must contain printable characters only")
			}
		}
	default:
		return errors.New("unknown auth type: " + authType)
	}
	return nil
}

// Hash returns a PHC-style Argon2id string.
// Format: argon2id$v=19$m=65536,t=3,p=4$<salt_b64>$<hash_b64>
func Hash(passcode string) (string, error) {
	if passcode == "" {
		return "", errors.New("passcode is required")
	}
	p := defaultParams()
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	h := argon2.IDKey([]byte(passcode), salt, p.iterations, p.memory, p.parallelism, p.keyLen)
	enc := base64.RawStdEncoding
	return fmt.Sprintf(
		"argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory,
		p.iterations,
		p.parallelism,
		enc.EncodeToString(salt),
		enc.EncodeToString(h),
	), nil
}

// Verify reports whether the submitted passcode matches the stored PHC
// string. Comparison of the derived keys is constant-time.
func Verify(submitted, encoded string) (bool, error) {
	if submitted == "" || encoded == "" {
		return false, nil
	}
	p, salt, want, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(submitted), salt, p.iterations, p.memory, p.parallelism, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) == 1 {
		return true, nil
	}
	return false, nil
}

func parsePHC(s string) (argon2Params, []byte, []byte, error) {
	// argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
	parts := strings.Split(s, "$")
	if len(parts) != 5 {
		return argon2Params{}, nil, nil, errors.New("invalid passcode hash format")
	}
	if parts[0] != "argon2id" {
		return argon2Params{}, nil, nil, errors.New("unsupported passcode hash algorithm")
	}
	if !strings.HasPrefix(parts[1], "v=") {
		return argon2Params{}, nil, nil, errors.New("invalid argon2 version")
	}
	ver, err := strconv.Atoi(strings.TrimPrefix(parts[1], "v="))
	if err != nil || ver != argon2.Version {
		return argon2Params{}, nil, nil, errors.New("unsupported argon2 version")
	}

	var p argon2Params
	for _, kv := range strings.Split(parts[2], ",") {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 {
			return argon2Params{}, nil, nil, errors.New("invalid argon2 parameters")
		}
		switch pair[0] {
		case "m":
			v, err := strconv.ParseUint(pair[1], 10, 32)
			if err != nil {
				return argon2Params{}, nil, nil, errors.New("invalid argon2 memory")
			}
			p.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(pair[1], 10, 32)
			if err != nil {
				return argon2Params{}, nil, nil, errors.New("invalid argon2 iterations")
			}
			p.iterations = uint32(v)
		case "p":
			v, err := strconv.ParseUint(pair[1], 10, 8)
			if err != nil {
				return argon2Params{}, nil, nil, errors.New("invalid argon2 parallelism")
			}
			p.parallelism = uint8(v)
		default:
			return argon2Params{}, nil, nil, errors.New("unknown argon2 parameter")
		}
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[3])
	if err != nil {
		return argon2Params{}, nil, nil, errors.New("invalid argon2 salt")
	}
	hash, err := enc.DecodeString(parts[4])
	if err != nil {
		return argon2Params{}, nil, nil, errors.New("invalid argon2 hash")
	}
	if len(hash) < 16 {
		return argon2Params{}, nil, nil, errors.New("invalid argon2 hash length")
	}
	return p, salt, hash, nil
}
