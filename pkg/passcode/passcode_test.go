// Package passcode tests cover hashing/verification and shape rules.
package passcode

import (
	"strings"
	"testing"
)

// TestHashAndVerify validates positive and negative passcode checks.
func TestHashAndVerify(t *testing.T) {
	h, err := Hash("1234")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(h, "argon2id$") {
		t.Fatalf("expected PHC-style hash, got %q", h)
	}
	if strings.Contains(h, "1234") {
		t.Fatalf("hash must not contain the plaintext passcode")
	}

	ok, err := Verify("1234", h)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected passcode to verify")
	}

	ok, err = Verify("4321", h)
	if err != nil {
		t.Fatalf("Verify(wrong): %v", err)
	}
	if ok {
		t.Fatalf("expected wrong passcode to fail")
	}
}

// TestHashIsSalted ensures two hashes of the same passcode differ.
func TestHashIsSalted(t *testing.T) {
	a, err := Hash("123456")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash("123456")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct salts to produce distinct hashes")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"plaintext",
		"argon2id$v=19$m=65536,t=3$short",
		"md5$v=19$m=65536,t=3,p=4$AAAA$BBBB",
		"argon2id$v=1$m=65536,t=3,p=4$AAAA$BBBB",
	} {
		if ok, err := Verify("1234", encoded); ok {
			t.Fatalf("Verify(%q) accepted malformed hash (err=%v)", encoded, err)
		}
	}

	// Empty inputs fail closed without error.
	if ok, err := Verify("", "x"); ok || err != nil {
		t.Fatalf("Verify with empty passcode: ok=%v err=%v", ok, err)
	}
	if ok, err := Verify("x", ""); ok || err != nil {
		t.Fatalf("Verify with empty hash: ok=%v err=%v", ok, err)
	}
}

func TestValidateShape(t *testing.T) {
	cases := []struct {
		passcode string
		authType string
		wantErr  bool
	}{
		{"1234", AuthTypePin4, false},
		{"123", AuthTypePin4, true},
		{"12345", AuthTypePin4, true},
		{"12a4", AuthTypePin4, true},
		{"123456", AuthTypePin6, false},
		{"1234", AuthTypePin6, true},
		{"hunter2", AuthTypeAlphanumeric, false},
		{"abc", AuthTypeAlphanumeric, true},
		{strings.Repeat("a", 33), AuthTypeAlphanumeric, true},
		{"with space", AuthTypeAlphanumeric, true},
		{"1234", "magic-link", true},
	}
	for _, tc := range cases {
		err := ValidateShape(tc.passcode, tc.authType)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ValidateShape(%q, %q) = %v, wantErr=%v", tc.passcode, tc.authType, err, tc.wantErr)
		}
	}
}
