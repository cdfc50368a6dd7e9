package validation

import (
	"strings"
	"testing"
)

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		wantErr bool
	}{
		{"simple", "guest", false},
		{"with digits and dashes", "side-door-2", false},
		{"empty", "", true},
		{"uppercase", "Guest", true},
		{"spaces", "front door", true},
		{"too long", strings.Repeat("a", 33), true},
		{"reserved admin", "admin", true},
		{"reserved docs", "docs", true},
		{"reserved api", "api", true},
		{"reserved as prefix is fine", "admin-cottage", false},
	}
	for _, tc := range tests {
		err := ValidateSlug(tc.slug)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: ValidateSlug(%q) = %v, wantErr %v", tc.name, tc.slug, err, tc.wantErr)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Weekend Guests", "weekend-guests"},
		{"  Side   Door  ", "side-door"},
		{"Café #2", "caf-2"},
		{"___", ""},
		{strings.Repeat("long name ", 10), "long-name-long-name-long-name-lo"},
	}
	for _, tc := range tests {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateCameraID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"camera.front_door", false},
		{"camera.back2", false},
		{"", true},
		{"frontdoor", true},
		{"camera.front.door", true},
		{"Camera.Front", true},
	}
	for _, tc := range tests {
		err := ValidateCameraID(tc.id)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ValidateCameraID(%q) = %v, wantErr %v", tc.id, err, tc.wantErr)
		}
	}
}
