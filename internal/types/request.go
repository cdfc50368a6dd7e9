package types

// RequestAuth carries the passcode submitted on the PIN page.
type RequestAuth struct {
	Passcode string `json:"passcode"`
}

// RequestCreateShare is the admin payload for creating a share. Slug is
// optional; it is derived from the name when absent.
type RequestCreateShare struct {
	Name            string   `json:"name"`
	Slug            string   `json:"slug,omitempty"`
	AuthType        string   `json:"auth_type"`
	Passcode        string   `json:"passcode"`
	Cameras         []string `json:"cameras"`
	SessionDuration string   `json:"session_duration,omitempty"`
}

// RequestUpdateShare is the admin payload for updating a share in place.
// Nil fields are left unchanged. Slug is immutable: renaming a share is
// delete-then-create, which deliberately rotates the signing secret.
type RequestUpdateShare struct {
	Name            *string  `json:"name,omitempty"`
	AuthType        *string  `json:"auth_type,omitempty"`
	Passcode        *string  `json:"passcode,omitempty"`
	Cameras         []string `json:"cameras,omitempty"`
	SessionDuration *string  `json:"session_duration,omitempty"`
}

// RequestSetEnabled flips a share's runtime gate.
type RequestSetEnabled struct {
	Enabled *bool `json:"enabled"`
}
