package models

import "time"

// VaultImage is a gallery record pointing at a carrier image that holds a
// vault. The SHA256 of the file at registration time detects replacement
// or accidental re-encoding, either of which destroys the payload.
type VaultImage struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Label     string    `json:"label"`
	SHA256    string    `json:"sha256"`
	Format    string    `json:"format"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Capacity  int       `json:"capacity"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
