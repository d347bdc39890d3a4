package model

import "time"

// Character is a named, user-owned set of 3-5 reference images used to bias
// image generation toward a consistent subject.
//
// ImageIDs are object-store references, never embedded bytes. Display URLs
// are time-limited and therefore resolved at read time, not stored here.
type Character struct {
	ID        string    `json:"id"        db:"id"`
	UserID    string    `json:"userId"    db:"user_id"`
	Name      string    `json:"name"      db:"name"`
	ImageIDs  []string  `json:"imageIds"  db:"image_ids"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// CharacterView is a Character with its image references resolved to
// display URLs for the client.
type CharacterView struct {
	Character
	ImageURLs []string `json:"imageUrls"`
}

// CharacterSummary is the compact shape returned by search, used to build
// @mention dropdowns. AvatarURL is the character's first reference image.
type CharacterSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// MinCharacterImages and MaxCharacterImages bound the reference set size.
const (
	MinCharacterImages = 3
	MaxCharacterImages = 5
)
