package model

import "time"

// ModelType selects the image-generation backend for a request.
type ModelType string

const (
	ModelDALLE  ModelType = "dall-e-3"
	ModelGemini ModelType = "gemini"
)

// Valid reports whether the model type names a supported backend.
func (m ModelType) Valid() bool {
	return m == ModelDALLE || m == ModelGemini
}

// CharacterMention is a @name-style reference to a Character inside a
// prompt. The name is denormalized — a snapshot taken at generation time —
// so history still renders correctly if the character is later renamed
// or deleted.
type CharacterMention struct {
	CharacterID   string `json:"characterId"`
	CharacterName string `json:"characterName"`
}

// Generation is one completed image-creation request and its stored result.
// Records are append-only: they are created once and never updated or
// deleted by application code.
//
// Prompt holds the user's original text, not the vision-augmented prompt
// that was sent to the provider.
type Generation struct {
	ID                string             `json:"id"                db:"id"`
	UserID            string             `json:"userId"            db:"user_id"`
	Prompt            string             `json:"prompt"            db:"prompt"`
	CharacterMentions []CharacterMention `json:"characterMentions" db:"character_mentions"`
	ReferenceImageID  string             `json:"referenceImageId,omitempty" db:"reference_image_id"`
	GeneratedImageID  string             `json:"generatedImageId"  db:"generated_image_id"`
	Model             ModelType          `json:"model"             db:"model"`
	CreatedAt         time.Time          `json:"createdAt"         db:"created_at"`
}

// GenerationView is a Generation with its object-store references resolved
// to time-limited display URLs.
type GenerationView struct {
	Generation
	ReferenceImageURL string `json:"referenceImageUrl,omitempty"`
	GeneratedImageURL string `json:"generatedImageUrl"`
}
