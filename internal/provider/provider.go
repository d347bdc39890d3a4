// Package provider holds the external AI boundaries: a vision model that
// describes images and two interchangeable image-generation backends.
//
// Both backends are normalized to "bytes or error" behind ImageProvider;
// the orchestrator never sees their different response shapes (OpenAI
// returns a fetchable URL, Gemini returns inline bytes).
package provider

import "context"

// VisionDescriber turns an image URL plus a text instruction into a
// free-text description. Implementations must tolerate empty responses —
// callers treat an empty string as "no description available".
type VisionDescriber interface {
	Describe(ctx context.Context, imageURL, instruction string) (string, error)
}

// Image is a generated image normalized to a single binary blob.
type Image struct {
	Data     []byte
	MimeType string
}

// ImageProvider is one selectable image-generation backend.
type ImageProvider interface {
	// Generate produces an image for the prompt, at a fixed square
	// resolution. A provider with no usable image data returns an error
	// carrying its own detail.
	Generate(ctx context.Context, prompt string) (*Image, error)

	// MaxPromptLength is the backend's hard prompt cap in characters,
	// or 0 when the backend imposes none. Checked by the orchestrator
	// before the billable call.
	MaxPromptLength() int
}
