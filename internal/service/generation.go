package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/martinbavio/photalabs/internal/apperror"
	"github.com/martinbavio/photalabs/internal/model"
	"github.com/martinbavio/photalabs/internal/provider"
	"github.com/martinbavio/photalabs/internal/repository"
	"github.com/martinbavio/photalabs/internal/storage"
)

// Vision prompt templates. The character template forces descriptions into
// "<Name> is ..." form so they read naturally when spliced into the final
// prompt; the style template keeps reference descriptions compact.
const (
	characterDescribeTemplate = "Describe the physical appearance of the person or subject in this image. Start with '%s is' and keep it under 50 words."
	styleDescribeTemplate     = "Describe the visual style, color palette, and mood of this image in under 100 words."
)

// GenerateRequest is one image-creation request as the service sees it.
// CharacterIDs are the @mentions in prompt order; ReferenceImageID is an
// optional style reference already in the object store.
type GenerateRequest struct {
	Prompt           string
	Model            model.ModelType
	CharacterIDs     []string
	ReferenceImageID string
}

// GenerateResult is the outcome of a successful generation.
type GenerateResult struct {
	Generation        *model.Generation `json:"generation"`
	GeneratedImageURL string            `json:"generatedImageUrl"`
	CreditsRemaining  int               `json:"creditsRemaining"`
}

// GenerationService orchestrates image generation: credit reservation,
// vision-model prompt enrichment, the backend call, and persistence.
type GenerationService struct {
	generations repository.GenerationRepository
	characters  repository.CharacterRepository
	credits     *CreditService
	store       storage.ObjectStore
	vision      provider.VisionDescriber
	dalle       provider.ImageProvider
	gemini      provider.ImageProvider
	logger      *slog.Logger
}

func NewGenerationService(
	generations repository.GenerationRepository,
	characters repository.CharacterRepository,
	credits *CreditService,
	store storage.ObjectStore,
	vision provider.VisionDescriber,
	dalle provider.ImageProvider,
	gemini provider.ImageProvider,
	logger *slog.Logger,
) *GenerationService {
	return &GenerationService{
		generations: generations,
		characters:  characters,
		credits:     credits,
		store:       store,
		vision:      vision,
		dalle:       dalle,
		gemini:      gemini,
		logger:      logger,
	}
}

// Generate runs the full pipeline for one request.
//
// A credit is reserved up front and refunded if anything later fails;
// once the generation record is written the credit is spent for good.
// Vision enrichment is best-effort — a character whose image cannot be
// described is dropped from the prompt rather than failing the request.
func (s *GenerationService) Generate(ctx context.Context, userID string, req GenerateRequest) (*GenerateResult, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated()
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, apperror.ValidationFailed("prompt", "prompt is required")
	}
	if !req.Model.Valid() {
		return nil, apperror.ValidationFailed("model", fmt.Sprintf("unknown model %q", req.Model))
	}

	backend, err := s.providerFor(req.Model)
	if err != nil {
		return nil, err
	}
	needsVision := len(req.CharacterIDs) > 0 || req.ReferenceImageID != ""
	if needsVision && s.vision == nil {
		return nil, apperror.ProviderNotConfigured("vision")
	}

	// Resolve mentions before spending anything. The name snapshot taken
	// here is what history renders even if the character is later deleted.
	mentions := make([]model.CharacterMention, 0, len(req.CharacterIDs))
	characters := make([]*model.Character, 0, len(req.CharacterIDs))
	for _, id := range req.CharacterIDs {
		character, err := s.characters.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		mentions = append(mentions, model.CharacterMention{
			CharacterID:   character.ID,
			CharacterName: character.Name,
		})
		characters = append(characters, character)
	}

	balance, err := s.credits.Reserve(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Refund on any failure between reservation and persistence.
	persisted := false
	defer func() {
		if !persisted {
			if _, refundErr := s.credits.Refund(context.WithoutCancel(ctx), userID); refundErr != nil {
				s.logger.Error("failed to refund credit",
					slog.String("userID", userID),
					slog.String("error", refundErr.Error()),
				)
			}
		}
	}()

	finalPrompt := s.composePrompt(ctx, req, characters)

	// The backend cap counts characters, not bytes.
	if limit := backend.MaxPromptLength(); limit > 0 {
		if n := utf8.RuneCountInString(finalPrompt); n > limit {
			return nil, apperror.ValidationFailed("prompt",
				fmt.Sprintf("final prompt is %d characters, exceeding the %d character limit", n, limit))
		}
	}

	image, err := backend.Generate(ctx, finalPrompt)
	if err != nil {
		s.logger.Error("image generation failed",
			slog.String("userID", userID),
			slog.String("model", string(req.Model)),
			slog.String("error", err.Error()),
		)
		return nil, apperror.GenerationFailed(err.Error())
	}

	storageID, err := s.store.Store(ctx, image.Data, image.MimeType)
	if err != nil {
		return nil, fmt.Errorf("storing generated image: %w", err)
	}

	generation := &model.Generation{
		UserID:            userID,
		Prompt:            req.Prompt,
		CharacterMentions: mentions,
		ReferenceImageID:  req.ReferenceImageID,
		GeneratedImageID:  storageID,
		Model:             req.Model,
	}
	if err := s.generations.Create(ctx, generation); err != nil {
		// The blob has no record pointing at it; clean it up best-effort.
		if delErr := s.store.Delete(context.WithoutCancel(ctx), storageID); delErr != nil {
			s.logger.Warn("failed to delete unrecorded generated image",
				slog.String("storageID", storageID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("recording generation: %w", err)
	}
	persisted = true

	imageURL, err := s.store.GetURL(ctx, storageID)
	if err != nil {
		// The record is already written; return it without a display URL
		// rather than failing the whole request.
		s.logger.Warn("failed to resolve generated image URL",
			slog.String("generationID", generation.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("generation completed",
		slog.String("id", generation.ID),
		slog.String("userID", userID),
		slog.String("model", string(req.Model)),
		slog.Int("mentions", len(mentions)),
		slog.Int("creditsRemaining", balance),
	)

	return &GenerateResult{
		Generation:        generation,
		GeneratedImageURL: imageURL,
		CreditsRemaining:  balance,
	}, nil
}

// composePrompt splices vision-model descriptions into the user's prompt:
// character context first, then the optional style reference.
func (s *GenerationService) composePrompt(ctx context.Context, req GenerateRequest, characters []*model.Character) string {
	prompt := req.Prompt

	if descriptions := s.describeCharacters(ctx, characters); len(descriptions) > 0 {
		prompt += ". Character descriptions: " + strings.Join(descriptions, " ")
	}

	if req.ReferenceImageID != "" {
		if style := s.describeStyle(ctx, req.ReferenceImageID); style != "" {
			prompt += ". Style reference: " + style
		}
	}

	return prompt
}

// describeCharacters fans out one vision call per character and joins the
// results in mention order. A character whose image cannot be resolved or
// described is dropped silently — the generation proceeds without it.
func (s *GenerationService) describeCharacters(ctx context.Context, characters []*model.Character) []string {
	if len(characters) == 0 {
		return nil
	}

	results := make([]string, len(characters))
	var wg sync.WaitGroup
	for i, character := range characters {
		if len(character.ImageIDs) == 0 {
			continue
		}

		wg.Add(1)
		go func(i int, character *model.Character) {
			defer wg.Done()

			imageURL, err := s.store.GetURL(ctx, character.ImageIDs[0])
			if err != nil {
				s.logger.Warn("skipping character description: unresolvable image",
					slog.String("characterID", character.ID),
					slog.String("error", err.Error()),
				)
				return
			}

			instruction := fmt.Sprintf(characterDescribeTemplate, character.Name)
			description, err := s.vision.Describe(ctx, imageURL, instruction)
			if err != nil {
				s.logger.Warn("skipping character description: vision call failed",
					slog.String("characterID", character.ID),
					slog.String("error", err.Error()),
				)
				return
			}

			results[i] = strings.TrimSpace(description)
		}(i, character)
	}
	wg.Wait()

	descriptions := make([]string, 0, len(results))
	for _, r := range results {
		if r != "" {
			descriptions = append(descriptions, r)
		}
	}
	return descriptions
}

// describeStyle returns a style description of the reference image, or ""
// when the image cannot be resolved or described.
func (s *GenerationService) describeStyle(ctx context.Context, referenceImageID string) string {
	imageURL, err := s.store.GetURL(ctx, referenceImageID)
	if err != nil {
		s.logger.Warn("skipping style description: unresolvable reference image",
			slog.String("storageID", referenceImageID),
			slog.String("error", err.Error()),
		)
		return ""
	}

	style, err := s.vision.Describe(ctx, imageURL, styleDescribeTemplate)
	if err != nil {
		s.logger.Warn("skipping style description: vision call failed",
			slog.String("storageID", referenceImageID),
			slog.String("error", err.Error()),
		)
		return ""
	}

	return strings.TrimSpace(style)
}

// List returns the caller's generation history newest first, with image
// URLs resolved. limit <= 0 returns everything.
func (s *GenerationService) List(ctx context.Context, userID string, limit int) ([]model.GenerationView, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated()
	}

	generations, err := s.generations.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing generations: %w", err)
	}

	views := make([]model.GenerationView, 0, len(generations))
	for i := range generations {
		view, err := s.resolveView(ctx, &generations[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// Get retrieves one generation record. History is private: a record owned
// by someone else reads as absent, not as an authorization error.
func (s *GenerationService) Get(ctx context.Context, userID, id string) (*model.GenerationView, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated()
	}

	generation, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if generation.UserID != userID {
		return nil, apperror.NotFound("generation", id)
	}

	return s.resolveView(ctx, generation)
}

func (s *GenerationService) resolveView(ctx context.Context, generation *model.Generation) (*model.GenerationView, error) {
	view := &model.GenerationView{Generation: *generation}

	url, err := s.store.GetURL(ctx, generation.GeneratedImageID)
	if err != nil {
		return nil, fmt.Errorf("resolving generated image URL: %w", err)
	}
	view.GeneratedImageURL = url

	if generation.ReferenceImageID != "" {
		url, err := s.store.GetURL(ctx, generation.ReferenceImageID)
		if err != nil {
			return nil, fmt.Errorf("resolving reference image URL: %w", err)
		}
		view.ReferenceImageURL = url
	}

	return view, nil
}

func (s *GenerationService) providerFor(m model.ModelType) (provider.ImageProvider, error) {
	switch m {
	case model.ModelDALLE:
		if s.dalle == nil {
			return nil, apperror.ProviderNotConfigured("dall-e-3")
		}
		return s.dalle, nil
	case model.ModelGemini:
		if s.gemini == nil {
			return nil, apperror.ProviderNotConfigured("gemini")
		}
		return s.gemini, nil
	default:
		return nil, apperror.ValidationFailed("model", fmt.Sprintf("unknown model %q", m))
	}
}
