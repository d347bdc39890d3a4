package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/martinbavio/photalabs/internal/apperror"
	"github.com/martinbavio/photalabs/internal/model"
	"github.com/martinbavio/photalabs/internal/repository"
	"github.com/martinbavio/photalabs/internal/storage"
)

// CharacterService manages named sets of reference images.
type CharacterService struct {
	characters repository.CharacterRepository
	store      storage.ObjectStore
	logger     *slog.Logger
}

func NewCharacterService(characters repository.CharacterRepository, store storage.ObjectStore, logger *slog.Logger) *CharacterService {
	return &CharacterService{
		characters: characters,
		store:      store,
		logger:     logger,
	}
}

// Create validates and saves a new character for the caller.
func (s *CharacterService) Create(ctx context.Context, userID, name string, imageIDs []string) (*model.Character, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated()
	}

	name = strings.TrimSpace(name)
	if err := validateCharacter(name, imageIDs); err != nil {
		return nil, err
	}

	character := &model.Character{
		UserID:   userID,
		Name:     name,
		ImageIDs: imageIDs,
	}
	if err := s.characters.Create(ctx, character); err != nil {
		s.logger.Error("failed to create character",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating character: %w", err)
	}

	s.logger.Info("character created",
		slog.String("id", character.ID),
		slog.String("userID", userID),
		slog.String("name", character.Name),
	)
	return character, nil
}

// Get retrieves a character by ID with its image URLs resolved. There is
// no ownership check: a character link is shareable, like an unlisted page.
func (s *CharacterService) Get(ctx context.Context, id string) (*model.CharacterView, error) {
	character, err := s.characters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolveView(ctx, character)
}

// List returns the caller's characters newest first, with image URLs
// resolved. Anonymous callers get an empty list, not an error.
func (s *CharacterService) List(ctx context.Context, userID string) ([]model.CharacterView, error) {
	if userID == "" {
		return []model.CharacterView{}, nil
	}

	characters, err := s.characters.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}

	views := make([]model.CharacterView, 0, len(characters))
	for i := range characters {
		view, err := s.resolveView(ctx, &characters[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// Search returns compact summaries of the caller's characters whose names
// contain the query, for @mention autocomplete. An empty query matches
// everything; anonymous callers get an empty list.
func (s *CharacterService) Search(ctx context.Context, userID, query string) ([]model.CharacterSummary, error) {
	if userID == "" {
		return []model.CharacterSummary{}, nil
	}

	characters, err := s.characters.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("searching characters: %w", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	summaries := make([]model.CharacterSummary, 0, len(characters))
	for _, c := range characters {
		if query != "" && !strings.Contains(strings.ToLower(c.Name), query) {
			continue
		}

		summary := model.CharacterSummary{ID: c.ID, Name: c.Name}
		if len(c.ImageIDs) > 0 {
			url, err := s.store.GetURL(ctx, c.ImageIDs[0])
			if err != nil {
				return nil, fmt.Errorf("resolving avatar URL: %w", err)
			}
			summary.AvatarURL = url
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Update is a partial update: an empty name keeps the current one, a nil
// image list keeps the current set. Only the owner may update.
func (s *CharacterService) Update(ctx context.Context, userID, id, name string, imageIDs []string) (*model.Character, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated()
	}

	character, err := s.characters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if character.UserID != userID {
		return nil, apperror.Forbidden("character belongs to another user")
	}

	if name = strings.TrimSpace(name); name != "" {
		character.Name = name
	}
	if imageIDs != nil {
		character.ImageIDs = imageIDs
	}
	if err := validateCharacter(character.Name, character.ImageIDs); err != nil {
		return nil, err
	}

	if err := s.characters.Update(ctx, character); err != nil {
		return nil, fmt.Errorf("updating character: %w", err)
	}

	s.logger.Info("character updated",
		slog.String("id", character.ID),
		slog.String("userID", userID),
	)
	return character, nil
}

// Remove deletes a character and its stored reference images. Image
// deletion is best-effort: a failed object delete logs a warning but does
// not resurrect the character.
func (s *CharacterService) Remove(ctx context.Context, userID, id string) error {
	if userID == "" {
		return apperror.Unauthenticated()
	}

	character, err := s.characters.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if character.UserID != userID {
		return apperror.Forbidden("character belongs to another user")
	}

	if err := s.characters.Delete(ctx, id); err != nil {
		return err
	}

	for _, imageID := range character.ImageIDs {
		if err := s.store.Delete(ctx, imageID); err != nil {
			s.logger.Warn("failed to delete character image",
				slog.String("characterID", id),
				slog.String("storageID", imageID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("character deleted",
		slog.String("id", id),
		slog.String("userID", userID),
	)
	return nil
}

func (s *CharacterService) resolveView(ctx context.Context, character *model.Character) (*model.CharacterView, error) {
	urls := make([]string, 0, len(character.ImageIDs))
	for _, imageID := range character.ImageIDs {
		url, err := s.store.GetURL(ctx, imageID)
		if err != nil {
			return nil, fmt.Errorf("resolving image URL: %w", err)
		}
		urls = append(urls, url)
	}
	return &model.CharacterView{Character: *character, ImageURLs: urls}, nil
}

func validateCharacter(name string, imageIDs []string) error {
	if name == "" {
		return apperror.ValidationFailed("name", "Character name is required")
	}
	if len(imageIDs) < model.MinCharacterImages {
		return apperror.ValidationFailed("imageIds",
			fmt.Sprintf("Characters require at least %d reference images", model.MinCharacterImages))
	}
	if len(imageIDs) > model.MaxCharacterImages {
		return apperror.ValidationFailed("imageIds",
			fmt.Sprintf("Characters require at most %d reference images", model.MaxCharacterImages))
	}
	for _, id := range imageIDs {
		if strings.TrimSpace(id) == "" {
			return apperror.ValidationFailed("imageIds", "image IDs must not be empty")
		}
	}
	return nil
}
