package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/martinbavio/photalabs/internal/apperror"
	"github.com/martinbavio/photalabs/internal/model"
)

func createTestGeneration(t *testing.T, g *GenerationDB, userID, prompt string, mentions []model.CharacterMention) *model.Generation {
	t.Helper()

	generation := &model.Generation{
		UserID:            userID,
		Prompt:            prompt,
		CharacterMentions: mentions,
		GeneratedImageID:  "generated-img",
		Model:             model.ModelDALLE,
	}
	if err := g.Create(context.Background(), generation); err != nil {
		t.Fatalf("failed to create test generation: %v", err)
	}
	return generation
}

func TestGenerationCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "owner@example.com")
	g := db.Generations()

	created := createTestGeneration(t, g, user.ID, "A cat sitting on a couch", nil)

	got, err := g.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Prompt != "A cat sitting on a couch" {
		t.Errorf("Prompt = %q", got.Prompt)
	}
	if got.Model != model.ModelDALLE {
		t.Errorf("Model = %q, want %q", got.Model, model.ModelDALLE)
	}
	// nil mentions normalize to an empty slice, never a null JSON column.
	if got.CharacterMentions == nil || len(got.CharacterMentions) != 0 {
		t.Errorf("CharacterMentions = %v, want empty slice", got.CharacterMentions)
	}
}

// The mention stores a name snapshot: deleting or renaming the character
// afterwards must not change what the generation record returns.
func TestGenerationMentions_NameSnapshotSurvivesCharacterDelete(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "owner@example.com")
	c := db.Characters()
	g := db.Generations()

	character := createTestCharacter(t, c, user.ID, "Sarah", []string{"1", "2", "3"})

	generation := createTestGeneration(t, g, user.ID, "@Sarah at the beach", []model.CharacterMention{
		{CharacterID: character.ID, CharacterName: "Sarah"},
	})

	if err := c.Delete(context.Background(), character.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, err := g.GetByID(context.Background(), generation.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(got.CharacterMentions) != 1 {
		t.Fatalf("len(CharacterMentions) = %d, want 1", len(got.CharacterMentions))
	}
	if got.CharacterMentions[0].CharacterName != "Sarah" {
		t.Errorf("CharacterName = %q, want snapshot %q", got.CharacterMentions[0].CharacterName, "Sarah")
	}
}

func TestGenerationListByUser_DescendingAndLimited(t *testing.T) {
	db := newTestDB(t)
	userA := createTestUser(t, db.Users(), "a@example.com")
	userB := createTestUser(t, db.Users(), "b@example.com")
	g := db.Generations()

	var ids []string
	for _, prompt := range []string{"one", "two", "three"} {
		gen := createTestGeneration(t, g, userA.ID, prompt, nil)
		ids = append(ids, gen.ID)
		time.Sleep(5 * time.Millisecond)
	}
	createTestGeneration(t, g, userB.ID, "not mine", nil)

	all, err := g.ListByUser(context.Background(), userA.ID, 0)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	// Newest first.
	if all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Errorf("order = [%s %s %s], want newest first", all[0].ID, all[1].ID, all[2].ID)
	}

	recent, err := g.ListByUser(context.Background(), userA.ID, 2)
	if err != nil {
		t.Fatalf("ListByUser(limit=2) error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
	if recent[0].ID != ids[2] {
		t.Errorf("recent[0] = %s, want newest %s", recent[0].ID, ids[2])
	}
}

func TestGenerationGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Generations().GetByID(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}
