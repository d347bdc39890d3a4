package service

// Hand-written in-memory fakes for the repository, storage, provider, and
// mailer boundaries. Each mock keeps just enough state for the tests and
// exposes fail* switches to simulate downstream errors.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/martinbavio/photalabs/internal/apperror"
	"github.com/martinbavio/photalabs/internal/model"
	"github.com/martinbavio/photalabs/internal/provider"
	"github.com/martinbavio/photalabs/internal/repository"
	"github.com/martinbavio/photalabs/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

/* ---------------- users ---------------- */

type mockUserRepo struct {
	users  map[string]*model.User // keyed by ID
	nextID int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Upsert(_ context.Context, user *model.User) error {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			user.ID = existing.ID
			stored := *user
			m.users[user.ID] = &stored
			return nil
		}
	}
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *user
	return &result, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			result := *user
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

/* ---------------- login tokens ---------------- */

type mockLoginTokenRepo struct {
	tokens map[string]*model.LoginToken
}

func newMockLoginTokenRepo() *mockLoginTokenRepo {
	return &mockLoginTokenRepo{tokens: make(map[string]*model.LoginToken)}
}

func (m *mockLoginTokenRepo) Create(_ context.Context, token *model.LoginToken) error {
	stored := *token
	m.tokens[token.ID] = &stored
	return nil
}

func (m *mockLoginTokenRepo) GetByID(_ context.Context, id string) (*model.LoginToken, error) {
	token, ok := m.tokens[id]
	if !ok {
		return nil, apperror.NotFound("login token", id)
	}
	result := *token
	return &result, nil
}

func (m *mockLoginTokenRepo) MarkConsumed(_ context.Context, id string) error {
	token, ok := m.tokens[id]
	if !ok || token.ConsumedAt != nil {
		return apperror.NotFound("login token", id)
	}
	now := time.Now()
	token.ConsumedAt = &now
	return nil
}

/* ---------------- characters ---------------- */

type mockCharacterRepo struct {
	characters map[string]*model.Character
	order      []string // insertion order; ListByUser returns newest first
	nextID     int
}

func newMockCharacterRepo() *mockCharacterRepo {
	return &mockCharacterRepo{characters: make(map[string]*model.Character)}
}

func (m *mockCharacterRepo) Create(_ context.Context, character *model.Character) error {
	m.nextID++
	character.ID = fmt.Sprintf("char-%d", m.nextID)
	stored := *character
	m.characters[character.ID] = &stored
	m.order = append(m.order, character.ID)
	return nil
}

func (m *mockCharacterRepo) GetByID(_ context.Context, id string) (*model.Character, error) {
	character, ok := m.characters[id]
	if !ok {
		return nil, apperror.NotFound("character", id)
	}
	result := *character
	return &result, nil
}

func (m *mockCharacterRepo) ListByUser(_ context.Context, userID string) ([]model.Character, error) {
	var result []model.Character
	for i := len(m.order) - 1; i >= 0; i-- {
		if c, ok := m.characters[m.order[i]]; ok && c.UserID == userID {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockCharacterRepo) Update(_ context.Context, character *model.Character) error {
	if _, ok := m.characters[character.ID]; !ok {
		return apperror.NotFound("character", character.ID)
	}
	stored := *character
	m.characters[character.ID] = &stored
	return nil
}

func (m *mockCharacterRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.characters[id]; !ok {
		return apperror.NotFound("character", id)
	}
	delete(m.characters, id)
	return nil
}

/* ---------------- generations ---------------- */

type mockGenerationRepo struct {
	generations []model.Generation
	nextID      int
	failCreate  bool
}

func newMockGenerationRepo() *mockGenerationRepo {
	return &mockGenerationRepo{}
}

func (m *mockGenerationRepo) Create(_ context.Context, generation *model.Generation) error {
	if m.failCreate {
		return fmt.Errorf("mock: create failed")
	}
	m.nextID++
	generation.ID = fmt.Sprintf("gen-%d", m.nextID)
	m.generations = append(m.generations, *generation)
	return nil
}

func (m *mockGenerationRepo) GetByID(_ context.Context, id string) (*model.Generation, error) {
	for _, g := range m.generations {
		if g.ID == id {
			result := g
			return &result, nil
		}
	}
	return nil, apperror.NotFound("generation", id)
}

func (m *mockGenerationRepo) ListByUser(_ context.Context, userID string, limit int) ([]model.Generation, error) {
	var result []model.Generation
	for i := len(m.generations) - 1; i >= 0; i-- {
		if m.generations[i].UserID == userID {
			result = append(result, m.generations[i])
			if limit > 0 && len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

/* ---------------- credits ---------------- */

type mockCreditRepo struct {
	mu       sync.Mutex
	balances map[string]int
}

func newMockCreditRepo() *mockCreditRepo {
	return &mockCreditRepo{balances: make(map[string]int)}
}

func (m *mockCreditRepo) balanceOf(userID string) int {
	if b, ok := m.balances[userID]; ok {
		return b
	}
	return repository.DefaultCredits
}

func (m *mockCreditRepo) Reserve(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balanceOf(userID)
	if b <= 0 {
		return 0, apperror.InsufficientCredits()
	}
	m.balances[userID] = b - 1
	return b - 1, nil
}

func (m *mockCreditRepo) Refund(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balanceOf(userID) + 1
	m.balances[userID] = b
	return b, nil
}

func (m *mockCreditRepo) Balance(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceOf(userID), nil
}

/* ---------------- object store ---------------- */

type mockObjectStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	deleted  []string
	nextID   int
	failURLs map[string]bool // storage IDs whose GetURL should fail
}

var _ storage.ObjectStore = (*mockObjectStore)(nil)

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{
		objects:  make(map[string][]byte),
		failURLs: make(map[string]bool),
	}
}

func (m *mockObjectStore) GenerateUploadURL(_ context.Context, _ string) (*storage.UploadTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("upload-%d", m.nextID)
	return &storage.UploadTarget{URL: "https://store.test/put/" + id, StorageID: id}, nil
}

func (m *mockObjectStore) GetURL(_ context.Context, storageID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failURLs[storageID] {
		return "", fmt.Errorf("mock: no such object %s", storageID)
	}
	return "https://store.test/get/" + storageID, nil
}

func (m *mockObjectStore) Store(_ context.Context, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("stored-%d", m.nextID)
	m.objects[id] = data
	return id, nil
}

func (m *mockObjectStore) Delete(_ context.Context, storageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, storageID)
	m.deleted = append(m.deleted, storageID)
	return nil
}

/* ---------------- providers ---------------- */

type mockVision struct {
	mu       sync.Mutex
	calls    []string // instructions, in call order
	describe func(imageURL, instruction string) (string, error)
}

var _ provider.VisionDescriber = (*mockVision)(nil)

func (m *mockVision) Describe(_ context.Context, imageURL, instruction string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, instruction)
	m.mu.Unlock()
	if m.describe != nil {
		return m.describe(imageURL, instruction)
	}
	return "a description", nil
}

type mockImageProvider struct {
	prompts  []string
	maxLen   int
	generate func(prompt string) (*provider.Image, error)
}

var _ provider.ImageProvider = (*mockImageProvider)(nil)

func (m *mockImageProvider) Generate(_ context.Context, prompt string) (*provider.Image, error) {
	m.prompts = append(m.prompts, prompt)
	if m.generate != nil {
		return m.generate(prompt)
	}
	return &provider.Image{Data: []byte("fake-png"), MimeType: "image/png"}, nil
}

func (m *mockImageProvider) MaxPromptLength() int {
	return m.maxLen
}

/* ---------------- mailer ---------------- */

type mockMailer struct {
	sentTo   string
	sentLink string
	failSend bool
}

func (m *mockMailer) SendMagicLink(_ context.Context, email, url string) error {
	if m.failSend {
		return fmt.Errorf("mock: send failed")
	}
	m.sentTo = email
	m.sentLink = url
	return nil
}

/* ---------------- shared helpers ---------------- */

// createCharacter seeds a character directly in the repo, bypassing
// service validation, for tests that need existing data.
func createCharacter(t *testing.T, repo *mockCharacterRepo, userID, name string, imageIDs []string) *model.Character {
	t.Helper()
	c := &model.Character{UserID: userID, Name: name, ImageIDs: imageIDs}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("seeding character: %v", err)
	}
	return c
}
