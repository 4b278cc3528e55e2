// Package data provides the mutation facade consumed by the UI.
//
// The manager is the only entry point that mutates entities. Every
// mutation updates the in-memory cache synchronously (immediate UI
// feedback), writes through to the local store, recomputes the pending
// counter, and schedules a debounced push when cloud sync is enabled.
// Storage failures are logged and swallowed: the UI stays responsive even
// when persistence degrades, and the in-memory state remains the caller's
// view of truth for the session.
package data

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/Kj20000/kidscard/internal/engine"
	"github.com/Kj20000/kidscard/internal/model"
	"github.com/Kj20000/kidscard/internal/store"
)

// localImagePrefix marks an image_url that points into the local images
// collection instead of a remote URL. The suffix is the flashcard id.
const localImagePrefix = "local:"

// Manager owns the in-memory entity cache and the single mutation path.
type Manager struct {
	store  *store.Store
	engine *engine.Engine
	logger *log.Logger

	mu         sync.RWMutex
	categories []model.Category
	flashcards []model.Flashcard
	settings   model.Settings
}

// New loads the collections from the store (triggering first-run seeding
// and legacy-id migration as needed) and returns a ready manager. A
// migration schedules a push so the rewritten identities propagate.
func New(ctx context.Context, st *store.Store, eng *engine.Engine, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[data] ", log.LstdFlags)
	}
	m := &Manager{store: st, engine: eng, logger: logger}
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	if st.MigrationOccurred() {
		logger.Printf("Legacy id migration detected, scheduling push")
		m.schedulePush()
	}
	return m, nil
}

// Reload replaces the in-memory cache from the store. Called at startup
// and after every pull, which rewrites local state behind the cache.
func (m *Manager) Reload(ctx context.Context) error {
	cats, err := m.store.Categories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	cards, err := m.store.Flashcards(ctx)
	if err != nil {
		return fmt.Errorf("failed to load flashcards: %w", err)
	}
	settings, err := m.store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	m.mu.Lock()
	m.categories = cats
	m.flashcards = cards
	m.settings = settings
	m.mu.Unlock()

	m.engine.RefreshPending(ctx)
	return nil
}

// Categories returns the categories in display order.
func (m *Manager) Categories() []model.Category {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Category, len(m.categories))
	copy(out, m.categories)
	return out
}

// Flashcards returns all flashcards.
func (m *Manager) Flashcards() []model.Flashcard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Flashcard, len(m.flashcards))
	copy(out, m.flashcards)
	return out
}

// FlashcardsByCategory returns the flashcards belonging to one category.
func (m *Manager) FlashcardsByCategory(categoryID string) []model.Flashcard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Flashcard
	for _, f := range m.flashcards {
		if f.CategoryID == categoryID {
			out = append(out, f)
		}
	}
	return out
}

// Settings returns the current settings record.
func (m *Manager) Settings() model.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// SyncState exposes the engine's ephemeral state snapshot for the UI.
func (m *Manager) SyncState() engine.State {
	return m.engine.SyncState()
}

// SyncToCloud pushes pending changes immediately.
func (m *Manager) SyncToCloud(ctx context.Context) engine.Result {
	return m.engine.Push(ctx)
}

// PullFromCloud pulls remote state and refreshes the in-memory cache.
func (m *Manager) PullFromCloud(ctx context.Context) engine.Result {
	res := m.engine.Pull(ctx)
	if res.Success {
		if err := m.Reload(ctx); err != nil {
			m.logger.Printf("Warning: reload after pull failed: %v", err)
		}
	}
	return res
}

// FullSync pushes then pulls, refreshing the cache on success.
func (m *Manager) FullSync(ctx context.Context) engine.Result {
	res := m.engine.FullSync(ctx)
	if res.Success {
		if err := m.Reload(ctx); err != nil {
			m.logger.Printf("Warning: reload after sync failed: %v", err)
		}
	}
	return res
}

// AddCategory creates a category at the end of the display order.
func (m *Manager) AddCategory(ctx context.Context, name, icon string, color model.Color) (model.Category, error) {
	if strings.TrimSpace(name) == "" {
		return model.Category{}, fmt.Errorf("category name is required")
	}
	now := model.Now()

	m.mu.Lock()
	order := 0
	for _, c := range m.categories {
		if c.Order >= order {
			order = c.Order + 1
		}
	}
	cat := model.Category{
		ID:         model.NewID(),
		Name:       strings.TrimSpace(name),
		Icon:       icon,
		Color:      color,
		Order:      order,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncStatus: model.StatusPending,
	}
	if err := cat.Validate(); err != nil {
		m.mu.Unlock()
		return model.Category{}, err
	}
	m.categories = append(m.categories, cat)
	m.mu.Unlock()

	m.persistCategories(ctx)
	m.afterMutation(ctx)
	return cat, nil
}

// CategoryPatch holds the updatable category fields; nil means unchanged.
type CategoryPatch struct {
	Name  *string
	Icon  *string
	Color *model.Color
}

// UpdateCategory applies a patch, bumps updated_at, and resets the row to
// pending.
func (m *Manager) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (model.Category, error) {
	m.mu.Lock()
	idx := -1
	for i, c := range m.categories {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return model.Category{}, fmt.Errorf("category %s not found", id)
	}
	c := m.categories[idx]
	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Icon != nil {
		c.Icon = *patch.Icon
	}
	if patch.Color != nil {
		c.Color = *patch.Color
	}
	c.UpdatedAt = model.Now()
	c.SyncStatus = model.StatusPending
	if err := c.Validate(); err != nil {
		m.mu.Unlock()
		return model.Category{}, err
	}
	m.categories[idx] = c
	m.mu.Unlock()

	m.persistCategories(ctx)
	m.afterMutation(ctx)
	return c, nil
}

// DeleteCategory removes a category and cascades to its flashcards and
// their locally stored images.
func (m *Manager) DeleteCategory(ctx context.Context, id string) error {
	m.mu.Lock()
	kept := m.categories[:0]
	found := false
	for _, c := range m.categories {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		m.mu.Unlock()
		return fmt.Errorf("category %s not found", id)
	}
	m.categories = kept

	var orphanImages []string
	keptCards := m.flashcards[:0]
	for _, f := range m.flashcards {
		if f.CategoryID == id {
			if strings.HasPrefix(f.ImageURL, localImagePrefix) {
				orphanImages = append(orphanImages, f.ID)
			}
			continue
		}
		keptCards = append(keptCards, f)
	}
	m.flashcards = keptCards
	m.mu.Unlock()

	m.persistCategories(ctx)
	m.persistFlashcards(ctx)
	for _, imgID := range orphanImages {
		if err := m.store.DeleteImage(ctx, imgID); err != nil {
			m.logger.Printf("Warning: failed to delete image %s: %v", imgID, err)
		}
	}
	m.afterMutation(ctx)
	return nil
}

// AddFlashcard creates a flashcard in the given category.
func (m *Manager) AddFlashcard(ctx context.Context, word, imageURL, categoryID string) (model.Flashcard, error) {
	now := model.Now()
	card := model.Flashcard{
		ID:         model.NewID(),
		Word:       strings.TrimSpace(word),
		ImageURL:   imageURL,
		CategoryID: categoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncStatus: model.StatusPending,
	}
	if err := card.Validate(); err != nil {
		return model.Flashcard{}, err
	}

	m.mu.Lock()
	if !m.categoryExistsLocked(categoryID) {
		m.mu.Unlock()
		return model.Flashcard{}, fmt.Errorf("category %s not found", categoryID)
	}
	m.flashcards = append(m.flashcards, card)
	m.mu.Unlock()

	m.persistFlashcards(ctx)
	m.afterMutation(ctx)
	return card, nil
}

// FlashcardPatch holds the updatable flashcard fields; nil means
// unchanged.
type FlashcardPatch struct {
	Word       *string
	ImageURL   *string
	CategoryID *string
}

// UpdateFlashcard applies a patch, bumps updated_at, and resets the row to
// pending.
func (m *Manager) UpdateFlashcard(ctx context.Context, id string, patch FlashcardPatch) (model.Flashcard, error) {
	m.mu.Lock()
	idx := -1
	for i, f := range m.flashcards {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return model.Flashcard{}, fmt.Errorf("flashcard %s not found", id)
	}
	f := m.flashcards[idx]
	if patch.Word != nil {
		f.Word = strings.TrimSpace(*patch.Word)
	}
	if patch.ImageURL != nil {
		f.ImageURL = *patch.ImageURL
	}
	if patch.CategoryID != nil {
		if !m.categoryExistsLocked(*patch.CategoryID) {
			m.mu.Unlock()
			return model.Flashcard{}, fmt.Errorf("category %s not found", *patch.CategoryID)
		}
		f.CategoryID = *patch.CategoryID
	}
	f.UpdatedAt = model.Now()
	f.SyncStatus = model.StatusPending
	if err := f.Validate(); err != nil {
		m.mu.Unlock()
		return model.Flashcard{}, err
	}
	m.flashcards[idx] = f
	m.mu.Unlock()

	m.persistFlashcards(ctx)
	m.afterMutation(ctx)
	return f, nil
}

// DeleteFlashcard removes a flashcard and its locally stored image.
func (m *Manager) DeleteFlashcard(ctx context.Context, id string) error {
	m.mu.Lock()
	kept := m.flashcards[:0]
	var deleteImage bool
	found := false
	for _, f := range m.flashcards {
		if f.ID == id {
			found = true
			deleteImage = strings.HasPrefix(f.ImageURL, localImagePrefix)
			continue
		}
		kept = append(kept, f)
	}
	if !found {
		m.mu.Unlock()
		return fmt.Errorf("flashcard %s not found", id)
	}
	m.flashcards = kept
	m.mu.Unlock()

	m.persistFlashcards(ctx)
	if deleteImage {
		if err := m.store.DeleteImage(ctx, id); err != nil {
			m.logger.Printf("Warning: failed to delete image %s: %v", id, err)
		}
	}
	m.afterMutation(ctx)
	return nil
}

// ReorderCategories assigns a dense zero-based display order following the
// given sequence and marks every listed category pending. Categories
// missing from the sequence keep their relative order after the listed
// ones.
func (m *Manager) ReorderCategories(ctx context.Context, orderedIDs []string) error {
	now := model.Now()

	m.mu.Lock()
	position := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		position[id] = i
	}
	next := len(orderedIDs)
	for i, c := range m.categories {
		pos, listed := position[c.ID]
		if !listed {
			pos = next
			next++
		}
		if listed {
			c.UpdatedAt = now
			c.SyncStatus = model.StatusPending
		}
		c.Order = pos
		m.categories[i] = c
	}
	sortCategoriesByOrder(m.categories)
	m.mu.Unlock()

	m.persistCategories(ctx)
	m.afterMutation(ctx)
	return nil
}

// UpdateSettings overwrites patched fields of the singleton settings
// record. Settings carry no sync status; the last write wins.
func (m *Manager) UpdateSettings(ctx context.Context, patch SettingsPatch) model.Settings {
	m.mu.Lock()
	s := m.settings
	if patch.Autoplay != nil {
		s.Autoplay = *patch.Autoplay
	}
	if patch.VoiceSpeed != nil {
		s.VoiceSpeed = *patch.VoiceSpeed
	}
	if patch.Theme != nil {
		s.Theme = *patch.Theme
	}
	if patch.CloudSync != nil {
		s.CloudSync = *patch.CloudSync
	}
	m.settings = s
	m.mu.Unlock()

	if err := m.store.SaveSettings(ctx, s); err != nil {
		m.logger.Printf("Warning: failed to persist settings: %v", err)
	}
	return s
}

// SettingsPatch holds the updatable settings fields; nil means unchanged.
type SettingsPatch struct {
	Autoplay   *bool
	VoiceSpeed *float64
	Theme      *string
	CloudSync  *bool
}

// AttachImage stores an embedded image for a flashcard and points the
// card's image_url at it. Images sync out-of-band; only the reference
// travels with the flashcard.
func (m *Manager) AttachImage(ctx context.Context, flashcardID string, data []byte) error {
	if err := m.store.PutImage(ctx, flashcardID, data); err != nil {
		return err
	}
	ref := localImagePrefix + flashcardID
	_, err := m.UpdateFlashcard(ctx, flashcardID, FlashcardPatch{ImageURL: &ref})
	return err
}

// Image resolves a locally embedded image reference.
func (m *Manager) Image(ctx context.Context, flashcardID string) ([]byte, error) {
	return m.store.Image(ctx, flashcardID)
}

func (m *Manager) categoryExistsLocked(id string) bool {
	for _, c := range m.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// persistCategories writes the cache through to the store. Failures are
// non-fatal: the session keeps running on in-memory state.
func (m *Manager) persistCategories(ctx context.Context) {
	m.mu.RLock()
	cats := make([]model.Category, len(m.categories))
	copy(cats, m.categories)
	m.mu.RUnlock()
	if err := m.store.SaveCategories(ctx, cats); err != nil {
		m.logger.Printf("Warning: failed to persist categories: %v", err)
	}
}

func (m *Manager) persistFlashcards(ctx context.Context) {
	m.mu.RLock()
	cards := make([]model.Flashcard, len(m.flashcards))
	copy(cards, m.flashcards)
	m.mu.RUnlock()
	if err := m.store.SaveFlashcards(ctx, cards); err != nil {
		m.logger.Printf("Warning: failed to persist flashcards: %v", err)
	}
}

// afterMutation recomputes the pending counter and schedules a push.
func (m *Manager) afterMutation(ctx context.Context) {
	m.engine.RefreshPending(ctx)
	m.schedulePush()
}

// schedulePush arms the engine's debounce timer when the user has opted
// into cloud sync and the device is online.
func (m *Manager) schedulePush() {
	m.mu.RLock()
	enabled := m.settings.CloudSync
	m.mu.RUnlock()
	if enabled && m.engine.SyncState().IsOnline {
		m.engine.SchedulePush()
	}
}

func sortCategoriesByOrder(cats []model.Category) {
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Order < cats[j].Order })
}
