package data

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Kj20000/kidscard/internal/model"
)

// backupDoc is the yaml shape of a full dataset export.
type backupDoc struct {
	ExportedAt int64             `yaml:"exported_at"`
	Settings   model.Settings    `yaml:"settings"`
	Categories []model.Category  `yaml:"categories"`
	Flashcards []model.Flashcard `yaml:"flashcards"`
}

// Export serializes the full dataset to yaml. Images are not included;
// they are device-local blobs referenced by image_url.
func (m *Manager) Export() ([]byte, error) {
	m.mu.RLock()
	doc := backupDoc{
		ExportedAt: model.Now(),
		Settings:   m.settings,
		Categories: append([]model.Category(nil), m.categories...),
		Flashcards: append([]model.Flashcard(nil), m.flashcards...),
	}
	m.mu.RUnlock()

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize backup: %w", err)
	}
	return out, nil
}

// Import replaces the dataset from a yaml export. Every imported row is
// marked pending so the restored state propagates on the next push, and
// flashcards referencing categories absent from the backup are rejected
// before anything is written.
func (m *Manager) Import(ctx context.Context, data []byte) error {
	var doc backupDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse backup: %w", err)
	}

	now := model.Now()
	catIDs := make(map[string]bool, len(doc.Categories))
	for i := range doc.Categories {
		if err := doc.Categories[i].Validate(); err != nil {
			return fmt.Errorf("backup category %d: %w", i, err)
		}
		catIDs[doc.Categories[i].ID] = true
		doc.Categories[i].UpdatedAt = now
		doc.Categories[i].SyncStatus = model.StatusPending
	}
	for i := range doc.Flashcards {
		if err := doc.Flashcards[i].Validate(); err != nil {
			return fmt.Errorf("backup flashcard %d: %w", i, err)
		}
		if !catIDs[doc.Flashcards[i].CategoryID] {
			return fmt.Errorf("backup flashcard %s references unknown category %s",
				doc.Flashcards[i].ID, doc.Flashcards[i].CategoryID)
		}
		doc.Flashcards[i].UpdatedAt = now
		doc.Flashcards[i].SyncStatus = model.StatusPending
	}

	if err := m.store.SaveAll(ctx, doc.Categories, doc.Flashcards); err != nil {
		return fmt.Errorf("failed to persist backup: %w", err)
	}
	if err := m.store.SaveSettings(ctx, doc.Settings); err != nil {
		return fmt.Errorf("failed to persist backup settings: %w", err)
	}
	if err := m.Reload(ctx); err != nil {
		return err
	}
	m.schedulePush()
	return nil
}
