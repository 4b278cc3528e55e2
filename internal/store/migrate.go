package store

import (
	"context"
	"fmt"

	"github.com/Kj20000/kidscard/internal/model"
)

// migrateLegacyIDs rewrites non-UUID category identifiers left behind by
// old installs, which generated counter-based ids like "cat-3".
//
// New UUIDs are derived deterministically from the legacy id, so repeated
// migrations of the same dataset converge on the same identities. Every
// flashcard whose category_id appears in the rewrite map is remapped, and
// all rewritten rows are demoted to pending so the new identities reach
// the remote on the next push.
//
// The rewrite is all-or-nothing: both collections are persisted inside one
// transaction, and on failure the stored state is left untouched and the
// original rows are returned with the error.
func (s *Store) migrateLegacyIDs(ctx context.Context, cats []model.Category) ([]model.Category, error) {
	remap := make(map[string]string)
	for _, c := range cats {
		if !model.ValidID(c.ID) {
			remap[c.ID] = model.LegacyID(c.ID)
		}
	}
	if len(remap) == 0 {
		return cats, nil
	}

	now := model.Now()
	migrated := make([]model.Category, len(cats))
	for i, c := range cats {
		if newID, ok := remap[c.ID]; ok {
			c.ID = newID
			c.UpdatedAt = now
			c.SyncStatus = model.StatusPending
		}
		migrated[i] = c
	}

	cards, err := s.Flashcards(ctx)
	if err != nil {
		return cats, fmt.Errorf("legacy migration aborted: %w", err)
	}
	for i, f := range cards {
		if newID, ok := remap[f.CategoryID]; ok {
			cards[i].CategoryID = newID
			cards[i].UpdatedAt = now
			cards[i].SyncStatus = model.StatusPending
		}
	}

	if err := s.SaveAll(ctx, migrated, cards); err != nil {
		return cats, fmt.Errorf("legacy migration aborted: %w", err)
	}

	s.mu.Lock()
	s.migrated = true
	s.mu.Unlock()

	s.logger.Printf("Migrated %d legacy category ids", len(remap))
	return migrated, nil
}
