package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kj20000/kidscard/internal/model"
)

const metaSeededCategories = "seeded_categories"

// Categories returns every stored category ordered by display position.
//
// On first read the collection is seeded with the default category set and
// the seed is persisted as a side effect. Legacy non-UUID identifiers are
// migrated before the rows are returned.
func (s *Store) Categories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := s.withRecovery(ctx, func() error {
		var err error
		cats, err = s.queryCategories(ctx, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(cats) == 0 {
		seeded, err := s.maybeSeedCategories(ctx)
		if err != nil {
			// Seeding failure degrades to in-memory defaults: the UI
			// stays usable even if persistence is broken.
			s.logger.Printf("Warning: failed to seed categories: %v", err)
			return model.DefaultCategories(model.Now()), nil
		}
		if seeded != nil {
			cats = seeded
		}
	}

	return s.migrateLegacyIDs(ctx, cats)
}

// maybeSeedCategories writes the default category set on first run.
// Returns nil categories when the collection was deliberately emptied
// (seed marker already present).
func (s *Store) maybeSeedCategories(ctx context.Context) ([]model.Category, error) {
	marker, err := s.metaGet(ctx, metaSeededCategories)
	if err != nil {
		return nil, err
	}
	if marker != "" {
		return nil, nil
	}
	defaults := model.DefaultCategories(model.Now())
	if err := s.SaveCategories(ctx, defaults); err != nil {
		return nil, err
	}
	if err := s.metaSet(ctx, metaSeededCategories, "1"); err != nil {
		return nil, err
	}
	s.logger.Printf("Seeded %d default categories", len(defaults))
	return defaults, nil
}

// Flashcards returns every stored flashcard. The collection's default is
// empty, so no seeding occurs.
func (s *Store) Flashcards(ctx context.Context) ([]model.Flashcard, error) {
	var cards []model.Flashcard
	err := s.withRecovery(ctx, func() error {
		var err error
		cards, err = s.queryFlashcards(ctx, "")
		return err
	})
	return cards, err
}

// PendingCategories returns categories awaiting remote acknowledgement.
func (s *Store) PendingCategories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := s.withRecovery(ctx, func() error {
		var err error
		cats, err = s.queryCategories(ctx, string(model.StatusPending))
		return err
	})
	return cats, err
}

// PendingFlashcards returns flashcards awaiting remote acknowledgement.
func (s *Store) PendingFlashcards(ctx context.Context) ([]model.Flashcard, error) {
	var cards []model.Flashcard
	err := s.withRecovery(ctx, func() error {
		var err error
		cards, err = s.queryFlashcards(ctx, string(model.StatusPending))
		return err
	})
	return cards, err
}

// PendingCount returns the number of locally dirty category and flashcard
// rows.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.withRecovery(ctx, func() error {
		row := s.conn.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM categories WHERE sync_status = ?) +
				(SELECT COUNT(*) FROM flashcards WHERE sync_status = ?)`,
			model.StatusPending, model.StatusPending)
		return row.Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count pending rows: %w", err)
	}
	return count, nil
}

// SaveCategories atomically replaces the categories collection.
func (s *Store) SaveCategories(ctx context.Context, cats []model.Category) error {
	return s.withRecovery(ctx, func() error {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := replaceCategories(ctx, tx, cats); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// SaveFlashcards atomically replaces the flashcards collection.
func (s *Store) SaveFlashcards(ctx context.Context, cards []model.Flashcard) error {
	return s.withRecovery(ctx, func() error {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := replaceFlashcards(ctx, tx, cards); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// SaveAll atomically replaces both entity collections in one transaction.
// The sync engine uses this after a merge so a crash between the two
// writes can't leave flashcards referencing unsaved categories.
func (s *Store) SaveAll(ctx context.Context, cats []model.Category, cards []model.Flashcard) error {
	return s.withRecovery(ctx, func() error {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := replaceCategories(ctx, tx, cats); err != nil {
			return err
		}
		if err := replaceFlashcards(ctx, tx, cards); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// MarkCategoriesSynced transitions the given categories to synced after a
// confirmed remote acknowledgement.
func (s *Store) MarkCategoriesSynced(ctx context.Context, ids []string) error {
	return s.markSynced(ctx, "categories", ids)
}

// MarkFlashcardsSynced transitions the given flashcards to synced after a
// confirmed remote acknowledgement.
func (s *Store) MarkFlashcardsSynced(ctx context.Context, ids []string) error {
	return s.markSynced(ctx, "flashcards", ids)
}

func (s *Store) markSynced(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withRecovery(ctx, func() error {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		query := fmt.Sprintf(`UPDATE %s SET sync_status = ? WHERE id = ?`, table)
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, query, model.StatusSynced, id); err != nil {
				return fmt.Errorf("failed to mark %s row %s synced: %w", table, id, err)
			}
		}
		return tx.Commit()
	})
}

// Settings returns the singleton settings record, writing and returning
// the defaults when absent.
func (s *Store) Settings(ctx context.Context) (model.Settings, error) {
	var out model.Settings
	err := s.withRecovery(ctx, func() error {
		var autoplay, cloudSync int
		row := s.conn.QueryRowContext(ctx,
			`SELECT autoplay, voice_speed, theme, cloud_sync FROM settings WHERE id = 1`)
		err := row.Scan(&autoplay, &out.VoiceSpeed, &out.Theme, &cloudSync)
		if err == sql.ErrNoRows {
			out = model.DefaultSettings()
			return s.saveSettingsRow(ctx, out)
		}
		if err != nil {
			return err
		}
		out.Autoplay = autoplay != 0
		out.CloudSync = cloudSync != 0
		return nil
	})
	if err != nil {
		// Storage failure degrades to defaults rather than crashing.
		s.logger.Printf("Warning: failed to read settings: %v", err)
		return model.DefaultSettings(), nil
	}
	return out, nil
}

// SaveSettings overwrites the singleton settings record.
func (s *Store) SaveSettings(ctx context.Context, settings model.Settings) error {
	return s.withRecovery(ctx, func() error {
		return s.saveSettingsRow(ctx, settings)
	})
}

func (s *Store) saveSettingsRow(ctx context.Context, settings model.Settings) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO settings (id, autoplay, voice_speed, theme, cloud_sync)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			autoplay = excluded.autoplay,
			voice_speed = excluded.voice_speed,
			theme = excluded.theme,
			cloud_sync = excluded.cloud_sync`,
		boolInt(settings.Autoplay), settings.VoiceSpeed, settings.Theme,
		boolInt(settings.CloudSync))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// PutImage stores an image blob keyed by id. Images sync out-of-band and
// are never pushed by the engine.
func (s *Store) PutImage(ctx context.Context, id string, data []byte) error {
	return s.withRecovery(ctx, func() error {
		_, err := s.conn.ExecContext(ctx, `
			INSERT INTO images (id, data, created_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
			id, data, model.Now())
		if err != nil {
			return fmt.Errorf("failed to store image %s: %w", id, err)
		}
		return nil
	})
}

// Image returns the stored blob for id, or nil when absent.
func (s *Store) Image(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.withRecovery(ctx, func() error {
		err := s.conn.QueryRowContext(ctx,
			`SELECT data FROM images WHERE id = ?`, id).Scan(&data)
		if err == sql.ErrNoRows {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}
	return data, nil
}

// DeleteImage removes a stored blob. Idempotent.
func (s *Store) DeleteImage(ctx context.Context, id string) error {
	return s.withRecovery(ctx, func() error {
		_, err := s.conn.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete image %s: %w", id, err)
		}
		return nil
	})
}

func (s *Store) queryCategories(ctx context.Context, status string) ([]model.Category, error) {
	query := `
		SELECT id, name, icon, color, position, created_at, updated_at, sync_status
		FROM categories`
	var args []interface{}
	if status != "" {
		query += ` WHERE sync_status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY position ASC, created_at ASC`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &c.Order,
			&c.CreatedAt, &c.UpdatedAt, &c.SyncStatus); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return cats, nil
}

func (s *Store) queryFlashcards(ctx context.Context, status string) ([]model.Flashcard, error) {
	query := `
		SELECT id, word, image_url, category_id, created_at, updated_at, sync_status
		FROM flashcards`
	var args []interface{}
	if status != "" {
		query += ` WHERE sync_status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []model.Flashcard
	for rows.Next() {
		var f model.Flashcard
		if err := rows.Scan(&f.ID, &f.Word, &f.ImageURL, &f.CategoryID,
			&f.CreatedAt, &f.UpdatedAt, &f.SyncStatus); err != nil {
			return nil, fmt.Errorf("failed to scan flashcard: %w", err)
		}
		cards = append(cards, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flashcards: %w", err)
	}
	return cards, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func replaceCategories(ctx context.Context, tx execer, cats []model.Category) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid category %s: %w", c.ID, err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories
				(id, name, icon, color, position, created_at, updated_at, sync_status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Icon, c.Color, c.Order, c.CreatedAt, c.UpdatedAt, c.SyncStatus)
		if err != nil {
			return fmt.Errorf("failed to insert category %s: %w", c.ID, err)
		}
	}
	return nil
}

func replaceFlashcards(ctx context.Context, tx execer, cards []model.Flashcard) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM flashcards`); err != nil {
		return fmt.Errorf("failed to clear flashcards: %w", err)
	}
	for _, f := range cards {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("invalid flashcard %s: %w", f.ID, err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO flashcards
				(id, word, image_url, category_id, created_at, updated_at, sync_status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.Word, f.ImageURL, f.CategoryID, f.CreatedAt, f.UpdatedAt, f.SyncStatus)
		if err != nil {
			return fmt.Errorf("failed to insert flashcard %s: %w", f.ID, err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
