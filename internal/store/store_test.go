package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Kj20000/kidscard/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kidscard.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testCategory(id, name string, order int) model.Category {
	now := model.Now()
	return model.Category{
		ID:         id,
		Name:       name,
		Icon:       "📁",
		Color:      model.ColorGreen,
		Order:      order,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncStatus: model.StatusPending,
	}
}

func testFlashcard(id, word, categoryID string) model.Flashcard {
	now := model.Now()
	return model.Flashcard{
		ID:         id,
		Word:       word,
		CategoryID: categoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncStatus: model.StatusPending,
	}
}

func TestCategories_SeedsDefaultsOnFirstRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cats, err := s.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(cats) != 3 {
		t.Fatalf("first read returned %d categories, want 3 defaults", len(cats))
	}
	wantNames := []string{"Animals", "Food", "Colors"}
	for i, c := range cats {
		if c.Name != wantNames[i] {
			t.Errorf("category %d name = %q, want %q", i, c.Name, wantNames[i])
		}
		if c.Order != i {
			t.Errorf("category %q order = %d, want %d", c.Name, c.Order, i)
		}
		if c.SyncStatus != model.StatusPending {
			t.Errorf("seeded category %q status = %q, want pending", c.Name, c.SyncStatus)
		}
	}

	// The seed is persisted, not regenerated per read.
	again, err := s.Categories(ctx)
	if err != nil {
		t.Fatalf("second Categories failed: %v", err)
	}
	for i := range cats {
		if again[i].ID != cats[i].ID {
			t.Errorf("seeded ids changed between reads: %q vs %q", again[i].ID, cats[i].ID)
		}
	}
}

func TestCategories_EmptiedCollectionIsNotReseeded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Categories(ctx); err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if err := s.SaveCategories(ctx, nil); err != nil {
		t.Fatalf("SaveCategories failed: %v", err)
	}

	cats, err := s.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories after emptying failed: %v", err)
	}
	if len(cats) != 0 {
		t.Errorf("emptied collection was reseeded with %d categories", len(cats))
	}
}

func TestSaveAll_ReplacesBothCollections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c1 := testCategory(model.NewID(), "Shapes", 0)
	f1 := testFlashcard(model.NewID(), "circle", c1.ID)
	if err := s.SaveAll(ctx, []model.Category{c1}, []model.Flashcard{f1}); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	c2 := testCategory(model.NewID(), "Numbers", 0)
	f2 := testFlashcard(model.NewID(), "seven", c2.ID)
	if err := s.SaveAll(ctx, []model.Category{c2}, []model.Flashcard{f2}); err != nil {
		t.Fatalf("second SaveAll failed: %v", err)
	}

	cats, err := s.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(cats) != 1 || cats[0].ID != c2.ID {
		t.Errorf("categories after replace = %+v, want only %s", cats, c2.ID)
	}
	cards, err := s.Flashcards(ctx)
	if err != nil {
		t.Fatalf("Flashcards failed: %v", err)
	}
	if len(cards) != 1 || cards[0].ID != f2.ID {
		t.Errorf("flashcards after replace = %+v, want only %s", cards, f2.ID)
	}
}

func TestSaveAll_RejectsInvalidRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	good := testCategory(model.NewID(), "Shapes", 0)
	if err := s.SaveCategories(ctx, []model.Category{good}); err != nil {
		t.Fatalf("SaveCategories failed: %v", err)
	}

	bad := testCategory(model.NewID(), "", 1)
	if err := s.SaveCategories(ctx, []model.Category{good, bad}); err == nil {
		t.Fatal("SaveCategories accepted a category with no name")
	}

	// Failed save must not have clobbered the stored rows.
	cats, err := s.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(cats) != 1 || cats[0].ID != good.ID {
		t.Errorf("failed save mutated collection: %+v", cats)
	}
}

func TestPending_FilterAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dirty := testCategory(model.NewID(), "Shapes", 0)
	clean := testCategory(model.NewID(), "Numbers", 1)
	clean.SyncStatus = model.StatusSynced
	card := testFlashcard(model.NewID(), "circle", dirty.ID)
	if err := s.SaveAll(ctx, []model.Category{dirty, clean}, []model.Flashcard{card}); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	pendingCats, err := s.PendingCategories(ctx)
	if err != nil {
		t.Fatalf("PendingCategories failed: %v", err)
	}
	if len(pendingCats) != 1 || pendingCats[0].ID != dirty.ID {
		t.Errorf("pending categories = %+v, want only %s", pendingCats, dirty.ID)
	}

	count, err := s.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("pending count = %d, want 2", count)
	}

	if err := s.MarkCategoriesSynced(ctx, []string{dirty.ID}); err != nil {
		t.Fatalf("MarkCategoriesSynced failed: %v", err)
	}
	if err := s.MarkFlashcardsSynced(ctx, []string{card.ID}); err != nil {
		t.Fatalf("MarkFlashcardsSynced failed: %v", err)
	}
	count, err = s.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("pending count after marking = %d, want 0", count)
	}
}

func TestSettings_DefaultsWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	want := model.DefaultSettings()
	if got != want {
		t.Errorf("Settings = %+v, want defaults %+v", got, want)
	}

	got.CloudSync = true
	got.VoiceSpeed = 0.8
	if err := s.SaveSettings(ctx, got); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	back, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings after save failed: %v", err)
	}
	if back != got {
		t.Errorf("Settings roundtrip = %+v, want %+v", back, got)
	}
}

func TestWithRecovery_RecreatesMissingTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Categories(ctx); err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if _, err := s.RawDB().Exec(`DROP TABLE categories`); err != nil {
		t.Fatalf("drop failed: %v", err)
	}

	// The read recovers by reprovisioning the schema and retrying.
	if _, err := s.Categories(ctx); err != nil {
		t.Fatalf("Categories after drop failed: %v", err)
	}

	c := testCategory(model.NewID(), "Shapes", 0)
	if err := s.SaveCategories(ctx, []model.Category{c}); err != nil {
		t.Fatalf("SaveCategories after recovery failed: %v", err)
	}
	cats, err := s.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(cats) != 1 || cats[0].ID != c.ID {
		t.Errorf("recovered store lost the write: %+v", cats)
	}
}

func TestImages_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := model.NewID()
	if err := s.PutImage(ctx, id, []byte("png-bytes")); err != nil {
		t.Fatalf("PutImage failed: %v", err)
	}
	data, err := s.Image(ctx, id)
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("Image = %q, want png-bytes", data)
	}

	if err := s.DeleteImage(ctx, id); err != nil {
		t.Fatalf("DeleteImage failed: %v", err)
	}
	data, err = s.Image(ctx, id)
	if err != nil {
		t.Fatalf("Image after delete failed: %v", err)
	}
	if data != nil {
		t.Errorf("deleted image still returns %d bytes", len(data))
	}

	// Deleting an absent image is not an error.
	if err := s.DeleteImage(ctx, model.NewID()); err != nil {
		t.Errorf("DeleteImage of absent id failed: %v", err)
	}
}
