package resolve

import (
	"testing"

	"github.com/Kj20000/kidscard/internal/model"
)

func cat(id, name string, updatedAt int64, status model.SyncStatus) model.Category {
	return model.Category{
		ID:         id,
		Name:       name,
		Icon:       "📁",
		Color:      model.ColorBlue,
		CreatedAt:  1,
		UpdatedAt:  updatedAt,
		SyncStatus: status,
	}
}

func TestMerge_LocalWinsOnNewerTimestamp(t *testing.T) {
	local := []model.Category{cat("a", "Animals", 200, model.StatusPending)}
	remote := []model.Category{cat("a", "Beasts", 100, model.StatusSynced)}

	merged := Merge(local, remote)
	if len(merged) != 1 {
		t.Fatalf("merged len = %d, want 1", len(merged))
	}
	if merged[0].Name != "Animals" {
		t.Errorf("merge kept %q, want local Animals", merged[0].Name)
	}
}

func TestMerge_RemoteWinsOnNewerTimestamp(t *testing.T) {
	local := []model.Category{cat("a", "Animals", 100, model.StatusPending)}
	remote := []model.Category{cat("a", "Beasts", 200, model.StatusSynced)}

	merged := Merge(local, remote)
	if merged[0].Name != "Beasts" {
		t.Errorf("merge kept %q, want remote Beasts", merged[0].Name)
	}
}

func TestMerge_TieKeepsLocal(t *testing.T) {
	local := []model.Category{cat("a", "Animals", 100, model.StatusPending)}
	remote := []model.Category{cat("a", "Beasts", 100, model.StatusSynced)}

	merged := Merge(local, remote)
	if merged[0].Name != "Animals" {
		t.Errorf("tie kept %q, want local Animals", merged[0].Name)
	}
}

func TestMerge_UnionOfBothSides(t *testing.T) {
	local := []model.Category{cat("a", "Animals", 100, model.StatusPending)}
	remote := []model.Category{cat("b", "Food", 100, model.StatusSynced)}

	merged := Merge(local, remote)
	if len(merged) != 2 {
		t.Fatalf("merged len = %d, want 2", len(merged))
	}
	seen := map[string]bool{}
	for _, c := range merged {
		seen[c.ID] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("merge lost an entity: %v", seen)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	local := []model.Category{
		cat("a", "Animals", 200, model.StatusPending),
		cat("b", "Food", 50, model.StatusSynced),
	}
	remote := []model.Category{
		cat("a", "Beasts", 100, model.StatusSynced),
		cat("c", "Colors", 75, model.StatusSynced),
	}

	once := Merge(local, remote)
	twice := Merge(once, remote)
	if len(once) != len(twice) {
		t.Fatalf("second merge changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("second merge changed entry %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestDedupeCategoriesByName_PrefersSynced(t *testing.T) {
	cats := []model.Category{
		cat("local", "Animals", 900, model.StatusPending),
		cat("remote", "animals", 100, model.StatusSynced),
	}

	kept, remap := DedupeCategoriesByName(cats)
	if len(kept) != 1 {
		t.Fatalf("kept %d categories, want 1", len(kept))
	}
	if kept[0].ID != "remote" {
		t.Errorf("kept %q, want synced remote copy", kept[0].ID)
	}
	if remap["local"] != "remote" {
		t.Errorf("remap[local] = %q, want remote", remap["local"])
	}
	if remap["remote"] != "remote" {
		t.Errorf("remap[remote] = %q, want identity mapping", remap["remote"])
	}
}

func TestDedupeCategoriesByName_SameStatusPrefersNewer(t *testing.T) {
	cats := []model.Category{
		cat("old", "Food", 100, model.StatusPending),
		cat("new", "Food", 200, model.StatusPending),
	}

	kept, remap := DedupeCategoriesByName(cats)
	if len(kept) != 1 || kept[0].ID != "new" {
		t.Fatalf("kept %+v, want the newer copy", kept)
	}
	if remap["old"] != "new" {
		t.Errorf("remap[old] = %q, want new", remap["old"])
	}
}

func TestDedupeCategoriesByName_NormalizesWhitespaceAndCase(t *testing.T) {
	cats := []model.Category{
		cat("a", "  Animals ", 100, model.StatusSynced),
		cat("b", "ANIMALS", 50, model.StatusPending),
	}

	kept, _ := DedupeCategoriesByName(cats)
	if len(kept) != 1 {
		t.Errorf("kept %d categories, want 1 after normalization", len(kept))
	}
}

func TestRemapCategoryIDs_RewritesAndDemotes(t *testing.T) {
	now := int64(5000)
	cards := []model.Flashcard{
		{ID: "f1", Word: "dog", CategoryID: "dup", CreatedAt: 1, UpdatedAt: 10, SyncStatus: model.StatusSynced},
		{ID: "f2", Word: "cat", CategoryID: "keep", CreatedAt: 1, UpdatedAt: 10, SyncStatus: model.StatusSynced},
	}
	remap := map[string]string{"dup": "keep", "keep": "keep"}

	out := RemapCategoryIDs(cards, remap, now)
	if out[0].CategoryID != "keep" {
		t.Errorf("f1 category = %q, want keep", out[0].CategoryID)
	}
	if out[0].UpdatedAt != now || out[0].SyncStatus != model.StatusPending {
		t.Errorf("remapped card not demoted to pending with bumped timestamp: %+v", out[0])
	}
	if out[1] != cards[1] {
		t.Errorf("untouched card was modified: %+v", out[1])
	}
}
