// Package resolve reconciles local and remote versions of a collection.
//
// All functions are pure and deterministic: given the same inputs they
// produce the same outputs and never touch storage or the network. The
// sync engine composes them in a fixed order (merge, dedupe, remap) so a
// merge can never leave a flashcard pointing at a dead category.
package resolve

import (
	"sort"
	"strings"

	"github.com/Kj20000/kidscard/internal/model"
)

// Entity is anything that can be merged by identity and recency.
type Entity interface {
	EntityID() string
	Modified() int64
}

// Merge unions two versions of a collection by id, keeping the entry with
// the larger modification timestamp. Ties keep the local entry, since local
// state already reflects the most recent user intent at equal timestamps.
//
// This is last-writer-wins, not a field-level merge: when both sides
// changed the same entity, one version is discarded wholesale.
//
// Output order is deterministic: local entries in their original order,
// followed by remote-only entries sorted by id. Merge(x, x) == x.
func Merge[T Entity](local, remote []T) []T {
	remoteByID := make(map[string]T, len(remote))
	for _, r := range remote {
		remoteByID[r.EntityID()] = r
	}

	merged := make([]T, 0, len(local)+len(remote))
	seen := make(map[string]bool, len(local))
	for _, l := range local {
		seen[l.EntityID()] = true
		if r, ok := remoteByID[l.EntityID()]; ok && r.Modified() > l.Modified() {
			merged = append(merged, r)
			continue
		}
		merged = append(merged, l)
	}

	var rest []T
	for id, r := range remoteByID {
		if !seen[id] {
			rest = append(rest, r)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].EntityID() < rest[j].EntityID() })
	return append(merged, rest...)
}

// DedupeCategoriesByName collapses categories whose names differ only by
// case or surrounding whitespace into a single canonical survivor.
//
// Duplicate names appear when a flaky connection double-creates a category
// across sync epochs. The survivor is chosen by preferring a synced member
// over a pending one, then the larger updated_at. The returned remap
// contains oldID -> canonicalID for every member of a duplicate group,
// including the canonical id mapped to itself, so callers can look up any
// id without a presence check.
func DedupeCategoriesByName(cats []model.Category) ([]model.Category, map[string]string) {
	groups := make(map[string][]model.Category)
	order := make([]string, 0, len(cats))
	for _, c := range cats {
		key := NormalizeName(c.Name)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	remap := make(map[string]string)
	out := make([]model.Category, 0, len(groups))
	for _, key := range order {
		group := groups[key]
		canon := group[0]
		for _, c := range group[1:] {
			if preferCategory(c, canon) {
				canon = c
			}
		}
		for _, c := range group {
			remap[c.ID] = canon.ID
		}
		out = append(out, canon)
	}
	return out, remap
}

// preferCategory reports whether a should survive over b.
func preferCategory(a, b model.Category) bool {
	aSynced := a.SyncStatus == model.StatusSynced
	bSynced := b.SyncStatus == model.StatusSynced
	if aSynced != bSynced {
		return aSynced
	}
	return a.UpdatedAt > b.UpdatedAt
}

// NormalizeName returns the grouping key used for duplicate detection.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RemapCategoryIDs rewrites flashcard foreign keys through the remap
// produced by DedupeCategoriesByName. A rewritten flashcard gets its
// updated_at bumped to now and its status demoted to pending: the remap is
// a local-state change that must be re-propagated to the remote.
// Flashcards whose category survived untouched pass through unchanged.
func RemapCategoryIDs(cards []model.Flashcard, remap map[string]string, now int64) []model.Flashcard {
	out := make([]model.Flashcard, len(cards))
	for i, f := range cards {
		if canon, ok := remap[f.CategoryID]; ok && canon != f.CategoryID {
			f.CategoryID = canon
			f.UpdatedAt = now
			f.SyncStatus = model.StatusPending
		}
		out[i] = f
	}
	return out
}
