package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Kj20000/kidscard/internal/model"
	"github.com/Kj20000/kidscard/internal/remote"
	"github.com/Kj20000/kidscard/internal/resolve"
)

// Push uploads all pending rows to the remote collections.
//
// Categories are fully uploaded before flashcards begin, since flashcards
// reference categories. Rows are chunked into fixed-size batches; a batch
// failure aborts the remaining batches and nothing is marked synced, so a
// later retry re-uploads everything (safe, because upsert is keyed by id).
func (e *Engine) Push(ctx context.Context) Result {
	if blocked, ok := e.tryBegin(); !ok {
		return *blocked
	}
	defer e.end()
	return e.doPush(ctx)
}

// Pull downloads remote state, reconciles it with local state, and
// persists the merged result.
func (e *Engine) Pull(ctx context.Context) Result {
	if blocked, ok := e.tryBegin(); !ok {
		return *blocked
	}
	defer e.end()
	return e.doPull(ctx)
}

// FullSync pushes then pulls. Local changes must reach the remote before
// pulling, otherwise a concurrent writer's older snapshot could win the
// merge against rows that were about to be pushed; a push failure
// short-circuits the pull.
func (e *Engine) FullSync(ctx context.Context) Result {
	if blocked, ok := e.tryBegin(); !ok {
		return *blocked
	}
	defer e.end()

	if res := e.doPush(ctx); !res.Success {
		return res
	}
	return e.doPull(ctx)
}

func (e *Engine) doPush(ctx context.Context) Result {
	cats, err := e.store.PendingCategories(ctx)
	if err != nil {
		return Result{Message: "local read failed", Err: err}
	}
	cards, err := e.store.PendingFlashcards(ctx)
	if err != nil {
		return Result{Message: "local read failed", Err: err}
	}
	if len(cats) == 0 && len(cards) == 0 {
		return Result{Success: true, Message: "nothing to push"}
	}

	catRows := make([]remote.CategoryRow, len(cats))
	for i, c := range cats {
		catRows[i] = toCategoryRow(c)
	}
	cardRows := make([]remote.FlashcardRow, len(cards))
	for i, f := range cards {
		cardRows[i] = toFlashcardRow(f)
	}

	for start := 0; start < len(catRows); start += e.cfg.BatchSize {
		if err := e.client.UpsertCategories(ctx, chunk(catRows, start, e.cfg.BatchSize)); err != nil {
			return e.fail("push", fmt.Errorf("upsert categories: %w", err))
		}
	}
	for start := 0; start < len(cardRows); start += e.cfg.BatchSize {
		if err := e.client.UpsertFlashcards(ctx, chunk(cardRows, start, e.cfg.BatchSize)); err != nil {
			return e.fail("push", fmt.Errorf("upsert flashcards: %w", err))
		}
	}

	// Every batch was acknowledged; only now do rows transition to synced.
	catIDs := make([]string, len(cats))
	for i, c := range cats {
		catIDs[i] = c.ID
	}
	cardIDs := make([]string, len(cards))
	for i, f := range cards {
		cardIDs[i] = f.ID
	}
	if err := e.store.MarkCategoriesSynced(ctx, catIDs); err != nil {
		return Result{Message: "failed to record sync state", Err: err}
	}
	if err := e.store.MarkFlashcardsSynced(ctx, cardIDs); err != nil {
		return Result{Message: "failed to record sync state", Err: err}
	}

	e.finishSync(ctx)
	e.logger.Printf("Pushed %d categories, %d flashcards", len(cats), len(cards))
	return Result{Success: true, Synced: len(cats) + len(cards), Message: "changes synced"}
}

func (e *Engine) doPull(ctx context.Context) Result {
	remoteCatRows, err := e.fetchAllCategories(ctx)
	if err != nil {
		return e.fail("pull", fmt.Errorf("select categories: %w", err))
	}
	remoteCardRows, err := e.fetchAllFlashcards(ctx)
	if err != nil {
		return e.fail("pull", fmt.Errorf("select flashcards: %w", err))
	}

	localCats, err := e.store.Categories(ctx)
	if err != nil {
		return Result{Message: "local read failed", Err: err}
	}
	localCards, err := e.store.Flashcards(ctx)
	if err != nil {
		return Result{Message: "local read failed", Err: err}
	}

	remoteCats := fromCategoryRows(remoteCatRows, localCats)
	remoteCards := make([]model.Flashcard, len(remoteCardRows))
	for i, r := range remoteCardRows {
		remoteCards[i] = fromFlashcardRow(r)
	}

	// Fixed reconciliation order: merge, then dedupe, then remap. The
	// remap runs unconditionally after dedupe, which is what guarantees
	// no flashcard is left pointing at a discarded category.
	mergedCats := resolve.Merge(localCats, remoteCats)
	mergedCards := resolve.Merge(localCards, remoteCards)
	dedupedCats, remap := resolve.DedupeCategoriesByName(mergedCats)
	remappedCards := resolve.RemapCategoryIDs(mergedCards, remap, model.Now())

	if err := e.store.SaveAll(ctx, dedupedCats, remappedCards); err != nil {
		return Result{Message: "failed to persist merged state", Err: err}
	}

	e.finishSync(ctx)
	e.logger.Printf("Pulled %d categories, %d flashcards (kept %d categories after dedupe)",
		len(remoteCatRows), len(remoteCardRows), len(dedupedCats))
	return Result{
		Success: true,
		Synced:  len(remoteCatRows) + len(remoteCardRows),
		Message: "up to date",
	}
}

// finishSync stamps lastSyncedAt and refreshes the pending counter.
func (e *Engine) finishSync(ctx context.Context) {
	now := time.Now()
	e.mu.Lock()
	e.lastSyncedAt = &now
	e.mu.Unlock()
	e.RefreshPending(ctx)
}

// fetchAllCategories pages through the remote categories collection. A
// short page signals end-of-data.
func (e *Engine) fetchAllCategories(ctx context.Context) ([]remote.CategoryRow, error) {
	var all []remote.CategoryRow
	for offset := 0; ; offset += e.cfg.PageSize {
		page, err := e.client.SelectCategories(ctx, offset, e.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < e.cfg.PageSize {
			return all, nil
		}
	}
}

// fetchAllFlashcards pages through the remote flashcards collection.
func (e *Engine) fetchAllFlashcards(ctx context.Context) ([]remote.FlashcardRow, error) {
	var all []remote.FlashcardRow
	for offset := 0; ; offset += e.cfg.PageSize {
		page, err := e.client.SelectFlashcards(ctx, offset, e.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < e.cfg.PageSize {
			return all, nil
		}
	}
}

func toCategoryRow(c model.Category) remote.CategoryRow {
	return remote.CategoryRow{
		ID:        c.ID,
		Name:      c.Name,
		Icon:      c.Icon,
		Color:     string(c.Color),
		UpdatedAt: c.UpdatedAt,
	}
}

func toFlashcardRow(f model.Flashcard) remote.FlashcardRow {
	return remote.FlashcardRow{
		ID:         f.ID,
		Word:       f.Word,
		ImageURL:   f.ImageURL,
		CategoryID: f.CategoryID,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// fromCategoryRows converts remote rows to local shape. The remote schema
// carries no display order or created_at for categories, so the local
// counterpart's values are preserved when one exists; categories never
// seen locally are appended after the current maximum order.
func fromCategoryRows(rows []remote.CategoryRow, local []model.Category) []model.Category {
	byID := make(map[string]model.Category, len(local))
	maxOrder := -1
	for _, c := range local {
		byID[c.ID] = c
		if c.Order > maxOrder {
			maxOrder = c.Order
		}
	}

	out := make([]model.Category, len(rows))
	for i, r := range rows {
		color := model.Color(r.Color)
		if !color.Valid() {
			color = model.ColorBlue
		}
		c := model.Category{
			ID:         r.ID,
			Name:       r.Name,
			Icon:       r.Icon,
			Color:      color,
			CreatedAt:  r.UpdatedAt,
			UpdatedAt:  r.UpdatedAt,
			SyncStatus: model.StatusSynced,
		}
		if prev, ok := byID[r.ID]; ok {
			c.Order = prev.Order
			c.CreatedAt = prev.CreatedAt
		} else {
			maxOrder++
			c.Order = maxOrder
		}
		out[i] = c
	}
	return out
}

func fromFlashcardRow(r remote.FlashcardRow) model.Flashcard {
	return model.Flashcard{
		ID:         r.ID,
		Word:       r.Word,
		ImageURL:   r.ImageURL,
		CategoryID: r.CategoryID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		SyncStatus: model.StatusSynced,
	}
}

func chunk[T any](rows []T, start, size int) []T {
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
