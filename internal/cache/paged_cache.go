package cache

import (
	"sort"

	"github.com/notDroid/HarmonyChat/internal/models"
)

// PagedCache holds chat history as a sequence of pages per chat, newest
// page first. Pages arrive from cursor-based backward pagination; the
// reconciler produces replacement page sequences when messages arrive
// out of band. The cache itself never deduplicates or reorders pages —
// it trusts the reconciler for that.
//
// Accessors hand back the stored slices as-is. Mutating callers (the
// reconciler) are copy-on-write, so a slice handed out earlier is never
// changed underneath a reader.
type PagedCache struct {
	pages map[string][]models.Page
}

// NewPagedCache creates an empty cache.
func NewPagedCache() *PagedCache {
	return &PagedCache{pages: make(map[string][]models.Page)}
}

// Pages returns the current page sequence for a chat, newest first.
// Empty if the chat has not been loaded.
func (pc *PagedCache) Pages(chatID string) []models.Page {
	return pc.pages[chatID]
}

// AppendOlderPage adds a page of older history to the end of the
// sequence. A page for an unseen chat establishes its entry; the cache
// cannot tell a first page from a stale older fetch, so callers guard
// staleness by comparing cursors at resolution time.
func (pc *PagedCache) AppendOlderPage(chatID string, page models.Page) {
	existing, seen := pc.pages[chatID]
	if !seen {
		pc.pages[chatID] = []models.Page{page}
		return
	}
	pc.pages[chatID] = append(existing[:len(existing):len(existing)], page)
}

// ReplacePages atomically swaps the full page sequence for a chat.
// Used after reconciliation.
func (pc *PagedCache) ReplacePages(chatID string, pages []models.Page) {
	pc.pages[chatID] = pages
}

// Drop discards a chat's cached history, e.g. when its view closes.
func (pc *PagedCache) Drop(chatID string) {
	delete(pc.pages, chatID)
}

// Flatten returns the union of all pages' messages sorted ascending for
// display. Callers wanting newest-first reverse the result. The slice is
// freshly allocated; the cache state is untouched.
func (pc *PagedCache) Flatten(chatID string) []models.Message {
	return FlattenPages(pc.pages[chatID])
}

// FlattenPages sorts the union of a page sequence without needing a
// cache instance.
func FlattenPages(pages []models.Page) []models.Message {
	total := 0
	for _, p := range pages {
		total += len(p.Messages)
	}
	out := make([]models.Message, 0, total)
	for _, p := range pages {
		out = append(out, p.Messages...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return models.CompareMessages(&out[i], &out[j]) < 0
	})
	return out
}
