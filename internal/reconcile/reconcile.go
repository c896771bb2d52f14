// Package reconcile folds messages from any source — history fetch, the
// push channel, or a local send — into a chat's page sequence without
// duplication or loss. All functions are pure: they never mutate their
// inputs and return a fresh page slice, so callers can compare before
// and after for invalidation.
package reconcile

import (
	"github.com/notDroid/HarmonyChat/internal/models"
)

// InsertOrUpdate merges an incoming message into the page sequence. If a
// record with the same identity exists anywhere it is replaced in place
// by the merge of the two (incoming wins on every field it sets, status
// defaulting to sent). Otherwise the message is appended to the newest
// page; new pages are only ever created by history fetches, so an empty
// sequence gets a single empty page first.
//
// Idempotent: applying the same incoming message twice equals applying
// it once. Required for at-least-once delivery from the push channel.
func InsertOrUpdate(pages []models.Page, incoming models.Message) []models.Page {
	incoming.Status = incoming.EffectiveStatus()

	replaced := false
	out := make([]models.Page, len(pages))
	for i, page := range pages {
		if replaced {
			out[i] = page
			continue
		}
		idx := -1
		for j := range page.Messages {
			if models.SameMessage(&page.Messages[j], &incoming) {
				idx = j
				break
			}
		}
		if idx < 0 {
			out[i] = page
			continue
		}
		msgs := make([]models.Message, len(page.Messages))
		copy(msgs, page.Messages)
		msgs[idx] = merge(msgs[idx], incoming)
		out[i] = models.Page{Messages: msgs, NextCursor: page.NextCursor}
		replaced = true
	}
	if replaced {
		return out
	}

	if len(out) == 0 {
		out = []models.Page{{}}
	}
	first := out[0]
	msgs := make([]models.Message, len(first.Messages), len(first.Messages)+1)
	copy(msgs, first.Messages)
	msgs = append(msgs, incoming)
	out[0] = models.Page{Messages: msgs, NextCursor: first.NextCursor}
	return out
}

// UpdateStatus sets the status of the provisional record with the given
// client uuid. A confirmed record counts as not found: sent is terminal,
// so a stale failure can never downgrade it. Not finding one is a
// harmless race and leaves the input unchanged.
func UpdateStatus(pages []models.Page, clientUUID string, status models.MessageStatus) []models.Page {
	if clientUUID == "" {
		return pages
	}
	for i, page := range pages {
		for j := range page.Messages {
			if page.Messages[j].ClientUUID != clientUUID || page.Messages[j].Confirmed() {
				continue
			}
			out := make([]models.Page, len(pages))
			copy(out, pages)
			msgs := make([]models.Message, len(page.Messages))
			copy(msgs, page.Messages)
			msgs[j].Status = status
			out[i] = models.Page{Messages: msgs, NextCursor: page.NextCursor}
			return out
		}
	}
	return pages
}

// RemoveProvisional drops the record still identified only by its client
// uuid. Used when a send response reveals that the push channel already
// delivered the confirmed copy of the same message, leaving a duplicate
// the identity check could not have caught. Records that carry a server
// id are left alone; no-op when nothing matches.
func RemoveProvisional(pages []models.Page, clientUUID string) []models.Page {
	if clientUUID == "" {
		return pages
	}
	for i, page := range pages {
		for j := range page.Messages {
			m := &page.Messages[j]
			if m.ClientUUID != clientUUID || m.Confirmed() {
				continue
			}
			out := make([]models.Page, len(pages))
			copy(out, pages)
			msgs := make([]models.Message, 0, len(page.Messages)-1)
			msgs = append(msgs, page.Messages[:j]...)
			msgs = append(msgs, page.Messages[j+1:]...)
			out[i] = models.Page{Messages: msgs, NextCursor: page.NextCursor}
			return out
		}
	}
	return pages
}

// merge overlays incoming on top of existing. Incoming wins wherever it
// sets a field; identity fields are unioned so a confirmation carrying
// both ids links the provisional record to its server id.
func merge(existing, incoming models.Message) models.Message {
	out := existing
	if incoming.ChatID != "" {
		out.ChatID = incoming.ChatID
	}
	if incoming.ServerID != "" {
		out.ServerID = incoming.ServerID
	}
	if incoming.ClientUUID != "" {
		out.ClientUUID = incoming.ClientUUID
	}
	if incoming.AuthorID != "" {
		out.AuthorID = incoming.AuthorID
	}
	if incoming.Content != "" {
		out.Content = incoming.Content
	}
	if !incoming.Timestamp.IsZero() {
		out.Timestamp = incoming.Timestamp
	}
	out.Status = incoming.EffectiveStatus()
	return out
}
