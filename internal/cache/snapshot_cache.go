package cache

import (
	"fmt"
	"time"

	"github.com/notDroid/HarmonyChat/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// HistorySnapshotTTL bounds how stale a warm-start snapshot may be.
const HistorySnapshotTTL = 5 * time.Minute

// SnapshotCache persists a chat's fetched pages to Redis so a reopened
// chat view can render instantly while the fresh fetch is in flight.
// All methods are safe on a nil receiver or nil Redis handle: the client
// runs without Redis, it just loses warm starts.
type SnapshotCache struct {
	redis *RedisCache
}

// NewSnapshotCache creates a new snapshot cache
func NewSnapshotCache(redis *RedisCache) *SnapshotCache {
	return &SnapshotCache{redis: redis}
}

func historyKey(chatID string) string {
	return fmt.Sprintf("chat:history:%s", chatID)
}

// GetHistory retrieves the cached page sequence for a chat.
func (sc *SnapshotCache) GetHistory(chatID string) ([]models.Page, bool) {
	if sc == nil || sc.redis == nil {
		return nil, false
	}
	data, err := sc.redis.Get(historyKey(chatID))
	if err != nil || data == nil {
		return nil, false
	}

	var pages []models.Page
	if err := msgpack.Unmarshal(data, &pages); err != nil {
		return nil, false
	}

	return pages, true
}

// SetHistory caches a chat's page sequence. Provisional records are
// stripped first: a pending or errored message is meaningless to a
// future session that no longer holds its send routine.
func (sc *SnapshotCache) SetHistory(chatID string, pages []models.Page) error {
	if sc == nil || sc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(stripProvisional(pages))
	if err != nil {
		return err
	}

	return sc.redis.Set(historyKey(chatID), data, HistorySnapshotTTL)
}

// InvalidateHistory removes a chat's snapshot.
func (sc *SnapshotCache) InvalidateHistory(chatID string) error {
	if sc == nil || sc.redis == nil {
		return nil
	}
	return sc.redis.Delete(historyKey(chatID))
}

func stripProvisional(pages []models.Page) []models.Page {
	out := make([]models.Page, 0, len(pages))
	for _, p := range pages {
		kept := make([]models.Message, 0, len(p.Messages))
		for _, m := range p.Messages {
			if m.Confirmed() {
				kept = append(kept, m)
			}
		}
		out = append(out, models.Page{Messages: kept, NextCursor: p.NextCursor})
	}
	return out
}
