package session

import (
	"context"

	"github.com/notDroid/HarmonyChat/internal/models"
)

// HistoryFetcher defines the contract for loading pages of chat history
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, chatID string, limit int, cursor string) (models.Page, error)
}

// MessageSender defines the contract for the send endpoint
type MessageSender interface {
	Send(ctx context.Context, chatID, content, clientUUID string) (models.Message, error)
}
