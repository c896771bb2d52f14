// Package session coordinates one chat view: it owns the paged cache,
// drives history pagination, runs the optimistic send lifecycle and
// accepts live push events. Transport and rendering stay outside; the
// session only sees the HistoryFetcher and MessageSender contracts and
// reports changes through an invalidation callback.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notDroid/HarmonyChat/internal/cache"
	"github.com/notDroid/HarmonyChat/internal/models"
	"github.com/notDroid/HarmonyChat/internal/reconcile"
	"github.com/notDroid/HarmonyChat/internal/validation"
)

const DefaultPageSize = 50

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
	// ErrNotRetryable is returned by Retry when the message is not in
	// the error state (it may already have been confirmed).
	ErrNotRetryable = errors.New("message is not retryable")
)

// ChatSession is the per-chat coordinator. All cache mutations go
// through it; the mutex serializes the send/fetch goroutines against
// the listener's read goroutine. Mutations are copy-on-write snapshot
// swaps, so Messages results stay stable for readers that hold them.
type ChatSession struct {
	chatID        string
	currentUserID string
	fetcher       HistoryFetcher
	sender        MessageSender
	snapshots     *cache.SnapshotCache

	pageSize int
	onChange func()

	mu         sync.Mutex
	cache      *cache.PagedCache
	nextCursor string
	loaded     bool
	exhausted  bool
	closed     bool
}

// NewChatSession creates a session for one chat. snapshots may be nil.
func NewChatSession(chatID, currentUserID string, fetcher HistoryFetcher, sender MessageSender, snapshots *cache.SnapshotCache) *ChatSession {
	return &ChatSession{
		chatID:        chatID,
		currentUserID: currentUserID,
		fetcher:       fetcher,
		sender:        sender,
		snapshots:     snapshots,
		pageSize:      DefaultPageSize,
		cache:         cache.NewPagedCache(),
	}
}

// SetPageSize overrides the history fetch size.
func (s *ChatSession) SetPageSize(n int) {
	if n > 0 {
		s.pageSize = n
	}
}

// SetOnChange registers the invalidation callback. It is invoked after
// every cache change, outside the session lock.
func (s *ChatSession) SetOnChange(fn func()) {
	s.onChange = fn
}

// ChatID returns the chat this session tracks.
func (s *ChatSession) ChatID() string {
	return s.chatID
}

// Messages returns the current flattened view, ascending by display
// order. The slice is a fresh snapshot safe to keep across events.
func (s *ChatSession) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Flatten(s.chatID)
}

// HasMore reports whether older history remains to fetch.
func (s *ChatSession) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.loaded || !s.exhausted
}

// LoadInitial loads the newest page. If a warm-start snapshot exists it
// is shown first, then replaced by the fresh fetch. Provisional records
// already in the cache (sends racing the initial load) survive the
// replace.
func (s *ChatSession) LoadInitial(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	warmed := false
	if !s.loaded {
		if pages, ok := s.snapshots.GetHistory(s.chatID); ok {
			s.cache.ReplacePages(s.chatID, pages)
			warmed = true
		}
	}
	s.mu.Unlock()
	if warmed {
		s.notify()
	}

	page, err := s.fetcher.FetchHistory(ctx, s.chatID, s.pageSize, "")
	if err != nil {
		return fmt.Errorf("load history for chat %s: %w", s.chatID, err)
	}

	s.mu.Lock()
	if s.closed {
		// Session moved on while the fetch was in flight; drop the page.
		s.mu.Unlock()
		return ErrClosed
	}
	pages := []models.Page{page}
	// Carry provisional records forward into the fresh state. A record
	// the fresh history already confirmed (the backend echoes the
	// client uuid) is skipped: re-reconciling the stale pending copy
	// would downgrade a sent record.
	for _, m := range s.cache.Flatten(s.chatID) {
		if m.Confirmed() || containsMessage(pages, &m) {
			continue
		}
		pages = reconcile.InsertOrUpdate(pages, m)
	}
	s.cache.ReplacePages(s.chatID, pages)
	s.loaded = true
	s.nextCursor = page.NextCursor
	s.exhausted = page.NextCursor == ""
	s.writeSnapshotLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// LoadOlder fetches the next older page and appends it. Returns false
// when history is exhausted. A page that resolves after the session
// closed, or after a newer load reset the cursor, is discarded.
func (s *ChatSession) LoadOlder(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	if !s.loaded {
		s.mu.Unlock()
		return false, errors.New("initial page not loaded")
	}
	if s.exhausted {
		s.mu.Unlock()
		return false, nil
	}
	cursor := s.nextCursor
	s.mu.Unlock()

	page, err := s.fetcher.FetchHistory(ctx, s.chatID, s.pageSize, cursor)
	if err != nil {
		return false, fmt.Errorf("load older history for chat %s: %w", s.chatID, err)
	}

	s.mu.Lock()
	if s.closed || s.nextCursor != cursor {
		// Superseded while in flight.
		s.mu.Unlock()
		return false, nil
	}
	s.cache.AppendOlderPage(s.chatID, page)
	s.nextCursor = page.NextCursor
	s.exhausted = page.NextCursor == ""
	s.writeSnapshotLocked()
	s.mu.Unlock()

	s.notify()
	return true, nil
}

// Send validates and optimistically displays a new message, then calls
// the send endpoint. The returned client uuid identifies the message
// for Retry. On transport failure the record is marked error and the
// error returned; the record stays visible with its retry affordance.
func (s *ChatSession) Send(ctx context.Context, content string) (string, error) {
	content, err := validation.ValidateMessageContent(content)
	if err != nil {
		return "", err
	}

	clientUUID := uuid.NewString()
	provisional := models.Message{
		ChatID:     s.chatID,
		ClientUUID: clientUUID,
		AuthorID:   s.currentUserID,
		Content:    content,
		Timestamp:  time.Now().UTC(),
		Status:     models.StatusPending,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	s.cache.ReplacePages(s.chatID, reconcile.InsertOrUpdate(s.cache.Pages(s.chatID), provisional))
	s.mu.Unlock()
	s.notify()

	return clientUUID, s.deliver(ctx, clientUUID, content)
}

// Retry re-sends a failed message under its original client uuid, so
// the eventual confirmation reconciles against the same record instead
// of creating a duplicate.
func (s *ChatSession) Retry(ctx context.Context, clientUUID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	var target *models.Message
	for _, m := range s.cache.Flatten(s.chatID) {
		if m.ClientUUID == clientUUID {
			target = &m
			break
		}
	}
	if target == nil || target.EffectiveStatus() != models.StatusError {
		s.mu.Unlock()
		return ErrNotRetryable
	}
	content := target.Content
	s.cache.ReplacePages(s.chatID, reconcile.UpdateStatus(s.cache.Pages(s.chatID), clientUUID, models.StatusPending))
	s.mu.Unlock()
	s.notify()

	return s.deliver(ctx, clientUUID, content)
}

// deliver runs the network half of a send and reconciles the outcome.
func (s *ChatSession) deliver(ctx context.Context, clientUUID, content string) error {
	confirmed, err := s.sender.Send(ctx, s.chatID, content, clientUUID)
	if err != nil {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return fmt.Errorf("send message: %w", err)
		}
		s.cache.ReplacePages(s.chatID, reconcile.UpdateStatus(s.cache.Pages(s.chatID), clientUUID, models.StatusError))
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("send message: %w", err)
	}

	// The response may omit the correlation id; restore it so identity
	// matching can find the provisional record.
	if confirmed.ClientUUID == "" {
		confirmed.ClientUUID = clientUUID
	}
	if confirmed.ChatID == "" {
		confirmed.ChatID = s.chatID
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	pages := s.cache.Pages(s.chatID)
	// Push-before-ack race: if the push channel already delivered this
	// message under its server id (without our uuid), the identity match
	// cannot pair it with the provisional record. Drop the provisional
	// duplicate before reconciling the confirmation.
	if hasForeignServerID(pages, confirmed.ServerID, clientUUID) {
		pages = reconcile.RemoveProvisional(pages, clientUUID)
	}
	pages = reconcile.InsertOrUpdate(pages, confirmed)
	s.cache.ReplacePages(s.chatID, pages)
	s.writeSnapshotLocked()
	s.mu.Unlock()
	s.notify()
	return nil
}

// HandleLive accepts a message from the push channel. Events for other
// chats are ignored; the listener is shared per connection, not per
// chat.
func (s *ChatSession) HandleLive(msg models.Message) {
	if msg.ChatID != "" && msg.ChatID != s.chatID {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cache.ReplacePages(s.chatID, reconcile.InsertOrUpdate(s.cache.Pages(s.chatID), msg))
	s.writeSnapshotLocked()
	s.mu.Unlock()
	s.notify()
}

// Close detaches the session. In-flight fetches and sends resolve
// against a dead cache and are discarded.
func (s *ChatSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cache.Drop(s.chatID)
	s.mu.Unlock()
}

func (s *ChatSession) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// writeSnapshotLocked persists the current pages for warm starts.
// Best effort; failures only cost the next warm start.
func (s *ChatSession) writeSnapshotLocked() {
	if err := s.snapshots.SetHistory(s.chatID, s.cache.Pages(s.chatID)); err != nil {
		log.Printf("WARNING: snapshot write failed for chat %s: %v", s.chatID, err)
	}
}

// containsMessage reports whether any record in the pages shares an
// identity with m.
func containsMessage(pages []models.Page, m *models.Message) bool {
	for _, page := range pages {
		for i := range page.Messages {
			if models.SameMessage(&page.Messages[i], m) {
				return true
			}
		}
	}
	return false
}

// hasForeignServerID reports whether some record already carries the
// server id but is not the provisional record being confirmed.
func hasForeignServerID(pages []models.Page, serverID, clientUUID string) bool {
	if serverID == "" {
		return false
	}
	for _, page := range pages {
		for i := range page.Messages {
			m := &page.Messages[i]
			if m.ServerID == serverID && m.ClientUUID != clientUUID {
				return true
			}
		}
	}
	return false
}
