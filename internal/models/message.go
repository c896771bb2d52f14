package models

import (
	"strings"
	"time"
)

type MessageStatus string

const (
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
	StatusError   MessageStatus = "error"
)

// Message is a single chat message as seen by the client. A message that
// came back from the server carries a ServerID (a ULID); a message the
// client created locally carries only a ClientUUID until the server
// confirms it. A confirmed local message carries both.
type Message struct {
	ChatID   string `json:"chat_id" msgpack:"chat_id"`
	ServerID string `json:"ulid,omitempty" msgpack:"ulid,omitempty"`

	// Client-side tracking
	ClientUUID string `json:"client_uuid,omitempty" msgpack:"client_uuid,omitempty"` // UUID for deduplication

	AuthorID  string    `json:"user_id" msgpack:"user_id"`
	Content   string    `json:"content" msgpack:"content"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`

	// Status tracking; empty means sent (history and push payloads omit it)
	Status MessageStatus `json:"status,omitempty" msgpack:"status,omitempty"`
}

// EffectiveStatus resolves the zero value to StatusSent.
func (m *Message) EffectiveStatus() MessageStatus {
	if m.Status == "" {
		return StatusSent
	}
	return m.Status
}

// Confirmed reports whether the server has assigned this message an id.
func (m *Message) Confirmed() bool {
	return m.ServerID != ""
}

// MessageKeyKind discriminates the two ways a message can be identified.
type MessageKeyKind int

const (
	KeyServer MessageKeyKind = iota
	KeyClient
)

// MessageKey is the identity of a message: its server id once assigned,
// otherwise its client correlation uuid.
type MessageKey struct {
	Kind  MessageKeyKind
	Value string
}

// Key returns the preferred identity key for the message.
func (m *Message) Key() MessageKey {
	if m.ServerID != "" {
		return MessageKey{Kind: KeyServer, Value: m.ServerID}
	}
	return MessageKey{Kind: KeyClient, Value: m.ClientUUID}
}

// SameMessage reports whether a and b refer to the same logical message.
// Two records match when their server ids agree or their client uuids
// agree; either comparison requires the field present on both sides. The
// two keys cover the distinct phases of a message's life: the server id
// exists only after confirmation, the client uuid only on messages this
// client originated.
func SameMessage(a, b *Message) bool {
	if a.ServerID != "" && b.ServerID != "" && a.ServerID == b.ServerID {
		return true
	}
	if a.ClientUUID != "" && b.ClientUUID != "" && a.ClientUUID == b.ClientUUID {
		return true
	}
	return false
}

// CompareMessages orders messages for display: timestamp ascending, then
// server id (ULIDs sort lexicographically in assignment order). A pending
// record has no server order yet and sorts after every confirmed record
// with the same timestamp; pending records order among themselves by
// client uuid so the result stays total.
func CompareMessages(a, b *Message) int {
	if a.Timestamp.Before(b.Timestamp) {
		return -1
	}
	if a.Timestamp.After(b.Timestamp) {
		return 1
	}
	switch {
	case a.ServerID != "" && b.ServerID != "":
		return strings.Compare(a.ServerID, b.ServerID)
	case a.ServerID != "":
		return -1
	case b.ServerID != "":
		return 1
	default:
		return strings.Compare(a.ClientUUID, b.ClientUUID)
	}
}
