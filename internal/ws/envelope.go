// Package ws connects to the backend's push channel and turns its
// frames into parsed message values for the chat session. Frame format
// is a typed JSON envelope; frames over the compression threshold may
// arrive gzip-compressed as binary messages.
package ws

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
)

const (
	// EventMessage carries a chat message payload.
	EventMessage = "message"
	// EventError carries a server-side error notice.
	EventError = "error"
)

// SerializedMessage is the wire format wrapper
type SerializedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Serialize wraps a payload in the typed envelope.
func Serialize(eventType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(SerializedMessage{Type: eventType, Payload: raw})
}

// Deserialize unwraps an envelope without touching the payload.
func Deserialize(jsonBytes []byte) (SerializedMessage, error) {
	var wrapper SerializedMessage
	if err := json.Unmarshal(jsonBytes, &wrapper); err != nil {
		return SerializedMessage{}, err
	}
	return wrapper, nil
}

// DecompressMessage inflates a gzip-compressed binary frame.
func DecompressMessage(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// CompressMessage gzips a frame, used by tests standing in for the
// server side.
func CompressMessage(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
