package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notDroid/HarmonyChat/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startPushServer serves one websocket endpoint that runs serve for
// each connection.
func startPushServer(t *testing.T, serve func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collectMessages(t *testing.T, url string, want int) []models.Message {
	t.Helper()
	received := make(chan models.Message, 16)
	listener := NewListener(url, nil, func(m models.Message) {
		received <- m
	})
	t.Cleanup(listener.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go listener.Run(ctx)

	var out []models.Message
	for len(out) < want {
		select {
		case m := <-received:
			out = append(out, m)
		case <-ctx.Done():
			t.Fatalf("received %d messages before timeout, want %d", len(out), want)
		}
	}
	return out
}

func TestListenerDeliversMessages(t *testing.T) {
	when := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	url := startPushServer(t, func(conn *websocket.Conn) {
		frame, _ := Serialize(EventMessage, models.Message{
			ChatID: "chat1", ServerID: "01A", AuthorID: "u2",
			Content: "hello", Timestamp: when,
		})
		conn.WriteMessage(websocket.TextMessage, frame)
		time.Sleep(time.Second)
	})

	got := collectMessages(t, url, 1)
	if got[0].ServerID != "01A" || got[0].Content != "hello" {
		t.Errorf("delivered message = %+v", got[0])
	}
}

func TestListenerSkipsMalformedAndUnknownFrames(t *testing.T) {
	url := startPushServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing","payload":{}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","payload":"not an object"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","payload":{"content":"no identity"}}`))
		frame, _ := Serialize(EventMessage, models.Message{ChatID: "chat1", ServerID: "01B", Content: "real"})
		conn.WriteMessage(websocket.TextMessage, frame)
		time.Sleep(time.Second)
	})

	got := collectMessages(t, url, 1)
	if got[0].ServerID != "01B" {
		t.Errorf("first delivered message = %+v, want 01B (bad frames skipped)", got[0])
	}
}

func TestListenerDecompressesBinaryFrames(t *testing.T) {
	url := startPushServer(t, func(conn *websocket.Conn) {
		frame, _ := Serialize(EventMessage, models.Message{ChatID: "chat1", ServerID: "01C", Content: "zipped"})
		compressed, err := CompressMessage(frame)
		if err != nil {
			t.Errorf("compress: %v", err)
			return
		}
		conn.WriteMessage(websocket.BinaryMessage, compressed)
		time.Sleep(time.Second)
	})

	got := collectMessages(t, url, 1)
	if got[0].ServerID != "01C" || got[0].Content != "zipped" {
		t.Errorf("delivered message = %+v, want 01C", got[0])
	}
}

func TestListenerReconnects(t *testing.T) {
	var connects int32
	url := startPushServer(t, func(conn *websocket.Conn) {
		n := atomic.AddInt32(&connects, 1)
		if n == 1 {
			// First connection dies immediately.
			return
		}
		frame, _ := Serialize(EventMessage, models.Message{ChatID: "chat1", ServerID: "01D"})
		conn.WriteMessage(websocket.TextMessage, frame)
		time.Sleep(time.Second)
	})

	received := make(chan models.Message, 1)
	listener := NewListener(url, nil, func(m models.Message) { received <- m })
	listener.baseRetryDelay = 10 * time.Millisecond
	t.Cleanup(listener.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go listener.Run(ctx)

	select {
	case m := <-received:
		if m.ServerID != "01D" {
			t.Errorf("message after reconnect = %+v", m)
		}
	case <-ctx.Done():
		t.Fatal("listener never delivered after reconnect")
	}
	if atomic.LoadInt32(&connects) < 2 {
		t.Errorf("connects = %d, want at least 2", connects)
	}
}

func TestRetryDelay(t *testing.T) {
	l := NewListener("ws://example", nil, nil)
	if got := l.retryDelay(0); got != 2*time.Second {
		t.Errorf("retryDelay(0) = %v, want 2s", got)
	}
	if got := l.retryDelay(3); got != 16*time.Second {
		t.Errorf("retryDelay(3) = %v, want 16s", got)
	}
	if got := l.retryDelay(5); got != 30*time.Second {
		t.Errorf("retryDelay(5) = %v, want steady 30s", got)
	}
}
