package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notDroid/HarmonyChat/internal/models"
)

// Listener maintains the push-channel connection for one chat and
// delivers parsed messages to its handler. Malformed or unknown frames
// never reach the handler. Reconnection uses exponential backoff up to
// maxRetries doublings, then keeps trying at a steady interval until
// Close.
type Listener struct {
	url     string
	header  http.Header
	handler func(models.Message)

	dialer         *websocket.Dialer
	maxRetries     int
	baseRetryDelay time.Duration
	steadyDelay    time.Duration
	pongTimeout    time.Duration

	done chan struct{}
}

// NewListener creates a listener for the given ws/wss URL. The handler
// is called from the read goroutine, one message at a time.
func NewListener(url string, header http.Header, handler func(models.Message)) *Listener {
	return &Listener{
		url:            url,
		header:         header,
		handler:        handler,
		dialer:         websocket.DefaultDialer,
		maxRetries:     5,
		baseRetryDelay: 2 * time.Second,
		steadyDelay:    30 * time.Second,
		pongTimeout:    90 * time.Second,
		done:           make(chan struct{}),
	}
}

// Run connects and keeps reading until ctx is cancelled or Close is
// called. It blocks; run it on its own goroutine.
func (l *Listener) Run(ctx context.Context) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		default:
		}

		conn, _, err := l.dialer.DialContext(ctx, l.url, l.header)
		if err != nil {
			log.Printf("ws connect to %s failed: %v", l.url, err)
			if !l.sleep(ctx, l.retryDelay(attempt)) {
				return
			}
			attempt++
			continue
		}

		log.Printf("ws connected to %s", l.url)
		attempt = 0
		l.readLoop(ctx, conn)
		conn.Close()

		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		default:
		}
		log.Printf("ws disconnected from %s, reconnecting", l.url)
		if !l.sleep(ctx, l.retryDelay(attempt)) {
			return
		}
		attempt++
	}
}

// Close stops the listener permanently.
func (l *Listener) Close() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}

func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(l.pongTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(l.pongTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	// Close the connection when the listener stops so ReadMessage
	// unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-l.done:
		case <-stop:
			return
		}
		conn.Close()
	}()

	for {
		frameType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(l.pongTimeout))

		// Binary frames are gzip-compressed envelopes.
		if frameType == websocket.BinaryMessage {
			decompressed, err := DecompressMessage(data)
			if err != nil {
				log.Printf("ws: dropping undecompressable frame: %v", err)
				continue
			}
			data = decompressed
		}

		envelope, err := Deserialize(data)
		if err != nil {
			log.Printf("ws: dropping malformed frame: %v", err)
			continue
		}

		switch envelope.Type {
		case EventMessage:
			var msg models.Message
			if err := json.Unmarshal(envelope.Payload, &msg); err != nil {
				log.Printf("ws: dropping malformed message payload: %v", err)
				continue
			}
			if msg.ServerID == "" && msg.ClientUUID == "" {
				log.Printf("ws: dropping message with no identity")
				continue
			}
			l.handler(msg)
		case EventError:
			log.Printf("ws: server error frame: %s", envelope.Payload)
		default:
			// Unknown event types are fine; the protocol grows without
			// breaking old clients.
		}
	}
}

func (l *Listener) retryDelay(attempt int) time.Duration {
	if attempt >= l.maxRetries {
		return l.steadyDelay
	}
	return l.baseRetryDelay * (1 << attempt)
}

func (l *Listener) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-l.done:
		return false
	case <-timer.C:
		return true
	}
}
