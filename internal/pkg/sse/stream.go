package sse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Stream wraps one SSE connection over a gin context.
type Stream struct {
	client     *Client
	ctx        *gin.Context
	hub        *Hub
	resource   string
	bufferSize int
	heartbeat  time.Duration

	onDisconnect func()
	onError      func(error)

	// mu orders sends against Close: Unregister closes the client channel,
	// so a send must never interleave with it.
	mu          sync.RWMutex
	closed      bool
	cancelFunc  context.CancelFunc
	connectTime time.Time
}

// StreamBuilder configures a Stream before it starts.
type StreamBuilder struct {
	ginCtx       *gin.Context
	hub          *Hub
	resource     string
	bufferSize   int
	heartbeat    time.Duration
	onDisconnect func()
	onError      func(error)
}

// NewStream creates a Stream builder with defaults
func NewStream(c *gin.Context, hub *Hub) *StreamBuilder {
	return &StreamBuilder{
		ginCtx:     c,
		hub:        hub,
		bufferSize: 16,
		heartbeat:  30 * time.Second,
	}
}

// WithResource sets the resource ID the stream subscribes to
func (b *StreamBuilder) WithResource(resource string) *StreamBuilder {
	b.resource = resource
	return b
}

// WithBufferSize sets the event channel buffer size
func (b *StreamBuilder) WithBufferSize(size int) *StreamBuilder {
	b.bufferSize = size
	return b
}

// WithHeartbeat sets the heartbeat interval (0 disables heartbeats)
func (b *StreamBuilder) WithHeartbeat(interval time.Duration) *StreamBuilder {
	b.heartbeat = interval
	return b
}

// OnDisconnect sets the disconnect hook
func (b *StreamBuilder) OnDisconnect(fn func()) *StreamBuilder {
	b.onDisconnect = fn
	return b
}

// OnError sets the error hook
func (b *StreamBuilder) OnError(fn func(error)) *StreamBuilder {
	b.onError = fn
	return b
}

// Build constructs the Stream
func (b *StreamBuilder) Build() *Stream {
	client := &Client{
		ID:       uuid.New().String(),
		Channel:  make(chan Event, b.bufferSize),
		Resource: b.resource,
	}

	return &Stream{
		client:       client,
		ctx:          b.ginCtx,
		hub:          b.hub,
		resource:     b.resource,
		bufferSize:   b.bufferSize,
		heartbeat:    b.heartbeat,
		onDisconnect: b.onDisconnect,
		onError:      b.onError,
		connectTime:  time.Now(),
	}
}

// Send queues an event for delivery. Safe for concurrent use.
// A full buffer drops the event and reports it through the error hook.
func (s *Stream) Send(eventType string, data interface{}) error {
	ok, err := s.trySend(Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	if !ok {
		err = fmt.Errorf("stream buffer full, event dropped: %s", eventType)
		if s.onError != nil {
			s.onError(err)
		}
		return err
	}
	return nil
}

// SendBlocking queues an event, waiting for buffer space instead of
// dropping. Use for terminal events that must not be lost; gives up when
// ctx is done or the stream closes.
func (s *Stream) SendBlocking(ctx context.Context, eventType string, data interface{}) error {
	event := Event{Type: eventType, Data: data}

	for {
		ok, err := s.trySend(event)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// trySend performs one non-blocking send attempt. The read lock keeps
// Close from closing the channel mid-send.
func (s *Stream) trySend(event Event) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, fmt.Errorf("stream closed")
	}

	select {
	case s.client.Channel <- event:
		return true, nil
	default:
		return false, nil
	}
}

// Close shuts the stream down. Idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.hub.Unregister(s.client)
	cancel := s.cancelFunc
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if s.onDisconnect != nil {
		s.onDisconnect()
	}

	return nil
}

// StartStreaming writes queued events to the client until the channel is
// closed or the client disconnects. Blocks; call from the HTTP handler.
func (s *Stream) StartStreaming() {
	s.ctx.Header("Content-Type", "text/event-stream")
	s.ctx.Header("Cache-Control", "no-cache")
	s.ctx.Header("Connection", "keep-alive")
	s.ctx.Header("X-Accel-Buffering", "no")

	s.hub.Register(s.client)
	defer s.Close()

	connectedEvent := Event{
		Type: "connected",
		Data: map[string]string{
			"client_id": s.client.ID,
			"resource":  s.client.Resource,
		},
	}
	if _, err := fmt.Fprint(s.ctx.Writer, connectedEvent.FormatSSE()); err != nil {
		if s.onError != nil {
			s.onError(err)
		}
		return
	}
	s.ctx.Writer.Flush()

	if s.heartbeat > 0 {
		heartbeatCtx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		s.cancelFunc = cancel
		s.mu.Unlock()
		go s.startHeartbeat(heartbeatCtx)
	}

	clientGone := s.ctx.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return

		case event, ok := <-s.client.Channel:
			if !ok {
				return
			}

			if _, err := fmt.Fprint(s.ctx.Writer, event.FormatSSE()); err != nil {
				if s.onError != nil {
					s.onError(err)
				}
				return
			}
			s.ctx.Writer.Flush()
		}
	}
}

// startHeartbeat emits SSE comments to keep intermediaries from timing out
func (s *Stream) startHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprintf(s.ctx.Writer, ": heartbeat\n\n"); err != nil {
				if s.onError != nil {
					s.onError(err)
				}
				return
			}
			s.ctx.Writer.Flush()
		}
	}
}

// ClientID returns the connection's client ID
func (s *Stream) ClientID() string {
	return s.client.ID
}

// IsClosed reports whether the stream has been closed
func (s *Stream) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
