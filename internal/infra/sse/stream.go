package sse

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
)

var (
	ErrClosed           = errors.New("sse: stream closed")
	ErrFlushUnsupported = errors.New("sse: response writer cannot flush")
)

// StreamClient is a Subscriber bound to one HTTP response.
// After Close, Send fails without touching the writer.
type StreamClient struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	f      http.Flusher
	closed bool
}

func NewStreamClient(w http.ResponseWriter) (*StreamClient, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrFlushUnsupported
	}
	return &StreamClient{w: w, f: f}, nil
}

// Open writes the stream headers and the reconnect hint.
func (c *StreamClient) Open(retryMillis int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.w.WriteHeader(http.StatusOK)
	c.f.Flush()
	return c.writeLocked(retryFrame(retryMillis))
}

func (c *StreamClient) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.writeLocked(frame)
}

// Ping writes an SSE comment line.
func (c *StreamClient) Ping() error {
	return c.Send([]byte(": ping\n\n"))
}

func (c *StreamClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *StreamClient) writeLocked(b []byte) error {
	if _, err := c.w.Write(b); err != nil {
		c.closed = true
		return err
	}
	c.f.Flush()
	return nil
}

func retryFrame(ms int) []byte {
	return []byte("retry: " + strconv.Itoa(ms) + "\n\n")
}
