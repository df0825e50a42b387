// Package sse fans server-sent events out to connected HTTP clients.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/adapter"
	"jobflow/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ adapter.FlagPublisher = (*Broadcaster)(nil)

// Subscriber receives encoded event frames. Send must fail once the
// underlying connection is gone.
type Subscriber interface {
	Send(frame []byte) error
}

// Broadcaster owns the set of live subscribers on this instance.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[Subscriber]struct{}
	log  *zerolog.Logger
}

func NewBroadcaster(logger *zerolog.Logger) *Broadcaster {
	l := logger.With().Str("component", "Broadcaster").Logger()
	return &Broadcaster{subs: make(map[Subscriber]struct{}), log: &l}
}

func (b *Broadcaster) Add(s Subscriber) {
	b.mu.Lock()
	b.subs[s] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()
	metrics.SetFlagStreamClients(n)
}

// Remove is idempotent.
func (b *Broadcaster) Remove(s Subscriber) {
	b.mu.Lock()
	delete(b.subs, s)
	n := len(b.subs)
	b.mu.Unlock()
	metrics.SetFlagStreamClients(n)
}

func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Frame encodes data as a single SSE message.
func Frame(data []byte) []byte {
	out := make([]byte, 0, len(data)+8)
	out = append(out, "data: "...)
	out = append(out, data...)
	out = append(out, "\n\n"...)
	return out
}

// Broadcast serializes payload once and writes it to every subscriber.
// Subscribers whose write fails are dropped before Broadcast returns.
// It returns the number of successful deliveries.
func (b *Broadcaster) Broadcast(payload any) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	frame := Frame(data)

	b.mu.RLock()
	snapshot := make([]Subscriber, 0, len(b.subs))
	for s := range b.subs {
		snapshot = append(snapshot, s)
	}
	b.mu.RUnlock()

	var failed []Subscriber
	for _, s := range snapshot {
		if err := s.Send(frame); err != nil {
			failed = append(failed, s)
		}
	}

	if len(failed) > 0 {
		b.mu.Lock()
		for _, s := range failed {
			delete(b.subs, s)
		}
		n := len(b.subs)
		b.mu.Unlock()
		metrics.SetFlagStreamClients(n)
		metrics.AddFlagStreamDrops(len(failed))
		b.log.Debug().Int("dropped", len(failed)).Msg("removed dead subscribers")
	}
	metrics.IncFlagBroadcast()
	return len(snapshot) - len(failed), nil
}

// FlagEvent is the payload pushed on every flag change.
type FlagEvent struct {
	Flags model.FlagMap `json:"flags"`
}

// Publish pushes the flag snapshot to local subscribers.
func (b *Broadcaster) Publish(ctx context.Context, flags model.FlagMap) error {
	_, err := b.Broadcast(FlagEvent{Flags: flags})
	return err
}
