package events

import (
	"context"
	"sync"
)

// Publisher emits booking events.
type Publisher interface {
	Publish(ctx context.Context, evt BookingEvent) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, BookingEvent) error { return nil }

// MemoryPublisher keeps events in memory; used by local mode and tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []BookingEvent
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, evt BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]BookingEvent(nil), p.events...)
}

// Subjects lists the subjects in publish order.
func (p *MemoryPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Subject)
	}
	return out
}
