// Package broker provides an in-memory pub/sub mechanism scoped by project.
// It is used to notify dashboard SSE connections when a project's reports change.
package broker

import "sync"

// Action describes what happened to a report.
type Action string

const (
	ActionCreated Action = "created"
	ActionDeleted Action = "deleted"
)

// Event is delivered to subscribers of a project.
type Event struct {
	Action   Action `json:"action"`
	ReportID string `json:"reportId"`
}

// Broker is a project-scoped pub/sub hub. Channels are buffered to 1 and a
// subscriber that has not read its pending event has it replaced by the newest
// one, so slow dashboards only ever see the latest change.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// New creates a ready-to-use Broker.
func New() *Broker {
	return &Broker{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe returns a buffered(1) channel that receives an event each time
// Publish is called for the given project.
func (b *Broker) Subscribe(project string) chan Event {
	ch := make(chan Event, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[project] == nil {
		b.subs[project] = make(map[chan Event]struct{})
	}
	b.subs[project][ch] = struct{}{}
	return ch
}

// Unsubscribe removes a channel from the project's subscriber set.
// If the project has no remaining subscribers, the entry is cleaned up.
func (b *Broker) Unsubscribe(project string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subs[project]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(b.subs, project)
		}
	}
}

// Publish delivers ev to every subscriber of project without blocking.
func (b *Broker) Publish(project string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[project] {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Buffer full: drop the stale event and retry once. Publish holds the
		// lock so no other sender can refill the slot in between.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of open subscriptions for project.
func (b *Broker) Subscribers(project string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[project])
}
