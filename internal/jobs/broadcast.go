package jobs

import (
	"sync"

	"mediadrop/internal/domain"
)

const subscriberBuffer = 16

// broadcaster fans a single job's events out to any number of subscribers.
// The most recent event is cached so a late subscriber is never left hanging:
// it immediately receives the last progress value, or the terminal event
// followed by channel close if the job already finished.
type broadcaster struct {
	mu       sync.Mutex
	subs     map[int]chan domain.ProgressEvent
	next     int
	last     *domain.ProgressEvent
	terminal bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: map[int]chan domain.ProgressEvent{}}
}

// subscribe registers a new listener. The returned cancel function
// unsubscribes without leaking; it is safe to call after the stream closed.
func (b *broadcaster) subscribe() (<-chan domain.ProgressEvent, func()) {
	ch := make(chan domain.ProgressEvent, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.last != nil {
		ch <- *b.last
	}
	if b.terminal {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// publish delivers an event to all current subscribers and caches it for
// late ones. Slow subscribers may miss intermediate progress values (their
// buffer is bounded), but a terminal event always lands: one stale progress
// entry is evicted to make room if needed, and the channel closes after it.
func (b *broadcaster) publish(ev domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminal {
		return
	}
	b.last = &ev
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			if ev.Terminal() {
				select {
				case <-ch:
				default:
				}
				ch <- ev
			}
		}
		if ev.Terminal() {
			close(ch)
			delete(b.subs, id)
		}
	}
	if ev.Terminal() {
		b.terminal = true
	}
}
