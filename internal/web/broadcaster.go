package web

import (
	"sync"

	"ahrsd/internal/loop"
)

// Broadcaster fans out loop snapshots to any listeners (WebSocket clients,
// the MQTT publisher). It keeps the most recent value so new subscribers get
// an immediate sample, and never blocks the publisher: slow listeners lose
// intermediate snapshots, not the stream.
type Broadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan loop.Snapshot
	nextID   int
	last     loop.Snapshot
	haveLast bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan loop.Snapshot)}
}

func (b *Broadcaster) Subscribe(buffer int) (int, <-chan loop.Snapshot) {
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan loop.Snapshot, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	last := b.last
	have := b.haveLast
	b.mu.Unlock()
	if have {
		select {
		case ch <- last:
		default:
		}
	}
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish is called from the loop goroutine every tick; it must stay cheap.
func (b *Broadcaster) Publish(snap loop.Snapshot) {
	b.mu.RLock()
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	b.mu.RUnlock()

	b.mu.Lock()
	b.last = snap
	b.haveLast = true
	b.mu.Unlock()
}

// Last returns the most recently published snapshot, if any.
func (b *Broadcaster) Last() (loop.Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.haveLast
}
