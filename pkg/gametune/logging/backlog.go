package logging

import "sync"

// DefaultBacklogSize is the backlog length used by the agent.
const DefaultBacklogSize = 200

// Backlog is a fixed-size ring of recent entries.
type Backlog struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewBacklog creates a backlog holding up to size entries.
func NewBacklog(size int) *Backlog {
	if size <= 0 {
		size = DefaultBacklogSize
	}
	return &Backlog{entries: make([]Entry, size)}
}

// Add stores entry, overwriting the oldest one when full.
func (b *Backlog) Add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = entry
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Len returns the number of stored entries.
func (b *Backlog) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.len()
}

func (b *Backlog) len() int {
	if b.full {
		return len(b.entries)
	}
	return b.next
}

// Last returns up to n of the newest entries, oldest first. n <= 0 returns all.
func (b *Backlog) Last(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := b.len()
	if n <= 0 || n > count {
		n = count
	}

	out := make([]Entry, n)
	start := b.next - n
	if start < 0 {
		start += len(b.entries)
	}
	for i := 0; i < n; i++ {
		out[i] = b.entries[(start+i)%len(b.entries)]
	}
	return out
}
