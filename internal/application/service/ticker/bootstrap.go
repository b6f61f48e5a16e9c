package ticker

import "sync"

// BootstrapTracker remembers, per account, whether the one-time historical
// backfill has completed. Unseen accounts default to not done. The tracker
// performs no I/O and keeps no state beyond the process lifetime.
type BootstrapTracker struct {
	mu   sync.Mutex
	done map[string]bool
}

// NewBootstrapTracker returns an empty tracker.
func NewBootstrapTracker() *BootstrapTracker {
	return &BootstrapTracker{done: make(map[string]bool)}
}

// MarkDone records the account's backfill as completed.
func (b *BootstrapTracker) MarkDone(account string) {
	b.mu.Lock()
	b.done[account] = true
	b.mu.Unlock()
}

// IsDone reports whether the account's backfill has completed.
func (b *BootstrapTracker) IsDone(account string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done[account]
}

// ResetAll returns every tracked account to not done.
func (b *BootstrapTracker) ResetAll() {
	b.mu.Lock()
	b.done = make(map[string]bool)
	b.mu.Unlock()
}
