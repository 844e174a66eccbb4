package payment

import "sync"

// paymentLocks serializes transition attempts per payment within this
// process. The database guard is the source of truth; this just keeps
// concurrent webhook and reconcile goroutines from interleaving their
// read-check-write sequences.
type paymentLocks struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newPaymentLocks() *paymentLocks {
	return &paymentLocks{locks: make(map[int64]*lockEntry)}
}

func (pl *paymentLocks) Lock(id int64) {
	pl.mu.Lock()
	entry, ok := pl.locks[id]
	if !ok {
		entry = &lockEntry{}
		pl.locks[id] = entry
	}
	entry.refs++
	pl.mu.Unlock()

	entry.mu.Lock()
}

func (pl *paymentLocks) Unlock(id int64) {
	pl.mu.Lock()
	entry, ok := pl.locks[id]
	if ok {
		entry.refs--
		if entry.refs == 0 {
			delete(pl.locks, id)
		}
	}
	pl.mu.Unlock()

	if ok {
		entry.mu.Unlock()
	}
}
