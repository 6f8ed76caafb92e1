package ledger

import (
	"bytes"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// accountLocks serializes transactions whose read/write sets conflict.
// Locks are taken in ascending key order, so two transactions can never
// wait on each other in a cycle.
type accountLocks struct {
	mu    sync.Mutex
	locks map[solana.PublicKey]*sync.RWMutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[solana.PublicKey]*sync.RWMutex)}
}

func (l *accountLocks) get(key solana.PublicKey) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = new(sync.RWMutex)
		l.locks[key] = m
	}
	return m
}

// acquire locks every key in set (true = writable) and returns the release
// function.
func (l *accountLocks) acquire(set map[solana.PublicKey]bool) func() {
	keys := make([]solana.PublicKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })

	release := make([]func(), 0, len(keys))
	for _, k := range keys {
		m := l.get(k)
		if set[k] {
			m.Lock()
			release = append(release, m.Unlock)
		} else {
			m.RLock()
			release = append(release, m.RUnlock)
		}
	}
	return func() {
		for i := len(release) - 1; i >= 0; i-- {
			release[i]()
		}
	}
}
