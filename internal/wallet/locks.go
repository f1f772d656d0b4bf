package wallet

import "sync"

// walletLocks hands out one mutex per wallet id so that read-compute-write
// sequences on a wallet never interleave within this process.
type walletLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newWalletLocks() *walletLocks {
	return &walletLocks{m: make(map[string]*sync.Mutex)}
}

// acquire locks the wallet and returns the matching unlock.
func (l *walletLocks) acquire(walletID string) func() {
	l.mu.Lock()
	lock, ok := l.m[walletID]
	if !ok {
		lock = &sync.Mutex{}
		l.m[walletID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
