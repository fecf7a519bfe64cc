package ledger

import (
	"fmt"
	"sort"
	"sync"
)

// keyedMutex serializes operations that share a key. Keys are acquired in
// sorted order so that two multi-key operations cannot deadlock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock acquires every key and returns a function releasing them.
func (k *keyedMutex) Lock(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]string, 0, len(sorted))
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		k.acquire(key).Lock()
		held = append(held, key)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			k.release(held[i])
		}
	}
}

func (k *keyedMutex) acquire(key string) *refLock {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *keyedMutex) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	l := k.locks[key]
	l.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// size returns the number of keys currently held or awaited.
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func listingKey(id uint64) string { return fmt.Sprintf("listing:%d", id) }

func escrowKey(listingID uint64, buyer string) string {
	return fmt.Sprintf("escrow:%d:%s", listingID, buyer)
}

func assetKey(id uint64) string { return fmt.Sprintf("asset:%d", id) }

func accountKey(id string) string { return "account:" + id }
