package node

import "sync"

// sentenceKey identifies a single (file, sentence) lockable unit.
type sentenceKey struct {
	file     string
	sentence int
}

// LockTable is the Node's in-memory sentence lock list: at most one
// holder per (file, sentence) at any instant, with fast release of every
// lock held by a disconnecting session.
type LockTable struct {
	mu     sync.Mutex
	byKey  map[sentenceKey]string // key -> holding session id
	bySess map[string]map[sentenceKey]struct{}
}

func NewLockTable() *LockTable {
	return &LockTable{
		byKey:  make(map[sentenceKey]string),
		bySess: make(map[string]map[sentenceKey]struct{}),
	}
}

// Acquire attempts to take the lock for (file, sentence) on behalf of
// sessionID. Re-entry by the same session is a no-op success; a different
// session holding the lock is a conflict.
func (t *LockTable) Acquire(file string, sentence int, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := sentenceKey{file, sentence}
	if holder, ok := t.byKey[key]; ok {
		if holder == sessionID {
			return nil
		}
		return errSentenceLocked
	}

	t.byKey[key] = sessionID
	if t.bySess[sessionID] == nil {
		t.bySess[sessionID] = make(map[sentenceKey]struct{})
	}
	t.bySess[sessionID][key] = struct{}{}
	return nil
}

// Release drops the lock for (file, sentence) if sessionID holds it.
func (t *LockTable) Release(file string, sentence int, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := sentenceKey{file, sentence}
	if t.byKey[key] != sessionID {
		return
	}
	delete(t.byKey, key)
	delete(t.bySess[sessionID], key)
}

// ReleaseAll releases every lock held by sessionID, e.g. on disconnect.
func (t *LockTable) ReleaseAll(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.bySess[sessionID] {
		delete(t.byKey, key)
	}
	delete(t.bySess, sessionID)
}

// HoldsLock reports whether sessionID currently holds (file, sentence).
func (t *LockTable) HoldsLock(file string, sentence int, sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byKey[sentenceKey{file, sentence}] == sessionID
}

// AnyLocked reports whether any sentence of file is currently locked.
func (t *LockTable) AnyLocked(file string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.byKey {
		if key.file == file {
			return true
		}
	}
	return false
}
