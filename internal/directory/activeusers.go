package directory

import "sync"

// ActiveUsers is the Directory's set of identities with a live Client
// session, reference-counted so two sessions under the same identity
// don't clear each other's presence on disconnect.
type ActiveUsers struct {
	mu    sync.Mutex
	count map[string]int
}

func NewActiveUsers() *ActiveUsers {
	return &ActiveUsers{count: make(map[string]int)}
}

func (u *ActiveUsers) Add(identity string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.count[identity]++
}

func (u *ActiveUsers) Remove(identity string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.count[identity] <= 1 {
		delete(u.count, identity)
		return
	}
	u.count[identity]--
}

func (u *ActiveUsers) IsActive(identity string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count[identity] > 0
}

// List returns every identity with at least one live session, unordered.
func (u *ActiveUsers) List() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.count))
	for id := range u.count {
		out = append(out, id)
	}
	return out
}
