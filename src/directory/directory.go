package directory

import (
	"fmt"
	"sort"
	"sync"
)

// Directory maps each user to the set of that user's live connection ids.
// It is the single piece of shared mutable presence state; every mutation
// and every snapshot read is serialized behind one mutex. A user key exists
// if and only if its connection set is non-empty, and a connection id
// belongs to at most one user at a time.
type Directory struct {
	mu    sync.Mutex
	users map[string]map[string]struct{}
	conns map[string]string // connID -> owning userID
}

// New creates an empty Directory.
func New() *Directory {
	return &Directory{
		users: make(map[string]map[string]struct{}),
		conns: make(map[string]string),
	}
}

// Add records connID under userID and reports whether this was the user's
// first live connection. Re-registering a live connection id is rejected
// and leaves the directory unchanged.
func (d *Directory) Add(userID, connID string) (first bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if owner, ok := d.conns[connID]; ok {
		return false, fmt.Errorf("connection %s already registered to user %s", connID, owner)
	}

	set, ok := d.users[userID]
	if !ok {
		set = make(map[string]struct{})
		d.users[userID] = set
	}
	set[connID] = struct{}{}
	d.conns[connID] = userID
	return len(set) == 1, nil
}

// Remove deregisters the (userID, connID) pair. last reports whether this
// was the user's final connection; found is false when the pair was not
// registered, which callers treat as a tolerated late or duplicate
// disconnect notice.
func (d *Directory) Remove(userID, connID string) (last, found bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.users[userID]
	if !ok {
		return false, false
	}
	if _, ok := set[connID]; !ok {
		return false, false
	}

	delete(set, connID)
	delete(d.conns, connID)
	if len(set) == 0 {
		delete(d.users, userID)
		return true, true
	}
	return false, true
}

// ConnectionsForUser returns a copy of the user's live connection ids, or
// an empty slice if the user is offline.
func (d *Directory) ConnectionsForUser(userID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := d.users[userID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// OnlineUsers returns the ids of all currently online users, sorted
// ascending for deterministic output.
func (d *Directory) OnlineUsers() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, 0, len(d.users))
	for id := range d.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Online reports whether the user has at least one live connection.
func (d *Directory) Online(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users[userID]) > 0
}

// Len returns the total number of live connections.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}
