// Package bimap provides a bidirectional name↔uid map used as a uniqueness
// index by the credential store. The forward and reverse maps are updated
// under one writer lock, so a reader never observes an entry present in one
// direction and absent in the other.
package bimap

import (
	"errors"
	"sync"
)

// ErrNameTaken is returned when inserting a name that is already bound.
var ErrNameTaken = errors.New("name already taken")

// ErrUIDNotFound is returned when a rename or removal targets a uid with no
// reverse entry. Callers treat it as an index-corruption signal for records
// that are known to exist.
var ErrUIDNotFound = errors.New("uid not indexed")

// Map is a concurrency-safe bidirectional map from unique string names to
// uids. The zero value is not usable; call New.
type Map struct {
	mu      sync.RWMutex
	forward map[string]uint32
	reverse map[uint32]string
}

// New returns an empty Map.
func New() *Map {
	return &Map{
		forward: make(map[string]uint32),
		reverse: make(map[uint32]string),
	}
}

// UID returns the uid bound to name.
func (m *Map) UID(name string) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.forward[name]
	return uid, ok
}

// Name returns the name bound to uid.
func (m *Map) Name(uid uint32) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.reverse[uid]
	return name, ok
}

// Contains reports whether name is bound.
func (m *Map) Contains(name string) bool {
	_, ok := m.UID(name)
	return ok
}

// Insert binds name to uid. It fails with ErrNameTaken when the name is
// already bound to any uid, including the same one.
func (m *Map) Insert(name string, uid uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.forward[name]; ok {
		return ErrNameTaken
	}
	m.forward[name] = uid
	m.reverse[uid] = name
	return nil
}

// Rename atomically rebinds uid from its current name to newName. Both maps
// are updated under the writer lock; no reader can observe the old and new
// bindings at once. Fails with ErrUIDNotFound when uid has no current
// binding and ErrNameTaken when newName is bound to a different uid.
func (m *Map) Rename(uid uint32, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldName, ok := m.reverse[uid]
	if !ok {
		return ErrUIDNotFound
	}
	if holder, taken := m.forward[newName]; taken && holder != uid {
		return ErrNameTaken
	}

	delete(m.forward, oldName)
	m.forward[newName] = uid
	m.reverse[uid] = newName
	return nil
}

// Remove deletes uid's binding in both directions.
func (m *Map) Remove(uid uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name, ok := m.reverse[uid]
	if !ok {
		return ErrUIDNotFound
	}
	delete(m.forward, name)
	delete(m.reverse, uid)
	return nil
}

// Len returns the number of bindings.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.forward)
}
