package bimap

import (
	"errors"
	"sync"
	"testing"
)

func TestInsertAndLookup(t *testing.T) {
	m := New()

	if err := m.Insert("alice", 1); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := m.Insert("alice", 2); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("duplicate insert: got %v, want ErrNameTaken", err)
	}

	uid, ok := m.UID("alice")
	if !ok || uid != 1 {
		t.Fatalf("UID(alice) = %d, %v", uid, ok)
	}
	name, ok := m.Name(1)
	if !ok || name != "alice" {
		t.Fatalf("Name(1) = %q, %v", name, ok)
	}
	if _, ok := m.UID("bob"); ok {
		t.Fatal("UID found for unknown name")
	}
	if !m.Contains("alice") || m.Contains("bob") {
		t.Fatal("Contains disagrees with UID")
	}
}

func TestRename(t *testing.T) {
	m := New()
	_ = m.Insert("alice", 1)
	_ = m.Insert("bob", 2)

	if err := m.Rename(1, "alicia"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, ok := m.UID("alice"); ok {
		t.Fatal("old name still mapped after rename")
	}
	if uid, ok := m.UID("alicia"); !ok || uid != 1 {
		t.Fatalf("new name not mapped: %d, %v", uid, ok)
	}

	if err := m.Rename(1, "bob"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("rename onto taken name: got %v, want ErrNameTaken", err)
	}
	if err := m.Rename(9, "ghost"); !errors.Is(err, ErrUIDNotFound) {
		t.Fatalf("rename unknown uid: got %v, want ErrUIDNotFound", err)
	}

	// Renaming to the current name is a no-op, not a conflict.
	if err := m.Rename(2, "bob"); err != nil {
		t.Fatalf("self-rename: %v", err)
	}
}

func TestRemove(t *testing.T) {
	m := New()
	_ = m.Insert("alice", 1)

	if err := m.Remove(1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if m.Contains("alice") || m.Len() != 0 {
		t.Fatal("entry survived Remove")
	}
	if err := m.Remove(1); !errors.Is(err, ErrUIDNotFound) {
		t.Fatalf("double remove: got %v, want ErrUIDNotFound", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New()
	var wg sync.WaitGroup

	for i := uint32(1); i <= 50; i++ {
		wg.Add(1)
		go func(uid uint32) {
			defer wg.Done()
			name := "user" + string(rune('A'+uid%26)) + string(rune('a'+uid/26))
			_ = m.Insert(name, uid)
			m.UID(name)
			m.Name(uid)
		}(i)
	}
	wg.Wait()

	if m.Len() == 0 {
		t.Fatal("no entries after concurrent inserts")
	}
}
