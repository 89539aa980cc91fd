package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func testDatabase(t *testing.T, db Database) {
	t.Helper()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := db.Put([]byte("a:1"), []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Put([]byte("a:2"), []byte("two")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Put([]byte("b:1"), []byte("other")); err != nil {
		t.Fatalf("put: %v", err)
	}

	value, err := db.Get([]byte("a:1"))
	if err != nil || string(value) != "one" {
		t.Fatalf("get = %q err=%v", value, err)
	}

	var keys []string
	err = db.Iterate([]byte("a:"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a:1" || keys[1] != "a:2" {
		t.Fatalf("prefix iteration = %v", keys)
	}

	if err := db.Delete([]byte("a:1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("a:1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	// Deleting an absent key is not an error.
	if err := db.Delete([]byte("a:1")); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	testDatabase(t, db)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	testDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	value := []byte("original")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'
	got, err := db.Get([]byte("k"))
	if err != nil || string(got) != "original" {
		t.Fatalf("stored value mutated: %q err=%v", got, err)
	}
	got[0] = 'Y'
	again, err := db.Get([]byte("k"))
	if err != nil || string(again) != "original" {
		t.Fatalf("returned value aliased storage: %q err=%v", again, err)
	}
}
