package docstore

import (
	"path/filepath"
	"testing"
)

// Exercises the storage contract (storage/storageTx/storageBucket/
// storageCursor) identically against every backend, so a bug specific to
// one implementation's cursor or transaction semantics shows up here rather
// than only in a higher-level test that happens to use one backend.
func TestStorageBackendsImplementSameContract(t *testing.T) {
	dir := t.TempDir()
	backends := map[string]func() storage{
		"mem": func() storage { return newMemStorage() },
		"bolt": func() storage {
			s, err := openBackend("bolt://" + filepath.Join(dir, "bolt.db"))
			if err != nil {
				t.Fatalf("openBackend(bolt): %v", err)
			}
			return s
		},
		"sqlite": func() storage {
			s, err := openBackend("sqlite://" + filepath.Join(dir, "sqlite.db"))
			if err != nil {
				t.Fatalf("openBackend(sqlite): %v", err)
			}
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			st := open()
			defer st.Close()

			tx, err := st.BeginTx(true)
			if err != nil {
				t.Fatalf("BeginTx: %v", err)
			}
			b := tx.Bucket()
			for _, k := range []string{"a", "b", "c"} {
				if err := b.Put([]byte(k), []byte(k+"-value")); err != nil {
					t.Fatalf("Put: %v", err)
				}
			}
			if err := tx.Commit(); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			tx, err = st.BeginTx(false)
			if err != nil {
				t.Fatalf("BeginTx(read): %v", err)
			}
			b = tx.Bucket()
			if v := b.Get([]byte("b")); string(v) != "b-value" {
				t.Fatalf("Get(b) = %q, wanted %q", v, "b-value")
			}
			if n := b.KeyCount(); n != 3 {
				t.Fatalf("KeyCount = %d, wanted 3", n)
			}

			cur := b.Cursor()
			var keys []string
			for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
				keys = append(keys, string(k))
			}
			if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
				t.Fatalf("cursor First/Next order = %v, wanted sorted [a b c]", keys)
			}
			tx.Rollback()

			tx, err = st.BeginTx(true)
			if err != nil {
				t.Fatalf("BeginTx: %v", err)
			}
			b = tx.Bucket()
			if err := b.Delete([]byte("b")); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := tx.Commit(); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			tx, _ = st.BeginTx(false)
			b = tx.Bucket()
			if v := b.Get([]byte("b")); v != nil {
				t.Fatalf("Get(b) after delete = %q, wanted nil", v)
			}
			if n := b.KeyCount(); n != 2 {
				t.Fatalf("KeyCount after delete = %d, wanted 2", n)
			}
			tx.Rollback()
		})
	}
}

func TestStorageRollbackDiscardsWrites(t *testing.T) {
	st := newMemStorage()
	defer st.Close()

	tx, err := st.BeginTx(true)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := tx.Bucket().Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	tx, err = st.BeginTx(false)
	if err != nil {
		t.Fatalf("BeginTx(read): %v", err)
	}
	defer tx.Rollback()
	if v := tx.Bucket().Get([]byte("k")); v != nil {
		t.Fatalf("Get(k) = %q after rollback, wanted nil", v)
	}
}

func TestOpenBackendSchemes(t *testing.T) {
	if _, err := openBackend("mem://anything"); err != nil {
		t.Fatalf("openBackend(mem): %v", err)
	}
	dir := t.TempDir()
	if _, err := openBackend("bolt://" + filepath.Join(dir, "b.db")); err != nil {
		t.Fatalf("openBackend(bolt): %v", err)
	}
	if _, err := openBackend("sqlite://" + filepath.Join(dir, "s.db")); err != nil {
		t.Fatalf("openBackend(sqlite): %v", err)
	}
	if _, err := openBackend("redis://nope"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}
