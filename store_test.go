package docstore

import "testing"

func TestOpenRequiresNameAndURL(t *testing.T) {
	if _, err := Open(Options{URL: "mem://"}); err == nil {
		t.Fatalf("expected error for missing Name")
	}
	if _, err := Open(Options{Name: "test"}); err == nil {
		t.Fatalf("expected error for missing URL")
	}
}

func TestOpenUnsupportedScheme(t *testing.T) {
	if _, err := Open(Options{Name: "test", URL: "ftp://nope"}); err == nil {
		t.Fatalf("expected error for unsupported backend scheme")
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	s := openTestStore(t, &Collection{Name: "items"})
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if s.loadInitState() != stateInitialized {
		t.Fatalf("store did not end up in stateInitialized")
	}
}

func TestInitializeLazilyRunsOnFirstOperation(t *testing.T) {
	s := openTestStore(t, &Collection{Name: "items"})
	if s.loadInitState() == stateInitialized {
		t.Fatalf("store should not start initialized")
	}
	if _, err := s.Get("items", StringElem("k"), GetOptions{ErrorIfMissing: false}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.loadInitState() != stateInitialized {
		t.Fatalf("Get did not trigger lazy initialization")
	}
}

func TestPutGetDeleteRoundTrip(t *testing.T) {
	s := openTestStore(t, &Collection{Name: "items"})

	item := Item{"name": "widget", "qty": 3}
	if err := s.Put("items", StringElem("w1"), item, DefaultPutOptions()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get("items", StringElem("w1"), GetOptions{ErrorIfMissing: true})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	deepEqual(t, got["name"], any("widget"))

	deleted, err := s.Delete("items", StringElem("w1"), DeleteOptions{ErrorIfMissing: true})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatalf("Delete reported no deletion")
	}

	if _, err := s.Get("items", StringElem("w1"), GetOptions{ErrorIfMissing: true}); err == nil {
		t.Fatalf("expected error getting deleted item with ErrorIfMissing")
	}
}

func TestPutRejectsNilItem(t *testing.T) {
	s := openTestStore(t, &Collection{Name: "items"})
	if err := s.Put("items", StringElem("w1"), nil, DefaultPutOptions()); err == nil {
		t.Fatalf("expected error putting a nil item")
	}
}

func TestPutRejectsEmptyKey(t *testing.T) {
	s := openTestStore(t, &Collection{Name: "items"})
	if err := s.Put("items", StringElem(""), Item{"a": 1}, DefaultPutOptions()); err == nil {
		t.Fatalf("expected error putting with an empty string key")
	}
}

func TestOperationOnUndeclaredCollectionFails(t *testing.T) {
	s := openTestStore(t, &Collection{Name: "items"})
	if err := s.Put("ghosts", StringElem("k"), Item{"a": 1}, DefaultPutOptions()); err == nil {
		t.Fatalf("expected error operating on an undeclared collection")
	}
}

func TestDestroyAllResetsInitState(t *testing.T) {
	s := openTestStore(t, &Collection{Name: "items"})
	if err := s.Put("items", StringElem("w1"), Item{"a": 1}, DefaultPutOptions()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.DestroyAll(); err != nil {
		t.Fatalf("DestroyAll: %v", err)
	}
	if s.loadInitState() != stateUninitialized {
		t.Fatalf("DestroyAll did not reset init state")
	}
	if _, found, err := s.kv.Get(itemKeyTuple(s.name, "items", StringElem("w1")), false); err != nil || found {
		t.Fatalf("item survived DestroyAll: found=%v err=%v", found, err)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	s := openTestStore(t, &Collection{Name: "items"})
	wantErr := configErrf(nil, "boom")
	err := s.Transaction(func(tc *Context) error {
		if err := tc.Put("items", StringElem("w1"), Item{"a": 1}, DefaultPutOptions()); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("Transaction returned %v, wanted %v", err, wantErr)
	}
	if _, found, err := s.kv.Get(itemKeyTuple(s.name, "items", StringElem("w1")), false); err != nil || found {
		t.Fatalf("item survived a rolled-back transaction: found=%v err=%v", found, err)
	}
}

func TestNestedTransactionFlattensIntoOuter(t *testing.T) {
	s := openTestStore(t, &Collection{Name: "items"})
	err := s.Transaction(func(tc *Context) error {
		if !tc.insideTransaction() {
			t.Fatalf("expected to be inside a transaction")
		}
		return tc.transaction(func(inner *Context) error {
			if inner != tc {
				t.Fatalf("nested transaction should reuse the same Context, not open a new KV transaction")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
}
