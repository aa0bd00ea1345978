package docstore

import (
	"reflect"
	"testing"
)

// openTestStore opens a fresh mem:// store for the given collections and
// closes it on test cleanup.
func openTestStore(t testing.TB, collections ...*Collection) *Store {
	t.Helper()
	s, err := Open(Options{Name: "test", URL: "mem://", Collections: collections})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func deepEqual[T any](t testing.TB, got, want T) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("** got %#v, wanted %#v", got, want)
	}
}
