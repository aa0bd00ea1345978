package docstore

import (
	"strings"
	"testing"
)

func TestFindIndexForQueryAndOrder(t *testing.T) {
	c := &Collection{
		Name: "items",
		Indexes: []*Index{
			{Keys: []string{"category"}},
			{Keys: []string{"category", "createdAt"}},
		},
	}

	idx, err := c.findIndexForQueryAndOrder([]string{"category"}, nil)
	if err != nil {
		t.Fatalf("findIndexForQueryAndOrder: %v", err)
	}
	deepEqual(t, idx.Keys, []string{"category"})

	idx, err = c.findIndexForQueryAndOrder([]string{"category"}, []string{"createdAt"})
	if err != nil {
		t.Fatalf("findIndexForQueryAndOrder: %v", err)
	}
	deepEqual(t, idx.Keys, []string{"category", "createdAt"})

	if _, err := c.findIndexForQueryAndOrder([]string{"owner"}, nil); err == nil {
		t.Fatalf("expected no index to match query key %q", "owner")
	}
}

func TestIndexMatchesQueryAndOrderIgnoresQueryKeyOrder(t *testing.T) {
	if !indexMatchesQueryAndOrder([]string{"a", "b"}, []string{"b", "a"}, nil) {
		t.Fatalf("expected match regardless of query key order")
	}
	if indexMatchesQueryAndOrder([]string{"a", "b"}, []string{"a"}, []string{"c"}) {
		t.Fatalf("order part must match the index's trailing keys exactly")
	}
}

func TestCollectionRegistryDuplicateRejected(t *testing.T) {
	_, err := newCollectionRegistry([]*Collection{
		{Name: "items"},
		{Name: "items"},
	})
	if err == nil {
		t.Fatalf("expected duplicate collection name to be rejected")
	}
}

func TestGetCollectionMissingNamesTheRequestedCollection(t *testing.T) {
	r, err := newCollectionRegistry([]*Collection{{Name: "items"}})
	if err != nil {
		t.Fatalf("newCollectionRegistry: %v", err)
	}
	if _, err := r.getCollection("users", false); err != nil {
		t.Fatalf("getCollection with errorIfMissing=false returned an error: %v", err)
	}
	_, err = r.getCollection("users", true)
	if err == nil {
		t.Fatalf("expected an error for undeclared collection %q", "users")
	}
	if got := err.Error(); !strings.Contains(got, "users") {
		t.Fatalf("error message %q does not name the requested collection", got)
	}
}
