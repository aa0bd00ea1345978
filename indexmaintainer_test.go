package docstore

import "testing"

func countIndexEntries(t testing.TB, kv KV, storeName, collectionName string, idx *Index) int {
	t.Helper()
	n, err := kv.Count(KVQuery{Prefix: indexCollectionPrefix(storeName, collectionName, idx)})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func TestUpdateIndexSkipsUndefinedValues(t *testing.T) {
	idx := &Index{Keys: []string{"category"}, Properties: []Property{SimpleProperty("category")}}
	s := openTestStore(t, itemsCollection(idx))

	// No "category" property at all: undefined, no index entry written.
	if err := s.Put("items", StringElem("a"), Item{"title": "no category"}, DefaultPutOptions()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n := countIndexEntries(t, s.kv, s.name, "items", idx); n != 0 {
		t.Fatalf("index entries = %d, wanted 0 for an item missing the indexed property", n)
	}
}

func TestUpdateIndexRejectsExplicitNilAsIndexValue(t *testing.T) {
	idx := &Index{Keys: []string{"archived"}, Properties: []Property{SimpleProperty("archived")}}
	s := openTestStore(t, itemsCollection(idx))

	// An explicit nil value is a real value, not undefined (isUndefined(nil)
	// is false), so index maintenance tries to key on it — and fails, since
	// only strings/ints are valid index key elements.
	err := s.Put("items", StringElem("a"), Item{"archived": nil}, DefaultPutOptions())
	if err == nil {
		t.Fatalf("expected an error indexing an explicit nil value")
	}
}

func TestUpdateIndexMovesEntryWhenValueChanges(t *testing.T) {
	idx := &Index{Keys: []string{"category"}, Properties: []Property{SimpleProperty("category")}}
	s := openTestStore(t, itemsCollection(idx))

	if err := s.Put("items", StringElem("a"), Item{"category": "fruit"}, DefaultPutOptions()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n, err := s.Count("items", CountOptions{Query: map[string]any{"category": "fruit"}}); err != nil || n != 1 {
		t.Fatalf("Count(fruit) = %d, err=%v, wanted 1", n, err)
	}

	if err := s.Put("items", StringElem("a"), Item{"category": "veg"}, PutOptions{CreateIfMissing: true}); err != nil {
		t.Fatalf("Put (update): %v", err)
	}
	if n, err := s.Count("items", CountOptions{Query: map[string]any{"category": "fruit"}}); err != nil || n != 0 {
		t.Fatalf("Count(fruit) after move = %d, err=%v, wanted 0", n, err)
	}
	if n, err := s.Count("items", CountOptions{Query: map[string]any{"category": "veg"}}); err != nil || n != 1 {
		t.Fatalf("Count(veg) after move = %d, err=%v, wanted 1", n, err)
	}
}

func TestUpdateIndexLeavesEntryUntouchedWhenValueUnchanged(t *testing.T) {
	idx := &Index{
		Keys:       []string{"category"},
		Properties: []Property{SimpleProperty("category")},
		Projection: []string{"title"},
	}
	s := openTestStore(t, itemsCollection(idx))

	if err := s.Put("items", StringElem("a"), Item{"category": "fruit", "title": "Apple"}, DefaultPutOptions()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("items", StringElem("a"), Item{"category": "fruit", "title": "Apple"}, PutOptions{CreateIfMissing: true}); err != nil {
		t.Fatalf("Put (no-op update): %v", err)
	}
	if n := countIndexEntries(t, s.kv, s.name, "items", idx); n != 1 {
		t.Fatalf("index entries = %d, wanted exactly 1 (no duplicate, no stray delete)", n)
	}
}

func TestUpdateIndexRewritesProjectionWhenOnlyProjectedFieldChanges(t *testing.T) {
	idx := &Index{
		Keys:       []string{"category"},
		Properties: []Property{SimpleProperty("category")},
		Projection: []string{"title"},
	}
	s := openTestStore(t, itemsCollection(idx))

	if err := s.Put("items", StringElem("a"), Item{"category": "fruit", "title": "Apple"}, DefaultPutOptions()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("items", StringElem("a"), Item{"category": "fruit", "title": "Green Apple"}, PutOptions{CreateIfMissing: true}); err != nil {
		t.Fatalf("Put (title change): %v", err)
	}

	results, err := s.Find("items", FindOptions{
		Query:      map[string]any{"category": "fruit"},
		Properties: PropertyPaths("title"),
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(results) != 1 || results[0].Value["title"] != "Green Apple" {
		t.Fatalf("projection wasn't updated: %+v", results)
	}
}

func TestUpdateIndexRemovesEntryOnDelete(t *testing.T) {
	idx := &Index{Keys: []string{"category"}, Properties: []Property{SimpleProperty("category")}}
	s := openTestStore(t, itemsCollection(idx))

	if err := s.Put("items", StringElem("a"), Item{"category": "fruit"}, DefaultPutOptions()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Delete("items", StringElem("a"), DeleteOptions{}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := countIndexEntries(t, s.kv, s.name, "items", idx); n != 0 {
		t.Fatalf("index entries = %d after delete, wanted 0", n)
	}
}

func TestComputedPropertyNeverSeesFlattenedPaths(t *testing.T) {
	idx := &Index{
		Keys: []string{"nameLength"},
		Properties: []Property{
			ComputedProperty("nameLength", func(item Item) any {
				name, _ := item["name"].(map[string]any)
				first, _ := name["first"].(string)
				return len(first)
			}),
		},
	}
	s := openTestStore(t, itemsCollection(idx))
	if err := s.Put("items", StringElem("a"), Item{"name": map[string]any{"first": "Ada"}}, DefaultPutOptions()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	n, err := s.Count("items", CountOptions{Query: map[string]any{"nameLength": 3}})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("Count(nameLength=3) = %d, wanted 1", n)
	}
}
