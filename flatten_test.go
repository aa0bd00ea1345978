package docstore

import "testing"

func TestFlattenNestedPaths(t *testing.T) {
	item := Item{
		"name": map[string]any{
			"first": "Ada",
			"last":  "Lovelace",
		},
		"age": 36,
	}
	flat := flatten(item)
	deepEqual(t, flat["name.first"], any("Ada"))
	deepEqual(t, flat["name.last"], any("Lovelace"))
	deepEqual(t, flat["age"], any(36))
}

// Regression test: flatten used to pass the named Item type straight into
// flattenInto, whose map[string]any type assertion does not match a value
// whose dynamic type is Item rather than the bare underlying map type — so
// every item flattened to an empty map.
func TestFlattenTopLevelItemType(t *testing.T) {
	item := Item{"a": 1}
	flat := flatten(item)
	if len(flat) == 0 {
		t.Fatalf("flatten(%v) produced an empty map", item)
	}
	deepEqual(t, flat["a"], any(1))
}

func TestFlattenNestedItemLiteral(t *testing.T) {
	item := Item{
		"address": Item{"city": "Paris"},
	}
	flat := flatten(item)
	deepEqual(t, flat["address.city"], any("Paris"))
}

func TestFlattenNilItem(t *testing.T) {
	flat := flatten(nil)
	if len(flat) != 0 {
		t.Fatalf("flatten(nil) = %v, wanted empty map", flat)
	}
	if !isUndefined(flatLookup(flat, "anything")) {
		t.Fatalf("flatLookup on empty flat map should report undefined")
	}
}

func TestFlattenEmptyNestedRecord(t *testing.T) {
	item := Item{"tags": map[string]any{}}
	flat := flatten(item)
	deepEqual(t, flat["tags"], any(map[string]any{}))
}

func TestIsUndefined(t *testing.T) {
	if !isUndefined(undefined) {
		t.Fatalf("isUndefined(undefined) = false")
	}
	if isUndefined(nil) {
		t.Fatalf("isUndefined(nil) = true")
	}
	if isUndefined("") {
		t.Fatalf("isUndefined(\"\") = true")
	}
}
