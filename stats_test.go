package docstore

import "testing"

func TestStatsCountsRowsAndIndexRows(t *testing.T) {
	idx := &Index{Keys: []string{"category"}, Properties: []Property{SimpleProperty("category")}}
	s := openTestStore(t, itemsCollection(idx))
	for _, key := range []string{"a", "b", "c"} {
		if err := s.Put("items", StringElem(key), Item{"category": "fruit"}, DefaultPutOptions()); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	cs, ok := stats.Collections["items"]
	if !ok {
		t.Fatalf("Stats did not report collection %q", "items")
	}
	if cs.Rows != 3 {
		t.Fatalf("Rows = %d, wanted 3", cs.Rows)
	}
	if cs.TotalIndexRows() != 3 {
		t.Fatalf("TotalIndexRows = %d, wanted 3", cs.TotalIndexRows())
	}
	if stats.KeyCount == 0 {
		t.Fatalf("KeyCount should account for descriptor, item and index keys")
	}
}

func TestDumpFlagsContains(t *testing.T) {
	f := DumpCollectionHeaders | DumpRows
	if !f.Contains(DumpCollectionHeaders) || !f.Contains(DumpRows) {
		t.Fatalf("Contains missing a flag that was set")
	}
	if f.Contains(DumpIndexes) {
		t.Fatalf("Contains reported a flag that wasn't set")
	}
	if !DumpAll.Contains(DumpStats) {
		t.Fatalf("DumpAll should contain every flag")
	}
}

func TestDumpRendersRowsAndIndexes(t *testing.T) {
	idx := &Index{Keys: []string{"category"}, Properties: []Property{SimpleProperty("category")}}
	s := openTestStore(t, itemsCollection(idx))
	if err := s.Put("items", StringElem("a"), Item{"category": "fruit"}, DefaultPutOptions()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	out, err := s.Dump(DumpAll)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if out == "" {
		t.Fatalf("Dump returned empty output")
	}
}
