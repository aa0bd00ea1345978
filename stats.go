package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CollectionStats reports row and index-row counts for one collection.
// Per-collection byte sizes aren't available: every backend here keeps a
// single flat bucket rather than one bucket per collection, so allocation
// figures are only meaningful at the whole-store level (see StoreStats).
type CollectionStats struct {
	Rows      int
	IndexRows map[string]int
}

func (cs CollectionStats) TotalIndexRows() int {
	var n int
	for _, v := range cs.IndexRows {
		n += v
	}
	return n
}

// StoreStats reports the aggregate KV backend footprint plus per-collection
// row counts.
type StoreStats struct {
	KeyCount    int
	DataSize    int64
	DataAlloc   int64
	Collections map[string]CollectionStats
}

func (ss StoreStats) TotalAlloc() int64 { return ss.DataAlloc }

// Stats walks the declared collections and their indexes, counting rows via
// KV range counts, and reports the backend's overall bucket footprint.
func (s *Store) Stats() (StoreStats, error) {
	if err := s.ensureInitialized(); err != nil {
		return StoreStats{}, err
	}
	raw, err := s.kv.rawStats()
	if err != nil {
		return StoreStats{}, err
	}
	ss := StoreStats{
		KeyCount:    raw.KeyN,
		DataSize:    raw.LeafInuse,
		DataAlloc:   raw.TotalAlloc(),
		Collections: make(map[string]CollectionStats, len(s.registry.all())),
	}
	for _, c := range s.registry.all() {
		cs, err := s.collectionStats(c)
		if err != nil {
			return StoreStats{}, err
		}
		ss.Collections[c.Name] = cs
	}
	return ss, nil
}

func (s *Store) collectionStats(c *Collection) (CollectionStats, error) {
	rows, err := s.kv.Count(KVQuery{Prefix: collectionPrefix(s.name, c.Name)})
	if err != nil {
		return CollectionStats{}, err
	}
	cs := CollectionStats{Rows: rows, IndexRows: make(map[string]int, len(c.Indexes))}
	for _, idx := range c.Indexes {
		n, err := s.kv.Count(KVQuery{Prefix: indexCollectionPrefix(s.name, c.Name, idx)})
		if err != nil {
			return CollectionStats{}, err
		}
		cs.IndexRows[idx.name()] = n
	}
	return cs, nil
}

// DumpFlags controls what Dump includes, mirroring the bucket-by-bucket
// textual dump the KV browser tooling expects.
type DumpFlags uint64

const (
	DumpCollectionHeaders = DumpFlags(1 << iota)
	DumpRows
	DumpStats
	DumpIndexes

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

func (f DumpFlags) Contains(v DumpFlags) bool { return (f & v) == v }

var dumpSep = strings.Repeat("=", 72)

// Dump renders every declared collection's rows (and, with DumpIndexes, its
// index entries) as indented text, for interactive inspection. Not meant
// for machine consumption; see Stats for that.
func (s *Store) Dump(f DumpFlags) (string, error) {
	if err := s.ensureInitialized(); err != nil {
		return "", err
	}
	var w strings.Builder
	for _, c := range s.registry.all() {
		if err := s.dumpCollection(&w, f, c); err != nil {
			return "", err
		}
	}
	return w.String(), nil
}

func (s *Store) dumpCollection(w *strings.Builder, f DumpFlags, c *Collection) error {
	cs, err := s.collectionStats(c)
	if err != nil {
		return err
	}
	if f.Contains(DumpCollectionHeaders) {
		fmt.Fprintln(w, dumpSep)
		fmt.Fprintf(w, "%s (%d rows)\n", c.Name, cs.Rows)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: index_rows = %d\n", c.Name, cs.TotalIndexRows())
	}
	if f.Contains(DumpRows) {
		var rowPos int
		err := s.forEachRaw(c.Name, func(key TupleElem, item Item) error {
			rowPos++
			fmt.Fprintf(w, "%s.%d = %s\n", c.Name, rowPos, must(json.Marshal(item)))
			return nil
		})
		if err != nil {
			return err
		}
	}
	if f.Contains(DumpIndexes) {
		for _, idx := range c.Indexes {
			if err := s.dumpIndex(w, c, idx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) dumpIndex(w *strings.Builder, c *Collection, idx *Index) error {
	fmt.Fprintf(w, "%s.i.%s\n", c.Name, idx.name())
	pairs, err := s.kv.Find(KVQuery{Prefix: indexCollectionPrefix(s.name, c.Name, idx), ReturnValues: true})
	if err != nil {
		return err
	}
	for i, p := range pairs {
		fmt.Fprintf(w, "%s.i.%s.%d: %v => %v\n", c.Name, idx.name(), i+1, p.Key[:len(p.Key)-1], p.Key[len(p.Key)-1])
	}
	return nil
}
