package docstore

import "strings"

// This file builds the structured keys (as ordered tuples, see enctuple.go)
// that every other component addresses the KV namespace with. All keys
// share one flat keyspace rooted at the store name.

// indexJoin is the wire-format separator between an index's declared keys
// when forming its index name; indexSep is the wire-format separator
// between a collection name and an index name. Both are persisted as part
// of the keyspace and must not change across versions without a migration.
const (
	indexJoin = "+"
	indexSep  = ":"
)

func indexName(keys []string) string {
	return strings.Join(keys, indexJoin)
}

func indexCollectionName(collectionName string, idx *Index) string {
	return collectionName + indexSep + indexName(idx.Keys)
}

// storeDescriptorKey is the key of the store-wide metadata record.
func storeDescriptorKey(storeName string) []TupleElem {
	return []TupleElem{StringElem(storeName)}
}

// itemKeyTuple is the key of a single item.
func itemKeyTuple(storeName, collectionName string, key TupleElem) []TupleElem {
	return []TupleElem{StringElem(storeName), StringElem(collectionName), key}
}

// collectionPrefix is the prefix shared by every item of a collection.
func collectionPrefix(storeName, collectionName string) []TupleElem {
	return []TupleElem{StringElem(storeName), StringElem(collectionName)}
}

// indexCollectionPrefix is the prefix shared by every entry of one index.
func indexCollectionPrefix(storeName, collectionName string, idx *Index) []TupleElem {
	return []TupleElem{StringElem(storeName), StringElem(indexCollectionName(collectionName, idx))}
}

// indexEntryKey is the key of one index entry: prefix + the index's
// current values (simple or computed) + the owning item's key.
func indexEntryKey(storeName, collectionName string, idx *Index, values []TupleElem, itemKey TupleElem) []TupleElem {
	out := indexCollectionPrefix(storeName, collectionName, idx)
	out = append(out, values...)
	out = append(out, itemKey)
	return out
}

// indexQueryPrefix is the scan prefix for a query against idx: prefix +
// the supplied query values, in the index's declaration order, truncated
// to however many values the caller actually supplied.
func indexQueryPrefix(storeName, collectionName string, idx *Index, queryValues []TupleElem) []TupleElem {
	out := indexCollectionPrefix(storeName, collectionName, idx)
	out = append(out, queryValues...)
	return out
}
