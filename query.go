package docstore

import "sort"

// This file implements the QueryEngine (C5): get/put/delete/getMany/find/
// count/forEach/findAndDelete. Every operation is a method on Context so it
// can run either against the root store handle or inside a Transaction
// callback; the Context methods ensure the store is initialized, and
// Store's methods are thin convenience wrappers that delegate to the root
// Context.

func validateKey(key TupleElem) error {
	if !key.IsInt && key.Str == "" {
		return configErrf(nil, "item key must be a non-empty string or a number")
	}
	return nil
}

func validateItem(item Item) error {
	if item == nil {
		return configErrf(nil, "item must be a structured record, got nil")
	}
	return nil
}

// Get fetches one item by key.
func (c *Context) Get(collectionName string, key TupleElem, opts GetOptions) (Item, error) {
	if err := c.store.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if _, err := c.registry.getCollection(collectionName, true); err != nil {
		return nil, err
	}
	raw, found, err := c.kv.Get(itemKeyTuple(c.store.name, collectionName, key), opts.ErrorIfMissing)
	if err != nil || !found {
		return nil, err
	}
	return decodeItem(raw)
}

// Put writes item at key, maintaining every declared index of the
// collection in the same KV transaction.
func (c *Context) Put(collectionName string, key TupleElem, item Item, opts PutOptions) error {
	if err := c.store.ensureInitialized(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return err
	}
	coll, err := c.registry.getCollection(collectionName, true)
	if err != nil {
		return err
	}
	return c.transaction(func(tc *Context) error {
		itemTupleKey := itemKeyTuple(tc.store.name, collectionName, key)
		oldRaw, found, err := tc.kv.Get(itemTupleKey, false)
		if err != nil {
			return err
		}
		var oldItem Item
		if found {
			oldItem, err = decodeItem(oldRaw)
			if err != nil {
				return err
			}
		}
		newRaw := encodeValue(nil, item)
		if err := tc.kv.Put(itemTupleKey, newRaw, opts.CreateIfMissing, opts.ErrorIfExists); err != nil {
			return err
		}
		if err := updateIndexes(tc.kv, tc.store.name, collectionName, key, oldItem, item, coll); err != nil {
			return err
		}
		tc.events.emit(Event{Kind: EventDidPutItem, Collection: collectionName, Key: key, Item: item, OldItem: oldItem})
		return nil
	})
}

// Delete removes the item at key, if present, maintaining indexes. Returns
// whether a delete occurred.
func (c *Context) Delete(collectionName string, key TupleElem, opts DeleteOptions) (bool, error) {
	if err := c.store.ensureInitialized(); err != nil {
		return false, err
	}
	if err := validateKey(key); err != nil {
		return false, err
	}
	coll, err := c.registry.getCollection(collectionName, true)
	if err != nil {
		return false, err
	}
	var deleted bool
	err = c.transaction(func(tc *Context) error {
		itemTupleKey := itemKeyTuple(tc.store.name, collectionName, key)
		oldRaw, found, err := tc.kv.Get(itemTupleKey, opts.ErrorIfMissing)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		oldItem, err := decodeItem(oldRaw)
		if err != nil {
			return err
		}
		if _, err := tc.kv.Delete(itemTupleKey, false); err != nil {
			return err
		}
		if err := updateIndexes(tc.kv, tc.store.name, collectionName, key, oldItem, nil, coll); err != nil {
			return err
		}
		deleted = true
		tc.events.emit(Event{Kind: EventDidDeleteItem, Collection: collectionName, Key: key, OldItem: oldItem})
		return nil
	})
	return deleted, err
}

// GetMany fetches a batch of keys, yielding cooperatively every
// RespirationRate items.
func (c *Context) GetMany(collectionName string, keys []TupleElem, opts GetManyOptions) ([]ResultItem, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if err := c.store.ensureInitialized(); err != nil {
		return nil, err
	}
	if _, err := c.registry.getCollection(collectionName, true); err != nil {
		return nil, err
	}
	returnValues := opts.Properties.wantsValues()
	tupleKeys := make([][]TupleElem, len(keys))
	for i, k := range keys {
		tupleKeys[i] = itemKeyTuple(c.store.name, collectionName, k)
	}
	pairs, err := c.kv.GetMany(tupleKeys, opts.ErrorIfMissing, returnValues)
	if err != nil {
		return nil, err
	}
	out := make([]ResultItem, 0, len(pairs))
	for _, p := range pairs {
		ri := ResultItem{Key: p.Key[len(p.Key)-1]}
		if returnValues {
			item, err := decodeItem(p.Value)
			if err != nil {
				return nil, err
			}
			flat := flatten(item)
			ri.Value = opts.Properties.project(item, flat)
			ri.HasValue = true
		}
		out = append(out, ri)
	}
	return out, nil
}

// Find runs get/put's read-side sibling: a prefix scan when no
// query/order is given, or an index-backed scan (with the projection
// fast-path when possible) when one is.
func (c *Context) Find(collectionName string, opts FindOptions) ([]ResultItem, error) {
	if err := c.store.ensureInitialized(); err != nil {
		return nil, err
	}
	coll, err := c.registry.getCollection(collectionName, true)
	if err != nil {
		return nil, err
	}
	if len(opts.Query) == 0 && len(opts.Order) == 0 {
		return c.findNoIndex(collectionName, opts)
	}
	return c.findWithIndex(coll, collectionName, opts)
}

func (c *Context) findNoIndex(collectionName string, opts FindOptions) ([]ResultItem, error) {
	q := KVQuery{
		Prefix:       collectionPrefix(c.store.name, collectionName),
		Reverse:      opts.Reverse,
		Limit:        opts.Limit,
		ReturnValues: opts.Properties.wantsValues(),
	}
	q.Start, q.StartAfter, q.End, q.EndBefore = collectionBounds(c.store.name, collectionName, opts)
	pairs, err := c.kv.Find(q)
	if err != nil {
		return nil, err
	}
	return resultsFromPairs(pairs, opts.Properties)
}

func collectionBounds(storeName, collectionName string, opts FindOptions) (start, startAfter, end, endBefore []TupleElem) {
	base := collectionPrefix(storeName, collectionName)
	wrap := func(k *TupleElem) []TupleElem {
		if k == nil {
			return nil
		}
		return append(append([]TupleElem{}, base...), *k)
	}
	return wrap(opts.Start), wrap(opts.StartAfter), wrap(opts.End), wrap(opts.EndBefore)
}

func (c *Context) findWithIndex(coll *Collection, collectionName string, opts FindOptions) ([]ResultItem, error) {
	queryKeys := sortedKeys(opts.Query)
	idx, err := coll.findIndexForQueryAndOrder(queryKeys, opts.Order)
	if err != nil {
		return nil, err
	}
	queryValues, err := queryValuesInIndexOrder(idx, opts.Query)
	if err != nil {
		return nil, err
	}
	prefix := indexQueryPrefix(c.store.name, collectionName, idx, queryValues)

	useProjection := opts.Properties.Kind != PropsAll && opts.Properties.subsetOf(idx.Projection)
	if opts.Properties.Kind == PropsAll {
		c.store.logger.Debug("find: full item fetch required", "collection", collectionName, "index", idx.name(), "reason", "properties=all")
	} else if !useProjection {
		c.store.logger.Debug("find: full item fetch required", "collection", collectionName, "index", idx.name(), "reason", "properties not covered by projection")
	}

	q := KVQuery{
		Prefix:       prefix,
		Reverse:      opts.Reverse,
		Limit:        opts.Limit,
		ReturnValues: useProjection,
	}
	pairs, err := c.kv.Find(q)
	if err != nil {
		return nil, err
	}

	if useProjection {
		return resultsFromPairs(pairs, opts.Properties)
	}

	keys := make([]TupleElem, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key[len(p.Key)-1]
	}
	return c.GetMany(collectionName, keys, GetManyOptions{Properties: opts.Properties})
}

func resultsFromPairs(pairs []KVPair, props Properties) ([]ResultItem, error) {
	out := make([]ResultItem, 0, len(pairs))
	wantValues := props.wantsValues()
	for _, p := range pairs {
		ri := ResultItem{Key: p.Key[len(p.Key)-1]}
		if wantValues && p.Value != nil {
			item, err := decodeItem(p.Value)
			if err != nil {
				return nil, err
			}
			ri.Value = props.project(item, flatten(item))
			ri.HasValue = true
		} else if wantValues {
			ri.Value = Item{}
			ri.HasValue = true
		}
		out = append(out, ri)
	}
	return out, nil
}

// Count mirrors Find but only returns the count at the chosen prefix.
func (c *Context) Count(collectionName string, opts CountOptions) (int, error) {
	if err := c.store.ensureInitialized(); err != nil {
		return 0, err
	}
	coll, err := c.registry.getCollection(collectionName, true)
	if err != nil {
		return 0, err
	}
	prefix, err := c.resolveScanPrefix(coll, collectionName, opts.Query, opts.Order)
	if err != nil {
		return 0, err
	}
	return c.kv.Count(KVQuery{Prefix: prefix})
}

// resolveScanPrefix picks the KV prefix a query/order selects: the plain
// collection prefix when neither is given, or the chosen index's query
// prefix otherwise. Query values are always emitted in the index's own
// declaration order, regardless of the order the caller's map ranges over
// (see spec open questions).
func (c *Context) resolveScanPrefix(coll *Collection, collectionName string, query map[string]any, order []string) ([]TupleElem, error) {
	if len(query) == 0 && len(order) == 0 {
		return collectionPrefix(c.store.name, collectionName), nil
	}
	queryKeys := sortedKeys(query)
	idx, err := coll.findIndexForQueryAndOrder(queryKeys, order)
	if err != nil {
		return nil, err
	}
	values, err := queryValuesInIndexOrder(idx, query)
	if err != nil {
		return nil, err
	}
	return indexQueryPrefix(c.store.name, collectionName, idx, values), nil
}

// queryValuesInIndexOrder converts a query map into the TupleElem sequence
// an index's entries are keyed by, always in the index's own declared key
// order regardless of how the caller's map iterates.
func queryValuesInIndexOrder(idx *Index, query map[string]any) ([]TupleElem, error) {
	values := make([]TupleElem, 0, len(idx.Keys))
	for _, k := range idx.Keys {
		v, ok := query[k]
		if !ok {
			break
		}
		elem, err := tupleElemFromValue(v)
		if err != nil {
			return nil, err
		}
		values = append(values, elem)
	}
	return values, nil
}

// ForEach batch-scans a collection's items (or one index's entries, if a
// query/order is given) in KV order, calling fn for each and resuming
// from the last visited raw key after every batch (as an exclusive upper
// bound when Reverse is set). Resuming by the full
// raw key — not just the item key — is what makes resumption correct
// under a multi-property order: the index entry's key already sorts by
// the order properties before the item key, so "strictly after the last
// key returned" is exactly the monotonic order-key semantics the spec
// describes. opts.Properties is not consulted: fn always receives the full
// item. On an index scan each item is read by its key, and an entry whose
// item no longer exists is skipped.
func (c *Context) ForEach(collectionName string, opts FindOptions, fn func(key TupleElem, item Item) error) error {
	if err := c.store.ensureInitialized(); err != nil {
		return err
	}
	coll, err := c.registry.getCollection(collectionName, true)
	if err != nil {
		return err
	}
	prefix, err := c.resolveScanPrefix(coll, collectionName, opts.Query, opts.Order)
	if err != nil {
		return err
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = RespirationRate
	}
	indexed := len(opts.Query) > 0 || len(opts.Order) > 0

	var startAfter []TupleElem
	for {
		q := KVQuery{Prefix: prefix, Reverse: opts.Reverse, Limit: batchSize, ReturnValues: !indexed}
		if opts.Reverse {
			q.EndBefore = startAfter
		} else {
			q.StartAfter = startAfter
		}
		pairs, err := c.kv.Find(q)
		if err != nil {
			return err
		}
		if len(pairs) == 0 {
			return nil
		}
		for _, p := range pairs {
			key := p.Key[len(p.Key)-1]
			raw := p.Value
			if indexed {
				v, found, err := c.kv.Get(itemKeyTuple(c.store.name, collectionName, key), false)
				if err != nil {
					return err
				}
				if !found {
					continue
				}
				raw = v
			}
			item, err := decodeItem(raw)
			if err != nil {
				return err
			}
			if err := fn(key, item); err != nil {
				return err
			}
		}
		startAfter = pairs[len(pairs)-1].Key
	}
}

// forEachRaw is the unbatched sequential scan used internally by _addIndex
// and Dump: every item of a collection, in KV order, full item fetch.
func (s *Store) forEachRaw(collectionName string, fn func(key TupleElem, item Item) error) error {
	pairs, err := s.kv.Find(KVQuery{Prefix: collectionPrefix(s.name, collectionName), ReturnValues: true})
	if err != nil {
		return err
	}
	for _, p := range pairs {
		item, err := decodeItem(p.Value)
		if err != nil {
			return err
		}
		if err := fn(p.Key[len(p.Key)-1], item); err != nil {
			return err
		}
	}
	return nil
}

// FindAndDelete runs ForEach over the items selected by opts.Query/Order
// and deletes every visited item, returning the total deleted.
func (c *Context) FindAndDelete(collectionName string, opts FindAndDeleteOptions) (int, error) {
	var n int
	err := c.ForEach(collectionName, FindOptions{Query: opts.Query, Order: opts.Order, Properties: NoProperties()}, func(key TupleElem, item Item) error {
		deleted, err := c.Delete(collectionName, key, DeleteOptions{ErrorIfMissing: false})
		if err != nil {
			return err
		}
		if deleted {
			n++
		}
		return nil
	})
	return n, err
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store-level convenience wrappers, delegating to the root Context.

func (s *Store) Get(collectionName string, key TupleElem, opts GetOptions) (Item, error) {
	return s.rootCtx.Get(collectionName, key, opts)
}

func (s *Store) Put(collectionName string, key TupleElem, item Item, opts PutOptions) error {
	return s.rootCtx.Put(collectionName, key, item, opts)
}

func (s *Store) Delete(collectionName string, key TupleElem, opts DeleteOptions) (bool, error) {
	return s.rootCtx.Delete(collectionName, key, opts)
}

func (s *Store) GetMany(collectionName string, keys []TupleElem, opts GetManyOptions) ([]ResultItem, error) {
	return s.rootCtx.GetMany(collectionName, keys, opts)
}

func (s *Store) Find(collectionName string, opts FindOptions) ([]ResultItem, error) {
	return s.rootCtx.Find(collectionName, opts)
}

func (s *Store) Count(collectionName string, opts CountOptions) (int, error) {
	return s.rootCtx.Count(collectionName, opts)
}

func (s *Store) ForEach(collectionName string, opts FindOptions, fn func(key TupleElem, item Item) error) error {
	return s.rootCtx.ForEach(collectionName, opts, fn)
}

func (s *Store) FindAndDelete(collectionName string, opts FindAndDeleteOptions) (int, error) {
	return s.rootCtx.FindAndDelete(collectionName, opts)
}
