package docstore

import "reflect"

// updateIndexes runs the differential index maintenance rule for every
// declared index of collection, in declaration order, given an item
// transition from oldItem to newItem (either may be nil for
// create/delete). All writes go through kv, the ambient KV handle for the
// current Context.
func updateIndexes(kv KV, storeName, collectionName string, itemKey TupleElem, oldItem, newItem Item, c *Collection) error {
	for _, idx := range c.Indexes {
		if err := updateIndex(kv, storeName, collectionName, itemKey, oldItem, newItem, idx); err != nil {
			return err
		}
	}
	return nil
}

// updateIndex is the per-index rule described in C3: compute old/new
// values and projections, then delete/write according to whether values
// changed and whether either side has an undefined value.
func updateIndex(kv KV, storeName, collectionName string, itemKey TupleElem, oldItem, newItem Item, idx *Index) error {
	oldFlat := flatten(oldItem)
	newFlat := flatten(newItem)

	oldValues := make([]any, len(idx.Properties))
	newValues := make([]any, len(idx.Properties))
	for i, p := range idx.Properties {
		oldValues[i] = p.value(oldItem, oldFlat)
		newValues[i] = p.value(newItem, newFlat)
	}

	oldHasUndefined := anyUndefined(oldValues)
	newHasUndefined := anyUndefined(newValues)

	valuesDiffer := !valuesEqual(oldValues, newValues)

	var oldProjection, newProjection Item
	var projDiffer bool
	if idx.Projection != nil {
		oldProjection = projectionOf(idx.Projection, oldFlat)
		newProjection = projectionOf(idx.Projection, newFlat)
		projDiffer = !itemsEqual(oldProjection, newProjection)
	}

	if valuesDiffer && !oldHasUndefined {
		oldTuple, err := tupleElemsFromValues(oldValues)
		if err != nil {
			return collectionErrf(collectionName, idx.name(), nil, err, "computing old index key")
		}
		key := indexEntryKey(storeName, collectionName, idx, oldTuple, itemKey)
		if _, err := kv.Delete(key, false); err != nil {
			return collectionErrf(collectionName, idx.name(), rawTuple(key), err, "removing stale index entry")
		}
	}

	if (valuesDiffer || projDiffer) && !newHasUndefined {
		newTuple, err := tupleElemsFromValues(newValues)
		if err != nil {
			return collectionErrf(collectionName, idx.name(), nil, err, "computing new index key")
		}
		key := indexEntryKey(storeName, collectionName, idx, newTuple, itemKey)
		var value []byte
		if newProjection != nil {
			value = encodeValue(nil, newProjection)
		} else {
			value = emptyIndexValue
		}
		if err := kv.Put(key, value, true, false); err != nil {
			return collectionErrf(collectionName, idx.name(), rawTuple(key), err, "writing index entry")
		}
	}

	return nil
}

func anyUndefined(values []any) bool {
	for _, v := range values {
		if isUndefined(v) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// projectionOf builds the projection record: each path whose flattened
// value is present (and non-nil) is included; if nothing qualifies, the
// projection is absent (nil), not an empty record.
func projectionOf(paths []string, flat map[string]any) Item {
	var out Item
	for _, path := range paths {
		v := flatLookup(flat, path)
		if isUndefined(v) || v == nil {
			continue
		}
		if out == nil {
			out = make(Item, len(paths))
		}
		out[path] = v
	}
	return out
}

func itemsEqual(a, b Item) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// tupleElemsFromValues converts the simple/computed property values of an
// index into ordered key-tuple elements. Only strings and integers are
// supported as index values, matching the KV backend contract's key
// element types; floating-point values are truncated to int64.
func tupleElemsFromValues(values []any) ([]TupleElem, error) {
	out := make([]TupleElem, len(values))
	for i, v := range values {
		elem, err := tupleElemFromValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = elem
	}
	return out, nil
}

func tupleElemFromValue(v any) (TupleElem, error) {
	switch n := v.(type) {
	case string:
		return StringElem(n), nil
	case int:
		return IntElem(int64(n)), nil
	case int8:
		return IntElem(int64(n)), nil
	case int16:
		return IntElem(int64(n)), nil
	case int32:
		return IntElem(int64(n)), nil
	case int64:
		return IntElem(n), nil
	case uint:
		return IntElem(int64(n)), nil
	case uint8:
		return IntElem(int64(n)), nil
	case uint16:
		return IntElem(int64(n)), nil
	case uint32:
		return IntElem(int64(n)), nil
	case uint64:
		return IntElem(int64(n)), nil
	case float64:
		return IntElem(int64(n)), nil
	case float32:
		return IntElem(int64(n)), nil
	case nil:
		return StringElem(""), invariantErrf(nil, "index value is nil, expected string or number")
	default:
		return TupleElem{}, invariantErrf(nil, "unsupported index value type %T", v)
	}
}
