package docstore

// undefinedType is the sentinel returned when a property path has no value
// at all, distinct from an explicit nil (JSON-null-like) value stored at
// that path. Index maintenance treats the two very differently: a nil
// value is a real value to index, undefined means "skip this entry".
type undefinedType struct{}

var undefined = undefinedType{}

func isUndefined(v any) bool {
	_, ok := v.(undefinedType)
	return ok
}

// flatten turns a nested item into a dot-joined property-path map, e.g.
// {"name":{"first":"Ada"}} -> {"name.first":"Ada"}. A nil item flattens to
// an empty map, so every lookup against it reports undefined — this is how
// "old item" is represented for a put with no prior value.
func flatten(item Item) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", map[string]any(item))
	return out
}

// flattenInto recurses into nested records. A nested value may arrive as
// either plain map[string]any (values decoded off the wire always look like
// this) or as Item (callers are free to nest Item literals directly), so
// both are checked — a bare type assertion to map[string]any only matches
// the former, since Go type assertions require the exact dynamic type.
func flattenInto(out map[string]any, prefix string, v any) {
	m, ok := v.(map[string]any)
	if !ok {
		if asItem, isItem := v.(Item); isItem {
			m, ok = map[string]any(asItem), true
		}
	}
	if ok {
		if len(m) == 0 && prefix != "" {
			out[prefix] = m
			return
		}
		for k, child := range m {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			flattenInto(out, path, child)
		}
		return
	}
	if prefix != "" {
		out[prefix] = v
	}
}

// flatLookup returns the value at path, or undefined if absent. A nil item
// has already been flattened to an empty map by the caller, so this
// naturally reports undefined for every path.
func flatLookup(flat map[string]any, path string) any {
	if v, ok := flat[path]; ok {
		return v
	}
	return undefined
}
