package docstore

// Property describes one element of an index's key tuple: either a simple
// lookup of a flattened item path, or a computed value produced by Fn.
// Computed values are never persisted — only Path/Fn identity by Keys
// position survives a restart, matching the design note that re-architects
// inline functions as a registry keyed by index identity.
type Property struct {
	Path string
	Fn   func(item Item) any
}

func SimpleProperty(path string) Property { return Property{Path: path} }

func ComputedProperty(path string, fn func(Item) any) Property {
	return Property{Path: path, Fn: fn}
}

// value resolves one property for an item transition. Simple properties
// read the flattened map; computed properties apply Fn to the un-flattened
// item, per C3's rule that computed values never see flattened paths.
func (p Property) value(item Item, flat map[string]any) any {
	if p.Fn != nil {
		if item == nil {
			return undefined
		}
		return p.Fn(item)
	}
	return flatLookup(flat, p.Path)
}

// Index is a declared secondary index: an ordered tuple of properties
// (Keys, parallel to Properties) and an optional projection.
type Index struct {
	Keys       []string
	Properties []Property
	Projection []string
}

func (idx *Index) name() string { return indexName(idx.Keys) }

// Collection is an in-memory declaration: a name and its ordered indexes.
type Collection struct {
	Name    string
	Indexes []*Index
}

// findIndexForQueryAndOrder returns the first declared index whose Keys
// equal queryKeys (as a set, any order) followed by order (exact order).
// Declaration order is the tie-break among multiple matches.
func (c *Collection) findIndexForQueryAndOrder(queryKeys, order []string) (*Index, error) {
	for _, idx := range c.Indexes {
		if indexMatchesQueryAndOrder(idx.Keys, queryKeys, order) {
			return idx, nil
		}
	}
	return nil, invariantErrf(nil, "no index on collection %q matches query keys %v and order %v", c.Name, queryKeys, order)
}

func indexMatchesQueryAndOrder(idxKeys, queryKeys, order []string) bool {
	if len(idxKeys) != len(queryKeys)+len(order) {
		return false
	}
	queryPart := idxKeys[:len(queryKeys)]
	orderPart := idxKeys[len(queryKeys):]
	if !isSetEqual(queryPart, queryKeys) {
		return false
	}
	for i, k := range order {
		if orderPart[i] != k {
			return false
		}
	}
	return true
}

func isSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	count := make(map[string]int, len(a))
	for _, x := range a {
		count[x]++
	}
	for _, x := range b {
		count[x]--
	}
	for _, n := range count {
		if n != 0 {
			return false
		}
	}
	return true
}

// CollectionRegistry is the frozen in-memory set of declared collections.
type CollectionRegistry struct {
	byName map[string]*Collection
	order  []*Collection
}

func newCollectionRegistry(defs []*Collection) (*CollectionRegistry, error) {
	r := &CollectionRegistry{byName: make(map[string]*Collection, len(defs))}
	for _, c := range defs {
		if err := r.addCollection(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *CollectionRegistry) addCollection(c *Collection) error {
	if _, exists := r.byName[c.Name]; exists {
		return configErrf(nil, "duplicate collection %q", c.Name)
	}
	r.byName[c.Name] = c
	r.order = append(r.order, c)
	return nil
}

// getCollection looks up a collection by name. When errorIfMissing is true
// and the collection isn't declared, the error names the requested name —
// not whatever the last visited collection happened to be, a bug the
// original implementation had.
func (r *CollectionRegistry) getCollection(name string, errorIfMissing bool) (*Collection, error) {
	if c, ok := r.byName[name]; ok {
		return c, nil
	}
	if errorIfMissing {
		return nil, invariantErrf(nil, "collection %q is not declared", name)
	}
	return nil, nil
}

func (r *CollectionRegistry) all() []*Collection { return r.order }
