package docstore

// Item is an arbitrary structured record. Keys are nested property paths;
// the engine flattens items (dot-joined paths) only when it needs to
// extract index or projection values.
type Item map[string]any

// PropertiesKind selects which properties a read should return.
type PropertiesKind int

const (
	// PropsNone returns keys only.
	PropsNone PropertiesKind = iota
	// PropsAll returns the full item.
	PropsAll
	// PropsPaths returns an explicit ordered set of property paths.
	PropsPaths
)

// Properties is the tagged variant from the design notes: All | None |
// Paths([...]).
type Properties struct {
	Kind  PropertiesKind
	Paths []string
}

func AllProperties() Properties          { return Properties{Kind: PropsAll} }
func NoProperties() Properties           { return Properties{Kind: PropsNone} }
func PropertyPaths(paths ...string) Properties {
	return Properties{Kind: PropsPaths, Paths: paths}
}

// wantsValues reports whether this selection requires fetching a value at
// all (as opposed to keys-only).
func (p Properties) wantsValues() bool {
	return p.Kind == PropsAll || (p.Kind == PropsPaths && len(p.Paths) > 0)
}

// subsetOf reports whether p's paths are all contained in projection,
// which is the test the query planner uses to decide the projection
// fast-path. PropsAll never qualifies; PropsNone trivially qualifies.
func (p Properties) subsetOf(projection []string) bool {
	if p.Kind == PropsAll {
		return false
	}
	if p.Kind == PropsNone {
		return true
	}
	for _, want := range p.Paths {
		found := false
		for _, have := range projection {
			if want == have {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// project picks the requested paths out of a flattened item.
func (p Properties) project(item Item, flat map[string]any) Item {
	switch p.Kind {
	case PropsAll:
		return item
	case PropsNone:
		return nil
	default:
		out := make(Item, len(p.Paths))
		for _, path := range p.Paths {
			if v, ok := flat[path]; ok {
				out[path] = v
			}
		}
		return out
	}
}

type GetOptions struct {
	ErrorIfMissing bool
}

func DefaultGetOptions() GetOptions { return GetOptions{ErrorIfMissing: true} }

type PutOptions struct {
	CreateIfMissing bool
	ErrorIfExists   bool
}

func DefaultPutOptions() PutOptions { return PutOptions{CreateIfMissing: true} }

type DeleteOptions struct {
	ErrorIfMissing bool
}

type GetManyOptions struct {
	ErrorIfMissing bool
	Properties     Properties
}

func DefaultGetManyOptions() GetManyOptions {
	return GetManyOptions{Properties: AllProperties()}
}

// FindOptions configures find(collection, options). Query and Order drive
// index selection (C2); Start/StartAfter/End/EndBefore bound the no-index
// prefix scan over a collection's own items.
type FindOptions struct {
	Query      map[string]any
	Order      []string
	Start      *TupleElem
	StartAfter *TupleElem
	End        *TupleElem
	EndBefore  *TupleElem
	Reverse    bool
	Limit      int
	Properties Properties
	BatchSize  int
}

func DefaultFindOptions() FindOptions {
	return FindOptions{Properties: AllProperties(), BatchSize: RespirationRate}
}

// CountOptions carries only the Query and Order of FindOptions.
type CountOptions struct {
	Query map[string]any
	Order []string
}

// FindAndDeleteOptions selects the items to delete by Query and Order.
type FindAndDeleteOptions struct {
	Query map[string]any
	Order []string
}

// ResultItem is the {key, value?} pair returned by get-many/find-style
// operations.
type ResultItem struct {
	Key      TupleElem
	Value    Item
	HasValue bool
}
