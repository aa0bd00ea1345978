package docstore

// Version is the current store descriptor schema version. A persisted
// descriptor with a higher version is rejected outright; a lower version
// triggers the upgrade path in schemamanager.go.
const Version = 3

// storeDescriptor is the persisted metadata record at key [storeName].
type storeDescriptor struct {
	Name        string                   `msgpack:"name"`
	Version     int                      `msgpack:"version"`
	IsLocked    bool                     `msgpack:"isLocked"`
	Collections []*collectionDescriptor `msgpack:"collections"`
}

// collectionDescriptor is the persisted shape of one declared collection.
type collectionDescriptor struct {
	Name           string             `msgpack:"name"`
	HasBeenRemoved bool               `msgpack:"hasBeenRemoved"`
	Indexes        []*indexDescriptor `msgpack:"indexes"`
}

// indexDescriptor is the persisted shape of one declared index. Computed
// value metadata is never persisted — keys is the index's identity and is
// matched back against the in-memory declaration on every migrate.
type indexDescriptor struct {
	Keys       []string `msgpack:"keys"`
	Projection []string `msgpack:"projection,omitempty"`
}

func (cd *collectionDescriptor) findIndex(keys []string) *indexDescriptor {
	for _, idx := range cd.Indexes {
		if keysEqual(idx.Keys, keys) {
			return idx
		}
	}
	return nil
}

func keysEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newCollectionDescriptor(c *Collection) *collectionDescriptor {
	cd := &collectionDescriptor{Name: c.Name}
	for _, idx := range c.Indexes {
		cd.Indexes = append(cd.Indexes, &indexDescriptor{Keys: idx.Keys, Projection: idx.Projection})
	}
	return cd
}

func newStoreDescriptor(name string, collections []*Collection) *storeDescriptor {
	d := &storeDescriptor{Name: name, Version: Version}
	for _, c := range collections {
		d.Collections = append(d.Collections, newCollectionDescriptor(c))
	}
	return d
}

// toInt coerces whatever numeric type msgpack decoded a generic map value
// into, since decoding into map[string]any doesn't know our int64 key
// convention up front.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// decodeAndUpgradeDescriptor decodes the raw descriptor bytes, applying the
// version<2 legacy fixups on the generic map representation before typed
// decode. Returns the typed descriptor, whether a version bump happened,
// and an error — which is UnsupportedMigration if the descriptor can't be
// brought up to Version automatically.
func decodeAndUpgradeDescriptor(raw []byte, events eventEmitter) (*storeDescriptor, bool, error) {
	var m map[string]any
	if err := decodeValue(raw, &m); err != nil {
		return nil, false, err
	}
	version := toInt(m["version"])
	if version > Version {
		return nil, false, invariantErrf(nil, "store descriptor version %d is newer than supported version %d", version, Version)
	}
	if version == Version {
		var d storeDescriptor
		if err := decodeValue(raw, &d); err != nil {
			return nil, false, err
		}
		return &d, false, nil
	}

	events.emit(Event{Kind: EventUpgradeDidStart})
	defer events.emit(Event{Kind: EventUpgradeDidStop})

	if version < 2 {
		applyLegacyV2Fixup(m)
		version = 2
	}
	// Every version below Version is fatal: the fixup above only rewrites
	// the local map, which is neither returned nor persisted, and it does
	// not make the descriptor usable. No version below Version has ever
	// been upgradable past this point, so this always returns
	// UnsupportedMigration.
	return nil, false, unsupportedMigrationf("automatic upgrade from version %d to %d is not supported", version, Version)
}

// applyLegacyV2Fixup mutates a generic descriptor map in place per the
// version<2 rules: drop the retired lastMigrationNumber field, and treat
// the pre-rename field "tables" as synonymous with "collections". The
// original source also collapsed each table's index declarations down to
// a list of index names at this version boundary; we mirror that shape
// change here even though any pre-v3 descriptor is fatal a moment later.
func applyLegacyV2Fixup(m map[string]any) {
	delete(m, "lastMigrationNumber")

	cols, hasCollections := m["collections"]
	tables, hasTables := m["tables"]
	if !hasCollections && hasTables {
		cols = tables
	}
	delete(m, "tables")
	m["collections"] = cols

	list, ok := cols.([]any)
	if !ok {
		return
	}
	for _, c := range list {
		cm, ok := c.(map[string]any)
		if !ok {
			continue
		}
		idxs, ok := cm["indexes"].([]any)
		if !ok {
			continue
		}
		names := make([]any, 0, len(idxs))
		for _, ix := range idxs {
			if name, ok := ix.(string); ok {
				names = append(names, name)
				continue
			}
			ixm, ok := ix.(map[string]any)
			if !ok {
				continue
			}
			keys, _ := ixm["keys"].([]any)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				if s, ok := k.(string); ok {
					parts = append(parts, s)
				}
			}
			names = append(names, indexName(parts))
		}
		cm["indexes"] = names
	}
}
