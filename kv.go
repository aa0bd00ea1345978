package docstore

import "log/slog"

// KV is the backend contract consumed by the document-store layer (spec
// §6). Keys are ordered byte-tuples whose elements may be strings or
// numbers (see enctuple.go); values are opaque bytes. Implementations must
// give get/put/delete/transaction atomicity equivalent to a single storage
// transaction.
type KV interface {
	Get(key []TupleElem, errorIfMissing bool) (value []byte, found bool, err error)
	Put(key []TupleElem, value []byte, createIfMissing, errorIfExists bool) error
	Delete(key []TupleElem, errorIfMissing bool) (deleted bool, err error)
	GetMany(keys [][]TupleElem, errorIfMissing, returnValues bool) ([]KVPair, error)
	Find(q KVQuery) ([]KVPair, error)
	Count(q KVQuery) (int, error)
	FindAndDelete(q KVQuery) (int, error)
	Transaction(fn func(KV) error) error
	Close() error

	// rawStats exposes the backing bucket's size/key-count statistics, for
	// Store.Stats. Not part of the document-store's own semantics.
	rawStats() (bucketStats, error)
}

// KVPair is one {key, value?} result row.
type KVPair struct {
	Key   []TupleElem
	Value []byte
}

// KVQuery describes a range scan: Prefix restricts the scan to keys
// sharing that tuple prefix; Start/StartAfter/End/EndBefore bound it
// further (at most one lower and one upper bound is meaningful at a
// time); Reverse walks it backwards; Limit caps the result count (0 =
// unbounded); ReturnValues controls whether values are fetched at all.
type KVQuery struct {
	Prefix       []TupleElem
	Start        []TupleElem
	StartAfter   []TupleElem
	End          []TupleElem
	EndBefore    []TupleElem
	Reverse      bool
	Limit        int
	ReturnValues bool
}

func rawTuple(elems []TupleElem) []byte {
	if elems == nil {
		return nil
	}
	return EncodeTuple(nil, elems...)
}

func buildRawRange(q KVQuery) RawRange {
	var rang RawRange
	switch {
	case q.Start != nil:
		rang = RawIO(rawTuple(q.Start))
	case q.StartAfter != nil:
		rang = RawEO(rawTuple(q.StartAfter))
	default:
		rang = RawOO()
	}
	if q.End != nil {
		rang.Upper = rawTuple(q.End)
		rang.UpperInc = true
	} else if q.EndBefore != nil {
		rang.Upper = rawTuple(q.EndBefore)
		rang.UpperInc = false
	}
	if q.Prefix != nil {
		rang = rang.Prefixed(rawTuple(q.Prefix))
	}
	if q.Reverse {
		rang = rang.Reversed()
	}
	return rang
}

// genericKV implements KV once, generically, over any storage backend
// (mem, bbolt, sqlite). A nil tx means "auto-commit": every call opens and
// closes its own storage transaction. A non-nil tx means this handle was
// handed to a Transaction(fn) callback and every call shares that tx.
type genericKV struct {
	store  storage
	tx     storageTx
	logger *slog.Logger
}

func newGenericKV(s storage, logger *slog.Logger) KV {
	if logger == nil {
		logger = slog.Default()
	}
	return &genericKV{store: s, logger: logger}
}

func (k *genericKV) withReadTx(fn func(storageBucket) error) error {
	if k.tx != nil {
		return fn(k.tx.Bucket())
	}
	tx, err := k.store.BeginTx(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx.Bucket())
}

func (k *genericKV) withWriteTx(fn func(storageBucket) error) error {
	if k.tx != nil {
		return fn(k.tx.Bucket())
	}
	tx, err := k.store.BeginTx(true)
	if err != nil {
		return err
	}
	if err := fn(tx.Bucket()); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (k *genericKV) Get(key []TupleElem, errorIfMissing bool) ([]byte, bool, error) {
	raw := rawTuple(key)
	var value []byte
	var found bool
	err := k.withReadTx(func(b storageBucket) error {
		v := b.Get(raw)
		if v != nil {
			value = append([]byte(nil), v...)
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !found && errorIfMissing {
		return nil, false, invariantErrf(nil, "key not found: %s", hexstr(raw))
	}
	return value, found, nil
}

func (k *genericKV) Put(key []TupleElem, value []byte, createIfMissing, errorIfExists bool) error {
	raw := rawTuple(key)
	return k.withWriteTx(func(b storageBucket) error {
		existing := b.Get(raw)
		if existing != nil && errorIfExists {
			return invariantErrf(nil, "key already exists: %s", hexstr(raw))
		}
		if existing == nil && !createIfMissing {
			return invariantErrf(nil, "key does not exist and createIfMissing is false: %s", hexstr(raw))
		}
		return b.Put(raw, value)
	})
}

func (k *genericKV) Delete(key []TupleElem, errorIfMissing bool) (bool, error) {
	raw := rawTuple(key)
	var deleted bool
	err := k.withWriteTx(func(b storageBucket) error {
		existing := b.Get(raw)
		if existing == nil {
			if errorIfMissing {
				return invariantErrf(nil, "key not found: %s", hexstr(raw))
			}
			return nil
		}
		deleted = true
		return b.Delete(raw)
	})
	return deleted, err
}

func (k *genericKV) GetMany(keys [][]TupleElem, errorIfMissing, returnValues bool) ([]KVPair, error) {
	out := make([]KVPair, 0, len(keys))
	pace := newPacer(nil)
	err := k.withReadTx(func(b storageBucket) error {
		for _, key := range keys {
			raw := rawTuple(key)
			v := b.Get(raw)
			if v == nil {
				if errorIfMissing {
					return invariantErrf(nil, "key not found: %s", hexstr(raw))
				}
				pace.tick()
				continue
			}
			pair := KVPair{Key: key}
			if returnValues {
				pair.Value = append([]byte(nil), v...)
			}
			out = append(out, pair)
			pace.tick()
		}
		return nil
	})
	return out, err
}

func (k *genericKV) Find(q KVQuery) ([]KVPair, error) {
	var out []KVPair
	pace := newPacer(nil)
	err := k.withReadTx(func(b storageBucket) error {
		rang := buildRawRange(q)
		cur := rang.newCursor(b.Cursor(), k.logger)
		for cur.Next() {
			if q.Limit > 0 && len(out) >= q.Limit {
				break
			}
			elems, derr := DecodeTuple(cur.Key())
			if derr != nil {
				return derr
			}
			pair := KVPair{Key: elems}
			if q.ReturnValues {
				pair.Value = append([]byte(nil), cur.Value()...)
			}
			out = append(out, pair)
			pace.tick()
		}
		return nil
	})
	return out, err
}

func (k *genericKV) Count(q KVQuery) (int, error) {
	var n int
	err := k.withReadTx(func(b storageBucket) error {
		rang := buildRawRange(q)
		cur := rang.newCursor(b.Cursor(), k.logger)
		for cur.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (k *genericKV) FindAndDelete(q KVQuery) (int, error) {
	var n int
	err := k.withWriteTx(func(b storageBucket) error {
		rang := buildRawRange(q)
		cur := rang.newCursor(b.Cursor(), k.logger)
		for cur.Next() {
			if err := cur.bcur.Delete(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (k *genericKV) Transaction(fn func(KV) error) error {
	tx, err := k.store.BeginTx(true)
	if err != nil {
		return err
	}
	child := &genericKV{store: k.store, tx: tx, logger: k.logger}
	if err := fn(child); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (k *genericKV) Close() error { return k.store.Close() }

func (k *genericKV) rawStats() (bucketStats, error) {
	var stats bucketStats
	err := k.withReadTx(func(b storageBucket) error {
		stats = b.Stats()
		return nil
	})
	return stats, err
}
