package docstore

import (
	"sync/atomic"
	"time"
)

const lockRetryInterval = 5000 * time.Millisecond

// ensureInitialized is the fast path every query-engine operation calls
// first: once Initialized, it's a single atomic load.
func (s *Store) ensureInitialized() error {
	if s.loadInitState() == stateInitialized {
		return nil
	}
	return s.Initialize()
}

// Initialize runs the schema lifecycle state machine described in C4:
// create-if-missing, advisory cross-process lock, version upgrade,
// idempotent migration, unlock. Calling it from inside a transaction is
// fatal.
//
// Every event the sequence raises (didCreate, upgradeDidStart/Stop,
// migrationDidStart/Stop, didInitialize) is buffered in an eventRecorder
// and only fanned out to real listeners after initMu is released. That
// makes reentrant calls safe: a listener that calls Store.Initialize from
// inside one of these events runs after state is already stateInitialized
// and initMu is already free, so it takes the fast path above and returns
// immediately instead of blocking on a mutex it already holds.
func (s *Store) Initialize() error {
	if s.loadInitState() == stateInitialized {
		return s.initErr
	}
	if atomic.LoadInt32(&s.txnDepth) > 0 {
		return transactionMisusef("initialize called inside a transaction")
	}

	s.initMu.Lock()

	if s.loadInitState() == stateInitialized {
		// Another goroutine ran the whole sequence, including releasing
		// initMu, while we were waiting to acquire it.
		err := s.initErr
		s.initMu.Unlock()
		return err
	}

	atomic.StoreInt32(&s.state, int32(stateInitializing))

	rec := &eventRecorder{}
	err := s.runInitSequence(rec)
	s.initErr = err
	atomic.StoreInt32(&s.state, int32(stateInitialized))
	if err == nil {
		rec.emit(Event{Kind: EventDidInitialize})
	}
	s.initMu.Unlock()

	for _, ev := range rec.events {
		s.events.emit(ev)
	}
	return err
}

func (s *Store) runInitSequence(events eventEmitter) error {
	created, err := s.createIfMissing(events)
	if err != nil {
		return err
	}
	if created {
		return nil
	}

	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.unlock()

	raw, found, err := s.kv.Get(s.descriptorKey(), true)
	if err != nil {
		return err
	}
	if !found {
		return invariantErrf(nil, "store descriptor for %q is missing", s.name)
	}
	d, upgraded, err := decodeAndUpgradeDescriptor(raw, events)
	if err != nil {
		return err
	}
	if upgraded {
		if err := s.saveDescriptor(d); err != nil {
			return err
		}
	}

	return s.migrate(d, events)
}

func (s *Store) descriptorKey() []TupleElem { return storeDescriptorKey(s.name) }

func (s *Store) readDescriptor() (*storeDescriptor, error) {
	raw, found, err := s.kv.Get(s.descriptorKey(), true)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, invariantErrf(nil, "store descriptor for %q is missing", s.name)
	}
	var d storeDescriptor
	if err := decodeValue(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) saveDescriptor(d *storeDescriptor) error {
	buf := encodeValue(nil, d)
	return s.kv.Put(s.descriptorKey(), buf, true, false)
}

// createIfMissing writes a fresh descriptor if none exists yet, returning
// whether creation occurred.
func (s *Store) createIfMissing(events eventEmitter) (bool, error) {
	var created bool
	err := s.kv.Transaction(func(kv KV) error {
		_, found, err := kv.Get(s.descriptorKey(), false)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		d := newStoreDescriptor(s.name, s.registry.all())
		buf := encodeValue(nil, d)
		if err := kv.Put(s.descriptorKey(), buf, true, false); err != nil {
			return err
		}
		created = true
		events.emit(Event{Kind: EventDidCreate})
		return nil
	})
	return created, err
}

// acquireLock is the lock loop: in a KV transaction, read the descriptor;
// if not locked, set isLocked and commit; else sleep and retry forever.
// No timeout, no deadlock detection — advisory between cooperating
// initializers.
func (s *Store) acquireLock() error {
	for {
		var acquired bool
		err := s.kv.Transaction(func(kv KV) error {
			raw, found, err := kv.Get(s.descriptorKey(), true)
			if err != nil {
				return err
			}
			if !found {
				return invariantErrf(nil, "store descriptor for %q is missing", s.name)
			}
			var d storeDescriptor
			if err := decodeValue(raw, &d); err != nil {
				return err
			}
			if d.IsLocked {
				return nil
			}
			d.IsLocked = true
			buf := encodeValue(nil, &d)
			acquired = true
			return kv.Put(s.descriptorKey(), buf, true, false)
		})
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		s.logf("docstore: store %q is locked by another initializer, retrying in %s", s.name, lockRetryInterval)
		time.Sleep(lockRetryInterval)
	}
}

func (s *Store) unlock() error {
	return s.kv.Transaction(func(kv KV) error {
		raw, found, err := kv.Get(s.descriptorKey(), true)
		if err != nil {
			return err
		}
		if !found {
			return invariantErrf(nil, "store descriptor for %q is missing", s.name)
		}
		var d storeDescriptor
		if err := decodeValue(raw, &d); err != nil {
			return err
		}
		d.IsLocked = false
		buf := encodeValue(nil, &d)
		return kv.Put(s.descriptorKey(), buf, true, false)
	})
}

// migrate reconciles the persisted collection/index descriptors against
// the in-memory declaration: adds missing collections/indexes, removes
// indexes no longer declared, and tombstones collections no longer
// declared. Idempotent: a second call with an unchanged declaration
// performs zero KV writes, since saveDescriptor is only called for a
// collection whose descriptor this call actually mutated.
func (s *Store) migrate(d *storeDescriptor, events eventEmitter) error {
	migrationStarted := false
	startMigration := func() {
		if !migrationStarted {
			migrationStarted = true
			events.emit(Event{Kind: EventMigrationDidStart})
		}
	}
	defer func() {
		if migrationStarted {
			events.emit(Event{Kind: EventMigrationDidStop})
		}
	}()

	byName := make(map[string]*collectionDescriptor, len(d.Collections))
	for _, cd := range d.Collections {
		byName[cd.Name] = cd
	}

	for _, c := range s.registry.all() {
		cd, exists := byName[c.Name]
		if !exists {
			startMigration()
			cd = newCollectionDescriptor(c)
			d.Collections = append(d.Collections, cd)
			byName[c.Name] = cd
			if err := s.saveDescriptor(d); err != nil {
				return err
			}
			continue
		}
		if cd.HasBeenRemoved {
			return unsupportedMigrationf("collection %q was removed and cannot be re-added", c.Name)
		}

		changed := false

		for _, idx := range c.Indexes {
			if cd.findIndex(idx.Keys) == nil {
				startMigration()
				if err := s._addIndex(c, idx); err != nil {
					return err
				}
				cd.Indexes = append(cd.Indexes, &indexDescriptor{Keys: idx.Keys, Projection: idx.Projection})
				changed = true
			}
		}

		declared := make(map[string]bool, len(c.Indexes))
		for _, idx := range c.Indexes {
			declared[indexName(idx.Keys)] = true
		}
		kept := cd.Indexes[:0:0]
		for _, pidx := range cd.Indexes {
			if declared[indexName(pidx.Keys)] {
				kept = append(kept, pidx)
				continue
			}
			startMigration()
			if err := s._removeIndex(c.Name, pidx.Keys); err != nil {
				return err
			}
			changed = true
		}
		cd.Indexes = kept

		if changed {
			if err := s.saveDescriptor(d); err != nil {
				return err
			}
		}
	}

	for _, cd := range d.Collections {
		if cd.HasBeenRemoved {
			continue
		}
		if c, _ := s.registry.getCollection(cd.Name, false); c == nil {
			startMigration()
			for _, pidx := range cd.Indexes {
				if err := s._removeIndexByName(cd.Name, indexName(pidx.Keys)); err != nil {
					return err
				}
			}
			cd.Indexes = nil
			cd.HasBeenRemoved = true
			if err := s.saveDescriptor(d); err != nil {
				return err
			}
		}
	}

	return nil
}

// _addIndex scans every item of the collection sequentially and builds
// the new index entry for each, yielding cooperatively every
// RespirationRate items.
func (s *Store) _addIndex(c *Collection, idx *Index) error {
	pace := newPacer(nil)
	return s.forEachRaw(c.Name, func(itemKey TupleElem, item Item) error {
		if err := updateIndex(s.kv, s.name, c.Name, itemKey, nil, item, idx); err != nil {
			return err
		}
		pace.tick()
		return nil
	})
}

// _removeIndex issues a KV range delete at the index's namespace prefix.
func (s *Store) _removeIndex(collectionName string, keys []string) error {
	return s._removeIndexByName(collectionName, indexName(keys))
}

func (s *Store) _removeIndexByName(collectionName, idxName string) error {
	prefix := []TupleElem{StringElem(s.name), StringElem(collectionName + indexSep + idxName)}
	_, err := s.kv.FindAndDelete(KVQuery{Prefix: prefix})
	return err
}

// removeCollectionsMarkedAsRemoved purges tombstoned collections' data and
// drops their descriptors entirely.
func (s *Store) removeCollectionsMarkedAsRemoved() error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	return s.kv.Transaction(func(kv KV) error {
		raw, found, err := kv.Get(s.descriptorKey(), true)
		if err != nil {
			return err
		}
		if !found {
			return invariantErrf(nil, "store descriptor for %q is missing", s.name)
		}
		var d storeDescriptor
		if err := decodeValue(raw, &d); err != nil {
			return err
		}
		kept := d.Collections[:0:0]
		for _, cd := range d.Collections {
			if !cd.HasBeenRemoved {
				kept = append(kept, cd)
				continue
			}
			prefix := []TupleElem{StringElem(s.name), StringElem(cd.Name)}
			if _, err := kv.FindAndDelete(KVQuery{Prefix: prefix}); err != nil {
				return err
			}
		}
		d.Collections = kept
		buf := encodeValue(nil, &d)
		return kv.Put(s.descriptorKey(), buf, true, false)
	})
}

// DestroyAll deletes everything under this store's prefix and resets
// initialization state. Forbidden inside a transaction.
func (s *Store) DestroyAll() error {
	if atomic.LoadInt32(&s.txnDepth) > 0 {
		return transactionMisusef("destroyAll called inside a transaction")
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	prefix := []TupleElem{StringElem(s.name)}
	if _, err := s.kv.FindAndDelete(KVQuery{Prefix: prefix}); err != nil {
		return err
	}
	atomic.StoreInt32(&s.state, int32(stateUninitialized))
	s.initErr = nil
	return nil
}
