package docstore

import "sync/atomic"

// Context is the ambient handle threaded through every operation: the KV
// handle in scope (root store or an open transaction), the event bus, the
// collection registry, and a pointer back to the root Context so nested
// calls can tell whether they're already inside a transaction. This is the
// explicit re-architecture of the ambient-transaction design note: no
// cloning-by-prototype, just one small value passed by the caller.
type Context struct {
	kv       KV
	events   *EventBus
	registry *CollectionRegistry
	store    *Store
	root     *Context
}

// insideTransaction reports whether this Context is itself the root (the
// base store handle) or a nested transaction view.
func (c *Context) insideTransaction() bool { return c != c.root }

// transaction runs fn against a Context scoped to a KV transaction. If c
// is already inside a transaction, nesting is flattened: fn just runs
// against c directly, reusing the open transaction. Otherwise a new KV
// transaction is opened, fn runs against a child Context whose kv is the
// transaction handle and whose root still points at the outer Context,
// and the KV transaction commits or aborts per fn's return.
func (c *Context) transaction(fn func(*Context) error) error {
	if c.insideTransaction() {
		return fn(c)
	}
	atomic.AddInt32(&c.store.txnDepth, 1)
	defer atomic.AddInt32(&c.store.txnDepth, -1)
	return c.kv.Transaction(func(txKV KV) error {
		child := &Context{kv: txKV, events: c.events, registry: c.registry, store: c.store, root: c}
		return fn(child)
	})
}
