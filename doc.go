/*
Package docstore implements a document store layered on top of an ordered
key-value engine (in-memory, Bolt, or SQLite).

We implement:

1. Collections, named groups of JSON-like documents ("items") addressed by
a single typed key (string or integer).

2. Indexes, declared per collection, giving ordered lookup by one or more
computed property values, with an optional projection of extra properties
stored alongside the index entry to avoid a round trip back to the item.

3. A schema lifecycle: a store descriptor records what's been declared,
created lazily on first use, reconciled against the in-memory declaration
on every open (new collections and indexes are built, removed ones are
torn down), and guarded by an advisory cross-process lock during that
reconciliation.

4. Transactions, scoped by an explicit Context value rather than an
ambient global: every operation takes a Context, and Context.transaction
flattens nested transaction calls onto the already-open one.

# Technical details

**Keys.** Every key — store descriptor, item, index entry — lives in one
flat ordered namespace, encoded as an order-preserving tuple (enctuple.go):
strings and integers sort the same way their tuples do, so index entries,
prefix scans and range queries all fall out of plain byte-range scans on
the backend.

**Properties and projections.** An index's keys are property paths
("user.id", not struct fields); a property absent from an item is the
explicit undefined value, distinct from a property present but null, and
an index entry for a row is omitted entirely when any of its key values is
undefined.

**Differential index maintenance.** A Put or Delete recomputes a row's old
and new values (and, if declared, old and new projections) for every
index of the collection and writes only the delta: a changed old entry is
removed, a changed new entry is written, identical values are left alone.

**Cooperative pacing.** Scans covering a whole collection (index builds,
find-and-delete, batched range scans) call runtime.Gosched() periodically
rather than monopolizing a goroutine across very large data sets.
*/
package docstore
