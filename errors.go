package docstore

import (
	"fmt"
)

// ConfigurationError signals a caller mistake that is knowable without
// touching the store: a missing name/url, a duplicate collection, an
// invalid key/item/options shape.
type ConfigurationError struct {
	Msg string
	Err error
}

func configErrf(err error, format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("docstore: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("docstore: %s", e.Msg)
}

// InvariantViolation signals a state the spec says can't happen in a
// correctly operated store: a missing collection/descriptor, no index
// matching a query/order, a downgrade attempt.
type InvariantViolation struct {
	Msg string
	Err error
}

func invariantErrf(err error, format string, args ...any) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *InvariantViolation) Unwrap() error { return e.Err }
func (e *InvariantViolation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("docstore: invariant violated: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("docstore: invariant violated: %s", e.Msg)
}

// UnsupportedMigration signals a schema transition the spec explicitly
// declines to automate: re-adding a tombstoned collection, or upgrading
// across the v2/v3 boundary.
type UnsupportedMigration struct {
	Msg string
}

func unsupportedMigrationf(format string, args ...any) error {
	return &UnsupportedMigration{Msg: fmt.Sprintf(format, args...)}
}

func (e *UnsupportedMigration) Error() string {
	return fmt.Sprintf("docstore: unsupported migration: %s", e.Msg)
}

// TransactionMisuse signals a call to initialize or destroyAll while
// already inside a transaction.
type TransactionMisuse struct {
	Msg string
}

func transactionMisusef(format string, args ...any) error {
	return &TransactionMisuse{Msg: fmt.Sprintf(format, args...)}
}

func (e *TransactionMisuse) Error() string {
	return fmt.Sprintf("docstore: transaction misuse: %s", e.Msg)
}

// DataError wraps a decode failure against a bounded preview of the
// offending bytes so logs stay readable for large values.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error { return e.Err }

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	var preview string
	if n <= prefixLen+suffixLen {
		preview = fmt.Sprintf("(%d) %x", n, e.Data)
	} else {
		preview = fmt.Sprintf("(%d) %x...%x", n, e.Data[:prefixLen], e.Data[n-suffixLen:])
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %s", e.Msg, e.Err, preview)
	}
	return fmt.Sprintf("%s: %s", e.Msg, preview)
}

// CollectionError attributes a failure to a collection (and optionally an
// index and key) for diagnostics.
type CollectionError struct {
	Collection string
	Index      string
	Key        []byte
	Msg        string
	Err        error
}

func collectionErrf(collection, index string, key []byte, err error, format string, args ...any) error {
	return &CollectionError{collection, index, key, fmt.Sprintf(format, args...), err}
}

func (e *CollectionError) Unwrap() error { return e.Err }

func (e *CollectionError) Error() string {
	s := e.Collection
	if e.Index != "" {
		s += "." + e.Index
	}
	if e.Key != nil {
		s += "/" + hexstr(e.Key)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
