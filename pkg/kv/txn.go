package kv

import (
	"bytes"
	"encoding/hex"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/starkware-libs/papyrus-go/pkg/metrics"
)

// RoTxn is a snapshot read-only transaction. It is cheap to begin and
// safe to hold across many cursor reads; it keeps its snapshot alive
// until Abort is called.
type RoTxn struct {
	txn *mdbx.Txn
}

// Abort releases the read snapshot. Safe to call multiple times.
func (t *RoTxn) Abort() {
	if t.txn == nil {
		return
	}
	t.txn.Abort()
	t.txn = nil
	metrics.OpenReadTxns.Dec()
}

// Get reads the raw row for key in table; ok is false when the key is
// absent.
func (t *RoTxn) Get(table string, key []byte) (value []byte, ok bool, err error) {
	dbi, err := t.txn.OpenDBI(table, 0, nil, nil)
	if err != nil {
		return nil, false, &ErrInnerDB{Op: "OpenDBI", Err: err}
	}
	v, err := t.txn.Get(dbi, key)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, &ErrInnerDB{Op: "Get", Err: err}
	}
	return v, true, nil
}

// Cursor opens a forward+backward cursor over table.
func (t *RoTxn) Cursor(table string) (*Cursor, error) {
	dbi, err := t.txn.OpenDBI(table, 0, nil, nil)
	if err != nil {
		return nil, &ErrInnerDB{Op: "OpenDBI", Err: err}
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, &ErrInnerDB{Op: "OpenCursor", Err: err}
	}
	return &Cursor{cur: c, table: table}, nil
}

// RwTxn is the single live read-write transaction. Every Table and
// CommonPrefixTable mutation goes through it.
type RwTxn struct {
	txn     *mdbx.Txn
	release func()
	done    bool
}

// Commit makes every write in this transaction visible to readers
// atomically. On error, no effect: mdbx either commits in full or not at
// all.
func (t *RwTxn) Commit() error {
	if t.done {
		return nil
	}
	timer := metrics.NewTimer()
	_, err := t.txn.Commit()
	timer.ObserveDuration(metrics.CommitDuration)
	t.done = true
	t.release()
	metrics.WriterLockHeld.Set(0)
	if err != nil {
		return &ErrInnerDB{Op: "Commit", Err: err}
	}
	return nil
}

// Abort discards every write made in this transaction.
func (t *RwTxn) Abort() {
	if t.done {
		return
	}
	t.txn.Abort()
	t.done = true
	t.release()
	metrics.WriterLockHeld.Set(0)
}

// Get reads the raw row for key in table.
func (t *RwTxn) Get(table string, key []byte) (value []byte, ok bool, err error) {
	dbi, err := t.txn.OpenDBI(table, 0, nil, nil)
	if err != nil {
		return nil, false, &ErrInnerDB{Op: "OpenDBI", Err: err}
	}
	v, err := t.txn.Get(dbi, key)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, &ErrInnerDB{Op: "Get", Err: err}
	}
	return v, true, nil
}

// Upsert writes key->value, replacing any existing row.
func (t *RwTxn) Upsert(table string, key, value []byte) error {
	dbi, err := t.txn.OpenDBI(table, 0, nil, nil)
	if err != nil {
		return &ErrInnerDB{Op: "OpenDBI", Err: err}
	}
	if err := t.txn.Put(dbi, key, value, 0); err != nil {
		return &ErrInnerDB{Op: "Put", Err: err}
	}
	return nil
}

// Insert writes key->value, failing with ErrKeyAlreadyExists if key is
// already present.
func (t *RwTxn) Insert(table string, key, value []byte) error {
	dbi, err := t.txn.OpenDBI(table, 0, nil, nil)
	if err != nil {
		return &ErrInnerDB{Op: "OpenDBI", Err: err}
	}
	if err := t.txn.Put(dbi, key, value, mdbx.NoOverwrite); err != nil {
		if mdbx.IsKeyExist(err) {
			return &ErrKeyAlreadyExists{Table: table, Key: formatBytes(key), Value: formatBytes(value)}
		}
		return &ErrInnerDB{Op: "Put(NoOverwrite)", Err: err}
	}
	return nil
}

// Append writes key->value, requiring key to sort strictly after the
// current largest key in table; violating this returns ErrAppend. The
// mdbx append mode skips the page-search a random-order Put pays.
func (t *RwTxn) Append(table string, key, value []byte) error {
	dbi, err := t.txn.OpenDBI(table, 0, nil, nil)
	if err != nil {
		return &ErrInnerDB{Op: "OpenDBI", Err: err}
	}
	cur, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return &ErrInnerDB{Op: "OpenCursor", Err: err}
	}
	lastKey, _, err := cur.Get(nil, nil, mdbx.Last)
	cur.Close()
	if err != nil && !mdbx.IsNotFound(err) {
		return &ErrInnerDB{Op: "Cursor.Get(Last)", Err: err}
	}
	if err == nil && bytes.Compare(key, lastKey) <= 0 {
		return &ErrAppend{Table: table, Key: formatBytes(key)}
	}
	if err := t.txn.Put(dbi, key, value, mdbx.Append); err != nil {
		return &ErrInnerDB{Op: "Put(Append)", Err: err}
	}
	return nil
}

// Delete removes the row for key in table. It is not an error for the key
// to already be absent.
func (t *RwTxn) Delete(table string, key []byte) error {
	dbi, err := t.txn.OpenDBI(table, 0, nil, nil)
	if err != nil {
		return &ErrInnerDB{Op: "OpenDBI", Err: err}
	}
	if err := t.txn.Del(dbi, key, nil); err != nil && !mdbx.IsNotFound(err) {
		return &ErrInnerDB{Op: "Del", Err: err}
	}
	return nil
}

// Cursor opens a forward+backward cursor over table for use within this
// read-write transaction.
func (t *RwTxn) Cursor(table string) (*Cursor, error) {
	dbi, err := t.txn.OpenDBI(table, 0, nil, nil)
	if err != nil {
		return nil, &ErrInnerDB{Op: "OpenDBI", Err: err}
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, &ErrInnerDB{Op: "OpenCursor", Err: err}
	}
	return &Cursor{cur: c, table: table}, nil
}

// formatBytes renders a key or value for error messages, truncating long
// payloads so a giant contract-class blob doesn't end up in a log line.
func formatBytes(b []byte) string {
	const max = 16
	truncated := len(b) > max
	if truncated {
		b = b[:max]
	}
	s := hex.EncodeToString(b)
	if truncated {
		s += "..."
	}
	return s
}
