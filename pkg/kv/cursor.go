package kv

import "github.com/erigontech/mdbx-go/mdbx"

// Cursor walks a table in key order. For CommonPrefix tables the key is
// the flattened K0||K1 concatenation, so First/Next/SeekLowerBound walk
// rows grouped by their shared K0 prefix; pkg/storage's time-indexed
// reads are built on SeekLowerBound plus one Prev step.
type Cursor struct {
	cur   *mdbx.Cursor
	table string
}

// Close releases the cursor. It does not affect the owning transaction.
func (c *Cursor) Close() {
	c.cur.Close()
}

// Current returns the key/value the cursor is positioned on without
// moving it.
func (c *Cursor) Current() (key, value []byte, ok bool, err error) {
	return c.op(mdbx.GetCurrent)
}

// First seeks to the smallest key in the table.
func (c *Cursor) First() (key, value []byte, ok bool, err error) {
	return c.op(mdbx.First)
}

// Last seeks to the largest key in the table.
func (c *Cursor) Last() (key, value []byte, ok bool, err error) {
	return c.op(mdbx.Last)
}

// Next advances to the next key.
func (c *Cursor) Next() (key, value []byte, ok bool, err error) {
	return c.op(mdbx.Next)
}

// Prev steps back to the previous key.
func (c *Cursor) Prev() (key, value []byte, ok bool, err error) {
	return c.op(mdbx.Prev)
}

// SeekExact positions on key exactly, failing (ok=false) if absent.
func (c *Cursor) SeekExact(key []byte) (value []byte, ok bool, err error) {
	_, v, ok, err := c.opKey(mdbx.SetKey, key)
	return v, ok, err
}

// SeekLowerBound positions on the smallest key >= key, or reports ok=false
// if no such key exists.
func (c *Cursor) SeekLowerBound(key []byte) (foundKey, value []byte, ok bool, err error) {
	return c.opKey(mdbx.SetRange, key)
}

func (c *Cursor) op(o mdbx.CursorOp) (key, value []byte, ok bool, err error) {
	k, v, err := c.cur.Get(nil, nil, o)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, &ErrInnerDB{Op: "Cursor.Get", Err: err}
	}
	return k, v, true, nil
}

func (c *Cursor) opKey(o mdbx.CursorOp, key []byte) (foundKey, value []byte, ok bool, err error) {
	k, v, err := c.cur.Get(key, nil, o)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, &ErrInnerDB{Op: "Cursor.Get", Err: err}
	}
	return k, v, true, nil
}
