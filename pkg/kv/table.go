package kv

// Table is a typed view over a Simple table: one value per key, no
// duplicates. Codec is supplied by the caller (normally
// pkg/serialization) so pkg/kv never imports pkg/types.
type Table[K, V any] struct {
	Name      string
	EncodeKey func(K) []byte
	EncodeVal func(V) ([]byte, error)
	DecodeVal func([]byte) (V, error)
}

// NewTable builds a Table bound to name.
func NewTable[K, V any](name string, encodeKey func(K) []byte, encodeVal func(V) ([]byte, error), decodeVal func([]byte) (V, error)) Table[K, V] {
	return Table[K, V]{Name: name, EncodeKey: encodeKey, EncodeVal: encodeVal, DecodeVal: decodeVal}
}

// Get reads the row at key, returning ok=false if absent.
func (t Table[K, V]) Get(txn interface {
	Get(string, []byte) ([]byte, bool, error)
}, key K) (V, bool, error) {
	var zero V
	raw, ok, err := txn.Get(t.Name, t.EncodeKey(key))
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	v, err := t.DecodeVal(raw)
	if err != nil {
		return zero, false, &ErrDeserialization{Table: t.Name, Err: err}
	}
	return v, true, nil
}

// Upsert writes key->value, replacing any existing row.
func (t Table[K, V]) Upsert(txn *RwTxn, key K, value V) error {
	raw, err := t.EncodeVal(value)
	if err != nil {
		return &ErrSerialization{Table: t.Name, Err: err}
	}
	return txn.Upsert(t.Name, t.EncodeKey(key), raw)
}

// Insert writes key->value, failing with ErrKeyAlreadyExists if present.
func (t Table[K, V]) Insert(txn *RwTxn, key K, value V) error {
	raw, err := t.EncodeVal(value)
	if err != nil {
		return &ErrSerialization{Table: t.Name, Err: err}
	}
	return txn.Insert(t.Name, t.EncodeKey(key), raw)
}

// Delete removes the row at key.
func (t Table[K, V]) Delete(txn *RwTxn, key K) error {
	return txn.Delete(t.Name, t.EncodeKey(key))
}

// CommonPrefixTable is a typed view over a CommonPrefix table: rows
// keyed by the flattened K0||K1 concatenation, so every row sharing K0
// clusters under one lexicographic prefix. Used for every time-indexed
// read (contract storage, nonces, deployed contracts) and for the
// per-block flattened tables (transactions, events).
type CommonPrefixTable[K0, K1, V any] struct {
	Name      string
	EncodeK0  func(K0) []byte
	EncodeK1  func(K1) []byte
	DecodeK1  func([]byte) (K1, error)
	EncodeVal func(V) ([]byte, error)
	DecodeVal func([]byte) (V, error)
}

// NewCommonPrefixTable builds a CommonPrefixTable bound to name.
func NewCommonPrefixTable[K0, K1, V any](
	name string,
	encodeK0 func(K0) []byte,
	encodeK1 func(K1) []byte,
	decodeK1 func([]byte) (K1, error),
	encodeVal func(V) ([]byte, error),
	decodeVal func([]byte) (V, error),
) CommonPrefixTable[K0, K1, V] {
	return CommonPrefixTable[K0, K1, V]{
		Name: name, EncodeK0: encodeK0, EncodeK1: encodeK1,
		DecodeK1: decodeK1, EncodeVal: encodeVal, DecodeVal: decodeVal,
	}
}

// Append writes (k0,k1)->value, requiring the pair to sort strictly
// after the current largest (k0,k1) in the table. Used for
// per-block-ordered data (transactions, outputs) where writes are always
// in increasing order.
func (t CommonPrefixTable[K0, K1, V]) Append(txn *RwTxn, k0 K0, k1 K1, value V) error {
	raw, err := t.EncodeVal(value)
	if err != nil {
		return &ErrSerialization{Table: t.Name, Err: err}
	}
	key := append(append([]byte{}, t.EncodeK0(k0)...), t.EncodeK1(k1)...)
	return txn.Append(t.Name, key, raw)
}

// Upsert writes (k0,k1)->value without the strictly-increasing
// constraint, replacing any row that shares the exact same (k0,k1). Used
// for time-indexed tables where the same K1 (block number) may be
// rewritten on revert.
func (t CommonPrefixTable[K0, K1, V]) Upsert(txn *RwTxn, k0 K0, k1 K1, value V) error {
	raw, err := t.EncodeVal(value)
	if err != nil {
		return &ErrSerialization{Table: t.Name, Err: err}
	}
	key := append(append([]byte{}, t.EncodeK0(k0)...), t.EncodeK1(k1)...)
	return txn.Upsert(t.Name, key, raw)
}

// Delete removes exactly the (k0,k1) row, leaving other rows sharing
// k0 untouched.
func (t CommonPrefixTable[K0, K1, V]) Delete(txn *RwTxn, k0 K0, k1 K1) error {
	key := append(append([]byte{}, t.EncodeK0(k0)...), t.EncodeK1(k1)...)
	return txn.Delete(t.Name, key)
}

// GetExact reads the row at exactly (k0,k1), returning ok=false if absent.
// Time-indexed callers use this to detect a rewrite of the same block
// before upserting.
func (t CommonPrefixTable[K0, K1, V]) GetExact(txn interface {
	Get(string, []byte) ([]byte, bool, error)
}, k0 K0, k1 K1) (V, bool, error) {
	var zero V
	key := append(append([]byte{}, t.EncodeK0(k0)...), t.EncodeK1(k1)...)
	raw, ok, err := txn.Get(t.Name, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := t.DecodeVal(raw)
	if err != nil {
		return zero, false, &ErrDeserialization{Table: t.Name, Err: err}
	}
	return v, true, nil
}

// SeekAsOf returns the value at the largest k1 <= target under k0: the
// time-indexed read every storage-state query is built on. ok is false
// if k0 has no entry at or before target.
//
// It seeks to the smallest full key >= (k0,target). If that lands past
// the end of k0's run (a different k0, or nothing at all), the prior
// cursor entry is the answer when it shares k0; if it landed exactly on
// (k0,target), that is the answer directly. Anything else means k0 has
// no entry at or before target.
func (t CommonPrefixTable[K0, K1, V]) SeekAsOf(txn interface {
	Cursor(string) (*Cursor, error)
}, k0 K0, encodedTarget []byte) (V, bool, error) {
	var zero V
	cur, err := txn.Cursor(t.Name)
	if err != nil {
		return zero, false, err
	}
	defer cur.Close()

	k0Bytes := t.EncodeK0(k0)
	combined := append(append([]byte{}, k0Bytes...), encodedTarget...)

	foundKey, foundVal, ok, err := cur.SeekLowerBound(combined)
	if err != nil {
		return zero, false, err
	}

	var v []byte
	switch {
	case ok && hasPrefix(foundKey, k0Bytes) && bytesEqual(foundKey[len(k0Bytes):], encodedTarget):
		// Exact match.
		v = foundVal
	case ok:
		// Landed on k0's successor (or a later k1 under k0): step back.
		pk, pv, found, err := cur.Prev()
		if err != nil {
			return zero, false, err
		}
		if !found || !hasPrefix(pk, k0Bytes) {
			return zero, false, nil
		}
		v = pv
	default:
		// No key >= combined exists at all: the last entry in the table
		// is the candidate, if it belongs to k0.
		lk, lv, found, err := cur.Last()
		if err != nil {
			return zero, false, err
		}
		if !found || !hasPrefix(lk, k0Bytes) {
			return zero, false, nil
		}
		v = lv
	}

	decoded, err := t.DecodeVal(v)
	if err != nil {
		return zero, false, &ErrDeserialization{Table: t.Name, Err: err}
	}
	return decoded, true, nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func bytesEqual(a, b []byte) bool {
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
