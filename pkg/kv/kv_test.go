package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestEnv(t *testing.T) *Env {
	t.Helper()
	env, err := Open(Config{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func TestOpenCreatesAllTables(t *testing.T) {
	env := openTestEnv(t)
	w := env.NewWriter()
	txn, err := w.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	for _, table := range allTableNames {
		_, err := txn.Cursor(table)
		assert.NoErrorf(t, err, "table %q should already exist", table)
	}
}

func TestUpsertAndGetRoundTrip(t *testing.T) {
	env := openTestEnv(t)

	w := env.NewWriter()
	txn, err := w.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.Upsert(TableHeaders, []byte("key-a"), []byte("value-a")))
	require.NoError(t, txn.Commit())

	r := env.NewReader()
	roTxn, err := r.BeginRO()
	require.NoError(t, err)
	defer roTxn.Abort()

	v, ok, err := roTxn.Get(TableHeaders, []byte("key-a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value-a"), v)
}

func TestInsertRejectsDuplicateKey(t *testing.T) {
	env := openTestEnv(t)
	w := env.NewWriter()
	txn, err := w.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	require.NoError(t, txn.Insert(TableStorageVersion, []byte{0}, []byte("v1")))
	err = txn.Insert(TableStorageVersion, []byte{0}, []byte("v2"))
	var keyExists *ErrKeyAlreadyExists
	assert.ErrorAs(t, err, &keyExists)
}

func TestAppendRejectsNonIncreasingKey(t *testing.T) {
	env := openTestEnv(t)
	w := env.NewWriter()
	txn, err := w.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	require.NoError(t, txn.Append(TableTransactions, []byte{0, 0, 2}, []byte("tx-2")))
	err = txn.Append(TableTransactions, []byte{0, 0, 1}, []byte("tx-1"))
	var appendErr *ErrAppend
	assert.ErrorAs(t, err, &appendErr)

	// Re-appending the largest key is also rejected: strictly greater only.
	err = txn.Append(TableTransactions, []byte{0, 0, 2}, []byte("tx-2b"))
	assert.ErrorAs(t, err, &appendErr)
}

func TestCommonPrefixTableSeekAsOf(t *testing.T) {
	env := openTestEnv(t)

	table := NewCommonPrefixTable[[]byte, uint64, string](
		TableContractStorage,
		func(k0 []byte) []byte { return k0 },
		encodeUint64,
		decodeUint64,
		func(v string) ([]byte, error) { return []byte(v), nil },
		func(b []byte) (string, error) { return string(b), nil },
	)

	addr := []byte("contract-address-1")

	w := env.NewWriter()
	txn, err := w.BeginRW()
	require.NoError(t, err)
	require.NoError(t, table.Upsert(txn, addr, 10, "value-at-10"))
	require.NoError(t, table.Upsert(txn, addr, 20, "value-at-20"))
	require.NoError(t, txn.Commit())

	r := env.NewReader()
	roTxn, err := r.BeginRO()
	require.NoError(t, err)
	defer roTxn.Abort()

	v, ok, err := table.SeekAsOf(roTxn, addr, encodeUint64(15))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value-at-10", v)

	v, ok, err = table.SeekAsOf(roTxn, addr, encodeUint64(25))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value-at-20", v)

	_, ok, err = table.SeekAsOf(roTxn, addr, encodeUint64(5))
	require.NoError(t, err)
	assert.False(t, ok)
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func decodeUint64(b []byte) (uint64, error) {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}
