package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/papyrus-go/pkg/types"
)

func TestAppendHeaderAndLookup(t *testing.T) {
	reader, writer := openTest(t)

	appendTestHeader(t, writer, 0, felt(0xAA))

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	m, err := ro.Marker(types.MarkerHeader)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), m)

	header, ok, err := ro.GetBlockHeader(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, felt(0xAA), header.BlockHash)
	assert.Equal(t, uint64(1000), header.Timestamp)

	n, ok, err := ro.GetBlockNumberByHash(felt(0xAA))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.BlockNumber(0), n)
}

func TestAppendHeaderMarkerMismatch(t *testing.T) {
	_, writer := openTest(t)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	err = txn.AppendHeader(5, testHeader(5, felt(0xAA)))
	var mismatch *ErrMarkerMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, types.BlockNumber(0), mismatch.Expected)
	assert.Equal(t, types.BlockNumber(5), mismatch.Found)
}

func TestAppendHeaderDuplicateHash(t *testing.T) {
	_, writer := openTest(t)

	appendTestHeader(t, writer, 0, felt(0xAA))

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	err = txn.AppendHeader(1, testHeader(1, felt(0xAA)))
	var dup *ErrBlockHashAlreadyExists
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, felt(0xAA), dup.Hash)
}

func TestBlockSignature(t *testing.T) {
	reader, writer := openTest(t)

	appendTestHeader(t, writer, 0, felt(0xAA))

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	sig := types.BlockSignature{R: felt(0x01), S: felt(0x02)}
	require.NoError(t, txn.AppendSignature(0, sig))
	require.NoError(t, txn.Commit())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	got, ok, err := ro.GetBlockSignature(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sig, got)
}

func TestAppendSignatureWithoutHeader(t *testing.T) {
	_, writer := openTest(t)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	err = txn.AppendSignature(0, types.BlockSignature{})
	assert.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestStarknetVersionSparse(t *testing.T) {
	reader, writer := openTest(t)

	for n := types.BlockNumber(0); n < 5; n++ {
		h := testHeader(n, felt(byte(0x10+n)))
		if n >= 3 {
			h.StarknetVersion = "0.13.2"
		}
		txn, err := writer.BeginRW()
		require.NoError(t, err)
		require.NoError(t, txn.AppendHeader(n, h))
		require.NoError(t, txn.Commit())
	}

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	for n, want := range map[types.BlockNumber]string{
		0: "0.13.1", 2: "0.13.1", 3: "0.13.2", 4: "0.13.2",
		// Past the tip the closest entry still answers.
		10: "0.13.2",
	} {
		got, ok, err := ro.StarknetVersionAt(n)
		require.NoError(t, err)
		require.True(t, ok, "block %d", n)
		assert.Equal(t, want, got, "block %d", n)
	}
}

func TestRevertHeader(t *testing.T) {
	reader, writer := openTest(t)

	appendTestHeader(t, writer, 0, felt(0xAA))
	appendTestHeader(t, writer, 1, felt(0xBB))

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	removed, err := txn.RevertHeader(1)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, felt(0xBB), removed.BlockHash)
	require.NoError(t, txn.Commit())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	m, err := ro.Marker(types.MarkerHeader)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), m)

	_, ok, err := ro.GetBlockHeader(1)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = ro.GetBlockNumberByHash(felt(0xBB))
	require.NoError(t, err)
	assert.False(t, ok)

	// Block 0 is untouched.
	_, ok, err = ro.GetBlockHeader(0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRevertHeaderNotTip(t *testing.T) {
	_, writer := openTest(t)

	appendTestHeader(t, writer, 0, felt(0xAA))
	appendTestHeader(t, writer, 1, felt(0xBB))

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	_, err = txn.RevertHeader(0)
	var invalid *ErrInvalidRevert
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, types.BlockNumber(2), invalid.Marker)
}

func TestRevertHeaderPastMarkerIsNoOp(t *testing.T) {
	_, writer := openTest(t)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	removed, err := txn.RevertHeader(7)
	require.NoError(t, err)
	assert.Nil(t, removed)
}
