package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/papyrus-go/pkg/types"
)

func TestStateAtTwoBlocks(t *testing.T) {
	reader, writer := openTest(t)

	c0, cl0, cl1, k0 := felt(0xC0), felt(0xA0), felt(0xA1), felt(0x10)

	diff0 := types.NewThinStateDiff()
	diff0.DeployedContracts[c0] = cl0
	diff0.StorageDiffs[c0] = []types.StorageDiffEntry{{Key: k0, Value: felt(0x20)}}
	diff0.Nonces[c0] = felt(0x01)
	appendTestDiff(t, writer, 0, diff0)

	diff1 := types.NewThinStateDiff()
	diff1.StorageDiffs[c0] = []types.StorageDiffEntry{{Key: k0, Value: felt(0x30)}}
	diff1.Nonces[c0] = felt(0x02)
	diff1.ReplacedClasses[c0] = cl1
	appendTestDiff(t, writer, 1, diff1)

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	// State right before block 1: block 0's writes only.
	sn := types.StateRightBefore(1)
	hash, err := ro.GetClassHashAt(sn, c0)
	require.NoError(t, err)
	assert.Equal(t, cl0, hash)
	nonce, err := ro.GetNonceAt(sn, c0)
	require.NoError(t, err)
	assert.Equal(t, felt(0x01), nonce)
	val, err := ro.GetStorageAt(sn, c0, k0)
	require.NoError(t, err)
	assert.Equal(t, felt(0x20), val)

	// State right before block 2: block 1's writes included.
	sn = types.StateRightBefore(2)
	hash, err = ro.GetClassHashAt(sn, c0)
	require.NoError(t, err)
	assert.Equal(t, cl1, hash)
	nonce, err = ro.GetNonceAt(sn, c0)
	require.NoError(t, err)
	assert.Equal(t, felt(0x02), nonce)
	val, err = ro.GetStorageAt(sn, c0, k0)
	require.NoError(t, err)
	assert.Equal(t, felt(0x30), val)
}

func TestStateDefaultsAreZero(t *testing.T) {
	reader, writer := openTest(t)

	appendTestDiff(t, writer, 0, types.NewThinStateDiff())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	hash, err := ro.GetClassHashAt(types.StateRightAfter(0), felt(0xEE))
	require.NoError(t, err)
	assert.True(t, hash.IsZero())
	nonce, err := ro.GetNonceAt(types.StateRightAfter(0), felt(0xEE))
	require.NoError(t, err)
	assert.True(t, nonce.IsZero())
	val, err := ro.GetStorageAt(types.StateRightAfter(0), felt(0xEE), felt(0x01))
	require.NoError(t, err)
	assert.True(t, val.IsZero())
}

func TestStateAtStateNumberZero(t *testing.T) {
	reader, writer := openTest(t)

	diff := types.NewThinStateDiff()
	diff.DeployedContracts[felt(0xC0)] = felt(0xA0)
	appendTestDiff(t, writer, 0, diff)

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	hash, err := ro.GetClassHashAt(types.StateRightBefore(0), felt(0xC0))
	require.NoError(t, err)
	assert.True(t, hash.IsZero())
}

func TestGetStateDiffRoundTrip(t *testing.T) {
	reader, writer := openTest(t)

	diff := types.NewThinStateDiff()
	diff.DeployedContracts[felt(0xC0)] = felt(0xA0)
	diff.Nonces[felt(0xC0)] = felt(0x01)
	diff.DeclaredClasses = []types.DeclaredClassEntry{{ClassHash: felt(0xD0), CompiledClassHash: felt(0xE0)}}
	diff.DeprecatedDeclaredClasses = []types.ClassHash{felt(0xD1)}
	appendTestDiff(t, writer, 0, diff)

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	got, ok, err := ro.GetStateDiff(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, *diff, got)

	block, ok, err := ro.GetClassDeclarationBlock(felt(0xD0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.BlockNumber(0), block)
}

func TestAppendStateDiffContractAlreadyExists(t *testing.T) {
	_, writer := openTest(t)

	diff := types.NewThinStateDiff()
	diff.DeployedContracts[felt(0xC0)] = felt(0xA0)
	appendTestDiff(t, writer, 0, diff)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	again := types.NewThinStateDiff()
	again.DeployedContracts[felt(0xC0)] = felt(0xA1)
	err = txn.AppendStateDiff(1, again)
	var exists *ErrContractAlreadyExists
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, felt(0xC0), exists.Address)
}

func TestAppendStateDiffClassAlreadyExists(t *testing.T) {
	_, writer := openTest(t)

	diff := types.NewThinStateDiff()
	diff.DeclaredClasses = []types.DeclaredClassEntry{{ClassHash: felt(0xD0), CompiledClassHash: felt(0xE0)}}
	appendTestDiff(t, writer, 0, diff)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	redeclare := types.NewThinStateDiff()
	redeclare.DeclaredClasses = []types.DeclaredClassEntry{{ClassHash: felt(0xD0), CompiledClassHash: felt(0xE1)}}
	err = txn.AppendStateDiff(1, redeclare)
	var classErr *ErrClassAlreadyExists
	require.ErrorAs(t, err, &classErr)
	assert.Equal(t, felt(0xD0), classErr.ClassHash)

	// Redeclaring with the same compiled-class hash is allowed.
	txn.Abort()
	txn, err = writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()
	same := types.NewThinStateDiff()
	same.DeclaredClasses = []types.DeclaredClassEntry{{ClassHash: felt(0xD0), CompiledClassHash: felt(0xE0)}}
	require.NoError(t, txn.AppendStateDiff(1, same))
}

func TestAppendStateDiffFillsHeaderDiffLength(t *testing.T) {
	reader, writer := openTest(t)

	appendTestHeader(t, writer, 0, felt(0xAA))

	diff := types.NewThinStateDiff()
	diff.DeployedContracts[felt(0xC0)] = felt(0xA0)
	diff.StorageDiffs[felt(0xC0)] = []types.StorageDiffEntry{
		{Key: felt(0x01), Value: felt(0x02)},
		{Key: felt(0x03), Value: felt(0x04)},
	}
	appendTestDiff(t, writer, 0, diff)

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	header, ok, err := ro.GetBlockHeader(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, header.StateDiffLength)
	assert.Equal(t, uint64(3), *header.StateDiffLength)
}

func TestRevertStateDiff(t *testing.T) {
	reader, writer := openTest(t)

	c0, k0 := felt(0xC0), felt(0x10)

	diff0 := types.NewThinStateDiff()
	diff0.DeployedContracts[c0] = felt(0xA0)
	diff0.StorageDiffs[c0] = []types.StorageDiffEntry{{Key: k0, Value: felt(0x20)}}
	diff0.Nonces[c0] = felt(0x01)
	appendTestDiff(t, writer, 0, diff0)

	diff1 := types.NewThinStateDiff()
	diff1.StorageDiffs[c0] = []types.StorageDiffEntry{{Key: k0, Value: felt(0x30)}}
	diff1.Nonces[c0] = felt(0x02)
	appendTestDiff(t, writer, 1, diff1)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	removed, err := txn.RevertStateDiff(1)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, felt(0x02), removed.Nonces[c0])
	require.NoError(t, txn.Commit())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	m, err := ro.Marker(types.MarkerState)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), m)

	// Block 0's state shows through again.
	val, err := ro.GetStorageAt(types.StateRightAfter(1), c0, k0)
	require.NoError(t, err)
	assert.Equal(t, felt(0x20), val)
	nonce, err := ro.GetNonceAt(types.StateRightAfter(1), c0)
	require.NoError(t, err)
	assert.Equal(t, felt(0x01), nonce)

	_, ok, err := ro.GetStateDiff(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendStateDiffNonceReWrite(t *testing.T) {
	_, writer := openTest(t)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	// Plant a stray nonce row at (contract, 0) directly; the append must
	// refuse to rewrite it.
	require.NoError(t, noncesTable.Upsert(txn.inner, felt(0xC0), 0, felt(0x09)))

	diff := types.NewThinStateDiff()
	diff.Nonces[felt(0xC0)] = felt(0x01)
	err = txn.AppendStateDiff(0, diff)
	var rewrite *ErrNonceReWrite
	require.ErrorAs(t, err, &rewrite)
	assert.Equal(t, felt(0xC0), rewrite.Address)
	assert.Equal(t, types.BlockNumber(0), rewrite.BlockNumber)
}

func TestRevertThenReappendStateDiff(t *testing.T) {
	_, writer := openTest(t)

	diff := types.NewThinStateDiff()
	diff.Nonces[felt(0xC0)] = felt(0x01)
	appendTestDiff(t, writer, 0, diff)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	removed, err := txn.RevertStateDiff(0)
	require.NoError(t, err)
	require.NotNil(t, removed)

	// The reverted rows are gone, so re-appending the same diff is a
	// fresh write, not a rewrite.
	require.NoError(t, txn.AppendStateDiff(0, removed))
	require.NoError(t, txn.Commit())
}
