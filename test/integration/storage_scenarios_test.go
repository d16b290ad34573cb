package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/papyrus-go/pkg/storage"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

func open(t *testing.T) (*storage.Reader, *storage.Writer) {
	t.Helper()
	reader, writer, err := storage.Open(storage.Config{
		PathPrefix: t.TempDir(),
		ChainID:    "SN_INTEGRATION",
		MinSize:    1 << 20,
		MaxSize:    1 << 30,
		GrowthStep: 1 << 22,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close() })
	return reader, writer
}

func f(b byte) types.Felt {
	var out types.Felt
	out[31] = b
	return out
}

// A full block's worth of data: header, body, state diff, classes.
type block struct {
	header  types.BlockHeader
	body    types.BlockBody
	diff    *types.ThinStateDiff
	classes map[types.ClassHash]types.ContractClass
}

func appendBlock(t *testing.T, w *storage.Writer, n types.BlockNumber, b block) {
	t.Helper()
	txn, err := w.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendHeader(n, b.header))
	require.NoError(t, txn.AppendBody(n, b.body))
	require.NoError(t, txn.AppendStateDiff(n, b.diff))
	require.NoError(t, txn.AppendClasses(n, b.classes, nil))
	require.NoError(t, txn.Commit())
}

func makeBlock(n types.BlockNumber, hash types.BlockHash) block {
	return block{
		header: types.BlockHeader{
			BlockHash:       hash,
			ParentHash:      f(byte(n)),
			BlockNumber:     n,
			Timestamp:       1000 + uint64(n),
			StarknetVersion: "0.13.1",
		},
		diff: types.NewThinStateDiff(),
	}
}

func TestHeaderAppendAndLookup(t *testing.T) {
	reader, writer := open(t)

	h := types.BlockHeader{
		BlockHash:       f(0xAA),
		ParentHash:      f(0x00),
		BlockNumber:     0,
		Timestamp:       1000,
		StarknetVersion: "0.13.1",
	}
	txn, err := writer.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendHeader(0, h))
	require.NoError(t, txn.Commit())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	m, err := ro.Marker(types.MarkerHeader)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), m)

	got, ok, err := ro.GetBlockHeader(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h, got)

	n, ok, err := ro.GetBlockNumberByHash(f(0xAA))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.BlockNumber(0), n)
}

func TestDuplicateTransactionHashAcrossBlocks(t *testing.T) {
	_, writer := open(t)

	body := types.BlockBody{
		Transactions:       []types.Transaction{{Kind: types.TransactionKindInvokeV1, Hash: f(0x01)}},
		TransactionOutputs: []types.TransactionOutput{{}},
	}

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendBody(0, body))
	require.NoError(t, txn.Commit())

	txn, err = writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()
	err = txn.AppendBody(1, body)
	var dup *storage.ErrTransactionHashAlreadyExists
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, f(0x01), dup.Hash)
	assert.Equal(t, types.TxIndex{BlockNumber: 1, TxOffset: 0}, dup.TxIndex)
}

func TestStateAcrossTwoBlocks(t *testing.T) {
	reader, writer := open(t)

	c0, cl0, cl1, k0 := f(0xC0), f(0xA0), f(0xA1), f(0x10)

	b0 := makeBlock(0, f(0xAA))
	b0.diff.DeployedContracts[c0] = cl0
	b0.diff.StorageDiffs[c0] = []types.StorageDiffEntry{{Key: k0, Value: f(0x20)}}
	b0.diff.Nonces[c0] = f(0x01)
	appendBlock(t, writer, 0, b0)

	b1 := makeBlock(1, f(0xBB))
	b1.diff.StorageDiffs[c0] = []types.StorageDiffEntry{{Key: k0, Value: f(0x30)}}
	b1.diff.Nonces[c0] = f(0x02)
	b1.diff.ReplacedClasses[c0] = cl1
	appendBlock(t, writer, 1, b1)

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	sn := types.StateRightBefore(1)
	hash, err := ro.GetClassHashAt(sn, c0)
	require.NoError(t, err)
	assert.Equal(t, cl0, hash)
	nonce, err := ro.GetNonceAt(sn, c0)
	require.NoError(t, err)
	assert.Equal(t, f(0x01), nonce)
	val, err := ro.GetStorageAt(sn, c0, k0)
	require.NoError(t, err)
	assert.Equal(t, f(0x20), val)

	sn = types.StateRightBefore(2)
	hash, err = ro.GetClassHashAt(sn, c0)
	require.NoError(t, err)
	assert.Equal(t, cl1, hash)
	nonce, err = ro.GetNonceAt(sn, c0)
	require.NoError(t, err)
	assert.Equal(t, f(0x02), nonce)
	val, err = ro.GetStorageAt(sn, c0, k0)
	require.NoError(t, err)
	assert.Equal(t, f(0x30), val)
}

func TestRevertPreservesEarlierClass(t *testing.T) {
	reader, writer := open(t)

	cl0 := f(0xD0)
	class := types.ContractClass{
		SierraProgram: []types.Felt{f(0x01)},
		ABI:           []byte(`[]`),
		EntryPoints: map[types.EntryPointType][]types.EntryPoint{
			types.EntryPointTypeExternal: {{Selector: f(0x02), Offset: 0}},
		},
		Version: "0.1.0",
	}

	b0 := makeBlock(0, f(0xAA))
	b0.diff.DeclaredClasses = []types.DeclaredClassEntry{{ClassHash: cl0, CompiledClassHash: f(0xE0)}}
	b0.classes = map[types.ClassHash]types.ContractClass{cl0: class}
	appendBlock(t, writer, 0, b0)

	b1 := makeBlock(1, f(0xBB))
	appendBlock(t, writer, 1, b1)

	// Reorg at block 1: revert every subsystem tip-first (spec's
	// canonical recovery procedure).
	txn, err := writer.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.RevertCasm(1))
	require.NoError(t, txn.RevertClasses(1))
	_, err = txn.RevertStateDiff(1)
	require.NoError(t, err)
	_, err = txn.RevertBody(1)
	require.NoError(t, err)
	_, err = txn.RevertHeader(1)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	got, ok, err := ro.GetClass(cl0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, class, got)

	for _, kind := range []types.MarkerKind{types.MarkerHeader, types.MarkerBody, types.MarkerState, types.MarkerClass} {
		m, err := ro.Marker(kind)
		require.NoError(t, err)
		assert.Equal(t, types.BlockNumber(1), m, kind.String())
	}
}

func TestEventRangeScan(t *testing.T) {
	reader, writer := open(t)

	c1, c2 := f(0xC1), f(0xC2)
	ev := func(addr types.ContractAddress, key byte) types.Event {
		return types.Event{FromAddress: addr, Keys: []types.Felt{f(key)}}
	}

	b0 := makeBlock(0, f(0xAA))
	b0.body = types.BlockBody{
		Transactions: []types.Transaction{
			{Kind: types.TransactionKindInvokeV1, Hash: f(0x01)},
			{Kind: types.TransactionKindInvokeV1, Hash: f(0x02)},
		},
		TransactionOutputs: []types.TransactionOutput{
			{Events: []types.Event{ev(c1, 0x01), ev(c2, 0x02), ev(c1, 0x03)}},
			{Events: []types.Event{ev(c1, 0x04), ev(c1, 0x05)}},
		},
	}
	b0.header.NumTransactions = 2
	b0.header.NumEvents = 5
	appendBlock(t, writer, 0, b0)

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	from := types.EventIndex{TxIndex: types.TxIndex{BlockNumber: 0, TxOffset: 0}}
	it, err := ro.ScanEvents(c1, from, 0)
	require.NoError(t, err)
	defer it.Close()

	var got []types.EventIndex
	for {
		idx, event, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.Equal(t, c1, event.FromAddress)
		got = append(got, idx)
	}
	want := []types.EventIndex{
		{TxIndex: types.TxIndex{BlockNumber: 0, TxOffset: 0}, EventOffsetInTx: 0},
		{TxIndex: types.TxIndex{BlockNumber: 0, TxOffset: 0}, EventOffsetInTx: 2},
		{TxIndex: types.TxIndex{BlockNumber: 0, TxOffset: 1}, EventOffsetInTx: 0},
		{TxIndex: types.TxIndex{BlockNumber: 0, TxOffset: 1}, EventOffsetInTx: 1},
	}
	assert.Equal(t, want, got)
}

func TestSnapshotIsolation(t *testing.T) {
	reader, writer := open(t)

	b0 := makeBlock(0, f(0xAA))
	appendBlock(t, writer, 0, b0)

	// A reader that begins before the next commit must not see it.
	before, err := reader.BeginRO()
	require.NoError(t, err)
	defer before.Abort()

	b1 := makeBlock(1, f(0xBB))
	appendBlock(t, writer, 1, b1)

	after, err := reader.BeginRO()
	require.NoError(t, err)
	defer after.Abort()

	m, err := before.Marker(types.MarkerHeader)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), m)

	m, err = after.Marker(types.MarkerHeader)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(2), m)

	_, ok, err := before.GetBlockHeader(1)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = after.GetBlockHeader(1)
	require.NoError(t, err)
	assert.True(t, ok)
}
