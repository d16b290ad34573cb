package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/papyrus-go/pkg/types"
)

// openTest brings up a fresh storage directory for one test.
func openTest(t *testing.T) (*Reader, *Writer) {
	t.Helper()
	reader, writer, err := Open(Config{
		PathPrefix: t.TempDir(),
		ChainID:    "SN_TEST",
		MinSize:    1 << 20,
		MaxSize:    1 << 30,
		GrowthStep: 1 << 22,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close() })
	return reader, writer
}

// felt builds a field element whose low byte is b.
func felt(b byte) types.Felt {
	var f types.Felt
	f[31] = b
	return f
}

func testHeader(n types.BlockNumber, hash types.BlockHash) types.BlockHeader {
	return types.BlockHeader{
		BlockHash:        hash,
		ParentHash:       felt(byte(n)),
		BlockNumber:      n,
		SequencerAddress: felt(0x05),
		Timestamp:        1000 + uint64(n),
		StarknetVersion:  "0.13.1",
	}
}

// appendTestHeader commits a header at n in its own transaction.
func appendTestHeader(t *testing.T, w *Writer, n types.BlockNumber, hash types.BlockHash) {
	t.Helper()
	txn, err := w.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendHeader(n, testHeader(n, hash)))
	require.NoError(t, txn.Commit())
}

// appendTestDiff commits a state diff at n in its own transaction.
func appendTestDiff(t *testing.T, w *Writer, n types.BlockNumber, diff *types.ThinStateDiff) {
	t.Helper()
	txn, err := w.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendStateDiff(n, diff))
	require.NoError(t, txn.Commit())
}
