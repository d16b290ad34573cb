package storage

import (
	"fmt"
	"sort"

	"github.com/starkware-libs/papyrus-go/pkg/kv"
	"github.com/starkware-libs/papyrus-go/pkg/log"
	"github.com/starkware-libs/papyrus-go/pkg/metrics"
	"github.com/starkware-libs/papyrus-go/pkg/serialization"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

func encodeTxOffsetKey(o types.TxOffset) []byte {
	b, _ := serialization.Encode(func(w serialization.Writer) error { return serialization.WriteTxOffset(w, o) })
	return b
}

func decodeTxOffsetKey(b []byte) (types.TxOffset, error) {
	return serialization.Decode(b, serialization.ReadTxOffset)
}

// Transaction and output rows are compression-wrapped: their values are
// looked up by exact key, never ordered-scanned by value, so the wrapper
// is safe here.
var transactionsTable = kv.NewCommonPrefixTable(
	kv.TableTransactions,
	encodeBlockNumberKey,
	encodeTxOffsetKey,
	decodeTxOffsetKey,
	func(v types.Transaction) ([]byte, error) {
		raw, err := serialization.Encode(func(w serialization.Writer) error { return serialization.WriteTransaction(w, v) })
		if err != nil {
			return nil, err
		}
		return serialization.CompressWrap(raw), nil
	},
	func(b []byte) (types.Transaction, error) {
		raw, err := serialization.CompressUnwrap(b)
		if err != nil {
			return types.Transaction{}, err
		}
		return serialization.Decode(raw, serialization.ReadTransaction)
	},
)

var transactionOutputsTable = kv.NewCommonPrefixTable(
	kv.TableTransactionOutputs,
	encodeBlockNumberKey,
	encodeTxOffsetKey,
	decodeTxOffsetKey,
	func(v types.TransactionOutput) ([]byte, error) {
		raw, err := serialization.Encode(func(w serialization.Writer) error { return serialization.WriteTransactionOutput(w, v) })
		if err != nil {
			return nil, err
		}
		return serialization.CompressWrap(raw), nil
	},
	func(b []byte) (types.TransactionOutput, error) {
		raw, err := serialization.CompressUnwrap(b)
		if err != nil {
			return types.TransactionOutput{}, err
		}
		return serialization.Decode(raw, serialization.ReadTransactionOutput)
	},
)

var transactionHashToIdxTable = kv.NewTable(
	kv.TableTransactionHashToIdx,
	encodeFeltKey,
	func(v types.TxIndex) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error { return serialization.WriteTxIndex(w, v) })
	},
	func(b []byte) (types.TxIndex, error) { return serialization.Decode(b, serialization.ReadTxIndex) },
)

func encodeTxIndexKey(idx types.TxIndex) []byte {
	b, _ := serialization.Encode(func(w serialization.Writer) error { return serialization.WriteTxIndex(w, idx) })
	return b
}

func decodeTxIndexKey(b []byte) (types.TxIndex, error) {
	return serialization.Decode(b, serialization.ReadTxIndex)
}

// Event-index rows aggregate everything one contract emitted in a tx
// output, so they are compression-wrapped like the transaction rows: the
// scan decodes whole rows by key, never by value order.
var eventsTable = kv.NewCommonPrefixTable(
	kv.TableEvents,
	encodeFeltKey,
	encodeTxIndexKey,
	decodeTxIndexKey,
	func(v []types.EventEntry) ([]byte, error) {
		raw, err := serialization.Encode(func(w serialization.Writer) error { return serialization.WriteEventEntries(w, v) })
		if err != nil {
			return nil, err
		}
		return serialization.CompressWrap(raw), nil
	},
	func(b []byte) ([]types.EventEntry, error) {
		raw, err := serialization.CompressUnwrap(b)
		if err != nil {
			return nil, err
		}
		return serialization.Decode(raw, serialization.ReadEventEntries)
	},
)

// GetTransaction reads the transaction at idx.
func (t *readTxn) GetTransaction(idx types.TxIndex) (types.Transaction, bool, error) {
	return transactionsTable.GetExact(t.kv, idx.BlockNumber, idx.TxOffset)
}

// GetTransactionOutput reads the output of the transaction at idx.
func (t *readTxn) GetTransactionOutput(idx types.TxIndex) (types.TransactionOutput, bool, error) {
	return transactionOutputsTable.GetExact(t.kv, idx.BlockNumber, idx.TxOffset)
}

// GetTransactionIdxByHash resolves a transaction hash to its chain
// position.
func (t *readTxn) GetTransactionIdxByHash(hash types.TransactionHash) (types.TxIndex, bool, error) {
	return transactionHashToIdxTable.Get(t.kv, hash)
}

// GetBlockBody reads back every transaction and output of block n, in
// offset order. ok is false when the body marker has not reached n.
func (t *readTxn) GetBlockBody(n types.BlockNumber) (types.BlockBody, bool, error) {
	var body types.BlockBody
	bodyMarker, err := marker(t.kv, types.MarkerBody)
	if err != nil {
		return body, false, err
	}
	if n >= bodyMarker {
		return body, false, nil
	}

	cur, err := t.kv.Cursor(kv.TableTransactions)
	if err != nil {
		return body, false, err
	}
	defer cur.Close()

	prefix := encodeBlockNumberKey(n)
	for key, val, ok, err := cur.SeekLowerBound(prefix); ; key, val, ok, err = cur.Next() {
		if err != nil {
			return body, false, err
		}
		if !ok || !hasKeyPrefix(key, prefix) {
			break
		}
		tx, err := transactionsTable.DecodeVal(val)
		if err != nil {
			return body, false, &kv.ErrDeserialization{Table: kv.TableTransactions, Err: err}
		}
		body.Transactions = append(body.Transactions, tx)
	}

	for i := range body.Transactions {
		out, ok, err := t.GetTransactionOutput(types.TxIndex{BlockNumber: n, TxOffset: types.TxOffset(i)})
		if err != nil {
			return body, false, err
		}
		if !ok {
			return body, false, fmt.Errorf("storage: transaction %d of block %d has no output", i, n)
		}
		body.TransactionOutputs = append(body.TransactionOutputs, out)
	}
	return body, true, nil
}

func hasKeyPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

// AppendBody writes block n's transactions, outputs, hash index, and
// per-contract event index, then advances the Body and Event markers.
// Under the StateOnly scope the per-block data is skipped and only the
// markers move.
func (t *RwTxn) AppendBody(n types.BlockNumber, body types.BlockBody) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.AppendDuration, types.MarkerBody.String())

	if err := checkMarker(t.inner, types.MarkerBody, n); err != nil {
		return err
	}
	if len(body.Transactions) != len(body.TransactionOutputs) {
		return fmt.Errorf("storage: block %d has %d transactions but %d outputs",
			n, len(body.Transactions), len(body.TransactionOutputs))
	}

	if t.scope == types.ScopeStateOnly {
		if err := advanceMarker(t.inner, types.MarkerBody, n); err != nil {
			return err
		}
		return advanceMarker(t.inner, types.MarkerEvent, n)
	}

	for i, tx := range body.Transactions {
		idx := types.TxIndex{BlockNumber: n, TxOffset: types.TxOffset(i)}
		if _, ok, err := transactionHashToIdxTable.Get(t.kv, tx.Hash); err != nil {
			return err
		} else if ok {
			return &ErrTransactionHashAlreadyExists{Hash: tx.Hash, TxIndex: idx}
		}
		if err := transactionsTable.Append(t.inner, n, idx.TxOffset, tx); err != nil {
			return err
		}
		if err := transactionOutputsTable.Append(t.inner, n, idx.TxOffset, body.TransactionOutputs[i]); err != nil {
			return err
		}
		if err := transactionHashToIdxTable.Insert(t.inner, tx.Hash, idx); err != nil {
			return err
		}
	}

	for i, out := range body.TransactionOutputs {
		idx := types.TxIndex{BlockNumber: n, TxOffset: types.TxOffset(i)}
		for _, addr := range eventAddresses(out.Events) {
			entries := bucketEvents(out.Events, addr)
			if err := eventsTable.Upsert(t.inner, addr, idx, entries); err != nil {
				return err
			}
		}
	}

	if err := advanceMarker(t.inner, types.MarkerBody, n); err != nil {
		return err
	}
	return advanceMarker(t.inner, types.MarkerEvent, n)
}

// eventAddresses returns the distinct emitting addresses of events, in a
// deterministic order.
func eventAddresses(events []types.Event) []types.ContractAddress {
	seen := make(map[types.ContractAddress]struct{})
	var addrs []types.ContractAddress
	for _, e := range events {
		if _, ok := seen[e.FromAddress]; !ok {
			seen[e.FromAddress] = struct{}{}
			addrs = append(addrs, e.FromAddress)
		}
	}
	sort.Slice(addrs, func(i, j int) bool {
		return compareFelt(addrs[i], addrs[j]) < 0
	})
	return addrs
}

// bucketEvents collects addr's events in emission order, tagged with
// their offset within the transaction's output.
func bucketEvents(events []types.Event, addr types.ContractAddress) []types.EventEntry {
	var entries []types.EventEntry
	for i, e := range events {
		if e.FromAddress == addr {
			entries = append(entries, types.EventEntry{OffsetInTx: uint64(i), Keys: e.Keys, Data: e.Data})
		}
	}
	return entries
}

func compareFelt(a, b types.Felt) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// RevertBody undoes AppendBody(n), removing the four per-block row sets,
// and returns the removed body. Same tip discipline as RevertHeader.
func (t *RwTxn) RevertBody(n types.BlockNumber) (*types.BlockBody, error) {
	current, err := marker(t.kv, types.MarkerBody)
	if err != nil {
		return nil, err
	}
	if current <= n {
		logger := log.WithBlockNumber(uint64(n))
		logger.Warn().Msg("storage: revert of unwritten body is a no-op")
		return nil, nil
	}
	if current != n.Next() {
		return nil, &ErrInvalidRevert{RevertBlockNumber: n, Marker: current}
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RevertDuration, types.MarkerBody.String())

	body, _, err := t.GetBlockBody(n)
	if err != nil {
		return nil, err
	}

	for i, tx := range body.Transactions {
		idx := types.TxIndex{BlockNumber: n, TxOffset: types.TxOffset(i)}
		if err := transactionsTable.Delete(t.inner, n, idx.TxOffset); err != nil {
			return nil, err
		}
		if err := transactionOutputsTable.Delete(t.inner, n, idx.TxOffset); err != nil {
			return nil, err
		}
		if err := transactionHashToIdxTable.Delete(t.inner, tx.Hash); err != nil {
			return nil, err
		}
	}
	for i, out := range body.TransactionOutputs {
		idx := types.TxIndex{BlockNumber: n, TxOffset: types.TxOffset(i)}
		for _, addr := range eventAddresses(out.Events) {
			if err := eventsTable.Delete(t.inner, addr, idx); err != nil {
				return nil, err
			}
		}
	}

	if err := retreatMarker(t.inner, types.MarkerBody, n); err != nil {
		return nil, err
	}
	if err := retreatMarker(t.inner, types.MarkerEvent, n); err != nil {
		return nil, err
	}
	metrics.RevertsTotal.WithLabelValues(types.MarkerBody.String()).Inc()
	return &body, nil
}
