package storage

import (
	"github.com/starkware-libs/papyrus-go/pkg/kv"
	"github.com/starkware-libs/papyrus-go/pkg/metrics"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

// EventIterator yields the events a single contract emitted, ordered by
// (BlockNumber, TxOffset, EventOffsetInTx). It holds a cursor inside the
// owning transaction; close it before ending the transaction.
type EventIterator struct {
	cur      *kv.Cursor
	contract types.ContractAddress
	toBlock  types.BlockNumber

	// fromIndex filters entries of the very first row so a scan can start
	// mid-transaction.
	fromIndex types.EventIndex

	row      []types.EventEntry
	rowIdx   types.TxIndex
	rowPos   int
	started  bool
	finished bool
}

// ScanEvents returns an iterator over the events contract emitted, from
// fromIndex (inclusive) through the end of toBlock.
func (t *readTxn) ScanEvents(contract types.ContractAddress, fromIndex types.EventIndex, toBlock types.BlockNumber) (*EventIterator, error) {
	cur, err := t.kv.Cursor(kv.TableEvents)
	if err != nil {
		return nil, err
	}
	metrics.EventScansTotal.Inc()
	return &EventIterator{
		cur:       cur,
		contract:  contract,
		toBlock:   toBlock,
		fromIndex: fromIndex,
	}, nil
}

// Close releases the iterator's cursor.
func (it *EventIterator) Close() {
	it.cur.Close()
}

// Next yields the next event and its index, or ok=false when the range is
// exhausted.
func (it *EventIterator) Next() (types.EventIndex, types.Event, bool, error) {
	for {
		if it.finished {
			return types.EventIndex{}, types.Event{}, false, nil
		}
		if it.rowPos < len(it.row) {
			entry := it.row[it.rowPos]
			it.rowPos++
			idx := types.EventIndex{TxIndex: it.rowIdx, EventOffsetInTx: entry.OffsetInTx}
			ev := types.Event{FromAddress: it.contract, Keys: entry.Keys, Data: entry.Data}
			return idx, ev, true, nil
		}
		if err := it.advanceRow(); err != nil {
			return types.EventIndex{}, types.Event{}, false, err
		}
	}
}

// advanceRow loads the next (contract, tx_index) row in key order,
// filtering the first row's entries against fromIndex and stopping at the
// contract boundary or past toBlock.
func (it *EventIterator) advanceRow() error {
	var key, val []byte
	var ok bool
	var err error
	first := !it.started
	if first {
		it.started = true
		seek := append(append([]byte{}, it.contract[:]...), encodeTxIndexKey(it.fromIndex.TxIndex)...)
		key, val, ok, err = it.cur.SeekLowerBound(seek)
	} else {
		key, val, ok, err = it.cur.Next()
	}
	if err != nil {
		return err
	}
	if !ok || !hasKeyPrefix(key, it.contract[:]) {
		it.finished = true
		return nil
	}

	idx, err := decodeTxIndexKey(key[len(it.contract):])
	if err != nil {
		return &kv.ErrDeserialization{Table: kv.TableEvents, Err: err}
	}
	if idx.BlockNumber > it.toBlock {
		it.finished = true
		return nil
	}

	entries, err := eventsTable.DecodeVal(val)
	if err != nil {
		return &kv.ErrDeserialization{Table: kv.TableEvents, Err: err}
	}
	if first && idx == it.fromIndex.TxIndex {
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.OffsetInTx >= it.fromIndex.EventOffsetInTx {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	it.row = entries
	it.rowIdx = idx
	it.rowPos = 0
	return nil
}
