package storage

import (
	"github.com/starkware-libs/papyrus-go/pkg/kv"
	"github.com/starkware-libs/papyrus-go/pkg/metrics"
	"github.com/starkware-libs/papyrus-go/pkg/serialization"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

var markersTable = kv.NewTable(
	kv.TableMarkers,
	func(k types.MarkerKind) []byte { return []byte{byte(k)} },
	func(v types.BlockNumber) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error { return serialization.WriteBlockNumber(w, v) })
	},
	func(b []byte) (types.BlockNumber, error) {
		return serialization.Decode(b, serialization.ReadBlockNumber)
	},
)

// marker reads the current block-number highwater mark for kind; absent
// means 0 (nothing appended yet).
func marker(txn interface {
	Get(string, []byte) ([]byte, bool, error)
}, kind types.MarkerKind) (types.BlockNumber, error) {
	n, ok, err := markersTable.Get(txn, kind)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return n, nil
}

// checkMarker fails with ErrMarkerMismatch unless block == the current
// marker for kind.
func checkMarker(txn *kv.RwTxn, kind types.MarkerKind, block types.BlockNumber) error {
	current, err := marker(txn, kind)
	if err != nil {
		return err
	}
	if current != block {
		return &ErrMarkerMismatch{Subsystem: kind, Expected: current, Found: block}
	}
	return nil
}

// advanceMarker sets kind's marker to block+1, the postcondition of a
// successful append.
func advanceMarker(txn *kv.RwTxn, kind types.MarkerKind, block types.BlockNumber) error {
	if err := markersTable.Upsert(txn, kind, block.Next()); err != nil {
		return err
	}
	metrics.MarkerBlockNumber.WithLabelValues(kind.String()).Set(float64(block.Next()))
	return nil
}

// checkRevertTip fails with ErrInvalidRevert unless block+1 == the
// current marker for kind, i.e. block is the subsystem's tip.
func checkRevertTip(txn *kv.RwTxn, kind types.MarkerKind, block types.BlockNumber) error {
	current, err := marker(txn, kind)
	if err != nil {
		return err
	}
	if block.Next() != current {
		return &ErrInvalidRevert{RevertBlockNumber: block, Marker: current}
	}
	return nil
}

// retreatMarker sets kind's marker back to block, the postcondition of a
// successful revert of block.
func retreatMarker(txn *kv.RwTxn, kind types.MarkerKind, block types.BlockNumber) error {
	if err := markersTable.Upsert(txn, kind, block); err != nil {
		return err
	}
	metrics.MarkerBlockNumber.WithLabelValues(kind.String()).Set(float64(block))
	return nil
}
