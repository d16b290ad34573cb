package storage

import (
	"github.com/starkware-libs/papyrus-go/pkg/kv"
	"github.com/starkware-libs/papyrus-go/pkg/log"
	"github.com/starkware-libs/papyrus-go/pkg/metrics"
	"github.com/starkware-libs/papyrus-go/pkg/serialization"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

func encodeBlockNumberKey(n types.BlockNumber) []byte {
	b, _ := serialization.Encode(func(w serialization.Writer) error { return serialization.WriteBlockNumber(w, n) })
	return b
}

func encodeFeltKey(f types.Felt) []byte {
	return f[:]
}

var headersTable = kv.NewTable(
	kv.TableHeaders,
	encodeBlockNumberKey,
	func(v types.BlockHeader) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error { return serialization.WriteBlockHeader(w, v) })
	},
	func(b []byte) (types.BlockHeader, error) {
		return serialization.Decode(b, serialization.ReadBlockHeader)
	},
)

var blockHashToNumberTable = kv.NewTable(
	kv.TableBlockHashToNumber,
	encodeFeltKey,
	func(v types.BlockNumber) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error { return serialization.WriteBlockNumber(w, v) })
	},
	func(b []byte) (types.BlockNumber, error) {
		return serialization.Decode(b, serialization.ReadBlockNumber)
	},
)

var blockSignaturesTable = kv.NewTable(
	kv.TableBlockSignatures,
	encodeBlockNumberKey,
	func(v types.BlockSignature) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error { return serialization.WriteBlockSignature(w, v) })
	},
	func(b []byte) (types.BlockSignature, error) {
		return serialization.Decode(b, serialization.ReadBlockSignature)
	},
)

var starknetVersionTable = kv.NewTable(
	kv.TableStarknetVersion,
	encodeBlockNumberKey,
	func(v string) ([]byte, error) { return []byte(v), nil },
	func(b []byte) (string, error) { return string(b), nil },
)

// GetBlockHeader reads the header at n.
func (t *readTxn) GetBlockHeader(n types.BlockNumber) (types.BlockHeader, bool, error) {
	return headersTable.Get(t.kv, n)
}

// GetBlockNumberByHash reads the canonical block number for hash.
func (t *readTxn) GetBlockNumberByHash(hash types.BlockHash) (types.BlockNumber, bool, error) {
	return blockHashToNumberTable.Get(t.kv, hash)
}

// GetBlockSignature reads the sequencer signature attached to block n.
func (t *readTxn) GetBlockSignature(n types.BlockNumber) (types.BlockSignature, bool, error) {
	return blockSignaturesTable.Get(t.kv, n)
}

// StarknetVersionAt reads the Starknet version in effect at block n. The
// table is sparse: rows exist only where the version changed, so the read
// walks back to the closest row at or below n.
func (t *readTxn) StarknetVersionAt(n types.BlockNumber) (string, bool, error) {
	cur, err := t.kv.Cursor(kv.TableStarknetVersion)
	if err != nil {
		return "", false, err
	}
	defer cur.Close()

	target := encodeBlockNumberKey(n)
	foundKey, foundVal, ok, err := cur.SeekLowerBound(target)
	if err != nil {
		return "", false, err
	}
	if ok && bytesEqual(foundKey, target) {
		return string(foundVal), true, nil
	}
	// Landed past n (or past the end): the previous row is the version in
	// effect, if any exists.
	var val []byte
	if ok {
		_, val, ok, err = cur.Prev()
	} else {
		_, val, ok, err = cur.Last()
	}
	if err != nil || !ok {
		return "", false, err
	}
	return string(val), true, nil
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

// AppendHeader writes the header at n: the header row, the reverse
// hash->number row, and a starknet_version row when the version changed
// relative to the previous block.
func (t *RwTxn) AppendHeader(n types.BlockNumber, header types.BlockHeader) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.AppendDuration, types.MarkerHeader.String())

	if err := checkMarker(t.inner, types.MarkerHeader, n); err != nil {
		return err
	}
	if _, exists, err := blockHashToNumberTable.Get(t.kv, header.BlockHash); err != nil {
		return err
	} else if exists {
		return &ErrBlockHashAlreadyExists{Hash: header.BlockHash}
	}

	if err := headersTable.Insert(t.inner, n, header); err != nil {
		return err
	}
	if err := blockHashToNumberTable.Insert(t.inner, header.BlockHash, n); err != nil {
		return err
	}

	prevVersion, hasPrev, err := t.StarknetVersionAt(n)
	if err != nil {
		return err
	}
	if !hasPrev || prevVersion != header.StarknetVersion {
		if err := starknetVersionTable.Upsert(t.inner, n, header.StarknetVersion); err != nil {
			return err
		}
	}
	return advanceMarker(t.inner, types.MarkerHeader, n)
}

// AppendSignature attaches the block's single sequencer signature. The
// header must already be stored at n.
func (t *RwTxn) AppendSignature(n types.BlockNumber, sig types.BlockSignature) error {
	if _, ok, err := headersTable.Get(t.kv, n); err != nil {
		return err
	} else if !ok {
		return ErrHeaderNotFound
	}
	return blockSignaturesTable.Upsert(t.inner, n, sig)
}

// RevertHeader undoes AppendHeader(n) and returns the removed header so
// the caller can cascade. A revert at or above the marker is a logged
// no-op; a revert below the tip fails.
func (t *RwTxn) RevertHeader(n types.BlockNumber) (*types.BlockHeader, error) {
	current, err := marker(t.kv, types.MarkerHeader)
	if err != nil {
		return nil, err
	}
	if current <= n {
		logger := log.WithBlockNumber(uint64(n))
		logger.Warn().Msg("storage: revert of unwritten header is a no-op")
		return nil, nil
	}
	if current != n.Next() {
		return nil, &ErrInvalidRevert{RevertBlockNumber: n, Marker: current}
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RevertDuration, types.MarkerHeader.String())

	header, ok, err := headersTable.Get(t.kv, n)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeaderNotFound
	}

	if err := headersTable.Delete(t.inner, n); err != nil {
		return nil, err
	}
	if err := blockHashToNumberTable.Delete(t.inner, header.BlockHash); err != nil {
		return nil, err
	}
	if err := blockSignaturesTable.Delete(t.inner, n); err != nil {
		return nil, err
	}
	if err := starknetVersionTable.Delete(t.inner, n); err != nil {
		return nil, err
	}
	if err := retreatMarker(t.inner, types.MarkerHeader, n); err != nil {
		return nil, err
	}
	metrics.RevertsTotal.WithLabelValues(types.MarkerHeader.String()).Inc()
	return &header, nil
}
