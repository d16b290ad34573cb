package storage

import (
	"sort"

	"github.com/starkware-libs/papyrus-go/pkg/kv"
	"github.com/starkware-libs/papyrus-go/pkg/log"
	"github.com/starkware-libs/papyrus-go/pkg/metrics"
	"github.com/starkware-libs/papyrus-go/pkg/serialization"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

func decodeBlockNumberKey(b []byte) (types.BlockNumber, error) {
	return serialization.Decode(b, serialization.ReadBlockNumber)
}

func encodeFeltVal(f types.Felt) ([]byte, error) {
	return f[:], nil
}

func decodeFeltVal(b []byte) (types.Felt, error) {
	return serialization.Decode(b, serialization.ReadFelt)
}

var stateDiffLocationsTable = kv.NewTable(
	kv.TableStateDiffLocations,
	encodeBlockNumberKey,
	func(v types.FileLocation) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error { return serialization.WriteFileLocation(w, v) })
	},
	func(b []byte) (types.FileLocation, error) {
		return serialization.Decode(b, serialization.ReadFileLocation)
	},
)

// The three per-subject time-indexed tables. Their values are never
// compression-wrapped: values are tiny and the rows are what cursor
// lower-bound reads walk.
var deployedContractsTable = kv.NewCommonPrefixTable(
	kv.TableDeployedContracts,
	encodeFeltKey,
	encodeBlockNumberKey,
	decodeBlockNumberKey,
	encodeFeltVal,
	decodeFeltVal,
)

var noncesTable = kv.NewCommonPrefixTable(
	kv.TableNonces,
	encodeFeltKey,
	encodeBlockNumberKey,
	decodeBlockNumberKey,
	encodeFeltVal,
	decodeFeltVal,
)

// storageEntryKey is the (contract, storage slot) pair a contract_storage
// row is keyed by; both halves concatenate into the table's shared
// prefix.
type storageEntryKey struct {
	Contract types.ContractAddress
	Key      types.StorageKey
}

var contractStorageTable = kv.NewCommonPrefixTable(
	kv.TableContractStorage,
	func(k storageEntryKey) []byte {
		out := make([]byte, 0, 64)
		out = append(out, k.Contract[:]...)
		return append(out, k.Key[:]...)
	},
	encodeBlockNumberKey,
	decodeBlockNumberKey,
	encodeFeltVal,
	decodeFeltVal,
)

// declaredClassRow records a Cairo-1 class's declaration block and
// compiled-class hash, written by the state subsystem at diff-append time.
type declaredClassRow struct {
	Block             types.BlockNumber
	CompiledClassHash types.CompiledClassHash
}

var declaredClassesTable = kv.NewTable(
	kv.TableDeclaredClasses,
	encodeFeltKey,
	func(v declaredClassRow) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error {
			if err := serialization.WriteBlockNumber(w, v.Block); err != nil {
				return err
			}
			return serialization.WriteFelt(w, v.CompiledClassHash)
		})
	},
	func(b []byte) (declaredClassRow, error) {
		return serialization.Decode(b, func(r serialization.Reader) (declaredClassRow, error) {
			var row declaredClassRow
			var err error
			if row.Block, err = serialization.ReadBlockNumber(r); err != nil {
				return row, err
			}
			row.CompiledClassHash, err = serialization.ReadFelt(r)
			return row, err
		})
	},
)

// GetStateDiff reads back the thin state diff appended at block n.
func (t *readTxn) GetStateDiff(n types.BlockNumber) (types.ThinStateDiff, bool, error) {
	var diff types.ThinStateDiff
	loc, ok, err := stateDiffLocationsTable.Get(t.kv, n)
	if err != nil || !ok {
		return diff, false, err
	}
	diff, err = t.readStateDiffBlob(loc)
	if err != nil {
		return diff, false, err
	}
	return diff, true, nil
}

func (t *readTxn) readStateDiffBlob(loc types.FileLocation) (types.ThinStateDiff, error) {
	var diff types.ThinStateDiff
	wrapped, err := t.files.Read(types.FileKindThinStateDiff, loc)
	if err != nil {
		return diff, err
	}
	raw, err := serialization.CompressUnwrap(wrapped)
	if err != nil {
		return diff, err
	}
	return serialization.Decode(raw, serialization.ReadThinStateDiff)
}

// timeIndexedFelt answers "value of subject right before state number sn"
// against one of the per-subject tables: the row with the largest block
// number <= sn-1. Absent rows mean the zero felt.
func timeIndexedFelt[K0 any](t *readTxn, table kv.CommonPrefixTable[K0, types.BlockNumber, types.Felt], k0 K0, sn types.StateNumber, kind string) (types.Felt, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StateReadDuration, kind)

	if sn == 0 {
		return types.Felt{}, nil
	}
	target := encodeBlockNumberKey(types.BlockNumber(sn - 1))
	v, ok, err := table.SeekAsOf(t.kv, k0, target)
	if err != nil {
		return types.Felt{}, err
	}
	if !ok {
		return types.Felt{}, nil
	}
	return v, nil
}

// GetClassHashAt reads the class hash of the contract deployed at addr as
// of sn, or the zero hash if the contract does not exist yet.
func (t *readTxn) GetClassHashAt(sn types.StateNumber, addr types.ContractAddress) (types.ClassHash, error) {
	return timeIndexedFelt(t, deployedContractsTable, addr, sn, "class_hash")
}

// GetNonceAt reads addr's nonce as of sn, or the zero nonce.
func (t *readTxn) GetNonceAt(sn types.StateNumber, addr types.ContractAddress) (types.Nonce, error) {
	return timeIndexedFelt(t, noncesTable, addr, sn, "nonce")
}

// GetStorageAt reads the storage slot (addr, key) as of sn, or the zero
// felt.
func (t *readTxn) GetStorageAt(sn types.StateNumber, addr types.ContractAddress, key types.StorageKey) (types.Felt, error) {
	return timeIndexedFelt(t, contractStorageTable, storageEntryKey{Contract: addr, Key: key}, sn, "storage")
}

// GetClassDeclarationBlock reads the block at which a Cairo-1 class was
// declared.
func (t *readTxn) GetClassDeclarationBlock(hash types.ClassHash) (types.BlockNumber, bool, error) {
	row, ok, err := declaredClassesTable.Get(t.kv, hash)
	if err != nil || !ok {
		return 0, false, err
	}
	return row.Block, true, nil
}

// sortedAddresses orders a map's contract-address keys so writes land in
// a deterministic order.
func sortedAddresses[V any](m map[types.ContractAddress]V) []types.ContractAddress {
	addrs := make([]types.ContractAddress, 0, len(m))
	for addr := range m {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return compareFelt(addrs[i], addrs[j]) < 0 })
	return addrs
}

// AppendStateDiff validates and writes block n's thin state diff: the
// four per-subject tables, the blob in the thin_state_diff file, and its
// locator; it also fills the owning header's StateDiffLength when the
// header is present.
func (t *RwTxn) AppendStateDiff(n types.BlockNumber, diff *types.ThinStateDiff) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.AppendDuration, types.MarkerState.String())

	if err := checkMarker(t.inner, types.MarkerState, n); err != nil {
		return err
	}

	for _, addr := range sortedAddresses(diff.DeployedContracts) {
		existing, err := t.GetClassHashAt(types.StateRightAfter(n), addr)
		if err != nil {
			return err
		}
		if !existing.IsZero() {
			return &ErrContractAlreadyExists{Address: addr}
		}
	}
	for _, entry := range diff.DeclaredClasses {
		row, ok, err := declaredClassesTable.Get(t.kv, entry.ClassHash)
		if err != nil {
			return err
		}
		if ok && row.CompiledClassHash != entry.CompiledClassHash {
			return &ErrClassAlreadyExists{ClassHash: entry.ClassHash}
		}
	}
	for _, addr := range sortedAddresses(diff.Nonces) {
		if _, ok, err := noncesTable.GetExact(t.kv, addr, n); err != nil {
			return err
		} else if ok {
			return &ErrNonceReWrite{Address: addr, BlockNumber: n}
		}
	}

	for _, addr := range sortedAddresses(diff.DeployedContracts) {
		if err := deployedContractsTable.Upsert(t.inner, addr, n, diff.DeployedContracts[addr]); err != nil {
			return err
		}
	}
	for _, addr := range sortedAddresses(diff.ReplacedClasses) {
		if err := deployedContractsTable.Upsert(t.inner, addr, n, diff.ReplacedClasses[addr]); err != nil {
			return err
		}
	}
	for _, addr := range sortedAddresses(diff.StorageDiffs) {
		for _, entry := range diff.StorageDiffs[addr] {
			k := storageEntryKey{Contract: addr, Key: entry.Key}
			if err := contractStorageTable.Upsert(t.inner, k, n, entry.Value); err != nil {
				return err
			}
		}
	}
	for _, addr := range sortedAddresses(diff.Nonces) {
		if err := noncesTable.Upsert(t.inner, addr, n, diff.Nonces[addr]); err != nil {
			return err
		}
	}
	for _, entry := range diff.DeclaredClasses {
		if _, ok, err := declaredClassesTable.Get(t.kv, entry.ClassHash); err != nil {
			return err
		} else if !ok {
			row := declaredClassRow{Block: n, CompiledClassHash: entry.CompiledClassHash}
			if err := declaredClassesTable.Insert(t.inner, entry.ClassHash, row); err != nil {
				return err
			}
		}
	}

	raw, err := serialization.Encode(func(w serialization.Writer) error {
		return serialization.WriteThinStateDiff(w, *diff)
	})
	if err != nil {
		return &kv.ErrSerialization{Table: kv.TableStateDiffLocations, Err: err}
	}
	loc, err := t.files.Append(t.inner, types.FileKindThinStateDiff, serialization.CompressWrap(raw))
	if err != nil {
		return err
	}
	if err := stateDiffLocationsTable.Insert(t.inner, n, loc); err != nil {
		return err
	}

	if header, ok, err := headersTable.Get(t.kv, n); err != nil {
		return err
	} else if ok && header.StateDiffLength == nil {
		length := uint64(diff.Len())
		header.StateDiffLength = &length
		if err := headersTable.Upsert(t.inner, n, header); err != nil {
			return err
		}
	}

	return advanceMarker(t.inner, types.MarkerState, n)
}

// RevertStateDiff undoes AppendStateDiff(n): it re-reads the stored diff,
// removes exactly the rows it implies, and returns the diff for the
// caller to cascade. The blob bytes stay orphaned in the file.
func (t *RwTxn) RevertStateDiff(n types.BlockNumber) (*types.ThinStateDiff, error) {
	current, err := marker(t.kv, types.MarkerState)
	if err != nil {
		return nil, err
	}
	if current <= n {
		logger := log.WithBlockNumber(uint64(n))
		logger.Warn().Msg("storage: revert of unwritten state diff is a no-op")
		return nil, nil
	}
	if current != n.Next() {
		return nil, &ErrInvalidRevert{RevertBlockNumber: n, Marker: current}
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RevertDuration, types.MarkerState.String())

	diff, ok, err := t.GetStateDiff(n)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ErrInvalidRevert{RevertBlockNumber: n, Marker: current}
	}

	for _, addr := range sortedAddresses(diff.DeployedContracts) {
		if err := deployedContractsTable.Delete(t.inner, addr, n); err != nil {
			return nil, err
		}
	}
	for _, addr := range sortedAddresses(diff.ReplacedClasses) {
		if err := deployedContractsTable.Delete(t.inner, addr, n); err != nil {
			return nil, err
		}
	}
	for _, addr := range sortedAddresses(diff.StorageDiffs) {
		for _, entry := range diff.StorageDiffs[addr] {
			k := storageEntryKey{Contract: addr, Key: entry.Key}
			if err := contractStorageTable.Delete(t.inner, k, n); err != nil {
				return nil, err
			}
		}
	}
	for _, addr := range sortedAddresses(diff.Nonces) {
		if err := noncesTable.Delete(t.inner, addr, n); err != nil {
			return nil, err
		}
	}
	for _, entry := range diff.DeclaredClasses {
		row, ok, err := declaredClassesTable.Get(t.kv, entry.ClassHash)
		if err != nil {
			return nil, err
		}
		if ok && row.Block == n {
			if err := declaredClassesTable.Delete(t.inner, entry.ClassHash); err != nil {
				return nil, err
			}
		}
	}
	if err := stateDiffLocationsTable.Delete(t.inner, n); err != nil {
		return nil, err
	}

	if err := retreatMarker(t.inner, types.MarkerState, n); err != nil {
		return nil, err
	}
	metrics.RevertsTotal.WithLabelValues(types.MarkerState.String()).Inc()
	return &diff, nil
}
