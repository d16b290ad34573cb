package serialization

import (
	"bytes"
	"sort"

	"github.com/starkware-libs/papyrus-go/pkg/types"
)

// Every Write/Read pair below is the canonical codec for one stored type.
// Enum variants are tagged by a single byte matching their definition
// order; an unknown tag decodes to ErrMalformed rather than
// panicking, since on-disk data is never trusted.

const (
	maxCollectionLen  = 1 << 24
	maxEntryPointKind = 2
)

// WriteBlockNumber / ReadBlockNumber encode types.BlockNumber big-endian
// so cursor lower-bound semantics over keys built from it stay correct.
func WriteBlockNumber(w Writer, n types.BlockNumber) error {
	return WriteUint64(w, uint64(n))
}

func ReadBlockNumber(r Reader) (types.BlockNumber, error) {
	v, err := ReadUint64(r)
	return types.BlockNumber(v), err
}

func WriteTxOffset(w Writer, o types.TxOffset) error {
	return WriteUint64(w, uint64(o))
}

func ReadTxOffset(r Reader) (types.TxOffset, error) {
	v, err := ReadUint64(r)
	return types.TxOffset(v), err
}

func WriteTxIndex(w Writer, idx types.TxIndex) error {
	if err := WriteBlockNumber(w, idx.BlockNumber); err != nil {
		return err
	}
	return WriteTxOffset(w, idx.TxOffset)
}

func ReadTxIndex(r Reader) (types.TxIndex, error) {
	var idx types.TxIndex
	bn, err := ReadBlockNumber(r)
	if err != nil {
		return idx, err
	}
	off, err := ReadTxOffset(r)
	if err != nil {
		return idx, err
	}
	idx.BlockNumber, idx.TxOffset = bn, off
	return idx, nil
}

func WriteEventIndex(w Writer, idx types.EventIndex) error {
	if err := WriteTxIndex(w, idx.TxIndex); err != nil {
		return err
	}
	return WriteUint64(w, idx.EventOffsetInTx)
}

func ReadEventIndex(r Reader) (types.EventIndex, error) {
	var idx types.EventIndex
	ti, err := ReadTxIndex(r)
	if err != nil {
		return idx, err
	}
	off, err := ReadUint64(r)
	if err != nil {
		return idx, err
	}
	idx.TxIndex, idx.EventOffsetInTx = ti, off
	return idx, nil
}

func WriteResourcePrice(w Writer, p types.ResourcePrice) error {
	if err := WriteFelt(w, p.PriceInWei); err != nil {
		return err
	}
	return WriteFelt(w, p.PriceInFri)
}

func ReadResourcePrice(r Reader) (types.ResourcePrice, error) {
	var p types.ResourcePrice
	wei, err := ReadFelt(r)
	if err != nil {
		return p, err
	}
	fri, err := ReadFelt(r)
	if err != nil {
		return p, err
	}
	p.PriceInWei, p.PriceInFri = wei, fri
	return p, nil
}

// WriteBlockHeader / ReadBlockHeader encode a types.BlockHeader.
func WriteBlockHeader(w Writer, h types.BlockHeader) error {
	if err := WriteFelt(w, h.BlockHash); err != nil {
		return err
	}
	if err := WriteFelt(w, h.ParentHash); err != nil {
		return err
	}
	if err := WriteBlockNumber(w, h.BlockNumber); err != nil {
		return err
	}
	if err := WriteFelt(w, h.SequencerAddress); err != nil {
		return err
	}
	if err := WriteUint64(w, h.Timestamp); err != nil {
		return err
	}
	if err := WriteResourcePrice(w, h.L1GasPrice); err != nil {
		return err
	}
	if err := WriteResourcePrice(w, h.L1DataGasPrice); err != nil {
		return err
	}
	if err := WriteFelt(w, h.StateRoot); err != nil {
		return err
	}
	if err := WriteOption(w, h.TransactionCommitment, WriteFelt); err != nil {
		return err
	}
	if err := WriteOption(w, h.EventCommitment, WriteFelt); err != nil {
		return err
	}
	if err := WriteUint64(w, h.NumTransactions); err != nil {
		return err
	}
	if err := WriteUint64(w, h.NumEvents); err != nil {
		return err
	}
	if err := WriteOption(w, h.StateDiffLength, WriteUint64); err != nil {
		return err
	}
	if err := WriteString(w, h.StarknetVersion); err != nil {
		return err
	}
	return WriteUint8(w, uint8(h.L1DAMode))
}

func ReadBlockHeader(r Reader) (types.BlockHeader, error) {
	var h types.BlockHeader
	var err error
	if h.BlockHash, err = ReadFelt(r); err != nil {
		return h, err
	}
	if h.ParentHash, err = ReadFelt(r); err != nil {
		return h, err
	}
	if h.BlockNumber, err = ReadBlockNumber(r); err != nil {
		return h, err
	}
	if h.SequencerAddress, err = ReadFelt(r); err != nil {
		return h, err
	}
	if h.Timestamp, err = ReadUint64(r); err != nil {
		return h, err
	}
	if h.L1GasPrice, err = ReadResourcePrice(r); err != nil {
		return h, err
	}
	if h.L1DataGasPrice, err = ReadResourcePrice(r); err != nil {
		return h, err
	}
	if h.StateRoot, err = ReadFelt(r); err != nil {
		return h, err
	}
	if h.TransactionCommitment, err = ReadOption(r, ReadFelt); err != nil {
		return h, err
	}
	if h.EventCommitment, err = ReadOption(r, ReadFelt); err != nil {
		return h, err
	}
	if h.NumTransactions, err = ReadUint64(r); err != nil {
		return h, err
	}
	if h.NumEvents, err = ReadUint64(r); err != nil {
		return h, err
	}
	if h.StateDiffLength, err = ReadOption(r, ReadUint64); err != nil {
		return h, err
	}
	if h.StarknetVersion, err = ReadString(r); err != nil {
		return h, err
	}
	mode, err := ReadUint8(r)
	if err != nil {
		return h, err
	}
	if mode > 1 {
		return h, ErrMalformed
	}
	h.L1DAMode = types.DataAvailabilityMode(mode)
	return h, nil
}

func WriteBlockSignature(w Writer, s types.BlockSignature) error {
	if err := WriteFelt(w, s.R); err != nil {
		return err
	}
	return WriteFelt(w, s.S)
}

func ReadBlockSignature(r Reader) (types.BlockSignature, error) {
	var s types.BlockSignature
	var err error
	if s.R, err = ReadFelt(r); err != nil {
		return s, err
	}
	s.S, err = ReadFelt(r)
	return s, err
}

func WriteFeltSlice(w Writer, items []types.Felt) error {
	return WriteSlice(w, items, WriteFelt)
}

func ReadFeltSlice(r Reader) ([]types.Felt, error) {
	return ReadSlice(r, maxCollectionLen, ReadFelt)
}

func WriteResourceBounds(w Writer, b types.ResourceBounds) error {
	if err := WriteUint64(w, b.MaxAmount); err != nil {
		return err
	}
	return WriteFelt(w, b.MaxPricePerUnit)
}

func ReadResourceBounds(r Reader) (types.ResourceBounds, error) {
	var b types.ResourceBounds
	var err error
	if b.MaxAmount, err = ReadUint64(r); err != nil {
		return b, err
	}
	b.MaxPricePerUnit, err = ReadFelt(r)
	return b, err
}

// WriteTransaction / ReadTransaction encode a types.Transaction: a tag
// byte (matching TransactionKind's definition order) followed by the
// fields relevant to that variant.
func WriteTransaction(w Writer, tx types.Transaction) error {
	if err := WriteUint8(w, uint8(tx.Kind)); err != nil {
		return err
	}
	if err := WriteFelt(w, tx.Hash); err != nil {
		return err
	}
	if err := WriteFelt(w, tx.SenderAddress); err != nil {
		return err
	}
	if err := WriteFelt(w, tx.MaxFee); err != nil {
		return err
	}
	if err := WriteFeltSlice(w, tx.Signature); err != nil {
		return err
	}
	if err := WriteFelt(w, tx.Nonce); err != nil {
		return err
	}
	if err := WriteFeltSlice(w, tx.CalldataOrCalls); err != nil {
		return err
	}
	if err := WriteFelt(w, tx.ClassHash); err != nil {
		return err
	}
	if err := WriteFelt(w, tx.CompiledClassHash); err != nil {
		return err
	}
	if err := WriteFelt(w, tx.ContractAddressSalt); err != nil {
		return err
	}
	if err := WriteFeltSlice(w, tx.ConstructorCalldata); err != nil {
		return err
	}
	if err := WriteResourceBounds(w, tx.ResourceBoundsL1Gas); err != nil {
		return err
	}
	if err := WriteResourceBounds(w, tx.ResourceBoundsL2Gas); err != nil {
		return err
	}
	if err := WriteUint64(w, tx.Tip); err != nil {
		return err
	}
	if err := WriteFeltSlice(w, tx.PaymasterData); err != nil {
		return err
	}
	if err := WriteFeltSlice(w, tx.AccountDeploymentData); err != nil {
		return err
	}
	if err := WriteUint8(w, uint8(tx.NonceDataAvailability)); err != nil {
		return err
	}
	if err := WriteUint8(w, uint8(tx.FeeDataAvailability)); err != nil {
		return err
	}
	if err := WriteUint64(w, tx.Version); err != nil {
		return err
	}
	if err := WriteFelt(w, tx.ContractAddressL1); err != nil {
		return err
	}
	return WriteFelt(w, tx.EntryPointSelector)
}

func ReadTransaction(r Reader) (types.Transaction, error) {
	var tx types.Transaction
	kind, err := ReadUint8(r)
	if err != nil {
		return tx, err
	}
	if kind > uint8(types.TransactionKindL1Handler) {
		return tx, ErrMalformed
	}
	tx.Kind = types.TransactionKind(kind)
	if tx.Hash, err = ReadFelt(r); err != nil {
		return tx, err
	}
	if tx.SenderAddress, err = ReadFelt(r); err != nil {
		return tx, err
	}
	if tx.MaxFee, err = ReadFelt(r); err != nil {
		return tx, err
	}
	if tx.Signature, err = ReadFeltSlice(r); err != nil {
		return tx, err
	}
	if tx.Nonce, err = ReadFelt(r); err != nil {
		return tx, err
	}
	if tx.CalldataOrCalls, err = ReadFeltSlice(r); err != nil {
		return tx, err
	}
	if tx.ClassHash, err = ReadFelt(r); err != nil {
		return tx, err
	}
	if tx.CompiledClassHash, err = ReadFelt(r); err != nil {
		return tx, err
	}
	if tx.ContractAddressSalt, err = ReadFelt(r); err != nil {
		return tx, err
	}
	if tx.ConstructorCalldata, err = ReadFeltSlice(r); err != nil {
		return tx, err
	}
	if tx.ResourceBoundsL1Gas, err = ReadResourceBounds(r); err != nil {
		return tx, err
	}
	if tx.ResourceBoundsL2Gas, err = ReadResourceBounds(r); err != nil {
		return tx, err
	}
	if tx.Tip, err = ReadUint64(r); err != nil {
		return tx, err
	}
	if tx.PaymasterData, err = ReadFeltSlice(r); err != nil {
		return tx, err
	}
	if tx.AccountDeploymentData, err = ReadFeltSlice(r); err != nil {
		return tx, err
	}
	nda, err := ReadUint8(r)
	if err != nil {
		return tx, err
	}
	if nda > 1 {
		return tx, ErrMalformed
	}
	tx.NonceDataAvailability = types.DataAvailabilityMode(nda)
	fda, err := ReadUint8(r)
	if err != nil {
		return tx, err
	}
	if fda > 1 {
		return tx, ErrMalformed
	}
	tx.FeeDataAvailability = types.DataAvailabilityMode(fda)
	if tx.Version, err = ReadUint64(r); err != nil {
		return tx, err
	}
	if tx.ContractAddressL1, err = ReadFelt(r); err != nil {
		return tx, err
	}
	tx.EntryPointSelector, err = ReadFelt(r)
	return tx, err
}

func WriteL2ToL1Message(w Writer, m types.L2ToL1Message) error {
	if err := WriteFelt(w, m.FromAddress); err != nil {
		return err
	}
	if err := WriteFelt(w, m.ToAddress); err != nil {
		return err
	}
	return WriteFeltSlice(w, m.Payload)
}

func ReadL2ToL1Message(r Reader) (types.L2ToL1Message, error) {
	var m types.L2ToL1Message
	var err error
	if m.FromAddress, err = ReadFelt(r); err != nil {
		return m, err
	}
	if m.ToAddress, err = ReadFelt(r); err != nil {
		return m, err
	}
	m.Payload, err = ReadFeltSlice(r)
	return m, err
}

func WriteEvent(w Writer, e types.Event) error {
	if err := WriteFelt(w, e.FromAddress); err != nil {
		return err
	}
	if err := WriteFeltSlice(w, e.Keys); err != nil {
		return err
	}
	return WriteFeltSlice(w, e.Data)
}

func ReadEvent(r Reader) (types.Event, error) {
	var e types.Event
	var err error
	if e.FromAddress, err = ReadFelt(r); err != nil {
		return e, err
	}
	if e.Keys, err = ReadFeltSlice(r); err != nil {
		return e, err
	}
	e.Data, err = ReadFeltSlice(r)
	return e, err
}

// WriteEventEntry / ReadEventEntry encode one row-element of the
// per-contract event index: the event's offset within its transaction's
// output plus its keys and data. The emitting address lives in the row
// key, not here.
func WriteEventEntry(w Writer, e types.EventEntry) error {
	if err := WriteUint64(w, e.OffsetInTx); err != nil {
		return err
	}
	if err := WriteFeltSlice(w, e.Keys); err != nil {
		return err
	}
	return WriteFeltSlice(w, e.Data)
}

func ReadEventEntry(r Reader) (types.EventEntry, error) {
	var e types.EventEntry
	var err error
	if e.OffsetInTx, err = ReadUint64(r); err != nil {
		return e, err
	}
	if e.Keys, err = ReadFeltSlice(r); err != nil {
		return e, err
	}
	e.Data, err = ReadFeltSlice(r)
	return e, err
}

// WriteEventEntries / ReadEventEntries encode a full event-index row.
func WriteEventEntries(w Writer, entries []types.EventEntry) error {
	return WriteSlice(w, entries, WriteEventEntry)
}

func ReadEventEntries(r Reader) ([]types.EventEntry, error) {
	return ReadSlice(r, maxCollectionLen, ReadEventEntry)
}

func WriteL1ToL2Message(w Writer, m types.L1ToL2Message) error {
	if err := WriteFelt(w, m.FromAddress); err != nil {
		return err
	}
	if err := WriteFeltSlice(w, m.Payload); err != nil {
		return err
	}
	return WriteFelt(w, m.Nonce)
}

func ReadL1ToL2Message(r Reader) (types.L1ToL2Message, error) {
	var m types.L1ToL2Message
	var err error
	if m.FromAddress, err = ReadFelt(r); err != nil {
		return m, err
	}
	if m.Payload, err = ReadFeltSlice(r); err != nil {
		return m, err
	}
	m.Nonce, err = ReadFelt(r)
	return m, err
}

func WriteExecutionResources(w Writer, res types.ExecutionResources) error {
	fields := []uint64{
		res.Steps, res.MemoryHoles, res.RangeCheckBuiltin, res.PedersenBuiltin,
		res.PoseidonBuiltin, res.EcOpBuiltin, res.EcdsaBuiltin, res.BitwiseBuiltin,
		res.KeccakBuiltin, res.SegmentArenaBuiltin,
	}
	for _, f := range fields {
		if err := WriteUint64(w, f); err != nil {
			return err
		}
	}
	return nil
}

func ReadExecutionResources(r Reader) (types.ExecutionResources, error) {
	var res types.ExecutionResources
	targets := []*uint64{
		&res.Steps, &res.MemoryHoles, &res.RangeCheckBuiltin, &res.PedersenBuiltin,
		&res.PoseidonBuiltin, &res.EcOpBuiltin, &res.EcdsaBuiltin, &res.BitwiseBuiltin,
		&res.KeccakBuiltin, &res.SegmentArenaBuiltin,
	}
	for _, t := range targets {
		v, err := ReadUint64(r)
		if err != nil {
			return res, err
		}
		*t = v
	}
	return res, nil
}

// WriteTransactionOutput / ReadTransactionOutput encode a
// types.TransactionOutput.
func WriteTransactionOutput(w Writer, out types.TransactionOutput) error {
	if err := WriteUint8(w, uint8(out.Status)); err != nil {
		return err
	}
	if err := WriteString(w, out.RevertReason); err != nil {
		return err
	}
	if err := WriteFelt(w, out.ActualFee); err != nil {
		return err
	}
	if err := WriteSlice(w, out.MessagesToL1, WriteL2ToL1Message); err != nil {
		return err
	}
	if err := WriteSlice(w, out.Events, WriteEvent); err != nil {
		return err
	}
	if err := WriteOption(w, out.ConsumedMessage, WriteL1ToL2Message); err != nil {
		return err
	}
	return WriteExecutionResources(w, out.Resources)
}

func ReadTransactionOutput(r Reader) (types.TransactionOutput, error) {
	var out types.TransactionOutput
	status, err := ReadUint8(r)
	if err != nil {
		return out, err
	}
	if status > uint8(types.ExecutionStatusReverted) {
		return out, ErrMalformed
	}
	out.Status = types.ExecutionStatus(status)
	if out.RevertReason, err = ReadString(r); err != nil {
		return out, err
	}
	if out.ActualFee, err = ReadFelt(r); err != nil {
		return out, err
	}
	if out.MessagesToL1, err = ReadSlice(r, maxCollectionLen, ReadL2ToL1Message); err != nil {
		return out, err
	}
	if out.Events, err = ReadSlice(r, maxCollectionLen, ReadEvent); err != nil {
		return out, err
	}
	if out.ConsumedMessage, err = ReadOption(r, ReadL1ToL2Message); err != nil {
		return out, err
	}
	out.Resources, err = ReadExecutionResources(r)
	return out, err
}

func writeContractAddressClassHashMap(w Writer, m map[types.ContractAddress]types.ClassHash) error {
	if err := WriteLen(w, len(m)); err != nil {
		return err
	}
	addrs := make([]types.ContractAddress, 0, len(m))
	for addr := range m {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
	for _, addr := range addrs {
		hash := m[addr]
		if err := WriteFelt(w, addr); err != nil {
			return err
		}
		if err := WriteFelt(w, hash); err != nil {
			return err
		}
	}
	return nil
}

func readContractAddressClassHashMap(r Reader) (map[types.ContractAddress]types.ClassHash, error) {
	n, err := ReadLen(r, maxCollectionLen)
	if err != nil {
		return nil, err
	}
	m := make(map[types.ContractAddress]types.ClassHash, n)
	for i := 0; i < n; i++ {
		addr, err := ReadFelt(r)
		if err != nil {
			return nil, err
		}
		hash, err := ReadFelt(r)
		if err != nil {
			return nil, err
		}
		m[addr] = hash
	}
	return m, nil
}

func writeStorageDiffs(w Writer, diffs map[types.ContractAddress][]types.StorageDiffEntry) error {
	if err := WriteLen(w, len(diffs)); err != nil {
		return err
	}
	addrs := make([]types.ContractAddress, 0, len(diffs))
	for addr := range diffs {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
	for _, addr := range addrs {
		entries := diffs[addr]
		if err := WriteFelt(w, addr); err != nil {
			return err
		}
		if err := WriteSlice(w, entries, func(w Writer, e types.StorageDiffEntry) error {
			if err := WriteFelt(w, e.Key); err != nil {
				return err
			}
			return WriteFelt(w, e.Value)
		}); err != nil {
			return err
		}
	}
	return nil
}

func readStorageDiffs(r Reader) (map[types.ContractAddress][]types.StorageDiffEntry, error) {
	n, err := ReadLen(r, maxCollectionLen)
	if err != nil {
		return nil, err
	}
	m := make(map[types.ContractAddress][]types.StorageDiffEntry, n)
	for i := 0; i < n; i++ {
		addr, err := ReadFelt(r)
		if err != nil {
			return nil, err
		}
		entries, err := ReadSlice(r, maxCollectionLen, func(r Reader) (types.StorageDiffEntry, error) {
			var e types.StorageDiffEntry
			var err error
			if e.Key, err = ReadFelt(r); err != nil {
				return e, err
			}
			e.Value, err = ReadFelt(r)
			return e, err
		})
		if err != nil {
			return nil, err
		}
		m[addr] = entries
	}
	return m, nil
}

func writeNonces(w Writer, nonces map[types.ContractAddress]types.Nonce) error {
	return writeContractAddressClassHashMap(w, nonces)
}

func readNonces(r Reader) (map[types.ContractAddress]types.Nonce, error) {
	return readContractAddressClassHashMap(r)
}

// WriteThinStateDiff / ReadThinStateDiff encode a types.ThinStateDiff: four
// maps, written in ascending key order, and two lists.
func WriteThinStateDiff(w Writer, d types.ThinStateDiff) error {
	if err := writeContractAddressClassHashMap(w, d.DeployedContracts); err != nil {
		return err
	}
	if err := writeStorageDiffs(w, d.StorageDiffs); err != nil {
		return err
	}
	if err := writeNonces(w, d.Nonces); err != nil {
		return err
	}
	if err := WriteSlice(w, d.DeclaredClasses, func(w Writer, e types.DeclaredClassEntry) error {
		if err := WriteFelt(w, e.ClassHash); err != nil {
			return err
		}
		return WriteFelt(w, e.CompiledClassHash)
	}); err != nil {
		return err
	}
	if err := WriteFeltSlice(w, d.DeprecatedDeclaredClasses); err != nil {
		return err
	}
	return writeContractAddressClassHashMap(w, d.ReplacedClasses)
}

func ReadThinStateDiff(r Reader) (types.ThinStateDiff, error) {
	var d types.ThinStateDiff
	var err error
	if d.DeployedContracts, err = readContractAddressClassHashMap(r); err != nil {
		return d, err
	}
	if d.StorageDiffs, err = readStorageDiffs(r); err != nil {
		return d, err
	}
	if d.Nonces, err = readNonces(r); err != nil {
		return d, err
	}
	if d.DeclaredClasses, err = ReadSlice(r, maxCollectionLen, func(r Reader) (types.DeclaredClassEntry, error) {
		var e types.DeclaredClassEntry
		var err error
		if e.ClassHash, err = ReadFelt(r); err != nil {
			return e, err
		}
		e.CompiledClassHash, err = ReadFelt(r)
		return e, err
	}); err != nil {
		return d, err
	}
	if d.DeprecatedDeclaredClasses, err = ReadFeltSlice(r); err != nil {
		return d, err
	}
	d.ReplacedClasses, err = readContractAddressClassHashMap(r)
	return d, err
}

// ReadThinStateDiffLegacy decodes the minor-version-0 diff layout, which
// predates the ReplacedClasses section. The version gate's migration step
// re-encodes these rows in the canonical form at open time.
func ReadThinStateDiffLegacy(r Reader) (types.ThinStateDiff, error) {
	var d types.ThinStateDiff
	var err error
	if d.DeployedContracts, err = readContractAddressClassHashMap(r); err != nil {
		return d, err
	}
	if d.StorageDiffs, err = readStorageDiffs(r); err != nil {
		return d, err
	}
	if d.Nonces, err = readNonces(r); err != nil {
		return d, err
	}
	if d.DeclaredClasses, err = ReadSlice(r, maxCollectionLen, func(r Reader) (types.DeclaredClassEntry, error) {
		var e types.DeclaredClassEntry
		var err error
		if e.ClassHash, err = ReadFelt(r); err != nil {
			return e, err
		}
		e.CompiledClassHash, err = ReadFelt(r)
		return e, err
	}); err != nil {
		return d, err
	}
	if d.DeprecatedDeclaredClasses, err = ReadFeltSlice(r); err != nil {
		return d, err
	}
	d.ReplacedClasses = make(map[types.ContractAddress]types.ClassHash)
	return d, nil
}

func writeEntryPointMap[T any](w Writer, m map[types.EntryPointType][]T, write func(Writer, T) error) error {
	if err := WriteLen(w, len(m)); err != nil {
		return err
	}
	kinds := make([]types.EntryPointType, 0, len(m))
	for kind := range m {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, kind := range kinds {
		eps := m[kind]
		if err := WriteUint8(w, uint8(kind)); err != nil {
			return err
		}
		if err := WriteSlice(w, eps, write); err != nil {
			return err
		}
	}
	return nil
}

func readEntryPointMap[T any](r Reader, read func(Reader) (T, error)) (map[types.EntryPointType][]T, error) {
	n, err := ReadLen(r, maxCollectionLen)
	if err != nil {
		return nil, err
	}
	m := make(map[types.EntryPointType][]T, n)
	for i := 0; i < n; i++ {
		kind, err := ReadUint8(r)
		if err != nil {
			return nil, err
		}
		if kind > maxEntryPointKind {
			return nil, ErrMalformed
		}
		eps, err := ReadSlice(r, maxCollectionLen, read)
		if err != nil {
			return nil, err
		}
		m[types.EntryPointType(kind)] = eps
	}
	return m, nil
}

func writeEntryPoint(w Writer, e types.EntryPoint) error {
	if err := WriteFelt(w, e.Selector); err != nil {
		return err
	}
	return WriteUint64(w, e.Offset)
}

func readEntryPoint(r Reader) (types.EntryPoint, error) {
	var e types.EntryPoint
	var err error
	if e.Selector, err = ReadFelt(r); err != nil {
		return e, err
	}
	e.Offset, err = ReadUint64(r)
	return e, err
}

// WriteContractClass / ReadContractClass encode a Cairo-1 types.ContractClass.
// The ABI is carried as an opaque, already-canonicalized byte string
// : the codec never parses or re-serializes it.
func WriteContractClass(w Writer, c types.ContractClass) error {
	if err := WriteFeltSlice(w, c.SierraProgram); err != nil {
		return err
	}
	if err := WriteBytes(w, c.ABI); err != nil {
		return err
	}
	if err := writeEntryPointMap(w, c.EntryPoints, writeEntryPoint); err != nil {
		return err
	}
	return WriteString(w, c.Version)
}

func ReadContractClass(r Reader) (types.ContractClass, error) {
	var c types.ContractClass
	var err error
	if c.SierraProgram, err = ReadFeltSlice(r); err != nil {
		return c, err
	}
	if c.ABI, err = ReadBytes(r); err != nil {
		return c, err
	}
	if c.EntryPoints, err = readEntryPointMap(r, readEntryPoint); err != nil {
		return c, err
	}
	c.Version, err = ReadString(r)
	return c, err
}

func writeDeprecatedEntryPoint(w Writer, e types.DeprecatedEntryPoint) error {
	if err := WriteFelt(w, e.Selector); err != nil {
		return err
	}
	return WriteUint64(w, e.Offset)
}

func readDeprecatedEntryPoint(r Reader) (types.DeprecatedEntryPoint, error) {
	var e types.DeprecatedEntryPoint
	var err error
	if e.Selector, err = ReadFelt(r); err != nil {
		return e, err
	}
	e.Offset, err = ReadUint64(r)
	return e, err
}

// WriteDeprecatedContractClass / ReadDeprecatedContractClass encode a
// Cairo-0 types.DeprecatedContractClass.
func WriteDeprecatedContractClass(w Writer, c types.DeprecatedContractClass) error {
	if err := WriteBytes(w, c.Program); err != nil {
		return err
	}
	if err := WriteBytes(w, c.ABI); err != nil {
		return err
	}
	return writeEntryPointMap(w, c.EntryPoints, writeDeprecatedEntryPoint)
}

func ReadDeprecatedContractClass(r Reader) (types.DeprecatedContractClass, error) {
	var c types.DeprecatedContractClass
	var err error
	if c.Program, err = ReadBytes(r); err != nil {
		return c, err
	}
	if c.ABI, err = ReadBytes(r); err != nil {
		return c, err
	}
	c.EntryPoints, err = readEntryPointMap(r, readDeprecatedEntryPoint)
	return c, err
}

func writeCasmEntryPoint(w Writer, e types.CasmEntryPoint) error {
	if err := WriteFelt(w, e.Selector); err != nil {
		return err
	}
	if err := WriteUint64(w, e.Offset); err != nil {
		return err
	}
	return WriteSlice(w, e.Builtins, WriteString)
}

func readCasmEntryPoint(r Reader) (types.CasmEntryPoint, error) {
	var e types.CasmEntryPoint
	var err error
	if e.Selector, err = ReadFelt(r); err != nil {
		return e, err
	}
	if e.Offset, err = ReadUint64(r); err != nil {
		return e, err
	}
	e.Builtins, err = ReadSlice(r, maxCollectionLen, ReadString)
	return e, err
}

// WriteCasmContractClass / ReadCasmContractClass encode a
// types.CasmContractClass.
func WriteCasmContractClass(w Writer, c types.CasmContractClass) error {
	if err := WriteFeltSlice(w, c.Bytecode); err != nil {
		return err
	}
	if err := WriteBytes(w, c.Hints); err != nil {
		return err
	}
	return writeEntryPointMap(w, c.EntryPoints, writeCasmEntryPoint)
}

func ReadCasmContractClass(r Reader) (types.CasmContractClass, error) {
	var c types.CasmContractClass
	var err error
	if c.Bytecode, err = ReadFeltSlice(r); err != nil {
		return c, err
	}
	if c.Hints, err = ReadBytes(r); err != nil {
		return c, err
	}
	c.EntryPoints, err = readEntryPointMap(r, readCasmEntryPoint)
	return c, err
}

// WriteFileLocation / ReadFileLocation encode a types.FileLocation. Both
// fields are fixed-width big-endian since locations are sometimes embedded
// inside other big-endian-keyed rows (pkg/storage/class.go).
func WriteFileLocation(w Writer, loc types.FileLocation) error {
	if err := WriteUint64(w, loc.Offset); err != nil {
		return err
	}
	return WriteUint64(w, loc.Length)
}

func ReadFileLocation(r Reader) (types.FileLocation, error) {
	var loc types.FileLocation
	var err error
	if loc.Offset, err = ReadUint64(r); err != nil {
		return loc, err
	}
	loc.Length, err = ReadUint64(r)
	return loc, err
}

// WriteVersion / ReadVersion encode a types.Version {major, minor}.
func WriteVersion(w Writer, v types.Version) error {
	if err := WriteUint32(w, v.Major); err != nil {
		return err
	}
	return WriteUint32(w, v.Minor)
}

func ReadVersion(r Reader) (types.Version, error) {
	var v types.Version
	var err error
	if v.Major, err = ReadUint32(r); err != nil {
		return v, err
	}
	v.Minor, err = ReadUint32(r)
	return v, err
}
