package types

// Felt is a field element in the Starknet Patricia-tree field: a 32-byte
// big-endian integer. ContractAddress and StorageKey are Felt values
// additionally constrained to [0, 2^251).
type Felt [32]byte

// IsZero reports whether f is the zero felt.
func (f Felt) IsZero() bool {
	return f == Felt{}
}

// BlockNumber is a totally ordered, unsigned 64-bit block height.
type BlockNumber uint64

// Next returns the following block number. Block ranges in this storage
// engine never approach the point where this would overflow.
func (b BlockNumber) Next() BlockNumber {
	return b + 1
}

// Prev returns the preceding block number and whether one exists.
func (b BlockNumber) Prev() (BlockNumber, bool) {
	if b == 0 {
		return 0, false
	}
	return b - 1, true
}

type (
	// BlockHash identifies a block by the hash of its header.
	BlockHash = Felt
	// TransactionHash identifies a transaction within the chain.
	TransactionHash = Felt
	// ClassHash identifies a Cairo-1 or deprecated (Cairo-0) contract class.
	ClassHash = Felt
	// CompiledClassHash identifies the CASM compilation of a Cairo-1 class.
	CompiledClassHash = Felt
	// ContractAddress identifies a deployed contract instance.
	ContractAddress = Felt
	// StorageKey identifies a storage slot within a contract.
	StorageKey = Felt
	// Nonce is a contract's transaction nonce, stored as a Felt.
	Nonce = Felt
)

// TxOffset is the zero-based position of a transaction within a block.
type TxOffset uint64

// TxIndex locates a transaction within the chain.
type TxIndex struct {
	BlockNumber BlockNumber
	TxOffset    TxOffset
}

// EventIndex locates a single event within a transaction's output.
type EventIndex struct {
	TxIndex         TxIndex
	EventOffsetInTx uint64
}

// DataAvailabilityMode selects where a Starknet transaction's data lives.
type DataAvailabilityMode uint8

const (
	DataAvailabilityModeL1 DataAvailabilityMode = 0
	DataAvailabilityModeL2 DataAvailabilityMode = 1
)

// ResourcePrice is a gas price denominated in two units (wei and fri).
type ResourcePrice struct {
	PriceInWei Felt
	PriceInFri Felt
}

// BlockHeader is the canonical per-block metadata row.
type BlockHeader struct {
	BlockHash        BlockHash
	ParentHash       BlockHash
	BlockNumber      BlockNumber
	SequencerAddress ContractAddress
	Timestamp        uint64
	L1GasPrice       ResourcePrice
	L1DataGasPrice   ResourcePrice
	StateRoot        Felt
	// TransactionCommitment and EventCommitment are absent on headers from
	// older Starknet versions; a nil pointer round-trips as "absent"
	// without the engine validating or deriving it.
	TransactionCommitment *Felt
	EventCommitment       *Felt
	NumTransactions       uint64
	NumEvents             uint64
	// StateDiffLength is populated lazily once the state diff for this
	// block has been appended; nil until then.
	StateDiffLength *uint64
	StarknetVersion string
	L1DAMode        DataAvailabilityMode
}

// BlockSignature is the single signature attached to a block by its
// sequencer.
type BlockSignature struct {
	R Felt
	S Felt
}

// TransactionKind tags the variant held by a Transaction.
type TransactionKind uint8

const (
	TransactionKindInvokeV0 TransactionKind = iota
	TransactionKindInvokeV1
	TransactionKindInvokeV3
	TransactionKindDeclareV0
	TransactionKindDeclareV1
	TransactionKindDeclareV2
	TransactionKindDeclareV3
	TransactionKindDeployAccountV1
	TransactionKindDeployAccountV3
	TransactionKindDeploy
	TransactionKindL1Handler
)

// ResourceBounds bounds a single resource's max amount and max price, used
// by V3 transactions' fee-market fields.
type ResourceBounds struct {
	MaxAmount       uint64
	MaxPricePerUnit Felt
}

// Transaction is a tagged variant over every Starknet transaction shape.
// Exactly one set of the typed payload fields is meaningful, selected by
// Kind; unused payloads are left zero-valued. A single flat struct is
// used rather than an interface hierarchy, since the codec
// (pkg/serialization) needs one concrete type per stored row.
type Transaction struct {
	Kind TransactionKind

	Hash TransactionHash

	// Common to most variants.
	SenderAddress       ContractAddress
	MaxFee              Felt
	Signature           []Felt
	Nonce               Nonce
	CalldataOrCalls     []Felt
	ClassHash           ClassHash
	CompiledClassHash   CompiledClassHash
	ContractAddressSalt Felt
	ConstructorCalldata []Felt

	// V3 fee-market fields.
	ResourceBoundsL1Gas   ResourceBounds
	ResourceBoundsL2Gas   ResourceBounds
	Tip                   uint64
	PaymasterData         []Felt
	AccountDeploymentData []Felt
	NonceDataAvailability DataAvailabilityMode
	FeeDataAvailability   DataAvailabilityMode

	// Deploy (not DeployAccount) only.
	Version uint64

	// L1Handler only.
	ContractAddressL1  ContractAddress
	EntryPointSelector Felt
}

// ExecutionStatus reports whether a transaction succeeded or reverted.
type ExecutionStatus uint8

const (
	ExecutionStatusSucceeded ExecutionStatus = iota
	ExecutionStatusReverted
)

// L2ToL1Message is a message emitted from L2 to L1 during execution.
type L2ToL1Message struct {
	FromAddress ContractAddress
	ToAddress   Felt
	Payload     []Felt
}

// Event is a single Starknet event: keys and data emitted by a contract.
type Event struct {
	FromAddress ContractAddress
	Keys        []Felt
	Data        []Felt
}

// L1ToL2Message is the consumed L1->L2 message recorded on an L1Handler
// transaction's output.
type L1ToL2Message struct {
	FromAddress Felt
	Payload     []Felt
	Nonce       Felt
}

// ExecutionResources reports the Cairo resources consumed while executing
// a transaction.
type ExecutionResources struct {
	Steps               uint64
	MemoryHoles         uint64
	RangeCheckBuiltin   uint64
	PedersenBuiltin     uint64
	PoseidonBuiltin     uint64
	EcOpBuiltin         uint64
	EcdsaBuiltin        uint64
	BitwiseBuiltin      uint64
	KeccakBuiltin       uint64
	SegmentArenaBuiltin uint64
}

// TransactionOutput is the receipt-shaped result of executing a
// transaction: status, fee, resources, and everything it emitted.
type TransactionOutput struct {
	Status          ExecutionStatus
	RevertReason    string
	ActualFee       Felt
	MessagesToL1    []L2ToL1Message
	Events          []Event
	ConsumedMessage *L1ToL2Message // only set for L1Handler transactions
	Resources       ExecutionResources
}

// BlockBody is a block's transactions paired positionally with their
// outputs.
type BlockBody struct {
	Transactions       []Transaction
	TransactionOutputs []TransactionOutput
}

// EventEntry is one event's content plus its offset within the emitting
// transaction's output. Rows in the per-contract event index hold a list
// of these, so the emitting address lives in the key rather than being
// repeated per event.
type EventEntry struct {
	OffsetInTx uint64
	Keys       []Felt
	Data       []Felt
}

// StorageDiffEntry is a single contract-storage write in a thin state
// diff.
type StorageDiffEntry struct {
	Key   StorageKey
	Value Felt
}

// DeclaredClassEntry maps a newly declared Cairo-1 class hash to its
// compiled-class hash.
type DeclaredClassEntry struct {
	ClassHash         ClassHash
	CompiledClassHash CompiledClassHash
}

// ThinStateDiff is the compact per-block state delta stored in the
// append-only file store and indexed by the four time-indexed KV tables.
// It is the single canonical in-memory shape and always carries
// ReplacedClasses; legacy on-disk diffs without it are migrated at open
// time.
type ThinStateDiff struct {
	DeployedContracts         map[ContractAddress]ClassHash
	StorageDiffs              map[ContractAddress][]StorageDiffEntry
	Nonces                    map[ContractAddress]Nonce
	DeclaredClasses           []DeclaredClassEntry
	DeprecatedDeclaredClasses []ClassHash
	ReplacedClasses           map[ContractAddress]ClassHash
}

// NewThinStateDiff returns a diff with all maps initialized, ready to be
// populated and appended.
func NewThinStateDiff() *ThinStateDiff {
	return &ThinStateDiff{
		DeployedContracts: make(map[ContractAddress]ClassHash),
		StorageDiffs:      make(map[ContractAddress][]StorageDiffEntry),
		Nonces:            make(map[ContractAddress]Nonce),
		ReplacedClasses:   make(map[ContractAddress]ClassHash),
	}
}

// Len counts every entry the diff carries, the value recorded in the
// owning header's StateDiffLength once the diff is appended.
func (d *ThinStateDiff) Len() int {
	n := len(d.DeployedContracts) + len(d.Nonces) + len(d.DeclaredClasses) +
		len(d.DeprecatedDeclaredClasses) + len(d.ReplacedClasses)
	for _, entries := range d.StorageDiffs {
		n += len(entries)
	}
	return n
}

// StateNumber identifies a point on the state timeline: the state after
// every block strictly below it has been applied. StateRightBefore(N) and
// StateRightAfter(N) are the two query modes of the time-indexed reader.
type StateNumber uint64

// StateRightBefore returns the state as of the instant block n starts,
// excluding n's own diff.
func StateRightBefore(n BlockNumber) StateNumber {
	return StateNumber(n)
}

// StateRightAfter returns the state with block n's diff applied.
func StateRightAfter(n BlockNumber) StateNumber {
	return StateNumber(n) + 1
}

// EntryPointType distinguishes Cairo entry point kinds.
type EntryPointType uint8

const (
	EntryPointTypeExternal EntryPointType = iota
	EntryPointTypeL1Handler
	EntryPointTypeConstructor
)

// EntryPoint is one Sierra entry point.
type EntryPoint struct {
	Selector Felt
	Offset   uint64
}

// ContractClass is a Cairo-1 contract class: a Sierra program plus ABI and
// entry points. The ABI is free-form JSON in the original Starknet schema;
// it is carried as an opaque, already-canonicalized byte string so the
// codec round-trips it exactly rather than re-deriving a JSON form.
type ContractClass struct {
	SierraProgram []Felt
	ABI           []byte
	EntryPoints   map[EntryPointType][]EntryPoint
	Version       string
}

// DeprecatedEntryPoint is a Cairo-0 entry point (no builtins field; those
// live in the program itself).
type DeprecatedEntryPoint struct {
	Selector Felt
	Offset   uint64
}

// DeprecatedContractClass is a Cairo-0 class: raw program bytes, free-form
// ABI, and entry points by type. Declaration rules and hashing differ from
// Cairo-1, so it is stored in its own append-only file and KV table.
type DeprecatedContractClass struct {
	Program     []byte
	ABI         []byte
	EntryPoints map[EntryPointType][]DeprecatedEntryPoint
}

// CasmEntryPoint is one compiled entry point in a CASM contract class.
type CasmEntryPoint struct {
	Selector Felt
	Offset   uint64
	Builtins []string
}

// CasmContractClass is the sierra->casm compiled form of a Cairo-1 class.
type CasmContractClass struct {
	Bytecode    []Felt
	Hints       []byte // opaque, canonicalized hint program
	EntryPoints map[EntryPointType][]CasmEntryPoint
}

// FileLocation is a value, not a pointer: an (offset, length) locator into
// one of the four named append-only blob files.
type FileLocation struct {
	Offset uint64
	Length uint64
}

// FileKind names one of the four append-only blob files.
type FileKind uint8

const (
	FileKindContractClass FileKind = iota
	FileKindCasm
	FileKindDeprecatedContractClass
	FileKindThinStateDiff
)

// String returns the on-disk file name for a FileKind.
func (k FileKind) String() string {
	switch k {
	case FileKindContractClass:
		return "contract_class"
	case FileKindCasm:
		return "casm"
	case FileKindDeprecatedContractClass:
		return "deprecated_contract_class"
	case FileKindThinStateDiff:
		return "thin_state_diff"
	default:
		return "unknown"
	}
}

// Scope controls how much per-block data a storage directory retains.
type Scope string

const (
	// ScopeFullArchive retains all per-block data (default).
	ScopeFullArchive Scope = "FullArchive"
	// ScopeStateOnly skips the per-block transaction, output, and event
	// rows in AppendBody; headers, state diffs, and classes are still
	// retained for every block.
	ScopeStateOnly Scope = "StateOnly"
)

// Version is a {major, minor} on-disk schema version tuple.
type Version struct {
	Major uint32
	Minor uint32
}

// MarkerKind names one of the per-subsystem block-number highwater marks.
type MarkerKind uint8

const (
	MarkerHeader MarkerKind = iota
	MarkerBody
	MarkerState
	MarkerClass
	MarkerCompiledClass
	MarkerEvent
	MarkerBaseLayer
)

// String returns the table-label used for this marker in logs and
// metrics.
func (m MarkerKind) String() string {
	switch m {
	case MarkerHeader:
		return "header"
	case MarkerBody:
		return "body"
	case MarkerState:
		return "state"
	case MarkerClass:
		return "class"
	case MarkerCompiledClass:
		return "compiled_class"
	case MarkerEvent:
		return "event"
	case MarkerBaseLayer:
		return "base_layer"
	default:
		return "unknown"
	}
}
