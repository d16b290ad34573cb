package storage

import (
	"fmt"
	"path/filepath"

	"github.com/starkware-libs/papyrus-go/pkg/fileappend"
	"github.com/starkware-libs/papyrus-go/pkg/kv"
	"github.com/starkware-libs/papyrus-go/pkg/log"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

// Config carries everything Open needs to bring up a storage directory.
// The engine's files live under PathPrefix/ChainID.
type Config struct {
	PathPrefix        string
	ChainID           string
	EnforceFileExists bool
	MinSize           uint64
	MaxSize           uint64
	GrowthStep        uint64
	Scope             types.Scope
	MaxReaders        uint64
}

// Dir is the chain-specific directory holding mdbx.dat, mdbx.lck, and the
// four append-only blob files.
func (c Config) Dir() string {
	return filepath.Join(c.PathPrefix, c.ChainID)
}

// storage is the per-directory singleton shared by the Reader and Writer
// handles. Construct one per DB directory at process start.
type storage struct {
	env   *kv.Env
	files *fileappend.Store
	scope types.Scope
}

// Reader yields snapshot read transactions over the storage. It is a
// plain value handle: copy it freely across goroutines.
type Reader struct {
	s *storage
	r *kv.Reader
}

// Writer yields the single read-write transaction. Exactly one RwTxn may
// be live at a time; BeginRW blocks until the previous one ends.
type Writer struct {
	s *storage
	w *kv.Writer
}

// Open ensures the chain directory exists, opens the KV engine, creates
// tables idempotently, opens the append-only blob files, sets or verifies
// the on-disk versions and scope, and returns the two handles.
func Open(cfg Config) (*Reader, *Writer, error) {
	if cfg.Scope == "" {
		cfg.Scope = types.ScopeFullArchive
	}
	if cfg.Scope != types.ScopeFullArchive && cfg.Scope != types.ScopeStateOnly {
		return nil, nil, fmt.Errorf("storage: unknown scope %q", cfg.Scope)
	}

	env, err := kv.Open(kv.Config{
		Path:              cfg.Dir(),
		MinSize:           cfg.MinSize,
		MaxSize:           cfg.MaxSize,
		GrowthStep:        cfg.GrowthStep,
		EnforceFileExists: cfg.EnforceFileExists,
		MaxReaders:        cfg.MaxReaders,
	})
	if err != nil {
		return nil, nil, err
	}

	files, err := fileappend.Open(cfg.Dir(), env)
	if err != nil {
		_ = env.Close()
		return nil, nil, err
	}

	s := &storage{env: env, files: files, scope: cfg.Scope}
	if err := s.gateVersions(); err != nil {
		_ = files.Close()
		_ = env.Close()
		return nil, nil, err
	}

	logger := log.WithChainID(cfg.ChainID)
	logger.Info().
		Str("scope", string(cfg.Scope)).
		Msg("storage: opened")
	return &Reader{s: s, r: env.NewReader()}, &Writer{s: s, w: env.NewWriter()}, nil
}

// Close releases the blob files and the KV environment. Callers must have
// ended every open transaction first. Close it through either handle.
func (r *Reader) Close() error { return r.s.close() }

// Close releases the blob files and the KV environment.
func (w *Writer) Close() error { return w.s.close() }

func (s *storage) close() error {
	ferr := s.files.Close()
	eerr := s.env.Close()
	if ferr != nil {
		return ferr
	}
	return eerr
}

// kvReadTxn is the read surface shared by kv.RoTxn and kv.RwTxn; every
// Get* method in this package works against it so reads compose with
// both snapshot reads and in-flight writes.
type kvReadTxn interface {
	Get(table string, key []byte) ([]byte, bool, error)
	Cursor(table string) (*kv.Cursor, error)
}

// readTxn carries the read-side state every query method needs. It is
// embedded in both RoTxn and RwTxn.
type readTxn struct {
	kv    kvReadTxn
	files *fileappend.Store
	scope types.Scope
}

// RoTxn is a snapshot read transaction over the whole storage: KV tables
// plus the blob files as they were at snapshot time.
type RoTxn struct {
	readTxn
	inner *kv.RoTxn
}

// Abort releases the snapshot. Safe to call more than once.
func (t *RoTxn) Abort() {
	t.inner.Abort()
}

// RwTxn is the single live read-write transaction. All append_* and
// revert_* operations happen on it; nothing is visible to readers until
// Commit.
type RwTxn struct {
	readTxn
	inner *kv.RwTxn
}

// Commit atomically publishes every write in this transaction.
func (t *RwTxn) Commit() error {
	return t.inner.Commit()
}

// Abort discards every write in this transaction.
func (t *RwTxn) Abort() {
	t.inner.Abort()
}

// BeginRO begins a snapshot read transaction. Any number may be open
// concurrently, bounded by the configured reader cap.
func (r *Reader) BeginRO() (*RoTxn, error) {
	inner, err := r.r.BeginRO()
	if err != nil {
		return nil, err
	}
	return &RoTxn{
		readTxn: readTxn{kv: inner, files: r.s.files, scope: r.s.scope},
		inner:   inner,
	}, nil
}

// BeginRW begins the read-write transaction, blocking while another one
// is live.
func (w *Writer) BeginRW() (*RwTxn, error) {
	inner, err := w.w.BeginRW()
	if err != nil {
		return nil, err
	}
	return &RwTxn{
		readTxn: readTxn{kv: inner, files: w.s.files, scope: w.s.scope},
		inner:   inner,
	}, nil
}

// Scope reports the directory's retention scope.
func (t *readTxn) Scope() types.Scope {
	return t.scope
}

// Marker reads the block-number highwater mark for a subsystem; 0 means
// nothing has been appended yet.
func (t *readTxn) Marker(kind types.MarkerKind) (types.BlockNumber, error) {
	return marker(t.kv, kind)
}

// Trait surface consumed by the sync, RPC, and consensus collaborators.
// Transactions implement all of them; external packages
// should depend on the narrowest interface that serves them.
type (
	HeaderStorageReader interface {
		GetBlockHeader(types.BlockNumber) (types.BlockHeader, bool, error)
		GetBlockNumberByHash(types.BlockHash) (types.BlockNumber, bool, error)
		GetBlockSignature(types.BlockNumber) (types.BlockSignature, bool, error)
		StarknetVersionAt(types.BlockNumber) (string, bool, error)
		Marker(types.MarkerKind) (types.BlockNumber, error)
	}

	HeaderStorageWriter interface {
		AppendHeader(types.BlockNumber, types.BlockHeader) error
		AppendSignature(types.BlockNumber, types.BlockSignature) error
		RevertHeader(types.BlockNumber) (*types.BlockHeader, error)
	}

	BodyStorageReader interface {
		GetTransaction(types.TxIndex) (types.Transaction, bool, error)
		GetTransactionOutput(types.TxIndex) (types.TransactionOutput, bool, error)
		GetTransactionIdxByHash(types.TransactionHash) (types.TxIndex, bool, error)
		GetBlockBody(types.BlockNumber) (types.BlockBody, bool, error)
	}

	BodyStorageWriter interface {
		AppendBody(types.BlockNumber, types.BlockBody) error
		RevertBody(types.BlockNumber) (*types.BlockBody, error)
	}

	EventsReader interface {
		ScanEvents(types.ContractAddress, types.EventIndex, types.BlockNumber) (*EventIterator, error)
	}

	StateStorageReader interface {
		GetStateDiff(types.BlockNumber) (types.ThinStateDiff, bool, error)
		GetClassHashAt(types.StateNumber, types.ContractAddress) (types.ClassHash, error)
		GetNonceAt(types.StateNumber, types.ContractAddress) (types.Nonce, error)
		GetStorageAt(types.StateNumber, types.ContractAddress, types.StorageKey) (types.Felt, error)
		GetClassDeclarationBlock(types.ClassHash) (types.BlockNumber, bool, error)
	}

	StateStorageWriter interface {
		AppendStateDiff(types.BlockNumber, *types.ThinStateDiff) error
		RevertStateDiff(types.BlockNumber) (*types.ThinStateDiff, error)
	}

	ClassStorageReader interface {
		GetClass(types.ClassHash) (types.ContractClass, bool, error)
		GetDeprecatedClass(types.ClassHash) (types.DeprecatedContractClass, types.BlockNumber, bool, error)
	}

	ClassStorageWriter interface {
		AppendClasses(types.BlockNumber, map[types.ClassHash]types.ContractClass, map[types.ClassHash]types.DeprecatedContractClass) error
		RevertClasses(types.BlockNumber) error
	}

	CompiledClassStorageReader interface {
		GetCasm(types.ClassHash) (types.CasmContractClass, bool, error)
	}

	CompiledClassStorageWriter interface {
		AppendCasm(types.ClassHash, types.CasmContractClass) error
		RevertCasm(types.BlockNumber) error
	}

	BaseLayerStorageReader interface {
		GetBaseLayerTip() (types.BlockNumber, types.BlockHash, bool, error)
	}

	BaseLayerStorageWriter interface {
		UpdateBaseLayerTip(types.BlockNumber, types.BlockHash) error
		RevertBaseLayerTip() error
	}

	VersionStorageReader interface {
		GetVersionState() (types.Version, bool, error)
		GetVersionBlocks() (types.Version, bool, error)
	}
)

var (
	_ HeaderStorageReader        = (*RoTxn)(nil)
	_ BodyStorageReader          = (*RoTxn)(nil)
	_ EventsReader               = (*RoTxn)(nil)
	_ StateStorageReader         = (*RoTxn)(nil)
	_ ClassStorageReader         = (*RoTxn)(nil)
	_ CompiledClassStorageReader = (*RoTxn)(nil)
	_ BaseLayerStorageReader     = (*RoTxn)(nil)
	_ VersionStorageReader       = (*RoTxn)(nil)

	_ HeaderStorageWriter        = (*RwTxn)(nil)
	_ BodyStorageWriter          = (*RwTxn)(nil)
	_ StateStorageWriter         = (*RwTxn)(nil)
	_ ClassStorageWriter         = (*RwTxn)(nil)
	_ CompiledClassStorageWriter = (*RwTxn)(nil)
	_ BaseLayerStorageWriter     = (*RwTxn)(nil)
	_ HeaderStorageReader        = (*RwTxn)(nil)
	_ StateStorageReader         = (*RwTxn)(nil)
)
