package kv

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/starkware-libs/papyrus-go/pkg/log"
	"github.com/starkware-libs/papyrus-go/pkg/metrics"
)

const (
	dataFileName = "mdbx.dat"
	lockFileName = "mdbx.lck"

	minPageSize = 256
	maxPageSize = 65536
)

// Env wraps a single mdbx environment: the file pair (mdbx.dat,
// mdbx.lck) at cfg.Path, opened once per process and shared by every
// Reader and the single Writer.
type Env struct {
	env *mdbx.Env

	mu       sync.Mutex
	writerMu sync.Mutex // serializes RwTxn acquisition; mdbx enforces this too, this just gives us a clean error path
}

// Open brings up the mdbx environment at cfg.Path, creating the directory
// and environment files if they do not already exist (unless
// cfg.EnforceFileExists is set, in which case a missing mdbx.dat is an
// error).
func Open(cfg Config) (*Env, error) {
	if cfg.EnforceFileExists {
		if _, err := os.Stat(filepath.Join(cfg.Path, dataFileName)); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrFileDoesNotExist, cfg.Path)
		}
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("kv: creating %s: %w", cfg.Path, err)
	}

	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, &ErrInnerDB{Op: "NewEnv", Err: err}
	}

	pageSize := choosePageSize()
	minSize, maxSize, growthStep := sizesOrDefault(cfg)
	if err := env.SetGeometry(int(minSize), -1, int(maxSize), int(growthStep), -1, pageSize); err != nil {
		return nil, &ErrInnerDB{Op: "SetGeometry", Err: err}
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(allTableNames))); err != nil {
		return nil, &ErrInnerDB{Op: "SetOption(MaxDB)", Err: err}
	}
	if err := env.SetOption(mdbx.OptMaxReaders, cfg.maxReaders()); err != nil {
		return nil, &ErrInnerDB{Op: "SetOption(MaxReaders)", Err: err}
	}

	if err := env.Open(cfg.Path, mdbx.Coalesce|mdbx.LifoReclaim, 0o644); err != nil {
		return nil, &ErrInnerDB{Op: "Open", Err: err}
	}

	e := &Env{env: env}
	if err := e.createTables(); err != nil {
		_ = env.Close()
		return nil, err
	}
	log.WithComponent("kv").Info().Str("path", cfg.Path).Msg("opened environment")
	return e, nil
}

// choosePageSize picks the largest power of two <= the OS page size,
// clamped to [minPageSize, maxPageSize].
func choosePageSize() int {
	sz := os.Getpagesize()
	p := minPageSize
	for p*2 <= sz && p*2 <= maxPageSize {
		p *= 2
	}
	if p < minPageSize {
		p = minPageSize
	}
	return p
}

func sizesOrDefault(cfg Config) (minSize, maxSize, growthStep uint64) {
	minSize, maxSize, growthStep = cfg.MinSize, cfg.MaxSize, cfg.GrowthStep
	if minSize == 0 {
		minSize = DefaultMinSize
	}
	if maxSize == 0 {
		maxSize = DefaultMaxSize
	}
	if growthStep == 0 {
		growthStep = DefaultGrowthStep
	}
	return
}

// createTables idempotently creates every table named in tables.go.
func (e *Env) createTables() error {
	return e.env.Update(func(txn *mdbx.Txn) error {
		for _, t := range allTableNames {
			if _, err := txn.OpenDBI(t, mdbx.Create, nil, nil); err != nil {
				return fmt.Errorf("kv: creating table %q: %w", t, err)
			}
			log.WithTable(t).Debug().Msg("table ready")
		}
		return nil
	})
}

// Close releases the environment. It must be called after every open
// RoTxn/RwTxn has been closed.
func (e *Env) Close() error {
	e.env.Close()
	return nil
}

// Reader yields snapshot read transactions; any number of callers may
// hold one concurrently.
type Reader struct {
	env *Env
}

// NewReader returns a Reader bound to e.
func (e *Env) NewReader() *Reader {
	return &Reader{env: e}
}

// BeginRO begins a new read-only transaction. The returned RoTxn sees an
// immutable snapshot valid for its own lifetime; it must be closed with
// Abort when done.
func (r *Reader) BeginRO() (*RoTxn, error) {
	txn, err := r.env.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, &ErrInnerDB{Op: "BeginTxn(Readonly)", Err: err}
	}
	metrics.OpenReadTxns.Inc()
	return &RoTxn{txn: txn}, nil
}

// Writer yields the single read-write transaction handle for the
// environment; exactly one RwTxn may be live at a time.
type Writer struct {
	env *Env
}

// NewWriter returns a Writer bound to e.
func (e *Env) NewWriter() *Writer {
	return &Writer{env: e}
}

// BeginRW begins the read-write transaction. It blocks until any other
// live RwTxn on this process commits or aborts; mdbx also
// holds the environment's writer lock for the duration.
func (w *Writer) BeginRW() (*RwTxn, error) {
	w.env.writerMu.Lock()
	txn, err := w.env.env.BeginTxn(nil, 0)
	if err != nil {
		w.env.writerMu.Unlock()
		return nil, &ErrInnerDB{Op: "BeginTxn(ReadWrite)", Err: err}
	}
	metrics.WriterLockHeld.Set(1)
	return &RwTxn{txn: txn, release: func() { w.env.writerMu.Unlock() }}, nil
}
