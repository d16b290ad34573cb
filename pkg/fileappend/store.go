package fileappend

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/starkware-libs/papyrus-go/pkg/kv"
	"github.com/starkware-libs/papyrus-go/pkg/log"
	"github.com/starkware-libs/papyrus-go/pkg/metrics"
	"github.com/starkware-libs/papyrus-go/pkg/serialization"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

// growthStep is the page-aligned increment a file grows by when an
// append would not fit in its current mapping.
const growthStep = 64 << 20 // 64 MiB

var allFileKinds = []types.FileKind{
	types.FileKindContractClass,
	types.FileKindCasm,
	types.FileKindDeprecatedContractClass,
	types.FileKindThinStateDiff,
}

var offsetsTable = kv.NewTable(
	kv.TableFileOffsets,
	func(k types.FileKind) []byte { return []byte{byte(k)} },
	func(v uint64) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error { return serialization.WriteUint64(w, v) })
	},
	func(b []byte) (uint64, error) { return serialization.Decode(b, serialization.ReadUint64) },
)

// file is one memory-mapped append-only blob file: contract_class, casm,
// deprecated_contract_class, or thin_state_diff.
type file struct {
	mu         sync.RWMutex
	f          *os.File
	data       []byte // current mmap, length == mappedSize
	mappedSize uint64
	nextOffset uint64 // next write position; always <= mappedSize
}

// Store is the append-only blob-file layer behind pkg/storage's large
// objects: contract classes, CASM, deprecated classes, and thin state
// diffs. The KV engine stores only (offset,length) locators into these
// files.
type Store struct {
	dir   string
	files map[types.FileKind]*file
}

// Open opens or creates the four blob files under dir, mmaps each, and
// restores each file's next-write offset from env's file_offsets table.
func Open(dir string, env *kv.Env) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fileappend: creating %s: %w", dir, err)
	}

	reader := env.NewReader()
	roTxn, err := reader.BeginRO()
	if err != nil {
		return nil, fmt.Errorf("fileappend: reading offsets: %w", err)
	}
	defer roTxn.Abort()

	s := &Store{dir: dir, files: make(map[types.FileKind]*file, len(allFileKinds))}
	for _, kind := range allFileKinds {
		offset, _, err := offsetsTable.Get(roTxn, kind)
		if err != nil {
			return nil, fmt.Errorf("fileappend: reading offset for %s: %w", kind, err)
		}
		f, err := openFile(dir, kind, offset)
		if err != nil {
			return nil, err
		}
		s.files[kind] = f
	}
	log.WithComponent("fileappend").Info().Str("dir", dir).Msg("opened blob store")
	return s, nil
}

func openFile(dir string, kind types.FileKind, nextOffset uint64) (*file, error) {
	path := filepath.Join(dir, kind.String()+".dat")
	osFile, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &ErrOpen{File: path, Err: err}
	}

	mappedSize := roundUpToGrowthStep(nextOffset)
	if mappedSize == 0 {
		mappedSize = growthStep
	}
	if err := osFile.Truncate(int64(mappedSize)); err != nil {
		_ = osFile.Close()
		return nil, &ErrOpen{File: path, Err: err}
	}

	data, err := unix.Mmap(int(osFile.Fd()), 0, int(mappedSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = osFile.Close()
		return nil, &ErrOpen{File: path, Err: err}
	}

	return &file{f: osFile, data: data, mappedSize: mappedSize, nextOffset: nextOffset}, nil
}

func roundUpToGrowthStep(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return ((n-1)/growthStep + 1) * growthStep
}

// Append writes blob to the tail of kind's file and upserts the
// file_offsets row inside txn. The bytes written to the file become
// durable only once txn commits: a crash between the file write and the
// commit leaks file space but never corrupts the engine.
func (s *Store) Append(txn *kv.RwTxn, kind types.FileKind, blob []byte) (types.FileLocation, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.AppendDuration, "fileappend")

	f := s.files[kind]
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureCapacity(uint64(len(blob))); err != nil {
		return types.FileLocation{}, fmt.Errorf("fileappend: growing %s: %w", kind, err)
	}

	offset := f.nextOffset
	copy(f.data[offset:], blob)
	f.nextOffset += uint64(len(blob))

	if err := offsetsTable.Upsert(txn, kind, f.nextOffset); err != nil {
		return types.FileLocation{}, fmt.Errorf("fileappend: recording offset for %s: %w", kind, err)
	}
	metrics.FileStoreBytesWritten.WithLabelValues(kind.String()).Add(float64(len(blob)))

	return types.FileLocation{Offset: offset, Length: uint64(len(blob))}, nil
}

// ensureCapacity grows and remaps the file, in growthStep-sized
// increments, until it can hold extra more bytes past nextOffset. Callers
// must hold f.mu.
func (f *file) ensureCapacity(extra uint64) error {
	required := f.nextOffset + extra
	if required <= f.mappedSize {
		return nil
	}
	newSize := roundUpToGrowthStep(required)

	if err := unix.Munmap(f.data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	if err := f.f.Truncate(int64(newSize)); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	data, err := unix.Mmap(int(f.f.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	f.data = data
	f.mappedSize = newSize
	return nil
}

// Read returns the raw bytes at loc within kind's file. Readers that
// raced a concurrent grow will see the remapped slice since f.mu is taken
// for the duration of the copy.
func (s *Store) Read(kind types.FileKind, loc types.FileLocation) ([]byte, error) {
	f := s.files[kind]
	f.mu.RLock()
	defer f.mu.RUnlock()

	end := loc.Offset + loc.Length
	if end > f.mappedSize || end > f.nextOffset {
		return nil, ErrOutOfBounds
	}
	out := make([]byte, loc.Length)
	copy(out, f.data[loc.Offset:end])
	return out, nil
}

// Close unmaps and closes every blob file.
func (s *Store) Close() error {
	var firstErr error
	for kind, f := range s.files {
		f.mu.Lock()
		if err := unix.Munmap(f.data); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("fileappend: munmap %s: %w", kind, err)
		}
		if err := f.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("fileappend: close %s: %w", kind, err)
		}
		f.mu.Unlock()
	}
	return firstErr
}
