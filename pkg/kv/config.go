package kv

// Config carries the settings open_storage needs to bring up the KV
// engine. Page size is not configurable: it is chosen at
// env-open time as the largest power of two <= the OS page size, clamped
// to [256, 65536].
type Config struct {
	// Path is the directory that will hold mdbx.dat and mdbx.lck.
	Path string

	// MinSize, MaxSize, and GrowthStep bound and step the memory-mapped
	// region, in bytes.
	MinSize    uint64
	MaxSize    uint64
	GrowthStep uint64

	// EnforceFileExists fails Open when mdbx.dat is missing, instead of
	// creating a fresh environment.
	EnforceFileExists bool

	// MaxReaders bounds the number of concurrent read-only transactions;
	// 0 uses DefaultMaxReaders.
	MaxReaders uint64
}

// DefaultMaxReaders is the soft cap on concurrent readers when
// Config.MaxReaders is left at zero.
const DefaultMaxReaders = 200_000

// DefaultMinSize and DefaultMaxSize are reasonable defaults for a
// full-archive node; cmd/papyrus overrides them from pkg/config.
const (
	DefaultMinSize    = 1 << 20  // 1 MiB
	DefaultMaxSize    = 16 << 40 // 16 TiB, mdbx reserves virtual address space only
	DefaultGrowthStep = 2 << 30  // 2 GiB
)

func (c Config) maxReaders() uint64 {
	if c.MaxReaders == 0 {
		return DefaultMaxReaders
	}
	return c.MaxReaders
}
