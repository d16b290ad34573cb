package storage

import (
	"fmt"

	"github.com/starkware-libs/papyrus-go/pkg/fileappend"
	"github.com/starkware-libs/papyrus-go/pkg/kv"
	"github.com/starkware-libs/papyrus-go/pkg/log"
	"github.com/starkware-libs/papyrus-go/pkg/serialization"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

// The two on-disk version tuples. State covers the state-reader tables
// and blob layout; blocks covers headers, bodies, and the event index.
// A major bump means the layout is not readable by this build at all; a
// minor bump has a registered in-place migration.
var (
	CurrentVersionState  = types.Version{Major: 0, Minor: 1}
	CurrentVersionBlocks = types.Version{Major: 0, Minor: 0}
)

const (
	keyVersionState  = "storage_version_state"
	keyVersionBlocks = "storage_version_blocks"
	keyScope         = "storage_scope"
)

var versionTable = kv.NewTable(
	kv.TableStorageVersion,
	func(k string) []byte { return []byte(k) },
	func(v types.Version) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error { return serialization.WriteVersion(w, v) })
	},
	func(b []byte) (types.Version, error) { return serialization.Decode(b, serialization.ReadVersion) },
)

var scopeTable = kv.NewTable(
	kv.TableStorageVersion,
	func(k string) []byte { return []byte(k) },
	func(v types.Scope) ([]byte, error) { return []byte(v), nil },
	func(b []byte) (types.Scope, error) { return types.Scope(b), nil },
)

// GetVersionState reads the on-disk state version tuple.
func (t *readTxn) GetVersionState() (types.Version, bool, error) {
	return versionTable.Get(t.kv, keyVersionState)
}

// GetVersionBlocks reads the on-disk blocks version tuple.
func (t *readTxn) GetVersionBlocks() (types.Version, bool, error) {
	return versionTable.Get(t.kv, keyVersionBlocks)
}

// migrationStep upgrades one subsystem's layout to target. Steps run in
// order inside the open transaction, so a crash mid-migration leaves the
// old layout intact.
type migrationStep struct {
	target types.Version
	apply  func(*kv.RwTxn, *fileappend.Store) error
}

var stateMigrations = []migrationStep{
	{target: types.Version{Major: 0, Minor: 1}, apply: migrateStateDiffsReplacedClasses},
}

var blocksMigrations []migrationStep

// gateVersions enforces the version policy at open: fresh directories get the
// current versions and the requested scope; same-major/older-minor
// directories migrate forward in place; anything else refuses to open.
func (s *storage) gateVersions() error {
	txn, err := s.env.NewWriter().BeginRW()
	if err != nil {
		return err
	}
	defer txn.Abort()

	stateV, stateOK, err := versionTable.Get(txn, keyVersionState)
	if err != nil {
		return err
	}
	blocksV, blocksOK, err := versionTable.Get(txn, keyVersionBlocks)
	if err != nil {
		return err
	}

	if !stateOK && !blocksOK {
		if err := versionTable.Upsert(txn, keyVersionState, CurrentVersionState); err != nil {
			return err
		}
		if err := versionTable.Upsert(txn, keyVersionBlocks, CurrentVersionBlocks); err != nil {
			return err
		}
		if err := scopeTable.Upsert(txn, keyScope, s.scope); err != nil {
			return err
		}
		return txn.Commit()
	}

	storedScope, scopeOK, err := scopeTable.Get(txn, keyScope)
	if err != nil {
		return err
	}
	if scopeOK && storedScope != s.scope {
		if storedScope == types.ScopeFullArchive {
			return ErrScopeDowngrade
		}
		return ErrScopeUpgradeRequiresResync
	}
	if !scopeOK {
		if err := scopeTable.Upsert(txn, keyScope, s.scope); err != nil {
			return err
		}
	}

	if err := reconcileVersion(txn, s.files, keyVersionState, stateV, CurrentVersionState, stateMigrations); err != nil {
		return err
	}
	if err := reconcileVersion(txn, s.files, keyVersionBlocks, blocksV, CurrentVersionBlocks, blocksMigrations); err != nil {
		return err
	}
	return txn.Commit()
}

func reconcileVersion(txn *kv.RwTxn, files *fileappend.Store, key string, stored, current types.Version, steps []migrationStep) error {
	if stored.Major != current.Major {
		return fmt.Errorf("%w: %s on disk %d.%d, build %d.%d",
			ErrInconsistentStorageVersion, key, stored.Major, stored.Minor, current.Major, current.Minor)
	}
	if stored.Minor > current.Minor {
		return fmt.Errorf("%w: %s on disk %d.%d, build %d.%d",
			ErrSetLowerVersion, key, stored.Major, stored.Minor, current.Major, current.Minor)
	}
	for _, step := range steps {
		if step.target.Minor <= stored.Minor {
			continue
		}
		if step.target.Major != stored.Major {
			return ErrSetMajorVersion
		}
		log.Logger.Info().
			Str("key", key).
			Uint32("from_minor", stored.Minor).
			Uint32("to_minor", step.target.Minor).
			Msg("storage: migrating")
		if err := step.apply(txn, files); err != nil {
			return fmt.Errorf("storage: migration to %d.%d: %w", step.target.Major, step.target.Minor, err)
		}
		if err := versionTable.Upsert(txn, key, step.target); err != nil {
			return err
		}
		stored = step.target
	}
	return nil
}

// migrateStateDiffsReplacedClasses rewrites every stored thin state diff
// from the pre-ReplacedClasses layout into the canonical one: decode with
// the legacy codec, re-encode, append the new blob, repoint the locator.
// The old blob bytes stay orphaned in the file, like any revert.
func migrateStateDiffsReplacedClasses(txn *kv.RwTxn, files *fileappend.Store) error {
	cur, err := txn.Cursor(kv.TableStateDiffLocations)
	if err != nil {
		return err
	}
	defer cur.Close()

	type repoint struct {
		key []byte
		loc types.FileLocation
	}
	var repoints []repoint

	for key, rawLoc, ok, err := cur.First(); ; key, rawLoc, ok, err = cur.Next() {
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		loc, err := serialization.Decode(rawLoc, serialization.ReadFileLocation)
		if err != nil {
			return &kv.ErrDeserialization{Table: kv.TableStateDiffLocations, Err: err}
		}
		wrapped, err := files.Read(types.FileKindThinStateDiff, loc)
		if err != nil {
			return err
		}
		blob, err := serialization.CompressUnwrap(wrapped)
		if err != nil {
			return err
		}
		diff, err := serialization.Decode(blob, serialization.ReadThinStateDiffLegacy)
		if err != nil {
			return &kv.ErrDeserialization{Table: kv.TableStateDiffLocations, Err: err}
		}
		reencoded, err := serialization.Encode(func(w serialization.Writer) error {
			return serialization.WriteThinStateDiff(w, diff)
		})
		if err != nil {
			return err
		}
		newLoc, err := files.Append(txn, types.FileKindThinStateDiff, serialization.CompressWrap(reencoded))
		if err != nil {
			return err
		}
		k := make([]byte, len(key))
		copy(k, key)
		repoints = append(repoints, repoint{key: k, loc: newLoc})
	}

	for _, r := range repoints {
		raw, err := serialization.Encode(func(w serialization.Writer) error {
			return serialization.WriteFileLocation(w, r.loc)
		})
		if err != nil {
			return err
		}
		if err := txn.Upsert(kv.TableStateDiffLocations, r.key, raw); err != nil {
			return err
		}
	}
	return nil
}
