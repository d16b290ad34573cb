package storage

import (
	"fmt"
	"sort"

	"github.com/starkware-libs/papyrus-go/pkg/kv"
	"github.com/starkware-libs/papyrus-go/pkg/log"
	"github.com/starkware-libs/papyrus-go/pkg/metrics"
	"github.com/starkware-libs/papyrus-go/pkg/serialization"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

var classLocationsTable = kv.NewTable(
	kv.TableClassLocations,
	encodeFeltKey,
	func(v types.FileLocation) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error { return serialization.WriteFileLocation(w, v) })
	},
	func(b []byte) (types.FileLocation, error) {
		return serialization.Decode(b, serialization.ReadFileLocation)
	},
)

// deprecatedClassRow pairs a Cairo-0 class's blob locator with the first
// block that declared it.
type deprecatedClassRow struct {
	Block    types.BlockNumber
	Location types.FileLocation
}

var deprecatedClassLocationsTable = kv.NewTable(
	kv.TableDeprecatedClassLocations,
	encodeFeltKey,
	func(v deprecatedClassRow) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error {
			if err := serialization.WriteBlockNumber(w, v.Block); err != nil {
				return err
			}
			return serialization.WriteFileLocation(w, v.Location)
		})
	},
	func(b []byte) (deprecatedClassRow, error) {
		return serialization.Decode(b, func(r serialization.Reader) (deprecatedClassRow, error) {
			var row deprecatedClassRow
			var err error
			if row.Block, err = serialization.ReadBlockNumber(r); err != nil {
				return row, err
			}
			row.Location, err = serialization.ReadFileLocation(r)
			return row, err
		})
	},
)

var casmLocationsTable = kv.NewTable(
	kv.TableCasmLocations,
	encodeFeltKey,
	func(v types.FileLocation) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error { return serialization.WriteFileLocation(w, v) })
	},
	func(b []byte) (types.FileLocation, error) {
		return serialization.Decode(b, serialization.ReadFileLocation)
	},
)

// GetClass reads a Cairo-1 class definition from the blob store.
func (t *readTxn) GetClass(hash types.ClassHash) (types.ContractClass, bool, error) {
	var class types.ContractClass
	loc, ok, err := classLocationsTable.Get(t.kv, hash)
	if err != nil || !ok {
		return class, false, err
	}
	wrapped, err := t.files.Read(types.FileKindContractClass, loc)
	if err != nil {
		return class, false, err
	}
	raw, err := serialization.CompressUnwrap(wrapped)
	if err != nil {
		return class, false, err
	}
	class, err = serialization.Decode(raw, serialization.ReadContractClass)
	if err != nil {
		return class, false, err
	}
	return class, true, nil
}

// GetDeprecatedClass reads a Cairo-0 class definition and the first block
// that declared it.
func (t *readTxn) GetDeprecatedClass(hash types.ClassHash) (types.DeprecatedContractClass, types.BlockNumber, bool, error) {
	var class types.DeprecatedContractClass
	row, ok, err := deprecatedClassLocationsTable.Get(t.kv, hash)
	if err != nil || !ok {
		return class, 0, false, err
	}
	wrapped, err := t.files.Read(types.FileKindDeprecatedContractClass, row.Location)
	if err != nil {
		return class, 0, false, err
	}
	raw, err := serialization.CompressUnwrap(wrapped)
	if err != nil {
		return class, 0, false, err
	}
	class, err = serialization.Decode(raw, serialization.ReadDeprecatedContractClass)
	if err != nil {
		return class, 0, false, err
	}
	return class, row.Block, true, nil
}

// GetCasm reads the compiled (CASM) form of a Cairo-1 class.
func (t *readTxn) GetCasm(hash types.ClassHash) (types.CasmContractClass, bool, error) {
	var casm types.CasmContractClass
	loc, ok, err := casmLocationsTable.Get(t.kv, hash)
	if err != nil || !ok {
		return casm, false, err
	}
	wrapped, err := t.files.Read(types.FileKindCasm, loc)
	if err != nil {
		return casm, false, err
	}
	raw, err := serialization.CompressUnwrap(wrapped)
	if err != nil {
		return casm, false, err
	}
	casm, err = serialization.Decode(raw, serialization.ReadCasmContractClass)
	if err != nil {
		return casm, false, err
	}
	return casm, true, nil
}

func sortedClassHashes[V any](m map[types.ClassHash]V) []types.ClassHash {
	hashes := make([]types.ClassHash, 0, len(m))
	for h := range m {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return compareFelt(hashes[i], hashes[j]) < 0 })
	return hashes
}

// AppendClasses writes the class definitions declared at block n. Every
// hash must appear in block n's state diff. Deprecated classes already
// written at an earlier block are silently skipped, so a deprecated class
// hash always maps to the first block that declared it.
func (t *RwTxn) AppendClasses(n types.BlockNumber, classes map[types.ClassHash]types.ContractClass, deprecated map[types.ClassHash]types.DeprecatedContractClass) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.AppendDuration, types.MarkerClass.String())

	if err := checkMarker(t.inner, types.MarkerClass, n); err != nil {
		return err
	}

	var declared, deprecatedDeclared map[types.ClassHash]struct{}
	if len(classes) > 0 || len(deprecated) > 0 {
		diff, ok, err := t.GetStateDiff(n)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("storage: no state diff at block %d to declare classes against", n)
		}
		declared = make(map[types.ClassHash]struct{}, len(diff.DeclaredClasses))
		for _, e := range diff.DeclaredClasses {
			declared[e.ClassHash] = struct{}{}
		}
		deprecatedDeclared = make(map[types.ClassHash]struct{}, len(diff.DeprecatedDeclaredClasses))
		for _, h := range diff.DeprecatedDeclaredClasses {
			deprecatedDeclared[h] = struct{}{}
		}
	}

	for _, hash := range sortedClassHashes(classes) {
		if _, ok := declared[hash]; !ok {
			return &ErrClassNotDeclaredAtBlock{ClassHash: hash, BlockNumber: n}
		}
		raw, err := serialization.Encode(func(w serialization.Writer) error {
			return serialization.WriteContractClass(w, classes[hash])
		})
		if err != nil {
			return &kv.ErrSerialization{Table: kv.TableClassLocations, Err: err}
		}
		loc, err := t.files.Append(t.inner, types.FileKindContractClass, serialization.CompressWrap(raw))
		if err != nil {
			return err
		}
		if err := classLocationsTable.Insert(t.inner, hash, loc); err != nil {
			return err
		}
	}

	for _, hash := range sortedClassHashes(deprecated) {
		if _, ok := deprecatedDeclared[hash]; !ok {
			return &ErrClassNotDeclaredAtBlock{ClassHash: hash, BlockNumber: n}
		}
		if _, exists, err := deprecatedClassLocationsTable.Get(t.kv, hash); err != nil {
			return err
		} else if exists {
			// Declared before; the first declaration wins.
			continue
		}
		raw, err := serialization.Encode(func(w serialization.Writer) error {
			return serialization.WriteDeprecatedContractClass(w, deprecated[hash])
		})
		if err != nil {
			return &kv.ErrSerialization{Table: kv.TableDeprecatedClassLocations, Err: err}
		}
		loc, err := t.files.Append(t.inner, types.FileKindDeprecatedContractClass, serialization.CompressWrap(raw))
		if err != nil {
			return err
		}
		row := deprecatedClassRow{Block: n, Location: loc}
		if err := deprecatedClassLocationsTable.Insert(t.inner, hash, row); err != nil {
			return err
		}
	}

	return advanceMarker(t.inner, types.MarkerClass, n)
}

// RevertClasses undoes AppendClasses(n), deleting the locators of classes
// declared at n. Deprecated classes first declared at an earlier block
// keep their rows, mirroring the append-time skip.
func (t *RwTxn) RevertClasses(n types.BlockNumber) error {
	current, err := marker(t.kv, types.MarkerClass)
	if err != nil {
		return err
	}
	if current <= n {
		logger := log.WithBlockNumber(uint64(n))
		logger.Warn().Msg("storage: revert of unwritten classes is a no-op")
		return nil
	}
	if current != n.Next() {
		return &ErrInvalidRevert{RevertBlockNumber: n, Marker: current}
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RevertDuration, types.MarkerClass.String())

	// The state diff at n may itself already be reverted; classes then
	// have nothing left to look up and only the marker moves.
	diff, ok, err := t.GetStateDiff(n)
	if err != nil {
		return err
	}
	if ok {
		for _, e := range diff.DeclaredClasses {
			if err := classLocationsTable.Delete(t.inner, e.ClassHash); err != nil {
				return err
			}
		}
		for _, hash := range diff.DeprecatedDeclaredClasses {
			row, exists, err := deprecatedClassLocationsTable.Get(t.kv, hash)
			if err != nil {
				return err
			}
			if exists && row.Block == n {
				if err := deprecatedClassLocationsTable.Delete(t.inner, hash); err != nil {
					return err
				}
			}
		}
	}

	if err := retreatMarker(t.inner, types.MarkerClass, n); err != nil {
		return err
	}
	metrics.RevertsTotal.WithLabelValues(types.MarkerClass.String()).Inc()
	return nil
}

// AppendCasm writes the compiled form of a declared Cairo-1 class, then
// advances the CompiledClass marker past every block whose declared
// classes all have compiled forms.
func (t *RwTxn) AppendCasm(hash types.ClassHash, casm types.CasmContractClass) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.AppendDuration, types.MarkerCompiledClass.String())

	if _, ok, err := declaredClassesTable.Get(t.kv, hash); err != nil {
		return err
	} else if !ok {
		stateMarker, merr := marker(t.kv, types.MarkerState)
		if merr != nil {
			return merr
		}
		return &ErrClassNotDeclaredAtBlock{ClassHash: hash, BlockNumber: stateMarker}
	}

	raw, err := serialization.Encode(func(w serialization.Writer) error {
		return serialization.WriteCasmContractClass(w, casm)
	})
	if err != nil {
		return &kv.ErrSerialization{Table: kv.TableCasmLocations, Err: err}
	}
	loc, err := t.files.Append(t.inner, types.FileKindCasm, serialization.CompressWrap(raw))
	if err != nil {
		return err
	}
	if err := casmLocationsTable.Insert(t.inner, hash, loc); err != nil {
		return err
	}
	return t.advanceCompiledClassMarker()
}

// advanceCompiledClassMarker walks the CompiledClass marker forward while
// every Cairo-1 class declared at the marker block has a CASM row.
func (t *RwTxn) advanceCompiledClassMarker() error {
	m, err := marker(t.kv, types.MarkerCompiledClass)
	if err != nil {
		return err
	}
	stateMarker, err := marker(t.kv, types.MarkerState)
	if err != nil {
		return err
	}
	for m < stateMarker {
		diff, ok, err := t.GetStateDiff(m)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		complete := true
		for _, e := range diff.DeclaredClasses {
			if _, has, err := casmLocationsTable.Get(t.kv, e.ClassHash); err != nil {
				return err
			} else if !has {
				complete = false
				break
			}
		}
		if !complete {
			break
		}
		m = m.Next()
	}
	if err := markersTable.Upsert(t.inner, types.MarkerCompiledClass, m); err != nil {
		return err
	}
	metrics.MarkerBlockNumber.WithLabelValues(types.MarkerCompiledClass.String()).Set(float64(m))
	return nil
}

// RevertCasm undoes the CASM rows of the classes declared at block n and
// rolls the CompiledClass marker back to n.
func (t *RwTxn) RevertCasm(n types.BlockNumber) error {
	current, err := marker(t.kv, types.MarkerCompiledClass)
	if err != nil {
		return err
	}
	if current <= n {
		logger := log.WithBlockNumber(uint64(n))
		logger.Warn().Msg("storage: revert of unwritten compiled classes is a no-op")
		return nil
	}
	if current != n.Next() {
		return &ErrInvalidRevert{RevertBlockNumber: n, Marker: current}
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RevertDuration, types.MarkerCompiledClass.String())

	diff, ok, err := t.GetStateDiff(n)
	if err != nil {
		return err
	}
	if ok {
		for _, e := range diff.DeclaredClasses {
			if err := casmLocationsTable.Delete(t.inner, e.ClassHash); err != nil {
				return err
			}
		}
	}

	if err := retreatMarker(t.inner, types.MarkerCompiledClass, n); err != nil {
		return err
	}
	metrics.RevertsTotal.WithLabelValues(types.MarkerCompiledClass.String()).Inc()
	return nil
}
