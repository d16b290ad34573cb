package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/papyrus-go/pkg/types"
)

func testClass(low byte) types.ContractClass {
	return types.ContractClass{
		SierraProgram: []types.Felt{felt(low), felt(low + 1)},
		ABI:           []byte(`[{"type":"function","name":"transfer"}]`),
		EntryPoints: map[types.EntryPointType][]types.EntryPoint{
			types.EntryPointTypeExternal: {{Selector: felt(low), Offset: 0}},
		},
		Version: "0.1.0",
	}
}

func testDeprecatedClass() types.DeprecatedContractClass {
	return types.DeprecatedContractClass{
		Program: []byte(`{"builtins":["pedersen","range_check"]}`),
		ABI:     []byte(`[]`),
		EntryPoints: map[types.EntryPointType][]types.DeprecatedEntryPoint{
			types.EntryPointTypeExternal: {{Selector: felt(0x07), Offset: 8}},
		},
	}
}

// declareAt appends a state diff at n declaring the given class hashes.
func declareAt(t *testing.T, w *Writer, n types.BlockNumber, cairo1 []types.ClassHash, deprecated []types.ClassHash) {
	t.Helper()
	diff := types.NewThinStateDiff()
	for _, h := range cairo1 {
		diff.DeclaredClasses = append(diff.DeclaredClasses, types.DeclaredClassEntry{
			ClassHash:         h,
			CompiledClassHash: felt(h[31] + 1),
		})
	}
	diff.DeprecatedDeclaredClasses = deprecated
	appendTestDiff(t, w, n, diff)
}

func TestAppendClassesAndLookup(t *testing.T) {
	reader, writer := openTest(t)

	cl0, dep0 := felt(0xD0), felt(0xD1)
	declareAt(t, writer, 0, []types.ClassHash{cl0}, []types.ClassHash{dep0})

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendClasses(0,
		map[types.ClassHash]types.ContractClass{cl0: testClass(0x01)},
		map[types.ClassHash]types.DeprecatedContractClass{dep0: testDeprecatedClass()},
	))
	require.NoError(t, txn.Commit())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	m, err := ro.Marker(types.MarkerClass)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), m)

	class, ok, err := ro.GetClass(cl0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testClass(0x01), class)

	depClass, declaredAt, ok, err := ro.GetDeprecatedClass(dep0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.BlockNumber(0), declaredAt)
	assert.Equal(t, testDeprecatedClass(), depClass)
}

func TestAppendClassesNotDeclared(t *testing.T) {
	_, writer := openTest(t)

	declareAt(t, writer, 0, nil, nil)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	err = txn.AppendClasses(0, map[types.ClassHash]types.ContractClass{felt(0xD0): testClass(0x01)}, nil)
	var notDeclared *ErrClassNotDeclaredAtBlock
	require.ErrorAs(t, err, &notDeclared)
	assert.Equal(t, felt(0xD0), notDeclared.ClassHash)
}

func TestDeprecatedClassFirstDeclarationWins(t *testing.T) {
	reader, writer := openTest(t)

	dep := felt(0xD1)
	declareAt(t, writer, 0, nil, []types.ClassHash{dep})
	declareAt(t, writer, 1, nil, []types.ClassHash{dep})

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendClasses(0, nil,
		map[types.ClassHash]types.DeprecatedContractClass{dep: testDeprecatedClass()}))
	// Block 1 re-declares the same class; the append is a silent skip.
	require.NoError(t, txn.AppendClasses(1, nil,
		map[types.ClassHash]types.DeprecatedContractClass{dep: testDeprecatedClass()}))
	require.NoError(t, txn.Commit())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	_, declaredAt, ok, err := ro.GetDeprecatedClass(dep)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.BlockNumber(0), declaredAt)
}

func TestRevertPreservesEarlierDeclaredClass(t *testing.T) {
	reader, writer := openTest(t)

	cl0 := felt(0xD0)
	declareAt(t, writer, 0, []types.ClassHash{cl0}, nil)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendClasses(0, map[types.ClassHash]types.ContractClass{cl0: testClass(0x01)}, nil))
	require.NoError(t, txn.Commit())

	// Block 1 declares nothing new.
	declareAt(t, writer, 1, nil, nil)
	txn, err = writer.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendClasses(1, nil, nil))
	_, err = txn.RevertStateDiff(1)
	require.NoError(t, err)
	require.NoError(t, txn.RevertClasses(1))
	require.NoError(t, txn.Commit())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	class, ok, err := ro.GetClass(cl0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testClass(0x01), class)
}

func TestRevertClasses(t *testing.T) {
	reader, writer := openTest(t)

	cl0 := felt(0xD0)
	declareAt(t, writer, 0, []types.ClassHash{cl0}, nil)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendClasses(0, map[types.ClassHash]types.ContractClass{cl0: testClass(0x01)}, nil))
	require.NoError(t, txn.RevertClasses(0))
	require.NoError(t, txn.Commit())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	_, ok, err := ro.GetClass(cl0)
	require.NoError(t, err)
	assert.False(t, ok)

	m, err := ro.Marker(types.MarkerClass)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(0), m)
}

func testCasm() types.CasmContractClass {
	return types.CasmContractClass{
		Bytecode: []types.Felt{felt(0x01), felt(0x02)},
		Hints:    []byte(`[]`),
		EntryPoints: map[types.EntryPointType][]types.CasmEntryPoint{
			types.EntryPointTypeExternal: {{Selector: felt(0x03), Offset: 0, Builtins: []string{"range_check"}}},
		},
	}
}

func TestAppendCasmAdvancesMarker(t *testing.T) {
	reader, writer := openTest(t)

	cl0, cl1 := felt(0xD0), felt(0xD2)
	declareAt(t, writer, 0, []types.ClassHash{cl0}, nil)
	declareAt(t, writer, 1, []types.ClassHash{cl1}, nil)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendCasm(cl0, testCasm()))
	require.NoError(t, txn.Commit())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	m, err := ro.Marker(types.MarkerCompiledClass)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), m)

	casm, ok, err := ro.GetCasm(cl0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testCasm(), casm)
	ro.Abort()

	txn, err = writer.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendCasm(cl1, testCasm()))
	require.NoError(t, txn.Commit())

	ro, err = reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()
	m, err = ro.Marker(types.MarkerCompiledClass)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(2), m)
}

func TestAppendCasmUndeclared(t *testing.T) {
	_, writer := openTest(t)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	defer txn.Abort()

	err = txn.AppendCasm(felt(0xD0), testCasm())
	var notDeclared *ErrClassNotDeclaredAtBlock
	require.ErrorAs(t, err, &notDeclared)
}

func TestRevertCasm(t *testing.T) {
	reader, writer := openTest(t)

	cl0 := felt(0xD0)
	declareAt(t, writer, 0, []types.ClassHash{cl0}, nil)

	txn, err := writer.BeginRW()
	require.NoError(t, err)
	require.NoError(t, txn.AppendCasm(cl0, testCasm()))
	require.NoError(t, txn.RevertCasm(0))
	require.NoError(t, txn.Commit())

	ro, err := reader.BeginRO()
	require.NoError(t, err)
	defer ro.Abort()

	_, ok, err := ro.GetCasm(cl0)
	require.NoError(t, err)
	assert.False(t, ok)

	m, err := ro.Marker(types.MarkerCompiledClass)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(0), m)
}
