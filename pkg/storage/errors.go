package storage

import (
	"errors"
	"fmt"

	"github.com/starkware-libs/papyrus-go/pkg/types"
)

// ErrMarkerMismatch is returned by every append_* when block_number does
// not equal the subsystem's current marker. Expected is that marker and
// Found the block number passed in; the caller should re-sync from
// Expected rather than retry blindly.
type ErrMarkerMismatch struct {
	Subsystem types.MarkerKind
	Expected  types.BlockNumber
	Found     types.BlockNumber
}

func (e *ErrMarkerMismatch) Error() string {
	return fmt.Sprintf("storage: marker mismatch on %s: expected %d, got %d", e.Subsystem, e.Expected, e.Found)
}

// ErrBlockHashAlreadyExists is returned by AppendHeader when the header's
// block hash already maps to a different block number.
type ErrBlockHashAlreadyExists struct {
	Hash types.BlockHash
}

func (e *ErrBlockHashAlreadyExists) Error() string {
	return fmt.Sprintf("storage: block hash already exists: %x", e.Hash)
}

// ErrTransactionHashAlreadyExists is returned by AppendBody when a
// transaction hash collides with one already stored, violating the
// global uniqueness invariant.
type ErrTransactionHashAlreadyExists struct {
	Hash    types.TransactionHash
	TxIndex types.TxIndex
}

func (e *ErrTransactionHashAlreadyExists) Error() string {
	return fmt.Sprintf("storage: transaction hash already exists: %x at %+v", e.Hash, e.TxIndex)
}

// ErrContractAlreadyExists is returned by AppendStateDiff when a contract
// the diff deploys is already deployed at an earlier block.
type ErrContractAlreadyExists struct {
	Address types.ContractAddress
}

func (e *ErrContractAlreadyExists) Error() string {
	return fmt.Sprintf("storage: contract already deployed: %x", e.Address)
}

// ErrClassAlreadyExists is returned by AppendStateDiff when a declared
// class hash is already mapped to a different compiled-class hash.
type ErrClassAlreadyExists struct {
	ClassHash types.ClassHash
}

func (e *ErrClassAlreadyExists) Error() string {
	return fmt.Sprintf("storage: class already declared with a different compiled-class hash: %x", e.ClassHash)
}

// ErrNonceReWrite is returned by AppendStateDiff when a nonce row already
// exists for (contract, block).
type ErrNonceReWrite struct {
	Address     types.ContractAddress
	BlockNumber types.BlockNumber
}

func (e *ErrNonceReWrite) Error() string {
	return fmt.Sprintf("storage: nonce already written for contract %x at block %d", e.Address, e.BlockNumber)
}

// ErrInvalidRevert is returned when revert_X(N) is asked to revert a
// block that is not at the tip of subsystem X.
type ErrInvalidRevert struct {
	RevertBlockNumber types.BlockNumber
	Marker            types.BlockNumber
}

func (e *ErrInvalidRevert) Error() string {
	return fmt.Sprintf("storage: invalid revert: asked to revert block %d but marker is %d", e.RevertBlockNumber, e.Marker)
}

// ErrClassNotDeclaredAtBlock is returned by AppendClasses/AppendCasm when
// a class hash was not declared by the state diff at the block being
// appended.
type ErrClassNotDeclaredAtBlock struct {
	ClassHash   types.ClassHash
	BlockNumber types.BlockNumber
}

func (e *ErrClassNotDeclaredAtBlock) Error() string {
	return fmt.Sprintf("storage: class %x was not declared at block %d", e.ClassHash, e.BlockNumber)
}

// ErrInconsistentStorageVersion is returned at open when the on-disk
// major version differs from this build's.
var ErrInconsistentStorageVersion = errors.New("storage: on-disk major version is incompatible with this build")

// ErrSetLowerVersion is returned when a migration would decrease the
// on-disk minor version.
var ErrSetLowerVersion = errors.New("storage: refusing to lower the on-disk minor version")

// ErrSetMajorVersion is returned when a migration would change the
// on-disk major version; only minor migrations are supported in place.
var ErrSetMajorVersion = errors.New("storage: refusing to change the on-disk major version")

// ErrScopeDowngrade is returned at open when the requested scope is less
// retentive than the on-disk scope.
var ErrScopeDowngrade = errors.New("storage: cannot downgrade scope from FullArchive to StateOnly")

// ErrScopeUpgradeRequiresResync is returned at open when a StateOnly
// directory is asked to open as FullArchive; the dropped per-block data
// cannot be recreated in place.
var ErrScopeUpgradeRequiresResync = errors.New("storage: scope upgrade to FullArchive requires a re-sync into a fresh directory")

// ErrHeaderNotFound is returned by AppendSignature when no header exists
// yet at the target block, and by RevertHeader when the tip's header row
// is missing.
var ErrHeaderNotFound = errors.New("storage: no header at this block")
