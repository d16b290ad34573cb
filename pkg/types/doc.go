/*
Package types defines the core domain model of the storage engine.

It holds no behavior beyond small value-type helpers (BlockNumber.Next,
Felt.IsZero, MarkerKind.String): every other package in this module
imports types for the shapes it reads and writes, never the reverse.

# Core Types

Identity and ordering:

  - Felt: a 32-byte field element; BlockHash, TransactionHash, ClassHash,
    CompiledClassHash, ContractAddress, StorageKey, and Nonce are all
    Felt aliases.
  - BlockNumber, TxOffset, TxIndex, EventIndex: the ordering keys used by
    every time-indexed table in pkg/storage.

Chain data:

  - BlockHeader, BlockSignature: per-block metadata (pkg/storage/header.go).
  - Transaction, TransactionOutput: per-transaction data and receipts
    (pkg/storage/body.go).
  - ThinStateDiff: the per-block state delta (pkg/storage/state.go).
  - ContractClass, DeprecatedContractClass, CasmContractClass: the three
    class shapes (pkg/storage/class.go).

Storage plumbing:

  - FileLocation, FileKind: locators into the append-only blob files
    (pkg/fileappend).
  - Scope, Version: the on-disk compatibility gate (pkg/storage/version.go).
  - MarkerKind: the seven per-subsystem highwater marks
    (pkg/storage/markers.go).

# Design notes

Types here carry no encoding tags and no database-specific hints;
pkg/serialization owns the canonical on-disk byte layout for every type
that is actually stored, independent of how the type is declared here.
Optional header fields (TransactionCommitment, EventCommitment,
StateDiffLength) are plain Go pointers rather than a tri-state wrapper:
nil means "absent", matching the codec's Option encoding.
*/
package types
