package kv

// Table names, one mdbx DBI each. Naming and per-table key/value shape
// comments follow the convention of listing "key -> value" directly next
// to the constant.
const (
	// TableHeaders: block_number_be -> BlockHeader.
	TableHeaders = "headers"
	// TableBlockHashToNumber: block_hash -> block_number_be.
	TableBlockHashToNumber = "block_hash_to_number"
	// TableBlockSignatures: block_number_be -> BlockSignature.
	TableBlockSignatures = "block_signatures"
	// TableStarknetVersion: block_number_be -> version string, sparse (only
	// written on change; reads walk back to the last key <= target).
	TableStarknetVersion = "starknet_version"

	// TableTransactions: (block_number_be, tx_offset_be) -> Transaction,
	// CommonPrefix.
	TableTransactions = "transactions"
	// TableTransactionOutputs: (block_number_be, tx_offset_be) ->
	// TransactionOutput, CommonPrefix.
	TableTransactionOutputs = "transaction_outputs"
	// TableTransactionHashToIdx: tx_hash -> (block_number_be, tx_offset_be).
	TableTransactionHashToIdx = "transaction_hash_to_idx"
	// TableEvents: (from_address, block_number_be, tx_offset_be) ->
	// [(offset_in_tx, keys, data)], CommonPrefix: the per-contract event
	// index, scanned in (contract, tx_index) order.
	TableEvents = "events"
	// TableDeployedContracts: (contract_address, block_number_be) ->
	// class_hash, CommonPrefix, time-indexed.
	TableDeployedContracts = "deployed_contracts"
	// TableNonces: (contract_address, block_number_be) -> Felt (nonce),
	// CommonPrefix, time-indexed.
	TableNonces = "nonces"
	// TableContractStorage: (contract_address||storage_key,
	// block_number_be) -> Felt, CommonPrefix, time-indexed.
	TableContractStorage = "contract_storage"
	// TableDeclaredClasses: class_hash -> (block_number_be,
	// compiled_class_hash): the declaration block and compiled-class hash
	// of every Cairo-1 class, written by the state subsystem.
	TableDeclaredClasses = "declared_classes"

	// TableClassLocations: class_hash -> FileLocation, into the
	// contract_class file.
	TableClassLocations = "class_locations"
	// TableDeprecatedClassLocations: class_hash -> (block_number_be,
	// FileLocation), into the deprecated_contract_class file; the block is
	// the first one that declared the class.
	TableDeprecatedClassLocations = "deprecated_class_locations"
	// TableCasmLocations: class_hash -> FileLocation, into the casm file.
	TableCasmLocations = "casm_locations"
	// TableStateDiffLocations: block_number_be -> FileLocation, into the
	// thin_state_diff file.
	TableStateDiffLocations = "state_diff_locations"

	// TableBaseLayer: fixed key 0x00 -> (block_number_be, block_hash), the
	// newest block known to be proven on the base layer.
	TableBaseLayer = "base_layer"

	// TableMarkers: marker_kind (1 byte) -> block_number_be, the
	// exclusive upper bound of committed data per subsystem.
	TableMarkers = "markers"
	// TableStorageVersion: named keys "storage_version_state" and
	// "storage_version_blocks" -> Version, and "storage_scope" -> scope
	// string; written at creation, checked on every open, and rewritten
	// by minor-version migrations.
	TableStorageVersion = "storage_version"
	// TableFileOffsets: file_kind (1 byte) -> next_write_offset_be, one
	// row per append-only file.
	TableFileOffsets = "file_offsets"
)

// allTableNames enumerates every DBI createTables must open; also bounds
// mdbx.OptMaxDB.
var allTableNames = []string{
	TableHeaders,
	TableBlockHashToNumber,
	TableBlockSignatures,
	TableStarknetVersion,
	TableTransactions,
	TableTransactionOutputs,
	TableTransactionHashToIdx,
	TableEvents,
	TableDeployedContracts,
	TableNonces,
	TableContractStorage,
	TableDeclaredClasses,
	TableClassLocations,
	TableDeprecatedClassLocations,
	TableCasmLocations,
	TableStateDiffLocations,
	TableBaseLayer,
	TableMarkers,
	TableStorageVersion,
	TableFileOffsets,
}
