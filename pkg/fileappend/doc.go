/*
Package fileappend holds the four append-only, memory-mapped blob files
behind the storage engine's large objects: contract_class, casm,
deprecated_contract_class, and thin_state_diff. The KV engine
(pkg/kv) never stores these blobs directly, only the (offset,length)
FileLocation locator Append returns.

Each file grows in fixed-size, page-aligned steps via truncate+remap.
Append takes the owning *kv.RwTxn and upserts the file's next-write
offset into the file_offsets table as part of that same transaction, so
a locator is only ever visible to a KV reader once its bytes are
guaranteed present in the file.
*/
package fileappend
