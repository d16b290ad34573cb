/*
Package storage is the block-structured storage engine: the durable,
append-only, reorg-aware layer mapping block numbers to headers, bodies,
state diffs, and class definitions, with a time-indexed state reader on
top.

Open brings up a chain directory and returns the two handles: a Reader
yielding any number of snapshot read transactions, and a Writer yielding
the single read-write transaction. Every subsystem (header, body, state,
class, compiled-class, base-layer) exposes append/revert operations on
RwTxn gated by its block-number marker, and read operations shared by
RoTxn and RwTxn.

Appends must arrive in block order per subsystem; reverts must be issued
from the tip inward. Large blobs (class definitions, CASM, thin state
diffs) live in append-only files managed by pkg/fileappend, with the KV
tables holding only (offset,length) locators.
*/
package storage
