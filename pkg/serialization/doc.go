/*
Package serialization is the canonical, versioned binary codec for every
type pkg/storage writes to or reads from the key-value engine and the
append-only file store.

Every stored type gets a Write/Read pair (e.g. WriteBlockHeader /
ReadBlockHeader): Write encodes into a Writer (an io.Writer + io.ByteWriter,
satisfied by *bytes.Buffer), Read decodes from a Reader (*bytes.Reader).
Encode/Decode wrap a single Write/Read call around a fresh buffer for
callers that just want []byte in, value out.

# Rules

Integers are big-endian and fixed-width; for ordering-significant keys
(BlockNumber, TxOffset, Nonce) this makes lexicographic byte order match
natural numeric order, which every time-indexed table's cursor
lower-bound depends on. Variable-length data is length-prefixed with a
compact base-128 varint (WriteCompactLength / ReadCompactLength, capped
at 4 bytes). Enum variants carry a one-byte tag matching their Go
iota definition order; an unrecognized tag decodes to ErrMalformed rather
than panicking. Option[T] is 1 byte present-flag plus T, or a single 0
byte.

CompressWrap/CompressUnwrap optionally wrap an already-encoded payload in
zstd when it exceeds 512 bytes; pkg/storage applies this to blobs in the
append-only file store, never to rows in time-indexed tables whose
key-order must be independent of value size.
*/
package serialization
