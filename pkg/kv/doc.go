/*
Package kv is the embedded key-value engine pkg/storage is built on: a
single mdbx environment (github.com/erigontech/mdbx-go), one writer
transaction at a time, any number of concurrent MVCC snapshot readers.

Open brings up the environment and creates every table named in
tables.go. NewReader/NewWriter hand out Reader and Writer, whose
BeginRO/BeginRW start RoTxn/RwTxn. Table and CommonPrefixTable are typed
wrappers over a named DBI: Table for one-value-per-key tables, and
CommonPrefixTable for tables keyed by a flattened K0||K1 concatenation,
where every row sharing K0 clusters under one lexicographic prefix and
SeekAsOf answers "largest K1 <= target under this K0" -- the primitive
every time-indexed state read in pkg/storage is built on.
*/
package kv
