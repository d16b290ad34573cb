package serialization

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/starkware-libs/papyrus-go/pkg/types"
)

// Writer is the sink every Write* function encodes into. *bytes.Buffer
// satisfies it, which is what Encode passes when a caller needs an
// encoded row or blob.
type Writer interface {
	io.Writer
	io.ByteWriter
}

// Reader is the source every Read* function decodes from. *bytes.Reader
// satisfies it.
type Reader interface {
	io.Reader
	io.ByteReader
}

// WriteUint64 writes v as a fixed-width, big-endian integer so that
// lexicographic byte order equals natural numeric order -- required by
// every time-indexed table's cursor lower-bound semantics.
func WriteUint64(w Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint64 reads a value written by WriteUint64.
func ReadUint64(r Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// WriteUint32 writes a fixed-width, big-endian uint32.
func WriteUint32(w Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint32 reads a value written by WriteUint32.
func ReadUint32(r Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// WriteUint8 writes a single byte.
func WriteUint8(w Writer, v uint8) error {
	return w.WriteByte(v)
}

// ReadUint8 reads a single byte.
func ReadUint8(r Reader) (uint8, error) {
	return r.ReadByte()
}

// WriteBool writes a boolean as a single 0/1 byte.
func WriteBool(w Writer, v bool) error {
	if v {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

// ReadBool reads a boolean written by WriteBool. Any nonzero byte decodes
// to true.
func ReadBool(r Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// WriteBytes writes a compact-length prefix followed by the raw bytes.
func WriteBytes(w Writer, b []byte) error {
	if err := WriteCompactLength(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadBytes reads a value written by WriteBytes.
func ReadBytes(r Reader) ([]byte, error) {
	n, err := ReadCompactLength(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteString writes a UTF-8 string the same way as WriteBytes.
func WriteString(w Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads a value written by WriteString.
func ReadString(r Reader) (string, error) {
	b, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteFelt writes a 32-byte field element raw, with no length prefix.
func WriteFelt(w Writer, f types.Felt) error {
	_, err := w.Write(f[:])
	return err
}

// ReadFelt reads a value written by WriteFelt.
func ReadFelt(r Reader) (types.Felt, error) {
	var f types.Felt
	if _, err := io.ReadFull(r, f[:]); err != nil {
		return f, err
	}
	return f, nil
}

// WriteLen writes a collection length as a compact length prefix. Callers
// use it ahead of a manual per-element write loop for Write* functions
// that need more control than WriteSlice offers (e.g. the map writers in
// types.go, which sort their keys before writing the entries).
func WriteLen(w Writer, n int) error {
	return WriteCompactLength(w, uint64(n))
}

// ReadLen reads a value written by WriteLen, bounded by maxLen to reject
// corrupt lengths before they are used to size an allocation.
func ReadLen(r Reader, maxLen uint64) (int, error) {
	n, err := ReadCompactLength(r)
	if err != nil {
		return 0, err
	}
	if n > maxLen {
		return 0, ErrMalformed
	}
	return int(n), nil
}

// WriteSlice writes len(items) followed by each element, encoded by
// write.
func WriteSlice[T any](w Writer, items []T, write func(Writer, T) error) error {
	if err := WriteLen(w, len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := write(w, item); err != nil {
			return err
		}
	}
	return nil
}

// ReadSlice reads a value written by WriteSlice. maxLen bounds the
// decoded length against corrupt input.
func ReadSlice[T any](r Reader, maxLen uint64, read func(Reader) (T, error)) ([]T, error) {
	n, err := ReadLen(r, maxLen)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	items := make([]T, n)
	for i := range items {
		v, err := read(r)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}

// WriteOption writes a present flag followed by the value when present:
// a 1 byte then the encoded value, or a single 0 byte for absent.
func WriteOption[T any](w Writer, v *T, write func(Writer, T) error) error {
	if v == nil {
		return w.WriteByte(0)
	}
	if err := w.WriteByte(1); err != nil {
		return err
	}
	return write(w, *v)
}

// ReadOption reads a value written by WriteOption.
func ReadOption[T any](r Reader, read func(Reader) (T, error)) (*T, error) {
	present, err := ReadBool(r)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	v, err := read(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Encode runs write against a fresh buffer and returns its bytes. It is
// the entry point every per-type Write wrapper in types.go uses to
// produce the []byte handed to pkg/kv or pkg/fileappend.
func Encode(write func(Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode runs read against data, wrapped in a *bytes.Reader.
func Decode[T any](data []byte, read func(Reader) (T, error)) (T, error) {
	return read(bytes.NewReader(data))
}
