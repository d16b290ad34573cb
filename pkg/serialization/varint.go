package serialization

import "io"

// WriteCompactLength writes n as a base-128, little-endian varint whose
// top bit is a continuation flag. The encoding never exceeds 4 bytes,
// which bounds n to 2^28-1; callers never exceed that for the
// collections stored by this engine.
func WriteCompactLength(w io.ByteWriter, n uint64) error {
	if n >= 1<<28 {
		return ErrLengthTooLarge
	}
	for i := 0; i < 4; i++ {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return w.WriteByte(b)
		}
		if err := w.WriteByte(b | 0x80); err != nil {
			return err
		}
	}
	return ErrLengthTooLarge
}

// ReadCompactLength reads a length previously written by
// WriteCompactLength.
func ReadCompactLength(r io.ByteReader) (uint64, error) {
	var n uint64
	for i := 0; i < 4; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		n |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return n, nil
		}
	}
	return 0, ErrLengthTooLarge
}
