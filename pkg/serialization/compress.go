package serialization

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// compressionThreshold is the encoded-length cutoff above which
// CompressWrap emits a zstd-compressed payload instead of the raw bytes.
// Time-indexed tables never wrap with this: their values
// are read independent of key order, but the wrapper itself is agnostic
// to that and it is simply never called there (see pkg/storage/state.go).
const compressionThreshold = 512

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder

	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func getEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			panic(err) // zstd.NewWriter(nil) with default options never fails
		}
		encoder = enc
	})
	return encoder
}

func getDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			panic(err)
		}
		decoder = dec
	})
	return decoder
}

// CompressWrap encodes data as [0]·data when len(data) <= threshold, or
// [1]·zstd(data) otherwise.
func CompressWrap(data []byte) []byte {
	if len(data) <= compressionThreshold {
		out := make([]byte, 1+len(data))
		out[0] = 0
		copy(out[1:], data)
		return out
	}
	compressed := getEncoder().EncodeAll(data, make([]byte, 0, len(data)))
	out := make([]byte, 1+len(compressed))
	out[0] = 1
	copy(out[1:], compressed)
	return out
}

// CompressUnwrap reverses CompressWrap.
func CompressUnwrap(wrapped []byte) ([]byte, error) {
	if len(wrapped) == 0 {
		return nil, ErrMalformed
	}
	tag, payload := wrapped[0], wrapped[1:]
	switch tag {
	case 0:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case 1:
		return getDecoder().DecodeAll(payload, nil)
	default:
		return nil, ErrMalformed
	}
}
