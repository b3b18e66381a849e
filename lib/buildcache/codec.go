// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildcache

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// magic starts every entry file. The last byte is the format version.
var magic = [4]byte{'b', 'c', 'c', 1}

const digestSize = 32

// digestKey is the BLAKE3 key for entry digests.
var digestKey = [32]byte{
	'b', 'u', 'i', 'l', 'd', 'c', 'o', 'n', 's', 'o', 'l', 'e', '.', 'c', 'a', 'c',
	'h', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	// Deterministic encoding, so identical results produce identical
	// files. Times keep nanoseconds and their zone offset.
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("buildcache: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("buildcache: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("buildcache: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxPayloadSize))
	if err != nil {
		panic("buildcache: zstd decoder initialization failed: " + err.Error())
	}
}

// maxPayloadSize bounds a decompressed entry. Build output is large
// but not this large.
const maxPayloadSize = 256 << 20

// digest is the keyed BLAKE3 hash of data.
func digest(data []byte) [digestSize]byte {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("buildcache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var sum [digestSize]byte
	copy(sum[:], hasher.Sum(nil))
	return sum
}

// encodeEntry produces the file contents for entry.
func encodeEntry(entry Entry) ([]byte, error) {
	payload, err := encMode.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding entry %s: %w", entry.BuildID, err)
	}
	sum := digest(payload)

	file := make([]byte, 0, len(magic)+digestSize+len(payload)/2)
	file = append(file, magic[:]...)
	file = append(file, sum[:]...)
	return zstdEncoder.EncodeAll(payload, file), nil
}

// decodeEntry parses file contents, verifying the digest.
func decodeEntry(file []byte) (Entry, error) {
	if len(file) < len(magic)+digestSize || [4]byte(file[:4]) != magic {
		return Entry{}, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	var want [digestSize]byte
	copy(want[:], file[len(magic):len(magic)+digestSize])

	payload, err := zstdDecoder.DecodeAll(file[len(magic)+digestSize:], nil)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: decompressing: %v", ErrCorrupt, err)
	}
	if digest(payload) != want {
		return Entry{}, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}

	var entry Entry
	if err := decMode.Unmarshal(payload, &entry); err != nil {
		return Entry{}, fmt.Errorf("%w: decoding: %v", ErrCorrupt, err)
	}
	return entry, nil
}
