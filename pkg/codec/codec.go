// Copyright 2026 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package codec provides payload compression and integrity checksums
// for the chunk engine. Compression is zstd at the default level;
// checksums are BLAKE3 over the original, pre-compression payload so a
// mismatch always means the stored data differs from what the caller
// wrote, independent of the codec.
package codec

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ErrIncompressible is returned by Compress when the compressed output
// would not be smaller than the input. The caller stores the raw bytes
// instead so stored size never exceeds original size.
var ErrIncompressible = errors.New("data is incompressible")

// The encoder and decoder are reused across calls to avoid repeated
// initialization overhead. Both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress returns the zstd-compressed form of data, or
// ErrIncompressible when compression would not shrink it.
func Compress(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, ErrIncompressible
	}
	return compressed, nil
}

// Decompress reverses Compress. The originalSize must match the
// pre-compression length exactly; a corrupt stream or a length
// mismatch is an error, never a truncated result.
func Decompress(compressed []byte, originalSize int) ([]byte, error) {
	destination := make([]byte, 0, originalSize)
	result, err := zstdDecoder.DecodeAll(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != originalSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), originalSize)
	}
	return result, nil
}
