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

package codec

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Checksum is a 32-byte BLAKE3 digest of a payload.
type Checksum [32]byte

// Sum computes the checksum of data.
func Sum(data []byte) Checksum {
	return Checksum(blake3.Sum256(data))
}

// String returns the hex encoding used in manifests and logs.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// ParseChecksum parses a 64-character hex string into a Checksum.
func ParseChecksum(s string) (Checksum, error) {
	var c Checksum
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("parsing checksum: %w", err)
	}
	if len(decoded) != len(c) {
		return c, fmt.Errorf("checksum is %d bytes, want %d", len(decoded), len(c))
	}
	copy(c[:], decoded)
	return c, nil
}
