/*
 * Copyright 2020 Guardtime, Inc.
 *
 * This file is part of the Guardtime client SDK.
 *
 * Licensed under the Apache License, Version 2.0 (the "License").
 * You may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *     http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES, CONDITIONS, OR OTHER LICENSES OF ANY KIND, either
 * express or implied. See the License for the specific language governing
 * permissions and limitations under the License.
 * "Guardtime" and "KSI" are trademarks or registered trademarks of
 * Guardtime, Inc., and no license to trademarks is granted; Guardtime
 * reserves and retains all trademark rights.
 */

package hash

import (
	"crypto/subtle"
	"fmt"
	"sync/atomic"

	"github.com/guardtime/ksicore/errors"
)

// DataHash is an immutable imprint with shared ownership. Clone() hands out another reference to the same instance
// and Free() releases one; the imprint is wiped when the last reference is released.
type DataHash struct {
	imprint [MaxImprintLen]byte
	length  int
	refs    atomic.Int32
}

// FromDigest returns a data hash for the given algorithm and digest.
//
// Possible return errors:
//   - KsiUnavailableHashAlgorithm in case the algorithm is not defined;
//   - KsiCryptoFailure in case the digest would not fit into MaxImprintLen;
//   - KsiInvalidFormatError in case the digest length does not match the algorithm.
func FromDigest(alg Algorithm, digest []byte) (*DataHash, error) {
	if !alg.Defined() {
		return nil, errors.New(errors.KsiUnavailableHashAlgorithm).
			AppendMessage(fmt.Sprintf("Hash algorithm is not defined: %d.", alg))
	}
	if len(digest)+1 > MaxImprintLen {
		return nil, errors.New(errors.KsiCryptoFailure).
			AppendMessage(fmt.Sprintf("Digest too long: %d.", len(digest)))
	}
	if len(digest) != alg.Size() {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("%s digest length mismatch: expected %d, got %d.", alg, alg.Size(), len(digest)))
	}

	h := &DataHash{length: len(digest) + 1}
	h.imprint[0] = byte(alg)
	copy(h.imprint[1:], digest)
	h.refs.Store(1)
	return h, nil
}

// FromImprint returns a data hash for the given raw imprint. The input is copied.
func FromImprint(imprint []byte) (*DataHash, error) {
	if len(imprint) == 0 {
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Empty imprint.")
	}
	return FromDigest(Algorithm(imprint[0]), imprint[1:])
}

// Zero returns the all-zero data hash of the given algorithm.
func Zero(alg Algorithm) (*DataHash, error) {
	if !alg.Defined() {
		return nil, errors.New(errors.KsiUnavailableHashAlgorithm).
			AppendMessage(fmt.Sprintf("Hash algorithm is not defined: %d.", alg))
	}
	return FromDigest(alg, make([]byte, alg.Size()))
}

// Algorithm returns the hash algorithm, or SHA_NA for a released or nil hash.
func (h *DataHash) Algorithm() Algorithm {
	if h == nil || h.length == 0 {
		return SHA_NA
	}
	return Algorithm(h.imprint[0])
}

// Digest returns a copy of the digest bytes.
func (h *DataHash) Digest() []byte {
	if h == nil || h.length == 0 {
		return nil
	}
	return append([]byte(nil), h.imprint[1:h.length]...)
}

// Imprint returns a copy of the imprint bytes.
func (h *DataHash) Imprint() Imprint {
	if h == nil || h.length == 0 {
		return nil
	}
	return append(Imprint(nil), h.imprint[:h.length]...)
}

// Len returns the imprint length in bytes.
func (h *DataHash) Len() int {
	if h == nil {
		return 0
	}
	return h.length
}

// Equal reports whether both hashes have identical imprints, algorithm id included.
func (h *DataHash) Equal(o *DataHash) bool {
	if h == nil || o == nil || h.length == 0 || h.length != o.length {
		return false
	}
	return subtle.ConstantTimeCompare(h.imprint[:h.length], o.imprint[:o.length]) == 1
}

// IsZero reports whether the digest consists of zero bytes only.
func (h *DataHash) IsZero() bool {
	if h == nil || h.length == 0 {
		return false
	}
	for _, b := range h.imprint[1:h.length] {
		if b != 0 {
			return false
		}
	}
	return true
}

// Clone returns the receiver with its reference count incremented. No bytes are copied.
func (h *DataHash) Clone() *DataHash {
	if h == nil {
		return nil
	}
	h.refs.Add(1)
	return h
}

// Free releases one reference. The imprint is wiped when the last reference is released.
func (h *DataHash) Free() {
	if h == nil {
		return
	}
	if h.refs.Add(-1) <= 0 {
		h.imprint = [MaxImprintLen]byte{}
		h.length = 0
	}
}

// RefCount returns the current number of references.
func (h *DataHash) RefCount() int {
	if h == nil {
		return 0
	}
	return int(h.refs.Load())
}

// String returns "<algorithm>:<hex digest>".
func (h *DataHash) String() string {
	return h.Imprint().String()
}
