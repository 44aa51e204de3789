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
	"hash"

	"github.com/guardtime/ksicore/errors"
)

// DataHasher is the streaming data hash computation object: open with (Algorithm).New(), add data with Write() and
// finish with Close().
type DataHasher struct {
	algo Algorithm
	hsr  hash.Hash
}

// New returns new hasher for the given hash algorithm.
// Returns KsiUnavailableHashAlgorithm error if no provider is registered for the algorithm.
func (a Algorithm) New() (*DataHasher, error) {
	hFunc, err := a.HashFunc()
	if err != nil {
		return nil, err
	}
	return &DataHasher{
		algo: a,
		hsr:  hFunc,
	}, nil
}

// Write (via the embedded io.Writer interface) adds more data to the running hash.
// In case of KsiInvalidArgumentError error (e.g. h is nil), function returns non
// standard -1 as count of bytes written.
func (h *DataHasher) Write(p []byte) (int, error) {
	if h == nil || h.hsr == nil {
		return -1, errors.New(errors.KsiInvalidArgumentError)
	}
	n, err := h.hsr.Write(p)
	if err != nil {
		return n, errors.New(errors.KsiCryptoFailure).SetExtError(err)
	}
	return n, nil
}

// Imprint returns KSI imprint for the current computation. It does not change the underlying hash state.
func (h *DataHasher) Imprint() (Imprint, error) {
	if h == nil || h.hsr == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return h.sum(), nil
}

// Close finishes the computation and returns the result as a data hash. The hasher is reset and can be reused.
func (h *DataHasher) Close() (*DataHash, error) {
	if h == nil || h.hsr == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	defer h.hsr.Reset()
	return FromImprint(h.sum())
}

func (h *DataHasher) sum() Imprint {
	imprint := make([]byte, 1, 1+h.hsr.Size())
	imprint[0] = byte(h.algo)
	return h.hsr.Sum(imprint)
}

// Algorithm returns the hash algorithm of the hasher.
func (h *DataHasher) Algorithm() Algorithm {
	if h == nil {
		return SHA_NA
	}
	return h.algo
}

// Reset resets the hasher to its initial state.
func (h *DataHasher) Reset() {
	if h == nil || h.hsr == nil {
		return
	}
	h.hsr.Reset()
}

// Size returns the resulting digest length in bytes for the given hash function.
// In case of an error, a negative value is returned.
func (h *DataHasher) Size() int {
	if h == nil || h.hsr == nil {
		return -1
	}
	return h.algo.Size()
}

// BlockSize returns the hash's underlying block size.
// In case of an error, a negative value is returned.
func (h *DataHasher) BlockSize() int {
	if h == nil || h.hsr == nil {
		return -1
	}
	return h.algo.BlockSize()
}

// Sum is a one-shot helper that hashes data with the given algorithm.
func Sum(alg Algorithm, data ...[]byte) (*DataHash, error) {
	hsr, err := alg.New()
	if err != nil {
		return nil, err
	}
	for _, d := range data {
		if _, err := hsr.Write(d); err != nil {
			return nil, err
		}
	}
	return hsr.Close()
}
