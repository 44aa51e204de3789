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

// Package hmac implements the Keyed-Hash Message Authentication Code (HMAC) computation used to protect the
// aggregation and extension PDUs.
//
// The computed HMAC is represented as an imprint, where the first byte identifies the underlying hash algorithm.
package hmac

import (
	"crypto/hmac"
	"fmt"
	"hash"

	"github.com/guardtime/ksicore/errors"
	ksihash "github.com/guardtime/ksicore/hash"
)

// Hasher is the message authentication computation object.
type Hasher struct {
	algo ksihash.Algorithm
	hsr  hash.Hash
}

// New returns a new HMAC hasher using the given algorithm and key.
//
// Possible return errors:
//   - KsiUnavailableHashAlgorithm in case no provider is registered for the algorithm;
//   - KsiUntrustedHashAlgorithm in case the algorithm is deprecated or obsolete;
//   - KsiCryptoFailure in case the provider fails.
func New(alg ksihash.Algorithm, key []byte) (h *Hasher, e error) {
	if !alg.Registered() {
		return nil, errors.New(errors.KsiUnavailableHashAlgorithm).
			AppendMessage(fmt.Sprintf("HMAC algorithm is not supported: %d.", alg))
	}
	if !alg.Trusted() {
		return nil, errors.New(errors.KsiUntrustedHashAlgorithm).
			AppendMessage(fmt.Sprintf("HMAC algorithm is not trusted: %s.", alg))
	}

	defer func() {
		if r := recover(); r != nil {
			if ksiError, ok := r.(*errors.KsiError); ok {
				e = ksiError
				return
			}
			e = errors.New(errors.KsiCryptoFailure).
				AppendMessage(fmt.Sprintf("Panicked while HMAC initialization: %v", r))
		}
	}()
	return &Hasher{
		algo: alg,
		hsr: hmac.New(
			func() hash.Hash {
				hFunc, err := alg.HashFunc()
				if err != nil {
					panic(err)
				}
				return hFunc
			},
			key,
		),
	}, nil
}

// Sum is a one-shot helper computing the HMAC of data.
func Sum(alg ksihash.Algorithm, key []byte, data ...[]byte) (*ksihash.DataHash, error) {
	hsr, err := New(alg, key)
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

// Imprint returns KSI imprint for the current computation.
// It does not change the underlying hash state.
func (h *Hasher) Imprint() (ksihash.Imprint, error) {
	if h == nil || h.hsr == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return h.sum(), nil
}

// Close returns the current computation result as a data hash and resets the hasher.
func (h *Hasher) Close() (*ksihash.DataHash, error) {
	if h == nil || h.hsr == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	defer h.hsr.Reset()
	return ksihash.FromImprint(h.sum())
}

func (h *Hasher) sum() ksihash.Imprint {
	imprint := make([]byte, 1, 1+h.hsr.Size())
	imprint[0] = byte(h.algo)
	return h.hsr.Sum(imprint)
}

// Write (via the embedded io.Writer interface) adds more data to the running hash.
// In case of KsiInvalidArgumentError error (e.g. h is nil) function returns non
// standard -1 as count of bytes written.
func (h *Hasher) Write(p []byte) (int, error) {
	if h == nil || h.hsr == nil {
		return -1, errors.New(errors.KsiInvalidArgumentError)
	}

	n, e := h.hsr.Write(p)
	if e != nil {
		return n, errors.New(errors.KsiCryptoFailure).SetExtError(e)
	}
	return n, nil
}

// Algorithm returns the underlying hash algorithm.
func (h *Hasher) Algorithm() ksihash.Algorithm {
	if h == nil {
		return ksihash.SHA_NA
	}
	return h.algo
}

// Size return the resulting digest length in bytes.
func (h *Hasher) Size() int {
	if h == nil || h.hsr == nil {
		return 0
	}
	return h.hsr.Size()
}

// BlockSize returns the size of the data block the underlying hash algorithm operates upon in bytes.
func (h *Hasher) BlockSize() int {
	if h == nil || h.hsr == nil {
		return 0
	}
	return h.hsr.BlockSize()
}

// Reset resets the hasher to its initial state.
func (h *Hasher) Reset() {
	if h == nil || h.hsr == nil {
		return
	}
	h.hsr.Reset()
}
