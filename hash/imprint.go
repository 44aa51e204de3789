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
	"crypto"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/guardtime/ksicore/errors"
)

// Imprint is the one-octet algorithm identifier followed by the digest.
type Imprint []byte

// String returns "<algorithm>:<hex digest>", or an empty string for an invalid imprint.
func (i Imprint) String() string {
	if !i.IsValid() {
		return ""
	}
	return Algorithm(i[0]).String() + ":" + hex.EncodeToString(i[1:])
}

// IsValid validates imprint internal consistency: the algorithm must be defined and the digest length must match.
func (i Imprint) IsValid() bool {
	return len(i) != 0 &&
		Algorithm(i[0]).Defined() &&
		len(i) == Algorithm(i[0]).Size()+1
}

// Algorithm returns the hash functions used to generate digest.
// Returns SHA_NA in case the imprint is not valid.
func (i Imprint) Algorithm() Algorithm {
	if !i.IsValid() {
		return SHA_NA
	}
	return Algorithm(i[0])
}

// Digest returns the binary hash value.
// Returns nil in case the imprint is not valid.
func (i Imprint) Digest() []byte {
	if !i.IsValid() {
		return nil
	}
	return i[1:]
}

// Equal compares the imprints in constant time.
func Equal(l, r Imprint) bool {
	return subtle.ConstantTimeCompare(l, r) == 1
}

// ByCryptoHash returns the KSI algorithm implemented by the given crypto.Hash.
// Returns KsiUnknownHashAlgorithm in case the function has no KSI identifier.
func ByCryptoHash(h crypto.Hash) (Algorithm, error) {
	for _, alg := range ListDefined() {
		if info := hashInfoMap[alg]; info.cryptoId != 0 && info.cryptoId == h {
			return alg, nil
		}
	}
	return SHA_NA, errors.New(errors.KsiUnknownHashAlgorithm).AppendMessage(h.String())
}

// CryptoHashToImprint prefixes the digest produced by h with the KSI algorithm identifier. A nil digest yields the
// zero imprint of the algorithm. A digest of the wrong length fails with KsiInvalidFormatError.
func CryptoHashToImprint(h crypto.Hash, digest []byte) (Imprint, error) {
	alg, err := ByCryptoHash(h)
	if err != nil {
		return nil, err
	}
	if digest == nil {
		return alg.ZeroImprint(), nil
	}
	if alg.Size() != len(digest) {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Expected %d octets of %s digest, got %d.", alg.Size(), alg, len(digest)))
	}
	imp := make(Imprint, 0, len(digest)+1)
	return append(append(imp, byte(alg)), digest...), nil
}
