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

// Package hash implements the hash function registry, hash computation and the reference counted data hash object.
//
// The result of a hash computation is an 'imprint' (see Imprint and DataHash). An imprint consists of a one-octet
// hash function identifier (see Algorithm) concatenated with the digest itself.
//
// The algorithm table is static. Hash providers are attached to table rows with RegisterHash(), which is intended
// to be called from init functions only. SHA-1, SHA-2, SHA-3 and RIPEMD-160 providers are registered by default;
// SM3 is defined but has no provider.
package hash

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"

	"github.com/guardtime/ksicore/errors"
)

// Algorithm is the hash functions identifier.
type Algorithm int

const (
	// SHA1 is SHA-1 algorithm. Deprecated as of 01.07.2016.
	SHA1 Algorithm = 0x00
	// SHA2_256 is SHA-256 algorithm.
	SHA2_256 Algorithm = 0x01
	// RIPEMD160 is RIPEMD-160 algorithm.
	RIPEMD160 Algorithm = 0x02
	// 0x03 is reserved (formerly SHA-224).
	// SHA2_384 is SHA-384 algorithm.
	SHA2_384 Algorithm = 0x04
	// SHA2_512 is SHA-512 algorithm.
	SHA2_512 Algorithm = 0x05
	// 0x06 is reserved (formerly RIPEMD-256).
	// SHA3_224 is SHA3-224 algorithm.
	SHA3_224 Algorithm = 0x07
	// SHA3_256 is SHA3-256 algorithm.
	SHA3_256 Algorithm = 0x08
	// SHA3_384 is SHA3-384 algorithm.
	SHA3_384 Algorithm = 0x09
	// SHA3_512 is SHA3-512 algorithm.
	SHA3_512 Algorithm = 0x0a
	// SM3 algorithm. No provider is registered by default (see RegisterHash()).
	SM3 Algorithm = 0x0b

	// SHA_NA defines an invalid algorithm.
	SHA_NA Algorithm = 0x100
)

// Default is the recommended algorithm ID for hash computation.
const Default = SHA2_256

// MaxImprintLen is the length of the longest supported imprint (SHA-512 digest and the algorithm id).
const MaxImprintLen = 65

type hashFuncInfo struct {
	// Algorithm ID as defined in the crypto package.
	cryptoId crypto.Hash
	// Registered hasher constructor.
	newHash func() hash.Hash
	// Digest bit count.
	size int
	// Underlying block bit count.
	blockSize int
	// The time the function has been marked as deprecated.
	deprecatedFrom int64
	// The time the function has been marked as obsolete.
	obsoleteFrom int64
	// Accepted names, the first one is canonical.
	names []string
}

var hashInfoMap = map[Algorithm]hashFuncInfo{
	SHA1:      {crypto.SHA1, nil, 160, 512, 1467331200, 0, []string{"SHA-1", "SHA1"}},
	SHA2_256:  {crypto.SHA256, nil, 256, 512, 0, 0, []string{"SHA-256", "SHA2-256", "SHA-2", "SHA2", "SHA256", "DEFAULT"}},
	RIPEMD160: {crypto.RIPEMD160, nil, 160, 512, 0, 0, []string{"RIPEMD-160", "RIPEMD160"}},
	SHA2_384:  {crypto.SHA384, nil, 384, 1024, 0, 0, []string{"SHA-384", "SHA384", "SHA2-384"}},
	SHA2_512:  {crypto.SHA512, nil, 512, 1024, 0, 0, []string{"SHA-512", "SHA512", "SHA2-512"}},
	SHA3_224:  {crypto.SHA3_224, nil, 224, 1152, 0, 0, []string{"SHA3-224"}},
	SHA3_256:  {crypto.SHA3_256, nil, 256, 1088, 0, 0, []string{"SHA3-256"}},
	SHA3_384:  {crypto.SHA3_384, nil, 384, 832, 0, 0, []string{"SHA3-384"}},
	SHA3_512:  {crypto.SHA3_512, nil, 512, 576, 0, 0, []string{"SHA3-512"}},
	SM3:       {0, nil, 256, 512, 0, 0, []string{"SM-3", "SM3"}},
}

func init() {
	RegisterHash(SHA1, sha1.New)
	RegisterHash(SHA2_256, sha256.New)
	RegisterHash(SHA2_384, sha512.New384)
	RegisterHash(SHA2_512, sha512.New)
	RegisterHash(RIPEMD160, ripemd160.New)
	RegisterHash(SHA3_224, sha3.New224)
	RegisterHash(SHA3_256, sha3.New256)
	RegisterHash(SHA3_384, sha3.New384)
	RegisterHash(SHA3_512, sha3.New512)
}

// RegisterHash registers a function that returns a new instance of the given hash function. This is intended to be
// called from the init function in packages that implement hash functions. Panics in case of an undefined algorithm.
func RegisterHash(h Algorithm, f func() hash.Hash) {
	if info, ok := hashInfoMap[h]; ok {
		info.newHash = f
		hashInfoMap[h] = info
		return
	}
	panic(fmt.Sprintf("RegisterHash() unknown hash function: %d.", h))
}

// Trusted is used to check if the given hash algorithm is trusted. If the algorithm has been marked
// as deprecated or obsolete, it will return false (otherwise true is returned). It is not checked if
// the deprecated and/or obsolete dates have passed but operation is impossible as soon as one of the
// dates is set.
func (a Algorithm) Trusted() bool {
	if info, ok := hashInfoMap[a]; ok {
		return info.obsoleteFrom == 0 && info.deprecatedFrom == 0
	}
	return false
}

// Defined reports whether the given hash function is defined by the library.
func (a Algorithm) Defined() bool {
	_, ok := hashInfoMap[a]
	return ok
}

// Registered checks whether the given hash algorithm is supported,
// meaning the hash value can be calculated using the API.
func (a Algorithm) Registered() bool {
	if info, ok := hashInfoMap[a]; ok {
		return info.newHash != nil
	}
	return false
}

// String returns the canonical name of the hash algorithm, or empty string in case of unknown algorithm.
func (a Algorithm) String() string {
	if info, ok := hashInfoMap[a]; ok {
		return info.names[0]
	}
	return ""
}

func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "_", "-")
}

// ByName returns the hash function specified by the case insensitive name. Underscores are accepted in place
// of hyphens. The valid inputs are:
//   - "default" for the recommended hash algorithm,
//   - "sha-1", "sha1",
//   - "sha-256", "sha2-256", "sha-2", "sha2", "sha256",
//   - "ripemd-160", "ripemd160",
//   - "sha-384", "sha384", "sha2-384",
//   - "sha-512", "sha512", "sha2-512",
//   - "sha3-224", "sha3-256", "sha3-384", "sha3-512",
//   - "sm-3", "sm3".
//
// The SHA-2 family names do not require the infix "2" as opposed to the SHA-3 family where the infix "3" is mandatory.
//
// Returns KsiUnknownHashAlgorithm error in case of unrecognized name. Lists (names containing a comma) are rejected.
func ByName(name string) (Algorithm, error) {
	n := normalizeName(name)
	if n == "" || strings.ContainsRune(n, ',') {
		return SHA_NA, errors.New(errors.KsiUnknownHashAlgorithm).
			AppendMessage(fmt.Sprintf("Invalid hash algorithm name: '%s'.", name))
	}
	for algo, info := range hashInfoMap {
		for _, v := range info.names {
			if v == n {
				return algo, nil
			}
		}
	}
	return SHA_NA, errors.New(errors.KsiUnknownHashAlgorithm).
		AppendMessage(fmt.Sprintf("Unknown hash algorithm: %s.", name))
}

// DeprecatedFrom reports time the hash function has been marked as deprecated, as a Unix time, or 0 if not set.
// Returns an error if unknown.
func (a Algorithm) DeprecatedFrom() (int64, error) {
	if info, ok := hashInfoMap[a]; ok {
		return info.deprecatedFrom, nil
	}
	return 0, errors.New(errors.KsiUnknownHashAlgorithm).
		AppendMessage(fmt.Sprintf("Unknown hash algorithm: %d.", a))
}

// ObsoleteFrom reports time the hash function has been marked as obsolete, as a Unix time, or 0 if not set.
// Returns an error if unknown.
func (a Algorithm) ObsoleteFrom() (int64, error) {
	if info, ok := hashInfoMap[a]; ok {
		return info.obsoleteFrom, nil
	}
	return 0, errors.New(errors.KsiUnknownHashAlgorithm).
		AppendMessage(fmt.Sprintf("Unknown hash algorithm: %d.", a))
}

// FunctionStatus describes the hash function state at a certain time.
//
// A function is deprecated since the date its collision resistance was lost. A signature using it remains valid as
// long as its time can be trusted to be before that date. A function is obsolete since the date its 2nd pre-image
// resistance was lost, after which verification always fails.
type FunctionStatus byte

const (
	// Unknown state.
	Unknown = FunctionStatus(iota)
	// Normal function can be used for all hashing purposes with no restrictions.
	Normal
	// Deprecated (since date) due to the loss of collision resistance.
	Deprecated
	// Obsolete (since date) due to loss of 2nd pre-image resistance.
	Obsolete
)

// StatusAt checks the status of the hash function at a given Unix time.
func (a Algorithm) StatusAt(at int64) FunctionStatus {
	if info, ok := hashInfoMap[a]; ok {
		if info.obsoleteFrom != 0 && info.obsoleteFrom <= at {
			return Obsolete
		}
		if info.deprecatedFrom != 0 && info.deprecatedFrom <= at {
			return Deprecated
		}
		return Normal
	}
	return Unknown
}

// HashFunc returns a new instance of the underlying hash function.
func (a Algorithm) HashFunc() (h hash.Hash, err error) {
	info, ok := hashInfoMap[a]
	if !ok {
		return nil, errors.New(errors.KsiUnknownHashAlgorithm).
			AppendMessage(fmt.Sprintf("Hash algorithm is not supported: %d.", a))
	}
	if info.newHash == nil {
		return nil, errors.New(errors.KsiUnavailableHashAlgorithm).
			AppendMessage(fmt.Sprintf("Hash algorithm is not registered: %s.", a))
	}

	defer func() {
		if r := recover(); r != nil {
			h = nil
			err = errors.New(errors.KsiCryptoFailure).
				AppendMessage(fmt.Sprintf("Hash provider of %s failed: %v.", a, r))
		}
	}()
	return info.newHash(), nil
}

// Size returns the resulting digest length in bytes.
// In case of an error, a negative value is returned.
func (a Algorithm) Size() int {
	if info, ok := hashInfoMap[a]; ok {
		return info.size >> 3
	}
	return -1
}

// BlockSize returns the size of the data block the underlying hash algorithm operates upon in bytes.
// In case of an error, a negative value is returned.
func (a Algorithm) BlockSize() int {
	if info, ok := hashInfoMap[a]; ok {
		return info.blockSize >> 3
	}
	return -1
}

// ZeroImprint returns a zero imprint for the given algorithm.
func (a Algorithm) ZeroImprint() Imprint {
	if !a.Defined() {
		return nil
	}
	tmp := make(Imprint, 1+a.Size())
	tmp[0] = byte(a)
	return tmp
}

// ListSupported returns the registered hash functions in ascending id order.
func ListSupported() []Algorithm {
	var tmp []Algorithm
	for algo := range hashInfoMap {
		if algo.Registered() {
			tmp = append(tmp, algo)
		}
	}
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
	return tmp
}

// ListDefined returns the defined hash functions in ascending id order.
func ListDefined() []Algorithm {
	var tmp []Algorithm
	for algo := range hashInfoMap {
		tmp = append(tmp, algo)
	}
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
	return tmp
}
