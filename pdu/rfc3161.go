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

package pdu

import (
	"time"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/tlv"
)

// ParseRFC3161 parses an RFC3161 compatibility record from its binary TLV representation.
func ParseRFC3161(raw []byte) (*RFC3161, error) {
	return tlv.Parse[RFC3161](raw, rfc3161Template)
}

// Bytes returns the binary TLV representation of the RFC3161 record.
func (r *RFC3161) Bytes() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return tlv.Serialize(r, rfc3161Template)
}

// AggregationTime returns the aggregation time of the record.
func (r *RFC3161) AggregationTime() (time.Time, error) {
	if r == nil {
		return time.Time{}, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.aggrTime == nil {
		return time.Time{}, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent RFC3161 record.").
			AppendMessage("Missing aggregation time.")
	}
	return time.Unix(int64(*r.aggrTime), 0), nil
}

// ChainIndex returns the chain index of the record. It equals to the chain index of the first aggregation hash chain.
func (r *RFC3161) ChainIndex() ([]uint64, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if len(r.chainIndex) == 0 {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent RFC3161 record.").
			AppendMessage("Missing chain index.")
	}
	return r.chainIndex, nil
}

// InputData returns the input data, or nil if not present.
func (r *RFC3161) InputData() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.inputData, nil
}

// InputHash returns the input hash of the record, which is the signed document hash.
func (r *RFC3161) InputHash() (*hash.DataHash, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.inputHash == nil {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent RFC3161 record.").
			AppendMessage("Missing input hash.")
	}
	return r.inputHash, nil
}

// TstInfoAlgo returns the hash function used to hash the TSTInfo structure.
func (r *RFC3161) TstInfoAlgo() (hash.Algorithm, error) {
	if r == nil {
		return hash.SHA_NA, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.tstInfoAlgo == nil {
		return hash.SHA_NA, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent RFC3161 record.").
			AppendMessage("Missing TSTInfo algorithm.")
	}
	return hash.Algorithm(*r.tstInfoAlgo), nil
}

// SigAttrAlgo returns the hash function used to hash the SignedAttributes structure.
func (r *RFC3161) SigAttrAlgo() (hash.Algorithm, error) {
	if r == nil {
		return hash.SHA_NA, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.sigAttrAlgo == nil {
		return hash.SHA_NA, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent RFC3161 record.").
			AppendMessage("Missing signed attributes algorithm.")
	}
	return hash.Algorithm(*r.sigAttrAlgo), nil
}

// OutputHash calculates the output hash of the record with the given algorithm. The result is to be compared with
// the input hash of the first aggregation hash chain.
func (r *RFC3161) OutputHash(alg hash.Algorithm) (*hash.DataHash, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.inputHash == nil || r.tstInfoAlgo == nil || r.sigAttrAlgo == nil {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent RFC3161 record.").
			AppendMessage("Missing mandatory elements.")
	}
	tstInfoAlgo := hash.Algorithm(*r.tstInfoAlgo)
	sigAttrAlgo := hash.Algorithm(*r.sigAttrAlgo)
	if !tstInfoAlgo.Defined() || !sigAttrAlgo.Defined() {
		return nil, errors.New(errors.KsiUnknownHashAlgorithm).
			AppendMessage("RFC3161 record contains unknown hash algorithm.")
	}

	tstInfoHsh, err := hash.Sum(tstInfoAlgo, r.tstInfoPrefix, r.inputHash.Digest(), r.tstInfoSuffix)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Failed to calculate TSTInfo digest.")
	}
	sigAttrHsh, err := hash.Sum(sigAttrAlgo, r.sigAttrPrefix, tstInfoHsh.Digest(), r.sigAttrSuffix)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Failed to calculate signed attributes digest.")
	}
	return hash.Sum(alg, sigAttrHsh.Imprint())
}

func (r *RFC3161) String() string {
	if r == nil {
		return ""
	}
	t, err := tlv.Construct(r, rfc3161Template)
	if err != nil {
		return ""
	}
	return t.String()
}
