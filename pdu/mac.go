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
	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/hmac"
	"github.com/guardtime/ksicore/tlv"
)

// macSum computes the PDU message authentication code. The MAC element is the last element of the PDU and the MAC
// is computed over all PDU message bytes up to (but excluding) the hash value within the imprint in the MAC field:
//  1. the TLV header of the PDU element itself;
//  2. the complete header element;
//  3. the complete payload elements in the order in which they appear in the PDU;
//  4. the TLV header of the MAC element;
//  5. the hash algorithm identifier part of the imprint representing the MAC value.
func macSum(raw []byte, alg hash.Algorithm, key []byte) (*hash.DataHash, error) {
	if len(raw) < alg.Size() {
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("PDU is too short for the HMAC.")
	}
	return hmac.Sum(alg, key, raw[:len(raw)-alg.Size()])
}

// updateMAC recomputes the MAC of obj. The MAC field is reset to a zero imprint of alg before serialization.
func updateMAC(obj interface{}, tmpl *tlv.Template, mac **hash.DataHash, alg hash.Algorithm, key []byte) error {
	if !alg.Registered() {
		return errors.New(errors.KsiUnknownHashAlgorithm).
			AppendMessage("Can not calculate HMAC using an unknown hash algorithm.")
	}
	zero, err := hash.Zero(alg)
	if err != nil {
		return err
	}
	*mac = zero

	raw, err := tlv.Serialize(obj, tmpl)
	if err != nil {
		return err
	}
	sum, err := macSum(raw, alg, key)
	if err != nil {
		return err
	}
	*mac = sum
	return nil
}

// verifyMAC verifies the MAC of the received PDU raw against the parsed MAC value.
func verifyMAC(raw []byte, mac *hash.DataHash, alg hash.Algorithm, key []byte, what string) error {
	if mac == nil {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage(what + " must have an HMAC.")
	}
	if mac.Algorithm() != alg {
		return errors.New(errors.KsiHmacAlgorithmMismatch).AppendMessage(what + " HMAC algorithm mismatch.")
	}
	sum, err := macSum(raw, alg, key)
	if err != nil {
		return err
	}
	if !sum.Equal(mac) {
		return errors.New(errors.KsiHmacMismatch).AppendMessage(what + " HMAC mismatch.")
	}
	return nil
}
