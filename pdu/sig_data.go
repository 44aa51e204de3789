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
	"encoding/hex"
	"fmt"

	"github.com/guardtime/ksicore/errors"
)

// SignatureType returns the signature algorithm OID in dotted decimal form, e.g. "1.2.840.113549.1.1.11" for
// SHA-256 with RSA encryption.
func (s *SignatureData) SignatureType() (string, error) {
	if s == nil || s.sigType == nil {
		return "", errors.New(errors.KsiInvalidArgumentError)
	}
	return *s.sigType, nil
}

// SignatureValue returns a copy of the signature value.
func (s *SignatureData) SignatureValue() ([]byte, error) {
	if s == nil || s.sigValue == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return append([]byte(nil), s.sigValue...), nil
}

// CertID returns a copy of the identifier of the signing certificate in the publications file.
func (s *SignatureData) CertID() ([]byte, error) {
	if s == nil || s.certID == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return append([]byte(nil), s.certID...), nil
}

// CertRepURI returns the certificate repository URI, or an empty string if not present.
func (s *SignatureData) CertRepURI() (string, error) {
	if s == nil {
		return "", errors.New(errors.KsiInvalidArgumentError)
	}
	if s.certRepURI == nil {
		return "", nil
	}
	return *s.certRepURI, nil
}

// String returns the signature type and the certificate id, e.g. "1.2.840.113549.1.1.11 cert:4a1f2e03".
func (s *SignatureData) String() string {
	if s == nil || s.sigType == nil {
		return ""
	}
	return fmt.Sprintf("%s cert:%s", *s.sigType, hex.EncodeToString(s.certID))
}
