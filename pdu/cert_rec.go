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
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"time"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/tlv"
)

// NewCertificateRecord returns a publications file certificate record.
func NewCertificateRecord(certID, cert []byte) (*CertificateRecord, error) {
	if len(certID) == 0 || len(cert) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return &CertificateRecord{
		certID: append([]byte(nil), certID...),
		cert:   append([]byte(nil), cert...),
	}, nil
}

// ParseCertificateRecord parses a certificate record from its binary representation.
func ParseCertificateRecord(raw []byte) (*CertificateRecord, error) {
	return tlv.Parse[CertificateRecord](raw, certRecTemplate)
}

// CertID returns certificate ID, or error if not present.
func (c *CertificateRecord) CertID() ([]byte, error) {
	if c == nil || c.certID == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return c.certID, nil
}

// Cert returns the DER encoded X.509 certificate, or error if not present.
func (c *CertificateRecord) Cert() ([]byte, error) {
	if c == nil || c.cert == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return c.cert, nil
}

// X509 returns the parsed certificate.
func (c *CertificateRecord) X509() (*x509.Certificate, error) {
	if c == nil || c.cert == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	cert, err := x509.ParseCertificate(c.cert)
	if err != nil {
		return nil, errors.New(errors.KsiCryptoFailure).SetExtError(err).
			AppendMessage("Failed to parse certificate.")
	}
	return cert, nil
}

// IsValid verifies that the certificate is valid at the given time.
func (c *CertificateRecord) IsValid(at time.Time) (bool, error) {
	if c == nil || at.IsZero() {
		return false, errors.New(errors.KsiInvalidArgumentError)
	}

	cert, err := c.X509()
	if err != nil {
		return false, err
	}
	return !at.Before(cert.NotBefore) && !at.After(cert.NotAfter), nil
}

// VerifySigType compares the signature type OID string representation to the signature algorithm of the
// certificate. See also asn1.(ObjectIdentifier).String().
func (c *CertificateRecord) VerifySigType(sigType string) error {
	if c == nil || c.cert == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	var cert struct {
		TBSCertificate     asn1.RawValue
		SignatureAlgorithm pkix.AlgorithmIdentifier
		SignatureValue     asn1.BitString
	}
	if _, err := asn1.Unmarshal(c.cert, &cert); err != nil {
		return errors.New(errors.KsiCryptoFailure).SetExtError(err).
			AppendMessage("Failed to parse ASN.1 structure of X.509 certificate.")
	}

	if oid := cert.SignatureAlgorithm.Algorithm.String(); oid != sigType {
		err := errors.New(errors.KsiInvalidPkiSignature).
			AppendMessage("Signature type OID mismatch.").
			AppendMessage(fmt.Sprintf("Certificate OID=%s, expected signature type=%s", oid, sigType))
		log.Debug(err)
		return err
	}
	return nil
}

// Bytes returns the binary TLV representation.
func (c *CertificateRecord) Bytes() ([]byte, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return tlv.Serialize(c, certRecTemplate)
}
