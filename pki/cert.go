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

package pki

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"hash/crc32"
	"strings"
	"time"

	"github.com/guardtime/ksicore/errors"
)

func formatHexStringWithDelimiters(input string) string {
	var buf strings.Builder
	for i, char := range input {
		if i != 0 && i%2 == 0 {
			buf.WriteRune(':')
		}
		buf.WriteRune(char)
	}
	return buf.String()
}

func certState(cert *x509.Certificate, at time.Time) string {
	switch {
	case at.After(cert.NotAfter):
		return "expired"
	case at.Before(cert.NotBefore):
		return "invalid"
	default:
		return "valid"
	}
}

// CertificateToString returns a printable representation of the x509 certificate.
func CertificateToString(cert *x509.Certificate) string {
	if cert == nil {
		return "nil"
	}
	id := fmt.Sprintf("%08x", crc32.ChecksumIEEE(cert.Raw))
	return fmt.Sprintf("PKI Certificate (%s):\n"+
		"  * Issued to: %s\n"+
		"  * Issued by: %s\n"+
		"  * Valid from: %s to %s [%s]\n"+
		"  * Serial Number: %s\n",
		formatHexStringWithDelimiters(id), cert.Subject, cert.Issuer, cert.NotBefore, cert.NotAfter,
		certState(cert, time.Now()), formatHexStringWithDelimiters(cert.SerialNumber.Text(16)))
}

// CertChainToString returns a printable representation of the x509 certificate chain.
func CertChainToString(certList []*x509.Certificate) string {
	if len(certList) == 0 {
		return "nil"
	}
	var buf strings.Builder
	buf.WriteString("Certificate chain:\n\n")
	for i, cert := range certList {
		fmt.Fprintf(&buf, "Certificate(%d)\n%s\n\n", i, CertificateToString(cert))
	}
	return buf.String()
}

func checkCertConstraints(ref, subject []pkix.AttributeTypeAndValue) error {
	if len(ref) == 0 {
		return errors.New(errors.KsiPkiCertificateNotTrusted).
			AppendMessage("Unable to verify certificate constraints as constraints are not specified.")
	}

	for _, r := range ref {
		matched := false
		for _, s := range subject {
			if !r.Type.Equal(s.Type) {
				continue
			}
			matched = true

			rString, ok := r.Value.(string)
			if !ok {
				return errors.New(errors.KsiInvalidFormatError).
					AppendMessage(fmt.Sprintf("Constraint value is not a string: '%v'.", r.Value))
			}
			sString, ok := s.Value.(string)
			if !ok {
				return errors.New(errors.KsiInvalidFormatError).
					AppendMessage(fmt.Sprintf("Certificate attribute value is not a string: '%v'.", s.Value))
			}
			if rString != sString {
				return errors.New(errors.KsiPkiCertificateNotTrusted).
					AppendMessage(fmt.Sprintf("Certificate constraints mismatch for %s.", r.Type)).
					AppendMessage(fmt.Sprintf("Expecting '%s', but got '%s'.", rString, sString))
			}
			break
		}
		if !matched {
			return errors.New(errors.KsiPkiCertificateNotTrusted).
				AppendMessage(fmt.Sprintf("Constraint '%s' is not specified in certificate.", r.Type))
		}
	}
	return nil
}
