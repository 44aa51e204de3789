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

// Package pki implements the PKI signature checks used for KSI trust anchors: the detached PKCS#7 signature of the
// publications file and the raw signature of a calendar authentication record.
package pki

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fullsailor/pkcs7"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/log"
)

// Verifier checks PKI signatures against a trust store.
type Verifier struct {
	roots *x509.CertPool
	cnstr []pkix.AttributeTypeAndValue
	clock func() time.Time
}

// VerifierSetting is verifier initialization option.
type (
	VerifierSetting func(*verifier) error
	verifier        struct {
		obj Verifier
	}
)

// NewVerifier returns a new PKI verifier instance.
func NewVerifier(settings ...VerifierSetting) (*Verifier, error) {
	tmp := verifier{obj: Verifier{
		clock: time.Now,
	}}
	for _, setter := range settings {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Setting is a nil pointer.")
		}
		if err := setter(&tmp); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Unable to setup PKI verifier.")
		}
	}
	return &tmp.obj, nil
}

func (v *verifier) pool() *x509.CertPool {
	if v.obj.roots == nil {
		v.obj.roots = x509.NewCertPool()
	}
	return v.obj.roots
}

// VerifierUseSystemCertStore initializes the trust store with a copy of the system cert pool.
func VerifierUseSystemCertStore() VerifierSetting {
	return func(v *verifier) error {
		if v == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing verifier base object.")
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			return errors.New(errors.KsiCryptoFailure).SetExtError(err).
				AppendMessage("Unable to set system cert pool.")
		}
		v.obj.roots = pool
		return nil
	}
}

// VerifierSetTrustedCertificate appends certificate to the pool of trusted certificates.
func VerifierSetTrustedCertificate(cert *x509.Certificate) VerifierSetting {
	return func(v *verifier) error {
		if v == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing verifier base object.")
		}
		if cert == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		v.pool().AddCert(cert)
		return nil
	}
}

// VerifierSetTrustedCertificatePem appends PEM encoded certificate(s) to the pool of trusted certificates.
func VerifierSetTrustedCertificatePem(pem []byte) VerifierSetting {
	return func(v *verifier) error {
		if v == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing verifier base object.")
		}
		if !v.pool().AppendCertsFromPEM(pem) {
			return errors.New(errors.KsiInvalidFormatError).AppendMessage("Unable to append PEM certificates.")
		}
		return nil
	}
}

// VerifierSetTrustedCertificateDir locates all files with 'crt' extension in the directory and loads them as
// trusted certificates.
func VerifierSetTrustedCertificateDir(path string) VerifierSetting {
	return func(v *verifier) error {
		if v == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing verifier base object.")
		}

		files, err := os.ReadDir(path)
		if err != nil {
			return errors.New(errors.KsiIoError).SetExtError(err).
				AppendMessage(fmt.Sprintf("Unable to load certificate directory '%s'.", path))
		}
		hasCerts := false
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".crt") {
				continue
			}
			certPath := filepath.Join(path, f.Name())
			dat, err := os.ReadFile(certPath)
			if err != nil {
				return errors.New(errors.KsiIoError).SetExtError(err).
					AppendMessage(fmt.Sprintf("Unable to open file '%s'.", certPath))
			}
			if err := VerifierSetTrustedCertificatePem(dat)(v); err != nil {
				return errors.KsiErr(err).
					AppendMessage(fmt.Sprintf("Unable to add certificate '%s' to trusted certificates.", certPath))
			}
			hasCerts = true
		}
		if !hasCerts {
			log.Info(fmt.Sprintf("No certificates added from directory '%s'.", path))
		}
		return nil
	}
}

// OID is certificate DN object identifier.
type OID asn1.ObjectIdentifier

var (
	// OidEmail is the ASN.1 notation for Email Address attribute for use in signatures.
	OidEmail = OID([]int{1, 2, 840, 113549, 1, 9, 1})
	// OidCommonName is the ASN.1 notation for common name attribute type.
	OidCommonName = OID([]int{2, 5, 4, 3})
	// OidCountry is the ASN.1 notation for Country Name attribute type specifying a country.
	OidCountry = OID([]int{2, 5, 4, 6})
	// OidOrganization is the ASN.1 notation for Organization Name attribute type specifying an organization.
	OidOrganization = OID([]int{2, 5, 4, 10})
)

// VerifierSetCertConstraint specifies an X.509 distinguished name constraint the PKCS#7 signing certificate must
// satisfy. Can be called multiple times in order to apply different constraints.
func VerifierSetCertConstraint(oid OID, value string) VerifierSetting {
	return func(v *verifier) error {
		if oid == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if v == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing verifier base object.")
		}
		v.obj.cnstr = append(v.obj.cnstr, pkix.AttributeTypeAndValue{
			Type:  asn1.ObjectIdentifier(oid),
			Value: value,
		})
		return nil
	}
}

// VerifierSetClock overrides the time source used for the certificate validity checks.
func VerifierSetClock(clock func() time.Time) VerifierSetting {
	return func(v *verifier) error {
		if clock == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if v == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing verifier base object.")
		}
		v.obj.clock = clock
		return nil
	}
}

// VerifyPKCS7 verifies the detached PKCS#7 signature sig over content. The signing certificate must chain to the
// trust store and satisfy the configured constraints.
func (v *Verifier) VerifyPKCS7(sig, content []byte) error {
	if v == nil || len(sig) == 0 {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	p7, err := pkcs7.Parse(sig)
	if err != nil {
		return errors.New(errors.KsiInvalidPkiSignature).SetExtError(err).
			AppendMessage("Unable to parse PKCS#7 signature.")
	}
	p7.Content = content
	if err := p7.Verify(); err != nil {
		return errors.New(errors.KsiInvalidPkiSignature).SetExtError(err).
			AppendMessage("Unable to verify PKCS#7 signature.")
	}

	signCertCount := len(p7.Signers)
	if signCertCount == 0 {
		return errors.New(errors.KsiInvalidPkiSignature).
			AppendMessage("There is no signer info embedded into PKCS#7 signature.")
	}
	// Note that nil is returned if there is more than 1 signer.
	signer := p7.GetOnlySigner()
	if signer == nil {
		return errors.New(errors.KsiInvalidPkiSignature).
			AppendMessage(fmt.Sprintf("There are %d signers of the PKCS#7 signature but only 1 is expected.", signCertCount))
	}

	opts := x509.VerifyOptions{
		Intermediates: x509.NewCertPool(),
		Roots:         v.roots,
		CurrentTime:   v.clock(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if opts.Roots == nil {
		return errors.New(errors.KsiPkiCertificateNotTrusted).AppendMessage("Trust store is not configured.")
	}
	for _, c := range p7.Certificates {
		opts.Intermediates.AddCert(c)
	}

	chains, err := signer.Verify(opts)
	if err != nil {
		return errors.New(errors.KsiPkiCertificateNotTrusted).SetExtError(err).
			AppendMessage("Unable to verify PKCS#7 signing certificate.")
	}
	if len(chains) == 0 {
		return errors.New(errors.KsiPkiCertificateNotTrusted).
			AppendMessage("Empty certificate chain is returned without error.")
	}
	log.Debug(CertChainToString(chains[0]))

	return checkCertConstraints(v.cnstr, signer.Subject.Names)
}

var sigAlgorithms = map[string]x509.SignatureAlgorithm{
	"1.2.840.113549.1.1.5":  x509.SHA1WithRSA,
	"1.2.840.113549.1.1.11": x509.SHA256WithRSA,
	"1.2.840.113549.1.1.12": x509.SHA384WithRSA,
	"1.2.840.113549.1.1.13": x509.SHA512WithRSA,
	"1.2.840.10045.4.3.2":   x509.ECDSAWithSHA256,
	"1.2.840.10045.4.3.3":   x509.ECDSAWithSHA384,
	"1.2.840.10045.4.3.4":   x509.ECDSAWithSHA512,
}

// SignatureAlgorithm returns the signature algorithm for the given signature type OID.
func SignatureAlgorithm(sigType string) (x509.SignatureAlgorithm, error) {
	alg, ok := sigAlgorithms[sigType]
	if !ok {
		return x509.UnknownSignatureAlgorithm, errors.New(errors.KsiInvalidPkiSignature).
			AppendMessage(fmt.Sprintf("Unsupported signature type: %s.", sigType))
	}
	return alg, nil
}

// VerifySignature verifies the raw signature sig of signed using the public key of cert. The signature type is given
// as a dotted OID string.
func (v *Verifier) VerifySignature(cert *x509.Certificate, sigType string, signed, sig []byte) error {
	if v == nil || cert == nil || len(sig) == 0 {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	alg, err := SignatureAlgorithm(sigType)
	if err != nil {
		return err
	}
	if err := cert.CheckSignature(alg, signed, sig); err != nil {
		return errors.New(errors.KsiInvalidPkiSignature).SetExtError(err).
			AppendMessage("Failed to verify signature.")
	}
	return nil
}
