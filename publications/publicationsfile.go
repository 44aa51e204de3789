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

// Package publications implements the KSI publications file: a trust anchor holding the certificates for verifying
// calendar authentication records and the publications for verifying publication records.
package publications

import (
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
	"github.com/guardtime/ksicore/templates"
	"github.com/guardtime/ksicore/tlv"
)

const (
	// FileMagic is the publications file header.
	FileMagic = "KSIPUBLF"

	tagFile      = 0x700
	tagHeader    = 0x701
	tagCertRec   = 0x702
	tagPubRec    = 0x703
	tagSignature = 0x704
)

// File is a trust anchor for verifying KSI signatures. It contains a list of public-key certificates
// for verifying authentication records and a list of publications for verifying publication records
// attached to calendar hash chains. A publication file has the following components that must appear
// in the following order:
//   - 8-byte magic 4B 53 49 50 55 42 4C 46 (in hexadecimal), which encodes the string 'KSIPUBLF' in ASCII.
//   - Header (Single)
//   - Public Key Certificates (Multiple) that are considered trustworthy at the time of creation of the publication file.
//   - Publications (Multiple) that have been created up to the file creation time.
//   - Signature (Single) of the file.
type File struct {
	header    *fileHeader
	certRecs  []*pdu.CertificateRecord
	pubRecs   []*pdu.PublicationRec
	signature []byte
	sigOffset *int

	raw       []byte
	certCache *cache.Cache
}

type fileHeader struct {
	version      *uint64
	creationTime *uint64
	repURI       []string
}

var (
	fileHeaderTemplate = tlv.MustTemplate("PublicationsFileHeader", tagHeader, 0,
		tlv.Integer(0x01, tlv.Mandatory, "version", func(h *fileHeader) **uint64 { return &h.version }),
		tlv.Integer(0x02, tlv.Mandatory, "creation time", func(h *fileHeader) **uint64 { return &h.creationTime }),
		tlv.Utf8List(0x03, 0, "repository uri", func(h *fileHeader) *[]string { return &h.repURI }),
	)

	fileTemplate = tlv.MustTemplate("PublicationsFile", tagFile, 0,
		tlv.Composite(tagHeader, tlv.Mandatory, "header", fileHeaderTemplate,
			func(f *File) **fileHeader { return &f.header }),
		tlv.CompositeList(tagCertRec, 0, "certificate record", pdu.CertificateRecordTemplate(),
			func(f *File) *[]*pdu.CertificateRecord { return &f.certRecs }),
		tlv.CompositeList(tagPubRec, 0, "publication record", pdu.PublicationsFileRecTemplate(),
			func(f *File) *[]*pdu.PublicationRec { return &f.pubRecs }),
		tlv.Octets(tagSignature, tlv.Mandatory|tlv.MoreDefs, "signature", func(f *File) *[]byte { return &f.signature }),
		tlv.SeekPos(tagSignature, 0, "signature position", func(f *File) **int { return &f.sigOffset }),
	)
)

func init() {
	templates.MustRegister(fileHeaderTemplate, fileTemplate)
}

// NewFile returns publications file constructed from the provided initializer.
//
// Note that the returned publications file is not verified (see (File).Verify()).
func NewFile(builder FileBuilder) (*File, error) {
	if builder == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var tmp file
	if err := builder(&tmp); err != nil {
		return nil, err
	}
	return tmp.obj, nil
}

// FileBuilder defines a publications file initializer.
type (
	FileBuilder func(*file) error
	file        struct {
		obj *File
	}
)

// FileFromFile returns initializer for the publications file to be built from a binary file.
func FileFromFile(path string) FileBuilder {
	return func(p *file) error {
		if p == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}

		f, err := os.Open(path)
		if err != nil {
			return errors.New(errors.KsiIoError).SetExtError(err).
				AppendMessage("Unable to open publications file.")
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Error("Failed to close file: ", err)
			}
		}()
		return FileFromReader(f)(p)
	}
}

// FileFromReader returns initializer for the publications file to be built from binary stream.
func FileFromReader(r io.Reader) FileBuilder {
	return func(p *file) error {
		if r == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if p == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}

		raw, err := io.ReadAll(io.LimitReader(r, math.MaxUint32+1))
		if err != nil {
			return errors.New(errors.KsiIoError).SetExtError(err).
				AppendMessage("Unable to read publications file stream.")
		}
		return FileFromBytes(raw)(p)
	}
}

// FileFromBytes returns initializer for the publications file to be built from binary array.
func FileFromBytes(raw []byte) FileBuilder {
	return func(p *file) error {
		if len(raw) == 0 {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if p == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}
		if len(raw) > math.MaxUint32 {
			return errors.New(errors.KsiInvalidFormatError).AppendMessage("Publications file exceeds max size.")
		}

		f, err := parse(raw)
		if err != nil {
			return errors.KsiErr(err).AppendMessage("Unable to parse publications file.")
		}
		p.obj = f
		return nil
	}
}

func parse(raw []byte) (*File, error) {
	headerLen := len(FileMagic)
	if len(raw) < headerLen {
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Not enough bytes for publications file header.")
	}
	if len(raw) == headerLen {
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Only publications file header is provided.")
	}
	if string(raw[:headerLen]) != FileMagic {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unrecognized header: %x", raw[:headerLen]))
	}

	list, err := tlv.ParseStream(raw[headerLen:], headerLen)
	if err != nil {
		return nil, err
	}
	if list[0].Tag != tagHeader {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage("Publications file must start with the header.")
	}
	if last := list[len(list)-1]; last.Tag != tagSignature {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage("Publications file must end with the signature.")
	}

	root, err := tlv.NewTlv(tlv.ConstructComposite(tagFile, false, false, list...))
	if err != nil {
		return nil, err
	}
	f, err := tlv.ParseTlv[File](root, fileTemplate)
	if err != nil {
		return nil, err
	}
	f.raw = append([]byte(nil), raw...)
	f.certCache = cache.New(cache.NoExpiration, 0)
	return f, nil
}

// Bytes returns the binary representation of the publications file.
func (p *File) Bytes() ([]byte, error) {
	if p == nil || len(p.raw) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return p.raw, nil
}

// SignedBytes returns the part of the publications file covered by the PKI signature: the magic bytes and all
// elements preceding the signature.
func (p *File) SignedBytes() ([]byte, error) {
	if p == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if p.sigOffset == nil || *p.sigOffset > len(p.raw) {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing signature position.")
	}
	return p.raw[:*p.sigOffset], nil
}

// Version returns the publications file format version.
func (p *File) Version() (uint64, error) {
	if p == nil || p.header == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return *p.header.version, nil
}

// CreationTime returns the publications file creation time.
func (p *File) CreationTime() (time.Time, error) {
	if p == nil || p.header == nil {
		return time.Time{}, errors.New(errors.KsiInvalidArgumentError)
	}
	return time.Unix(int64(*p.header.creationTime), 0), nil
}

// RepositoryURI returns the canonical download locations of the publications file.
func (p *File) RepositoryURI() ([]string, error) {
	if p == nil || p.header == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return p.header.repURI, nil
}

// CertificateRecords returns the certificate records of the publications file.
func (p *File) CertificateRecords() ([]*pdu.CertificateRecord, error) {
	if p == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return p.certRecs, nil
}

// PublicationRecords returns the publication records of the publications file.
func (p *File) PublicationRecords() ([]*pdu.PublicationRec, error) {
	if p == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return p.pubRecs, nil
}

// Certificate returns PKI certificate record with the given ID.
//
// Returns the found certificate, or nil otherwise.
func (p *File) Certificate(id []byte) (*pdu.CertificateRecord, error) {
	if p == nil || len(id) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	for _, r := range p.certRecs {
		certID, err := r.CertID()
		if err != nil {
			return nil, errors.KsiErr(err).
				AppendMessage("Inconsistent certificate record.").
				AppendMessage("Missing certificate id.")
		}
		if string(id) == string(certID) {
			return r, nil
		}
	}
	return nil, nil
}

// CertificateX509 returns the parsed certificate with the given ID. Parsed certificates are cached.
//
// Returns nil if the certificate is not present.
func (p *File) CertificateX509(id []byte) (*x509.Certificate, error) {
	if p == nil || len(id) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	key := hex.EncodeToString(id)
	if p.certCache != nil {
		if c, ok := p.certCache.Get(key); ok {
			return c.(*x509.Certificate), nil
		}
	}

	rec, err := p.Certificate(id)
	if err != nil || rec == nil {
		return nil, err
	}
	cert, err := rec.X509()
	if err != nil {
		return nil, err
	}
	if p.certCache != nil {
		p.certCache.Set(key, cert, cache.NoExpiration)
	}
	return cert, nil
}

// PublicationRec returns publication record based on the provided search strategy.
//
// Returns the found publication record, or nil otherwise.
func (p *File) PublicationRec(by PubRecSearchBy) (*pdu.PublicationRec, error) {
	if p == nil || by == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	id, err := by(p)
	if err != nil {
		return nil, err
	}
	if id < 0 {
		return nil, nil
	}
	return p.pubRecs[id], nil
}

// PubRecSearchBy specifies the publication record search criteria.
type PubRecSearchBy func(*File) (int, error)

func (p *File) find(match func(*pdu.PublicationData) (bool, error)) (int, error) {
	if p == nil {
		return -1, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
	}
	for i, r := range p.pubRecs {
		recData, err := r.PublicationData()
		if err != nil {
			return -1, errors.KsiErr(err).AppendMessage("Failed to extract publication data.")
		}
		ok, err := match(recData)
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	// No suitable publication found in the file.
	return -1, nil
}

// PubRecSearchByPubString searches publication by publication string.
func PubRecSearchByPubString(pubString string) PubRecSearchBy {
	return func(p *File) (int, error) {
		if len(pubString) == 0 {
			return -1, errors.New(errors.KsiInvalidArgumentError)
		}
		pubData, err := pdu.NewPublicationData(pdu.PubDataFromString(pubString))
		if err != nil {
			return -1, err
		}
		return PubRecSearchByPubData(pubData)(p)
	}
}

// PubRecSearchByPubData searches publication by publication data.
func PubRecSearchByPubData(pubData *pdu.PublicationData) PubRecSearchBy {
	return func(p *File) (int, error) {
		if pubData == nil {
			return -1, errors.New(errors.KsiInvalidArgumentError)
		}
		return p.find(func(d *pdu.PublicationData) (bool, error) { return pubData.Equal(d), nil })
	}
}

// PubRecSearchByHash searches publication by published hash.
func PubRecSearchByHash(h *hash.DataHash) PubRecSearchBy {
	return func(p *File) (int, error) {
		if h == nil {
			return -1, errors.New(errors.KsiInvalidArgumentError)
		}
		return p.find(func(d *pdu.PublicationData) (bool, error) {
			pubHash, err := d.PublishedHash()
			if err != nil {
				return false, errors.KsiErr(err).AppendMessage("Failed to extract published hash.")
			}
			return h.Equal(pubHash), nil
		})
	}
}

// PubRecSearchByTime searches publication by exact time.
func PubRecSearchByTime(pubTime time.Time) PubRecSearchBy {
	return func(p *File) (int, error) {
		return p.find(func(d *pdu.PublicationData) (bool, error) {
			recPubTime, err := d.PublicationTime()
			if err != nil {
				return false, errors.KsiErr(err).AppendMessage("Failed to extract publication time.")
			}
			return pubTime.Equal(recPubTime), nil
		})
	}
}

// PubRecSearchNearest searches for the publication that is published after given time and is closest to it.
func PubRecSearchNearest(pubTime time.Time) PubRecSearchBy {
	return func(p *File) (int, error) {
		return p.scan(pubTime, func(cur, best time.Time) bool { return cur.Before(best) })
	}
}

// PubRecSearchLatest searches for the latest available publication, it must be published after given time.
func PubRecSearchLatest(pubTime time.Time) PubRecSearchBy {
	return func(p *File) (int, error) {
		return p.scan(pubTime, func(cur, best time.Time) bool { return cur.After(best) })
	}
}

// scan returns the index of the publication published after pubTime that is preferred by better.
func (p *File) scan(pubTime time.Time, better func(cur, best time.Time) bool) (int, error) {
	if p == nil {
		return -1, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
	}

	var (
		found = -1
		best  time.Time
	)
	for i, r := range p.pubRecs {
		recPubData, err := r.PublicationData()
		if err != nil {
			return -1, errors.KsiErr(err).AppendMessage("Failed to extract publication data.")
		}
		recPubTime, err := recPubData.PublicationTime()
		if err != nil {
			return -1, errors.KsiErr(err).AppendMessage("Failed to extract publication time.")
		}
		if !recPubTime.After(pubTime) {
			continue
		}
		if found < 0 || better(recPubTime, best) {
			found, best = i, recPubTime
		}
	}
	return found, nil
}

// Verifier is the PKI signature verifier capability consumed by the publications file, see pki.Verifier.
type Verifier interface {
	VerifyPKCS7(sig, content []byte) error
	VerifySignature(cert *x509.Certificate, sigType string, signed, sig []byte) error
}

// Verify verifies the PKI signature of the publications file.
func (p *File) Verify(v Verifier) error {
	if p == nil || v == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if len(p.signature) == 0 {
		return errors.New(errors.KsiPublicationsFileNotSignedWithPki)
	}
	signed, err := p.SignedBytes()
	if err != nil {
		return err
	}
	if err := v.VerifyPKCS7(p.signature, signed); err != nil {
		return errors.KsiErr(err).AppendMessage("Unable to verify publications file signature.")
	}
	return nil
}

// VerifyRecord verifies the calendar authentication record signature with the certificate from the publications
// file. The certificate must be valid at the record publication time.
func (p *File) VerifyRecord(rec *pdu.CalendarAuthRec, v Verifier) error {
	if p == nil || rec == nil || v == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	sigData, err := rec.SignatureData()
	if err != nil {
		return err
	}
	certID, err := sigData.CertID()
	if err != nil {
		return err
	}
	sigType, err := sigData.SignatureType()
	if err != nil {
		return err
	}
	sigValue, err := sigData.SignatureValue()
	if err != nil {
		return err
	}
	pubData, err := rec.PublicationData()
	if err != nil {
		return err
	}
	pubTime, err := pubData.PublicationTime()
	if err != nil {
		return err
	}
	signed, err := rec.SignedBytes()
	if err != nil {
		return err
	}

	certRec, err := p.Certificate(certID)
	if err != nil {
		return err
	}
	if certRec == nil {
		return errors.New(errors.KsiPkiCertificateNotTrusted).
			AppendMessage("Suitable PKI certificate not found in publications file.").
			AppendMessage(fmt.Sprintf("Certificate id: %x.", certID))
	}
	valid, err := certRec.IsValid(pubTime)
	if err != nil {
		return err
	}
	if !valid {
		return errors.New(errors.KsiPkiCertificateNotTrusted).
			AppendMessage("PKI certificate is not valid at the publication time.")
	}
	cert, err := p.CertificateX509(certID)
	if err != nil {
		return err
	}
	return v.VerifySignature(cert, sigType, signed, sigValue)
}

// String implements fmt.(Stringer) interface.
func (p *File) String() string {
	if p == nil || p.header == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Publications file:\n  Version: %d\n", *p.header.version)
	fmt.Fprintf(&b, "  Created: %s\n", time.Unix(int64(*p.header.creationTime), 0).UTC())
	for _, uri := range p.header.repURI {
		fmt.Fprintf(&b, "  Repository URI: %s\n", uri)
	}
	fmt.Fprintf(&b, "  Certificates: %d\n", len(p.certRecs))
	fmt.Fprintf(&b, "  Publications: %d\n", len(p.pubRecs))
	return b.String()
}
