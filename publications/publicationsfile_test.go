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

package publications

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fullsailor/pkcs7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
	"github.com/guardtime/ksicore/pki"
	"github.com/guardtime/ksicore/test"
	"github.com/guardtime/ksicore/tlv"
)

const (
	testCN         = "KSI Test Publications"
	testRepURI     = "https://verify.guardtime.com/ksi-publications.bin"
	testCreateTime = 4000
	testSigType    = "1.2.840.113549.1.1.11"
)

var testCertID = []byte{0x9a, 0x65, 0x82, 0x94}

type fixture struct {
	signer   *test.PkiSigner
	verifier *pki.Verifier
	raw      []byte
}

func TestUnitFile(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	signer := test.NewPkiSigner(t, testCN)
	verifier, err := pki.NewVerifier(
		pki.VerifierSetTrustedCertificate(signer.Cert),
		pki.VerifierSetCertConstraint(pki.OidCommonName, testCN),
	)
	require.NoError(t, err)

	fx := &fixture{
		signer:   signer,
		verifier: verifier,
		raw:      buildPubFile(t, signer, nil),
	}

	test.Suite{
		{Func: testFileParse},
		{Func: testFileInvalidInput},
		{Func: testFileUnknownCriticalElement},
		{Func: testFileVerify},
		{Func: testFileVerifyTampered},
		{Func: testFileSearchByTime},
		{Func: testFileSearchNearestAndLatest},
		{Func: testFileSearchByData},
		{Func: testFileSearchInvalidInput},
		{Func: testFileCertificateCache},
		{Func: testFileVerifyRecord},
		{Func: testFileVerifyRecordFailures},
		{Func: testFileHandler},
		{Func: testFileHandlerFromFile},
		{Func: testFileHandlerTTL},
		{Func: testFileHandlerOptions},
	}.Runner(t, fx)
}

func mustTlv(t *testing.T, c tlv.Constructor) *tlv.Tlv {
	v, err := tlv.NewTlv(c)
	require.NoError(t, err)
	return v
}

func encode(t *testing.T, v *tlv.Tlv) []byte {
	raw, err := v.Bytes()
	require.NoError(t, err)
	return raw
}

func sumOf(t *testing.T, s string) *hash.DataHash {
	h, err := hash.Sum(hash.SHA2_256, []byte(s))
	require.NoError(t, err)
	return h
}

func newPubData(t *testing.T, sec int64, s string) *pdu.PublicationData {
	d, err := pdu.NewPublicationData(pdu.PubDataFromImprint(time.Unix(sec, 0), sumOf(t, s)))
	require.NoError(t, err)
	return d
}

// buildPubFile returns a signed publications file with publications at 1000 (a), 2000 (b) and 3000 (c). The extra
// elements are inserted before the signature.
func buildPubFile(t *testing.T, s *test.PkiSigner, extra []byte) []byte {
	var body bytes.Buffer
	body.WriteString(FileMagic)

	version, err := tlv.NewUint64(0x01, 2)
	require.NoError(t, err)
	created, err := tlv.NewUint64(0x02, testCreateTime)
	require.NoError(t, err)
	repURI, err := tlv.NewUtf8(0x03, testRepURI)
	require.NoError(t, err)
	body.Write(encode(t, mustTlv(t, tlv.ConstructComposite(tagHeader, false, false, version, created, repURI))))

	certRec, err := pdu.NewCertificateRecord(testCertID, s.Cert.Raw)
	require.NoError(t, err)
	raw, err := certRec.Bytes()
	require.NoError(t, err)
	body.Write(raw)

	for i, v := range []string{"a", "b", "c"} {
		rec, err := pdu.NewPublicationRec(newPubData(t, int64(i+1)*1000, v), pdu.PubRecOptPublicationRef("Test ref"))
		require.NoError(t, err)
		raw, err := tlv.Serialize(rec, pdu.PublicationsFileRecTemplate())
		require.NoError(t, err)
		body.Write(raw)
	}
	body.Write(extra)

	sd, err := pkcs7.NewSignedData(body.Bytes())
	require.NoError(t, err)
	require.NoError(t, sd.AddSigner(s.Cert, s.Key, pkcs7.SignerInfoConfig{}))
	sd.Detach()
	sig, err := sd.Finish()
	require.NoError(t, err)

	sigTlv, err := tlv.NewBinary(tagSignature, sig)
	require.NoError(t, err)
	body.Write(encode(t, sigTlv))
	return body.Bytes()
}

func newTestFile(t *testing.T, fx *fixture) *File {
	f, err := NewFile(FileFromBytes(fx.raw))
	require.NoError(t, err)
	return f
}

func testFileParse(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*fixture)
	f := newTestFile(t, fx)

	version, err := f.Version()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	created, err := f.CreationTime()
	require.NoError(t, err)
	assert.Equal(t, int64(testCreateTime), created.Unix())
	uris, err := f.RepositoryURI()
	require.NoError(t, err)
	assert.Equal(t, []string{testRepURI}, uris)

	certs, err := f.CertificateRecords()
	require.NoError(t, err)
	assert.Len(t, certs, 1)
	pubs, err := f.PublicationRecords()
	require.NoError(t, err)
	require.Len(t, pubs, 3)
	refs, err := pubs[0].PublicationRef()
	require.NoError(t, err)
	assert.Equal(t, []string{"Test ref"}, refs)

	raw, err := f.Bytes()
	require.NoError(t, err)
	assert.Equal(t, fx.raw, raw)

	signed, err := f.SignedBytes()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(fx.raw, signed))
	sigTlv := mustTlv(t, tlv.ConstructFromSlice(fx.raw[len(signed):]))
	assert.Equal(t, uint16(tagSignature), sigTlv.Tag)

	assert.Contains(t, f.String(), "Publications: 3")
}

func testFileInvalidInput(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*fixture)

	for _, raw := range [][]byte{
		nil,
		[]byte("KSIP"),
		[]byte(FileMagic),
		append([]byte("KSIPUBLX"), fx.raw[len(FileMagic):]...),
		// Truncated signature.
		fx.raw[:len(fx.raw)-1],
	} {
		_, err := NewFile(FileFromBytes(raw))
		assert.Error(t, err, "%x", raw)
	}

	// Signature is missing.
	f := newTestFile(t, fx)
	signed, err := f.SignedBytes()
	require.NoError(t, err)
	_, err = NewFile(FileFromBytes(signed))
	require.Error(t, err)
	assert.Equal(t, errors.KsiInvalidFormatError, errors.KsiErr(err).Code())

	_, err = NewFile(nil)
	assert.Error(t, err)
	_, err = NewFile(FileFromReader(nil))
	assert.Error(t, err)
	_, err = NewFile(FileFromFile(filepath.Join(t.TempDir(), "missing.bin")))
	require.Error(t, err)
	assert.Equal(t, errors.KsiIoError, errors.KsiErr(err).Code())
}

func testFileUnknownCriticalElement(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*fixture)

	unknown, err := tlv.NewUint64(0x705, 1)
	require.NoError(t, err)
	_, err = NewFile(FileFromBytes(buildPubFile(t, fx.signer, encode(t, unknown))))
	require.Error(t, err)
	assert.Equal(t, errors.KsiInvalidFormatError, errors.KsiErr(err).Code())

	// Non-critical unknown element is ignored, but is covered by the signature.
	nc := mustTlv(t, tlv.ConstructRaw(0x705, true, false, []byte{0x01}))
	raw := buildPubFile(t, fx.signer, encode(t, nc))
	f, err := NewFile(FileFromBytes(raw))
	require.NoError(t, err)
	assert.NoError(t, f.Verify(fx.verifier))
}

func testFileVerify(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*fixture)
	f := newTestFile(t, fx)

	assert.NoError(t, f.Verify(fx.verifier))

	var nilFile *File
	assert.Error(t, nilFile.Verify(fx.verifier))
	assert.Error(t, f.Verify(nil))

	// The file signing certificate is not in the trust store.
	other, err := pki.NewVerifier(
		pki.VerifierSetTrustedCertificate(test.NewPkiSigner(t, testCN).Cert),
		pki.VerifierSetCertConstraint(pki.OidCommonName, testCN),
	)
	require.NoError(t, err)
	err = f.Verify(other)
	require.Error(t, err)
	assert.Equal(t, errors.KsiPkiCertificateNotTrusted, errors.KsiErr(err).Code())
}

func testFileVerifyTampered(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*fixture)

	// Replace the hash of the publication "b" with the hash of "x".
	tampered := bytes.Replace(fx.raw, sumOf(t, "b").Digest(), sumOf(t, "x").Digest(), 1)
	require.NotEqual(t, fx.raw, tampered)

	f, err := NewFile(FileFromBytes(tampered))
	require.NoError(t, err)
	err = f.Verify(fx.verifier)
	require.Error(t, err)
	assert.Equal(t, errors.KsiInvalidPkiSignature, errors.KsiErr(err).Code())
}

func pubTimeOf(t *testing.T, rec *pdu.PublicationRec) int64 {
	require.NotNil(t, rec)
	d, err := rec.PublicationData()
	require.NoError(t, err)
	tm, err := d.PublicationTime()
	require.NoError(t, err)
	return tm.Unix()
}

func testFileSearchByTime(t *testing.T, opts ...interface{}) {
	f := newTestFile(t, opts[0].(*fixture))

	rec, err := f.PublicationRec(PubRecSearchByTime(time.Unix(2000, 0)))
	require.NoError(t, err)
	assert.Equal(t, int64(2000), pubTimeOf(t, rec))

	rec, err = f.PublicationRec(PubRecSearchByTime(time.Unix(1500, 0)))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func testFileSearchNearestAndLatest(t *testing.T, opts ...interface{}) {
	f := newTestFile(t, opts[0].(*fixture))

	for _, tc := range []struct {
		by       PubRecSearchBy
		expected int64
	}{
		{PubRecSearchNearest(time.Unix(0, 0)), 1000},
		{PubRecSearchNearest(time.Unix(1500, 0)), 2000},
		{PubRecSearchNearest(time.Unix(2000, 0)), 3000},
		{PubRecSearchNearest(time.Unix(3000, 0)), 0},
		{PubRecSearchLatest(time.Unix(0, 0)), 3000},
		{PubRecSearchLatest(time.Unix(2999, 0)), 3000},
		{PubRecSearchLatest(time.Unix(3000, 0)), 0},
	} {
		rec, err := f.PublicationRec(tc.by)
		require.NoError(t, err)
		if tc.expected == 0 {
			assert.Nil(t, rec)
			continue
		}
		assert.Equal(t, tc.expected, pubTimeOf(t, rec))
	}
}

func testFileSearchByData(t *testing.T, opts ...interface{}) {
	f := newTestFile(t, opts[0].(*fixture))

	rec, err := f.PublicationRec(PubRecSearchByHash(sumOf(t, "c")))
	require.NoError(t, err)
	assert.Equal(t, int64(3000), pubTimeOf(t, rec))

	rec, err = f.PublicationRec(PubRecSearchByHash(sumOf(t, "x")))
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = f.PublicationRec(PubRecSearchByPubData(newPubData(t, 1000, "a")))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pubTimeOf(t, rec))

	// Same time, different hash.
	rec, err = f.PublicationRec(PubRecSearchByPubData(newPubData(t, 1000, "b")))
	require.NoError(t, err)
	assert.Nil(t, rec)

	pubString, err := newPubData(t, 2000, "b").Base32()
	require.NoError(t, err)
	rec, err = f.PublicationRec(PubRecSearchByPubString(pubString))
	require.NoError(t, err)
	assert.Equal(t, int64(2000), pubTimeOf(t, rec))
}

func testFileSearchInvalidInput(t *testing.T, opts ...interface{}) {
	f := newTestFile(t, opts[0].(*fixture))

	var nilFile *File
	_, err := nilFile.PublicationRec(PubRecSearchByTime(time.Unix(1000, 0)))
	assert.Error(t, err)
	_, err = f.PublicationRec(nil)
	assert.Error(t, err)

	for _, by := range []PubRecSearchBy{
		PubRecSearchByPubString(""),
		PubRecSearchByPubString("AAAAAA-INVALID"),
		PubRecSearchByPubData(nil),
		PubRecSearchByHash(nil),
	} {
		_, err = f.PublicationRec(by)
		assert.Error(t, err)
	}
	for _, by := range []PubRecSearchBy{
		PubRecSearchByTime(time.Unix(1000, 0)),
		PubRecSearchNearest(time.Unix(1000, 0)),
		PubRecSearchLatest(time.Unix(1000, 0)),
	} {
		_, err = by(nil)
		assert.Error(t, err)
	}
}

func testFileCertificateCache(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*fixture)
	f := newTestFile(t, fx)

	rec, err := f.Certificate(testCertID)
	require.NoError(t, err)
	require.NotNil(t, rec)

	c1, err := f.CertificateX509(testCertID)
	require.NoError(t, err)
	c2, err := f.CertificateX509(testCertID)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.True(t, fx.signer.Cert.Equal(c1))

	c, err := f.CertificateX509([]byte{0x01})
	require.NoError(t, err)
	assert.Nil(t, c)
	rec, err = f.Certificate([]byte{0x01})
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = f.Certificate(nil)
	assert.Error(t, err)
}

// newCalAuthRec returns a calendar authentication record over the publication data, signed with key.
func newCalAuthRec(t *testing.T, pubData *pdu.PublicationData, key *rsa.PrivateKey, certID []byte) *pdu.CalendarAuthRec {
	raw, err := pubData.Bytes()
	require.NoError(t, err)
	digest := sha256.Sum256(raw)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)

	sigType, err := tlv.NewUtf8(0x01, testSigType)
	require.NoError(t, err)
	sigValue, err := tlv.NewBinary(0x02, sig)
	require.NoError(t, err)
	certIDTlv, err := tlv.NewBinary(0x03, certID)
	require.NoError(t, err)

	rec := mustTlv(t, tlv.ConstructComposite(0x805, false, false,
		mustTlv(t, tlv.ConstructFromSlice(raw)),
		mustTlv(t, tlv.ConstructComposite(0x0b, false, false, sigType, sigValue, certIDTlv)),
	))
	recRaw, err := rec.Bytes()
	require.NoError(t, err)
	calAuthRec, err := pdu.ParseCalendarAuthRec(recRaw)
	require.NoError(t, err)
	return calAuthRec
}

func testFileVerifyRecord(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*fixture)
	f := newTestFile(t, fx)

	now := time.Now().Unix()
	rec := newCalAuthRec(t, newPubData(t, now, "calendar root"), fx.signer.Key, testCertID)
	assert.NoError(t, f.VerifyRecord(rec, fx.verifier))

	assert.Error(t, f.VerifyRecord(nil, fx.verifier))
	assert.Error(t, f.VerifyRecord(rec, nil))
}

func testFileVerifyRecordFailures(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*fixture)
	f := newTestFile(t, fx)
	now := time.Now().Unix()

	// Signed with a different key.
	other := test.NewPkiSigner(t, testCN)
	err := f.VerifyRecord(newCalAuthRec(t, newPubData(t, now, "root"), other.Key, testCertID), fx.verifier)
	require.Error(t, err)
	assert.Equal(t, errors.KsiInvalidPkiSignature, errors.KsiErr(err).Code())

	// Unknown certificate.
	err = f.VerifyRecord(newCalAuthRec(t, newPubData(t, now, "root"), fx.signer.Key, []byte{0x01}), fx.verifier)
	require.Error(t, err)
	assert.Equal(t, errors.KsiPkiCertificateNotTrusted, errors.KsiErr(err).Code())

	// Certificate is not valid at the publication time.
	err = f.VerifyRecord(newCalAuthRec(t, newPubData(t, 1000, "root"), fx.signer.Key, testCertID), fx.verifier)
	require.Error(t, err)
	assert.Equal(t, errors.KsiPkiCertificateNotTrusted, errors.KsiErr(err).Code())
}

func testFileHandler(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*fixture)

	h, err := NewFileHandler(FileHandlerSetSource(FileFromBytes(fx.raw)), FileHandlerSetVerifier(fx.verifier))
	require.NoError(t, err)

	f1, err := h.ReceiveFile()
	require.NoError(t, err)
	f2, err := h.ReceiveFile()
	require.NoError(t, err)
	assert.Same(t, f1, f2, "File must be served from cache.")
	v, err := h.Verifier()
	require.NoError(t, err)
	assert.Same(t, fx.verifier, v)

	rec := newCalAuthRec(t, newPubData(t, time.Now().Unix(), "root"), fx.signer.Key, testCertID)
	assert.NoError(t, h.VerifyRecord(rec))

	// Explicitly set file is not verified on receive.
	set := newTestFile(t, fx)
	h, err = NewFileHandler(FileHandlerSetFile(set))
	require.NoError(t, err)
	f, err := h.ReceiveFile()
	require.NoError(t, err)
	assert.Same(t, set, f)
	assert.Error(t, h.VerifyRecord(rec), "Verifier is not configured.")
	assert.Error(t, h.Verify(f), "Verifier is not configured.")

	// Untrusted file is not served.
	untrusted, err := pki.NewVerifier(pki.VerifierSetTrustedCertificate(test.NewPkiSigner(t, testCN).Cert))
	require.NoError(t, err)
	h, err = NewFileHandler(FileHandlerSetSource(FileFromBytes(fx.raw)), FileHandlerSetVerifier(untrusted))
	require.NoError(t, err)
	_, err = h.ReceiveFile()
	assert.Error(t, err)
}

func testFileHandlerFromFile(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*fixture)

	path := filepath.Join(t.TempDir(), "ksi-publications.bin")
	require.NoError(t, os.WriteFile(path, fx.raw, 0o600))

	h, err := NewFileHandler(FileHandlerSetSource(FileFromFile(path)), FileHandlerSetVerifier(fx.verifier))
	require.NoError(t, err)
	f, err := h.ReceiveFile()
	require.NoError(t, err)
	raw, err := f.Bytes()
	require.NoError(t, err)
	assert.Equal(t, fx.raw, raw)
}

func testFileHandlerTTL(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*fixture)

	h, err := NewFileHandler(
		FileHandlerSetSource(FileFromBytes(fx.raw)),
		FileHandlerSetVerifier(fx.verifier),
		FileHandlerSetFileTTL(time.Millisecond),
	)
	require.NoError(t, err)
	ttl, err := h.FileTTL()
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, ttl)

	f1, err := h.ReceiveFile()
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	f2, err := h.ReceiveFile()
	require.NoError(t, err)
	assert.NotSame(t, f1, f2, "Expired file must be reloaded.")

	h, err = NewFileHandler()
	require.NoError(t, err)
	ttl, err = h.FileTTL()
	require.NoError(t, err)
	assert.Equal(t, defaultPubFileTTL, ttl)
}

func testFileHandlerOptions(t *testing.T, _ ...interface{}) {
	for _, setting := range []FileHandlerSetting{
		nil,
		FileHandlerSetFileTTL(-time.Second),
		FileHandlerSetSource(nil),
		FileHandlerSetFile(nil),
		FileHandlerSetVerifier(nil),
	} {
		_, err := NewFileHandler(setting)
		assert.Error(t, err)
	}

	h, err := NewFileHandler()
	require.NoError(t, err)
	_, err = h.ReceiveFile()
	require.Error(t, err)
	assert.Equal(t, errors.KsiInvalidStateError, errors.KsiErr(err).Code())

	var nilHandler *FileHandler
	_, err = nilHandler.ReceiveFile()
	assert.Error(t, err)
	_, err = nilHandler.FileTTL()
	assert.Error(t, err)
}
