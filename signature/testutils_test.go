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

package signature

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"testing"
	"time"

	"github.com/fullsailor/pkcs7"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/pdu"
	"github.com/guardtime/ksicore/pki"
	"github.com/guardtime/ksicore/publications"
	"github.com/guardtime/ksicore/test"
	"github.com/guardtime/ksicore/tlv"
)

const (
	testCN      = "KSI Test Calendar"
	testSigType = "1.2.840.113549.1.1.11"

	tagPubFileHeader    = 0x701
	tagPubFileSignature = 0x704
)

var testCertID = []byte{0x4a, 0x1f, 0x2e, 0x03}

// sigFixture holds a consistent set of signature components. The signing time is 10 minutes in the past, the
// publication time of the publications file is now.
type sigFixture struct {
	signer   *test.PkiSigner
	verifier *pki.Verifier

	docHash    *hash.DataHash
	aggrTime   int64
	pubTime    int64
	outputHash *hash.DataHash

	pubFileRaw []byte
}

func newSigFixture(t *testing.T) *sigFixture {
	signer := test.NewPkiSigner(t, testCN)
	verifier, err := pki.NewVerifier(
		pki.VerifierSetTrustedCertificate(signer.Cert),
		pki.VerifierSetCertConstraint(pki.OidCommonName, testCN),
	)
	require.NoError(t, err)

	now := time.Now().Unix()
	fx := &sigFixture{
		signer:   signer,
		verifier: verifier,
		docHash:  sumOf(t, "document"),
		aggrTime: now - 600,
		pubTime:  now,
	}
	outputHash, _, err := pdu.AggregationChainList(fx.aggrChains(t, fx.docHash)).Aggregate(0)
	require.NoError(t, err)
	fx.outputHash = outputHash

	fx.pubFileRaw = buildPubFile(t, signer,
		newPubRec(t, newCalendarChain(t, fx.outputHash, fx.aggrTime, fx.pubTime, "")),
	)
	return fx
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

// aggrChains returns the aggregation hash chains from docHash up to the calendar.
func (fx *sigFixture) aggrChains(t *testing.T, docHash *hash.DataHash) []*pdu.AggregationChain {
	return newAggrChains(t, hash.SHA2_256, docHash, fx.aggrTime, 0)
}

// newAggrChains returns two aggregation hash chains, the lowest first. The first link of the lowest chain has the
// level correction firstLvl.
func newAggrChains(t *testing.T, alg hash.Algorithm, docHash *hash.DataHash, aggrTime int64,
	firstLvl byte) []*pdu.AggregationChain {

	lowerID, err := pdu.NewMetaData("lower-client", pdu.MetaDataMachineID("host-1"))
	require.NoError(t, err)
	lower := buildAggrChain(t, alg, docHash, aggrTime, nil,
		aggrLink{left: true, lvl: firstLvl, sibling: pdu.LinkSiblingHash(sumOf(t, "sibling-1"))},
		aggrLink{left: false, lvl: 1, sibling: pdu.LinkSiblingHash(sumOf(t, "sibling-2"))},
		aggrLink{left: true, sibling: pdu.LinkSiblingMetaData(lowerID)},
	)
	lowerRoot, lowerLvl, err := lower.Aggregate(0)
	require.NoError(t, err)
	require.NotZero(t, lowerLvl)

	upperID, err := pdu.NewMetaData("upper-client")
	require.NoError(t, err)
	upper := buildAggrChain(t, alg, lowerRoot, aggrTime, nil,
		aggrLink{left: true, sibling: pdu.LinkSiblingMetaData(upperID)},
		aggrLink{left: false, lvl: 2, sibling: pdu.LinkSiblingHash(sumOf(t, "sibling-3"))},
		aggrLink{left: true, sibling: pdu.LinkSiblingHash(sumOf(t, "sibling-4"))},
	)

	upperIndex, err := upper.ChainIndex()
	require.NoError(t, err)
	b, err := pdu.NewAggregationChainBuilder(pdu.BuildFromAggregationChain(lower))
	require.NoError(t, err)
	require.NoError(t, b.PrependChainIndex(upperIndex))
	lower, err = b.Build()
	require.NoError(t, err)

	return []*pdu.AggregationChain{lower, upper}
}

type aggrLink struct {
	left    bool
	lvl     byte
	sibling pdu.LinkSiblingDataSetter
}

func buildAggrChain(t *testing.T, alg hash.Algorithm, input *hash.DataHash, aggrTime int64, index []uint64,
	links ...aggrLink) *pdu.AggregationChain {

	b, err := pdu.NewAggregationChainBuilder(pdu.BuildFromImprint(alg, input))
	require.NoError(t, err)
	require.NoError(t, b.SetAggregationTime(time.Unix(aggrTime, 0)))
	if len(index) != 0 {
		require.NoError(t, b.PrependChainIndex(index))
	}
	for _, l := range links {
		require.NoError(t, b.AddChainLink(l.left, l.lvl, l.sibling))
	}
	c, err := b.Build()
	require.NoError(t, err)
	return c
}

func highBit(r int64) int64 {
	for r&(r-1) != 0 {
		r &= r - 1
	}
	return r
}

// calendarLinks returns the calendar hash chain links of the leaf aggr in the calendar tree of publication time pub,
// from the leaf up. The right link siblings depend only on the leaf, the left link siblings are salted.
func calendarLinks(t *testing.T, aggr, pub int64, salt string) []*pdu.ChainLink {
	var links []*pdu.ChainLink
	for r, s := pub, int64(0); r > 0; {
		hb := highBit(r)
		var (
			link *pdu.ChainLink
			err  error
		)
		if aggr-s < hb {
			link, err = pdu.NewCalendarChainLink(true, sumOf(t, fmt.Sprintf("%s:%d:%d", salt, s, r)))
			r = hb - 1
		} else {
			link, err = pdu.NewCalendarChainLink(false, sumOf(t, fmt.Sprintf("%d:%d", s, hb)))
			s += hb
			r -= hb
		}
		require.NoError(t, err)
		links = append(links, link)
	}
	for i, j := 0, len(links)-1; i < j; i, j = i+1, j-1 {
		links[i], links[j] = links[j], links[i]
	}
	return links
}

func newCalendarChain(t *testing.T, input *hash.DataHash, aggr, pub int64, salt string) *pdu.CalendarChain {
	c, err := pdu.NewCalendarChain(time.Unix(pub, 0), input, calendarLinks(t, aggr, pub, salt)...)
	require.NoError(t, err)
	return c
}

func calendarPubData(t *testing.T, c *pdu.CalendarChain) *pdu.PublicationData {
	pubTime, err := c.PublicationTime()
	require.NoError(t, err)
	root, err := c.Aggregate()
	require.NoError(t, err)
	d, err := pdu.NewPublicationData(pdu.PubDataFromImprint(pubTime, root))
	require.NoError(t, err)
	return d
}

func newPubRec(t *testing.T, c *pdu.CalendarChain) *pdu.PublicationRec {
	rec, err := pdu.NewPublicationRec(calendarPubData(t, c), pdu.PubRecOptPublicationRef("Test publication"))
	require.NoError(t, err)
	return rec
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
	calAuthRec, err := pdu.ParseCalendarAuthRec(encode(t, rec))
	require.NoError(t, err)
	return calAuthRec
}

// buildPubFile returns a publications file signed by s, containing the signer certificate and the publications.
func buildPubFile(t *testing.T, s *test.PkiSigner, recs ...*pdu.PublicationRec) []byte {
	var body bytes.Buffer
	body.WriteString(publications.FileMagic)

	version, err := tlv.NewUint64(0x01, 2)
	require.NoError(t, err)
	created, err := tlv.NewUint64(0x02, uint64(time.Now().Unix()))
	require.NoError(t, err)
	body.Write(encode(t, mustTlv(t, tlv.ConstructComposite(tagPubFileHeader, false, false, version, created))))

	certRec, err := pdu.NewCertificateRecord(testCertID, s.Cert.Raw)
	require.NoError(t, err)
	raw, err := certRec.Bytes()
	require.NoError(t, err)
	body.Write(raw)

	for _, rec := range recs {
		raw, err := tlv.Serialize(rec, pdu.PublicationsFileRecTemplate())
		require.NoError(t, err)
		body.Write(raw)
	}

	sd, err := pkcs7.NewSignedData(body.Bytes())
	require.NoError(t, err)
	require.NoError(t, sd.AddSigner(s.Cert, s.Key, pkcs7.SignerInfoConfig{}))
	sd.Detach()
	sig, err := sd.Finish()
	require.NoError(t, err)

	sigTlv, err := tlv.NewBinary(tagPubFileSignature, sig)
	require.NoError(t, err)
	body.Write(encode(t, sigTlv))
	return body.Bytes()
}

func (fx *sigFixture) pubFile(t *testing.T) *publications.File {
	f, err := publications.NewFile(publications.FileFromBytes(fx.pubFileRaw))
	require.NoError(t, err)
	return f
}

func (fx *sigFixture) pubFileHandler(t *testing.T) *publications.FileHandler {
	h, err := publications.NewFileHandler(
		publications.FileHandlerSetSource(publications.FileFromBytes(fx.pubFileRaw)),
		publications.FileHandlerSetVerifier(fx.verifier),
	)
	require.NoError(t, err)
	return h
}

// parse serializes the signature and parses it back with the internal verification.
func parse(t *testing.T, s *Signature) *Signature {
	raw, err := s.Serialize()
	require.NoError(t, err)
	sig, err := New(BuildFromBytes(raw))
	require.NoError(t, err)
	return sig
}

// aggregated returns a signature consisting of the aggregation hash chains only.
func (fx *sigFixture) aggregated(t *testing.T) *Signature {
	return parse(t, &Signature{aggrChainList: fx.aggrChains(t, fx.docHash)})
}

// unextended returns a signature with a calendar hash chain and a calendar authentication record at the signing time.
func (fx *sigFixture) unextended(t *testing.T) *Signature {
	cal := newCalendarChain(t, fx.outputHash, fx.aggrTime, fx.aggrTime, "")
	return parse(t, &Signature{
		aggrChainList: fx.aggrChains(t, fx.docHash),
		calChain:      cal,
		calAuthRec:    newCalAuthRec(t, calendarPubData(t, cal), fx.signer.Key, testCertID),
	})
}

// extended returns a signature extended to the publication at pub.
func (fx *sigFixture) extended(t *testing.T, pub int64) *Signature {
	cal := newCalendarChain(t, fx.outputHash, fx.aggrTime, pub, "")
	return parse(t, &Signature{
		aggrChainList: fx.aggrChains(t, fx.docHash),
		calChain:      cal,
		publication:   newPubRec(t, cal),
	})
}

// testCalendarProvider serves calendar hash chains computed on the fly. The zero to time is served as head.
type testCalendarProvider struct {
	t     *testing.T
	input *hash.DataHash
	head  int64
	salt  string
	shift int64
	err   error
	calls int
}

func (fx *sigFixture) calendarProvider(t *testing.T) *testCalendarProvider {
	return &testCalendarProvider{t: t, input: fx.outputHash, head: fx.pubTime}
}

func (p *testCalendarProvider) ReceiveCalendar(from, to time.Time) (*pdu.CalendarChain, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	pub := to.Unix()
	if to.IsZero() {
		pub = p.head
	}
	return newCalendarChain(p.t, p.input, from.Unix()+p.shift, pub, p.salt), nil
}

// withElements returns a copy of the composite TLV raw with the elements of the tag replaced by values. The values are
// placed at the position of the first replaced element.
func withElements(t *testing.T, raw []byte, tag uint16, values ...*tlv.Tlv) []byte {
	root := mustTlv(t, tlv.ConstructFromSlice(raw))
	nested, err := root.Nested()
	require.NoError(t, err)

	var (
		children []*tlv.Tlv
		replaced bool
	)
	for _, n := range nested {
		if n.Tag != tag {
			children = append(children, n)
			continue
		}
		if !replaced {
			children = append(children, values...)
			replaced = true
		}
	}
	require.True(t, replaced, "Element not found.")
	return encode(t, mustTlv(t, tlv.ConstructComposite(root.Tag, root.NonCritical, root.ForwardUnknown, children...)))
}

func withChainIndex(t *testing.T, c *pdu.AggregationChain, index ...uint64) *pdu.AggregationChain {
	raw, err := c.Bytes()
	require.NoError(t, err)
	var values []*tlv.Tlv
	for _, i := range index {
		v, err := tlv.NewUint64(0x03, i)
		require.NoError(t, err)
		values = append(values, v)
	}
	tmp, err := pdu.ParseAggregationChain(withElements(t, raw, 0x03, values...))
	require.NoError(t, err)
	return tmp
}

// newRfc3161 returns an RFC3161 record for the document hash docHash.
func newRfc3161(t *testing.T, docHash *hash.DataHash, aggrTime int64, index []uint64,
	tstAlgo, sigAttrAlgo hash.Algorithm) *pdu.RFC3161 {

	elem := func(c *tlv.Tlv, err error) *tlv.Tlv {
		require.NoError(t, err)
		return c
	}
	children := []*tlv.Tlv{elem(tlv.NewUint64(0x02, uint64(aggrTime)))}
	for _, i := range index {
		children = append(children, elem(tlv.NewUint64(0x03, i)))
	}
	children = append(children,
		elem(tlv.NewImprint(0x05, docHash)),
		elem(tlv.NewBinary(0x10, []byte("tstinfo-prefix"))),
		elem(tlv.NewBinary(0x11, []byte("tstinfo-suffix"))),
		elem(tlv.NewUint8(0x12, uint64(tstAlgo))),
		elem(tlv.NewBinary(0x13, []byte("sigattr-prefix"))),
		elem(tlv.NewBinary(0x14, []byte("sigattr-suffix"))),
		elem(tlv.NewUint8(0x15, uint64(sigAttrAlgo))),
	)
	rec, err := pdu.ParseRFC3161(encode(t, mustTlv(t, tlv.ConstructComposite(0x806, false, false, children...))))
	require.NoError(t, err)
	return rec
}

// rfc3161Chains returns an RFC3161 record for docHash and the aggregation hash chains on top of it. The input hash
// of the lowest chain is the record output hash with the algorithm outAlgo.
func rfc3161Chains(t *testing.T, docHash *hash.DataHash, aggrTime int64, tstAlgo, outAlgo hash.Algorithm) (
	*pdu.RFC3161, []*pdu.AggregationChain) {

	tmp := newRfc3161(t, docHash, aggrTime, []uint64{1}, tstAlgo, hash.SHA2_256)
	out, err := tmp.OutputHash(outAlgo)
	require.NoError(t, err)
	chains := newAggrChains(t, hash.SHA2_256, out, aggrTime, 0)
	index, err := chains[0].ChainIndex()
	require.NoError(t, err)
	return newRfc3161(t, docHash, aggrTime, index, tstAlgo, hash.SHA2_256), chains
}

// withMetaData returns a copy of c with the metadata of its first metadata link replaced by the raw TLV md.
func withMetaData(t *testing.T, c *pdu.AggregationChain, md []byte) *pdu.AggregationChain {
	raw, err := c.Bytes()
	require.NoError(t, err)
	root := mustTlv(t, tlv.ConstructFromSlice(raw))
	nested, err := root.Nested()
	require.NoError(t, err)

	var (
		children []*tlv.Tlv
		replaced bool
	)
	for _, n := range nested {
		if replaced || (n.Tag != 0x07 && n.Tag != 0x08) {
			children = append(children, n)
			continue
		}
		link, err := n.Nested()
		require.NoError(t, err)
		var linkChildren []*tlv.Tlv
		for _, l := range link {
			if l.Tag == 0x04 {
				l = mustTlv(t, tlv.ConstructFromSlice(md))
				replaced = true
			}
			linkChildren = append(linkChildren, l)
		}
		children = append(children, mustTlv(t, tlv.ConstructComposite(n.Tag, n.NonCritical, n.ForwardUnknown,
			linkChildren...)))
	}
	require.True(t, replaced, "Metadata link not found.")

	tmp, err := pdu.ParseAggregationChain(encode(t, mustTlv(t, tlv.ConstructComposite(root.Tag, root.NonCritical,
		root.ForwardUnknown, children...))))
	require.NoError(t, err)
	return tmp
}
