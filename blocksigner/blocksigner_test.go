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

package blocksigner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
	"github.com/guardtime/ksicore/signature"
	"github.com/guardtime/ksicore/test"
	"github.com/guardtime/ksicore/tlv"
	"github.com/guardtime/ksicore/treebuilder"
)

func TestUnitBlocksigner(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	test.Suite{
		{Func: testNewWithNilSigner},
		{Func: testNewWithNilOption},
		{Func: testSignWithNilReceiver},
		{Func: testSignWithNoSigner},
		{Func: testSignEmptyBlock},
		{Func: testSignatures},
		{Func: testSignaturesNotSigned},
		{Func: testSignaturesWithMetadataAndMasking},
		{Func: testSignaturesWithInputLevel},
		{Func: testSignaturesSingleRecord},
		{Func: testSignaturesNilReceiver},
		{Func: testSignerError},
		{Func: testSignerNoSignature},
	}.Runner(t)
}

// testSigner signs the tree root locally. The root signature consists of an aggregation hash chain with a metadata
// link and a calendar hash chain.
type testSigner struct {
	t        *testing.T
	aggrTime int64
	calls    int
	level    byte
}

func newTestSigner(t *testing.T) *testSigner {
	return &testSigner{t: t, aggrTime: time.Now().Unix() - 600}
}

func (s *testSigner) Sign(rootHash *hash.DataHash, level byte) (*signature.Signature, error) {
	t := s.t
	s.calls++
	s.level = level

	b, err := pdu.NewAggregationChainBuilder(pdu.BuildFromImprint(rootHash.Algorithm(), rootHash))
	require.NoError(t, err)
	require.NoError(t, b.SetAggregationTime(time.Unix(s.aggrTime, 0)))
	require.NoError(t, b.AddChainLink(true, level, pdu.LinkSiblingHash(sumOf(t, "root-sibling"))))
	md, err := pdu.NewMetaData("root-client")
	require.NoError(t, err)
	require.NoError(t, b.AddChainLink(true, 0, pdu.LinkSiblingMetaData(md)))
	chain, err := b.Build()
	require.NoError(t, err)

	output, _, err := chain.Aggregate(0)
	require.NoError(t, err)
	cal, err := pdu.NewCalendarChain(time.Unix(s.aggrTime, 0), output, calendarLinks(t, s.aggrTime)...)
	require.NoError(t, err)

	chainRaw, err := chain.Bytes()
	require.NoError(t, err)
	calRaw, err := cal.Bytes()
	require.NoError(t, err)
	sigTlv, err := tlv.NewTlv(tlv.ConstructComposite(0x800, false, false,
		mustTlv(t, chainRaw),
		mustTlv(t, calRaw),
	))
	require.NoError(t, err)
	raw, err := sigTlv.Bytes()
	require.NoError(t, err)

	return signature.New(signature.BuildFromBytes(raw))
}

// calendarLinks returns the calendar hash chain links of the most recent leaf of the calendar tree at pub.
func calendarLinks(t *testing.T, pub int64) []*pdu.ChainLink {
	var links []*pdu.ChainLink
	for r, s := pub, int64(0); r > 0; {
		hb := r
		for hb&(hb-1) != 0 {
			hb &= hb - 1
		}
		link, err := pdu.NewCalendarChainLink(false, sumOf(t, fmt.Sprintf("%d:%d", s, hb)))
		require.NoError(t, err)
		links = append([]*pdu.ChainLink{link}, links...)
		s += hb
		r -= hb
	}
	return links
}

func mustTlv(t *testing.T, raw []byte) *tlv.Tlv {
	v, err := tlv.NewTlv(tlv.ConstructFromSlice(raw))
	require.NoError(t, err)
	return v
}

func sumOf(t *testing.T, s string) *hash.DataHash {
	h, err := hash.Sum(hash.SHA2_256, []byte(s))
	require.NoError(t, err)
	return h
}

func records(t *testing.T, n int) []*hash.DataHash {
	recs := make([]*hash.DataHash, n)
	for i := range recs {
		recs[i] = sumOf(t, fmt.Sprintf("record-%d", i))
	}
	return recs
}

func testNewWithNilSigner(t *testing.T, _ ...interface{}) {
	_, err := New(nil)
	assert.Equal(t, errors.KsiInvalidArgumentError, errors.KsiErr(err).Code())
}

func testNewWithNilOption(t *testing.T, _ ...interface{}) {
	_, err := New(newTestSigner(t), nil)
	assert.Error(t, err, "Must not be possible to create blocksigner with nil option.")

	var opt treebuilder.TreeOpt
	_, err = New(newTestSigner(t), opt)
	assert.Error(t, err)
}

func testSignWithNilReceiver(t *testing.T, _ ...interface{}) {
	var bs *Blocksigner
	_, err := bs.Sign()
	assert.Equal(t, errors.KsiInvalidArgumentError, errors.KsiErr(err).Code())
}

func testSignWithNoSigner(t *testing.T, _ ...interface{}) {
	var bs Blocksigner
	_, err := bs.Sign()
	assert.Equal(t, errors.KsiInvalidArgumentError, errors.KsiErr(err).Code())
}

func testSignEmptyBlock(t *testing.T, _ ...interface{}) {
	signer := newTestSigner(t)
	bs, err := New(signer)
	require.NoError(t, err)

	_, err = bs.Sign()
	assert.Equal(t, errors.KsiInvalidStateError, errors.KsiErr(err).Code())
	assert.Zero(t, signer.calls)
}

func testSignatures(t *testing.T, _ ...interface{}) {
	signer := newTestSigner(t)
	bs, err := New(signer)
	require.NoError(t, err)

	recs := records(t, 5)
	for i, r := range recs {
		require.NoError(t, bs.AddNode(r, treebuilder.InputHashOptionUserContext(i)))
	}
	rootSig, err := bs.Sign()
	require.NoError(t, err)
	assert.Equal(t, 1, signer.calls)
	assert.Equal(t, byte(3), signer.level)

	rootHsh, _, err := bs.Aggregate()
	require.NoError(t, err)
	docHsh, err := rootSig.DocumentHash()
	require.NoError(t, err)
	assert.True(t, rootHsh.Equal(docHsh))

	// No more records after signing.
	assert.Error(t, bs.AddNode(sumOf(t, "late")))

	sigs, ctxs, err := bs.Signatures()
	require.NoError(t, err)
	require.Len(t, sigs, len(recs))
	require.Len(t, ctxs, len(recs))

	rootOutput, _, err := rootSig.AggregationOutputHash()
	require.NoError(t, err)
	for i, sig := range sigs {
		assert.Equal(t, i, ctxs[i])

		docHsh, err := sig.DocumentHash()
		require.NoError(t, err)
		assert.True(t, recs[i].Equal(docHsh), "Record %d.", i)
		assert.NoError(t, sig.Verify(signature.InternalPolicy, signature.VerCtxOptDocumentHash(recs[i])), "Record %d.", i)

		output, _, err := sig.AggregationOutputHash()
		require.NoError(t, err)
		assert.True(t, rootOutput.Equal(output))

		ids, err := sig.Identity()
		require.NoError(t, err)
		assert.Equal(t, "root-client", ids.String())
	}

	// The record signature does not match another record.
	assert.Error(t, sigs[0].Verify(signature.InternalPolicy, signature.VerCtxOptDocumentHash(recs[1])))
}

func testSignaturesNotSigned(t *testing.T, _ ...interface{}) {
	bs, err := New(newTestSigner(t))
	require.NoError(t, err)
	require.NoError(t, bs.AddNode(sumOf(t, "record")))

	_, _, err = bs.Signatures()
	assert.Equal(t, errors.KsiInvalidStateError, errors.KsiErr(err).Code())
}

func testSignaturesWithMetadataAndMasking(t *testing.T, _ ...interface{}) {
	md, err := pdu.NewMetaData("block-client", pdu.MetaDataSequenceNr(1))
	require.NoError(t, err)

	bs, err := New(newTestSigner(t),
		treebuilder.TreeOptAlgorithm(hash.SHA2_512),
		treebuilder.TreeOptMaskingWithIndex([]byte("initialization vector")),
	)
	require.NoError(t, err)

	recs := records(t, 3)
	for _, r := range recs {
		require.NoError(t, bs.AddNode(r, treebuilder.InputHashOptionMetadata(md)))
	}
	_, err = bs.Sign()
	require.NoError(t, err)

	sigs, ctxs, err := bs.Signatures()
	require.NoError(t, err)
	require.Len(t, sigs, len(recs))
	for i, sig := range sigs {
		assert.Nil(t, ctxs[i])
		assert.NoError(t, sig.Verify(signature.InternalPolicy, signature.VerCtxOptDocumentHash(recs[i])), "Record %d.", i)

		ids, err := sig.Identity()
		require.NoError(t, err)
		assert.Equal(t, "root-client :: block-client", ids.String())
	}
}

func testSignaturesWithInputLevel(t *testing.T, _ ...interface{}) {
	signer := newTestSigner(t)
	bs, err := New(signer)
	require.NoError(t, err)

	recs := records(t, 2)
	require.NoError(t, bs.AddNode(recs[0], treebuilder.InputHashOptionLevel(2)))
	require.NoError(t, bs.AddNode(recs[1]))
	_, err = bs.Sign()
	require.NoError(t, err)
	assert.Equal(t, byte(3), signer.level)

	sigs, _, err := bs.Signatures()
	require.NoError(t, err)
	require.Len(t, sigs, 2)

	assert.NoError(t, sigs[0].Verify(signature.InternalPolicy,
		signature.VerCtxOptDocumentHash(recs[0]),
		signature.VerCtxOptInputHashLevel(2),
	))
	assert.NoError(t, sigs[1].Verify(signature.InternalPolicy, signature.VerCtxOptDocumentHash(recs[1])))
}

func testSignaturesSingleRecord(t *testing.T, _ ...interface{}) {
	signer := newTestSigner(t)
	bs, err := New(signer)
	require.NoError(t, err)

	rec := sumOf(t, "single record")
	require.NoError(t, bs.AddNode(rec, treebuilder.InputHashOptionUserContext("only")))
	rootSig, err := bs.Sign()
	require.NoError(t, err)
	assert.Equal(t, byte(0), signer.level)

	sigs, ctxs, err := bs.Signatures()
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, []interface{}{"only"}, ctxs)
	assert.NotSame(t, rootSig, sigs[0])
	assert.NoError(t, sigs[0].Verify(signature.InternalPolicy, signature.VerCtxOptDocumentHash(rec)))
}

func testSignaturesNilReceiver(t *testing.T, _ ...interface{}) {
	var bs *Blocksigner
	_, _, err := bs.Signatures()
	assert.Equal(t, errors.KsiInvalidArgumentError, errors.KsiErr(err).Code())
}

func testSignerError(t *testing.T, _ ...interface{}) {
	bs, err := New(RootSignerFunc(func(*hash.DataHash, byte) (*signature.Signature, error) {
		return nil, errors.New(errors.KsiServiceUpstreamTimeout)
	}))
	require.NoError(t, err)
	require.NoError(t, bs.AddNode(sumOf(t, "record")))

	_, err = bs.Sign()
	assert.Equal(t, errors.KsiServiceUpstreamTimeout, errors.KsiErr(err).Code())
	_, _, err = bs.Signatures()
	assert.Error(t, err)
}

func testSignerNoSignature(t *testing.T, _ ...interface{}) {
	bs, err := New(RootSignerFunc(func(*hash.DataHash, byte) (*signature.Signature, error) {
		return nil, nil
	}))
	require.NoError(t, err)
	require.NoError(t, bs.AddNode(sumOf(t, "record")))

	_, err = bs.Sign()
	assert.Equal(t, errors.KsiInvalidStateError, errors.KsiErr(err).Code())
}
