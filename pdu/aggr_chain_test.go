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
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/test"
	"github.com/guardtime/ksicore/tlv"
)

func TestUnitAggrChain(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	test.Suite{
		{Func: testNilAggrChainUsage},
		{Func: testAggrChainAggregate},
		{Func: testAggrChainLevelOutOfRange},
		{Func: testAggrChainShape},
		{Func: testAggrChainSerialization},
		{Func: testAggrChainMissingInputHash},
		{Func: testAggrChainUnknownCriticalTag},
		{Func: testAggrChainSkipNonCritical},
		{Func: testAggrChainIdentity},
		{Func: testAggrChainListAggregate},
		{Func: testAggrChainListDiscontinuity},
		{Func: testAggrChainListSort},
		{Func: testChainLinkSiblingData},
		{Func: testBuilderFromChain},
		{Func: testBuilderLevelCorrection},
		{Func: testBuilderChainIndexMismatch},
	}.Runner(t)
}

func sumOf(t *testing.T, s string) *hash.DataHash {
	h, err := hash.Sum(hash.SHA2_256, []byte(s))
	require.NoError(t, err)
	return h
}

// step returns the expected SHA-256 chain step imprint.
func step(left, right []byte, lvl byte) []byte {
	buf := append(append(append([]byte(nil), left...), right...), lvl)
	sum := sha256.Sum256(buf)
	return append([]byte{byte(hash.SHA2_256)}, sum[:]...)
}

func buildTestChain(t *testing.T) *AggregationChain {
	b, err := NewAggregationChainBuilder(BuildFromImprint(hash.SHA2_256, sumOf(t, "input")))
	require.NoError(t, err)
	require.NoError(t, b.SetAggregationTime(unixTime(1400000000)))
	require.NoError(t, b.AddChainLink(true, 0, LinkSiblingHash(sumOf(t, "s1"))))
	require.NoError(t, b.AddChainLink(false, 2, LinkSiblingHash(sumOf(t, "s2"))))
	chain, err := b.Build()
	require.NoError(t, err)
	return chain
}

func testNilAggrChainUsage(t *testing.T, _ ...interface{}) {
	var chain *AggregationChain
	_, err := chain.AggregationTime()
	assert.Error(t, err)
	_, _, err = chain.Aggregate(0)
	assert.Error(t, err)
	_, err = chain.Bytes()
	assert.Error(t, err)
	assert.Equal(t, "", chain.String())

	_, _, err = AggregationChainList(nil).Aggregate(0)
	assert.Error(t, err)
}

func testAggrChainAggregate(t *testing.T, _ ...interface{}) {
	chain := buildTestChain(t)

	h, lvl, err := chain.Aggregate(0)
	require.NoError(t, err)

	first := step(sumOf(t, "input").Imprint(), sumOf(t, "s1").Imprint(), 1)
	root := step(sumOf(t, "s2").Imprint(), first, 4)
	assert.Equal(t, byte(4), lvl)
	assert.Equal(t, hash.Imprint(root), h.Imprint())

	// Input level is carried into the first step.
	h, lvl, err = chain.Aggregate(3)
	require.NoError(t, err)
	first = step(sumOf(t, "input").Imprint(), sumOf(t, "s1").Imprint(), 4)
	assert.Equal(t, byte(7), lvl)
	assert.Equal(t, hash.Imprint(step(sumOf(t, "s2").Imprint(), first, 7)), h.Imprint())
}

func testAggrChainLevelOutOfRange(t *testing.T, _ ...interface{}) {
	chain := buildTestChain(t)

	_, _, err := chain.Aggregate(0xfe)
	require.Error(t, err)
	assert.Equal(t, errors.KsiInvalidFormatError, errors.KsiErr(err).Code())
	assert.Equal(t, "Aggregation chain level out of range.", errors.KsiErr(err).Message()[0])
}

func testAggrChainShape(t *testing.T, _ ...interface{}) {
	chain := buildTestChain(t)

	shape, err := chain.CalculateShape()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x05), shape)

	index, err := chain.ChainIndex()
	require.NoError(t, err)
	assert.Equal(t, []uint64{0x05}, index)
}

func testAggrChainSerialization(t *testing.T, _ ...interface{}) {
	chain := buildTestChain(t)

	raw, err := chain.Bytes()
	require.NoError(t, err)

	parsed, err := ParseAggregationChain(raw)
	require.NoError(t, err)

	again, err := parsed.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, again)

	links, err := parsed.ChainLinks()
	require.NoError(t, err)
	require.Len(t, links, 2)
	left, _ := links[0].IsLeft()
	right, _ := links[1].IsLeft()
	assert.True(t, left)
	assert.False(t, right)
	corr, _ := links[1].LevelCorrection()
	assert.Equal(t, uint64(2), corr)

	aggrTime, err := parsed.AggregationTime()
	require.NoError(t, err)
	assert.Equal(t, int64(1400000000), aggrTime.Unix())

	h1, l1, err := chain.Aggregate(0)
	require.NoError(t, err)
	h2, l2, err := parsed.Aggregate(0)
	require.NoError(t, err)
	assert.True(t, h1.Equal(h2))
	assert.Equal(t, l1, l2)
}

// rebuild returns raw with the nested elements of the root replaced by the result of f.
func rebuild(t *testing.T, raw []byte, f func([]*tlv.Tlv) []*tlv.Tlv) []byte {
	root, err := tlv.NewTlv(tlv.ConstructFromSlice(raw))
	require.NoError(t, err)
	nested, err := root.Nested()
	require.NoError(t, err)
	tmp, err := tlv.NewTlv(tlv.ConstructComposite(root.Tag, root.NonCritical, root.ForwardUnknown, f(nested)...))
	require.NoError(t, err)
	res, err := tmp.Bytes()
	require.NoError(t, err)
	return res
}

func testAggrChainMissingInputHash(t *testing.T, _ ...interface{}) {
	raw, err := buildTestChain(t).Bytes()
	require.NoError(t, err)

	raw = rebuild(t, raw, func(in []*tlv.Tlv) []*tlv.Tlv {
		var out []*tlv.Tlv
		for _, n := range in {
			if n.Tag != 0x05 {
				out = append(out, n)
			}
		}
		return out
	})

	chain, err := ParseAggregationChain(raw)
	require.Error(t, err)
	assert.Nil(t, chain)
	assert.Equal(t, errors.KsiInvalidFormatError, errors.KsiErr(err).Code())
	assert.Equal(t, "Mandatory element missing: [0x801]->[0x05]input hash", errors.KsiErr(err).Message()[0])
}

func testAggrChainUnknownCriticalTag(t *testing.T, _ ...interface{}) {
	raw, err := buildTestChain(t).Bytes()
	require.NoError(t, err)

	raw = rebuild(t, raw, func(in []*tlv.Tlv) []*tlv.Tlv {
		unknown, err := tlv.NewUint64(0x1d, 1)
		require.NoError(t, err)
		return append(in, unknown)
	})

	_, err = ParseAggregationChain(raw)
	require.Error(t, err)
	assert.Equal(t, "Unknown critical tag: [0x801]->[0x1d]", errors.KsiErr(err).Message()[0])
}

func testAggrChainSkipNonCritical(t *testing.T, _ ...interface{}) {
	raw, err := buildTestChain(t).Bytes()
	require.NoError(t, err)

	raw = rebuild(t, raw, func(in []*tlv.Tlv) []*tlv.Tlv {
		unknown, err := tlv.NewTlv(tlv.ConstructRaw(0x1d, true, false, []byte{0x01}))
		require.NoError(t, err)
		return append(in, unknown)
	})

	chain, err := ParseAggregationChain(raw)
	require.NoError(t, err)
	_, _, err = chain.Aggregate(0)
	assert.NoError(t, err)
}

func testAggrChainIdentity(t *testing.T, _ ...interface{}) {
	md, err := NewMetaData("inner", MetaDataMachineID("machine"), MetaDataSequenceNr(7), MetaDataReqTime(123))
	require.NoError(t, err)
	legacy, err := NewLegacyID("outer")
	require.NoError(t, err)

	b, err := NewAggregationChainBuilder(BuildFromImprint(hash.SHA2_256, sumOf(t, "input")))
	require.NoError(t, err)
	require.NoError(t, b.AddChainLink(true, 0, LinkSiblingMetaData(md)))
	require.NoError(t, b.AddChainLink(false, 0, LinkSiblingHash(sumOf(t, "s"))))
	require.NoError(t, b.AddChainLink(true, 0, LinkSiblingLegacyID(legacy)))
	chain, err := b.Build()
	require.NoError(t, err)

	ids, err := chain.Identity()
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, IdentityTypeLegacyID, ids[0].Type)
	assert.Equal(t, "'outer' (legacy)", ids[0].String())
	assert.Equal(t, IdentityTypeMetadata, ids[1].Type)
	assert.Equal(t, "Client ID: 'inner'; Machine ID: 'machine'; Sequence number: 7; Request time: 123", ids[1].String())
	assert.Equal(t, "outer :: inner", ids.String())

	// Identity survives serialization.
	raw, err := chain.Bytes()
	require.NoError(t, err)
	parsed, err := ParseAggregationChain(raw)
	require.NoError(t, err)
	pids, err := parsed.Identity()
	require.NoError(t, err)
	assert.Equal(t, ids.String(), pids.String())

	h1, _, err := chain.Aggregate(0)
	require.NoError(t, err)
	h2, _, err := parsed.Aggregate(0)
	require.NoError(t, err)
	assert.True(t, h1.Equal(h2))
}

func testAggrChainListAggregate(t *testing.T, _ ...interface{}) {
	lower := buildTestChain(t)
	lowerRoot, lowerLvl, err := lower.Aggregate(0)
	require.NoError(t, err)

	b, err := NewAggregationChainBuilder(BuildFromImprint(hash.SHA2_256, lowerRoot))
	require.NoError(t, err)
	require.NoError(t, b.AddChainLink(true, 0, LinkSiblingHash(sumOf(t, "s3"))))
	upper, err := b.Build()
	require.NoError(t, err)

	root, lvl, err := AggregationChainList{lower, upper}.Aggregate(0)
	require.NoError(t, err)
	assert.Equal(t, lowerLvl+1, lvl)
	assert.Equal(t, hash.Imprint(step(lowerRoot.Imprint(), sumOf(t, "s3").Imprint(), lowerLvl+1)), root.Imprint())
}

func testAggrChainListDiscontinuity(t *testing.T, _ ...interface{}) {
	lower := buildTestChain(t)

	b, err := NewAggregationChainBuilder(BuildFromImprint(hash.SHA2_256, sumOf(t, "other")))
	require.NoError(t, err)
	require.NoError(t, b.AddChainLink(true, 0, LinkSiblingHash(sumOf(t, "s3"))))
	upper, err := b.Build()
	require.NoError(t, err)

	_, _, err = AggregationChainList{lower, upper}.Aggregate(0)
	require.Error(t, err)
	assert.Equal(t, "Hash values mismatch.", errors.KsiErr(err).Message()[0])
}

func testAggrChainListSort(t *testing.T, _ ...interface{}) {
	a := &AggregationChain{chainIndex: []uint64{1}}
	b := &AggregationChain{chainIndex: []uint64{1, 2, 3}}
	c := &AggregationChain{chainIndex: []uint64{1, 2}}

	l := AggregationChainList{a, b, c}
	l.Sort()
	assert.Equal(t, AggregationChainList{b, c, a}, l)
}

func testChainLinkSiblingData(t *testing.T, _ ...interface{}) {
	_, err := NewChainLink(true, 0, nil)
	assert.Error(t, err)

	link := &ChainLink{isLeft: true}
	_, err = link.siblingData()
	require.Error(t, err)
	assert.Equal(t, "Sibling data must consist of only one value.", errors.KsiErr(err).Message()[0])

	legacy, err := NewLegacyID("x")
	require.NoError(t, err)
	link = &ChainLink{isLeft: true, siblingHash: sumOf(t, "s"), legacyID: legacy}
	_, err = link.siblingData()
	assert.Error(t, err)

	_, _, err = ChainLinkList{}.aggregate(false, hash.SHA2_256, sumOf(t, "s"), 0)
	require.Error(t, err)
	assert.Equal(t, "Hash chain has no links.", errors.KsiErr(err).Message()[0])
}

func testBuilderFromChain(t *testing.T, _ ...interface{}) {
	chain := buildTestChain(t)

	b, err := NewAggregationChainBuilder(BuildFromAggregationChain(chain))
	require.NoError(t, err)
	require.NoError(t, b.AddChainLink(false, 0, LinkSiblingHash(sumOf(t, "s4"))))
	require.NoError(t, b.PrependChainIndex([]uint64{0x03}))
	_, err = b.Build()
	// The chain index of the source chain no longer matches the shape.
	require.Error(t, err)

	// The source chain is not affected.
	links, err := chain.ChainLinks()
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func testBuilderLevelCorrection(t *testing.T, _ ...interface{}) {
	b, err := NewAggregationChainBuilder(BuildFromImprint(hash.SHA2_256, sumOf(t, "input")))
	require.NoError(t, err)
	require.NoError(t, b.AddChainLink(true, 1, LinkSiblingHash(sumOf(t, "s1"))))

	require.NoError(t, b.AdjustLevelCorrection(LevelAdd, 2))
	require.NoError(t, b.AdjustLevelCorrection(LevelSubtract, 1))
	assert.Error(t, b.AdjustLevelCorrection(LevelSubtract, 3))

	chain, err := b.Build()
	require.NoError(t, err)
	links, err := chain.ChainLinks()
	require.NoError(t, err)
	corr, err := links[0].LevelCorrection()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), corr)

	_, err = b.Build()
	assert.Error(t, err, "Builder must be reset after Build.")
}

func testBuilderChainIndexMismatch(t *testing.T, _ ...interface{}) {
	b, err := NewAggregationChainBuilder(BuildFromImprint(hash.SHA2_256, sumOf(t, "input")))
	require.NoError(t, err)
	require.NoError(t, b.AddChainLink(true, 0, LinkSiblingHash(sumOf(t, "s1"))))
	require.NoError(t, b.PrependChainIndex([]uint64{0x02}))

	_, err = b.Build()
	assert.Error(t, err)
}
