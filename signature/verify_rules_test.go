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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
	"github.com/guardtime/ksicore/signature/verify"
	"github.com/guardtime/ksicore/signature/verify/reserr"
	"github.com/guardtime/ksicore/signature/verify/result"
	"github.com/guardtime/ksicore/test"
	"github.com/guardtime/ksicore/tlv"
)

func TestUnitInternalPolicy(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	test.Suite{
		{Func: testInternalPolicyOk},
		{Func: testInternalPolicyDocumentHash},
		{Func: testInternalPolicyFailures},
		{Func: testInternalPolicyRfc3161},
		{Func: testInternalPolicyMetaData},
		{Func: testInternalPolicyError},
	}.Runner(t, newSigFixture(t))
}

// verifyWith verifies the signature and returns the final rule result and the verification error.
func verifyWith(t *testing.T, sig *Signature, p Policy, opts ...VerCtxOption) (*RuleResult, error) {
	err := sig.Verify(p, opts...)
	res, rErr := sig.VerificationResult()
	require.NoError(t, rErr)
	require.NotNil(t, res)
	require.NotNil(t, res.FinalResult())
	return res.FinalResult(), err
}

func assertResult(t *testing.T, final *RuleResult, res result.Code, code reserr.Code) {
	resCode, err := final.ResultCode()
	require.NoError(t, err)
	errCode, err := final.ErrorCode()
	require.NoError(t, err)
	assert.Equal(t, res, resCode, "Unexpected result of %s.", final.RuleName())
	assert.Equal(t, code, errCode, "Unexpected error code of %s.", final.RuleName())
}

func assertFailure(t *testing.T, err error, final *RuleResult, res result.Code, code reserr.Code) {
	require.Error(t, err)
	assert.Equal(t, errors.KsiVerificationFailure, errors.KsiErr(err).Code())
	assert.Equal(t, int(code), errors.KsiErr(err).ExtCode())
	assertResult(t, final, res, code)
}

func pubDataOf(t *testing.T, sec int64, h *hash.DataHash) *pdu.PublicationData {
	d, err := pdu.NewPublicationData(pdu.PubDataFromImprint(time.Unix(sec, 0), h))
	require.NoError(t, err)
	return d
}

func testInternalPolicyOk(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)

	sig := fx.aggregated(t)
	require.NoError(t, sig.Verify(InternalPolicy))
	res, err := sig.VerificationResult()
	require.NoError(t, err)
	performed, successful := res.Steps()
	assert.Equal(t, performed, successful)
	assert.True(t, performed.Has(verify.StepDocument|verify.StepAggrChainInternally))
	assert.False(t, performed.Has(verify.StepAggrChainWithCalendarChain))

	sig = fx.unextended(t)
	require.NoError(t, sig.Verify(InternalPolicy))
	res, err = sig.VerificationResult()
	require.NoError(t, err)
	performed, successful = res.Steps()
	assert.Equal(t, performed, successful)
	assert.True(t, performed.Has(verify.StepAggrChainWithCalendarChain|verify.StepCalChainInternally|
		verify.StepCalChainWithCalAuthRec))
	assert.False(t, performed.Has(verify.StepCalChainWithPublication))

	sig = fx.extended(t, fx.pubTime)
	require.NoError(t, sig.Verify(InternalPolicy))
	res, err = sig.VerificationResult()
	require.NoError(t, err)
	performed, _ = res.Steps()
	assert.True(t, performed.Has(verify.StepCalChainWithPublication))
	assert.False(t, performed.Has(verify.StepCalChainWithCalAuthRec))
	require.Len(t, res.PolicyResults(), 1)
	assert.Equal(t, "InternalPolicy", res.PolicyResults()[0].PolicyName())
}

func testInternalPolicyDocumentHash(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	sig := fx.unextended(t)

	assert.NoError(t, sig.Verify(InternalPolicy, VerCtxOptDocumentHash(fx.docHash)))

	final, err := verifyWith(t, sig, InternalPolicy, VerCtxOptDocumentHash(sumOf(t, "other document")))
	assertFailure(t, err, final, result.FAIL, reserr.Gen01)
	assert.Equal(t, verify.StepDocument, final.Step())

	other, hErr := hash.Sum(hash.SHA2_384, []byte("document"))
	require.NoError(t, hErr)
	final, err = verifyWith(t, sig, InternalPolicy, VerCtxOptDocumentHash(other))
	assertFailure(t, err, final, result.FAIL, reserr.Gen04)

	final, err = verifyWith(t, sig, InternalPolicy, VerCtxOptInputHashLevel(1))
	assertFailure(t, err, final, result.FAIL, reserr.Gen03)
	assert.Equal(t, "Input hash level too large", final.Description())

	// The input hash level may not exceed the first level correction.
	chains := newAggrChains(t, hash.SHA2_256, fx.docHash, fx.aggrTime, 2)
	leveled := parse(t, &Signature{aggrChainList: chains})
	assert.NoError(t, leveled.Verify(InternalPolicy, VerCtxOptInputHashLevel(2), VerCtxOptDocumentHash(fx.docHash)))
	final, err = verifyWith(t, leveled, InternalPolicy, VerCtxOptInputHashLevel(3))
	assertFailure(t, err, final, result.FAIL, reserr.Gen03)
}

func testInternalPolicyFailures(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)

	chains := func() []*pdu.AggregationChain { return fx.aggrChains(t, fx.docHash) }
	extCal := newCalendarChain(t, fx.outputHash, fx.aggrTime, fx.pubTime, "")
	extRoot, err := extCal.Aggregate()
	require.NoError(t, err)
	cal := newCalendarChain(t, fx.outputHash, fx.aggrTime, fx.aggrTime, "")
	calRoot, err := cal.Aggregate()
	require.NoError(t, err)

	sha1Doc, err := hash.Sum(hash.SHA1, []byte("document"))
	require.NoError(t, err)

	tests := []struct {
		name string
		sig  func() *Signature
		code reserr.Code
	}{
		{
			name: "DeprecatedInputHash",
			sig: func() *Signature {
				return &Signature{aggrChainList: newAggrChains(t, hash.SHA2_256, sha1Doc, fx.aggrTime, 0)}
			},
			code: reserr.Int13,
		},
		{
			name: "DeprecatedAggregationAlgorithm",
			sig: func() *Signature {
				return &Signature{aggrChainList: newAggrChains(t, hash.SHA1, fx.docHash, fx.aggrTime, 0)}
			},
			code: reserr.Int15,
		},
		{
			name: "AggregationChainMismatch",
			sig: func() *Signature {
				a, b := chains(), fx.aggrChains(t, sumOf(t, "other document"))
				return &Signature{aggrChainList: []*pdu.AggregationChain{a[0], b[1]}}
			},
			code: reserr.Int01,
		},
		{
			name: "AggregationTimeMismatch",
			sig: func() *Signature {
				a := chains()
				b := newAggrChains(t, hash.SHA2_256, fx.docHash, fx.aggrTime+1, 0)
				return &Signature{aggrChainList: []*pdu.AggregationChain{a[0], b[1]}}
			},
			code: reserr.Int02,
		},
		{
			name: "ChainIndexShapeMismatch",
			sig: func() *Signature {
				a := chains()
				index, err := a[0].ChainIndex()
				require.NoError(t, err)
				a[0] = withChainIndex(t, a[0], index[0], index[1]+2)
				return &Signature{aggrChainList: a}
			},
			code: reserr.Int10,
		},
		{
			name: "ChainIndexNotContinued",
			sig: func() *Signature {
				a := chains()
				index, err := a[0].ChainIndex()
				require.NoError(t, err)
				a[0] = withChainIndex(t, a[0], index[0]+4, index[1])
				return &Signature{aggrChainList: a}
			},
			code: reserr.Int12,
		},
		{
			name: "MetaDataReadableAsImprint",
			sig: func() *Signature {
				md := append([]byte{0x04, 0x21, 0x01, 0x1f}, bytes.Repeat([]byte("a"), 30)...)
				md = append(md, 0x00)
				return &Signature{aggrChainList: []*pdu.AggregationChain{withMetaData(t, chains()[0], md)}}
			},
			code: reserr.Int11,
		},
		{
			name: "MetaDataPaddingNotTlv8",
			sig: func() *Signature {
				md := test.HexToBin("04 0a e0 1e 00 02 01 01 01 02 61 00")
				return &Signature{aggrChainList: []*pdu.AggregationChain{withMetaData(t, chains()[0], md)}}
			},
			code: reserr.Int11,
		},
		{
			name: "Rfc3161DeprecatedHashAlgorithm",
			sig: func() *Signature {
				rec, a := rfc3161Chains(t, fx.docHash, fx.aggrTime, hash.SHA1, hash.SHA2_256)
				return &Signature{aggrChainList: a, rfc3161: rec}
			},
			code: reserr.Int14,
		},
		{
			name: "Rfc3161DeprecatedOutputHashAlgorithm",
			sig: func() *Signature {
				rec, a := rfc3161Chains(t, fx.docHash, fx.aggrTime, hash.SHA2_256, hash.SHA1)
				return &Signature{aggrChainList: a, rfc3161: rec}
			},
			code: reserr.Int17,
		},
		{
			name: "Rfc3161OutputHashMismatch",
			sig: func() *Signature {
				rec, _ := rfc3161Chains(t, fx.docHash, fx.aggrTime, hash.SHA2_256, hash.SHA2_256)
				return &Signature{aggrChainList: chains(), rfc3161: rec}
			},
			code: reserr.Int01,
		},
		{
			name: "Rfc3161AggregationTimeMismatch",
			sig: func() *Signature {
				_, a := rfc3161Chains(t, fx.docHash, fx.aggrTime, hash.SHA2_256, hash.SHA2_256)
				index, err := a[0].ChainIndex()
				require.NoError(t, err)
				rec := newRfc3161(t, fx.docHash, fx.aggrTime+1, index, hash.SHA2_256, hash.SHA2_256)
				return &Signature{aggrChainList: a, rfc3161: rec}
			},
			code: reserr.Int02,
		},
		{
			name: "Rfc3161ChainIndexMismatch",
			sig: func() *Signature {
				_, a := rfc3161Chains(t, fx.docHash, fx.aggrTime, hash.SHA2_256, hash.SHA2_256)
				rec := newRfc3161(t, fx.docHash, fx.aggrTime, []uint64{7}, hash.SHA2_256, hash.SHA2_256)
				return &Signature{aggrChainList: a, rfc3161: rec}
			},
			code: reserr.Int12,
		},
		{
			name: "CalendarInputHashMismatch",
			sig: func() *Signature {
				return &Signature{
					aggrChainList: chains(),
					calChain:      newCalendarChain(t, sumOf(t, "other"), fx.aggrTime, fx.pubTime, ""),
				}
			},
			code: reserr.Int03,
		},
		{
			name: "CalendarAggregationTimeMismatch",
			sig: func() *Signature {
				return &Signature{
					aggrChainList: chains(),
					calChain:      newCalendarChain(t, fx.outputHash, fx.aggrTime-1, fx.aggrTime, ""),
				}
			},
			code: reserr.Int04,
		},
		{
			name: "CalendarShapeMismatch",
			sig: func() *Signature {
				c := newCalendarChain(t, fx.outputHash, fx.aggrTime+1, fx.aggrTime+5, "")
				raw, err := c.Bytes()
				require.NoError(t, err)
				aggrTime, err := tlv.NewUint64(0x02, uint64(fx.aggrTime))
				require.NoError(t, err)
				c, err = pdu.ParseCalendarChain(withElements(t, raw, 0x02, aggrTime))
				require.NoError(t, err)
				return &Signature{aggrChainList: chains(), calChain: c}
			},
			code: reserr.Int05,
		},
		{
			name: "PublicationTimeMismatch",
			sig: func() *Signature {
				rec, err := pdu.NewPublicationRec(pubDataOf(t, fx.pubTime+1, extRoot))
				require.NoError(t, err)
				return &Signature{aggrChainList: chains(), calChain: extCal, publication: rec}
			},
			code: reserr.Int07,
		},
		{
			name: "PublicationHashMismatch",
			sig: func() *Signature {
				rec, err := pdu.NewPublicationRec(pubDataOf(t, fx.pubTime, sumOf(t, "other root")))
				require.NoError(t, err)
				return &Signature{aggrChainList: chains(), calChain: extCal, publication: rec}
			},
			code: reserr.Int09,
		},
		{
			name: "AuthRecordTimeMismatch",
			sig: func() *Signature {
				return &Signature{
					aggrChainList: chains(),
					calChain:      cal,
					calAuthRec:    newCalAuthRec(t, pubDataOf(t, fx.aggrTime+1, calRoot), fx.signer.Key, testCertID),
				}
			},
			code: reserr.Int06,
		},
		{
			name: "AuthRecordHashMismatch",
			sig: func() *Signature {
				return &Signature{
					aggrChainList: chains(),
					calChain:      cal,
					calAuthRec: newCalAuthRec(t, pubDataOf(t, fx.aggrTime, sumOf(t, "other root")),
						fx.signer.Key, testCertID),
				}
			},
			code: reserr.Int08,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sig := tc.sig()
			final, err := verifyWith(t, sig, InternalPolicy)
			assertFailure(t, err, final, result.FAIL, tc.code)

			// The internal verification is part of the signature parsing.
			raw, sErr := sig.Serialize()
			require.NoError(t, sErr)
			_, err = New(BuildFromBytes(raw))
			assert.Error(t, err)
			_, err = New(BuildNoVerify(BuildFromBytes(raw)))
			assert.NoError(t, err)
		})
	}
}

func testInternalPolicyRfc3161(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)

	rec, chains := rfc3161Chains(t, fx.docHash, fx.aggrTime, hash.SHA2_256, hash.SHA2_256)
	sig := parse(t, &Signature{aggrChainList: chains, rfc3161: rec})

	docHash, err := sig.DocumentHash()
	require.NoError(t, err)
	assert.True(t, fx.docHash.Equal(docHash), "Document hash must be taken from the RFC3161 record.")
	assert.NoError(t, sig.Verify(InternalPolicy, VerCtxOptDocumentHash(fx.docHash)))

	// The first aggregation hash chain input is not the document hash.
	chainInput, err := chains[0].InputHash()
	require.NoError(t, err)
	final, err := verifyWith(t, sig, InternalPolicy, VerCtxOptDocumentHash(chainInput))
	assertFailure(t, err, final, result.FAIL, reserr.Gen01)

	// The document of the RFC3161 record is always at level 0.
	final, err = verifyWith(t, sig, InternalPolicy, VerCtxOptInputHashLevel(1))
	assertFailure(t, err, final, result.FAIL, reserr.Gen03)
}

func testInternalPolicyMetaData(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	lower := fx.aggrChains(t, fx.docHash)[0]

	for _, md := range []string{
		// Padded to an even length.
		"04 08 7e 02 01 01 01 02 61 00",
		// Odd length without padding.
		"04 05 01 03 61 62 00",
		// Imprint length, but the first octet is not a defined algorithm.
		"04 21 03 01 05 01 1c 616161616161616161616161616161616161616161616161616161 00",
	} {
		sig := &Signature{aggrChainList: []*pdu.AggregationChain{withMetaData(t, lower, test.HexToBin(md))}}
		res, err := AggregationChainMetaDataVerificationRule{}.Verify(&VerificationContext{
			signature: sig,
			temp:      &verificationTemp{},
		})
		require.NoError(t, err, md)
		assertResult(t, res, result.OK, reserr.ErrNA)
	}
}

func testInternalPolicyError(t *testing.T, _ ...interface{}) {
	sig := &Signature{}
	final, err := verifyWith(t, sig, InternalPolicy)
	require.Error(t, err)
	assert.Equal(t, errors.KsiInvalidStateError, errors.KsiErr(err).Code())
	assertResult(t, final, result.NA, reserr.Gen02)
	statusErr, sErr := final.StatusErr()
	require.NoError(t, sErr)
	assert.Error(t, statusErr)

	assert.Error(t, sig.Verify(nil))
	assert.Error(t, (*Signature)(nil).Verify(InternalPolicy))
}

func TestUnitRules(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	test.Suite{
		{Func: testRuleRightLinksMismatch},
		{Func: testRulePublicationHashMismatch},
		{Func: testRuleExtendedToPublication},
		{Func: testRuleInvalidContext},
		{Func: testRuleNames},
	}.Runner(t, newSigFixture(t))
}

func testRuleRightLinksMismatch(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	sig := fx.extended(t, fx.pubTime)

	links, err := sig.calChain.ChainLinks()
	require.NoError(t, err)
	var (
		forged  []*pdu.ChainLink
		changed bool
	)
	for _, l := range links {
		isLeft, err := l.IsLeft()
		require.NoError(t, err)
		if !isLeft && !changed {
			l, err = pdu.NewCalendarChainLink(false, sumOf(t, "forged"))
			require.NoError(t, err)
			changed = true
		}
		forged = append(forged, l)
	}
	require.True(t, changed, "Calendar hash chain has no right links.")
	forgedCal, err := pdu.NewCalendarChain(time.Unix(fx.pubTime, 0), fx.outputHash, forged...)
	require.NoError(t, err)

	verCtx, err := NewVerificationContext(sig)
	require.NoError(t, err)
	verCtx.temp.extendedCalendar = forgedCal
	verCtx.temp.extendedCalendarTo = time.Unix(fx.pubTime, 0)

	res, err := ExtendedCalendarChainRightLinksMatchVerificationRule{}.Verify(verCtx)
	require.NoError(t, err)
	assertResult(t, res, result.FAIL, reserr.Cal04)
	statusErr, _ := res.StatusErr()
	assert.Equal(t, errors.KsiIncompatibleHashChain, errors.KsiErr(statusErr).Code())

	res, err = ExtendedCalendarChainRootHashVerificationRule{}.Verify(verCtx)
	require.NoError(t, err)
	assertResult(t, res, result.FAIL, reserr.Cal01)
}

func testRulePublicationHashMismatch(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	sig := fx.extended(t, fx.pubTime)

	verCtx, err := NewVerificationContext(sig, VerCtxOptUserPublication(pubDataOf(t, fx.pubTime, sumOf(t, "other"))))
	require.NoError(t, err)

	res, err := UserProvidedPublicationHashMatchesRule{}.Verify(verCtx)
	require.Error(t, err, "Publication must be selected first.")
	assertResult(t, res, result.NA, reserr.Gen02)

	res, err = UserProvidedPublicationExistenceRule{}.Verify(verCtx)
	require.NoError(t, err)
	assertResult(t, res, result.OK, reserr.ErrNA)
	res, err = UserProvidedPublicationTimeMatchesRecordRule{}.Verify(verCtx)
	require.NoError(t, err)
	assertResult(t, res, result.OK, reserr.ErrNA)
	res, err = UserProvidedPublicationHashMatchesRule{}.Verify(verCtx)
	require.NoError(t, err)
	assertResult(t, res, result.FAIL, reserr.Pub04)

	res, err = PublicationsFilePublicationHashMatchesRule{}.Verify(verCtx)
	require.NoError(t, err)
	assertResult(t, res, result.FAIL, reserr.Pub05)
	assert.Equal(t, verify.StepPublicationWithPubFile, res.Step())
}

func testRuleExtendedToPublication(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	sig := fx.unextended(t)
	extCal := newCalendarChain(t, fx.outputHash, fx.aggrTime, fx.pubTime, "")
	pubData := calendarPubData(t, extCal)

	newCtx := func(p *testCalendarProvider) *VerificationContext {
		verCtx, err := NewVerificationContext(sig,
			VerCtxOptUserPublication(pubData),
			VerCtxOptCalendarProvider(p),
			VerCtxOptExtendingPermitted(true),
		)
		require.NoError(t, err)
		verCtx.temp.publication = pubData
		return verCtx
	}

	rules := []codedRule{
		ExtendedToPublicationHashVerificationRule{},
		ExtendedToPublicationTimeVerificationRule{},
		ExtendedToPublicationInputHashVerificationRule{},
	}
	p := fx.calendarProvider(t)
	verCtx := newCtx(p)
	for _, r := range rules {
		res, err := r.Verify(verCtx)
		require.NoError(t, err)
		assertResult(t, res, result.OK, reserr.ErrNA)
	}
	assert.Equal(t, 1, p.calls, "Extended calendar must be cached.")

	tests := []struct {
		provider *testCalendarProvider
		rule     codedRule
	}{
		{&testCalendarProvider{t: t, input: fx.outputHash, salt: "forged"}, ExtendedToPublicationHashVerificationRule{}},
		{&testCalendarProvider{t: t, input: fx.outputHash, shift: 1}, ExtendedToPublicationTimeVerificationRule{}},
		{&testCalendarProvider{t: t, input: sumOf(t, "other")}, ExtendedToPublicationInputHashVerificationRule{}},
	}
	for _, tc := range tests {
		res, err := tc.rule.Verify(newCtx(tc.provider))
		require.NoError(t, err)
		assertResult(t, res, result.FAIL, tc.rule.errCode())
	}

	failing := &testCalendarProvider{t: t, err: errors.New(errors.KsiNetworkError)}
	res, err := ExtendedToPublicationHashVerificationRule{}.Verify(newCtx(failing))
	require.NoError(t, err)
	assertResult(t, res, result.NA, reserr.Gen02)
	statusErr, _ := res.StatusErr()
	assert.Equal(t, errors.KsiNetworkError, errors.KsiErr(statusErr).Code())
}

func testRuleInvalidContext(t *testing.T, _ ...interface{}) {
	rules := []Rule{
		DocumentHashMissingRule{},
		InputHashLevelVerificationRule{},
		Rfc3161RecordMissingRule{},
		Rfc3161RecordHashAlgorithmVerificationRule{},
		Rfc3161RecordOutputHashAlgorithmVerificationRule{},
		AggregationChainMetaDataVerificationRule{},
		AggregationHashChainConsistencyVerificationRule{},
		CalendarHashChainInputHashVerificationRule{},
		ExtendedCalendarChainInputHashVerificationRule{},
		CertificateExistenceRule{},
		PublicationsFileSignatureVerificationRule{},
		UserProvidedPublicationExistenceRule{},
		ExtendedToPublicationHashVerificationRule{},
	}
	for _, r := range rules {
		res, err := r.Verify(nil)
		assert.Error(t, err, "Rule %s must fail with nil context.", r)
		require.NotNil(t, res)
		assertResult(t, res, result.NA, reserr.Gen02)
	}
}

func testRuleNames(t *testing.T, _ ...interface{}) {
	assert.Equal(t, "DocumentHashVerificationRule", DocumentHashVerificationRule{}.String())
	assert.Equal(t, "CertificateValidityRule", CertificateValidityRule{}.String())

	res := newRuleResult(CertificateValidityRule{}, result.FAIL).setErrCode(reserr.Key03)
	assert.Equal(t, "CertificateValidityRule", res.RuleName())
	assert.Equal(t, verify.StepCalAuthRecWithSignature, res.Step())
	assert.Contains(t, res.String(), "KEY-03")
}
