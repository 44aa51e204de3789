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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
	"github.com/guardtime/ksicore/pki"
	"github.com/guardtime/ksicore/publications"
	"github.com/guardtime/ksicore/signature/verify"
	"github.com/guardtime/ksicore/signature/verify/reserr"
	"github.com/guardtime/ksicore/signature/verify/result"
	"github.com/guardtime/ksicore/test"
)

func TestUnitCalendarBasedPolicy(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	test.Suite{
		{Func: testCalendarPolicyOk},
		{Func: testCalendarPolicyFailures},
		{Func: testCalendarPolicyUnavailable},
	}.Runner(t, newSigFixture(t))
}

func testCalendarPolicyOk(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)

	for name, sig := range map[string]*Signature{
		"aggregated": fx.aggregated(t),
		"unextended": fx.unextended(t),
		"extended":   fx.extended(t, fx.pubTime),
	} {
		t.Run(name, func(t *testing.T) {
			p := fx.calendarProvider(t)
			require.NoError(t, sig.Verify(CalendarBasedPolicy, VerCtxOptCalendarProvider(p)))
			assert.Equal(t, 1, p.calls)

			res, err := sig.VerificationResult()
			require.NoError(t, err)
			performed, successful := res.Steps()
			assert.True(t, successful.Has(verify.StepCalChainOnline))
			assert.Equal(t, performed, successful)
		})
	}
}

func testCalendarPolicyFailures(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	sig := fx.extended(t, fx.pubTime)

	tests := []struct {
		name     string
		provider *testCalendarProvider
		code     reserr.Code
	}{
		{"InputHash", &testCalendarProvider{t: t, input: sumOf(t, "other")}, reserr.Cal02},
		{"AggregationTime", &testCalendarProvider{t: t, input: fx.outputHash, shift: 1}, reserr.Cal03},
		{"RootHash", &testCalendarProvider{t: t, input: fx.outputHash, salt: "forged"}, reserr.Cal01},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			final, err := verifyWith(t, sig, CalendarBasedPolicy, VerCtxOptCalendarProvider(tc.provider))
			assertFailure(t, err, final, result.FAIL, tc.code)
			assert.Equal(t, verify.StepCalChainOnline, final.Step())
		})
	}
}

func testCalendarPolicyUnavailable(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	sig := fx.unextended(t)

	final, err := verifyWith(t, sig, CalendarBasedPolicy)
	assertFailure(t, err, final, result.NA, reserr.Gen02)

	p := &testCalendarProvider{t: t, err: errors.New(errors.KsiNetworkError)}
	final, err = verifyWith(t, sig, CalendarBasedPolicy, VerCtxOptCalendarProvider(p))
	assertFailure(t, err, final, result.NA, reserr.Gen02)
	assert.Equal(t, 1, p.calls)
}

func TestUnitKeyBasedPolicy(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	test.Suite{
		{Func: testKeyPolicyOk},
		{Func: testKeyPolicyFailures},
		{Func: testKeyPolicyNotApplicable},
	}.Runner(t, newSigFixture(t))
}

func testKeyPolicyOk(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	sig := fx.unextended(t)

	require.NoError(t, sig.Verify(KeyBasedPolicy, VerCtxOptPublicationsFileHandler(fx.pubFileHandler(t))))
	res, err := sig.VerificationResult()
	require.NoError(t, err)
	performed, successful := res.Steps()
	assert.Equal(t, performed, successful)
	assert.True(t, successful.Has(verify.StepCalAuthRecWithSignature|verify.StepPubFileSignature))

	// A user provided publications file is trusted as is.
	assert.NoError(t, sig.Verify(KeyBasedPolicy, VerCtxOptPublicationsFile(fx.pubFile(t))))
	assert.NoError(t, sig.Verify(KeyBasedPolicy,
		VerCtxOptPublicationsFile(fx.pubFile(t)),
		VerCtxOptPkiVerifier(fx.verifier),
	))
}

func testKeyPolicyFailures(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)

	cal := newCalendarChain(t, fx.outputHash, fx.aggrTime, fx.aggrTime, "")
	calPubData := calendarPubData(t, cal)
	other := test.NewPkiSigner(t, testCN)

	// Signing time outside of the certificate validity.
	old := time.Now().Add(-48 * time.Hour).Unix()
	oldChains := newAggrChains(t, hash.SHA2_256, fx.docHash, old, 0)
	oldOutput, _, err := pdu.AggregationChainList(oldChains).Aggregate(0)
	require.NoError(t, err)
	oldCal := newCalendarChain(t, oldOutput, old, old, "")

	tests := []struct {
		name string
		sig  *Signature
		code reserr.Code
	}{
		{
			name: "UnknownCertificate",
			sig: &Signature{
				aggrChainList: fx.aggrChains(t, fx.docHash),
				calChain:      cal,
				calAuthRec:    newCalAuthRec(t, calPubData, fx.signer.Key, []byte{0xde, 0xad}),
			},
			code: reserr.Key01,
		},
		{
			name: "InvalidSignature",
			sig: &Signature{
				aggrChainList: fx.aggrChains(t, fx.docHash),
				calChain:      cal,
				calAuthRec:    newCalAuthRec(t, calPubData, other.Key, testCertID),
			},
			code: reserr.Key02,
		},
		{
			name: "ExpiredCertificate",
			sig: &Signature{
				aggrChainList: oldChains,
				calChain:      oldCal,
				calAuthRec:    newCalAuthRec(t, calendarPubData(t, oldCal), fx.signer.Key, testCertID),
			},
			code: reserr.Key03,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.sig.Verify(InternalPolicy))

			final, err := verifyWith(t, tc.sig, KeyBasedPolicy, VerCtxOptPublicationsFileHandler(fx.pubFileHandler(t)))
			assertFailure(t, err, final, result.FAIL, tc.code)
			assert.Equal(t, verify.StepCalAuthRecWithSignature, final.Step())
		})
	}
}

func testKeyPolicyNotApplicable(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)

	// No calendar authentication record.
	final, err := verifyWith(t, fx.extended(t, fx.pubTime), KeyBasedPolicy,
		VerCtxOptPublicationsFileHandler(fx.pubFileHandler(t)))
	assertFailure(t, err, final, result.NA, reserr.Gen02)
	assert.Equal(t, "CalendarAuthRecordExistenceRule", final.RuleName())

	// No calendar hash chain.
	final, err = verifyWith(t, fx.aggregated(t), KeyBasedPolicy, VerCtxOptPublicationsFileHandler(fx.pubFileHandler(t)))
	assertFailure(t, err, final, result.NA, reserr.Gen02)
	assert.Equal(t, "CalendarHashChainExistenceRule", final.RuleName())

	// No publications file.
	final, err = verifyWith(t, fx.unextended(t), KeyBasedPolicy)
	assertFailure(t, err, final, result.NA, reserr.Gen02)
	assert.Equal(t, "PublicationsFileSignatureVerificationRule", final.RuleName())

	// The publications file is not trusted.
	sig := fx.unextended(t)
	final, err = verifyWith(t, sig, KeyBasedPolicy,
		VerCtxOptPublicationsFile(fx.pubFile(t)),
		VerCtxOptPkiVerifier(mustVerifier(t, test.NewPkiSigner(t, testCN))),
	)
	assertFailure(t, err, final, result.NA, reserr.Gen02)
	res, err := sig.VerificationResult()
	require.NoError(t, err)
	performed, successful := res.Steps()
	assert.True(t, performed.Has(verify.StepPubFileSignature))
	assert.False(t, successful.Has(verify.StepPubFileSignature))
}

func mustVerifier(t *testing.T, s *test.PkiSigner) *pki.Verifier {
	v, err := pki.NewVerifier(
		pki.VerifierSetTrustedCertificate(s.Cert),
		pki.VerifierSetCertConstraint(pki.OidCommonName, testCN),
	)
	require.NoError(t, err)
	return v
}

func mustHandler(t *testing.T, raw []byte, v *pki.Verifier) *publications.FileHandler {
	h, err := publications.NewFileHandler(
		publications.FileHandlerSetSource(publications.FileFromBytes(raw)),
		publications.FileHandlerSetVerifier(v),
	)
	require.NoError(t, err)
	return h
}

func TestUnitPublicationsFileBasedPolicy(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	test.Suite{
		{Func: testPubFilePolicyExtended},
		{Func: testPubFilePolicyExtending},
		{Func: testPubFilePolicyFailures},
	}.Runner(t, newSigFixture(t))
}

func testPubFilePolicyExtended(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	sig := fx.extended(t, fx.pubTime)

	require.NoError(t, sig.Verify(PublicationsFileBasedPolicy, VerCtxOptPublicationsFileHandler(fx.pubFileHandler(t))))
	res, err := sig.VerificationResult()
	require.NoError(t, err)
	performed, successful := res.Steps()
	assert.Equal(t, performed, successful)
	assert.True(t, successful.Has(verify.StepPubFileSignature|verify.StepPublicationWithPubFile))
	assert.Equal(t, "PublicationsFilePublicationHashMatchesRule", res.FinalResult().RuleName())
}

func testPubFilePolicyExtending(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	sig := fx.unextended(t)

	p := fx.calendarProvider(t)
	require.NoError(t, sig.Verify(PublicationsFileBasedPolicy,
		VerCtxOptPublicationsFile(fx.pubFile(t)),
		VerCtxOptExtendingPermitted(true),
		VerCtxOptCalendarProvider(p),
	))
	assert.Equal(t, 1, p.calls)
	res, err := sig.VerificationResult()
	require.NoError(t, err)
	performed, _ := res.Steps()
	assert.True(t, performed.Has(verify.StepCalChainWithPublication))
	assert.Equal(t, "ExtendedToPublicationInputHashVerificationRule", res.FinalResult().RuleName())

	// A signature extended to a publication missing from the file is extended again.
	later := fx.extended(t, fx.aggrTime+300)
	require.NoError(t, later.Verify(PublicationsFileBasedPolicy,
		VerCtxOptPublicationsFile(fx.pubFile(t)),
		VerCtxOptExtendingPermitted(true),
		VerCtxOptCalendarProvider(fx.calendarProvider(t)),
	))

	// Extending is not permitted.
	final, err := verifyWith(t, sig, PublicationsFileBasedPolicy,
		VerCtxOptPublicationsFile(fx.pubFile(t)),
		VerCtxOptCalendarProvider(fx.calendarProvider(t)),
	)
	assertFailure(t, err, final, result.NA, reserr.Gen02)
	assert.Equal(t, "ExtendingPermittedVerificationRule", final.RuleName())
}

func testPubFilePolicyFailures(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)

	// Publication in the file differs from the signature publication record.
	rec, err := pdu.NewPublicationRec(pubDataOf(t, fx.pubTime, sumOf(t, "other root")))
	require.NoError(t, err)
	raw := buildPubFile(t, fx.signer, rec)
	handler := mustHandler(t, raw, fx.verifier)

	sig := fx.extended(t, fx.pubTime)
	require.NoError(t, sig.Verify(InternalPolicy))

	final, err := verifyWith(t, sig, PublicationsFileBasedPolicy, VerCtxOptPublicationsFileHandler(handler))
	assertFailure(t, err, final, result.NA, reserr.Gen02)

	final, err = verifyWith(t, sig, PublicationsFileBasedPolicy,
		VerCtxOptPublicationsFileHandler(mustHandler(t, raw, fx.verifier)),
		VerCtxOptExtendingPermitted(true),
		VerCtxOptCalendarProvider(fx.calendarProvider(t)),
	)
	assertFailure(t, err, final, result.FAIL, reserr.Pub01)

	// No suitable publication.
	raw = buildPubFile(t, fx.signer, newPubRec(t, newCalendarChain(t, sumOf(t, "early"), 1000, 2000, "")))
	final, err = verifyWith(t, sig, PublicationsFileBasedPolicy,
		VerCtxOptPublicationsFileHandler(mustHandler(t, raw, fx.verifier)),
		VerCtxOptExtendingPermitted(true),
		VerCtxOptCalendarProvider(fx.calendarProvider(t)),
	)
	assertFailure(t, err, final, result.NA, reserr.Gen02)
	assert.Equal(t, "PublicationsFileContainsSuitablePublicationRule", final.RuleName())
}

func TestUnitUserProvidedPublicationBasedPolicy(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	test.Suite{
		{Func: testUserPubPolicyExtended},
		{Func: testUserPubPolicyExtending},
		{Func: testUserPubPolicyNotApplicable},
	}.Runner(t, newSigFixture(t))
}

func filePubData(t *testing.T, fx *sigFixture) *pdu.PublicationData {
	return calendarPubData(t, newCalendarChain(t, fx.outputHash, fx.aggrTime, fx.pubTime, ""))
}

func testUserPubPolicyExtended(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	sig := fx.extended(t, fx.pubTime)

	require.NoError(t, sig.Verify(UserProvidedPublicationBasedPolicy, VerCtxOptUserPublication(filePubData(t, fx))))
	res, err := sig.VerificationResult()
	require.NoError(t, err)
	assert.Equal(t, "UserProvidedPublicationHashMatchesRule", res.FinalResult().RuleName())

	final, err := verifyWith(t, sig, UserProvidedPublicationBasedPolicy,
		VerCtxOptUserPublication(pubDataOf(t, fx.pubTime, sumOf(t, "other root"))),
		VerCtxOptExtendingPermitted(true),
		VerCtxOptCalendarProvider(fx.calendarProvider(t)),
	)
	assertFailure(t, err, final, result.FAIL, reserr.Pub01)
}

func testUserPubPolicyExtending(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)

	for name, sig := range map[string]*Signature{
		"unextended": fx.unextended(t),
		"extended":   fx.extended(t, fx.aggrTime+300),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, sig.Verify(UserProvidedPublicationBasedPolicy,
				VerCtxOptUserPublication(filePubData(t, fx)),
				VerCtxOptExtendingPermitted(true),
				VerCtxOptCalendarProvider(fx.calendarProvider(t)),
			))
			res, err := sig.VerificationResult()
			require.NoError(t, err)
			performed, _ := res.Steps()
			assert.True(t, performed.Has(verify.StepCalChainWithPublication))
		})
	}
}

func testUserPubPolicyNotApplicable(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)
	sig := fx.unextended(t)

	final, err := verifyWith(t, sig, UserProvidedPublicationBasedPolicy)
	assertFailure(t, err, final, result.NA, reserr.Gen02)
	assert.Equal(t, "UserProvidedPublicationExistenceRule", final.RuleName())

	// The publication is older than the signature.
	final, err = verifyWith(t, sig, UserProvidedPublicationBasedPolicy,
		VerCtxOptUserPublication(pubDataOf(t, fx.aggrTime-10, sumOf(t, "root"))),
		VerCtxOptExtendingPermitted(true),
		VerCtxOptCalendarProvider(fx.calendarProvider(t)),
	)
	assertFailure(t, err, final, result.NA, reserr.Gen02)
	assert.Equal(t, "UserProvidedPublicationCreationTimeVerificationRule", final.RuleName())

	final, err = verifyWith(t, sig, UserProvidedPublicationBasedPolicy, VerCtxOptUserPublication(filePubData(t, fx)))
	assertFailure(t, err, final, result.NA, reserr.Gen02)
	assert.Equal(t, "ExtendingPermittedVerificationRule", final.RuleName())
}

func TestUnitGeneralPolicy(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	test.Suite{
		{Func: testGeneralPolicy},
		{Func: testDefaultPolicy},
	}.Runner(t, newSigFixture(t))
}

func testGeneralPolicy(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)

	tests := []struct {
		name string
		sig  *Signature
		opts []VerCtxOption
		rule string
	}{
		{
			name: "UserPublication",
			sig:  fx.extended(t, fx.pubTime),
			opts: []VerCtxOption{VerCtxOptUserPublication(filePubData(t, fx))},
			rule: "UserProvidedPublicationHashMatchesRule",
		},
		{
			name: "PublicationsFile",
			sig:  fx.extended(t, fx.pubTime),
			opts: []VerCtxOption{VerCtxOptPublicationsFileHandler(fx.pubFileHandler(t))},
			rule: "PublicationsFilePublicationHashMatchesRule",
		},
		{
			name: "Key",
			sig:  fx.unextended(t),
			opts: []VerCtxOption{VerCtxOptPublicationsFileHandler(fx.pubFileHandler(t))},
			rule: "CalendarAuthRecordSignatureVerificationRule",
		},
		{
			name: "Calendar",
			sig:  fx.aggregated(t),
			opts: []VerCtxOption{VerCtxOptCalendarProvider(fx.calendarProvider(t))},
			rule: "CalendarHashChainMissingRule",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.sig.Verify(GeneralPolicy, tc.opts...))
			res, err := tc.sig.VerificationResult()
			require.NoError(t, err)
			assert.Equal(t, tc.rule, res.FinalResult().RuleName())
		})
	}

	final, err := verifyWith(t, fx.unextended(t), GeneralPolicy)
	assertFailure(t, err, final, result.NA, reserr.Gen02)
}

func testDefaultPolicy(t *testing.T, opts ...interface{}) {
	fx := opts[0].(*sigFixture)

	sig := fx.unextended(t)
	require.NoError(t, sig.Verify(DefaultPolicy, VerCtxOptPublicationsFileHandler(fx.pubFileHandler(t))))
	res, err := sig.VerificationResult()
	require.NoError(t, err)
	assert.Len(t, res.PolicyResults(), 1)

	// Falls back to the calendar.
	sig = fx.extended(t, fx.pubTime)
	p := fx.calendarProvider(t)
	require.NoError(t, sig.Verify(DefaultPolicy,
		VerCtxOptPublicationsFileHandler(fx.pubFileHandler(t)),
		VerCtxOptCalendarProvider(p),
	))
	res, err = sig.VerificationResult()
	require.NoError(t, err)
	require.Len(t, res.PolicyResults(), 2)
	assert.Equal(t, "KeyBasedPolicy", res.PolicyResults()[0].PolicyName())
	assert.Equal(t, "CalendarBasedPolicy", res.PolicyResults()[1].PolicyName())
	assert.Equal(t, 1, p.calls)
}
