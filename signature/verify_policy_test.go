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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/signature/verify"
	"github.com/guardtime/ksicore/signature/verify/reserr"
	"github.com/guardtime/ksicore/signature/verify/result"
	"github.com/guardtime/ksicore/test"
)

// testRule returns the configured result, or the error if set.
type testRule struct {
	name string
	res  result.Code
	code reserr.Code
	st   verify.Step
	err  error
}

func (r testRule) String() string    { return r.name }
func (r testRule) step() verify.Step { return r.st }
func (r testRule) Verify(_ *VerificationContext) (*RuleResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	return newRuleResult(r, r.res).setErrCode(r.code), nil
}

var (
	single1 = Basic(testRule{name: "single1", res: result.OK, code: reserr.Pub01})
	single2 = Basic(testRule{name: "single2", res: result.OK, code: reserr.Pub02})
	single3 = Basic(testRule{name: "single3", res: result.FAIL, code: reserr.Int01})
	single4 = Basic(testRule{name: "single4", res: result.NA, code: reserr.Gen01})
	single5 = Basic(testRule{name: "single5", err: errors.New(errors.KsiInvalidStateError)})
	single6 = Basic(testRule{name: "single6", res: result.FAIL, code: reserr.Int02})
)

func TestUnitPolicyRule(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	test.Suite{
		{Func: testPolicyRuleComposition},
		{Func: testPolicyRuleShortCircuit},
		{Func: testPolicyRuleInvalid},
		{Func: testPolicyRuleString},
		{Func: testPolicyRuleSteps},
	}.Runner(t)
}

func newTestContext(t *testing.T) *VerificationContext {
	verCtx, err := NewVerificationContext(&Signature{})
	require.NoError(t, err)
	return verCtx
}

func testPolicyRuleComposition(t *testing.T, _ ...interface{}) {
	tests := []struct {
		name    string
		rule    *PolicyRule
		wantErr bool
		res     result.Code
		code    reserr.Code
	}{
		{name: "AND[1,2]", rule: And(single1, single2), res: result.OK, code: reserr.Pub02},
		{name: "AND[2,1]", rule: And(single2, single1), res: result.OK, code: reserr.Pub01},
		{name: "OR[2,1]", rule: Or(single2, single1), res: result.OK, code: reserr.Pub02},
		{name: "OR[1,2]", rule: Or(single1, single2), res: result.OK, code: reserr.Pub01},
		{name: "AND[1,3]", rule: And(single1, single3), res: result.FAIL, code: reserr.Int01},
		{name: "AND[4,1]", rule: And(single4, single1), res: result.NA, code: reserr.Gen01},
		{name: "OR[1,4]", rule: Or(single1, single4), res: result.OK, code: reserr.Pub01},
		{name: "OR[3,1]", rule: Or(single3, single1), res: result.OK, code: reserr.Pub01},
		{name: "OR[3,6]", rule: Or(single3, single6), res: result.FAIL, code: reserr.Int02},
		{name: "OR[4,3]", rule: Or(single4, single3), res: result.FAIL, code: reserr.Int01},
		{name: "AND[1,5]", rule: And(single1, single5), wantErr: true, res: result.NA, code: reserr.Gen02},
		{name: "AND[5,1]", rule: And(single5, single1), wantErr: true, res: result.NA, code: reserr.Gen02},
		{name: "OR[1,5]", rule: Or(single1, single5), res: result.OK, code: reserr.Pub01},
		{name: "OR[5,1]", rule: Or(single5, single1), wantErr: true, res: result.NA, code: reserr.Gen02},
		{name: "OR[AND[1,3],2]", rule: Or(And(single1, single3), single2), res: result.OK, code: reserr.Pub02},
		{name: "AND[OR[3,4],1]", rule: And(Or(single3, single4), single1), res: result.NA, code: reserr.Gen01},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verCtx := newTestContext(t)
			p, err := NewPolicy(tc.name, tc.rule)
			require.NoError(t, err)

			code, err := p.Verify(verCtx)
			final := verCtx.result.FinalResult()
			require.NotNil(t, final)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, result.NA, code)
				statusErr, _ := final.StatusErr()
				assert.Error(t, statusErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.res, code)
			}

			resCode, err := final.ResultCode()
			require.NoError(t, err)
			assert.Equal(t, tc.res, resCode)
			errCode, err := final.ErrorCode()
			require.NoError(t, err)
			assert.Equal(t, tc.code, errCode)
		})
	}
}

func testPolicyRuleShortCircuit(t *testing.T, _ ...interface{}) {
	verCtx := newTestContext(t)
	res, err := And(single1, single3, single2).Verify(verCtx)
	require.NoError(t, err)
	assert.Equal(t, result.FAIL, res.resCode)
	assert.Equal(t, "single3", verCtx.result.FinalResult().RuleName())

	p, err := NewPolicy("ShortCircuit", Or(single1, single3), single4, single2)
	require.NoError(t, err)
	verCtx = newTestContext(t)
	code, err := p.Verify(verCtx)
	require.NoError(t, err)
	assert.Equal(t, result.NA, code)

	polResults := verCtx.result.PolicyResults()
	require.Len(t, polResults, 1)
	assert.Equal(t, "ShortCircuit", polResults[0].PolicyName())
	var names []string
	for _, r := range polResults[0].RuleResults() {
		names = append(names, r.RuleName())
	}
	assert.Equal(t, []string{"single1", "single4"}, names)
	assert.Error(t, verCtx.result.Error())
}

func testPolicyRuleInvalid(t *testing.T, _ ...interface{}) {
	verCtx := newTestContext(t)

	var nilRule *PolicyRule
	_, err := nilRule.Verify(verCtx)
	assert.Error(t, err)
	_, err = single1.Verify(nil)
	assert.Error(t, err)

	_, err = And().Verify(verCtx)
	assert.Error(t, err, "Empty composite rule must fail.")
	_, err = Or().Verify(verCtx)
	assert.Error(t, err, "Empty composite rule must fail.")
	_, err = Basic(nil).Verify(verCtx)
	assert.Error(t, err, "Basic rule without a rule must fail.")
	_, err = (&PolicyRule{Type: RuleType(42), Rules: []*PolicyRule{single1}}).Verify(verCtx)
	assert.Error(t, err)

	_, err = NewPolicy("", single1)
	assert.Error(t, err)
	_, err = NewPolicy("NoRules")
	assert.Error(t, err)
	_, err = NewPolicy("NilRule", single1, nil)
	assert.Error(t, err)
}

func testPolicyRuleString(t *testing.T, _ ...interface{}) {
	assert.Equal(t, "single1", single1.String())
	assert.Equal(t, "AND(single1, OR(single3, single2))", And(single1, Or(single3, single2)).String())
	assert.Equal(t, "", (*PolicyRule)(nil).String())
	assert.Equal(t, "OkRule", Basic(OkRule{}).String())
}

func testPolicyRuleSteps(t *testing.T, _ ...interface{}) {
	var (
		docOk   = Basic(testRule{name: "docOk", res: result.OK, st: verify.StepDocument})
		calFail = Basic(testRule{name: "calFail", res: result.FAIL, code: reserr.Cal01, st: verify.StepCalChainOnline})
		pubOk   = Basic(testRule{name: "pubOk", res: result.OK, st: verify.StepPubFileSignature})
	)

	verCtx := newTestContext(t)
	_, err := And(docOk, Or(calFail, pubOk)).Verify(verCtx)
	require.NoError(t, err)

	performed, successful := verCtx.result.Steps()
	assert.Equal(t, verify.StepDocument|verify.StepCalChainOnline|verify.StepPubFileSignature, performed)
	assert.Equal(t, verify.StepDocument|verify.StepPubFileSignature, successful)
	assert.Equal(t, verify.StepPubFileSignature, verCtx.result.FinalResult().Step())
}

func TestUnitPolicy(t *testing.T) {
	_, defFunc, err := test.InitLogger(t, "", log.DEBUG, t.Name())
	require.NoError(t, err, "Failed to initialize logger.")
	defer defFunc()

	test.Suite{
		{Func: testPolicyFallback},
		{Func: testPolicyFallbackChain},
		{Func: testPolicyCopy},
		{Func: testPolicyFailAndSuccess},
		{Func: testPolicyVerifyInvalid},
	}.Runner(t)
}

func testPolicyFallback(t *testing.T, _ ...interface{}) {
	primary, err := NewPolicy("Primary", single4)
	require.NoError(t, err)
	fallback, err := NewPolicy("Fallback", single1)
	require.NoError(t, err)

	verCtx := newTestContext(t)
	code, err := primary.WithFallback(fallback).Verify(verCtx)
	require.NoError(t, err)
	assert.Equal(t, result.OK, code)

	polResults := verCtx.result.PolicyResults()
	require.Len(t, polResults, 2)
	assert.Equal(t, "Primary", polResults[0].PolicyName())
	assert.Equal(t, "Fallback", polResults[1].PolicyName())
	assert.NoError(t, verCtx.result.Error())

	// The fallback is not evaluated in case of success.
	verCtx = newTestContext(t)
	code, err = fallback.WithFallback(primary).Verify(verCtx)
	require.NoError(t, err)
	assert.Equal(t, result.OK, code)
	assert.Len(t, verCtx.result.PolicyResults(), 1)

	// The error is not subject to fallback.
	failing, err := NewPolicy("Failing", single5)
	require.NoError(t, err)
	verCtx = newTestContext(t)
	_, err = failing.WithFallback(fallback).Verify(verCtx)
	assert.Error(t, err)
	assert.Len(t, verCtx.result.PolicyResults(), 1)
}

func testPolicyFallbackChain(t *testing.T, _ ...interface{}) {
	first, err := NewPolicy("First", single3)
	require.NoError(t, err)
	second, err := NewPolicy("Second", single6)
	require.NoError(t, err)

	verCtx := newTestContext(t)
	code, err := first.WithFallback(second.WithFallback(SuccessPolicy)).Verify(verCtx)
	require.NoError(t, err)
	assert.Equal(t, result.OK, code)
	require.Len(t, verCtx.result.PolicyResults(), 3)
	assert.Equal(t, "SuccessPolicy", verCtx.result.PolicyResults()[2].PolicyName())

	verCtx = newTestContext(t)
	code, err = first.WithFallback(second).Verify(verCtx)
	require.NoError(t, err)
	assert.Equal(t, result.FAIL, code)
	errCode, err := verCtx.result.FinalResult().ErrorCode()
	require.NoError(t, err)
	assert.Equal(t, reserr.Int02, errCode)

	vErr := verCtx.result.Error()
	require.Error(t, vErr)
	assert.Equal(t, errors.KsiVerificationFailure, errors.KsiErr(vErr).Code())
	assert.Equal(t, int(reserr.Int02), errors.KsiErr(vErr).ExtCode())
}

func testPolicyCopy(t *testing.T, _ ...interface{}) {
	p := KeyBasedPolicy.WithFallback(CalendarBasedPolicy)
	assert.Equal(t, "KeyBasedPolicy", p.String())
	assert.Equal(t, CalendarBasedPolicy, p.Fallback())
	assert.Nil(t, KeyBasedPolicy.Fallback(), "Original policy must not be modified.")
	assert.Nil(t, p.Copy().Fallback())
	assert.Equal(t, KeyBasedPolicy.Rules(), p.Rules())

	assert.Equal(t, "KeyBasedPolicy", DefaultPolicy.String())
	assert.Equal(t, CalendarBasedPolicy, DefaultPolicy.Fallback())
}

func testPolicyFailAndSuccess(t *testing.T, _ ...interface{}) {
	verCtx := newTestContext(t)
	code, err := FailPolicy.Verify(verCtx)
	require.NoError(t, err)
	assert.Equal(t, result.FAIL, code)

	verCtx = newTestContext(t)
	code, err = SuccessPolicy.Verify(verCtx)
	require.NoError(t, err)
	assert.Equal(t, result.OK, code)
	assert.Equal(t, "OkRule", verCtx.result.FinalResult().RuleName())
}

func testPolicyVerifyInvalid(t *testing.T, _ ...interface{}) {
	_, err := InternalPolicy.Verify(nil)
	assert.Error(t, err)

	var p *policyImpl
	assert.Equal(t, "", p.String())
	assert.Nil(t, p.Rules())
	assert.Nil(t, p.Fallback())
	assert.Nil(t, p.Copy())
	_, err = p.Verify(newTestContext(t))
	assert.Error(t, err)
}
