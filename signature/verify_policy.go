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
	"fmt"
	"strings"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/signature/verify/reserr"
	"github.com/guardtime/ksicore/signature/verify/result"
)

// RuleType is the PolicyRule evaluation kind.
type RuleType byte

const (
	// RuleBasic invokes the single Rule.
	RuleBasic RuleType = iota
	// RuleAnd evaluates the sub-rules in order until the first non-OK result. If all of the sub-rules are
	// successful, the result of the last one is returned.
	RuleAnd
	// RuleOr evaluates the sub-rules in order until the first OK result. If none of the sub-rules is
	// successful, the result of the last one is returned.
	RuleOr
)

// PolicyRule is a node of a verification rule tree.
type PolicyRule struct {
	Type RuleType
	// Rule is evaluated in case of RuleBasic.
	Rule Rule
	// Rules are evaluated in case of RuleAnd and RuleOr.
	Rules []*PolicyRule
}

// Basic returns a leaf PolicyRule for r.
func Basic(r Rule) *PolicyRule {
	return &PolicyRule{Type: RuleBasic, Rule: r}
}

// And returns a PolicyRule that succeeds only if all of the rules succeed.
func And(rules ...*PolicyRule) *PolicyRule {
	return &PolicyRule{Type: RuleAnd, Rules: rules}
}

// Or returns a PolicyRule that succeeds if any of the rules succeeds.
func Or(rules ...*PolicyRule) *PolicyRule {
	return &PolicyRule{Type: RuleOr, Rules: rules}
}

// String implements fmt.(Stringer) interface.
func (pr *PolicyRule) String() string {
	if pr == nil {
		return ""
	}
	switch pr.Type {
	case RuleBasic:
		if pr.Rule == nil {
			return ""
		}
		return pr.Rule.String()
	case RuleAnd, RuleOr:
		names := make([]string, 0, len(pr.Rules))
		for _, r := range pr.Rules {
			names = append(names, r.String())
		}
		op := "AND"
		if pr.Type == RuleOr {
			op = "OR"
		}
		return op + "(" + strings.Join(names, ", ") + ")"
	default:
		return fmt.Sprintf("Unknown(%d)", pr.Type)
	}
}

// Verify evaluates the rule tree. Every evaluated basic rule result is appended to the verification result, the
// returned result equals the last appended one.
// In case a rule returns an error, the evaluation is aborted and the error is returned, regardless of the enclosing
// composite rules.
func (pr *PolicyRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if pr == nil || verCtx == nil || verCtx.result == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	switch pr.Type {
	case RuleBasic:
		if pr.Rule == nil {
			return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing basic rule.")
		}
		res, err := pr.Rule.Verify(verCtx)
		if err != nil {
			log.Debug("Rule error: ", pr.Rule, " :: ", err)
			res = newRuleResult(pr.Rule, result.NA).setErrCode(reserr.Gen02).setStatusErr(err)
			verCtx.result.appendRuleResult(res)
			return res, err
		}
		if res == nil {
			return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing rule result.")
		}
		verCtx.result.appendRuleResult(res)
		return res, nil
	case RuleAnd, RuleOr:
		if len(pr.Rules) == 0 {
			return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Empty composite rule.")
		}
		var res *RuleResult
		for _, r := range pr.Rules {
			var err error
			if res, err = r.Verify(verCtx); err != nil {
				return res, err
			}
			ok := res.resCode == result.OK
			if (pr.Type == RuleAnd && !ok) || (pr.Type == RuleOr && ok) {
				break
			}
		}
		return res, nil
	default:
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unknown rule type: %d", pr.Type))
	}
}

// Policy is verification policy interface. Verification policies consist of PolicyRule trees.
type Policy interface {
	fmt.Stringer
	// Rules returns the root rules. The root rules are evaluated as RuleAnd.
	Rules() []*PolicyRule
	// Fallback returns the assigned fallback policy.
	Fallback() Policy
	// WithFallback returns a copy of the original policy with updated fallback value.
	WithFallback(Policy) Policy
	// Copy returns a copy of the original policy, excluding any modifications done to it (e.g. fallback policy).
	Copy() Policy
	// Verify performs policy verification.
	Verify(verCtx *VerificationContext) (result.Code, error)
}

// NewPolicy returns a custom verification policy. The root rules are evaluated as RuleAnd.
func NewPolicy(name string, rules ...*PolicyRule) (Policy, error) {
	if name == "" || len(rules) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	for _, r := range rules {
		if r == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Policy rule is nil.")
		}
	}
	return &policyImpl{name: name, rules: rules}, nil
}

// KSI policy implementation of the Policy interface.
type policyImpl struct {
	name     string
	rules    []*PolicyRule
	fallback Policy
}

func (p *policyImpl) String() string {
	if p == nil {
		return ""
	}
	return p.name
}

func (p *policyImpl) Rules() []*PolicyRule {
	if p == nil {
		return nil
	}
	return p.rules
}

func (p *policyImpl) Fallback() Policy {
	if p == nil {
		return nil
	}
	return p.fallback
}

func (p *policyImpl) WithFallback(fbPolicy Policy) Policy {
	if p == nil {
		return nil
	}
	tmp := p.Copy().(*policyImpl)
	tmp.fallback = fbPolicy
	return tmp
}

func (p *policyImpl) Copy() Policy {
	if p == nil {
		return nil
	}
	tmp := *p
	tmp.fallback = nil
	return &tmp
}

func (p *policyImpl) Verify(verCtx *VerificationContext) (result.Code, error) {
	if p == nil || verCtx == nil || verCtx.result == nil {
		return result.NA, errors.New(errors.KsiInvalidArgumentError)
	}

	log.Debug("Verify policy: ", p)
	verCtx.result.policyResult = append(verCtx.result.policyResult, &PolicyResult{policy: p})
	verCtx.signature.verificationResult = verCtx.result

	res, err := And(p.rules...).Verify(verCtx)
	if err != nil {
		return result.NA, err
	}
	if res.resCode != result.OK {
		if fallback := p.Fallback(); fallback != nil {
			log.Info("Policy ", p, " result ", res.resCode, "(", res.errCode, "), falling back to ", fallback)
			verCtx.temp = &verificationTemp{}
			return fallback.Verify(verCtx)
		}
	}
	return res.resCode, nil
}

var (
	// FailPolicy contains only one Rule (FailRule) with no further action.
	FailPolicy Policy = &policyImpl{
		name:  "FailPolicy",
		rules: []*PolicyRule{Basic(FailRule{})},
	}

	// SuccessPolicy contains only one Rule (OkRule) with no further action.
	SuccessPolicy Policy = &policyImpl{
		name:  "SuccessPolicy",
		rules: []*PolicyRule{Basic(OkRule{})},
	}
)

var internalRules = And(
	Or(
		Basic(DocumentHashMissingRule{}),
		And(
			Basic(DocumentHashAlgorithmVerificationRule{}),
			Basic(DocumentHashVerificationRule{}),
		),
	),
	Basic(InputHashLevelVerificationRule{}),
	Basic(InputHashAlgorithmVerificationRule{}),
	Or(
		Basic(Rfc3161RecordMissingRule{}),
		And(
			Basic(Rfc3161RecordHashAlgorithmVerificationRule{}),
			Basic(Rfc3161RecordOutputHashAlgorithmVerificationRule{}),
		),
	),
	Basic(AggregationChainMetaDataVerificationRule{}),
	Basic(AggregationChainHashAlgorithmVerificationRule{}),
	Basic(AggregationHashChainConsistencyVerificationRule{}),
	Basic(AggregationHashChainTimeConsistencyVerificationRule{}),
	Basic(AggregationHashChainIndexConsistencyVerificationRule{}),
	Basic(AggregationHashChainIndexContinuationVerificationRule{}),
	Or(
		Basic(CalendarHashChainMissingRule{}),
		And(
			Basic(CalendarHashChainInputHashVerificationRule{}),
			Basic(CalendarHashChainAggregationTimeVerificationRule{}),
			Basic(CalendarHashChainRegistrationTimeVerificationRule{}),
			Basic(CalendarChainHashAlgorithmObsoleteAtPubTimeVerificationRule{}),
			Or(
				Basic(PublicationRecordMissingRule{}),
				And(
					Basic(PublicationRecordPublicationTimeVerificationRule{}),
					Basic(PublicationRecordPublicationHashVerificationRule{}),
				),
			),
			Or(
				Basic(CalendarAuthRecordMissingRule{}),
				And(
					Basic(CalendarAuthRecordAggregationTimeVerificationRule{}),
					Basic(CalendarAuthRecordAggregationHashVerificationRule{}),
				),
			),
		),
	),
)

// InternalPolicy verifies the consistency of various internal components of the signature without
// requiring any additional data from the user. The verified components are the aggregation chain, calendar chain
// (optional), calendar authentication record (optional) and publication record (optional). Additionally, if a
// document hash is provided, the signature is verified against it.
//
// See verification context options to provide needed information:
//
//	VerCtxOptDocumentHash       - Document hash (optional).
//	VerCtxOptInputHashLevel     - Input hash level (optional).
var InternalPolicy Policy = &policyImpl{
	name:  "InternalPolicy",
	rules: []*PolicyRule{internalRules},
}

var calendarRules = And(
	Basic(ExtendedCalendarChainInputHashVerificationRule{}),
	Basic(ExtendedCalendarChainAggregationTimeVerificationRule{}),
	Or(
		Basic(CalendarHashChainMissingRule{}),
		And(
			Basic(ExtendedCalendarChainRootHashVerificationRule{}),
			Basic(ExtendedCalendarChainRightLinksMatchVerificationRule{}),
		),
	),
)

// CalendarBasedPolicy verifies the signature against the calendar hash chain received from the calendar provider.
// The calendar hash chain of the signature is extended to its own publication time, or to the calendar head if the
// signature has no calendar hash chain.
//
// See verification context options to provide needed information:
//
//	VerCtxOptCalendarProvider   - Calendar provider (mandatory).
//	VerCtxOptDocumentHash       - Document hash (optional).
//	VerCtxOptInputHashLevel     - Input hash level (optional).
var CalendarBasedPolicy Policy = &policyImpl{
	name:  "CalendarBasedPolicy",
	rules: []*PolicyRule{internalRules, calendarRules},
}

var keyRules = And(
	Basic(CalendarHashChainExistenceRule{}),
	Basic(CalendarAuthRecordExistenceRule{}),
	Basic(PublicationsFileSignatureVerificationRule{}),
	Basic(CertificateExistenceRule{}),
	Basic(CertificateValidityRule{}),
	Basic(CalendarAuthRecordSignatureVerificationRule{}),
)

// KeyBasedPolicy verifies the calendar authentication record signature with the certificate found in the publications
// file.
//
// See verification context options to provide needed information:
//
//	VerCtxOptPublicationsFile        - Trusted publications file, or
//	VerCtxOptPublicationsFileHandler - publications file handler (mandatory).
//	VerCtxOptPkiVerifier             - PKI verifier (optional with handler).
//	VerCtxOptDocumentHash            - Document hash (optional).
//	VerCtxOptInputHashLevel          - Input hash level (optional).
var KeyBasedPolicy Policy = &policyImpl{
	name:  "KeyBasedPolicy",
	rules: []*PolicyRule{internalRules, keyRules},
}

var extendToPublicationRules = And(
	Basic(ExtendingPermittedVerificationRule{}),
	Basic(ExtendedToPublicationHashVerificationRule{}),
	Basic(ExtendedToPublicationTimeVerificationRule{}),
	Basic(ExtendedToPublicationInputHashVerificationRule{}),
)

var pubFileRules = And(
	Basic(PublicationsFileSignatureVerificationRule{}),
	Or(
		And(
			Basic(PublicationRecordExistenceRule{}),
			Basic(PublicationsFileContainsSignaturePublicationRule{}),
			Basic(PublicationsFilePublicationHashMatchesRule{}),
		),
		And(
			Basic(PublicationsFileContainsSuitablePublicationRule{}),
			extendToPublicationRules,
		),
	),
)

// PublicationsFileBasedPolicy verifies the signature against a publication in the publications file. In case the
// signature is not extended to a publication present in the file, it is extended to the nearest suitable one
// (requires extending to be permitted).
//
// See verification context options to provide needed information:
//
//	VerCtxOptPublicationsFile        - Trusted publications file, or
//	VerCtxOptPublicationsFileHandler - publications file handler (mandatory).
//	VerCtxOptExtendingPermitted      - Permit extending (optional).
//	VerCtxOptCalendarProvider        - Calendar provider (optional).
//	VerCtxOptDocumentHash            - Document hash (optional).
//	VerCtxOptInputHashLevel          - Input hash level (optional).
var PublicationsFileBasedPolicy Policy = &policyImpl{
	name:  "PublicationsFileBasedPolicy",
	rules: []*PolicyRule{internalRules, pubFileRules},
}

var userPubRules = And(
	Basic(UserProvidedPublicationExistenceRule{}),
	Or(
		And(
			Basic(PublicationRecordExistenceRule{}),
			Basic(UserProvidedPublicationTimeMatchesRecordRule{}),
			Basic(UserProvidedPublicationHashMatchesRule{}),
		),
		And(
			Basic(UserProvidedPublicationCreationTimeVerificationRule{}),
			extendToPublicationRules,
		),
	),
)

// UserProvidedPublicationBasedPolicy verifies the signature against the user provided publication.
//
// See verification context options to provide needed information:
//
//	VerCtxOptUserPublication    - User publication (mandatory).
//	VerCtxOptExtendingPermitted - Permit extending (optional).
//	VerCtxOptCalendarProvider   - Calendar provider (optional).
//	VerCtxOptDocumentHash       - Document hash (optional).
//	VerCtxOptInputHashLevel     - Input hash level (optional).
var UserProvidedPublicationBasedPolicy Policy = &policyImpl{
	name:  "UserProvidedPublicationBasedPolicy",
	rules: []*PolicyRule{internalRules, userPubRules},
}

// GeneralPolicy performs the internal verification and then tries the trust anchors in the following order until
// one of them succeeds: user publication, publications file, calendar authentication record, calendar provider.
var GeneralPolicy Policy = &policyImpl{
	name: "GeneralPolicy",
	rules: []*PolicyRule{
		internalRules,
		Or(userPubRules, pubFileRules, keyRules, calendarRules),
	},
}

// DefaultPolicy is KeyBasedPolicy with a fallback to CalendarBasedPolicy.
var DefaultPolicy = KeyBasedPolicy.WithFallback(CalendarBasedPolicy)
