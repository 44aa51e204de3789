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
	"time"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
	"github.com/guardtime/ksicore/publications"
	"github.com/guardtime/ksicore/signature/verify"
	"github.com/guardtime/ksicore/signature/verify/reserr"
	"github.com/guardtime/ksicore/signature/verify/result"
)

type verificationTemp struct {
	aggregationOutputHash *hash.DataHash
	// Signature extending response calendar hash chain and the time it was extended to.
	extendedCalendar   *pdu.CalendarChain
	extendedCalendarTo time.Time
	// Publications file to be used.
	publicationsFile *publications.File
	// Publication the signature is verified against.
	publication *pdu.PublicationData
}

// VerificationContext is a set of KSI signature verification parameters.
type VerificationContext struct {
	/*
	   User input.
	*/
	// Signature being verified.
	signature *Signature
	// Document hash to be verified.
	documentHash *hash.DataHash
	// Initial aggregation level.
	inputHashLvl byte
	// Indicates whether signature extension is allowed.
	extendingPerm bool
	// Calendar provider used for extending during verification.
	calProvider verify.CalendarProvider
	// Initialized publications file handler.
	publicationsFileHandler *publications.FileHandler
	// Publication to be used.
	userPublication *pdu.PublicationData
	// Publications file to be used.
	userPublicationsFile *publications.File
	// PKI verifier for the publications file and calendar authentication record signatures.
	pki verify.PKIVerifier

	/*
		Verification runtime temporary data.
	*/
	temp *verificationTemp

	/*
		Verification result report.
	*/
	result *VerificationResult
}

// NewVerificationContext returns new VerificationContext instance, or error in case any input parameters are not valid.
// Optionally, additional data can be added for using while verification process via parameter opts.
func NewVerificationContext(sig *Signature, opts ...VerCtxOption) (*VerificationContext, error) {
	if sig == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	tmp := context{obj: VerificationContext{
		signature: sig,
		result:    &VerificationResult{},
		temp:      &verificationTemp{},
	}}
	for _, optSetter := range opts {
		if optSetter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := optSetter(&tmp); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Unable to setup verification context.")
		}
	}
	return &tmp.obj, nil
}

// VerCtxOption is verification context option to be used when initializing VerificationContext.
type VerCtxOption func(*context) error
type context struct {
	obj VerificationContext
}

func missingContext() error {
	return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing verification context base object.")
}

// VerCtxOptDocumentHash is for setting document hash for verification process.
func VerCtxOptDocumentHash(h *hash.DataHash) VerCtxOption {
	return func(c *context) error {
		if h == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if c == nil {
			return missingContext()
		}
		c.obj.documentHash = h
		return nil
	}
}

// VerCtxOptInputHashLevel is for setting data hash input level.
// See also VerCtxOptDocumentHash() for setting document hash.
func VerCtxOptInputHashLevel(level byte) VerCtxOption {
	return func(c *context) error {
		if c == nil {
			return missingContext()
		}
		c.obj.inputHashLvl = level
		return nil
	}
}

// VerCtxOptExtendingPermitted option provides the ability to enable verification procedure based on signature extending.
func VerCtxOptExtendingPermitted(b bool) VerCtxOption {
	return func(c *context) error {
		if c == nil {
			return missingContext()
		}
		c.obj.extendingPerm = b
		return nil
	}
}

// VerCtxOptCalendarProvider option specifies the calendar provider to be used in verification process.
// See VerCtxOptExtendingPermitted() for enabling extending with publications.
func VerCtxOptCalendarProvider(cp verify.CalendarProvider) VerCtxOption {
	return func(c *context) error {
		if cp == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if c == nil {
			return missingContext()
		}
		c.obj.calProvider = cp
		return nil
	}
}

// VerCtxOptPublicationsFileHandler option specifies the publications file handler. The handler PKI verifier is used
// unless VerCtxOptPkiVerifier is set.
func VerCtxOptPublicationsFileHandler(h *publications.FileHandler) VerCtxOption {
	return func(c *context) error {
		if h == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if c == nil {
			return missingContext()
		}
		c.obj.publicationsFileHandler = h
		return nil
	}
}

// VerCtxOptUserPublication options enables verification process to be performed base on the provided publication.
func VerCtxOptUserPublication(pub *pdu.PublicationData) VerCtxOption {
	return func(c *context) error {
		if pub == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if c == nil {
			return missingContext()
		}
		c.obj.userPublication = pub
		return nil
	}
}

// VerCtxOptPublicationsFile options enables verification process to be performed base on the provided publications file.
// The file is trusted as is. If set, the file handler is not used for receiving the publications file.
func VerCtxOptPublicationsFile(pubFile *publications.File) VerCtxOption {
	return func(c *context) error {
		if pubFile == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if c == nil {
			return missingContext()
		}
		c.obj.userPublicationsFile = pubFile
		return nil
	}
}

// VerCtxOptPkiVerifier option specifies the PKI verifier used for the publications file and calendar authentication
// record signature checks.
func VerCtxOptPkiVerifier(v verify.PKIVerifier) VerCtxOption {
	return func(c *context) error {
		if v == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if c == nil {
			return missingContext()
		}
		c.obj.pki = v
		return nil
	}
}

// extendedCalendar returns the signature calendar hash chain extended to the given time. Zero time means the
// calendar head.
func (c *VerificationContext) extendedCalendar(to time.Time) (*pdu.CalendarChain, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if c.temp.extendedCalendar != nil && c.temp.extendedCalendarTo.Equal(to) {
		return c.temp.extendedCalendar, nil
	}

	if c.calProvider == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Calendar provider is not configured.")
	}
	from, err := c.signature.AggregationTime()
	if err != nil {
		return nil, err
	}
	log.Debug("Receiving calendar hash chain from ", from.Unix(), " to ", to.Unix())
	calChain, err := c.calProvider.ReceiveCalendar(from, to)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Failed to receive calendar hash chain.")
	}
	if calChain == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Calendar provider returned no chain.")
	}
	c.temp.extendedCalendar = calChain
	c.temp.extendedCalendarTo = to
	return calChain, nil
}

func (c *VerificationContext) aggregationOutputHash() (*hash.DataHash, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	if c.temp.aggregationOutputHash == nil {
		outputHash, _, err := c.signature.AggregationOutputHash()
		if err != nil {
			return nil, err
		}
		c.temp.aggregationOutputHash = outputHash
	}
	return c.temp.aggregationOutputHash, nil
}

func (c *VerificationContext) publicationsFile() (*publications.File, error) {
	if c == nil || c.temp == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	if c.temp.publicationsFile == nil {
		if c.userPublicationsFile != nil {
			log.Debug("Using user provided publications file.")
			c.temp.publicationsFile = c.userPublicationsFile
		} else {
			if c.publicationsFileHandler == nil {
				return nil, errors.New(errors.KsiInvalidStateError).
					AppendMessage("Publications file handler is not provided.")
			}

			log.Debug("Receiving publications file.")
			tmp, err := c.publicationsFileHandler.ReceiveFile()
			if err != nil {
				return nil, err
			}
			c.temp.publicationsFile = tmp
		}
	}
	return c.temp.publicationsFile, nil
}

func (c *VerificationContext) pkiVerifier() (verify.PKIVerifier, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if c.pki != nil {
		return c.pki, nil
	}
	if c.publicationsFileHandler != nil {
		v, err := c.publicationsFileHandler.Verifier()
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("PKI verifier is not configured.")
}

// Result returns verification result report.
func (c *VerificationContext) Result() (*VerificationResult, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return c.result, nil
}

// VerificationResult represents signature verification result report.
type VerificationResult struct {
	policyResult []*PolicyResult
	finalResult  *RuleResult

	performed verify.Step
	failed    verify.Step
}

func (r *VerificationResult) appendRuleResult(res *RuleResult) {
	if len(r.policyResult) != 0 {
		last := r.policyResult[len(r.policyResult)-1]
		last.ruleResults = append(last.ruleResults, res)
	}
	r.finalResult = res
	if res.step != 0 {
		r.performed |= res.step
		if res.resCode != result.OK {
			r.failed |= res.step
		}
	}
	log.Debug(res)
}

// String implements fmt.(Stringer) interface.
func (r *VerificationResult) String() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, polRes := range r.policyResult {
		b.WriteString("Policy result: ")
		b.WriteString(polRes.PolicyName())
		b.WriteString("\n")
		for _, ruleRes := range polRes.ruleResults {
			b.WriteString(ruleRes.String())
			b.WriteString("\n")
		}
	}
	b.WriteString("Final ")
	if r.finalResult != nil {
		b.WriteString(r.finalResult.String())
	} else {
		b.WriteString("<no final result>")
	}
	b.WriteString("\n")
	return b.String()
}

// Error returns error if the verification has failed (see VerificationResultCode), otherwise nil.
func (r *VerificationResult) Error() error {
	if r == nil || r.finalResult == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	if r.finalResult.resCode != result.OK {
		err := errors.New(errors.KsiVerificationFailure).SetExtErrorCode(int(r.finalResult.errCode)).
			AppendMessage("Signature verification failed.").
			AppendMessage(fmt.Sprintf("%s", r))
		log.Debug(err)
		return err
	}
	return nil
}

// PolicyResults returns policy results report, the main policy first followed by the fallbacks.
func (r *VerificationResult) PolicyResults() []*PolicyResult {
	if r == nil {
		return nil
	}
	return r.policyResult
}

// FinalResult returns verification result report conclusion, the last evaluated rule result.
func (r *VerificationResult) FinalResult() *RuleResult {
	if r == nil {
		return nil
	}
	return r.finalResult
}

// Steps returns the verification steps performed and the subset of those which were successful.
func (r *VerificationResult) Steps() (performed, successful verify.Step) {
	if r == nil {
		return 0, 0
	}
	return r.performed, r.performed &^ r.failed
}

// PolicyResult represents policy verification result report.
type PolicyResult struct {
	policy      Policy
	ruleResults []*RuleResult
}

// PolicyName returns the policy name of the receiver policy verification report, or empty string in case of an error.
func (p *PolicyResult) PolicyName() string {
	if p == nil || p.policy == nil {
		return ""
	}
	return p.policy.String()
}

// RuleResults returns policy rules result report.
func (p *PolicyResult) RuleResults() []*RuleResult {
	if p == nil {
		return nil
	}
	return p.ruleResults
}

// RuleResult represents Rule result report.
type RuleResult struct {
	resCode result.Code // Verification result code.
	errCode reserr.Code // Verification error code.
	rule    Rule        // Verification rule.
	step    verify.Step // Verification step the rule belongs to.
	descr   string
	// Error that might have occurred during verification causing the given rule result. Provides additional information
	// for further processing (e.g. in case of inconclusive result when fetching some resources).
	statusErr error
}

type stepper interface {
	step() verify.Step
}

func newRuleResult(rule Rule, resCode result.Code) *RuleResult {
	tmp := &RuleResult{
		resCode: resCode,
		errCode: reserr.ErrNA,
		rule:    rule,
	}
	if s, ok := rule.(stepper); ok {
		tmp.step = s.step()
	}
	return tmp
}

func (r *RuleResult) setStatusErr(e error) *RuleResult {
	if r != nil {
		r.statusErr = e
	}
	return r
}

func (r *RuleResult) setErrCode(c reserr.Code) *RuleResult {
	if r != nil {
		r.errCode = c
	}
	return r
}

func (r *RuleResult) setDescription(d string) *RuleResult {
	if r != nil {
		r.descr = d
	}
	return r
}

// String implements fmt.(Stringer) interface.
func (r *RuleResult) String() string {
	if r == nil || r.rule == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s: %s(%s)", r.rule, r.resCode, r.errCode))
	if r.statusErr != nil {
		err := errors.KsiErr(r.statusErr)
		b.WriteString(fmt.Sprintf(" :: [%04x/%d]", uint16(err.Code()), err.ExtCode()))
		msg := err.Message()
		for i := len(msg); i > 0; i-- {
			b.WriteString(fmt.Sprintf(" %s", msg[i-1]))
		}
	}
	return b.String()
}

// ResultCode returns verification result code for the given Rule.
func (r *RuleResult) ResultCode() (result.Code, error) {
	if r == nil {
		return result.NA, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.resCode, nil
}

// ErrorCode returns verification error code for the given Rule, or ErrNA if result is OK.
func (r *RuleResult) ErrorCode() (reserr.Code, error) {
	if r == nil {
		return reserr.ErrNA, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.errCode, nil
}

// StatusErr returns the additional status error that might have occurred during verification causing the given rule result.
func (r *RuleResult) StatusErr() (error, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.statusErr, nil
}

// Step returns the verification step the rule belongs to, or 0 for the rules not bound to a step.
func (r *RuleResult) Step() verify.Step {
	if r == nil {
		return 0
	}
	return r.step
}

// Description returns a human readable description of the result. Defaults to the error code message.
func (r *RuleResult) Description() string {
	if r == nil {
		return ""
	}
	if r.descr != "" {
		return r.descr
	}
	return r.errCode.Message()
}

// RuleName returns a string representation of the given verification Rule.
func (r *RuleResult) RuleName() string {
	if r == nil || r.rule == nil {
		return ""
	}
	return r.rule.String()
}
