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
	"reflect"
	"time"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
	"github.com/guardtime/ksicore/pki"
	"github.com/guardtime/ksicore/publications"
	"github.com/guardtime/ksicore/signature/verify"
	"github.com/guardtime/ksicore/signature/verify/reserr"
	"github.com/guardtime/ksicore/signature/verify/result"
)

// Rule is the verification Rule common interface.
type Rule interface {
	fmt.Stringer
	// Verify performs Rule verification.
	Verify(*VerificationContext) (*RuleResult, error)
}

type codedRule interface {
	Rule
	errCode() reserr.Code
}

func getName(r interface{}) string {
	valueOf := reflect.ValueOf(r)
	if valueOf.Type().Kind() == reflect.Ptr {
		return reflect.Indirect(valueOf).Type().Name()
	}
	return valueOf.Type().Name()
}

func checkContext(verCtx *VerificationContext) error {
	if verCtx == nil || verCtx.signature == nil || verCtx.temp == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	return nil
}

func okResult(r Rule) (*RuleResult, error) {
	return newRuleResult(r, result.OK), nil
}

func failResult(r codedRule) (*RuleResult, error) {
	return newRuleResult(r, result.FAIL).setErrCode(r.errCode()), nil
}

// naResult reports a not applicable result without error.
func naResult(r Rule, descr string) (*RuleResult, error) {
	return newRuleResult(r, result.NA).setErrCode(reserr.Gen02).setDescription(descr), nil
}

// inconclusive reports a not applicable result with the cause. The evaluation continues.
func inconclusive(r Rule, err error) (*RuleResult, error) {
	log.Info(r, ": ", err)
	return newRuleResult(r, result.NA).setErrCode(reserr.Gen02).setStatusErr(err), nil
}

// ruleErr aborts the evaluation.
func ruleErr(r Rule, err error, msg string) (*RuleResult, error) {
	if msg != "" {
		err = errors.KsiErr(err).AppendMessage(msg)
	}
	return newRuleResult(r, result.NA).setErrCode(reserr.Gen02).setStatusErr(err), err
}

func invalidContext(r Rule) (*RuleResult, error) {
	return ruleErr(r, errors.New(errors.KsiInvalidArgumentError), "")
}

/*
----------------------------------------
FailPolicy and SuccessPolicy rules
----------------------------------------
*/

// FailRule always returns verification code 'FAIL(None)'.
type FailRule struct{}

func (r FailRule) errCode() reserr.Code { return reserr.ErrNA }
func (r FailRule) String() string       { return getName(r) }
func (r FailRule) Verify(_ *VerificationContext) (*RuleResult, error) {
	return failResult(r)
}

// OkRule always returns verification code 'OK'.
type OkRule struct{}

func (r OkRule) String() string { return getName(r) }
func (r OkRule) Verify(_ *VerificationContext) (*RuleResult, error) {
	return okResult(r)
}

/*
----------------------------------------
Internal verification rules
----------------------------------------
*/

// DocumentHashMissingRule returns OK if the document hash has not been provided, otherwise NA.
type DocumentHashMissingRule struct{}

func (r DocumentHashMissingRule) String() string { return getName(r) }
func (r DocumentHashMissingRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.documentHash == nil {
		return okResult(r)
	}
	return naResult(r, "Document hash is provided.")
}

// DocumentHashAlgorithmVerificationRule verifies that provided document hash algorithm does match with
// the hash algorithm of the input hash of the first aggregation chain.
// Returns OK or FAIL(GEN-04).
type DocumentHashAlgorithmVerificationRule struct{}

func (r DocumentHashAlgorithmVerificationRule) errCode() reserr.Code { return reserr.Gen04 }
func (r DocumentHashAlgorithmVerificationRule) step() verify.Step    { return verify.StepDocument }
func (r DocumentHashAlgorithmVerificationRule) String() string       { return getName(r) }
func (r DocumentHashAlgorithmVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.documentHash == nil {
		return ruleErr(r, errors.New(errors.KsiInvalidStateError), "Missing document hash.")
	}

	sigDocHsh, err := verCtx.signature.DocumentHash()
	if err != nil {
		return ruleErr(r, err, "Failed to get signature document hash.")
	}
	if verCtx.documentHash.Algorithm() != sigDocHsh.Algorithm() {
		return failResult(r)
	}
	return okResult(r)
}

// DocumentHashVerificationRule verifies that provided document hash does match with the input hash of
// the first aggregation hash chain.
// Returns OK or FAIL(GEN-01).
type DocumentHashVerificationRule struct{}

func (r DocumentHashVerificationRule) errCode() reserr.Code { return reserr.Gen01 }
func (r DocumentHashVerificationRule) step() verify.Step    { return verify.StepDocument }
func (r DocumentHashVerificationRule) String() string       { return getName(r) }
func (r DocumentHashVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.documentHash == nil {
		return ruleErr(r, errors.New(errors.KsiInvalidStateError), "Missing document hash.")
	}

	sigDocHsh, err := verCtx.signature.DocumentHash()
	if err != nil {
		return ruleErr(r, err, "Failed to get signature document hash.")
	}
	if !verCtx.documentHash.Equal(sigDocHsh) {
		log.Info("Document hash mismatch.")
		log.Info("... provided : ", verCtx.documentHash)
		log.Info("... signature: ", sigDocHsh)
		return failResult(r)
	}
	return okResult(r)
}

// InputHashLevelVerificationRule verifies that document input level (default 0) is not greater than the
// level correction of the first link of the first aggregation hash chain. In case of RFC3161 record the input level
// must be 0.
// Returns OK or FAIL(GEN-03).
type InputHashLevelVerificationRule struct{}

func (r InputHashLevelVerificationRule) errCode() reserr.Code { return reserr.Gen03 }
func (r InputHashLevelVerificationRule) step() verify.Step    { return verify.StepDocument }
func (r InputHashLevelVerificationRule) String() string       { return getName(r) }
func (r InputHashLevelVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	// The document of an RFC3161 record is always at level 0.
	if verCtx.signature.rfc3161 != nil {
		if verCtx.inputHashLvl != 0 {
			log.Info(fmt.Sprintf("Input hash level %d is not 0 for RFC3161 record.", verCtx.inputHashLvl))
			return failResult(r)
		}
		return okResult(r)
	}

	aggrChains, err := verCtx.signature.AggregationChainList()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chain list.")
	}
	chainLinks, err := aggrChains[0].ChainLinks()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chain links.")
	}
	if len(chainLinks) == 0 {
		return ruleErr(r, errors.New(errors.KsiInvalidStateError), "Missing aggregation hash chain links.")
	}
	lvlCorr, err := chainLinks[0].LevelCorrection()
	if err != nil {
		return ruleErr(r, err, "Failed to get level correction.")
	}

	if uint64(verCtx.inputHashLvl) > lvlCorr {
		log.Info(fmt.Sprintf("Input hash level %d is greater than the level correction %d.", verCtx.inputHashLvl, lvlCorr))
		return failResult(r)
	}
	return okResult(r)
}

// algorithmStatus maps the hash function status at the given time to a rule result.
func algorithmStatus(r codedRule, alg hash.Algorithm, at time.Time, failOn ...hash.FunctionStatus) (*RuleResult, error) {
	status := alg.StatusAt(at.Unix())
	switch status {
	case hash.Unknown:
		return ruleErr(r, errors.New(errors.KsiUnknownHashAlgorithm),
			fmt.Sprintf("Unknown hash algorithm: %d.", byte(alg)))
	default:
		for _, s := range failOn {
			if s == status {
				log.Info(fmt.Sprintf("Hash algorithm %s is not trusted at %d.", alg, at.Unix()))
				return failResult(r)
			}
		}
	}
	return okResult(r)
}

// InputHashAlgorithmVerificationRule verifies that the document hash algorithm was not deprecated at the
// signing time.
// Returns OK or FAIL(INT-13).
type InputHashAlgorithmVerificationRule struct{}

func (r InputHashAlgorithmVerificationRule) errCode() reserr.Code { return reserr.Int13 }
func (r InputHashAlgorithmVerificationRule) step() verify.Step    { return verify.StepAggrChainInternally }
func (r InputHashAlgorithmVerificationRule) String() string       { return getName(r) }
func (r InputHashAlgorithmVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	docHsh, err := verCtx.signature.DocumentHash()
	if err != nil {
		return ruleErr(r, err, "Failed to get signature document hash.")
	}
	at, err := verCtx.signature.AggregationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get signing time.")
	}
	return algorithmStatus(r, docHsh.Algorithm(), at, hash.Deprecated, hash.Obsolete)
}

func equalIndex(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Rfc3161RecordMissingRule returns OK if the signature does not contain an RFC3161 record, otherwise NA.
type Rfc3161RecordMissingRule struct{}

func (r Rfc3161RecordMissingRule) String() string { return getName(r) }
func (r Rfc3161RecordMissingRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.signature.rfc3161 == nil {
		return okResult(r)
	}
	return naResult(r, "RFC3161 record is present.")
}

func signatureRfc3161(r Rule, verCtx *VerificationContext) (*pdu.RFC3161, time.Time, *RuleResult, error) {
	rec, err := verCtx.signature.RFC3161()
	if err != nil {
		res, err := ruleErr(r, err, "Failed to get RFC3161 record.")
		return nil, time.Time{}, res, err
	}
	if rec == nil {
		res, err := ruleErr(r, errors.New(errors.KsiInvalidStateError), "Missing RFC3161 record.")
		return nil, time.Time{}, res, err
	}
	at, err := rec.AggregationTime()
	if err != nil {
		res, err := ruleErr(r, err, "Failed to get RFC3161 record aggregation time.")
		return nil, time.Time{}, res, err
	}
	return rec, at, nil, nil
}

// Rfc3161RecordHashAlgorithmVerificationRule verifies that the hash algorithms used for the TSTInfo and the
// SignedAttributes structures of the RFC3161 record were not deprecated at the aggregation time.
// Returns OK or FAIL(INT-14).
type Rfc3161RecordHashAlgorithmVerificationRule struct{}

func (r Rfc3161RecordHashAlgorithmVerificationRule) errCode() reserr.Code { return reserr.Int14 }
func (r Rfc3161RecordHashAlgorithmVerificationRule) step() verify.Step {
	return verify.StepAggrChainInternally
}
func (r Rfc3161RecordHashAlgorithmVerificationRule) String() string { return getName(r) }
func (r Rfc3161RecordHashAlgorithmVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	rec, at, res, err := signatureRfc3161(r, verCtx)
	if rec == nil {
		return res, err
	}
	tstInfoAlgo, err := rec.TstInfoAlgo()
	if err != nil {
		return ruleErr(r, err, "Failed to get RFC3161 record TSTInfo algorithm.")
	}
	sigAttrAlgo, err := rec.SigAttrAlgo()
	if err != nil {
		return ruleErr(r, err, "Failed to get RFC3161 record signed attributes algorithm.")
	}
	for _, alg := range []hash.Algorithm{tstInfoAlgo, sigAttrAlgo} {
		if res, err := algorithmStatus(r, alg, at, hash.Deprecated, hash.Obsolete); err != nil ||
			res.resCode != result.OK {
			return res, err
		}
	}
	return okResult(r)
}

// Rfc3161RecordOutputHashAlgorithmVerificationRule verifies that the RFC3161 record output hash algorithm, the
// algorithm of the first aggregation hash chain input hash, was not deprecated at the aggregation time.
// Returns OK or FAIL(INT-17).
type Rfc3161RecordOutputHashAlgorithmVerificationRule struct{}

func (r Rfc3161RecordOutputHashAlgorithmVerificationRule) errCode() reserr.Code { return reserr.Int17 }
func (r Rfc3161RecordOutputHashAlgorithmVerificationRule) step() verify.Step {
	return verify.StepAggrChainInternally
}
func (r Rfc3161RecordOutputHashAlgorithmVerificationRule) String() string { return getName(r) }
func (r Rfc3161RecordOutputHashAlgorithmVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	rec, at, res, err := signatureRfc3161(r, verCtx)
	if rec == nil {
		return res, err
	}
	aggrChains, err := verCtx.signature.AggregationChainList()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chain list.")
	}
	inputHash, err := aggrChains[0].InputHash()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chain input hash.")
	}
	return algorithmStatus(r, inputHash.Algorithm(), at, hash.Deprecated, hash.Obsolete)
}

// AggregationChainHashAlgorithmVerificationRule verifies that the aggregation algorithm of any aggregation hash
// chain was not deprecated at the aggregation time.
// Returns OK or FAIL(INT-15).
type AggregationChainHashAlgorithmVerificationRule struct{}

func (r AggregationChainHashAlgorithmVerificationRule) errCode() reserr.Code { return reserr.Int15 }
func (r AggregationChainHashAlgorithmVerificationRule) step() verify.Step {
	return verify.StepAggrChainInternally
}
func (r AggregationChainHashAlgorithmVerificationRule) String() string { return getName(r) }
func (r AggregationChainHashAlgorithmVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	aggrChains, err := verCtx.signature.AggregationChainList()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chains.")
	}
	for _, chain := range aggrChains {
		aggrAlgo, err := chain.AggregationAlgo()
		if err != nil {
			return ruleErr(r, err, "Failed to get aggregation hash chain algorithm.")
		}
		aggrTime, err := chain.AggregationTime()
		if err != nil {
			return ruleErr(r, err, "Failed to get aggregation hash chain time.")
		}
		if res, err := algorithmStatus(r, aggrAlgo, aggrTime, hash.Deprecated, hash.Obsolete); err != nil ||
			res.resCode != result.OK {
			return res, err
		}
	}
	return okResult(r)
}

// AggregationHashChainConsistencyVerificationRule verifies that all aggregation hash chains are consistent, i.e. the
// previous aggregation output hash equals to the current aggregation chain input hash. The output hash of the RFC3161
// record precedes the first aggregation hash chain.
// Returns OK or FAIL(INT-01).
type AggregationHashChainConsistencyVerificationRule struct{}

func (r AggregationHashChainConsistencyVerificationRule) errCode() reserr.Code { return reserr.Int01 }
func (r AggregationHashChainConsistencyVerificationRule) step() verify.Step {
	return verify.StepAggrChainInternally
}
func (r AggregationHashChainConsistencyVerificationRule) String() string { return getName(r) }
func (r AggregationHashChainConsistencyVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	aggrChains, err := verCtx.signature.AggregationChainList()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chains.")
	}

	var (
		hsh *hash.DataHash
		lvl byte
	)
	for i, chain := range aggrChains {
		inputHash, err := chain.InputHash()
		if err != nil {
			return ruleErr(r, err, "Failed to get aggregation hash chain input hash.")
		}
		if i == 0 && verCtx.signature.rfc3161 != nil {
			if hsh, err = verCtx.signature.rfc3161.OutputHash(inputHash.Algorithm()); err != nil {
				return ruleErr(r, err, "Failed to get RFC3161 record output hash.")
			}
		}
		if hsh != nil && !hsh.Equal(inputHash) {
			log.Info(fmt.Sprintf("AggrChain[%d] input hash mismatch.", i))
			log.Info("... prev hash : ", hsh)
			log.Info("... input hash: ", inputHash)
			return failResult(r)
		}
		if hsh, lvl, err = chain.Aggregate(lvl); err != nil {
			return ruleErr(r, err, "")
		}
	}
	verCtx.temp.aggregationOutputHash = hsh
	return okResult(r)
}

// AggregationHashChainTimeConsistencyVerificationRule verifies that all aggregation hash chains and the RFC3161
// record have the same aggregation time.
// Returns OK or FAIL(INT-02).
type AggregationHashChainTimeConsistencyVerificationRule struct{}

func (r AggregationHashChainTimeConsistencyVerificationRule) errCode() reserr.Code { return reserr.Int02 }
func (r AggregationHashChainTimeConsistencyVerificationRule) step() verify.Step {
	return verify.StepAggrChainInternally
}
func (r AggregationHashChainTimeConsistencyVerificationRule) String() string { return getName(r) }
func (r AggregationHashChainTimeConsistencyVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	aggrChains, err := verCtx.signature.AggregationChainList()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chains.")
	}
	var (
		prevTime time.Time
		hasPrev  bool
	)
	if rec := verCtx.signature.rfc3161; rec != nil {
		if prevTime, err = rec.AggregationTime(); err != nil {
			return ruleErr(r, err, "Failed to get RFC3161 record aggregation time.")
		}
		hasPrev = true
	}
	for _, chain := range aggrChains {
		aggrTime, err := chain.AggregationTime()
		if err != nil {
			return ruleErr(r, err, "Failed to get aggregation hash chain aggregation time.")
		}
		if hasPrev && !prevTime.Equal(aggrTime) {
			log.Info("Aggregation hash chains are from different aggregation rounds.")
			return failResult(r)
		}
		prevTime, hasPrev = aggrTime, true
	}
	return okResult(r)
}

// AggregationHashChainIndexConsistencyVerificationRule verifies that the shape of the aggregation hash chain matches
// the last element of the chain index.
// Returns OK or FAIL(INT-10).
type AggregationHashChainIndexConsistencyVerificationRule struct{}

func (r AggregationHashChainIndexConsistencyVerificationRule) errCode() reserr.Code { return reserr.Int10 }
func (r AggregationHashChainIndexConsistencyVerificationRule) step() verify.Step {
	return verify.StepAggrChainInternally
}
func (r AggregationHashChainIndexConsistencyVerificationRule) String() string { return getName(r) }
func (r AggregationHashChainIndexConsistencyVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	aggrChains, err := verCtx.signature.AggregationChainList()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chains.")
	}
	for _, chain := range aggrChains {
		shape, err := chain.CalculateShape()
		if err != nil {
			return newRuleResult(r, result.FAIL).setErrCode(r.errCode()).setStatusErr(err), nil
		}
		chainIndex, err := chain.ChainIndex()
		if err != nil {
			return ruleErr(r, err, "Failed to get chain index.")
		}
		if len(chainIndex) == 0 || shape != chainIndex[len(chainIndex)-1] {
			log.Info("Aggregation hash chain index does not match with aggregation hash chain shape.")
			return failResult(r)
		}
	}
	return okResult(r)
}

// AggregationHashChainIndexContinuationVerificationRule verifies that the chain index of every aggregation hash
// chain is a continuation of the previous chain index. The chain index of the RFC3161 record must equal to the chain
// index of the first aggregation hash chain.
// Returns OK or FAIL(INT-12).
type AggregationHashChainIndexContinuationVerificationRule struct{}

func (r AggregationHashChainIndexContinuationVerificationRule) errCode() reserr.Code { return reserr.Int12 }
func (r AggregationHashChainIndexContinuationVerificationRule) step() verify.Step {
	return verify.StepAggrChainInternally
}
func (r AggregationHashChainIndexContinuationVerificationRule) String() string { return getName(r) }
func (r AggregationHashChainIndexContinuationVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	aggrChains, err := verCtx.signature.AggregationChainList()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chains.")
	}
	var prevIndex []uint64
	for i, chain := range aggrChains {
		curIndex, err := chain.ChainIndex()
		if err != nil {
			return ruleErr(r, err, "Failed to get aggregation hash chain index.")
		}
		if i == 0 && verCtx.signature.rfc3161 != nil {
			recIndex, err := verCtx.signature.rfc3161.ChainIndex()
			if err != nil {
				return ruleErr(r, err, "Failed to get RFC3161 record chain index.")
			}
			if !equalIndex(recIndex, curIndex) {
				log.Info("Aggregation hash chain and RFC3161 record chain index mismatch.")
				return failResult(r)
			}
		}
		if i != 0 {
			if len(prevIndex) != len(curIndex)+1 {
				log.Info("Unexpected chain index length in aggregation hash chain.")
				return failResult(r)
			}
			for j := range curIndex {
				if curIndex[j] != prevIndex[j] {
					log.Info("Aggregation hash chain index is not continuation of previous chain index.")
					return failResult(r)
				}
			}
		}
		prevIndex = curIndex
	}
	return okResult(r)
}

// AggregationChainMetaDataVerificationRule verifies the metadata structures in the aggregation hash chains. A padded
// metadata must carry a TLV8 padding element with N and F flags set, a value of 0x01 or 0x0101 and an even total
// length. A metadata without padding must not be interpretable as a hash imprint.
// Returns OK or FAIL(INT-11).
type AggregationChainMetaDataVerificationRule struct{}

func (r AggregationChainMetaDataVerificationRule) errCode() reserr.Code { return reserr.Int11 }
func (r AggregationChainMetaDataVerificationRule) step() verify.Step {
	return verify.StepAggrChainInternally
}
func (r AggregationChainMetaDataVerificationRule) String() string { return getName(r) }
func (r AggregationChainMetaDataVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	aggrChains, err := verCtx.signature.AggregationChainList()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chains.")
	}
	for _, chain := range aggrChains {
		chainLinks, err := chain.ChainLinks()
		if err != nil {
			return ruleErr(r, err, "Failed to get aggregation hash chain links.")
		}
		for _, link := range chainLinks {
			metadata, err := link.MetaData()
			if err != nil {
				return ruleErr(r, err, "Failed to get link metadata.")
			}
			if metadata == nil {
				continue
			}
			metadataTlv, err := metadata.EncodeToTlv()
			if err != nil {
				return ruleErr(r, err, "Failed to get metadata TLV.")
			}
			value, err := metadataTlv.Value()
			if err != nil {
				return ruleErr(r, err, "Failed to get metadata value.")
			}

			if !metadata.HasPadding() {
				if hash.Imprint(value).IsValid() {
					log.Info("Metadata could be interpreted as imprint.")
					return failResult(r)
				}
				continue
			}

			padTlv, err := metadataTlv.Extract(pdu.TagMetaDataPadding)
			if err != nil {
				return ruleErr(r, err, "Failed to get metadata padding.")
			}
			if padTlv.Is16 {
				log.Info("Metadata padding not encoded as TLV8.")
				return failResult(r)
			}
			if !padTlv.NonCritical || !padTlv.ForwardUnknown {
				log.Info("Metadata padding does not have N and F flags set.")
				return failResult(r)
			}
			padding, err := padTlv.Value()
			if err != nil {
				return ruleErr(r, err, "Failed to get metadata padding value.")
			}
			switch {
			case len(padding) == 1 && padding[0] == 0x01:
			case len(padding) == 2 && padding[0] == 0x01 && padding[1] == 0x01:
			default:
				log.Info("Metadata padding has invalid value.")
				return failResult(r)
			}
			if len(value)%2 != 0 {
				log.Info("Metadata value length is not even.")
				return failResult(r)
			}
		}
	}
	return okResult(r)
}

// CalendarHashChainMissingRule returns OK if the signature does not contain a calendar hash chain, otherwise NA.
type CalendarHashChainMissingRule struct{}

func (r CalendarHashChainMissingRule) String() string { return getName(r) }
func (r CalendarHashChainMissingRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.signature.calChain == nil {
		return okResult(r)
	}
	return naResult(r, "Calendar hash chain is present.")
}

func signatureCalendar(r Rule, verCtx *VerificationContext) (*pdu.CalendarChain, *RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		res, err := invalidContext(r)
		return nil, res, err
	}
	if verCtx.signature.calChain == nil {
		res, err := ruleErr(r, errors.New(errors.KsiInvalidStateError), "Missing calendar hash chain.")
		return nil, res, err
	}
	return verCtx.signature.calChain, nil, nil
}

// CalendarHashChainInputHashVerificationRule verifies that the calendar hash chain input hash equals to the
// aggregation hash chain output hash.
// Returns OK or FAIL(INT-03).
type CalendarHashChainInputHashVerificationRule struct{}

func (r CalendarHashChainInputHashVerificationRule) errCode() reserr.Code { return reserr.Int03 }
func (r CalendarHashChainInputHashVerificationRule) step() verify.Step {
	return verify.StepAggrChainWithCalendarChain
}
func (r CalendarHashChainInputHashVerificationRule) String() string { return getName(r) }
func (r CalendarHashChainInputHashVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	calChain, res, err := signatureCalendar(r, verCtx)
	if calChain == nil {
		return res, err
	}

	outputHash, err := verCtx.aggregationOutputHash()
	if err != nil {
		return ruleErr(r, err, "Failed to aggregate aggregation hash chains.")
	}
	inputHash, err := calChain.InputHash()
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar hash chain input hash.")
	}
	if !outputHash.Equal(inputHash) {
		log.Info("Calendar hash chain input hash mismatch.")
		log.Info("... aggregation output: ", outputHash)
		log.Info("... calendar input    : ", inputHash)
		return failResult(r)
	}
	return okResult(r)
}

// CalendarHashChainAggregationTimeVerificationRule verifies that the calendar hash chain aggregation time equals to
// the aggregation time of the last aggregation hash chain.
// Returns OK or FAIL(INT-04).
type CalendarHashChainAggregationTimeVerificationRule struct{}

func (r CalendarHashChainAggregationTimeVerificationRule) errCode() reserr.Code { return reserr.Int04 }
func (r CalendarHashChainAggregationTimeVerificationRule) step() verify.Step {
	return verify.StepAggrChainWithCalendarChain
}
func (r CalendarHashChainAggregationTimeVerificationRule) String() string { return getName(r) }
func (r CalendarHashChainAggregationTimeVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	calChain, res, err := signatureCalendar(r, verCtx)
	if calChain == nil {
		return res, err
	}

	calTime, err := calChain.AggregationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar hash chain aggregation time.")
	}
	aggrChains, err := verCtx.signature.AggregationChainList()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chains.")
	}
	aggrTime, err := aggrChains[len(aggrChains)-1].AggregationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get aggregation hash chain aggregation time.")
	}
	if !calTime.Equal(aggrTime) {
		return failResult(r)
	}
	return okResult(r)
}

// CalendarHashChainRegistrationTimeVerificationRule verifies that the calendar hash chain aggregation time equals to
// the time calculated from the calendar hash chain shape.
// Returns OK or FAIL(INT-05).
type CalendarHashChainRegistrationTimeVerificationRule struct{}

func (r CalendarHashChainRegistrationTimeVerificationRule) errCode() reserr.Code { return reserr.Int05 }
func (r CalendarHashChainRegistrationTimeVerificationRule) step() verify.Step {
	return verify.StepCalChainInternally
}
func (r CalendarHashChainRegistrationTimeVerificationRule) String() string { return getName(r) }
func (r CalendarHashChainRegistrationTimeVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	calChain, res, err := signatureCalendar(r, verCtx)
	if calChain == nil {
		return res, err
	}

	calcTime, err := calChain.CalculateAggregationTime()
	if err != nil {
		if errors.KsiErr(err).Code() == errors.KsiInvalidFormatError {
			return newRuleResult(r, result.FAIL).setErrCode(r.errCode()).setStatusErr(err), nil
		}
		return ruleErr(r, err, "Failed to calculate aggregation time.")
	}
	calTime, err := calChain.AggregationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar hash chain aggregation time.")
	}
	if !calTime.Equal(calcTime) {
		return failResult(r)
	}
	return okResult(r)
}

// CalendarChainHashAlgorithmObsoleteAtPubTimeVerificationRule verifies that the hash algorithms of the left link
// sibling hashes of the calendar hash chain were not obsolete at the publication time.
// Returns OK or FAIL(INT-16).
type CalendarChainHashAlgorithmObsoleteAtPubTimeVerificationRule struct{}

func (r CalendarChainHashAlgorithmObsoleteAtPubTimeVerificationRule) errCode() reserr.Code {
	return reserr.Int16
}
func (r CalendarChainHashAlgorithmObsoleteAtPubTimeVerificationRule) step() verify.Step {
	return verify.StepCalChainInternally
}
func (r CalendarChainHashAlgorithmObsoleteAtPubTimeVerificationRule) String() string { return getName(r) }
func (r CalendarChainHashAlgorithmObsoleteAtPubTimeVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	calChain, res, err := signatureCalendar(r, verCtx)
	if calChain == nil {
		return res, err
	}

	pubTime, err := calChain.PublicationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar hash chain publication time.")
	}
	chainLinks, err := calChain.ChainLinks()
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar hash chain links.")
	}
	for _, link := range chainLinks {
		isLeft, err := link.IsLeft()
		if err != nil {
			return ruleErr(r, err, "Failed to get chain link direction.")
		}
		if !isLeft {
			continue
		}
		sibling, err := link.SiblingHash()
		if err != nil {
			return ruleErr(r, err, "Failed to get link sibling hash.")
		}
		if res, err := algorithmStatus(r, sibling.Algorithm(), pubTime, hash.Obsolete); err != nil ||
			res.resCode != result.OK {
			return res, err
		}
	}
	return okResult(r)
}

// PublicationRecordMissingRule returns OK if the signature does not contain a publication record, otherwise NA.
type PublicationRecordMissingRule struct{}

func (r PublicationRecordMissingRule) String() string { return getName(r) }
func (r PublicationRecordMissingRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.signature.publication == nil {
		return okResult(r)
	}
	return naResult(r, "Publication record is present.")
}

func signaturePublication(sig *Signature) (time.Time, *hash.DataHash, error) {
	if sig.publication == nil {
		return time.Time{}, nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing publication record.")
	}
	pubData, err := sig.publication.PublicationData()
	if err != nil {
		return time.Time{}, nil, err
	}
	return publicationValues(pubData)
}

func publicationValues(pubData *pdu.PublicationData) (time.Time, *hash.DataHash, error) {
	pubTime, err := pubData.PublicationTime()
	if err != nil {
		return time.Time{}, nil, err
	}
	pubHash, err := pubData.PublishedHash()
	if err != nil {
		return time.Time{}, nil, err
	}
	return pubTime, pubHash, nil
}

// PublicationRecordPublicationTimeVerificationRule verifies that the publication record publication time equals to
// the calendar hash chain publication time.
// Returns OK or FAIL(INT-07).
type PublicationRecordPublicationTimeVerificationRule struct{}

func (r PublicationRecordPublicationTimeVerificationRule) errCode() reserr.Code { return reserr.Int07 }
func (r PublicationRecordPublicationTimeVerificationRule) step() verify.Step {
	return verify.StepCalChainWithPublication
}
func (r PublicationRecordPublicationTimeVerificationRule) String() string { return getName(r) }
func (r PublicationRecordPublicationTimeVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	calChain, res, err := signatureCalendar(r, verCtx)
	if calChain == nil {
		return res, err
	}

	pubTime, _, err := signaturePublication(verCtx.signature)
	if err != nil {
		return ruleErr(r, err, "Failed to get publication record data.")
	}
	calTime, err := calChain.PublicationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar hash chain publication time.")
	}
	if !pubTime.Equal(calTime) {
		return failResult(r)
	}
	return okResult(r)
}

// PublicationRecordPublicationHashVerificationRule verifies that the publication record published hash equals to
// the calendar hash chain root hash.
// Returns OK or FAIL(INT-09).
type PublicationRecordPublicationHashVerificationRule struct{}

func (r PublicationRecordPublicationHashVerificationRule) errCode() reserr.Code { return reserr.Int09 }
func (r PublicationRecordPublicationHashVerificationRule) step() verify.Step {
	return verify.StepCalChainWithPublication
}
func (r PublicationRecordPublicationHashVerificationRule) String() string { return getName(r) }
func (r PublicationRecordPublicationHashVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	calChain, res, err := signatureCalendar(r, verCtx)
	if calChain == nil {
		return res, err
	}

	_, pubHash, err := signaturePublication(verCtx.signature)
	if err != nil {
		return ruleErr(r, err, "Failed to get publication record data.")
	}
	rootHash, err := calChain.Aggregate()
	if err != nil {
		return ruleErr(r, err, "Failed to aggregate calendar hash chain.")
	}
	if !pubHash.Equal(rootHash) {
		return failResult(r)
	}
	return okResult(r)
}

// CalendarAuthRecordMissingRule returns OK if the signature does not contain a calendar authentication record,
// otherwise NA.
type CalendarAuthRecordMissingRule struct{}

func (r CalendarAuthRecordMissingRule) String() string { return getName(r) }
func (r CalendarAuthRecordMissingRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.signature.calAuthRec == nil {
		return okResult(r)
	}
	return naResult(r, "Calendar authentication record is present.")
}

func authRecPublication(sig *Signature) (time.Time, *hash.DataHash, error) {
	if sig.calAuthRec == nil {
		return time.Time{}, nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Missing calendar authentication record.")
	}
	pubData, err := sig.calAuthRec.PublicationData()
	if err != nil {
		return time.Time{}, nil, err
	}
	return publicationValues(pubData)
}

// CalendarAuthRecordAggregationTimeVerificationRule verifies that the calendar authentication record publication
// time equals to the calendar hash chain publication time.
// Returns OK or FAIL(INT-06).
type CalendarAuthRecordAggregationTimeVerificationRule struct{}

func (r CalendarAuthRecordAggregationTimeVerificationRule) errCode() reserr.Code { return reserr.Int06 }
func (r CalendarAuthRecordAggregationTimeVerificationRule) step() verify.Step {
	return verify.StepCalChainWithCalAuthRec
}
func (r CalendarAuthRecordAggregationTimeVerificationRule) String() string { return getName(r) }
func (r CalendarAuthRecordAggregationTimeVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	calChain, res, err := signatureCalendar(r, verCtx)
	if calChain == nil {
		return res, err
	}

	recTime, _, err := authRecPublication(verCtx.signature)
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar authentication record data.")
	}
	calTime, err := calChain.PublicationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar hash chain publication time.")
	}
	if !recTime.Equal(calTime) {
		return failResult(r)
	}
	return okResult(r)
}

// CalendarAuthRecordAggregationHashVerificationRule verifies that the calendar authentication record published hash
// equals to the calendar hash chain root hash.
// Returns OK or FAIL(INT-08).
type CalendarAuthRecordAggregationHashVerificationRule struct{}

func (r CalendarAuthRecordAggregationHashVerificationRule) errCode() reserr.Code { return reserr.Int08 }
func (r CalendarAuthRecordAggregationHashVerificationRule) step() verify.Step {
	return verify.StepCalChainWithCalAuthRec
}
func (r CalendarAuthRecordAggregationHashVerificationRule) String() string { return getName(r) }
func (r CalendarAuthRecordAggregationHashVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	calChain, res, err := signatureCalendar(r, verCtx)
	if calChain == nil {
		return res, err
	}

	_, recHash, err := authRecPublication(verCtx.signature)
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar authentication record data.")
	}
	rootHash, err := calChain.Aggregate()
	if err != nil {
		return ruleErr(r, err, "Failed to aggregate calendar hash chain.")
	}
	if !recHash.Equal(rootHash) {
		return failResult(r)
	}
	return okResult(r)
}

/*
----------------------------------------
Calendar-based verification rules
----------------------------------------
*/

// extendedCalendar returns the calendar hash chain extended to the given time. In case the calendar is not available,
// the NA result is returned instead.
func extendedCalendar(r Rule, verCtx *VerificationContext, to time.Time) (*pdu.CalendarChain, *RuleResult) {
	calChain, err := verCtx.extendedCalendar(to)
	if err != nil {
		res, _ := inconclusive(r, err)
		return nil, res
	}
	return calChain, nil
}

// calendarTarget returns the time the signature is extended to in calendar-based verification.
func calendarTarget(sig *Signature) (time.Time, error) {
	if sig.calChain == nil {
		return time.Time{}, nil
	}
	return sig.calChain.PublicationTime()
}

// ExtendedCalendarChainInputHashVerificationRule verifies that the input hash of the calendar hash chain received
// from the calendar provider equals to the aggregation hash chain output hash.
// Returns OK or FAIL(CAL-02).
type ExtendedCalendarChainInputHashVerificationRule struct{}

func (r ExtendedCalendarChainInputHashVerificationRule) errCode() reserr.Code { return reserr.Cal02 }
func (r ExtendedCalendarChainInputHashVerificationRule) step() verify.Step    { return verify.StepCalChainOnline }
func (r ExtendedCalendarChainInputHashVerificationRule) String() string       { return getName(r) }
func (r ExtendedCalendarChainInputHashVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	to, err := calendarTarget(verCtx.signature)
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar hash chain publication time.")
	}
	extCal, res := extendedCalendar(r, verCtx, to)
	if extCal == nil {
		return res, nil
	}
	outputHash, err := verCtx.aggregationOutputHash()
	if err != nil {
		return ruleErr(r, err, "Failed to aggregate aggregation hash chains.")
	}
	inputHash, err := extCal.InputHash()
	if err != nil {
		return ruleErr(r, err, "Failed to get extended calendar hash chain input hash.")
	}
	if !outputHash.Equal(inputHash) {
		return failResult(r)
	}
	return okResult(r)
}

// ExtendedCalendarChainAggregationTimeVerificationRule verifies that the aggregation time of the calendar hash chain
// received from the calendar provider equals to the signing time.
// Returns OK or FAIL(CAL-03).
type ExtendedCalendarChainAggregationTimeVerificationRule struct{}

func (r ExtendedCalendarChainAggregationTimeVerificationRule) errCode() reserr.Code { return reserr.Cal03 }
func (r ExtendedCalendarChainAggregationTimeVerificationRule) step() verify.Step {
	return verify.StepCalChainOnline
}
func (r ExtendedCalendarChainAggregationTimeVerificationRule) String() string { return getName(r) }
func (r ExtendedCalendarChainAggregationTimeVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	to, err := calendarTarget(verCtx.signature)
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar hash chain publication time.")
	}
	extCal, res := extendedCalendar(r, verCtx, to)
	if extCal == nil {
		return res, nil
	}
	extTime, err := extCal.AggregationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get extended calendar hash chain aggregation time.")
	}
	sigTime, err := verCtx.signature.AggregationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get signing time.")
	}
	if !extTime.Equal(sigTime) {
		return failResult(r)
	}
	return okResult(r)
}

// ExtendedCalendarChainRootHashVerificationRule verifies that the root hash of the calendar hash chain received from
// the calendar provider equals to the signature calendar hash chain root hash.
// Returns OK or FAIL(CAL-01).
type ExtendedCalendarChainRootHashVerificationRule struct{}

func (r ExtendedCalendarChainRootHashVerificationRule) errCode() reserr.Code { return reserr.Cal01 }
func (r ExtendedCalendarChainRootHashVerificationRule) step() verify.Step    { return verify.StepCalChainOnline }
func (r ExtendedCalendarChainRootHashVerificationRule) String() string       { return getName(r) }
func (r ExtendedCalendarChainRootHashVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	calChain, res, err := signatureCalendar(r, verCtx)
	if calChain == nil {
		return res, err
	}

	to, err := calChain.PublicationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar hash chain publication time.")
	}
	extCal, res := extendedCalendar(r, verCtx, to)
	if extCal == nil {
		return res, nil
	}
	extRoot, err := extCal.Aggregate()
	if err != nil {
		return ruleErr(r, err, "Failed to aggregate extended calendar hash chain.")
	}
	sigRoot, err := calChain.Aggregate()
	if err != nil {
		return ruleErr(r, err, "Failed to aggregate calendar hash chain.")
	}
	if !extRoot.Equal(sigRoot) {
		return failResult(r)
	}
	return okResult(r)
}

// ExtendedCalendarChainRightLinksMatchVerificationRule verifies that the right links of the calendar hash chain
// received from the calendar provider are equal to the signature calendar hash chain right links.
// Returns OK or FAIL(CAL-04).
type ExtendedCalendarChainRightLinksMatchVerificationRule struct{}

func (r ExtendedCalendarChainRightLinksMatchVerificationRule) errCode() reserr.Code { return reserr.Cal04 }
func (r ExtendedCalendarChainRightLinksMatchVerificationRule) step() verify.Step {
	return verify.StepCalChainOnline
}
func (r ExtendedCalendarChainRightLinksMatchVerificationRule) String() string { return getName(r) }
func (r ExtendedCalendarChainRightLinksMatchVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	calChain, res, err := signatureCalendar(r, verCtx)
	if calChain == nil {
		return res, err
	}

	to, err := calChain.PublicationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar hash chain publication time.")
	}
	extCal, res := extendedCalendar(r, verCtx, to)
	if extCal == nil {
		return res, nil
	}
	if err := calChain.RightLinkMatch(extCal); err != nil {
		return newRuleResult(r, result.FAIL).setErrCode(r.errCode()).setStatusErr(err), nil
	}
	return okResult(r)
}

/*
----------------------------------------
Key-based verification rules
----------------------------------------
*/

// CalendarHashChainExistenceRule verifies that the signature contains a calendar hash chain.
// Returns OK or NA(GEN-02).
type CalendarHashChainExistenceRule struct{}

func (r CalendarHashChainExistenceRule) String() string { return getName(r) }
func (r CalendarHashChainExistenceRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.signature.calChain == nil {
		return naResult(r, "Calendar hash chain is missing.")
	}
	return okResult(r)
}

// CalendarAuthRecordExistenceRule verifies that the signature contains a calendar authentication record.
// Returns OK or NA(GEN-02).
type CalendarAuthRecordExistenceRule struct{}

func (r CalendarAuthRecordExistenceRule) String() string { return getName(r) }
func (r CalendarAuthRecordExistenceRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.signature.calAuthRec == nil {
		return naResult(r, "Calendar authentication record is missing.")
	}
	return okResult(r)
}

// PublicationsFileSignatureVerificationRule verifies the PKI signature of the publications file. A user provided
// publications file is trusted as is, unless a PKI verifier is configured.
// Returns OK or NA(GEN-02).
type PublicationsFileSignatureVerificationRule struct{}

func (r PublicationsFileSignatureVerificationRule) step() verify.Step { return verify.StepPubFileSignature }
func (r PublicationsFileSignatureVerificationRule) String() string    { return getName(r) }
func (r PublicationsFileSignatureVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	pubFile, err := verCtx.publicationsFile()
	if err != nil {
		return inconclusive(r, err)
	}
	v, err := verCtx.pkiVerifier()
	if err != nil {
		if verCtx.userPublicationsFile != nil {
			log.Debug("Trusting user provided publications file.")
			return okResult(r)
		}
		return inconclusive(r, err)
	}
	if err := pubFile.Verify(v); err != nil {
		return inconclusive(r, err)
	}
	return okResult(r)
}

// authRecCertificate returns the publications file certificate record referenced by the calendar authentication
// record, or nil if not found.
func authRecCertificate(verCtx *VerificationContext) (*publications.File, *pdu.CertificateRecord, []byte, error) {
	if verCtx.signature.calAuthRec == nil {
		return nil, nil, nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Missing calendar authentication record.")
	}
	sigData, err := verCtx.signature.calAuthRec.SignatureData()
	if err != nil {
		return nil, nil, nil, err
	}
	certID, err := sigData.CertID()
	if err != nil {
		return nil, nil, nil, err
	}
	pubFile, err := verCtx.publicationsFile()
	if err != nil {
		return nil, nil, nil, err
	}
	certRec, err := pubFile.Certificate(certID)
	if err != nil {
		return nil, nil, nil, err
	}
	return pubFile, certRec, certID, nil
}

// CertificateExistenceRule verifies that the certificate referenced by the calendar authentication record is
// present in the publications file.
// Returns OK or FAIL(KEY-01).
type CertificateExistenceRule struct{}

func (r CertificateExistenceRule) errCode() reserr.Code { return reserr.Key01 }
func (r CertificateExistenceRule) step() verify.Step    { return verify.StepCalAuthRecWithSignature }
func (r CertificateExistenceRule) String() string       { return getName(r) }
func (r CertificateExistenceRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	_, certRec, certID, err := authRecCertificate(verCtx)
	if err != nil {
		return inconclusive(r, err)
	}
	if certRec == nil {
		log.Info(fmt.Sprintf("Certificate not found: %x.", certID))
		return failResult(r)
	}
	return okResult(r)
}

// CertificateValidityRule verifies that the certificate was valid at the calendar authentication record
// publication time.
// Returns OK or FAIL(KEY-03).
type CertificateValidityRule struct{}

func (r CertificateValidityRule) errCode() reserr.Code { return reserr.Key03 }
func (r CertificateValidityRule) step() verify.Step    { return verify.StepCalAuthRecWithSignature }
func (r CertificateValidityRule) String() string       { return getName(r) }
func (r CertificateValidityRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	_, certRec, _, err := authRecCertificate(verCtx)
	if err != nil {
		return inconclusive(r, err)
	}
	if certRec == nil {
		return ruleErr(r, errors.New(errors.KsiInvalidStateError), "Missing certificate.")
	}
	pubTime, _, err := authRecPublication(verCtx.signature)
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar authentication record data.")
	}
	valid, err := certRec.IsValid(pubTime)
	if err != nil {
		return newRuleResult(r, result.FAIL).setErrCode(r.errCode()).setStatusErr(err), nil
	}
	if !valid {
		return failResult(r)
	}
	return okResult(r)
}

// CalendarAuthRecordSignatureVerificationRule verifies the calendar authentication record PKI signature.
// Returns OK or FAIL(KEY-02).
type CalendarAuthRecordSignatureVerificationRule struct{}

func (r CalendarAuthRecordSignatureVerificationRule) errCode() reserr.Code { return reserr.Key02 }
func (r CalendarAuthRecordSignatureVerificationRule) step() verify.Step {
	return verify.StepCalAuthRecWithSignature
}
func (r CalendarAuthRecordSignatureVerificationRule) String() string { return getName(r) }
func (r CalendarAuthRecordSignatureVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	pubFile, certRec, certID, err := authRecCertificate(verCtx)
	if err != nil {
		return inconclusive(r, err)
	}
	if certRec == nil {
		return ruleErr(r, errors.New(errors.KsiInvalidStateError), "Missing certificate.")
	}
	v, err := verCtx.pkiVerifier()
	if err != nil {
		if verCtx.userPublicationsFile == nil {
			return inconclusive(r, err)
		}
		// Certificates of a user provided publications file are trusted as is.
		if v, err = pki.NewVerifier(); err != nil {
			return ruleErr(r, err, "Failed to create PKI verifier.")
		}
	}

	rec := verCtx.signature.calAuthRec
	sigData, err := rec.SignatureData()
	if err != nil {
		return ruleErr(r, err, "Failed to get calendar authentication record signature data.")
	}
	sigType, err := sigData.SignatureType()
	if err != nil {
		return ruleErr(r, err, "Failed to get signature type.")
	}
	sigValue, err := sigData.SignatureValue()
	if err != nil {
		return ruleErr(r, err, "Failed to get signature value.")
	}
	signed, err := rec.SignedBytes()
	if err != nil {
		return ruleErr(r, err, "Failed to get signed data.")
	}
	cert, err := pubFile.CertificateX509(certID)
	if err != nil {
		return newRuleResult(r, result.FAIL).setErrCode(r.errCode()).setStatusErr(err), nil
	}
	if err := v.VerifySignature(cert, sigType, signed, sigValue); err != nil {
		return newRuleResult(r, result.FAIL).setErrCode(r.errCode()).setStatusErr(err), nil
	}
	return okResult(r)
}

/*
----------------------------------------
Publication-based verification rules
----------------------------------------
*/

// PublicationRecordExistenceRule verifies that the signature contains a publication record.
// Returns OK or NA(GEN-02).
type PublicationRecordExistenceRule struct{}

func (r PublicationRecordExistenceRule) String() string { return getName(r) }
func (r PublicationRecordExistenceRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.signature.publication == nil {
		return naResult(r, "Publication record is missing.")
	}
	return okResult(r)
}

// PublicationsFileContainsSignaturePublicationRule verifies that the publications file contains a publication with
// the signature publication record time. The publication is selected for the following rules.
// Returns OK or NA(GEN-02).
type PublicationsFileContainsSignaturePublicationRule struct{}

func (r PublicationsFileContainsSignaturePublicationRule) String() string { return getName(r) }
func (r PublicationsFileContainsSignaturePublicationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	pubTime, _, err := signaturePublication(verCtx.signature)
	if err != nil {
		return ruleErr(r, err, "Failed to get publication record data.")
	}
	return selectFilePublication(r, verCtx, publications.PubRecSearchByTime(pubTime))
}

// PublicationsFileContainsSuitablePublicationRule verifies that the publications file contains a publication
// created after the signing time. The nearest one is selected for the following rules.
// Returns OK or NA(GEN-02).
type PublicationsFileContainsSuitablePublicationRule struct{}

func (r PublicationsFileContainsSuitablePublicationRule) String() string { return getName(r) }
func (r PublicationsFileContainsSuitablePublicationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	sigTime, err := verCtx.signature.AggregationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get signing time.")
	}
	return selectFilePublication(r, verCtx, publications.PubRecSearchNearest(sigTime))
}

func selectFilePublication(r Rule, verCtx *VerificationContext, by publications.PubRecSearchBy) (*RuleResult, error) {
	pubFile, err := verCtx.publicationsFile()
	if err != nil {
		return inconclusive(r, err)
	}
	pubRec, err := pubFile.PublicationRec(by)
	if err != nil {
		return ruleErr(r, err, "Failed to search publications file.")
	}
	if pubRec == nil {
		return naResult(r, "Suitable publication not found in publications file.")
	}
	pubData, err := pubRec.PublicationData()
	if err != nil {
		return ruleErr(r, err, "Failed to get publication data.")
	}
	verCtx.temp.publication = pubData
	return okResult(r)
}

// PublicationsFilePublicationHashMatchesRule verifies that the signature publication record published hash equals
// to the one in the publications file.
// Returns OK or FAIL(PUB-05).
type PublicationsFilePublicationHashMatchesRule struct{}

func (r PublicationsFilePublicationHashMatchesRule) errCode() reserr.Code { return reserr.Pub05 }
func (r PublicationsFilePublicationHashMatchesRule) step() verify.Step {
	return verify.StepPublicationWithPubFile
}
func (r PublicationsFilePublicationHashMatchesRule) String() string { return getName(r) }
func (r PublicationsFilePublicationHashMatchesRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	return publicationHashMatches(r, verCtx)
}

func publicationHashMatches(r codedRule, verCtx *VerificationContext) (*RuleResult, error) {
	if verCtx.temp.publication == nil {
		return ruleErr(r, errors.New(errors.KsiInvalidStateError), "Publication is not selected.")
	}
	_, sigHash, err := signaturePublication(verCtx.signature)
	if err != nil {
		return ruleErr(r, err, "Failed to get publication record data.")
	}
	_, pubHash, err := publicationValues(verCtx.temp.publication)
	if err != nil {
		return ruleErr(r, err, "Failed to get publication data.")
	}
	if !sigHash.Equal(pubHash) {
		log.Info("Published hash mismatch.")
		log.Info("... signature  : ", sigHash)
		log.Info("... publication: ", pubHash)
		return failResult(r)
	}
	return okResult(r)
}

// UserProvidedPublicationExistenceRule verifies that the user publication has been provided. The publication is
// selected for the following rules.
// Returns OK or NA(GEN-02).
type UserProvidedPublicationExistenceRule struct{}

func (r UserProvidedPublicationExistenceRule) String() string { return getName(r) }
func (r UserProvidedPublicationExistenceRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.userPublication == nil {
		return naResult(r, "User publication is not provided.")
	}
	verCtx.temp.publication = verCtx.userPublication
	return okResult(r)
}

// UserProvidedPublicationTimeMatchesRecordRule verifies that the user publication time equals to the signature
// publication record time.
// Returns OK or NA(GEN-02).
type UserProvidedPublicationTimeMatchesRecordRule struct{}

func (r UserProvidedPublicationTimeMatchesRecordRule) String() string { return getName(r) }
func (r UserProvidedPublicationTimeMatchesRecordRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.userPublication == nil {
		return ruleErr(r, errors.New(errors.KsiInvalidStateError), "Missing user publication.")
	}

	sigTime, _, err := signaturePublication(verCtx.signature)
	if err != nil {
		return ruleErr(r, err, "Failed to get publication record data.")
	}
	userTime, _, err := publicationValues(verCtx.userPublication)
	if err != nil {
		return ruleErr(r, err, "Failed to get user publication data.")
	}
	if !sigTime.Equal(userTime) {
		return naResult(r, "User publication time does not match the publication record time.")
	}
	return okResult(r)
}

// UserProvidedPublicationHashMatchesRule verifies that the user publication hash equals to the signature publication
// record published hash.
// Returns OK or FAIL(PUB-04).
type UserProvidedPublicationHashMatchesRule struct{}

func (r UserProvidedPublicationHashMatchesRule) errCode() reserr.Code { return reserr.Pub04 }
func (r UserProvidedPublicationHashMatchesRule) step() verify.Step {
	return verify.StepCalChainWithPublication
}
func (r UserProvidedPublicationHashMatchesRule) String() string { return getName(r) }
func (r UserProvidedPublicationHashMatchesRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	return publicationHashMatches(r, verCtx)
}

// UserProvidedPublicationCreationTimeVerificationRule verifies that the user publication was created after the
// signing time.
// Returns OK or NA(GEN-02).
type UserProvidedPublicationCreationTimeVerificationRule struct{}

func (r UserProvidedPublicationCreationTimeVerificationRule) String() string { return getName(r) }
func (r UserProvidedPublicationCreationTimeVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if verCtx.userPublication == nil {
		return ruleErr(r, errors.New(errors.KsiInvalidStateError), "Missing user publication.")
	}

	userTime, _, err := publicationValues(verCtx.userPublication)
	if err != nil {
		return ruleErr(r, err, "Failed to get user publication data.")
	}
	sigTime, err := verCtx.signature.AggregationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get signing time.")
	}
	if !userTime.After(sigTime) {
		return naResult(r, "User publication is created before the signing time.")
	}
	return okResult(r)
}

// ExtendingPermittedVerificationRule verifies that extending is permitted.
// Returns OK or NA(GEN-02).
type ExtendingPermittedVerificationRule struct{}

func (r ExtendingPermittedVerificationRule) String() string { return getName(r) }
func (r ExtendingPermittedVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}
	if !verCtx.extendingPerm {
		return naResult(r, "Extending is not permitted.")
	}
	return okResult(r)
}

// extendedToPublication returns the selected publication and the signature calendar hash chain extended to it.
func extendedToPublication(r Rule, verCtx *VerificationContext) (*pdu.CalendarChain, time.Time, *hash.DataHash,
	*RuleResult, error) {

	if verCtx.temp.publication == nil {
		res, err := ruleErr(r, errors.New(errors.KsiInvalidStateError), "Publication is not selected.")
		return nil, time.Time{}, nil, res, err
	}
	pubTime, pubHash, err := publicationValues(verCtx.temp.publication)
	if err != nil {
		res, err := ruleErr(r, err, "Failed to get publication data.")
		return nil, time.Time{}, nil, res, err
	}
	extCal, res := extendedCalendar(r, verCtx, pubTime)
	if extCal == nil {
		return nil, time.Time{}, nil, res, nil
	}
	return extCal, pubTime, pubHash, nil, nil
}

// ExtendedToPublicationHashVerificationRule verifies that the root hash of the calendar hash chain extended to the
// selected publication equals to the published hash.
// Returns OK or FAIL(PUB-01).
type ExtendedToPublicationHashVerificationRule struct{}

func (r ExtendedToPublicationHashVerificationRule) errCode() reserr.Code { return reserr.Pub01 }
func (r ExtendedToPublicationHashVerificationRule) step() verify.Step {
	return verify.StepCalChainWithPublication
}
func (r ExtendedToPublicationHashVerificationRule) String() string { return getName(r) }
func (r ExtendedToPublicationHashVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	extCal, _, pubHash, res, err := extendedToPublication(r, verCtx)
	if extCal == nil {
		return res, err
	}
	rootHash, err := extCal.Aggregate()
	if err != nil {
		return ruleErr(r, err, "Failed to aggregate extended calendar hash chain.")
	}
	if !rootHash.Equal(pubHash) {
		return failResult(r)
	}
	return okResult(r)
}

// ExtendedToPublicationTimeVerificationRule verifies that the calendar hash chain extended to the selected
// publication has the publication time and the signing time as aggregation time.
// Returns OK or FAIL(PUB-02).
type ExtendedToPublicationTimeVerificationRule struct{}

func (r ExtendedToPublicationTimeVerificationRule) errCode() reserr.Code { return reserr.Pub02 }
func (r ExtendedToPublicationTimeVerificationRule) step() verify.Step {
	return verify.StepCalChainWithPublication
}
func (r ExtendedToPublicationTimeVerificationRule) String() string { return getName(r) }
func (r ExtendedToPublicationTimeVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	extCal, pubTime, _, res, err := extendedToPublication(r, verCtx)
	if extCal == nil {
		return res, err
	}
	extPubTime, err := extCal.PublicationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get extended calendar hash chain publication time.")
	}
	extAggrTime, err := extCal.AggregationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get extended calendar hash chain aggregation time.")
	}
	sigTime, err := verCtx.signature.AggregationTime()
	if err != nil {
		return ruleErr(r, err, "Failed to get signing time.")
	}
	if !extPubTime.Equal(pubTime) || !extAggrTime.Equal(sigTime) {
		return failResult(r)
	}
	return okResult(r)
}

// ExtendedToPublicationInputHashVerificationRule verifies that the input hash of the calendar hash chain extended to
// the selected publication equals to the aggregation hash chain output hash.
// Returns OK or FAIL(PUB-03).
type ExtendedToPublicationInputHashVerificationRule struct{}

func (r ExtendedToPublicationInputHashVerificationRule) errCode() reserr.Code { return reserr.Pub03 }
func (r ExtendedToPublicationInputHashVerificationRule) step() verify.Step {
	return verify.StepCalChainWithPublication
}
func (r ExtendedToPublicationInputHashVerificationRule) String() string { return getName(r) }
func (r ExtendedToPublicationInputHashVerificationRule) Verify(verCtx *VerificationContext) (*RuleResult, error) {
	if err := checkContext(verCtx); err != nil {
		return invalidContext(r)
	}

	extCal, _, _, res, err := extendedToPublication(r, verCtx)
	if extCal == nil {
		return res, err
	}
	inputHash, err := extCal.InputHash()
	if err != nil {
		return ruleErr(r, err, "Failed to get extended calendar hash chain input hash.")
	}
	outputHash, err := verCtx.aggregationOutputHash()
	if err != nil {
		return ruleErr(r, err, "Failed to aggregate aggregation hash chains.")
	}
	if !inputHash.Equal(outputHash) {
		return failResult(r)
	}
	return okResult(r)
}
