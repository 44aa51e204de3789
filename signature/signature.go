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
// Package signature implements decoding and encoding of KSI signatures and signature verification handling.
//
// At the highest level of abstraction, a KSI signature consists of a hash chain linking the signed document
// to the root hash value of the aggregation tree, followed by another hash chain linking the root hash value of the
// aggregation tree to the published trust anchor.
package signature

import (
	"io"
	"os"
	"time"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
	"github.com/guardtime/ksicore/templates"
	"github.com/guardtime/ksicore/tlv"
)

const tagSignature = 0x800

var sigTemplate = tlv.MustTemplate("Signature", tagSignature, 0,
	tlv.CompositeList(0x801, tlv.Mandatory, "aggregation chain", pdu.AggregationChainTemplate(),
		func(s *Signature) *[]*pdu.AggregationChain { return &s.aggrChainList }),
	tlv.Composite(0x802, 0, "calendar chain", pdu.CalendarChainTemplate(),
		func(s *Signature) **pdu.CalendarChain { return &s.calChain }),
	tlv.Composite(0x803, tlv.MostOneG1, "publication record", pdu.PublicationRecTemplate(),
		func(s *Signature) **pdu.PublicationRec { return &s.publication }),
	tlv.Unprocessed(0x804, 0, "aggregation auth record", func(s *Signature) **tlv.Tlv { return &s.aggrAuthRec }),
	tlv.Composite(0x805, tlv.MostOneG1, "calendar auth record", pdu.CalendarAuthRecTemplate(),
		func(s *Signature) **pdu.CalendarAuthRec { return &s.calAuthRec }),
	tlv.Composite(0x806, 0, "rfc3161 record", pdu.RFC3161Template(),
		func(s *Signature) **pdu.RFC3161 { return &s.rfc3161 }),
)

func init() {
	templates.MustRegister(sigTemplate)
}

// Signature is the KSI signature.
type Signature struct {
	// Flag for disabling signature verification during construction.
	noVerify bool
	// Signature verification result.
	verificationResult *VerificationResult

	// KSI elements.
	aggrChainList []*pdu.AggregationChain
	calChain      *pdu.CalendarChain
	publication   *pdu.PublicationRec
	aggrAuthRec   *tlv.Tlv
	calAuthRec    *pdu.CalendarAuthRec
	rfc3161       *pdu.RFC3161
}

// New returns a new signature which was constructed based on the provided builder option. Unless disabled with
// BuildNoVerify, the signature is verified with InternalPolicy.
func New(builder Builder) (*Signature, error) {
	if builder == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var tmp signature
	if err := builder(&tmp); err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to create KSI signature.")
	}
	if tmp.obj == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("KSI signature was not constructed.")
	}
	pdu.AggregationChainList(tmp.obj.aggrChainList).Sort()

	if !tmp.noVerify {
		if err := tmp.obj.Verify(InternalPolicy); err != nil {
			return nil, err
		}
	}
	return tmp.obj, nil
}

type (
	// Builder is a signature initializer functional option.
	Builder func(*signature) error

	signature struct {
		obj      *Signature
		noVerify bool
	}
)

// BuildNoVerify disables signature verification during initialization process.
// Should be used with care!
func BuildNoVerify(builder Builder) Builder {
	return func(s *signature) error {
		if builder == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}
		if err := builder(s); err != nil {
			return err
		}

		log.Info("Using no-verify initializer.")
		s.noVerify = true
		return nil
	}
}

// BuildFromBytes initializes the signature from its binary TLV representation.
func BuildFromBytes(raw []byte) Builder {
	return func(s *signature) error {
		if len(raw) == 0 {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}
		if !tlv.IsConsistent(raw) {
			return errors.New(errors.KsiInvalidFormatError).AppendMessage("Signature is not a single TLV element.")
		}

		obj, err := tlv.Parse[Signature](raw, sigTemplate)
		if err != nil {
			return errors.KsiErr(err).AppendMessage("Failed to parse KSI signature.")
		}
		s.obj = obj
		return nil
	}
}

// BuildFromStream initializes the signature from the first TLV element read from r.
func BuildFromStream(r io.Reader) Builder {
	return func(s *signature) error {
		if r == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}

		t, err := tlv.NewTlv(tlv.ConstructFromReader(r))
		if err != nil {
			return errors.KsiErr(err).AppendMessage("Failed to read KSI signature.")
		}
		obj, err := tlv.ParseTlv[Signature](t, sigTemplate)
		if err != nil {
			return errors.KsiErr(err).AppendMessage("Failed to parse KSI signature.")
		}
		s.obj = obj
		return nil
	}
}

// BuildFromFile initializes the signature from the file.
func BuildFromFile(path string) Builder {
	return func(s *signature) error {
		if path == "" {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		f, err := os.Open(path)
		if err != nil {
			return errors.New(errors.KsiIoError).SetExtError(err).AppendMessage("Failed to open signature file.")
		}
		defer func() {
			if cErr := f.Close(); cErr != nil {
				log.Error("Failed to close signature file: ", cErr)
			}
		}()
		return BuildFromStream(f)(s)
	}
}

// BuildFromAggregationResp initializes the signature from KSI aggregation response.
// Parameter level is the level of the aggregation tree node the request hash comes from (0 if the request hash is a
// direct hash of client data). The level is added to the level correction of the first aggregation chain link.
func BuildFromAggregationResp(resp *pdu.AggregatorResp, level byte) Builder {
	return func(s *signature) error {
		if resp == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}

		respClone, err := resp.Clone()
		if err != nil {
			return err
		}
		aggrResp, err := respClone.AggregationResp()
		if err != nil {
			return err
		}
		if aggrResp == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing aggregation response.")
		}
		if err := aggrResp.Err(); err != nil {
			return err
		}

		chains, err := aggrResp.AggregationChainList()
		if err != nil {
			return err
		}
		if len(chains) == 0 {
			return errors.New(errors.KsiInvalidFormatError).AppendMessage("Missing aggregation hash chains.")
		}
		chains.Sort()
		if level != 0 {
			acb, err := pdu.NewAggregationChainBuilder(pdu.BuildFromAggregationChain(chains[0]))
			if err != nil {
				return err
			}
			if err := acb.AdjustLevelCorrection(pdu.LevelAdd, level); err != nil {
				return errors.KsiErr(err).AppendMessage("Failed to build signature from aggregation response.")
			}
			if chains[0], err = acb.Build(); err != nil {
				return err
			}
		}

		obj := &Signature{aggrChainList: chains}
		if obj.calChain, err = aggrResp.CalendarChain(); err != nil {
			return err
		}
		if obj.publication, err = aggrResp.PublicationRec(); err != nil {
			return err
		}
		if obj.aggrAuthRec, err = aggrResp.AggregationAuthRec(); err != nil {
			return err
		}
		if obj.calAuthRec, err = aggrResp.CalendarAuthRec(); err != nil {
			return err
		}
		if obj.rfc3161, err = aggrResp.RFC3161(); err != nil {
			return err
		}
		s.obj = obj
		return nil
	}
}

// BuildFromExtendingResp initializes the signature from KSI extending response. The new signature is based on a copy
// of sig with the calendar hash chain replaced by the extended one.
// The publication record pubRec is optional. If provided, it must match the extended calendar hash chain.
// The calendar authentication record is removed. The input parameters are not modified.
func BuildFromExtendingResp(resp *pdu.ExtenderResp, sig *Signature, pubRec *pdu.PublicationRec) Builder {
	return func(s *signature) error {
		if resp == nil || sig == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}

		respClone, err := resp.Clone()
		if err != nil {
			return err
		}
		extResp, err := respClone.ExtendingResp()
		if err != nil {
			return err
		}
		if extResp == nil {
			return errors.New(errors.KsiInvalidStateError).AppendMessage("Inconsistent extending response.")
		}
		if err := extResp.Err(); err != nil {
			return err
		}
		extCal, err := extResp.CalendarChain()
		if err != nil {
			return err
		}
		if extCal == nil {
			return errors.New(errors.KsiInvalidFormatError).AppendMessage("Missing calendar hash chain.")
		}
		if sig.calChain != nil {
			if err := extCal.VerifyCompatibility(sig.calChain); err != nil {
				return errors.KsiErr(err).AppendMessage("Incompatible calendar hash chain.")
			}
		}

		var tmpPubRec *pdu.PublicationRec
		if pubRec != nil {
			if err := publicationMatchesCalendar(pubRec, extCal); err != nil {
				return err
			}
			if tmpPubRec, err = pubRec.Clone(); err != nil {
				return err
			}
		}

		if s.obj, err = sig.Clone(); err != nil {
			return err
		}
		s.obj.calAuthRec = nil
		s.obj.publication = tmpPubRec
		s.obj.calChain = extCal

		log.Debug("Extended signature: ", s.obj)
		return nil
	}
}

func publicationMatchesCalendar(pubRec *pdu.PublicationRec, cal *pdu.CalendarChain) error {
	pubData, err := pubRec.PublicationData()
	if err != nil {
		return err
	}
	pubTime, err := pubData.PublicationTime()
	if err != nil {
		return err
	}
	pubHash, err := pubData.PublishedHash()
	if err != nil {
		return err
	}
	calTime, err := cal.PublicationTime()
	if err != nil {
		return err
	}
	calRoot, err := cal.Aggregate()
	if err != nil {
		return err
	}
	if !calTime.Equal(pubTime) || !calRoot.Equal(pubHash) {
		return errors.New(errors.KsiInvalidFormatError).
			AppendMessage("Publication record is not compatible with the calendar hash chain.")
	}
	return nil
}

// BuildWithAggrChain initializes the signature from a copy of sig with aggrChain prepended to the aggregation hash
// chain list. The root hash of aggrChain must equal the document hash of sig.
// The provided signature is not modified.
func BuildWithAggrChain(sig *Signature, aggrChain *pdu.AggregationChain) Builder {
	return func(s *signature) error {
		if sig == nil || aggrChain == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}

		if sig.rfc3161 != nil {
			return errors.New(errors.KsiInvalidStateError).
				AppendMessage("Aggregation hash chain can not be prepended to a signature with RFC3161 record.")
		}

		rootHsh, rootLvl, err := aggrChain.Aggregate(0)
		if err != nil {
			return err
		}
		docHsh, err := sig.DocumentHash()
		if err != nil {
			return err
		}
		if !rootHsh.Equal(docHsh) {
			return errors.New(errors.KsiInvalidFormatError).AppendMessage("Root hash mismatch.")
		}

		if s.obj, err = sig.Clone(); err != nil {
			return err
		}
		first := s.obj.aggrChainList[0]

		aggrBuild, err := pdu.NewAggregationChainBuilder(pdu.BuildFromAggregationChain(aggrChain))
		if err != nil {
			return err
		}
		aggrTime, err := first.AggregationTime()
		if err != nil {
			return err
		}
		if err := aggrBuild.SetAggregationTime(aggrTime); err != nil {
			return err
		}
		index, err := first.ChainIndex()
		if err != nil {
			return errors.KsiErr(err).AppendMessage("Failed to extract aggregation hash chain indices.")
		}
		if err := aggrBuild.PrependChainIndex(index); err != nil {
			return err
		}

		// The levels below the prepended chain are now accounted for by its links.
		if rootLvl != 0 {
			acb, err := pdu.NewAggregationChainBuilder(pdu.BuildFromAggregationChain(first))
			if err != nil {
				return err
			}
			if err := acb.AdjustLevelCorrection(pdu.LevelSubtract, rootLvl); err != nil {
				return errors.KsiErr(err).AppendMessage("Failed to adjust the aggregation chain level.")
			}
			if s.obj.aggrChainList[0], err = acb.Build(); err != nil {
				return err
			}
		}

		prepended, err := aggrBuild.Build()
		if err != nil {
			return err
		}
		s.obj.aggrChainList = append([]*pdu.AggregationChain{prepended}, s.obj.aggrChainList...)

		log.Debug("Signature with aggregation chain: ", s.obj)
		return nil
	}
}

// Serialize returns a binary TLV representation of the KSI signature.
func (s *Signature) Serialize() ([]byte, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return tlv.Serialize(s, sigTemplate)
}

// Clone returns a deep copy of the KSI signature. The verification result is not copied.
func (s *Signature) Clone() (*Signature, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	tmp, err := tlv.DeepCopy(s, sigTemplate)
	if err != nil {
		log.Error("Failed to copy signature: ", err)
		return nil, err
	}
	return tmp, nil
}

// Verify verifies the signature with the policy. The verification parameters are provided with opts.
// Returns KsiVerificationFailure in case the verification result is not OK.
//
// See (Signature).VerificationResult() for reading the verification report.
func (s *Signature) Verify(policy Policy, opts ...VerCtxOption) error {
	if s == nil || policy == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	verCtx, err := NewVerificationContext(s, opts...)
	if err != nil {
		return err
	}
	if _, err = policy.Verify(verCtx); err != nil {
		return err
	}
	return verCtx.result.Error()
}

// VerificationResult returns the report of the latest verification.
func (s *Signature) VerificationResult() (*VerificationResult, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.verificationResult, nil
}

// DocumentHash returns the signed document hash. It is the input hash of the RFC3161 record if present, otherwise
// the input hash of the first aggregation hash chain.
func (s *Signature) DocumentHash() (*hash.DataHash, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if s.rfc3161 != nil {
		return s.rfc3161.InputHash()
	}
	if len(s.aggrChainList) == 0 {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing aggregation hash chain list.")
	}
	return s.aggrChainList[0].InputHash()
}

// AggregationTime returns the signing time, the aggregation time of the first aggregation hash chain.
func (s *Signature) AggregationTime() (time.Time, error) {
	if s == nil {
		return time.Time{}, errors.New(errors.KsiInvalidArgumentError)
	}
	if len(s.aggrChainList) == 0 {
		return time.Time{}, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Missing aggregation hash chain list.")
	}
	return s.aggrChainList[0].AggregationTime()
}

// PublicationTime returns the calendar hash chain publication time.
func (s *Signature) PublicationTime() (time.Time, error) {
	if s == nil {
		return time.Time{}, errors.New(errors.KsiInvalidArgumentError)
	}
	if s.calChain == nil {
		return time.Time{}, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing calendar hash chain.")
	}
	return s.calChain.PublicationTime()
}

// AggregationChainList returns the aggregation hash chains, ordered from the document towards the root.
func (s *Signature) AggregationChainList() (pdu.AggregationChainList, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if len(s.aggrChainList) == 0 {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing aggregation hash chain list.")
	}
	return s.aggrChainList, nil
}

// Identity returns the identities present in all aggregation hash chains, the upper-level aggregator first.
func (s *Signature) Identity() (pdu.IdentityList, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return pdu.AggregationChainList(s.aggrChainList).Identity()
}

// AggregationOutputHash aggregates the aggregation hash chain list and returns the root hash and level.
func (s *Signature) AggregationOutputHash() (*hash.DataHash, byte, error) {
	if s == nil {
		return nil, 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return pdu.AggregationChainList(s.aggrChainList).Aggregate(0)
}

// CalendarChain returns calendar hash chain if attached, otherwise nil.
func (s *Signature) CalendarChain() (*pdu.CalendarChain, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.calChain, nil
}

// Publication returns publication record if attached, otherwise nil.
func (s *Signature) Publication() (*pdu.PublicationRec, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.publication, nil
}

// CalendarAuthRec returns calendar hash chain authentication record if attached, otherwise nil.
func (s *Signature) CalendarAuthRec() (*pdu.CalendarAuthRec, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.calAuthRec, nil
}

// AggregationAuthRec returns the aggregation authentication record element as it appeared in the input, or nil.
func (s *Signature) AggregationAuthRec() (*tlv.Tlv, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.aggrAuthRec, nil
}

// RFC3161 returns the RFC3161 compatibility record, or nil if not present.
func (s *Signature) RFC3161() (*pdu.RFC3161, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.rfc3161, nil
}

// IsExtended reports whether the signature has a publication record.
func (s *Signature) IsExtended() (bool, error) {
	if s == nil {
		return false, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.publication != nil, nil
}
