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

// Package pdu defines the KSI data structures and provides their manipulation methods.
//
// Every structure is described by a TLV template (see templates.go), which drives both parsing and serialization.
// Aggregation and extension PDUs are supported in two wire versions, see Version.
package pdu

import (
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/tlv"
)

// Version is the PDU wire format version.
type Version byte

const (
	// VerUnknown is an invalid PDU version.
	VerUnknown Version = iota
	// V1 is the legacy PDU format. The request or response payload is wrapped into a common PDU element
	// (aggregation 0x200, extension 0x300), configuration and acknowledgment are carried inside the payload.
	V1
	// V2 is the current PDU format. Requests and responses use distinct PDU elements (0x220/0x221, 0x320/0x321),
	// configuration and acknowledgment are separate payloads.
	V2
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return "unknown"
	}
}

// Valid reports whether v is a supported PDU version.
func (v Version) Valid() bool {
	return v == V1 || v == V2
}

// AggregatorReq is an aggregation request PDU.
type AggregatorReq struct {
	version Version

	header  *Header
	aggrReq *AggrReq
	confReq *Config
	ackReq  *AggrAck
	mac     *hash.DataHash
}

// AggregatorResp is an aggregation response PDU.
type AggregatorResp struct {
	version Version

	header   *Header
	aggrResp *AggrResp
	aggrErr  *Error
	confResp *Config
	aggrAck  *AggrAck
	mac      *hash.DataHash

	raw []byte
}

// Header is the PDU header.
type Header struct {
	loginID *string
	instID  *uint64
	msgID   *uint64
}

// AggrReq is the aggregation request payload.
type AggrReq struct {
	id    *uint64
	hash  *hash.DataHash
	level *uint64
	// Legacy (V1) configuration request.
	config *Config
}

// AggrResp is the aggregation response payload.
type AggrResp struct {
	id       *uint64
	status   *uint64
	errorMsg *string

	// Legacy (V1) configuration and acknowledgment.
	config *Config
	ack    *AggrAck

	aggrChainList []*AggregationChain
	calChain      *CalendarChain
	pubRec        *PublicationRec
	aggrAuthRec   *tlv.Tlv
	calAuthRec    *CalendarAuthRec
	rfc3161       *RFC3161
}

// Config is the aggregator/extender configuration.
type Config struct {
	maxLevel   *uint64
	aggrAlgo   *uint64
	aggrPeriod *uint64
	maxReq     *uint64
	parentURI  []string
	calFirst   *uint64
	calLast    *uint64
}

// AggrAck is the aggregation request acknowledgment.
type AggrAck struct {
	reqTime    *uint64
	recvTime   *uint64
	ackTime    *uint64
	aggrDelay  *uint64
	aggrPeriod *uint64
	aggrDrift  *uint64
}

// Error is the error response payload.
type Error struct {
	status   *uint64
	errorMsg *string
}

// ExtenderReq is an extension request PDU.
type ExtenderReq struct {
	version Version

	header  *Header
	extReq  *ExtReq
	confReq *Config
	mac     *hash.DataHash
}

// ExtReq is the extension request payload.
type ExtReq struct {
	id       *uint64
	aggrTime *uint64
	pubTime  *uint64
}

// ExtenderResp is an extension response PDU.
type ExtenderResp struct {
	version Version

	header   *Header
	extResp  *ExtResp
	extErr   *Error
	confResp *Config
	mac      *hash.DataHash

	raw []byte
}

// ExtResp is the extension response payload.
type ExtResp struct {
	id       *uint64
	status   *uint64
	errorMsg *string
	calLast  *uint64
	calChain *CalendarChain
}

// AggregationChain is the aggregation hash chain. It represents the computation of the per-round root hash value
// from a document hash value.
type AggregationChain struct {
	aggrTime   *uint64
	chainIndex []uint64
	inputData  []byte
	inputHash  *hash.DataHash
	aggrAlgo   *uint64
	chainLinks []*ChainLink
}

// RFC3161 is the legacy RFC 3161 time-stamp compatibility record. It binds the document hash to the input hash of
// the first aggregation hash chain via the TSTInfo and SignedAttributes structures of the converted time-stamp:
// the input hash is hashed together with the TSTInfo prefix and suffix, the result with the SignedAttributes prefix
// and suffix, and the imprint of the latter is hashed once more with the aggregation algorithm.
type RFC3161 struct {
	aggrTime   *uint64
	chainIndex []uint64
	inputData  []byte
	inputHash  *hash.DataHash

	tstInfoPrefix []byte
	tstInfoSuffix []byte
	tstInfoAlgo   *uint64

	sigAttrPrefix []byte
	sigAttrSuffix []byte
	sigAttrAlgo   *uint64
}

// CalendarChain is the calendar hash chain. It represents the computation of the published hash value from the
// per-round root hash value.
type CalendarChain struct {
	pubTime    *uint64
	aggrTime   *uint64
	inputHash  *hash.DataHash
	chainLinks []*ChainLink
}

// ChainLink is a hash chain link. A calendar chain link carries only the sibling hash, an aggregation chain link
// carries one of sibling hash, legacy ID or metadata, and an optional level correction.
type ChainLink struct {
	isLeft     bool
	isCalendar bool

	levelCorr   *uint64
	siblingHash *hash.DataHash
	legacyID    *LegacyID
	metadata    *MetaData
}

// MetaData is the structured client identity incorporated into an aggregation hash chain link.
type MetaData struct {
	padding    []byte
	clientID   *string
	machineID  *string
	sequenceNr *uint64
	reqTime    *uint64

	// The element the metadata was parsed from, or encoded to. Its value is hashed as the sibling data.
	rawTlv *tlv.Tlv
}

// LegacyID is the client identifier converted from a legacy signature.
type LegacyID struct {
	str    string
	rawTlv *tlv.Tlv
}

// PublicationData is the published data: publication time and calendar root hash.
type PublicationData struct {
	pubTime *uint64
	pubHash *hash.DataHash
}

// PublicationRec is the publication record.
type PublicationRec struct {
	pubData   *PublicationData
	pubRef    []string
	pubRepURI []string
}

// CalendarAuthRec is the calendar authentication record.
type CalendarAuthRec struct {
	pubData *PublicationData
	// Copy of the publication data element as it appeared in the input; these are the signed bytes.
	signedData *tlv.Tlv
	sigData    *SignatureData
}

// SignatureData is the PKI signature data.
type SignatureData struct {
	sigType    *string
	sigValue   []byte
	certID     []byte
	certRepURI *string
}

// CertificateRecord is a publications file certificate record.
type CertificateRecord struct {
	certID []byte
	cert   []byte
}

func newUint64(v uint64) *uint64 { return &v }
func newString(s string) *string { return &s }
