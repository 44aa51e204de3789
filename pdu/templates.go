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
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/templates"
	"github.com/guardtime/ksicore/tlv"
)

// Element tags used outside of the templates.
const (
	tagLeftLink  = 0x07
	tagRightLink = 0x08
	tagMetaData  = 0x04
	tagLegacyID  = 0x03
	tagMAC       = 0x1f
	tagPubData   = 0x10
	tagRFC3161   = 0x806
)

const (
	mandatory   = tlv.Mandatory
	leastOne    = tlv.LeastOneG0
	mostOne     = tlv.MandatoryMostOneG0
	noSerialize = tlv.NoSerialize
)

var (
	metaDataTemplate = tlv.MustTemplate("MetaData", tagMetaData, 0,
		tlv.Octets(TagMetaDataPadding, tlv.NonCritical|tlv.Forward, "padding", func(m *MetaData) *[]byte { return &m.padding }),
		tlv.Utf8(0x01, mandatory, "client id", func(m *MetaData) **string { return &m.clientID }),
		tlv.Utf8(0x02, 0, "machine id", func(m *MetaData) **string { return &m.machineID }),
		tlv.Integer(0x03, 0, "sequence nr", func(m *MetaData) **uint64 { return &m.sequenceNr }),
		tlv.Integer(0x04, 0, "request time", func(m *MetaData) **uint64 { return &m.reqTime }),
	)

	linkLTemplate = tlv.MustTemplate("ChainLinkL", tagLeftLink, 0, linkFields()...)
	linkRTemplate = tlv.MustTemplate("ChainLinkR", tagRightLink, 0, linkFields()...)

	aggrChainTemplate = tlv.MustTemplate("AggregationChain", 0x801, 0,
		tlv.Integer(0x02, mandatory, "aggregation time", func(c *AggregationChain) **uint64 { return &c.aggrTime }),
		tlv.IntegerList(0x03, mandatory, "chain index", func(c *AggregationChain) *[]uint64 { return &c.chainIndex }),
		tlv.Octets(0x04, 0, "input data", func(c *AggregationChain) *[]byte { return &c.inputData }),
		tlv.Imprint(0x05, mandatory, "input hash", func(c *AggregationChain) **hash.DataHash { return &c.inputHash }),
		tlv.Integer8(0x06, mandatory, "aggregation algorithm", func(c *AggregationChain) **uint64 { return &c.aggrAlgo }),
		// Left and right links share one list, which is serialized in order by the first field.
		tlv.ObjectList(tagLeftLink, leastOne, "left link", aggrChainLinks, aggrLinkFromTlv, linkToTlv),
		tlv.ObjectList(tagRightLink, leastOne|noSerialize, "right link", aggrChainLinks, aggrLinkFromTlv, linkToTlv),
	)

	rfc3161Template = tlv.MustTemplate("RFC3161", tagRFC3161, 0,
		tlv.Integer(0x02, mandatory, "aggregation time", func(r *RFC3161) **uint64 { return &r.aggrTime }),
		tlv.IntegerList(0x03, mandatory, "chain index", func(r *RFC3161) *[]uint64 { return &r.chainIndex }),
		tlv.Octets(0x04, 0, "input data", func(r *RFC3161) *[]byte { return &r.inputData }),
		tlv.Imprint(0x05, mandatory, "input hash", func(r *RFC3161) **hash.DataHash { return &r.inputHash }),
		tlv.Octets(0x10, mandatory, "tstinfo prefix", func(r *RFC3161) *[]byte { return &r.tstInfoPrefix }),
		tlv.Octets(0x11, mandatory, "tstinfo suffix", func(r *RFC3161) *[]byte { return &r.tstInfoSuffix }),
		tlv.Integer8(0x12, mandatory, "tstinfo algorithm", func(r *RFC3161) **uint64 { return &r.tstInfoAlgo }),
		tlv.Octets(0x13, mandatory, "signed attributes prefix", func(r *RFC3161) *[]byte { return &r.sigAttrPrefix }),
		tlv.Octets(0x14, mandatory, "signed attributes suffix", func(r *RFC3161) *[]byte { return &r.sigAttrSuffix }),
		tlv.Integer8(0x15, mandatory, "signed attributes algorithm", func(r *RFC3161) **uint64 { return &r.sigAttrAlgo }),
	)

	calChainTemplate = tlv.MustTemplate("CalendarChain", 0x802, 0,
		tlv.Integer(0x01, mandatory, "publication time", func(c *CalendarChain) **uint64 { return &c.pubTime }),
		tlv.Integer(0x02, 0, "aggregation time", func(c *CalendarChain) **uint64 { return &c.aggrTime }),
		tlv.Imprint(0x05, mandatory, "input hash", func(c *CalendarChain) **hash.DataHash { return &c.inputHash }),
		tlv.ObjectList(tagLeftLink, leastOne, "left link", calChainLinks, calLinkFromTlv, linkToTlv),
		tlv.ObjectList(tagRightLink, leastOne|noSerialize, "right link", calChainLinks, calLinkFromTlv, linkToTlv),
	)

	pubDataTemplate = tlv.MustTemplate("PublicationData", tagPubData, 0,
		tlv.Integer(0x02, mandatory, "publication time", func(p *PublicationData) **uint64 { return &p.pubTime }),
		tlv.Imprint(0x04, mandatory, "published hash", func(p *PublicationData) **hash.DataHash { return &p.pubHash }),
	)

	pubRecTemplate        = tlv.MustTemplate("PublicationRec", 0x803, 0, pubRecFields()...)
	pubFilePubRecTemplate = tlv.MustTemplate("PublicationsFileRec", 0x703, 0, pubRecFields()...)

	sigDataTemplate = tlv.MustTemplate("SignatureData", 0x0b, 0,
		tlv.Utf8(0x01, mandatory, "signature type", func(s *SignatureData) **string { return &s.sigType }),
		tlv.Octets(0x02, mandatory, "signature value", func(s *SignatureData) *[]byte { return &s.sigValue }),
		tlv.Octets(0x03, mandatory, "certificate id", func(s *SignatureData) *[]byte { return &s.certID }),
		tlv.Utf8(0x04, 0, "certificate repository uri", func(s *SignatureData) **string { return &s.certRepURI }),
	)

	calAuthRecTemplate = tlv.MustTemplate("CalendarAuthRec", 0x805, 0,
		tlv.Composite(tagPubData, mandatory|tlv.Forward|tlv.MoreDefs, "publication data", pubDataTemplate,
			func(c *CalendarAuthRec) **PublicationData { return &c.pubData }),
		tlv.Unprocessed(tagPubData, noSerialize, "signed data", func(c *CalendarAuthRec) **tlv.Tlv { return &c.signedData }),
		tlv.Composite(0x0b, mandatory, "signature data", sigDataTemplate,
			func(c *CalendarAuthRec) **SignatureData { return &c.sigData }),
	)

	certRecTemplate = tlv.MustTemplate("CertificateRecord", 0x702, 0,
		tlv.Octets(0x01, mandatory, "certificate id", func(c *CertificateRecord) *[]byte { return &c.certID }),
		tlv.Octets(0x02, mandatory, "certificate", func(c *CertificateRecord) *[]byte { return &c.cert }),
	)

	headerTemplate = tlv.MustTemplate("Header", 0x01, 0,
		tlv.Utf8(0x01, mandatory, "login id", func(h *Header) **string { return &h.loginID }),
		tlv.Integer(0x02, 0, "instance id", func(h *Header) **uint64 { return &h.instID }),
		tlv.Integer(0x03, 0, "message id", func(h *Header) **uint64 { return &h.msgID }),
	)

	errorTemplate = tlv.MustTemplate("Error", 0x03, 0,
		tlv.Integer(0x04, mandatory, "status", func(e *Error) **uint64 { return &e.status }),
		tlv.Utf8(0x05, 0, "error message", func(e *Error) **string { return &e.errorMsg }),
	)

	configTemplate = tlv.MustTemplate("Config", 0x04, 0,
		tlv.Integer(0x01, 0, "max level", func(c *Config) **uint64 { return &c.maxLevel }),
		tlv.Integer8(0x02, 0, "aggregation algorithm", func(c *Config) **uint64 { return &c.aggrAlgo }),
		tlv.Integer(0x03, 0, "aggregation period", func(c *Config) **uint64 { return &c.aggrPeriod }),
		tlv.Integer(0x04, 0, "max requests", func(c *Config) **uint64 { return &c.maxReq }),
		tlv.Utf8List(0x10, 0, "parent uri", func(c *Config) *[]string { return &c.parentURI }),
		tlv.Integer(0x11, 0, "calendar first", func(c *Config) **uint64 { return &c.calFirst }),
		tlv.Integer(0x12, 0, "calendar last", func(c *Config) **uint64 { return &c.calLast }),
	)

	configV1Template = tlv.MustTemplate("ConfigV1", 0x10, 0,
		tlv.Integer(0x01, 0, "max level", func(c *Config) **uint64 { return &c.maxLevel }),
		tlv.Integer(0x02, 0, "aggregation algorithm", func(c *Config) **uint64 { return &c.aggrAlgo }),
		tlv.Integer(0x03, 0, "aggregation period", func(c *Config) **uint64 { return &c.aggrPeriod }),
		tlv.Utf8List(0x04, 0, "parent uri", func(c *Config) *[]string { return &c.parentURI }),
	)

	ackTemplate = tlv.MustTemplate("AggrAck", 0x05, 0,
		tlv.Integer(0x01, 0, "request time", func(a *AggrAck) **uint64 { return &a.reqTime }),
		tlv.Integer(0x02, 0, "receive time", func(a *AggrAck) **uint64 { return &a.recvTime }),
		tlv.Integer(0x03, 0, "acknowledgment time", func(a *AggrAck) **uint64 { return &a.ackTime }),
		tlv.Integer(0x04, 0, "aggregation delay", func(a *AggrAck) **uint64 { return &a.aggrDelay }),
		tlv.Integer(0x05, 0, "aggregation period", func(a *AggrAck) **uint64 { return &a.aggrPeriod }),
		tlv.Integer(0x06, 0, "aggregation drift", func(a *AggrAck) **uint64 { return &a.aggrDrift }),
	)

	ackV1Template = tlv.MustTemplate("AggrAckV1", 0x11, 0,
		tlv.Integer(0x01, mandatory, "aggregation period", func(a *AggrAck) **uint64 { return &a.aggrPeriod }),
		tlv.Integer(0x02, mandatory, "aggregation delay", func(a *AggrAck) **uint64 { return &a.aggrDelay }),
	)

	aggrReqTemplate = tlv.MustTemplate("AggrReq", 0x02, 0,
		tlv.Integer(0x01, mandatory, "request id", func(r *AggrReq) **uint64 { return &r.id }),
		tlv.Imprint(0x02, mandatory, "request hash", func(r *AggrReq) **hash.DataHash { return &r.hash }),
		tlv.Integer(0x03, 0, "request level", func(r *AggrReq) **uint64 { return &r.level }),
	)

	aggrReqV1Template = tlv.MustTemplate("AggrReqV1", 0x201, 0,
		tlv.Integer(0x01, mandatory, "request id", func(r *AggrReq) **uint64 { return &r.id }),
		tlv.Imprint(0x02, 0, "request hash", func(r *AggrReq) **hash.DataHash { return &r.hash }),
		tlv.Integer(0x03, 0, "request level", func(r *AggrReq) **uint64 { return &r.level }),
		tlv.Composite(0x04, 0, "config", configV1Template, func(r *AggrReq) **Config { return &r.config }),
	)

	aggrRespTemplate = tlv.MustTemplate("AggrResp", 0x02, 0,
		tlv.Integer(0x01, mandatory, "request id", func(r *AggrResp) **uint64 { return &r.id }),
		tlv.Integer(0x04, mandatory, "status", func(r *AggrResp) **uint64 { return &r.status }),
		tlv.Utf8(0x05, 0, "error message", func(r *AggrResp) **string { return &r.errorMsg }),
		tlv.CompositeList(0x801, 0, "aggregation chain", aggrChainTemplate,
			func(r *AggrResp) *[]*AggregationChain { return &r.aggrChainList }),
		tlv.Composite(0x802, 0, "calendar chain", calChainTemplate, func(r *AggrResp) **CalendarChain { return &r.calChain }),
		tlv.Composite(0x803, 0, "publication record", pubRecTemplate, func(r *AggrResp) **PublicationRec { return &r.pubRec }),
		tlv.Unprocessed(0x804, 0, "aggregation auth record", func(r *AggrResp) **tlv.Tlv { return &r.aggrAuthRec }),
		tlv.Composite(0x805, 0, "calendar auth record", calAuthRecTemplate,
			func(r *AggrResp) **CalendarAuthRec { return &r.calAuthRec }),
		tlv.Composite(tagRFC3161, 0, "rfc3161 record", rfc3161Template, func(r *AggrResp) **RFC3161 { return &r.rfc3161 }),
	)

	aggrRespV1Template = tlv.MustTemplate("AggrRespV1", 0x202, 0,
		tlv.Integer(0x01, 0, "request id", func(r *AggrResp) **uint64 { return &r.id }),
		tlv.Integer(0x04, 0, "status", func(r *AggrResp) **uint64 { return &r.status }),
		tlv.Utf8(0x05, 0, "error message", func(r *AggrResp) **string { return &r.errorMsg }),
		tlv.Composite(0x10, 0, "config", configV1Template, func(r *AggrResp) **Config { return &r.config }),
		tlv.Composite(0x11, 0, "request ack", ackV1Template, func(r *AggrResp) **AggrAck { return &r.ack }),
		tlv.CompositeList(0x801, 0, "aggregation chain", aggrChainTemplate,
			func(r *AggrResp) *[]*AggregationChain { return &r.aggrChainList }),
		tlv.Composite(0x802, 0, "calendar chain", calChainTemplate, func(r *AggrResp) **CalendarChain { return &r.calChain }),
		tlv.Unprocessed(0x804, 0, "aggregation auth record", func(r *AggrResp) **tlv.Tlv { return &r.aggrAuthRec }),
		tlv.Composite(0x805, 0, "calendar auth record", calAuthRecTemplate,
			func(r *AggrResp) **CalendarAuthRec { return &r.calAuthRec }),
	)

	aggregatorReqTemplate = tlv.MustTemplate("AggregatorReq", 0x220, 0,
		tlv.Composite(0x01, mandatory, "header", headerTemplate, func(r *AggregatorReq) **Header { return &r.header }),
		tlv.Composite(0x02, leastOne, "aggregation request", aggrReqTemplate,
			func(r *AggregatorReq) **AggrReq { return &r.aggrReq }),
		tlv.Composite(0x04, leastOne, "config request", configTemplate, func(r *AggregatorReq) **Config { return &r.confReq }),
		tlv.Composite(0x05, leastOne, "acknowledgment request", ackTemplate,
			func(r *AggregatorReq) **AggrAck { return &r.ackReq }),
		tlv.Imprint(tagMAC, mandatory, "hmac", func(r *AggregatorReq) **hash.DataHash { return &r.mac }),
	)

	aggregatorReqV1Template = tlv.MustTemplate("AggregatorReqV1", 0x200, 0,
		tlv.Composite(0x01, mandatory, "header", headerTemplate, func(r *AggregatorReq) **Header { return &r.header }),
		tlv.Composite(0x201, mandatory, "aggregation request", aggrReqV1Template,
			func(r *AggregatorReq) **AggrReq { return &r.aggrReq }),
		tlv.Imprint(tagMAC, mandatory, "hmac", func(r *AggregatorReq) **hash.DataHash { return &r.mac }),
	)

	aggregatorRespTemplate = tlv.MustTemplate("AggregatorResp", 0x221, 0,
		tlv.Composite(0x01, 0, "header", headerTemplate, func(r *AggregatorResp) **Header { return &r.header }),
		tlv.Composite(0x02, leastOne, "aggregation response", aggrRespTemplate,
			func(r *AggregatorResp) **AggrResp { return &r.aggrResp }),
		tlv.Composite(0x03, leastOne, "aggregation error", errorTemplate, func(r *AggregatorResp) **Error { return &r.aggrErr }),
		tlv.Composite(0x04, leastOne, "config response", configTemplate,
			func(r *AggregatorResp) **Config { return &r.confResp }),
		tlv.Composite(0x05, leastOne, "acknowledgment", ackTemplate, func(r *AggregatorResp) **AggrAck { return &r.aggrAck }),
		tlv.Imprint(tagMAC, 0, "hmac", func(r *AggregatorResp) **hash.DataHash { return &r.mac }),
	)

	aggregatorRespV1Template = tlv.MustTemplate("AggregatorRespV1", 0x200, 0,
		tlv.Composite(0x01, 0, "header", headerTemplate, func(r *AggregatorResp) **Header { return &r.header }),
		tlv.Composite(0x202, mostOne, "aggregation response", aggrRespV1Template,
			func(r *AggregatorResp) **AggrResp { return &r.aggrResp }),
		tlv.Composite(0x203, mostOne, "aggregation error", errorTemplate, func(r *AggregatorResp) **Error { return &r.aggrErr }),
		tlv.Imprint(tagMAC, 0, "hmac", func(r *AggregatorResp) **hash.DataHash { return &r.mac }),
	)

	extReqTemplate = tlv.MustTemplate("ExtReq", 0x02, 0,
		tlv.Integer(0x01, mandatory, "request id", func(r *ExtReq) **uint64 { return &r.id }),
		tlv.Integer(0x02, mandatory, "aggregation time", func(r *ExtReq) **uint64 { return &r.aggrTime }),
		tlv.Integer(0x03, 0, "publication time", func(r *ExtReq) **uint64 { return &r.pubTime }),
	)

	extReqV1Template = tlv.MustTemplate("ExtReqV1", 0x301, 0,
		tlv.Integer(0x01, mandatory, "request id", func(r *ExtReq) **uint64 { return &r.id }),
		tlv.Integer(0x02, 0, "aggregation time", func(r *ExtReq) **uint64 { return &r.aggrTime }),
		tlv.Integer(0x03, 0, "publication time", func(r *ExtReq) **uint64 { return &r.pubTime }),
	)

	extRespTemplate = tlv.MustTemplate("ExtResp", 0x02, 0,
		tlv.Integer(0x01, mandatory, "request id", func(r *ExtResp) **uint64 { return &r.id }),
		tlv.Integer(0x04, mandatory, "status", func(r *ExtResp) **uint64 { return &r.status }),
		tlv.Utf8(0x05, 0, "error message", func(r *ExtResp) **string { return &r.errorMsg }),
		tlv.Integer(0x12, 0, "calendar last", func(r *ExtResp) **uint64 { return &r.calLast }),
		tlv.Composite(0x802, 0, "calendar chain", calChainTemplate, func(r *ExtResp) **CalendarChain { return &r.calChain }),
	)

	extRespV1Template = tlv.MustTemplate("ExtRespV1", 0x302, 0,
		tlv.Integer(0x01, 0, "request id", func(r *ExtResp) **uint64 { return &r.id }),
		tlv.Integer(0x04, 0, "status", func(r *ExtResp) **uint64 { return &r.status }),
		tlv.Utf8(0x05, 0, "error message", func(r *ExtResp) **string { return &r.errorMsg }),
		tlv.Integer(0x10, 0, "last time", func(r *ExtResp) **uint64 { return &r.calLast }),
		tlv.Composite(0x802, 0, "calendar chain", calChainTemplate, func(r *ExtResp) **CalendarChain { return &r.calChain }),
	)

	extenderReqTemplate = tlv.MustTemplate("ExtenderReq", 0x320, 0,
		tlv.Composite(0x01, mandatory, "header", headerTemplate, func(r *ExtenderReq) **Header { return &r.header }),
		tlv.Composite(0x02, leastOne, "extension request", extReqTemplate, func(r *ExtenderReq) **ExtReq { return &r.extReq }),
		tlv.Composite(0x04, leastOne, "config request", configTemplate, func(r *ExtenderReq) **Config { return &r.confReq }),
		tlv.Imprint(tagMAC, mandatory, "hmac", func(r *ExtenderReq) **hash.DataHash { return &r.mac }),
	)

	extenderReqV1Template = tlv.MustTemplate("ExtenderReqV1", 0x300, 0,
		tlv.Composite(0x01, mandatory, "header", headerTemplate, func(r *ExtenderReq) **Header { return &r.header }),
		tlv.Composite(0x301, mandatory, "extension request", extReqV1Template,
			func(r *ExtenderReq) **ExtReq { return &r.extReq }),
		tlv.Imprint(tagMAC, mandatory, "hmac", func(r *ExtenderReq) **hash.DataHash { return &r.mac }),
	)

	extenderRespTemplate = tlv.MustTemplate("ExtenderResp", 0x321, 0,
		tlv.Composite(0x01, 0, "header", headerTemplate, func(r *ExtenderResp) **Header { return &r.header }),
		tlv.Composite(0x02, leastOne, "extension response", extRespTemplate,
			func(r *ExtenderResp) **ExtResp { return &r.extResp }),
		tlv.Composite(0x03, leastOne, "extension error", errorTemplate, func(r *ExtenderResp) **Error { return &r.extErr }),
		tlv.Composite(0x04, leastOne, "config response", configTemplate,
			func(r *ExtenderResp) **Config { return &r.confResp }),
		tlv.Imprint(tagMAC, 0, "hmac", func(r *ExtenderResp) **hash.DataHash { return &r.mac }),
	)

	extenderRespV1Template = tlv.MustTemplate("ExtenderRespV1", 0x300, 0,
		tlv.Composite(0x01, 0, "header", headerTemplate, func(r *ExtenderResp) **Header { return &r.header }),
		tlv.Composite(0x302, mostOne, "extension response", extRespV1Template,
			func(r *ExtenderResp) **ExtResp { return &r.extResp }),
		tlv.Composite(0x303, mostOne, "extension error", errorTemplate, func(r *ExtenderResp) **Error { return &r.extErr }),
		tlv.Imprint(tagMAC, 0, "hmac", func(r *ExtenderResp) **hash.DataHash { return &r.mac }),
	)
)

func init() {
	templates.MustRegister(
		metaDataTemplate, linkLTemplate, linkRTemplate, aggrChainTemplate, calChainTemplate,
		pubDataTemplate, pubRecTemplate, pubFilePubRecTemplate, sigDataTemplate, calAuthRecTemplate, certRecTemplate,
		headerTemplate, errorTemplate, configTemplate, configV1Template, ackTemplate, ackV1Template,
		aggrReqTemplate, aggrReqV1Template, aggrRespTemplate, aggrRespV1Template,
		aggregatorReqTemplate, aggregatorReqV1Template, aggregatorRespTemplate, aggregatorRespV1Template,
		extReqTemplate, extReqV1Template, extRespTemplate, extRespV1Template,
		extenderReqTemplate, extenderReqV1Template, extenderRespTemplate, extenderRespV1Template,
	)
}

func linkFields() []tlv.Field {
	return []tlv.Field{
		tlv.Integer(0x01, 0, "level correction", func(l *ChainLink) **uint64 { return &l.levelCorr }),
		tlv.Imprint(0x02, mostOne, "sibling hash", func(l *ChainLink) **hash.DataHash { return &l.siblingHash }),
		tlv.Object(tagLegacyID, mostOne, "legacy id", func(l *ChainLink) **LegacyID { return &l.legacyID },
			legacyIDFromTlv, legacyIDToTlv),
		tlv.Object(tagMetaData, mostOne, "metadata", func(l *ChainLink) **MetaData { return &l.metadata },
			metaDataFromTlv, metaDataToTlv),
	}
}

func pubRecFields() []tlv.Field {
	return []tlv.Field{
		tlv.Composite(tagPubData, mandatory, "publication data", pubDataTemplate,
			func(p *PublicationRec) **PublicationData { return &p.pubData }),
		tlv.Utf8List(0x09, 0, "publication reference", func(p *PublicationRec) *[]string { return &p.pubRef }),
		tlv.Utf8List(0x0a, 0, "repository uri", func(p *PublicationRec) *[]string { return &p.pubRepURI }),
	}
}

func aggrChainLinks(c *AggregationChain) *[]*ChainLink { return &c.chainLinks }
func calChainLinks(c *CalendarChain) *[]*ChainLink     { return &c.chainLinks }

// Exported accessors of the templates needed by the dependent packages.

// PublicationDataTemplate returns the publication data template.
func PublicationDataTemplate() *tlv.Template { return pubDataTemplate }

// PublicationsFileRecTemplate returns the template of the publication record used in the publications file.
func PublicationsFileRecTemplate() *tlv.Template { return pubFilePubRecTemplate }

// CertificateRecordTemplate returns the publications file certificate record template.
func CertificateRecordTemplate() *tlv.Template { return certRecTemplate }

// AggregationChainTemplate returns the aggregation hash chain template.
func AggregationChainTemplate() *tlv.Template { return aggrChainTemplate }

// RFC3161Template returns the RFC3161 compatibility record template.
func RFC3161Template() *tlv.Template { return rfc3161Template }

// CalendarChainTemplate returns the calendar hash chain template.
func CalendarChainTemplate() *tlv.Template { return calChainTemplate }

// PublicationRecTemplate returns the signature publication record template.
func PublicationRecTemplate() *tlv.Template { return pubRecTemplate }

// CalendarAuthRecTemplate returns the calendar authentication record template.
func CalendarAuthRecTemplate() *tlv.Template { return calAuthRecTemplate }
