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
	"fmt"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/tlv"
)

// AggregationReqSetting is a functional option setter for various aggregation request settings.
type AggregationReqSetting func(*aggregatorReq) error
type aggregatorReq struct {
	obj AggregatorReq
}

func aggregatorReqTemplateOf(v Version) (*tlv.Template, error) {
	switch v {
	case V1:
		return aggregatorReqV1Template, nil
	case V2:
		return aggregatorReqTemplate, nil
	default:
		return nil, errors.New(errors.KsiInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Unsupported PDU version: %s.", v))
	}
}

// NewAggregationReq constructs a new aggregation request of PDU version v wrapped into the AggregatorReq container.
// Optionally additional settings can be applied via settings parameter.
func NewAggregationReq(v Version, requestHash *hash.DataHash, settings ...AggregationReqSetting) (*AggregatorReq, error) {
	if requestHash == nil || !v.Valid() {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	tmp := aggregatorReq{obj: AggregatorReq{
		version: v,
		aggrReq: &AggrReq{
			id:   newUint64(0),
			hash: requestHash.Clone(),
		},
	}}
	for _, setter := range settings {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(&tmp); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Unable to setup aggregation request.")
		}
	}
	return &tmp.obj, nil
}

// AggrReqSetRequestLevel sets the input hash level.
func AggrReqSetRequestLevel(level byte) AggregationReqSetting {
	return func(r *aggregatorReq) error {
		if r == nil || r.obj.aggrReq == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing aggregator request base object.")
		}
		if level > 0 {
			r.obj.aggrReq.level = newUint64(uint64(level))
		}
		return nil
	}
}

// AggrReqSetRequestID sets the request ID.
func AggrReqSetRequestID(id uint64) AggregationReqSetting {
	return func(r *aggregatorReq) error {
		if r == nil || r.obj.aggrReq == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing aggregator request base object.")
		}
		r.obj.aggrReq.id = newUint64(id)
		return nil
	}
}

// NewAggregatorConfigReq constructs a new aggregator configuration request. In PDU version 1 the configuration
// request is carried inside an aggregation request payload.
func NewAggregatorConfigReq(v Version) (*AggregatorReq, error) {
	switch v {
	case V1:
		return &AggregatorReq{version: v, aggrReq: &AggrReq{id: newUint64(0), config: &Config{}}}, nil
	case V2:
		return &AggregatorReq{version: v, confReq: &Config{}}, nil
	default:
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
}

// ParseAggregatorReq parses an aggregator request PDU. The PDU version is detected from the element tag.
func ParseAggregatorReq(raw []byte) (*AggregatorReq, error) {
	t, err := tlv.NewTlv(tlv.ConstructFromSlice(raw))
	if err != nil {
		return nil, err
	}

	var tmpl *tlv.Template
	var v Version
	switch t.Tag {
	case aggregatorReqTemplate.Tag:
		tmpl, v = aggregatorReqTemplate, V2
	case aggregatorReqV1Template.Tag:
		tmpl, v = aggregatorReqV1Template, V1
	default:
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unexpected aggregator request PDU type: 0x%x.", t.Tag))
	}
	r, err := tlv.ParseTlv[AggregatorReq](t, tmpl)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to parse aggregator request.")
	}
	r.version = v
	return r, nil
}

// Version returns the PDU version.
func (r *AggregatorReq) Version() Version {
	if r == nil {
		return VerUnknown
	}
	return r.version
}

// AggregationReq returns the aggregation request payload, or nil if not present.
func (r *AggregatorReq) AggregationReq() (*AggrReq, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.aggrReq, nil
}

// Config returns the configuration request, or nil if not present.
func (r *AggregatorReq) Config() (*Config, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.version == V1 && r.aggrReq != nil {
		return r.aggrReq.config, nil
	}
	return r.confReq, nil
}

// RequestHash returns the aggregation request document hash.
func (r *AggrReq) RequestHash() (*hash.DataHash, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.hash == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing request hash.")
	}
	return r.hash, nil
}

// RequestLevel returns the aggregation request input hash level. If not present, 0 is returned.
func (r *AggrReq) RequestLevel() (byte, error) {
	if r == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.level == nil {
		return 0, nil
	}
	if *r.level > maxTreeLevel {
		return 0, errors.New(errors.KsiInvalidFormatError).AppendMessage("Aggregation level can't be larger than 0xff.")
	}
	return byte(*r.level), nil
}

// RequestID returns the aggregation request ID.
func (r *AggrReq) RequestID() (uint64, error) {
	if r == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.id == nil {
		return 0, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing request ID.")
	}
	return *r.id, nil
}

// SetHeader sets the request header.
func (r *AggregatorReq) SetHeader(hdr *Header) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	r.header = hdr
	return nil
}

// Header returns the request header.
func (r *AggregatorReq) Header() (*Header, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.header, nil
}

// HMAC returns the request message authentication code, or nil if not present.
func (r *AggregatorReq) HMAC() (*hash.DataHash, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.mac, nil
}

// UpdateHMAC computes the request HMAC with the hash function alg and the shared secret key.
func (r *AggregatorReq) UpdateHMAC(alg hash.Algorithm, key string) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if r.header == nil {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Missing request header.")
	}
	tmpl, err := aggregatorReqTemplateOf(r.version)
	if err != nil {
		return err
	}
	return updateMAC(r, tmpl, &r.mac, alg, []byte(key))
}

// Verify verifies the HMAC of a received request.
func (r *AggregatorReq) Verify(alg hash.Algorithm, key string) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	raw, err := r.Encode()
	if err != nil {
		return err
	}
	return verifyMAC(raw, r.mac, alg, []byte(key), "Aggregator request")
}

// UpdateRequestID sets the aggregation request ID in case it is not set explicitly. If the container does not hold an
// aggregation request, no operation is performed.
func (r *AggregatorReq) UpdateRequestID(id uint64) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if r.aggrReq != nil && (r.aggrReq.id == nil || *r.aggrReq.id == 0) {
		r.aggrReq.id = newUint64(id)
	}
	return nil
}

// Encode serializes the aggregator request into TLV binary representation.
func (r *AggregatorReq) Encode() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	tmpl, err := aggregatorReqTemplateOf(r.version)
	if err != nil {
		return nil, err
	}
	t, err := tlv.Construct(r, tmpl)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to serialize aggregator request.")
	}
	log.Debug("Aggregator request:\n", t)
	return t.Bytes()
}

// Clone returns a deep copy of the request payloads. The header and HMAC are not copied.
func (r *AggregatorReq) Clone() (*AggregatorReq, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var (
		tmp = &AggregatorReq{version: r.version}
		err error
	)
	if r.aggrReq != nil {
		reqTmpl := aggrReqTemplate
		if r.version == V1 {
			reqTmpl = aggrReqV1Template
		}
		if tmp.aggrReq, err = tlv.DeepCopy(r.aggrReq, reqTmpl); err != nil {
			return nil, err
		}
	}
	if r.confReq != nil {
		if tmp.confReq, err = tlv.DeepCopy(r.confReq, configTemplate); err != nil {
			return nil, err
		}
	}
	if r.ackReq != nil {
		if tmp.ackReq, err = tlv.DeepCopy(r.ackReq, ackTemplate); err != nil {
			return nil, err
		}
	}
	return tmp, nil
}
