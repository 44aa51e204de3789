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

func aggregatorRespTemplateOf(v Version) (*tlv.Template, error) {
	switch v {
	case V1:
		return aggregatorRespV1Template, nil
	case V2:
		return aggregatorRespTemplate, nil
	default:
		return nil, errors.New(errors.KsiInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Unsupported PDU version: %s.", v))
	}
}

// ParseAggregatorResp parses an aggregator response PDU. The PDU version is detected from the element tag. The
// received bytes are kept for the HMAC verification.
func ParseAggregatorResp(raw []byte) (*AggregatorResp, error) {
	if len(raw) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	t, err := tlv.NewTlv(tlv.ConstructFromSlice(raw))
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to parse aggregator response.")
	}

	var v Version
	switch t.Tag {
	case aggregatorRespTemplate.Tag:
		v = V2
	case aggregatorRespV1Template.Tag:
		v = V1
	default:
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unexpected aggregator response PDU type: 0x%x.", t.Tag))
	}
	tmpl, _ := aggregatorRespTemplateOf(v)

	r, err := tlv.ParseTlv[AggregatorResp](t, tmpl)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to parse aggregator response.")
	}
	r.version = v
	if r.raw, err = t.Bytes(); err != nil {
		return nil, err
	}
	log.Debug("Aggregator response:\n", t)
	return r, nil
}

// Version returns the PDU version.
func (r *AggregatorResp) Version() Version {
	if r == nil {
		return VerUnknown
	}
	return r.version
}

// Header returns the response header, or nil if not present.
func (r *AggregatorResp) Header() (*Header, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.header, nil
}

// AggregationResp returns the aggregation response payload, or nil if not present.
func (r *AggregatorResp) AggregationResp() (*AggrResp, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.aggrResp, nil
}

// ErrorPayload returns the reduced error payload, or nil if not present.
func (r *AggregatorResp) ErrorPayload() (*Error, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.aggrErr, nil
}

// Config returns the configuration response, or nil if not present.
func (r *AggregatorResp) Config() (*Config, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.version == V1 && r.aggrResp != nil {
		return r.aggrResp.config, nil
	}
	return r.confResp, nil
}

// Acknowledgment returns the request acknowledgment, or nil if not present.
func (r *AggregatorResp) Acknowledgment() (*AggrAck, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.version == V1 && r.aggrResp != nil {
		return r.aggrResp.ack, nil
	}
	return r.aggrAck, nil
}

// HMAC returns the response message authentication code, or nil if not present.
func (r *AggregatorResp) HMAC() (*hash.DataHash, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.mac, nil
}

// Err returns the response error if present, otherwise nil is returned.
func (r *AggregatorResp) Err() error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if r.aggrErr != nil {
		if err := responseErr(r.aggrErr.status, r.aggrErr.errorMsg, aggregatorStatusToError, "aggregation response error"); err != nil {
			return err
		}
	}
	if r.aggrResp != nil {
		if err := r.aggrResp.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Verify verifies the aggregator response consistency. Returns an error in following cases:
//   - contains a service response error;
//   - the response is missing a mandatory element;
//   - the HMAC computed with the hash function alg and the secret key does not match the response HMAC.
func (r *AggregatorResp) Verify(alg hash.Algorithm, key string) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if err := r.Err(); err != nil {
		return err
	}
	if r.header == nil {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Aggregator response must have a Header.")
	}
	if r.aggrResp == nil && r.confResp == nil && r.aggrAck == nil {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Aggregator response must have a payload.")
	}

	raw, err := r.Encode()
	if err != nil {
		return err
	}
	return verifyMAC(raw, r.mac, alg, []byte(key), "Aggregator response")
}

// UpdateHMAC computes the response HMAC with the hash function alg and the shared secret key.
func (r *AggregatorResp) UpdateHMAC(alg hash.Algorithm, key string) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	tmpl, err := aggregatorRespTemplateOf(r.version)
	if err != nil {
		return err
	}
	r.raw = nil
	return updateMAC(r, tmpl, &r.mac, alg, []byte(key))
}

// Encode returns the serialized aggregator response. For a parsed response the received bytes are returned.
func (r *AggregatorResp) Encode() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.raw != nil {
		return r.raw, nil
	}
	tmpl, err := aggregatorRespTemplateOf(r.version)
	if err != nil {
		return nil, err
	}
	return tlv.Serialize(r, tmpl)
}

// Clone returns a deep copy of the response. The header and HMAC are not copied.
func (r *AggregatorResp) Clone() (*AggregatorResp, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var (
		tmp = &AggregatorResp{version: r.version}
		err error
	)
	if r.aggrResp != nil {
		respTmpl := aggrRespTemplate
		if r.version == V1 {
			respTmpl = aggrRespV1Template
		}
		if tmp.aggrResp, err = tlv.DeepCopy(r.aggrResp, respTmpl); err != nil {
			return nil, err
		}
	}
	if r.aggrErr != nil {
		if tmp.aggrErr, err = tlv.DeepCopy(r.aggrErr, errorTemplate); err != nil {
			return nil, err
		}
	}
	if r.confResp != nil {
		if tmp.confResp, err = tlv.DeepCopy(r.confResp, configTemplate); err != nil {
			return nil, err
		}
	}
	if r.aggrAck != nil {
		if tmp.aggrAck, err = tlv.DeepCopy(r.aggrAck, ackTemplate); err != nil {
			return nil, err
		}
	}
	return tmp, nil
}

// RequestID returns the identifier of the request the response belongs to.
func (r *AggrResp) RequestID() (uint64, error) {
	if r == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.id == nil {
		return 0, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing request ID.")
	}
	return *r.id, nil
}

// Status returns the response status code. In case the status is not 0, see ErrorMsg for the description.
func (r *AggrResp) Status() (uint64, error) {
	if r == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.status == nil {
		return 0, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing response status.")
	}
	return *r.status, nil
}

// ErrorMsg returns the response error message, or empty string if not present.
func (r *AggrResp) ErrorMsg() (string, error) {
	if r == nil {
		return "", errors.New(errors.KsiInvalidArgumentError)
	}
	if r.errorMsg == nil {
		return "", nil
	}
	return *r.errorMsg, nil
}

// Err returns the aggregation response error if present, otherwise nil is returned.
func (r *AggrResp) Err() error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	return responseErr(r.status, r.errorMsg, aggregatorStatusToError, "aggregation response")
}

func (r *AggrResp) valid() error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if err := r.Err(); err != nil {
		return errors.KsiErr(err).AppendMessage("Aggregation response is invalid.")
	}
	return nil
}

// AggregationChainList returns the aggregation hash chains.
func (r *AggrResp) AggregationChainList() (AggregationChainList, error) {
	if err := r.valid(); err != nil {
		return nil, err
	}
	if len(r.aggrChainList) == 0 {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent aggregation response.").
			AppendMessage("Missing aggregation chain list.")
	}
	return r.aggrChainList, nil
}

// CalendarChain returns the calendar hash chain, or nil if not present.
func (r *AggrResp) CalendarChain() (*CalendarChain, error) {
	if err := r.valid(); err != nil {
		return nil, err
	}
	return r.calChain, nil
}

// PublicationRec returns the publication record, or nil if not present.
func (r *AggrResp) PublicationRec() (*PublicationRec, error) {
	if err := r.valid(); err != nil {
		return nil, err
	}
	return r.pubRec, nil
}

// CalendarAuthRec returns the calendar authentication record, or nil if not present.
func (r *AggrResp) CalendarAuthRec() (*CalendarAuthRec, error) {
	if err := r.valid(); err != nil {
		return nil, err
	}
	return r.calAuthRec, nil
}

// AggregationAuthRec returns the unprocessed aggregation authentication record, or nil if not present.
func (r *AggrResp) AggregationAuthRec() (*tlv.Tlv, error) {
	if err := r.valid(); err != nil {
		return nil, err
	}
	return r.aggrAuthRec, nil
}

// RFC3161 returns the RFC3161 compatibility record, or nil if not present.
func (r *AggrResp) RFC3161() (*RFC3161, error) {
	if err := r.valid(); err != nil {
		return nil, err
	}
	return r.rfc3161, nil
}

// AggregationPeriod returns the aggregation round duration in milliseconds.
func (a *AggrAck) AggregationPeriod() (uint64, error) {
	if a == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return valueOf(a.aggrPeriod), nil
}

// AggregationDelay returns the delay of the aggregation round in milliseconds.
func (a *AggrAck) AggregationDelay() (uint64, error) {
	if a == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return valueOf(a.aggrDelay), nil
}

// AggregationDrift returns the drift of the aggregation round relative to the full second.
func (a *AggrAck) AggregationDrift() (uint64, error) {
	if a == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return valueOf(a.aggrDrift), nil
}
