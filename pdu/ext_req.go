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
	"time"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/tlv"
)

type (
	// ExtendingReqSetting is functional option setter for extending request.
	ExtendingReqSetting func(*extenderReq) error

	extenderReq struct {
		obj ExtenderReq
	}
)

func extenderReqTemplateOf(v Version) (*tlv.Template, error) {
	switch v {
	case V1:
		return extenderReqV1Template, nil
	case V2:
		return extenderReqTemplate, nil
	default:
		return nil, errors.New(errors.KsiInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Unsupported PDU version: %s.", v))
	}
}

// NewExtendingReq constructs a new extending request of PDU version v. The start parameter is the time of the
// aggregation round from which the calendar hash chain should start.
func NewExtendingReq(v Version, start time.Time, settings ...ExtendingReqSetting) (*ExtenderReq, error) {
	if !v.Valid() || start.IsZero() {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	tmp := extenderReq{obj: ExtenderReq{
		version: v,
		extReq: &ExtReq{
			id:       newUint64(0),
			aggrTime: newUint64(uint64(start.Unix())),
		},
	}}
	for _, setter := range settings {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(&tmp); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Unable to setup extender request.")
		}
	}

	if req := tmp.obj.extReq; req.pubTime != nil && *req.pubTime < *req.aggrTime {
		return nil, errors.New(errors.KsiServiceExtenderInvalidTimeRange).
			AppendMessage("The request asked for a hash chain going backwards in time.").
			AppendMessage(fmt.Sprintf("Aggregation time %d is more recent than publication time %d.",
				*req.aggrTime, *req.pubTime))
	}
	return &tmp.obj, nil
}

// ExtReqSetPubTime sets the time of the calendar root hash value to which the aggregation hash value should
// be connected by the calendar hash chain. Its absence means a request for a calendar hash chain up to the most
// recent calendar record the server has.
func ExtReqSetPubTime(end time.Time) ExtendingReqSetting {
	return func(r *extenderReq) error {
		if r == nil || r.obj.extReq == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing extending request base object.")
		}
		if !end.IsZero() {
			r.obj.extReq.pubTime = newUint64(uint64(end.Unix()))
		}
		return nil
	}
}

// ExtReqSetRequestID sets the request ID, a number used to establish a relation between the request and the
// corresponding response.
func ExtReqSetRequestID(id uint64) ExtendingReqSetting {
	return func(r *extenderReq) error {
		if r == nil || r.obj.extReq == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing extending request base object.")
		}
		r.obj.extReq.id = newUint64(id)
		return nil
	}
}

// NewExtenderConfigReq constructs a new extender configuration request. PDU version 1 has no configuration request.
func NewExtenderConfigReq(v Version) (*ExtenderReq, error) {
	switch v {
	case V1:
		return nil, errors.New(errors.KsiNotImplemented).
			AppendMessage("Extender configuration request is not supported by PDU version 1.")
	case V2:
		return &ExtenderReq{version: v, confReq: &Config{}}, nil
	default:
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
}

// ParseExtenderReq parses an extender request PDU. The PDU version is detected from the element tag.
func ParseExtenderReq(raw []byte) (*ExtenderReq, error) {
	t, err := tlv.NewTlv(tlv.ConstructFromSlice(raw))
	if err != nil {
		return nil, err
	}

	var v Version
	switch t.Tag {
	case extenderReqTemplate.Tag:
		v = V2
	case extenderReqV1Template.Tag:
		v = V1
	default:
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unexpected extender request PDU type: 0x%x.", t.Tag))
	}
	tmpl, _ := extenderReqTemplateOf(v)
	r, err := tlv.ParseTlv[ExtenderReq](t, tmpl)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to parse extender request.")
	}
	r.version = v
	return r, nil
}

// Version returns the PDU version.
func (r *ExtenderReq) Version() Version {
	if r == nil {
		return VerUnknown
	}
	return r.version
}

// SetHeader sets the request header.
func (r *ExtenderReq) SetHeader(hdr *Header) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	r.header = hdr
	return nil
}

// Header returns the request header.
func (r *ExtenderReq) Header() (*Header, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.header, nil
}

// HMAC returns the request message authentication code, or nil if not present.
func (r *ExtenderReq) HMAC() (*hash.DataHash, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.mac, nil
}

// UpdateHMAC computes the request HMAC with the hash function alg and the shared secret key.
func (r *ExtenderReq) UpdateHMAC(alg hash.Algorithm, key string) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if r.header == nil {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Missing request header.")
	}
	tmpl, err := extenderReqTemplateOf(r.version)
	if err != nil {
		return err
	}
	return updateMAC(r, tmpl, &r.mac, alg, []byte(key))
}

// Verify verifies the HMAC of a received request.
func (r *ExtenderReq) Verify(alg hash.Algorithm, key string) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	raw, err := r.Encode()
	if err != nil {
		return err
	}
	return verifyMAC(raw, r.mac, alg, []byte(key), "Extender request")
}

// UpdateRequestID sets the extending request ID in case it is not set explicitly.
func (r *ExtenderReq) UpdateRequestID(id uint64) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if r.extReq != nil && (r.extReq.id == nil || *r.extReq.id == 0) {
		r.extReq.id = newUint64(id)
	}
	return nil
}

// Encode serializes the extender request into TLV binary representation.
func (r *ExtenderReq) Encode() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	tmpl, err := extenderReqTemplateOf(r.version)
	if err != nil {
		return nil, err
	}
	t, err := tlv.Construct(r, tmpl)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to serialize extender request.")
	}
	log.Debug("Extender request:\n", t)
	return t.Bytes()
}

// Clone returns a deep copy of the request payloads. The header and HMAC are not copied.
func (r *ExtenderReq) Clone() (*ExtenderReq, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var (
		tmp = &ExtenderReq{version: r.version}
		err error
	)
	if r.extReq != nil {
		reqTmpl := extReqTemplate
		if r.version == V1 {
			reqTmpl = extReqV1Template
		}
		if tmp.extReq, err = tlv.DeepCopy(r.extReq, reqTmpl); err != nil {
			return nil, err
		}
	}
	if r.confReq != nil {
		if tmp.confReq, err = tlv.DeepCopy(r.confReq, configTemplate); err != nil {
			return nil, err
		}
	}
	return tmp, nil
}

// Config returns the configuration request, or nil if not present.
func (r *ExtenderReq) Config() (*Config, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.confReq, nil
}

// ExtendingReq returns the extending request payload, or nil if not present.
func (r *ExtenderReq) ExtendingReq() (*ExtReq, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.extReq, nil
}

// AggregationTime returns the time of the aggregation round from which the calendar hash chain should start.
func (r *ExtReq) AggregationTime() (time.Time, error) {
	if r == nil {
		return time.Time{}, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.aggrTime == nil {
		return time.Time{}, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing aggregation time.")
	}
	return time.Unix(int64(*r.aggrTime), 0), nil
}

// PublicationTime returns the time of the calendar root hash value to which the aggregation hash value should be
// connected. If not present, zero time is returned.
func (r *ExtReq) PublicationTime() (time.Time, error) {
	if r == nil {
		return time.Time{}, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.pubTime == nil {
		return time.Time{}, nil
	}
	return time.Unix(int64(*r.pubTime), 0), nil
}

// RequestID returns the extending request ID.
func (r *ExtReq) RequestID() (uint64, error) {
	if r == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.id == nil {
		return 0, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing request ID.")
	}
	return *r.id, nil
}
