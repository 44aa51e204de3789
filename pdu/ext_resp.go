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

func extenderRespTemplateOf(v Version) (*tlv.Template, error) {
	switch v {
	case V1:
		return extenderRespV1Template, nil
	case V2:
		return extenderRespTemplate, nil
	default:
		return nil, errors.New(errors.KsiInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Unsupported PDU version: %s.", v))
	}
}

// ParseExtenderResp parses an extender response PDU. The PDU version is detected from the element tag. The
// received bytes are kept for the HMAC verification.
func ParseExtenderResp(raw []byte) (*ExtenderResp, error) {
	if len(raw) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	t, err := tlv.NewTlv(tlv.ConstructFromSlice(raw))
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to parse extender response.")
	}

	var v Version
	switch t.Tag {
	case extenderRespTemplate.Tag:
		v = V2
	case extenderRespV1Template.Tag:
		v = V1
	default:
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unexpected extender response PDU type: 0x%x.", t.Tag))
	}
	tmpl, _ := extenderRespTemplateOf(v)

	r, err := tlv.ParseTlv[ExtenderResp](t, tmpl)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to parse extender response.")
	}
	r.version = v
	if r.raw, err = t.Bytes(); err != nil {
		return nil, err
	}
	log.Debug("Extender response:\n", t)
	return r, nil
}

// Version returns the PDU version.
func (r *ExtenderResp) Version() Version {
	if r == nil {
		return VerUnknown
	}
	return r.version
}

// Header returns the response header, or nil if not present.
func (r *ExtenderResp) Header() (*Header, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.header, nil
}

// ExtendingResp returns the extending response payload, or nil if not present.
func (r *ExtenderResp) ExtendingResp() (*ExtResp, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.extResp, nil
}

// ErrorPayload returns the reduced error payload, or nil if not present.
func (r *ExtenderResp) ErrorPayload() (*Error, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.extErr, nil
}

// Config returns the configuration response, or nil if not present.
func (r *ExtenderResp) Config() (*Config, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.confResp, nil
}

// HMAC returns the response message authentication code, or nil if not present.
func (r *ExtenderResp) HMAC() (*hash.DataHash, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return r.mac, nil
}

// Err returns the response error if present, otherwise nil is returned.
func (r *ExtenderResp) Err() error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if r.extErr != nil {
		if err := responseErr(r.extErr.status, r.extErr.errorMsg, extenderStatusToError, "extender response error"); err != nil {
			return err
		}
	}
	if r.extResp != nil {
		if err := r.extResp.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Verify verifies the extender response consistency. Returns an error in following cases:
//   - contains a service response error;
//   - the response is missing a mandatory element;
//   - the HMAC computed with the hash function alg and the secret key does not match the response HMAC.
func (r *ExtenderResp) Verify(alg hash.Algorithm, key string) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if err := r.Err(); err != nil {
		return err
	}
	if r.header == nil {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Extender response must have a Header.")
	}
	if r.extResp == nil && r.confResp == nil {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Extender response must have a payload.")
	}

	raw, err := r.Encode()
	if err != nil {
		return err
	}
	return verifyMAC(raw, r.mac, alg, []byte(key), "Extender response")
}

// UpdateHMAC computes the response HMAC with the hash function alg and the shared secret key.
func (r *ExtenderResp) UpdateHMAC(alg hash.Algorithm, key string) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	tmpl, err := extenderRespTemplateOf(r.version)
	if err != nil {
		return err
	}
	r.raw = nil
	return updateMAC(r, tmpl, &r.mac, alg, []byte(key))
}

// Encode returns the serialized extender response. For a parsed response the received bytes are returned.
func (r *ExtenderResp) Encode() ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.raw != nil {
		return r.raw, nil
	}
	tmpl, err := extenderRespTemplateOf(r.version)
	if err != nil {
		return nil, err
	}
	return tlv.Serialize(r, tmpl)
}

// Clone returns a deep copy of the response. The header and HMAC are not copied.
func (r *ExtenderResp) Clone() (*ExtenderResp, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var (
		tmp = &ExtenderResp{version: r.version}
		err error
	)
	if r.extResp != nil {
		respTmpl := extRespTemplate
		if r.version == V1 {
			respTmpl = extRespV1Template
		}
		if tmp.extResp, err = tlv.DeepCopy(r.extResp, respTmpl); err != nil {
			return nil, err
		}
	}
	if r.extErr != nil {
		if tmp.extErr, err = tlv.DeepCopy(r.extErr, errorTemplate); err != nil {
			return nil, err
		}
	}
	if r.confResp != nil {
		if tmp.confResp, err = tlv.DeepCopy(r.confResp, configTemplate); err != nil {
			return nil, err
		}
	}
	return tmp, nil
}

// RequestID returns the identifier of the request the response belongs to.
func (r *ExtResp) RequestID() (uint64, error) {
	if r == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.id == nil {
		return 0, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing request ID.")
	}
	return *r.id, nil
}

// Status returns the response status code. In case the status is not 0, see ErrorMsg for the description.
func (r *ExtResp) Status() (uint64, error) {
	if r == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if r.status == nil {
		return 0, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing response status.")
	}
	return *r.status, nil
}

// ErrorMsg returns the response error message, or empty string if not present.
func (r *ExtResp) ErrorMsg() (string, error) {
	if r == nil {
		return "", errors.New(errors.KsiInvalidArgumentError)
	}
	if r.errorMsg == nil {
		return "", nil
	}
	return *r.errorMsg, nil
}

// Err returns the extending response error if present, otherwise nil is returned.
func (r *ExtResp) Err() error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	return responseErr(r.status, r.errorMsg, extenderStatusToError, "extending response")
}

// CalendarLast returns the aggregation time of the newest calendar record the extender has.
func (r *ExtResp) CalendarLast() (uint64, error) {
	if r == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if err := r.Err(); err != nil {
		return 0, errors.KsiErr(err).AppendMessage("Extending response is invalid.")
	}
	return valueOf(r.calLast), nil
}

// CalendarChain returns the extended calendar hash chain.
func (r *ExtResp) CalendarChain() (*CalendarChain, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if err := r.Err(); err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Extending response is invalid.")
	}
	if r.calChain == nil {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent extending response.").
			AppendMessage("Missing calendar hash chain.")
	}
	return r.calChain, nil
}
