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
	"strconv"
	"strings"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/tlv"
)

// TagMetaDataPadding is the tag of the metadata padding element.
const TagMetaDataPadding = 0x1e

// NewMetaData returns a new metadata instance. Additional value can be applied via optionals.
// The returned metadata is padded, so that its encoded value can not be mistaken for a hash imprint.
func NewMetaData(clientID string, optionals ...MetaDataOptional) (*MetaData, error) {
	if clientID == "" {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Metadata client id must be provided.")
	}
	tmp := metaData{obj: MetaData{
		clientID: &clientID,
	}}

	for _, setter := range optionals {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(&tmp); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Unable to initialize metadata.")
		}
	}

	rawTlv, err := tmp.obj.EncodeToTlv()
	if err != nil {
		return nil, err
	}
	tmp.obj.rawTlv = rawTlv

	return &tmp.obj, nil
}

// MetaDataOptional is functional optional value setter.
type (
	MetaDataOptional func(*metaData) error

	metaData struct {
		obj MetaData
	}
)

// MetaDataMachineID is setter for the optional machine ID value.
func MetaDataMachineID(id string) MetaDataOptional {
	return func(m *metaData) error {
		if m == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing metadata base object.")
		}
		m.obj.machineID = &id
		return nil
	}
}

// MetaDataSequenceNr is setter for the optional sequence number value.
func MetaDataSequenceNr(n uint64) MetaDataOptional {
	return func(m *metaData) error {
		if m == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing metadata base object.")
		}
		m.obj.sequenceNr = &n
		return nil
	}
}

// MetaDataReqTime is setter for the optional request time value.
func MetaDataReqTime(t uint64) MetaDataOptional {
	return func(m *metaData) error {
		if m == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing metadata base object.")
		}
		m.obj.reqTime = &t
		return nil
	}
}

// EncodeToTlv returns the metadata in TLV representation. A parsed metadata is returned as it was received.
func (m *MetaData) EncodeToTlv() (*tlv.Tlv, error) {
	if m == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if m.rawTlv != nil {
		return m.rawTlv.Clone(), nil
	}

	m.padding = nil
	t, err := tlv.Construct(m, metaDataTemplate)
	if err != nil {
		return nil, err
	}
	value, err := t.Value()
	if err != nil {
		return nil, err
	}

	// Update padding, so that the value length is even.
	if len(value)%2 == 0 {
		m.padding = []byte{0x01, 0x01}
	} else {
		m.padding = []byte{0x01}
	}
	return tlv.Construct(m, metaDataTemplate)
}

// Encode returns the metadata in binary TLV representation.
func (m *MetaData) Encode() ([]byte, error) {
	t, err := m.EncodeToTlv()
	if err != nil {
		return nil, err
	}
	return t.Bytes()
}

// value returns the metadata TLV value, which is the sibling data in the hash chain computation.
func (m *MetaData) value() ([]byte, error) {
	t, err := m.EncodeToTlv()
	if err != nil {
		return nil, err
	}
	return t.Value()
}

// ClientID returns a (human-readable) textual representation of client identity.
func (m *MetaData) ClientID() (string, error) {
	if m == nil || m.clientID == nil {
		return "", errors.New(errors.KsiInvalidArgumentError)
	}
	return *m.clientID, nil
}

// MachineID returns a (human-readable) identifier of the machine that requested the link structure.
// If not present, an empty string is returned.
func (m *MetaData) MachineID() (string, error) {
	if m == nil {
		return "", errors.New(errors.KsiInvalidArgumentError)
	}
	if m.machineID == nil {
		return "", nil
	}
	return *m.machineID, nil
}

// SequenceNr returns a local sequence number of a request assigned by the machine that created the link.
// If not present, 0 is returned.
func (m *MetaData) SequenceNr() (uint64, error) {
	if m == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if m.sequenceNr == nil {
		return 0, nil
	}
	return *m.sequenceNr, nil
}

// ReqTime returns the time when the server received the request from the client.
// If not present, 0 is returned.
func (m *MetaData) ReqTime() (uint64, error) {
	if m == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if m.reqTime == nil {
		return 0, nil
	}
	return *m.reqTime, nil
}

// HasPadding returns true in case the metadata structure contains padding bytes, otherwise false.
func (m *MetaData) HasPadding() bool {
	if m == nil {
		return false
	}
	return m.padding != nil
}

func (m *MetaData) String() string {
	if m == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Client ID: ")
	if m.clientID != nil {
		b.WriteString(*m.clientID)
	} else {
		b.WriteString("<INVALID>")
	}
	if m.machineID != nil {
		b.WriteString("; Machine ID: ")
		b.WriteString(*m.machineID)
	}
	if m.sequenceNr != nil {
		b.WriteString("; Sequence nr: ")
		b.WriteString(strconv.FormatUint(*m.sequenceNr, 10))
	}
	if m.reqTime != nil {
		b.WriteString("; Request time: ")
		b.WriteString(strconv.FormatUint(*m.reqTime, 10))
	}
	return b.String()
}

func metaDataFromTlv(t *tlv.Tlv) (*MetaData, error) {
	m, err := tlv.ParseTlv[MetaData](t, metaDataTemplate)
	if err != nil {
		return nil, err
	}
	if m.padding != nil {
		if err := verifyMetaDataPadding(t); err != nil {
			return nil, err
		}
	}
	m.rawTlv = t.Clone()
	return m, nil
}

func metaDataToTlv(_ uint16, m *MetaData) (*tlv.Tlv, error) {
	return m.EncodeToTlv()
}

// verifyMetaDataPadding checks that the padding is the first element, flagged as non-critical and forward, and
// that it makes the metadata value length even.
func verifyMetaDataPadding(t *tlv.Tlv) error {
	nested, err := t.Nested()
	if err != nil {
		return err
	}
	pad := nested[0]
	if pad.Tag != TagMetaDataPadding {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Metadata padding is not the first element.")
	}
	if !pad.NonCritical || !pad.ForwardUnknown {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Metadata padding flags mismatch.")
	}
	value, err := pad.Value()
	if err != nil {
		return err
	}
	switch {
	case len(value) == 1 && value[0] == 0x01:
	case len(value) == 2 && value[0] == 0x01 && value[1] == 0x01:
	default:
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Metadata padding value mismatch.")
	}
	if t.Length()%2 != 0 {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Metadata padding does not align the value.")
	}
	return nil
}
