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
	"encoding/hex"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/tlv"
)

const (
	legacyIDHeaderHigh byte = iota
	legacyIDHeaderLow
	legacyIDStrLen
	legacyIDStr
)

const (
	legacyIDRawLen  = 29
	legacyIDMaxStr  = 25
	legacyIDHdrHigh = 0x03
	legacyIDHdrLow  = 0x00
)

// NewLegacyID returns a legacy ID for the given client identifier. The identifier must not exceed 25 octets.
func NewLegacyID(clientID string) (*LegacyID, error) {
	if len(clientID) == 0 || len(clientID) > legacyIDMaxStr {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Legacy ID string length mismatch.")
	}

	value := make([]byte, legacyIDRawLen)
	value[legacyIDHeaderHigh] = legacyIDHdrHigh
	value[legacyIDHeaderLow] = legacyIDHdrLow
	value[legacyIDStrLen] = byte(len(clientID))
	copy(value[legacyIDStr:], clientID)

	raw, err := tlv.NewTlv(tlv.ConstructRaw(tagLegacyID, false, false, value))
	if err != nil {
		return nil, err
	}
	return &LegacyID{str: clientID, rawTlv: raw}, nil
}

// ClientID returns string representation of the legacy ID octet string.
func (l *LegacyID) ClientID() (string, error) {
	if l == nil {
		return "", errors.New(errors.KsiInvalidArgumentError)
	}
	return l.str, nil
}

// Bytes returns raw structure.
//
//	+------+------+---------+------------------+------------------+
//	|    Header   |  StrLen |    UTF8 string   |      Padding     |
//	+------+------+---------+------------------+------------------+
//	| 0x03 | 0x00 |    x    |        ...       |0x00{1..25-StrLen}|
//	+------+------+---------+------------------+------------------+
//
// For example, the name 'Test' is encoded as the sequence:
//
//	03 00 04 54=T 65=e 73=s 74=t 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00
func (l *LegacyID) Bytes() ([]byte, error) {
	if l == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if l.rawTlv == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing legacy ID base TLV element.")
	}
	return l.rawTlv.Value()
}

func legacyIDFromTlv(t *tlv.Tlv) (*LegacyID, error) {
	value, err := t.Value()
	if err != nil {
		return nil, err
	}

	// Verify length.
	if len(value) != legacyIDRawLen {
		log.Debug("Legacy ID data length mismatch: ", hex.EncodeToString(value))
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Legacy ID data length mismatch.")
	}
	// Verify header.
	if value[legacyIDHeaderHigh] != legacyIDHdrHigh || value[legacyIDHeaderLow] != legacyIDHdrLow {
		log.Debug("Legacy ID header mismatch: ", hex.EncodeToString(value))
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Legacy ID header mismatch.")
	}
	// Verify string length (at most 25 octets).
	strLen := int(value[legacyIDStrLen])
	if strLen > legacyIDMaxStr {
		log.Debug("Legacy ID string length mismatch: ", hex.EncodeToString(value))
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Legacy ID string length mismatch.")
	}
	// Verify padding.
	for _, b := range value[int(legacyIDStr)+strLen:] {
		if b != 0 {
			log.Debug("Legacy ID padding mismatch: ", hex.EncodeToString(value))
			return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Legacy ID padding mismatch.")
		}
	}

	return &LegacyID{
		str:    string(value[legacyIDStr : int(legacyIDStr)+strLen]),
		rawTlv: t.Clone(),
	}, nil
}

func legacyIDToTlv(_ uint16, l *LegacyID) (*tlv.Tlv, error) {
	if l.rawTlv == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing legacy ID base TLV element.")
	}
	return l.rawTlv.Clone(), nil
}
