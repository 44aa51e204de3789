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

package tlv

import (
	"bytes"
	"fmt"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
)

func (t *Tlv) rawValue() ([]byte, error) {
	if t == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if t.kind == variantComposite && t.value == nil {
		return nil, errors.New(errors.KsiTlvPayloadTypeMismatch).
			AppendMessage(fmt.Sprintf("TLV[0x%x] is a composite element.", t.Tag))
	}
	return t.value, nil
}

// Uint64E is getter for uint64. If TLV is empty, 0 is returned. If TLV value is larger than 8 bytes, error is returned.
func (t *Tlv) Uint64E() (uint64, error) {
	value, err := t.rawValue()
	if err != nil {
		return 0, err
	}
	if len(value) > 8 {
		return 0, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("TLV value for 64bit integer is too large (%x).", value))
	}

	var tmp uint64
	for _, b := range value {
		tmp = tmp<<8 | uint64(b)
	}
	return tmp, nil
}

// Uint64 is getter for uint64. If TLV is empty or TLV value is larger than 8 bytes, error is returned.
func (t *Tlv) Uint64() (uint64, error) {
	value, err := t.rawValue()
	if err != nil {
		return 0, err
	}
	if len(value) == 0 {
		return 0, errors.New(errors.KsiInvalidFormatError).AppendMessage("TLV value for 64bit integer is empty.")
	}
	return t.Uint64E()
}

// Uint8E is getter for uint8. If TLV is empty, 0 is returned. If TLV value is larger than 1 byte, error is returned.
func (t *Tlv) Uint8E() (uint64, error) {
	value, err := t.rawValue()
	if err != nil {
		return 0, err
	}
	switch len(value) {
	case 0:
		return 0, nil
	case 1:
		return uint64(value[0]), nil
	default:
		return 0, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("TLV value for 8bit integer is too large (%x).", value))
	}
}

// Uint8 is getter for uint8. If TLV is empty or TLV value is larger than 1 byte, error is returned.
func (t *Tlv) Uint8() (uint64, error) {
	value, err := t.rawValue()
	if err != nil {
		return 0, err
	}
	if len(value) == 0 {
		return 0, errors.New(errors.KsiInvalidFormatError).AppendMessage("TLV value for 8bit integer is empty.")
	}
	return t.Uint8E()
}

// Utf8E is getter for string. TLV value must end with 0 octet that is left out from returned string.
// If TLV is empty, empty string is returned.
func (t *Tlv) Utf8E() (string, error) {
	value, err := t.rawValue()
	if err != nil {
		return "", err
	}
	n := len(value)
	if n == 0 {
		return "", nil
	}
	if value[n-1] != 0 {
		return "", errors.New(errors.KsiInvalidFormatError).AppendMessage("String must end with 0 octet.")
	}
	if bytes.IndexByte(value[:n-1], 0) >= 0 {
		return "", errors.New(errors.KsiInvalidFormatError).AppendMessage("String contains embedded 0 octet.")
	}
	return string(value[:n-1]), nil
}

// Utf8 is getter for string. TLV value must end with 0 octet that is left out from returned string.
// If TLV is empty, error is returned.
func (t *Tlv) Utf8() (string, error) {
	value, err := t.rawValue()
	if err != nil {
		return "", err
	}
	if len(value) == 0 {
		return "", errors.New(errors.KsiInvalidFormatError).AppendMessage("TLV value for string is empty.")
	}
	return t.Utf8E()
}

// Binary is getter for TLV value. The returned slice is a copy.
func (t *Tlv) Binary() ([]byte, error) {
	value, err := t.rawValue()
	if err != nil {
		return nil, err
	}
	return append([]byte{}, value...), nil
}

// Imprint is getter for hash imprint value. If imprint format is invalid, error is returned.
func (t *Tlv) Imprint() (hash.Imprint, error) {
	value, err := t.rawValue()
	if err != nil {
		return nil, err
	}
	imprint := hash.Imprint(value)
	if !imprint.IsValid() {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("TLV value does not contain a valid imprint (%x).", value))
	}
	return append(hash.Imprint{}, imprint...), nil
}

// DataHash is getter for a data hash. The raw value is interpreted as an imprint.
func (t *Tlv) DataHash() (*hash.DataHash, error) {
	value, err := t.rawValue()
	if err != nil {
		return nil, err
	}
	h, err := hash.FromImprint(value)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage(fmt.Sprintf("TLV[0x%x] does not contain a valid imprint.", t.Tag))
	}
	return h, nil
}

// NewUint64 returns a raw TLV holding the minimal big-endian encoding of value. Zero is encoded as an empty value.
func NewUint64(tag uint16, value uint64) (*Tlv, error) {
	enc := NewEncoder()
	if _, err := enc.PrependUint64E(value); err != nil {
		return nil, err
	}
	return NewTlv(ConstructRaw(tag, false, false, enc.Bytes()))
}

// NewUint8 returns a raw TLV holding a single octet integer. Zero is encoded as an empty value.
func NewUint8(tag uint16, value uint64) (*Tlv, error) {
	enc := NewEncoder()
	if _, err := enc.PrependUint8E(value); err != nil {
		return nil, err
	}
	return NewTlv(ConstructRaw(tag, false, false, enc.Bytes()))
}

// NewUtf8 returns a raw TLV holding a NUL terminated string.
func NewUtf8(tag uint16, value string) (*Tlv, error) {
	if bytes.IndexByte([]byte(value), 0) >= 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("String contains embedded 0 octet.")
	}
	enc := NewEncoder()
	if _, err := enc.PrependUtf8(value); err != nil {
		return nil, err
	}
	return NewTlv(ConstructRaw(tag, false, false, enc.Bytes()))
}

// NewBinary returns a raw TLV holding a copy of value.
func NewBinary(tag uint16, value []byte) (*Tlv, error) {
	return NewTlv(ConstructRaw(tag, false, false, value))
}

// NewImprint returns a raw TLV holding the imprint of h.
func NewImprint(tag uint16, h *hash.DataHash) (*Tlv, error) {
	if h == nil || h.Len() == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing data hash.")
	}
	return NewTlv(ConstructRaw(tag, false, false, h.Imprint()))
}
