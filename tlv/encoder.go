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
	"fmt"

	"github.com/guardtime/ksicore/errors"
)

// Encoder keeps the TLV serialization state.
//
// Serialization of TLV structures is performed from the most inner structure up to the root TLV: every Prepend*
// call writes in front of the data written so far.
type Encoder struct {
	buffer []byte
	// Index of the first used byte.
	pos int
}

// NewEncoder creates memory buffer ready to store serialized TLV.
func NewEncoder() *Encoder {
	return &Encoder{
		buffer: make([]byte, MaxBufferSize),
		pos:    MaxBufferSize,
	}
}

// Bytes returns current serialized state of the encoder.
func (e *Encoder) Bytes() []byte {
	if e == nil {
		return nil
	}
	return e.buffer[e.pos:]
}

// Len returns the number of bytes serialized so far.
func (e *Encoder) Len() int {
	if e == nil {
		return 0
	}
	return len(e.buffer) - e.pos
}

func (e *Encoder) reserve(n int, what string) error {
	if e == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if n > e.pos {
		return errors.New(errors.KsiBufferOverflow).
			AppendMessage(fmt.Sprintf("Buffer to serialize %s is too small.", what))
	}
	e.pos -= n
	return nil
}

// PrependUint64 serializes value as big-endian using the minimal number of octets. Zero is serialized as a single
// zero octet.
func (e *Encoder) PrependUint64(value uint64) (int, error) {
	n := 1
	for v := value >> 8; v > 0; v >>= 8 {
		n++
	}
	if err := e.reserve(n, "uint64"); err != nil {
		return 0, err
	}
	for i := n - 1; i >= 0; i-- {
		e.buffer[e.pos+i] = byte(value)
		value >>= 8
	}
	return n, nil
}

// PrependUint64E is like PrependUint64, but zero is serialized as an empty value.
func (e *Encoder) PrependUint64E(value uint64) (int, error) {
	if value == 0 {
		return 0, nil
	}
	return e.PrependUint64(value)
}

// PrependUint8 serializes a single octet integer. Note that input is still uint64 but its size is limited with 1 byte.
func (e *Encoder) PrependUint8(value uint64) (int, error) {
	if value > 0xff {
		return 0, errors.New(errors.KsiInvalidFormatError).AppendMessage(
			fmt.Sprintf("Value for 8bit integer out of boundaries (%v).", value))
	}
	if err := e.reserve(1, "uint8"); err != nil {
		return 0, err
	}
	e.buffer[e.pos] = byte(value)
	return 1, nil
}

// PrependUint8E is like PrependUint8, but zero is serialized as an empty value.
func (e *Encoder) PrependUint8E(value uint64) (int, error) {
	if value == 0 {
		return 0, nil
	}
	return e.PrependUint8(value)
}

// PrependUtf8 serializes a NUL terminated string.
func (e *Encoder) PrependUtf8(str string) (int, error) {
	if err := e.reserve(len(str)+1, "string"); err != nil {
		return 0, err
	}
	copy(e.buffer[e.pos:], str)
	e.buffer[e.pos+len(str)] = 0
	return len(str) + 1, nil
}

// PrependBinary serializes a binary slice verbatim.
func (e *Encoder) PrependBinary(bin []byte) (int, error) {
	if err := e.reserve(len(bin), "binary"); err != nil {
		return 0, err
	}
	copy(e.buffer[e.pos:], bin)
	return len(bin), nil
}

// PrependHeader serializes a TLV header. TLV16 header is used when force16 is set, or when the tag or the value
// length does not fit into TLV8 header.
func (e *Encoder) PrependHeader(tag uint16, isNonCritical, isForwardUnknown, force16 bool, valueLen int) (int, error) {
	if err := checkHeader(tag, valueLen); err != nil {
		return 0, err
	}

	hdrLen := 2
	if force16 || tag > MaxTag8Value || valueLen > 0xff {
		hdrLen = 4
		if err := e.reserve(4, "TLV header"); err != nil {
			return 0, err
		}
		e.buffer[e.pos] = byte(tag>>8)&byte(HeaderTypeMask) | byte(HeaderFlag16)
		e.buffer[e.pos+1] = byte(tag)
		e.buffer[e.pos+2] = byte(valueLen >> 8)
		e.buffer[e.pos+3] = byte(valueLen)
	} else {
		if err := e.reserve(2, "TLV header"); err != nil {
			return 0, err
		}
		e.buffer[e.pos] = byte(tag) & byte(HeaderTypeMask)
		e.buffer[e.pos+1] = byte(valueLen)
	}

	if isNonCritical {
		e.buffer[e.pos] |= byte(HeaderFlagN)
	}
	if isForwardUnknown {
		e.buffer[e.pos] |= byte(HeaderFlagF)
	}
	return hdrLen, nil
}

// PrependTlv serializes the whole TLV tree. Returns the number of bytes written.
func (e *Encoder) PrependTlv(t *Tlv) (int, error) {
	if e == nil || t == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}

	start := e.Len()
	if t.kind == variantRaw || t.value != nil {
		if _, err := e.PrependBinary(t.value); err != nil {
			return 0, err
		}
	} else {
		for i := len(t.nested) - 1; i >= 0; i-- {
			if _, err := e.PrependTlv(t.nested[i]); err != nil {
				return 0, err
			}
		}
	}

	if _, err := e.PrependHeader(t.Tag, t.NonCritical, t.ForwardUnknown, t.Is16, e.Len()-start); err != nil {
		return 0, errors.KsiErr(err).AppendMessage(fmt.Sprintf("Unable to serialize TLV[0x%x].", t.Tag))
	}
	return e.Len() - start, nil
}
