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

// Package tlv implements the KSI Type-Length-Value encoding and the template engine that maps protocol objects to
// TLV trees and back.
//
// A TLV node is either raw (the value is an opaque byte string) or composite (the value is a list of nested TLVs).
// Raw nodes are reinterpreted as composite on the first call to (Tlv).Nested(); the parsed children are memoized
// and the original value bytes are kept, so that re-serialization of unmodified input is byte-identical.
//
// Wire format of the header:
//
//	TLV8:  [16=0|N|F|tag(5 bits)] [length(8 bits)]
//	TLV16: [16=1|N|F|tag hi(5 bits)] [tag lo(8 bits)] [length hi] [length lo]
package tlv

import (
	"fmt"
	"io"
	"strings"

	"github.com/guardtime/ksicore/errors"
)

// HeaderMask holds mask values for different bits in TLV header.
type HeaderMask byte

const (
	// HeaderFlag16 is mask for 16bit flag.
	HeaderFlag16 = HeaderMask(0x80)
	// HeaderFlagN is mask for Non-Critical flag.
	HeaderFlagN = HeaderMask(0x40)
	// HeaderFlagF is mask for Forward Unknown flag.
	HeaderFlagF = HeaderMask(0x20)
	// HeaderTypeMask is mask for type in the first header byte.
	HeaderTypeMask = HeaderMask(0x1f)
)

const (
	// MaxValueLength is the maximum size of the TLV value.
	MaxValueLength = 0xffff
	// MaxHeaderSize is the maximum size of the TLV header.
	MaxHeaderSize = 4
	// MaxBufferSize is the maximum size of the buffer needed to store any TLV.
	MaxBufferSize = MaxHeaderSize + MaxValueLength
	// MaxTagValue is the maximum size of the TLV tag value.
	MaxTagValue = 0x1fff
	// MaxTag8Value is the largest tag that fits into TLV8 header.
	MaxTag8Value = 0x1f
)

type variant byte

const (
	variantRaw variant = iota
	variantComposite
)

// Tlv holds a Type-Length-Value encoded element.
type Tlv struct {
	NonCritical    bool   // If set, this TLV is non-critical.
	ForwardUnknown bool   // If set together with NonCritical, this TLV may be forwarded by receiver.
	Is16           bool   // If set, TLV16 header is used even if TLV8 would suffice.
	Tag            uint16 // TLV type.
	// Offset is the absolute position of the header in the parsed stream. Zero for constructed elements.
	Offset int

	kind variant
	// value holds the raw value; for a composite node it caches the original input bytes until modified.
	value  []byte
	nested []*Tlv
}

// Constructor is constructor for TLV.
// See ConstructEmpty, ConstructRaw, ConstructComposite, ConstructFromReader and ConstructFromSlice.
type Constructor func(*Tlv) error

// NewTlv is a constructor for a TLV object.
func NewTlv(constructor Constructor) (*Tlv, error) {
	if constructor == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	t := &Tlv{}
	if err := constructor(t); err != nil {
		return nil, err
	}
	return t, nil
}

func checkHeader(tag uint16, valueLen int) error {
	if tag > MaxTagValue {
		return errors.New(errors.KsiInvalidArgumentError).
			AppendMessage(fmt.Sprintf("TLV tag out of range is 0x%x, but 0x%x is maximum.", tag, MaxTagValue))
	}
	if valueLen > MaxValueLength {
		return errors.New(errors.KsiBufferOverflow).
			AppendMessage(fmt.Sprintf("TLV value length %d exceeds maximum %d.", valueLen, MaxValueLength))
	}
	return nil
}

// ConstructEmpty is an option for constructing an empty raw TLV with initialized header values.
func ConstructEmpty(tag uint16, nc bool, fu bool) Constructor {
	return func(t *Tlv) error {
		if err := checkHeader(tag, 0); err != nil {
			return err
		}
		t.Tag = tag
		t.NonCritical = nc
		t.ForwardUnknown = fu
		t.kind = variantRaw
		return nil
	}
}

// ConstructRaw is an option for constructing a raw TLV. The value is copied.
func ConstructRaw(tag uint16, nc bool, fu bool, value []byte) Constructor {
	return func(t *Tlv) error {
		if err := ConstructEmpty(tag, nc, fu)(t); err != nil {
			return err
		}
		return t.SetValue(value)
	}
}

// ConstructComposite is an option for constructing a composite TLV with the given children.
func ConstructComposite(tag uint16, nc bool, fu bool, nested ...*Tlv) Constructor {
	return func(t *Tlv) error {
		if err := ConstructEmpty(tag, nc, fu)(t); err != nil {
			return err
		}
		t.kind = variantComposite
		for _, n := range nested {
			if err := t.AppendNested(n); err != nil {
				return err
			}
		}
		return nil
	}
}

func parseHeader(b []byte) (tag uint16, nc, fu, is16 bool, hdrLen, valueLen int, err error) {
	if len(b) == 0 {
		err = errors.New(errors.KsiInvalidFormatError).AppendMessage("The stream is empty.")
		return
	}
	is16 = b[0]&byte(HeaderFlag16) != 0
	nc = b[0]&byte(HeaderFlagN) != 0
	fu = b[0]&byte(HeaderFlagF) != 0
	tag = uint16(b[0] & byte(HeaderTypeMask))

	if is16 {
		if len(b) < 4 {
			err = errors.New(errors.KsiInvalidFormatError).AppendMessage("Not enough bytes for TLV16 header.")
			return
		}
		tag = tag<<8 | uint16(b[1])
		valueLen = int(b[2])<<8 | int(b[3])
		hdrLen = 4
	} else {
		if len(b) < 2 {
			err = errors.New(errors.KsiInvalidFormatError).AppendMessage("Not enough bytes for TLV header.")
			return
		}
		valueLen = int(b[1])
		hdrLen = 2
	}
	return
}

// ConstructFromSlice is an option for constructing TLV object from TLV binary slice. The input must contain exactly
// one TLV; the value is not copied.
func ConstructFromSlice(b []byte) Constructor {
	return func(t *Tlv) error {
		n, err := t.fromSlice(b, 0)
		if err != nil {
			return err
		}
		if n != len(b) {
			return errors.New(errors.KsiInvalidFormatError).
				AppendMessage(fmt.Sprintf("Trailing %d bytes after TLV.", len(b)-n))
		}
		return nil
	}
}

func (t *Tlv) fromSlice(b []byte, offset int) (int, error) {
	tag, nc, fu, is16, hdrLen, valueLen, err := parseHeader(b)
	if err != nil {
		return 0, err
	}
	if hdrLen+valueLen > len(b) {
		return 0, errors.New(errors.KsiInvalidFormatError).AppendMessage(
			fmt.Sprintf("Not enough bytes for TLV value. Expecting %d but have only %d.", valueLen, len(b)-hdrLen))
	}

	*t = Tlv{
		Tag:            tag,
		NonCritical:    nc,
		ForwardUnknown: fu,
		Is16:           is16,
		Offset:         offset,
		kind:           variantRaw,
		value:          b[hdrLen : hdrLen+valueLen : hdrLen+valueLen],
	}
	return hdrLen + valueLen, nil
}

// ConstructFromReader is an option for constructing TLV object from TLV binary stream.
func ConstructFromReader(r io.Reader) Constructor {
	return func(t *Tlv) error {
		if r == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}

		hdr := make([]byte, 4)
		if _, err := io.ReadFull(r, hdr[:2]); err != nil {
			return errors.New(errors.KsiIoError).SetExtError(err).AppendMessage("Unable to read TLV header.")
		}
		hdrLen := 2
		if hdr[0]&byte(HeaderFlag16) != 0 {
			if _, err := io.ReadFull(r, hdr[2:]); err != nil {
				return errors.New(errors.KsiIoError).SetExtError(err).AppendMessage("Unable to read TLV16 header.")
			}
			hdrLen = 4
		}
		_, _, _, _, _, valueLen, err := parseHeader(hdr[:hdrLen])
		if err != nil {
			return err
		}

		raw := make([]byte, hdrLen+valueLen)
		copy(raw, hdr[:hdrLen])
		if _, err := io.ReadFull(r, raw[hdrLen:]); err != nil {
			return errors.New(errors.KsiIoError).SetExtError(err).AppendMessage("Unable to read TLV data.")
		}
		_, err = t.fromSlice(raw, 0)
		return err
	}
}

// ParseStream parses a concatenation of complete TLVs. The offsets of the returned elements are relative to the
// beginning of b, increased by base.
func ParseStream(b []byte, base int) ([]*Tlv, error) {
	var (
		list []*Tlv
		pos  int
	)
	for pos < len(b) {
		t := &Tlv{}
		n, err := t.fromSlice(b[pos:], base+pos)
		if err != nil {
			return nil, errors.KsiErr(err).AppendMessage(fmt.Sprintf("Unable to parse TLV at offset %d.", base+pos))
		}
		list = append(list, t)
		pos += n
	}
	return list, nil
}

// IsComposite reports whether the receiver holds a nested list.
func (t *Tlv) IsComposite() bool {
	return t != nil && t.kind == variantComposite
}

// HeaderLen returns the serialized header length.
func (t *Tlv) HeaderLen() int {
	if t == nil {
		return 0
	}
	if t.Is16 || t.Tag > MaxTag8Value || t.Length() > 0xff {
		return 4
	}
	return 2
}

// Length returns the length of the value part.
func (t *Tlv) Length() int {
	if t == nil {
		return 0
	}
	if t.kind == variantRaw || t.value != nil {
		return len(t.value)
	}
	n := 0
	for _, c := range t.nested {
		n += c.HeaderLen() + c.Length()
	}
	return n
}

// Value returns the value of the TLV. For a composite TLV built in memory, the children are serialized.
func (t *Tlv) Value() ([]byte, error) {
	if t == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if t.kind == variantRaw || t.value != nil {
		return t.value, nil
	}
	raw, err := t.Bytes()
	if err != nil {
		return nil, err
	}
	return raw[t.HeaderLen():], nil
}

// SetValue replaces the value of the TLV and turns it into a raw TLV. The value is copied.
func (t *Tlv) SetValue(value []byte) error {
	if t == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if err := checkHeader(t.Tag, len(value)); err != nil {
		return err
	}
	t.kind = variantRaw
	t.nested = nil
	t.value = append(make([]byte, 0, len(value)), value...)
	return nil
}

// Nested returns the list of nested elements. A raw TLV is parsed as a concatenation of TLVs on the first call and
// the result is memoized. Returns KsiInvalidFormatError if the value can not be interpreted as nested TLVs.
//
// The original value bytes are kept for serialization until the list is modified via AppendNested. Changes made
// directly to the returned children are not reflected in (Tlv).Bytes() of the parent.
func (t *Tlv) Nested() ([]*Tlv, error) {
	if t == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if t.kind == variantComposite {
		return t.nested, nil
	}

	nested, err := ParseStream(t.value, t.Offset+t.HeaderLen())
	if err != nil {
		return nil, errors.New(errors.KsiInvalidFormatError).SetExtError(err).
			AppendMessage(fmt.Sprintf("Unable to interpret TLV[0x%x] as nested structure.", t.Tag))
	}
	t.kind = variantComposite
	t.nested = nested
	return t.nested, nil
}

// AppendNested adds a child element. A raw TLV is cast to composite first.
func (t *Tlv) AppendNested(c *Tlv) error {
	if t == nil || c == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if t.kind == variantRaw && len(t.value) != 0 {
		if _, err := t.Nested(); err != nil {
			return err
		}
	}
	if err := checkHeader(t.Tag, t.Length()+c.HeaderLen()+c.Length()); err != nil {
		return err
	}
	t.kind = variantComposite
	t.nested = append(t.nested, c)
	// The cached input no longer reflects the children.
	t.value = nil
	return nil
}

// Bytes returns the serialized TLV.
func (t *Tlv) Bytes() ([]byte, error) {
	if t == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	enc := NewEncoder()
	if _, err := enc.PrependTlv(t); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// Clone returns a deep copy of the receiver.
func (t *Tlv) Clone() *Tlv {
	if t == nil {
		return nil
	}
	tmp := *t
	if t.value != nil {
		tmp.value = append(make([]byte, 0, len(t.value)), t.value...)
	}
	if t.nested != nil {
		tmp.nested = make([]*Tlv, len(t.nested))
		for i, c := range t.nested {
			tmp.nested[i] = c.Clone()
		}
	}
	return &tmp
}

// Extract returns the first descendant matching the tag path.
func (t *Tlv) Extract(path ...uint16) (*Tlv, error) {
	if t == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if len(path) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("TLV path must be specified.")
	}

	tmp := t
	for i, tag := range path {
		nested, err := tmp.Nested()
		if err != nil {
			return nil, err
		}

		var found *Tlv
		for _, n := range nested {
			if n.Tag == tag {
				found = n
				break
			}
		}
		if found == nil {
			return nil, errors.New(errors.KsiInvalidFormatError).
				AppendMessage(fmt.Sprintf("TLV %s not found.", tagPathString(path[:i+1])))
		}
		tmp = found
	}
	return tmp, nil
}

func tagPathString(path []uint16) string {
	tmp := make([]string, len(path))
	for i, v := range path {
		tmp[i] = fmt.Sprintf("[0x%02x]", v)
	}
	return strings.Join(tmp, "->")
}

// String implements Stringer interface.
func (t *Tlv) String() string {
	return t.string("  ", 0)
}

func (t *Tlv) string(prefix string, depth int) string {
	if t == nil {
		return ""
	}

	var flags []string
	if t.NonCritical {
		flags = append(flags, "N")
	}
	if t.ForwardUnknown {
		flags = append(flags, "F")
	}
	fl := ""
	if len(flags) > 0 {
		fl = "," + strings.Join(flags, ",")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%sTLV[0x%x%s]: ", strings.Repeat(prefix, depth), t.Tag, fl))
	if t.kind == variantComposite {
		b.WriteString("\n")
		for _, c := range t.nested {
			b.WriteString(c.string(prefix, depth+1))
		}
	} else {
		b.WriteString(fmt.Sprintf("%x\n", t.value))
	}
	return b.String()
}

// IsConsistent verifies whether the input stream starts with a complete TLV structure.
func IsConsistent(b []byte) bool {
	_, _, _, _, hdrLen, valueLen, err := parseHeader(b)
	return err == nil && hdrLen+valueLen <= len(b)
}
