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
	"strings"

	"github.com/guardtime/ksicore/errors"
)

// Flag holds template field constraints.
type Flag uint16

const (
	// Mandatory field must be present.
	Mandatory Flag = 1 << iota
	// LeastOneG0 field belongs to group 0, of which at least one member must be present.
	LeastOneG0
	// LeastOneG1 field belongs to group 1, of which at least one member must be present.
	LeastOneG1
	// MostOneG0 field belongs to group 0, of which at most one member may be present.
	MostOneG0
	// MostOneG1 field belongs to group 1, of which at most one member may be present.
	MostOneG1
	// NoSerialize field is only populated during extraction.
	NoSerialize
	// NonCritical field is serialized with the N flag.
	NonCritical
	// Forward field is serialized with the F flag.
	Forward
	// MoreDefs makes the extractor continue matching the same element against the following fields.
	MoreDefs

	// MandatoryMostOneG0 field is one of mutually exclusive alternatives of which exactly one must be present.
	MandatoryMostOneG0 = LeastOneG0 | MostOneG0
)

const groupCount = 2

func (f Flag) leastOne(group int) bool {
	return f&(LeastOneG0<<group) != 0
}

func (f Flag) mostOne(group int) bool {
	return f&(MostOneG0<<group) != 0
}

// Kind is the field value kind.
type Kind int

const (
	// KindInteger is an unsigned big-endian integer of up to 8 octets.
	KindInteger Kind = iota
	// KindInteger8 is a single octet unsigned integer.
	KindInteger8
	// KindUtf8 is a NUL terminated UTF-8 string.
	KindUtf8
	// KindOctets is a raw octet string.
	KindOctets
	// KindImprint is a hash imprint.
	KindImprint
	// KindObject is a value with custom converters.
	KindObject
	// KindComposite is a nested object described by a sub-template.
	KindComposite
	// KindUnprocessed keeps a copy of the element as it appeared in the input.
	KindUnprocessed
	// KindSeekPos records the absolute stream offset of the element.
	KindSeekPos
)

var kindNames = [...]string{"integer", "integer8", "utf8", "octets", "imprint", "object", "composite", "unprocessed", "seekpos"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Template is the schema of a composite TLV element. Templates are immutable after construction and may be shared
// between goroutines.
type Template struct {
	// Name identifies the template in the registry and in error messages.
	Name string
	// Tag is the default tag of the element described by the template.
	Tag uint16
	// Flags applies NonCritical and Forward to the serialized header.
	Flags Flag
	// Fields are matched in order.
	Fields []Field
}

// Field is a row of a template.
type Field struct {
	Tag   uint16
	Flags Flag
	Kind  Kind
	Descr string
	// Multiple field collects every matching element into a list.
	Multiple bool
	// Sub is the template of a composite field.
	Sub *Template

	present func(obj interface{}) (bool, error)
	decode  func(obj interface{}, t *Tlv, p path) error
	encode  func(obj interface{}, p path) ([]*Tlv, error)
}

// NewTemplate returns a template after validating the field table.
func NewTemplate(name string, tag uint16, flags Flag, fields ...Field) (*Template, error) {
	if tag > MaxTagValue {
		return nil, errors.New(errors.KsiInvalidArgumentError).
			AppendMessage(fmt.Sprintf("TLV tag out of range is 0x%x, but 0x%x is maximum.", tag, MaxTagValue))
	}
	for i, f := range fields {
		if f.Tag > MaxTagValue {
			return nil, errors.New(errors.KsiInvalidArgumentError).
				AppendMessage(fmt.Sprintf("%s: field %d tag out of range: 0x%x.", name, i, f.Tag))
		}
		if f.present == nil || f.decode == nil || f.encode == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).
				AppendMessage(fmt.Sprintf("%s: field %d (%s) has no accessors.", name, i, f.Descr))
		}
		if f.Kind == KindComposite && f.Sub == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).
				AppendMessage(fmt.Sprintf("%s: composite field %d (%s) has no sub-template.", name, i, f.Descr))
		}
	}
	return &Template{Name: name, Tag: tag, Flags: flags, Fields: fields}, nil
}

// MustTemplate is like NewTemplate, but panics on error. Intended for package level template tables.
func MustTemplate(name string, tag uint16, flags Flag, fields ...Field) *Template {
	tmpl, err := NewTemplate(name, tag, flags, fields...)
	if err != nil {
		panic(err)
	}
	return tmpl
}

// path is the human readable location of an element, e.g. "[0x800]->[0x801]aggr chain->[0x05]input hash".
type path []string

func (p path) child(tag uint16, descr string) path {
	tmp := make(path, len(p), len(p)+1)
	copy(tmp, p)
	return append(tmp, fmt.Sprintf("[0x%02x]%s", tag, descr))
}

func (p path) String() string {
	return strings.Join(p, "->")
}

func rootPath(tag uint16) path {
	return path{fmt.Sprintf("[0x%02x]", tag)}
}
