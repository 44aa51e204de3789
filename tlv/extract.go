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
	"github.com/guardtime/ksicore/log"
)

// Extract populates obj from the nested elements of t according to tmpl. The obj must be a pointer of the type the
// template fields were built for.
//
// The nested elements are matched against the template fields in wire order. A field that is not repeatable is
// consumed when matched at the cursor position, so the following elements are matched against the fields after it.
// An element that matches no field, or repeats a consumed single valued field, is an error unless it is marked
// non-critical, in which case it is skipped. Once all elements are consumed, the mandatory and group constraints are
// verified.
func Extract(t *Tlv, tmpl *Template, obj interface{}) error {
	if t == nil || tmpl == nil || obj == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	return extract(t, tmpl, obj, rootPath(t.Tag))
}

func extract(t *Tlv, tmpl *Template, obj interface{}, p path) error {
	children, err := t.Nested()
	if err != nil {
		return errors.KsiErr(err).AppendMessage(fmt.Sprintf("Unable to parse %s.", p))
	}

	var (
		fields     = tmpl.Fields
		hits       = make([]int, len(fields))
		mostOneHit [groupCount]int
		start      int
	)
	for _, c := range children {
		matched := false

		for i := start; i < len(fields); i++ {
			f := &fields[i]
			if f.Tag != c.Tag {
				continue
			}
			if i == start && !f.Multiple {
				start++
			}

			cp := p.child(c.Tag, f.Descr)
			if !f.Multiple {
				set, err := f.present(obj)
				if err != nil {
					return err
				}
				if set {
					if c.NonCritical {
						log.Debug(fmt.Sprintf("Skipping repeated non-critical element %s.", cp))
						matched = true
						break
					}
					return errors.New(errors.KsiInvalidFormatError).
						AppendMessage(fmt.Sprintf("Duplicate element: %s", cp))
				}
			}
			for g := 0; g < groupCount; g++ {
				if !f.Flags.mostOne(g) {
					continue
				}
				if mostOneHit[g]++; mostOneHit[g] > 1 {
					return errors.New(errors.KsiInvalidFormatError).
						AppendMessage(fmt.Sprintf("Mutually exclusive elements present within group %d: %s", g, cp))
				}
			}

			if err := f.decode(obj, c, cp); err != nil {
				log.Debug(fmt.Sprintf("Failed to extract %s: %v", cp, errors.KsiErr(err).BaseMessage()))
				return errors.KsiErr(err, errors.KsiInvalidFormatError).AppendMessage(fmt.Sprintf("Unable to parse %s.", cp))
			}
			hits[i]++
			matched = true

			if f.Flags&MoreDefs == 0 {
				break
			}
		}

		if !matched {
			if c.NonCritical {
				log.Debug(fmt.Sprintf("Skipping non-critical element %s.", p.child(c.Tag, "")))
				continue
			}
			// Fields before the cursor are consumed single valued fields.
			for j := 0; j < start; j++ {
				if fields[j].Tag == c.Tag {
					return errors.New(errors.KsiInvalidFormatError).
						AppendMessage(fmt.Sprintf("Duplicate element: %s", p.child(c.Tag, fields[j].Descr)))
				}
			}
			return errors.New(errors.KsiInvalidFormatError).
				AppendMessage(fmt.Sprintf("Unknown critical tag: %s", p.child(c.Tag, "")))
		}
	}

	return checkConstraints(tmpl, hits, p, false)
}

func checkConstraints(tmpl *Template, hits []int, p path, skipNoSerialize bool) error {
	var (
		leastOneDef [groupCount]bool
		leastOneHit [groupCount]int
		mostOneHit  [groupCount]int
	)
	for i, f := range tmpl.Fields {
		if skipNoSerialize && f.Flags&NoSerialize != 0 {
			continue
		}
		if f.Flags&Mandatory != 0 && hits[i] == 0 {
			return errors.New(errors.KsiInvalidFormatError).
				AppendMessage(fmt.Sprintf("Mandatory element missing: %s", p.child(f.Tag, f.Descr)))
		}
		for g := 0; g < groupCount; g++ {
			if f.Flags.leastOne(g) {
				leastOneDef[g] = true
				leastOneHit[g] += hits[i]
			}
			if f.Flags.mostOne(g) {
				mostOneHit[g] += hits[i]
			}
		}
	}

	for g := 0; g < groupCount; g++ {
		if leastOneDef[g] && leastOneHit[g] == 0 {
			return errors.New(errors.KsiInvalidFormatError).
				AppendMessage(fmt.Sprintf("Mandatory group missing: %s", p))
		}
		if mostOneHit[g] > 1 {
			return errors.New(errors.KsiInvalidFormatError).
				AppendMessage(fmt.Sprintf("Mutually exclusive elements present within group %d: %s", g, p))
		}
	}
	return nil
}

// Parse parses raw as a single TLV element with the template root tag and returns a new object populated from it.
// No partially populated object is returned on failure.
func Parse[T any](raw []byte, tmpl *Template) (*T, error) {
	if tmpl == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	t, err := NewTlv(ConstructFromSlice(raw))
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage(fmt.Sprintf("Unable to parse %s.", tmpl.Name))
	}
	return ParseTlv[T](t, tmpl)
}

// ParseTlv is like Parse, but takes an already parsed element.
func ParseTlv[T any](t *Tlv, tmpl *Template) (*T, error) {
	if t == nil || tmpl == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if t.Tag != tmpl.Tag {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("%s tag mismatch: expecting 0x%x, got 0x%x.", tmpl.Name, tmpl.Tag, t.Tag))
	}

	obj := new(T)
	if err := Extract(t, tmpl, obj); err != nil {
		return nil, err
	}
	return obj, nil
}
