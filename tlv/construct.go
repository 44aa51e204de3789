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

// Construct builds a composite TLV from obj according to tmpl. Fields are emitted in template order; fields
// flagged NoSerialize are skipped. After emission the mandatory and group constraints are verified against what was
// actually emitted, so an empty list counts as absent.
func Construct(obj interface{}, tmpl *Template) (*Tlv, error) {
	if obj == nil || tmpl == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return construct(obj, tmpl, tmpl.Tag, tmpl.Flags, rootPath(tmpl.Tag))
}

func construct(obj interface{}, tmpl *Template, tag uint16, flags Flag, p path) (*Tlv, error) {
	node, err := NewTlv(ConstructComposite(tag, flags&NonCritical != 0, flags&Forward != 0))
	if err != nil {
		return nil, err
	}

	hits := make([]int, len(tmpl.Fields))
	for i, f := range tmpl.Fields {
		if f.Flags&NoSerialize != 0 {
			continue
		}

		cp := p.child(f.Tag, f.Descr)
		elements, err := f.encode(obj, cp)
		if err != nil {
			log.Debug(fmt.Sprintf("Failed to construct %s: %v", cp, errors.KsiErr(err).BaseMessage()))
			return nil, errors.KsiErr(err).AppendMessage(fmt.Sprintf("Unable to serialize %s.", cp))
		}
		for _, e := range elements {
			if err := node.AppendNested(e); err != nil {
				return nil, errors.KsiErr(err).AppendMessage(fmt.Sprintf("Unable to serialize %s.", cp))
			}
		}
		hits[i] = len(elements)
	}

	if err := checkConstraints(tmpl, hits, p, true); err != nil {
		return nil, err
	}
	return node, nil
}

// Serialize returns the binary encoding of obj according to tmpl.
func Serialize(obj interface{}, tmpl *Template) ([]byte, error) {
	t, err := Construct(obj, tmpl)
	if err != nil {
		return nil, err
	}
	return t.Bytes()
}

// DeepCopy returns an independent copy of obj by serializing it and parsing the result.
func DeepCopy[T any](obj *T, tmpl *Template) (*T, error) {
	if obj == nil || tmpl == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	raw, err := Serialize(obj, tmpl)
	if err != nil {
		return nil, err
	}
	return Parse[T](raw, tmpl)
}
