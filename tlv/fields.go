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
	"github.com/guardtime/ksicore/hash"
)

func cast[T any](obj interface{}) (*T, error) {
	o, ok := obj.(*T)
	if !ok || o == nil {
		var want *T
		return nil, errors.New(errors.KsiInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Template object type mismatch: expecting %T, got %T.", want, obj))
	}
	return o, nil
}

func (f Field) withHeader(t *Tlv) *Tlv {
	t.NonCritical = f.Flags&NonCritical != 0
	t.ForwardUnknown = f.Flags&Forward != 0
	return t
}

// pointer builds a single valued field stored behind a pointer. The element header flags are taken from the field
// flags, unless keepHeader is set.
func pointer[T, V any](tag uint16, flags Flag, kind Kind, descr string, acc func(*T) **V,
	from func(*Tlv) (*V, error), to func(uint16, *V) (*Tlv, error), keepHeader bool) Field {

	f := Field{Tag: tag, Flags: flags, Kind: kind, Descr: descr}
	f.present = func(obj interface{}) (bool, error) {
		o, err := cast[T](obj)
		if err != nil {
			return false, err
		}
		return *acc(o) != nil, nil
	}
	f.decode = func(obj interface{}, t *Tlv, _ path) error {
		o, err := cast[T](obj)
		if err != nil {
			return err
		}
		v, err := from(t)
		if err != nil {
			return err
		}
		if v == nil {
			return errors.New(errors.KsiInvalidFormatError).AppendMessage("Converter returned no value.")
		}
		*acc(o) = v
		return nil
	}
	f.encode = func(obj interface{}, _ path) ([]*Tlv, error) {
		o, err := cast[T](obj)
		if err != nil {
			return nil, err
		}
		v := *acc(o)
		if v == nil {
			return nil, nil
		}
		t, err := to(tag, v)
		if err != nil {
			return nil, err
		}
		if !keepHeader {
			f.withHeader(t)
		}
		return []*Tlv{t}, nil
	}
	return f
}

// scalar adapts value converters to pointer.
func scalar[T, V any](tag uint16, flags Flag, kind Kind, descr string, acc func(*T) **V,
	from func(*Tlv) (V, error), to func(uint16, V) (*Tlv, error)) Field {

	return pointer(tag, flags, kind, descr, acc,
		func(t *Tlv) (*V, error) {
			v, err := from(t)
			if err != nil {
				return nil, err
			}
			return &v, nil
		},
		func(tag uint16, v *V) (*Tlv, error) { return to(tag, *v) },
		false,
	)
}

// list builds a repeated field stored in a slice.
func list[T, V any](tag uint16, flags Flag, kind Kind, descr string, acc func(*T) *[]V,
	from func(*Tlv) (V, error), to func(uint16, V) (*Tlv, error)) Field {

	f := Field{Tag: tag, Flags: flags, Kind: kind, Descr: descr, Multiple: true}
	f.present = func(obj interface{}) (bool, error) {
		o, err := cast[T](obj)
		if err != nil {
			return false, err
		}
		return len(*acc(o)) != 0, nil
	}
	f.decode = func(obj interface{}, t *Tlv, _ path) error {
		o, err := cast[T](obj)
		if err != nil {
			return err
		}
		v, err := from(t)
		if err != nil {
			return err
		}
		*acc(o) = append(*acc(o), v)
		return nil
	}
	f.encode = func(obj interface{}, _ path) ([]*Tlv, error) {
		o, err := cast[T](obj)
		if err != nil {
			return nil, err
		}
		var res []*Tlv
		for _, v := range *acc(o) {
			t, err := to(tag, v)
			if err != nil {
				return nil, err
			}
			res = append(res, f.withHeader(t))
		}
		return res, nil
	}
	return f
}

// Integer describes an unsigned integer field.
func Integer[T any](tag uint16, flags Flag, descr string, acc func(*T) **uint64) Field {
	return scalar(tag, flags, KindInteger, descr, acc, (*Tlv).Uint64E, NewUint64)
}

// Integer8 describes a single octet integer field.
func Integer8[T any](tag uint16, flags Flag, descr string, acc func(*T) **uint64) Field {
	return scalar(tag, flags, KindInteger8, descr, acc, (*Tlv).Uint8E, NewUint8)
}

// IntegerList describes a repeated unsigned integer field.
func IntegerList[T any](tag uint16, flags Flag, descr string, acc func(*T) *[]uint64) Field {
	return list(tag, flags, KindInteger, descr, acc, (*Tlv).Uint64E, NewUint64)
}

// Utf8 describes a string field.
func Utf8[T any](tag uint16, flags Flag, descr string, acc func(*T) **string) Field {
	return scalar(tag, flags, KindUtf8, descr, acc, (*Tlv).Utf8, NewUtf8)
}

// Utf8List describes a repeated string field.
func Utf8List[T any](tag uint16, flags Flag, descr string, acc func(*T) *[]string) Field {
	return list(tag, flags, KindUtf8, descr, acc, (*Tlv).Utf8, NewUtf8)
}

// Octets describes a raw octet string field. A nil slice is treated as absent.
func Octets[T any](tag uint16, flags Flag, descr string, acc func(*T) *[]byte) Field {
	f := Field{Tag: tag, Flags: flags, Kind: KindOctets, Descr: descr}
	f.present = func(obj interface{}) (bool, error) {
		o, err := cast[T](obj)
		if err != nil {
			return false, err
		}
		return *acc(o) != nil, nil
	}
	f.decode = func(obj interface{}, t *Tlv, _ path) error {
		o, err := cast[T](obj)
		if err != nil {
			return err
		}
		v, err := t.Binary()
		if err != nil {
			return err
		}
		*acc(o) = v
		return nil
	}
	f.encode = func(obj interface{}, _ path) ([]*Tlv, error) {
		o, err := cast[T](obj)
		if err != nil {
			return nil, err
		}
		if *acc(o) == nil {
			return nil, nil
		}
		t, err := NewBinary(tag, *acc(o))
		if err != nil {
			return nil, err
		}
		return []*Tlv{f.withHeader(t)}, nil
	}
	return f
}

// Imprint describes a data hash field.
func Imprint[T any](tag uint16, flags Flag, descr string, acc func(*T) **hash.DataHash) Field {
	return pointer(tag, flags, KindImprint, descr, acc, (*Tlv).DataHash, NewImprint, false)
}

// Object describes a field with custom converters.
func Object[T, O any](tag uint16, flags Flag, descr string, acc func(*T) **O,
	from func(*Tlv) (*O, error), to func(uint16, *O) (*Tlv, error)) Field {

	return pointer(tag, flags, KindObject, descr, acc, from, to, false)
}

// Composite describes a nested object field.
func Composite[T, S any](tag uint16, flags Flag, descr string, sub *Template, acc func(*T) **S) Field {
	f := Field{Tag: tag, Flags: flags, Kind: KindComposite, Descr: descr, Sub: sub}
	f.present = func(obj interface{}) (bool, error) {
		o, err := cast[T](obj)
		if err != nil {
			return false, err
		}
		return *acc(o) != nil, nil
	}
	f.decode = func(obj interface{}, t *Tlv, p path) error {
		o, err := cast[T](obj)
		if err != nil {
			return err
		}
		s := new(S)
		if err := extract(t, sub, s, p); err != nil {
			return err
		}
		*acc(o) = s
		return nil
	}
	f.encode = func(obj interface{}, p path) ([]*Tlv, error) {
		o, err := cast[T](obj)
		if err != nil {
			return nil, err
		}
		s := *acc(o)
		if s == nil {
			return nil, nil
		}
		t, err := construct(s, sub, tag, flags, p)
		if err != nil {
			return nil, err
		}
		return []*Tlv{t}, nil
	}
	return f
}

// CompositeList describes a repeated nested object field.
func CompositeList[T, S any](tag uint16, flags Flag, descr string, sub *Template, acc func(*T) *[]*S) Field {
	f := Field{Tag: tag, Flags: flags, Kind: KindComposite, Descr: descr, Sub: sub, Multiple: true}
	f.present = func(obj interface{}) (bool, error) {
		o, err := cast[T](obj)
		if err != nil {
			return false, err
		}
		return len(*acc(o)) != 0, nil
	}
	f.decode = func(obj interface{}, t *Tlv, p path) error {
		o, err := cast[T](obj)
		if err != nil {
			return err
		}
		s := new(S)
		if err := extract(t, sub, s, p); err != nil {
			return err
		}
		*acc(o) = append(*acc(o), s)
		return nil
	}
	f.encode = func(obj interface{}, p path) ([]*Tlv, error) {
		o, err := cast[T](obj)
		if err != nil {
			return nil, err
		}
		var res []*Tlv
		for i, s := range *acc(o) {
			if s == nil {
				return nil, errors.New(errors.KsiInvalidArgumentError).
					AppendMessage(fmt.Sprintf("List element %d is nil: %s.", i, p))
			}
			t, err := construct(s, sub, tag, flags, p)
			if err != nil {
				return nil, err
			}
			res = append(res, t)
		}
		return res, nil
	}
	return f
}

// Unprocessed describes a field that keeps a copy of the element as is, header flags included.
func Unprocessed[T any](tag uint16, flags Flag, descr string, acc func(*T) **Tlv) Field {
	return pointer(tag, flags, KindUnprocessed, descr, acc,
		func(t *Tlv) (*Tlv, error) { return t.Clone(), nil },
		func(_ uint16, t *Tlv) (*Tlv, error) { return t.Clone(), nil },
		true,
	)
}

// SeekPos describes a field that records the absolute stream offset of the element. It is never serialized.
func SeekPos[T any](tag uint16, flags Flag, descr string, acc func(*T) **int) Field {
	return scalar(tag, flags|NoSerialize, KindSeekPos, descr, acc,
		func(t *Tlv) (int, error) { return t.Offset, nil },
		func(uint16, int) (*Tlv, error) {
			return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Seek position is not serializable.")
		},
	)
}

// ObjectList describes a repeated field with custom converters.
func ObjectList[T, O any](tag uint16, flags Flag, descr string, acc func(*T) *[]*O,
	from func(*Tlv) (*O, error), to func(uint16, *O) (*Tlv, error)) Field {

	return list(tag, flags, KindObject, descr, acc, from, to)
}
