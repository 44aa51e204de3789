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
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
	"time"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/tlv"
)

type (
	// PublicationDataBuilder is the concrete publication data constructor.
	PublicationDataBuilder func(*publicationData) error
	publicationData        struct {
		obj PublicationData
	}
)

// NewPublicationData returns a new publication data instance. Use the builder parameter for providing an initializer.
func NewPublicationData(builder PublicationDataBuilder) (*PublicationData, error) {
	if builder == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var tmp publicationData
	if err := builder(&tmp); err != nil {
		return nil, err
	}
	return &tmp.obj, nil
}

// PubDataFromString returns a builder for constructing publication data from publication string.
//
// A publication string represents the fields of the published data structure, formatted in a way suitable for printed
// media and manual entry into a verification tool. The publication string is constructed as follows:
//  1. The publication data is assembled as a concatenation of the publication time, as a 64-bit big-endian
//     integer with leading zeros preserved, and the publication imprint.
//  2. The CRC-32 checksum of the publication data is appended.
//  3. The resulting octet sequence is represented in base32 and optionally broken into groups of 6 characters
//     by dashes.
//
// For example, the publication of 2009-02-15T00:00:00Z:
//
//	AAAAAA-CJS5NQ-AAPOD6-6I7U75-PD6RDO-PCM7PZ-V4RWCG-Y4LPSE-6AQKXC-YUDHET-M4WE23-XFPW6G
func PubDataFromString(s string) PublicationDataBuilder {
	return func(p *publicationData) error {
		if len(s) == 0 {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if p == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publication data base object.")
		}

		s = strings.ReplaceAll(s, "-", "")
		raw, err := base32.StdEncoding.DecodeString(s)
		if err != nil {
			return errors.New(errors.KsiInvalidPublication).SetExtError(err).
				AppendMessage(fmt.Sprintf("Unable to decode base32 string: '%s'", s))
		}

		if err := p.obj.decode(raw); err != nil {
			return err
		}
		log.Debug("Publication data: ", &p.obj)
		return nil
	}
}

// PubDataFromImprint returns an initializer for constructing publication data from published data, where h is the
// output hash of the calendar hash chain at time t.
func PubDataFromImprint(t time.Time, h *hash.DataHash) PublicationDataBuilder {
	return func(p *publicationData) error {
		if t.IsZero() || h == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if p == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publication data base object.")
		}

		p.obj.pubTime = newUint64(uint64(t.Unix()))
		p.obj.pubHash = h.Clone()
		return nil
	}
}

// ParsePublicationData parses publication data from its binary TLV representation.
func ParsePublicationData(raw []byte) (*PublicationData, error) {
	return tlv.Parse[PublicationData](raw, pubDataTemplate)
}

const pubStringTimeLen = 8

func (p *PublicationData) decode(raw []byte) error {
	if len(raw) < pubStringTimeLen+1+crc32.Size {
		return errors.New(errors.KsiInvalidPublication).
			AppendMessage(fmt.Sprintf("Publication data inconsistent length: %s", hex.EncodeToString(raw)))
	}
	body, crc := raw[:len(raw)-crc32.Size], raw[len(raw)-crc32.Size:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(crc) {
		return errors.New(errors.KsiInvalidPublication).AppendMessage("CRC mismatch.")
	}

	h, err := hash.FromImprint(body[pubStringTimeLen:])
	if err != nil {
		return errors.KsiErr(err, errors.KsiInvalidPublication).
			AppendMessage("Publication string contains invalid imprint.")
	}

	p.pubTime = newUint64(binary.BigEndian.Uint64(body[:pubStringTimeLen]))
	p.pubHash = h
	return nil
}

// Base32 returns a publication string representing the fields of the published data structure. The string embeds
// a checksum to detect typing errors.
func (p *PublicationData) Base32() (string, error) {
	if p == nil || p.pubTime == nil || p.pubHash == nil {
		return "", errors.New(errors.KsiInvalidArgumentError)
	}
	raw := make([]byte, pubStringTimeLen, pubStringTimeLen+p.pubHash.Len()+crc32.Size)
	binary.BigEndian.PutUint64(raw, *p.pubTime)
	raw = append(raw, p.pubHash.Imprint()...)
	raw = binary.BigEndian.AppendUint32(raw, crc32.ChecksumIEEE(raw))

	return groupBase32(base32.StdEncoding.EncodeToString(raw), groupLimit), nil
}

const groupLimit = 6

func groupBase32(s string, l int) string {
	if l == 0 {
		return s
	}
	buf := []byte(s)
	chunks := make([][]byte, 0, len(buf)/l+1)
	for len(buf) >= l {
		var chunk []byte
		chunk, buf = buf[:l], buf[l:]
		chunks = append(chunks, chunk)
	}
	if len(buf) > 0 {
		chunks = append(chunks, buf)
	}
	return string(bytes.Join(chunks, []byte("-")))
}

// Equal reports whether p and u represent the same publication.
func (p *PublicationData) Equal(u *PublicationData) bool {
	if p == nil || u == nil || p.pubTime == nil || u.pubTime == nil {
		return false
	}
	return p == u || (*p.pubTime == *u.pubTime && p.pubHash.Equal(u.pubHash))
}

// PublicationTime returns the publication time.
func (p *PublicationData) PublicationTime() (time.Time, error) {
	if p == nil {
		return time.Time{}, errors.New(errors.KsiInvalidArgumentError)
	}
	if p.pubTime == nil {
		return time.Time{}, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent publication data.").
			AppendMessage("Missing publication time.")
	}
	return time.Unix(int64(*p.pubTime), 0), nil
}

// PublishedHash returns published hash.
func (p *PublicationData) PublishedHash() (*hash.DataHash, error) {
	if p == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if p.pubHash == nil {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent publication data.").
			AppendMessage("Missing publication hash.")
	}
	return p.pubHash, nil
}

// Bytes returns the binary TLV structure.
func (p *PublicationData) Bytes() ([]byte, error) {
	if p == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return tlv.Serialize(p, pubDataTemplate)
}

// String implements fmt.(Stringer) interface.
func (p *PublicationData) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	if p.pubTime != nil {
		b.WriteString("Publication time: (")
		b.WriteString(strconv.FormatUint(*p.pubTime, 10))
		b.WriteString(") ")
		b.WriteString(time.Unix(int64(*p.pubTime), 0).UTC().String())
		b.WriteString("\n")
	}
	if p.pubHash != nil {
		b.WriteString("Published hash  : ")
		b.WriteString(p.pubHash.String())
		b.WriteString("\n")
	}
	return b.String()
}
