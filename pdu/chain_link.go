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
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/tlv"
)

const maxTreeLevel = 0xff

// NewChainLink returns a new aggregation hash chain link. Sibling data is applied via one of the sibling setters
// (see LinkSiblingHash, LinkSiblingLegacyID, LinkSiblingMetaData).
func NewChainLink(isLeft bool, levelCorr byte, sibling LinkSiblingDataSetter) (*ChainLink, error) {
	if sibling == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	link := chainLink{obj: ChainLink{isLeft: isLeft}}
	if levelCorr != 0 {
		link.obj.levelCorr = newUint64(uint64(levelCorr))
	}
	if err := sibling(&link); err != nil {
		return nil, err
	}
	return &link.obj, nil
}

// NewCalendarChainLink returns a new calendar hash chain link.
func NewCalendarChainLink(isLeft bool, sibling *hash.DataHash) (*ChainLink, error) {
	if sibling == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return &ChainLink{isLeft: isLeft, isCalendar: true, siblingHash: sibling.Clone()}, nil
}

type (
	// LinkSiblingDataSetter is functional value setter for the chain link sibling data.
	LinkSiblingDataSetter func(*chainLink) error

	chainLink struct {
		obj ChainLink
	}
)

// LinkSiblingHash is sibling hash setter.
func LinkSiblingHash(h *hash.DataHash) LinkSiblingDataSetter {
	return func(l *chainLink) error {
		if h == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if l == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing chain link base object.")
		}
		l.obj.siblingHash = h.Clone()
		return nil
	}
}

// LinkSiblingLegacyID is sibling legacy ID setter.
func LinkSiblingLegacyID(id *LegacyID) LinkSiblingDataSetter {
	return func(l *chainLink) error {
		if id == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if l == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing chain link base object.")
		}
		l.obj.legacyID = id
		return nil
	}
}

// LinkSiblingMetaData is sibling metadata setter.
func LinkSiblingMetaData(md *MetaData) LinkSiblingDataSetter {
	return func(l *chainLink) error {
		if md == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if l == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing chain link base object.")
		}
		l.obj.metadata = md
		return nil
	}
}

// IsLeft returns the orientation of the chain link.
func (l *ChainLink) IsLeft() (bool, error) {
	if l == nil {
		return false, errors.New(errors.KsiInvalidArgumentError)
	}
	return l.isLeft, nil
}

// SiblingHash returns the sibling link hash value, or nil if not present.
// See also (ChainLink).MetaData and (ChainLink).LegacyID.
func (l *ChainLink) SiblingHash() (*hash.DataHash, error) {
	if l == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if l.isCalendar && l.siblingHash == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Inconsistent calendar chain link.")
	}
	return l.siblingHash, nil
}

// LevelCorrection returns chain link level correction value.
func (l *ChainLink) LevelCorrection() (uint64, error) {
	if l == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if l.isCalendar {
		return 0, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Calendar chain link does not have level correction value.")
	}
	if l.levelCorr == nil {
		return 0, nil
	}
	return *l.levelCorr, nil
}

// LegacyID returns legacy ID value, or nil if not present.
func (l *ChainLink) LegacyID() (*LegacyID, error) {
	if l == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if l.isCalendar {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Calendar chain link does not have legacy id value.")
	}
	return l.legacyID, nil
}

// MetaData returns the metadata value, or nil if not present.
func (l *ChainLink) MetaData() (*MetaData, error) {
	if l == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if l.isCalendar {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Calendar chain link does not have metadata value.")
	}
	return l.metadata, nil
}

// Identity returns the link identity, or nil if the sibling is a plain hash.
func (l *ChainLink) Identity() (*Identity, error) {
	if l == nil || l.isCalendar {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	switch {
	case l.legacyID != nil:
		return identityFromLegacyID(l.legacyID)
	case l.metadata != nil:
		return identityFromMetaData(l.metadata)
	default:
		return nil, nil
	}
}

// String implements Stringer interface.
func (l *ChainLink) String() string {
	if l == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Link: ")
	if l.isLeft {
		b.WriteString("L, ")
	} else {
		b.WriteString("R, ")
	}
	if l.levelCorr != nil {
		b.WriteString("LevelCorr: ")
		b.WriteString(strconv.FormatUint(*l.levelCorr, 10))
		b.WriteString(", ")
	}
	if l.siblingHash != nil {
		b.WriteString("Sibling: ")
		b.WriteString(l.siblingHash.String())
	} else if id, err := l.Identity(); err == nil && id != nil {
		b.WriteString("Identity: ")
		b.WriteString(id.String())
	}
	return b.String()
}

func (l *ChainLink) tag() uint16 {
	if l.isLeft {
		return tagLeftLink
	}
	return tagRightLink
}

func aggrLinkFromTlv(t *tlv.Tlv) (*ChainLink, error) {
	l := &ChainLink{isLeft: t.Tag == tagLeftLink}
	if err := tlv.Extract(t, linkLTemplate, l); err != nil {
		return nil, err
	}
	return l, nil
}

func calLinkFromTlv(t *tlv.Tlv) (*ChainLink, error) {
	h, err := t.DataHash()
	if err != nil {
		return nil, err
	}
	return &ChainLink{isLeft: t.Tag == tagLeftLink, isCalendar: true, siblingHash: h}, nil
}

// linkToTlv serializes the link with the tag matching its orientation.
func linkToTlv(_ uint16, l *ChainLink) (*tlv.Tlv, error) {
	if l == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Chain link is nil.")
	}
	if l.isCalendar {
		return tlv.NewImprint(l.tag(), l.siblingHash)
	}
	tmpl := linkRTemplate
	if l.isLeft {
		tmpl = linkLTemplate
	}
	return tlv.Construct(l, tmpl)
}

// ChainLinkList is alias for '[]*ChainLink'.
type ChainLinkList []*ChainLink

// String implements Stringer interface.
func (l ChainLinkList) String() string {
	var b strings.Builder
	for _, link := range l {
		b.WriteString(link.String())
		b.WriteString("\n")
	}
	return b.String()
}

// aggregate computes the hash chain and returns the result hash and tree level.
//
// In an aggregation chain every step is hashed with the given algorithm and the level is increased by the link
// level correction plus one. In a calendar chain the algorithm is taken from the input hash and switched to the
// sibling algorithm on every left link, the level byte is always 0xff.
func (l ChainLinkList) aggregate(isCalendar bool, algorithm hash.Algorithm, inputHash *hash.DataHash,
	startLevel byte) (*hash.DataHash, byte, error) {

	if inputHash == nil {
		return nil, 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if len(l) == 0 {
		return nil, 0, errors.New(errors.KsiInvalidFormatError).AppendMessage("Hash chain has no links.")
	}
	if isCalendar {
		algorithm = inputHash.Algorithm()
	}

	var (
		hsr   *hash.DataHasher
		hsh   = inputHash
		level = uint64(startLevel)
		err   error
	)
	for _, link := range l {
		if link == nil {
			return nil, 0, errors.New(errors.KsiInvalidStateError).AppendMessage("Hash chain link is nil.")
		}
		if isCalendar {
			if link.siblingHash == nil {
				return nil, 0, errors.New(errors.KsiInvalidStateError).
					AppendMessage("Calendar hash chain link missing hash.")
			}
			// Update the hash algorithm when encountering a left link.
			if link.isLeft && algorithm != link.siblingHash.Algorithm() {
				algorithm = link.siblingHash.Algorithm()
				hsr = nil
			}
		} else {
			var corr uint64
			if link.levelCorr != nil {
				corr = *link.levelCorr
			}
			if corr > maxTreeLevel || level+corr+1 > maxTreeLevel {
				return nil, 0, errors.New(errors.KsiInvalidFormatError).
					AppendMessage("Aggregation chain level out of range.")
			}
			level += corr + 1
		}

		if hsr == nil {
			if hsr, err = algorithm.New(); err != nil {
				return nil, 0, err
			}
		} else {
			hsr.Reset()
		}

		sibling, err := link.siblingData()
		if err != nil {
			return nil, 0, err
		}
		first, second := hsh.Imprint(), sibling
		if !link.isLeft {
			first, second = second, first
		}
		if _, err := hsr.Write(first); err != nil {
			return nil, 0, err
		}
		if _, err := hsr.Write(second); err != nil {
			return nil, 0, err
		}

		lvlByte := byte(level)
		if isCalendar {
			lvlByte = maxTreeLevel
		}
		if _, err := hsr.Write([]byte{lvlByte}); err != nil {
			return nil, 0, err
		}

		if hsh, err = hsr.Close(); err != nil {
			return nil, 0, err
		}
	}
	if isCalendar {
		return hsh, maxTreeLevel, nil
	}
	return hsh, byte(level), nil
}

// siblingData returns the bytes the sibling contributes to the step hash. The sibling must consist of one, and only
// one, of the sibling hash, legacy ID or metadata.
func (l *ChainLink) siblingData() ([]byte, error) {
	var elements byte
	if l.siblingHash != nil {
		elements |= 0x01
	}
	if l.legacyID != nil {
		elements |= 0x02
	}
	if l.metadata != nil {
		elements |= 0x04
	}

	switch elements {
	case 0x01:
		return l.siblingHash.Imprint(), nil
	case 0x02:
		return l.legacyID.Bytes()
	case 0x04:
		return l.metadata.value()
	default:
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage("Sibling data must consist of only one value.")
	}
}
