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
	"time"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/tlv"
)

// NewCalendarChain returns a calendar hash chain with publication time pubTime, computed from inputHash over the
// links. The aggregation time is derived from the chain shape.
func NewCalendarChain(pubTime time.Time, inputHash *hash.DataHash, links ...*ChainLink) (*CalendarChain, error) {
	if pubTime.IsZero() || inputHash == nil || len(links) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	for _, l := range links {
		if l == nil || !l.isCalendar {
			return nil, errors.New(errors.KsiInvalidArgumentError).
				AppendMessage("Calendar hash chain may consist only of calendar links.")
		}
	}

	c := &CalendarChain{
		pubTime:    newUint64(uint64(pubTime.Unix())),
		inputHash:  inputHash.Clone(),
		chainLinks: append([]*ChainLink(nil), links...),
	}
	aggrTime, err := c.CalculateAggregationTime()
	if err != nil {
		return nil, err
	}
	c.aggrTime = newUint64(uint64(aggrTime.Unix()))
	return c, nil
}

// ParseCalendarChain parses a calendar hash chain from its binary TLV representation.
func ParseCalendarChain(raw []byte) (*CalendarChain, error) {
	return tlv.Parse[CalendarChain](raw, calChainTemplate)
}

// Bytes returns the binary TLV representation of the calendar hash chain.
func (c *CalendarChain) Bytes() ([]byte, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return tlv.Serialize(c, calChainTemplate)
}

// Clone returns a deep copy of the calendar hash chain.
func (c *CalendarChain) Clone() (*CalendarChain, error) {
	return tlv.DeepCopy(c, calChainTemplate)
}

// PublicationTime returns calendar hash chain publication time.
func (c *CalendarChain) PublicationTime() (time.Time, error) {
	if c == nil || c.pubTime == nil {
		return time.Time{}, errors.New(errors.KsiInvalidArgumentError)
	}
	return time.Unix(int64(*c.pubTime), 0), nil
}

// AggregationTime returns calendar hash chain aggregation time. If the aggregation time is not present, it equals
// the publication time.
func (c *CalendarChain) AggregationTime() (time.Time, error) {
	if c == nil {
		return time.Time{}, errors.New(errors.KsiInvalidArgumentError)
	}
	if c.aggrTime == nil {
		return c.PublicationTime()
	}
	return time.Unix(int64(*c.aggrTime), 0), nil
}

// InputHash returns calendar hash chain input hash.
func (c *CalendarChain) InputHash() (*hash.DataHash, error) {
	if c == nil || c.inputHash == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return c.inputHash, nil
}

// ChainLinks returns calendar hash chain links.
func (c *CalendarChain) ChainLinks() (ChainLinkList, error) {
	if c == nil || len(c.chainLinks) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return c.chainLinks, nil
}

// String implements fmt.(Stringer) interface.
func (c *CalendarChain) String() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	if c.pubTime != nil {
		b.WriteString("Publication time: (")
		b.WriteString(strconv.FormatUint(*c.pubTime, 10))
		b.WriteString(") ")
		b.WriteString(time.Unix(int64(*c.pubTime), 0).UTC().String())
		b.WriteString("\n")
	}
	if c.aggrTime != nil {
		b.WriteString("Aggregation time: (")
		b.WriteString(strconv.FormatUint(*c.aggrTime, 10))
		b.WriteString(") ")
		b.WriteString(time.Unix(int64(*c.aggrTime), 0).UTC().String())
		b.WriteString("\n")
	}
	b.WriteString("Input hash      : ")
	b.WriteString(c.inputHash.String())
	b.WriteString("\n")
	b.WriteString(ChainLinkList(c.chainLinks).String())
	return b.String()
}

// Aggregate aggregates the calendar hash chain and returns the resulting root hash.
func (c *CalendarChain) Aggregate() (*hash.DataHash, error) {
	if c == nil || len(c.chainLinks) == 0 || c.inputHash == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	hsh, _, err := ChainLinkList(c.chainLinks).aggregate(true, hash.SHA_NA, c.inputHash, maxTreeLevel)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Failed to calculate calendar hash chain root hash.")
	}
	return hsh, nil
}

// CalculateAggregationTime returns aggregation time calculated based on the shape of the calendar hash chain.
//
// The calendar tree is built deterministically, so its shape at any moment follows from the number of leaves,
// which is one more than the number of seconds since 1970-01-01T00:00:00Z. The left sub-tree of a node is always
// a perfect binary tree, and a right sub-tree with M leaves is shaped as an entire calendar tree of M leaves.
// Traversing the chain from the root, every right link contributes the leaves of its left sub-tree to the time.
func (c *CalendarChain) CalculateAggregationTime() (time.Time, error) {
	if c == nil || len(c.chainLinks) == 0 || c.pubTime == nil {
		return time.Unix(0, 0), errors.New(errors.KsiInvalidArgumentError)
	}

	var (
		t int64
		r = int64(*c.pubTime)
	)
	for i := len(c.chainLinks) - 1; i >= 0; i-- {
		if r <= 0 {
			return time.Unix(0, 0), errors.New(errors.KsiInvalidFormatError).
				AppendMessage("Calendar hash chain shape does not match the publication time.")
		}

		if c.chainLinks[i].isLeft {
			r = highBit(r) - 1
		} else {
			t += highBit(r)
			r -= highBit(r)
		}
	}

	if r != 0 {
		return time.Unix(0, 0), errors.New(errors.KsiInvalidFormatError).
			AppendMessage("Calendar hash chain shape does not match the publication time.")
	}
	return time.Unix(t, 0), nil
}

// highBit returns the value of the highest 1-bit of r, i.e. the largest power of 2 not greater than r.
func highBit(r int64) int64 {
	r |= r >> 1
	r |= r >> 2
	r |= r >> 4
	r |= r >> 8
	r |= r >> 16
	r |= r >> 32
	return r - (r >> 1)
}

// VerifyCompatibility checks that the two calendar hash chains describe the same calendar tree leaf:
//   - the aggregation times match, while the publication times may differ;
//   - the input hashes match;
//   - the right links of both chains are pairwise equal.
func (c *CalendarChain) VerifyCompatibility(with *CalendarChain) error {
	if c == nil || with == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	cTime, cErr := c.AggregationTime()
	wTime, wErr := with.AggregationTime()
	if cErr != nil || wErr != nil || !cTime.Equal(wTime) {
		return incompatible("Incompatible calendar hash chain - aggregation times mismatch.")
	}

	if c.inputHash == nil || !c.inputHash.Equal(with.inputHash) {
		return incompatible("Incompatible calendar hash chain - input hashes mismatch.")
	}

	return c.RightLinkMatch(with)
}

func incompatible(msg string) error {
	log.Info(msg)
	return errors.New(errors.KsiIncompatibleHashChain).AppendMessage(msg)
}

func (l ChainLinkList) rightLinks() ChainLinkList {
	var res ChainLinkList
	for _, link := range l {
		if !link.isLeft {
			res = append(res, link)
		}
	}
	return res
}

// RightLinkMatch verifies that the right links of the two calendar hash chains are pairwise equal.
func (c *CalendarChain) RightLinkMatch(with *CalendarChain) error {
	if c == nil || with == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if len(c.chainLinks) == 0 || len(with.chainLinks) == 0 {
		return errors.New(errors.KsiInvalidStateError).AppendMessage("Missing calendar hash chain.")
	}

	lhs := ChainLinkList(c.chainLinks).rightLinks()
	rhs := ChainLinkList(with.chainLinks).rightLinks()
	if len(lhs) != len(rhs) {
		return incompatible("Different number of right links in calendar hash chain.")
	}
	for i := range lhs {
		if !lhs[i].siblingHash.Equal(rhs[i].siblingHash) {
			return incompatible("Different sibling hashes in right links in calendar hash chains.")
		}
	}
	return nil
}
