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
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/tlv"
)

// maxChainShapeLinks is the number of links the chain index of a 64 bit integer can describe.
const maxChainShapeLinks = 64 + 1

// ParseAggregationChain parses an aggregation hash chain from its binary TLV representation.
func ParseAggregationChain(raw []byte) (*AggregationChain, error) {
	return tlv.Parse[AggregationChain](raw, aggrChainTemplate)
}

// Bytes returns the binary TLV representation of the aggregation hash chain.
func (c *AggregationChain) Bytes() ([]byte, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return tlv.Serialize(c, aggrChainTemplate)
}

// Clone returns a deep copy of the aggregation hash chain.
func (c *AggregationChain) Clone() (*AggregationChain, error) {
	return tlv.DeepCopy(c, aggrChainTemplate)
}

// AggregationTime returns aggregation chain aggregation time.
func (c *AggregationChain) AggregationTime() (time.Time, error) {
	if c == nil {
		return time.Time{}, errors.New(errors.KsiInvalidArgumentError)
	}
	if c.aggrTime == nil {
		return time.Time{}, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent aggregation hash chain.").
			AppendMessage("Missing aggregation time.")
	}
	return time.Unix(int64(*c.aggrTime), 0), nil
}

// ChainIndex returns aggregation chain index.
func (c *AggregationChain) ChainIndex() ([]uint64, error) {
	if c == nil || len(c.chainIndex) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return c.chainIndex, nil
}

// InputData returns aggregation chain input data, or nil if not present.
func (c *AggregationChain) InputData() ([]byte, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return c.inputData, nil
}

// InputHash returns aggregation chain input hash.
func (c *AggregationChain) InputHash() (*hash.DataHash, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if c.inputHash == nil {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent aggregation hash chain.").
			AppendMessage("Missing input hash.")
	}
	return c.inputHash, nil
}

// AggregationAlgo returns aggregation chain aggregation algorithm.
func (c *AggregationChain) AggregationAlgo() (hash.Algorithm, error) {
	if c == nil || c.aggrAlgo == nil {
		return hash.SHA_NA, errors.New(errors.KsiInvalidArgumentError)
	}
	return hash.Algorithm(*c.aggrAlgo), nil
}

// ChainLinks returns aggregation chain links.
func (c *AggregationChain) ChainLinks() (ChainLinkList, error) {
	if c == nil || len(c.chainLinks) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return c.chainLinks, nil
}

// CalculateShape represents the shape of the aggregation chain as a bit-field. The bits represent the path
// from the root of the tree to the location of a hash value as a sequence of moves from a parent node in the
// tree to either the left or right child (bit values 0 and 1, respectively). Each bit sequence starts with a
// 1-bit to make sure no left most 0-bits are lost.
func (c *AggregationChain) CalculateShape() (uint64, error) {
	if c == nil || len(c.chainLinks) == 0 {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if len(c.chainLinks) > maxChainShapeLinks {
		return 0, errors.New(errors.KsiInvalidFormatError).AppendMessage("Aggregation chain is too long.")
	}

	var shape uint64 = 1
	for i := len(c.chainLinks) - 1; i >= 0; i-- {
		shape <<= 1
		if c.chainLinks[i].isLeft {
			shape |= 1
		}
	}
	return shape, nil
}

// Aggregate aggregates the aggregation hash chain. The startLevel parameter is the level of the input hash.
// Returns the resulting root hash and aggregation chain height.
func (c *AggregationChain) Aggregate(startLevel byte) (*hash.DataHash, byte, error) {
	if c == nil {
		return nil, 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if len(c.chainLinks) == 0 || c.aggrAlgo == nil || c.inputHash == nil {
		return nil, 0, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent aggregation chain.").
			AppendMessage("Missing mandatory aggregation chain elements.")
	}

	hsh, lvl, err := ChainLinkList(c.chainLinks).aggregate(false, hash.Algorithm(*c.aggrAlgo), c.inputHash, startLevel)
	if err != nil {
		return nil, 0, errors.KsiErr(err).AppendMessage("Failed to calculate aggregation hash chain root hash.")
	}
	return hsh, lvl, nil
}

// Identity returns the aggregation hash chain identity, the outermost link identity first.
func (c *AggregationChain) Identity() (IdentityList, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	ids := make(IdentityList, 0, len(c.chainLinks))
	for i := len(c.chainLinks) - 1; i >= 0; i-- {
		id, err := c.chainLinks[i].Identity()
		if err != nil {
			return nil, err
		}
		if id != nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// String implements the Stringer interface.
func (c *AggregationChain) String() string {
	if c == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Aggregation time: (")
	if c.aggrTime != nil {
		b.WriteString(strconv.FormatUint(*c.aggrTime, 10))
		b.WriteString(") ")
		b.WriteString(time.Unix(int64(*c.aggrTime), 0).UTC().String())
	} else {
		b.WriteString(")")
	}
	b.WriteString("\n")
	if c.chainIndex != nil {
		b.WriteString(fmt.Sprintf("Chain index     : %v\n", c.chainIndex))
	}
	if c.inputData != nil {
		b.WriteString("Input data      : ")
		b.WriteString(hex.EncodeToString(c.inputData))
		b.WriteString("\n")
	}
	b.WriteString("Input hash      : ")
	b.WriteString(c.inputHash.String())
	b.WriteString("\n")
	b.WriteString("Aggr. algorithm : ")
	if c.aggrAlgo != nil {
		b.WriteString(hash.Algorithm(*c.aggrAlgo).String())
	}
	b.WriteString("\n")
	b.WriteString(ChainLinkList(c.chainLinks).String())
	return b.String()
}

// AggregationChainList is alias type for []*AggregationChain.
type AggregationChainList []*AggregationChain

// Len implements sort.(Interface).
func (l AggregationChainList) Len() int { return len(l) }

// Less implements sort.(Interface). The chain with the longer chain index (lower in the tree) comes first.
func (l AggregationChainList) Less(i, j int) bool {
	return len(l[i].chainIndex) > len(l[j].chainIndex)
}

// Swap implements sort.(Interface).
func (l AggregationChainList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

// Sort orders the chains from the lowest to the highest in the aggregation tree.
func (l AggregationChainList) Sort() { sort.Stable(l) }

// Aggregate aggregates the aggregation hash chain list starting at level lvl and returns the result root hash and
// level. The aggregation result is the input hash of the calendar hash chain (CalendarChain).
// Note that the aggregation chains must be sequential, meaning that the root hash of previous aggregation chain
// must match the input hash of the following aggregation chain, otherwise an error is returned.
func (l AggregationChainList) Aggregate(lvl byte) (*hash.DataHash, byte, error) {
	if len(l) == 0 {
		return nil, 0, errors.New(errors.KsiInvalidArgumentError)
	}

	var (
		hsh *hash.DataHash
		err error
	)
	for _, chain := range l {
		if chain == nil || chain.inputHash == nil {
			return nil, 0, errors.New(errors.KsiInvalidStateError).
				AppendMessage("Inconsistent aggregation chain.").
				AppendMessage("Missing input hash.")
		}
		if hsh != nil && !hsh.Equal(chain.inputHash) {
			return nil, 0, errors.New(errors.KsiInvalidFormatError).AppendMessage("Hash values mismatch.")
		}

		if hsh, lvl, err = chain.Aggregate(lvl); err != nil {
			return nil, 0, err
		}
	}
	return hsh, lvl, nil
}

// Identity returns the identities present in all aggregation hash chains, the outermost first.
func (l AggregationChainList) Identity() (IdentityList, error) {
	if len(l) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var ids IdentityList
	for i := len(l) - 1; i >= 0; i-- {
		chainIDs, err := l[i].Identity()
		if err != nil {
			return nil, err
		}
		ids = append(ids, chainIDs...)
	}
	return ids, nil
}
