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
	"fmt"
	"slices"
	"strings"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
)

// MaxLevel returns the maximum level value that the nodes in the client's aggregation tree are allowed to have.
// Applicable for aggregation service only.
func (c *Config) MaxLevel() (byte, error) {
	if c == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if c.maxLevel == nil {
		return 0, nil
	}
	if *c.maxLevel > maxTreeLevel {
		return 0, errors.New(errors.KsiInvalidFormatError).AppendMessage("Max level exceeds 0xff.")
	}
	return byte(*c.maxLevel), nil
}

// AggrAlgo returns the hash function that the client is recommended to use in its aggregation trees.
// Applicable for aggregation service only.
func (c *Config) AggrAlgo() (hash.Algorithm, error) {
	if c == nil {
		return hash.SHA_NA, errors.New(errors.KsiInvalidArgumentError)
	}
	if c.aggrAlgo == nil {
		return hash.Default, nil
	}
	return hash.Algorithm(*c.aggrAlgo), nil
}

// AggrPeriod returns the recommended duration of client's aggregation round in milliseconds.
// Applicable for aggregation service only.
func (c *Config) AggrPeriod() (uint64, error) {
	if c == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return valueOf(c.aggrPeriod), nil
}

// MaxReq returns the maximum number of requests the client is allowed to send within the recommended duration.
func (c *Config) MaxReq() (uint64, error) {
	if c == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return valueOf(c.maxReq), nil
}

// ParentURI returns the parent server URI list. Typically, these are all members of one cluster.
func (c *Config) ParentURI() ([]string, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return c.parentURI, nil
}

// CalFirst returns the aggregation time of the oldest calendar record the extender has.
// Applicable for extending service only.
func (c *Config) CalFirst() (uint64, error) {
	if c == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return valueOf(c.calFirst), nil
}

// CalLast returns the aggregation time of the newest calendar record the extender has.
// Applicable for extending service only.
func (c *Config) CalLast() (uint64, error) {
	if c == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return valueOf(c.calLast), nil
}

func valueOf(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

// String implements fmt.(Stringer) interface.
func (c *Config) String() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Config:\n")
	if c.maxLevel != nil {
		fmt.Fprintf(&b, "  Maximum level: %d\n", *c.maxLevel)
	}
	if c.aggrAlgo != nil {
		fmt.Fprintf(&b, "  Aggregation hash algorithm: %s\n", hash.Algorithm(*c.aggrAlgo))
	}
	if c.aggrPeriod != nil {
		fmt.Fprintf(&b, "  Aggregation period: %d\n", *c.aggrPeriod)
	}
	if c.maxReq != nil {
		fmt.Fprintf(&b, "  Maximum requests: %d\n", *c.maxReq)
	}
	if c.calFirst != nil {
		fmt.Fprintf(&b, "  Calendar first time: %d\n", *c.calFirst)
	}
	if c.calLast != nil {
		fmt.Fprintf(&b, "  Calendar last time: %d\n", *c.calLast)
	}
	if len(c.parentURI) != 0 {
		b.WriteString("  Parent URI:\n")
		for i, uri := range c.parentURI {
			fmt.Fprintf(&b, "  %d: %s\n", i, uri)
		}
	}
	return b.String()
}

// ConfigLimits bounds the values accepted by (Config).Consolidate.
type ConfigLimits struct {
	MaxLevelLow, MaxLevelHigh     uint64
	AggrPeriodLow, AggrPeriodHigh uint64
	MaxReqLow, MaxReqHigh         uint64
	// CalFirstLow limits the aggregation time of the oldest calendar record to be accepted. Calendar last time is
	// only required to be not before calendar first time.
	CalFirstLow uint64
}

// ConfigConsStrategy is the logic upon which configuration values are consolidated.
type ConfigConsStrategy struct {
	// MaxLevelKeepLargest: if set, the largest value is preserved, otherwise the smallest.
	MaxLevelKeepLargest bool
	// AggrAlgorithm: if hash.SHA_NA, the latest trusted value is preserved. Otherwise it overrides the received value.
	AggrAlgorithm hash.Algorithm
	// AggrPeriodKeepLargest: if set, the largest value is preserved, otherwise the smallest.
	AggrPeriodKeepLargest bool
	// MaxRequestsKeepLargest: if set, the largest value is preserved, otherwise the smallest.
	MaxRequestsKeepLargest bool
	// ParentURIAppend: if set, the received unique URIs are appended to the present list.
	ParentURIAppend bool
	// CalFirstKeepEarliest: if set, the earliest value is preserved, otherwise the latest.
	CalFirstKeepEarliest bool
}

func pick(cur, val *uint64, low, high uint64, keepLargest bool, name string) *uint64 {
	switch {
	case val == nil:
		return cur
	case *val < low || *val > high:
		log.Info(fmt.Sprintf("The %s value is not in the valid range: %d", name, *val))
		return cur
	case cur == nil, keepLargest && *cur < *val, !keepLargest && *cur > *val:
		return newUint64(*val)
	default:
		return cur
	}
}

// Consolidate merges cfg into the receiver configuration based on the provided limits and strategy.
func (c *Config) Consolidate(cfg *Config, limits ConfigLimits, logic ConfigConsStrategy) error {
	if c == nil || cfg == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	c.maxLevel = pick(c.maxLevel, cfg.maxLevel, limits.MaxLevelLow, limits.MaxLevelHigh, logic.MaxLevelKeepLargest, "max level")
	c.aggrPeriod = pick(c.aggrPeriod, cfg.aggrPeriod, limits.AggrPeriodLow, limits.AggrPeriodHigh,
		logic.AggrPeriodKeepLargest, "aggregation period")
	c.maxReq = pick(c.maxReq, cfg.maxReq, limits.MaxReqLow, limits.MaxReqHigh, logic.MaxRequestsKeepLargest, "max requests")

	if cfg.aggrAlgo != nil {
		switch alg := hash.Algorithm(*cfg.aggrAlgo); {
		case logic.AggrAlgorithm != hash.SHA_NA:
			c.aggrAlgo = newUint64(uint64(logic.AggrAlgorithm))
		case !alg.Trusted():
			log.Info("The aggregation algorithm is not trusted: ", alg)
		default:
			c.aggrAlgo = newUint64(uint64(alg))
		}
	}

	if len(cfg.parentURI) != 0 {
		var uris []string
		if logic.ParentURIAppend {
			uris = append(uris, c.parentURI...)
		}
		for _, uri := range cfg.parentURI {
			if !slices.Contains(uris, uri) {
				uris = append(uris, uri)
			}
		}
		c.parentURI = uris
	}

	if cfg.calFirst != nil {
		if *cfg.calFirst < limits.CalFirstLow {
			log.Info("The calendar first time is not in the valid range: ", *cfg.calFirst)
		} else if c.calFirst == nil ||
			(!logic.CalFirstKeepEarliest && *c.calFirst < *cfg.calFirst) ||
			(logic.CalFirstKeepEarliest && *c.calFirst > *cfg.calFirst) {
			c.calFirst = newUint64(*cfg.calFirst)
		}
	}

	if cfg.calLast != nil {
		if *cfg.calLast < limits.CalFirstLow || (c.calFirst != nil && *c.calFirst > *cfg.calLast) {
			log.Info("The calendar last time is not in the valid range: ", *cfg.calLast)
		} else if c.calLast == nil || *c.calLast < *cfg.calLast {
			c.calLast = newUint64(*cfg.calLast)
		}
	}
	return nil
}
