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

package ksi

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
)

// Context holds the settings shared by the request and response handling of a KSI client, the process-wide
// initialization hooks registered by the client modules and the last recorded error.
type Context struct {
	mu sync.Mutex

	aggrVersion pdu.Version
	extVersion  pdu.Version
	hmacAlgo    hash.Algorithm
	logger      log.Logger

	loginID string
	key     string
	reqID   uint64

	globals []*globalPair
	lastErr *errors.KsiError
}

type globalPair struct {
	key     any
	cleanup func() error
}

// Option is a functional option for the Context.
type Option func(*Context) error

// NewContext returns a new KSI context. By default PDU version 2 is used for both the aggregation and the extending
// requests, and the HMAC is computed with the default hash algorithm.
func NewContext(opts ...Option) (*Context, error) {
	tmp := &Context{
		aggrVersion: pdu.V2,
		extVersion:  pdu.V2,
		hmacAlgo:    hash.Default,
	}
	for _, setter := range opts {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(tmp); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Unable to setup KSI context.")
		}
	}
	if tmp.logger != nil {
		log.SetLogger(tmp.logger)
	}
	log.Debug("KSI context created: aggregation PDU ", tmp.aggrVersion, ", extending PDU ", tmp.extVersion,
		", HMAC ", tmp.hmacAlgo, ".")
	return tmp, nil
}

// OptAggrPduVersion sets the aggregation PDU version.
func OptAggrPduVersion(v pdu.Version) Option {
	return func(c *Context) error {
		if c == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing context base object.")
		}
		if !v.Valid() {
			return errors.New(errors.KsiInvalidArgumentError).
				AppendMessage(fmt.Sprintf("Unsupported aggregation PDU version: %d.", v))
		}
		c.aggrVersion = v
		return nil
	}
}

// OptExtPduVersion sets the extending PDU version.
func OptExtPduVersion(v pdu.Version) Option {
	return func(c *Context) error {
		if c == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing context base object.")
		}
		if !v.Valid() {
			return errors.New(errors.KsiInvalidArgumentError).
				AppendMessage(fmt.Sprintf("Unsupported extending PDU version: %d.", v))
		}
		c.extVersion = v
		return nil
	}
}

// OptHmacAlgorithm sets the hash algorithm used for the PDU HMAC computation.
func OptHmacAlgorithm(algorithm hash.Algorithm) Option {
	return func(c *Context) error {
		if c == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing context base object.")
		}
		if !algorithm.Registered() {
			return errors.New(errors.KsiUnknownHashAlgorithm).
				AppendMessage(fmt.Sprintf("Algorithm is not supported: %s.", algorithm))
		}
		if !algorithm.Trusted() {
			return errors.New(errors.KsiInvalidStateError).
				AppendMessage(fmt.Sprintf("Algorithm is not trusted: %s.", algorithm))
		}
		c.hmacAlgo = algorithm
		return nil
	}
}

// OptLogger registers l as the package logger when the context is created.
func OptLogger(l log.Logger) Option {
	return func(c *Context) error {
		if c == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing context base object.")
		}
		if l == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing logger.")
		}
		c.logger = l
		return nil
	}
}

// OptCredentials sets the login ID and the shared secret key used for the PDU header and HMAC.
func OptCredentials(loginID, key string) Option {
	return func(c *Context) error {
		if c == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing context base object.")
		}
		if loginID == "" {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Login id must not be empty.")
		}
		c.loginID = loginID
		c.key = key
		return nil
	}
}

// AggrPduVersion returns the aggregation PDU version.
func (c *Context) AggrPduVersion() pdu.Version {
	if c == nil {
		return pdu.VerUnknown
	}
	return c.aggrVersion
}

// ExtPduVersion returns the extending PDU version.
func (c *Context) ExtPduVersion() pdu.Version {
	if c == nil {
		return pdu.VerUnknown
	}
	return c.extVersion
}

// HmacAlgorithm returns the PDU HMAC algorithm.
func (c *Context) HmacAlgorithm() hash.Algorithm {
	if c == nil {
		return hash.SHA_NA
	}
	return c.hmacAlgo
}

func (c *Context) nextRequestID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqID++
	return c.reqID
}

func (c *Context) header() (*pdu.Header, error) {
	if c.loginID == "" {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing credentials.")
	}
	return pdu.NewHeader(c.loginID, nil)
}

// NewAggregationReq returns a signed aggregation request for the request hash at the given aggregation tree level.
// The request ID is assigned by the context.
func (c *Context) NewAggregationReq(h *hash.DataHash, level byte) (*pdu.AggregatorReq, error) {
	if c == nil || h == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	req, err := pdu.NewAggregationReq(c.aggrVersion, h,
		pdu.AggrReqSetRequestLevel(level),
		pdu.AggrReqSetRequestID(c.nextRequestID()),
	)
	if err != nil {
		return nil, c.SetError(err)
	}
	hdr, err := c.header()
	if err != nil {
		return nil, c.SetError(err)
	}
	if err := req.SetHeader(hdr); err != nil {
		return nil, c.SetError(err)
	}
	if err := req.UpdateHMAC(c.hmacAlgo, c.key); err != nil {
		return nil, c.SetError(errors.KsiErr(err).AppendMessage("Failed to compute aggregation request HMAC."))
	}
	return req, nil
}

// NewExtendingReq returns a signed extending request for the calendar hash chain from aggrTime to pubTime. A zero
// pubTime requests the chain up to the most recent calendar record.
func (c *Context) NewExtendingReq(aggrTime, pubTime time.Time) (*pdu.ExtenderReq, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	req, err := pdu.NewExtendingReq(c.extVersion, aggrTime,
		pdu.ExtReqSetPubTime(pubTime),
		pdu.ExtReqSetRequestID(c.nextRequestID()),
	)
	if err != nil {
		return nil, c.SetError(err)
	}
	hdr, err := c.header()
	if err != nil {
		return nil, c.SetError(err)
	}
	if err := req.SetHeader(hdr); err != nil {
		return nil, c.SetError(err)
	}
	if err := req.UpdateHMAC(c.hmacAlgo, c.key); err != nil {
		return nil, c.SetError(errors.KsiErr(err).AppendMessage("Failed to compute extending request HMAC."))
	}
	return req, nil
}

// ParseAggregatorResp parses the aggregator response and verifies its status and HMAC.
func (c *Context) ParseAggregatorResp(raw []byte) (*pdu.AggregatorResp, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	resp, err := pdu.ParseAggregatorResp(raw)
	if err != nil {
		return nil, c.SetError(err)
	}
	if resp.Version() != c.aggrVersion {
		return nil, c.SetError(errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unexpected aggregator response PDU version: %s.", resp.Version())))
	}
	if err := resp.Verify(c.hmacAlgo, c.key); err != nil {
		return nil, c.SetError(err)
	}
	return resp, nil
}

// ParseExtenderResp parses the extender response and verifies its status and HMAC.
func (c *Context) ParseExtenderResp(raw []byte) (*pdu.ExtenderResp, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	resp, err := pdu.ParseExtenderResp(raw)
	if err != nil {
		return nil, c.SetError(err)
	}
	if resp.Version() != c.extVersion {
		return nil, c.SetError(errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unexpected extender response PDU version: %s.", resp.Version())))
	}
	if err := resp.Verify(c.hmacAlgo, c.key); err != nil {
		return nil, c.SetError(err)
	}
	return resp, nil
}

// RegisterGlobals runs init and registers cleanup to be run when the context is closed. The key identifies the
// registering module and must be comparable; a repeated registration with the same key is a no-op.
func (c *Context) RegisterGlobals(key any, init, cleanup func() error) error {
	if c == nil || key == nil || init == nil || !comparableKey(key) {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.globals {
		if g.key == key {
			return nil
		}
	}
	if err := init(); err != nil {
		return errors.KsiErr(err).AppendMessage("Global initialization failed.")
	}
	c.globals = append(c.globals, &globalPair{key: key, cleanup: cleanup})
	return nil
}

func comparableKey(key any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return key == key
}

// GlobalsInitCount returns the number of registered initialization hooks.
func (c *Context) GlobalsInitCount() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.globals)
}

// Close runs the registered cleanup functions in the reverse order of registration and clears the registry.
// All cleanup functions are run, the failures are collected into a single error.
func (c *Context) Close() error {
	if c == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	c.mu.Lock()
	globals := c.globals
	c.globals = nil
	c.mu.Unlock()

	var result *multierror.Error
	for i := len(globals) - 1; i >= 0; i-- {
		if globals[i].cleanup == nil {
			continue
		}
		if err := globals[i].cleanup(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		log.Error("KSI context cleanup failed: ", err)
		return errors.New(errors.KsiExternalError).SetExtError(err).
			AppendMessage(fmt.Sprintf("%d cleanup function(s) failed.", len(result.Errors)))
	}
	return nil
}

// SetError records err as the last error of the context and returns it as KsiError.
func (c *Context) SetError(err error) *errors.KsiError {
	ksiErr := errors.KsiErr(err)
	if c == nil {
		return ksiErr
	}
	c.mu.Lock()
	c.lastErr = ksiErr
	c.mu.Unlock()
	return ksiErr
}

// LastError returns the last recorded error, or nil.
func (c *Context) LastError() *errors.KsiError {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ErrorTrace returns the trace of the last recorded error.
func (c *Context) ErrorTrace() string {
	return c.LastError().Trace()
}

// BaseErrorMessage returns the base message of the last recorded error.
func (c *Context) BaseErrorMessage() string {
	return c.LastError().BaseMessage()
}
