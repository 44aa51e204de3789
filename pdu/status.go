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
	"github.com/guardtime/ksicore/errors"
)

var (
	commonStatus = map[uint64]errors.ErrorCode{
		0x0101: errors.KsiServiceInvalidRequest,
		0x0102: errors.KsiServiceAuthenticationFailure,
		0x0103: errors.KsiServiceInvalidPayload,
		0x0200: errors.KsiServiceInternalError,
		0x0300: errors.KsiServiceUpstreamError,
		0x0301: errors.KsiServiceUpstreamTimeout,
	}
	aggregatorStatus = map[uint64]errors.ErrorCode{
		0x0104: errors.KsiServiceAggrRequestTooLarge,
		0x0105: errors.KsiServiceAggrRequestOverQuota,
		0x0106: errors.KsiServiceAggrTooManyRequests,
		0x0107: errors.KsiServiceAggrInputTooLong,
	}
	extenderStatus = map[uint64]errors.ErrorCode{
		0x0104: errors.KsiServiceExtenderInvalidTimeRange,
		0x0105: errors.KsiServiceExtenderRequestTimeTooOld,
		0x0106: errors.KsiServiceExtenderRequestTimeTooNew,
		0x0107: errors.KsiServiceExtenderRequestTimeInFuture,
		0x0201: errors.KsiServiceExtenderDatabaseMissing,
		0x0202: errors.KsiServiceExtenderDatabaseCorrupt,
	}
)

func statusToError(status uint64, specific map[uint64]errors.ErrorCode) *errors.KsiError {
	if status == 0 {
		return nil
	}
	code, ok := specific[status]
	if !ok {
		if code, ok = commonStatus[status]; !ok {
			code = errors.KsiServiceUnknownError
		}
	}
	return errors.New(code).SetExtErrorCode(int(status))
}

// aggregatorStatusToError converts an aggregator status code to errors.(KsiError).
func aggregatorStatusToError(status uint64) error {
	if err := statusToError(status, aggregatorStatus); err != nil {
		return err
	}
	return nil
}

// extenderStatusToError converts an extender status code to errors.(KsiError).
func extenderStatusToError(status uint64) error {
	if err := statusToError(status, extenderStatus); err != nil {
		return err
	}
	return nil
}

func responseErr(status *uint64, msg *string, conv func(uint64) error, what string) error {
	if status == nil {
		return errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent " + what + ".").
			AppendMessage("Missing response status.")
	}
	if err := conv(*status); err != nil {
		if msg != nil {
			return errors.KsiErr(err).AppendMessage(*msg)
		}
		return err
	}
	return nil
}

// Status returns the error payload status code.
func (e *Error) Status() (uint64, error) {
	if e == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if e.status == nil {
		return 0, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing error status.")
	}
	return *e.status, nil
}

// ErrorMsg returns the error payload message, or empty string if not present.
func (e *Error) ErrorMsg() (string, error) {
	if e == nil {
		return "", errors.New(errors.KsiInvalidArgumentError)
	}
	if e.errorMsg == nil {
		return "", nil
	}
	return *e.errorMsg, nil
}
