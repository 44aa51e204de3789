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

package log

// Logger receives the log events of the KSI packages. Implementations must be safe for concurrent use in case the
// library is used from several goroutines.
type Logger interface {
	// Debug receives the parsing, aggregation and verification rule traces.
	Debug(v ...interface{})
	// Info receives the state changes of the verification, e.g. a fallback policy being invoked.
	Info(v ...interface{})
	// Notice receives events worth noting for the operator, e.g. a publications file reload.
	Notice(v ...interface{})
	// Warning receives the recoverable failures.
	Warning(v ...interface{})
	// Error receives the failures returned to the caller.
	Error(v ...interface{})
}

var (
	_ Logger = (*WriterLogger)(nil)
	_ Logger = (*ZapLogger)(nil)
)
