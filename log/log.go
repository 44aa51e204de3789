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

// Package log routes the log events of the KSI packages to a registered Logger.
//
// Logging is disabled until a logger is registered with SetLogger(). SetLogger(nil) disables it again. The package
// provides two implementations: WriterLogger prints formatted lines to an io.Writer and ZapLogger forwards the events
// to a go.uber.org/zap logger.
package log

import "sync/atomic"

type holder struct {
	l Logger
}

var current atomic.Pointer[holder]

// SetLogger registers the process-wide logger. In order to disable logging set l to nil.
func SetLogger(l Logger) {
	if l == nil {
		current.Store(nil)
		return
	}
	current.Store(&holder{l: l})
}

// Current returns the registered logger, or nil if logging is disabled.
func Current() Logger {
	if h := current.Load(); h != nil {
		return h.l
	}
	return nil
}

// Debug logs at debug priority.
func Debug(v ...interface{}) {
	if l := Current(); l != nil {
		l.Debug(v...)
	}
}

// Info logs at info priority.
func Info(v ...interface{}) {
	if l := Current(); l != nil {
		l.Info(v...)
	}
}

// Notice logs at notice priority.
func Notice(v ...interface{}) {
	if l := Current(); l != nil {
		l.Notice(v...)
	}
}

// Warning logs at warning priority.
func Warning(v ...interface{}) {
	if l := Current(); l != nil {
		l.Warning(v...)
	}
}

// Error logs at error priority.
func Error(v ...interface{}) {
	if l := Current(); l != nil {
		l.Error(v...)
	}
}
