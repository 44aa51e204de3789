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

import (
	"go.uber.org/zap"
)

// ZapLogger adapts a zap logger to the Logger interface. Notice level messages are logged at zap info level.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger returns a Logger backed by the given zap logger. In case z is nil, a no-op logger is used.
func NewZapLogger(z *zap.Logger) *ZapLogger {
	if z == nil {
		z = zap.NewNop()
	}
	return &ZapLogger{sugar: z.Named("ksi").Sugar()}
}

// Debug implements Logger interface.
func (l *ZapLogger) Debug(v ...interface{}) {
	if l == nil {
		return
	}
	l.sugar.Debug(v...)
}

// Info implements Logger interface.
func (l *ZapLogger) Info(v ...interface{}) {
	if l == nil {
		return
	}
	l.sugar.Info(v...)
}

// Notice implements Logger interface.
func (l *ZapLogger) Notice(v ...interface{}) {
	if l == nil {
		return
	}
	l.sugar.With("notice", true).Info(v...)
}

// Warning implements Logger interface.
func (l *ZapLogger) Warning(v ...interface{}) {
	if l == nil {
		return
	}
	l.sugar.Warn(v...)
}

// Error implements Logger interface.
func (l *ZapLogger) Error(v ...interface{}) {
	if l == nil {
		return
	}
	l.sugar.Error(v...)
}

// Sync flushes any buffered log entries.
func (l *ZapLogger) Sync() error {
	if l == nil {
		return nil
	}
	return l.sugar.Sync()
}
