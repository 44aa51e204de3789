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
	"fmt"
	"io"
	golog "log"
	"os"

	"github.com/guardtime/ksicore/errors"
)

// Priority is the log level.
type Priority int

// Log priorities, in order of increasing severity.
const (
	DEBUG Priority = iota
	INFO
	NOTICE
	WARNING
	ERROR
	// NONE disables logging.
	NONE
)

var priorityTags = map[Priority]string{
	DEBUG:   "[D]",
	INFO:    "[I]",
	NOTICE:  "[N]",
	WARNING: "[W]",
	ERROR:   "[E]",
}

func (p Priority) String() string {
	switch p {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case NOTICE:
		return "NOTICE"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case NONE:
		return "NONE"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// WriterLogger is a basic Logger implementation that writes lines of formatted output to an io.Writer.
type WriterLogger struct {
	level  Priority
	logger *golog.Logger
}

// New returns a new WriterLogger that outputs messages with priority equal or higher than level.
// In case w is nil, the output is directed to os.Stdout.
func New(level Priority, w io.Writer) (*WriterLogger, error) {
	if level < DEBUG || level >= NONE {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage(fmt.Sprintf("Invalid log level: %s.", level))
	}
	if w == nil {
		w = os.Stdout
	}
	return &WriterLogger{
		level:  level,
		logger: golog.New(w, "", golog.LstdFlags|golog.Lmicroseconds),
	}, nil
}

func (l *WriterLogger) log(p Priority, v ...interface{}) {
	if l == nil || l.logger == nil || p < l.level {
		return
	}
	l.logger.Print(priorityTags[p], " ", fmt.Sprint(v...))
}

// Debug implements Logger interface.
func (l *WriterLogger) Debug(v ...interface{}) { l.log(DEBUG, v...) }

// Info implements Logger interface.
func (l *WriterLogger) Info(v ...interface{}) { l.log(INFO, v...) }

// Notice implements Logger interface.
func (l *WriterLogger) Notice(v ...interface{}) { l.log(NOTICE, v...) }

// Warning implements Logger interface.
func (l *WriterLogger) Warning(v ...interface{}) { l.log(WARNING, v...) }

// Error implements Logger interface.
func (l *WriterLogger) Error(v ...interface{}) { l.log(ERROR, v...) }
