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

// Package test contains helpers shared by the package tests.
package test

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/guardtime/ksicore/log"
)

// Case is a test case.
type Case struct {
	Func func(t *testing.T, opts ...interface{})
}

// Suite is a collection of test cases.
type Suite []Case

// Runner runs every test case in the receiver test suite.
func (ts Suite) Runner(t *testing.T, opts ...interface{}) {
	t.Helper()

	for _, tc := range ts {
		tcName := runtime.FuncForPC(reflect.ValueOf(tc.Func).Pointer()).Name()
		if i := strings.LastIndexByte(tcName, '.'); i >= 0 {
			tcName = tcName[i+1:]
		}
		log.Debug("---- :::: Run test case: ", tcName, " :::: ----")
		t.Run(tcName, func(t *testing.T) { tc.Func(t, opts...) })
	}
}

// InitLogger creates a log file <name>.log in the given directory and registers a WriterLogger writing into it.
// The returned close function unregisters the logger and closes the file. In case path is empty, a temporary
// test directory is used.
func InitLogger(t *testing.T, path string, level log.Priority, name string) (logger log.Logger, fClose func(), err error) {
	t.Helper()

	defer func() {
		if err != nil && fClose != nil {
			fClose()
			fClose = nil
		}
	}()

	if path == "" {
		path = t.TempDir()
	}
	if err = os.MkdirAll(path, os.ModePerm); err != nil {
		return
	}
	logFile, err := os.Create(filepath.Join(path, strings.Join([]string{name, "log"}, ".")))
	if err != nil {
		return
	}
	fClose = func() {
		log.SetLogger(nil)
		_ = logFile.Close()
	}

	wl, err := log.New(level, logFile)
	if err != nil {
		return
	}
	log.SetLogger(wl)
	return wl, fClose, nil
}

// HexToBin decodes a hex string. Whitespace is ignored. Panics on malformed input.
func HexToBin(s string) []byte {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		panic("String is empty!")
	}
	h, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return h
}
