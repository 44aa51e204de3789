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

package publications

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
	"github.com/guardtime/ksicore/pki"
)

// FileHandler is publications file (see File) processor. It loads the file from the configured source, keeps it
// cached for the configured time and verifies it with the PKI verifier.
type FileHandler struct {
	source   FileBuilder
	file     *File
	fileTTL  time.Duration
	verifier *pki.Verifier

	files   *cache.Cache
	rxMutex sync.Mutex
}

const (
	defaultPubFileTTL = time.Hour * 8

	fileCacheKey = "file"
)

// NewFileHandler returns a new publications file handler instance.
func NewFileHandler(settings ...FileHandlerSetting) (*FileHandler, error) {
	tmp := fileHandler{obj: FileHandler{
		fileTTL: defaultPubFileTTL,
	}}
	for _, setter := range settings {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Setting is a nil pointer.")
		}
		if err := setter(&tmp); err != nil {
			return nil, err
		}
	}

	ttl := tmp.obj.fileTTL
	if ttl == 0 {
		ttl = cache.NoExpiration
	}
	tmp.obj.files = cache.New(ttl, 0)
	return &tmp.obj, nil
}

// FileHandlerSetting is handler initialization option.
type (
	FileHandlerSetting func(*fileHandler) error
	fileHandler        struct {
		obj FileHandler
	}
)

// FileHandlerSetSource specifies the publications file loader, e.g. FileFromFile.
func FileHandlerSetSource(source FileBuilder) FileHandlerSetting {
	return func(h *fileHandler) error {
		if h == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing file handler base object.")
		}
		if source == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		h.obj.source = source
		return nil
	}
}

// FileHandlerSetFile publications file setter. An explicitly set file is returned by ReceiveFile regardless of the
// configured source.
func FileHandlerSetFile(p *File) FileHandlerSetting {
	return func(h *fileHandler) error {
		if h == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing file handler base object.")
		}
		if p == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		h.obj.file = p
		return nil
	}
}

// FileHandlerSetVerifier specifies the PKI verifier for the publications file and calendar authentication records.
func FileHandlerSetVerifier(v *pki.Verifier) FileHandlerSetting {
	return func(h *fileHandler) error {
		if h == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing file handler base object.")
		}
		if v == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		h.obj.verifier = v
		return nil
	}
}

// FileHandlerSetFileTTL specifies the loaded publications file cache timeout.
//
// After the timeout expires, a call to the ReceiveFile() will trigger a reload from the source.
// In order to disable the timeout, set the duration to 0.
func FileHandlerSetFileTTL(d time.Duration) FileHandlerSetting {
	return func(h *fileHandler) error {
		if h == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing file handler base object.")
		}
		if d < 0 {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Duration can not be negative.")
		}
		h.obj.fileTTL = d
		return nil
	}
}

// ReceiveFile returns the publications file. A file loaded from the source is verified and cached; sequential calls
// return the cached file until the cache timeout expires.
func (h *FileHandler) ReceiveFile() (*File, error) {
	if h == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if h.file != nil {
		return h.file, nil
	}
	if h.source == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Publications file source not configured.")
	}

	h.rxMutex.Lock()
	defer h.rxMutex.Unlock()

	if f, ok := h.files.Get(fileCacheKey); ok {
		return f.(*File), nil
	}

	log.Debug("Loading publications file.")
	pubFile, err := NewFile(h.source)
	if err != nil {
		return nil, err
	}
	if err := h.Verify(pubFile); err != nil {
		return nil, err
	}
	h.files.Set(fileCacheKey, pubFile, cache.DefaultExpiration)
	return pubFile, nil
}

// FileTTL returns loaded publications file cache timeout.
func (h *FileHandler) FileTTL() (time.Duration, error) {
	if h == nil {
		return time.Duration(0), errors.New(errors.KsiInvalidArgumentError)
	}
	return h.fileTTL, nil
}

// Verifier returns the configured PKI verifier, or nil if not set.
func (h *FileHandler) Verifier() (*pki.Verifier, error) {
	if h == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return h.verifier, nil
}

// Verify verifies the PKI signature of the publications file.
func (h *FileHandler) Verify(p *File) error {
	if h == nil || p == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if h.verifier == nil {
		return errors.New(errors.KsiInvalidStateError).AppendMessage("PKI verifier not configured.")
	}
	return p.Verify(h.verifier)
}

// VerifyRecord verifies the calendar authentication record against the publications file.
func (h *FileHandler) VerifyRecord(rec *pdu.CalendarAuthRec) error {
	if h == nil || rec == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if h.verifier == nil {
		return errors.New(errors.KsiInvalidStateError).AppendMessage("PKI verifier not configured.")
	}
	p, err := h.ReceiveFile()
	if err != nil {
		return err
	}
	return p.VerifyRecord(rec, h.verifier)
}
