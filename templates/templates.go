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

// Package templates implements the TLV template registry.
package templates

import (
	"fmt"
	"sort"
	"sync"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/tlv"
)

type tlvTemplates map[string]*tlv.Template
type templateRegistry struct {
	sync.RWMutex
	templates tlvTemplates
}

var (
	registry templateRegistry
	once     sync.Once
)

// Register adds a TLV template to the registry under its name.
// Returns an error in case a template with the same name is already registered.
func Register(tmpl *tlv.Template) error {
	return getRegistry().addNewTemplate(tmpl)
}

// MustRegister is like Register, but panics on error. Intended for package initialization.
func MustRegister(list ...*tlv.Template) {
	for _, tmpl := range list {
		if err := Register(tmpl); err != nil {
			panic(err)
		}
	}
}

// Get returns a TLV template for a given name.
// Note that the templates has to be registered prior via Register().
func Get(name string) (*tlv.Template, error) {
	r := getRegistry()
	r.RLock()
	defer r.RUnlock()

	if len(r.templates) == 0 {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("TLV templates are not initialized.")
	}

	template, ok := r.templates[name]
	if !ok {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage(fmt.Sprintf("TLV Template does not exist for: '%s'.", name))
	}
	return template, nil
}

// GetAll returns a sorted list of registered TLV template names.
func GetAll() []string {
	r := getRegistry()
	r.RLock()
	defer r.RUnlock()

	if len(r.templates) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.templates))
	for k := range r.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func getRegistry() *templateRegistry {
	once.Do(func() {
		registry.templates = make(tlvTemplates)
	})
	return &registry
}

func (m *templateRegistry) addNewTemplate(tmpl *tlv.Template) error {
	if m == nil || tmpl == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if tmpl.Name == "" {
		return errors.New(errors.KsiInvalidArgumentError).AppendMessage("TLV template name must be provided.")
	}

	m.Lock()
	defer m.Unlock()

	if _, alreadyExists := m.templates[tmpl.Name]; alreadyExists {
		return errors.New(errors.KsiInvalidStateError).
			AppendMessage(fmt.Sprintf("TLV Template already exists for: '%s'.", tmpl.Name))
	}
	m.templates[tmpl.Name] = tmpl
	return nil
}
