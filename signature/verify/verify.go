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
// Package verify contains the verification steps and the collaborators consumed by the signature verification
// engine.
package verify

import (
	"crypto/x509"
	"strings"
	"time"

	"github.com/guardtime/ksicore/pdu"
)

// CalendarProvider is used to deliver calendar hash chains from the server to the client.
type CalendarProvider interface {
	// ReceiveCalendar returns a calendar hash chain where from specifies the time of the aggregation round from which
	// the calendar hash chain should start, and to is the time of the calendar root hash value to which the
	// aggregation hash value should be connected by the calendar hash chain. The zero value of to requests the
	// most recent calendar root.
	ReceiveCalendar(from, to time.Time) (*pdu.CalendarChain, error)
}

// PKIVerifier verifies PKI signatures against a trust store. See pki.Verifier.
type PKIVerifier interface {
	// VerifyPKCS7 verifies the detached PKCS#7 signature sig over content.
	VerifyPKCS7(sig, content []byte) error
	// VerifySignature verifies the raw signature sig of type sigType over signed with the certificate cert.
	VerifySignature(cert *x509.Certificate, sigType string, signed, sig []byte) error
}

// Step is a verification step flag. Steps are combined into a bit set.
type Step uint16

const (
	// StepDocument verifies the document hash.
	StepDocument Step = 1 << iota
	// StepAggrChainInternally verifies the aggregation hash chains internally.
	StepAggrChainInternally
	// StepAggrChainWithCalendarChain verifies the aggregation hash chains against the calendar hash chain.
	StepAggrChainWithCalendarChain
	// StepCalChainInternally verifies the calendar hash chain internally.
	StepCalChainInternally
	// StepCalChainWithCalAuthRec verifies the calendar hash chain against the calendar authentication record.
	StepCalChainWithCalAuthRec
	// StepCalChainWithPublication verifies the calendar hash chain against a publication.
	StepCalChainWithPublication
	// StepCalChainOnline verifies the calendar hash chain against the online calendar.
	StepCalChainOnline
	// StepCalAuthRecWithSignature verifies the calendar authentication record PKI signature.
	StepCalAuthRecWithSignature
	// StepPubFileSignature verifies the publications file PKI signature.
	StepPubFileSignature
	// StepPublicationWithPubFile verifies the publication record against the publications file.
	StepPublicationWithPubFile

	stepLast
)

var stepNames = map[Step]string{
	StepDocument:                   "Document",
	StepAggrChainInternally:        "AggrChainInternally",
	StepAggrChainWithCalendarChain: "AggrChainWithCalendarChain",
	StepCalChainInternally:         "CalChainInternally",
	StepCalChainWithCalAuthRec:     "CalChainWithCalAuthRec",
	StepCalChainWithPublication:    "CalChainWithPublication",
	StepCalChainOnline:             "CalChainOnline",
	StepCalAuthRecWithSignature:    "CalAuthRecWithSignature",
	StepPubFileSignature:           "PubFileSignature",
	StepPublicationWithPubFile:     "PublicationWithPubFile",
}

// Has reports whether all steps of s are set in the receiver.
func (st Step) Has(s Step) bool {
	return s != 0 && st&s == s
}

// String implements fmt.(Stringer) interface. A set of steps is listed with '|' separators.
func (st Step) String() string {
	if st == 0 {
		return "None"
	}
	var names []string
	for s := Step(1); s < stepLast; s <<= 1 {
		if st&s != 0 {
			names = append(names, stepNames[s])
		}
	}
	return strings.Join(names, "|")
}
