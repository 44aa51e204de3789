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

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pki"
	"github.com/guardtime/ksicore/publications"
	"github.com/guardtime/ksicore/signature"
	"github.com/guardtime/ksicore/signature/verify/result"
)

type argVal int

const (
	argProgName argVal = iota
	argInSigFile
	argPubFile
	argCertFile
	argCnstrCN
	nofArgs
)

func main() {

	// Handle exit code.
	exit := 0xff
	defer func() { os.Exit(exit) }()

	/* Handle command line parameters. */
	if len(os.Args) != int(nofArgs) {
		fmt.Printf("Usage:\n")
		fmt.Printf("  %s <sig-file> <pubfile> <trusted-cert-pem> <cert-cn>\n", os.Args[argProgName])
		exit = 1
		return
	}

	// Create log file.
	logFile, err := os.Create(strings.Join([]string{filepath.Base(os.Args[argProgName]), "log"}, "."))
	if err != nil {
		fmt.Println("Failed to create log file: ", err)
		exit = 1
		return
	}
	defer logFile.Close()
	// Initialize logger.
	logger, err := log.New(log.DEBUG, logFile)
	if err != nil {
		fmt.Println("Failed to initialize logger: ", err)
		exit = 1
		return
	}
	// Apply logger.
	log.SetLogger(logger)

	sig, err := signature.New(signature.BuildNoVerify(signature.BuildFromFile(os.Args[argInSigFile])))
	if err != nil {
		fmt.Println("Failed to open signature file: ", err)
		exit = int(errors.KsiErr(err).Code())
		return
	}

	certPem, err := os.ReadFile(os.Args[argCertFile])
	if err != nil {
		fmt.Println("Failed to read trusted certificate: ", err)
		exit = 1
		return
	}
	verifier, err := pki.NewVerifier(
		pki.VerifierSetTrustedCertificatePem(certPem),
		pki.VerifierSetCertConstraint(pki.OidCommonName, os.Args[argCnstrCN]),
	)
	if err != nil {
		fmt.Println("Failed to initialize PKI verifier: ", err)
		exit = int(errors.KsiErr(err).Code())
		return
	}

	pfHandler, err := publications.NewFileHandler(
		publications.FileHandlerSetSource(publications.FileFromFile(os.Args[argPubFile])),
		publications.FileHandlerSetVerifier(verifier),
	)
	if err != nil {
		fmt.Println("Failed to initialize publications file handler: ", err)
		exit = int(errors.KsiErr(err).Code())
		return
	}

	verCtx, err := signature.NewVerificationContext(sig,
		signature.VerCtxOptPublicationsFileHandler(pfHandler),
		signature.VerCtxOptPkiVerifier(verifier),
	)
	if err != nil {
		fmt.Println("Failed to initialize verification context: ", err)
		exit = int(errors.KsiErr(err).Code())
		return
	}

	fmt.Println("Verifying signature...")
	policy := signature.GeneralPolicy
	res, err := policy.Verify(verCtx)
	if err != nil {
		fmt.Println("Failed to complete signature verification due to an error: ", err)
		exit = int(errors.KsiErr(err).Code())
		return
	}
	verRes, err := verCtx.Result()
	if err != nil {
		fmt.Println("Failed to read verification result: ", err)
		exit = int(errors.KsiErr(err).Code())
		return
	}
	fmt.Println("Verification info:")
	for _, pr := range verRes.PolicyResults() {
		fmt.Println("Policy:", pr.PolicyName())
		for _, rr := range pr.RuleResults() {
			fmt.Println("Rule result:", rr)
		}
	}
	fmt.Println("Final result:", verRes.FinalResult())
	switch res {
	case result.OK:
		fmt.Println("Verification successful.")
	case result.NA:
		fmt.Println("Verification inconclusive.")
	case result.FAIL:
		fmt.Println("Verification failed.")
	default:
		fmt.Println("Unexpected verification result.")
	}

	if res == result.FAIL {
		exit = 1
		return
	}

	exit = 0
}
