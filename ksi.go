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

/*
Package ksi implements the core of a KSI keyless signature client: the protocol data structures, the KSI signature
and its verification. The transport to the aggregation and extending services is left to the caller. The package
itself provides the client Context which holds the protocol settings and builds and checks the service PDUs.

Note that the following tutorial is incremental, meaning the parameter names used in example code blocks are defined
in previous example blocks.

# Logging

The subpackage log defines logging interface type log.Logger and a basic logger implementation for writing lines
to an io.Writer. An existing go.uber.org/zap logger can be plugged in with log.NewZapLogger().

By default logging is disabled. In order to enable logging of the API internals, an implementation to a logger has
to be registered in the log package, e.g. setting default logger:

	// Create an instance of default logger. Write log output to stdout.
	logger, err = log.New(level, nil)
	if err != nil {
		return
	}
	// Register the logger
	log.SetLogger(logger)

In order to disable logging, set logger to nil. The logger can also be registered via the context option OptLogger.

# Errors

Almost every method of the API returns an error parameter alongside with a value (if applicable). All returned errors
are of type errors.KsiError. For troubleshooting, the KsiError provides following information:

	error code     - for error verification and recovery logic;
	error message  - a stack of human readable descriptive messages;
	cause          - the error that caused this one (see errors.Wrap);
	stack trace    - the stack trace of the error registration;
	extended error - an error code, or error from e.g. std library.

The base message of an error is the first message of the innermost cause. The trace lists all messages of the cause
chain, the most recent first:

	if err := sig.Verify(signature.InternalPolicy); err != nil {
		ksiErr := errors.KsiErr(err)
		log.Error(ksiErr.BaseMessage())
		log.Debug(ksiErr.Trace())
	}

For simplicity reasons, the error handling in this tutorial is mostly omitted.

# Context

The Context holds the PDU versions, the HMAC algorithm and the service credentials:

	ctx, err := ksi.NewContext(
		ksi.OptAggrPduVersion(pdu.V2),
		ksi.OptHmacAlgorithm(hash.SHA2_256),
		ksi.OptCredentials("user", "key"),
	)
	defer ctx.Close()

Requests built by the context carry the header, a unique request ID and the HMAC:

	req, err := ctx.NewAggregationReq(docHash, 0)
	raw, err := req.Encode()

A received response is parsed and its status and HMAC are verified:

	resp, err := ctx.ParseAggregatorResp(respRaw)

The last error recorded by the context is available via ctx.LastError(), ctx.ErrorTrace() and
ctx.BaseErrorMessage(). Modules needing a process-wide initialization register it once per key with ctx.RegisterGlobals();
the cleanup functions run in reverse order on ctx.Close().

# Hashing data

KSI defines an imprint structure, which consists of a one-octet hash function identifier concatenated with the hash
value itself. The subpackage hash provides the hash.DataHash type and the hash function registry.

	hasher, err := hash.Default.New()
	if _, err := io.Copy(hasher, docFile); err != nil {
		return errors.New(errors.KsiIoError).AppendMessage("Failed to add data to hasher.").SetExtError(err)
	}
	docHash, err := hasher.Close()

For more detailed information about hash algorithms and hashing, see subpackage hash documentation.

# Reading a KSI signature

A signature instance can be created in several ways by providing a suitable initializer of type signature.Builder
to the signature constructor signature.New(). The following initializers read a serialized signature:

	signature.BuildFromBytes(raw []byte)
	signature.BuildFromStream(r io.Reader)
	signature.BuildFromFile(path string)

An aggregation response, parsed with the context, is turned into a signature with:

	sig, err := signature.New(signature.BuildFromAggregationResp(resp, 0))

An extending response replaces the calendar hash chain of an existing signature:

	extSig, err := signature.New(signature.BuildFromExtendingResp(extResp, sig, pubRec))

A signature of a locally aggregated document is composed with:

	docSig, err := signature.New(signature.BuildWithAggrChain(rootSig, localChain))

The signature.BuildNoVerify must be used with care as the returned signature instance will not be verified for
internal consistency. The common use case would be to initialize an erroneous KSI signature for troubleshooting.

	sig, err := signature.New(signature.BuildNoVerify(signature.BuildFromFile("signature.ksig")))

To save the signature, serialize it first.

	bin, err := sig.Serialize()

# Publications file

A publications file type publications.File is constructed with publications.NewFile() and an initializer of type
publications.FileBuilder. A publications file handler re-reads the file from its source once the cached copy
expires and verifies it with the PKI verifier.

	verifier, err := pki.NewVerifier(
		pki.VerifierUseSystemCertStore(),
		pki.VerifierSetCertConstraint(pki.OidEmail, "publications@guardtime.com"),
	)
	pubFileHandler, err := publications.NewFileHandler(
		publications.FileHandlerSetSource(publications.FileFromFile("ksi-publications.bin")),
		publications.FileHandlerSetVerifier(verifier),
		publications.FileHandlerSetFileTTL(time.Hour),
	)

# Verify signature

Signatures are verified according to one or more policies. A verification policy is a set of ordered rules that verify
relevant signature properties. Verifying a signature according to a policy results in one of three possible outcomes:

	OK   - there is enough data to prove that the signature is correct.
	NA   - there is not enough data to prove or disprove the correctness of the signature. With some other policy it
	       might still be possible.
	FAIL - the signature is definitely invalid or the document does not match the signature.

The predefined policies are:

	signature.InternalPolicy                     - consistency of the signature components and the document hash;
	signature.CalendarBasedPolicy                - the calendar hash chain against the calendar provider;
	signature.KeyBasedPolicy                     - the calendar authentication record against its certificate;
	signature.PublicationsFileBasedPolicy        - the publication record against the publications file;
	signature.UserProvidedPublicationBasedPolicy - the publication record against the user publication;
	signature.GeneralPolicy                      - any of the above trust anchors;
	signature.DefaultPolicy                      - key-based with a fallback to calendar-based verification.

All policies perform internal verification first. The provided signature is never modified. In case any verification
step requires extending, only the extended calendar hash chain is requested from the calendar provider.

For the most basic verification the returned error of signature.(Signature).Verify() can be checked:

	err = sig.Verify(signature.DefaultPolicy,
		signature.VerCtxOptDocumentHash(docHash),
		signature.VerCtxOptExtendingPermitted(true),
		signature.VerCtxOptCalendarProvider(calendarProvider),
		signature.VerCtxOptPublicationsFileHandler(pubFileHandler),
	)

For a detailed verification result, read the report:

	verRes, err := sig.VerificationResult()
	for _, pr := range verRes.PolicyResults() {
		fmt.Println(pr.PolicyName())
		for _, rr := range pr.RuleResults() {
			fmt.Println(rr)
		}
	}
	fmt.Println(verRes.FinalResult())

# Signing a block of records

Many records can be signed with one aggregation request by building a local aggregation tree. The block signer passes
the tree root to a RootSigner, which wraps the transport of the application:

	bs, err := blocksigner.New(blocksigner.RootSignerFunc(func(h *hash.DataHash, lvl byte) (*signature.Signature, error) {
		req, err := ctx.NewAggregationReq(h, lvl)
		...
		resp, err := ctx.ParseAggregatorResp(raw)
		...
		return signature.New(signature.BuildFromAggregationResp(resp, lvl))
	}), treebuilder.TreeOptMaskingWithIndex(iv))

	for _, rec := range records {
		err = bs.AddNode(rec, treebuilder.InputHashOptionUserContext(rec))
	}
	_, err = bs.Sign()
	sigs, userCtxs, err := bs.Signatures()

# Acknowledgments

This product includes package github.com/fullsailor/pkcs7.
*/
package ksi
