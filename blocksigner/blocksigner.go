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

// Package blocksigner implements signing of locally aggregated trees built by treebuilder to create multiple
// signatures with a single signature of the tree root. Depending on the configuration of treebuilder (see
// treebuilder.Tree) it is possible to perform 'plain' aggregation or block-based aggregation.
//
// Block-based aggregation inter-links the blocks to form a long term immutable chain, and adds blinding masks to
// ensure the confidentiality when the proof for a given record is extracted.
//
// Having built and signed the tree, the hash chain from any leaf (record) to the root is extracted and composed with
// the root signature into a signature of the record.
package blocksigner

import (
	"fmt"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
	"github.com/guardtime/ksicore/signature"
	"github.com/guardtime/ksicore/treebuilder"
)

// RootSigner signs the tree root hash. The level is the aggregation tree level of the root hash, which has to be
// passed to the aggregation request (see pdu.AggrReqSetRequestLevel) and to signature.BuildFromAggregationResp.
type RootSigner interface {
	Sign(rootHash *hash.DataHash, level byte) (*signature.Signature, error)
}

// RootSignerFunc is an adapter to allow the use of ordinary functions as RootSigner.
type RootSignerFunc func(rootHash *hash.DataHash, level byte) (*signature.Signature, error)

// Sign calls f(rootHash, level).
func (f RootSignerFunc) Sign(rootHash *hash.DataHash, level byte) (*signature.Signature, error) {
	return f(rootHash, level)
}

// Blocksigner is extension to treebuilder (see treebuilder.Tree) providing signing functionality.
type Blocksigner struct {
	*treebuilder.Tree

	signer        RootSigner
	rootSignature *signature.Signature
}

// New returns an initialized Blocksigner instance. It is mandatory to provide signer. The tree is configured with
// the default hash algorithm, to change or add options, see treebuilder.TreeOpt.
func New(signer RootSigner, options ...treebuilder.TreeOpt) (*Blocksigner, error) {
	if signer == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	tree, err := treebuilder.New(append([]treebuilder.TreeOpt{treebuilder.TreeOptAlgorithm(hash.Default)},
		options...,
	)...)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Failed to apply tree options.")
	}
	return &Blocksigner{
		Tree:   tree,
		signer: signer,
	}, nil
}

// Sign finalizes the tree and signs its root hash. After signing no more leafs can be added to the tree.
//
// For extracting individual record signatures, see (Blocksigner).Signatures().
func (b *Blocksigner) Sign() (*signature.Signature, error) {
	if b == nil || b.signer == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	rootHsh, rootLvl, err := b.Aggregate()
	if err != nil {
		return nil, err
	}
	log.Debug(fmt.Sprintf("Tree root level=%d hash=%s", rootLvl, rootHsh))

	sig, err := b.signer.Sign(rootHsh, rootLvl)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Failed to sign the tree root.")
	}
	if sig == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Root signer returned no signature.")
	}
	b.rootSignature = sig
	return sig, nil
}

// Signatures returns the signatures of the records and the user contexts (see
// treebuilder.InputHashOptionUserContext) in the order the records were added to the tree.
//
// The block has to be signed first (see (Blocksigner).Sign()).
func (b *Blocksigner) Signatures() ([]*signature.Signature, []interface{}, error) {
	if b == nil {
		return nil, nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if b.rootSignature == nil {
		return nil, nil, errors.New(errors.KsiInvalidStateError).AppendMessage("The block has not been signed.")
	}

	leafs, err := b.Leafs()
	if err != nil {
		return nil, nil, err
	}
	var (
		sigBuf = make([]*signature.Signature, 0, len(leafs))
		ctxBuf = make([]interface{}, 0, len(leafs))
	)
	for i, l := range leafs {
		userCtx, err := l.UserCtx()
		if err != nil {
			return nil, nil, err
		}

		aggrChain, err := l.AggregationChain()
		if err != nil {
			// The only record of a plain tree is the root itself.
			if len(leafs) == 1 && errors.KsiErr(err).Code() == errors.KsiInvalidStateError {
				leafSig, err := b.rootSignature.Clone()
				if err != nil {
					return nil, nil, err
				}
				return []*signature.Signature{leafSig}, []interface{}{userCtx}, nil
			}
			return nil, nil, err
		}

		// The chain starts from the leaf level.
		lvl, err := l.Level()
		if err != nil {
			return nil, nil, err
		}
		if lvl != 0 {
			acb, err := pdu.NewAggregationChainBuilder(pdu.BuildFromAggregationChain(aggrChain))
			if err != nil {
				return nil, nil, err
			}
			if err := acb.AdjustLevelCorrection(pdu.LevelAdd, lvl); err != nil {
				return nil, nil, errors.KsiErr(err).AppendMessage("Failed to adjust level correction.")
			}
			if aggrChain, err = acb.Build(); err != nil {
				return nil, nil, err
			}
		}

		leafSig, err := signature.New(signature.BuildWithAggrChain(b.rootSignature, aggrChain))
		if err != nil {
			return nil, nil, errors.KsiErr(err).AppendMessage(fmt.Sprintf("Failed to create signature of record %d.", i))
		}
		sigBuf = append(sigBuf, leafSig)
		ctxBuf = append(ctxBuf, userCtx)
	}
	return sigBuf, ctxBuf, nil
}
