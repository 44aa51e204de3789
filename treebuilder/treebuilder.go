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

// Package treebuilder implements local aggregation of document hashes into a Merkle tree.
//
// The root hash of a locally aggregated tree is signed with a single signature. The signature of a single document
// is then composed from the root signature and the aggregation hash chain of the document leaf, see
// signature.BuildWithAggrChain.
//
// # Blinding masks
//
// The hash chain extracted from the tree for one leaf contains hash values of other nodes, including the
// neighboring record. A typical log record may contain insufficient entropy to prevent an attacker from testing all
// variants of the record against the hash value in the chain. To prevent this, a blinding mask is aggregated with
// each record hash.
//
// Following three record masking options are supported:
//
//   - No masking (default).
//
//   - Blinding mask is computed by hashing the previous leaf hash and the initialization vector (IV). The blocks are
//     inter-linked, but a block can only be started when the previous one is complete. See TreeOptMaskingWithPreviousLeaf.
//
//   - Blinding mask is computed by hashing the 1-based record index in the block and the IV. The records can be
//     processed in parallel. See TreeOptMaskingWithIndex.
package treebuilder

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"time"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/log"
	"github.com/guardtime/ksicore/pdu"
)

const maxTreeLevel = 0xff

type (
	// Tree is the Merkle tree builder.
	Tree struct {
		// Aggregation algorithm used to compute the hash values of the inner nodes.
		algorithm hash.Algorithm
		// Maximum level of the root hash.
		maxLevel byte
		leafs    []*TreeNode

		aggrRoot *TreeNode
		aggrTime time.Time

		// Masking with previous leaf is used if initLeaf is set, masking with index if only iv is set.
		initLeaf  *hash.DataHash
		lastLeaf  *hash.DataHash
		iv        []byte
		leafCount uint64
		hsr       *hash.DataHasher
		// Roots of the complete subtrees, indexed by the subtree height in leaf count.
		cache [64]*TreeNode

		recordListener    RecordListener
		metadataListener  MetadataListener
		aggregateListener AggregateListener
	}

	// TreeNode is a leaf or an inner node of the tree.
	TreeNode struct {
		tree *Tree

		hsh  *hash.DataHash
		meta *pdu.MetaData
		// Bytes contributed to the parent hash.
		value []byte
		level byte

		userCtx interface{}

		parent *TreeNode
		lChild *TreeNode
		rChild *TreeNode
	}
)

// New returns a new tree builder. By default the aggregation algorithm is hash.Default, the maximum tree level is
// 0xff and masking is disabled.
func New(options ...TreeOpt) (*Tree, error) {
	tmp := tree{obj: Tree{
		algorithm: hash.Default,
		maxLevel:  maxTreeLevel,
	}}

	for _, setter := range options {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(&tmp); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Unable to apply tree option.")
		}
	}
	return &tmp.obj, nil
}

type (
	// TreeOpt is the configuration option for the tree builder.
	TreeOpt func(*tree) error
	tree    struct {
		obj Tree
	}
)

// TreeOptAlgorithm sets the aggregation algorithm.
func TreeOptAlgorithm(alg hash.Algorithm) TreeOpt {
	return func(t *tree) error {
		if t == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing tree builder.")
		}
		if !alg.Trusted() || !alg.Registered() {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Invalid hash algorithm.")
		}
		log.Debug("Setting hash algorithm to: ", alg)
		t.obj.algorithm = alg
		return nil
	}
}

// TreeOptMaxLevel sets the maximum level of the root hash.
func TreeOptMaxLevel(lvl byte) TreeOpt {
	return func(t *tree) error {
		if t == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing tree builder.")
		}
		t.obj.maxLevel = lvl
		return nil
	}
}

// TreeOptMaskingWithPreviousLeaf enables masking with the previous leaf hash and iv. The leaf is the last leaf of the
// previous block (see (Tree).LastLeaf()), or a zero hash for the very first block (see hash.Zero()).
// The iv should be about as long as the outputs of the hash function and kept with the same confidentiality as the
// data itself.
func TreeOptMaskingWithPreviousLeaf(iv []byte, leaf *hash.DataHash) TreeOpt {
	return func(t *tree) error {
		if t == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing tree builder.")
		}
		if leaf == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing previous leaf.")
		}
		if len(iv) == 0 {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing IV.")
		}
		log.Debug("Block inter-linking previous leaf: ", leaf)

		t.obj.initLeaf = leaf.Clone()
		t.obj.lastLeaf = leaf.Clone()
		t.obj.iv = append([]byte(nil), iv...)
		return nil
	}
}

// TreeOptMaskingWithIndex enables masking with the record index and iv.
func TreeOptMaskingWithIndex(iv []byte) TreeOpt {
	return func(t *tree) error {
		if t == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing tree builder.")
		}
		if len(iv) == 0 {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing IV.")
		}
		t.obj.iv = append([]byte(nil), iv...)
		return nil
	}
}

// TreeOptRecordListener sets the listener notified of every added record hash.
func TreeOptRecordListener(l RecordListener) TreeOpt {
	return func(t *tree) error {
		if t == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing tree builder.")
		}
		if l == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing record listener.")
		}
		t.obj.recordListener = l
		return nil
	}
}

// TreeOptMetadataListener sets the listener notified of every added metadata record.
func TreeOptMetadataListener(l MetadataListener) TreeOpt {
	return func(t *tree) error {
		if t == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing tree builder.")
		}
		if l == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing metadata listener.")
		}
		t.obj.metadataListener = l
		return nil
	}
}

// TreeOptAggregateListener sets the listener notified of every computed inner node hash.
func TreeOptAggregateListener(l AggregateListener) TreeOpt {
	return func(t *tree) error {
		if t == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing tree builder.")
		}
		if l == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing aggregate listener.")
		}
		t.obj.aggregateListener = l
		return nil
	}
}

// AddNode adds a new leaf to the tree.
//
// If adding the leaf would make the level of the root hash greater than the tree maximum level,
// errors.KsiBufferOverflow error is returned.
func (t *Tree) AddNode(inputHash *hash.DataHash, options ...InputHashOption) error {
	if t == nil || inputHash == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if t.aggrRoot != nil {
		log.Error("Trying to add new leaf to a closed tree.")
		return errors.New(errors.KsiInvalidStateError).AppendMessage("Tree is closed.")
	}

	opts := inputHashOptions{tree: t}
	for _, setter := range options {
		if setter == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(&opts); err != nil {
			return errors.KsiErr(err).AppendMessage("Unable to apply input hash option.")
		}
	}

	height, err := t.expectedHeight(opts.level, opts.meta != nil)
	if err != nil {
		return errors.KsiErr(err).AppendMessage("Unable to add node to the tree.")
	}
	if height > t.maxLevel {
		return errors.New(errors.KsiBufferOverflow).AppendMessage("Tree max level overflow.")
	}

	xi := &TreeNode{
		tree:    t,
		hsh:     inputHash.Clone(),
		value:   inputHash.Imprint(),
		level:   opts.level,
		userCtx: opts.userCtx,
	}
	if t.recordListener != nil {
		if err := t.recordListener.TreeRecordHash(xi.hsh, xi.level); err != nil {
			return errors.KsiErr(err).AppendMessage("Tree record hash listener failed.")
		}
	}

	node := xi
	if opts.meta != nil {
		mdi := &TreeNode{tree: t, meta: opts.meta, value: opts.metaValue}
		if t.metadataListener != nil {
			if err := t.metadataListener.TreeMetadata(opts.meta); err != nil {
				return errors.KsiErr(err).AppendMessage("Tree metadata listener failed.")
			}
		}
		if node, err = t.joinNodes(node, mdi); err != nil {
			return errors.KsiErr(err).AppendMessage("Failed to aggregate nodes.")
		}
	}

	if t.useBlindingMask() {
		mask, err := t.blindingMask()
		if err != nil {
			return errors.KsiErr(err).AppendMessage("Failed to calculate blinding mask.")
		}
		log.Debug(fmt.Sprintf("Blinding mask for node[%d]: %s", t.leafCount, mask))

		mi := &TreeNode{tree: t, hsh: mask, value: mask.Imprint()}
		if node, err = t.joinNodes(mi, node); err != nil {
			return errors.KsiErr(err).AppendMessage("Failed to aggregate nodes.")
		}
	}

	if err = t.insertNode(node, 0); err != nil {
		return err
	}
	t.leafs = append(t.leafs, xi)
	t.lastLeaf = node.hsh
	t.leafCount++
	return nil
}

type inputHashOptions struct {
	tree      *Tree
	level     byte
	meta      *pdu.MetaData
	metaValue []byte
	userCtx   interface{}
}

// InputHashOption is the configuration option for (Tree).AddNode.
type InputHashOption func(o *inputHashOptions) error

// InputHashOptionLevel sets the input hash level. Can not be used together with masking.
func InputHashOptionLevel(level byte) InputHashOption {
	return func(o *inputHashOptions) error {
		if o == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing options object.")
		}
		if o.tree.useBlindingMask() && level != 0 {
			return errors.New(errors.KsiInvalidStateError).
				AppendMessage("Level can not be used in combination with blinding mask.")
		}
		o.level = level
		return nil
	}
}

// InputHashOptionMetadata joins the metadata with the input hash into a sub-tree, which is added to the tree.
// The metadata raises the level of the sub-tree by one.
func InputHashOptionMetadata(md *pdu.MetaData) InputHashOption {
	return func(o *inputHashOptions) error {
		if md == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if o == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing options object.")
		}
		t, err := md.EncodeToTlv()
		if err != nil {
			return errors.KsiErr(err).AppendMessage("Unable to create metadata leaf.")
		}
		value, err := t.Value()
		if err != nil {
			return errors.KsiErr(err).AppendMessage("Unable to create metadata leaf.")
		}
		o.meta = md
		o.metaValue = value
		return nil
	}
}

// InputHashOptionUserContext associates user private data with the leaf, see (TreeNode).UserCtx().
// The data is not linked into the tree.
func InputHashOptionUserContext(userCtx interface{}) InputHashOption {
	return func(o *inputHashOptions) error {
		if userCtx == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if o == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing options object.")
		}
		o.userCtx = userCtx
		return nil
	}
}

func (t *Tree) expectedHeight(inputLevel byte, hasMeta bool) (byte, error) {
	height := int(inputLevel)
	if hasMeta {
		height++
	}
	if t.useBlindingMask() {
		height++
	}
	if height > int(t.maxLevel) {
		return 0, errors.New(errors.KsiBufferOverflow).
			AppendMessage(fmt.Sprintf("Tree height exceeding the max level '%d'.", t.maxLevel))
	}

	// The new node is joined with every cached subtree root.
	for _, n := range t.cache[:bits.Len(uint(len(t.leafs)))] {
		if n == nil {
			continue
		}
		if n.level > byte(height) {
			height = int(n.level)
		}
		if height >= int(t.maxLevel) {
			return 0, errors.New(errors.KsiBufferOverflow).
				AppendMessage(fmt.Sprintf("Tree height exceeding the max level '%d'.", t.maxLevel))
		}
		height++
	}
	return byte(height), nil
}

// Count returns the number of records in the tree. Metadata and masks are not counted.
func (t *Tree) Count() (int, error) {
	if t == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return len(t.leafs), nil
}

func (t *Tree) useBlindingMask() bool {
	return t.iv != nil
}

func (t *Tree) hasher() (*hash.DataHasher, error) {
	if t.hsr == nil {
		hsr, err := t.algorithm.New()
		if err != nil {
			return nil, err
		}
		t.hsr = hsr
	}
	t.hsr.Reset()
	return t.hsr, nil
}

// blindingMask returns m[i] = hash(x[i-1] || IV) when masking with previous leaf, otherwise m[i] = hash(i || IV)
// with the 1-based record index i.
func (t *Tree) blindingMask() (*hash.DataHash, error) {
	hsr, err := t.hasher()
	if err != nil {
		return nil, err
	}
	if t.initLeaf != nil {
		if _, err := hsr.Write(t.lastLeaf.Imprint()); err != nil {
			return nil, err
		}
	} else {
		idx := make([]byte, binary.MaxVarintLen64)
		n := binary.PutUvarint(idx, t.leafCount+1)
		if _, err := hsr.Write(idx[:n]); err != nil {
			return nil, err
		}
	}
	if _, err := hsr.Write(t.iv); err != nil {
		return nil, err
	}
	return hsr.Close()
}

func (t *Tree) insertNode(n *TreeNode, at int) error {
	if at >= len(t.cache) {
		return errors.New(errors.KsiBufferOverflow).AppendMessage("Tree leaf count overflow.")
	}
	if t.cache[at] == nil {
		t.cache[at] = n
		return nil
	}

	tmp, err := t.joinNodes(t.cache[at], n)
	if err != nil {
		return errors.KsiErr(err).AppendMessage("Failed to aggregate nodes.")
	}
	t.cache[at] = nil
	return t.insertNode(tmp, at+1)
}

func (t *Tree) joinNodes(l, r *TreeNode) (*TreeNode, error) {
	lvl := l.level
	if r.level > lvl {
		lvl = r.level
	}
	if lvl >= t.maxLevel {
		return nil, errors.New(errors.KsiBufferOverflow).
			AppendMessage(fmt.Sprintf("Tree height exceeding the max level '%d'.", t.maxLevel))
	}
	lvl++

	hsr, err := t.hasher()
	if err != nil {
		return nil, err
	}
	for _, b := range [][]byte{l.value, r.value, {lvl}} {
		if _, err := hsr.Write(b); err != nil {
			return nil, err
		}
	}
	hsh, err := hsr.Close()
	if err != nil {
		return nil, err
	}

	tmp := &TreeNode{
		tree:   t,
		hsh:    hsh,
		value:  hsh.Imprint(),
		level:  lvl,
		lChild: l,
		rChild: r,
	}
	if t.aggregateListener != nil {
		if err := t.aggregateListener.TreeAggregateHash(hsh, lvl); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Tree aggregate hash listener failed.")
		}
	}
	l.parent = tmp
	r.parent = tmp
	return tmp, nil
}

// Aggregate returns the root hash and the level of the tree. The tree is finalized, no leafs can be added
// afterwards. Repeated calls return the same root.
func (t *Tree) Aggregate() (*hash.DataHash, byte, error) {
	if t == nil {
		return nil, 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if len(t.leafs) == 0 {
		return nil, 0, errors.New(errors.KsiInvalidStateError).AppendMessage("Tree is empty.")
	}

	if t.aggrRoot == nil {
		var (
			root *TreeNode
			err  error
		)
		for _, n := range t.cache {
			if n == nil {
				continue
			}
			if root == nil {
				root = n
				continue
			}
			if root, err = t.joinNodes(n, root); err != nil {
				return nil, 0, errors.KsiErr(err).AppendMessage("Failed to aggregate nodes.")
			}
		}
		t.aggrRoot = root
		t.aggrTime = time.Now()
	}
	return t.aggrRoot.hsh.Clone(), t.aggrRoot.level, nil
}

// LastLeaf returns the last leaf hash of the tree, which is used for masking the next block
// (see TreeOptMaskingWithPreviousLeaf). With masking, the value is the hash of the masked record.
func (t *Tree) LastLeaf() (*hash.DataHash, error) {
	if t == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if t.lastLeaf == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Tree is empty.")
	}
	return t.lastLeaf.Clone(), nil
}

// Leafs returns the records in the order they were added. Only applicable for a finalized tree.
func (t *Tree) Leafs() ([]*TreeNode, error) {
	if t == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if t.aggrRoot == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("The tree has not been finalized.")
	}
	return t.leafs, nil
}

// Level returns the input level of the leaf.
func (n *TreeNode) Level() (byte, error) {
	if n == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return n.level, nil
}

// AggregationChain returns the aggregation hash chain from the leaf to the tree root. Only applicable for a
// finalized tree.
func (n *TreeNode) AggregationChain() (*pdu.AggregationChain, error) {
	if n == nil || n.tree == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if n.tree.aggrRoot == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("The tree has not been finalized.")
	}
	if n.parent == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Single leaf tree has no hash chain.")
	}

	b, err := pdu.NewAggregationChainBuilder(pdu.BuildFromImprint(n.tree.algorithm, n.hsh))
	if err != nil {
		return nil, err
	}
	if err := b.SetAggregationTime(n.tree.aggrTime); err != nil {
		return nil, err
	}

	for node := n; node.parent != nil; node = node.parent {
		isLeft := node == node.parent.lChild
		sibling := node.parent.lChild
		if isLeft {
			sibling = node.parent.rChild
		}

		siblingData := pdu.LinkSiblingHash(sibling.hsh)
		if sibling.meta != nil {
			siblingData = pdu.LinkSiblingMetaData(sibling.meta)
		}
		if err := b.AddChainLink(isLeft, node.parent.level-node.level-1, siblingData); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// UserCtx returns the user data associated with the leaf, see InputHashOptionUserContext.
func (n *TreeNode) UserCtx() (interface{}, error) {
	if n == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return n.userCtx, nil
}
