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

package treebuilder

import (
	"github.com/guardtime/ksicore/hash"
	"github.com/guardtime/ksicore/pdu"
)

// RecordListener is notified whenever a record hash is added to a tree (see (Tree).AddNode()).
type RecordListener interface {
	TreeRecordHash(h *hash.DataHash, level byte) error
}

// MetadataListener is notified whenever a metadata record is added to a tree.
type MetadataListener interface {
	TreeMetadata(md *pdu.MetaData) error
}

// AggregateListener is notified whenever an inner node hash is computed.
type AggregateListener interface {
	TreeAggregateHash(h *hash.DataHash, level byte) error
}
