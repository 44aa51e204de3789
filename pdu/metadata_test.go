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

package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/ksicore/errors"
	"github.com/guardtime/ksicore/test"
	"github.com/guardtime/ksicore/tlv"
)

func TestUnitMetaData(t *testing.T) {
	test.Suite{
		{Func: testMetaDataNilUsage},
		{Func: testMetaDataPaddingAlignment},
		{Func: testMetaDataParseValid},
		{Func: testMetaDataParseInvalidPadding},
		{Func: testMetaDataMissingClientID},
		{Func: testLegacyID},
		{Func: testLegacyIDParseInvalid},
	}.Runner(t)
}

func parseTlv(t *testing.T, raw []byte) *tlv.Tlv {
	tmp, err := tlv.NewTlv(tlv.ConstructFromSlice(raw))
	require.NoError(t, err)
	return tmp
}

func testMetaDataNilUsage(t *testing.T, _ ...interface{}) {
	var md *MetaData
	_, err := md.ClientID()
	assert.Error(t, err)
	_, err = md.Encode()
	assert.Error(t, err)
	assert.False(t, md.HasPadding())
	assert.Equal(t, "", md.String())

	_, err = NewMetaData("")
	assert.Error(t, err)
}

func testMetaDataPaddingAlignment(t *testing.T, _ ...interface{}) {
	for _, clientID := range []string{"a", "ab", "abc", "abcd"} {
		md, err := NewMetaData(clientID, MetaDataSequenceNr(1))
		require.NoError(t, err)

		raw, err := md.Encode()
		require.NoError(t, err)
		assert.True(t, md.HasPadding())

		value, err := md.value()
		require.NoError(t, err)
		assert.Equal(t, 0, len(value)%2, "Metadata value must be even for client id %q.", clientID)
		// Padding is the first element, flagged N and F.
		assert.Equal(t, byte(0x7e), value[0])

		parsed, err := metaDataFromTlv(parseTlv(t, raw))
		require.NoError(t, err)
		id, err := parsed.ClientID()
		require.NoError(t, err)
		assert.Equal(t, clientID, id)
	}
}

func testMetaDataParseValid(t *testing.T, _ ...interface{}) {
	md, err := metaDataFromTlv(parseTlv(t, test.HexToBin("04 08 7e 02 01 01 01 02 61 00")))
	require.NoError(t, err)
	assert.True(t, md.HasPadding())
	id, _ := md.ClientID()
	assert.Equal(t, "a", id)

	// Parsed metadata is re-encoded as received.
	raw, err := md.Encode()
	require.NoError(t, err)
	assert.Equal(t, test.HexToBin("04 08 7e 02 01 01 01 02 61 00"), raw)

	// Metadata without padding is accepted.
	md, err = metaDataFromTlv(parseTlv(t, test.HexToBin("04 04 01 02 61 00")))
	require.NoError(t, err)
	assert.False(t, md.HasPadding())
}

func testMetaDataParseInvalidPadding(t *testing.T, _ ...interface{}) {
	for _, tc := range []struct {
		raw string
		msg string
	}{
		{"04 08 01 02 61 00 7e 02 01 01", "Metadata padding is not the first element."},
		{"04 08 1e 02 01 01 01 02 61 00", "Metadata padding flags mismatch."},
		{"04 08 7e 02 01 02 01 02 61 00", "Metadata padding value mismatch."},
		{"04 07 7e 01 01 01 02 61 00", "Metadata padding does not align the value."},
	} {
		_, err := metaDataFromTlv(parseTlv(t, test.HexToBin(tc.raw)))
		require.Error(t, err, tc.raw)
		assert.Equal(t, tc.msg, errors.KsiErr(err).Message()[0], tc.raw)
	}
}

func testMetaDataMissingClientID(t *testing.T, _ ...interface{}) {
	_, err := metaDataFromTlv(parseTlv(t, test.HexToBin("04 03 03 01 05")))
	require.Error(t, err)
	assert.Equal(t, "Mandatory element missing: [0x04]->[0x01]client id", errors.KsiErr(err).Message()[0])
}

func testLegacyID(t *testing.T, _ ...interface{}) {
	_, err := NewLegacyID("")
	assert.Error(t, err)
	_, err = NewLegacyID("abcdefghijklmnopqrstuvwxyz")
	assert.Error(t, err, "At most 25 octets allowed.")

	id, err := NewLegacyID("Test")
	require.NoError(t, err)
	raw, err := id.Bytes()
	require.NoError(t, err)
	expected := append(test.HexToBin("03 00 04 54 65 73 74"), make([]byte, 22)...)
	assert.Equal(t, expected, raw)

	parsed, err := legacyIDFromTlv(parseTlv(t, append(test.HexToBin("03 1d"), expected...)))
	require.NoError(t, err)
	str, err := parsed.ClientID()
	require.NoError(t, err)
	assert.Equal(t, "Test", str)
}

func testLegacyIDParseInvalid(t *testing.T, _ ...interface{}) {
	valid := append(test.HexToBin("03 00 04 54 65 73 74"), make([]byte, 22)...)

	for _, tc := range []struct {
		value []byte
		msg   string
	}{
		{valid[:28], "Legacy ID data length mismatch."},
		{append([]byte{0x03, 0x01}, valid[2:]...), "Legacy ID header mismatch."},
		{append([]byte{0x03, 0x00, 0x1a}, valid[3:]...), "Legacy ID string length mismatch."},
		{append(append([]byte(nil), valid[:28]...), 0x01), "Legacy ID padding mismatch."},
	} {
		raw, err := tlv.NewTlv(tlv.ConstructRaw(tagLegacyID, false, false, tc.value))
		require.NoError(t, err)
		_, err = legacyIDFromTlv(raw)
		require.Error(t, err)
		assert.Equal(t, tc.msg, errors.KsiErr(err).Message()[0])
	}
}
