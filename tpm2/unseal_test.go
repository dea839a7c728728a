// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2025 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package tpm2_test

import (
	"bytes"
	"encoding/binary"

	"github.com/canonical/go-tpm2"
	. "gopkg.in/check.v1"

	"github.com/snapcore/trustedkeys"
	"github.com/snapcore/trustedkeys/internal/testutil"
	"github.com/snapcore/trustedkeys/internal/tpm2test"
	. "github.com/snapcore/trustedkeys/tpm2"
)

type unsealSuite struct{}

var _ = Suite(&unsealSuite{})

var loadedObject = tpm2.Handle(0x80000002)

func loadResponse() []byte {
	handle := loadedObject
	name := []byte{0x00, 0x02, 0xde, 0xad}
	return tpm2test.ResponsePacket(tpm2.TagSessions, tpm2.ResponseSuccess, &handle, name, tpm2test.PasswordAuthResponse())
}

func unsealResponse(data []byte) []byte {
	return tpm2test.ResponsePacket(tpm2.TagSessions, tpm2.ResponseSuccess, nil, tpm2test.MakeSensitiveData(data), tpm2test.PasswordAuthResponse())
}

func flushResponse() []byte {
	return tpm2test.ResponsePacket(tpm2.TagNoSessions, tpm2.ResponseSuccess, nil, nil)
}

func (s *unsealSuite) testRawAreas(c *C, attrs tpm2.ObjectAttributes) []byte {
	priv := tpm2test.MakePrivateArea(bytes.Repeat([]byte{0xaa}, 60))
	pub := tpm2test.MakePublicArea(tpm2.HashAlgorithmSHA256, attrs, nil)
	return append(priv, pub...)
}

func (s *unsealSuite) TestUnsealKeyFromTPM(c *C) {
	rawAreas := s.testRawAreas(c, tpm2.AttrFixedTPM|tpm2.AttrFixedParent|tpm2.AttrUserWithAuth)
	blob, err := EncodeKeyBlob(rawAreas, 0x81000001, true)
	c.Assert(err, IsNil)

	key := bytes.Repeat([]byte{0x5a}, 32)

	transport := tpm2test.NewTransport(
		&tpm2test.Exchange{Response: loadResponse()},
		&tpm2test.Exchange{Response: unsealResponse(key)},
		&tpm2test.Exchange{Response: flushResponse()})
	tpm := NewConnection(transport)

	payload := &trustedkeys.KeyPayload{Blob: blob}
	options := &trustedkeys.KeyOptions{ParentHandle: 0x81000001}

	c.Assert(UnsealKeyFromTPM(tpm, payload, options), IsNil)
	c.Check(transport.Remaining(), Equals, 0)
	c.Check(payload.Key, DeepEquals, key)
	c.Check(payload.Migratable, testutil.IsFalse)
	c.Check(payload.OldFormat, testutil.IsFalse)

	c.Assert(transport.Commands, HasLen, 3)

	// TPM2_Load of the decoded private and public areas under the
	// caller supplied parent
	load := transport.Commands[0]
	c.Check(binary.BigEndian.Uint32(load[6:]), Equals, uint32(0x157))
	c.Check(binary.BigEndian.Uint32(load[10:]), Equals, uint32(0x81000001))
	authSize := int(binary.BigEndian.Uint32(load[14:]))
	c.Check(load[18+authSize:], DeepEquals, rawAreas)

	// TPM2_Unseal of the loaded object
	unseal := transport.Commands[1]
	c.Check(binary.BigEndian.Uint32(unseal[6:]), Equals, uint32(0x15e))
	c.Check(binary.BigEndian.Uint32(unseal[10:]), Equals, uint32(loadedObject))

	// TPM2_FlushContext of the loaded object
	c.Check(transport.Commands[2], DeepEquals, testutil.DecodeHexString(c, "80010000000e0000016580000002"))
}

func (s *unsealSuite) TestUnsealKeyFromTPMLegacyBlob(c *C) {
	rawAreas := s.testRawAreas(c, tpm2.AttrFixedTPM|tpm2.AttrFixedParent|tpm2.AttrUserWithAuth)

	key := bytes.Repeat([]byte{0x5a}, 32)

	transport := tpm2test.NewTransport(
		&tpm2test.Exchange{Response: loadResponse()},
		&tpm2test.Exchange{Response: unsealResponse(append(key, 0x01))},
		&tpm2test.Exchange{Response: flushResponse()})
	tpm := NewConnection(transport)

	payload := &trustedkeys.KeyPayload{Blob: rawAreas}
	options := &trustedkeys.KeyOptions{ParentHandle: 0x81000001}

	c.Assert(UnsealKeyFromTPM(tpm, payload, options), IsNil)
	c.Check(payload.OldFormat, testutil.IsTrue)
	c.Check(payload.Key, DeepEquals, key)

	// the trailing byte of the unsealed data overrides the flag
	// derived from the object attributes
	c.Check(payload.Migratable, testutil.IsTrue)

	load := transport.Commands[0]
	authSize := int(binary.BigEndian.Uint32(load[14:]))
	c.Check(load[18+authSize:], DeepEquals, rawAreas)
}

func (s *unsealSuite) TestUnsealKeyFromTPMWithPolicyHandle(c *C) {
	rawAreas := s.testRawAreas(c, tpm2.AttrFixedTPM|tpm2.AttrFixedParent)
	blob, err := EncodeKeyBlob(rawAreas, 0x81000001, false)
	c.Assert(err, IsNil)

	key := bytes.Repeat([]byte{0x5a}, 32)

	transport := tpm2test.NewTransport(
		&tpm2test.Exchange{Response: loadResponse()},
		&tpm2test.Exchange{Response: unsealResponse(key)},
		&tpm2test.Exchange{Response: flushResponse()})
	tpm := NewConnection(transport)

	payload := &trustedkeys.KeyPayload{Blob: blob}
	options := &trustedkeys.KeyOptions{
		ParentHandle: 0x81000001,
		PolicyHandle: 0x03000000,
		BlobAuth:     []byte("abcd")}

	c.Assert(UnsealKeyFromTPM(tpm, payload, options), IsNil)

	// the unseal is authorized by the caller's policy session, with
	// the object auth value sent in plaintext
	unseal := transport.Commands[1]
	authSize := int(binary.BigEndian.Uint32(unseal[14:]))
	c.Check(unseal[18:18+authSize], DeepEquals, testutil.DecodeHexString(c, "030000000000000004"+"61626364"))
}

func (s *unsealSuite) TestUnsealKeyFromTPMLoadAuthFail(c *C) {
	rawAreas := s.testRawAreas(c, tpm2.AttrFixedTPM|tpm2.AttrFixedParent|tpm2.AttrUserWithAuth)
	blob, err := EncodeKeyBlob(rawAreas, 0x81000001, true)
	c.Assert(err, IsNil)

	transport := tpm2test.NewTransport(
		&tpm2test.Exchange{Response: tpm2test.ErrorResponse(0x98e)})
	tpm := NewConnection(transport)

	payload := &trustedkeys.KeyPayload{Blob: blob}
	options := &trustedkeys.KeyOptions{ParentHandle: 0x81000001, ParentAuth: []byte("wrong")}

	uerr := UnsealKeyFromTPM(tpm, payload, options)
	c.Assert(uerr, FitsTypeOf, trustedkeys.AuthFailError{})
	c.Check(uerr.(trustedkeys.AuthFailError).Handle, Equals, uint32(0x81000001))
	c.Check(transport.Commands, HasLen, 1)
}

func (s *unsealSuite) TestUnsealKeyFromTPMUnsealAuthFailStillFlushes(c *C) {
	rawAreas := s.testRawAreas(c, tpm2.AttrFixedTPM|tpm2.AttrFixedParent|tpm2.AttrUserWithAuth)
	blob, err := EncodeKeyBlob(rawAreas, 0x81000001, false)
	c.Assert(err, IsNil)

	transport := tpm2test.NewTransport(
		&tpm2test.Exchange{Response: loadResponse()},
		&tpm2test.Exchange{Response: tpm2test.ErrorResponse(0x98e)},
		&tpm2test.Exchange{Response: flushResponse()})
	tpm := NewConnection(transport)

	payload := &trustedkeys.KeyPayload{Blob: blob}
	options := &trustedkeys.KeyOptions{ParentHandle: 0x81000001, BlobAuth: []byte("wrong")}

	uerr := UnsealKeyFromTPM(tpm, payload, options)
	c.Assert(uerr, FitsTypeOf, trustedkeys.AuthFailError{})
	c.Check(uerr.(trustedkeys.AuthFailError).Handle, Equals, uint32(loadedObject))

	// the loaded object is flushed despite the unseal failure
	c.Check(transport.Commands, HasLen, 3)
	c.Check(transport.Commands[2], DeepEquals, testutil.DecodeHexString(c, "80010000000e0000016580000002"))
}

func (s *unsealSuite) TestUnsealKeyFromTPMMalformedBlob(c *C) {
	rawAreas := s.testRawAreas(c, tpm2.AttrFixedTPM|tpm2.AttrFixedParent|tpm2.AttrUserWithAuth)
	blob, err := EncodeKeyBlob(rawAreas, 0x81000001, true)
	c.Assert(err, IsNil)

	transport := tpm2test.NewTransport()
	tpm := NewConnection(transport)

	payload := &trustedkeys.KeyPayload{Blob: append(blob, 0x00)}
	options := &trustedkeys.KeyOptions{ParentHandle: 0x81000001}

	uerr := UnsealKeyFromTPM(tpm, payload, options)
	c.Check(uerr, ErrorMatches, "cannot decode sealed blob: .*")
	c.Check(transport.Commands, HasLen, 0)
}

func (s *unsealSuite) TestUnsealKeyFromTPMTruncatedLegacyBlob(c *C) {
	transport := tpm2test.NewTransport()
	tpm := NewConnection(transport)

	payload := &trustedkeys.KeyPayload{Blob: []byte{0x00}}
	options := &trustedkeys.KeyOptions{ParentHandle: 0x81000001}

	uerr := UnsealKeyFromTPM(tpm, payload, options)
	c.Check(uerr, FitsTypeOf, trustedkeys.InvalidKeyDataError{})
	c.Check(transport.Commands, HasLen, 0)
}

func (s *unsealSuite) TestUnsealKeyFromTPMNoParentHandle(c *C) {
	transport := tpm2test.NewTransport()
	tpm := NewConnection(transport)

	payload := &trustedkeys.KeyPayload{Blob: []byte{0x00}}

	uerr := UnsealKeyFromTPM(tpm, payload, &trustedkeys.KeyOptions{})
	c.Check(uerr, FitsTypeOf, trustedkeys.InvalidArgumentError{})
	c.Check(transport.Commands, HasLen, 0)
}

func (s *unsealSuite) TestUnsealKeyFromTPMInvalidUnsealedSize(c *C) {
	rawAreas := s.testRawAreas(c, tpm2.AttrFixedTPM|tpm2.AttrFixedParent|tpm2.AttrUserWithAuth)
	blob, err := EncodeKeyBlob(rawAreas, 0x81000001, true)
	c.Assert(err, IsNil)

	transport := tpm2test.NewTransport(
		&tpm2test.Exchange{Response: loadResponse()},
		&tpm2test.Exchange{Response: unsealResponse(make([]byte, 16))},
		&tpm2test.Exchange{Response: flushResponse()})
	tpm := NewConnection(transport)

	payload := &trustedkeys.KeyPayload{Blob: blob}
	options := &trustedkeys.KeyOptions{ParentHandle: 0x81000001}

	uerr := UnsealKeyFromTPM(tpm, payload, options)
	c.Check(uerr, FitsTypeOf, trustedkeys.InvalidResponseError{})
	c.Check(transport.Commands, HasLen, 3)
}

func (s *unsealSuite) TestUnsealKeyFromTPMTruncatedUnsealedData(c *C) {
	rawAreas := s.testRawAreas(c, tpm2.AttrFixedTPM|tpm2.AttrFixedParent|tpm2.AttrUserWithAuth)
	blob, err := EncodeKeyBlob(rawAreas, 0x81000001, true)
	c.Assert(err, IsNil)

	// the size field declares 64 bytes of sealed data but none follow
	truncated := tpm2test.ResponsePacket(tpm2.TagSessions, tpm2.ResponseSuccess, nil, []byte{0x00, 0x40}, tpm2test.PasswordAuthResponse())

	transport := tpm2test.NewTransport(
		&tpm2test.Exchange{Response: loadResponse()},
		&tpm2test.Exchange{Response: truncated},
		&tpm2test.Exchange{Response: flushResponse()})
	tpm := NewConnection(transport)

	payload := &trustedkeys.KeyPayload{Blob: blob}
	options := &trustedkeys.KeyOptions{ParentHandle: 0x81000001}

	uerr := UnsealKeyFromTPM(tpm, payload, options)
	c.Check(uerr, FitsTypeOf, trustedkeys.InvalidResponseError{})
	c.Check(uerr, ErrorMatches, ".*sealed data overruns response parameters")
	c.Check(transport.Commands, HasLen, 3)
}

func (s *unsealSuite) TestUnsealKeyFromTPMMissingUnsealedSize(c *C) {
	rawAreas := s.testRawAreas(c, tpm2.AttrFixedTPM|tpm2.AttrFixedParent|tpm2.AttrUserWithAuth)
	blob, err := EncodeKeyBlob(rawAreas, 0x81000001, true)
	c.Assert(err, IsNil)

	short := tpm2test.ResponsePacket(tpm2.TagSessions, tpm2.ResponseSuccess, nil, []byte{0x00}, tpm2test.PasswordAuthResponse())

	transport := tpm2test.NewTransport(
		&tpm2test.Exchange{Response: loadResponse()},
		&tpm2test.Exchange{Response: short},
		&tpm2test.Exchange{Response: flushResponse()})
	tpm := NewConnection(transport)

	payload := &trustedkeys.KeyPayload{Blob: blob}
	options := &trustedkeys.KeyOptions{ParentHandle: 0x81000001}

	uerr := UnsealKeyFromTPM(tpm, payload, options)
	c.Check(uerr, FitsTypeOf, trustedkeys.InvalidResponseError{})
	c.Check(uerr, ErrorMatches, ".*insufficient data for sealed data size")
	c.Check(transport.Commands, HasLen, 3)
}
