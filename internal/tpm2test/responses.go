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

package tpm2test

import (
	"bytes"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/go-tpm2/mu"
)

// ResponsePacket assembles a raw response packet. For session tagged
// responses the parameter area is preceded by the parameterSize field
// and followed by the supplied auth area entries.
func ResponsePacket(tag tpm2.StructTag, rc tpm2.ResponseCode, handle *tpm2.Handle, params []byte, auths ...tpm2.AuthResponse) []byte {
	body := new(bytes.Buffer)
	if handle != nil {
		mu.MustMarshalToWriter(body, *handle)
	}
	if tag == tpm2.TagSessions {
		mu.MustMarshalToWriter(body, uint32(len(params)), mu.RawBytes(params))
		for _, auth := range auths {
			mu.MustMarshalToWriter(body, auth)
		}
	} else {
		body.Write(params)
	}

	header := tpm2.ResponseHeader{Tag: tag, ResponseSize: uint32(10 + body.Len()), ResponseCode: rc}
	return mu.MustMarshalToBytes(header, mu.RawBytes(body.Bytes()))
}

// ErrorResponse assembles the response packet for a command that
// failed with the supplied response code.
func ErrorResponse(rc tpm2.ResponseCode) []byte {
	return ResponsePacket(tpm2.TagNoSessions, rc, nil, nil)
}

// PasswordAuthResponse returns the auth area entry that a device sends
// to acknowledge a password authorization.
func PasswordAuthResponse() tpm2.AuthResponse {
	return tpm2.AuthResponse{SessionAttributes: tpm2.AttrContinueSession}
}

// MakePrivateArea wraps the supplied opaque data in a size-prefixed
// private area.
func MakePrivateArea(data []byte) []byte {
	return mu.MustMarshalToBytes(data)
}

// MakePublicArea assembles a size-prefixed public area for a sealed
// data object with the supplied name algorithm, attributes and
// authorization policy digest.
func MakePublicArea(nameAlg tpm2.HashAlgorithmId, attrs tpm2.ObjectAttributes, policy []byte) []byte {
	inner := mu.MustMarshalToBytes(
		tpm2.ObjectTypeKeyedHash,
		nameAlg,
		attrs,
		tpm2.Digest(policy),
		tpm2.AlgorithmNull,
		tpm2.Digest(nil))
	return mu.MustMarshalToBytes(inner)
}

// MakeSensitiveData wraps the supplied unsealed key material in the
// size-prefixed form returned by the device.
func MakeSensitiveData(data []byte) []byte {
	return mu.MustMarshalToBytes(data)
}
