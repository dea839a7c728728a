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

package tpm2

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/go-tpm2/mu"
	"golang.org/x/xerrors"

	"github.com/snapcore/trustedkeys"
)

const maxCommandSize = 4096

// marshalCommand serializes a complete command packet. The tag is
// derived from the auth area - commands with at least one authorization
// are tagged TPM_ST_SESSIONS and carry the size-prefixed auth area
// between the handles and the parameters.
func marshalCommand(code tpm2.CommandCode, handles tpm2.HandleList, auths []tpm2.AuthCommand, params []byte) ([]byte, error) {
	header := tpm2.CommandHeader{Tag: tpm2.TagNoSessions, CommandCode: code}

	body := new(bytes.Buffer)
	for _, handle := range handles {
		if _, err := mu.MarshalToWriter(body, handle); err != nil {
			return nil, xerrors.Errorf("cannot marshal handle: %w", err)
		}
	}

	if len(auths) > 0 {
		header.Tag = tpm2.TagSessions

		area := new(bytes.Buffer)
		for _, auth := range auths {
			if _, err := mu.MarshalToWriter(area, auth); err != nil {
				return nil, xerrors.Errorf("cannot marshal auth area: %w", err)
			}
		}
		if _, err := mu.MarshalToWriter(body, uint32(area.Len()), mu.RawBytes(area.Bytes())); err != nil {
			return nil, xerrors.Errorf("cannot marshal auth area: %w", err)
		}
	}

	body.Write(params)

	header.CommandSize = uint32(binary.Size(header) + body.Len())
	if header.CommandSize > maxCommandSize {
		return nil, trustedkeys.SizeExceededError{What: "command packet", Size: int(header.CommandSize), Limit: maxCommandSize}
	}

	return mu.MustMarshalToBytes(header, mu.RawBytes(body.Bytes())), nil
}

// unmarshalResponse deserializes a response packet and validates its
// framing. If handle is non-nil, a handle is expected between the
// header and the parameter area of a successful response.
//
// A non-zero response code is returned to the caller for mapping to an
// operation specific error - it is not an error here. The returned
// parameters exclude the parameterSize field of session tagged
// responses, and the response auth area is returned separately for
// session validation.
func unmarshalResponse(rsp []byte, handle *tpm2.Handle) (rc tpm2.ResponseCode, parameters []byte, auths []tpm2.AuthResponse, err error) {
	buf := bytes.NewReader(rsp)

	var header tpm2.ResponseHeader
	if _, err := mu.UnmarshalFromReader(buf, &header); err != nil {
		return 0, nil, nil, trustedkeys.InvalidResponseError{Msg: "insufficient data for response header"}
	}

	if int(header.ResponseSize) != len(rsp) {
		return 0, nil, nil, trustedkeys.InvalidResponseError{
			Msg: fmt.Sprintf("header says %d bytes but %d were returned", header.ResponseSize, len(rsp))}
	}

	switch header.Tag {
	case tpm2.TagRspCommand:
		// TPM_ST_RSP_COMMAND is only valid for the TPM_RC_BAD_TAG error
		if header.ResponseCode == tpm2.ResponseSuccess {
			return 0, nil, nil, trustedkeys.InvalidResponseError{Msg: "unexpected TPM_ST_RSP_COMMAND tag on a successful response"}
		}
	case tpm2.TagSessions, tpm2.TagNoSessions:
	default:
		return 0, nil, nil, trustedkeys.InvalidResponseError{Msg: fmt.Sprintf("invalid response tag %#04x", uint16(header.Tag))}
	}

	if header.ResponseCode != tpm2.ResponseSuccess {
		// error responses carry no payload
		if buf.Len() != 0 {
			return 0, nil, nil, trustedkeys.InvalidResponseError{Msg: "trailing bytes after an error response header"}
		}
		return header.ResponseCode, nil, nil, nil
	}

	if handle != nil {
		if _, err := mu.UnmarshalFromReader(buf, handle); err != nil {
			return 0, nil, nil, trustedkeys.InvalidResponseError{Msg: "insufficient data for response handle"}
		}
	}

	rest := make([]byte, buf.Len())
	buf.Read(rest)

	if header.Tag != tpm2.TagSessions {
		return tpm2.ResponseSuccess, rest, nil, nil
	}

	if len(rest) < 4 {
		return 0, nil, nil, trustedkeys.InvalidResponseError{Msg: "insufficient data for parameterSize"}
	}
	paramSize := binary.BigEndian.Uint32(rest)
	rest = rest[4:]
	if int(paramSize) > len(rest) {
		return 0, nil, nil, trustedkeys.InvalidResponseError{
			Msg: fmt.Sprintf("parameter area of %d bytes overruns the remaining %d bytes of the response", paramSize, len(rest))}
	}
	parameters = rest[:paramSize]

	abuf := bytes.NewReader(rest[paramSize:])
	for abuf.Len() > 0 {
		if len(auths) == 3 {
			return 0, nil, nil, trustedkeys.InvalidResponseError{Msg: "too many response auths"}
		}
		var auth tpm2.AuthResponse
		if _, err := mu.UnmarshalFromReader(abuf, &auth); err != nil {
			return 0, nil, nil, trustedkeys.InvalidResponseError{Msg: "cannot unmarshal response auth area"}
		}
		auths = append(auths, auth)
	}
	if len(auths) == 0 {
		return 0, nil, nil, trustedkeys.InvalidResponseError{Msg: "missing response auth area"}
	}

	return tpm2.ResponseSuccess, parameters, auths, nil
}
