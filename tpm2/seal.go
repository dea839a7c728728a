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
	"encoding/binary"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/go-tpm2/mu"
	"golang.org/x/xerrors"

	"github.com/snapcore/trustedkeys"
)

// SealKeyToTPM seals the key material of the supplied payload to the
// TPM with TPM2_Create, under the parent key selected by
// options.ParentHandle. On success, payload.Blob contains the encoded
// sealed blob, which records the parent handle and whether the object
// uses the well-known empty authorization value.
//
// If options.PolicyDigest is set, the sealed object can only be
// unsealed by satisfying the corresponding authorization policy.
// Otherwise it is authorized with options.BlobAuth.
//
// If payload.Migratable is false, the sealed object is bound to this
// device and to the parent key it is sealed under.
func SealKeyToTPM(c *Connection, payload *trustedkeys.KeyPayload, options *trustedkeys.KeyOptions) error {
	if len(payload.Key) < trustedkeys.MinKeySize || len(payload.Key) > trustedkeys.MaxKeySize {
		return trustedkeys.InvalidArgumentError{Msg: "invalid key size"}
	}
	if options.ParentHandle == 0 {
		return trustedkeys.InvalidArgumentError{Msg: "no parent key handle specified"}
	}

	// Resolved before any command is issued.
	nameAlg, err := resolveHashAlg(options.HashAlg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	parent := tpm2.Handle(options.ParentHandle)
	session := c.startAuthSession()
	defer session.flush(c)

	params, err := marshalCreateParams(payload, options, nameAlg)
	if err != nil {
		return err
	}

	auths := []tpm2.AuthCommand{
		session.authCommand(options.ParentAuth, tpm2.AttrCommandEncrypt)}

	cmd, err := marshalCommand(tpm2.CommandCreate, tpm2.HandleList{parent}, auths, params)
	if err != nil {
		return err
	}

	rsp, err := c.exchange(cmd)
	if err != nil {
		return err
	}

	rc, outParams, rspAuths, err := unmarshalResponse(rsp, nil)
	if err != nil {
		return err
	}
	if rc != tpm2.ResponseSuccess {
		return createStatusError(rc, parent)
	}
	if err := session.processResponse(rspAuths); err != nil {
		return err
	}

	rawAreas, err := readCreatedAreas(outParams)
	if err != nil {
		return err
	}

	blob, err := encodeKeyBlob(rawAreas, parent, len(options.BlobAuth) == 0)
	if err != nil {
		return xerrors.Errorf("cannot encode sealed blob: %w", err)
	}

	payload.Blob = blob
	return nil
}

// marshalCreateParams assembles the parameter area of TPM2_Create: the
// inSensitive and inPublic areas describing the sealed object, followed
// by an empty outsideInfo and an empty creation PCR selection.
func marshalCreateParams(payload *trustedkeys.KeyPayload, options *trustedkeys.KeyOptions, nameAlg tpm2.HashAlgorithmId) ([]byte, error) {
	// TPMS_SENSITIVE_CREATE: the object's authorization value and the
	// key material to seal.
	sensitive, err := mu.MarshalToBytes(tpm2.Auth(options.BlobAuth), payload.Key)
	if err != nil {
		return nil, xerrors.Errorf("cannot marshal sensitive area: %w", err)
	}

	var attrs tpm2.ObjectAttributes
	if len(options.PolicyDigest) == 0 {
		attrs |= tpm2.AttrUserWithAuth
	}
	if !payload.Migratable {
		attrs |= tpm2.AttrFixedTPM | tpm2.AttrFixedParent
	}

	// TPMT_PUBLIC for a data object: no scheme and an empty unique.
	public, err := mu.MarshalToBytes(
		tpm2.ObjectTypeKeyedHash,
		nameAlg,
		attrs,
		tpm2.Digest(options.PolicyDigest),
		tpm2.AlgorithmNull,
		tpm2.Digest(nil))
	if err != nil {
		return nil, xerrors.Errorf("cannot marshal public area: %w", err)
	}

	params, err := mu.MarshalToBytes(sensitive, public, uint16(0), uint32(0))
	if err != nil {
		return nil, xerrors.Errorf("cannot marshal parameters: %w", err)
	}
	return params, nil
}

// readCreatedAreas extracts the outPrivate and outPublic areas from the
// response parameters of TPM2_Create, validating their size fields
// against the data actually returned and against the blob size limit.
// The creation data, hash and ticket that follow are not used.
func readCreatedAreas(params []byte) ([]byte, error) {
	if len(params) > trustedkeys.MaxBlobSize {
		return nil, trustedkeys.SizeExceededError{What: "created object", Size: len(params), Limit: trustedkeys.MaxBlobSize}
	}

	if len(params) < 2 {
		return nil, trustedkeys.InvalidResponseError{Msg: "insufficient data for private area"}
	}
	privLen := int(binary.BigEndian.Uint16(params)) + 2
	if privLen+2 > len(params) {
		return nil, trustedkeys.InvalidResponseError{Msg: "private area overruns response parameters"}
	}
	pubLen := int(binary.BigEndian.Uint16(params[privLen:])) + 2
	if privLen+pubLen > len(params) {
		return nil, trustedkeys.InvalidResponseError{Msg: "public area overruns response parameters"}
	}

	return params[:privLen+pubLen], nil
}
