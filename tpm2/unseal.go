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
	"golang.org/x/xerrors"

	"github.com/snapcore/trustedkeys"
)

// UnsealKeyFromTPM recovers the key material protected by the sealed
// blob of the supplied payload. The blob is loaded under the parent key
// selected by options.ParentHandle with TPM2_Load, unsealed with
// TPM2_Unseal, and the loaded object is flushed again regardless of
// whether unsealing succeeded.
//
// On success, payload.Key contains the recovered key material and
// payload.Migratable reflects the attributes the object was sealed
// with. Blobs in the legacy raw format are detected transparently and
// payload.OldFormat is set accordingly.
func UnsealKeyFromTPM(c *Connection, payload *trustedkeys.KeyPayload, options *trustedkeys.KeyOptions) error {
	if options.ParentHandle == 0 {
		return trustedkeys.InvalidArgumentError{Msg: "no parent key handle specified"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	object, err := loadKeyBlob(c, payload, options)
	if err != nil {
		return err
	}

	uerr := unsealKey(c, payload, options, object)

	// Flushed even when unsealing failed. A flush failure leaks a
	// transient object slot but the unseal result stands.
	flushObject(c, object)

	return uerr
}

// loadKeyBlob loads the sealed object described by payload.Blob into
// the device with TPM2_Load and returns the transient object handle.
// It also derives payload.Migratable and payload.OldFormat from the
// blob before it is loaded.
func loadKeyBlob(c *Connection, payload *trustedkeys.KeyPayload, options *trustedkeys.KeyOptions) (tpm2.Handle, error) {
	var blob []byte
	if probeKeyBlob(payload.Blob) {
		ctx, err := decodeKeyBlob(payload.Blob)
		if err != nil {
			return tpm2.HandleUnassigned, xerrors.Errorf("cannot decode sealed blob: %w", err)
		}
		blob = ctx.blob
		payload.OldFormat = false
	} else {
		// Legacy blobs are the raw concatenation of the private and
		// public areas, with no recorded parent handle.
		blob = payload.Blob
		payload.OldFormat = true
	}

	if len(blob) < 2 {
		return tpm2.HandleUnassigned, trustedkeys.InvalidKeyDataError{Msg: "insufficient data for a private area"}
	}
	privLen := int(binary.BigEndian.Uint16(blob))
	if privLen+4 > len(blob) {
		return tpm2.HandleUnassigned, trustedkeys.InvalidKeyDataError{Msg: "private area overruns the blob"}
	}
	pubLen := int(binary.BigEndian.Uint16(blob[2+privLen:]))
	blobLen := privLen + pubLen + 4
	if blobLen > len(blob) {
		return tpm2.HandleUnassigned, trustedkeys.InvalidKeyDataError{Msg: "public area overruns the blob"}
	}

	// The object attributes live after the type and name algorithm
	// fields of the public area.
	pub := blob[2+privLen+2 : blobLen]
	if len(pub) < 8 {
		return tpm2.HandleUnassigned, trustedkeys.InvalidKeyDataError{Msg: "insufficient data for public area attributes"}
	}
	attrs := tpm2.ObjectAttributes(binary.BigEndian.Uint32(pub[4:]))
	payload.Migratable = isMigratable(attrs)

	parent := tpm2.Handle(options.ParentHandle)
	session := c.startAuthSession()
	defer session.flush(c)

	auths := []tpm2.AuthCommand{session.authCommand(options.ParentAuth, 0)}

	cmd, err := marshalCommand(tpm2.CommandLoad, tpm2.HandleList{parent}, auths, blob[:blobLen])
	if err != nil {
		return tpm2.HandleUnassigned, err
	}

	rsp, err := c.exchange(cmd)
	if err != nil {
		return tpm2.HandleUnassigned, err
	}

	object := tpm2.HandleUnassigned
	rc, _, rspAuths, err := unmarshalResponse(rsp, &object)
	if err != nil {
		return tpm2.HandleUnassigned, err
	}
	if rc != tpm2.ResponseSuccess {
		return tpm2.HandleUnassigned, trustedkeys.AuthFailError{Handle: options.ParentHandle}
	}
	if err := session.processResponse(rspAuths); err != nil {
		return tpm2.HandleUnassigned, err
	}

	return object, nil
}

// unsealKey recovers the sealed data from the loaded object with
// TPM2_Unseal. For blobs in the legacy format the migratable flag is
// carried as the trailing byte of the sealed data rather than in the
// object attributes.
func unsealKey(c *Connection, payload *trustedkeys.KeyPayload, options *trustedkeys.KeyOptions, object tpm2.Handle) error {
	session := c.startAuthSession()
	defer session.flush(c)

	var auths []tpm2.AuthCommand
	if options.PolicyHandle != 0 {
		auths = append(auths, policyAuthCommand(tpm2.Handle(options.PolicyHandle), options.BlobAuth))
		if auth, ok := session.encryptAuthCommand(); ok {
			auths = append(auths, auth)
		}
	} else {
		auths = append(auths, session.authCommand(options.BlobAuth, tpm2.AttrResponseEncrypt))
	}

	cmd, err := marshalCommand(tpm2.CommandUnseal, tpm2.HandleList{object}, auths, nil)
	if err != nil {
		return err
	}

	rsp, err := c.exchange(cmd)
	if err != nil {
		return err
	}

	rc, params, rspAuths, err := unmarshalResponse(rsp, nil)
	if err != nil {
		return err
	}
	if rc != tpm2.ResponseSuccess {
		return trustedkeys.AuthFailError{Handle: uint32(object)}
	}
	if err := session.processResponse(rspAuths); err != nil {
		return err
	}

	if len(params) < 2 {
		return trustedkeys.InvalidResponseError{Msg: "insufficient data for sealed data size"}
	}
	dataLen := int(binary.BigEndian.Uint16(params))
	if dataLen < trustedkeys.MinKeySize || dataLen > trustedkeys.MaxKeySize {
		return trustedkeys.InvalidResponseError{Msg: "unsealed data has an invalid size"}
	}
	if 2+dataLen > len(params) {
		return trustedkeys.InvalidResponseError{Msg: "sealed data overruns response parameters"}
	}
	data := params[2 : 2+dataLen]

	if payload.OldFormat {
		payload.Key = make([]byte, dataLen-1)
		copy(payload.Key, data)
		payload.Migratable = data[dataLen-1] != 0
	} else {
		payload.Key = make([]byte, dataLen)
		copy(payload.Key, data)
	}

	return nil
}

// flushObject releases the transient object with TPM2_FlushContext.
// Failures are swallowed - there is nothing useful a caller can do
// with them.
func flushObject(c *Connection, object tpm2.Handle) {
	cmd, err := marshalCommand(tpm2.CommandFlushContext, tpm2.HandleList{object}, nil, nil)
	if err != nil {
		return
	}
	c.exchange(cmd)
}
