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
	"errors"

	"github.com/canonical/go-tpm2"

	"github.com/snapcore/trustedkeys"
)

// ErrNoTPM2Device is returned from ConnectToDefaultTPM if no TPM2
// device is available.
var ErrNoTPM2Device = errors.New("no TPM2 device is available")

// responseCodeHash is the TPM_RC_HASH format-one error code, returned
// by TPM2_Create when the requested name algorithm is not supported by
// the device.
const responseCodeHash tpm2.ResponseCode = 0x083

// responseCodeValue strips the parameter, session and handle number
// bits from a response code so that format-one codes can be compared
// regardless of which parameter they were reported against.
func responseCodeValue(rc tpm2.ResponseCode) tpm2.ResponseCode {
	return rc & 0xff
}

// createStatusError maps a non-zero TPM2_Create response code to an
// error. An unsupported name algorithm is the caller's mistake, and is
// distinguished from authorization failures.
func createStatusError(rc tpm2.ResponseCode, handle tpm2.Handle) error {
	if responseCodeValue(rc) == responseCodeValue(responseCodeHash) {
		return trustedkeys.InvalidArgumentError{Msg: "hash algorithm is not supported by the device"}
	}
	return trustedkeys.AuthFailError{Handle: uint32(handle)}
}
