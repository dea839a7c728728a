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
	"github.com/canonical/go-tpm2"

	"github.com/snapcore/trustedkeys"
)

var hashAlgs = map[trustedkeys.HashAlgorithm]tpm2.HashAlgorithmId{
	trustedkeys.HashAlgorithmSHA1:    tpm2.HashAlgorithmSHA1,
	trustedkeys.HashAlgorithmSHA256:  tpm2.HashAlgorithmSHA256,
	trustedkeys.HashAlgorithmSHA384:  tpm2.HashAlgorithmSHA384,
	trustedkeys.HashAlgorithmSHA512:  tpm2.HashAlgorithmSHA512,
	trustedkeys.HashAlgorithmSM3_256: tpm2.HashAlgorithmSM3_256,
}

// resolveHashAlg maps a device independent hash algorithm to the TPM
// algorithm identifier used as the name algorithm of the sealed object.
// It is resolved before any command is issued, so an unsupported
// algorithm never reaches the device.
func resolveHashAlg(alg trustedkeys.HashAlgorithm) (tpm2.HashAlgorithmId, error) {
	if alg == trustedkeys.HashAlgorithmNull {
		alg = trustedkeys.HashAlgorithmSHA256
	}
	id, ok := hashAlgs[alg]
	if !ok {
		return tpm2.HashAlgorithmNull, trustedkeys.InvalidArgumentError{Msg: "unsupported hash algorithm " + alg.String()}
	}
	return id, nil
}

// isMigratable derives the migratable flag from the attributes of a
// sealed object's public area. An object is non-migratable only if it
// is bound to both the device and its parent.
func isMigratable(attrs tpm2.ObjectAttributes) bool {
	fixed := tpm2.AttrFixedTPM | tpm2.AttrFixedParent
	return attrs&fixed != fixed
}
