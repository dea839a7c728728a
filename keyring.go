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

package trustedkeys

import (
	"golang.org/x/xerrors"

	"github.com/snapcore/trustedkeys/internal/keyring"
)

// StoreSealedKey stores the sealed blob of the supplied payload in the
// calling user's kernel keyring under the supplied description, so that
// it can be retrieved and unsealed after the plaintext key has been
// discarded. If a blob with the same description is already stored, it
// is replaced.
//
// On success, it returns the kernel's ID for the stored key.
func StoreSealedKey(desc string, payload *KeyPayload) (int32, error) {
	if len(payload.Blob) == 0 {
		return 0, InvalidArgumentError{"payload has no sealed blob"}
	}

	id, err := keyring.AddKey(payload.Blob, keyring.UserKeyType, desc, keyring.UserKeyring)
	if err != nil {
		return 0, xerrors.Errorf("cannot add key to user keyring: %w", err)
	}
	return int32(id), nil
}

// ReadSealedKey returns a payload for the sealed blob stored in the
// calling user's kernel keyring under the supplied description, ready
// to be unsealed.
func ReadSealedKey(desc string) (*KeyPayload, error) {
	id, err := keyring.SearchKey(keyring.UserKeyring, keyring.UserKeyType, desc)
	if err != nil {
		return nil, xerrors.Errorf("cannot find key in user keyring: %w", err)
	}

	blob, err := keyring.ReadKey(id)
	if err != nil {
		return nil, xerrors.Errorf("cannot read key from user keyring: %w", err)
	}

	return NewKeyPayloadFromBlob(blob)
}

// DiscardSealedKey removes the sealed blob stored in the calling user's
// kernel keyring under the supplied description.
func DiscardSealedKey(desc string) error {
	id, err := keyring.SearchKey(keyring.UserKeyring, keyring.UserKeyType, desc)
	if err != nil {
		return xerrors.Errorf("cannot find key in user keyring: %w", err)
	}

	if err := keyring.UnlinkKey(id, keyring.UserKeyring); err != nil {
		return xerrors.Errorf("cannot unlink key from user keyring: %w", err)
	}
	return nil
}
