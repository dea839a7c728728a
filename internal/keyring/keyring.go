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

// Package keyring provides access to the kernel keyrings that sealed key
// blobs are stored in. Only the per-user keyring is used here - unlike
// the process and session keyrings it is not attached to a thread, so no
// OS thread locking games are required to use it from go.
package keyring

import (
	"golang.org/x/sys/unix"
)

// KeyID is an identifier for a key in the kernel's keyring.
type KeyID int32

const (
	NoKey KeyID = 0

	// UserKeyring is the special ID of the calling user's keyring.
	UserKeyring KeyID = -4
)

// KeyType describes the type of a key.
type KeyType string

const (
	UserKeyType KeyType = "user" // a key with an arbitrary payload.
)

// AddKey creates a key of the specified type and description in the
// keyring with the specified ID, populated with the supplied payload.
// If a key with the same type and description already exists in the
// keyring, its payload is replaced instead. Write permission on the
// keyring is required.
//
// On success, it returns the ID of the added key.
func AddKey(payload []byte, keyType KeyType, desc string, keyringId KeyID) (KeyID, error) {
	id, err := unix.AddKey(string(keyType), desc, payload, int(keyringId))
	if err != nil {
		return NoKey, processSyscallError(err)
	}
	return KeyID(id), nil
}

// ReadKey reads and returns the payload of the key with the specified
// ID. It handles the case where another writer updates the key whilst
// we are reading it. Read permission for the key is required.
func ReadKey(id KeyID) ([]byte, error) {
	var payload []byte

	for {
		// Read the payload. The first read is with an empty buffer.
		// The returned size is the full payload size of the key in
		// the kernel rather than the number of bytes copied out, so
		// it can be used to allocate an appropriately sized buffer.
		sz, err := unix.KeyctlBuffer(unix.KEYCTL_READ, int(id), payload, 0)
		if err != nil {
			return nil, processSyscallError(err)
		}

		if sz <= len(payload) {
			// The entire payload fits in the buffer. A writer may
			// have shrunk the key after the buffer was allocated,
			// in which case it doesn't occupy the full buffer.
			return payload[:sz], nil
		}

		// The buffer isn't big enough for the entire payload. This
		// is always the case on the first iteration, and can also
		// happen if a writer grows the key after the buffer was
		// allocated. Allocate a larger buffer and try again.
		payload = make([]byte, sz)
	}
}

// SearchKey recursively searches the keyring with the specified ID for
// a key with the specified type and description. Search permission on
// the keyring and the matching key is required.
//
// On success, it returns the ID of the matching key.
func SearchKey(keyringId KeyID, keyType KeyType, desc string) (KeyID, error) {
	id, err := unix.KeyctlSearch(int(keyringId), string(keyType), desc, 0)
	if err != nil {
		return NoKey, processSyscallError(err)
	}
	return KeyID(id), nil
}

// UnlinkKey unlinks the key with the specified ID from the keyring with
// the specified ID. Write permission on the keyring is required. The key
// is destroyed by the kernel once its last link is removed.
func UnlinkKey(id, keyringId KeyID) error {
	if _, err := unix.KeyctlInt(unix.KEYCTL_UNLINK, int(id), int(keyringId), 0, 0); err != nil {
		return processSyscallError(err)
	}
	return nil
}
