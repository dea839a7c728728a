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

/*
Package trustedkeys provides the data model for trusted keys - symmetric
keys that are generated on the host but whose plaintext is only ever
recoverable with the help of a trust-anchor device such as a TPM. The
device specific sealing and unsealing implementations live in
sub-packages (see the tpm2 package).
*/
package trustedkeys

import (
	"crypto/rand"
)

const (
	// MinKeySize is the minimum size of the plaintext key material
	// carried by a KeyPayload.
	MinKeySize = 32

	// MaxKeySize is the maximum size of the plaintext key material
	// carried by a KeyPayload.
	MaxKeySize = 128

	// MaxBlobSize is the maximum size of a sealed key blob in either
	// the current or the legacy on-disk format.
	MaxBlobSize = 512
)

// KeyPayload contains the data for a single trusted key - the plaintext
// key material and the sealed blob that it is recovered from. A payload
// is created by the caller and then mutated by the sealing implementation
// (which populates Blob) and the unsealing implementation (which
// populates Key and Migratable). A payload must not be shared between
// concurrent seal or unseal calls.
type KeyPayload struct {
	// Key is the plaintext key material. Its length is bounded by
	// MinKeySize and MaxKeySize.
	Key []byte

	// Blob is the sealed form of Key, bounded by MaxBlobSize. For new
	// blobs this is a self-describing ASN.1 structure that records the
	// parent handle the key was sealed under. Legacy blobs are the raw
	// concatenation of the device's private and public areas.
	Blob []byte

	// Migratable indicates whether the sealed key object may be
	// duplicated to another device instance.
	Migratable bool

	// OldFormat is set by the unsealing implementation when Blob turned
	// out to be in the legacy format, which carries the migratable flag
	// as the trailing byte of the recovered key material rather than in
	// the object attributes.
	OldFormat bool
}

// NewKeyPayload returns a payload with keySize bytes of fresh random key
// material, ready to be sealed.
func NewKeyPayload(keySize int) (*KeyPayload, error) {
	if keySize < MinKeySize || keySize > MaxKeySize {
		return nil, InvalidArgumentError{"invalid key size"}
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	return &KeyPayload{Key: key}, nil
}

// NewKeyPayloadFromBlob returns a payload for a previously sealed blob,
// ready to be unsealed.
func NewKeyPayloadFromBlob(blob []byte) (*KeyPayload, error) {
	if len(blob) == 0 || len(blob) > MaxBlobSize {
		return nil, InvalidArgumentError{"invalid blob size"}
	}

	return &KeyPayload{Blob: blob}, nil
}

// KeyOptions contains the parameters for sealing or unsealing a single
// trusted key. The options are owned by the caller and must not be
// mutated for the duration of a seal or unseal call.
type KeyOptions struct {
	// ParentHandle is the handle of the device resident key that
	// protects the sealed key object. It is required for both sealing
	// and unsealing, even for blobs that record their own parent
	// handle.
	ParentHandle uint32

	// ParentAuth is the authorization value for the parent key.
	ParentAuth []byte

	// BlobAuth is the authorization value for the sealed key object
	// itself. An empty value selects the well-known empty authorization
	// policy, which is recorded in the sealed blob.
	BlobAuth []byte

	// PolicyDigest is an optional authorization policy digest for the
	// sealed key object. When set, the object can only be unsealed by
	// satisfying the policy via a policy session (see PolicyHandle),
	// and plain authorization value checking is disabled.
	PolicyDigest []byte

	// PolicyHandle is the handle of a policy session established by the
	// caller, used to authorize unsealing of an object that was sealed
	// with a PolicyDigest.
	PolicyHandle uint32

	// HashAlg selects the name algorithm for the sealed key object.
	// The zero value selects SHA-256.
	HashAlg HashAlgorithm
}
