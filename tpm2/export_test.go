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
)

// Export constants for testing
const (
	Asn1Overhead    = asn1Overhead
	Asn1ScratchSize = asn1ScratchSize
)

// Export unexported functions for testing
var (
	DecodeKeyBlob     = decodeKeyBlob
	EncodeKeyBlob     = encodeKeyBlob
	IsMigratable      = isMigratable
	MarshalCommand    = marshalCommand
	NewConnection     = newConnection
	ProbeKeyBlob      = probeKeyBlob
	ResolveHashAlg    = resolveHashAlg
	UnmarshalResponse = unmarshalResponse
)

// MockConnectionSessions makes c create counting password sessions,
// returning the counter. Each call to the counted constructor stands
// in for a session a real implementation would establish with the
// device.
func MockConnectionSessions(c *Connection) *int {
	count := new(int)
	c.newSession = func() authSession {
		*count++
		return passwordSession{}
	}
	return count
}

// Alias some unexported types for testing.
type KeyContext = keyContext

func (k *keyContext) Parent() tpm2.Handle {
	return k.parent
}

func (k *keyContext) EmptyAuth() bool {
	return k.emptyAuth
}

func (k *keyContext) Blob() []byte {
	return k.blob
}
