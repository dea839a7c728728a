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

package tpm2_test

import (
	"bytes"

	"github.com/canonical/go-tpm2"
	. "gopkg.in/check.v1"

	"github.com/snapcore/trustedkeys"
	"github.com/snapcore/trustedkeys/internal/tpm2test"
	. "github.com/snapcore/trustedkeys/tpm2"
)

type tpmSuite struct{}

var _ = Suite(&tpmSuite{})

func (s *tpmSuite) TestConnectionUsesSessionConstructor(c *C) {
	priv := tpm2test.MakePrivateArea(bytes.Repeat([]byte{0xaa}, 60))
	pub := tpm2test.MakePublicArea(tpm2.HashAlgorithmSHA256, tpm2.AttrFixedTPM|tpm2.AttrFixedParent|tpm2.AttrUserWithAuth, nil)
	rawAreas := append(priv, pub...)
	blob, err := EncodeKeyBlob(rawAreas, 0x81000001, true)
	c.Assert(err, IsNil)

	key := bytes.Repeat([]byte{0x5a}, 32)

	transport := tpm2test.NewTransport(
		&tpm2test.Exchange{Response: loadResponse()},
		&tpm2test.Exchange{Response: unsealResponse(key)},
		&tpm2test.Exchange{Response: flushResponse()})
	tpm := NewConnection(transport)
	sessions := MockConnectionSessions(tpm)

	payload := &trustedkeys.KeyPayload{Blob: blob}
	options := &trustedkeys.KeyOptions{ParentHandle: 0x81000001}

	c.Assert(UnsealKeyFromTPM(tpm, payload, options), IsNil)
	c.Check(payload.Key, DeepEquals, key)

	// one session for the load and one for the unseal
	c.Check(*sessions, Equals, 2)
}
