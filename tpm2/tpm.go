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
Package tpm2 implements sealing of trusted keys to a TPM2 device. Keys
are sealed with TPM2_Create under a caller supplied parent key, and
recovered with TPM2_Load and TPM2_Unseal. Sealed blobs are encoded in
the TCG id-tpmSealedData ASN.1 format, with transparent support for
unsealing blobs in the legacy raw format.
*/
package tpm2

import (
	"sync"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/go-tpm2/linux"
	"golang.org/x/xerrors"
)

const maxResponseSize = 4096

var linuxDefaultTPM2Device = linux.DefaultTPM2Device

// Connection corresponds to a connection to a TPM device. A connection
// can be used from multiple goroutines - each seal or unseal operation
// has exclusive use of the device for the sequence of commands it
// issues.
type Connection struct {
	mu        sync.Mutex
	transport tpm2.Transport

	// newSession creates the authorization session used for the next
	// command. If unset, plaintext password sessions are used.
	newSession func() authSession
}

func newConnection(transport tpm2.Transport) *Connection {
	return &Connection{transport: transport}
}

// ConnectToDefaultTPM opens a connection to the default TPM2 device.
func ConnectToDefaultTPM() (*Connection, error) {
	dev, err := linuxDefaultTPM2Device()
	switch {
	case err == linux.ErrNoTPMDevices || err == linux.ErrDefaultNotTPM2Device:
		return nil, ErrNoTPM2Device
	case err != nil:
		return nil, xerrors.Errorf("cannot select TPM device: %w", err)
	}

	transport, err := dev.Open()
	if err != nil {
		return nil, xerrors.Errorf("cannot open TPM device: %w", err)
	}

	return newConnection(transport), nil
}

// Close closes the connection to the TPM device.
func (c *Connection) Close() error {
	return c.transport.Close()
}

func (c *Connection) startAuthSession() authSession {
	if c.newSession != nil {
		return c.newSession()
	}
	return passwordSession{}
}

// exchange transmits a single marshalled command to the device and
// returns the raw response packet. The caller must hold the connection
// lock.
func (c *Connection) exchange(cmd []byte) ([]byte, error) {
	if _, err := c.transport.Write(cmd); err != nil {
		return nil, xerrors.Errorf("cannot send command to TPM: %w", err)
	}

	rsp := make([]byte, maxResponseSize)
	n, err := c.transport.Read(rsp)
	if err != nil {
		return nil, xerrors.Errorf("cannot receive response from TPM: %w", err)
	}

	return rsp[:n], nil
}
