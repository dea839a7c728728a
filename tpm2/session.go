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

// authSession models the per-command authorization exchange with the
// device. Sessions are created by Connection.startAuthSession for each
// command that needs one and are not reused.
type authSession interface {
	// authCommand returns the authorization area entry for a command,
	// authorizing with the supplied value. Sessions that cannot provide
	// a requested attribute (eg, parameter encryption for plaintext
	// password sessions) drop it.
	authCommand(authValue tpm2.Auth, attrs tpm2.SessionAttributes) tpm2.AuthCommand

	// encryptAuthCommand returns an additional auth area entry that
	// only requests response parameter encryption, for commands that
	// are authorized by a separate policy session. Sessions that cannot
	// encrypt return false.
	encryptAuthCommand() (tpm2.AuthCommand, bool)

	// processResponse validates the session related data in the
	// response auth area.
	processResponse(auths []tpm2.AuthResponse) error

	// flush releases any device resident state. The caller must hold
	// the connection lock.
	flush(c *Connection)
}

// passwordSession authorizes commands with a plaintext authorization
// value in the HMAC field of a TPM_RS_PW auth area entry. It has no
// device resident state and provides no parameter encryption.
type passwordSession struct{}

func (passwordSession) authCommand(authValue tpm2.Auth, attrs tpm2.SessionAttributes) tpm2.AuthCommand {
	attrs &^= tpm2.AttrCommandEncrypt | tpm2.AttrResponseEncrypt
	return tpm2.AuthCommand{
		SessionHandle:     tpm2.HandlePW,
		SessionAttributes: attrs | tpm2.AttrContinueSession,
		HMAC:              authValue}
}

func (passwordSession) encryptAuthCommand() (tpm2.AuthCommand, bool) {
	return tpm2.AuthCommand{}, false
}

func (passwordSession) processResponse(auths []tpm2.AuthResponse) error {
	for _, auth := range auths {
		// password session acknowledgements are empty
		if len(auth.Nonce) != 0 || len(auth.HMAC) != 0 {
			return trustedkeys.InvalidResponseError{Msg: "unexpected session data in a password auth response"}
		}
	}
	return nil
}

func (passwordSession) flush(c *Connection) {}

// policyAuthCommand returns the auth area entry for a policy session
// that was established by the caller. The session nonce is not known
// here, so no nonce is sent and the authorization value is carried in
// plaintext, exactly as for a password session.
func policyAuthCommand(handle tpm2.Handle, authValue tpm2.Auth) tpm2.AuthCommand {
	// no attributes - the session is flushed by the device on use
	return tpm2.AuthCommand{
		SessionHandle: handle,
		HMAC:          authValue}
}
