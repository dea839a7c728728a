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

// Package tpm2test contains helpers for exercising the TPM2 protocol
// code without access to a TPM device.
package tpm2test

import (
	"bytes"
	"errors"
	"io"
)

// Exchange is a single scripted command/response pair.
type Exchange struct {
	// Response is returned for the next command received, whatever
	// its content. The commands actually received are recorded for
	// the test to inspect afterwards.
	Response []byte

	// Err, if set, is returned from the write of the next command
	// instead of serving Response.
	Err error
}

// Transport is a tpm2.Transport that serves scripted responses in
// order and records the commands it receives.
type Transport struct {
	script []*Exchange

	// Commands contains the raw command packets received so far.
	Commands [][]byte

	rsp bytes.Reader
}

// NewTransport returns a transport that serves the supplied exchanges
// in order.
func NewTransport(script ...*Exchange) *Transport {
	return &Transport{script: script}
}

func (t *Transport) Write(data []byte) (int, error) {
	if len(t.script) == 0 {
		return 0, errors.New("unexpected command: script exhausted")
	}
	next := t.script[0]
	t.script = t.script[1:]

	cmd := make([]byte, len(data))
	copy(cmd, data)
	t.Commands = append(t.Commands, cmd)

	if next.Err != nil {
		return 0, next.Err
	}
	t.rsp.Reset(next.Response)
	return len(data), nil
}

func (t *Transport) Read(data []byte) (int, error) {
	if t.rsp.Len() == 0 {
		return 0, io.EOF
	}
	return t.rsp.Read(data)
}

func (t *Transport) Close() error {
	return nil
}

// Remaining returns the number of scripted exchanges that have not
// been consumed. Tests use it to assert that the code under test
// issued every expected command.
func (t *Transport) Remaining() int {
	return len(t.script)
}
