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
	"fmt"
)

// InvalidKeyDataError indicates that a sealed key blob is malformed and
// cannot be used to recover the protected key.
type InvalidKeyDataError struct {
	Msg string
}

func (e InvalidKeyDataError) Error() string {
	return "invalid key data: " + e.Msg
}

// InvalidArgumentError indicates that a caller supplied parameter is
// invalid. It is returned before any interaction with the device.
type InvalidArgumentError struct {
	Msg string
}

func (e InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Msg
}

// SizeExceededError indicates that a key, a sealed blob or an
// intermediate encoding exceeded one of the fixed size bounds.
type SizeExceededError struct {
	What  string
	Size  int
	Limit int
}

func (e SizeExceededError) Error() string {
	return fmt.Sprintf("%s is too large (%d bytes, limit is %d)", e.What, e.Size, e.Limit)
}

// AuthFailError indicates that the device refused an operation on the
// object at the indicated handle, typically because an authorization
// value was wrong.
type AuthFailError struct {
	Handle uint32
}

func (e AuthFailError) Error() string {
	return fmt.Sprintf("the device refused authorization for the object at handle %#08x", e.Handle)
}

// InvalidResponseError indicates that the device returned a response
// that is inconsistent with the protocol - truncated, oversized, or
// with length fields that contradict the amount of data actually
// returned. The operation may or may not have completed on the device.
type InvalidResponseError struct {
	Msg string
}

func (e InvalidResponseError) Error() string {
	return "invalid response from device: " + e.Msg
}
