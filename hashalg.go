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

// HashAlgorithm identifies a digest algorithm in a device independent
// way. Which algorithms are actually usable depends on the sealing
// implementation and on the device itself.
type HashAlgorithm int

const (
	// HashAlgorithmNull is the zero HashAlgorithm. Sealing
	// implementations treat it as HashAlgorithmSHA256.
	HashAlgorithmNull HashAlgorithm = iota

	HashAlgorithmSHA1
	HashAlgorithmSHA256
	HashAlgorithmSHA384
	HashAlgorithmSHA512
	HashAlgorithmSM3_256
)

// ParseHashAlgorithm converts a hash algorithm name, as accepted on the
// command line and in configuration files, to a HashAlgorithm.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	switch name {
	case "":
		return HashAlgorithmNull, nil
	case "sha1":
		return HashAlgorithmSHA1, nil
	case "sha256":
		return HashAlgorithmSHA256, nil
	case "sha384":
		return HashAlgorithmSHA384, nil
	case "sha512":
		return HashAlgorithmSHA512, nil
	case "sm3-256", "sm3":
		return HashAlgorithmSM3_256, nil
	}
	return HashAlgorithmNull, InvalidArgumentError{"unsupported hash algorithm name \"" + name + "\""}
}

func (a HashAlgorithm) String() string {
	switch a {
	case HashAlgorithmNull:
		return "null"
	case HashAlgorithmSHA1:
		return "sha1"
	case HashAlgorithmSHA256:
		return "sha256"
	case HashAlgorithmSHA384:
		return "sha384"
	case HashAlgorithmSHA512:
		return "sha512"
	case HashAlgorithmSM3_256:
		return "sm3-256"
	}
	return "unknown"
}
