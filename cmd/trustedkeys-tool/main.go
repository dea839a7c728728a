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

// trustedkeys-tool seals fresh key material to the TPM and recovers it
// again. Sealed blobs are kept in a file or in the calling user's
// kernel keyring.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/jessevdk/go-flags"
	"github.com/snapcore/snapd/osutil"

	"github.com/snapcore/trustedkeys"
	"github.com/snapcore/trustedkeys/tpm2"
)

type handleFlag uint32

func (h handleFlag) MarshalFlag() (string, error) {
	return fmt.Sprintf("%#08x", uint32(h)), nil
}

func (h *handleFlag) UnmarshalFlag(value string) error {
	v, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid handle %q", value)
	}
	*h = handleFlag(v)
	return nil
}

type digestFlag []byte

func (d digestFlag) MarshalFlag() (string, error) {
	return hex.EncodeToString(d), nil
}

func (d *digestFlag) UnmarshalFlag(value string) error {
	v, err := hex.DecodeString(value)
	if err != nil {
		return fmt.Errorf("invalid digest %q", value)
	}
	*d = v
	return nil
}

type options struct {
	Object struct {
		Parent     handleFlag `long:"parent" description:"Handle of the parent key to seal under" default:"0x81000001"`
		ParentAuth string     `long:"parent-auth" description:"Authorization value for the parent key"`
		BlobAuth   string     `long:"blob-auth" description:"Authorization value for the sealed object"`
		Hash       string     `long:"hash" description:"Name algorithm for the sealed object" default:"sha256"`
	} `group:"Object options"`

	Seal struct {
		KeySize    int  `long:"key-size" description:"Size of the generated key in bytes" default:"32"`
		Migratable bool `long:"migratable" description:"Allow the sealed object to be duplicated to another TPM"`

		PolicyDigest digestFlag `long:"policy-digest" description:"Authorization policy digest for the sealed object"`
	} `group:"Seal options"`

	Unseal struct {
		PolicyHandle handleFlag `long:"policy-handle" description:"Handle of an established policy session to authorize unsealing"`
	} `group:"Unseal options"`

	Keyring string `long:"keyring" description:"Keep the sealed blob in the user keyring under this description instead of a file"`

	Positional struct {
		Action string `positional-arg-name:"action (seal or unseal)" required:"true"`
		File   string `positional-arg-name:"path to the sealed blob file"`
	} `positional-args:"true"`
}

var opts options

func makeKeyOptions() (*trustedkeys.KeyOptions, error) {
	hashAlg, err := trustedkeys.ParseHashAlgorithm(opts.Object.Hash)
	if err != nil {
		return nil, err
	}

	return &trustedkeys.KeyOptions{
		ParentHandle: uint32(opts.Object.Parent),
		ParentAuth:   []byte(opts.Object.ParentAuth),
		BlobAuth:     []byte(opts.Object.BlobAuth),
		PolicyDigest: opts.Seal.PolicyDigest,
		PolicyHandle: uint32(opts.Unseal.PolicyHandle),
		HashAlg:      hashAlg,
	}, nil
}

func runSeal() error {
	keyOptions, err := makeKeyOptions()
	if err != nil {
		return err
	}

	payload, err := trustedkeys.NewKeyPayload(opts.Seal.KeySize)
	if err != nil {
		return err
	}
	payload.Migratable = opts.Seal.Migratable

	tpm, err := tpm2.ConnectToDefaultTPM()
	if err != nil {
		return err
	}
	defer tpm.Close()

	if err := tpm2.SealKeyToTPM(tpm, payload, keyOptions); err != nil {
		return err
	}

	switch {
	case opts.Keyring != "":
		if _, err := trustedkeys.StoreSealedKey(opts.Keyring, payload); err != nil {
			return err
		}
	case opts.Positional.File != "":
		if err := osutil.AtomicWriteFile(opts.Positional.File, payload.Blob, 0600, 0); err != nil {
			return fmt.Errorf("cannot write sealed blob: %w", err)
		}
	default:
		return fmt.Errorf("no destination for the sealed blob - supply a file path or --keyring")
	}

	fmt.Println(hex.EncodeToString(payload.Key))
	return nil
}

func runUnseal() error {
	keyOptions, err := makeKeyOptions()
	if err != nil {
		return err
	}

	var payload *trustedkeys.KeyPayload
	switch {
	case opts.Keyring != "":
		payload, err = trustedkeys.ReadSealedKey(opts.Keyring)
		if err != nil {
			return err
		}
	case opts.Positional.File != "":
		blob, err := os.ReadFile(opts.Positional.File)
		if err != nil {
			return fmt.Errorf("cannot read sealed blob: %w", err)
		}
		payload, err = trustedkeys.NewKeyPayloadFromBlob(blob)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("no source for the sealed blob - supply a file path or --keyring")
	}

	tpm, err := tpm2.ConnectToDefaultTPM()
	if err != nil {
		return err
	}
	defer tpm.Close()

	if err := tpm2.UnsealKeyFromTPM(tpm, payload, keyOptions); err != nil {
		return err
	}

	if payload.OldFormat {
		fmt.Fprintln(os.Stderr, "note: sealed blob is in the legacy format")
	}

	fmt.Println(hex.EncodeToString(payload.Key))
	return nil
}

func run() error {
	if _, err := flags.Parse(&opts); err != nil {
		return err
	}

	switch opts.Positional.Action {
	case "seal":
		return runSeal()
	case "unseal":
		return runUnseal()
	default:
		return fmt.Errorf("unknown action %q, expected seal or unseal", opts.Positional.Action)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
