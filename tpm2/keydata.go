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
	"encoding/asn1"
	"encoding/binary"
	"fmt"

	"github.com/canonical/go-tpm2"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/snapcore/trustedkeys"
)

// oidTPMSealedData is the TCG id-tpmSealedData OID (2.23.133.10.1.5),
// identifying a sealed blob in the "ASN.1 Specification for TPM 2.0 Key
// Files" format.
var oidTPMSealedData = asn1.ObjectIdentifier{2, 23, 133, 10, 1, 5}

const (
	// asn1ScratchSize is the size of the serialization buffer the
	// encoder is required to fit in, including the DER overhead of
	// asn1Overhead bytes on top of the raw private and public areas.
	asn1ScratchSize = 4096
	asn1Overhead    = 14
)

// keyContext is the decoded form of a sealed key blob.
type keyContext struct {
	// parent is the handle of the parent key recorded at sealing time.
	parent tpm2.Handle

	// emptyAuth indicates that the object was sealed with the
	// well-known empty authorization value.
	emptyAuth bool

	// blob is the concatenated private and public areas, each carrying
	// its own 16-bit size prefix. It does not alias the encoded blob
	// it was decoded from.
	blob []byte
}

// encodeKeyBlob encodes the raw private and public areas returned by
// TPM2_Create into the self-describing sealed blob format:
//
//	TPMKey ::= SEQUENCE {
//		type		OBJECT IDENTIFIER,
//		emptyAuth	[0] EXPLICIT BOOLEAN OPTIONAL,
//		parent		INTEGER,
//		pubkey		OCTET STRING,
//		privkey		OCTET STRING
//	}
//
// The emptyAuth marker is only emitted for objects sealed with the
// well-known empty authorization value. rawAreas must begin with the
// size-prefixed private area, immediately followed by the size-prefixed
// public area.
func encodeKeyBlob(rawAreas []byte, parent tpm2.Handle, emptyAuth bool) ([]byte, error) {
	if len(rawAreas) < 2 {
		return nil, trustedkeys.InvalidArgumentError{Msg: "insufficient data for a private area"}
	}
	privLen := int(binary.BigEndian.Uint16(rawAreas)) + 2
	if privLen+2 > len(rawAreas) {
		return nil, trustedkeys.InvalidArgumentError{Msg: "private area overruns the supplied data"}
	}
	pubLen := int(binary.BigEndian.Uint16(rawAreas[privLen:])) + 2
	if privLen+pubLen > len(rawAreas) {
		return nil, trustedkeys.InvalidArgumentError{Msg: "public area overruns the supplied data"}
	}

	if privLen+pubLen+asn1Overhead > asn1ScratchSize {
		return nil, trustedkeys.SizeExceededError{What: "encoded key data", Size: privLen + pubLen + asn1Overhead, Limit: asn1ScratchSize}
	}

	priv := rawAreas[:privLen]
	pub := rawAreas[privLen : privLen+pubLen]

	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(oidTPMSealedData)
		if emptyAuth {
			b.AddASN1(cryptobyte_asn1.Tag(0).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
				b.AddASN1Boolean(true)
			})
		}
		b.AddASN1Uint64(uint64(parent))
		b.AddASN1OctetString(pub)
		b.AddASN1OctetString(priv)
	})

	blob, err := b.Bytes()
	if err != nil {
		return nil, trustedkeys.InvalidKeyDataError{Msg: "cannot serialize sealed blob: " + err.Error()}
	}
	if len(blob) > trustedkeys.MaxBlobSize {
		return nil, trustedkeys.SizeExceededError{What: "sealed blob", Size: len(blob), Limit: trustedkeys.MaxBlobSize}
	}

	return blob, nil
}

// decodeKeyBlob decodes a sealed blob in the format produced by
// encodeKeyBlob. The structure is parsed strictly - any deviation,
// including trailing bytes at any level, is rejected. The returned
// context owns its own copy of the private and public areas.
func decodeKeyBlob(blob []byte) (*keyContext, error) {
	input := cryptobyte.String(blob)

	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) || !input.Empty() {
		return nil, trustedkeys.InvalidKeyDataError{Msg: "malformed outer sequence"}
	}

	var oid asn1.ObjectIdentifier
	if !seq.ReadASN1ObjectIdentifier(&oid) {
		return nil, trustedkeys.InvalidKeyDataError{Msg: "malformed object identifier"}
	}
	if !oid.Equal(oidTPMSealedData) {
		return nil, trustedkeys.InvalidKeyDataError{Msg: fmt.Sprintf("unexpected object identifier %v", oid)}
	}

	ctx := new(keyContext)

	var emptyAuth cryptobyte.String
	var present bool
	if !seq.ReadOptionalASN1(&emptyAuth, &present, cryptobyte_asn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, trustedkeys.InvalidKeyDataError{Msg: "malformed emptyAuth field"}
	}
	if present {
		var v bool
		if !emptyAuth.ReadASN1Boolean(&v) || !emptyAuth.Empty() {
			return nil, trustedkeys.InvalidKeyDataError{Msg: "malformed emptyAuth field"}
		}
		ctx.emptyAuth = v
	}

	// The parent handle is accumulated from the raw integer content
	// bytes so that handles with the MSB set (permanent and persistent
	// handles have a positive DER encoding with a leading zero byte)
	// round-trip correctly.
	var parentBytes cryptobyte.String
	if !seq.ReadASN1(&parentBytes, cryptobyte_asn1.INTEGER) || len(parentBytes) == 0 {
		return nil, trustedkeys.InvalidKeyDataError{Msg: "malformed parent handle"}
	}
	var parent uint64
	for _, b := range parentBytes {
		parent = parent<<8 | uint64(b)
		if parent > 0xffffffff {
			return nil, trustedkeys.InvalidKeyDataError{Msg: "parent handle out of range"}
		}
	}
	ctx.parent = tpm2.Handle(parent)

	var pub, priv []byte
	if !seq.ReadASN1Bytes(&pub, cryptobyte_asn1.OCTET_STRING) {
		return nil, trustedkeys.InvalidKeyDataError{Msg: "malformed public area"}
	}
	if !seq.ReadASN1Bytes(&priv, cryptobyte_asn1.OCTET_STRING) {
		return nil, trustedkeys.InvalidKeyDataError{Msg: "malformed private area"}
	}
	if !seq.Empty() {
		return nil, trustedkeys.InvalidKeyDataError{Msg: "trailing bytes after private area"}
	}

	if len(priv)+len(pub) > trustedkeys.MaxBlobSize {
		return nil, trustedkeys.SizeExceededError{What: "sealed object", Size: len(priv) + len(pub), Limit: trustedkeys.MaxBlobSize}
	}

	ctx.blob = make([]byte, 0, len(priv)+len(pub))
	ctx.blob = append(ctx.blob, priv...)
	ctx.blob = append(ctx.blob, pub...)

	return ctx, nil
}

// probeKeyBlob reports whether blob looks like the self-describing
// format - a DER sequence starting with the id-tpmSealedData OID.
// Anything else is treated as a blob in the legacy raw format.
func probeKeyBlob(blob []byte) bool {
	input := cryptobyte.String(blob)

	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return false
	}
	var oid asn1.ObjectIdentifier
	if !seq.ReadASN1ObjectIdentifier(&oid) {
		return false
	}
	return oid.Equal(oidTPMSealedData)
}
