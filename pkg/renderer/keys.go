// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package renderer

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/proof"
)

// MinSeedLen is the shortest master seed accepted for key derivation.
const MinSeedLen = 32

const keyInfo = "samizdat:screen-key:v1"

var ErrShortSeed = errors.New("renderer: master seed shorter than 32 bytes")

// DeriveScreenKey derives the signing key of one screen from an operator's
// master seed. The same seed, owner and screen ID always give the same key,
// so a fleet can be provisioned from a single secret.
func DeriveScreenKey(master []byte, owner ids.ID, screenID uint64) (ids.ID, ed25519.PrivateKey, error) {
	if len(master) < MinSeedLen {
		return ids.Empty, nil, ErrShortSeed
	}
	info := binary.LittleEndian.AppendUint64([]byte(keyInfo), screenID)
	kdf := hkdf.New(sha256.New, master, owner.Bytes(), info)

	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return ids.Empty, nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return proof.KeyID(priv.Public().(ed25519.PublicKey)), priv, nil
}
