// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package proof

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"

	"github.com/luxfi/samizdat/pkg/ids"
)

// ErrInvalidSignature indicates the signature does not verify under the key
var ErrInvalidSignature = errors.New("invalid signature")

// Verify checks sig over exactly msg under the ed25519 public key.
func Verify(key ids.ID, msg, sig []byte) error {
	if len(sig) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(key[:]), msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyPayload encodes p and verifies sig over it.
func VerifyPayload(key ids.ID, p PayloadV1, sig []byte) error {
	return Verify(key, p.Bytes(), sig)
}

// Sign signs the encoding of p.
func Sign(priv ed25519.PrivateKey, p PayloadV1) []byte {
	return ed25519.Sign(priv, p.Bytes())
}

// KeyID returns the ID form of an ed25519 public key, as registered on a
// screen.
func KeyID(pub ed25519.PublicKey) ids.ID {
	var id ids.ID
	copy(id[:], pub)
	return id
}

// GenerateKey creates a signing key pair. A nil reader uses crypto/rand.
func GenerateKey(r io.Reader) (ids.ID, ed25519.PrivateKey, error) {
	if r == nil {
		r = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return ids.Empty, nil, err
	}
	return KeyID(pub), priv, nil
}
