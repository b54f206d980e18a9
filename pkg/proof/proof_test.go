// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package proof

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func testPayload() PayloadV1 {
	var p PayloadV1
	for i := range p.Ad {
		p.Ad[i] = byte(i)
		p.Screen[i] = byte(0xff - i)
	}
	p.Nonce = 0x0102030405060708
	p.Timestamp = -2
	return p
}

func TestPayloadLayout(t *testing.T) {
	require := require.New(t)

	p := testPayload()
	b := p.Bytes()
	require.Len(b, PayloadV1Size)
	require.Equal(len(DomainV1)+80, PayloadV1Size)
	require.Equal(DomainV1, string(b[:len(DomainV1)]))

	body := b[len(DomainV1):]
	require.Equal(p.Ad[:], body[:32])
	require.Equal(p.Screen[:], body[32:64])
	require.Equal("0807060504030201", hex.EncodeToString(body[64:72]))
	require.Equal("feffffffffffffff", hex.EncodeToString(body[72:80]))
}

func TestPayloadDeterminism(t *testing.T) {
	require := require.New(t)

	p := testPayload()
	require.Equal(p.Bytes(), p.Bytes())

	mutations := map[string]func(*PayloadV1){
		"ad":        func(p *PayloadV1) { p.Ad[31] ^= 1 },
		"screen":    func(p *PayloadV1) { p.Screen[0] ^= 1 },
		"nonce":     func(p *PayloadV1) { p.Nonce++ },
		"timestamp": func(p *PayloadV1) { p.Timestamp++ },
	}
	for name, mutate := range mutations {
		q := testPayload()
		mutate(&q)
		require.NotEqual(p.Bytes(), q.Bytes(), name)
	}
}

func TestDecodeV1(t *testing.T) {
	require := require.New(t)

	p := testPayload()
	got, err := DecodeV1(p.Bytes())
	require.NoError(err)
	require.Equal(p, got)

	_, err = DecodeV1(p.Bytes()[1:])
	require.ErrorIs(err, ErrPayloadSize)

	// same length, different version tag
	forged := p.Bytes()
	copy(forged, "samizdat:proof:v2")
	_, err = DecodeV1(forged)
	require.ErrorIs(err, ErrDomainMismatch)
}

func TestSignVerify(t *testing.T) {
	require := require.New(t)

	key, priv, err := GenerateKey(nil)
	require.NoError(err)
	p := testPayload()
	sig := Sign(priv, p)
	require.NoError(VerifyPayload(key, p, sig))

	other, _, err := GenerateKey(nil)
	require.NoError(err)
	require.ErrorIs(VerifyPayload(other, p, sig), ErrInvalidSignature)

	require.ErrorIs(Verify(key, p.Bytes(), sig[:63]), ErrInvalidSignature)
	require.ErrorIs(Verify(key, p.Bytes(), nil), ErrInvalidSignature)
}

func TestBitFlips(t *testing.T) {
	key, priv, err := GenerateKey(nil)
	require.NoError(t, err)
	msg := testPayload().Bytes()
	sig := ed25519.Sign(priv, msg)

	for i := range msg {
		flipped := bytes.Clone(msg)
		flipped[i] ^= 0x01
		require.ErrorIs(t, Verify(key, flipped, sig), ErrInvalidSignature, "payload byte %d", i)
	}
	for i := range sig {
		flipped := bytes.Clone(sig)
		flipped[i] ^= 0x80
		require.ErrorIs(t, Verify(key, msg, flipped), ErrInvalidSignature, "signature byte %d", i)
	}
}

func TestUnrelatedDomainSignature(t *testing.T) {
	require := require.New(t)

	key, priv, err := GenerateKey(nil)
	require.NoError(err)
	p := testPayload()

	// a signature over the bare fields, without the domain tag
	raw := p.Bytes()[len(DomainV1):]
	require.ErrorIs(VerifyPayload(key, p, ed25519.Sign(priv, raw)), ErrInvalidSignature)
	require.Equal(KeyID(priv.Public().(ed25519.PublicKey)), key)
}

func BenchmarkVerifyPayload(b *testing.B) {
	key, priv, _ := GenerateKey(nil)
	p := testPayload()
	sig := Sign(priv, p)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = VerifyPayload(key, p, sig)
	}
}
