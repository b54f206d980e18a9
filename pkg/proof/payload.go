// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package proof

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/samizdat/pkg/ids"
)

// DomainV1 is bound into every version 1 signature. A new payload layout
// gets a new tag.
const DomainV1 = "samizdat:proof:v1"

// PayloadV1Size is the exact encoded length of a version 1 payload.
const PayloadV1Size = len(DomainV1) + 2*ids.IDLen + 8 + 8

var (
	ErrPayloadSize    = errors.New("proof: wrong payload length")
	ErrDomainMismatch = errors.New("proof: domain tag mismatch")
)

// PayloadV1 is a display claim: screen showed ad at timestamp, numbered nonce.
type PayloadV1 struct {
	Ad        ids.ID `json:"ad"`
	Screen    ids.ID `json:"screen"`
	Nonce     uint64 `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
}

// Bytes returns the signable encoding:
//
//	DomainV1 || ad || screen || nonce (u64 LE) || timestamp (i64 LE)
func (p PayloadV1) Bytes() []byte {
	return p.AppendTo(make([]byte, 0, PayloadV1Size))
}

// AppendTo appends the signable encoding to dst.
func (p PayloadV1) AppendTo(dst []byte) []byte {
	dst = append(dst, DomainV1...)
	dst = append(dst, p.Ad[:]...)
	dst = append(dst, p.Screen[:]...)
	dst = binary.LittleEndian.AppendUint64(dst, p.Nonce)
	return binary.LittleEndian.AppendUint64(dst, uint64(p.Timestamp))
}

// DecodeV1 parses a signable encoding. Anything not carrying DomainV1 is
// rejected.
func DecodeV1(b []byte) (PayloadV1, error) {
	var p PayloadV1
	if len(b) != PayloadV1Size {
		return p, fmt.Errorf("%w: got %d, want %d", ErrPayloadSize, len(b), PayloadV1Size)
	}
	if !bytes.HasPrefix(b, []byte(DomainV1)) {
		return p, ErrDomainMismatch
	}
	b = b[len(DomainV1):]
	copy(p.Ad[:], b[:ids.IDLen])
	b = b[ids.IDLen:]
	copy(p.Screen[:], b[:ids.IDLen])
	b = b[ids.IDLen:]
	p.Nonce = binary.LittleEndian.Uint64(b[:8])
	p.Timestamp = int64(binary.LittleEndian.Uint64(b[8:]))
	return p, nil
}
