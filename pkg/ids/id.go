package ids

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// IDLen is the length of an ID in bytes
const IDLen = 32

var errNotHex = errors.New("ids: malformed hex")

// ID identifies an account address, a wallet, or an ed25519 public key
type ID [IDLen]byte

// Empty is the zero ID
var Empty = ID{}

// GenerateTestID creates a random ID for testing
func GenerateTestID() ID {
	var id ID
	_, _ = rand.Read(id[:])
	return id
}

// String returns the hex representation of the ID
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the byte representation of the ID
func (id ID) Bytes() []byte {
	return id[:]
}

// IsEmpty returns true if the ID is the zero value
func (id ID) IsEmpty() bool {
	return id == Empty
}

// Short is an abbreviated form for log lines
func (id ID) Short() string {
	return hex.EncodeToString(id[:4])
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := FromString(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// FromString creates an ID from a hex string
func FromString(s string) (ID, error) {
	var id ID
	bytes, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: %v", errNotHex, err)
	}
	if len(bytes) != IDLen {
		return id, fmt.Errorf("invalid ID length: expected %d, got %d", IDLen, len(bytes))
	}
	copy(id[:], bytes)
	return id, nil
}

// FromBytes copies a 32 byte slice into an ID
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDLen {
		return id, fmt.Errorf("invalid ID length: expected %d, got %d", IDLen, len(b))
	}
	copy(id[:], b)
	return id, nil
}
