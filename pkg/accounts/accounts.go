// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accounts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/luxfi/crypto/hashing"

	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/tags"
)

// Address namespaces.
const (
	SeedAd        = "ad"
	SeedScreen    = "screen"
	SeedPublisher = "publisher"
)

const (
	MaxContentCIDLen        = 200
	MaxAdditionalCIDs       = 15
	MaxLocationLen          = 64
	MaxLandmarks            = 8
	MaxLandmarkLen          = 64
	MaxEstablishmentTypeLen = 32
)

// ScreenSize is a coarse physical size class.
type ScreenSize string

const (
	SizeUnspecified ScreenSize = ""
	SizeSmall       ScreenSize = "small"
	SizeMedium      ScreenSize = "medium"
	SizeLarge       ScreenSize = "large"
	SizeBillboard   ScreenSize = "billboard"
)

// Valid reports whether s is a known size class.
func (s ScreenSize) Valid() bool {
	switch s {
	case SizeUnspecified, SizeSmall, SizeMedium, SizeLarge, SizeBillboard:
		return true
	}
	return false
}

var (
	ErrContentCIDTooLong = errors.New("content cid exceeds 200 bytes")
	ErrLocationTooLong   = errors.New("location exceeds 64 bytes")
	ErrTooManyCIDs       = errors.New("more than 15 additional content cids")
	ErrEmptyCID          = errors.New("empty content cid")
	ErrTooManyLandmarks  = errors.New("more than 8 landmarks")
	ErrLandmarkTooLong   = errors.New("landmark exceeds 64 bytes")
	ErrEstablishmentLong = errors.New("establishment type exceeds 32 bytes")
	ErrUnknownScreenSize = errors.New("unknown screen size")
	ErrMissingAuthority  = errors.New("missing authority")
	ErrMissingSigningKey = errors.New("missing signing key")
	ErrMissingOwner      = errors.New("missing owner wallet")
	ErrPlaysOverMax      = errors.New("play count exceeds max plays")
	ErrSpendOverFunding  = errors.New("spent and refunded exceed total funded")
	ErrEscrowOverflow    = errors.New("escrow arithmetic overflow")
)

// Dimensions of a display in pixels.
type Dimensions struct {
	Width  uint16 `json:"width"`
	Height uint16 `json:"height"`
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// AdAccount is a funded campaign.
type AdAccount struct {
	Authority     ids.ID    `json:"authority"`
	CampaignID    uint64    `json:"campaignId"`
	ContentCID    string    `json:"contentCid"`
	IsActive      bool      `json:"isActive"`
	BountyPerPlay uint64    `json:"bountyPerPlay"`
	MaxPlays      uint64    `json:"maxPlays"`
	PlayCount     uint64    `json:"playCount"`
	TotalFunded   uint64    `json:"totalFunded"`
	TotalSpent    uint64    `json:"totalSpent"`
	Refunded      uint64    `json:"refunded"`
	Closed        bool      `json:"closed"`
	TargetScreen  *ids.ID   `json:"targetScreen,omitempty"`
	TagMask       tags.Mask `json:"tagMask"`

	// AdditionalCIDs are alternate creatives appended after creation.
	AdditionalCIDs []string `json:"additionalCids,omitempty"`
}

// CIDs lists the primary creative followed by the additional ones.
func (a *AdAccount) CIDs() []string {
	out := make([]string, 0, 1+len(a.AdditionalCIDs))
	if a.ContentCID != "" {
		out = append(out, a.ContentCID)
	}
	return append(out, a.AdditionalCIDs...)
}

// ScreenAccount is a registered display. OwnerWallet is both the
// registering identity and the payout destination.
type ScreenAccount struct {
	OwnerWallet    ids.ID     `json:"ownerWallet"`
	ScreenID       uint64     `json:"screenId"`
	SigningKey     ids.ID     `json:"signingKey"`
	Dimensions     Dimensions `json:"dimensions"`
	Location       string     `json:"location,omitempty"`
	IsActive       bool       `json:"isActive"`
	LastProofNonce uint64     `json:"lastProofNonce"`
	TotalPlays     uint64     `json:"totalPlays"`
	TotalEarnings  uint64     `json:"totalEarnings"`

	// Venue metadata for campaign planning. BlockedTagMask is the owner's
	// published content policy; renderers apply it, settlement does not.
	ScreenSize        ScreenSize `json:"screenSize,omitempty"`
	EstimatedFootfall uint32     `json:"estimatedFootfall,omitempty"`
	EstablishmentType string     `json:"establishmentType,omitempty"`
	Landmarks         []string   `json:"landmarks,omitempty"`
	BlockedTagMask    tags.Mask  `json:"blockedTagMask,omitempty"`
}

// PublisherAccount aggregates the campaigns of one authority.
type PublisherAccount struct {
	Authority      ids.ID `json:"authority"`
	TotalCampaigns uint64 `json:"totalCampaigns"`
	TotalSpent     uint64 `json:"totalSpent"`
}

// Clone returns a deep copy.
func (a *AdAccount) Clone() *AdAccount {
	c := *a
	if a.TargetScreen != nil {
		target := *a.TargetScreen
		c.TargetScreen = &target
	}
	if a.AdditionalCIDs != nil {
		c.AdditionalCIDs = append([]string(nil), a.AdditionalCIDs...)
	}
	return &c
}

// Clone returns a deep copy.
func (s *ScreenAccount) Clone() *ScreenAccount {
	c := *s
	if s.Landmarks != nil {
		c.Landmarks = append([]string(nil), s.Landmarks...)
	}
	return &c
}

// Exhausted reports whether every play slot has been used.
func (a *AdAccount) Exhausted() bool {
	return a.PlayCount >= a.MaxPlays
}

// Escrow is the amount still held for future payouts.
func (a *AdAccount) Escrow() (uint64, error) {
	hi, spent := bits.Mul64(a.PlayCount, a.BountyPerPlay)
	if hi != 0 {
		return 0, ErrEscrowOverflow
	}
	if spent > a.TotalFunded || a.Refunded > a.TotalFunded-spent {
		return 0, ErrSpendOverFunding
	}
	return a.TotalFunded - spent - a.Refunded, nil
}

// Validate checks the record-level invariants.
func (a *AdAccount) Validate() error {
	switch {
	case a.Authority.IsEmpty():
		return ErrMissingAuthority
	case len(a.ContentCID) > MaxContentCIDLen:
		return ErrContentCIDTooLong
	case len(a.AdditionalCIDs) > MaxAdditionalCIDs:
		return ErrTooManyCIDs
	case a.PlayCount > a.MaxPlays:
		return ErrPlaysOverMax
	}
	for _, cid := range a.AdditionalCIDs {
		switch {
		case cid == "":
			return ErrEmptyCID
		case len(cid) > MaxContentCIDLen:
			return ErrContentCIDTooLong
		}
	}
	_, err := a.Escrow()
	return err
}

// Validate checks the record-level invariants.
func (s *ScreenAccount) Validate() error {
	switch {
	case s.OwnerWallet.IsEmpty():
		return ErrMissingOwner
	case s.SigningKey.IsEmpty():
		return ErrMissingSigningKey
	case len(s.Location) > MaxLocationLen:
		return ErrLocationTooLong
	case !s.ScreenSize.Valid():
		return fmt.Errorf("%w %q", ErrUnknownScreenSize, s.ScreenSize)
	case len(s.EstablishmentType) > MaxEstablishmentTypeLen:
		return ErrEstablishmentLong
	case len(s.Landmarks) > MaxLandmarks:
		return ErrTooManyLandmarks
	}
	for _, l := range s.Landmarks {
		if len(l) > MaxLandmarkLen {
			return ErrLandmarkTooLong
		}
	}
	return nil
}

// DeriveAddress hashes a namespace seed with the identifying parts.
func DeriveAddress(seed string, parts ...[]byte) ids.ID {
	buf := []byte(seed)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	var id ids.ID
	copy(id[:], hashing.ComputeHash256(buf))
	return id
}

// AdAddress locates the campaign numbered campaignID of authority.
func AdAddress(authority ids.ID, campaignID uint64) ids.ID {
	return DeriveAddress(SeedAd, authority[:], binary.LittleEndian.AppendUint64(nil, campaignID))
}

// PublisherAddress locates the aggregate record of authority.
func PublisherAddress(authority ids.ID) ids.ID {
	return DeriveAddress(SeedPublisher, authority[:])
}

// ScreenAddress locates the screen numbered screenID of owner.
func ScreenAddress(owner ids.ID, screenID uint64) ids.ID {
	return DeriveAddress(SeedScreen, owner[:], binary.LittleEndian.AppendUint64(nil, screenID))
}
