// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/luxfi/samizdat/pkg/accounts"
	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/log"
	"github.com/luxfi/samizdat/pkg/storage"
	"github.com/luxfi/samizdat/pkg/tags"
)

// CreateAdRequest opens a campaign owned by Authority. The campaign starts
// active with Funding escrowed.
type CreateAdRequest struct {
	Authority     ids.ID    `json:"authority"`
	CampaignID    uint64    `json:"campaignId"`
	ContentCID    string    `json:"contentCid"`
	BountyPerPlay uint64    `json:"bountyPerPlay"`
	MaxPlays      uint64    `json:"maxPlays"`
	Funding       uint64    `json:"funding"`
	TargetScreen  *ids.ID   `json:"targetScreen,omitempty"`
	TagMask       tags.Mask `json:"tagMask"`
}

type FundAdRequest struct {
	Caller ids.ID `json:"caller"`
	Ad     ids.ID `json:"ad"`
	Amount uint64 `json:"amount"`
}

// SetActiveRequest pauses or resumes an ad or a screen.
type SetActiveRequest struct {
	Caller ids.ID `json:"caller"`
	ID     ids.ID `json:"id"`
	Active bool   `json:"active"`
}

// UpdateAdRequest changes the fields that are set. ClearTarget, or an
// empty TargetScreen, removes an exclusive screen binding. AddCIDs appends
// alternate creatives.
type UpdateAdRequest struct {
	Caller       ids.ID     `json:"caller"`
	Ad           ids.ID     `json:"ad"`
	ContentCID   *string    `json:"contentCid,omitempty"`
	AddCIDs      []string   `json:"addCids,omitempty"`
	TagMask      *tags.Mask `json:"tagMask,omitempty"`
	TargetScreen *ids.ID    `json:"targetScreen,omitempty"`
	ClearTarget  bool       `json:"clearTarget,omitempty"`
	MaxPlays     *uint64    `json:"maxPlays,omitempty"`
}

type CloseAdRequest struct {
	Caller ids.ID `json:"caller"`
	Ad     ids.ID `json:"ad"`
}

type CloseAdResponse struct {
	Ad     *accounts.AdAccount `json:"ad"`
	Refund uint64              `json:"refund"`
}

// CreateScreenRequest registers a screen. Owner receives its payouts.
type CreateScreenRequest struct {
	Owner      ids.ID              `json:"owner"`
	ScreenID   uint64              `json:"screenId"`
	SigningKey ids.ID              `json:"signingKey"`
	Dimensions accounts.Dimensions `json:"dimensions"`
	Location   string              `json:"location,omitempty"`
	Venue
}

// Venue is the planning metadata of a screen.
type Venue struct {
	ScreenSize        accounts.ScreenSize `json:"screenSize,omitempty"`
	EstimatedFootfall uint32              `json:"estimatedFootfall,omitempty"`
	EstablishmentType string              `json:"establishmentType,omitempty"`
	Landmarks         []string            `json:"landmarks,omitempty"`
	BlockedTagMask    tags.Mask           `json:"blockedTagMask,omitempty"`
}

// UpdateScreenRequest changes the fields that are set. Rotating the
// signing key keeps the nonce anchor.
type UpdateScreenRequest struct {
	Caller     ids.ID               `json:"caller"`
	Screen     ids.ID               `json:"screen"`
	SigningKey *ids.ID              `json:"signingKey,omitempty"`
	Dimensions *accounts.Dimensions `json:"dimensions,omitempty"`
	Location   *string              `json:"location,omitempty"`
	Venue      *Venue               `json:"venue,omitempty"`
}

// ScreenEntry is a screen with its address.
type ScreenEntry struct {
	ID     ids.ID                  `json:"id"`
	Screen *accounts.ScreenAccount `json:"screen"`
}

// CreateAd opens a new campaign at the authority's derived address and
// counts it in the authority's publisher totals.
func (e *Engine) CreateAd(ctx context.Context, req *CreateAdRequest) (*AdEntry, error) {
	if req.MaxPlays == 0 {
		return nil, fmt.Errorf("%w: max plays must be positive", ErrInvalidAmount)
	}
	target := req.TargetScreen
	if target != nil && target.IsEmpty() {
		target = nil
	}
	ad := &accounts.AdAccount{
		Authority:     req.Authority,
		CampaignID:    req.CampaignID,
		ContentCID:    req.ContentCID,
		IsActive:      true,
		BountyPerPlay: req.BountyPerPlay,
		MaxPlays:      req.MaxPlays,
		TotalFunded:   req.Funding,
		TargetScreen:  target,
		TagMask:       req.TagMask,
	}
	if err := ad.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	id := accounts.AdAddress(req.Authority, req.CampaignID)

	err := e.manage(ctx, "create_ad", func(tx storage.Tx) error {
		_, err := tx.Ad(id)
		if err == nil {
			return ErrAdExists
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		pub, err := loadPublisher(tx, req.Authority)
		if err != nil {
			return err
		}
		if pub.TotalCampaigns, err = add(pub.TotalCampaigns, 1); err != nil {
			return err
		}
		if err := tx.PutAd(id, ad); err != nil {
			return err
		}
		return tx.PutPublisher(pub)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("ad created",
		log.Stringer("ad", id),
		log.Stringer("authority", req.Authority),
		log.Uint64("bounty", ad.BountyPerPlay),
		log.Uint64("maxPlays", ad.MaxPlays),
		log.Uint64("funded", ad.TotalFunded),
		zap.Stringer("tags", ad.TagMask),
	)
	e.emit(Event{Type: EventAdCreated, Ad: id, Wallet: ad.Authority, Amount: ad.TotalFunded, Active: true})
	return &AdEntry{ID: id, Ad: ad}, nil
}

// FundAd adds escrow to a campaign.
func (e *Engine) FundAd(ctx context.Context, req *FundAdRequest) (*accounts.AdAccount, error) {
	if req.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	var ad *accounts.AdAccount
	err := e.manage(ctx, "fund_ad", func(tx storage.Tx) error {
		var err error
		if ad, err = authorizedAd(tx, req.Ad, req.Caller); err != nil {
			return err
		}
		if ad.Closed {
			return ErrAdClosed
		}
		if ad.TotalFunded, err = add(ad.TotalFunded, req.Amount); err != nil {
			return err
		}
		return tx.PutAd(req.Ad, ad)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("ad funded", log.Stringer("ad", req.Ad), log.Uint64("amount", req.Amount), log.Uint64("funded", ad.TotalFunded))
	e.emit(Event{Type: EventAdFunded, Ad: req.Ad, Wallet: ad.Authority, Amount: req.Amount, Active: ad.IsActive})
	return ad, nil
}

// SetAdActive pauses or resumes a campaign. Closed campaigns stay closed.
func (e *Engine) SetAdActive(ctx context.Context, req *SetActiveRequest) (*accounts.AdAccount, error) {
	var ad *accounts.AdAccount
	err := e.manage(ctx, "set_ad_active", func(tx storage.Tx) error {
		var err error
		if ad, err = authorizedAd(tx, req.ID, req.Caller); err != nil {
			return err
		}
		if ad.Closed && req.Active {
			return ErrAdClosed
		}
		ad.IsActive = req.Active
		return tx.PutAd(req.ID, ad)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("ad status changed", log.Stringer("ad", req.ID), zap.Bool("active", req.Active))
	e.emit(Event{Type: EventAdStatus, Ad: req.ID, Wallet: ad.Authority, Active: ad.IsActive})
	return ad, nil
}

// UpdateAd changes campaign metadata. Bounty and funding are not editable
// here.
func (e *Engine) UpdateAd(ctx context.Context, req *UpdateAdRequest) (*accounts.AdAccount, error) {
	var ad *accounts.AdAccount
	err := e.manage(ctx, "update_ad", func(tx storage.Tx) error {
		var err error
		if ad, err = authorizedAd(tx, req.Ad, req.Caller); err != nil {
			return err
		}
		if ad.Closed {
			return ErrAdClosed
		}
		if req.ContentCID != nil {
			ad.ContentCID = *req.ContentCID
		}
		if len(req.AddCIDs) > 0 {
			ad.AdditionalCIDs = append(ad.AdditionalCIDs, req.AddCIDs...)
		}
		if req.TagMask != nil {
			ad.TagMask = *req.TagMask
		}
		switch {
		case req.ClearTarget, req.TargetScreen != nil && req.TargetScreen.IsEmpty():
			ad.TargetScreen = nil
		case req.TargetScreen != nil:
			target := *req.TargetScreen
			ad.TargetScreen = &target
		}
		if req.MaxPlays != nil {
			if *req.MaxPlays == 0 || *req.MaxPlays < ad.PlayCount {
				return fmt.Errorf("%w: max plays %d below play count %d", ErrInvalidAmount, *req.MaxPlays, ad.PlayCount)
			}
			ad.MaxPlays = *req.MaxPlays
		}
		if err := ad.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return tx.PutAd(req.Ad, ad)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("ad updated", log.Stringer("ad", req.Ad), zap.Stringer("tags", ad.TagMask), log.Uint64("maxPlays", ad.MaxPlays))
	e.emit(Event{Type: EventAdUpdated, Ad: req.Ad, Wallet: ad.Authority, Active: ad.IsActive})
	return ad, nil
}

// CloseAd deactivates a campaign for good and credits its remaining
// escrow to the authority's wallet.
func (e *Engine) CloseAd(ctx context.Context, req *CloseAdRequest) (*CloseAdResponse, error) {
	var (
		ad     *accounts.AdAccount
		refund uint64
	)
	err := e.manage(ctx, "close_ad", func(tx storage.Tx) error {
		var err error
		if ad, err = authorizedAd(tx, req.Ad, req.Caller); err != nil {
			return err
		}
		if ad.Closed {
			return ErrAdClosed
		}
		refund, err = ad.Escrow()
		switch {
		case errors.Is(err, accounts.ErrEscrowOverflow):
			return ErrArithmeticOverflow
		case err != nil:
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}

		balance, err := tx.Balance(ad.Authority)
		if err != nil {
			return err
		}
		if balance, err = add(balance, refund); err != nil {
			return err
		}
		if ad.Refunded, err = add(ad.Refunded, refund); err != nil {
			return err
		}
		ad.IsActive = false
		ad.Closed = true
		if err := tx.PutAd(req.Ad, ad); err != nil {
			return err
		}
		return tx.PutBalance(ad.Authority, balance)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("ad closed", log.Stringer("ad", req.Ad), log.Uint64("refund", refund), log.Uint64("plays", ad.PlayCount))
	e.emit(Event{Type: EventAdClosed, Ad: req.Ad, Wallet: ad.Authority, Amount: refund, PlayCount: ad.PlayCount})
	return &CloseAdResponse{Ad: ad, Refund: refund}, nil
}

// CreateScreen registers a screen at the owner's derived address. The
// screen starts active with nonce anchor zero.
func (e *Engine) CreateScreen(ctx context.Context, req *CreateScreenRequest) (*ScreenEntry, error) {
	screen := &accounts.ScreenAccount{
		OwnerWallet: req.Owner,
		ScreenID:    req.ScreenID,
		SigningKey:  req.SigningKey,
		Dimensions:  req.Dimensions,
		Location:    req.Location,
		IsActive:    true,
	}
	req.Venue.apply(screen)
	if err := screen.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	id := accounts.ScreenAddress(req.Owner, req.ScreenID)

	err := e.manage(ctx, "create_screen", func(tx storage.Tx) error {
		_, err := tx.Screen(id)
		if err == nil {
			return ErrScreenExists
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return tx.PutScreen(id, screen)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("screen registered",
		log.Stringer("screen", id),
		log.Stringer("owner", req.Owner),
		log.Stringer("dimensions", req.Dimensions),
	)
	e.emit(Event{Type: EventScreenRegistered, Screen: id, Wallet: req.Owner, Active: true})
	return &ScreenEntry{ID: id, Screen: screen}, nil
}

// SetScreenActive pauses or resumes a screen.
func (e *Engine) SetScreenActive(ctx context.Context, req *SetActiveRequest) (*accounts.ScreenAccount, error) {
	var screen *accounts.ScreenAccount
	err := e.manage(ctx, "set_screen_active", func(tx storage.Tx) error {
		var err error
		if screen, err = authorizedScreen(tx, req.ID, req.Caller); err != nil {
			return err
		}
		screen.IsActive = req.Active
		return tx.PutScreen(req.ID, screen)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("screen status changed", log.Stringer("screen", req.ID), zap.Bool("active", req.Active))
	e.emit(Event{Type: EventScreenStatus, Screen: req.ID, Wallet: screen.OwnerWallet, Active: screen.IsActive})
	return screen, nil
}

// UpdateScreen changes screen metadata or rotates its signing key.
func (e *Engine) UpdateScreen(ctx context.Context, req *UpdateScreenRequest) (*accounts.ScreenAccount, error) {
	var screen *accounts.ScreenAccount
	err := e.manage(ctx, "update_screen", func(tx storage.Tx) error {
		var err error
		if screen, err = authorizedScreen(tx, req.Screen, req.Caller); err != nil {
			return err
		}
		if req.SigningKey != nil {
			screen.SigningKey = *req.SigningKey
		}
		if req.Dimensions != nil {
			screen.Dimensions = *req.Dimensions
		}
		if req.Location != nil {
			screen.Location = *req.Location
		}
		if req.Venue != nil {
			req.Venue.apply(screen)
		}
		if err := screen.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		return tx.PutScreen(req.Screen, screen)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("screen updated", log.Stringer("screen", req.Screen), zap.Bool("keyRotated", req.SigningKey != nil))
	e.emit(Event{Type: EventScreenUpdated, Screen: req.Screen, Wallet: screen.OwnerWallet, Active: screen.IsActive})
	return screen, nil
}

func (v *Venue) apply(screen *accounts.ScreenAccount) {
	screen.ScreenSize = v.ScreenSize
	screen.EstimatedFootfall = v.EstimatedFootfall
	screen.EstablishmentType = v.EstablishmentType
	screen.Landmarks = append([]string(nil), v.Landmarks...)
	screen.BlockedTagMask = v.BlockedTagMask
}

func (e *Engine) manage(ctx context.Context, op string, fn func(storage.Tx) error) error {
	err := e.store.Update(ctx, fn)
	if e.metrics != nil {
		result := "ok"
		if err != nil {
			result = Kind(err)
		}
		e.metrics.AdminOps.WithLabelValues(op, result).Inc()
	}
	if err != nil {
		e.log.Debug("management operation failed", log.String("op", op), log.Error(err))
	}
	return err
}

func (e *Engine) emit(evt Event) {
	evt.Time = e.nowFn()
	e.emitter.Emit(evt)
}

func authorizedAd(tx storage.Tx, id, caller ids.ID) (*accounts.AdAccount, error) {
	ad, err := loadAd(tx, id)
	if err != nil {
		return nil, err
	}
	if ad.Authority != caller {
		return nil, ErrUnauthorized
	}
	return ad, nil
}

func authorizedScreen(tx storage.Tx, id, caller ids.ID) (*accounts.ScreenAccount, error) {
	screen, err := loadScreen(tx, id)
	if err != nil {
		return nil, err
	}
	if screen.OwnerWallet != caller {
		return nil, ErrUnauthorized
	}
	return screen, nil
}
