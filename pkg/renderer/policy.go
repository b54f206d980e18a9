// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package renderer

import (
	"sort"

	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/settlement"
	"github.com/luxfi/samizdat/pkg/tags"
)

// Policy is a screen operator's content policy. A campaign is skipped if
// it carries any Blocked category, or lacks any Required one.
type Policy struct {
	Blocked  tags.Mask `json:"blocked" yaml:"blocked"`
	Required tags.Mask `json:"required" yaml:"required"`
}

// Allows reports whether a campaign tagged mask may be shown.
func (p Policy) Allows(mask tags.Mask) bool {
	if mask.Overlaps(p.Blocked) {
		return false
	}
	return mask.Has(p.Required)
}

// Eligible filters ads down to the ones screen could settle right now
// under p, highest bounty first. Ties keep their input order.
func (p Policy) Eligible(ads []settlement.AdEntry, screen ids.ID) []settlement.AdEntry {
	out := make([]settlement.AdEntry, 0, len(ads))
	for _, entry := range ads {
		ad := entry.Ad
		if ad == nil || !ad.IsActive || ad.Exhausted() {
			continue
		}
		if ad.TargetScreen != nil && *ad.TargetScreen != screen {
			continue
		}
		if !p.Allows(ad.TagMask) {
			continue
		}
		escrow, err := ad.Escrow()
		if err != nil || escrow < ad.BountyPerPlay {
			continue
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Ad.BountyPerPlay > out[j].Ad.BountyPerPlay
	})
	return out
}
