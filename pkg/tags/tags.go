// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tags defines the content-category bitmask published on every
// campaign. The settlement core stores the mask without interpreting it;
// renderers match it against their own policy.
package tags

import (
	"fmt"
	"math/bits"
	"strings"
)

// Mask is an opaque 64-bit set of content categories.
type Mask uint64

// Defined categories.
const (
	None      Mask = 0
	Crypto    Mask = 1 << 0
	Betting   Mask = 1 << 1
	NSFW      Mask = 1 << 2
	Political Mask = 1 << 3
	Alcohol   Mask = 1 << 4
)

const (
	// Defined covers every category with a name.
	Defined = Crypto | Betting | NSFW | Political | Alcohol
	// PoCReserved is held for future categories (bits 5-15).
	PoCReserved Mask = 0xFFE0
	// FutureReserved is held for future protocol versions (bits 16-63).
	FutureReserved Mask = ^Mask(0xFFFF)
)

// Tag is one published row of the category table.
type Tag struct {
	Name string `json:"name"`
	Bit  uint   `json:"bit"`
	Mask Mask   `json:"mask"`
}

var table = []Tag{
	{Name: "crypto", Bit: 0, Mask: Crypto},
	{Name: "betting", Bit: 1, Mask: Betting},
	{Name: "nsfw", Bit: 2, Mask: NSFW},
	{Name: "political", Bit: 3, Mask: Political},
	{Name: "alcohol", Bit: 4, Mask: Alcohol},
}

// Table returns the published category table.
func Table() []Tag {
	out := make([]Tag, len(table))
	copy(out, table)
	return out
}

// Has reports whether every bit of t is set in m.
func (m Mask) Has(t Mask) bool {
	return m&t == t
}

// Overlaps reports whether m and o share any bit.
func (m Mask) Overlaps(o Mask) bool {
	return m&o != 0
}

func (m Mask) With(t Mask) Mask {
	return m | t
}

func (m Mask) Without(t Mask) Mask {
	return m &^ t
}

// Reserved returns the bits set in m that have no published name.
func (m Mask) Reserved() Mask {
	return m &^ Defined
}

// Count is the number of categories set.
func (m Mask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Names lists the named categories in m, followed by "bit<N>" for any
// reserved bit.
func (m Mask) Names() []string {
	var out []string
	for _, t := range table {
		if m.Has(t.Mask) {
			out = append(out, t.Name)
		}
	}
	for r := m.Reserved(); r != 0; r &= r - 1 {
		out = append(out, fmt.Sprintf("bit%d", bits.TrailingZeros64(uint64(r))))
	}
	return out
}

func (m Mask) String() string {
	if m == None {
		return "none"
	}
	return strings.Join(m.Names(), "|")
}

// Parse reads a list of category names, as produced by Names. Unknown
// names are an error.
func Parse(names ...string) (Mask, error) {
	var m Mask
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || name == "none" {
			continue
		}
		t, ok := lookup(name)
		if ok {
			m |= t
			continue
		}
		var bit uint
		if _, err := fmt.Sscanf(name, "bit%d", &bit); err != nil || bit > 63 {
			return 0, fmt.Errorf("tags: unknown category %q", raw)
		}
		m |= 1 << bit
	}
	return m, nil
}

// ParseList splits a comma or pipe separated list.
func ParseList(s string) (Mask, error) {
	return Parse(strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' })...)
}

func lookup(name string) (Mask, bool) {
	for _, t := range table {
		if t.Name == name {
			return t.Mask, true
		}
	}
	return 0, false
}
