/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package priceguess

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is the difficulty class of an item. It scales the base score.
type Tier int

const (
	Easy Tier = iota
	Medium
	Hard
	Cruel
)

var tierNames = [...]string{"easy", "medium", "hard", "cruel"}

var tierMultipliers = [...]float64{1.0, 1.5, 2.0, 3.0}

func (t Tier) String() string {
	if !t.valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

func (t Tier) valid() bool {
	return t >= Easy && t <= Cruel
}

// Multiplier returns the factor applied to the rounded base score.
func (t Tier) Multiplier() float64 {
	if !t.valid() {
		return 1.0
	}
	return tierMultipliers[t]
}

// ParseTier accepts a tier name in any case.
func ParseTier(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown difficulty %q", ErrValidation, s)
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: difficulty must be a string", ErrValidation)
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
