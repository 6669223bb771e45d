// Package category defines the closed set of content categories a wiki page can belong to.
package category

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory signals input that names no known category.
var ErrUnknownCategory = errors.New("unknown category")

// Category classifies indexed content. The zero value is invalid; use Unknown
// for content that could not be classified.
type Category string

// Category constants.
const (
	Unknown    Category = "unknown"
	Boss       Category = "boss"
	Nightfarer Category = "nightfarer"
	Weapon     Category = "weapon"
	Armor      Category = "armor"
	Talisman   Category = "talisman"
	Relic      Category = "relic"
	Spell      Category = "spell"
	Item       Category = "item"
	Location   Category = "location"
	NPC        Category = "npc"
	Mechanic   Category = "mechanic"
)

var known = []Category{
	Boss, Nightfarer, Weapon, Armor, Talisman, Relic, Spell, Item, Location, NPC, Mechanic,
}

// plural and wiki-section spellings seen in URLs and user input.
var aliases = map[string]Category{
	"bosses":        Boss,
	"nightlords":    Boss,
	"nightlord":     Boss,
	"nightfarers":   Nightfarer,
	"characters":    Nightfarer,
	"character":     Nightfarer,
	"weapons":       Weapon,
	"armors":        Armor,
	"shields":       Armor,
	"talismans":     Talisman,
	"relics":        Relic,
	"spells":        Spell,
	"sorceries":     Spell,
	"sorcery":       Spell,
	"incantations":  Spell,
	"incantation":   Spell,
	"items":         Item,
	"consumables":   Item,
	"locations":     Location,
	"npcs":          NPC,
	"mechanics":     Mechanic,
}

// All returns every classifiable category, Unknown excluded.
func All() []Category {
	out := make([]Category, len(known))
	copy(out, known)
	return out
}

// Parse maps user or config input to a Category. It is case-insensitive,
// accepts plural aliases and rejects anything else with ErrUnknownCategory.
// "unknown" itself parses to Unknown.
func Parse(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == string(Unknown) {
		return Unknown, nil
	}
	for _, c := range known {
		if key == string(c) {
			return c, nil
		}
	}
	if c, ok := aliases[key]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// ParseLenient is Parse with unrecognized input mapped to Unknown.
func ParseLenient(s string) Category {
	c, err := Parse(s)
	if err != nil {
		return Unknown
	}
	return c
}

// IsValid reports whether c is a member of the enumeration, Unknown included.
func (c Category) IsValid() bool {
	if c == Unknown {
		return true
	}
	for _, k := range known {
		if c == k {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }
