// Package vocab models dictionary words and matches free text against a
// primary and a secondary dictionary.
package vocab

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Tier is a coarse difficulty level shared by dictionary words and users.
type Tier int

const (
	MinTier Tier = 1
	MaxTier Tier = 6

	// DefaultTier is assumed for users that never chose one.
	DefaultTier Tier = 2
)

// ErrInvalidTier is returned when a tier is outside [MinTier, MaxTier].
var ErrInvalidTier = errors.New("tier out of range")

// Valid reports whether t is within [MinTier, MaxTier].
func (t Tier) Valid() bool {
	return t >= MinTier && t <= MaxTier
}

// Tiers returns every valid tier in ascending order.
func Tiers() []Tier {
	out := make([]Tier, 0, MaxTier-MinTier+1)
	for t := MinTier; t <= MaxTier; t++ {
		out = append(out, t)
	}
	return out
}

// ParseTier parses a decimal tier and checks its range.
func ParseTier(s string) (Tier, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse tier %q: %w", s, err)
	}
	t := Tier(n)
	if !t.Valid() {
		return 0, fmt.Errorf("tier %d: %w", n, ErrInvalidTier)
	}
	return t, nil
}

// Word is a dictionary entry. BaseForm is expected in NFC.
type Word struct {
	ID       int64
	BaseForm string
	Tier     Tier
}

// Source says which dictionary a match came from.
type Source int

const (
	Primary Source = iota
	Secondary
)

func (s Source) String() string {
	switch s {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	if s != Primary && s != Secondary {
		return nil, fmt.Errorf("unknown source %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(b []byte) error {
	switch string(b) {
	case "primary":
		*s = Primary
	case "secondary":
		*s = Secondary
	default:
		return fmt.Errorf("unknown source %q", b)
	}
	return nil
}

// Confidence says whether a match needed suffix stripping.
type Confidence int

const (
	Exact Confidence = iota
	Derived
)

func (c Confidence) String() string {
	switch c {
	case Exact:
		return "exact"
	case Derived:
		return "derived"
	default:
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Confidence) MarshalText() ([]byte, error) {
	if c != Exact && c != Derived {
		return nil, fmt.Errorf("unknown confidence %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Confidence) UnmarshalText(b []byte) error {
	switch string(b) {
	case "exact":
		*c = Exact
	case "derived":
		*c = Derived
	default:
		return fmt.Errorf("unknown confidence %q", b)
	}
	return nil
}

// Match is one dictionary word recognized in a text.
type Match struct {
	Source         Source     `json:"source"`
	WordID         int64      `json:"wordId"`
	SurfaceForm    string     `json:"surfaceForm"`
	NormalizedForm string     `json:"normalizedForm"`
	BaseForm       string     `json:"baseForm"`
	Confidence     Confidence `json:"confidence"`
}
