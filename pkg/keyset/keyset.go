// Package keyset implements cursor pagination over the dictionary ordered by
// (tier, base form, id).
//
// A cursor is the base64 encoding of "tier|base_form|id" taken from the
// last row a client has seen. It depends on nothing but the row, so it stays
// valid across restarts. A cursor that fails to decode is treated as absent
// and the listing starts over.
package keyset

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"

	"github.com/langbuddy/langbuddy/pkg/vocab"
)

const (
	DefaultLimit = 40
	MaxLimit     = 100
)

// Cursor is the sort key of the last row of a page.
type Cursor struct {
	Tier     vocab.Tier
	BaseForm string
	ID       int64
}

// Of returns the cursor for w.
func Of(w vocab.Word) Cursor {
	return Cursor{Tier: w.Tier, BaseForm: w.BaseForm, ID: w.ID}
}

// Encode returns the opaque client form of c.
func (c Cursor) Encode() string {
	raw := strconv.Itoa(int(c.Tier)) + "|" + c.BaseForm + "|" + strconv.FormatInt(c.ID, 10)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Decode parses a cursor produced by Encode. It reports false for anything
// malformed: bad base64, missing fields, non-numeric tier or id, or an
// empty base form.
func Decode(s string) (Cursor, bool) {
	if s == "" {
		return Cursor{}, false
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, false
	}
	raw := string(b)
	first := strings.IndexByte(raw, '|')
	last := strings.LastIndexByte(raw, '|')
	if first < 0 || first == last {
		return Cursor{}, false
	}
	tier, err := strconv.Atoi(raw[:first])
	if err != nil {
		return Cursor{}, false
	}
	id, err := strconv.ParseInt(raw[last+1:], 10, 64)
	if err != nil {
		return Cursor{}, false
	}
	base := raw[first+1 : last]
	if base == "" {
		return Cursor{}, false
	}
	return Cursor{Tier: vocab.Tier(tier), BaseForm: base, ID: id}, true
}

// DecodePtr is Decode returning nil for a missing or malformed cursor.
func DecodePtr(s string) *Cursor {
	c, ok := Decode(s)
	if !ok {
		return nil
	}
	return &c
}

// Compare orders a and b by tier, then base form by code point, then id.
func Compare(a, b Cursor) int {
	switch {
	case a.Tier != b.Tier:
		if a.Tier < b.Tier {
			return -1
		}
		return 1
	case a.BaseForm != b.BaseForm:
		// Byte order of UTF-8 equals code point order.
		return strings.Compare(a.BaseForm, b.BaseForm)
	case a.ID != b.ID:
		if a.ID < b.ID {
			return -1
		}
		return 1
	}
	return 0
}

// After reports whether w sorts strictly after c.
func (c Cursor) After(w vocab.Word) bool {
	return Compare(Of(w), c) > 0
}

// Predicate returns a SQL condition selecting rows strictly after c, with
// its arguments. Column names are those of the dictionary tables.
func Predicate(c Cursor) (string, []any) {
	const cond = `(tier > ? OR (tier = ? AND base_form > ?) OR (tier = ? AND base_form = ? AND id > ?))`
	return cond, []any{int(c.Tier), int(c.Tier), c.BaseForm, int(c.Tier), c.BaseForm, c.ID}
}

// OrderBy is the ORDER BY clause matching Compare.
const OrderBy = `ORDER BY tier ASC, base_form ASC, id ASC`

// ClampLimit bounds a requested page size to [1, MaxLimit]; zero or a
// negative value means DefaultLimit.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// ParseLimit parses a limit query parameter, falling back to DefaultLimit
// when it is missing or not a number.
func ParseLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return DefaultLimit
	}
	if n < 1 {
		return 1
	}
	return ClampLimit(n)
}

// Next returns the encoded cursor of the last row, or "" when rows is
// shorter than limit (end of data).
func Next(rows []vocab.Word, limit int) string {
	if len(rows) == 0 || len(rows) < limit {
		return ""
	}
	return Of(rows[len(rows)-1]).Encode()
}

// Page is one page of a listing.
type Page struct {
	Words      []vocab.Word
	NextCursor string
}

// Paginate applies the keyset order to an in-memory word list and returns
// the page after cursor (nil means from the start), optionally restricted
// to one tier.
func Paginate(words []vocab.Word, tier *vocab.Tier, cursor *Cursor, limit int) Page {
	limit = ClampLimit(limit)
	sorted := append([]vocab.Word(nil), words...)
	sort.Slice(sorted, func(i, j int) bool { return Compare(Of(sorted[i]), Of(sorted[j])) < 0 })

	var rows []vocab.Word
	for _, w := range sorted {
		if tier != nil && w.Tier != *tier {
			continue
		}
		if cursor != nil && !cursor.After(w) {
			continue
		}
		rows = append(rows, w)
		if len(rows) == limit {
			break
		}
	}
	return Page{Words: rows, NextCursor: Next(rows, limit)}
}
