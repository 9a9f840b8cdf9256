// Package selector derives reproducible orderings and offsets from string
// seeds. Nothing here holds random state: the same seed and keys always give
// the same result, in any process.
package selector

import (
	"fmt"
	"sort"
	"unicode/utf16"
)

const (
	// Windows is the number of distinct distractor pages per partition.
	Windows = 5
	// PageSize is the number of rows in one distractor page.
	PageSize = 50
	// DistractorCount is the number of wrong answers offered per quiz.
	DistractorCount = 3
)

// Hash is a 32-bit multiply-by-31 rolling hash over the UTF-16 code units
// of s, wrapping on overflow.
func Hash(s string) uint32 {
	var h uint32
	for _, u := range utf16.Encode([]rune(s)) {
		h = h*31 + uint32(u)
	}
	return h
}

// Rank is the sort key of key under seed.
func Rank(seed, key string) uint32 {
	return Hash(seed + ":" + key)
}

// Shuffle returns a copy of items ordered by Rank(seed, key(item)). Items
// with equal rank keep their input order.
func Shuffle[T any](items []T, seed string, key func(T) string) []T {
	type ranked struct {
		item T
		rank uint32
	}
	rs := make([]ranked, len(items))
	for i, it := range items {
		rs[i] = ranked{item: it, rank: Rank(seed, key(it))}
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].rank < rs[j].rank })

	out := make([]T, len(rs))
	for i, r := range rs {
		out[i] = r.item
	}
	return out
}

// ShuffleStrings is Shuffle keyed by the strings themselves.
func ShuffleStrings(items []string, seed string) []string {
	return Shuffle(items, seed, func(s string) string { return s })
}

// PageOffset picks one of windows pages of pageSize rows for seed and
// returns its row offset. Non-positive arguments fall back to Windows and
// PageSize.
func PageOffset(seed string, windows, pageSize int) int {
	if windows <= 0 {
		windows = Windows
	}
	if pageSize <= 0 {
		pageSize = PageSize
	}
	return int(Hash(seed)%uint32(windows)) * pageSize
}

// PartitionSeed is the seed used for an article's distractor page in a tier.
func PartitionSeed(articleID int64, tier int) string {
	return fmt.Sprintf("%d:%d", articleID, tier)
}

// WordSeed is the seed used to order distractors for one word of an article.
func WordSeed(articleID, wordID int64) string {
	return fmt.Sprintf("%d:%d", articleID, wordID)
}

// Distractors picks n wrong answers for correct out of pool. Blank entries
// and entries equal to correct are dropped, duplicates are collapsed, and
// the rest is ordered by seed. When fewer than n remain the result is
// padded with pad.
func Distractors(pool []string, correct, seed string, n int, pad string) []string {
	seen := make(map[string]bool, len(pool))
	var candidates []string
	for _, p := range pool {
		if p == "" || p == correct || seen[p] {
			continue
		}
		seen[p] = true
		candidates = append(candidates, p)
	}
	out := ShuffleStrings(candidates, seed)
	if len(out) > n {
		out = out[:n]
	}
	for len(out) < n {
		out = append(out, pad)
	}
	return out
}

// Choices orders the correct answer and its distractors for display. The
// position of the correct answer depends only on seed and the answers.
func Choices(correct string, distractors []string, seed string) []string {
	all := make([]string, 0, len(distractors)+1)
	all = append(all, correct)
	all = append(all, distractors...)
	return ShuffleStrings(all, seed)
}
