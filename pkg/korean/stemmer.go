package korean

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// maxStripRounds caps how many suffixes can be peeled off a token.
	maxStripRounds = 2

	// minStemSyllables is the shortest stem accepted. Shorter remainders
	// are usually over-stripped roots.
	minStemSyllables = 2
)

// suffixes holds particles and common verb endings, longest first so that
// 이었다 is tried before a shorter suffix it happens to end with.
var suffixes = sortLongestFirst([]string{
	"이었다",
	"였다",
	"했다",
	"으로",
	"에서",
	"에게",
	"까지",
	"부터",
	"처럼",
	"은",
	"는",
	"이",
	"가",
	"을",
	"를",
	"에",
	"와",
	"과",
	"도",
	"만",
	"로",
	"의",
})

func sortLongestFirst(list []string) []string {
	out := append([]string(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}

// Suffixes returns a copy of the strip list in the order it is tried.
func Suffixes() []string {
	return append([]string(nil), suffixes...)
}

// MaxCandidates is an upper bound on len(DeriveCandidates(t)) for any t.
func MaxCandidates() int {
	n := len(suffixes)
	total, frontier := 1, 1
	for i := 0; i < maxStripRounds; i++ {
		frontier *= n
		total += frontier
	}
	return total
}

// DeriveCandidates returns the token followed by the stems reachable by
// stripping up to two suffixes, in discovery order: the token, then the
// first-round stems, then the second-round stems. A stem is kept only if it
// has not been produced before and is at least two Hangul syllables long.
//
// Suffixes are not filtered by word class, so a root that happens to end in
// a particle-shaped syllable can be over-stripped. Callers try candidates in
// order, which prefers the least-stemmed match.
func DeriveCandidates(token string) []string {
	out := []string{token}
	seen := map[string]bool{token: true}
	frontier := []string{token}

	for round := 0; round < maxStripRounds && len(frontier) > 0; round++ {
		var next []string
		for _, current := range frontier {
			for _, suffix := range suffixes {
				if !strings.HasSuffix(current, suffix) {
					continue
				}
				stem := strings.TrimSuffix(current, suffix)
				if seen[stem] || !isStem(stem) {
					continue
				}
				seen[stem] = true
				out = append(out, stem)
				next = append(next, stem)
			}
		}
		frontier = next
	}
	return out
}

func isStem(s string) bool {
	return IsHangul(s) && utf8.RuneCountInString(s) >= minStemSyllables
}
