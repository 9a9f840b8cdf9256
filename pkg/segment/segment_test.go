package segment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbuddy/langbuddy/pkg/vocab"
)

func testLookup() Lookup {
	return NewLookup([]vocab.Word{
		{ID: 1, BaseForm: "경제", Tier: 3},
		{ID: 2, BaseForm: "가족", Tier: 1},
		{ID: 3, BaseForm: "이야기", Tier: 2},
	})
}

func TestApplyHighlights(t *testing.T) {
	in := []Segment{
		NewText("경제를 배우고 "),
		NewText("가족과 이야기했다."),
		NewBreak(),
		NewText("hello"),
	}
	got := ApplyHighlights(in, testLookup())
	want := []Segment{
		NewWord("경제를", 1, 3),
		NewText(" 배우고 "),
		NewWord("가족과", 2, 1),
		NewText(" "),
		NewWord("이야기했다", 3, 2),
		NewText("."),
		NewBreak(),
		NewText("hello"),
	}
	assert.Equal(t, want, got)
}

func TestApplyHighlightsKeepsExistingWords(t *testing.T) {
	// A pre-tagged word is not re-resolved even if the lookup disagrees.
	in := []Segment{NewWord("경제", 42, 6), NewText("와 가족")}
	got := ApplyHighlights(in, testLookup())
	assert.Equal(t, []Segment{
		NewWord("경제", 42, 6),
		NewText("와 "),
		NewWord("가족", 2, 1),
	}, got)
}

func TestApplyHighlightsIdempotent(t *testing.T) {
	in := []Segment{NewText("경제를 배우고 가족과 이야기했다."), NewBreak(), NewText("경제 성장")}
	once := ApplyHighlights(in, testLookup())
	twice := ApplyHighlights(once, testLookup())
	assert.Equal(t, once, twice)
}

func TestApplyHighlightsEmptyLookup(t *testing.T) {
	in := []Segment{NewText("a"), NewText("b"), NewBreak(), NewWord("경제", 1, 3)}
	got := ApplyHighlights(in, nil)
	assert.Equal(t, []Segment{NewText("ab"), NewBreak(), NewWord("경제", 1, 3)}, got)
	// Input untouched.
	assert.Equal(t, "a", in[0].Text)
}

func TestApplyHighlightsNoAdjacentText(t *testing.T) {
	in := []Segment{
		NewText("사과 "), NewText("경제"), NewText(" 그리고 "), NewText("바나나"),
		NewBreak(), NewText(""), NewText("가족들"),
	}
	assertNoAdjacentText(t, ApplyHighlights(in, testLookup()))
}

func TestMerge(t *testing.T) {
	got := Merge([]Segment{NewText("a"), NewText("b"), NewWord("c", 1, 1), NewText("d"), NewText("e")})
	assert.Equal(t, []Segment{NewText("ab"), NewWord("c", 1, 1), NewText("de")}, got)
	assert.Empty(t, Merge(nil))
}

func TestFlatten(t *testing.T) {
	segs := []Segment{NewText("경제를"), NewWord("가족", 1, 1), NewBreak(), NewText("끝")}
	assert.Equal(t, "경제를 가족 \n 끝", Flatten(segs))
	assert.Equal(t, "", Flatten(nil))
}

func TestWordIDs(t *testing.T) {
	segs := []Segment{NewWord("a", 3, 1), NewText("x"), NewWord("b", 1, 1), NewWord("a", 3, 1)}
	assert.Equal(t, []int64{3, 1}, WordIDs(segs))
}

func TestFromParagraphs(t *testing.T) {
	got := FromParagraphs([]string{" 하나 ", "", "둘"})
	assert.Equal(t, []Segment{NewText("하나"), NewBreak(), NewText("둘")}, got)
}

func TestJSONRoundTrip(t *testing.T) {
	in := []Segment{NewText("안녕 "), NewWord("경제를", 12, 3), NewBreak()}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"type":"text","text":"안녕 "},{"type":"word","text":"경제를","wordId":12,"tier":3},{"type":"break"}]`,
		string(b))

	var out []Segment
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshalRejectsBadWords(t *testing.T) {
	cases := []string{
		`{"type":"word","text":"x","tier":3}`,
		`{"type":"word","text":"x","wordId":1,"tier":9}`,
		`{"type":"word","text":"x","wordId":1}`,
		`{"type":"image"}`,
	}
	for _, c := range cases {
		var s Segment
		assert.Error(t, json.Unmarshal([]byte(c), &s), c)
	}
}

func FuzzApplyHighlights(f *testing.F) {
	f.Add("경제를 배우고 가족과 이야기했다.")
	f.Add("")
	f.Add("abc 가족들과")
	f.Fuzz(func(t *testing.T, text string) {
		in := []Segment{NewText(text), NewBreak(), NewText(text)}
		got := ApplyHighlights(in, testLookup())
		assertNoAdjacentText(t, got)

		var before, after string
		for _, s := range in {
			before += s.Text
		}
		for _, s := range got {
			after += s.Text
		}
		if before != after {
			t.Fatalf("content changed: %q -> %q", before, after)
		}
	})
}

func assertNoAdjacentText(t *testing.T, segs []Segment) {
	t.Helper()
	for i := 1; i < len(segs); i++ {
		if segs[i].Kind == Text && segs[i-1].Kind == Text {
			t.Fatalf("adjacent text segments at %d: %q %q", i, segs[i-1].Text, segs[i].Text)
		}
	}
}
