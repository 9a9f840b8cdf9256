// Package adapt turns extracted source text into a segmented Korean
// document plus comprehension questions. The language model doing the
// rewriting lives outside this module; Remote talks to it over HTTP and
// Passthrough keeps the text as-is for offline use.
package adapt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/langbuddy/langbuddy/pkg/db"
	"github.com/langbuddy/langbuddy/pkg/extract"
	"github.com/langbuddy/langbuddy/pkg/segment"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

// MinQuestions is the number of comprehension questions an adaptation
// must carry.
const MinQuestions = 3

var ErrInvalidResponse = errors.New("invalid adaptation response")

// Request describes one article to adapt.
type Request struct {
	Title   string     `json:"title"`
	Content string     `json:"content"`
	Tier    vocab.Tier `json:"tier"`
	// ChallengeTier is the tier used for the small share of harder words.
	ChallengeTier vocab.Tier `json:"challengeTier"`
}

// NewRequest fills in the challenge tier, one above tier and capped at
// vocab.MaxTier.
func NewRequest(title, content string, tier vocab.Tier) Request {
	challenge := tier + 1
	if challenge > vocab.MaxTier {
		challenge = vocab.MaxTier
	}
	return Request{Title: title, Content: content, Tier: tier, ChallengeTier: challenge}
}

// Adaptation is the adapted document.
type Adaptation struct {
	Segments  []segment.Segment `json:"adaptedKorean"`
	Questions []db.Question     `json:"comprehensionQuestions"`
}

// Adapter rewrites an article for a learner.
type Adapter interface {
	Adapt(ctx context.Context, req Request) (Adaptation, error)
}

// AdapterFunc lets an ordinary function act as an Adapter.
type AdapterFunc func(ctx context.Context, req Request) (Adaptation, error)

func (f AdapterFunc) Adapt(ctx context.Context, req Request) (Adaptation, error) {
	return f(ctx, req)
}

// ParseResponse decodes and validates an adaptation service reply.
func ParseResponse(b []byte) (Adaptation, error) {
	var raw struct {
		Segments  *[]segment.Segment `json:"adaptedKorean"`
		Questions []db.Question      `json:"comprehensionQuestions"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Adaptation{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if raw.Segments == nil {
		return Adaptation{}, fmt.Errorf("%w: missing adaptedKorean array", ErrInvalidResponse)
	}
	a := Adaptation{Segments: *raw.Segments, Questions: raw.Questions}
	if err := Validate(a); err != nil {
		return Adaptation{}, err
	}
	return a, nil
}

// Validate checks question count and answer indexes.
func Validate(a Adaptation) error {
	if len(a.Questions) < MinQuestions {
		return fmt.Errorf("%w: need at least %d comprehension questions, got %d", ErrInvalidResponse, MinQuestions, len(a.Questions))
	}
	for i, q := range a.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("%w: question %d is empty", ErrInvalidResponse, i)
		}
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return fmt.Errorf("%w: question %d has answer index %d", ErrInvalidResponse, i, q.Correct)
		}
	}
	return nil
}

// Remote posts requests to an external adaptation service.
type Remote struct {
	URL    string
	Client *http.Client
}

func (r *Remote) Adapt(ctx context.Context, req Request) (Adaptation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Adaptation{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return Adaptation{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return Adaptation{}, fmt.Errorf("adapt: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Adaptation{}, fmt.Errorf("read adaptation: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Adaptation{}, fmt.Errorf("adapt: service returned %s", resp.Status)
	}
	return ParseResponse(b)
}

// Passthrough keeps the source text, one Text segment per paragraph, and
// produces no questions.
type Passthrough struct{}

func (Passthrough) Adapt(_ context.Context, req Request) (Adaptation, error) {
	return Adaptation{Segments: segment.FromParagraphs(extract.Paragraphs(req.Content))}, nil
}
