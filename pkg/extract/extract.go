// Package extract fetches web pages and pulls out their readable text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const (
	// MinContentLength is the shortest cleaned text, in characters, that
	// counts as an article.
	MinContentLength = 80
	// DefaultMaxBodyBytes limits how much HTML is read from a page.
	DefaultMaxBodyBytes = 10 * 1024 * 1024
	// minParagraphLength filters navigation fragments in the fallback path.
	minParagraphLength = 35
)

var (
	ErrInvalidURL = errors.New("invalid URL")
	ErrNoContent  = errors.New("could not extract article content")
)

// Content is the readable part of a page.
type Content struct {
	URL      string
	Title    string
	Text     string
	Byline   string
	SiteName string
}

// NormalizeURL trims surrounding whitespace and quotes and accepts an
// http(s) URL either as given or in percent-encoded form.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(raw), `"'`)
	if isHTTPURL(trimmed) {
		return trimmed, nil
	}
	if decoded, err := url.PathUnescape(trimmed); err == nil && isHTTPURL(decoded) {
		return decoded, nil
	}
	return "", fmt.Errorf("%q: %w", raw, ErrInvalidURL)
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetcher downloads pages and extracts their content.
type Fetcher struct {
	Client       *http.Client
	MaxBodyBytes int64
	// Logger receives extraction diagnostics; nil means silent.
	Logger *log.Logger
}

// NewFetcher returns a Fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		Client:       &http.Client{Timeout: timeout},
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Fetch downloads rawURL and extracts its readable content.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Content, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return Content{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Content{}, fmt.Errorf("create request: %w", err)
	}
	setBrowserHeaders(req)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Content{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Content{}, fmt.Errorf("fetch %s: got status code %d", target, resp.StatusCode)
	}

	maxBody := f.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	if resp.ContentLength > maxBody {
		return Content{}, fmt.Errorf("content-length %d exceeds limit of %d bytes", resp.ContentLength, maxBody)
	}
	// Read one byte past the limit to tell a full body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return Content{}, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > maxBody {
		return Content{}, fmt.Errorf("response body exceeded maximum size limit of %d bytes", maxBody)
	}

	pageURL, _ := url.Parse(target)
	c, err := f.extract(body, pageURL)
	if err != nil {
		return Content{}, err
	}
	c.URL = target
	return c, nil
}

// Create a request that looks like a regular browser to avoid being blocked.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ko;q=0.8")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// Extract pulls the readable content out of an HTML page.
func Extract(body []byte, pageURL *url.URL) (Content, error) {
	return (&Fetcher{}).extract(body, pageURL)
}

func (f *Fetcher) extract(body []byte, pageURL *url.URL) (Content, error) {
	body = SanitizeRuby(body)

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		text := Clean(article.TextContent)
		if utf8.RuneCountInString(text) >= MinContentLength {
			title := strings.TrimSpace(article.Title)
			if title == "" {
				title = "Untitled"
			}
			return Content{Title: title, Text: text, Byline: article.Byline, SiteName: article.SiteName}, nil
		}
		f.logf("readability returned %d characters, trying paragraph fallback", utf8.RuneCountInString(text))
	} else {
		f.logf("readability failed: %v, trying paragraph fallback", err)
	}
	return fallback(body)
}

func (f *Fetcher) logf(format string, args ...any) {
	if f.Logger != nil {
		f.Logger.Printf(format, args...)
	}
}

// fallback collects paragraph text directly when readability finds too
// little.
func fallback(body []byte) (Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Content{}, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	title := firstNonEmpty(
		doc.Find(`meta[property="og:title"]`).AttrOr("content", ""),
		doc.Find(`meta[name="twitter:title"]`).AttrOr("content", ""),
		doc.Find("title").First().Text(),
		"Untitled",
	)

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := collapseSpace(s.Text()); utf8.RuneCountInString(text) >= minParagraphLength {
			paragraphs = append(paragraphs, text)
		}
	})
	content := strings.Join(paragraphs, "\n\n")
	if content == "" {
		content = collapseSpace(doc.Find("body").Text())
	}
	content = Clean(content)
	if utf8.RuneCountInString(content) < MinContentLength {
		return Content{}, ErrNoContent
	}
	return Content{Title: collapseSpace(title), Text: content}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var (
	reSpace     = regexp.MustCompile(`\s+`)
	reSeparator = regexp.MustCompile(`\s*\|\s*`)
	reLines     = regexp.MustCompile(`\n+`)

	noiseLinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^live updates\b`),
		regexp.MustCompile(`(?i)^video\b`),
		regexp.MustCompile(`(?i)^ad feedback\b`),
		regexp.MustCompile(`(?i)^watch [\w\s']*live coverage\b`),
		regexp.MustCompile(`(?i)^source:\s*cnn\b`),
		regexp.MustCompile(`(?i)^(advertisement|sponsored content|cookie settings|privacy policy|terms of use|sign up|subscribe)\b`),
	}
	inlineNoisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bAd Feedback\b`),
	}
	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'",
	)
)

func collapseSpace(s string) string {
	return strings.TrimSpace(reSpace.ReplaceAllString(entityReplacer.Replace(s), " "))
}

func isNoiseLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	for _, p := range noiseLinePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// Clean splits extracted text into lines, drops boilerplate lines such as
// advertisements and subscription prompts, and joins what is left with
// blank lines.
func Clean(text string) string {
	text = entityReplacer.Replace(text)
	text = strings.ReplaceAll(text, "•", "\n")
	text = reSeparator.ReplaceAllString(text, "\n")

	var lines []string
	for _, line := range reLines.Split(text, -1) {
		for _, p := range inlineNoisePatterns {
			line = p.ReplaceAllString(line, "")
		}
		line = strings.TrimSpace(reSpace.ReplaceAllString(line, " "))
		if isNoiseLine(line) {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n\n"))
}

// Paragraphs splits text on blank lines, dropping empty paragraphs.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby annotations (<rt>, <rp>) so readability does
// not duplicate glossed words, e.g. hanja with a hangul reading.
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, []byte{})
	cleaned = reRP.ReplaceAll(cleaned, []byte{})
	return cleaned
}
