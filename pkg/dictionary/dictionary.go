package dictionary

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/langbuddy/langbuddy/pkg/db"
	"github.com/langbuddy/langbuddy/pkg/korean"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

// VocabEntry matches one record of a graded vocabulary list file.
type VocabEntry struct {
	Korean       string `json:"korean"`
	English      string `json:"english"`
	Romanization string `json:"romanization"`
	Level        int    `json:"topik_level"`
}

// Entry converts the record to a dictionary row.
func (v VocabEntry) Entry() db.DictionaryEntry {
	return db.DictionaryEntry{
		BaseForm:     korean.Normalize(v.Korean),
		Tier:         vocab.Tier(v.Level),
		Meaning:      v.English,
		Romanization: v.Romanization,
	}
}

// LoadVocabulary reads a JSON vocabulary file, either an object wrapper
// {"words": [...]} or a bare array.
func LoadVocabulary(path string) ([]VocabEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeVocabulary(f)
}

// DecodeVocabulary parses the same formats as LoadVocabulary from r.
func DecodeVocabulary(r io.ReadSeeker) ([]VocabEntry, error) {
	var wrapped struct {
		Words []VocabEntry `json:"words"`
	}
	// Try parsing as full object wrapper first { "words": [...] }
	dec := json.NewDecoder(r)
	if err := dec.Decode(&wrapped); err == nil && len(wrapped.Words) > 0 {
		return wrapped.Words, nil
	}

	// Reset and try as array [...]
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var entries []VocabEntry
	dec = json.NewDecoder(r)
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary as object or array: %w", err)
	}
	return entries, nil
}
