package dictionary

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/langbuddy/langbuddy/pkg/db"
)

// DefaultBatchSize is the number of rows written per transaction.
const DefaultBatchSize = 500

// Importer loads vocabulary entries into the reference dictionary.
type Importer struct {
	conn      *sql.DB
	BatchSize int
	// Logger receives progress lines; nil means silent.
	Logger *log.Logger
	// OnImported is called after a successful import so caches can drop
	// stale snapshots.
	OnImported func()
}

// NewImporter creates an importer writing to conn.
func NewImporter(conn *sql.DB) *Importer {
	return &Importer{conn: conn, BatchSize: DefaultBatchSize}
}

// Import upserts entries in batches, one transaction per batch. Entries
// without a base form or with an out-of-range level are skipped and
// counted separately.
func (im *Importer) Import(ctx context.Context, entries []VocabEntry) (imported, skipped int, err error) {
	batchSize := im.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	rows := make([]db.DictionaryEntry, 0, len(entries))
	for _, v := range entries {
		e := v.Entry()
		if e.BaseForm == "" || !e.Tier.Valid() {
			skipped++
			if im.Logger != nil {
				im.Logger.Printf("skipping vocabulary entry %q (level %d)", v.Korean, v.Level)
			}
			continue
		}
		rows = append(rows, e)
	}

	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		var n int
		err := db.WithTx(ctx, im.conn, func(tx *sql.Tx) error {
			var err error
			n, err = db.UpsertDictionaryWords(ctx, tx, rows[i:end])
			return err
		})
		if err != nil {
			return imported, skipped, fmt.Errorf("import batch at %d: %w", i, err)
		}
		imported += n
		if im.Logger != nil {
			im.Logger.Printf("Inserted %d / %d", imported, len(rows))
		}
	}
	if im.OnImported != nil {
		im.OnImported()
	}
	return imported, skipped, nil
}
