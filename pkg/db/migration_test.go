package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func tableColumns(t *testing.T, dbConn *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := dbConn.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("pragmas: %v", err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		if err := rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk); err != nil {
			t.Fatalf("scan col: %v", err)
		}
		cols[colName] = true
	}
	return cols
}

// TestInitDBCreatesSchema verifies a fresh DB gets every table and the
// columns the store relies on.
func TestInitDBCreatesSchema(t *testing.T) {
	dbConn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(1)

	if err := InitDB(dbConn); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}

	for _, table := range []string{"dictionary_words", "custom_words", "user_settings", "user_word_mastery", "articles", "article_word_matches"} {
		var name string
		if err := dbConn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}

	cols := tableColumns(t, dbConn, "articles")
	for _, c := range []string{"segments", "tier_at_time", "word_quiz_score", "last_analyzed_at"} {
		if !cols[c] {
			t.Fatalf("expected %s in articles, got %v", c, cols)
		}
	}
	cols = tableColumns(t, dbConn, "article_word_matches")
	if !cols["dictionary_word_id"] || !cols["custom_word_id"] {
		t.Fatalf("expected dictionary_word_id and custom_word_id in article_word_matches, got %v", cols)
	}
}

func TestInitDBIsRepeatable(t *testing.T) {
	dbConn, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dbConn.Close()
	if err := InitDB(dbConn); err != nil {
		t.Fatalf("second InitDB failed: %v", err)
	}
}

func TestDSNOptions(t *testing.T) {
	cases := map[string]string{
		":memory:":          "?_foreign_keys=on",
		"data.db":           "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL",
		"file:x.db?cache=1": "&_foreign_keys=on",
	}
	for path, want := range cases {
		if got := dsnOptions(path); got != want {
			t.Fatalf("dsnOptions(%q) = %q, want %q", path, got, want)
		}
	}
}
