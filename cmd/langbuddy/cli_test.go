package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/langbuddy/langbuddy/pkg/db"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>학교 이야기</title></head>
<body><article>
<h1>학교 이야기</h1>
<p>오늘 아침에 학교에서 친구들과 함께 도서관에 가서 책을 읽었습니다. 선생님께서 새로운 책을 추천해 주셨어요.</p>
<p>점심시간에는 운동장에서 축구를 했고, 오후에는 수학 수업을 들었습니다. 수업이 조금 어려웠지만 재미있었어요.</p>
<p>집에 돌아와서 가족과 함께 저녁을 먹고, 내일 학교에 가져갈 숙제를 모두 끝냈습니다. 정말 바쁜 하루였어요.</p>
</article></body></html>`

const vocabJSON = `[
  {"korean": "학교", "english": "school", "romanization": "hakgyo", "topik_level": 1},
  {"korean": "친구", "english": "friend", "romanization": "chingu", "topik_level": 1},
  {"korean": "가족", "english": "family", "romanization": "gajok", "topik_level": 1},
  {"korean": "도서관", "english": "library", "romanization": "doseogwan", "topik_level": 2},
  {"korean": "숙제", "english": "homework", "romanization": "sukje", "topik_level": 2},
  {"korean": "", "english": "broken", "topik_level": 1}
]`

// run executes one CLI invocation in-process and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("langbuddy %s failed: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestCLI_OfflineWorkflow(t *testing.T) {
	tmp := t.TempDir()
	t.Chdir(tmp)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	dictFile := filepath.Join(tmp, "topik.json")
	if err := os.WriteFile(dictFile, []byte(vocabJSON), 0o644); err != nil {
		t.Fatalf("failed to write vocabulary: %v", err)
	}
	dbPath := filepath.Join(tmp, "langbuddy.db")

	out := mustRun(t, "import-dict", dictFile, "--db", dbPath)
	if !strings.Contains(out, "Imported 5 words (1 skipped)") {
		t.Fatalf("unexpected import output:\n%s", out)
	}

	out = mustRun(t, "tier", "3", "--db", dbPath)
	if !strings.Contains(out, "Tier for local: 3") {
		t.Fatalf("unexpected tier output:\n%s", out)
	}

	out = mustRun(t, "add", srv.URL, "--db", dbPath)
	if !strings.Contains(out, "Added article 1: 학교 이야기") {
		t.Fatalf("unexpected add output:\n%s", out)
	}
	if strings.Contains(out, "recorded 0 vocabulary matches") {
		t.Fatalf("expected vocabulary matches, got:\n%s", out)
	}

	out = mustRun(t, "reanalyze", "--db", dbPath, "--workers", "2")
	if !strings.Contains(out, "Re-analyzed 1 articles (0 skipped)") {
		t.Fatalf("unexpected reanalyze output:\n%s", out)
	}

	out = mustRun(t, "wordbank", "--db", dbPath, "--tier", "1", "--limit", "2")
	if !strings.Contains(out, "가족") || !strings.Contains(out, "--cursor") {
		t.Fatalf("unexpected wordbank output:\n%s", out)
	}
	if strings.Contains(out, "도서관") {
		t.Fatalf("tier filter ignored:\n%s", out)
	}

	conn, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	var wordID int64
	err = conn.QueryRow(`SELECT id FROM dictionary_words WHERE base_form = ?`, "학교").Scan(&wordID)
	conn.Close()
	if err != nil {
		t.Fatalf("failed to look up word: %v", err)
	}

	out = mustRun(t, "quiz", fmt.Sprint(wordID), "--db", dbPath, "--article", "1")
	if !strings.Contains(out, fmt.Sprintf("Word %d mastery: 1", wordID)) {
		t.Fatalf("unexpected quiz output:\n%s", out)
	}

	// Another user cannot quiz against this article.
	if _, err := run(t, "quiz", fmt.Sprint(wordID), "--db", dbPath, "--article", "1", "--user", "someone"); err == nil {
		t.Fatal("expected quiz on a foreign article to fail")
	}
}

func TestCLI_AddFailure(t *testing.T) {
	tmp := t.TempDir()
	t.Chdir(tmp)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := run(t, "add", srv.URL, "--db", filepath.Join(tmp, "x.db"))
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected fetch failure, got %v", err)
	}
}

func TestCLI_ImportMissingDictionary(t *testing.T) {
	tmp := t.TempDir()
	t.Chdir(tmp)
	_, err := run(t, "import-dict", "--db", filepath.Join(tmp, "x.db"), "--dict", filepath.Join(tmp, "none.json"))
	if err == nil || !strings.Contains(err.Error(), "no download url") {
		t.Fatalf("expected missing dictionary error, got %v", err)
	}
}

func TestCLI_Version(t *testing.T) {
	t.Chdir(t.TempDir())
	out := mustRun(t, "version")
	if !strings.Contains(out, "langbuddy dev") {
		t.Fatalf("unexpected version output: %s", out)
	}
}
