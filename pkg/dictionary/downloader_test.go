package dictionary

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDictionary_LocalCache(t *testing.T) {
	path := writeTemp(t, "[]")

	// The file exists, so no request must be made.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected download request %s", r.URL)
	}))
	defer srv.Close()

	if err := EnsureDictionary(context.Background(), path, srv.URL+"/vocab.json"); err != nil {
		t.Fatalf("EnsureDictionary failed with local file: %v", err)
	}
}

func TestEnsureDictionary_NoURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	if err := EnsureDictionary(context.Background(), path, ""); err == nil {
		t.Fatalf("expected error without url")
	}
}

func gzipBytes(t *testing.T, b []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	zw.Close()
	return buf.Bytes()
}

func tarBytes(t *testing.T, name string, b []byte) []byte {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: "README", Mode: 0o644, Size: 2, Typeflag: tar.TypeReg}); err != nil {
		t.Fatalf("tar header: %v", err)
	}
	tw.Write([]byte("hi"))
	if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(b)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatalf("tar header: %v", err)
	}
	tw.Write(b)
	tw.Close()
	return buf.Bytes()
}

func TestEnsureDictionary_Download(t *testing.T) {
	payload := []byte(`[{"korean": "학교", "english": "school", "topik_level": 1}]`)
	files := map[string][]byte{
		"/vocab.json":    payload,
		"/vocab.json.gz": gzipBytes(t, payload),
		"/vocab.tgz":     gzipBytes(t, tarBytes(t, "dist/vocab.json", payload)),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(b)
	}))
	defer srv.Close()

	for name := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "vocab.json")
			if err := EnsureDictionary(context.Background(), path, srv.URL+name); err != nil {
				t.Fatalf("download: %v", err)
			}
			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("unexpected content %q", got)
			}
		})
	}

	path := filepath.Join(t.TempDir(), "vocab.json")
	if err := EnsureDictionary(context.Background(), path, srv.URL+"/missing.json"); err == nil {
		t.Fatalf("expected error for 404")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("failed download must not leave a file, stat err = %v", err)
	}
}
