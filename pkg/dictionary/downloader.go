package dictionary

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnsureDictionary checks if the vocabulary file exists at path. If not, it
// downloads it from url, decompressing .gz and .tgz archives.
func EnsureDictionary(ctx context.Context, path, url string) error {
	if _, err := os.Stat(path); err == nil {
		// File exists
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if url == "" {
		return fmt.Errorf("vocabulary file %s not found and no download url configured", path)
	}

	fmt.Printf("Vocabulary not found at %s. Downloading from %s...\n", path, url)
	return download(ctx, url, path)
}

func download(ctx context.Context, url, destPath string) error {
	client := &http.Client{Timeout: 60 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "langbuddy-cli")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	// Write next to the destination and rename so a failed download never
	// leaves a truncated file behind.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".vocab-*.json")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := extract(url, resp.Body, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destPath)
}

func extract(url string, body io.Reader, out io.Writer) error {
	name := strings.ToLower(url)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch {
	case strings.HasSuffix(name, ".tgz"), strings.HasSuffix(name, ".tar.gz"):
		gzReader, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		return extractTarJSON(gzReader, out)
	case strings.HasSuffix(name, ".gz"):
		gzReader, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		if _, err := io.Copy(out, gzReader); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
		return nil
	default:
		if _, err := io.Copy(out, body); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
		return nil
	}
}

func extractTarJSON(r io.Reader, out io.Writer) error {
	tarReader := tar.NewReader(r)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading tar archive: %w", err)
		}
		if header.Typeflag == tar.TypeReg && strings.HasSuffix(header.Name, ".json") {
			if _, err := io.Copy(out, tarReader); err != nil {
				return fmt.Errorf("failed to write to file: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("no json file found in downloaded archive")
}
