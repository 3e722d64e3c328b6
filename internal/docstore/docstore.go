// Package docstore persists whole JSON documents in single files.
//
// Reads are fail-soft: a missing, empty or unparsable file yields the
// caller's default. Writes replace the file atomically through a temp file
// in the same directory followed by rename, so concurrent readers observe
// either the old or the new document.
package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FilePerm is the mode of every document written by Replace.
const FilePerm = 0600

// Load decodes the document at path, returning def on any failure.
func Load[T any](path string, def T) T {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return def
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return def
	}
	return out
}

// Replace serializes v and atomically swaps it in at path. Text is
// written without HTML escaping.
func Replace(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data := buf.Bytes()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, FilePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return nil
}
