package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/bagit"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteBag creates a bag zip at path containing the given payload entries,
// keyed by payload-relative name. A nil payload yields a minimal bag with a
// single export XML document.
func WriteBag(t testing.TB, path string, payload map[string][]byte) {
	t.Helper()

	if payload == nil {
		payload = map[string][]byte{
			"export.xml": []byte(`<?xml version="1.0"?><issue><article>ok</article></issue>`),
		}
	}
	files := make([]bagit.File, 0, len(payload))
	for name, data := range payload {
		files = append(files, bagit.File{Name: name, Data: data})
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := bagit.Create(path, files, map[string]string{"Source-Organization": "test"}, "sha1"); err != nil {
		t.Fatalf("create bag %s: %v", path, err)
	}
}
