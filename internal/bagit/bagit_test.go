package bagit_test

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bindery/internal/bagit"
)

func createBag(t *testing.T, payload map[string][]byte, tags map[string]string, algorithm string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bag.zip")
	files := make([]bagit.File, 0, len(payload))
	for name, data := range payload {
		files = append(files, bagit.File{Name: name, Data: data})
	}
	if err := bagit.Create(path, files, tags, algorithm); err != nil {
		t.Fatalf("bagit.Create: %v", err)
	}
	return path
}

func TestCreateAndReadRoundTrip(t *testing.T) {
	path := createBag(t, map[string][]byte{
		"export.xml":     []byte("<issue/>"),
		"media/logo.png": []byte{0x89, 0x50, 0x4e, 0x47},
	}, map[string]string{"Source-Organization": "Journal of Tests"}, "sha1")

	bag, err := bagit.Read(path)
	if err != nil {
		t.Fatalf("bagit.Read: %v", err)
	}
	defer bag.Close()

	if bag.Algorithm != "sha1" {
		t.Fatalf("algorithm mismatch: %s", bag.Algorithm)
	}
	payload := bag.PayloadFiles()
	if len(payload) != 2 {
		t.Fatalf("expected 2 payload files, got %v", payload)
	}
	if payload[0] != "data/export.xml" && payload[1] != "data/export.xml" {
		t.Fatalf("data/export.xml missing from payload: %v", payload)
	}
	if bag.Tags["Source-Organization"] != "Journal of Tests" {
		t.Fatalf("tag mismatch: %v", bag.Tags)
	}

	rc, err := bag.Open("data/export.xml")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if string(data) != "<issue/>" {
		t.Fatalf("entry content mismatch: %q", data)
	}

	if err := bag.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	path := createBag(t, map[string][]byte{"export.xml": []byte("<issue/>")}, nil, "sha1")

	// Rewrite the zip with a tampered payload entry but the original
	// manifest.
	src, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	tampered := filepath.Join(t.TempDir(), "tampered.zip")
	out, err := os.Create(tampered)
	if err != nil {
		t.Fatalf("create tampered zip: %v", err)
	}
	zw := zip.NewWriter(out)
	for _, entry := range src.File {
		w, err := zw.Create(entry.Name)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if entry.Name == "data/export.xml" {
			if _, err := w.Write([]byte("<tampered/>")); err != nil {
				t.Fatalf("write tampered entry: %v", err)
			}
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		if _, err := io.Copy(w, rc); err != nil {
			t.Fatalf("copy entry: %v", err)
		}
		rc.Close()
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	src.Close()

	bag, err := bagit.Read(tampered)
	if err != nil {
		t.Fatalf("bagit.Read: %v", err)
	}
	defer bag.Close()
	if err := bag.Verify(); err == nil {
		t.Fatal("expected checksum mismatch for tampered payload")
	}
}

func TestReadRejectsZipWithoutBagDeclaration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.zip")
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	w, err := zw.Create("data/export.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("<issue/>")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := bagit.Read(path); err == nil {
		t.Fatal("expected error for zip without bagit.txt")
	}
}

func TestCreateRejectsUnknownAlgorithm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bag.zip")
	err := bagit.Create(path, []bagit.File{{Name: "export.xml", Data: []byte("<issue/>")}}, nil, "crc32")
	if err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("failed create must not leave a bag behind")
	}
}

func TestCreateFromSourceFiles(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "export.xml")
	if err := os.WriteFile(source, []byte("<issue/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "bag.zip")
	err := bagit.Create(path, []bagit.File{{Name: "export.xml", Source: source}}, nil, "sha256")
	if err != nil {
		t.Fatalf("bagit.Create: %v", err)
	}

	bag, err := bagit.Read(path)
	if err != nil {
		t.Fatalf("bagit.Read: %v", err)
	}
	defer bag.Close()
	if bag.Algorithm != "sha256" {
		t.Fatalf("algorithm mismatch: %s", bag.Algorithm)
	}
	if err := bag.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestManifestChecksumsAreLowerCaseHex(t *testing.T) {
	path := createBag(t, map[string][]byte{"export.xml": []byte("<issue/>")}, nil, "md5")

	bag, err := bagit.Read(path)
	if err != nil {
		t.Fatalf("bagit.Read: %v", err)
	}
	defer bag.Close()
	sum, ok := bag.Manifest["data/export.xml"]
	if !ok {
		t.Fatalf("manifest missing payload entry: %v", bag.Manifest)
	}
	if sum != strings.ToLower(sum) {
		t.Fatalf("manifest checksum should be lower-case hex: %s", sum)
	}
	if len(sum) != 32 {
		t.Fatalf("md5 digest should be 32 hex chars, got %d", len(sum))
	}
}
