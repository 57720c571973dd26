// Package bagit implements enough of the BagIt specification to create,
// read, and verify the zip-serialized bags this client exchanges with
// journals and the preservation network. Payload files live under
// data/; checksums are recorded in manifest-<algorithm>.txt and verified
// only on explicit request. Fetch files and holey bags are not
// supported, and tag ordering in bag-info.txt is not preserved.
package bagit

import (
	"archive/zip"
	"bufio"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Version is the BagIt specification version written to bagit.txt.
const Version = "0.97"

// NewHash returns the hash implementation for a manifest algorithm.
func NewHash(algorithm string) (hash.Hash, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algorithm)
	}
}

// Bag is a read-only view over a zip-serialized bag.
type Bag struct {
	// Path of the zip file the bag was read from.
	Path string
	// Algorithm of the manifest present in the bag (md5, sha1, sha256).
	Algorithm string
	// Manifest maps payload names (including the data/ prefix) to their
	// expected hex checksums, lower-case.
	Manifest map[string]string
	// Tags holds bag-info.txt entries.
	Tags map[string]string

	reader *zip.ReadCloser
}

// Read opens a bag and parses its control files. Close releases the
// underlying zip reader.
func Read(path string) (*Bag, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open bag %s: %w", path, err)
	}

	bag := &Bag{
		Path:     path,
		Manifest: make(map[string]string),
		Tags:     make(map[string]string),
		reader:   reader,
	}

	sawDeclaration := false
	for _, entry := range reader.File {
		name := entry.Name
		switch {
		case name == "bagit.txt":
			sawDeclaration = true
		case strings.HasPrefix(name, "manifest-") && strings.HasSuffix(name, ".txt"):
			algorithm := strings.TrimSuffix(strings.TrimPrefix(name, "manifest-"), ".txt")
			if bag.Algorithm != "" {
				// Multiple manifests: prefer the strongest we support.
				if manifestRank(algorithm) <= manifestRank(bag.Algorithm) {
					continue
				}
				bag.Manifest = make(map[string]string)
			}
			bag.Algorithm = algorithm
			if err := bag.parseManifest(entry); err != nil {
				_ = reader.Close()
				return nil, err
			}
		case name == "bag-info.txt":
			if err := bag.parseTags(entry); err != nil {
				_ = reader.Close()
				return nil, err
			}
		}
	}

	if !sawDeclaration {
		_ = reader.Close()
		return nil, fmt.Errorf("bag %s: missing bagit.txt declaration", path)
	}
	if bag.Algorithm == "" {
		_ = reader.Close()
		return nil, fmt.Errorf("bag %s: no manifest file", path)
	}
	if _, err := NewHash(bag.Algorithm); err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("bag %s: %w", path, err)
	}
	return bag, nil
}

// Close releases the zip reader.
func (b *Bag) Close() error {
	if b == nil || b.reader == nil {
		return nil
	}
	return b.reader.Close()
}

// PayloadFiles returns the payload entry names sorted, data/ prefix
// included.
func (b *Bag) PayloadFiles() []string {
	var names []string
	for _, entry := range b.reader.File {
		if strings.HasPrefix(entry.Name, "data/") && !strings.HasSuffix(entry.Name, "/") {
			names = append(names, entry.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Open returns a reader over one entry by name.
func (b *Bag) Open(name string) (io.ReadCloser, error) {
	for _, entry := range b.reader.File {
		if entry.Name == name {
			return entry.Open()
		}
	}
	return nil, fmt.Errorf("bag %s: no entry %s", b.Path, name)
}

// Verify recomputes every payload checksum against the manifest and
// checks that manifest and payload agree in both directions.
func (b *Bag) Verify() error {
	payload := make(map[string]bool)
	for _, name := range b.PayloadFiles() {
		payload[name] = true
		expected, listed := b.Manifest[name]
		if !listed {
			return fmt.Errorf("bag %s: payload file %s missing from manifest", b.Path, name)
		}
		actual, err := b.checksumEntry(name)
		if err != nil {
			return err
		}
		if !strings.EqualFold(actual, expected) {
			return fmt.Errorf("bag %s: checksum mismatch for %s: manifest %s, computed %s", b.Path, name, expected, actual)
		}
	}
	for name := range b.Manifest {
		if !payload[name] {
			return fmt.Errorf("bag %s: manifest lists missing file %s", b.Path, name)
		}
	}
	return nil
}

func (b *Bag) checksumEntry(name string) (string, error) {
	rc, err := b.Open(name)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	hasher, err := NewHash(b.Algorithm)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(hasher, rc); err != nil {
		return "", fmt.Errorf("bag %s: read %s: %w", b.Path, name, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (b *Bag) parseManifest(entry *zip.File) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("bag %s: open %s: %w", b.Path, entry.Name, err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return fmt.Errorf("bag %s: malformed manifest line %q", b.Path, line)
		}
		checksum := strings.ToLower(fields[0])
		name := strings.Join(fields[1:], " ")
		b.Manifest[name] = checksum
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("bag %s: read manifest: %w", b.Path, err)
	}
	return nil
}

func (b *Bag) parseTags(entry *zip.File) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("bag %s: open bag-info.txt: %w", b.Path, err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		b.Tags[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("bag %s: read bag-info.txt: %w", b.Path, err)
	}
	return nil
}

func manifestRank(algorithm string) int {
	switch strings.ToLower(algorithm) {
	case "md5":
		return 1
	case "sha1":
		return 2
	case "sha256":
		return 3
	default:
		return 0
	}
}

// File describes one payload entry to include when creating a bag.
// Either Source (a file on disk) or Data must be set.
type File struct {
	// Name relative to the payload root, without the data/ prefix.
	Name   string
	Source string
	Data   []byte
}

// Create writes a new bag as a zip at path, computing checksums with the
// given algorithm and recording tags in bag-info.txt. The zip is written
// to a temporary sibling and renamed into place.
func Create(path string, files []File, tags map[string]string, algorithm string) error {
	if _, err := NewHash(algorithm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp bag: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := writeBag(tmp, files, tags, algorithm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp bag: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename bag into place: %w", err)
	}
	return nil
}

func writeBag(w io.Writer, files []File, tags map[string]string, algorithm string) error {
	zw := zip.NewWriter(w)

	declaration := fmt.Sprintf("BagIt-Version: %s\nTag-File-Character-Encoding: UTF-8\n", Version)
	if err := writeEntry(zw, "bagit.txt", strings.NewReader(declaration)); err != nil {
		return err
	}

	manifest := make(map[string]string, len(files))
	for _, file := range files {
		name := "data/" + strings.TrimPrefix(file.Name, "/")
		checksum, err := writePayload(zw, name, file, algorithm)
		if err != nil {
			return err
		}
		manifest[name] = checksum
	}

	names := make([]string, 0, len(manifest))
	for name := range manifest {
		names = append(names, name)
	}
	sort.Strings(names)
	var manifestBody strings.Builder
	for _, name := range names {
		fmt.Fprintf(&manifestBody, "%s %s\n", manifest[name], name)
	}
	if err := writeEntry(zw, "manifest-"+strings.ToLower(algorithm)+".txt", strings.NewReader(manifestBody.String())); err != nil {
		return err
	}

	if len(tags) > 0 {
		keys := make([]string, 0, len(tags))
		for key := range tags {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var tagBody strings.Builder
		for _, key := range keys {
			fmt.Fprintf(&tagBody, "%s: %s\n", key, tags[key])
		}
		if err := writeEntry(zw, "bag-info.txt", strings.NewReader(tagBody.String())); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize bag zip: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, r io.Reader) error {
	entry, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create bag entry %s: %w", name, err)
	}
	if _, err := io.Copy(entry, r); err != nil {
		return fmt.Errorf("write bag entry %s: %w", name, err)
	}
	return nil
}

func writePayload(zw *zip.Writer, name string, file File, algorithm string) (string, error) {
	hasher, err := NewHash(algorithm)
	if err != nil {
		return "", err
	}

	var source io.Reader
	if file.Source != "" {
		f, err := os.Open(file.Source)
		if err != nil {
			return "", fmt.Errorf("open payload source %s: %w", file.Source, err)
		}
		defer f.Close()
		source = f
	} else {
		source = strings.NewReader(string(file.Data))
	}

	entry, err := zw.Create(name)
	if err != nil {
		return "", fmt.Errorf("create bag entry %s: %w", name, err)
	}
	if _, err := io.Copy(io.MultiWriter(entry, hasher), source); err != nil {
		return "", fmt.Errorf("write bag entry %s: %w", name, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
