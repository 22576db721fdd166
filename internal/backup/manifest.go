package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Integrity failures are surfaced to the operator, never silently
// repaired.
var (
	ErrManifestMissing  = errors.New("backup manifest missing")
	ErrChecksumMismatch = errors.New("backup checksum mismatch")
)

// FileRecord describes one artifact in a manifest. The checksum is
// always computed over the final on-disk bytes, post-compression.
type FileRecord struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Checksum string    `json:"checksum"`
	Created  time.Time `json:"created"`
}

// Manifest is the sidecar metadata written alongside every backup run.
type Manifest struct {
	Timestamp   time.Time    `json:"timestamp"`
	Environment string       `json:"environment"`
	Database    string       `json:"database"`
	Files       []FileRecord `json:"files"`
}

func (e *Engine) writeManifest(now time.Time, files []FileRecord) (string, error) {
	m := Manifest{
		Timestamp:   now,
		Environment: e.environment,
		Database:    e.database,
		Files:       files,
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("backup_%s.meta.json", now.Format(timestampLayout))
	path := filepath.Join(e.dir, name)
	if err := writeFileAtomic(path, data, false); err != nil {
		return "", err
	}
	return path, nil
}

// LoadManifest reads a sidecar manifest. A missing file maps to
// ErrManifestMissing.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestMissing, path)
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Verify recomputes every checksum named by the manifest against the
// bytes on disk. The first mismatch or missing artifact is returned as
// an integrity error.
func Verify(manifestPath string) error {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	for _, f := range m.Files {
		sum, err := ChecksumFile(f.Path)
		if err != nil {
			return fmt.Errorf("verify %s: %w", f.Name, err)
		}
		if sum != f.Checksum {
			return fmt.Errorf("%w: %s (manifest %s, disk %s)", ErrChecksumMismatch, f.Name, f.Checksum, sum)
		}
	}
	return nil
}
