// Package backup implements full-database export with compression,
// checksum manifests, and retention-based pruning.
package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product prefixes every artifact filename.
const Product = "contactops"

// timestampLayout is ISO8601 with colons replaced by dashes so the
// value is filesystem-safe on every platform.
const timestampLayout = "2006-01-02T15-04-05"

// Backup types.
const (
	TypeFull        = "full"
	TypeIncremental = "incremental"
)

// Formats.
const (
	FormatSQL  = "sql"
	FormatJSON = "json"
)

// Source is the query-execution interface the engine depends on.
// *db.Catalog satisfies it.
type Source interface {
	Tables() []string
	TableDDL(ctx context.Context, table string) (string, error)
	Rows(ctx context.Context, table string) ([]map[string]interface{}, error)
}

// Engine writes backup artifacts and prunes old ones.
type Engine struct {
	src           Source
	dir           string
	environment   string
	database      string
	compress      bool
	retentionDays int
}

// Config wires an Engine.
type Config struct {
	Dir           string
	Environment   string
	Database      string
	Compress      bool
	RetentionDays int
}

func New(src Source, cfg Config) *Engine {
	return &Engine{
		src:           src,
		dir:           cfg.Dir,
		environment:   cfg.Environment,
		database:      cfg.Database,
		compress:      cfg.Compress,
		retentionDays: cfg.RetentionDays,
	}
}

// Options controls one backup run.
type Options struct {
	// Type tags the run: full (default) or incremental.
	Type string

	// Formats selects artifact formats; empty means both sql and json.
	Formats []string

	// SkipCleanup skips retention pruning after the run.
	SkipCleanup bool
}

// Summary reports one completed run.
type Summary struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Files        []FileRecord  `json:"files"`
	Failed       []string      `json:"failed,omitempty"`
	TotalBytes   int64         `json:"total_bytes"`
	Duration     time.Duration `json:"duration_ms"`
	ManifestPath string        `json:"manifest_path"`
	PrunedFiles  int           `json:"pruned_files"`
}

// CreateBackup serializes the fixed table list into one artifact per
// requested format, writes the sidecar manifest, and unless skipped
// runs retention pruning. A single format failure is captured and does
// not abort the other formats; the run errors only when every format
// fails.
func (e *Engine) CreateBackup(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()

	if opts.Type == "" {
		opts.Type = TypeFull
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{FormatSQL, FormatJSON}
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	now := time.Now().UTC()
	stamp := now.Format(timestampLayout)
	summary := &Summary{ID: uuid.NewString(), Type: opts.Type}

	for _, format := range formats {
		rec, err := e.writeArtifact(ctx, format, opts.Type, stamp, now)
		if err != nil {
			log.Printf("backup: %s export failed: %v", format, err)
			summary.Failed = append(summary.Failed, fmt.Sprintf("%s: %v", format, err))
			continue
		}
		summary.Files = append(summary.Files, *rec)
		summary.TotalBytes += rec.Size
	}

	if len(summary.Files) == 0 {
		return nil, fmt.Errorf("backup run %s produced no artifacts: %s", summary.ID, strings.Join(summary.Failed, "; "))
	}

	manifestPath, err := e.writeManifest(now, summary.Files)
	if err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	summary.ManifestPath = manifestPath

	if !opts.SkipCleanup {
		pruned, err := e.Cleanup(time.Now().UTC())
		if err != nil {
			log.Printf("backup: retention cleanup failed: %v", err)
		}
		summary.PrunedFiles = pruned
	}

	summary.Duration = time.Since(start)
	log.Printf("backup %s complete: %d file(s), %d bytes in %s", summary.ID, len(summary.Files), summary.TotalBytes, summary.Duration)
	return summary, nil
}

// writeArtifact serializes one format and writes it to its final path
// via a temp file and rename, so a crash never leaves a partially
// written artifact under the final name. The checksum is computed over
// the final on-disk bytes, post-compression.
func (e *Engine) writeArtifact(ctx context.Context, format, backupType, stamp string, created time.Time) (*FileRecord, error) {
	var (
		content []byte
		err     error
	)
	switch format {
	case FormatSQL:
		content, err = e.exportSQL(ctx, created)
	case FormatJSON:
		content, err = e.exportJSON(ctx, created)
	default:
		return nil, fmt.Errorf("unknown backup format %q", format)
	}
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s_%s_%s_%s.%s", Product, backupType, e.environment, stamp, format)
	if e.compress {
		name += ".gz"
	}
	finalPath := filepath.Join(e.dir, name)

	if err := writeFileAtomic(finalPath, content, e.compress); err != nil {
		return nil, err
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, err
	}
	sum, err := ChecksumFile(finalPath)
	if err != nil {
		return nil, err
	}

	return &FileRecord{
		Name:     name,
		Path:     finalPath,
		Size:     info.Size(),
		Checksum: sum,
		Created:  created,
	}, nil
}

func writeFileAtomic(finalPath string, content []byte, compress bool) error {
	tmp := finalPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if _, err := w.Write(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, finalPath)
}

// ChecksumFile returns the hex sha256 digest of a file's bytes.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumBytes returns the hex sha256 digest of a byte slice.
func ChecksumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
