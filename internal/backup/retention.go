package backup

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// artifact is one parsed backup filename.
type artifact struct {
	name  string
	stamp string // 2006-01-02T15-04-05
}

// retentionGroup keys backups sharing one backup type and calendar
// day. Within a group the most recent run is the primary; a run may
// write several formats under one timestamp, and all of them count as
// the primary together.
type retentionGroup struct {
	backupType string
	day        string // 2006-01-02
	files      []artifact
}

// Cleanup prunes the backup directory: within each (type, day) group
// every file not belonging to the most recent run is deleted; once a
// group's day has aged past the retention window the whole group goes,
// primary included. Deliberately coarse by day, and idempotent: a
// second pass with no new backups deletes nothing. Returns the number
// of files deleted.
func (e *Engine) Cleanup(now time.Time) (int, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	groups := make(map[string]*retentionGroup)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		backupType, stamp, ok := parseArtifactName(name)
		if !ok {
			continue
		}
		day := stamp[:10]
		key := backupType + "|" + day
		g, exists := groups[key]
		if !exists {
			g = &retentionGroup{backupType: backupType, day: day}
			groups[key] = g
		}
		g.files = append(g.files, artifact{name: name, stamp: stamp})
	}

	cutoff := now.AddDate(0, 0, -e.retentionDays)
	var deleted int
	for _, g := range groups {
		sort.Slice(g.files, func(i, j int) bool { return g.files[i].name < g.files[j].name })
		primaryStamp := g.files[len(g.files)-1].stamp

		day, err := time.ParseInLocation("2006-01-02", g.day, time.UTC)
		if err != nil {
			continue
		}
		expired := day.Before(cutoff)

		for _, f := range g.files {
			if !expired && f.stamp == primaryStamp {
				continue
			}
			if err := os.Remove(filepath.Join(e.dir, f.name)); err != nil {
				log.Printf("backup: retention delete %s failed: %v", f.name, err)
				continue
			}
			deleted++
		}
		if expired && len(g.files) > 0 {
			log.Printf("backup: expired group (%s, %s): deleted %d file(s)", g.backupType, g.day, len(g.files))
		}
	}
	return deleted, nil
}

// parseArtifactName splits {product}_{type}_{env}_{stamp}.{ext}[.gz]
// into its backup type and timestamp. Manifests and foreign files are
// skipped.
func parseArtifactName(name string) (backupType, stamp string, ok bool) {
	if !strings.HasPrefix(name, Product+"_") || strings.HasSuffix(name, ".meta.json") || strings.HasSuffix(name, ".tmp") {
		return "", "", false
	}
	parts := strings.SplitN(name, "_", 4)
	if len(parts) != 4 {
		return "", "", false
	}
	rest := parts[3]
	if len(rest) < len(timestampLayout) {
		return "", "", false
	}
	stamp = rest[:len(timestampLayout)]
	if _, err := time.Parse(timestampLayout, stamp); err != nil {
		return "", "", false
	}
	return parts[1], stamp, true
}

// StartRetentionWorker launches a background goroutine that prunes
// once at startup and then once per day, until stop is closed.
func (e *Engine) StartRetentionWorker(stop <-chan struct{}) {
	go func() {
		if n, err := e.Cleanup(time.Now().UTC()); err != nil {
			log.Printf("backup retention (startup): %v", err)
		} else if n > 0 {
			log.Printf("backup retention (startup): pruned %d file(s)", n)
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case t := <-ticker.C:
				if n, err := e.Cleanup(t.UTC()); err != nil {
					log.Printf("backup retention: %v", err)
				} else if n > 0 {
					log.Printf("backup retention: pruned %d file(s)", n)
				}
			}
		}
	}()
}
