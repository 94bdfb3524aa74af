package schema

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// backupPrefix names every archive this engine writes.
const backupPrefix = "data_backup_"

// CreateBackup writes a timestamped tar.gz archive of the whole data dir
// into the backup dir and returns its path. An empty archive is produced
// when the data dir does not exist yet.
func (e *Engine) CreateBackup(name string) (string, error) {
	if err := os.MkdirAll(e.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("schema: create backup dir: %w", err)
	}
	stamp := time.Now().Format("20060102_150405")
	path := filepath.Join(e.backupDir, fmt.Sprintf("%s%s_%s.tar.gz", backupPrefix, name, stamp))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("schema: create backup: %w", err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = e.archiveDataDir(tw)
	if cerr := tw.Close(); err == nil {
		err = cerr
	}
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("schema: write backup: %w", err)
	}
	return path, nil
}

func (e *Engine) archiveDataDir(tw *tar.Writer) error {
	if _, err := os.Stat(e.dataDir); os.IsNotExist(err) {
		e.log.Warnf("data dir %s does not exist, creating empty backup", e.dataDir)
		return nil
	}
	return filepath.Walk(e.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(e.dataDir, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join("data", rel))
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
}

// ListBackups returns backup archive paths, newest first.
func (e *Engine) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(e.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("schema: list backups: %w", err)
	}
	type backup struct {
		path string
		mod  time.Time
	}
	var found []backup
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".tar.gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("schema: list backups: %w", err)
		}
		found = append(found, backup{path: filepath.Join(e.backupDir, name), mod: info.ModTime()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod.After(found[j].mod) })
	out := make([]string, len(found))
	for i, b := range found {
		out[i] = b.path
	}
	return out, nil
}

// PruneBackups removes all but the keep newest archives and reports how
// many were deleted.
func (e *Engine) PruneBackups(keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("schema: prune keep %d is invalid", keep)
	}
	backups, err := e.ListBackups()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range backups[min(keep, len(backups)):] {
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("schema: prune backup %s: %w", filepath.Base(path), err)
		}
		removed++
	}
	return removed, nil
}
