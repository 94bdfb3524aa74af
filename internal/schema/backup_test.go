package schema

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateBackup(t *testing.T) {
	e := newTestEngine(t)
	writeRawJSON(t, filepath.Join(e.dataDir, "a.json"), map[string]any{"id": "a"})
	writeRawJSON(t, filepath.Join(e.dataDir, "indices", "vin_to_id.json"), map[string]any{"vin_mappings": map[string]any{}})

	path, err := e.CreateBackup("manual")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "data_backup_manual_") || !strings.HasSuffix(base, ".tar.gz") {
		t.Errorf("backup name %q does not match expected pattern", base)
	}

	names := readArchiveNames(t, path)
	for _, want := range []string{"data/a.json", "data/indices/vin_to_id.json"} {
		if !names[want] {
			t.Errorf("archive missing entry %q (have %v)", want, names)
		}
	}
}

func TestCreateBackup_MissingDataDir(t *testing.T) {
	e := newTestEngine(t)
	path, err := e.CreateBackup("empty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names := readArchiveNames(t, path); len(names) != 0 {
		t.Errorf("expected empty archive, got %v", names)
	}
}

func TestListAndPruneBackups(t *testing.T) {
	e := newTestEngine(t)

	var paths []string
	for i, name := range []string{"older", "middle", "newest"} {
		p, err := e.CreateBackup(name)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Spread modification times so ordering is deterministic.
		mod := time.Now().Add(time.Duration(i-3) * time.Hour)
		if err := os.Chtimes(p, mod, mod); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	got, err := e.ListBackups()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d backups, want 3", len(got))
	}
	if got[0] != paths[2] || got[2] != paths[0] {
		t.Errorf("backups not newest-first: %v", got)
	}

	removed, err := e.PruneBackups(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	remaining, err := e.ListBackups()
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0] != paths[2] {
		t.Errorf("remaining = %v, want only newest", remaining)
	}

	if _, err := e.PruneBackups(0); err == nil {
		t.Error("PruneBackups(0) should fail")
	}
}

func readArchiveNames(t *testing.T, path string) map[string]bool {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	defer gz.Close()

	names := map[string]bool{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag == tar.TypeReg {
			names[hdr.Name] = true
		}
	}
	return names
}
