// Package schema upgrades stored records between schema versions, either in
// bulk at startup (preflight) or lazily on individual access (just-in-time).
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zulandar/vinyard/internal/logger"
)

// MigrateFunc transforms one raw JSON document from version v-1 to v.
// Implementations must be pure and idempotent.
type MigrateFunc func(map[string]any) (map[string]any, error)

// Migration describes one schema version step. A nil func is identity; the
// engine stamps schema_version itself after each step.
type Migration struct {
	Version     int
	Description string
	Listing     MigrateFunc
	Index       MigrateFunc
}

// MigrationError reports a failed or impossible migration.
type MigrationError struct {
	Version int
	Path    string
	Err     error
}

func (e *MigrationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("schema: migrate %s to v%d: %v", e.Path, e.Version, e.Err)
	}
	return fmt.Sprintf("schema: migrate to v%d: %v", e.Version, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Engine applies an explicit, ordered migration chain to the on-disk store.
type Engine struct {
	dataDir    string
	backupDir  string
	migrations []Migration
	log        logger.Logger
}

// NewEngine validates the migration list (strictly increasing versions
// starting at or above 1) and returns an engine rooted at dataDir.
func NewEngine(dataDir, backupDir string, migrations []Migration, log logger.Logger) (*Engine, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("schema: data dir is required")
	}
	if backupDir == "" {
		return nil, fmt.Errorf("schema: backup dir is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	ms := make([]Migration, len(migrations))
	copy(ms, migrations)
	sort.Slice(ms, func(i, j int) bool { return ms[i].Version < ms[j].Version })
	last := 0
	for _, m := range ms {
		if m.Version < 1 {
			return nil, fmt.Errorf("schema: migration version %d is invalid", m.Version)
		}
		if m.Version == last {
			return nil, fmt.Errorf("schema: duplicate migration version %d", m.Version)
		}
		last = m.Version
	}
	return &Engine{dataDir: dataDir, backupDir: backupDir, migrations: ms, log: log}, nil
}

// Current returns the highest registered version, or 0 with no migrations.
func (e *Engine) Current() int {
	if len(e.migrations) == 0 {
		return 0
	}
	return e.migrations[len(e.migrations)-1].Version
}

// Migrations returns a copy of the registered chain in version order.
func (e *Engine) Migrations() []Migration {
	out := make([]Migration, len(e.migrations))
	copy(out, e.migrations)
	return out
}

// IndexPath returns the location of the VIN index file under the data dir.
func (e *Engine) IndexPath() string {
	return filepath.Join(e.dataDir, "indices", "vin_to_id.json")
}

// DocVersion extracts schema_version from a raw JSON document. Documents
// written before versioning existed report 0.
func DocVersion(raw map[string]any) int {
	switch v := raw["schema_version"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// pending returns the steps to bring version v up to current. A document
// ahead of the engine is a fatal inconsistency.
func (e *Engine) pending(v, current int) ([]Migration, error) {
	if v > current {
		return nil, &MigrationError{Version: v, Err: fmt.Errorf("stored version v%d exceeds engine version v%d", v, current)}
	}
	var out []Migration
	for _, m := range e.migrations {
		if m.Version > v {
			out = append(out, m)
		}
	}
	return out, nil
}

// ApplyListing runs the pending listing migrations on one raw record,
// returning the migrated document and whether anything changed.
func (e *Engine) ApplyListing(raw map[string]any) (map[string]any, bool, error) {
	return e.apply(raw, func(m Migration) MigrateFunc { return m.Listing })
}

// ApplyIndex runs the pending index migrations on the raw VIN index.
func (e *Engine) ApplyIndex(raw map[string]any) (map[string]any, bool, error) {
	return e.apply(raw, func(m Migration) MigrateFunc { return m.Index })
}

func (e *Engine) apply(raw map[string]any, pick func(Migration) MigrateFunc) (map[string]any, bool, error) {
	current := e.Current()
	steps, err := e.pending(DocVersion(raw), current)
	if err != nil {
		return nil, false, err
	}
	if len(steps) == 0 {
		return raw, false, nil
	}
	for _, m := range steps {
		if fn := pick(m); fn != nil {
			raw, err = fn(raw)
			if err != nil {
				return nil, false, &MigrationError{Version: m.Version, Err: err}
			}
		}
		raw["schema_version"] = m.Version
	}
	return raw, true, nil
}

// MigrateListingFile upgrades one on-disk listing file just-in-time. The
// file is rewritten atomically only after the whole chain succeeds; on
// failure the original file is untouched. Returns the migrated document.
func (e *Engine) MigrateListingFile(path string, raw map[string]any) (map[string]any, error) {
	from := DocVersion(raw)
	if from == e.Current() {
		return raw, nil
	}
	e.log.Warnf("just-in-time migration required for %s (v%d -> v%d)", filepath.Base(path), from, e.Current())
	migrated, changed, err := e.ApplyListing(raw)
	if err != nil {
		if me, ok := err.(*MigrationError); ok {
			me.Path = path
		}
		return nil, err
	}
	if changed {
		if err := writeJSONAtomic(path, migrated); err != nil {
			return nil, &MigrationError{Version: e.Current(), Path: path, Err: err}
		}
	}
	return migrated, nil
}

// MigrateIndexFile upgrades the VIN index file just-in-time.
func (e *Engine) MigrateIndexFile(path string, raw map[string]any) (map[string]any, error) {
	from := DocVersion(raw)
	if from == e.Current() {
		return raw, nil
	}
	e.log.Warnf("just-in-time migration required for index (v%d -> v%d)", from, e.Current())
	migrated, changed, err := e.ApplyIndex(raw)
	if err != nil {
		if me, ok := err.(*MigrationError); ok {
			me.Path = path
		}
		return nil, err
	}
	if changed {
		if err := writeJSONAtomic(path, migrated); err != nil {
			return nil, &MigrationError{Version: e.Current(), Path: path, Err: err}
		}
	}
	return migrated, nil
}

// CheckNeeded scans the index and every listing file (active and deleted
// partitions) and reports the lowest stored version against current.
func (e *Engine) CheckNeeded() (needed bool, lowest, current int, err error) {
	current = e.Current()
	lowest = current

	paths, err := e.listingFiles()
	if err != nil {
		return false, 0, current, err
	}
	if idx := e.IndexPath(); fileExists(idx) {
		paths = append(paths, idx)
	}
	for _, p := range paths {
		raw, err := readJSON(p)
		if err != nil {
			return false, 0, current, err
		}
		if v := DocVersion(raw); v < lowest {
			lowest = v
		}
	}
	return lowest < current, lowest, current, nil
}

// Preflight brings the whole store up to the current version. It backs up
// the data dir first; a backup failure aborts with nothing mutated. A
// migration failure aborts the remaining batch; files already migrated stay
// migrated, which is safe because migrations are idempotent and forward-only.
func (e *Engine) Preflight() error {
	needed, lowest, current, err := e.CheckNeeded()
	if err != nil {
		return fmt.Errorf("schema: preflight scan: %w", err)
	}
	if !needed {
		e.log.Infof("schema is current (v%d), no migration needed", current)
		return nil
	}

	e.log.Infof("starting preflight migration from v%d to v%d", lowest, current)
	name := fmt.Sprintf("preflight_v%d_to_v%d", lowest, current)
	backupPath, err := e.CreateBackup(name)
	if err != nil {
		return fmt.Errorf("schema: preflight backup: %w", err)
	}
	e.log.Infof("backup created: %s", filepath.Base(backupPath))

	// Index first: single file, cheap, and everything else keys off it.
	if idx := e.IndexPath(); fileExists(idx) {
		if err := e.migrateFile(idx, e.ApplyIndex); err != nil {
			return err
		}
	}

	paths, err := e.listingFiles()
	if err != nil {
		return fmt.Errorf("schema: preflight scan: %w", err)
	}
	for _, p := range paths {
		if err := e.migrateFile(p, func(raw map[string]any) (map[string]any, bool, error) {
			return e.ApplyListing(raw)
		}); err != nil {
			return err
		}
	}

	e.log.Infof("preflight migration completed, %d listing file(s) at v%d", len(paths), current)
	return nil
}

func (e *Engine) migrateFile(path string, apply func(map[string]any) (map[string]any, bool, error)) error {
	raw, err := readJSON(path)
	if err != nil {
		return fmt.Errorf("schema: read %s: %w", path, err)
	}
	from := DocVersion(raw)
	migrated, changed, err := apply(raw)
	if err != nil {
		if me, ok := err.(*MigrationError); ok {
			me.Path = path
		}
		return err
	}
	if !changed {
		return nil
	}
	if err := writeJSONAtomic(path, migrated); err != nil {
		return &MigrationError{Version: e.Current(), Path: path, Err: err}
	}
	e.log.Infof("migrated %s from v%d to v%d", filepath.Base(path), from, e.Current())
	return nil
}

// listingFiles returns every listing record on disk, active and deleted.
func (e *Engine) listingFiles() ([]string, error) {
	var out []string
	for _, dir := range []string{e.dataDir, filepath.Join(e.dataDir, "deleted")} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			out = append(out, filepath.Join(dir, entry.Name()))
		}
	}
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return raw, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".migrate-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
