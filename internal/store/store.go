// Package store persists one JSON file per listing plus a VIN index,
// deduplicated by VIN, with write-temp-then-rename atomicity.
package store

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/vinyard/internal/logger"
	"github.com/zulandar/vinyard/internal/models"
	"github.com/zulandar/vinyard/internal/schema"
)

// timeNow is swapped in tests.
var timeNow = time.Now

// Store is the listing repository. Every read routes through the schema
// engine's just-in-time check, so consumers only ever see current-version
// records.
type Store struct {
	dataDir    string
	deletedDir string
	engine     *schema.Engine
	log        logger.Logger

	mu    sync.Mutex // guards index and index file writes
	index *models.VINIndex

	vinMu sync.Mutex
	vins  map[string]*sync.Mutex
}

// Open prepares the data layout (data/, data/indices/, data/deleted/) and
// loads the VIN index, migrating it just-in-time if it predates the current
// schema.
func Open(dataDir string, engine *schema.Engine, log logger.Logger) (*Store, error) {
	if engine == nil {
		return nil, fmt.Errorf("store: schema engine is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	s := &Store{
		dataDir:    dataDir,
		deletedDir: filepath.Join(dataDir, "deleted"),
		engine:     engine,
		log:        log,
		vins:       make(map[string]*sync.Mutex),
	}
	for _, dir := range []string{dataDir, filepath.Join(dataDir, "indices"), s.deletedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", dir, err)
		}
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dataDir, "indices", "vin_to_id.json")
}

func (s *Store) loadIndex() error {
	path := s.indexPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.index = models.NewVINIndex(s.engine.Current())
			return s.saveIndexLocked()
		}
		return fmt.Errorf("store: read vin index: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("store: parse vin index: %w", err)
	}
	raw, err = s.engine.MigrateIndexFile(path, raw)
	if err != nil {
		return err
	}

	migrated, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("store: encode vin index: %w", err)
	}
	idx := models.NewVINIndex(s.engine.Current())
	if err := json.Unmarshal(migrated, idx); err != nil {
		return fmt.Errorf("store: decode vin index: %w", err)
	}
	if idx.VINMappings == nil {
		idx.VINMappings = make(map[string]string)
	}
	idx.SchemaVersion = s.engine.Current()
	s.index = idx
	return nil
}

// saveIndexLocked writes the index atomically. Callers hold s.mu (or have
// exclusive access during Open).
func (s *Store) saveIndexLocked() error {
	if err := writeJSONAtomic(s.indexPath(), s.index); err != nil {
		return fmt.Errorf("store: write vin index: %w", err)
	}
	return nil
}

// LockVIN serializes writers for one VIN and returns the unlock func.
// Different VINs proceed concurrently since each touches disjoint files.
func (s *Store) LockVIN(vin string) func() {
	s.vinMu.Lock()
	m, ok := s.vins[vin]
	if !ok {
		m = &sync.Mutex{}
		s.vins[vin] = m
	}
	s.vinMu.Unlock()
	m.Lock()
	return m.Unlock
}

// GetByID returns a listing by id. Soft-deleted listings remain retrievable
// here, with DeletedDate set.
func (s *Store) GetByID(id string) (*models.Listing, error) {
	for _, dir := range []string{s.dataDir, s.deletedDir} {
		l, err := s.readListing(filepath.Join(dir, id+".json"))
		if err == nil {
			return l, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// GetByVIN returns the active listing for a VIN via the index.
func (s *Store) GetByVIN(vin string) (*models.Listing, error) {
	s.mu.Lock()
	id, ok := s.index.VINMappings[vin]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	l, err := s.readListing(filepath.Join(s.dataDir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// ListActive lazily yields every active listing. The sequence is
// restartable: each range re-reads the directory.
func (s *Store) ListActive() iter.Seq2[*models.Listing, error] {
	return func(yield func(*models.Listing, error) bool) {
		entries, err := os.ReadDir(s.dataDir)
		if err != nil {
			yield(nil, fmt.Errorf("store: scan listings: %w", err))
			return
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			l, err := s.readListing(filepath.Join(s.dataDir, entry.Name()))
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !yield(l, nil) {
				return
			}
		}
	}
}

// AllActive collects ListActive into a slice.
func (s *Store) AllActive() ([]*models.Listing, error) {
	var out []*models.Listing
	for l, err := range s.ListActive() {
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// Create persists a new listing. The id is assigned here when empty; the
// schema version is always stamped to current. Fails with ErrConflict when
// the VIN already has an active record.
func (s *Store) Create(l *models.Listing) error {
	if l.Data.VIN == "" {
		return fmt.Errorf("store: create: vin is required")
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	l.SchemaVersion = s.engine.Current()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index.VINMappings[l.Data.VIN]; exists {
		return ErrConflict
	}
	if err := writeJSONAtomic(s.listingPath(l.ID), l); err != nil {
		return fmt.Errorf("store: write listing %s: %w", l.ID, err)
	}
	s.index.VINMappings[l.Data.VIN] = l.ID
	if err := s.saveIndexLocked(); err != nil {
		return err
	}
	s.log.Infof("saved new listing with ID %s and VIN %s", l.ID, l.Data.VIN)
	return nil
}

// Update rewrites an existing listing in place, active or soft-deleted.
// The VIN is immutable once set.
func (s *Store) Update(l *models.Listing) error {
	existing, err := s.GetByID(l.ID)
	if err != nil {
		return err
	}
	if existing.Data.VIN != "" && l.Data.VIN != existing.Data.VIN {
		return fmt.Errorf("store: update %s: vin is immutable", l.ID)
	}
	l.SchemaVersion = s.engine.Current()

	path := s.listingPath(l.ID)
	if !existing.Active() {
		path = s.deletedPath(l.ID)
	}
	if err := writeJSONAtomic(path, l); err != nil {
		return fmt.Errorf("store: write listing %s: %w", l.ID, err)
	}
	return nil
}

// UpdateFn applies fn to the listing with id under the per-VIN lock and
// persists the result when fn reports a change. fn runs against a fresh
// read taken inside the lock, so mutations committed by a concurrent
// submission are never overwritten with a stale copy.
func (s *Store) UpdateFn(id string, fn func(*models.Listing) (bool, error)) (*models.Listing, error) {
	l, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	unlock := s.LockVIN(l.Data.VIN)
	defer unlock()

	l, err = s.GetByID(id)
	if err != nil {
		return nil, err
	}
	changed, err := fn(l)
	if err != nil {
		return nil, err
	}
	if !changed {
		return l, nil
	}
	if err := s.Update(l); err != nil {
		return nil, err
	}
	return l, nil
}

// SoftDelete stamps DeletedDate, moves the record into the deleted
// partition, and drops the VIN from the index. The record itself is
// retained and stays retrievable by id. Runs under the per-VIN lock so it
// cannot interleave with a submission for the same VIN.
func (s *Store) SoftDelete(id string) error {
	active := s.listingPath(id)
	l, err := s.readListing(active)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}

	unlock := s.LockVIN(l.Data.VIN)
	defer unlock()

	// Re-read inside the lock; a submission may have committed between the
	// first read and the lock acquisition.
	l, err = s.readListing(active)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}

	now := timeNow().UTC()
	l.DeletedDate = &now
	if err := writeJSONAtomic(s.deletedPath(id), l); err != nil {
		return fmt.Errorf("store: write deleted listing %s: %w", id, err)
	}
	if err := os.Remove(active); err != nil {
		return fmt.Errorf("store: remove listing %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.index.VINMappings, l.Data.VIN)
	if err := s.saveIndexLocked(); err != nil {
		return err
	}
	s.log.Infof("soft-deleted listing %s (VIN %s)", id, l.Data.VIN)
	return nil
}

// Count returns the number of active listings.
func (s *Store) Count() (int, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return 0, fmt.Errorf("store: scan listings: %w", err)
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			n++
		}
	}
	return n, nil
}

func (s *Store) listingPath(id string) string {
	return filepath.Join(s.dataDir, id+".json")
}

func (s *Store) deletedPath(id string) string {
	return filepath.Join(s.deletedDir, id+".json")
}

// readListing loads one record, applying the just-in-time migration chain
// when the stored version is behind. Missing files surface as the raw
// os.IsNotExist error so callers can map them to ErrNotFound.
func (s *Store) readListing(path string) (*models.Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var probe struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", path, err)
	}

	if probe.SchemaVersion != s.engine.Current() {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("store: parse %s: %w", path, err)
		}
		migrated, err := s.engine.MigrateListingFile(path, raw)
		if err != nil {
			return nil, err
		}
		if data, err = json.Marshal(migrated); err != nil {
			return nil, fmt.Errorf("store: encode %s: %w", path, err)
		}
	}

	var l models.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return &l, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".listing-*")
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
