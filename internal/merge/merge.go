// Package merge decides create-vs-update for incoming site submissions and
// applies the field preservation and change detection rules.
package merge

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/vinyard/internal/logger"
	"github.com/zulandar/vinyard/internal/models"
	"github.com/zulandar/vinyard/internal/sites"
	"github.com/zulandar/vinyard/internal/store"
)

// ValidationError reports a submission missing a required canonical field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("merge: invalid submission: %s %s", e.Field, e.Reason)
}

// Status classifies the outcome of an upsert.
type Status string

const (
	StatusCreated   Status = "created"
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
)

// Change records one field transition.
type Change struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Result describes what an upsert did.
type Result struct {
	Status  Status            `json:"status"`
	ID      string            `json:"id"`
	Changes map[string]Change `json:"changes,omitempty"`
	Summary string            `json:"summary"`
}

// Engine merges normalized site submissions into the repository.
type Engine struct {
	store  *store.Store
	mapper *sites.Mapper
	log    logger.Logger
	now    func() time.Time
}

// NewEngine wires the merge engine over a store and a field mapper.
func NewEngine(st *store.Store, mapper *sites.Mapper, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{store: st, mapper: mapper, log: log, now: time.Now}
}

// Upsert normalizes rawFields for siteKey and creates or updates the active
// listing for its VIN. Same-VIN submissions are serialized on the store's
// per-VIN lock; repository failures propagate unchanged.
func (e *Engine) Upsert(siteKey string, rawFields map[string]string) (*Result, error) {
	if siteKey == "" || !e.mapper.Known(siteKey) {
		return nil, &ValidationError{Field: "site", Reason: "is unknown"}
	}
	fields := e.mapper.MapFields(siteKey, rawFields)
	vin := fields["vin"]
	if vin == "" {
		return nil, &ValidationError{Field: "vin", Reason: "is required"}
	}

	unlock := e.store.LockVIN(vin)
	defer unlock()

	existing, err := e.store.GetByVIN(vin)
	if errors.Is(err, store.ErrNotFound) {
		return e.create(siteKey, vin, fields)
	}
	if err != nil {
		return nil, err
	}
	return e.update(existing, siteKey, fields)
}

func (e *Engine) create(siteKey, vin string, fields map[string]string) (*Result, error) {
	now := e.now().UTC()
	l := &models.Listing{
		Data: models.ListingData{
			URLs:            map[string]string{},
			LastUpdatedSite: siteKey,
			SitesSeen:       []string{siteKey},
		},
		CreatedDate:      now,
		LastModifiedDate: now,
		LastSeenDate:     now,
	}
	for _, f := range models.ValueFields {
		if v := fields[f]; v != "" {
			l.Data.SetField(f, v)
		}
	}
	if u := fields["url"]; u != "" {
		l.Data.URLs[siteKey] = u
	}
	if err := e.store.Create(l); err != nil {
		return nil, err
	}
	e.log.Infof("created listing %s for VIN %s from %s", l.ID, vin, siteKey)
	return &Result{Status: StatusCreated, ID: l.ID, Summary: "New listing created"}, nil
}

func (e *Engine) update(l *models.Listing, siteKey string, fields map[string]string) (*Result, error) {
	now := e.now().UTC()
	changes := make(map[string]Change)

	// New non-empty values overwrite; empty values never erase data already
	// known from another site. Last submission wins.
	for _, f := range models.ValueFields {
		nv := fields[f]
		if nv == "" {
			continue
		}
		if old := l.Data.Field(f); old != nv {
			changes[f] = Change{Old: old, New: nv}
			l.Data.SetField(f, nv)
		}
	}

	if u := fields["url"]; u != "" {
		if l.Data.URLs == nil {
			l.Data.URLs = map[string]string{}
		}
		if old := l.Data.URLs[siteKey]; old != u {
			changes["url"] = Change{Old: old, New: u}
			l.Data.URLs[siteKey] = u
		}
	}
	if !l.Data.SeenSite(siteKey) {
		changes["sites_seen"] = Change{
			Old: joinSites(l.Data.SitesSeen),
			New: joinSites(append(l.Data.SitesSeen, siteKey)),
		}
		l.Data.SitesSeen = append(l.Data.SitesSeen, siteKey)
	}
	if l.Data.LastUpdatedSite != siteKey {
		changes["last_updated_site"] = Change{Old: l.Data.LastUpdatedSite, New: siteKey}
		l.Data.LastUpdatedSite = siteKey
	}

	// last_seen_date advances on every submission, changed or not, and is
	// excluded from change detection.
	l.LastSeenDate = now

	result := &Result{Status: StatusUnchanged, ID: l.ID, Summary: "No changes detected"}
	if len(changes) > 0 {
		l.LastModifiedDate = now
		result.Status = StatusUpdated
		result.Changes = changes
		result.Summary = formatChangeSummary(changes)
	}

	if err := e.store.Update(l); err != nil {
		return nil, err
	}
	if result.Status == StatusUpdated {
		e.log.Infof("updated listing %s from %s: %s", l.ID, siteKey, result.Summary)
	} else {
		e.log.Infof("no changes for listing %s from %s", l.ID, siteKey)
	}
	return result, nil
}
