// Package sites translates raw per-site extracted fields into the canonical
// field set. Each site declares an explicit capability allow-list and a
// rename table; anything else is dropped.
package sites

import (
	"sort"

	"github.com/zulandar/vinyard/internal/logger"
)

// Site describes one supported source site.
type Site struct {
	// Capabilities is the set of canonical fields this site can supply.
	Capabilities map[string]bool
	// FieldMap renames site-specific keys to canonical names (for example
	// edmunds "Ext. Color" -> "exterior_color"). Keys matching a canonical
	// capability name directly need no entry.
	FieldMap map[string]string
	// Normalize optionally fixes up a value for one canonical field.
	Normalize func(field, value string) string
}

// Mapper holds the per-site translation tables.
type Mapper struct {
	sites map[string]Site
	log   logger.Logger
}

// NewMapper builds a mapper over the given site tables.
func NewMapper(sites map[string]Site, log logger.Logger) *Mapper {
	if log == nil {
		log = logger.Discard()
	}
	return &Mapper{sites: sites, log: log}
}

// Known reports whether siteKey has a registered table.
func (m *Mapper) Known(siteKey string) bool {
	_, ok := m.sites[siteKey]
	return ok
}

// Capabilities returns the sorted canonical fields a site can supply, or
// nil for an unknown site.
func (m *Mapper) Capabilities(siteKey string) []string {
	site, ok := m.sites[siteKey]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(site.Capabilities))
	for f := range site.Capabilities {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// MapFields converts raw extracted key/value pairs into the canonical field
// map. Empty values and keys outside the site's tables are silently
// dropped. Unknown sites yield an empty map.
func (m *Mapper) MapFields(siteKey string, raw map[string]string) map[string]string {
	out := make(map[string]string)
	site, ok := m.sites[siteKey]
	if !ok {
		return out
	}
	for key, value := range raw {
		if value == "" {
			continue
		}
		canonical := ""
		if mapped, ok := site.FieldMap[key]; ok {
			canonical = mapped
		} else if site.Capabilities[key] {
			canonical = key
		} else {
			m.log.Debugf("%s: unknown field dropped: %s", siteKey, key)
			continue
		}
		if site.Normalize != nil {
			value = site.Normalize(canonical, value)
		}
		out[canonical] = value
	}
	return out
}
