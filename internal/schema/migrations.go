package schema

import "strings"

// Registry returns the full migration chain in version order. The engine is
// always constructed from this explicit list; there is no global state.
func Registry() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "convert single url field to multi-site urls structure",
			Listing:     migrateURLToMultiSite,
		},
		{
			Version:     2,
			Description: "introduce schema versioning; wrap legacy flat VIN indexes",
			Index:       migrateWrapVINMappings,
		},
		{
			Version:     3,
			Description: "add lifecycle date tracking fields",
			Listing:     migrateAddDateTracking,
		},
		{
			Version:     4,
			Description: "add tri-state performance_package field",
			Listing:     migrateAddPerformancePackage,
		},
	}
}

// listingData returns the nested data object of a raw listing record, or nil
// when the record has no recognizable data section.
func listingData(raw map[string]any) map[string]any {
	data, _ := raw["data"].(map[string]any)
	return data
}

// migrateURLToMultiSite replaces the original single url field with the
// urls map plus last_updated_site and sites_seen, inferring the site from
// the URL host. Records already carrying urls pass through untouched.
func migrateURLToMultiSite(raw map[string]any) (map[string]any, error) {
	data := listingData(raw)
	if data == nil {
		return raw, nil
	}
	if _, ok := data["urls"]; ok {
		return raw, nil
	}
	url, ok := data["url"].(string)
	if !ok || url == "" {
		return raw, nil
	}

	site := "unknown"
	switch lower := strings.ToLower(url); {
	case strings.Contains(lower, "cargurus.com"):
		site = "cargurus"
	case strings.Contains(lower, "edmunds.com"):
		site = "edmunds"
	case strings.Contains(lower, "autotrader.com"):
		site = "autotrader"
	case strings.Contains(lower, "cars.com"):
		site = "cars"
	}

	data["urls"] = map[string]any{site: url}
	data["last_updated_site"] = site
	data["sites_seen"] = []any{site}
	delete(data, "url")
	return raw, nil
}

// migrateWrapVINMappings wraps a legacy flat {vin: id} index into the
// structured {schema_version, vin_mappings} shape.
func migrateWrapVINMappings(raw map[string]any) (map[string]any, error) {
	if _, ok := raw["vin_mappings"]; ok {
		return raw, nil
	}
	mappings := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "schema_version" {
			continue
		}
		mappings[k] = v
	}
	return map[string]any{"vin_mappings": mappings}, nil
}

// migrateAddDateTracking null-fills the four lifecycle date fields. The
// original system back-parsed its application log to recover history; that
// is neither pure nor reproducible, so missing dates stay null.
func migrateAddDateTracking(raw map[string]any) (map[string]any, error) {
	for _, key := range []string{"created_date", "last_modified_date", "last_seen_date", "deleted_date"} {
		if _, ok := raw[key]; !ok {
			raw[key] = nil
		}
	}
	return raw, nil
}

// migrateAddPerformancePackage adds the tri-state performance_package field,
// initialized to null (unknown).
func migrateAddPerformancePackage(raw map[string]any) (map[string]any, error) {
	data := listingData(raw)
	if data == nil {
		return raw, nil
	}
	if _, ok := data["performance_package"]; !ok {
		data["performance_package"] = nil
	}
	return raw, nil
}
