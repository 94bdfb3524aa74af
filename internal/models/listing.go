// Package models defines the persisted record types shared across vinyard.
package models

import "time"

// SchemaVersion0 marks a record written before schema versioning existed.
const SchemaVersion0 = 0

// Listing is one physical vehicle, deduplicated by VIN.
type Listing struct {
	ID               string      `json:"id"`
	SchemaVersion    int         `json:"schema_version"`
	Data             ListingData `json:"data"`
	Comments         string      `json:"comments,omitempty"`
	CreatedDate      time.Time   `json:"created_date"`
	LastModifiedDate time.Time   `json:"last_modified_date"`
	LastSeenDate     time.Time   `json:"last_seen_date"`
	DeletedDate      *time.Time  `json:"deleted_date"`
}

// ListingData holds the canonical attribute set merged across sites.
// Value fields keep the site-formatted strings the scrapers deliver
// ("$16,495", "45,000"); the scorer owns numeric parsing.
type ListingData struct {
	URLs            map[string]string `json:"urls"`
	LastUpdatedSite string            `json:"last_updated_site"`
	SitesSeen       []string          `json:"sites_seen"`
	VIN             string            `json:"vin"`
	Price           string            `json:"price,omitempty"`
	Year            string            `json:"year,omitempty"`
	Mileage         string            `json:"mileage,omitempty"`
	Distance        string            `json:"distance,omitempty"`
	Title           string            `json:"title,omitempty"`
	Location        string            `json:"location,omitempty"`
	TrimLevel       string            `json:"trim_level,omitempty"`
	Accidents       string            `json:"accidents,omitempty"`
	PreviousOwners  string            `json:"previous_owners,omitempty"`
	ExteriorColor   string            `json:"exterior_color,omitempty"`
	InteriorColor   string            `json:"interior_color,omitempty"`

	// PerformancePackage is tri-state: nil means unknown.
	PerformancePackage *bool `json:"performance_package"`
}

// VINIndex maps VINs to listing ids. It covers active listings only.
type VINIndex struct {
	SchemaVersion int               `json:"schema_version"`
	VINMappings   map[string]string `json:"vin_mappings"`
}

// NewVINIndex returns an empty index at the given schema version.
func NewVINIndex(version int) *VINIndex {
	return &VINIndex{SchemaVersion: version, VINMappings: make(map[string]string)}
}

// ValueFields lists the canonical string-valued attributes in merge order.
// urls, last_updated_site, sites_seen and performance_package are handled
// separately by the merge engine.
var ValueFields = []string{
	"vin",
	"price",
	"year",
	"mileage",
	"distance",
	"title",
	"location",
	"trim_level",
	"accidents",
	"previous_owners",
	"exterior_color",
	"interior_color",
}

// Field returns the value of a canonical string field by name.
func (d *ListingData) Field(name string) string {
	switch name {
	case "vin":
		return d.VIN
	case "price":
		return d.Price
	case "year":
		return d.Year
	case "mileage":
		return d.Mileage
	case "distance":
		return d.Distance
	case "title":
		return d.Title
	case "location":
		return d.Location
	case "trim_level":
		return d.TrimLevel
	case "accidents":
		return d.Accidents
	case "previous_owners":
		return d.PreviousOwners
	case "exterior_color":
		return d.ExteriorColor
	case "interior_color":
		return d.InteriorColor
	}
	return ""
}

// SetField sets a canonical string field by name. Unknown names are ignored.
func (d *ListingData) SetField(name, value string) {
	switch name {
	case "vin":
		d.VIN = value
	case "price":
		d.Price = value
	case "year":
		d.Year = value
	case "mileage":
		d.Mileage = value
	case "distance":
		d.Distance = value
	case "title":
		d.Title = value
	case "location":
		d.Location = value
	case "trim_level":
		d.TrimLevel = value
	case "accidents":
		d.Accidents = value
	case "previous_owners":
		d.PreviousOwners = value
	case "exterior_color":
		d.ExteriorColor = value
	case "interior_color":
		d.InteriorColor = value
	}
}

// SeenSite reports whether the site already appears in SitesSeen.
func (d *ListingData) SeenSite(site string) bool {
	for _, s := range d.SitesSeen {
		if s == site {
			return true
		}
	}
	return false
}

// Active reports whether the listing has not been soft-deleted.
func (l *Listing) Active() bool {
	return l.DeletedDate == nil
}
