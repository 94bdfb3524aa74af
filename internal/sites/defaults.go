package sites

import (
	"strconv"
	"strings"

	"github.com/zulandar/vinyard/internal/logger"
)

// capability set shared by the fully-supported sites. "url" is canonical at
// mapping time; the merge engine folds it into the per-site urls map.
func caps(fields ...string) map[string]bool {
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out
}

// Default returns the mapper for the shipped site tables: cargurus and
// edmunds carry full extraction; autotrader and cars are URL/title-only
// until their extractors mature.
func Default(log logger.Logger) *Mapper {
	return NewMapper(map[string]Site{
		"cargurus": {
			Capabilities: caps(
				"url", "title", "price", "year", "mileage", "vin", "location",
				"distance", "trim_level", "accidents", "previous_owners",
				"exterior_color", "interior_color",
			),
		},
		"edmunds": {
			Capabilities: caps(
				"url", "title", "price", "year", "mileage", "vin", "location",
				"trim_level", "accidents", "previous_owners",
				"exterior_color", "interior_color",
			),
			FieldMap: map[string]string{
				"Title":           "title",
				"Price":           "price",
				"Year":            "year",
				"Mileage":         "mileage",
				"VIN":             "vin",
				"Trim":            "trim_level",
				"Ext. Color":      "exterior_color",
				"Int. Color":      "interior_color",
				"Accidents":       "accidents",
				"Owners":          "previous_owners",
				"Seller Location": "location",
			},
			Normalize: normalizeEdmunds,
		},
		"autotrader": {
			Capabilities: caps("url", "title"),
		},
		"cars": {
			Capabilities: caps("url", "title"),
		},
	}, log)
}

// normalizeEdmunds reconciles edmunds value formats with the formats the
// cargurus extractor established.
func normalizeEdmunds(field, value string) string {
	switch field {
	case "price":
		if !strings.HasPrefix(value, "$") {
			return "$" + value
		}
	case "accidents":
		if strings.EqualFold(value, "no reported accidents") {
			return "0 accidents reported"
		}
	case "mileage":
		if !strings.Contains(value, ",") && len(value) > 3 {
			if n, err := strconv.Atoi(value); err == nil {
				return groupThousands(n)
			}
		}
	}
	return value
}

// groupThousands renders 16495 as "16,495".
func groupThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
