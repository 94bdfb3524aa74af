package merge

import (
	"fmt"
	"strings"

	"github.com/zulandar/vinyard/internal/models"
)

// summaryOrder fixes the field order of change summaries: canonical value
// fields first, then the merge-managed bookkeeping fields.
var summaryOrder = append(append([]string{}, models.ValueFields...),
	"url", "sites_seen", "last_updated_site")

// formatChangeSummary renders changes as a stable human-readable line,
// e.g. "Updated 2 field(s): price: $16,495 -> $15,995, mileage: ...".
func formatChangeSummary(changes map[string]Change) string {
	if len(changes) == 0 {
		return "No changes detected"
	}
	parts := make([]string, 0, len(changes))
	for _, f := range summaryOrder {
		c, ok := changes[f]
		if !ok {
			continue
		}
		old := c.Old
		if old == "" {
			old = "none"
		}
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", f, old, c.New))
	}
	return fmt.Sprintf("Updated %d field(s): %s", len(changes), strings.Join(parts, ", "))
}

func joinSites(sites []string) string {
	return strings.Join(sites, ",")
}
