// Package notify fans new-listing notifications out to configured chat
// adapters. Delivery is best-effort: adapter failures are logged, never
// propagated into the ingest path.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/vinyard/internal/logger"
	"github.com/zulandar/vinyard/internal/models"
)

// Adapter delivers one plain-text message to a chat destination.
type Adapter interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Notifier broadcasts to every configured adapter.
type Notifier struct {
	adapters []Adapter
	log      logger.Logger
}

// New builds a notifier over the given adapters. With none configured every
// call is a no-op.
func New(log logger.Logger, adapters ...Adapter) *Notifier {
	if log == nil {
		log = logger.Discard()
	}
	return &Notifier{adapters: adapters, log: log}
}

// ListingCreated announces a newly created listing.
func (n *Notifier) ListingCreated(ctx context.Context, l *models.Listing) {
	if len(n.adapters) == 0 {
		return
	}
	text := FormatListing(l)
	for _, a := range n.adapters {
		if err := a.Send(ctx, text); err != nil {
			n.log.Errorf("notify: %s: %v", a.Name(), err)
		}
	}
}

// FormatListing renders the notification line for a listing.
func FormatListing(l *models.Listing) string {
	var b strings.Builder
	b.WriteString("New listing")
	if l.Data.Title != "" {
		fmt.Fprintf(&b, ": %s", l.Data.Title)
	}
	if l.Data.Price != "" {
		fmt.Fprintf(&b, " at %s", l.Data.Price)
	}
	if l.Data.Mileage != "" {
		fmt.Fprintf(&b, ", %s miles", l.Data.Mileage)
	}
	fmt.Fprintf(&b, " (VIN %s", l.Data.VIN)
	if l.Data.LastUpdatedSite != "" {
		fmt.Fprintf(&b, " via %s", l.Data.LastUpdatedSite)
	}
	b.WriteString(")")
	return b.String()
}
