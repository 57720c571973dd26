package journal

import "time"

// Status values reported for a journal's reachability.
const (
	StatusNew         = "new"
	StatusHealthy     = "healthy"
	StatusUnreachable = "unreachable"
)

// Journal is a publishing platform registered with this client. One row
// per journal; deposits reference it by UUID.
type Journal struct {
	UUID       string // stored upper-case like deposit UUIDs
	Title      string
	GatewayURL string
	ISSN       string
	Email      string
	OJSVersion string
	Status     string
	// ContactedAt is the last time the journal notified us or answered a
	// ping; health-check reports journals whose contact is older than the
	// configured cutoff.
	ContactedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
