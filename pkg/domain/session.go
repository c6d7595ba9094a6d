package domain

import "time"

// DefaultSessionTTL is the sliding idle window applied by session stores
// when no explicit TTL is configured.
const DefaultSessionTTL = time.Hour

// Session is the TTL-bound server-side record for one connection identity.
// It is created on first access, refreshed by every read and write, and
// destroyed explicitly on logout or passively by expiration.
type Session struct {
	// ID is the owning connection id.
	ID string `json:"id"`

	// CSRFToken correlates state-changing requests with the session.
	CSRFToken string `json:"csrf_token"`

	// CreatedAt is the stamp of the first access.
	CreatedAt time.Time `json:"created_at"`

	// Data is the open application map (e.g. an authenticated user id).
	// Updates shallow-merge into it; the whole record persists as one
	// value, so concurrent writers are last-write-wins.
	Data map[string]any `json:"data"`
}
