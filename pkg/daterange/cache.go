package daterange

import "time"

// Cache directives attached to read responses. Exactly one of the two is used
// per response; redirects carry their own max-age from Normalize.
const (
	// CacheShort covers windows that may still include not-yet-finalized data.
	CacheShort = "public, max-age=600"
	// CacheLong covers entirely historical windows, which are guaranteed stable.
	CacheLong = "public, max-age=31536000, immutable"
)

// finalizationLag is how far behind wall clock the upstream aggregation is
// considered settled.
const finalizationLag = time.Hour

// CacheControl picks the response cache directive for a canonical window.
// The recency boundary is the UTC date one finalization lag ago: a window
// ending on or after it may still change, anything older is immutable.
// Pure function of (w.To, now).
func CacheControl(w Window, now time.Time) string {
	boundary := now.UTC().Add(-finalizationLag).Format(DateLayout)
	if w.To >= boundary {
		return CacheShort
	}
	return CacheLong
}
