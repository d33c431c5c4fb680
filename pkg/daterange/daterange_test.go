package daterange

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC)

func TestNormalize_ValidWindowPassesThrough(t *testing.T) {
	q := url.Values{"from": {"2026-01-01"}, "to": {"2026-02-01"}}

	out, err := Normalize("/retrievals", q, testNow)

	require.NoError(t, err)
	require.Nil(t, out.Redirect)
	assert.Equal(t, "2026-01-01", out.Window.From)
	assert.Equal(t, "2026-02-01", out.Window.To)
}

func TestNormalize_MissingToDefaultsToToday(t *testing.T) {
	q := url.Values{"from": {"2026-01-01"}}

	out, err := Normalize("/retrievals", q, testNow)

	require.NoError(t, err)
	require.NotNil(t, out.Redirect)
	assert.Equal(t, http.StatusFound, out.Redirect.Status)
	assert.Equal(t, 10*time.Minute, out.Redirect.MaxAge)

	loc, err := url.Parse(out.Redirect.Location)
	require.NoError(t, err)
	assert.Equal(t, "/retrievals", loc.Path)
	assert.Equal(t, "2026-01-01", loc.Query().Get("from"))
	assert.Equal(t, "2026-03-15", loc.Query().Get("to"))
}

func TestNormalize_MissingBothDefaultsFromToTo(t *testing.T) {
	out, err := Normalize("/earnings", url.Values{}, testNow)

	require.NoError(t, err)
	require.NotNil(t, out.Redirect)
	assert.Equal(t, http.StatusFound, out.Redirect.Status)

	loc, err := url.Parse(out.Redirect.Location)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15", loc.Query().Get("from"))
	assert.Equal(t, "2026-03-15", loc.Query().Get("to"))
}

func TestNormalize_TimestampTruncatesToPermanentRedirect(t *testing.T) {
	q := url.Values{
		"from":   {"2026-01-01T00:00:00.000Z"},
		"to":     {"2026-02-01T13:37:42.123Z"},
		"filter": {"success"},
	}

	out, err := Normalize("/bandwidth", q, testNow)

	require.NoError(t, err)
	require.NotNil(t, out.Redirect)
	assert.Equal(t, http.StatusMovedPermanently, out.Redirect.Status)
	assert.Equal(t, 24*time.Hour, out.Redirect.MaxAge)

	loc, err := url.Parse(out.Redirect.Location)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", loc.Query().Get("from"))
	assert.Equal(t, "2026-02-01", loc.Query().Get("to"))
	// Unrelated parameters survive canonicalization.
	assert.Equal(t, "success", loc.Query().Get("filter"))
}

func TestNormalize_DefaultingWinsOverTruncation(t *testing.T) {
	// "to" is missing and "from" is a timestamp: the defaulting pass redirects
	// first, leaving the timestamp untouched for the follow-up request.
	q := url.Values{"from": {"2026-01-01T00:00:00.000Z"}}

	out, err := Normalize("/retrievals", q, testNow)

	require.NoError(t, err)
	require.NotNil(t, out.Redirect)
	assert.Equal(t, http.StatusFound, out.Redirect.Status)

	loc, err := url.Parse(out.Redirect.Location)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01T00:00:00.000Z", loc.Query().Get("from"))
	assert.Equal(t, "2026-03-15", loc.Query().Get("to"))
}

func TestNormalize_MalformedDates(t *testing.T) {
	cases := []struct {
		name  string
		from  string
		to    string
		field string
	}{
		{"garbage from", "not-a-date", "2026-01-01", "from"},
		{"impossible calendar date", "2024-13-40", "2026-01-01", "from"},
		{"garbage to", "2026-01-01", "01/02/2026", "to"},
		{"truncated timestamp", "2026-01-01T00:00", "2026-01-01", "from"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := url.Values{"from": {tc.from}, "to": {tc.to}}
			_, err := Normalize("/retrievals", q, testNow)

			var bad *BadRequestError
			require.ErrorAs(t, err, &bad)
			assert.Equal(t, tc.field, bad.Field)
			assert.Contains(t, bad.Error(), tc.field)
		})
	}
}

func TestNormalize_InvertedWindowIsNotRejected(t *testing.T) {
	q := url.Values{"from": {"2026-02-01"}, "to": {"2026-01-01"}}

	out, err := Normalize("/retrievals", q, testNow)

	require.NoError(t, err)
	assert.Nil(t, out.Redirect)
	assert.Equal(t, "2026-02-01", out.Window.From)
	assert.Equal(t, "2026-01-01", out.Window.To)
}

func TestCacheControl_HistoricalWindowIsImmutable(t *testing.T) {
	w := Window{From: "2025-01-01", To: "2025-06-30"}
	assert.Equal(t, CacheLong, CacheControl(w, testNow))
}

func TestCacheControl_RecentWindowIsShortLived(t *testing.T) {
	w := Window{From: "2026-03-01", To: "2026-03-15"}
	assert.Equal(t, CacheShort, CacheControl(w, testNow))
}

func TestCacheControl_BoundaryDateIsShortLived(t *testing.T) {
	// now-1h is still 2026-03-15: a window ending exactly on the boundary date
	// may include unfinalized data.
	w := Window{From: "2026-03-01", To: "2026-03-15"}
	assert.Equal(t, CacheShort, CacheControl(w, testNow))

	// One hour past midnight, now-1h rolls back to the previous day, so a
	// window ending yesterday sits on the boundary and stays short-lived.
	justPastMidnight := time.Date(2026, 3, 16, 0, 30, 0, 0, time.UTC)
	yesterday := Window{From: "2026-03-01", To: "2026-03-15"}
	assert.Equal(t, CacheShort, CacheControl(yesterday, justPastMidnight))

	// Two days back is strictly before the boundary.
	older := Window{From: "2026-03-01", To: "2026-03-14"}
	assert.Equal(t, CacheLong, CacheControl(older, justPastMidnight))
}
