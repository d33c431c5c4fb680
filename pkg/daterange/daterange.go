package daterange

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	// DateLayout is the canonical calendar-date form accepted and emitted by Normalize.
	DateLayout = "2006-01-02"
	// TimestampLayout is accepted for compatibility with dashboard tools that always
	// emit full timestamps; it is truncated to its date component.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

// Window is a canonicalized date range. Both bounds are date-only YYYY-MM-DD
// strings representing UTC calendar dates. From <= To is not enforced here;
// an inverted window simply selects nothing downstream.
type Window struct {
	From string
	To   string
}

// Redirect describes the canonicalization redirect a caller must issue instead
// of serving the request.
type Redirect struct {
	Location string
	Status   int
	MaxAge   time.Duration
}

// Outcome is the result of Normalize: either a canonical window (Redirect nil)
// or a redirect to the canonical query string.
type Outcome struct {
	Window   Window
	Redirect *Redirect
}

// BadRequestError reports a from/to value that matches neither accepted form.
type BadRequestError struct {
	Field string
	Value string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("invalid %q date parameter: %q", e.Field, e.Value)
}

// Normalize resolves the from/to query parameters of a read endpoint into a
// canonical date window.
//
// Two passes, redirecting at the first one that needed a change:
//  1. Defaulting: a missing "to" becomes today (UTC), then a missing "from"
//     becomes "to". Defaults drift daily, so the redirect is a 302 cached for
//     at most ten minutes.
//  2. Format: full timestamps are truncated to their date component and
//     redirected permanently (301, cached a day) since the date-only form is a
//     stable alias.
//
// All unrelated query parameters are preserved in the redirect location.
func Normalize(path string, query url.Values, now time.Time) (Outcome, error) {
	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}

	// Pass 1: defaults.
	defaulted := false
	to := q.Get("to")
	if to == "" {
		to = now.UTC().Format(DateLayout)
		q.Set("to", to)
		defaulted = true
	}
	from := q.Get("from")
	if from == "" {
		from = to
		q.Set("from", from)
		defaulted = true
	}
	if defaulted {
		return Outcome{Redirect: &Redirect{
			Location: path + "?" + q.Encode(),
			Status:   http.StatusFound,
			MaxAge:   10 * time.Minute,
		}}, nil
	}

	// Pass 2: format.
	fromDate, fromTruncated, err := canonicalDate("from", from)
	if err != nil {
		return Outcome{}, err
	}
	toDate, toTruncated, err := canonicalDate("to", to)
	if err != nil {
		return Outcome{}, err
	}
	if fromTruncated || toTruncated {
		q.Set("from", fromDate)
		q.Set("to", toDate)
		return Outcome{Redirect: &Redirect{
			Location: path + "?" + q.Encode(),
			Status:   http.StatusMovedPermanently,
			MaxAge:   24 * time.Hour,
		}}, nil
	}

	return Outcome{Window: Window{From: fromDate, To: toDate}}, nil
}

// canonicalDate validates a raw parameter value against the two accepted forms
// and returns the date-only representation, flagging whether a timestamp was
// truncated to produce it.
func canonicalDate(field, value string) (string, bool, error) {
	if _, err := time.Parse(DateLayout, value); err == nil {
		return value, false, nil
	}
	if t, err := time.Parse(TimestampLayout, value); err == nil {
		return t.UTC().Format(DateLayout), true, nil
	}
	return "", false, &BadRequestError{Field: field, Value: value}
}
