package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrAuthExpired is returned for any 401. The credential must be purged.
var ErrAuthExpired = errors.New("authentication expired")

// RateLimitError is returned for 429. RetryAfter is zero when the server
// gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// RemoteError covers every other non-2xx status and transport failures
// (Status 0).
type RemoteError struct {
	Status int
	Detail string
	Err    error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("request failed: %v", e.Err)
	case e.Detail != "":
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
	default:
		return fmt.Sprintf("server returned %d", e.Status)
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

// IsAuthExpired reports whether err means the credential is stale.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}

// Describe renders err as a message for the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var rl *RateLimitError
	var re *RemoteError
	switch {
	case errors.As(err, &rl):
		if rl.RetryAfter <= 0 {
			return "Rate limit reached. Please wait a moment and try again."
		}
		return "Rate limit reached. Try again in " + FormatWait(rl.RetryAfter) + "."
	case errors.Is(err, ErrAuthExpired):
		return "Your session has expired. Please log in again."
	case errors.As(err, &re):
		if re.Status == 0 {
			return "Could not reach the server: " + rootCause(re.Err)
		}
		if re.Detail != "" {
			return fmt.Sprintf("Server error (%d): %s", re.Status, re.Detail)
		}
		return fmt.Sprintf("Server error (%d).", re.Status)
	default:
		return err.Error()
	}
}

// FormatWait renders d rounded up to whole seconds, e.g. "2 minutes",
// "1 minute 30 seconds", "45 seconds".
func FormatWait(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	m, s := secs/60, secs%60
	switch {
	case m == 0:
		return plural(s, "second")
	case s == 0:
		return plural(m, "minute")
	default:
		return plural(m, "minute") + " " + plural(s, "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// parseRetryAfter accepts delta-seconds or an HTTP-date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func rootCause(err error) string {
	if err == nil {
		return "unknown error"
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
