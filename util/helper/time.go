package helper_util

import "time"

// ParseTime parses an RFC3339 node property, returning the zero time on a
// malformed value.
func ParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// NowSec is the current unix second; edge windows are stored in seconds.
func NowSec() int64 {
	return time.Now().Unix()
}
