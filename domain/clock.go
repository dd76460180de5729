package domain

import (
	"sync/atomic"
	"time"
)

// DateLayout is the day-granularity format used by createdDate,
// completedDate and archivedDate.
const DateLayout = "2006-01-02"

var lastStamp int64

// NowMillis returns the current Unix time in milliseconds, strictly
// increasing across calls so that repeated edits within the same
// millisecond still observe a lastModified bump.
func NowMillis() int64 {
	for {
		now := time.Now().UnixMilli()
		last := atomic.LoadInt64(&lastStamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastStamp, last, now) {
			return now
		}
	}
}

// Today returns the current UTC date formatted with DateLayout.
func Today() string {
	return time.Now().UTC().Format(DateLayout)
}

// ValidDate reports whether s is a DateLayout-formatted calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
