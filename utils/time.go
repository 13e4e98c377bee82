// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// UTCNowAdd returns the current UTC time plus the given duration
func UTCNowAdd(d time.Duration) time.Time {
	return UTCNow().Add(d)
}

// IsExpired checks if the given time is in the past (expired)
func IsExpired(t time.Time) bool {
	return UTCNow().After(t)
}

// TimeToUTCPtr converts a time pointer to UTC if it's not already
func TimeToUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// FormatTimePtr renders an optional timestamp as RFC3339
func FormatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
