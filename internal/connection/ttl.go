package connection

import "time"

// expiryDeadline computes the absolute expiry for a record created at now.
// A zero ttl disables expiry and yields the zero time.
func expiryDeadline(now time.Time, ttl time.Duration) time.Time {
	if ttl == 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Expired reports whether the record's lifetime had elapsed at now.
// A record is live through its expiry instant and expired strictly after
// it; records without an expiry never expire.
func (c *Connection) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return c.ExpiresAt.Before(now)
}
