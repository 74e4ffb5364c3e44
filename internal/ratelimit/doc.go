// Package ratelimit provides per-IP rate limiting with background eviction
// of stale entries.
//
// Limiters are in-memory and per instance. The public contact form and the
// admin login each get their own named limiter so a flood on one never
// starves the other. Distributed or bandwidth attacks are left to upstream
// filtering.
package ratelimit
