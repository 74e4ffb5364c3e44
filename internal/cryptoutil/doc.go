// Package cryptoutil holds the small hashing helpers shared by the session
// guard (revocation keys) and the media kit (ETags).
package cryptoutil
