// Package mediakit serves the press downloads: stored assets are handed out
// as short-lived S3 presigned URLs and the executive profile PDF is rendered
// from live site content.
package mediakit
