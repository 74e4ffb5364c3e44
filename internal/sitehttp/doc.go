// Package sitehttp is the public JSON API under /api: site content, SEO,
// ventures, timeline, the contact form and the media kit.
//
// Reads are cacheable for a short window. The contact form is rate limited
// per client IP and only accepted from same-origin pages.
package sitehttp
