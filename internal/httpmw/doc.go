// Package httpmw provides HTTP middleware shared by the public site and the
// admin panel.
//
// httpserver composes them outermost first: panic recovery, security
// headers, request ID, client IP extraction, OTEL tracing, trace response
// headers, metrics, logger injection, access logging, and the chi router.
// Per-route groups add rate limiting, body limits, cache headers and the
// same-origin check for cookie-authenticated writes.
//
// Query strings, user-agents and request bodies are never logged: admin
// searches carry lead names and email addresses.
package httpmw
