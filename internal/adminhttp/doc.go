// Package adminhttp serves the admin panel: the gated admin screens, the
// JSON API under /admin/api and the per-tab session WebSocket.
//
// Every admin response is uncacheable. State-changing requests must come
// from a same-origin page; the session cookie is SameSite=Lax and carries
// no CSRF token of its own.
package adminhttp
