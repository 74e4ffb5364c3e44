// Package session gates the admin panel on the hosted auth provider.
//
// Guard owns the belief about whether a session is active. Each mounted
// admin view (an HTTP request for an admin screen, or a long-lived admin
// tab connected over WebSocket) gets a View that starts in CHECKING, moves
// to AUTHORIZED or UNAUTHORIZED after one provider read, and from
// AUTHORIZED re-validates on a timer, on visibility changes and on
// cross-tab session signals. UNAUTHORIZED is terminal for a View and
// produces exactly one redirect to the login screen.
//
// Provider failures while checking read as "no session".
package session
