// Package health provides composable probes and the /healthz and /readyz
// handlers served on the ops listener.
//
// Liveness stays cheap: the process answers. Readiness combines the
// [ShutdownGate] with the database ping and, when configured, Redis, so a
// draining instance or one that lost its store stops receiving traffic.
package health
