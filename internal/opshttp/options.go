package opshttp

import (
	"net/http"

	"github.com/prabhakardwivedi/corpsite/internal/health"
)

type Options struct {
	// Addr defaults to ":9000".
	Addr        string
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// OnPanic runs after a recovered panic, typically a metrics counter.
	OnPanic func()
}
