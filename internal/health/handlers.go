package health

import (
	"encoding/json"
	"net/http"
)

type status struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func handler(p Probe, okWord string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		body := status{Status: okWord}
		code := http.StatusOK
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				body = status{Status: "unavailable", Reason: err.Error()}
				code = http.StatusServiceUnavailable
			}
		}
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// HealthzHandler answers 200 {"status":"ok"} while p passes, 503 with the
// reason otherwise. A nil probe is healthy.
func HealthzHandler(p Probe) http.HandlerFunc { return handler(p, "ok") }

// ReadyzHandler is HealthzHandler reporting "ready".
func ReadyzHandler(p Probe) http.HandlerFunc { return handler(p, "ready") }
