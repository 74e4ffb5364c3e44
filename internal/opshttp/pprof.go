package opshttp

import (
	"net"
	"net/http"
	"net/http/pprof"
)

// RegisterPprof mounts the runtime profiling handlers under /debug/pprof/,
// reachable only from loopback and private peers.
func RegisterPprof(mux *http.ServeMux) {
	mux.Handle("/debug/pprof/", privateOnly(http.HandlerFunc(pprof.Index)))
	mux.Handle("/debug/pprof/cmdline", privateOnly(http.HandlerFunc(pprof.Cmdline)))
	mux.Handle("/debug/pprof/profile", privateOnly(http.HandlerFunc(pprof.Profile)))
	mux.Handle("/debug/pprof/symbol", privateOnly(http.HandlerFunc(pprof.Symbol)))
	mux.Handle("/debug/pprof/trace", privateOnly(http.HandlerFunc(pprof.Trace)))
}

func privateOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !privatePeer(r.RemoteAddr) {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func privatePeer(remote string) bool {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
}
