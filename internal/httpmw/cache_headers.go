package httpmw

import (
	"net/http"
	"strconv"
	"time"
)

// NoStore marks responses as uncacheable. Used for the admin API and
// anything that depends on the session cookie.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// PublicCache allows shared caches to keep successful GET and HEAD responses
// for maxAge. Error responses are sent no-store so an outage is not cached.
// Other methods pass through untouched.
func PublicCache(maxAge time.Duration) func(http.Handler) http.Handler {
	v := "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			cw := &cacheWriter{ResponseWriter: w, value: v}
			next.ServeHTTP(cw, r)
			if !cw.wroteHeader {
				cw.WriteHeader(http.StatusOK)
			}
		})
	}
}

// cacheWriter picks the Cache-Control value once the status is known
type cacheWriter struct {
	http.ResponseWriter
	value       string
	wroteHeader bool
}

func (cw *cacheWriter) WriteHeader(code int) {
	if !cw.wroteHeader {
		cw.wroteHeader = true
		h := cw.Header()
		switch {
		case h.Get("Cache-Control") != "":
			// the handler chose its own policy
		case code < 400:
			h.Set("Cache-Control", cw.value)
		default:
			h.Set("Cache-Control", "no-store")
		}
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *cacheWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	return cw.ResponseWriter.Write(b)
}

func (cw *cacheWriter) Unwrap() http.ResponseWriter { return cw.ResponseWriter }
