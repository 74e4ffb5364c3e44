package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// TraceHeaders exposes the request's trace to the caller. traceHeader gets
// the bare trace id; the W3C traceresponse header carries trace, span and
// sampling flags. An admin reporting a failed save quotes the trace id.
type TraceHeaders struct {
	TraceHeader string
	// Traceresponse toggles the W3C header
	Traceresponse bool
}

func (o TraceHeaders) Handler(next http.Handler) http.Handler {
	name := o.TraceHeader
	if name == "" {
		name = "X-Trace-Id"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := trace.SpanContextFromContext(r.Context())
		if sc.IsValid() {
			h := w.Header()
			h.Set(name, sc.TraceID().String())
			if o.Traceresponse {
				h.Set("traceresponse", "00-"+sc.TraceID().String()+"-"+sc.SpanID().String()+"-"+sc.TraceFlags().String())
			}
		}
		next.ServeHTTP(w, r)
	})
}
