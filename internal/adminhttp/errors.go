package adminhttp

import (
	"errors"
	"net/http"

	"github.com/prabhakardwivedi/corpsite/internal/content"
	"github.com/prabhakardwivedi/corpsite/internal/jsonapi"
	"github.com/prabhakardwivedi/corpsite/internal/log"
	"github.com/prabhakardwivedi/corpsite/internal/session"
	"github.com/prabhakardwivedi/corpsite/internal/store"
)

type errorBody struct {
	Error string `json:"error"`
	// Failed names the keys a bulk save could not write
	Failed []string `json:"failed,omitempty"`
}

// authStatus maps an auth failure. Provider outages are a gateway problem,
// not a credential problem.
func authStatus(ae *session.AuthError) int {
	switch ae.Reason {
	case session.ReasonUnavailable:
		return http.StatusBadGateway
	case session.ReasonForbidden:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

func (rt *Routes) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	var (
		ve *content.ValidationError
		ae *session.AuthError
		se *store.StoreError
		sv *content.SaveError
	)
	body := errorBody{}
	if errors.As(err, &sv) {
		body.Failed = sv.Failed
	}

	status := http.StatusInternalServerError
	if re, ok := jsonapi.AsRequestError(err); ok {
		status, body.Error = re.Status, re.Msg
		jsonapi.Write(w, status, body)
		return
	}
	switch {
	case errors.As(err, &ve):
		status, body.Error = http.StatusBadRequest, ve.Error()
	case errors.As(err, &ae):
		status = authStatus(ae)
		body.Error = ae.Msg
		if body.Error == "" {
			body.Error = string(ae.Reason)
		}
		if status == http.StatusBadGateway {
			log.FromContext(ctx).Error(ctx, err, msg)
		}
	case errors.Is(err, store.ErrNotFound):
		status, body.Error = http.StatusNotFound, "not found"
	case store.IsDuplicate(err):
		status, body.Error = http.StatusConflict, "already exists"
	case errors.As(err, &se):
		log.FromContext(ctx).Error(ctx, err, msg, "table", se.Table, "op", se.Op, "failed", len(body.Failed))
		status, body.Error = http.StatusBadGateway, "content store unavailable"
	default:
		log.FromContext(ctx).Error(ctx, err, msg)
		body.Error = "internal error"
	}
	jsonapi.Write(w, status, body)
}

func asAuthError(err error) (*session.AuthError, bool) {
	var ae *session.AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
