package sitehttp

import (
	"errors"
	"net/http"

	"github.com/prabhakardwivedi/corpsite/internal/content"
	"github.com/prabhakardwivedi/corpsite/internal/jsonapi"
	"github.com/prabhakardwivedi/corpsite/internal/log"
	"github.com/prabhakardwivedi/corpsite/internal/mediakit"
	"github.com/prabhakardwivedi/corpsite/internal/store"
)

// writeError maps err onto a status and a client-safe message. Failures of
// the backing store are logged and reported as 502, the rest of the 5xx
// family as 500.
func (rt *Routes) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	var (
		ve *content.ValidationError
		se *store.StoreError
	)
	if re, ok := jsonapi.AsRequestError(err); ok {
		jsonapi.Error(w, re.Status, re.Msg)
		return
	}
	switch {
	case errors.As(err, &ve):
		jsonapi.Error(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, mediakit.ErrUnknownAsset),
		errors.Is(err, mediakit.ErrNotConfigured):
		jsonapi.Error(w, http.StatusNotFound, "not found")
	case store.IsDuplicate(err):
		jsonapi.Error(w, http.StatusConflict, "already exists")
	case errors.As(err, &se):
		log.FromContext(ctx).Error(ctx, err, msg, "table", se.Table, "op", se.Op)
		jsonapi.Error(w, http.StatusBadGateway, "content store unavailable")
	default:
		log.FromContext(ctx).Error(ctx, err, msg)
		jsonapi.Error(w, http.StatusInternalServerError, "internal error")
	}
}
