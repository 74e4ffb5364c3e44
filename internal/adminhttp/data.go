package adminhttp

import (
	"bytes"
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prabhakardwivedi/corpsite/internal/content"
	"github.com/prabhakardwivedi/corpsite/internal/jsonapi"
)

func (rt *Routes) getStats(w http.ResponseWriter, r *http.Request) {
	jsonapi.Write(w, http.StatusOK, rt.content.GetStats(r.Context()))
}

// leads

func (rt *Routes) filteredLeads(r *http.Request) ([]content.Lead, error) {
	leads, err := rt.content.ListLeads(r.Context())
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	return content.FilterLeads(leads, q.Get("search"), q.Get("status")), nil
}

func (rt *Routes) listLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := rt.filteredLeads(r)
	if err != nil {
		rt.writeError(w, r, err, "list leads failed")
		return
	}
	jsonapi.Write(w, http.StatusOK, leads)
}

func (rt *Routes) exportLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := rt.filteredLeads(r)
	if err != nil {
		rt.writeError(w, r, err, "export leads failed")
		return
	}
	// buffer so a write failure can still become an error response
	var buf bytes.Buffer
	if err := content.WriteLeadsCSV(&buf, leads); err != nil {
		rt.writeError(w, r, err, "export leads failed")
		return
	}
	name := "leads-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type statusPatch struct {
	Status string `json:"status"`
}

func (rt *Routes) updateLead(w http.ResponseWriter, r *http.Request) {
	var p statusPatch
	if err := jsonapi.Decode(r, &p); err != nil {
		rt.writeError(w, r, err, "decode lead patch")
		return
	}
	lead, err := rt.content.UpdateLeadStatus(r.Context(), chi.URLParam(r, "id"), p.Status)
	if err != nil {
		rt.writeError(w, r, err, "update lead failed")
		return
	}
	jsonapi.Write(w, http.StatusOK, lead)
}

func (rt *Routes) deleteLead(w http.ResponseWriter, r *http.Request) {
	if err := rt.content.DeleteLead(r.Context(), chi.URLParam(r, "id")); err != nil {
		rt.writeError(w, r, err, "delete lead failed")
		return
	}
	jsonapi.NoContent(w)
}

// content

func (rt *Routes) getContent(w http.ResponseWriter, r *http.Request) {
	b, err := rt.content.GetContentBundle(r.Context())
	if err != nil {
		rt.writeError(w, r, err, "content read failed")
		return
	}
	jsonapi.Write(w, http.StatusOK, b)
}

func (rt *Routes) saveContent(w http.ResponseWriter, r *http.Request) {
	var b content.Bundle
	if err := jsonapi.Decode(r, &b); err != nil {
		rt.writeError(w, r, err, "decode content bundle")
		return
	}
	if err := rt.content.SaveBundle(r.Context(), b); err != nil {
		rt.writeError(w, r, err, "content save failed")
		return
	}
	rt.getContent(w, r)
}

type fieldValue struct {
	Value string `json:"value"`
}

func (rt *Routes) setContentField(w http.ResponseWriter, r *http.Request) {
	var v fieldValue
	if err := jsonapi.Decode(r, &v); err != nil {
		rt.writeError(w, r, err, "decode content field")
		return
	}
	section, field := chi.URLParam(r, "section"), chi.URLParam(r, "field")
	if err := rt.content.SetContentField(r.Context(), section, field, v.Value); err != nil {
		rt.writeError(w, r, err, "content field save failed")
		return
	}
	jsonapi.NoContent(w)
}

// seo

func (rt *Routes) getSEO(w http.ResponseWriter, r *http.Request) {
	seo, err := rt.content.GetSEO(r.Context())
	if err != nil {
		rt.writeError(w, r, err, "seo read failed")
		return
	}
	jsonapi.Write(w, http.StatusOK, seo)
}

func (rt *Routes) saveSEO(w http.ResponseWriter, r *http.Request) {
	var entries seoPayload
	if err := jsonapi.Decode(r, &entries); err != nil {
		rt.writeError(w, r, err, "decode seo entries")
		return
	}
	if err := rt.content.SaveSEO(r.Context(), entries); err != nil {
		rt.writeError(w, r, err, "seo save failed")
		return
	}
	rt.getSEO(w, r)
}

// seoPayload accepts either a list of entries or the page-keyed map that
// GET /seo returns
type seoPayload []content.SEOEntry

func (p *seoPayload) UnmarshalJSON(b []byte) error {
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '[' {
		return json.Unmarshal(t, (*[]content.SEOEntry)(p))
	}
	var byPage map[string]content.SEOEntry
	if err := json.Unmarshal(b, &byPage); err != nil {
		return err
	}
	out := make([]content.SEOEntry, 0, len(byPage))
	for _, page := range slices.Sorted(maps.Keys(byPage)) {
		e := byPage[page]
		if e.PagePath == "" {
			e.PagePath = page
		}
		out = append(out, e)
	}
	*p = out
	return nil
}

// ventures

func (rt *Routes) listVentures(w http.ResponseWriter, r *http.Request) {
	vs, err := rt.content.ListVentures(r.Context())
	if err != nil {
		rt.writeError(w, r, err, "ventures read failed")
		return
	}
	jsonapi.Write(w, http.StatusOK, content.FilterVentures(vs, r.URL.Query().Get("vertical")))
}

func (rt *Routes) createVenture(w http.ResponseWriter, r *http.Request) {
	var v content.Venture
	if err := jsonapi.Decode(r, &v); err != nil {
		rt.writeError(w, r, err, "decode venture")
		return
	}
	got, err := rt.content.CreateVenture(r.Context(), v)
	if err != nil {
		rt.writeError(w, r, err, "create venture failed")
		return
	}
	jsonapi.Write(w, http.StatusCreated, got)
}

func (rt *Routes) updateVenture(w http.ResponseWriter, r *http.Request) {
	var v content.Venture
	if err := jsonapi.Decode(r, &v); err != nil {
		rt.writeError(w, r, err, "decode venture")
		return
	}
	got, err := rt.content.UpdateVenture(r.Context(), chi.URLParam(r, "id"), v)
	if err != nil {
		rt.writeError(w, r, err, "update venture failed")
		return
	}
	jsonapi.Write(w, http.StatusOK, got)
}

func (rt *Routes) upsertVentures(w http.ResponseWriter, r *http.Request) {
	var items []content.Venture
	if err := jsonapi.Decode(r, &items); err != nil {
		rt.writeError(w, r, err, "decode ventures")
		return
	}
	if _, err := rt.content.UpsertVentures(r.Context(), items); err != nil {
		rt.writeError(w, r, err, "ventures save failed")
		return
	}
	rt.listVentures(w, r)
}

func (rt *Routes) deleteVenture(w http.ResponseWriter, r *http.Request) {
	if err := rt.content.DeleteVenture(r.Context(), chi.URLParam(r, "id")); err != nil {
		rt.writeError(w, r, err, "delete venture failed")
		return
	}
	jsonapi.NoContent(w)
}

// timeline

func (rt *Routes) listTimeline(w http.ResponseWriter, r *http.Request) {
	items, err := rt.content.ListTimeline(r.Context())
	if err != nil {
		rt.writeError(w, r, err, "timeline read failed")
		return
	}
	jsonapi.Write(w, http.StatusOK, items)
}

func (rt *Routes) upsertTimeline(w http.ResponseWriter, r *http.Request) {
	var items []content.TimelineItem
	if err := jsonapi.Decode(r, &items); err != nil {
		rt.writeError(w, r, err, "decode timeline")
		return
	}
	if _, err := rt.content.UpsertTimeline(r.Context(), items); err != nil {
		rt.writeError(w, r, err, "timeline save failed")
		return
	}
	rt.listTimeline(w, r)
}

// addTimelineItem appends a placeholder milestone after the existing ones
func (rt *Routes) addTimelineItem(w http.ResponseWriter, r *http.Request) {
	existing, err := rt.content.ListTimeline(r.Context())
	if err != nil {
		rt.writeError(w, r, err, "timeline read failed")
		return
	}
	saved, err := rt.content.UpsertTimeline(r.Context(), []content.TimelineItem{rt.content.NewTimelineItem(existing)})
	if err != nil {
		rt.writeError(w, r, err, "timeline add failed")
		return
	}
	jsonapi.Write(w, http.StatusCreated, saved[0])
}

func (rt *Routes) deleteTimelineItem(w http.ResponseWriter, r *http.Request) {
	if err := rt.content.DeleteTimelineItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		rt.writeError(w, r, err, "delete timeline item failed")
		return
	}
	jsonapi.NoContent(w)
}
