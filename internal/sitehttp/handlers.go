package sitehttp

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/prabhakardwivedi/corpsite/internal/content"
	"github.com/prabhakardwivedi/corpsite/internal/cryptoutil"
	"github.com/prabhakardwivedi/corpsite/internal/jsonapi"
	"github.com/prabhakardwivedi/corpsite/internal/mediakit"
)

func (rt *Routes) getContent(w http.ResponseWriter, r *http.Request) {
	b, err := rt.content.GetContentBundle(r.Context())
	if err != nil {
		rt.writeError(w, r, err, "content read failed")
		return
	}
	jsonapi.Write(w, http.StatusOK, b)
}

func (rt *Routes) getSEO(w http.ResponseWriter, r *http.Request) {
	seo, err := rt.content.GetSEO(r.Context())
	if err != nil {
		rt.writeError(w, r, err, "seo read failed")
		return
	}
	jsonapi.Write(w, http.StatusOK, seo)
}

func (rt *Routes) listVentures(w http.ResponseWriter, r *http.Request) {
	vs, err := rt.content.ListVentures(r.Context())
	if err != nil {
		rt.writeError(w, r, err, "ventures read failed")
		return
	}
	vs = content.FilterVentures(vs, r.URL.Query().Get("vertical"))
	if vs == nil {
		vs = []content.Venture{}
	}
	jsonapi.Write(w, http.StatusOK, vs)
}

func (rt *Routes) getVenture(w http.ResponseWriter, r *http.Request) {
	v, err := rt.content.GetVentureBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		rt.writeError(w, r, err, "venture read failed")
		return
	}
	jsonapi.Write(w, http.StatusOK, v)
}

func (rt *Routes) listTimeline(w http.ResponseWriter, r *http.Request) {
	items, err := rt.content.ListTimeline(r.Context())
	if err != nil {
		rt.writeError(w, r, err, "timeline read failed")
		return
	}
	if items == nil {
		items = []content.TimelineItem{}
	}
	jsonapi.Write(w, http.StatusOK, items)
}

type leadReceipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (rt *Routes) submitLead(w http.ResponseWriter, r *http.Request) {
	var form content.ContactForm
	if err := jsonapi.Decode(r, &form); err != nil {
		rt.writeError(w, r, err, "decode contact form")
		return
	}
	lead, err := rt.content.SubmitContact(r.Context(), form)
	if err != nil {
		rt.writeError(w, r, err, "lead submission failed")
		return
	}
	jsonapi.Write(w, http.StatusCreated, leadReceipt{ID: lead.ID, Status: lead.Status})
}

type mediaKitListing struct {
	Assets []mediaKitAsset `json:"assets"`
}

type mediaKitAsset struct {
	mediakit.Asset
	URL string `json:"url"`
}

func (rt *Routes) listMediaKit(w http.ResponseWriter, r *http.Request) {
	out := mediaKitListing{Assets: []mediaKitAsset{}}
	if rt.kit != nil {
		for _, a := range rt.kit.Assets() {
			out.Assets = append(out.Assets, mediaKitAsset{Asset: a, URL: "/api/media-kit/" + a.Name})
		}
	}
	jsonapi.Write(w, http.StatusOK, out)
}

func (rt *Routes) profilePDF(w http.ResponseWriter, r *http.Request) {
	if rt.kit == nil {
		jsonapi.Error(w, http.StatusNotFound, "not found")
		return
	}
	p, err := rt.kit.Profile(r.Context(), rt.content)
	if err != nil {
		rt.writeError(w, r, err, "profile render failed")
		return
	}
	w.Header().Set("ETag", p.ETag)
	if cryptoutil.ETagMatches(r.Header.Get("If-None-Match"), p.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+mediakit.ProfileAsset+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.PDF)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(p.PDF)
	}
}

func (rt *Routes) downloadAsset(w http.ResponseWriter, r *http.Request) {
	if rt.kit == nil {
		jsonapi.Error(w, http.StatusNotFound, "not found")
		return
	}
	url, _, err := rt.kit.DownloadURL(r.Context(), chi.URLParam(r, "asset"))
	if err != nil {
		rt.writeError(w, r, err, "media kit presign failed")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
