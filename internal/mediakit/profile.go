package mediakit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/prabhakardwivedi/corpsite/internal/content"
	"github.com/prabhakardwivedi/corpsite/internal/cryptoutil"
	"github.com/prabhakardwivedi/corpsite/internal/xerrors"
)

// ContentSource is the read side of content.Service the profile needs.
type ContentSource interface {
	GetContentBundle(ctx context.Context) (content.Bundle, error)
	ListVentures(ctx context.Context) ([]content.Venture, error)
	ListTimeline(ctx context.Context) ([]content.TimelineItem, error)
}

type ProfileData struct {
	Bundle   content.Bundle         `json:"bundle"`
	Ventures []content.Venture      `json:"ventures"`
	Timeline []content.TimelineItem `json:"timeline"`
}

// Profile is a rendered PDF with a content-derived ETag.
type Profile struct {
	PDF  []byte
	ETag string
}

type renderedProfile struct {
	digest string
	out    Profile
}

func loadProfileData(ctx context.Context, src ContentSource) (ProfileData, error) {
	var d ProfileData
	var err error
	if d.Bundle, err = src.GetContentBundle(ctx); err != nil {
		return d, xerrors.Wrap(err, "profile content")
	}
	if d.Ventures, err = src.ListVentures(ctx); err != nil {
		return d, xerrors.Wrap(err, "profile ventures")
	}
	if d.Timeline, err = src.ListTimeline(ctx); err != nil {
		return d, xerrors.Wrap(err, "profile timeline")
	}
	return d, nil
}

// Profile renders the executive profile from live content. The last render
// is reused while the underlying content is unchanged.
func (k *Kit) Profile(ctx context.Context, src ContentSource) (Profile, error) {
	d, err := loadProfileData(ctx, src)
	if err != nil {
		return Profile{}, err
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return Profile{}, xerrors.Wrap(err, "profile digest")
	}
	digest := cryptoutil.SHA256Hex(raw)

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.profile != nil && k.profile.digest == digest {
		k.countDownload(ProfileAsset)
		return k.profile.out, nil
	}

	var buf bytes.Buffer
	if err := RenderProfile(&buf, d, k.now()); err != nil {
		return Profile{}, err
	}
	out := Profile{PDF: buf.Bytes(), ETag: cryptoutil.StrongETag(digest[:32])}
	k.profile = &renderedProfile{digest: digest, out: out}
	k.logger.Info(ctx, "media kit profile rendered", "bytes", len(out.PDF), "ventures", len(d.Ventures), "milestones", len(d.Timeline))
	k.countDownload(ProfileAsset)
	return out, nil
}

const (
	pageBottom = 270.0
	bodyWidth  = 182.0
)

// RenderProfile writes an A4 PDF: hero, biography, principles, ventures
// grouped by vertical and the milestone timeline.
func RenderProfile(w io.Writer, d ProfileData, generated time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 18)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	headline := d.Bundle.Get("hero", "headline")
	pdf.SetTitle(tr(headline+" - Executive Profile"), false)
	pdf.SetAuthor(tr(headline), false)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, tr("Generated "+generated.UTC().Format("2 January 2006")), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.MultiCell(bodyWidth, 10, tr(headline), "", "L", false)
	if sub := d.Bundle.Get("hero", "subheadline"); sub != "" {
		pdf.SetFont("Helvetica", "", 12)
		pdf.SetTextColor(80, 80, 80)
		pdf.MultiCell(bodyWidth, 6, tr(sub), "", "L", false)
	}
	pdf.Ln(6)

	section := func(title string) {
		if pdf.GetY() > pageBottom-20 {
			pdf.AddPage()
		}
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(20, 20, 20)
		pdf.CellFormat(0, 8, tr(title), "B", 1, "L", false, 0, "")
		pdf.Ln(2)
	}
	para := func(text string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(40, 40, 40)
		pdf.MultiCell(bodyWidth, 5, tr(text), "", "L", false)
		pdf.Ln(3)
	}

	if bio := d.Bundle.Get("about", "bio"); bio != "" {
		section("Biography")
		para(bio)
	}
	if thesis := d.Bundle.Get("about", "leadershipThesis"); thesis != "" {
		section("Leadership Thesis")
		para(thesis)
	}
	if principles := d.Bundle["principles"]; len(principles) > 0 {
		section("Principles")
		for _, f := range slices.Sorted(maps.Keys(principles)) {
			if v := strings.TrimSpace(principles[f]); v != "" {
				para("- " + v)
			}
		}
	}

	if len(d.Ventures) > 0 {
		groups := content.GroupByVertical(d.Ventures)
		section("Group Companies")
		for _, vertical := range content.Verticals {
			vs := groups[vertical]
			if len(vs) == 0 {
				continue
			}
			pdf.SetFont("Helvetica", "B", 11)
			pdf.SetTextColor(60, 60, 60)
			pdf.CellFormat(0, 7, tr(vertical), "", 1, "L", false, 0, "")
			for _, v := range vs {
				pdf.SetFont("Helvetica", "B", 10)
				pdf.SetTextColor(20, 20, 20)
				pdf.MultiCell(bodyWidth, 5, tr(v.Name), "", "L", false)
				if v.Summary != "" {
					para(v.Summary)
				}
			}
		}
	}

	if len(d.Timeline) > 0 {
		section("Milestones")
		for _, it := range d.Timeline {
			if pdf.GetY() > pageBottom {
				pdf.AddPage()
			}
			y := pdf.GetY()
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetTextColor(20, 20, 20)
			pdf.CellFormat(20, 5, tr(it.Year), "", 0, "L", false, 0, "")
			pdf.MultiCell(bodyWidth-20, 5, tr(it.Title), "", "L", false)
			if it.Description != "" {
				pdf.SetX(34)
				pdf.SetFont("Helvetica", "", 9)
				pdf.SetTextColor(60, 60, 60)
				pdf.MultiCell(bodyWidth-20, 4.5, tr(it.Description), "", "L", false)
			}
			if pdf.GetY() == y {
				pdf.Ln(5)
			}
			pdf.Ln(2)
		}
	}

	if email := d.Bundle.Get("footer", "email"); email != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(20, 20, 20)
		pdf.CellFormat(0, 6, tr("Contact: "+email), "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return xerrors.Wrap(err, "render profile pdf")
	}
	return nil
}
