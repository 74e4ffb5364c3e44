package content

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/prabhakardwivedi/corpsite/internal/store"
	"github.com/prabhakardwivedi/corpsite/internal/xerrors"
)

type TimelineItem struct {
	ID           string `json:"id"`
	Year         string `json:"year"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"display_order"`
}

func timelineFromRow(r store.Row) TimelineItem {
	return TimelineItem{
		ID:           r.String("id"),
		Year:         r.String("year"),
		Title:        r.String("title"),
		Description:  r.String("description"),
		DisplayOrder: r.Int("display_order"),
	}
}

// ListTimeline returns every milestone by display order, ties by id
func (s *Service) ListTimeline(ctx context.Context) ([]TimelineItem, error) {
	rows, err := s.db.Select(ctx, TableTimeline, store.Query{
		OrderBy: []store.Order{store.Asc("display_order"), store.Asc("id")},
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "list timeline")
	}
	out := make([]TimelineItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, timelineFromRow(r))
	}
	return out, nil
}

// NewTimelineItem is the blank milestone appended after existing
func (s *Service) NewTimelineItem(existing []TimelineItem) TimelineItem {
	return TimelineItem{
		ID:           s.newID(),
		Year:         strconv.Itoa(s.now().Year()),
		Title:        "New Milestone",
		DisplayOrder: len(existing),
	}
}

// UpsertTimeline writes each item independently keyed by id. Items without
// an id are created. Failures are joined; successful writes are returned.
func (s *Service) UpsertTimeline(ctx context.Context, items []TimelineItem) ([]TimelineItem, error) {
	for i, it := range items {
		if strings.TrimSpace(it.Title) == "" {
			return nil, invalid("items["+strconv.Itoa(i)+"].title", "is required")
		}
		if strings.TrimSpace(it.Year) == "" {
			return nil, invalid("items["+strconv.Itoa(i)+"].year", "is required")
		}
	}
	out := make([]TimelineItem, 0, len(items))
	var errs []error
	for _, it := range items {
		if it.ID == "" {
			it.ID = s.newID()
		}
		got, err := s.db.Upsert(ctx, TableTimeline, []store.Row{{
			"id":            it.ID,
			"year":          strings.TrimSpace(it.Year),
			"title":         strings.TrimSpace(it.Title),
			"description":   strings.TrimSpace(it.Description),
			"display_order": it.DisplayOrder,
		}}, "id")
		s.countWrite("timeline", err)
		if err != nil {
			errs = append(errs, xerrors.Wrapf(err, "upsert timeline %s", it.ID))
			continue
		}
		out = append(out, timelineFromRow(got[0]))
	}
	return out, errors.Join(errs...)
}

func (s *Service) DeleteTimelineItem(ctx context.Context, id string) error {
	err := s.db.Delete(ctx, TableTimeline, id)
	s.countWrite("timeline", err)
	if err != nil {
		return xerrors.Wrapf(err, "delete timeline %s", id)
	}
	return nil
}
