package content

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prabhakardwivedi/corpsite/internal/store"
)

// Stats is the dashboard aggregate
type Stats struct {
	Leads    int `json:"leads"`
	NewLeads int `json:"newLeads"`
	Ventures int `json:"ventures"`
	Timeline int `json:"timeline"`
}

// newLeadWindow is how far back a lead still counts as new
const newLeadWindow = 24 * time.Hour

// GetStats runs the four counts concurrently. A failed count reads as zero
// and never fails the aggregate.
func (s *Service) GetStats(ctx context.Context) Stats {
	var st Stats
	since := s.now().Add(-newLeadWindow).UTC()
	counts := []struct {
		metric string
		table  string
		where  []store.Cond
		dst    *int
	}{
		{"leads", TableLeads, nil, &st.Leads},
		{"new_leads", TableLeads, []store.Cond{store.Where("created_at", store.Gt, since)}, &st.NewLeads},
		{"ventures", TableVentures, nil, &st.Ventures},
		{"timeline", TableTimeline, nil, &st.Timeline},
	}

	var g errgroup.Group
	for _, c := range counts {
		g.Go(func() error {
			n, err := s.db.Count(ctx, c.table, c.where...)
			if err != nil {
				s.logger.Warn(ctx, "dashboard count failed", "metric", c.metric, "err", err.Error())
				if s.metrics != nil {
					s.metrics.IncStatsFailure(c.metric)
				}
				n = 0
			}
			*c.dst = n
			return nil
		})
	}
	_ = g.Wait()
	return st
}
