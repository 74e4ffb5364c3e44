package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prabhakardwivedi/corpsite/internal/log"
	"github.com/prabhakardwivedi/corpsite/internal/store"
	"github.com/prabhakardwivedi/corpsite/internal/xerrors"
)

// Table names in the backing store
const (
	TableContent  = "site_content"
	TableSEO      = "seo_settings"
	TableLeads    = "leads"
	TableVentures = "ventures"
	TableTimeline = "timeline"
)

// defaultWriteConcurrency bounds the fan-out of bulk saves
const defaultWriteConcurrency = 8

// Metrics receives the content layer's domain counters
type Metrics interface {
	IncStatsFailure(metric string)
	IncLeadSubmitted(category string)
	IncContentWrite(kind string, err error)
}

type Options struct {
	Logger   log.Logger
	Metrics  Metrics
	Sections []Section
	// WriteConcurrency caps concurrent writes in bulk saves
	WriteConcurrency int
	Now              func() time.Time
	NewID            func() string
}

// Service is the content accessor layer over a store backend
type Service struct {
	db       store.Backend
	logger   log.Logger
	metrics  Metrics
	sections []Section
	known    map[string]bool
	limit    int
	now      func() time.Time
	newID    func() string
}

func NewService(db store.Backend, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Sections == nil {
		opts.Sections = DefaultSections()
	}
	if opts.WriteConcurrency <= 0 {
		opts.WriteConcurrency = defaultWriteConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newID
	}
	known := make(map[string]bool, len(opts.Sections))
	for _, s := range opts.Sections {
		known[s.Name] = true
	}
	return &Service{
		db:       db,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		sections: opts.Sections,
		known:    known,
		limit:    opts.WriteConcurrency,
		now:      opts.Now,
		newID:    opts.NewID,
	}
}

// Sections returns the known bundle sections
func (s *Service) Sections() []Section { return s.sections }

func (s *Service) countWrite(kind string, err error) {
	if s.metrics != nil {
		s.metrics.IncContentWrite(kind, err)
	}
}

func (s *Service) stamp() time.Time { return s.now().UTC() }

// GetContentBundle reads every content row and folds it with the section defaults
func (s *Service) GetContentBundle(ctx context.Context) (Bundle, error) {
	rows, err := s.db.Select(ctx, TableContent, store.Query{})
	if err != nil {
		return nil, xerrors.Wrap(err, "load content")
	}
	attrs := make([]Attribute, 0, len(rows))
	for _, r := range rows {
		attrs = append(attrs, Attribute{
			Section:   r.String("section"),
			Field:     r.String("field"),
			Value:     r.String("value"),
			UpdatedAt: r.Time("updated_at"),
		})
	}
	return Fold(attrs, s.sections), nil
}

// SetContentField upserts the single row keyed by (section, field)
func (s *Service) SetContentField(ctx context.Context, section, field, value string) error {
	section, field = strings.TrimSpace(section), strings.TrimSpace(field)
	if section == "" {
		return invalid("section", "is required")
	}
	if field == "" {
		return invalid("field", "is required")
	}
	if !s.known[section] {
		return invalid("section", fmt.Sprintf("unknown section %q", section))
	}
	_, err := s.db.Upsert(ctx, TableContent, []store.Row{{
		"section":    section,
		"field":      field,
		"value":      value,
		"updated_at": s.stamp(),
	}}, "section", "field")
	s.countWrite("content", err)
	if err != nil {
		return xerrors.Wrapf(err, "save %s.%s", section, field)
	}
	return nil
}

// SaveError lists the keys a bulk save failed to write
type SaveError struct {
	Failed []string
	Err    error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("%d writes failed (%s): %v", len(e.Failed), strings.Join(e.Failed, ", "), e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// bulk runs fn for every key concurrently and joins the failures
func (s *Service) bulk(ctx context.Context, keys []string, fn func(ctx context.Context, i int) error) error {
	var (
		mu     sync.Mutex
		failed []string
		errs   []error
	)
	var g errgroup.Group
	g.SetLimit(s.limit)
	for i := range keys {
		g.Go(func() error {
			if err := fn(ctx, i); err != nil {
				mu.Lock()
				failed = append(failed, keys[i])
				errs = append(errs, err)
				mu.Unlock()
			}
			// a failed write never cancels its siblings
			return nil
		})
	}
	_ = g.Wait()
	if len(errs) == 0 {
		return nil
	}
	return &SaveError{Failed: failed, Err: errors.Join(errs...)}
}

// SaveBundle writes every field of b concurrently. Fields that fail are
// reported in a *SaveError while the rest stay written.
func (s *Service) SaveBundle(ctx context.Context, b Bundle) error {
	for sec := range b {
		if !s.known[sec] {
			return invalid("section", fmt.Sprintf("unknown section %q", sec))
		}
	}
	attrs := Flatten(b)
	keys := make([]string, len(attrs))
	for i, a := range attrs {
		keys[i] = a.Section + "." + a.Field
	}
	return s.bulk(ctx, keys, func(ctx context.Context, i int) error {
		a := attrs[i]
		return s.SetContentField(ctx, a.Section, a.Field, a.Value)
	})
}
