package content

import (
	"context"
	"encoding/csv"
	"io"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/prabhakardwivedi/corpsite/internal/store"
	"github.com/prabhakardwivedi/corpsite/internal/xerrors"
)

// Lead statuses as stored
const (
	StatusNew        = "New"
	StatusInProgress = "In Progress"
	StatusClosed     = "Closed"
)

// Statuses is the set an admin may assign
var Statuses = []string{StatusNew, StatusInProgress, StatusClosed}

// DefaultCategory is used when a contact form names none
const DefaultCategory = "business"

// Categories offered by the contact form
var Categories = []string{"business", "investment", "project", "partnership", "general"}

// NormalizeStatus maps case and spacing variants onto Statuses
func NormalizeStatus(s string) (string, bool) {
	switch strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)) {
	case "new":
		return StatusNew, true
	case "inprogress":
		return StatusInProgress, true
	case "closed":
		return StatusClosed, true
	}
	return s, false
}

type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func leadFromRow(r store.Row) Lead {
	return Lead{
		ID:        r.String("id"),
		Name:      r.String("name"),
		Email:     r.String("email"),
		Phone:     r.String("phone"),
		Category:  r.String("category"),
		Message:   r.String("message"),
		Status:    r.String("status"),
		CreatedAt: r.Time("created_at"),
	}
}

// ContactForm is the public enquiry submission
type ContactForm struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Company  string `json:"company"`
	Phone    string `json:"phone"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// composeMessage prefixes the optional subject and company lines
func (f ContactForm) composeMessage() string {
	var parts []string
	if s := strings.TrimSpace(f.Subject); s != "" {
		parts = append(parts, "Subject: "+s)
	}
	if c := strings.TrimSpace(f.Company); c != "" {
		parts = append(parts, "Company: "+c)
	}
	parts = append(parts, strings.TrimSpace(f.Message))
	return strings.Join(parts, "\n\n")
}

func (f ContactForm) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return invalid("name", "is required")
	}
	email := strings.TrimSpace(f.Email)
	if email == "" {
		return invalid("email", "is required")
	}
	if a, err := mail.ParseAddress(email); err != nil || a.Address != email {
		return invalid("email", "is not a valid address")
	}
	if strings.TrimSpace(f.Message) == "" {
		return invalid("message", "is required")
	}
	return nil
}

// SubmitContact stores one new lead from a public form
func (s *Service) SubmitContact(ctx context.Context, f ContactForm) (Lead, error) {
	if err := f.validate(); err != nil {
		return Lead{}, err
	}
	cat := strings.ToLower(strings.TrimSpace(f.Category))
	if cat == "" {
		cat = DefaultCategory
	}
	got, err := s.db.Insert(ctx, TableLeads, store.Row{
		"id":         s.newID(),
		"name":       strings.TrimSpace(f.Name),
		"email":      strings.TrimSpace(f.Email),
		"phone":      nullable(strings.TrimSpace(f.Phone)),
		"category":   cat,
		"message":    f.composeMessage(),
		"status":     StatusNew,
		"created_at": s.stamp(),
	})
	s.countWrite("lead", err)
	if err != nil {
		return Lead{}, xerrors.Wrap(err, "submit contact")
	}
	if s.metrics != nil {
		label := "other"
		if slices.Contains(Categories, cat) {
			label = cat
		}
		s.metrics.IncLeadSubmitted(label)
	}
	lead := leadFromRow(got)
	s.logger.Info(ctx, "lead submitted", "lead_id", lead.ID, "category", cat)
	return lead, nil
}

// ListLeads returns every lead, newest first
func (s *Service) ListLeads(ctx context.Context) ([]Lead, error) {
	rows, err := s.db.Select(ctx, TableLeads, store.Query{
		OrderBy: []store.Order{store.Desc("created_at"), store.Asc("id")},
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "list leads")
	}
	out := make([]Lead, 0, len(rows))
	for _, r := range rows {
		out = append(out, leadFromRow(r))
	}
	return out, nil
}

// UpdateLeadStatus patches only the status column
func (s *Service) UpdateLeadStatus(ctx context.Context, id, status string) (Lead, error) {
	st, ok := NormalizeStatus(status)
	if !ok {
		return Lead{}, invalid("status", "must be one of "+strings.Join(Statuses, ", "))
	}
	got, err := s.db.Update(ctx, TableLeads, id, store.Row{"status": st})
	s.countWrite("lead", err)
	if err != nil {
		return Lead{}, xerrors.Wrapf(err, "update lead %s", id)
	}
	return leadFromRow(got), nil
}

func (s *Service) DeleteLead(ctx context.Context, id string) error {
	err := s.db.Delete(ctx, TableLeads, id)
	s.countWrite("lead", err)
	if err != nil {
		return xerrors.Wrapf(err, "delete lead %s", id)
	}
	return nil
}

// FilterLeads keeps leads whose name or email contains search, ignoring
// case, and whose status matches. An empty status or "All" matches any.
func FilterLeads(leads []Lead, search, status string) []Lead {
	q := strings.ToLower(strings.TrimSpace(search))
	want := ""
	if st := strings.TrimSpace(status); st != "" && !strings.EqualFold(st, "all") {
		want, _ = NormalizeStatus(st)
	}
	out := make([]Lead, 0, len(leads))
	for _, l := range leads {
		if q != "" && !strings.Contains(strings.ToLower(l.Name), q) && !strings.Contains(strings.ToLower(l.Email), q) {
			continue
		}
		if want != "" && l.Status != want {
			continue
		}
		out = append(out, l)
	}
	return out
}

var csvHeader = []string{"Name", "Email", "Phone", "Category", "Message", "Status", "Date"}

// WriteLeadsCSV writes leads as an export sheet with a header row
func WriteLeadsCSV(w io.Writer, leads []Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range leads {
		rec := []string{l.Name, l.Email, l.Phone, l.Category, l.Message, l.Status, l.CreatedAt.UTC().Format(time.RFC3339)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
