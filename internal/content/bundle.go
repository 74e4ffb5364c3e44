package content

import (
	"maps"
	"slices"
	"time"
)

// Attribute is one flat content row. (Section, Field) identifies it.
type Attribute struct {
	Section   string    `json:"section"`
	Field     string    `json:"field"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bundle is the nested view of the content rows: section -> field -> value
type Bundle map[string]map[string]string

// Section declares a known bundle section and its fallback content
type Section struct {
	Name     string
	Default  map[string]string
	Required []string
}

// DefaultSections are the sections the public site renders
func DefaultSections() []Section {
	return []Section{
		{
			Name: "hero",
			Default: map[string]string{
				"headline":    "Er. Prabhakar Dwivedi",
				"subheadline": "Execution-led leadership across Infrastructure & Technology",
				"ctaText":     "Connect for Business",
				"ctaLink":     "/contact",
			},
			Required: []string{"headline"},
		},
		{Name: "about", Default: map[string]string{"bio": "", "leadershipThesis": ""}},
		{Name: "principles", Default: map[string]string{}},
		{Name: "footer", Default: map[string]string{"email": ""}},
	}
}

// Fold groups rows into a bundle. Rows for sections not in sections are
// dropped. A section with no rows gets a copy of its default. A section with
// rows keeps them and only missing required fields come from the default.
func Fold(rows []Attribute, sections []Section) Bundle {
	b := make(Bundle, len(sections))
	known := make(map[string]Section, len(sections))
	for _, s := range sections {
		known[s.Name] = s
	}
	for _, r := range rows {
		if _, ok := known[r.Section]; !ok {
			continue
		}
		m := b[r.Section]
		if m == nil {
			m = make(map[string]string)
			b[r.Section] = m
		}
		m[r.Field] = r.Value
	}
	for _, s := range sections {
		m, ok := b[s.Name]
		if !ok || len(m) == 0 {
			b[s.Name] = maps.Clone(nonNil(s.Default))
			continue
		}
		for _, f := range s.Required {
			if m[f] == "" {
				if v, ok := s.Default[f]; ok {
					m[f] = v
				}
			}
		}
	}
	return b
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// Flatten is the inverse of Fold: one attribute per field, ordered by
// section then field
func Flatten(b Bundle) []Attribute {
	out := make([]Attribute, 0, len(b)*4)
	for _, sec := range slices.Sorted(maps.Keys(b)) {
		fields := b[sec]
		for _, f := range slices.Sorted(maps.Keys(fields)) {
			out = append(out, Attribute{Section: sec, Field: f, Value: fields[f]})
		}
	}
	return out
}

// Clone returns a deep copy of b
func (b Bundle) Clone() Bundle {
	out := make(Bundle, len(b))
	for k, v := range b {
		out[k] = maps.Clone(v)
	}
	return out
}

// Get returns a field value, "" when absent
func (b Bundle) Get(section, field string) string {
	return b[section][field]
}
