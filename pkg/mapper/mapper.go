package mapper

import (
	"strings"

	"github.com/google/uuid"

	"github.com/devraulu/rjmeta/pkg/config"
	"github.com/devraulu/rjmeta/pkg/dlsite"
)

// Region is fixed by the source site's locale; it is never scraped.
const Region = "Japan"

// EntityRef points at a host entity by id when one already exists, or
// by name only when the host should create it on save. ID is uuid.Nil
// in the create case.
type EntityRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (r EntityRef) Existing() bool {
	return r.ID != uuid.Nil
}

// EntityIndex is the host's read-only lookup of existing companies and
// series. Implementations match by exact name, case-insensitively.
type EntityIndex interface {
	CompanyByName(name string) (uuid.UUID, bool)
	SeriesByName(name string) (uuid.UUID, bool)
}

// Buckets are the host's three taxonomy properties. Deployment config
// routes each scraped list into exactly one of them (or drops it).
type Buckets struct {
	Features []string `json:"features,omitempty"`
	Genres   []string `json:"genres,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Mapper turns scraped listing fields into host metadata under one
// deployment's routing configuration. Every method degrades to its
// zero value when the listing is absent.
type Mapper struct {
	cfg   config.MappingConfig
	index EntityIndex
}

func New(cfg config.MappingConfig, index EntityIndex) *Mapper {
	return &Mapper{cfg: cfg, index: index}
}

// Buckets routes the work-format list and then the genre list into the
// configured buckets. A bucket receiving both lists gets them
// concatenated in that order.
func (m *Mapper) Buckets(listing *dlsite.Listing) Buckets {
	var b Buckets
	if listing == nil {
		return b
	}
	b.add(m.cfg.WorkFormats, listing.WorkFormats)
	b.add(m.cfg.Genres, listing.Genres)
	return b
}

func (b *Buckets) add(bucket string, values []string) {
	if len(values) == 0 {
		return
	}
	switch bucket {
	case "features":
		b.Features = append(b.Features, values...)
	case "genres":
		b.Genres = append(b.Genres, values...)
	case "tags":
		b.Tags = append(b.Tags, values...)
	}
}

// Developers maps the credited contributors whose roles are enabled
// into company references, deduplicated case-insensitively in page
// order.
func (m *Mapper) Developers(listing *dlsite.Listing) []EntityRef {
	if listing == nil {
		return nil
	}

	var refs []EntityRef
	seen := make(map[string]bool)
	for _, contrib := range listing.Contributors {
		if !m.roleEnabled(contrib.Role) {
			continue
		}
		key := strings.ToLower(contrib.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, m.companyRef(contrib.Name))
	}
	return refs
}

// SeriesRef resolves the listing's series name against the host index,
// falling back to a create-by-name reference.
func (m *Mapper) SeriesRef(listing *dlsite.Listing) (EntityRef, bool) {
	if listing == nil || listing.Series == "" {
		return EntityRef{}, false
	}
	if id, ok := m.index.SeriesByName(listing.Series); ok {
		return EntityRef{ID: id, Name: listing.Series}, true
	}
	return EntityRef{Name: listing.Series}, true
}

// Publisher maps the circle name directly; no identity lookup.
func (m *Mapper) Publisher(listing *dlsite.Listing) (string, bool) {
	if listing == nil || listing.Circle == "" {
		return "", false
	}
	return listing.Circle, true
}

func (m *Mapper) Regions(listing *dlsite.Listing) []string {
	if listing == nil {
		return nil
	}
	return []string{Region}
}

func (m *Mapper) companyRef(name string) EntityRef {
	if id, ok := m.index.CompanyByName(name); ok {
		return EntityRef{ID: id, Name: name}
	}
	return EntityRef{Name: name}
}

func (m *Mapper) roleEnabled(role string) bool {
	switch role {
	case dlsite.RoleAuthor:
		return m.cfg.Roles.Author
	case dlsite.RoleScenario:
		return m.cfg.Roles.Scenario
	case dlsite.RoleIllustration:
		return m.cfg.Roles.Illustration
	case dlsite.RoleVoice:
		return m.cfg.Roles.Voice
	case dlsite.RoleMusic:
		return m.cfg.Roles.Music
	}
	return false
}
