package dlsite

import (
	"strings"
	"time"
)

// Contributor roles as they appear in the work outline table.
const (
	RoleAuthor       = "author"
	RoleScenario     = "scenario"
	RoleIllustration = "illustration"
	RoleVoice        = "voice"
	RoleMusic        = "music"
)

type Contributor struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

// Listing is the structured data extracted from one work page. Link is
// always set once a listing exists; every other field is optional and
// absent fields stay zero.
type Listing struct {
	Link          string        `json:"link"`
	Title         string        `json:"title,omitempty"`
	Circle        string        `json:"circle,omitempty"`
	ReleaseDate   *time.Time    `json:"release_date,omitempty"`
	Series        string        `json:"series,omitempty"`
	Contributors  []Contributor `json:"contributors,omitempty"`
	WorkFormats   []string      `json:"work_formats,omitempty"`
	Genres        []string      `json:"genres,omitempty"`
	AgeRating     string        `json:"age_rating,omitempty"`
	Description   string        `json:"description,omitempty"`
	CoverURL      string        `json:"cover_url,omitempty"`
	ProductImages []string      `json:"product_images,omitempty"`
}

// Release date rendering varies with the page locale. Unannounced works
// carry a placeholder instead of a date; anything unparseable is treated
// the same way and the field stays absent.
var releaseDateLayouts = []string{
	"2006年01月02日",
	"Jan/02/2006",
	"2006-01-02",
}

func parseReleaseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// Some locales append the release hour; the date is the first field.
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
