package provider

import (
	"strings"

	"github.com/devraulu/rjmeta/pkg/dlsite"
	"github.com/devraulu/rjmeta/pkg/imagecache"
	"github.com/devraulu/rjmeta/pkg/mapper"
	"github.com/devraulu/rjmeta/pkg/match"
)

// SiteName labels stored links pointing at the source site. Matching
// is case-insensitive.
const SiteName = "DLsite"

// Link is one of a game's externally stored links.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Request carries one game's identity into a metadata session. It is
// immutable; per-session mutable state lives in the Session.
type Request struct {
	Name       string
	Links      []Link
	Unattended bool
}

// Picker is the interactive front-end. PickWork presents ranked
// candidates and may call research with an edited query for a fresh
// ranking any number of times before settling. PickImage chooses among
// a listing's image URLs. Both report ok=false when the user walks
// away.
type Picker interface {
	PickWork(query string, options []match.Scored, research func(string) []match.Scored) (match.Scored, bool)
	PickImage(urls []string) (string, bool)
}

// Resolve inspects a request for a direct work identity: a name that
// is itself a site URL, a name that is a bare product code, or a
// stored link labeled with the site's name. Pure; no network.
func Resolve(req Request) (string, bool) {
	name := strings.TrimSpace(req.Name)
	if dlsite.IsSiteURL(name) {
		return name, true
	}
	if code, ok := dlsite.ExtractCode(name); ok && code == name {
		return dlsite.WorkURL(code), true
	}
	for _, link := range req.Links {
		if strings.EqualFold(strings.TrimSpace(link.Label), SiteName) && link.URL != "" {
			return link.URL, true
		}
	}
	return "", false
}

// Service bundles the process-wide collaborators a session needs. One
// Service serves any number of concurrent sessions.
type Service struct {
	client *dlsite.Client
	mapper *mapper.Mapper
	cache  *imagecache.Cache
	picker Picker
}

func New(client *dlsite.Client, m *mapper.Mapper, cache *imagecache.Cache, picker Picker) *Service {
	return &Service{
		client: client,
		mapper: m,
		cache:  cache,
		picker: picker,
	}
}

// NewSession opens one metadata-request session. The session is owned
// by the calling goroutine and must not be shared.
func (svc *Service) NewSession(req Request) *Session {
	return &Session{svc: svc, req: req}
}
