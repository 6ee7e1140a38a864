package provider

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/devraulu/rjmeta/pkg/dlsite"
	"github.com/devraulu/rjmeta/pkg/mapper"
	"github.com/devraulu/rjmeta/pkg/match"
)

// Session is one metadata request's resolution memo plus the field
// accessors the host queries. The first accessor that needs data runs
// the single fetch or search; later calls reuse the memo, so the
// network is hit at most once per session however many fields the host
// asks for. A session belongs to the goroutine that opened it and is
// discarded when the request ends.
type Session struct {
	svc *Service
	req Request

	attempted bool
	listing   *dlsite.Listing
	err       error
}

// Listing resolves and returns the raw listing. This is the session's
// only suspension point; the outcome, including a failure, is memoized
// and never retried. A nil listing with a nil error means the work was
// not found, which is not a failure.
func (s *Session) Listing(ctx context.Context) (*dlsite.Listing, error) {
	if s.attempted {
		return s.listing, s.err
	}
	s.attempted = true

	if target, ok := Resolve(s.req); ok {
		s.listing, s.err = s.fetchTarget(ctx, target)
	} else {
		s.listing, s.err = s.search(ctx)
	}

	switch {
	case s.err != nil:
		slog.Error("listing resolution failed", "game", s.req.Name, "err", s.err)
	case s.listing == nil:
		slog.Info("no listing found", "game", s.req.Name)
	default:
		slog.Debug("listing resolved", "game", s.req.Name, "link", s.listing.Link)
	}
	return s.listing, s.err
}

// Err reports the memoized resolution failure, for hosts that surface
// transport errors instead of silently defaulting.
func (s *Session) Err() error {
	return s.err
}

func (s *Session) fetchTarget(ctx context.Context, target string) (*dlsite.Listing, error) {
	var listing *dlsite.Listing
	var err error
	if code, ok := dlsite.ExtractCode(target); ok {
		listing, err = s.svc.client.FetchWorkByCode(ctx, code)
	} else {
		listing, err = s.svc.client.FetchWork(ctx, target)
	}
	if errors.Is(err, dlsite.ErrNotFound) {
		return nil, nil
	}
	return listing, err
}

func (s *Session) search(ctx context.Context) (*dlsite.Listing, error) {
	query := strings.TrimSpace(s.req.Name)
	if query == "" {
		return nil, nil
	}

	if s.req.Unattended || s.svc.picker == nil {
		candidates, err := s.svc.client.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		best, ok := match.Best(query, candidates)
		if !ok {
			return nil, nil
		}
		return s.fetchTarget(ctx, best.Href)
	}

	// Interactive: a failed or cancelled search presents no options
	// rather than surfacing an error.
	chosen, ok := s.svc.picker.PickWork(query, s.searchRanked(ctx, query), s.rescorer(ctx))
	if !ok {
		return nil, nil
	}
	return s.fetchTarget(ctx, chosen.Href)
}

func (s *Session) searchRanked(ctx context.Context, query string) []match.Scored {
	candidates, err := s.svc.client.Search(ctx, query)
	if err != nil {
		slog.Warn("search failed", "query", query, "err", err)
		return nil
	}
	return match.Rank(query, candidates)
}

// rescorer is handed to the picker so an edited query reruns the
// search live.
func (s *Session) rescorer(ctx context.Context) func(string) []match.Scored {
	return func(query string) []match.Scored {
		query = strings.TrimSpace(query)
		if query == "" {
			return nil
		}
		return s.searchRanked(ctx, query)
	}
}

func (s *Session) Name(ctx context.Context) (string, bool) {
	listing, _ := s.Listing(ctx)
	if listing == nil || listing.Title == "" {
		return "", false
	}
	return listing.Title, true
}

func (s *Session) Developers(ctx context.Context) []mapper.EntityRef {
	listing, _ := s.Listing(ctx)
	return s.svc.mapper.Developers(listing)
}

func (s *Session) Publisher(ctx context.Context) (string, bool) {
	listing, _ := s.Listing(ctx)
	return s.svc.mapper.Publisher(listing)
}

func (s *Session) Series(ctx context.Context) (mapper.EntityRef, bool) {
	listing, _ := s.Listing(ctx)
	return s.svc.mapper.SeriesRef(listing)
}

func (s *Session) Features(ctx context.Context) []string {
	listing, _ := s.Listing(ctx)
	return s.svc.mapper.Buckets(listing).Features
}

func (s *Session) Genres(ctx context.Context) []string {
	listing, _ := s.Listing(ctx)
	return s.svc.mapper.Buckets(listing).Genres
}

func (s *Session) Tags(ctx context.Context) []string {
	listing, _ := s.Listing(ctx)
	return s.svc.mapper.Buckets(listing).Tags
}

func (s *Session) ReleaseDate(ctx context.Context) (time.Time, bool) {
	listing, _ := s.Listing(ctx)
	if listing == nil || listing.ReleaseDate == nil {
		return time.Time{}, false
	}
	return *listing.ReleaseDate, true
}

func (s *Session) Description(ctx context.Context) (string, bool) {
	listing, _ := s.Listing(ctx)
	if listing == nil || listing.Description == "" {
		return "", false
	}
	return listing.Description, true
}

func (s *Session) AgeRating(ctx context.Context) (string, bool) {
	listing, _ := s.Listing(ctx)
	if listing == nil || listing.AgeRating == "" {
		return "", false
	}
	return listing.AgeRating, true
}

func (s *Session) Links(ctx context.Context) []Link {
	listing, _ := s.Listing(ctx)
	if listing == nil {
		return nil
	}
	return []Link{{Label: SiteName, URL: listing.Link}}
}

func (s *Session) Regions(ctx context.Context) []string {
	listing, _ := s.Listing(ctx)
	return s.svc.mapper.Regions(listing)
}

func (s *Session) ProductImages(ctx context.Context) []string {
	listing, _ := s.Listing(ctx)
	if listing == nil {
		return nil
	}
	return listing.ProductImages
}

// CoverImage resolves the chosen image to a local cached file. In
// unattended mode the first image in listing order wins; interactive
// mode asks the picker. Download failures degrade to no image.
func (s *Session) CoverImage(ctx context.Context) (string, bool) {
	listing, _ := s.Listing(ctx)
	if listing == nil {
		return "", false
	}

	urls := listing.ProductImages
	if len(urls) == 0 && listing.CoverURL != "" {
		urls = []string{listing.CoverURL}
	}
	if len(urls) == 0 {
		return "", false
	}

	chosen := urls[0]
	if !s.req.Unattended && s.svc.picker != nil {
		picked, ok := s.svc.picker.PickImage(urls)
		if !ok {
			return "", false
		}
		chosen = picked
	}

	path, err := s.svc.cache.Get(ctx, chosen, listing.Link)
	if err != nil {
		slog.Warn("cover download failed", "url", chosen, "err", err)
		return "", false
	}
	return path, true
}
