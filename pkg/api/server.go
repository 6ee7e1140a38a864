package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devraulu/rjmeta/pkg/dlsite"
	"github.com/devraulu/rjmeta/pkg/imagecache"
	"github.com/devraulu/rjmeta/pkg/mapper"
	"github.com/devraulu/rjmeta/pkg/match"
	"github.com/devraulu/rjmeta/pkg/provider"
)

// Handler serves the provider over HTTP so host library managers can
// consume it out-of-process. Lookups run unattended; interactive
// selection stays a front-end concern.
type Handler struct {
	svc    *provider.Service
	client *dlsite.Client
	cache  *imagecache.Cache
}

func NewHandler(svc *provider.Service, client *dlsite.Client, cache *imagecache.Cache) *Handler {
	return &Handler{svc: svc, client: client, cache: cache}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(Logging)
	r.Use(Metrics)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", h.search)
		r.Get("/work/{code}", h.work)
		r.Get("/lookup", h.lookup)
		r.Get("/image", h.image)
	})
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"service": "rjmetad", "status": "up"})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		WriteError(w, http.StatusBadRequest, "MISSING_PARAMS", "q required")
		return
	}

	candidates, err := h.client.Search(r.Context(), query)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "site search failed")
		return
	}

	ranked := match.Rank(query, candidates)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(ranked) {
			ranked = ranked[:limit]
		}
	}

	WriteJSON(w, http.StatusOK, ranked)
}

func (h *Handler) work(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if c, ok := dlsite.ExtractCode(code); !ok || c != code {
		WriteError(w, http.StatusBadRequest, "INVALID_CODE", "not a product code")
		return
	}

	listing, err := h.client.FetchWorkByCode(r.Context(), code)
	if errors.Is(err, dlsite.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "no work with that code")
		return
	}
	if err != nil {
		WriteError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "work fetch failed")
		return
	}

	WriteJSON(w, http.StatusOK, listing)
}

// lookupResult is the mapped metadata document one unattended
// resolution produces.
type lookupResult struct {
	Query       string             `json:"query"`
	Name        string             `json:"name,omitempty"`
	Link        string             `json:"link"`
	Publisher   string             `json:"publisher,omitempty"`
	Developers  []mapper.EntityRef `json:"developers,omitempty"`
	Series      *mapper.EntityRef  `json:"series,omitempty"`
	Features    []string           `json:"features,omitempty"`
	Genres      []string           `json:"genres,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	ReleaseDate string             `json:"release_date,omitempty"`
	Description string             `json:"description,omitempty"`
	AgeRating   string             `json:"age_rating,omitempty"`
	Regions     []string           `json:"regions,omitempty"`
	Images      []string           `json:"images,omitempty"`
	CoverPath   string             `json:"cover_path,omitempty"`
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "MISSING_PARAMS", "name required")
		return
	}

	ctx := r.Context()
	session := h.svc.NewSession(provider.Request{Name: name, Unattended: true})

	listing, err := session.Listing(ctx)
	if err != nil {
		LookupsTotal.WithLabelValues("error").Inc()
		WriteError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "listing resolution failed")
		return
	}
	if listing == nil {
		LookupsTotal.WithLabelValues("not_found").Inc()
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "no listing matched")
		return
	}
	LookupsTotal.WithLabelValues("found").Inc()

	result := lookupResult{Query: name, Link: listing.Link}
	if title, ok := session.Name(ctx); ok {
		result.Name = title
	}
	if pub, ok := session.Publisher(ctx); ok {
		result.Publisher = pub
	}
	result.Developers = session.Developers(ctx)
	if series, ok := session.Series(ctx); ok {
		result.Series = &series
	}
	result.Features = session.Features(ctx)
	result.Genres = session.Genres(ctx)
	result.Tags = session.Tags(ctx)
	if date, ok := session.ReleaseDate(ctx); ok {
		result.ReleaseDate = date.Format("2006-01-02")
	}
	if desc, ok := session.Description(ctx); ok {
		result.Description = desc
	}
	if age, ok := session.AgeRating(ctx); ok {
		result.AgeRating = age
	}
	result.Regions = session.Regions(ctx)
	result.Images = session.ProductImages(ctx)

	// Cover download is opt-in; it costs an extra upstream request.
	if r.URL.Query().Get("cover") == "1" {
		if path, ok := session.CoverImage(ctx); ok {
			result.CoverPath = path
		}
	}

	WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) image(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		WriteError(w, http.StatusBadRequest, "MISSING_PARAMS", "url required")
		return
	}
	if u, err := url.Parse(rawURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		WriteError(w, http.StatusBadRequest, "INVALID_URL", "url must be absolute http(s)")
		return
	}

	path, err := h.cache.Get(r.Context(), rawURL, r.URL.Query().Get("ref"))
	if err != nil {
		ImageServesTotal.WithLabelValues("error").Inc()
		WriteError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "image fetch failed")
		return
	}
	ImageServesTotal.WithLabelValues("ok").Inc()

	http.ServeFile(w, r, path)
}
