package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devraulu/rjmeta/pkg/config"
	"github.com/devraulu/rjmeta/pkg/dlsite"
	"github.com/devraulu/rjmeta/pkg/imagecache"
	"github.com/devraulu/rjmeta/pkg/mapper"
	"github.com/devraulu/rjmeta/pkg/match"
)

const fooBarPage = `<!DOCTYPE html>
<html>
<head>
<link rel="canonical" href="https://www.dlsite.com/maniax/work/=/product_id/RJ246037.html">
</head>
<body>
<h1 id="work_name">Foo Bar</h1>
<table id="work_maker"><tr><th>Maker</th><td><span class="maker_name">Acme Circle</span></td></tr></table>
<table id="work_outline">
<tr><th>Release date</th><td>Jun/30/2018</td></tr>
<tr><th>Illustration</th><td><a href="#c">Carol</a></td></tr>
<tr><th>Product format</th><td><a href="#f">RPG</a></td></tr>
<tr><th>Genre</th><td><a href="#g">Fantasy</a></td></tr>
</table>
<div class="product-slider-data">
<div data-src="/images/RJ246037_img_main.jpg"></div>
<div data-src="/images/RJ246037_img_smp1.jpg"></div>
</div>
<div itemprop="description"><p>A tale.</p></div>
</body>
</html>`

const deluxePage = `<!DOCTYPE html>
<html><body><h1 id="work_name">Foo Bar Deluxe</h1></body></html>`

const barePage = `<!DOCTYPE html>
<html><head><title>x</title></head><body><p>no fields</p></body></html>`

const fooBarResults = `<!DOCTYPE html>
<html><body>
<dl><dt class="work_name"><a href="/maniax/work/=/product_id/RJ246037.html" title="Foo Bar">Foo Bar</a></dt></dl>
<dl><dt class="work_name"><a href="/maniax/work/=/product_id/RJ000001.html" title="Foo Bar Deluxe">Foo Bar Deluxe</a></dt></dl>
</body></html>`

const emptyResults = `<!DOCTYPE html>
<html><body><div class="search_condition_box">no results</div></body></html>`

type fakeSite struct {
	srv *httptest.Server

	mu           sync.Mutex
	workFetches  int
	searches     int
	imageFetches int
	lastReferer  string
}

func (f *fakeSite) bump(counter *int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*counter++
}

func (f *fakeSite) counts() (work, search, image int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workFetches, f.searches, f.imageFetches
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	f := &fakeSite{}

	mux := http.NewServeMux()
	mux.HandleFunc("/maniax/work/=/product_id/", func(w http.ResponseWriter, r *http.Request) {
		f.bump(&f.workFetches)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch {
		case strings.Contains(r.URL.Path, "RJ246037"):
			w.Write([]byte(fooBarPage))
		case strings.Contains(r.URL.Path, "RJ000001"):
			w.Write([]byte(deluxePage))
		case strings.Contains(r.URL.Path, "RJ000003"):
			w.Write([]byte(barePage))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/maniax/fsr/", func(w http.ResponseWriter, r *http.Request) {
		f.bump(&f.searches)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if pathValue(r.URL.Path, "keyword") == "Nothing Here" {
			w.Write([]byte(emptyResults))
			return
		}
		w.Write([]byte(fooBarResults))
	})
	mux.HandleFunc("/images/", func(w http.ResponseWriter, r *http.Request) {
		f.bump(&f.imageFetches)
		f.mu.Lock()
		f.lastReferer = r.Header.Get("Referer")
		f.mu.Unlock()
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func pathValue(path, key string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if s == key && i+1 < len(segs) {
			return segs[i+1]
		}
	}
	return ""
}

func newTestService(t *testing.T, site *fakeSite, picker Picker) *Service {
	t.Helper()

	cfg := config.Default()
	cfg.Site.BaseURL = site.srv.URL

	client := dlsite.NewClient(cfg)
	t.Cleanup(client.Close)

	cache, err := imagecache.New(t.TempDir(), client.HTTPClient(), cfg.Site.UserAgent)
	if err != nil {
		t.Fatalf("imagecache.New() error = %v", err)
	}

	m := mapper.New(cfg.Mapping, mapper.NewMemoryIndex())
	return New(client, m, cache, picker)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
		ok   bool
	}{
		{
			"name is a site url",
			Request{Name: "https://www.dlsite.com/maniax/work/=/product_id/RJ246037.html"},
			"https://www.dlsite.com/maniax/work/=/product_id/RJ246037.html",
			true,
		},
		{
			"name is a bare code",
			Request{Name: " RJ246037 "},
			"https://www.dlsite.com/maniax/work/=/product_id/RJ246037.html",
			true,
		},
		{
			"labeled link",
			Request{Name: "Foo Bar", Links: []Link{
				{Label: "Homepage", URL: "https://example.com"},
				{Label: "dlsite", URL: "https://www.dlsite.com/maniax/work/=/product_id/RJ246037.html"},
			}},
			"https://www.dlsite.com/maniax/work/=/product_id/RJ246037.html",
			true,
		},
		{
			"code buried in a longer name is not direct",
			Request{Name: "My Game RJ246037"},
			"",
			false,
		},
		{
			"plain name must search",
			Request{Name: "Foo Bar"},
			"",
			false,
		},
		{
			"foreign url must search",
			Request{Name: "https://example.com/RJ246037"},
			"",
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.req)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Resolve() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSessionDirectCode(t *testing.T) {
	site := newFakeSite(t)
	svc := newTestService(t, site, nil)
	ctx := context.Background()

	s := svc.NewSession(Request{Name: "RJ246037", Unattended: true})

	name, ok := s.Name(ctx)
	if !ok || name != "Foo Bar" {
		t.Fatalf("Name() = (%q, %v), want (Foo Bar, true)", name, ok)
	}

	// Every further accessor reuses the memoized listing.
	if pub, ok := s.Publisher(ctx); !ok || pub != "Acme Circle" {
		t.Errorf("Publisher() = (%q, %v)", pub, ok)
	}
	if features := s.Features(ctx); len(features) != 1 || features[0] != "RPG" {
		t.Errorf("Features() = %v, want [RPG]", features)
	}
	if genres := s.Genres(ctx); len(genres) != 1 || genres[0] != "Fantasy" {
		t.Errorf("Genres() = %v, want [Fantasy]", genres)
	}
	if tags := s.Tags(ctx); tags != nil {
		t.Errorf("Tags() = %v, want nil under default routing", tags)
	}
	if devs := s.Developers(ctx); len(devs) != 1 || devs[0].Name != "Carol" {
		t.Errorf("Developers() = %v, want [Carol]", devs)
	}
	if date, ok := s.ReleaseDate(ctx); !ok || !date.Equal(time.Date(2018, 6, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ReleaseDate() = (%v, %v)", date, ok)
	}
	if desc, ok := s.Description(ctx); !ok || !strings.Contains(desc, "A tale.") {
		t.Errorf("Description() = (%q, %v)", desc, ok)
	}
	if regions := s.Regions(ctx); len(regions) != 1 || regions[0] != "Japan" {
		t.Errorf("Regions() = %v, want [Japan]", regions)
	}
	links := s.Links(ctx)
	if len(links) != 1 || links[0].Label != SiteName ||
		links[0].URL != "https://www.dlsite.com/maniax/work/=/product_id/RJ246037.html" {
		t.Errorf("Links() = %v", links)
	}
	if _, ok := s.Series(ctx); ok {
		t.Error("Series() should not be ok without a series row")
	}

	work, search, _ := site.counts()
	if work != 1 {
		t.Errorf("work page fetched %d times, want 1", work)
	}
	if search != 0 {
		t.Errorf("search hit %d times for a direct identity, want 0", search)
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestSessionDirectURL(t *testing.T) {
	site := newFakeSite(t)
	svc := newTestService(t, site, nil)
	ctx := context.Background()

	s := svc.NewSession(Request{
		Name:       "https://www.dlsite.com/maniax/work/=/product_id/RJ246037.html",
		Unattended: true,
	})

	listing, err := s.Listing(ctx)
	if err != nil {
		t.Fatalf("Listing() error = %v", err)
	}
	if listing == nil {
		t.Fatal("Listing() = nil for a direct url")
	}
	if want := "https://www.dlsite.com/maniax/work/=/product_id/RJ246037.html"; listing.Link != want {
		t.Errorf("Link = %q, want the exact work url", listing.Link)
	}
	if features := s.Features(ctx); len(features) != 1 || features[0] != "RPG" {
		t.Errorf("Features() = %v, want the work formats routed there by default", features)
	}
}

func TestSessionUnattendedSearchPicksExactMatch(t *testing.T) {
	site := newFakeSite(t)
	svc := newTestService(t, site, nil)
	ctx := context.Background()

	s := svc.NewSession(Request{Name: "Foo Bar", Unattended: true})

	// The deluxe candidate has the smaller numeric id, so an id-driven
	// pick would choose it; score must win instead.
	name, ok := s.Name(ctx)
	if !ok || name != "Foo Bar" {
		t.Fatalf("Name() = (%q, %v), want the exact match", name, ok)
	}

	work, search, _ := site.counts()
	if search != 1 {
		t.Errorf("search hit %d times, want 1", search)
	}
	if work != 1 {
		t.Errorf("work page fetched %d times, want 1", work)
	}
}

func TestSessionSearchNotFound(t *testing.T) {
	site := newFakeSite(t)
	svc := newTestService(t, site, nil)
	ctx := context.Background()

	s := svc.NewSession(Request{Name: "Nothing Here", Unattended: true})

	if _, ok := s.Name(ctx); ok {
		t.Error("Name() should not be ok with no results")
	}
	if devs := s.Developers(ctx); devs != nil {
		t.Errorf("Developers() = %v, want nil", devs)
	}
	if links := s.Links(ctx); links != nil {
		t.Errorf("Links() = %v, want nil", links)
	}
	if _, ok := s.CoverImage(ctx); ok {
		t.Error("CoverImage() should not be ok with no listing")
	}
	if err := s.Err(); err != nil {
		t.Errorf("no results is not a failure, Err() = %v", err)
	}

	_, search, _ := site.counts()
	if search != 1 {
		t.Errorf("search hit %d times, want exactly 1 per session", search)
	}
}

func TestSessionAllFieldsAbsent(t *testing.T) {
	site := newFakeSite(t)
	svc := newTestService(t, site, nil)
	ctx := context.Background()

	s := svc.NewSession(Request{Name: "RJ000003", Unattended: true})

	listing, err := s.Listing(ctx)
	if err != nil {
		t.Fatalf("Listing() error = %v", err)
	}
	if listing == nil || listing.Link == "" {
		t.Fatal("a bare page must still yield a listing with its link")
	}

	if _, ok := s.Name(ctx); ok {
		t.Error("Name() should degrade on a bare page")
	}
	if _, ok := s.ReleaseDate(ctx); ok {
		t.Error("ReleaseDate() should degrade on a bare page")
	}
	if _, ok := s.Description(ctx); ok {
		t.Error("Description() should degrade on a bare page")
	}
	if images := s.ProductImages(ctx); images != nil {
		t.Errorf("ProductImages() = %v, want nil", images)
	}
	if links := s.Links(ctx); len(links) != 1 {
		t.Errorf("Links() = %v, want the work link", links)
	}
}

func TestSessionCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := config.Default()
	cfg.Site.BaseURL = srv.URL
	client := dlsite.NewClient(cfg)
	defer client.Close()

	cache, err := imagecache.New(t.TempDir(), client.HTTPClient(), "")
	if err != nil {
		t.Fatalf("imagecache.New() error = %v", err)
	}
	svc := New(client, mapper.New(cfg.Mapping, mapper.NewMemoryIndex()), cache, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	s := svc.NewSession(Request{Name: "Foo Bar", Unattended: true})

	if _, ok := s.Name(ctx); ok {
		t.Error("Name() should not be ok after a cancelled search")
	}
	if err := s.Err(); err == nil {
		t.Error("Err() should report the cancelled resolution")
	}

	// The failure is memoized; later accessors stay offline.
	if _, ok := s.Publisher(ctx); ok {
		t.Error("Publisher() should not be ok after a cancelled search")
	}
}

type scriptedPicker struct {
	pickTitle    string
	editQuery    string
	imageIndex   int
	walkAway     bool
	gotOptions   []match.Scored
	researchSeen []match.Scored
}

func (p *scriptedPicker) PickWork(query string, options []match.Scored, research func(string) []match.Scored) (match.Scored, bool) {
	p.gotOptions = options
	if p.editQuery != "" {
		p.researchSeen = research(p.editQuery)
	}
	if p.walkAway {
		return match.Scored{}, false
	}
	for _, opt := range options {
		if opt.Title == p.pickTitle {
			return opt, true
		}
	}
	return match.Scored{}, false
}

func (p *scriptedPicker) PickImage(urls []string) (string, bool) {
	if p.walkAway || p.imageIndex >= len(urls) {
		return "", false
	}
	return urls[p.imageIndex], true
}

func TestSessionInteractivePick(t *testing.T) {
	site := newFakeSite(t)
	picker := &scriptedPicker{pickTitle: "Foo Bar Deluxe", editQuery: "foo again"}
	svc := newTestService(t, site, picker)
	ctx := context.Background()

	s := svc.NewSession(Request{Name: "Foo Bar"})

	name, ok := s.Name(ctx)
	if !ok || name != "Foo Bar Deluxe" {
		t.Fatalf("Name() = (%q, %v), want the picked candidate", name, ok)
	}

	if len(picker.gotOptions) != 2 {
		t.Fatalf("picker saw %d options, want 2", len(picker.gotOptions))
	}
	// Ranked: the exact match leads even in interactive mode.
	if picker.gotOptions[0].Title != "Foo Bar" {
		t.Errorf("options[0] = %q, want Foo Bar", picker.gotOptions[0].Title)
	}
	if len(picker.researchSeen) != 2 {
		t.Errorf("live re-search returned %d options, want 2", len(picker.researchSeen))
	}

	_, search, _ := site.counts()
	if search != 2 {
		t.Errorf("search hit %d times, want 2 (initial + re-search)", search)
	}
}

func TestSessionInteractiveWalkAway(t *testing.T) {
	site := newFakeSite(t)
	picker := &scriptedPicker{walkAway: true}
	svc := newTestService(t, site, picker)
	ctx := context.Background()

	s := svc.NewSession(Request{Name: "Foo Bar"})

	if _, ok := s.Name(ctx); ok {
		t.Error("Name() should not be ok when the user walks away")
	}
	if err := s.Err(); err != nil {
		t.Errorf("walking away is not a failure, Err() = %v", err)
	}

	work, _, _ := site.counts()
	if work != 0 {
		t.Errorf("work page fetched %d times without a selection, want 0", work)
	}
}

func TestSessionInteractiveCancelledSearchHasNoOptions(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := config.Default()
	cfg.Site.BaseURL = srv.URL
	client := dlsite.NewClient(cfg)
	defer client.Close()

	cache, err := imagecache.New(t.TempDir(), client.HTTPClient(), "")
	if err != nil {
		t.Fatalf("imagecache.New() error = %v", err)
	}
	picker := &scriptedPicker{walkAway: true}
	svc := New(client, mapper.New(cfg.Mapping, mapper.NewMemoryIndex()), cache, picker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := svc.NewSession(Request{Name: "Foo Bar"})

	if _, ok := s.Name(ctx); ok {
		t.Error("Name() should not be ok")
	}
	if len(picker.gotOptions) != 0 {
		t.Errorf("picker saw %d options from a cancelled search, want 0", len(picker.gotOptions))
	}
	if err := s.Err(); err != nil {
		t.Errorf("interactive cancellation yields no options, not an error; Err() = %v", err)
	}
}

func TestSessionCoverImage(t *testing.T) {
	site := newFakeSite(t)
	svc := newTestService(t, site, nil)
	ctx := context.Background()

	s := svc.NewSession(Request{Name: "RJ246037", Unattended: true})

	first, ok := s.CoverImage(ctx)
	if !ok {
		t.Fatal("CoverImage() not ok")
	}
	if !strings.HasSuffix(first, ".jpg") {
		t.Errorf("CoverImage() = %q, want a .jpg cache path", first)
	}

	again, ok := s.CoverImage(ctx)
	if !ok || again != first {
		t.Errorf("second CoverImage() = (%q, %v), want the same path", again, ok)
	}

	_, _, images := site.counts()
	if images != 1 {
		t.Errorf("image downloaded %d times, want 1", images)
	}

	site.mu.Lock()
	referer := site.lastReferer
	site.mu.Unlock()
	if !strings.HasPrefix(referer, "https://www.dlsite.com/") {
		t.Errorf("image Referer = %q, want the www. work link", referer)
	}
}

func TestSessionCoverImageInteractivePick(t *testing.T) {
	site := newFakeSite(t)
	picker := &scriptedPicker{pickTitle: "Foo Bar", imageIndex: 1}
	svc := newTestService(t, site, picker)
	ctx := context.Background()

	s := svc.NewSession(Request{Name: "https://www.dlsite.com/maniax/work/=/product_id/RJ246037.html"})

	path, ok := s.CoverImage(ctx)
	if !ok {
		t.Fatal("CoverImage() not ok")
	}

	listing, _ := s.Listing(ctx)
	if want := svc.cache.Path(listing.ProductImages[1]); path != want {
		t.Errorf("CoverImage() = %q, want the second image's cache path %q", path, want)
	}
}
