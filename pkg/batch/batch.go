package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/devraulu/rjmeta/pkg/provider"
)

type Stats struct {
	StartTime time.Time
	Resolved  int
	Missed    int
	Errored   int
}

func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}

func (s *Stats) LookupsPerSecond() float64 {
	elapsed := s.Elapsed().Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(s.Resolved+s.Missed+s.Errored) / elapsed
}

// Runner resolves a list of names unattended on a small worker pool.
// Dispatches are paced by delay so the site sees a polite request rate
// even with several workers.
type Runner struct {
	svc     *provider.Service
	workers int
	delay   time.Duration
	cover   bool
	Stats   Stats
}

func New(svc *provider.Service, workers int, delay time.Duration, cover bool) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		svc:     svc,
		workers: workers,
		delay:   delay,
		cover:   cover,
	}
}

// Run resolves every name and hands each Result to emit in completion
// order. It returns the context's error when cancelled early.
func (r *Runner) Run(ctx context.Context, names []string, emit func(Result)) error {
	r.Stats.StartTime = time.Now()

	jobs := make(chan string, r.workers)
	results := make(chan Result, r.workers)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.worker(ctx, id, jobs, results)
		}(i)
	}

	go func() {
		defer close(jobs)
		for _, name := range names {
			select {
			case jobs <- name:
			case <-ctx.Done():
				return
			}
			if r.delay > 0 {
				select {
				case <-time.After(r.delay):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		r.processResult(res)
		if emit != nil {
			emit(res)
		}
	}

	slog.Info("batch complete",
		slog.Int("resolved", r.Stats.Resolved),
		slog.Int("missed", r.Stats.Missed),
		slog.Int("errored", r.Stats.Errored),
		slog.Duration("elapsed", r.Stats.Elapsed()),
		slog.Float64("lookups_per_sec", r.Stats.LookupsPerSecond()),
	)

	return ctx.Err()
}

func (r *Runner) processResult(res Result) {
	switch {
	case res.Err != nil:
		r.Stats.Errored++
		slog.Error("lookup failed", slog.String("query", res.Query), slog.Any("err", res.Err))
	case res.Listing == nil:
		r.Stats.Missed++
		slog.Info("no match", slog.String("query", res.Query))
	default:
		r.Stats.Resolved++
		slog.Info("lookup success",
			slog.String("query", res.Query),
			slog.String("link", res.Listing.Link),
			slog.Int("resolved", r.Stats.Resolved),
			slog.Float64("lookups_per_sec", r.Stats.LookupsPerSecond()),
		)
	}
}

// Lookup resolves a single name through one session. The batch workers
// run it unattended; interactive callers pass unattended=false and get
// the service's picker involved.
func (r *Runner) Lookup(ctx context.Context, query string, unattended bool) Result {
	res := Result{Query: query}

	sess := r.svc.NewSession(provider.Request{Name: query, Unattended: unattended})
	res.Session = sess

	res.Listing, res.Err = sess.Listing(ctx)
	if res.Err != nil || res.Listing == nil {
		return res
	}

	if r.cover {
		if path, ok := sess.CoverImage(ctx); ok {
			res.CoverPath = path
		}
	}

	return res
}
