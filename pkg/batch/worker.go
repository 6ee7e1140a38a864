package batch

import (
	"context"
	"log/slog"
)

func (r *Runner) worker(ctx context.Context, id int, jobs <-chan string, results chan<- Result) {
	slog.Info("worker started", "id", id)
	for {
		select {
		case <-ctx.Done():
			return
		case query, ok := <-jobs:
			if !ok {
				return
			}
			slog.Debug("worker received job", slog.Int("id", id), slog.String("query", query))
			results <- r.Lookup(ctx, query, true)
		}
	}
}
