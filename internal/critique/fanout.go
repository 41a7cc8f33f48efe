package critique

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/uxcritique/internal/domain"
)

// eachItem runs fn for every key with at most s.concurrency calls in flight.
// A failing item becomes an error placeholder under its own key; the others
// are unaffected. The result keeps the order of keys.
func eachItem[T any](ctx context.Context, s *Service, stage string, keys []string, fn func(ctx context.Context, key string) (T, error)) domain.Ordered[domain.Item[T]] {
	results := make([]domain.Item[T], len(keys))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			ctx, span := s.tracer.Start(ctx, "critique."+stage+".item",
				trace.WithAttributes(attribute.String("critique.item", key)))
			v, err := fn(ctx, key)
			endSpan(span, err)
			if err != nil {
				s.logger.WarnContext(ctx, "item failed",
					slog.String("stage", stage),
					slog.String("item", key),
					slog.String("error", err.Error()),
				)
				results[i] = domain.ItemError[T](itemMessage(err))
				return nil
			}
			results[i] = domain.ItemOK(v)
			return nil
		})
	}
	_ = g.Wait()

	var out domain.Ordered[domain.Item[T]]
	for i, key := range keys {
		out.Set(key, results[i])
	}
	return out
}

// keysOf returns the mapping keys of v in document order.
func keysOf(v domain.Value) []string {
	var keys []string
	for k := range v.Entries() {
		keys = append(keys, k)
	}
	return keys
}
