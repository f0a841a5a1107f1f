package llm

import (
	"context"

	"contentmachine/internal/metrics"
)

type instrumented struct {
	next     Completer
	provider string
	metrics  *metrics.Metrics
}

// Instrumented counts every completion call of next under provider.
func Instrumented(next Completer, provider string, m *metrics.Metrics) Completer {
	if m == nil {
		return next
	}
	return &instrumented{next: next, provider: provider, metrics: m}
}

func (i *instrumented) Complete(ctx context.Context, req Request) (string, error) {
	text, err := i.next.Complete(ctx, req)
	i.metrics.Completion(i.provider, err)
	return text, err
}
