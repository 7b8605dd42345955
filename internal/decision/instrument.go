package decision

import (
	"context"
	"time"

	"github.com/duskcourt/onuw/internal/metrics"
)

// InstrumentedProvider wraps another Provider to record Ask latency by
// prompt kind, without changing the wrapped provider's answers. Used to
// observe both AI and human decision latency through the same metric.
type InstrumentedProvider struct {
	Inner Provider
	M     *metrics.Metrics
}

// Instrument wraps p in an InstrumentedProvider, or returns p unchanged if
// m is nil so callers that don't care about exported metrics can always
// wrap unconditionally.
func Instrument(p Provider, m *metrics.Metrics) Provider {
	if m == nil {
		return p
	}
	return InstrumentedProvider{Inner: p, M: m}
}

func (i InstrumentedProvider) Ask(ctx context.Context, req Request) (Answer, error) {
	start := time.Now()
	ans, err := i.Inner.Ask(ctx, req)
	i.M.DecisionLatencySeconds.WithLabelValues(string(req.Kind)).Observe(time.Since(start).Seconds())
	return ans, err
}
