// Package metrics wraps MCP tool handlers with rate limiting, a concurrency cap, a per-call
// timeout and Prometheus instrumentation.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Options configures a Middleware. Zero values disable the corresponding limit.
type Options struct {
	RPS            float64
	MaxConcurrency int
	Timeout        time.Duration
}

// Middleware enforces Options around every tool call and records per-tool metrics.
type Middleware struct {
	opts     Options
	sem      chan struct{}
	limiters sync.Map // tool name -> *rate.Limiter

	calls     *prometheus.CounterVec
	failures  *prometheus.CounterVec
	timeouts  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// New creates a Middleware and registers its collectors with reg.
func New(reg prometheus.Registerer, opts Options) (*Middleware, error) {
	m := &Middleware{
		opts: opts,
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_calls_total",
			Help: "Total tool calls",
		}, []string{"tool"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_errors_total",
			Help: "Tool calls that returned an error result",
		}, []string{"tool"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_timeouts_total",
			Help: "Tool calls that exceeded the timeout",
		}, []string{"tool"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tool_duration_seconds",
			Help:    "Tool call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	if opts.MaxConcurrency > 0 {
		m.sem = make(chan struct{}, opts.MaxConcurrency)
	}

	for _, c := range []prometheus.Collector{m.calls, m.failures, m.timeouts, m.durations} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Middleware) limiter(tool string) *rate.Limiter {
	if lim, ok := m.limiters.Load(tool); ok {
		return lim.(*rate.Limiter)
	}
	burst := int(m.opts.RPS)
	if burst < 1 {
		burst = 1
	}
	lim, _ := m.limiters.LoadOrStore(tool, rate.NewLimiter(rate.Limit(m.opts.RPS), burst))
	return lim.(*rate.Limiter)
}

// Wrap returns next guarded by the middleware. Limit failures are reported as error results
// so clients see them the same way as any other tool failure.
func (m *Middleware) Wrap(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tool := req.Params.Name
		m.calls.WithLabelValues(tool).Inc()

		if m.opts.RPS > 0 {
			if err := m.limiter(tool).Wait(ctx); err != nil {
				m.failures.WithLabelValues(tool).Inc()
				return mcp.NewToolResultError(fmt.Sprintf("Unexpected error: rate limit: %v", err)), nil
			}
		}

		if m.sem != nil {
			select {
			case m.sem <- struct{}{}:
			case <-ctx.Done():
				m.failures.WithLabelValues(tool).Inc()
				return mcp.NewToolResultError(fmt.Sprintf("Unexpected error: %v", ctx.Err())), nil
			}
			defer func() { <-m.sem }()
		}

		if m.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
			defer cancel()
		}

		start := time.Now()
		res, err := next(ctx, req)
		m.durations.WithLabelValues(tool).Observe(time.Since(start).Seconds())

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			m.timeouts.WithLabelValues(tool).Inc()
		}
		if err != nil || (res != nil && res.IsError) {
			m.failures.WithLabelValues(tool).Inc()
		}
		return res, err
	}
}
