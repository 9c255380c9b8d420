// Package monitor coordinates refresh cycles and owns the shared usage
// snapshot read by the CLI and the watch daemon.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"cursortop/internal/aggregator"
	"cursortop/internal/api"
	"cursortop/internal/model"
	"cursortop/internal/token"
)

// Options configure a Monitor. Zero values pick sensible defaults.
type Options struct {
	DBPath      string        // override for the Cursor state database path
	BaseURL     string        // override for the Cursor API host, empty means production
	Interval    time.Duration // refresh period for Run, default 1m
	HTTPTimeout time.Duration // per-request timeout, default 30s
	Logger      *zap.Logger
}

// Monitor runs refresh cycles and publishes exactly one snapshot (or error)
// at a time. Concurrent triggers coalesce into a single in-flight cycle; the
// mutex is held only around snapshot reads and writes, never across network
// calls.
type Monitor struct {
	opts    Options
	logger  *zap.Logger
	group   singleflight.Group
	limiter *rate.Limiter

	// Test seams; default to the real extractor and API pipeline.
	extract func(dbPath string) (*token.Info, error)
	fetch   func(ctx context.Context, info *token.Info) (*model.UsageDisplayData, error)

	mu     sync.RWMutex
	data   *model.UsageDisplayData
	errMsg string
}

// New returns a Monitor with no published snapshot yet.
func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := &Monitor{
		opts:   opts,
		logger: opts.Logger,
		// Pace triggers so a manual refresh racing the timer cannot
		// hammer the remote endpoints. A throttled trigger leaves the
		// current snapshot in place.
		limiter: rate.NewLimiter(rate.Every(5*time.Second), 2),
	}
	m.extract = token.Extract
	m.fetch = m.fetchUsage
	return m
}

// Refresh runs one cycle: re-extract the credential, fetch both endpoints,
// aggregate and publish. The credential is never cached across cycles
// because the stored token may rotate.
func (m *Monitor) Refresh(ctx context.Context) {
	if !m.limiter.Allow() {
		m.logger.Debug("refresh throttled")
		return
	}
	m.group.Do("refresh", func() (any, error) {
		m.refresh(ctx)
		return nil, nil
	})
}

func (m *Monitor) refresh(ctx context.Context) {
	info, err := m.extract(m.opts.DBPath)
	if err != nil {
		// Without a credential any previous snapshot is unverifiable;
		// drop it along with publishing the error.
		m.publishError(fmt.Sprintf("Token error: %v", err), true)
		return
	}

	data, err := m.fetch(ctx, info)
	if err != nil {
		// Keep the stale snapshot; the next cycle may recover.
		m.publishError(fmt.Sprintf("API error: %v", err), false)
		return
	}

	m.publish(data)
	m.logger.Debug("refresh complete",
		zap.Int("models", len(data.LineItems)),
		zap.Int("requests", data.TotalRequests),
		zap.Float64("spend_dollars", data.TotalSpendDollars))
}

// fetchUsage is the production fetch pipeline: billing anchor, then events
// spanning min(billingStart, now-30d)..now, then aggregation.
func (m *Monitor) fetchUsage(ctx context.Context, info *token.Info) (*model.UsageDisplayData, error) {
	client := api.NewClientWithBaseURL(m.opts.BaseURL, info.SessionToken, info.UserID, m.opts.HTTPTimeout)

	billingStart, err := client.FetchBillingPeriodStart(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	fetchStart := now.AddDate(0, 0, -30)
	if billingStart.Before(fetchStart) {
		fetchStart = billingStart
	}

	events, err := client.FetchUsageEvents(ctx, fetchStart, now)
	if err != nil {
		return nil, err
	}

	data := aggregator.Aggregate(billingStart, events, now)
	return &data, nil
}

func (m *Monitor) publish(data *model.UsageDisplayData) {
	m.mu.Lock()
	m.data = data
	m.errMsg = ""
	m.mu.Unlock()
}

func (m *Monitor) publishError(msg string, clearData bool) {
	m.mu.Lock()
	if clearData {
		m.data = nil
	}
	m.errMsg = msg
	m.mu.Unlock()
	m.logger.Warn("refresh failed", zap.String("error", msg))
}

// UsageData returns a copy of the last published snapshot, or nil when no
// successful cycle has completed yet.
func (m *Monitor) UsageData() *model.UsageDisplayData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil
	}
	snap := *m.data
	snap.LineItems = append([]model.LineItem(nil), m.data.LineItems...)
	return &snap
}

// Err returns the last published error message, empty after a successful
// cycle.
func (m *Monitor) Err() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errMsg
}

// Run refreshes immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Refresh(ctx)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}
