package syncer

import (
	"context"
	"sync"
	"time"

	"taskchat/pkg/logger"
	"taskchat/pkg/telemetry"
)

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = 3 * time.Second

// Poller drives periodic reconciling fetches for the active project. A
// Start for a new project supersedes the running loop: the old loop is
// cancelled and awaited before the new one begins, and any result its
// in-flight fetch produces is discarded by the store's staleness guard.
type Poller struct {
	interval time.Duration
	fetch    func(ctx context.Context, project string) error

	mu      sync.Mutex
	project string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPoller(interval time.Duration, fetch func(ctx context.Context, project string) error) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{interval: interval, fetch: fetch}
}

// Start begins polling for project, superseding any running loop.
func (p *Poller) Start(project string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.project = project
	p.wg.Add(1)
	go p.run(ctx, project)
	logger.Debug("poller_started", "project", project, "interval", p.interval)
}

// Stop halts polling. An in-flight fetch is allowed to complete; its result
// is dropped rather than applied.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.project = ""
	p.wg.Wait()
}

// Active returns the project being polled, if any.
func (p *Poller) Active() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.project, p.cancel != nil
}

func (p *Poller) run(ctx context.Context, project string) {
	defer p.wg.Done()

	tick := func() {
		telemetry.PollTicks.Inc()
		if err := p.fetch(ctx, project); err != nil {
			// Swallowed: freshness is best-effort, the next tick retries.
			telemetry.PollFailures.Inc()
			logger.Warn("poll_fetch_failed", "project", project, "error", err)
		}
	}

	tick()
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("poller_stopped", "project", project)
			return
		case <-t.C:
			tick()
		}
	}
}
