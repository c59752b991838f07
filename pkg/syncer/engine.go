package syncer

import (
	"context"
	"errors"
	"time"

	"taskchat/pkg/api"
	"taskchat/pkg/logger"
	"taskchat/pkg/models"
	"taskchat/pkg/store"
	"taskchat/pkg/telemetry"
)

// MessageService is the transport consumed by the engine. *api.Client
// implements it; tests substitute fakes.
type MessageService interface {
	ListMessages(ctx context.Context, project string, offset, limit int) (api.MessagePage, error)
	SendMessage(ctx context.Context, project, author, body string) (models.Message, error)
	DeleteMessage(ctx context.Context, id string) error
}

// ErrNoConversation is returned by Send/Delete/Refresh when no project has
// been selected.
var ErrNoConversation = errors.New("no active conversation")

// Options tune an Engine.
type Options struct {
	// Author stamps outgoing messages.
	Author string
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// PageLimit is the fetch window size; defaults to 500.
	PageLimit int
}

const defaultPageLimit = 500

// Engine owns the message store for one screen/session and converges it
// against the backend: a poller refetches on an interval, the coordinator
// applies user mutations, and every fetched page funnels through the
// reconciler under the store's staleness guard. Construct one per active
// screen and Close it on exit.
type Engine struct {
	svc       MessageService
	store     *store.MessageStore
	poller    *Poller
	coord     *Coordinator
	author    string
	pageLimit int
}

func New(svc MessageService, opts Options) *Engine {
	e := &Engine{
		svc:       svc,
		store:     store.New(),
		author:    opts.Author,
		pageLimit: opts.PageLimit,
	}
	if e.pageLimit <= 0 {
		e.pageLimit = defaultPageLimit
	}
	e.poller = NewPoller(opts.PollInterval, e.applyFetch)
	e.coord = NewCoordinator(svc, e.store, e.applyFetch)
	return e
}

// SelectProject switches the active conversation: the store is cleared
// before any data for the new project loads, and the previous poll loop is
// superseded so its in-flight results are discarded.
func (e *Engine) SelectProject(project string) {
	e.store.Reset(project)
	e.poller.Start(project)
}

// Close stops background polling. The store stays readable.
func (e *Engine) Close() {
	e.poller.Stop()
}

// Messages returns a read-only snapshot of the current ordered view.
func (e *Engine) Messages() []models.Message {
	return e.store.Snapshot()
}

// Watch signals after every applied store mutation. The returned stop func
// unregisters the watcher.
func (e *Engine) Watch() (<-chan struct{}, func()) {
	return e.store.Watch()
}

// Send posts body to the active conversation.
func (e *Engine) Send(ctx context.Context, body string) (models.Message, error) {
	project := e.store.Project()
	if project == "" {
		return models.Message{}, ErrNoConversation
	}
	return e.coord.Send(ctx, project, e.author, body)
}

// Delete soft-deletes a message in the active conversation.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if e.store.Project() == "" {
		return ErrNoConversation
	}
	return e.coord.Delete(ctx, id)
}

// Refresh runs one reconciling fetch immediately (pull-to-refresh). It
// shares the apply path and staleness guard with the poll loop, so it is
// safe to overlap with a scheduled tick.
func (e *Engine) Refresh(ctx context.Context) error {
	project := e.store.Project()
	if project == "" {
		return ErrNoConversation
	}
	return e.applyFetch(ctx, project)
}

// applyFetch fetches the newest window for project and merges it into the
// store. The previous contents are re-read at apply time under the store
// lock, never captured at issue time, so an interleaved send or delete is
// never lost. A result arriving after the store moved to another project is
// dropped.
func (e *Engine) applyFetch(ctx context.Context, project string) error {
	page, err := e.svc.ListMessages(ctx, project, 0, e.pageLimit)
	if err != nil {
		return err
	}

	start := time.Now()
	applied := e.store.Update(project, func(prev []models.Message) []models.Message {
		merged, inferred := Reconcile(prev, page.Items)
		if inferred > 0 {
			telemetry.InferredTombstones.Add(float64(inferred))
		}
		return merged
	})
	if !applied {
		telemetry.StaleDrops.Inc()
		logger.Debug("stale_fetch_dropped", "project", project)
		return nil
	}
	telemetry.ReconcileRuns.Inc()
	telemetry.ReconcileDuration.Observe(time.Since(start).Seconds())
	return nil
}
