package syncer

import (
	"context"

	"taskchat/pkg/logger"
	"taskchat/pkg/models"
	"taskchat/pkg/store"
	"taskchat/pkg/telemetry"
)

// Coordinator serializes user-initiated sends and deletes against the store
// so they never interleave with each other mid-application. Reconciling
// fetches still run concurrently; the store applies every proposal
// atomically against its live contents.
type Coordinator struct {
	svc     MessageService
	store   *store.MessageStore
	refresh func(ctx context.Context, project string) error

	// sem serializes mutations without blocking forever on a dead peer:
	// acquisition respects ctx.
	sem chan struct{}
}

func NewCoordinator(svc MessageService, st *store.MessageStore, refresh func(ctx context.Context, project string) error) *Coordinator {
	return &Coordinator{svc: svc, store: st, refresh: refresh, sem: make(chan struct{}, 1)}
}

func (c *Coordinator) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) release() { <-c.sem }

// Send posts body to project and, on success, appends the server-confirmed
// message locally and triggers one reconciling refetch to pick up concurrent
// messages from other users. On failure the store is left untouched and the
// error is returned; no phantom message appears.
func (c *Coordinator) Send(ctx context.Context, project, author, body string) (models.Message, error) {
	if err := c.acquire(ctx); err != nil {
		return models.Message{}, err
	}
	defer c.release()

	msg, err := c.svc.SendMessage(ctx, project, author, body)
	if err != nil {
		telemetry.SendsTotal.WithLabelValues("error").Inc()
		return models.Message{}, err
	}

	applied := c.store.Update(project, func(prev []models.Message) []models.Message {
		for _, m := range prev {
			if m.ID == msg.ID {
				return prev
			}
		}
		next := append(prev, msg)
		sortMessages(next)
		return next
	})
	if applied {
		telemetry.SendsTotal.WithLabelValues("ok").Inc()
	} else {
		// Conversation switched while the send was in flight; the confirmed
		// message belongs to the old project and must not leak into the new one.
		telemetry.StaleDrops.Inc()
		telemetry.SendsTotal.WithLabelValues("stale").Inc()
		logger.Debug("send_confirm_dropped_stale", "project", project, "id", msg.ID)
	}

	if err := c.refresh(ctx, project); err != nil {
		logger.Warn("post_send_refresh_failed", "project", project, "error", err)
	}
	return msg, nil
}

// Delete removes the message server-side and, only on confirmed success,
// applies an optimistic tombstone locally so the UI reflects the deletion
// before the next poll tick. Failures are returned to the caller with the
// store unchanged.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if err := c.svc.DeleteMessage(ctx, id); err != nil {
		telemetry.DeletesTotal.WithLabelValues("error").Inc()
		return err
	}

	project := c.store.Project()
	c.store.Update(project, func(prev []models.Message) []models.Message {
		for i, m := range prev {
			if m.ID == id {
				prev[i] = m.Tombstone()
				break
			}
		}
		return prev
	})
	telemetry.DeletesTotal.WithLabelValues("ok").Inc()
	return nil
}
