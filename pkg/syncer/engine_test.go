package syncer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskchat/pkg/api"
	"taskchat/pkg/models"
)

// fakeService is an in-memory backend with tunable failures and latency.
type fakeService struct {
	mu        sync.Mutex
	server    map[string][]models.Message // project -> current server view
	nextID    int
	nextTS    int64
	listCalls map[string]int
	listDelay map[string]time.Duration
	listErr   error
	sendErr   error
	deleteErr error
	// keepOnDelete simulates read-after-write lag: deletes succeed but the
	// message keeps showing up in list responses.
	keepOnDelete bool
}

func newFakeService() *fakeService {
	return &fakeService{
		server:    make(map[string][]models.Message),
		listCalls: make(map[string]int),
		listDelay: make(map[string]time.Duration),
		nextID:    100,
		nextTS:    1000,
	}
}

func (f *fakeService) ListMessages(ctx context.Context, project string, offset, limit int) (api.MessagePage, error) {
	f.mu.Lock()
	delay := f.listDelay[project]
	f.listCalls[project]++
	err := f.listErr
	items := append([]models.Message(nil), f.server[project]...)
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return api.MessagePage{}, ctx.Err()
		}
	}
	if err != nil {
		return api.MessagePage{}, err
	}
	return api.MessagePage{Items: items, Total: len(items)}, nil
}

func (f *fakeService) SendMessage(ctx context.Context, project, author, body string) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return models.Message{}, f.sendErr
	}
	f.nextID++
	f.nextTS += 10
	m := models.Message{
		ID: fmt.Sprintf("%d", f.nextID), Project: project,
		Author: author, Body: body, TS: f.nextTS,
	}
	f.server[project] = append(f.server[project], m)
	return m, nil
}

func (f *fakeService) DeleteMessage(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if f.keepOnDelete {
		return nil
	}
	for project, msgs := range f.server {
		for i, m := range msgs {
			if m.ID == id {
				f.server[project] = append(msgs[:i:i], msgs[i+1:]...)
				return nil
			}
		}
	}
	return api.ErrNotFound
}

func (f *fakeService) calls(project string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[project]
}

func (f *fakeService) seed(project string, msgs ...models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.server[project] = msgs
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

// manual returns an engine with an effectively disabled poll loop so tests
// drive reconciliation through Refresh.
func manual(svc MessageService) *Engine {
	return New(svc, Options{Author: "ann", PollInterval: time.Hour})
}

func TestEngineScenarioSendPollDeletePoll(t *testing.T) {
	svc := newFakeService()
	svc.seed("p1")
	e := manual(svc)
	defer e.Close()
	ctx := context.Background()

	e.SelectProject("p1")
	waitFor(t, func() bool { return svc.calls("p1") >= 1 })
	assert.Empty(t, e.Messages())

	// user sends "hi"; confirmed copy appears exactly once
	sent, err := e.Send(ctx, "hi")
	require.NoError(t, err)
	waitFor(t, func() bool { return len(e.Messages()) == 1 })
	require.Equal(t, sent.ID, e.Messages()[0].ID)
	assert.Equal(t, "hi", e.Messages()[0].Body)

	// next poll returns the same message: no duplication
	require.NoError(t, e.Refresh(ctx))
	msgs := e.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Body)

	// delete with server lag: placeholder shows immediately
	svc.keepOnDelete = true
	require.NoError(t, e.Delete(ctx, sent.ID))
	msgs = e.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Deleted)
	assert.Equal(t, models.DeletedBody, msgs[0].Body)

	// server still returns the live copy: tombstone wins
	require.NoError(t, e.Refresh(ctx))
	msgs = e.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Deleted)
	assert.Equal(t, models.DeletedBody, msgs[0].Body)
}

func TestEngineFailedSendLeavesStoreUntouched(t *testing.T) {
	svc := newFakeService()
	e := manual(svc)
	defer e.Close()
	ctx := context.Background()

	e.SelectProject("p1")
	waitFor(t, func() bool { return svc.calls("p1") >= 1 })

	svc.sendErr = fmt.Errorf("%w: boom", api.ErrNetwork)
	_, err := e.Send(ctx, "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNetwork)
	assert.Empty(t, e.Messages())
}

func TestEngineFailedDeleteLeavesMessageVisible(t *testing.T) {
	svc := newFakeService()
	svc.seed("p1", models.Message{ID: "7", Project: "p1", Body: "keep me", TS: 5})
	e := manual(svc)
	defer e.Close()
	ctx := context.Background()

	e.SelectProject("p1")
	waitFor(t, func() bool { return len(e.Messages()) == 1 })

	svc.deleteErr = fmt.Errorf("%w: gone", api.ErrNotFound)
	err := e.Delete(ctx, "7")
	require.Error(t, err)
	msgs := e.Messages()
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].Deleted)
	assert.Equal(t, "keep me", msgs[0].Body)
}

func TestEngineStaleFetchRejectedAfterProjectSwitch(t *testing.T) {
	svc := newFakeService()
	svc.seed("p1", models.Message{ID: "1", Project: "p1", Body: "old world", TS: 1})
	svc.seed("p2", models.Message{ID: "2", Project: "p2", Body: "new world", TS: 2})
	svc.mu.Lock()
	svc.listDelay["p1"] = 60 * time.Millisecond
	svc.mu.Unlock()

	e := manual(svc)
	defer e.Close()

	e.SelectProject("p1")
	// switch before p1's slow fetch resolves
	e.SelectProject("p2")

	waitFor(t, func() bool { return len(e.Messages()) == 1 })
	time.Sleep(100 * time.Millisecond) // p1 result has resolved and been dropped by now
	msgs := e.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "p2", msgs[0].Project)
	assert.Equal(t, "new world", msgs[0].Body)
}

func TestEnginePollLoopTicksAndStops(t *testing.T) {
	svc := newFakeService()
	e := New(svc, Options{Author: "ann", PollInterval: 10 * time.Millisecond})

	e.SelectProject("p1")
	waitFor(t, func() bool { return svc.calls("p1") >= 3 })
	e.Close()

	n := svc.calls("p1")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, svc.calls("p1"), "no fetches after Close")
}

func TestEnginePollLoopSurvivesFetchErrors(t *testing.T) {
	svc := newFakeService()
	svc.mu.Lock()
	svc.listErr = fmt.Errorf("%w: flaky", api.ErrServer)
	svc.mu.Unlock()

	e := New(svc, Options{Author: "ann", PollInterval: 10 * time.Millisecond})
	defer e.Close()

	e.SelectProject("p1")
	waitFor(t, func() bool { return svc.calls("p1") >= 2 })

	// backend recovers; the loop is still alive and converges
	svc.mu.Lock()
	svc.listErr = nil
	svc.server["p1"] = []models.Message{{ID: "1", Project: "p1", Body: "back", TS: 1}}
	svc.mu.Unlock()
	waitFor(t, func() bool { return len(e.Messages()) == 1 })
}

func TestEngineWatchSignalsOnChange(t *testing.T) {
	svc := newFakeService()
	svc.seed("p1", models.Message{ID: "1", Project: "p1", Body: "a", TS: 1})
	e := manual(svc)
	defer e.Close()

	watch, stop := e.Watch()
	defer stop()
	e.SelectProject("p1")

	select {
	case <-watch:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestEngineOperationsRequireConversation(t *testing.T) {
	e := manual(newFakeService())
	defer e.Close()
	ctx := context.Background()

	_, err := e.Send(ctx, "x")
	assert.ErrorIs(t, err, ErrNoConversation)
	assert.ErrorIs(t, e.Delete(ctx, "1"), ErrNoConversation)
	assert.ErrorIs(t, e.Refresh(ctx), ErrNoConversation)
}

func TestEngineSwitchClearsStoreImmediately(t *testing.T) {
	svc := newFakeService()
	svc.seed("p1", models.Message{ID: "1", Project: "p1", Body: "a", TS: 1})
	e := manual(svc)
	defer e.Close()

	e.SelectProject("p1")
	waitFor(t, func() bool { return len(e.Messages()) == 1 })

	e.SelectProject("p2")
	// the reset is synchronous even though the first p2 fetch is not
	for _, m := range e.Messages() {
		require.NotEqual(t, "p1", m.Project)
	}
}
