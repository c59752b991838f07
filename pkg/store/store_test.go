package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskchat/pkg/models"
)

func m(id string, project string) models.Message {
	return models.Message{ID: id, Project: project, Author: "ann", Body: "x", TS: 1}
}

func TestReplaceRequiresActiveProject(t *testing.T) {
	s := New()
	s.Reset("p1")

	assert.True(t, s.Replace("p1", []models.Message{m("1", "p1")}))
	assert.False(t, s.Replace("p2", []models.Message{m("2", "p2")}))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "1", snap[0].ID)
}

func TestResetClearsContents(t *testing.T) {
	s := New()
	s.Reset("p1")
	s.Replace("p1", []models.Message{m("1", "p1"), m("2", "p1")})

	s.Reset("p2")
	assert.Equal(t, "p2", s.Project())
	assert.Empty(t, s.Snapshot())

	// mutation computed for the old project is rejected after the switch
	assert.False(t, s.Replace("p1", []models.Message{m("3", "p1")}))
	assert.Empty(t, s.Snapshot())
}

func TestUpdateSeesLiveContentsAtApplyTime(t *testing.T) {
	s := New()
	s.Reset("p1")
	s.Replace("p1", []models.Message{m("1", "p1")})

	// a second writer lands between issue time and apply time
	s.Replace("p1", []models.Message{m("1", "p1"), m("2", "p1")})

	ok := s.Update("p1", func(prev []models.Message) []models.Message {
		require.Len(t, prev, 2) // live contents, not a stale snapshot
		return append(prev, m("3", "p1"))
	})
	require.True(t, ok)
	assert.Len(t, s.Snapshot(), 3)
}

func TestUpdateSkipsFnWhenStale(t *testing.T) {
	s := New()
	s.Reset("p1")

	called := false
	ok := s.Update("p2", func(prev []models.Message) []models.Message {
		called = true
		return prev
	})
	assert.False(t, ok)
	assert.False(t, called)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.Reset("p1")
	s.Replace("p1", []models.Message{m("1", "p1")})

	snap := s.Snapshot()
	snap[0].Body = "mutated"
	assert.Equal(t, "x", s.Snapshot()[0].Body)
}

func TestWatchCoalescesSignals(t *testing.T) {
	s := New()
	ch, stop := s.Watch()
	defer stop()

	s.Reset("p1")
	s.Replace("p1", []models.Message{m("1", "p1")})
	s.Replace("p1", []models.Message{m("1", "p1"), m("2", "p1")})

	// several mutations while nobody reads collapse into one pending signal
	select {
	case <-ch:
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce, not queue")
	default:
	}
}

func TestWatchNotifiedOnReset(t *testing.T) {
	s := New()
	s.Reset("p1")
	s.Replace("p1", []models.Message{m("1", "p1")})

	ch, stop := s.Watch()
	defer stop()
	s.Reset("p2")
	select {
	case <-ch:
	default:
		t.Fatal("reset should notify watchers")
	}
}

func TestWatchStopUnregisters(t *testing.T) {
	s := New()
	s.Reset("p1")
	ch, stop := s.Watch()
	stop()

	s.Replace("p1", []models.Message{m("1", "p1")})
	select {
	case <-ch:
		t.Fatal("stopped watcher must not be signalled")
	default:
	}

	// a later subscriber still works
	ch2, stop2 := s.Watch()
	defer stop2()
	s.Replace("p1", []models.Message{m("1", "p1"), m("2", "p1")})
	select {
	case <-ch2:
	default:
		t.Fatal("live watcher should be signalled")
	}
}

func TestRejectedUpdateDoesNotNotify(t *testing.T) {
	s := New()
	s.Reset("p1")
	ch, stop := s.Watch()
	defer stop()

	s.Replace("p2", []models.Message{m("1", "p2")})
	select {
	case <-ch:
		t.Fatal("rejected mutation must not signal watchers")
	default:
	}
}
