package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskchat/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir() + "/db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedMessages(t *testing.T, st *Store, project string, n int) []models.Message {
	t.Helper()
	msgs := make([]models.Message, 0, n)
	base := time.Now().UTC().UnixNano()
	for i := 0; i < n; i++ {
		m := models.Message{
			ID:      fmt.Sprintf("m%03d", i),
			Project: project,
			Author:  "ann",
			Body:    fmt.Sprintf("body %d", i),
			TS:      base + int64(i)*1000,
		}
		require.NoError(t, st.AppendMessage(m))
		msgs = append(msgs, m)
	}
	return msgs
}

func TestAppendAndGetMessage(t *testing.T) {
	st := openTestStore(t)
	want := seedMessages(t, st, "p1", 1)[0]

	got, err := st.GetMessage(want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetMessageUnknownID(t *testing.T) {
	st := openTestStore(t)
	_, err := st.GetMessage("nope")
	assert.ErrorIs(t, err, pebble.ErrNotFound)
}

func TestListMessagesOrderedWindow(t *testing.T) {
	st := openTestStore(t)
	seedMessages(t, st, "p1", 10)
	seedMessages(t, st, "p2", 3) // other project, never leaks in

	msgs, total, err := st.ListMessages("p1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	require.Len(t, msgs, 10)
	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].TS, msgs[i].TS)
	}

	// offset counts back from the newest message
	msgs, total, err = st.ListMessages("p1", 4, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m003", msgs[0].ID)
	assert.Equal(t, "m005", msgs[2].ID)

	msgs, total, err = st.ListMessages("p1", 50, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	assert.Empty(t, msgs)
}

func TestListMessagesWindowKeepsNewest(t *testing.T) {
	st := openTestStore(t)
	seedMessages(t, st, "p1", 3) // m000 (oldest) .. m002 (newest)

	msgs, total, err := st.ListMessages("p1", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m001", msgs[0].ID)
	assert.Equal(t, "m002", msgs[1].ID)
}

func TestMarkMessageDeletedHidesFromList(t *testing.T) {
	st := openTestStore(t)
	msgs := seedMessages(t, st, "p1", 3)

	require.NoError(t, st.MarkMessageDeleted(msgs[1].ID))
	// idempotent
	require.NoError(t, st.MarkMessageDeleted(msgs[1].ID))

	listed, total, err := st.ListMessages("p1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, m := range listed {
		assert.NotEqual(t, msgs[1].ID, m.ID)
	}

	assert.ErrorIs(t, st.MarkMessageDeleted("absent"), pebble.ErrNotFound)
}

func TestPurgeDeletedRespectsCutoff(t *testing.T) {
	st := openTestStore(t)
	msgs := seedMessages(t, st, "p1", 3)
	require.NoError(t, st.MarkMessageDeleted(msgs[0].ID))

	// deletion just happened; a cutoff in the past collects nothing
	n, err := st.PurgeDeleted(time.Now().Add(-time.Hour).UTC().UnixNano())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = st.PurgeDeleted(time.Now().Add(time.Hour).UTC().UnixNano())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// record and its id index are gone for good
	_, err = st.GetMessage(msgs[0].ID)
	assert.ErrorIs(t, err, pebble.ErrNotFound)
	_, total, err := st.ListMessages("p1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestPurgeNeverTouchesLiveMessages(t *testing.T) {
	st := openTestStore(t)
	seedMessages(t, st, "p1", 5)

	n, err := st.PurgeDeleted(time.Now().Add(time.Hour).UTC().UnixNano())
	require.NoError(t, err)
	assert.Zero(t, n)
	_, total, err := st.ListMessages("p1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestProjectCRUD(t *testing.T) {
	st := openTestStore(t)
	p := models.Project{ID: "p1", Name: "alpha", Owner: "ann", CreatedTS: 1, UpdatedTS: 1}
	require.NoError(t, st.SaveProject(p))

	got, err := st.GetProject("p1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	all, err := st.ListProjects()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, st.DeleteProject("p1"))
	_, err = st.GetProject("p1")
	assert.ErrorIs(t, err, pebble.ErrNotFound)
}

func TestTaskCRUD(t *testing.T) {
	st := openTestStore(t)
	task := models.Task{ID: "t1", Project: "p1", Title: "ship it", Status: "open", CreatedTS: 1, UpdatedTS: 1}
	require.NoError(t, st.SaveTask(task))

	got, err := st.GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, task, got)

	task.Status = "done"
	require.NoError(t, st.SaveTask(task))
	got, err = st.GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, "done", got.Status)

	list, err := st.ListTasks("p1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, st.DeleteTask("t1"))
	_, err = st.GetTask("t1")
	assert.ErrorIs(t, err, pebble.ErrNotFound)
}

func TestMemberCRUD(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.SaveMember(models.Member{Project: "p1", User: "ann", Role: "admin", AddedTS: 1}))
	require.NoError(t, st.SaveMember(models.Member{Project: "p1", User: "bob", Role: "member", AddedTS: 2}))

	list, err := st.ListMembers("p1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, st.DeleteMember("p1", "bob"))
	list, err = st.ListMembers("p1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ann", list[0].User)
}

func TestMessagesSurviveReopen(t *testing.T) {
	dir := t.TempDir() + "/db"
	st, err := Open(dir)
	require.NoError(t, err)
	seedMessages(t, st, "p1", 2)
	require.NoError(t, st.Close())

	st, err = Open(dir)
	require.NoError(t, err)
	defer st.Close()
	_, total, err := st.ListMessages("p1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
