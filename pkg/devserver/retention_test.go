package devserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskchat/pkg/devserver/storage"
	"taskchat/pkg/models"
)

func TestRunRetentionOnce(t *testing.T) {
	st, err := storage.Open(t.TempDir() + "/db")
	require.NoError(t, err)
	defer st.Close()

	msgs := []models.Message{
		{ID: "a", Project: "p1", Author: "ann", Body: "keep", TS: 1},
		{ID: "b", Project: "p1", Author: "ann", Body: "purge", TS: 2},
	}
	for _, m := range msgs {
		require.NoError(t, st.AppendMessage(m))
	}
	require.NoError(t, st.MarkMessageDeleted("b"))

	// ttl not yet elapsed, nothing purged
	n, err := RunRetentionOnce(st, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	// zero ttl collects everything already tombstoned
	n, err = RunRetentionOnce(st, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, total, err := st.ListMessages("p1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestStartRetentionRejectsBadCron(t *testing.T) {
	st, err := storage.Open(t.TempDir() + "/db")
	require.NoError(t, err)
	defer st.Close()

	_, err = StartRetention(context.Background(), st, "not a cron", time.Hour)
	assert.Error(t, err)
}

func TestStartRetentionDefaultSchedule(t *testing.T) {
	st, err := storage.Open(t.TempDir() + "/db")
	require.NoError(t, err)
	defer st.Close()

	cancel, err := StartRetention(context.Background(), st, "", time.Hour)
	require.NoError(t, err)
	cancel()
}
