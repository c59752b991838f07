// Package storage is the pebble-backed persistence layer of the development
// backend. Messages are stored under sortable timestamp-prefixed keys per
// project, with a secondary index by message id for delete-by-id. Soft
// deletes rewrite the record in place; physical removal happens only via
// PurgeDeleted (the retention sweeper).
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"taskchat/pkg/logger"
	"taskchat/pkg/models"
)

// Store wraps one pebble database.
type Store struct {
	db *pebble.DB
	// seq reduces key collisions when messages share a nanosecond timestamp
	seq uint64
}

// record is the on-disk message envelope; DeletedTS drives retention.
type record struct {
	models.Message
	DeletedTS int64 `json:"deleted_ts,omitempty"`
}

// Open opens (or creates) a pebble database at path.
func Open(path string) (*Store, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func msgKey(project string, ts int64, seq uint64) []byte {
	return []byte(fmt.Sprintf("project:%s:msg:%020d-%06d", project, ts, seq))
}

func msgPrefix(project string) []byte {
	return []byte("project:" + project + ":msg:")
}

func idxKey(id string) []byte { return []byte("msgid:" + id) }

// AppendMessage persists m under a fresh timestamp key and indexes it by id.
// The caller assigns ID and TS.
func (s *Store) AppendMessage(m models.Message) error {
	key := msgKey(m.Project, m.TS, atomic.AddUint64(&s.seq, 1))
	data, err := json.Marshal(record{Message: m})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", "project", m.Project, "key", string(key), "error", err)
		return err
	}
	if err := s.db.Set(idxKey(m.ID), key, pebble.Sync); err != nil {
		return err
	}
	logger.Debug("message_saved", "project", m.Project, "id", m.ID)
	return nil
}

// GetMessage looks a message up by id.
func (s *Store) GetMessage(id string) (models.Message, error) {
	rec, _, err := s.getRecord(id)
	return rec.Message, err
}

func (s *Store) getRecord(id string) (record, []byte, error) {
	kv, closer, err := s.db.Get(idxKey(id))
	if err != nil {
		return record{}, nil, err
	}
	key := append([]byte(nil), kv...)
	closer.Close()

	v, closer, err := s.db.Get(key)
	if err != nil {
		return record{}, nil, err
	}
	defer closer.Close()
	var rec record
	if err := json.Unmarshal(v, &rec); err != nil {
		return record{}, nil, fmt.Errorf("invalid message record: %w", err)
	}
	return rec, key, nil
}

// MarkMessageDeleted tombstones a message in place. Returns pebble.ErrNotFound
// when the id is unknown.
func (s *Store) MarkMessageDeleted(id string) error {
	rec, key, err := s.getRecord(id)
	if err != nil {
		return err
	}
	if rec.Deleted {
		return nil
	}
	rec.Deleted = true
	rec.DeletedTS = time.Now().UTC().UnixNano()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return err
	}
	logger.Debug("message_tombstoned", "id", id)
	return nil
}

// ListMessages returns a window of a project's non-deleted messages ordered
// by insertion (ts, seq), plus the total count. The window is anchored at the
// newest end: offset 0 returns the most recent limit messages, offset n skips
// the n newest. Clients reconcile against the newest window, so a fresh
// arrival must never fall outside the first page.
func (s *Store) ListMessages(project string, offset, limit int) ([]models.Message, int, error) {
	prefix := msgPrefix(project)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, 0, err
	}
	defer iter.Close()

	var all []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			logger.Error("list_invalid_message_json", "key", string(iter.Key()), "error", err)
			continue
		}
		if rec.Deleted {
			continue
		}
		all = append(all, rec.Message)
	}
	total := len(all)
	end := total - offset
	if end <= 0 {
		return []models.Message{}, total, nil
	}
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	return all[start:end], total, nil
}

// PurgeDeleted physically removes tombstoned messages whose deletion is
// older than cutoffNs. Returns the number of records removed.
func (s *Store) PurgeDeleted(cutoffNs int64) (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	var keys [][]byte
	var ids []string
	prefix := []byte("project:")
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.Contains(iter.Key(), []byte(":msg:")) {
			continue
		}
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		if rec.Deleted && rec.DeletedTS > 0 && rec.DeletedTS <= cutoffNs {
			keys = append(keys, append([]byte(nil), iter.Key()...))
			ids = append(ids, rec.ID)
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	for i, k := range keys {
		if err := s.db.Delete(k, pebble.Sync); err != nil {
			return i, err
		}
		_ = s.db.Delete(idxKey(ids[i]), pebble.Sync)
	}
	return len(keys), nil
}

// --- project metadata ---

func projectKey(id string) []byte { return []byte("projmeta:" + id) }

func (s *Store) SaveProject(p models.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.Set(projectKey(p.ID), data, pebble.Sync)
}

func (s *Store) GetProject(id string) (models.Project, error) {
	v, closer, err := s.db.Get(projectKey(id))
	if err != nil {
		return models.Project{}, err
	}
	defer closer.Close()
	var p models.Project
	if err := json.Unmarshal(v, &p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

func (s *Store) ListProjects() ([]models.Project, error) {
	return scanJSON[models.Project](s.db, []byte("projmeta:"))
}

// DeleteProject removes the project metadata; messages stay until retention
// collects them.
func (s *Store) DeleteProject(id string) error {
	return s.db.Delete(projectKey(id), pebble.Sync)
}

// --- tasks ---

func taskKey(project, id string) []byte { return []byte("ptask:" + project + ":" + id) }
func taskIdxKey(id string) []byte       { return []byte("taskid:" + id) }

func (s *Store) SaveTask(t models.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	key := taskKey(t.Project, t.ID)
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return err
	}
	return s.db.Set(taskIdxKey(t.ID), key, pebble.Sync)
}

func (s *Store) GetTask(id string) (models.Task, error) {
	kv, closer, err := s.db.Get(taskIdxKey(id))
	if err != nil {
		return models.Task{}, err
	}
	key := append([]byte(nil), kv...)
	closer.Close()
	v, closer, err := s.db.Get(key)
	if err != nil {
		return models.Task{}, err
	}
	defer closer.Close()
	var t models.Task
	if err := json.Unmarshal(v, &t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

func (s *Store) ListTasks(project string) ([]models.Task, error) {
	return scanJSON[models.Task](s.db, []byte("ptask:"+project+":"))
}

func (s *Store) DeleteTask(id string) error {
	kv, closer, err := s.db.Get(taskIdxKey(id))
	if err != nil {
		return err
	}
	key := append([]byte(nil), kv...)
	closer.Close()
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return err
	}
	return s.db.Delete(taskIdxKey(id), pebble.Sync)
}

// --- members ---

func memberKey(project, user string) []byte { return []byte("pmember:" + project + ":" + user) }

func (s *Store) SaveMember(m models.Member) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Set(memberKey(m.Project, m.User), data, pebble.Sync)
}

func (s *Store) ListMembers(project string) ([]models.Member, error) {
	return scanJSON[models.Member](s.db, []byte("pmember:"+project+":"))
}

func (s *Store) DeleteMember(project, user string) error {
	return s.db.Delete(memberKey(project, user), pebble.Sync)
}

// scanJSON collects every value under prefix decoded as T.
func scanJSON[T any](db *pebble.DB, prefix []byte) ([]T, error) {
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []T
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var v T
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
