// Package devserver is a small pebble-backed implementation of the taskchat
// backend REST surface. It exists so the client engine can be exercised end
// to end without the production service: same endpoints, same JSON, same
// disappearance semantics for deleted messages.
package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskchat/pkg/devserver/storage"
	"taskchat/pkg/logger"
	"taskchat/pkg/models"
	"taskchat/pkg/telemetry"
)

// Server wires the REST handlers to a storage.Store.
type Server struct {
	store   *storage.Store
	limiter *limiterPool
	token   string
}

// Options tune the optional protections. Zero values disable them.
type Options struct {
	// Token, when set, is required as a bearer token on every /v1 request.
	Token string
	// RateRPS/RateBurst cap requests per client IP.
	RateRPS   float64
	RateBurst int
}

// New creates a Server.
func New(st *storage.Store, opts Options) *Server {
	s := &Server{store: st, token: opts.Token}
	if opts.RateRPS > 0 {
		s.limiter = newLimiterPool(opts.RateRPS, opts.RateBurst)
	}
	return s
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	registerDocs(r)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/projects", s.listProjects).Methods(http.MethodGet)
	v1.HandleFunc("/projects", s.createProject).Methods(http.MethodPost)
	v1.HandleFunc("/projects/{id}", s.getProject).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{id}", s.deleteProject).Methods(http.MethodDelete)

	v1.HandleFunc("/projects/{id}/messages", s.listMessages).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{id}/messages", s.createMessage).Methods(http.MethodPost)
	v1.HandleFunc("/messages/{id}", s.deleteMessage).Methods(http.MethodDelete)

	v1.HandleFunc("/projects/{id}/tasks", s.listTasks).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{id}/tasks", s.createTask).Methods(http.MethodPost)
	v1.HandleFunc("/tasks/{id}", s.updateTask).Methods(http.MethodPut)
	v1.HandleFunc("/tasks/{id}", s.deleteTask).Methods(http.MethodDelete)

	v1.HandleFunc("/projects/{id}/members", s.listMembers).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{id}/members", s.addMember).Methods(http.MethodPost)
	v1.HandleFunc("/projects/{id}/members/{user}", s.removeMember).Methods(http.MethodDelete)

	var h http.Handler = r
	if s.token != "" {
		h = requireBearer(s.token, h)
	}
	return s.middleware(h)
}

// middleware applies request logging and per-IP rate limiting.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(remoteKey(r)) {
			telemetry.HTTPRequests.WithLabelValues(r.URL.Path, "429").Inc()
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		telemetry.HTTPRequests.WithLabelValues(r.URL.Path, strconv.Itoa(sw.status)).Inc()
		logger.Debug("http_request", "method", r.Method, "path", r.URL.Path,
			"status", sw.status, "duration", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func remoteKey(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func notFound(err error) bool { return errors.Is(err, pebble.ErrNotFound) }

// --- messages ---

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["id"]
	var m models.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	m.Project = project
	m.ID = uuid.NewString()
	m.TS = time.Now().UTC().UnixNano()
	m.Deleted = false
	if err := validateMessage(m); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.AppendMessage(m); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.touchProject(project, m.TS)
	logger.Info("message_created", "project", project, "id", m.ID)
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["id"]
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	msgs, total, err := s.store.ListMessages(project, offset, limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].TS != msgs[j].TS {
			return msgs[i].TS < msgs[j].TS
		}
		return msgs[i].ID < msgs[j].ID
	})
	writeJSON(w, http.StatusOK, struct {
		Items []models.Message `json:"items"`
		Total int              `json:"total"`
	}{Items: msgs, Total: total})
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.MarkMessageDeleted(id); err != nil {
		if notFound(err) {
			writeErr(w, http.StatusNotFound, "message not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("message_deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// --- projects ---

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var p models.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validateProject(p); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = uuid.NewString()
	p.CreatedTS = time.Now().UTC().UnixNano()
	p.UpdatedTS = p.CreatedTS
	if err := s.store.SaveProject(p); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("project_created", "id", p.ID, "name", p.Name)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listProjects(w http.ResponseWriter, _ *http.Request) {
	ps, err := s.store.ListProjects()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ps == nil {
		ps = []models.Project{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(mux.Vars(r)["id"])
	if err != nil {
		if notFound(err) {
			writeErr(w, http.StatusNotFound, "project not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(mux.Vars(r)["id"]); err != nil && !notFound(err) {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// touchProject bumps UpdatedTS after chat activity, best-effort.
func (s *Server) touchProject(id string, ts int64) {
	p, err := s.store.GetProject(id)
	if err != nil {
		return
	}
	p.UpdatedTS = ts
	_ = s.store.SaveProject(p)
}

// --- tasks ---

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var t models.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	t.Project = mux.Vars(r)["id"]
	if err := validateTask(t); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	t.ID = uuid.NewString()
	if t.Status == "" {
		t.Status = "open"
	}
	t.CreatedTS = time.Now().UTC().UnixNano()
	t.UpdatedTS = t.CreatedTS
	if err := s.store.SaveTask(t); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	ts, err := s.store.ListTasks(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ts == nil {
		ts = []models.Task{}
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existing, err := s.store.GetTask(id)
	if err != nil {
		if notFound(err) {
			writeErr(w, http.StatusNotFound, "task not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	var t models.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	t.ID = existing.ID
	t.Project = existing.Project
	t.CreatedTS = existing.CreatedTS
	if err := validateTask(t); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	t.UpdatedTS = time.Now().UTC().UnixNano()
	if err := s.store.SaveTask(t); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTask(mux.Vars(r)["id"]); err != nil {
		if notFound(err) {
			writeErr(w, http.StatusNotFound, "task not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- members ---

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	var m models.Member
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	m.Project = mux.Vars(r)["id"]
	if err := validateMember(m); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if m.Role == "" {
		m.Role = "member"
	}
	m.AddedTS = time.Now().UTC().UnixNano()
	if err := s.store.SaveMember(m); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	ms, err := s.store.ListMembers(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ms == nil {
		ms = []models.Member{}
	}
	writeJSON(w, http.StatusOK, ms)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.store.DeleteMember(vars["id"], vars["user"]); err != nil && !notFound(err) {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
