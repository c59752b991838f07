package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"taskchat/pkg/logger"
	"taskchat/pkg/models"
)

// MessagePage is one window of a project's messages, newest-complete, as
// returned by the backend list endpoint.
type MessagePage struct {
	Items []models.Message `json:"items"`
	Total int              `json:"total"`
}

// Client is a thin JSON client for the taskchat backend. All methods take a
// context and classify failures into the api error taxonomy.
type Client struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithToken attaches a bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRateLimit caps outbound requests; rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient substitutes the underlying http.Client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a Client for the backend at base, e.g. "http://host:8080".
func NewClient(base string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: marshal request: %v", ErrValidation, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		err := classifyStatus(res.StatusCode, strings.TrimSpace(string(b)))
		logger.Debug("api_request_failed", "method", method, "path", path, "status", res.StatusCode)
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrServer, err)
	}
	return nil
}

// ListMessages fetches one window of a project's messages ordered by (ts, id).
func (c *Client) ListMessages(ctx context.Context, project string, offset, limit int) (MessagePage, error) {
	var page MessagePage
	q := url.Values{}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	err := c.do(ctx, http.MethodGet, "/v1/projects/"+url.PathEscape(project)+"/messages", q, nil, &page)
	return page, err
}

// SendMessage posts a new chat message and returns the server-confirmed copy.
func (c *Client) SendMessage(ctx context.Context, project, author, body string) (models.Message, error) {
	var out models.Message
	in := models.Message{Project: project, Author: author, Body: body}
	err := c.do(ctx, http.MethodPost, "/v1/projects/"+url.PathEscape(project)+"/messages", nil, in, &out)
	return out, err
}

// DeleteMessage soft-deletes a message by id.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/messages/"+url.PathEscape(id), nil, nil, nil)
}

// --- Project / task / member CRUD (plain request/response, no reconciliation) ---

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := c.do(ctx, http.MethodGet, "/v1/projects", nil, nil, &out)
	return out, err
}

func (c *Client) CreateProject(ctx context.Context, name, owner string) (models.Project, error) {
	var out models.Project
	in := models.Project{Name: name, Owner: owner}
	err := c.do(ctx, http.MethodPost, "/v1/projects", nil, in, &out)
	return out, err
}

func (c *Client) GetProject(ctx context.Context, id string) (models.Project, error) {
	var out models.Project
	err := c.do(ctx, http.MethodGet, "/v1/projects/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/projects/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListTasks(ctx context.Context, project string) ([]models.Task, error) {
	var out []models.Task
	err := c.do(ctx, http.MethodGet, "/v1/projects/"+url.PathEscape(project)+"/tasks", nil, nil, &out)
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	var out models.Task
	err := c.do(ctx, http.MethodPost, "/v1/projects/"+url.PathEscape(t.Project)+"/tasks", nil, t, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	var out models.Task
	err := c.do(ctx, http.MethodPut, "/v1/tasks/"+url.PathEscape(t.ID), nil, t, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/tasks/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListMembers(ctx context.Context, project string) ([]models.Member, error) {
	var out []models.Member
	err := c.do(ctx, http.MethodGet, "/v1/projects/"+url.PathEscape(project)+"/members", nil, nil, &out)
	return out, err
}

func (c *Client) AddMember(ctx context.Context, project, user, role string) (models.Member, error) {
	var out models.Member
	in := models.Member{Project: project, User: user, Role: role}
	err := c.do(ctx, http.MethodPost, "/v1/projects/"+url.PathEscape(project)+"/members", nil, in, &out)
	return out, err
}

func (c *Client) RemoveMember(ctx context.Context, project, user string) error {
	return c.do(ctx, http.MethodDelete, "/v1/projects/"+url.PathEscape(project)+"/members/"+url.PathEscape(user), nil, nil, nil)
}

// Health pings the backend.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}
