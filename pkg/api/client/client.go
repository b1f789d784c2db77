package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "http://localhost:3000"

// Client provides typed access to the dashboard JSON API for scripts and the CLI.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided dashboard base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid dashboard base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the dashboard.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the dashboard.
func IsNotFound(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return extractError(resp.StatusCode, resp.Body)
	}

	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(status int, body io.Reader) APIError {
	apiErr := APIError{Status: status}
	if body == nil {
		return apiErr
	}
	var payload struct {
		Error  string            `json:"error"`
		Errors map[string]string `json:"errors"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return apiErr
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(payload.Error)
	apiErr.Fields = payload.Errors
	return apiErr
}

// Session is returned when a dashboard session is opened.
type Session struct {
	ID    string `json:"session_id"`
	Token string `json:"token"`
}

// User reflects dashboard user payloads.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CreateUserInput is the payload for AddUser and ValidateUser.
type CreateUserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RoleCount is one per-role tally.
type RoleCount struct {
	Role  string `json:"role"`
	Count int    `json:"count"`
}

// Stats summarizes the users of a session.
type Stats struct {
	Total  int         `json:"total"`
	ByRole []RoleCount `json:"by_role"`
}

// Validation is the result of ValidateUser.
type Validation struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors"`
}

// OpenSession starts a fresh seeded session.
func (c *Client) OpenSession(ctx context.Context) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "/api/session", nil, "", &resp)
	return resp, err
}

// ListUsers returns every user of the session in insertion order.
func (c *Client) ListUsers(ctx context.Context, token string) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// GetUser fetches a single user.
func (c *Client) GetUser(ctx context.Context, token string, id int64) (User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/api/users/"+strconv.FormatInt(id, 10), nil, token, &user)
	return user, err
}

// AddUser creates a user. Rejected input yields an APIError whose Fields
// carry the per-field messages.
func (c *Client) AddUser(ctx context.Context, token string, input CreateUserInput) (User, error) {
	var user User
	err := c.do(ctx, http.MethodPost, "/api/users", input, token, &user)
	return user, err
}

// DeleteUser removes a user by id.
func (c *Client) DeleteUser(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/users/"+strconv.FormatInt(id, 10), nil, token, nil)
}

// UserStats returns counts for roles, or for the server default when roles is empty.
func (c *Client) UserStats(ctx context.Context, token string, roles []string) (Stats, error) {
	path := "/api/users/stats"
	if len(roles) > 0 {
		path += "?roles=" + url.QueryEscape(strings.Join(roles, ","))
	}
	var stats Stats
	err := c.do(ctx, http.MethodGet, path, nil, token, &stats)
	return stats, err
}

// ValidateUser checks input without storing it.
func (c *Client) ValidateUser(ctx context.Context, token string, input CreateUserInput) (Validation, error) {
	var resp Validation
	err := c.do(ctx, http.MethodPost, "/api/users/validate", input, token, &resp)
	return resp, err
}
