// Package paymo is a narrow client for the time-tracking API.
package paymo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Tiliavir/billr/internal/model"
)

// DefaultBaseURL is the hosted time-tracking API.
const DefaultBaseURL = "https://app.paymoapp.com/api"

// The API authenticates with the key as username and an arbitrary password.
const basicAuthPassword = "random"

// APIError is a non-2xx answer from the API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paymo %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Transient reports whether retrying the call may succeed.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is an authenticated time-tracking API client.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

// NewClient creates a client for baseURL authenticating with apiKey.
func NewClient(baseURL, apiKey string, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetBasicAuth(apiKey, basicAuthPassword).
		SetHeader("Accept", "application/json")
	return &Client{http: c, log: log}
}

// project mirrors the wire shape; budget_hours may be null.
type project struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	BudgetHours *float64 `json:"budget_hours"`
	Active      bool     `json:"active"`
	StatusID    int64    `json:"status_id"`
}

func (p project) toModel() model.Project {
	budget := 0.0
	if p.BudgetHours != nil && *p.BudgetHours > 0 {
		budget = *p.BudgetHours
	}
	return model.Project{
		ID:          p.ID,
		Name:        p.Name,
		BudgetHours: budget,
		Active:      p.Active,
		StatusID:    p.StatusID,
	}
}

type projectsResponse struct {
	Projects []project `json:"projects"`
}

type entriesResponse struct {
	Entries []json.RawMessage `json:"entries"`
}

type usersResponse struct {
	Users []model.User `json:"users"`
}

func (c *Client) get(ctx context.Context, op, path string, query map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("paymo %s request failed: %w", op, err)
	}
	if resp.IsError() {
		return &APIError{Op: op, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

// Projects fetches every project in one call. Null budgets become 0.
func (c *Client) Projects(ctx context.Context) ([]model.Project, error) {
	var out projectsResponse
	if err := c.get(ctx, "list projects", "/projects", nil, &out); err != nil {
		return nil, err
	}
	projects := make([]model.Project, 0, len(out.Projects))
	for _, p := range out.Projects {
		projects = append(projects, p.toModel())
	}
	c.log.Debug("fetched projects", zap.Int("count", len(projects)))
	return projects, nil
}

// ProjectEntries fetches all time entries of a project, undecoded, so the
// caller can validate each one.
func (c *Client) ProjectEntries(ctx context.Context, projectID int64) ([]json.RawMessage, error) {
	var out entriesResponse
	query := map[string]string{"where": "project_id=" + strconv.FormatInt(projectID, 10)}
	if err := c.get(ctx, "list project entries", "/entries", query, &out); err != nil {
		return nil, err
	}
	c.log.Debug("fetched entries",
		zap.Int64("project_id", projectID),
		zap.Int("count", len(out.Entries)),
	)
	return out.Entries, nil
}

// EntriesBetween fetches entries logged in the inclusive day range
// [start, end], both formatted YYYY-MM-DD.
func (c *Client) EntriesBetween(ctx context.Context, start, end string) ([]json.RawMessage, error) {
	var out entriesResponse
	query := map[string]string{"where": fmt.Sprintf(`time_interval in ("%s","%s")`, start, end)}
	if err := c.get(ctx, "list entries in range", "/entries", query, &out); err != nil {
		return nil, err
	}
	c.log.Debug("fetched entries in range",
		zap.String("start", start),
		zap.String("end", end),
		zap.Int("count", len(out.Entries)),
	)
	return out.Entries, nil
}

// Users fetches the workspace members.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var out usersResponse
	if err := c.get(ctx, "list users", "/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}
