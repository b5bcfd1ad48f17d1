package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
)

// HTTPClient implements DataSource by calling the LiftLog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, storage.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func (c *HTTPClient) ListTemplates(ctx context.Context, _ int, includeArchived bool) ([]models.WorkoutTemplate, error) {
	params := url.Values{}
	if includeArchived {
		params.Set("archived", "true")
	}

	body, err := c.get(ctx, "/api/v1/templates", params)
	if err != nil {
		return nil, err
	}

	var templates []models.WorkoutTemplate
	if err := json.Unmarshal(body, &templates); err != nil {
		return nil, fmt.Errorf("httpclient: decode templates: %w", err)
	}
	return templates, nil
}

func (c *HTTPClient) GetTemplate(ctx context.Context, _ int, id uuid.UUID) (*models.WorkoutTemplate, error) {
	body, err := c.get(ctx, "/api/v1/templates/"+id.String(), nil)
	if err != nil {
		return nil, err
	}

	var tpl models.WorkoutTemplate
	if err := json.Unmarshal(body, &tpl); err != nil {
		return nil, fmt.Errorf("httpclient: decode template: %w", err)
	}
	return &tpl, nil
}

func (c *HTTPClient) QueryInstances(ctx context.Context, _ int, start, end time.Time) ([]models.WorkoutInstance, error) {
	params := url.Values{}
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))

	body, err := c.get(ctx, "/api/v1/workouts", params)
	if err != nil {
		return nil, err
	}

	var workouts []models.WorkoutInstance
	if err := json.Unmarshal(body, &workouts); err != nil {
		return nil, fmt.Errorf("httpclient: decode workouts: %w", err)
	}
	return workouts, nil
}

func (c *HTTPClient) GetInstance(ctx context.Context, _ int, id uuid.UUID) (*models.WorkoutInstance, error) {
	body, err := c.get(ctx, "/api/v1/workouts/"+id.String(), nil)
	if err != nil {
		return nil, err
	}

	var inst models.WorkoutInstance
	if err := json.Unmarshal(body, &inst); err != nil {
		return nil, fmt.Errorf("httpclient: decode workout: %w", err)
	}
	return &inst, nil
}

// RecentFinishedInstances queries the last six months of workouts and filters
// client-side. The REST API has no dedicated endpoint for this view.
func (c *HTTPClient) RecentFinishedInstances(ctx context.Context, ownerID, limit int) ([]models.WorkoutInstance, error) {
	end := timeNow()
	workouts, err := c.QueryInstances(ctx, ownerID, end.AddDate(0, -6, 0), end)
	if err != nil {
		return nil, err
	}

	finished := workouts[:0]
	for _, w := range workouts {
		if !w.IsActive && w.FinishedAt != nil {
			finished = append(finished, w)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].FinishedAt.After(*finished[j].FinishedAt)
	})
	if len(finished) > limit {
		finished = finished[:limit]
	}
	return finished, nil
}
