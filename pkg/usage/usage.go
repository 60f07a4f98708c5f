// Package usage retrieves the machine usages billed to the Equinix Metal
// project that hosts CI machines.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the Equinix Metal API root.
const DefaultBaseURL = "https://api.equinix.com"

const (
	authHeader = "X-Auth-Token"
	timeLayout = "2006-01-02T15:04:05Z"
)

// Usage is a single billed usage line.
type Usage struct {
	Description *string    `json:"description"`
	Facility    string     `json:"facility"`
	Metro       string     `json:"metro"`
	Name        string     `json:"name"`
	Plan        string     `json:"plan"`
	PlanVersion string     `json:"plan_version"`
	Price       float64    `json:"price"`
	Quantity    float64    `json:"quantity"`
	Total       float64    `json:"total"`
	Type        string     `json:"type"`
	Instance    *string    `json:"instance"`
	Unit        string     `json:"unit"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// Identifier identifies a usage across scrapes.
type Identifier struct {
	Name string
	Plan string
}

// Identifier returns the dedup key of u.
func (u Usage) Identifier() Identifier {
	return Identifier{Name: u.Name, Plan: u.Plan}
}

// JobBuildID returns the build id encoded as the last dash-separated
// segment of the machine name.
func (u Usage) JobBuildID() string {
	return u.Name[strings.LastIndex(u.Name, "-")+1:]
}

// IsBandwidth reports whether u bills network traffic rather than a machine.
func (u Usage) IsBandwidth() bool {
	return strings.Contains(u.Plan, "Bandwidth")
}

// Client queries the Equinix Metal usages endpoint of one project.
type Client struct {
	baseURL   string
	projectID string
	token     string
	http      *http.Client
	logger    *zap.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	ProjectID string
	Token     string
}

// NewClient returns a Client. A nil http client uses http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		projectID: cfg.ProjectID,
		token:     cfg.Token,
		http:      httpClient,
		logger:    logger,
	}
}

// Usages returns the usages created in [start, end] that should be indexed.
// See Select.
func (c *Client) Usages(ctx context.Context, start, end time.Time) ([]Usage, error) {
	q := url.Values{}
	q.Set("created[after]", start.UTC().Format(timeLayout))
	q.Set("created[before]", end.UTC().Format(timeLayout))
	endpoint := fmt.Sprintf("%s/metal/v1/projects/%s/usages?%s", c.baseURL, url.PathEscape(c.projectID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build usages request: %w", err)
	}
	req.Header.Set(authHeader, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch usages: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch usages: unexpected status %s", resp.Status)
	}

	var payload struct {
		Usages []Usage `json:"usages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode usages: %w", err)
	}
	c.logger.Info("Retrieved machine usages", zap.Int("usages", len(payload.Usages)))

	return Select(payload.Usages, start, end), nil
}

// Select returns the usages to index: completed usages lying entirely in
// [start, end]. A bandwidth usage first takes the dates of the machine usage
// with the same name, so both land in the same report window.
func Select(usages []Usage, start, end time.Time) []Usage {
	machines := make(map[string]Usage)
	for _, u := range usages {
		if _, seen := machines[u.Name]; !seen && !u.IsBandwidth() {
			machines[u.Name] = u
		}
	}

	var selected []Usage
	for _, u := range usages {
		if u.IsBandwidth() {
			if m, ok := machines[u.Name]; ok {
				u.StartDate = m.StartDate
				u.EndDate = m.EndDate
			}
		}
		if u.EndDate != nil && !u.StartDate.Before(start) && !u.EndDate.After(end) {
			selected = append(selected, u)
		}
	}
	return selected
}
