// Package api is the thin HTTP client for the surrounding service:
// login, session token retrieval and the schedule that lists which
// endpoints to open sessions for. The sync engine consumes it through
// the TokenSource interface only.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/RedFoundry/convosync/internal/state"
	synceng "github.com/RedFoundry/convosync/internal/sync"
	"go.uber.org/zap"
)

// Client is the authenticated HTTP client. The bearer token is read from
// the store on every request; a 403 response dispatches a logout.
type Client struct {
	baseURL string
	httpc   *http.Client
	store   *state.Store
	logger  *zap.Logger
}

// NewClient creates a client for the given API base URL.
func NewClient(baseURL string, store *state.Store, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		store:   store,
		logger:  logger,
	}
}

type loginResponse struct {
	Value         string `json:"Value"`
	Successful    bool   `json:"Successful"`
	FailureReason string `json:"FailureReason"`
}

type userStatusResponse struct {
	CurrentUserName string `json:"CurrentUserName"`
	ActiveRole      string `json:"ActiveRole"`
}

// RelatedEntity is one schedule entry naming a remote session endpoint.
type RelatedEntity struct {
	ID       int     `json:"ID"`
	Code     string  `json:"Code"`
	Name     *string `json:"Name"`
	EntityID int     `json:"EntityID"`
}

type scheduleResponse struct {
	RelatedAgencies       []RelatedEntity `json:"RelatedAgencies"`
	RelatedDonorLocations []RelatedEntity `json:"RelatedDonorLocations"`
}

// Login authenticates and, on success, dispatches the access token and
// the user's active role into the store.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var lr loginResponse
	err := c.do(ctx, http.MethodPost, "/user/login/token", map[string]string{
		"username": username,
		"password": password,
	}, &lr)
	if err != nil {
		return err
	}
	if !lr.Successful {
		return fmt.Errorf("login rejected: %s", lr.FailureReason)
	}

	var us userStatusResponse
	if err := c.doWithToken(ctx, http.MethodGet, "/user/current/status", lr.Value, nil, &us); err != nil {
		return err
	}
	if us.CurrentUserName == "" {
		return fmt.Errorf("login succeeded but user status is empty")
	}

	c.store.Dispatch(state.Login(lr.Value))
	c.store.Dispatch(state.SetActiveRole(us.ActiveRole))
	return nil
}

// Token fetches a session credential for one endpoint. Absence of a
// token is not an error: failures are logged and ("", nil) is returned,
// so callers skip the endpoint instead of failing hard. Safe to call
// repeatedly (open, refresh).
func (c *Client) Token(ctx context.Context, endpointID string) (string, error) {
	path := "/chat/token?forEntityId=" + url.QueryEscape(endpointID) + "&deviceType=engine"
	var token string
	if err := c.do(ctx, http.MethodGet, path, nil, &token); err != nil {
		c.logger.Warn("token fetch failed", zap.String("endpoint", endpointID), zap.Error(err))
		return "", nil
	}
	return token, nil
}

// Schedule fetches the endpoint list to open sessions for. An agency
// role gets its single related agency; anything else gets every related
// donor location.
func (c *Client) Schedule(ctx context.Context) ([]synceng.Endpoint, error) {
	var sr scheduleResponse
	if err := c.do(ctx, http.MethodGet, "/activity/future", nil, &sr); err != nil {
		return nil, err
	}

	if c.store.ActiveRole() == "agency" {
		if len(sr.RelatedAgencies) == 0 || sr.RelatedAgencies[0].EntityID == 0 {
			return nil, nil
		}
		a := sr.RelatedAgencies[0]
		return []synceng.Endpoint{{
			ID:          fmt.Sprintf("%d", a.EntityID),
			DisplayName: combinedName(a),
		}}, nil
	}

	endpoints := make([]synceng.Endpoint, 0, len(sr.RelatedDonorLocations))
	for _, loc := range sr.RelatedDonorLocations {
		endpoints = append(endpoints, synceng.Endpoint{
			ID:          fmt.Sprintf("%d", loc.EntityID),
			DisplayName: combinedName(loc),
		})
	}
	return endpoints, nil
}

func combinedName(e RelatedEntity) string {
	name := "No Name"
	if e.Name != nil && *e.Name != "" {
		name = *e.Name
	}
	return fmt.Sprintf("%s #%s", name, e.Code)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doWithToken(ctx, method, path, c.store.Token(), body, out)
}

func (c *Client) doWithToken(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// An authenticated request bouncing off a 403 means the stored token
	// is no longer honored; the whole local view resets.
	if resp.StatusCode == http.StatusForbidden && c.store.Token() != "" {
		c.store.Dispatch(state.Logout())
		return fmt.Errorf("%s %s: forbidden", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
