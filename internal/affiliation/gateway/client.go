// Package gateway is the HTTP+JSON client for the event-management
// platform backend. It normalizes the backend's response envelope and
// maps HTTP failures onto the shared error taxonomy; it adds no retry
// or timeout layer of its own beyond the per-call client timeout.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eventia/affiliations/internal/affiliation/auth"
	e "github.com/eventia/affiliations/internal/affiliation/errors"
	"github.com/eventia/affiliations/internal/affiliation/models"
	"github.com/eventia/affiliations/internal/affiliation/workflow"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the backend REST API. The bearer credential is read
// from the call context on every request; the client never acquires or
// refreshes credentials itself.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg *Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("gateway"),
	}
}

// envelope is the backend's uniform response shape.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// TransitionAffiliation executes an approve or reject transition for
// the given company.
func (c *Client) TransitionAffiliation(ctx context.Context, id string, params workflow.TransitionParams) error {
	path := fmt.Sprintf("/v1/empresas/%s/afiliacion", url.PathEscape(id))
	_, err := c.do(ctx, "transition affiliation", http.MethodPut, path, params)
	return err
}

// FetchAffiliation retrieves the full affiliation record, keeping the
// raw upstream object for requester resolution.
func (c *Client) FetchAffiliation(ctx context.Context, id string) (*models.Record, error) {
	path := fmt.Sprintf("/v1/empresas/%s", url.PathEscape(id))
	env, err := c.do(ctx, "fetch affiliation", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeRecord(env.Data, true)
}

// PromoteToManager elevates the requester to manager of the company.
func (c *Client) PromoteToManager(ctx context.Context, req models.PromotionRequest) error {
	path := fmt.Sprintf("/v1/usuarios/%s/rol", url.PathEscape(req.RequesterID))
	_, err := c.do(ctx, "promote to manager", http.MethodPost, path, req)
	if err != nil && errors.Is(err, e.ErrNotFound) {
		// Some deployments ship without the promotion endpoint; report it
		// as a remote failure the caller can act on, not as a missing record.
		return &e.RemoteError{
			Op:         "promote to manager",
			StatusCode: http.StatusNotFound,
			Message:    "promotion endpoint not available",
		}
	}
	return err
}

// ListAffiliations returns the affiliation records, optionally filtered
// by status. List records are partial projections; the requester
// reference may be missing until the detail record is fetched.
func (c *Client) ListAffiliations(ctx context.Context, status *models.Status) ([]*models.Record, error) {
	path := "/v1/empresas"
	if status != nil {
		path += "?estado=" + url.QueryEscape(status.String())
	}
	env, err := c.do(ctx, "list affiliations", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, fmt.Errorf("decoding affiliation list: %w", err)
	}
	records := make([]*models.Record, 0, len(items))
	for _, item := range items {
		record, err := decodeRecord(item, false)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Ping probes the backend health endpoint. Used only at startup.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend not ready: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := auth.TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &e.RemoteError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", e.ErrUnauthorized, op)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", e.ErrNotFound, op)
	case resp.StatusCode == http.StatusConflict:
		// The backend rejected a transition that lost the race with a
		// concurrent administrator; same taxonomy as the client-side check.
		return nil, fmt.Errorf("%w: %s", e.ErrInvalidTransition, remoteMessage(&env, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &e.RemoteError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    remoteMessage(&env, resp.StatusCode),
		}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", op, decodeErr)
	}
	if !env.Success {
		return nil, &e.RemoteError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    remoteMessage(&env, resp.StatusCode),
		}
	}
	return &env, nil
}

// remoteMessage prefers the backend's own message, falling back to a
// generic one keyed to the status.
func remoteMessage(env *envelope, statusCode int) string {
	if env != nil && env.Message != "" {
		return env.Message
	}
	return http.StatusText(statusCode)
}
