// Package commands implements the bgpfsmctl CLI commands.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/trungkstn/bgpfsmd/internal/adminapi"
)

// errRequestFailed wraps a non-2xx admin API response.
var errRequestFailed = errors.New("admin API request failed")

// apiClient is a thin HTTP client for the daemon's admin API
// (SPEC_FULL.md §3.5), replacing the teacher's generated ConnectRPC
// stub with a hand-written client over the same endpoints.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(addr string) *apiClient {
	return &apiClient{baseURL: "http://" + addr, http: http.DefaultClient}
}

func (c *apiClient) ListSessions(ctx context.Context) ([]adminapi.SessionStatus, error) {
	var out []adminapi.SessionStatus
	if err := c.do(ctx, http.MethodGet, "/v1/sessions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) GetSession(ctx context.Context, peer string) (adminapi.SessionStatus, error) {
	var out adminapi.SessionStatus
	err := c.do(ctx, http.MethodGet, "/v1/sessions/"+peer, &out)
	return out, err
}

func (c *apiClient) EnableSession(ctx context.Context, peer string) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+peer+"/enable", nil)
}

func (c *apiClient) DisableSession(ctx context.Context, peer string) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+peer+"/disable", nil)
}

// WatchEvents streams SessionEvents until ctx is cancelled, calling fn
// for each decoded event.
func (c *apiClient) WatchEvents(ctx context.Context, fn func(adminapi.SessionEventPayload) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/events", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("watch events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", errRequestFailed, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var ev adminapi.SessionEventPayload
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("decode event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error != "" {
			return fmt.Errorf("%w: %s", errRequestFailed, body.Error)
		}
		return fmt.Errorf("%w: status %d", errRequestFailed, resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
