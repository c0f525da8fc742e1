package seasonsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	maxAttempts       = 5
	defaultRetryDelay = time.Second
)

// apiError is a non-2xx answer from the service.
type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
}

// client talks to the tournament API and waits out cooldowns.
type client struct {
	http    *http.Client
	base    string
	guild   uint64
	userID  string
	retries atomic.Int64
}

func newClient(cfg *Config) *client {
	return &client{
		http:   &http.Client{Timeout: cfg.Timeout},
		base:   cfg.BaseURL,
		guild:  cfg.GuildID,
		userID: cfg.UserID,
	}
}

func (c *client) tournamentPath(name string, parts ...string) string {
	p := fmt.Sprintf("/v1/guilds/%d/tournaments/%s", c.guild, url.PathEscape(name))
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// health checks the service is up.
func (c *client) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *client) create(ctx context.Context, category, channel, players string) (*tournament, error) {
	var out tournament
	body := map[string]string{"category": category, "channel": channel, "players": players}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/guilds/%d/tournaments", c.guild), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) report(ctx context.Context, name, text string) (*report, error) {
	var out report
	if err := c.do(ctx, http.MethodPost, c.tournamentPath(name, "report"), map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) resolve(ctx context.Context, name, label, winner string) (*resolution, error) {
	var out resolution
	body := map[string]string{"label": label, "winner": winner}
	if err := c.do(ctx, http.MethodPost, c.tournamentPath(name, "results"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) standings(ctx context.Context, category string) (*season, error) {
	var out struct {
		Season season `json:"season"`
	}
	p := fmt.Sprintf("/v1/guilds/%d/seasons/%s/standings", c.guild, url.PathEscape(category))
	if err := c.do(ctx, http.MethodGet, p, nil, &out); err != nil {
		return nil, err
	}
	return &out.Season, nil
}

// do sends one request, retrying while the service answers 429.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.userID != "" {
			req.Header.Set("X-User-ID", c.userID)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		data, err := readResponseBody(resp)
		if err != nil {
			return fmt.Errorf("%s %s: read body: %w", method, path, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxAttempts {
			c.retries.Add(1)
			if err := sleep(ctx, retryAfter(resp)); err != nil {
				return err
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &apiError{Status: resp.StatusCode}
			_ = json.Unmarshal(data, apiErr)
			return fmt.Errorf("%s %s: %w", method, path, apiErr)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode: %w", method, path, err)
		}
		return nil
	}
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 1 {
		return defaultRetryDelay
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wire shapes, decoded loosely so the simulator only depends on the API.

type match struct {
	Label  string `json:"label"`
	Result string `json:"result"`
}

type round struct {
	Index   int     `json:"index"`
	Matches []match `json:"matches"`
}

type tournament struct {
	Name     string  `json:"name"`
	Title    string  `json:"title"`
	Rounds   []round `json:"rounds"`
	Revision int64   `json:"revision"`
	Pending  int     `json:"pending"`
	Complete bool    `json:"complete"`
}

type report struct {
	Match struct {
		Label string `json:"label"`
	} `json:"match"`
	Candidates [2]string `json:"candidates"`
}

type resolution struct {
	Changed      bool   `json:"changed"`
	Complete     bool   `json:"complete"`
	Previous     string `json:"previous"`
	Announcement string `json:"announcement"`
	Completion   string `json:"completion"`
}

type week struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type record struct {
	Player     string `json:"player"`
	Weekly     []int  `json:"weekly"`
	Cumulative []int  `json:"cumulative"`
	Total      int    `json:"total"`
}

type season struct {
	Weeks   []week   `json:"weeks"`
	Records []record `json:"records"`
}
