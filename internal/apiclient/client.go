// Package apiclient is the HTTP transport of the client core. Every call
// carries the bearer credential and club id supplied by the auth layer.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fanclub/internal/shared/apperr"
	"fanclub/pkg/logger"
	"fanclub/pkg/retry"
)

const (
	HeaderClubID         = "X-Club-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

// Credentials is supplied by the authentication collaborator.
type Credentials interface {
	BearerToken(ctx context.Context) (string, error)
	ClubID() string
}

// StaticCredentials is a fixed token and club, for the CLI and tests.
type StaticCredentials struct {
	Token string
	Club  string
}

func (s StaticCredentials) BearerToken(ctx context.Context) (string, error) {
	return s.Token, nil
}

func (s StaticCredentials) ClubID() string {
	return s.Club
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Credentials Credentials
	// Retry applies to reads and to calls that are safe to repeat.
	Retry      retry.Policy
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client talks to the storefront API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	creds      Credentials
	retry      retry.Policy
	log        *logger.Logger
}

// New creates a client for cfg.BaseURL
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credentials are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetDefault()
	}

	return &Client{
		httpClient: cfg.HTTPClient,
		baseURL:    base,
		creds:      cfg.Credentials,
		retry:      cfg.Retry,
		log:        cfg.Logger,
	}, nil
}

// envelope mirrors the server's standard response
type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     json.RawMessage `json:"errors"`
}

type call struct {
	method  string
	path    string
	body    interface{}
	headers map[string]string
	// out receives the envelope's data; nil to ignore it
	out interface{}
	// notFound overrides the code of a 404, for paths that name a hold
	notFound apperr.Code
}

type result struct {
	status  int
	headers http.Header
}

// doWithRetry runs c through the client's retry policy
func (c *Client) doWithRetry(ctx context.Context, req call) (result, error) {
	var res result
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.do(ctx, req)
		return err
	})
	return res, err
}

// do performs one round trip and maps the outcome onto apperr codes
func (c *Client) do(ctx context.Context, req call) (result, error) {
	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return result{}, fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL.String()+req.path, body)
	if err != nil {
		return result{}, fmt.Errorf("creating HTTP request: %w", err)
	}

	token, err := c.creds.BearerToken(ctx)
	if err != nil {
		return result{}, apperr.Wrap(apperr.CodeAuth, "no credential available", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set(HeaderClubID, c.creds.ClubID())
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.LogRemoteCall(ctx, req.method, req.path, 0, time.Since(start), err)
		return result{}, apperr.Wrap(apperr.CodeNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.LogRemoteCall(ctx, req.method, req.path, resp.StatusCode, time.Since(start), err)
		return result{}, apperr.Wrap(apperr.CodeNetwork, "reading response body", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return result{}, apperr.Wrap(apperr.CodeServer, "malformed response", err)
		}
	}

	res := result{status: resp.StatusCode, headers: resp.Header}
	if resp.StatusCode >= 300 {
		apiErr := errorFromResponse(resp.StatusCode, env, req.notFound)
		c.log.LogRemoteCall(ctx, req.method, req.path, resp.StatusCode, time.Since(start), apiErr)
		return res, apiErr
	}
	c.log.LogRemoteCall(ctx, req.method, req.path, resp.StatusCode, time.Since(start), nil)

	if req.out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, req.out); err != nil {
			return res, apperr.Wrap(apperr.CodeServer, "malformed response data", err)
		}
	}
	return res, nil
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
