package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"autopost/domain/dto"
	"autopost/domain/errs"
	"autopost/domain/model"
	"autopost/infrastructure/telemetry"

	"golang.org/x/time/rate"
)

const (
	restliProtocolVersion = "2.0.0"
	maxResponseBytes      = 4 << 20
	maxImageBytes         = 20 << 20
)

// Config represents LinkedIn REST API client configuration
type Config struct {
	BaseURL           string
	APIVersion        string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
	CommentPageSize   int
	HTTPClient        *http.Client
	Metrics           *telemetry.Metrics
}

// Client talks to the versioned LinkedIn REST API. It serves both the
// publish path and the engagement path.
type Client struct {
	baseURL        string
	apiVersion     string
	httpClient     *http.Client
	limiter        *rate.Limiter
	requestTimeout time.Duration
	pageSize       int
	metrics        *telemetry.Metrics
}

// NewClient creates a new LinkedIn API client
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	pageSize := cfg.CommentPageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		apiVersion:     cfg.APIVersion,
		httpClient:     httpClient,
		limiter:        rate.NewLimiter(limit, burst),
		requestTimeout: timeout,
		pageSize:       pageSize,
		metrics:        cfg.Metrics,
	}
}

type request struct {
	op          string
	method      string
	url         string
	body        []byte
	contentType string
	creds       *model.Credentials
	platform    bool // adds the versioned API headers
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do performs one bounded outbound call and maps failures onto the publish
// error taxonomy.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.NewPublishError(r.op, errs.ErrTransientNetwork, 0, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, errs.NewPublishError(r.op, errs.ErrValidation, 0, err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.platform {
		req.Header.Set("LinkedIn-Version", c.apiVersion)
		req.Header.Set("X-Restli-Protocol-Version", restliProtocolVersion)
	}
	if r.creds != nil && r.creds.Token != nil {
		r.creds.Token.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewPublishError(r.op, errs.ErrTransientNetwork, 0, err)
	}
	defer resp.Body.Close()

	limit := int64(maxResponseBytes)
	if !r.platform {
		limit = maxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, errs.NewPublishError(r.op, errs.ErrTransientNetwork, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.NewPublishError(r.op, classifyStatus(resp.StatusCode), resp.StatusCode, errorMessage(data))
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (c *Client) doJSON(ctx context.Context, r request, in, out interface{}) (*response, error) {
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, errs.NewPublishError(r.op, errs.ErrValidation, 0, err)
		}
		r.body = payload
		r.contentType = "application/json"
	}
	resp, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	if out != nil && len(bytes.TrimSpace(resp.body)) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return nil, errs.NewPublishError(r.op, errs.ErrTransientNetwork, resp.status, fmt.Errorf("decode response: %w", err))
		}
	}
	return resp, nil
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.ErrAuth
	case status == http.StatusTooManyRequests:
		return errs.ErrRateLimited
	case status >= 400 && status < 500:
		return errs.ErrValidation
	default:
		return errs.ErrTransientNetwork
	}
}

func errorMessage(body []byte) error {
	var e dto.LinkedInErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return errors.New(e.Message)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:297] + "..."
	}
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
