// Package client provides the CRM API HTTP client: bearer token injection,
// a throttle before every outbound call, and typed upstream errors.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/crm-proxy/pkg/ratelimit"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the public CRM API host.
const DefaultBaseURL = "https://api.hubapi.com"

// Upstream paths.
const (
	searchPathFormat        = "/crm/v3/objects/%s/search"
	lifecycleStagesTimeline = "/contacts/search/v1/external/lifecyclestages"
)

// Prometheus metrics for CRM client operations.
var (
	crmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_requests_total",
		Help: "Total outbound CRM requests by object and status",
	}, []string{"object", "status"})

	crmRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_request_duration_seconds",
		Help:    "Outbound CRM request duration in seconds by object",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"object"})

	crmErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_errors_total",
		Help: "Total CRM request failures by class",
	}, []string{"class"})
)

// Client talks to the CRM API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	token      string
	throttle   ratelimit.Throttle
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// Config holds the client configuration. The token is process-wide and
// injected here rather than read from the environment by the client.
type Config struct {
	// BaseURL of the CRM API, without trailing slash.
	BaseURL string

	// Token is sent as "Authorization: Bearer <Token>" on every call.
	Token string

	// Throttle is waited on before every outbound call.
	Throttle ratelimit.Throttle

	// Timeout bounds a single outbound call. Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient overrides the default transport (tests, custom proxies).
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration using the public API host and the
// standard 1.2s per-call delay.
func DefaultConfig(token string) Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Token:    token,
		Throttle: ratelimit.NewFixedDelay(ratelimit.DefaultDelay),
		Timeout:  30 * time.Second,
	}
}

// New creates a new CRM client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrMissingToken
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse base url %q", cfg.BaseURL)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf("base url %q must be absolute", cfg.BaseURL)
	}

	if cfg.Throttle == nil {
		cfg.Throttle = ratelimit.NewFixedDelay(ratelimit.DefaultDelay)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		token:      cfg.Token,
		throttle:   cfg.Throttle,
		logger:     log.With().Str("component", "crm-client").Logger(),
		tracer:     otel.Tracer("crm-proxy/client"),
	}, nil
}

// Search issues one search call against an object collection and returns
// the decoded page.
func (c *Client) Search(ctx context.Context, object ObjectType, req SearchRequest) (*SearchPage, error) {
	ctx, span := c.tracer.Start(ctx, "crm.search",
		trace.WithAttributes(
			attribute.String("crm.object_type", string(object)),
			attribute.Int("crm.limit", req.Limit),
			attribute.Bool("crm.has_cursor", req.After != ""),
		),
	)
	defer span.End()

	payload, err := json.Marshal(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode search request")
		return nil, errors.Wrap(err, "encode search request")
	}

	c.logger.Debug().
		Str("object_type", string(object)).
		Int("limit", req.Limit).
		Str("after", req.After).
		Msg("Executing CRM search")

	body, err := c.do(ctx, http.MethodPost, searchPath(object), nil, payload, string(object))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	var page SearchPage
	if err := json.Unmarshal(body, &page); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode search response")
		return nil, errors.Wrap(err, "decode search response")
	}
	if page.Results == nil {
		page.Results = []json.RawMessage{}
	}

	span.SetAttributes(
		attribute.Int("crm.results", len(page.Results)),
		attribute.Bool("crm.has_next", page.NextCursor() != ""),
	)
	span.SetStatus(codes.Ok, "")
	return &page, nil
}

// Count returns the total number of records matching filterGroups, using a
// limit-0 search that returns no records.
func (c *Client) Count(ctx context.Context, object ObjectType, filterGroups []FilterGroup) (int, error) {
	page, err := c.Search(ctx, object, SearchRequest{
		FilterGroups: filterGroups,
		Limit:        0,
	})
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

// LifecycleStageTimeline fetches the lifecycle-stage analytics for a time
// window and returns the raw JSON body unchanged.
func (c *Client) LifecycleStageTimeline(ctx context.Context, from, to string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "crm.lifecycle_stage_timeline",
		trace.WithAttributes(
			attribute.String("crm.from", from),
			attribute.String("crm.to", to),
		),
	)
	defer span.End()

	query := url.Values{}
	query.Set("fromTimestamp", from)
	query.Set("toTimestamp", to)

	body, err := c.do(ctx, http.MethodGet, lifecycleStagesTimeline, query, nil, "lifecyclestages")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "timeline request failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return body, nil
}

// do waits on the throttle, sends one request and returns the body of a
// 2xx response. Non-2xx responses become *UpstreamError, network failures
// *TransportError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte, label string) ([]byte, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "wait for throttle")
	}

	target := *c.baseURL
	target.Path = c.baseURL.Path + path
	if query != nil {
		target.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	defer func() {
		crmRequestDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("object_type", label).Msg("CRM request failed")
		crmErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		crmRequestsTotal.WithLabelValues(label, "network_error").Inc()
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		crmErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		crmRequestsTotal.WithLabelValues(label, "network_error").Inc()
		return nil, &TransportError{Op: "read " + path + " response", Err: err}
	}

	crmRequestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstreamErr := newUpstreamError(resp.StatusCode, body)
		crmErrorsTotal.WithLabelValues(string(upstreamErr.Class)).Inc()
		c.logger.Warn().
			Str("object_type", label).
			Int("status", resp.StatusCode).
			Str("error_class", string(upstreamErr.Class)).
			Msg("CRM request error")
		return nil, upstreamErr
	}

	return body, nil
}

func searchPath(object ObjectType) string {
	return fmt.Sprintf(searchPathFormat, url.PathEscape(string(object)))
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
