// Package routing is the boundary to the external road-network routing
// provider. Every request passes through the process-wide Limiter; bypassing it
// is a correctness bug, so the client owns the acquire step itself.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"zonasi/internal/geo"
	"zonasi/internal/routing/metrics"
	"zonasi/pkg/platform/sentinel"
)

// ErrNoRoute indicates the provider answered but returned no route between the
// two points.
var ErrNoRoute = errors.New("no route found")

type routeResponse struct {
	Routes []struct {
		Distance float64 `json:"distance"`
	} `json:"routes"`
}

// Client queries the directions API for road-network distances.
type Client struct {
	baseURL string
	profile string
	apiKey  string
	http    *http.Client
	limiter *Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a routing client. The limiter is required: it is the sole
// admission-control point for the provider.
func NewClient(baseURL, profile, apiKey string, limiter *Limiter, opts ...Option) (*Client, error) {
	if limiter == nil {
		return nil, fmt.Errorf("routing limiter is required")
	}
	c := &Client{
		baseURL: baseURL,
		profile: profile,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: limiter,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Distance returns the road-network distance in meters between origin and
// destination, read from the first returned route. Blocks while the rate
// limiter is exhausted.
func (c *Client) Distance(ctx context.Context, origin, destination geo.Point) (float64, error) {
	waitStart := time.Now()
	if err := c.limiter.Acquire(ctx); err != nil {
		return 0, err
	}
	c.metrics.ObserveLimiterWait(time.Since(waitStart))

	u := fmt.Sprintf("%s/directions/v5/mapbox/%s/%s;%s?overview=full&geometries=geojson&access_token=%s",
		c.baseURL, c.profile, formatPoint(origin), formatPoint(destination), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build routing request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.IncRequest("upstream_error")
		c.logger.ErrorContext(ctx, "routing provider request failed", "error", err)
		return 0, fmt.Errorf("routing provider request: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveLatency(time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.IncRequest("upstream_error")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.ErrorContext(ctx, "routing provider returned error status",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return 0, fmt.Errorf("routing provider status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var decoded routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.metrics.IncRequest("upstream_error")
		return 0, fmt.Errorf("decode routing response: %w: %w", sentinel.ErrUnavailable, err)
	}

	if len(decoded.Routes) == 0 {
		c.metrics.IncRequest("no_route")
		return 0, ErrNoRoute
	}

	c.metrics.IncRequest("ok")
	return decoded.Routes[0].Distance, nil
}

// formatPoint renders a coordinate as the provider expects: longitude,latitude.
func formatPoint(p geo.Point) string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}
