// Package httpclient is the outbound JSON client shared by the catalog and payment
// adapters. Every call is a client span with the trace context injected into the request
// headers, and is counted under external_requests_total.
package httpclient

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

	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const maxBodyBytes = 1 << 20

// StatusError is returned for any non-2xx response. The body has already been decoded
// into the destination when it was valid JSON.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: %s %s returned %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
}

type Client struct {
	base *url.URL
	peer string
	http *http.Client

	tracer       observability.Tracer
	log          observability.Logger
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

// New builds a client for baseURL. peer names the remote service in spans and metrics.
// A zero timeout leaves deadlines entirely to the caller's context.
func New(baseURL, peer string, timeout time.Duration, tel observability.Observability) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpclient: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("httpclient: base url %q must be absolute", baseURL)
	}
	if peer == "" {
		peer = strings.Split(u.Host, ":")[0]
	}

	tracer, logger, metrics := observability.Resolve(tel)
	return &Client{
		base: u,
		peer: peer,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer:       tracer,
		log:          logger.With(observability.F("component", "httpclient"), observability.F("peer", peer)),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}, nil
}

// GetJSON issues GET base+path. endpoint is the low-cardinality route used as a metric label.
func (c *Client) GetJSON(ctx context.Context, endpoint, path string, dst any) error {
	return c.Do(ctx, http.MethodGet, endpoint, path, nil, dst)
}

func (c *Client) PostJSON(ctx context.Context, endpoint, path string, body, dst any) error {
	return c.Do(ctx, http.MethodPost, endpoint, path, body, dst)
}

func (c *Client) Do(ctx context.Context, method, endpoint, path string, body, dst any) (err error) {
	target := c.base.JoinPath(path)
	ctx, span := c.tracer.Start(ctx, "HTTP "+method+" "+c.peer,
		attribute.String("peer.service", c.peer),
		attribute.String("http.method", method),
		attribute.String("http.url", target.String()),
		attribute.String("http.route", endpoint),
	)
	start := time.Now()
	outcome := "success"

	defer func() {
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()

		c.extCounter.Add(1,
			observability.L("peer", c.peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
		c.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", c.peer),
			observability.L("endpoint", endpoint),
		)
	}()

	var reader io.Reader
	if body != nil {
		raw, merr := json.Marshal(body)
		if merr != nil {
			return fmt.Errorf("httpclient: encode body: %w", merr)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("httpclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		logctx.FromOr(ctx, c.log).Warn("external_request_failed",
			observability.F("endpoint", endpoint),
			observability.F("error", err.Error()),
		)
		return fmt.Errorf("httpclient: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	var decodeErr error
	if dst != nil && len(bytes.TrimSpace(raw)) > 0 {
		decodeErr = json.Unmarshal(raw, dst)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, URL: target.String(), Code: resp.StatusCode}
	}
	if decodeErr != nil {
		return fmt.Errorf("httpclient: decode %s response: %w", endpoint, decodeErr)
	}
	return nil
}
