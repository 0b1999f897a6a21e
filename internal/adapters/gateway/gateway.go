package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gaitlab/paddock/pkg/logger"
	"github.com/gaitlab/paddock/pkg/metrics"
)

// Defaults for the timeout triple and the retry policy.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 180 * time.Second
	defaultTotalTimeout   = 220 * time.Second
	defaultRetries        = 1
	defaultPollInterval   = 2 * time.Second

	// breakerTripThreshold opens the circuit after this many consecutive
	// transient failures.
	breakerTripThreshold = 5
	breakerCooldown      = 30 * time.Second

	// maxResponseBytes caps how much of a collaborator response is read.
	maxResponseBytes = 8 << 20
)

// requestBuilder produces a fresh request per attempt so retries never
// reuse a consumed body.
type requestBuilder func(ctx context.Context) (*http.Request, error)

// httpReply carries a completed exchange through the circuit breaker.
type httpReply struct {
	status int
	body   []byte
}

// Client is a resilient outbound HTTP client for one collaborator service.
type Client struct {
	service string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker
	pool    *PermitPool
	pacer   pacer
	headers map[string]string
	log     logger.Logger

	connectTimeout time.Duration
	readTimeout    time.Duration
	totalTimeout   time.Duration
	retries        int
	backoff        []time.Duration
	pollInterval   time.Duration
}

// pacer is the subset of rate.Limiter the client uses.
type pacer interface {
	Wait(ctx context.Context) error
}

// New creates a Client for the named collaborator service.
func New(service string, opts ...Option) *Client {
	c := &Client{
		service:        service,
		headers:        make(map[string]string),
		connectTimeout: defaultConnectTimeout,
		readTimeout:    defaultReadTimeout,
		totalTimeout:   defaultTotalTimeout,
		retries:        defaultRetries,
		backoff:        []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second},
		pollInterval:   defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("gateway").Named(service)
	}

	c.httpc = &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: c.connectTimeout,
			}).DialContext,
			TLSHandshakeTimeout: c.connectTimeout,
			MaxIdleConnsPerHost: 4,
		},
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    service,
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, int(to))
			c.log.Warn(context.Background(), "circuit breaker state change",
				logger.String("service", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return c
}

// PostJSON sends payload as a JSON body and returns the tagged outcome.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) Result {
	return c.execute(ctx, jsonRequest(http.MethodPost, url, payload))
}

// Get fetches url and returns the tagged outcome.
func (c *Client) Get(ctx context.Context, url string) Result {
	return c.execute(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// PostMultipart uploads content as a single multipart file field. The
// content is held in memory so retries can rebuild the body.
func (c *Client) PostMultipart(ctx context.Context, url, field, filename string, content []byte) Result {
	return c.execute(ctx, func(ctx context.Context) (*http.Request, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile(field, filename)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(content); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	})
}

// execute runs one call under the total budget: acquire a permit, then
// attempt with bounded retries. The permit is held for the whole call.
func (c *Client) execute(ctx context.Context, build requestBuilder) Result {
	ctx, cancel := context.WithTimeout(ctx, c.totalTimeout)
	defer cancel()

	if c.pool != nil {
		if err := c.pool.Acquire(ctx); err != nil {
			metrics.RecordGatewayCall(c.service, string(OutcomeUnavailable), 0)
			return Unavailable(ErrNoPermit.Error())
		}
		defer c.pool.Release()
	}
	return c.attemptLoop(ctx, build)
}

// attemptLoop makes at most retries+1 attempts. Only Unavailable outcomes
// are retried; a response the service actually produced is final.
func (c *Client) attemptLoop(ctx context.Context, build requestBuilder) Result {
	start := time.Now()
	metrics.UpdateGatewayInflight(1)
	defer metrics.UpdateGatewayInflight(-1)

	var res Result
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			metrics.RecordGatewayRetry(c.service)
			if err := sleep(ctx, c.backoffDelay(attempt-1)); err != nil {
				res = Unavailable("total budget exhausted during backoff")
				break
			}
		}

		res = c.attempt(ctx, build)
		if res.Outcome != OutcomeUnavailable || ctx.Err() != nil {
			break
		}
		c.log.Warn(ctx, "transient failure",
			logger.String("service", c.service),
			logger.Int("attempt", attempt+1),
			logger.String("detail", res.Detail),
		)
	}

	metrics.RecordGatewayCall(c.service, string(res.Outcome), float64(time.Since(start).Milliseconds()))
	return res
}

// attempt runs a single request under the per-attempt read budget.
func (c *Client) attempt(parent context.Context, build requestBuilder) Result {
	ctx, cancel := context.WithTimeout(parent, c.readTimeout)
	defer cancel()

	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return Unavailable("rate pacing interrupted: " + err.Error())
		}
	}

	req, err := build(ctx)
	if err != nil {
		return InvalidResponse("build request: " + err.Error())
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	reply, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		// 5xx counts as a breaker failure and stays retryable.
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("server status %d", resp.StatusCode)
		}
		return httpReply{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Unavailable(ErrBreakerOpen.Error())
		}
		return Unavailable(err.Error())
	}

	r := reply.(httpReply)
	if r.status >= http.StatusOK && r.status < http.StatusMultipleChoices {
		return OK(r.body)
	}
	return InvalidResponse(fmt.Sprintf("unexpected status %d", r.status))
}

// backoffDelay returns the delay before retry number i (0-based). Retries
// past the end of the schedule reuse the last entry.
func (c *Client) backoffDelay(i int) time.Duration {
	if len(c.backoff) == 0 {
		return 500 * time.Millisecond
	}
	if i >= len(c.backoff) {
		i = len(c.backoff) - 1
	}
	return c.backoff[i]
}

func jsonRequest(method, url string, payload any) requestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
}

// sleep waits d or until ctx is done.
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
