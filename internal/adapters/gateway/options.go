package gateway

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/gaitlab/paddock/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeouts sets the connect, per-attempt read and whole-call total
// budgets. Non-positive values keep the defaults.
func WithTimeouts(connect, read, total time.Duration) Option {
	return func(c *Client) {
		if connect > 0 {
			c.connectTimeout = connect
		}
		if read > 0 {
			c.readTimeout = read
		}
		if total > 0 {
			c.totalTimeout = total
		}
	}
}

// WithRetries sets how many times a transient failure is retried after the
// first attempt. Negative values are treated as zero.
func WithRetries(retries int) Option {
	return func(c *Client) {
		if retries < 0 {
			retries = 0
		}
		c.retries = retries
	}
}

// WithBackoff sets the delays between retry attempts. Attempts beyond the
// schedule reuse the last delay.
func WithBackoff(schedule []time.Duration) Option {
	return func(c *Client) {
		if len(schedule) > 0 {
			c.backoff = schedule
		}
	}
}

// WithPermitPool attaches the process-wide concurrency permit pool.
func WithPermitPool(pool *PermitPool) Option {
	return func(c *Client) {
		c.pool = pool
	}
}

// WithRateLimit paces outbound attempts at rps requests per second with the
// given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 && burst > 0 {
			c.pacer = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithPollInterval sets the initial delay between async job status polls.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithHeader adds a header to every request this client sends.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if key != "" && value != "" {
			c.headers[key] = value
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}
