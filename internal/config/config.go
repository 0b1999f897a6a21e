// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr configures the Prometheus listen address, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// VideoAIBaseURL is the external video-analysis service base URL.
	// Empty means the external gait signal is never requested.
	VideoAIBaseURL string `koanf:"video_ai_base_url"`

	// VideoAIAsync switches the video AI to submit-then-poll mode.
	VideoAIAsync bool `koanf:"video_ai_async"`

	// PedigreeAIBaseURL is the pedigree/text AI service base URL.
	PedigreeAIBaseURL string `koanf:"pedigree_ai_base_url"`

	// PedigreeAIKey is the pedigree AI credential. Empty means the
	// collaborator is never called and consumers see an absent summary.
	PedigreeAIKey string `koanf:"pedigree_ai_key"`

	// TranscodeBaseURL is the video transcoding service base URL.
	TranscodeBaseURL string `koanf:"transcode_base_url"`

	// ConnectTimeoutMS / ReadTimeoutMS / TotalTimeoutMS form the outbound
	// timeout triple shared by all external calls.
	ConnectTimeoutMS int `koanf:"connect_timeout_ms"`
	ReadTimeoutMS    int `koanf:"read_timeout_ms"`
	TotalTimeoutMS   int `koanf:"total_timeout_ms"`

	// MaxRetries bounds retry attempts beyond the first try.
	MaxRetries int `koanf:"max_retries"`

	// BackoffMS is the ordered wait schedule between retries; it is
	// clamped to its last value when retries exceed its length.
	BackoffMS []int `koanf:"backoff_ms"`

	// MaxConcurrentCalls bounds in-flight external calls process-wide.
	MaxConcurrentCalls int `koanf:"max_concurrent_calls"`

	// GatewayRPS / GatewayBurst pace outbound requests per collaborator
	// service. A non-positive RPS disables pacing.
	GatewayRPS   float64 `koanf:"gateway_rps"`
	GatewayBurst int     `koanf:"gateway_burst"`

	// JobPollMS is the base interval between asynchronous job polls.
	JobPollMS int `koanf:"job_poll_ms"`

	// WorkerCount sets the number of per-horse analysis workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory horse task queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets the size of the duplicate-opponent cache.
	DedupeSize int `koanf:"dedupe_size"`

	// CompositeWeights maps signal names (gait, pedigree, condition,
	// relative) to their fixed composite weights.
	CompositeWeights map[string]float64 `koanf:"composite_weights"`

	// ConditionWeights maps condition components (distance, surface,
	// footing, class, turn, features) to their agreement weights.
	ConditionWeights map[string]float64 `koanf:"condition_weights"`

	// RelativeTemperature scales the strength softmax of the field.
	RelativeTemperature float64 `koanf:"relative_temperature"`

	// MaxOpponents caps the resolved field size.
	MaxOpponents int `koanf:"max_opponents"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		MetricsAddr:        ":9090",
		ConnectTimeoutMS:   10_000,
		ReadTimeoutMS:      180_000,
		TotalTimeoutMS:     220_000,
		MaxRetries:         1,
		BackoffMS:          []int{500, 1000, 2000},
		MaxConcurrentCalls: 4,
		GatewayRPS:         10,
		GatewayBurst:       4,
		JobPollMS:          2000,
		WorkerCount:        runtime.NumCPU() * 2,
		QueueSize:          256,
		DedupeSize:         4096,
		CompositeWeights: map[string]float64{
			"gait":      0.50,
			"pedigree":  0.20,
			"condition": 0.15,
			"relative":  0.15,
		},
		ConditionWeights: map[string]float64{
			"distance": 0.25,
			"surface":  0.20,
			"footing":  0.15,
			"class":    0.10,
			"turn":     0.10,
			"features": 0.20,
		},
		RelativeTemperature: 12.0,
		MaxOpponents:        40,
	}
}

// ConnectTimeout returns the connect budget as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// ReadTimeout returns the per-request read budget as a duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// TotalTimeout returns the whole-call wall-clock budget as a duration.
func (c *Config) TotalTimeout() time.Duration {
	return time.Duration(c.TotalTimeoutMS) * time.Millisecond
}

// JobPollInterval returns the base asynchronous poll interval.
func (c *Config) JobPollInterval() time.Duration {
	return time.Duration(c.JobPollMS) * time.Millisecond
}

// Backoff returns the retry wait schedule as durations.
func (c *Config) Backoff() []time.Duration {
	out := make([]time.Duration, 0, len(c.BackoffMS))
	for _, ms := range c.BackoffMS {
		if ms < 0 {
			ms = 0
		}
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out
}
