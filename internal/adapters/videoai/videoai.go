// Package videoai talks to the external video analysis service and turns
// its responses into gait metric readings.
//
// The adapter degrades instead of failing: any unavailable or invalid
// response yields a nil reading and the pipeline continues on whatever
// other gait source exists.
package videoai

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gaitlab/paddock/internal/adapters/gateway"
	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
	"github.com/gaitlab/paddock/pkg/logger"
)

// Confidence derived from the analyzer's own quality estimate: a perfect
// quality read maps to 1.0, an unusable one to the floor.
const (
	confidenceFloor   = 0.65
	confidenceQuality = 0.35
)

// envelope is the analyzer's response shape.
type envelope struct {
	OK        bool `json:"ok"`
	CVMetrics struct {
		Quality struct {
			Score float64 `json:"score_0_100"`
		} `json:"quality"`
		Gait struct {
			PitchHz     float64 `json:"pitch_hz"`
			StrideIndex float64 `json:"stride_index"`
			WobbleRatio float64 `json:"wobble_ratio_0_1"`
			Fatigue     float64 `json:"fatigue_0_1"`
		} `json:"gait"`
		Asymmetry struct {
			LRRatio float64 `json:"lr_asymmetry_ratio"`
		} `json:"asymmetry"`
	} `json:"cv_metrics"`
	Detail string `json:"detail"`
}

// Analyzer is the client for the external video AI service.
type Analyzer struct {
	base      string
	gw        *gateway.Client
	asyncMode bool
	log       logger.Logger
}

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithAsyncMode switches URL analysis to submit-and-poll.
func WithAsyncMode(enabled bool) Option {
	return func(a *Analyzer) {
		a.asyncMode = enabled
	}
}

// WithLogger sets the analyzer logger.
func WithLogger(log logger.Logger) Option {
	return func(a *Analyzer) {
		a.log = log
	}
}

// New creates an Analyzer. An empty baseURL disables the service entirely;
// Analyze then always reports the signal as absent.
func New(baseURL string, gw *gateway.Client, opts ...Option) *Analyzer {
	a := &Analyzer{base: baseURL, gw: gw}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Named("videoai")
	}
	return a
}

// Enabled reports whether a service endpoint is configured.
func (a *Analyzer) Enabled() bool { return a.base != "" }

// Analyze obtains external gait metrics for one horse's footage. videoURL
// takes priority; videoPath is the multipart fallback when the URL route is
// not supported. Returns nil when the signal is unavailable, never an error.
func (a *Analyzer) Analyze(ctx context.Context, videoURL, videoPath string) *model.GaitMetrics {
	if !a.Enabled() {
		return nil
	}

	if videoURL != "" {
		var res gateway.Result
		if a.asyncMode {
			res = a.gw.SubmitAndPoll(ctx, a.base+"/analyze_async_url",
				map[string]string{"video_url": videoURL},
				func(jobID string) string { return a.base + "/jobs/" + jobID },
			)
		} else {
			res = a.gw.PostJSON(ctx, a.base+"/analyze_url", map[string]string{"video_url": videoURL})
		}
		if res.IsOK() {
			return a.parse(ctx, res.Body)
		}
		// An endpoint that rejects the URL route may still accept an
		// upload; anything else is a dead service.
		if res.Outcome != gateway.OutcomeInvalidResponse || videoPath == "" {
			a.log.Warn(ctx, "video analysis unavailable",
				logger.String("outcome", string(res.Outcome)),
				logger.String("detail", res.Detail),
			)
			return nil
		}
	}

	if videoPath == "" {
		return nil
	}
	content, err := os.ReadFile(videoPath)
	if err != nil {
		a.log.Warn(ctx, "video file unreadable", logger.Error(err))
		return nil
	}
	res := a.gw.PostMultipart(ctx, a.base+"/analyze", "file", filepath.Base(videoPath), content)
	if !res.IsOK() {
		a.log.Warn(ctx, "video upload analysis unavailable",
			logger.String("outcome", string(res.Outcome)),
			logger.String("detail", res.Detail),
		)
		return nil
	}
	return a.parse(ctx, res.Body)
}

// parse decodes the analyzer envelope into a gait reading, or nil when the
// payload cannot be trusted.
func (a *Analyzer) parse(ctx context.Context, body []byte) *model.GaitMetrics {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		a.log.Warn(ctx, "video analysis payload malformed", logger.Error(err))
		return nil
	}
	if !env.OK {
		a.log.Warn(ctx, "video analysis reported failure", logger.String("detail", env.Detail))
		return nil
	}

	q := env.CVMetrics.Quality.Score / 100
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}

	return &model.GaitMetrics{
		PitchRate:          env.CVMetrics.Gait.PitchHz,
		StrideLength:       env.CVMetrics.Gait.StrideIndex,
		SwayIndex:          env.CVMetrics.Gait.WobbleRatio,
		LeftRightAsymmetry: env.CVMetrics.Asymmetry.LRRatio,
		FatigueSignal:      env.CVMetrics.Gait.Fatigue,
		Source:             types.SourceExternal,
		Confidence:         confidenceFloor + confidenceQuality*q,
	}
}
