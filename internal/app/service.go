// Package service wires the paddock analysis pipeline together: opponent
// resolution, the per-horse worker pool, the field join point, relative
// probability estimation and composite scoring.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gaitlab/paddock/internal/adapters/embedded"
	"github.com/gaitlab/paddock/internal/adapters/gateway"
	taskqueue "github.com/gaitlab/paddock/internal/adapters/mq/queue"
	workerpool "github.com/gaitlab/paddock/internal/adapters/mq/worker"
	"github.com/gaitlab/paddock/internal/adapters/pedigree"
	"github.com/gaitlab/paddock/internal/adapters/racecard"
	"github.com/gaitlab/paddock/internal/adapters/repository"
	"github.com/gaitlab/paddock/internal/adapters/transcode"
	"github.com/gaitlab/paddock/internal/adapters/videoai"
	"github.com/gaitlab/paddock/internal/config"
	"github.com/gaitlab/paddock/internal/domain/conditions"
	"github.com/gaitlab/paddock/internal/domain/dedupe"
	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/relative"
	"github.com/gaitlab/paddock/internal/domain/scoring"
	"github.com/gaitlab/paddock/internal/domain/types"
	"github.com/gaitlab/paddock/pkg/logger"
	"github.com/gaitlab/paddock/pkg/metrics"
)

// Service runs field evaluations end to end. Long-lived collaborators are
// built once at Start; each run gets its own field store, queue and worker
// pool since a field is small and runs are independent.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	permits    *gateway.PermitPool
	signals    *embedded.Reader
	video      *videoai.Analyzer
	pedigree   *pedigree.Client
	transcoder *transcode.Normalizer
	resolver   *racecard.Resolver
	matcher    *conditions.Matcher
	estimator  *relative.Estimator
	scorer     *scoring.Scorer
	deduper    dedupe.Deduper

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a Service from the loaded configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the gateway clients and domain collaborators.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("evaluator")
	}

	s.logger.Info(ctx, "starting evaluator service...")

	s.permits = gateway.NewPermitPool(s.cfg.MaxConcurrentCalls)
	s.signals = embedded.NewReader()
	s.video = videoai.New(
		s.cfg.VideoAIBaseURL,
		s.newGateway("videoai"),
		videoai.WithAsyncMode(s.cfg.VideoAIAsync),
	)

	validator, err := pedigree.NewValidator()
	if err != nil {
		return err
	}
	s.pedigree = pedigree.New(
		s.cfg.PedigreeAIBaseURL,
		s.cfg.PedigreeAIKey,
		s.newGateway("pedigree", gateway.WithHeader("Authorization", bearerToken(s.cfg.PedigreeAIKey))),
		validator,
	)

	s.transcoder = transcode.New(s.cfg.TranscodeBaseURL, s.newGateway("transcode"))
	s.resolver = racecard.NewResolver(
		s.newGateway("racecard"),
		racecard.WithMaxOpponents(s.cfg.MaxOpponents),
	)

	s.matcher = conditions.New(conditions.WithWeights(s.cfg.ConditionWeights))
	s.estimator = relative.New(relative.WithTemperature(s.cfg.RelativeTemperature))
	s.scorer = scoring.New(scoring.WithWeights(s.cfg.CompositeWeights))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))

	s.started = true
	s.logger.Info(ctx, "evaluator service started",
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("max_concurrent_calls", s.cfg.MaxConcurrentCalls),
		logger.Bool("video_ai_async", s.cfg.VideoAIAsync),
	)
	return nil
}

// Stop shuts the service down. Per-run resources are torn down at the end
// of each run, so there is little to release here.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "evaluator service stopped")
}

func (s *Service) newGateway(name string, extra ...gateway.Option) *gateway.Client {
	opts := []gateway.Option{
		gateway.WithTimeouts(s.cfg.ConnectTimeout(), s.cfg.ReadTimeout(), s.cfg.TotalTimeout()),
		gateway.WithRetries(s.cfg.MaxRetries),
		gateway.WithBackoff(s.cfg.Backoff()),
		gateway.WithPermitPool(s.permits),
		gateway.WithRateLimit(s.cfg.GatewayRPS, s.cfg.GatewayBurst),
		gateway.WithPollInterval(s.cfg.JobPollInterval()),
	}
	return gateway.New(name, append(opts, extra...)...)
}

// bearerToken formats a credential for the Authorization header. An empty
// key yields an empty value, which WithHeader treats as no header at all.
func bearerToken(key string) string {
	if key == "" {
		return ""
	}
	return "Bearer " + key
}

// Evaluate analyzes the subject horse against its field and produces the
// full report. Signal failures degrade individual inputs; only an unusable
// request fails.
func (s *Service) Evaluate(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisReport, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}
	if req.Subject.ID == "" && req.Subject.Name == "" {
		return nil, ErrEmptySubject
	}

	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	start := time.Now()
	metrics.RecordAnalysisStarted()
	defer func() {
		metrics.RecordAnalysisCompleted(float64(time.Since(start).Milliseconds()))
	}()

	report := &model.AnalysisReport{RunID: req.RunID, StartedAt: start}

	target := req.Target
	opponents := req.Opponents
	if len(opponents) == 0 {
		resolution := s.resolver.Resolve(ctx, req.RaceRef, req.ExplicitOpponents, req.EntrantsText)
		report.ManualOpponentsRequired = resolution.ManualRequired
		if resolution.ConditionsKnown && targetUnset(target) {
			target = resolution.Conditions
		}
		for _, o := range resolution.Opponents {
			opponents = append(opponents, model.HorseEntry{
				ID:       o.Identifier,
				Name:     o.Identifier,
				VideoRef: o.SourceVideoRef,
				Rating:   o.Rating,
			})
		}
	}
	if target.TrackFeatures == nil {
		target.TrackFeatures = conditions.InferTrackFeatures(req.Notes)
	}

	records, err := s.analyzeField(ctx, req, opponents, target)
	if err != nil {
		return nil, err
	}

	report.Results = s.scoreField(ctx, records, target)
	report.Duration = time.Since(start)

	s.logger.Info(ctx, "evaluation complete",
		logger.String("run_id", req.RunID),
		logger.Int("horses", len(report.Results)),
		logger.Bool("manual_opponents_required", report.ManualOpponentsRequired),
		logger.Duration("duration", report.Duration),
	)
	return report, nil
}

// analyzeField fans the subject and opponents out over a run-scoped worker
// pool and joins on completion of every horse.
func (s *Service) analyzeField(ctx context.Context, req model.AnalysisRequest, opponents []model.HorseEntry, target model.RaceConditions) ([]repository.Record, error) {
	store := repository.NewFieldStore()
	q := taskqueue.NewInMemoryQueue(taskqueue.WithCapacity(s.cfg.QueueSize))
	pool := workerpool.NewPool(s.cfg.WorkerCount, q, workerpool.Deps{
		Normalizer: s.transcoder,
		Signals:    s.signals,
		Analyzer:   s.video,
		Pedigree:   s.pedigree,
		Matcher:    s.matcher,
		Store:      store,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool.Start(runCtx)

	var wg sync.WaitGroup
	enqueue := func(h model.HorseEntry) {
		if h.ID == "" {
			h.ID = h.Name
		}
		if s.deduper.SeenAndRecord(ctx, req.RunID+"/"+h.ID) {
			s.logger.Debug(ctx, "duplicate horse skipped", logger.String("horse_id", h.ID))
			return
		}
		wg.Add(1)
		ok := q.Enqueue(ctx, taskqueue.Task{Horse: h, Target: target, Done: wg.Done})
		if !ok {
			wg.Done()
			s.deduper.Unrecord(ctx, req.RunID+"/"+h.ID)
			s.logger.Warn(ctx, "task dropped, queue rejected horse", logger.String("horse_id", h.ID))
		}
	}

	enqueue(req.Subject)
	for _, o := range opponents {
		enqueue(o)
	}

	// Join on every accepted task, but never past the caller's deadline.
	// On cancellation the pool shutdown closes the queue, which releases
	// the Done of every task that will no longer be processed.
	joined := make(chan struct{})
	go func() {
		wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-ctx.Done():
	}

	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	<-joined

	if err := ctx.Err(); err != nil {
		s.logger.Warn(ctx, "evaluation canceled mid-field", logger.Error(err))
		return nil, err
	}
	return store.Field(ctx)
}

// scoreField runs the join-point stages: the field-relative estimate over
// every reconciled reading, then one composite score per horse.
func (s *Service) scoreField(ctx context.Context, records []repository.Record, target model.RaceConditions) []model.HorseResult {
	field := make([]relative.FieldEntry, 0, len(records))
	for _, rec := range records {
		field = append(field, relative.FieldEntry{
			HorseID:        rec.HorseID,
			Metrics:        rec.Metrics,
			ConditionMatch: rec.ConditionMatch,
			Rating:         rec.Rating,
		})
	}

	probs, err := s.estimator.Estimate(field)
	if err != nil {
		// Empty field; nothing to score.
		return nil
	}

	results := make([]model.HorseResult, 0, len(records))
	for _, rec := range records {
		var rel *model.RelativeProbabilities
		if p, ok := probs[rec.HorseID]; ok {
			rp := p
			rel = &rp
		}

		score := s.scorer.Score(scoring.Inputs{
			Gait:             rec.Metrics,
			Pedigree:         rec.Pedigree,
			ConditionMatch:   rec.ConditionMatch,
			ConditionNeutral: rec.ConditionNeutral,
			Relative:         rel,
			FieldSize:        len(records),
			Target:           target,
		})
		metrics.RecordScoreProduced()
		for _, sig := range []types.Signal{types.SignalGait, types.SignalPedigree, types.SignalCondition, types.SignalRelative} {
			if !score.InputsUsed[sig] {
				metrics.RecordSignalDegraded(string(sig))
			}
		}

		results = append(results, model.HorseResult{
			HorseID:          rec.HorseID,
			Name:             rec.Name,
			Metrics:          rec.Metrics,
			Pedigree:         rec.Pedigree,
			Condition:        rec.ConditionMatch,
			ConditionNeutral: rec.ConditionNeutral,
			Score:            score,
		})
	}
	return results
}

// targetUnset reports whether the request declared no target conditions at
// all, letting parsed racecard metadata stand in.
func targetUnset(t model.RaceConditions) bool {
	return t.DistanceMeters == 0 &&
		(t.Surface == "" || t.Surface == types.SurfaceUnknown) &&
		(t.Footing == "" || t.Footing == types.FootingUnknown) &&
		t.ClassLevel == "" &&
		(t.TurnDirection == "" || t.TurnDirection == types.TurnUnknown) &&
		t.TrackFeatures.Len() == 0
}
