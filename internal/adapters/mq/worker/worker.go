// Package worker runs the per-horse analysis pipeline off the task queue:
// footage normalization, the two gait readings, reconciliation, pedigree
// summary and condition matching, ending in a field store write.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/gaitlab/paddock/internal/adapters/mq/queue"
	"github.com/gaitlab/paddock/internal/adapters/repository"
	"github.com/gaitlab/paddock/internal/domain/gait"
	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/pkg/logger"
	"github.com/gaitlab/paddock/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Task is what workers read off the queue.
type Task = queue.Task

// FootageNormalizer converts footage references before analysis.
type FootageNormalizer interface {
	Normalize(ctx context.Context, videoURL string) string
}

// SignalReader loads the embedded telemetry gait reading.
type SignalReader interface {
	Read(ctx context.Context, path string) *model.GaitMetrics
}

// GaitAnalyzer obtains the external gait reading.
type GaitAnalyzer interface {
	Analyze(ctx context.Context, videoURL, videoPath string) *model.GaitMetrics
}

// PedigreeSummarizer produces the pedigree signal from raw text.
type PedigreeSummarizer interface {
	Summarize(ctx context.Context, pedigreeText string) model.PedigreeSummary
}

// ConditionMatcher scores history/pedigree compatibility with the target.
type ConditionMatcher interface {
	Match(pedigree model.PedigreeSummary, history []model.RaceHistoryEntry, target model.RaceConditions) (float64, bool)
}

// Writer persists one horse's accumulated analysis state.
type Writer interface {
	Put(ctx context.Context, rec repository.Record) error
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Deps bundles the pipeline collaborators a worker needs.
type Deps struct {
	Normalizer FootageNormalizer
	Signals    SignalReader
	Analyzer   GaitAnalyzer
	Pedigree   PedigreeSummarizer
	Matcher    ConditionMatcher
	Store      Writer
}

// Worker processes analysis tasks until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker. It will finish the task in
	// flight before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing analysis tasks.
type InMemoryWorker struct {
	queue Queue
	deps  Deps
	name  string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, deps Deps, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		deps:     deps,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	taskChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-taskChan:
			if !ok {
				return
			}
			if err := w.processTask(ctx, task); err != nil {
				w.logger.Error(ctx, "error processing task", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processTask runs the full pipeline for one horse. Signal failures are
// degradations, not errors; only a store write failure is reported.
func (w *InMemoryWorker) processTask(ctx context.Context, task Task) error {
	if task.Done != nil {
		defer task.Done()
	}

	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	horse := task.Horse

	videoURL := horse.VideoRef
	if w.deps.Normalizer != nil && videoURL != "" {
		videoURL = w.deps.Normalizer.Normalize(ctx, videoURL)
	}

	var embedded *model.GaitMetrics
	if w.deps.Signals != nil {
		embedded = w.deps.Signals.Read(ctx, horse.SignalPath)
	}

	var external *model.GaitMetrics
	if w.deps.Analyzer != nil && (videoURL != "" || horse.VideoPath != "") {
		external = w.deps.Analyzer.Analyze(ctx, videoURL, horse.VideoPath)
	}

	merged := gait.Reconcile(embedded, external)
	if !merged.Present() {
		metrics.RecordSignalDegraded("gait")
		w.logger.Warn(ctx, "no gait reading for horse",
			logger.String("horse_id", horse.ID),
		)
	}

	pedigree := model.AbsentPedigree()
	if w.deps.Pedigree != nil {
		pedigree = w.deps.Pedigree.Summarize(ctx, horse.PedigreeText)
	}

	match, neutral := w.deps.Matcher.Match(pedigree, horse.History, task.Target)

	rec := repository.Record{
		HorseID:          horse.ID,
		Name:             horse.Name,
		Metrics:          merged,
		Pedigree:         pedigree,
		ConditionMatch:   match,
		ConditionNeutral: neutral,
		Rating:           horse.Rating,
	}
	if err := w.deps.Store.Put(ctx, rec); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		w.logger.Error(ctx, "field store write failed",
			logger.String("horse_id", horse.ID),
			logger.Error(err),
		)
		return fmt.Errorf("store record for %s: %w", horse.ID, err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, deps Deps) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, deps, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
