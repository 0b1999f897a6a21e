package worker_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	queue "github.com/gaitlab/paddock/internal/adapters/mq/queue"
	worker "github.com/gaitlab/paddock/internal/adapters/mq/worker"
	"github.com/gaitlab/paddock/internal/adapters/repository"
	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
	"github.com/gaitlab/paddock/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeNormalizer struct{ suffix string }

func (f fakeNormalizer) Normalize(_ context.Context, videoURL string) string {
	return videoURL + f.suffix
}

type fakeSignals struct{ metrics *model.GaitMetrics }

func (f fakeSignals) Read(_ context.Context, _ string) *model.GaitMetrics { return f.metrics }

type fakeAnalyzer struct {
	mu      sync.Mutex
	gotURLs []string
	metrics *model.GaitMetrics
}

func (f *fakeAnalyzer) Analyze(_ context.Context, videoURL, _ string) *model.GaitMetrics {
	f.mu.Lock()
	f.gotURLs = append(f.gotURLs, videoURL)
	f.mu.Unlock()
	return f.metrics
}

type fakePedigree struct{ summary model.PedigreeSummary }

func (f fakePedigree) Summarize(_ context.Context, _ string) model.PedigreeSummary {
	return f.summary
}

type fakeMatcher struct {
	match   float64
	neutral bool
}

func (f fakeMatcher) Match(model.PedigreeSummary, []model.RaceHistoryEntry, model.RaceConditions) (float64, bool) {
	return f.match, f.neutral
}

func embeddedMetrics() *model.GaitMetrics {
	return &model.GaitMetrics{
		PitchRate:          2.1,
		StrideLength:       0.6,
		SwayIndex:          0.2,
		LeftRightAsymmetry: 0.05,
		FatigueSignal:      0.3,
		Source:             types.SourceEmbedded,
		Confidence:         0.8,
	}
}

func TestWorkerPipeline(t *testing.T) {
	Convey("Given a worker over a task queue", t, func() {
		ctx := context.Background()
		store := repository.NewFieldStore()
		analyzer := &fakeAnalyzer{}
		deps := worker.Deps{
			Normalizer: fakeNormalizer{suffix: "?normalized"},
			Signals:    fakeSignals{metrics: embeddedMetrics()},
			Analyzer:   analyzer,
			Pedigree:   fakePedigree{summary: model.PedigreeSummary{Present: true, Confidence: 0.5}},
			Matcher:    fakeMatcher{match: 0.7, neutral: false},
			Store:      store,
		}

		Convey("When a task flows through the pipeline", func() {
			q := queue.NewInMemoryQueue()
			var wg sync.WaitGroup
			wg.Add(1)
			So(q.Enqueue(ctx, queue.Task{
				Horse: model.HorseEntry{
					ID:       "horse-1",
					Name:     "Bold Venture",
					VideoRef: "http://v.example/clip.mp4",
					Rating:   62,
				},
				Done: wg.Done,
			}), ShouldBeTrue)

			w := worker.NewInMemoryWorker(q, deps)
			go w.Run(ctx)
			wg.Wait()

			shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			So(w.Shutdown(shutdownCtx), ShouldBeNil)

			Convey("Then the record lands in the store with every signal", func() {
				rec, err := store.Get(ctx, "horse-1")
				So(err, ShouldBeNil)
				So(rec.Name, ShouldEqual, "Bold Venture")
				So(rec.Metrics.Present(), ShouldBeTrue)
				So(rec.Pedigree.Present, ShouldBeTrue)
				So(rec.ConditionMatch, ShouldEqual, 0.7)
				So(rec.ConditionNeutral, ShouldBeFalse)
				So(rec.Rating, ShouldEqual, 62)
			})

			Convey("And the analyzer saw the normalized footage reference", func() {
				analyzer.mu.Lock()
				defer analyzer.mu.Unlock()
				So(analyzer.gotURLs, ShouldResemble, []string{"http://v.example/clip.mp4?normalized"})
			})
		})

		Convey("When a horse has no footage and no telemetry", func() {
			q := queue.NewInMemoryQueue()
			bare := worker.Deps{
				Signals:  fakeSignals{},
				Analyzer: analyzer,
				Pedigree: fakePedigree{summary: model.AbsentPedigree()},
				Matcher:  fakeMatcher{match: 0.5, neutral: true},
				Store:    store,
			}

			var wg sync.WaitGroup
			wg.Add(1)
			So(q.Enqueue(ctx, queue.Task{
				Horse: model.HorseEntry{ID: "horse-2"},
				Done:  wg.Done,
			}), ShouldBeTrue)

			w := worker.NewInMemoryWorker(q, bare)
			go w.Run(ctx)
			wg.Wait()

			shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			So(w.Shutdown(shutdownCtx), ShouldBeNil)

			Convey("Then the record is stored with every signal absent", func() {
				rec, err := store.Get(ctx, "horse-2")
				So(err, ShouldBeNil)
				So(rec.Metrics.Present(), ShouldBeFalse)
				So(rec.Pedigree.Present, ShouldBeFalse)
				So(rec.ConditionNeutral, ShouldBeTrue)
			})

			Convey("And the analyzer was never called", func() {
				analyzer.mu.Lock()
				defer analyzer.mu.Unlock()
				So(analyzer.gotURLs, ShouldBeEmpty)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a worker pool", t, func() {
		ctx := context.Background()
		store := repository.NewFieldStore()
		deps := worker.Deps{
			Signals:  fakeSignals{metrics: embeddedMetrics()},
			Pedigree: fakePedigree{summary: model.AbsentPedigree()},
			Matcher:  fakeMatcher{match: 0.5, neutral: true},
			Store:    store,
		}

		Convey("When several tasks run through the pool", func() {
			q := queue.NewInMemoryQueue()
			pool := worker.NewPool(3, q, deps)
			pool.Start(ctx)

			ids := []string{"a", "b", "c", "d", "e"}
			var wg sync.WaitGroup
			for _, id := range ids {
				wg.Add(1)
				So(q.Enqueue(ctx, queue.Task{
					Horse: model.HorseEntry{ID: id},
					Done:  wg.Done,
				}), ShouldBeTrue)
			}
			wg.Wait()
			So(pool.Shutdown(ctx), ShouldBeNil)

			Convey("Then every horse ends up in the store exactly once", func() {
				So(store.Count(ctx), ShouldEqual, len(ids))
				field, err := store.Field(ctx)
				So(err, ShouldBeNil)
				So(field, ShouldHaveLength, len(ids))
			})

			Convey("And the queue is closed after shutdown", func() {
				So(q.IsClosed(), ShouldBeTrue)
			})
		})
	})
}
