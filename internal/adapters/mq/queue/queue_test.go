package queue_test

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	queue "github.com/gaitlab/paddock/internal/adapters/mq/queue"
	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func task(id string) queue.Task {
	return queue.Task{Horse: model.HorseEntry{ID: id}}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given an in-memory task queue", t, func() {
		ctx := context.Background()

		Convey("When tasks are enqueued", func() {
			q := queue.NewInMemoryQueue()
			So(q.Enqueue(ctx, task("h1")), ShouldBeTrue)
			So(q.Enqueue(ctx, task("h2")), ShouldBeTrue)

			Convey("Then the length reflects them", func() {
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("And dequeue delivers them in order", func() {
				out := q.Dequeue(ctx)
				first := <-out
				second := <-out
				So(first.Horse.ID, ShouldEqual, "h1")
				So(second.Horse.ID, ShouldEqual, "h2")
			})
		})

		Convey("When the queue is at capacity", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(1))
			So(q.Enqueue(ctx, task("h1")), ShouldBeTrue)

			Convey("Then the next enqueue is dropped, not blocked", func() {
				So(q.Enqueue(ctx, task("h2")), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When the queue is closed", func() {
			q := queue.NewInMemoryQueue()
			So(q.Enqueue(ctx, task("h1")), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue is rejected", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, task("h2")), ShouldBeFalse)
			})

			Convey("And closing again is harmless", func() {
				So(q.Close(), ShouldBeNil)
			})

			Convey("And the dequeue channel drains then closes", func() {
				out := q.Dequeue(ctx)
				got, ok := <-out
				So(ok, ShouldBeTrue)
				So(got.Horse.ID, ShouldEqual, "h1")
				_, ok = <-out
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When accepted tasks outlive their consumer", func() {
			q := queue.NewInMemoryQueue()
			var released sync.WaitGroup
			for i := 0; i < 3; i++ {
				released.Add(1)
				So(q.Enqueue(ctx, queue.Task{
					Horse: model.HorseEntry{ID: "h" + strconv.Itoa(i)},
					Done:  released.Done,
				}), ShouldBeTrue)
			}

			cancelCtx, cancel := context.WithCancel(ctx)
			_ = q.Dequeue(cancelCtx) // consumer never reads
			cancel()
			So(q.Close(), ShouldBeNil)

			Convey("Then every Done callback is still released", func() {
				done := make(chan struct{})
				go func() {
					released.Wait()
					close(done)
				}()
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					So("tasks were dropped without Done", ShouldBeEmpty)
				}
			})
		})

		Convey("When the consumer context is canceled", func() {
			q := queue.NewInMemoryQueue()
			cancelCtx, cancel := context.WithCancel(ctx)
			out := q.Dequeue(cancelCtx)
			cancel()
			So(q.Enqueue(ctx, task("h1")), ShouldBeTrue)

			Convey("Then the dequeue channel shuts down", func() {
				select {
				case _, ok := <-out:
					So(ok, ShouldBeFalse)
				case <-time.After(time.Second):
					So("dequeue channel never closed", ShouldBeEmpty)
				}
			})
		})
	})
}
