package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	gateway "github.com/gaitlab/paddock/internal/adapters/gateway"
	"github.com/gaitlab/paddock/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func fastClient(service string, opts ...gateway.Option) *gateway.Client {
	base := []gateway.Option{
		gateway.WithTimeouts(time.Second, 500*time.Millisecond, 2*time.Second),
		gateway.WithRetries(1),
		gateway.WithBackoff([]time.Duration{time.Millisecond}),
	}
	return gateway.New(service, append(base, opts...)...)
}

func TestPostJSON(t *testing.T) {
	Convey("Given a collaborator service", t, func() {
		Convey("When the service answers 200", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"ok":true}`))
			}))
			defer srv.Close()

			res := fastClient("ok-service").PostJSON(context.Background(), srv.URL, map[string]string{"a": "b"})

			Convey("Then the result is OK with the payload", func() {
				So(res.Outcome, ShouldEqual, gateway.OutcomeOK)
				So(string(res.Body), ShouldEqual, `{"ok":true}`)
			})
		})

		Convey("When the service answers 404", func() {
			var attempts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				w.WriteHeader(http.StatusNotFound)
			}))
			defer srv.Close()

			res := fastClient("notfound-service").PostJSON(context.Background(), srv.URL, nil)

			Convey("Then the result is InvalidResponse and never retried", func() {
				So(res.Outcome, ShouldEqual, gateway.OutcomeInvalidResponse)
				So(attempts.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the service keeps answering 500", func() {
			var attempts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			res := fastClient("broken-service", gateway.WithRetries(2)).PostJSON(context.Background(), srv.URL, nil)

			Convey("Then the call retries up to the bound and reports Unavailable", func() {
				So(res.Outcome, ShouldEqual, gateway.OutcomeUnavailable)
				So(attempts.Load(), ShouldEqual, 3) // first try + 2 retries
			})
		})

		Convey("When the first attempt fails and the second succeeds", func() {
			var attempts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) == 1 {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				w.Write([]byte(`{"recovered":true}`))
			}))
			defer srv.Close()

			res := fastClient("flaky-service").PostJSON(context.Background(), srv.URL, nil)

			Convey("Then the retry recovers the call", func() {
				So(res.Outcome, ShouldEqual, gateway.OutcomeOK)
				So(attempts.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the service hangs past the read budget", func() {
			release := make(chan struct{})
			defer close(release)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer srv.Close()

			client := gateway.New("slow-service",
				gateway.WithTimeouts(time.Second, 50*time.Millisecond, 300*time.Millisecond),
				gateway.WithRetries(0),
			)
			res := client.PostJSON(context.Background(), srv.URL, nil)

			Convey("Then the result is Unavailable", func() {
				So(res.Outcome, ShouldEqual, gateway.OutcomeUnavailable)
			})
		})

		Convey("When the endpoint does not exist at all", func() {
			client := gateway.New("dead-service",
				gateway.WithTimeouts(200*time.Millisecond, 200*time.Millisecond, time.Second),
				gateway.WithRetries(0),
			)
			res := client.PostJSON(context.Background(), "http://127.0.0.1:1", nil)

			Convey("Then the connection error maps to Unavailable", func() {
				So(res.Outcome, ShouldEqual, gateway.OutcomeUnavailable)
			})
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a client paced at fifty requests per second", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		client := gateway.New("paced-service",
			gateway.WithTimeouts(time.Second, time.Second, 5*time.Second),
			gateway.WithRetries(0),
			gateway.WithRateLimit(50, 1),
		)

		Convey("When two calls go out back to back", func() {
			start := time.Now()
			first := client.PostJSON(context.Background(), srv.URL, nil)
			second := client.PostJSON(context.Background(), srv.URL, nil)
			elapsed := time.Since(start)

			Convey("Then the second call waits for the pacer", func() {
				So(first.Outcome, ShouldEqual, gateway.OutcomeOK)
				So(second.Outcome, ShouldEqual, gateway.OutcomeOK)
				So(elapsed, ShouldBeGreaterThanOrEqualTo, 15*time.Millisecond)
			})
		})
	})
}

func TestPermitPool(t *testing.T) {
	Convey("Given a single shared permit", t, func() {
		pool := gateway.NewPermitPool(1)

		Convey("When one long call holds the permit", func() {
			holding := make(chan struct{})
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				close(holding)
				<-release
				w.Write([]byte(`{}`))
			}))
			defer srv.Close()

			holder := gateway.New("holder",
				gateway.WithTimeouts(time.Second, 5*time.Second, 5*time.Second),
				gateway.WithPermitPool(pool),
			)
			go holder.PostJSON(context.Background(), srv.URL, nil)
			<-holding

			waiter := gateway.New("waiter",
				gateway.WithTimeouts(time.Second, time.Second, 100*time.Millisecond),
				gateway.WithPermitPool(pool),
			)
			res := waiter.PostJSON(context.Background(), srv.URL, nil)
			close(release)

			Convey("Then a second call gives up within its total budget", func() {
				So(res.Outcome, ShouldEqual, gateway.OutcomeUnavailable)
				So(res.Detail, ShouldContainSubstring, "permit")
			})
		})
	})
}

func TestSubmitAndPoll(t *testing.T) {
	Convey("Given an asynchronous analysis service", t, func() {
		Convey("When the job completes after a few polls", func() {
			var polls atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"job_id": "job-42"})
			})
			mux.HandleFunc("/jobs/job-42", func(w http.ResponseWriter, r *http.Request) {
				if polls.Add(1) < 3 {
					json.NewEncoder(w).Encode(map[string]string{"status": "running"})
					return
				}
				json.NewEncoder(w).Encode(map[string]any{
					"status": "done",
					"result": map[string]bool{"ok": true},
				})
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			client := gateway.New("async-service",
				gateway.WithTimeouts(time.Second, time.Second, 5*time.Second),
				gateway.WithRetries(0),
				gateway.WithPollInterval(5*time.Millisecond),
			)
			res := client.SubmitAndPoll(context.Background(), srv.URL+"/submit", map[string]string{"video_url": "v"},
				func(jobID string) string { return srv.URL + "/jobs/" + jobID })

			Convey("Then the result carries the job payload", func() {
				So(res.Outcome, ShouldEqual, gateway.OutcomeOK)
				So(string(res.Body), ShouldContainSubstring, `"ok":true`)
				So(polls.Load(), ShouldEqual, 3)
			})
		})

		Convey("When the job fails server-side", func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"job_id": "job-9"})
			})
			mux.HandleFunc("/jobs/job-9", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"status": "failed", "error": "decode error"})
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			client := gateway.New("async-fail",
				gateway.WithTimeouts(time.Second, time.Second, 5*time.Second),
				gateway.WithRetries(0),
				gateway.WithPollInterval(5*time.Millisecond),
			)
			res := client.SubmitAndPoll(context.Background(), srv.URL+"/submit", nil,
				func(jobID string) string { return srv.URL + "/jobs/" + jobID })

			Convey("Then the failure maps to Unavailable with the job detail", func() {
				So(res.Outcome, ShouldEqual, gateway.OutcomeUnavailable)
				So(res.Detail, ShouldContainSubstring, "job-9")
			})
		})

		Convey("When the job never reaches a terminal state", func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"job_id": "job-stuck"})
			})
			mux.HandleFunc("/jobs/job-stuck", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"status": "running"})
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			client := gateway.New("async-stuck",
				gateway.WithTimeouts(time.Second, time.Second, 150*time.Millisecond),
				gateway.WithRetries(0),
				gateway.WithPollInterval(5*time.Millisecond),
			)
			res := client.SubmitAndPoll(context.Background(), srv.URL+"/submit", nil,
				func(jobID string) string { return srv.URL + "/jobs/" + jobID })

			Convey("Then the total budget times the job out", func() {
				So(res.Outcome, ShouldEqual, gateway.OutcomeUnavailable)
				So(res.Detail, ShouldContainSubstring, "timed out")
			})
		})

		Convey("When the submit reply has no job id", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{}`))
			}))
			defer srv.Close()

			client := fastClient("async-noid")
			res := client.SubmitAndPoll(context.Background(), srv.URL, nil,
				func(jobID string) string { return srv.URL })

			Convey("Then the reply is invalid", func() {
				So(res.Outcome, ShouldEqual, gateway.OutcomeInvalidResponse)
			})
		})
	})
}
