package videoai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gaitlab/paddock/internal/adapters/gateway"
	videoai "github.com/gaitlab/paddock/internal/adapters/videoai"
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

const goodEnvelope = `{
	"ok": true,
	"cv_metrics": {
		"quality": {"score_0_100": 90},
		"gait": {"pitch_hz": 2.2, "stride_index": 0.58, "wobble_ratio_0_1": 0.21, "fatigue_0_1": 0.4},
		"asymmetry": {"lr_asymmetry_ratio": 0.07}
	}
}`

func testGateway() *gateway.Client {
	return gateway.New("videoai-test",
		gateway.WithTimeouts(time.Second, time.Second, 3*time.Second),
		gateway.WithRetries(0),
		gateway.WithPollInterval(5*time.Millisecond),
	)
}

func TestAnalyze(t *testing.T) {
	Convey("Given a video analysis adapter", t, func() {
		ctx := context.Background()

		Convey("When no service endpoint is configured", func() {
			analyzer := videoai.New("", testGateway())

			Convey("Then the adapter is disabled and the signal absent", func() {
				So(analyzer.Enabled(), ShouldBeFalse)
				So(analyzer.Analyze(ctx, "http://v.example/clip.mp4", ""), ShouldBeNil)
			})
		})

		Convey("When the URL route answers a good envelope", func() {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.Write([]byte(goodEnvelope))
			}))
			defer srv.Close()

			analyzer := videoai.New(srv.URL, testGateway())
			m := analyzer.Analyze(ctx, "http://v.example/clip.mp4", "")

			Convey("Then the external reading is decoded", func() {
				So(gotPath, ShouldEqual, "/analyze_url")
				So(m, ShouldNotBeNil)
				So(m.Source, ShouldEqual, types.SourceExternal)
				So(m.PitchRate, ShouldEqual, 2.2)
				So(m.LeftRightAsymmetry, ShouldEqual, 0.07)
				So(m.Confidence, ShouldAlmostEqual, 0.65+0.35*0.9, 1e-9)
			})
		})

		Convey("When the service reports ok false", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"ok":false,"detail":"no horse detected"}`))
			}))
			defer srv.Close()

			analyzer := videoai.New(srv.URL, testGateway())

			Convey("Then the signal is absent", func() {
				So(analyzer.Analyze(ctx, "http://v.example/clip.mp4", ""), ShouldBeNil)
			})
		})

		Convey("When the service is down", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			analyzer := videoai.New(srv.URL, testGateway())

			Convey("Then the adapter degrades to an absent signal", func() {
				So(analyzer.Analyze(ctx, "http://v.example/clip.mp4", "/tmp/clip.mp4"), ShouldBeNil)
			})
		})

		Convey("When the URL route is rejected but an upload is accepted", func() {
			dir := t.TempDir()
			clip := filepath.Join(dir, "clip.mp4")
			So(os.WriteFile(clip, []byte("fake video bytes"), 0o600), ShouldBeNil)

			mux := http.NewServeMux()
			mux.HandleFunc("/analyze_url", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})
			var gotContentType string
			mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
				gotContentType = r.Header.Get("Content-Type")
				w.Write([]byte(goodEnvelope))
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			analyzer := videoai.New(srv.URL, testGateway())
			m := analyzer.Analyze(ctx, "http://v.example/clip.mp4", clip)

			Convey("Then the multipart fallback recovers the reading", func() {
				So(m, ShouldNotBeNil)
				So(m.Source, ShouldEqual, types.SourceExternal)
				So(gotContentType, ShouldStartWith, "multipart/form-data")
			})
		})

		Convey("When the async mode runs a submit-and-poll job", func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/analyze_async_url", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"job_id":"vid-7"}`))
			})
			mux.HandleFunc("/jobs/vid-7", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"succeeded","result":` + goodEnvelope + `}`))
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			analyzer := videoai.New(srv.URL, testGateway(), videoai.WithAsyncMode(true))
			m := analyzer.Analyze(ctx, "http://v.example/clip.mp4", "")

			Convey("Then the job result decodes like a direct reply", func() {
				So(m, ShouldNotBeNil)
				So(m.StrideLength, ShouldEqual, 0.58)
			})
		})
	})
}
