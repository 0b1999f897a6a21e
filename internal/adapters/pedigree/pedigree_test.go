package pedigree_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gaitlab/paddock/internal/adapters/gateway"
	pedigree "github.com/gaitlab/paddock/internal/adapters/pedigree"
	"github.com/gaitlab/paddock/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testGateway() *gateway.Client {
	return gateway.New("pedigree-test",
		gateway.WithTimeouts(time.Second, time.Second, 2*time.Second),
		gateway.WithRetries(0),
	)
}

func TestParse(t *testing.T) {
	Convey("Given the pedigree reply contract", t, func() {
		validator, err := pedigree.NewValidator()
		So(err, ShouldBeNil)

		Convey("When the payload satisfies the contract", func() {
			body := []byte(`{
				"ok": true,
				"tendency_tags": ["stamina"],
				"best_condition_tags": ["Turf", "route"],
				"notes": " stays all day ",
				"confidence_0_1": 0.8
			}`)
			summary, err := validator.Parse(body)

			Convey("Then the summary is present with folded tags", func() {
				So(err, ShouldBeNil)
				So(summary.Present, ShouldBeTrue)
				So(summary.TendencyTags.Has("stamina"), ShouldBeTrue)
				So(summary.BestConditionTags.Has("turf"), ShouldBeTrue)
				So(summary.FreeTextNotes, ShouldEqual, "stays all day")
				So(summary.Confidence, ShouldEqual, 0.8)
			})
		})

		Convey("When the confidence is omitted", func() {
			body := []byte(`{"ok":true,"tendency_tags":[],"best_condition_tags":[],"notes":""}`)
			summary, err := validator.Parse(body)

			Convey("Then the default confidence applies", func() {
				So(err, ShouldBeNil)
				So(summary.Confidence, ShouldEqual, 0.5)
			})
		})

		Convey("When a required key is missing", func() {
			body := []byte(`{"ok":true,"tendency_tags":[],"notes":""}`)
			_, err := validator.Parse(body)

			Convey("Then the contract rejects it outright", func() {
				So(errors.Is(err, pedigree.ErrSchemaViolation), ShouldBeTrue)
			})
		})

		Convey("When the confidence is out of range", func() {
			body := []byte(`{"ok":true,"tendency_tags":[],"best_condition_tags":[],"notes":"","confidence_0_1":1.5}`)
			_, err := validator.Parse(body)

			Convey("Then the contract rejects it", func() {
				So(errors.Is(err, pedigree.ErrSchemaViolation), ShouldBeTrue)
			})
		})

		Convey("When the payload is not JSON at all", func() {
			_, err := validator.Parse([]byte("<html>oops</html>"))

			Convey("Then it is malformed", func() {
				So(errors.Is(err, pedigree.ErrMalformedPayload), ShouldBeTrue)
			})
		})

		Convey("When the service answers ok false", func() {
			body := []byte(`{"ok":false,"tendency_tags":[],"best_condition_tags":[],"notes":"no data"}`)
			summary, err := validator.Parse(body)

			Convey("Then the signal is absent without error", func() {
				So(err, ShouldBeNil)
				So(summary.Present, ShouldBeFalse)
			})
		})

		Convey("When the payload carries unknown extra fields", func() {
			body := []byte(`{"ok":true,"tendency_tags":["speed"],"best_condition_tags":[],"notes":"","vendor_meta":{"v":2}}`)
			summary, err := validator.Parse(body)

			Convey("Then they are tolerated", func() {
				So(err, ShouldBeNil)
				So(summary.Present, ShouldBeTrue)
				So(summary.TendencyTags.Has("speed"), ShouldBeTrue)
			})
		})
	})
}

func TestSummarize(t *testing.T) {
	Convey("Given a pedigree client", t, func() {
		validator, err := pedigree.NewValidator()
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When the text is empty", func() {
			client := pedigree.New("", "", testGateway(), validator)
			summary := client.Summarize(ctx, "")

			Convey("Then the pedigree is absent", func() {
				So(summary.Present, ShouldBeFalse)
			})
		})

		Convey("When no service is configured", func() {
			client := pedigree.New("", "", testGateway(), validator)
			summary := client.Summarize(ctx, "by Deep Impact, strong stayer on turf")

			Convey("Then the keyword heuristic produces a weak summary", func() {
				So(summary.Present, ShouldBeTrue)
				So(summary.Confidence, ShouldEqual, 0.25)
				So(summary.TendencyTags.Has("stamina"), ShouldBeTrue)
				So(summary.BestConditionTags.Has("route"), ShouldBeTrue)
				So(summary.BestConditionTags.Has("turf"), ShouldBeTrue)
			})
		})

		Convey("When the service answers a valid contract", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"ok":true,"tendency_tags":["speed"],"best_condition_tags":["dirt"],"notes":"sprinter","confidence_0_1":0.9}`))
			}))
			defer srv.Close()

			client := pedigree.New(srv.URL, "key", testGateway(), validator)
			summary := client.Summarize(ctx, "some pedigree")

			Convey("Then the remote summary wins", func() {
				So(summary.Present, ShouldBeTrue)
				So(summary.Confidence, ShouldEqual, 0.9)
				So(summary.BestConditionTags.Has("dirt"), ShouldBeTrue)
			})
		})

		Convey("When the service violates the contract", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"ok":true,"notes":"missing tag arrays"}`))
			}))
			defer srv.Close()

			client := pedigree.New(srv.URL, "key", testGateway(), validator)
			summary := client.Summarize(ctx, "some pedigree")

			Convey("Then the whole signal is dropped, not salvaged", func() {
				So(summary.Present, ShouldBeFalse)
			})
		})

		Convey("When the service is down", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			client := pedigree.New(srv.URL, "key", testGateway(), validator)
			summary := client.Summarize(ctx, "some pedigree")

			Convey("Then the pedigree is absent rather than an error", func() {
				So(summary.Present, ShouldBeFalse)
			})
		})
	})
}
