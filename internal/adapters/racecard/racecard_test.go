package racecard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gaitlab/paddock/internal/adapters/gateway"
	racecard "github.com/gaitlab/paddock/internal/adapters/racecard"
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

func testGateway() *gateway.Client {
	return gateway.New("racecard-test",
		gateway.WithTimeouts(time.Second, time.Second, 2*time.Second),
		gateway.WithRetries(0),
	)
}

func TestParseEntrants(t *testing.T) {
	Convey("Given free-text entrant lines", t, func() {
		Convey("When the lines cover every supported shape", func() {
			text := "Bold Venture\n" +
				"Silent Runner: 62\n" +
				"Iron Gale, 71\n" +
				"Night Parade 55\n" +
				"- Dusty Mile\n" +
				"サイレンススズカ： 88\n"
			entrants := racecard.ParseEntrants(text)

			Convey("Then every shape parses with its rating", func() {
				So(entrants, ShouldHaveLength, 6)
				So(entrants[0], ShouldResemble, racecard.Entrant{Name: "Bold Venture", Rating: 50})
				So(entrants[1], ShouldResemble, racecard.Entrant{Name: "Silent Runner", Rating: 62})
				So(entrants[2], ShouldResemble, racecard.Entrant{Name: "Iron Gale", Rating: 71})
				So(entrants[3], ShouldResemble, racecard.Entrant{Name: "Night Parade", Rating: 55})
				So(entrants[4], ShouldResemble, racecard.Entrant{Name: "Dusty Mile", Rating: 50})
				So(entrants[5], ShouldResemble, racecard.Entrant{Name: "サイレンススズカ", Rating: 88})
			})
		})

		Convey("When declared ratings fall outside the working band", func() {
			entrants := racecard.ParseEntrants("Weakling: 5\nMonster: 120\n")

			Convey("Then they clamp into the band", func() {
				So(entrants[0].Rating, ShouldEqual, 30)
				So(entrants[1].Rating, ShouldEqual, 90)
			})
		})

		Convey("When the text is empty or blank lines only", func() {
			So(racecard.ParseEntrants(""), ShouldBeNil)
			So(racecard.ParseEntrants("\n  \n\n"), ShouldBeNil)
		})

		Convey("When more entrants are declared than one race can hold", func() {
			var text string
			for i := 0; i < 60; i++ {
				text += "Horse" + string(rune('A'+i%26)) + string(rune('a'+i/26)) + "\n"
			}
			entrants := racecard.ParseEntrants(text)

			Convey("Then the field caps at forty", func() {
				So(entrants, ShouldHaveLength, 40)
			})
		})
	})
}

func TestParseRaceConditions(t *testing.T) {
	Convey("Given racecard text", t, func() {
		Convey("When the text is a Japanese racecard header", func() {
			cond := racecard.ParseRaceConditions("芝1600ｍ 右 G1 良馬場")

			Convey("Then surface, distance, turn, class and footing are read", func() {
				So(cond.Surface, ShouldEqual, types.SurfaceTurf)
				So(cond.DistanceMeters, ShouldEqual, 1600)
				So(cond.TurnDirection, ShouldEqual, types.TurnRight)
				So(cond.ClassLevel, ShouldEqual, "graded")
				So(cond.Footing, ShouldEqual, types.FootingFirm)
			})
		})

		Convey("When the text is an English dirt card", func() {
			cond := racecard.ParseRaceConditions("Dirt 1200m, left-handed, sloppy track, maiden 新馬")

			Convey("Then the dirt reading wins with heavy footing", func() {
				So(cond.Surface, ShouldEqual, types.SurfaceDirt)
				So(cond.DistanceMeters, ShouldEqual, 1200)
				So(cond.TurnDirection, ShouldEqual, types.TurnLeft)
				So(cond.Footing, ShouldEqual, types.FootingHeavy)
				So(cond.ClassLevel, ShouldEqual, "maiden")
			})
		})

		Convey("When the text states nothing recognizable", func() {
			cond := racecard.ParseRaceConditions("weather fine, ten runners")

			Convey("Then everything stays unknown", func() {
				So(cond.Surface, ShouldEqual, types.SurfaceUnknown)
				So(cond.Footing, ShouldEqual, types.FootingUnknown)
				So(cond.TurnDirection, ShouldEqual, types.TurnUnknown)
				So(cond.DistanceMeters, ShouldEqual, 0)
			})
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Given an opponent resolver", t, func() {
		ctx := context.Background()

		Convey("When an explicit list is provided", func() {
			resolver := racecard.NewResolver(testGateway())
			res := resolver.Resolve(ctx, "http://unused.example", []string{" horse-a ", "horse-b", "horse-a", ""}, "Someone Else: 70")

			Convey("Then the explicit list wins, trimmed and deduplicated", func() {
				So(res.Via, ShouldEqual, types.ResolvedExplicit)
				So(res.ManualRequired, ShouldBeFalse)
				So(res.Opponents, ShouldHaveLength, 2)
				So(res.Opponents[0].Identifier, ShouldEqual, "horse-a")
				So(res.Opponents[1].Identifier, ShouldEqual, "horse-b")
			})
		})

		Convey("When an entrants block is declared", func() {
			var fetched atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fetched.Add(1)
				w.Write([]byte("<td>Page Horse</td>"))
			}))
			defer srv.Close()

			resolver := racecard.NewResolver(testGateway())
			res := resolver.Resolve(ctx, srv.URL, nil, "Silent Runner: 62\nIron Gale, 71\nDusty Mile\n")

			Convey("Then the declared entrants win over the reference page", func() {
				So(res.Via, ShouldEqual, types.ResolvedEntrantsText)
				So(res.ManualRequired, ShouldBeFalse)
				So(res.Opponents, ShouldHaveLength, 3)
				So(fetched.Load(), ShouldEqual, 0)
			})

			Convey("And each opponent carries its declared rating", func() {
				So(res.Opponents[0].Identifier, ShouldEqual, "Silent Runner")
				So(res.Opponents[0].Rating, ShouldEqual, 62)
				So(res.Opponents[1].Rating, ShouldEqual, 71)
				So(res.Opponents[2].Rating, ShouldEqual, 50) // default when undeclared
				So(res.Opponents[2].ResolvedVia, ShouldEqual, types.ResolvedEntrantsText)
			})
		})

		Convey("When only a race reference page is available", func() {
			page := `<table>
				<td>馬名</td><td>騎手</td>
				<td>エアグルーヴ</td><td>3</td>
				<td>Bold Venture</td>
				<td>エアグルーヴ</td>
			</table>
			<p>芝2000ｍ 右 G1</p>`
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(page))
			}))
			defer srv.Close()

			resolver := racecard.NewResolver(testGateway())
			res := resolver.Resolve(ctx, srv.URL, nil, "")

			Convey("Then names come from the page without UI labels or duplicates", func() {
				So(res.Via, ShouldEqual, types.ResolvedURLExtraction)
				ids := make([]string, 0, len(res.Opponents))
				for _, o := range res.Opponents {
					ids = append(ids, o.Identifier)
				}
				So(ids, ShouldContain, "エアグルーヴ")
				So(ids, ShouldContain, "Bold Venture")
				So(ids, ShouldNotContain, "馬名")
				So(ids, ShouldNotContain, "騎手")
				So(ids, ShouldNotContain, "3")
				seen := map[string]int{}
				for _, id := range ids {
					seen[id]++
				}
				So(seen["エアグルーヴ"], ShouldEqual, 1)
			})

			Convey("And the page conditions come along", func() {
				So(res.ConditionsKnown, ShouldBeTrue)
				So(res.Conditions.Surface, ShouldEqual, types.SurfaceTurf)
				So(res.Conditions.DistanceMeters, ShouldEqual, 2000)
			})
		})

		Convey("When the race reference cannot be fetched", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			resolver := racecard.NewResolver(testGateway())
			res := resolver.Resolve(ctx, srv.URL, nil, "")

			Convey("Then manual entry is required", func() {
				So(res.ManualRequired, ShouldBeTrue)
				So(res.Via, ShouldEqual, types.ResolvedManualFallback)
				So(res.Opponents, ShouldBeEmpty)
			})
		})

		Convey("When neither a list nor a reference exists", func() {
			resolver := racecard.NewResolver(testGateway())
			res := resolver.Resolve(ctx, "", nil, "")

			Convey("Then the chain terminates in the manual state", func() {
				So(res.ManualRequired, ShouldBeTrue)
			})
		})

		Convey("When a tighter opponent cap is configured", func() {
			resolver := racecard.NewResolver(testGateway(), racecard.WithMaxOpponents(2))
			res := resolver.Resolve(ctx, "", []string{"a", "b", "c", "d"}, "")

			Convey("Then the explicit list is cut at the cap", func() {
				So(res.Opponents, ShouldHaveLength, 2)
			})
		})
	})
}
