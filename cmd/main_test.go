package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/betedge/internal/app"
	"github.com/okian/betedge/internal/config"
	"github.com/okian/betedge/internal/domain/analysis"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/internal/domain/picks"
	"github.com/okian/betedge/pkg/logger"
	"github.com/okian/betedge/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testEnv(t *testing.T) {
	t.Setenv("BETEDGE_DB_PATH", filepath.Join(t.TempDir(), "betedge.db"))
	t.Setenv("BETEDGE_SPORTS", "nfl")
	t.Setenv("BETEDGE_SPORT_DELAY_MS", "0")
	t.Setenv("BETEDGE_LOG_LEVEL", "error")
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then it carries serve and picks", func() {
			names := []string{}
			for _, c := range root.Commands() {
				names = append(names, c.Name())
			}
			convey.So(names, convey.ShouldContain, "serve")
			convey.So(names, convey.ShouldContain, "picks")
			convey.So(root.Version, convey.ShouldEqual, version)
		})

		convey.Convey("Then picks exposes its flags", func() {
			cmd, _, err := root.Find([]string{"picks"})
			convey.So(err, convey.ShouldBeNil)
			convey.So(cmd.Flags().Lookup("json"), convey.ShouldNotBeNil)
			convey.So(cmd.Flags().Lookup("sport"), convey.ShouldNotBeNil)
			convey.So(cmd.Flags().ShorthandLookup("n"), convey.ShouldNotBeNil)
		})
	})
}

func TestPicksCommand(t *testing.T) {
	testEnv(t)

	convey.Convey("Given the picks command in demo mode", t, func() {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs([]string{"picks", "--json", "-n", "2"})

		convey.Convey("When it runs", func() {
			err := root.ExecuteContext(context.Background())

			convey.Convey("Then it prints at most two picks as JSON", func() {
				convey.So(err, convey.ShouldBeNil)
				var recs []picks.Recommendation
				convey.So(json.Unmarshal(out.Bytes(), &recs), convey.ShouldBeNil)
				convey.So(len(recs), convey.ShouldBeLessThanOrEqualTo, 2)
			})
		})
	})

	convey.Convey("Given an invalid configuration", t, func() {
		t.Setenv("BETEDGE_ADDR", " ")
		root := newRootCmd()
		root.SetArgs([]string{"picks"})

		convey.Convey("Then the command fails", func() {
			convey.So(root.ExecuteContext(context.Background()), convey.ShouldNotBeNil)
		})
	})
}

func TestSetup(t *testing.T) {
	testEnv(t)
	t.Setenv("BETEDGE_METRICS_NAMESPACE", "edge_cli")

	convey.Convey("Given a configured metrics namespace", t, func() {
		convey.Reset(func() { metrics.Configure(metrics.WithNamespace(metrics.DefaultNamespace)) })

		cfg, err := setup(context.Background())

		convey.Convey("Then the exported metrics carry it", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "edge_cli")
			metrics.UpdatePicksOnBoard(1)
			count, err := testutil.GatherAndCount(metrics.GetRegistry(), "edge_cli_picks_on_board")
			convey.So(err, convey.ShouldBeNil)
			convey.So(count, convey.ShouldEqual, 1)
		})
	})
}

func TestNewMux(t *testing.T) {
	testEnv(t)

	convey.Convey("Given a started service", t, func() {
		ctx := context.Background()
		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)

		svc := service.New(service.WithConfig(cfg), service.WithLogger(logger.NewNop()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		mux := newMux(ctx, cfg, svc)

		convey.Convey("Then every surface is routed", func() {
			for path, status := range map[string]int{
				"/health":         http.StatusOK,
				"/metrics":        http.StatusOK,
				"/api/status":     http.StatusOK,
				"/":               http.StatusOK,
				"/login":          http.StatusOK,
				"/dashboard":      http.StatusSeeOther,
				"/static/app.css": http.StatusOK,
				"/api-docs":       http.StatusOK,
				"/openapi.yaml":   http.StatusOK,
				"/no/such/page":   http.StatusNotFound,
				"/api/picks":      http.StatusOK,
			} {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
				convey.So(w.Code, convey.ShouldEqual, status)
			}
		})

		convey.Convey("Then the service metrics update without panicking", func() {
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestPrintPicks(t *testing.T) {
	convey.Convey("Given a recommendation with a primary bet", t, func() {
		recs := []picks.Recommendation{{
			GameID:       "g1",
			Sport:        odds.NFL,
			HomeTeam:     "Kansas City Chiefs",
			AwayTeam:     "Buffalo Bills",
			CommenceTime: time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC),
			Analysis:     analysis.Analysis{Confidence: 81.3, Level: analysis.Elite},
			Bets: []picks.Bet{{
				Type: picks.Moneyline, Pick: "Kansas City Chiefs ML", Price: 1.91,
				Book: "DraftKings", ExpectedValue: 0.042,
			}},
		}}

		convey.Convey("Then the table lists it", func() {
			var buf bytes.Buffer
			convey.So(printPicks(&buf, recs), convey.ShouldBeNil)
			s := buf.String()
			convey.So(s, convey.ShouldContainSubstring, "SPORT")
			convey.So(s, convey.ShouldContainSubstring, "Kansas City Chiefs vs Buffalo Bills")
			convey.So(s, convey.ShouldContainSubstring, "ELITE")
			convey.So(s, convey.ShouldContainSubstring, "81.3")
			convey.So(s, convey.ShouldContainSubstring, "1.91")
			convey.So(s, convey.ShouldContainSubstring, "+4.2%")
		})

		convey.Convey("Then an empty board says so", func() {
			var buf bytes.Buffer
			convey.So(printPicks(&buf, nil), convey.ShouldBeNil)
			convey.So(buf.String(), convey.ShouldContainSubstring, "no picks available")
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		convey.Convey("Then the system updater stops with its context", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then a system update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then an unstarted service is tolerated", func() {
			convey.So(func() { updateServiceMetrics(service.New()) }, convey.ShouldNotPanic)
		})
	})
}
