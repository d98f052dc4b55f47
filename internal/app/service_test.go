package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/betedge/internal/app"
	"github.com/okian/betedge/internal/adapters/repository"
	"github.com/okian/betedge/internal/config"
	"github.com/okian/betedge/internal/domain/account"
	"github.com/okian/betedge/internal/domain/ledger"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.New()
	cfg.DBPath = filepath.Join(t.TempDir(), "betedge.db")
	cfg.Sports = "nfl,nba"
	cfg.SportDelayMS = 0
	cfg.Offseason = map[string][]int{}
	cfg.WorkerCount = 2
	cfg.RefreshSchedule = "@every 1h"
	return cfg
}

func startedService(t *testing.T) *service.Service {
	svc := service.New(service.WithConfig(testConfig(t)))
	So(svc.Start(context.Background()), ShouldBeNil)
	So(eventually(10*time.Second, func() bool {
		for _, sport := range []string{"nfl", "nba"} {
			_, recs, err := svc.SportBoard(context.Background(), sport)
			if err != nil || len(recs) == 0 {
				return false
			}
		}
		return true
	}), ShouldBeTrue)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithConfig(testConfig(t)))

		Convey("Then operations fail before Start", func() {
			_, err := svc.TopPicks(context.Background(), "", 5)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.DemoMode(), ShouldBeTrue)
			So(svc.Sports(), ShouldResemble, []odds.Sport{odds.NFL, odds.NBA})
		})

		Convey("When it is started twice and stopped twice", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			svc.Stop()
			svc.Stop()

			Convey("Then it reports stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(errors.Is(svc.Refresh(context.Background(), ""), service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})

	Convey("Given a config with an unknown sport", t, func() {
		cfg := testConfig(t)
		cfg.Sports = "curling"
		svc := service.New(service.WithConfig(cfg))

		Convey("Then Start fails", func() {
			So(errors.Is(svc.Start(context.Background()), odds.ErrUnknownSport), ShouldBeTrue)
		})
	})
}

func TestService_Picks(t *testing.T) {
	Convey("Given a running demo service", t, func() {
		svc := startedService(t)
		defer svc.Stop()
		ctx := context.Background()

		Convey("TopPicks returns eligible picks best first", func() {
			recs, err := svc.TopPicks(ctx, "", 5)
			So(err, ShouldBeNil)
			So(len(recs), ShouldBeLessThanOrEqualTo, 5)
			for i, rec := range recs {
				So(rec.Eligible(), ShouldBeTrue)
				if i > 0 {
					So(recs[i-1].Score, ShouldBeGreaterThanOrEqualTo, rec.Score)
				}
			}

			nba, err := svc.TopPicks(ctx, "NBA", 20)
			So(err, ShouldBeNil)
			for _, rec := range nba {
				So(rec.Sport, ShouldEqual, odds.NBA)
			}
		})

		Convey("TopPicks rejects bad input", func() {
			_, err := svc.TopPicks(ctx, "cricket", 5)
			So(errors.Is(err, odds.ErrUnknownSport), ShouldBeTrue)
			_, err = svc.TopPicks(ctx, "", 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("SportBoard and GameAnalysis agree", func() {
			sport, recs, err := svc.SportBoard(ctx, "basketball_nba")
			So(err, ShouldBeNil)
			So(sport, ShouldEqual, odds.NBA)
			So(len(recs), ShouldBeGreaterThan, 0)

			rec, err := svc.GameAnalysis(ctx, recs[0].GameID)
			So(err, ShouldBeNil)
			So(rec.GameID, ShouldEqual, recs[0].GameID)
			So(rec.Analysis.HasOdds, ShouldBeTrue)

			_, err = svc.GameAnalysis(ctx, "no-such-game")
			So(errors.Is(err, service.ErrGameNotFound), ShouldBeTrue)
		})

		Convey("CacheStatus lists every sport from mock data", func() {
			status, err := svc.CacheStatus(ctx)
			So(err, ShouldBeNil)
			So(len(status), ShouldEqual, 2)
			for _, st := range status {
				So(st.Source, ShouldEqual, repository.SourceMock)
				So(st.LastUpdated, ShouldNotBeNil)
			}
		})

		Convey("Refresh accepts a known sport only", func() {
			So(svc.Refresh(ctx, "nfl"), ShouldBeNil)
			So(svc.Refresh(ctx, ""), ShouldBeNil)
			So(errors.Is(svc.Refresh(ctx, "polo"), odds.ErrUnknownSport), ShouldBeTrue)
		})

		Convey("Stats describe the pipeline", func() {
			stats := svc.GetStats()
			So(stats["picksOnBoard"], ShouldBeGreaterThan, 0)
			So(stats["demoMode"], ShouldEqual, true)
		})
	})
}

func TestService_Audience(t *testing.T) {
	Convey("Given a running demo service", t, func() {
		svc := service.New(service.WithConfig(testConfig(t)))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		ctx := context.Background()

		Convey("Signups are deduplicated case-insensitively", func() {
			created, err := svc.Signup(ctx, "Fan@Example.com")
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)

			created, err = svc.Signup(ctx, "  fan@example.com ")
			So(err, ShouldBeNil)
			So(created, ShouldBeFalse)

			_, err = svc.Signup(ctx, "not-an-email")
			So(errors.Is(err, service.ErrInvalidEmail), ShouldBeTrue)

			n, err := svc.SignupCount(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})

		Convey("Accounts register, authenticate and log out", func() {
			_, err := svc.Register(ctx, "sharp", "sharp@example.com", "secret1", "NOPE")
			So(errors.Is(err, account.ErrInvalidAccessCode), ShouldBeTrue)

			sess, err := svc.Register(ctx, "sharp", "sharp@example.com", "secret1", "BETA2024")
			So(err, ShouldBeNil)

			user, err := svc.Authenticate(ctx, sess.Token)
			So(err, ShouldBeNil)
			So(user, ShouldEqual, "sharp")

			_, err = svc.Login(ctx, "sharp", "wrong-password")
			So(errors.Is(err, account.ErrInvalidCredentials), ShouldBeTrue)

			login, err := svc.Login(ctx, "sharp", "secret1")
			So(err, ShouldBeNil)
			So(svc.Logout(ctx, login.Token), ShouldBeNil)

			_, err = svc.Authenticate(ctx, login.Token)
			So(errors.Is(err, account.ErrUnauthenticated), ShouldBeTrue)
		})

		Convey("Bets are tracked, settled and summarised", func() {
			bet := ledger.Bet{GameID: "g1", Pick: "Chiefs ML", Type: "MONEYLINE", Price: 2.5, Units: 2, RequestID: "r1"}
			placed, dup, err := svc.PlaceBet(ctx, "sharp", bet)
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)
			So(placed.Username, ShouldEqual, "sharp")

			again, dup, err := svc.PlaceBet(ctx, "sharp", bet)
			So(err, ShouldBeNil)
			So(dup, ShouldBeTrue)
			So(again.ID, ShouldEqual, placed.ID)

			_, err = svc.SettleBet(ctx, placed.ID, "tie")
			So(errors.Is(err, ledger.ErrInvalidResult), ShouldBeTrue)

			settled, err := svc.SettleBet(ctx, placed.ID, "WIN")
			So(err, ShouldBeNil)
			So(settled.Status, ShouldEqual, ledger.Win)

			bets, err := svc.Bets(ctx, "sharp")
			So(err, ShouldBeNil)
			So(len(bets), ShouldEqual, 1)

			perf, err := svc.Performance(ctx, "sharp")
			So(err, ShouldBeNil)
			So(perf.Wins, ShouldEqual, 1)
			So(perf.Profit, ShouldAlmostEqual, 3.0)
		})
	})
}
