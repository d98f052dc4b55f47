package ledger_test

import (
	"errors"
	"testing"

	"github.com/okian/betedge/internal/domain/ledger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSummarize(t *testing.T) {
	Convey("Given a mix of settled and pending bets", t, func() {
		bets := []ledger.Bet{
			{Price: 2.5, Units: 2, Status: ledger.Win},
			{Price: 1.91, Units: 1, Status: ledger.Loss},
			{Price: 1.8, Units: 1, Status: ledger.Push},
			{Price: 2.0, Units: 1, Status: ledger.Pending},
		}
		p := ledger.Summarize(bets)

		Convey("Then counts, profit and ROI are in units", func() {
			So(p.TotalBets, ShouldEqual, 4)
			So(p.Wins, ShouldEqual, 1)
			So(p.Losses, ShouldEqual, 1)
			So(p.Pushes, ShouldEqual, 1)
			So(p.Pending, ShouldEqual, 1)
			So(p.Profit, ShouldEqual, 2)
			So(p.ROI, ShouldEqual, 50)
			So(p.WinRate, ShouldEqual, 50)
		})
	})

	Convey("Given no bets", t, func() {
		So(ledger.Summarize(nil), ShouldResemble, ledger.Performance{})
	})
}

func TestBet(t *testing.T) {
	Convey("Given bet validation", t, func() {
		ok := ledger.Bet{GameID: "g", Pick: "Chiefs ML", Price: 1.9, Units: 1}
		So(ok.Validate(), ShouldBeNil)

		bad := ok
		bad.Price = 1
		So(errors.Is(bad.Validate(), ledger.ErrInvalidBet), ShouldBeTrue)

		bad = ok
		bad.Units = 0
		So(errors.Is(bad.Validate(), ledger.ErrInvalidBet), ShouldBeTrue)

		bad = ok
		bad.Pick = " "
		So(errors.Is(bad.Validate(), ledger.ErrInvalidBet), ShouldBeTrue)
	})

	Convey("Given result names", t, func() {
		r, err := ledger.ParseResult("WIN")
		So(err, ShouldBeNil)
		So(r, ShouldEqual, ledger.Win)

		_, err = ledger.ParseResult("pending")
		So(errors.Is(err, ledger.ErrInvalidResult), ShouldBeTrue)
	})
}
