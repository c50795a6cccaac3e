package status

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/okian/glucofeed/internal/domain/model"
	"github.com/okian/glucofeed/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func TestTracker(t *testing.T) {
	Convey("Given a tracker with a fixed clock", t, func() {
		ctx := context.Background()
		now := time.UnixMilli(1_700_000_000_000)
		tr := NewTracker(WithClock(func() time.Time { return now }))

		Convey("When nothing has been set", func() {
			Convey("Then the current line should be empty", func() {
				So(tr.Current(), ShouldResemble, model.StatusLine{})
			})
		})

		Convey("When a status arrives with a timestamp", func() {
			tr.Set(ctx, "IOB 1.2U", 42)

			Convey("Then it should be kept as given", func() {
				So(tr.Current(), ShouldResemble, model.StatusLine{Text: "IOB 1.2U", Timestamp: 42})
			})
		})

		Convey("When a status arrives without a timestamp", func() {
			line := tr.Set(ctx, "COB 20g", 0)

			Convey("Then the clock should stamp it", func() {
				So(line.Timestamp, ShouldEqual, now.UnixMilli())
				So(tr.Current(), ShouldResemble, line)
			})
		})

		Convey("When an empty status is set", func() {
			tr.Set(ctx, "IOB 1.2U", 42)
			tr.Set(ctx, "", 99)

			Convey("Then the status should be cleared", func() {
				So(tr.Current(), ShouldResemble, model.StatusLine{})
			})
		})
	})
}

func TestTracker_Concurrent(t *testing.T) {
	Convey("Given writers and readers racing on one tracker", t, func() {
		ctx := context.Background()
		tr := NewTracker()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				tr.Set(ctx, "Basal 0.8", 10)
			}()
			go func() {
				defer wg.Done()
				_ = tr.Current()
			}()
		}
		wg.Wait()

		Convey("Then the final line should be consistent", func() {
			So(tr.Current(), ShouldResemble, model.StatusLine{Text: "Basal 0.8", Timestamp: 10})
		})
	})
}
