package model_test

import (
	"math"
	"testing"
	"time"

	"github.com/okian/glucofeed/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestReading_Time(t *testing.T) {
	Convey("Given a reading with an epoch millisecond timestamp", t, func() {
		r := model.Reading{Timestamp: 1700000000123}

		Convey("Then Time should keep millisecond precision", func() {
			So(r.Time().UnixMilli(), ShouldEqual, int64(1700000000123))
			So(r.Time().Nanosecond(), ShouldEqual, 123*int(time.Millisecond))
		})
	})
}

func TestDirectionForSlope(t *testing.T) {
	Convey("Given slopes expressed per millisecond", t, func() {
		perMinute := func(v float64) float64 { return v / 60000 }

		cases := []struct {
			slope float64
			want  string
		}{
			{perMinute(-4), model.DirectionDoubleDown},
			{perMinute(-2.5), model.DirectionSingleDown},
			{perMinute(-1.5), model.DirectionFortyFiveDown},
			{0, model.DirectionFlat},
			{perMinute(1.5), model.DirectionFortyFiveUp},
			{perMinute(3), model.DirectionSingleUp},
			{perMinute(5), model.DirectionDoubleUp},
			{math.NaN(), model.DirectionNone},
		}

		for _, tc := range cases {
			Convey("Then "+tc.want+" should be derived", func() {
				So(model.DirectionForSlope(tc.slope), ShouldEqual, tc.want)
			})
		}
	})
}

func TestNoise_String(t *testing.T) {
	Convey("Given noise levels", t, func() {
		So(model.NoiseClean.String(), ShouldEqual, "Clean")
		So(model.NoiseHeavy.String(), ShouldEqual, "Heavy")
		So(model.Noise(42).String(), ShouldEqual, "Unknown")
		So(int(model.NoiseClean), ShouldEqual, 1)
	})
}
