package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/okian/glucofeed/internal/domain/model"
	"github.com/okian/glucofeed/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func reading(i int, ts int64) model.Reading {
	return model.Reading{
		ID:             fmt.Sprintf("bg-%03d", i),
		Timestamp:      ts,
		DisplayGlucose: 100 + float64(i),
		Slope:          0.0001,
		Direction:      model.DirectionFlat,
		Noise:          model.NoiseClean,
		Filtered:       1.1,
		Raw:            1.2,
		Source:         "test",
	}
}

func openMemory(ctx context.Context) *SQLiteStore {
	s, err := Open(ctx, MemoryPath)
	So(err, ShouldBeNil)
	return s
}

func TestSQLiteStore_Readings(t *testing.T) {
	Convey("Given an empty in-memory store", t, func() {
		ctx := context.Background()
		s := openMemory(ctx)
		defer s.Close()

		Convey("When asking for the latest readings", func() {
			got, err := s.Latest(ctx, 24)

			Convey("Then an empty, non-nil slice should be returned", func() {
				So(err, ShouldBeNil)
				So(got, ShouldNotBeNil)
				So(got, ShouldBeEmpty)
			})
		})

		Convey("When the limit is not positive", func() {
			_, err := s.Latest(ctx, 0)

			Convey("Then ErrInvalidLimit should be returned", func() {
				So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
			})
		})

		Convey("When readings are inserted out of order", func() {
			var rs []model.Reading
			for i := 0; i < 30; i++ {
				// odd indexes are older so insertion order differs from time order
				ts := int64(1_700_000_000_000 + i*300_000)
				if i%2 == 1 {
					ts -= 100 * 300_000
				}
				rs = append(rs, reading(i, ts))
			}
			So(s.Insert(ctx, rs...), ShouldBeNil)

			Convey("Then Latest should return them newest first and capped", func() {
				got, err := s.Latest(ctx, 24)
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 24)
				for i := 1; i < len(got); i++ {
					So(got[i-1].Timestamp, ShouldBeGreaterThanOrEqualTo, got[i].Timestamp)
				}
				So(got[0].ID, ShouldEqual, "bg-028")
			})

			Convey("Then every field should round-trip", func() {
				got, err := s.Latest(ctx, 1)
				So(err, ShouldBeNil)
				So(got[0], ShouldResemble, rs[28])
			})

			Convey("Then Count should report all of them", func() {
				n, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 30)
			})
		})

		Convey("When a reading is inserted twice with the same id", func() {
			r := reading(1, 1_700_000_000_000)
			So(s.Insert(ctx, r), ShouldBeNil)
			r.DisplayGlucose = 180
			So(s.Insert(ctx, r), ShouldBeNil)

			Convey("Then the later values should replace the earlier ones", func() {
				got, err := s.Latest(ctx, 5)
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].DisplayGlucose, ShouldEqual, 180)
			})
		})

		Convey("When a batch contains an invalid reading", func() {
			bad := reading(2, 1_700_000_000_000)
			bad.DisplayGlucose = math.NaN()
			err := s.Insert(ctx, reading(1, 1_700_000_000_000), bad)

			Convey("Then nothing should be stored", func() {
				So(errors.Is(err, ErrInvalidData), ShouldBeTrue)
				n, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When a reading has no id", func() {
			err := s.Insert(ctx, model.Reading{Timestamp: 1})

			Convey("Then ErrInvalidData should be returned", func() {
				So(errors.Is(err, ErrInvalidData), ShouldBeTrue)
			})
		})
	})
}

func TestSQLiteStore_Activity(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		s := openMemory(ctx)
		defer s.Close()

		Convey("When nothing has been recorded", func() {
			_, stepsErr := s.LatestSteps(ctx)
			_, heartErr := s.LatestHeart(ctx)

			Convey("Then ErrNotFound should be returned", func() {
				So(errors.Is(stepsErr, ErrNotFound), ShouldBeTrue)
				So(errors.Is(heartErr, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When samples are recorded", func() {
			So(s.RecordSteps(ctx, model.Steps{Timestamp: 10, Count: 100}), ShouldBeNil)
			So(s.RecordSteps(ctx, model.Steps{Timestamp: 20, Count: 250}), ShouldBeNil)
			So(s.RecordHeart(ctx, model.HeartRate{Timestamp: 20, BPM: 72, Accuracy: 1}), ShouldBeNil)
			So(s.RecordHeart(ctx, model.HeartRate{Timestamp: 20, BPM: 75, Accuracy: 1}), ShouldBeNil)

			Convey("Then the newest sample should be returned", func() {
				st, err := s.LatestSteps(ctx)
				So(err, ShouldBeNil)
				So(st, ShouldResemble, model.Steps{Timestamp: 20, Count: 250})

				h, err := s.LatestHeart(ctx)
				So(err, ShouldBeNil)
				So(h.BPM, ShouldEqual, 75)
			})
		})
	})
}

func TestSQLiteStore_File(t *testing.T) {
	Convey("Given a store backed by a file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "feed.db")

		s, err := Open(ctx, path, WithMaxOpenConns(2), WithBusyTimeoutMS(100))
		So(err, ShouldBeNil)
		So(s.Insert(ctx, reading(1, 1_700_000_000_000)), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("When it is reopened", func() {
			s, err := Open(ctx, path)
			So(err, ShouldBeNil)
			defer s.Close()

			Convey("Then earlier readings should persist", func() {
				got, err := s.Latest(ctx, 24)
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].ID, ShouldEqual, "bg-001")
			})
		})
	})

	Convey("Given a path inside a missing directory", t, func() {
		path := filepath.Join(t.TempDir(), "missing", "feed.db")

		Convey("When opening it", func() {
			_, err := Open(context.Background(), path)

			Convey("Then an error should be returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given a non-sqlite error", t, func() {
		base := errors.New("boom")

		Convey("Then it should pass through unchanged", func() {
			So(classify(base), ShouldEqual, base)
		})
	})
}
