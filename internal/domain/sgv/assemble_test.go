package sgv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
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

func fixedDate(ms int64) string { return fmt.Sprintf("t%d", ms) }

func readings(n int) []model.Reading {
	out := make([]model.Reading, n)
	for i := range out {
		out[i] = model.Reading{
			ID:             fmt.Sprintf("r-%02d", i),
			Timestamp:      int64(1_700_000_000_000 - i*300_000),
			DisplayGlucose: 120.7 + float64(i),
			Slope:          0.002,
			Direction:      model.DirectionFlat,
			Noise:          model.NoiseClean,
			Filtered:       1.2345,
			Raw:            1.5,
		}
	}
	return out
}

type fieldLogger struct {
	fields map[string]any
}

func (l *fieldLogger) capture(fields []logger.Field) {
	for _, f := range fields {
		l.fields[f.Key] = f.Value
	}
}

func (l *fieldLogger) Info(_ context.Context, _ string, fs ...logger.Field)  { l.capture(fs) }
func (l *fieldLogger) Error(_ context.Context, _ string, fs ...logger.Field) { l.capture(fs) }
func (l *fieldLogger) Debug(_ context.Context, _ string, fs ...logger.Field) { l.capture(fs) }
func (l *fieldLogger) Warn(_ context.Context, _ string, fs ...logger.Field)  { l.capture(fs) }
func (l *fieldLogger) Named(string) logger.Logger                           { return l }

func decode(body []byte) []map[string]any {
	var recs []map[string]any
	So(json.Unmarshal(body, &recs), ShouldBeNil)
	return recs
}

func countKey(recs []map[string]any, key string) int {
	n := 0
	for _, r := range recs {
		if _, ok := r[key]; ok {
			n++
		}
	}
	return n
}

func TestAssembler_Assemble(t *testing.T) {
	Convey("Given an assembler", t, func() {
		ctx := context.Background()
		a := NewAssembler("G6 Native", fixedDate, logger.Get())

		Convey("When the store is unavailable", func() {
			body := a.Assemble(ctx, nil, Aux{Status: model.StatusLine{Text: "IOB 1.2U"}})

			Convey("Then the body should be an empty array", func() {
				So(string(body), ShouldEqual, "[]")
			})
		})

		Convey("When the store is empty", func() {
			body := a.Assemble(ctx, []model.Reading{}, Aux{})

			Convey("Then the body should be an empty array", func() {
				So(string(body), ShouldEqual, "[]")
			})
		})

		Convey("When mapping a reading", func() {
			recs := decode(a.Assemble(ctx, readings(1), Aux{}))

			Convey("Then every wire field should be computed", func() {
				So(recs, ShouldHaveLength, 1)
				r := recs[0]
				So(r["_id"], ShouldEqual, "r-00")
				So(r["device"], ShouldEqual, "G6 Native")
				So(r["date"], ShouldEqual, float64(1_700_000_000_000))
				So(r["dateString"], ShouldEqual, "t1700000000000")
				So(r["sysTime"], ShouldEqual, r["dateString"])
				So(r["sgv"], ShouldEqual, float64(120))
				So(r["delta"], ShouldEqual, float64(600))
				So(r["direction"], ShouldEqual, "Flat")
				So(r["noise"], ShouldEqual, float64(1))
				So(r["filtered"], ShouldEqual, float64(1234))
				So(r["unfiltered"], ShouldEqual, float64(1500))
				So(r["rssi"], ShouldEqual, float64(100))
				So(r["type"], ShouldEqual, "sgv")
			})

			Convey("Then no auxiliary field should appear", func() {
				for _, key := range []string{"aaps", "aaps-ts", "steps_result", "heart_result", "tasker_result"} {
					So(recs[0], ShouldNotContainKey, key)
				}
			})
		})

		Convey("When the delta is rendered", func() {
			body := a.Assemble(ctx, readings(1), Aux{})

			Convey("Then it should keep three decimals on the wire", func() {
				So(string(body), ShouldContainSubstring, `"delta":600.000`)
			})
		})

		Convey("When a status line and every result code are pending", func() {
			aux := Aux{
				Status:  model.StatusLine{Text: "IOB 1.2U", Timestamp: 1_699_999_990_000},
				Results: Results{Steps: 200, Heart: 200, Tasker: 503},
			}
			recs := decode(a.Assemble(ctx, readings(24), aux))

			Convey("Then each should appear exactly once, on the first record", func() {
				So(recs, ShouldHaveLength, 24)
				So(recs[0]["aaps"], ShouldEqual, "IOB 1.2U")
				So(recs[0]["aaps-ts"], ShouldEqual, float64(1_699_999_990_000))
				So(recs[0]["steps_result"], ShouldEqual, float64(200))
				So(recs[0]["heart_result"], ShouldEqual, float64(200))
				So(recs[0]["tasker_result"], ShouldEqual, float64(503))
				for _, key := range []string{"aaps", "aaps-ts", "steps_result", "heart_result", "tasker_result"} {
					So(countKey(recs, key), ShouldEqual, 1)
				}
			})
		})

		Convey("When a status line has a zero timestamp", func() {
			recs := decode(a.Assemble(ctx, readings(2), Aux{Status: model.StatusLine{Text: "Basal 0.8"}}))

			Convey("Then aaps-ts should still accompany aaps", func() {
				So(recs[0]["aaps-ts"], ShouldEqual, float64(0))
				So(countKey(recs, "aaps-ts"), ShouldEqual, 1)
			})
		})

		Convey("When only the steps command ran", func() {
			recs := decode(a.Assemble(ctx, readings(5), Aux{Results: Results{Steps: 200}}))

			Convey("Then only steps_result should be injected", func() {
				So(countKey(recs, "steps_result"), ShouldEqual, 1)
				So(countKey(recs, "heart_result"), ShouldEqual, 0)
				So(countKey(recs, "tasker_result"), ShouldEqual, 0)
				So(countKey(recs, "aaps"), ShouldEqual, 0)
			})
		})

		Convey("When the store returns readings in its own order with duplicates", func() {
			rs := readings(3)
			rs[2] = rs[0]
			recs := decode(a.Assemble(ctx, rs, Aux{}))

			Convey("Then order and duplicates should be preserved", func() {
				So(recs, ShouldHaveLength, 3)
				So(recs[0]["_id"], ShouldEqual, "r-00")
				So(recs[1]["_id"], ShouldEqual, "r-01")
				So(recs[2]["_id"], ShouldEqual, "r-00")
			})
		})

		Convey("When a record cannot be serialized", func() {
			rs := readings(5)
			rs[2].Slope = math.NaN()
			recs := decode(a.Assemble(ctx, rs, Aux{}))

			Convey("Then the records built before the fault should be returned", func() {
				So(recs, ShouldHaveLength, 2)
				So(recs[1]["_id"], ShouldEqual, "r-01")
			})
		})

		Convey("When the very first record cannot be serialized", func() {
			rs := readings(3)
			rs[0].Slope = math.Inf(1)
			body := a.Assemble(ctx, rs, Aux{Results: Results{Steps: 200}})

			Convey("Then a valid empty array should still be returned", func() {
				So(string(body), ShouldEqual, "[]")
			})
		})
	})
}

func TestAssembler_AuxIsPerCall(t *testing.T) {
	Convey("Given one assembler used for two passes", t, func() {
		ctx := context.Background()
		a := NewAssembler("G6", fixedDate, logger.Get())
		aux := Aux{Results: Results{Tasker: 200}}

		first := decode(a.Assemble(ctx, readings(3), aux))
		second := decode(a.Assemble(ctx, readings(3), Aux{}))

		Convey("Then the drained value should not leak into the next pass", func() {
			So(countKey(first, "tasker_result"), ShouldEqual, 1)
			So(countKey(second, "tasker_result"), ShouldEqual, 0)
			So(int(aux.Results.Tasker), ShouldEqual, 200)
		})
	})
}

func TestAssembler_OutputLog(t *testing.T) {
	Convey("Given an assembler with a field capturing logger", t, func() {
		log := &fieldLogger{fields: map[string]any{}}
		a := NewAssembler("G6 Native", fixedDate, log)

		Convey("When a full window is assembled", func() {
			body := a.Assemble(context.Background(), readings(24), Aux{})

			Convey("Then only the record count and size should be logged", func() {
				So(log.fields["records"], ShouldEqual, 24)
				So(log.fields["bytes"], ShouldEqual, len(body))
				So(log.fields, ShouldNotContainKey, "output")
			})
		})
	})
}
