// Package simulate produces plausible CGM reading series for seeding and demos.
package simulate

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/glucofeed/internal/domain/model"
)

// Interval is the spacing between consecutive CGM readings.
const Interval = 5 * time.Minute

const (
	defaultBaseline  = 120.0
	defaultAmplitude = 40.0
	defaultPeriod    = 6 * time.Hour
	defaultJitter    = 3.0
	minGlucose       = 40.0
	maxGlucose       = 400.0
	// raw sensor counts per mg/dL, scaled down by 1000
	sensorScale = 1.15
)

// Generator builds reading series.
type Generator struct {
	baseline  float64
	amplitude float64
	period    time.Duration
	jitter    float64
	source    string
	rng       *rand.Rand
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithBaseline sets the mean glucose in mg/dL.
func WithBaseline(mgdl float64) Option {
	return func(g *Generator) {
		if mgdl > 0 {
			g.baseline = mgdl
		}
	}
}

// WithAmplitude sets the swing around the baseline in mg/dL.
func WithAmplitude(mgdl float64) Option {
	return func(g *Generator) {
		if mgdl >= 0 {
			g.amplitude = mgdl
		}
	}
}

// WithPeriod sets the length of one full glucose cycle.
func WithPeriod(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.period = d
		}
	}
}

// WithJitter sets the uniform noise range in mg/dL.
func WithJitter(mgdl float64) Option {
	return func(g *Generator) {
		if mgdl >= 0 {
			g.jitter = mgdl
		}
	}
}

// WithSource sets the collector name stored on each reading.
func WithSource(source string) Option {
	return func(g *Generator) {
		g.source = source
	}
}

// WithSeed makes the series reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// New creates a generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		baseline:  defaultBaseline,
		amplitude: defaultAmplitude,
		period:    defaultPeriod,
		jitter:    defaultJitter,
		source:    "simulator",
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// Series returns n readings ending at end, newest first, spaced by Interval.
func (g *Generator) Series(n int, end time.Time) []model.Reading {
	if n <= 0 {
		return []model.Reading{}
	}

	endMS := end.UnixMilli()
	values := make([]float64, n+1)
	// values[i] is i intervals before end; the extra point gives the oldest reading a slope.
	for i := range values {
		values[i] = g.value(endMS - int64(i)*Interval.Milliseconds())
	}

	out := make([]model.Reading, n)
	for i := range out {
		ts := endMS - int64(i)*Interval.Milliseconds()
		slope := (values[i] - values[i+1]) / float64(Interval.Milliseconds())
		out[i] = model.Reading{
			ID:             uuid.NewString(),
			Timestamp:      ts,
			DisplayGlucose: values[i],
			Slope:          slope,
			Direction:      model.DirectionForSlope(slope),
			Noise:          model.NoiseClean,
			Filtered:       values[i] * sensorScale,
			Raw:            values[i]*sensorScale + g.rng.Float64() - 0.5,
			Source:         g.source,
		}
	}
	return out
}

func (g *Generator) value(ms int64) float64 {
	phase := 2 * math.Pi * float64(ms%g.period.Milliseconds()) / float64(g.period.Milliseconds())
	v := g.baseline + g.amplitude*math.Sin(phase) + (g.rng.Float64()*2-1)*g.jitter
	return math.Round(math.Min(maxGlucose, math.Max(minGlucose, v)))
}
