// Package model contains domain models passed between layers.
package model

import (
	"math"
	"time"
)

// Reading is one timestamped glucose measurement as delivered by the store.
// Readings are immutable snapshots; consumers never modify them.
type Reading struct {
	ID             string  // unique identifier, reported as _id
	Timestamp      int64   // capture time, epoch milliseconds
	DisplayGlucose float64 // post-calibration value in mg/dL
	Slope          float64 // rate of change per millisecond
	Direction      string  // trend label, e.g. "Flat"
	Noise          Noise
	Filtered       float64 // filtered sensor signal
	Raw            float64 // unfiltered sensor signal
	Source         string  // collector hardware that produced the reading
}

// Time returns the capture timestamp as a time.Time.
func (r Reading) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Noise is the Nightscout noise classification of a reading.
type Noise int

// Noise levels as reported on the wire.
const (
	NoiseUnknown Noise = iota
	NoiseClean
	NoiseLight
	NoiseMedium
	NoiseHeavy
)

func (n Noise) String() string {
	switch n {
	case NoiseClean:
		return "Clean"
	case NoiseLight:
		return "Light"
	case NoiseMedium:
		return "Medium"
	case NoiseHeavy:
		return "Heavy"
	default:
		return "Unknown"
	}
}

// Trend labels used by Nightscout clients.
const (
	DirectionDoubleUp      = "DoubleUp"
	DirectionSingleUp      = "SingleUp"
	DirectionFortyFiveUp   = "FortyFiveUp"
	DirectionFlat          = "Flat"
	DirectionFortyFiveDown = "FortyFiveDown"
	DirectionSingleDown    = "SingleDown"
	DirectionDoubleDown    = "DoubleDown"
	DirectionNone          = "NONE"
)

// DirectionForSlope maps a per-millisecond slope to its trend label using
// the mg/dL-per-minute thresholds Nightscout clients expect.
func DirectionForSlope(slope float64) string {
	perMinute := slope * float64(time.Minute/time.Millisecond)
	switch {
	case math.IsNaN(perMinute):
		return DirectionNone
	case perMinute <= -3.5:
		return DirectionDoubleDown
	case perMinute <= -2:
		return DirectionSingleDown
	case perMinute <= -1:
		return DirectionFortyFiveDown
	case perMinute <= 1:
		return DirectionFlat
	case perMinute <= 2:
		return DirectionFortyFiveUp
	case perMinute <= 3.5:
		return DirectionSingleUp
	default:
		return DirectionDoubleUp
	}
}

// Steps is a pedometer sample recorded by the steps side-channel.
type Steps struct {
	Timestamp int64
	Count     int
}

// HeartRate is a heart-rate sample recorded by the heart side-channel.
type HeartRate struct {
	Timestamp int64
	BPM       int
	Accuracy  int
}

// StatusLine is the external status text and the time it was last set.
type StatusLine struct {
	Text      string
	Timestamp int64 // epoch milliseconds
}

// TaskerCommand is a single-word automation command queued for delivery.
type TaskerCommand struct {
	ID       string `json:"id"`
	Word     string `json:"command"`
	Received int64  `json:"received"` // epoch milliseconds
}
