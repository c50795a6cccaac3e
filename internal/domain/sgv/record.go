package sgv

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
)

// Wire constants of every record.
const (
	recordType  = "sgv"
	defaultRSSI = 100
)

// ErrNonFinite reports a computed value JSON cannot carry.
var ErrNonFinite = errors.New("non-finite value")

// Record is one element of the sgv.json array.
type Record struct {
	ID           string `json:"_id"`
	Device       string `json:"device"`
	Date         int64  `json:"date"`
	DateString   string `json:"dateString"`
	SysTime      string `json:"sysTime"`
	SGV          int    `json:"sgv"`
	Delta        Delta  `json:"delta"`
	Direction    string `json:"direction"`
	Noise        int    `json:"noise"`
	Filtered     int64  `json:"filtered"`
	Unfiltered   int64  `json:"unfiltered"`
	RSSI         int    `json:"rssi"`
	Type         string `json:"type"`
	AAPS         string `json:"aaps,omitempty"`
	AAPSTime     *int64 `json:"aaps-ts,omitempty"`
	StepsResult  int    `json:"steps_result,omitempty"`
	HeartResult  int    `json:"heart_result,omitempty"`
	TaskerResult int    `json:"tasker_result,omitempty"`
}

// Delta is a glucose change over five minutes, fixed at three decimals and
// rounded half-up from the exact binary value of the computed float.
type Delta struct {
	thousandths *big.Int
	err         error
}

// NewDelta converts a per-millisecond slope into a five minute delta.
func NewDelta(slope float64) Delta {
	v := slope * 5 * 60 * 1000
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Delta{err: fmt.Errorf("%w: delta %v", ErrNonFinite, v)}
	}

	r := new(big.Rat).SetFloat64(v)
	r.Mul(r, big.NewRat(1000, 1))

	// half-up: floor((2|n| + d) / 2d), sign restored afterwards
	num := new(big.Int).Abs(r.Num())
	den := r.Denom()
	q := new(big.Int).Lsh(num, 1)
	q.Add(q, den)
	q.Quo(q, new(big.Int).Lsh(den, 1))
	if r.Sign() < 0 {
		q.Neg(q)
	}
	return Delta{thousandths: q}
}

// String renders the delta with exactly three decimals, e.g. "-1.250".
func (d Delta) String() string {
	if d.err != nil {
		return "NaN"
	}
	if d.thousandths == nil {
		return "0.000"
	}
	abs := new(big.Int).Abs(d.thousandths)
	whole, frac := new(big.Int).QuoRem(abs, big.NewInt(1000), new(big.Int))

	var b strings.Builder
	if d.thousandths.Sign() < 0 {
		b.WriteByte('-')
	}
	fmt.Fprintf(&b, "%s.%03d", whole.String(), frac.Int64())
	return b.String()
}

// MarshalJSON writes the delta as a plain JSON number.
func (d Delta) MarshalJSON() ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return []byte(d.String()), nil
}

// truncateLong narrows x toward zero to an int64, saturating at the bounds
// and mapping NaN to zero.
func truncateLong(x float64) int64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= float64(math.MaxInt64):
		return math.MaxInt64
	case x <= float64(math.MinInt64):
		return math.MinInt64
	}
	return int64(x)
}

// truncateInt narrows x toward zero to a 32-bit range.
func truncateInt(x float64) int {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= float64(math.MaxInt32):
		return math.MaxInt32
	case x <= float64(math.MinInt32):
		return math.MinInt32
	}
	return int(x)
}

// DateFormatter renders an epoch millisecond timestamp for dateString/sysTime.
type DateFormatter func(ms int64) string

// NightscoutLayout is the date layout Nightscout clients parse.
const NightscoutLayout = "2006-01-02T15:04:05.000-0700"

// NightscoutFormatter formats timestamps in loc using NightscoutLayout.
func NightscoutFormatter(loc *time.Location) DateFormatter {
	if loc == nil {
		loc = time.UTC
	}
	return func(ms int64) string {
		return time.UnixMilli(ms).In(loc).Format(NightscoutLayout)
	}
}
