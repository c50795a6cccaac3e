package sgv

import (
	"context"
	"encoding/json"

	"github.com/okian/glucofeed/internal/domain/model"
	"github.com/okian/glucofeed/pkg/logger"
	"github.com/okian/glucofeed/pkg/metrics"
)

// emptyArray is the body returned when nothing can be assembled.
var emptyArray = []byte("[]")

// Aux is the one-shot data attached to the first eligible record.
type Aux struct {
	Status  model.StatusLine
	Results Results
}

// Assembler maps readings into sgv.json records.
type Assembler struct {
	device     string
	formatDate DateFormatter
	logger     logger.Logger
}

// NewAssembler creates an Assembler reporting device on every record.
func NewAssembler(device string, formatDate DateFormatter, log logger.Logger) *Assembler {
	if formatDate == nil {
		formatDate = NightscoutFormatter(nil)
	}
	return &Assembler{device: device, formatDate: formatDate, logger: log}
}

// Assemble serializes readings in the order given. A nil slice means the
// store was unavailable and yields "[]". Each aux value is emitted at most
// once, on the first record built while it is still set. If a record cannot
// be serialized the pass stops and the records built so far are returned.
func (a *Assembler) Assemble(ctx context.Context, readings []model.Reading, aux Aux) []byte {
	if readings == nil {
		return emptyArray
	}

	out := make([]json.RawMessage, 0, len(readings))
	for i := range readings {
		rec := a.record(&readings[i])
		injected := drain(&rec, &aux)

		raw, err := json.Marshal(rec)
		if err != nil {
			a.logger.Error(ctx, "failed to serialize sgv record",
				logger.String("id", readings[i].ID),
				logger.Int("index", i),
				logger.Error(err),
			)
			metrics.RecordFeedAssemblyFault()
			break
		}
		for _, field := range injected {
			metrics.RecordAuxInjected(field)
		}
		out = append(out, raw)
	}

	body, err := json.Marshal(out)
	if err != nil {
		a.logger.Error(ctx, "failed to serialize sgv array", logger.Error(err))
		return emptyArray
	}
	a.logger.Debug(ctx, "sgv output", logger.Int("records", len(out)), logger.Int("bytes", len(body)))
	return body
}

func (a *Assembler) record(r *model.Reading) Record {
	date := a.formatDate(r.Timestamp)
	return Record{
		ID:         r.ID,
		Device:     a.device,
		Date:       r.Timestamp,
		DateString: date,
		SysTime:    date,
		SGV:        truncateInt(r.DisplayGlucose),
		Delta:      NewDelta(r.Slope),
		Direction:  r.Direction,
		Noise:      int(r.Noise),
		Filtered:   truncateLong(r.Filtered * 1000),
		Unfiltered: truncateLong(r.Raw * 1000),
		RSSI:       defaultRSSI,
		Type:       recordType,
	}
}

// drain moves every still-pending aux value onto rec and clears it in aux.
// It returns the wire names of the fields it attached.
func drain(rec *Record, aux *Aux) []string {
	var injected []string

	if aux.Status.Text != "" {
		ts := aux.Status.Timestamp
		rec.AAPS = aux.Status.Text
		rec.AAPSTime = &ts
		aux.Status = model.StatusLine{}
		injected = append(injected, "aaps")
	}

	if aux.Results.Steps.Invoked() {
		rec.StepsResult = int(aux.Results.Steps)
		aux.Results.Steps = 0
		injected = append(injected, "steps_result")
	}

	if aux.Results.Heart.Invoked() {
		rec.HeartResult = int(aux.Results.Heart)
		aux.Results.Heart = 0
		injected = append(injected, "heart_result")
	}

	if aux.Results.Tasker.Invoked() {
		rec.TaskerResult = int(aux.Results.Tasker)
		aux.Results.Tasker = 0
		injected = append(injected, "tasker_result")
	}

	return injected
}
