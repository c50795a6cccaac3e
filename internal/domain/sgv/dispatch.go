package sgv

import (
	"context"

	"github.com/okian/glucofeed/internal/domain/commands"
	"github.com/okian/glucofeed/internal/domain/types"
	"github.com/okian/glucofeed/pkg/logger"
	"github.com/okian/glucofeed/pkg/metrics"
)

// Side-channel query keys.
const (
	StepsParam  = "steps"
	HeartParam  = "heart"
	TaskerParam = "tasker"
)

// heartAccuracy is the accuracy attached to every heart command.
const heartAccuracy = 1

// Results carries the result codes of one request's side-channel commands.
type Results struct {
	Steps  commands.Code
	Heart  commands.Code
	Tasker commands.Code
}

// Dispatch runs every side-channel command present in q. Commands are
// independent: a missing key leaves its code at zero and a failing command
// neither aborts nor retries the others.
func Dispatch(ctx context.Context, q types.Query, c commands.Commander, log logger.Logger) Results {
	var res Results

	if v, ok := q.Lookup(StepsParam); ok {
		log.Debug(ctx, "received steps request", logger.String("value", v))
		res.Steps = c.SetSteps(ctx, v)
		metrics.RecordCommandDispatched(StepsParam, int(res.Steps))
	}

	if v, ok := q.Lookup(HeartParam); ok {
		log.Debug(ctx, "received heart request", logger.String("value", v))
		res.Heart = c.SetHeart(ctx, v, heartAccuracy)
		metrics.RecordCommandDispatched(HeartParam, int(res.Heart))
	}

	if v, ok := q.Lookup(TaskerParam); ok {
		log.Debug(ctx, "received tasker request", logger.String("value", v))
		res.Tasker = c.SendTasker(ctx, v)
		metrics.RecordCommandDispatched(TaskerParam, int(res.Tasker))
	}

	return res
}
