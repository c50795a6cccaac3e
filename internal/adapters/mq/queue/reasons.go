package queue

// Rejection reasons reported to metrics when Enqueue refuses a command.
const (
	ReasonClosed    = "closed"
	ReasonFull      = "queue_full"
	ReasonCancelled = "context_cancelled"
)
