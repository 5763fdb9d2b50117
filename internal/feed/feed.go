package feed

import (
	"context"

	"hap/queue-service/internal/models"
)

// Feed is the single-slot change channel between the queue core and the
// waiting-room displays. Publish overwrites the slot unconditionally; Current
// returns the latest record and false when nothing has been published yet.
// There is no history and no per-consumer cursor, displays are expected to
// poll and compare against what they last showed.
type Feed interface {
	Publish(ctx context.Context, record models.CallRecord) error
	Current(ctx context.Context) (models.CallRecord, bool, error)
}
