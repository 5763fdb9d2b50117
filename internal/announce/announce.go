package announce

import (
	"context"
	"time"

	"hap/queue-service/internal/feed"
	"hap/queue-service/internal/models"
)

// Announcer turns a claimed assignment into a waiting-room announcement and
// publishes it on the change feed. Publishing is deliberately separate from
// the queue claim: a feed failure must not undo an attended assignment.
type Announcer struct {
	feed  feed.Feed
	nowFn func() time.Time
}

func New(f feed.Feed) *Announcer {
	return &Announcer{feed: f, nowFn: func() time.Time { return time.Now().UTC() }}
}

// NewWithClock is for tests that need deterministic timestamps.
func NewWithClock(f feed.Feed, now func() time.Time) *Announcer {
	return &Announcer{feed: f, nowFn: now}
}

// Call announces a freshly claimed assignment.
func (a *Announcer) Call(ctx context.Context, assignment models.Assignment) (models.CallRecord, error) {
	return a.publish(ctx, assignment, models.CallNormal)
}

// Recall repeats the announcement for a patient who did not show up. The
// record kind lets displays render a repeat differently from a first call.
func (a *Announcer) Recall(ctx context.Context, assignment models.Assignment) (models.CallRecord, error) {
	return a.publish(ctx, assignment, models.CallRecall)
}

func (a *Announcer) publish(ctx context.Context, assignment models.Assignment, kind string) (models.CallRecord, error) {
	record := models.CallRecord{
		Message:  models.CallMessage(assignment.PatientName, assignment.RoomID),
		Kind:     kind,
		RoomID:   assignment.RoomID,
		IssuedAt: a.nowFn(),
	}
	if err := a.feed.Publish(ctx, record); err != nil {
		return models.CallRecord{}, err
	}
	return record, nil
}
