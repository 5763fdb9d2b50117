package feed

import (
	"context"
	"errors"

	"hap/queue-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresFeed stores the slot as a single row keyed by a constant. The
// upsert keeps the row unique without application-side locking.
type PostgresFeed struct {
	pool *pgxpool.Pool
}

func NewPostgresFeed(pool *pgxpool.Pool) *PostgresFeed {
	return &PostgresFeed{pool: pool}
}

func (f *PostgresFeed) Publish(ctx context.Context, record models.CallRecord) error {
	_, err := f.pool.Exec(ctx, `
		INSERT INTO last_call (slot, message, kind, room_id, issued_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (slot) DO UPDATE
		SET message = EXCLUDED.message,
			kind = EXCLUDED.kind,
			room_id = EXCLUDED.room_id,
			issued_at = EXCLUDED.issued_at
	`, record.Message, record.Kind, record.RoomID, record.IssuedAt)
	return err
}

func (f *PostgresFeed) Current(ctx context.Context) (models.CallRecord, bool, error) {
	var record models.CallRecord
	row := f.pool.QueryRow(ctx, `
		SELECT message, kind, room_id, issued_at
		FROM last_call
		WHERE slot = 1
	`)
	if err := row.Scan(&record.Message, &record.Kind, &record.RoomID, &record.IssuedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CallRecord{}, false, nil
		}
		return models.CallRecord{}, false, err
	}
	return record, true, nil
}
