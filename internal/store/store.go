// Package store owns the transaction_queue table and the reconciliation
// writes into games and rewards. Eligibility views are consumed read-only.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/chesschain/queue-api/internal/models"
)

// PgPool defines the interface for PostgreSQL connection pool
type PgPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db     PgPool
	logger *zap.SugaredLogger
}

func New(db PgPool, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, logger: logger}
}

const intentColumns = `id, kind, COALESCE(player_sui_address, ''), game_id, player_id,
	status, payload, error, retries, created_at, updated_at, processed_at`

func scanIntent(row pgx.Row) (*models.Intent, error) {
	var in models.Intent
	err := row.Scan(
		&in.ID, &in.Kind, &in.Actor, &in.GameRef, &in.PlayerRef,
		&in.Status, &in.Payload, &in.Error, &in.Retries,
		&in.CreatedAt, &in.UpdatedAt, &in.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// Enqueue inserts a new queue row. The unique id constraint is authoritative
// for all kinds; MintBadge rows are additionally deduplicated by
// BadgeInQueue before this is called.
func (s *Store) Enqueue(ctx context.Context, in *models.Intent) error {
	var actor *string
	if in.Actor != "" {
		actor = &in.Actor
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO transaction_queue
			(id, kind, player_sui_address, game_id, player_id, status, payload, retries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW())
	`, in.ID, in.Kind, actor, in.GameRef, in.PlayerRef, in.Status, in.Payload)
	if err != nil {
		return fmt.Errorf("enqueue intent %s: %w", in.ID, err)
	}
	return nil
}

// ClaimNext atomically claims the oldest pending row for the actor,
// transitioning it to processing. Rows locked by another dispatcher are
// skipped rather than waited on, so multiple processes never fight over a
// row. Returns (nil, nil) when the actor has no claimable work.
func (s *Store) ClaimNext(ctx context.Context, actor string) (*models.Intent, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE transaction_queue
		SET status = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM transaction_queue
			WHERE status = $2 AND player_sui_address = $3
			ORDER BY created_at, id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+intentColumns,
		models.StatusProcessing, models.StatusPending, actor)

	in, err := scanIntent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next for %s: %w", actor, err)
	}
	return in, nil
}

// ListActiveActors returns distinct actors with pending work, oldest pending
// row first across actors (global FIFO fairness at dispatch time).
func (s *Store) ListActiveActors(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT player_sui_address
		FROM transaction_queue
		WHERE status = $1 AND player_sui_address IS NOT NULL
		GROUP BY player_sui_address
		ORDER BY MIN(created_at)
		LIMIT $2
	`, models.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list active actors: %w", err)
	}
	defer rows.Close()

	var actors []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE transaction_queue
		SET status = $1, error = NULL, updated_at = NOW(), processed_at = NOW()
		WHERE id = $2
	`, models.StatusCompleted, id)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id, errMsg string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE transaction_queue
		SET status = $1, error = $2, updated_at = NOW(), processed_at = NOW()
		WHERE id = $3
	`, models.StatusFailed, errMsg, id)
	return err
}

// RequeuePending returns a failed attempt to the pending state, preserving
// its queue position (created_at is untouched).
func (s *Store) RequeuePending(ctx context.Context, id, errMsg string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE transaction_queue
		SET status = $1, error = $2, updated_at = NOW()
		WHERE id = $3
	`, models.StatusPending, errMsg, id)
	return err
}

func (s *Store) IncrementRetries(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE transaction_queue SET retries = retries + 1, updated_at = NOW() WHERE id = $1
	`, id)
	return err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM transaction_queue WHERE id = $1`, id)
	return err
}

// SetGameObjectID records the on-chain object id of a game. Idempotent.
func (s *Store) SetGameObjectID(ctx context.Context, gameID int64, objectID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE games SET object_id = $1, updated_at = NOW()
		WHERE id = $2 AND (object_id IS NULL OR object_id = $1)
	`, objectID, gameID)
	return err
}

// UpsertReward records a granted badge, inserting or refreshing its object id.
func (s *Store) UpsertReward(ctx context.Context, playerID int64, badgeType, objectID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rewards (player_id, badge_type, object_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (player_id, badge_type)
		DO UPDATE SET object_id = EXCLUDED.object_id, updated_at = NOW()
	`, playerID, badgeType, objectID)
	return err
}

// ListWaitingForGame returns all rows parked on a game whose object id is not
// yet known.
func (s *Store) ListWaitingForGame(ctx context.Context, gameID int64) ([]*models.Intent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+intentColumns+`
		FROM transaction_queue
		WHERE status = $1 AND game_id = $2
		ORDER BY created_at, id
	`, models.StatusWaitingForParentID, gameID)
	if err != nil {
		return nil, fmt.Errorf("list waiting for game %d: %w", gameID, err)
	}
	defer rows.Close()

	var out []*models.Intent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// UnblockWaiting injects the parent object id into the payload and releases
// the row back to pending.
func (s *Store) UnblockWaiting(ctx context.Context, id, objectID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE transaction_queue
		SET payload = jsonb_set(payload, '{game_object_id}', to_jsonb($1::text)),
		    status = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, objectID, models.StatusPending, id, models.StatusWaitingForParentID)
	return err
}

// GCOld deletes terminal rows older than 24 hours.
func (s *Store) GCOld(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM transaction_queue
		WHERE status IN ($1, $2) AND created_at < NOW() - INTERVAL '24 hours'
	`, models.StatusCompleted, models.StatusFailed)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// QueueDepth counts pending rows. Feeds the dispatcher's depth gauge.
func (s *Store) QueueDepth(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM transaction_queue WHERE status = $1
	`, models.StatusPending).Scan(&n)
	return n, err
}

// RequeueStuck resets processing rows untouched for longer than olderThan
// back to pending. Used by the operational reaper after a dispatcher crash.
func (s *Store) RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE transaction_queue
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < NOW() - $3::interval
	`, models.StatusPending, models.StatusProcessing, olderThan.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// BadgeInQueue reports whether an equivalent MintBadge row is already live in
// the queue, or the reward was already granted. Completed rows are deleted on
// success, so the rewards table stands in for the completed status.
func (s *Store) BadgeInQueue(ctx context.Context, actor string, playerID int64, badgeType string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transaction_queue
			WHERE kind = $1
			  AND status IN ($2, $3, $4)
			  AND (player_sui_address = $5 OR player_id = $6)
			  AND payload->>'badge_type' = $7
		) OR EXISTS (
			SELECT 1 FROM rewards WHERE player_id = $6 AND badge_type = $7
		)
	`, models.KindMintBadge,
		models.StatusPending, models.StatusProcessing, models.StatusCompleted,
		actor, playerID, badgeType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("badge in queue check: %w", err)
	}
	return exists, nil
}

// FailedMintBadges returns retained failed MintBadge rows, newest first.
func (s *Store) FailedMintBadges(ctx context.Context, limit int) ([]*models.Intent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+intentColumns+`
		FROM transaction_queue
		WHERE kind = $1 AND status = $2
		ORDER BY updated_at DESC
		LIMIT $3
	`, models.KindMintBadge, models.StatusFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Intent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
