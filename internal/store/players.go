package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PlayerIDByAddress resolves an actor address to its player row.
// Returns (0, false, nil) when no player exists for the address.
func (s *Store) PlayerIDByAddress(ctx context.Context, address string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT id FROM players WHERE sui_address = $1`, address).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("player by address: %w", err)
	}
	return id, true, nil
}

// HasNoFirstGame reports whether the player appears in the no-first-game view,
// i.e. has never played a game.
func (s *Store) HasNoFirstGame(ctx context.Context, playerID int64) (bool, error) {
	var present bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM vw_users_no_first_game WHERE player_id = $1)
	`, playerID).Scan(&present)
	return present, err
}

// HasNoFirstGameCreated reports whether the player has never created a game.
func (s *Store) HasNoFirstGameCreated(ctx context.Context, playerID int64) (bool, error) {
	var present bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM vw_users_no_first_game_created WHERE player_id = $1)
	`, playerID).Scan(&present)
	return present, err
}

// VictoriesTotal returns the player's win count from the victories view.
func (s *Store) VictoriesTotal(ctx context.Context, playerID int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(victories, 0) FROM vw_users_victories WHERE player_id = $1
	`, playerID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// RewardBadges returns the set of badge types already granted to the player.
func (s *Store) RewardBadges(ctx context.Context, playerID int64) (map[string]bool, error) {
	rows, err := s.db.Query(ctx, `SELECT badge_type FROM rewards WHERE player_id = $1`, playerID)
	if err != nil {
		return nil, fmt.Errorf("reward badges: %w", err)
	}
	defer rows.Close()

	badges := make(map[string]bool)
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		badges[b] = true
	}
	return badges, rows.Err()
}
