// Package rewards decides whether a reward intent should be materialized.
// The engine is read-only against the store; deduplication belongs to
// intake and the queue's uniqueness guarantee.
package rewards

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// HistoryStore is the read-only slice of the store the engine consults.
type HistoryStore interface {
	PlayerIDByAddress(ctx context.Context, address string) (int64, bool, error)
	HasNoFirstGame(ctx context.Context, playerID int64) (bool, error)
	HasNoFirstGameCreated(ctx context.Context, playerID int64) (bool, error)
	VictoriesTotal(ctx context.Context, playerID int64) (int, error)
	RewardBadges(ctx context.Context, playerID int64) (map[string]bool, error)
}

type Engine struct {
	store  HistoryStore
	logger *zap.SugaredLogger
}

func NewEngine(store HistoryStore, logger *zap.SugaredLogger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Decide returns the catalog entry the actor has earned for the requested
// check kind, or nil when nothing should be minted.
func (e *Engine) Decide(ctx context.Context, actor string, kind CheckKind) (*CatalogEntry, error) {
	playerID, ok, err := e.store.PlayerIDByAddress(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.logger.Debugw("No player for actor, no reward", "actor", actor)
		return nil, nil
	}

	granted, err := e.store.RewardBadges(ctx, playerID)
	if err != nil {
		return nil, err
	}

	switch kind {
	case CheckFirstGame, CheckFirstGameCreated:
		return e.decideOneShot(ctx, playerID, kind, granted)
	case CheckWins:
		return e.decideWinsTier(ctx, playerID, granted)
	default:
		return nil, fmt.Errorf("unknown reward kind: %s", kind)
	}
}

// decideOneShot handles the non-tiered checks backed by the "no_*" views.
// The view lists players who have NOT yet done the thing, so presence in
// the view means the first-occurrence reward applies now.
func (e *Engine) decideOneShot(ctx context.Context, playerID int64, kind CheckKind, granted map[string]bool) (*CatalogEntry, error) {
	var present bool
	var err error
	switch kind {
	case CheckFirstGame:
		present, err = e.store.HasNoFirstGame(ctx, playerID)
	case CheckFirstGameCreated:
		present, err = e.store.HasNoFirstGameCreated(ctx, playerID)
	}
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}

	for i := range Catalog {
		entry := &Catalog[i]
		if entry.Check != kind {
			continue
		}
		if granted[entry.BadgeType] {
			return nil, nil
		}
		return entry, nil
	}
	return nil, nil
}

// decideWinsTier picks the first unearned wins tier in catalog order and
// grants it when the win count meets its threshold.
func (e *Engine) decideWinsTier(ctx context.Context, playerID int64, granted map[string]bool) (*CatalogEntry, error) {
	wins, err := e.store.VictoriesTotal(ctx, playerID)
	if err != nil {
		return nil, err
	}

	for i := range Catalog {
		entry := &Catalog[i]
		if entry.Check != CheckWins || granted[entry.BadgeType] {
			continue
		}
		if wins >= entry.Threshold {
			return entry, nil
		}
		return nil, nil
	}
	return nil, nil
}
