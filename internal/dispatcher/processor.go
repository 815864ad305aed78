package dispatcher

import (
	"context"
	"time"

	"github.com/chesschain/queue-api/internal/events"
	"github.com/chesschain/queue-api/internal/models"
	"github.com/chesschain/queue-api/internal/rewards"
)

// Type patterns for created-object extraction.
const (
	gameTypePattern  = "::game::Game"
	badgeTypePattern = "badge::Badge"
)

// process runs one intent attempt: build, submit, extract, reconcile, emit.
// Returned errors feed the retry policy; reconciliation errors after a
// successful submit never propagate because the on-chain effect is already
// durable.
func (d *Dispatcher) process(ctx context.Context, in *models.Intent) error {
	call, err := d.gateway.Build(in)
	if err != nil {
		return err
	}

	start := time.Now()
	digest, err := d.gateway.Submit(ctx, call)
	if err != nil {
		if in.Kind == models.KindMintBadge && Classify(err) == ClassAuthorization {
			d.logger.Errorw("Badge mint rejected by registry: sponsor is not the authorized minter; run tools/fix_minter",
				"id", in.ID,
				"error", err,
			)
		}
		return err
	}
	submitDuration.Observe(time.Since(start).Seconds())

	result := events.Result{
		ID:        in.ID,
		Status:    "success",
		Digest:    digest,
		Timestamp: time.Now().UTC(),
	}

	switch in.Kind {
	case models.KindCreateGame:
		result.ObjectID = d.reconcileCreateGame(ctx, in, digest)

	case models.KindMintBadge:
		objectID, badge := d.reconcileMintBadge(ctx, in, digest)
		result.ObjectID = objectID
		if badge != nil {
			result.RewardName = badge.Name
			result.BadgeType = badge.BadgeType
		}

	case models.KindMakeMove, models.KindEndGame:
		// No store reconciliation.
	}

	d.publish(ctx, in.Actor, events.EventResult, result)
	return nil
}

// reconcileCreateGame extracts the new game object id, records it on the
// game row and releases any intents parked on this game.
func (d *Dispatcher) reconcileCreateGame(ctx context.Context, in *models.Intent, digest string) string {
	objectID, err := d.gateway.WaitAndExtract(ctx, digest, gameTypePattern)
	if err != nil || objectID == "" {
		d.logger.Warnw("No game object extracted", "id", in.ID, "digest", digest, "error", err)
		return ""
	}
	if in.GameRef == nil {
		return objectID
	}

	if err := d.store.SetGameObjectID(ctx, *in.GameRef, objectID); err != nil {
		d.logger.Errorw("Failed to record game object id", "game", *in.GameRef, "object", objectID, "error", err)
	}

	waiting, err := d.store.ListWaitingForGame(ctx, *in.GameRef)
	if err != nil {
		d.logger.Errorw("Failed to list waiting intents", "game", *in.GameRef, "error", err)
		return objectID
	}
	for _, w := range waiting {
		if err := d.store.UnblockWaiting(ctx, w.ID, objectID); err != nil {
			d.logger.Errorw("Failed to unblock waiting intent", "id", w.ID, "error", err)
			continue
		}
		d.logger.Infow("Unblocked waiting intent", "id", w.ID, "game", *in.GameRef, "object", objectID)
	}
	return objectID
}

// reconcileMintBadge extracts the minted badge object and upserts the reward
// row. The catalog entry (when known) enriches the result event.
func (d *Dispatcher) reconcileMintBadge(ctx context.Context, in *models.Intent, digest string) (string, *rewards.CatalogEntry) {
	payload, err := in.BadgePayload()
	if err != nil {
		d.logger.Errorw("Unreadable mint_badge payload after submit", "id", in.ID, "error", err)
		return "", nil
	}
	entry := rewards.ByBadgeType(payload.BadgeType)
	if entry == nil {
		entry = &rewards.CatalogEntry{BadgeType: payload.BadgeType, Name: payload.Name}
	}

	objectID, err := d.gateway.WaitAndExtract(ctx, digest, badgeTypePattern)
	if err != nil || objectID == "" {
		d.logger.Warnw("No badge object extracted", "id", in.ID, "digest", digest, "error", err)
		return "", entry
	}

	if in.PlayerRef != nil {
		if err := d.store.UpsertReward(ctx, *in.PlayerRef, payload.BadgeType, objectID); err != nil {
			// The mint already succeeded on chain.
			d.logger.Errorw("Failed to upsert reward row", "player", *in.PlayerRef, "badge", payload.BadgeType, "error", err)
		}
	}
	return objectID, entry
}
