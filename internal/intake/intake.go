// Package intake validates incoming intents, deduplicates reward mints and
// persists queue rows in their terminal intended status.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chesschain/queue-api/internal/events"
	"github.com/chesschain/queue-api/internal/models"
	"github.com/chesschain/queue-api/internal/rewards"
)

// StatusWaitingIndicator is the caller-supplied hint that the parent game is
// not yet on chain.
const StatusWaitingIndicator = "waiting_for_object_id"

// InvalidRequestError marks failures caused by the request itself, so the
// HTTP layer can map them to a client error without matching message text.
type InvalidRequestError struct {
	Err error
}

func (e *InvalidRequestError) Error() string { return e.Err.Error() }

func (e *InvalidRequestError) Unwrap() error { return e.Err }

func invalidRequest(format string, args ...interface{}) error {
	return &InvalidRequestError{Err: fmt.Errorf(format, args...)}
}

// QueueStore is the store surface intake writes through.
type QueueStore interface {
	Enqueue(ctx context.Context, in *models.Intent) error
	BadgeInQueue(ctx context.Context, actor string, playerID int64, badgeType string) (bool, error)
	PlayerIDByAddress(ctx context.Context, address string) (int64, bool, error)
}

// Eligibility decides whether a requested reward should be materialized.
type Eligibility interface {
	Decide(ctx context.Context, actor string, kind rewards.CheckKind) (*rewards.CatalogEntry, error)
}

// Ack acknowledges an accepted intent.
type Ack struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Service struct {
	store    QueueStore
	engine   Eligibility
	bus      events.Bus
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

func New(store QueueStore, engine Eligibility, bus events.Bus, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		bus:      bus,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateGameRequest mirrors the transaction:create_game client event.
type CreateGameRequest struct {
	TransactionID string `json:"transaction_id"`
	GameID        int64  `json:"game_id" validate:"required"`
	PlayerAddress string `json:"player_address" validate:"required"`
	Data          struct {
		Mode       uint8 `json:"mode" validate:"oneof=0 1"`
		Difficulty uint8 `json:"difficulty" validate:"oneof=0 1 2"`
	} `json:"data"`
}

// MakeMoveRequest mirrors the transaction:make_move client event. Status
// "waiting_for_object_id" parks the row until the parent game id is known.
type MakeMoveRequest struct {
	TransactionID string `json:"transaction_id"`
	PlayerAddress string `json:"player_address" validate:"required"`
	Status        string `json:"status" validate:"omitempty,oneof=pending waiting_for_object_id"`
	Data          struct {
		GameObjectID string `json:"game_object_id"`
		IsComputer   bool   `json:"is_computer"`
		San          string `json:"san" validate:"required"`
		Fen          string `json:"fen" validate:"required"`
		MoveHash     string `json:"move_hash" validate:"required"`
		GameID       *int64 `json:"game_id"`
	} `json:"data"`
}

// EndGameRequest mirrors the transaction:end_game client event.
type EndGameRequest struct {
	TransactionID string `json:"transaction_id"`
	PlayerAddress string `json:"player_address" validate:"required"`
	Data          struct {
		GameObjectID string  `json:"game_object_id" validate:"required"`
		Winner       *string `json:"winner"`
		Result       string  `json:"result" validate:"oneof=1-0 0-1 1/2-1/2"`
		FinalFen     string  `json:"final_fen" validate:"required"`
	} `json:"data"`
}

// MintBadgeRequest mirrors the transaction:mint_nft client event.
type MintBadgeRequest struct {
	TransactionID string `json:"transaction_id"`
	PlayerAddress string `json:"player_address" validate:"required"`
	PlayerID      int64  `json:"player_id" validate:"required"`
	Data          struct {
		RecipientAddress string `json:"recipient_address" validate:"required"`
		BadgeType        string `json:"badge_type" validate:"required"`
		Name             string `json:"name" validate:"required"`
		Description      string `json:"description"`
		SourceURL        string `json:"source_url" validate:"required,url"`
		RegistryObjectID string `json:"registry_object_id"`
	} `json:"data"`
}

// NFTMintRequest mirrors the server-side nftMint event.
type NFTMintRequest struct {
	PlayerID         int64  `json:"player_id" validate:"required"`
	PlayerSuiAddress string `json:"player_sui_address" validate:"required"`
	RewardType       string `json:"reward_type" validate:"required,oneof=first_game first_game_created wins"`
}

// CreateGame persists a create-game intent.
func (s *Service) CreateGame(ctx context.Context, req *CreateGameRequest) (*Ack, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidRequest("invalid create_game request: %w", err)
	}

	payload, _ := json.Marshal(models.CreateGamePayload{
		Mode:       req.Data.Mode,
		Difficulty: req.Data.Difficulty,
	})
	in := &models.Intent{
		ID:      intentID(req.TransactionID),
		Kind:    models.KindCreateGame,
		Actor:   req.PlayerAddress,
		GameRef: &req.GameID,
		Status:  models.StatusPending,
		Payload: payload,
	}
	return s.enqueue(ctx, in, "queued")
}

// MakeMove persists a make-move intent, directly in waiting_for_object_id
// when the caller signals the parent game is not yet created.
func (s *Service) MakeMove(ctx context.Context, req *MakeMoveRequest) (*Ack, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidRequest("invalid make_move request: %w", err)
	}

	status := models.StatusPending
	ackStatus := "queued"
	if req.Status == StatusWaitingIndicator {
		if req.Data.GameID == nil {
			return nil, invalidRequest("invalid make_move request: waiting_for_object_id requires game_id")
		}
		status = models.StatusWaitingForParentID
		ackStatus = StatusWaitingIndicator
	} else if req.Data.GameObjectID == "" {
		return nil, invalidRequest("invalid make_move request: game_object_id is required")
	}

	payload, _ := json.Marshal(models.MakeMovePayload{
		GameObjectID: req.Data.GameObjectID,
		IsComputer:   req.Data.IsComputer,
		San:          req.Data.San,
		Fen:          req.Data.Fen,
		MoveHash:     req.Data.MoveHash,
	})
	in := &models.Intent{
		ID:      intentID(req.TransactionID),
		Kind:    models.KindMakeMove,
		Actor:   req.PlayerAddress,
		GameRef: req.Data.GameID,
		Status:  status,
		Payload: payload,
	}
	return s.enqueue(ctx, in, ackStatus)
}

// EndGame persists an end-game intent.
func (s *Service) EndGame(ctx context.Context, req *EndGameRequest) (*Ack, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidRequest("invalid end_game request: %w", err)
	}

	payload, _ := json.Marshal(models.EndGamePayload{
		GameObjectID: req.Data.GameObjectID,
		Winner:       req.Data.Winner,
		Result:       req.Data.Result,
		FinalFen:     req.Data.FinalFen,
	})
	in := &models.Intent{
		ID:      intentID(req.TransactionID),
		Kind:    models.KindEndGame,
		Actor:   req.PlayerAddress,
		Status:  models.StatusPending,
		Payload: payload,
	}
	return s.enqueue(ctx, in, "queued")
}

// MintBadge persists a badge-mint intent. A duplicate for the same
// (actor, player, badge_type) is silently dropped: no row, no queue event.
func (s *Service) MintBadge(ctx context.Context, req *MintBadgeRequest) (*Ack, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidRequest("invalid mint_nft request: %w", err)
	}

	dup, err := s.store.BadgeInQueue(ctx, req.PlayerAddress, req.PlayerID, req.Data.BadgeType)
	if err != nil {
		return nil, err
	}
	if dup {
		s.logger.Infow("Dropping duplicate badge mint",
			"actor", req.PlayerAddress,
			"player", req.PlayerID,
			"badge", req.Data.BadgeType,
		)
		return &Ack{Status: "duplicate"}, nil
	}

	payload, _ := json.Marshal(models.MintBadgePayload{
		RecipientAddress: req.Data.RecipientAddress,
		BadgeType:        req.Data.BadgeType,
		Name:             req.Data.Name,
		Description:      req.Data.Description,
		SourceURL:        req.Data.SourceURL,
		RegistryObjectID: req.Data.RegistryObjectID,
	})
	in := &models.Intent{
		ID:        intentID(req.TransactionID),
		Kind:      models.KindMintBadge,
		Actor:     req.PlayerAddress,
		PlayerRef: &req.PlayerID,
		Status:    models.StatusPending,
		Payload:   payload,
	}
	return s.enqueue(ctx, in, "queued")
}

// RequestReward is the server-side intake path: it consults the eligibility
// engine, deduplicates and synthesizes a badge mint from the catalog. The
// resolved badge may differ from the hinted kind's lowest tier; the emitted
// event carries what was actually queued.
func (s *Service) RequestReward(ctx context.Context, req *NFTMintRequest) (*Ack, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidRequest("invalid nftMint request: %w", err)
	}

	playerID, exists, err := s.store.PlayerIDByAddress(ctx, req.PlayerSuiAddress)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, invalidRequest("unknown player %s", req.PlayerSuiAddress)
	}

	entry, err := s.engine.Decide(ctx, req.PlayerSuiAddress, rewards.CheckKind(req.RewardType))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		s.logger.Debugw("No reward earned", "actor", req.PlayerSuiAddress, "kind", req.RewardType)
		return &Ack{Status: "not_eligible"}, nil
	}

	dup, err := s.store.BadgeInQueue(ctx, req.PlayerSuiAddress, playerID, entry.BadgeType)
	if err != nil {
		return nil, err
	}
	if dup {
		s.logger.Infow("Reward already in queue", "actor", req.PlayerSuiAddress, "badge", entry.BadgeType)
		return &Ack{Status: "duplicate"}, nil
	}

	payload, _ := json.Marshal(models.MintBadgePayload{
		RecipientAddress: req.PlayerSuiAddress,
		BadgeType:        entry.BadgeType,
		Name:             entry.Name,
		Description:      entry.Description,
		SourceURL:        entry.SourceURL,
	})
	in := &models.Intent{
		ID:        uuid.NewString(),
		Kind:      models.KindMintBadge,
		Actor:     req.PlayerSuiAddress,
		PlayerRef: &playerID,
		Status:    models.StatusPending,
		Payload:   payload,
	}
	if err := s.store.Enqueue(ctx, in); err != nil {
		return nil, err
	}

	s.publish(in.Actor, events.EventMintTaskQueued, events.MintTaskQueued{
		TaskID:           in.ID,
		RewardType:       entry.BadgeType,
		PlayerID:         playerID,
		PlayerSuiAddress: req.PlayerSuiAddress,
	})
	return &Ack{ID: in.ID, Status: "queued"}, nil
}

func (s *Service) enqueue(ctx context.Context, in *models.Intent, ackStatus string) (*Ack, error) {
	if err := s.store.Enqueue(ctx, in); err != nil {
		return nil, err
	}
	s.publish(in.Actor, events.EventQueued, events.Queued{
		ID:        in.ID,
		Status:    ackStatus,
		Timestamp: time.Now().UTC(),
	})
	return &Ack{ID: in.ID, Status: ackStatus}, nil
}

func (s *Service) publish(actor, event string, payload interface{}) {
	if err := s.bus.Publish(context.Background(), events.Room(actor), event, payload); err != nil {
		s.logger.Warnw("Failed to publish intake event", "actor", actor, "event", event, "error", err)
	}
}

func intentID(requested string) string {
	if requested != "" {
		return requested
	}
	return uuid.NewString()
}
