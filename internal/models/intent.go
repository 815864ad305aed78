// Package models defines the queue row shape and the per-kind payloads
// shared by intake, store, dispatcher and the chain gateway.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// IntentKind enumerates the contract calls the queue can carry.
type IntentKind string

const (
	KindCreateGame IntentKind = "create_game"
	KindMakeMove   IntentKind = "make_move"
	KindEndGame    IntentKind = "end_game"
	KindMintBadge  IntentKind = "mint_badge"
)

// IntentStatus is the lifecycle state of a queue row.
type IntentStatus string

const (
	StatusPending            IntentStatus = "pending"
	StatusProcessing         IntentStatus = "processing"
	StatusCompleted          IntentStatus = "completed"
	StatusFailed             IntentStatus = "failed"
	StatusWaitingForParentID IntentStatus = "waiting_for_object_id"
)

// Intent is one row of transaction_queue: a durable, per-actor serialized
// request to execute a contract call on behalf of a player.
type Intent struct {
	ID          string          `json:"id"`
	Kind        IntentKind      `json:"kind"`
	Actor       string          `json:"player_sui_address"`
	GameRef     *int64          `json:"game_id,omitempty"`
	PlayerRef   *int64          `json:"player_id,omitempty"`
	Status      IntentStatus    `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Error       *string         `json:"error,omitempty"`
	Retries     int             `json:"retries"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// CreateGamePayload starts a new on-chain game.
// Mode 0 is human-vs-computer, 1 is human-vs-human.
type CreateGamePayload struct {
	Mode       uint8 `json:"mode"`
	Difficulty uint8 `json:"difficulty"`
}

// MakeMovePayload records one move against an existing game object.
// GameObjectID may be empty while the row is parked waiting for the parent
// create_game to land; the dispatcher injects it on unblock.
type MakeMovePayload struct {
	GameObjectID string `json:"game_object_id"`
	IsComputer   bool   `json:"is_computer"`
	San          string `json:"san"`
	Fen          string `json:"fen"`
	MoveHash     string `json:"move_hash"`
}

// EndGamePayload finalizes a game. Winner is nil on a draw.
type EndGamePayload struct {
	GameObjectID string  `json:"game_object_id"`
	Winner       *string `json:"winner"`
	Result       string  `json:"result"`
	FinalFen     string  `json:"final_fen"`
}

// MintBadgePayload mints an achievement badge to a player address.
// RegistryObjectID falls back to the service-wide registry when empty.
type MintBadgePayload struct {
	RecipientAddress string `json:"recipient_address"`
	BadgeType        string `json:"badge_type"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	SourceURL        string `json:"source_url"`
	RegistryObjectID string `json:"registry_object_id,omitempty"`
}

// DecodePayload unmarshals the payload into the kind's concrete type.
func (i *Intent) DecodePayload() (interface{}, error) {
	var (
		out interface{}
		err error
	)
	switch i.Kind {
	case KindCreateGame:
		p := &CreateGamePayload{}
		err = json.Unmarshal(i.Payload, p)
		out = p
	case KindMakeMove:
		p := &MakeMovePayload{}
		err = json.Unmarshal(i.Payload, p)
		out = p
	case KindEndGame:
		p := &EndGamePayload{}
		err = json.Unmarshal(i.Payload, p)
		out = p
	case KindMintBadge:
		p := &MintBadgePayload{}
		err = json.Unmarshal(i.Payload, p)
		out = p
	default:
		return nil, fmt.Errorf("unknown intent kind %q", i.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload for intent %s: %w", i.Kind, i.ID, err)
	}
	return out, nil
}

// BadgePayload decodes the payload of a MintBadge intent.
func (i *Intent) BadgePayload() (*MintBadgePayload, error) {
	if i.Kind != KindMintBadge {
		return nil, fmt.Errorf("intent %s is %s, not %s", i.ID, i.Kind, KindMintBadge)
	}
	p := &MintBadgePayload{}
	if err := json.Unmarshal(i.Payload, p); err != nil {
		return nil, fmt.Errorf("decode mint_badge payload for intent %s: %w", i.ID, err)
	}
	return p, nil
}
