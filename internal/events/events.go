// Package events centralizes event names, room naming and payload shapes for
// the realtime status channel, so handlers and workers cannot drift apart.
package events

import "time"

// Server -> client event names.
const (
	EventQueued         = "transaction:queued"
	EventProcessing     = "transaction:processing"
	EventResult         = "transaction:result"
	EventMintTaskQueued = "mint-task-queued"
	EventError          = "error"
)

// Client -> server event names, kept here for reference by the transport
// layer even though intake is reached over HTTP in this service.
const (
	EventCreateGame = "transaction:create_game"
	EventMakeMove   = "transaction:make_move"
	EventEndGame    = "transaction:end_game"
	EventMintNFT    = "transaction:mint_nft"
	EventNFTMint    = "nftMint"
)

// Room returns the per-actor room name.
func Room(actor string) string {
	return "player:" + actor
}

// Queued acknowledges a persisted intent. Status is "queued" or
// "waiting_for_object_id".
type Queued struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"ts"`
}

// Processing announces that a worker has claimed an intent.
type Processing struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"ts"`
}

// Result reports the terminal outcome of one intent.
type Result struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"` // "success" | "error"
	Digest     string    `json:"digest,omitempty"`
	ObjectID   string    `json:"object_id,omitempty"`
	RewardName string    `json:"reward_name,omitempty"`
	BadgeType  string    `json:"badge_type,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"ts"`
}

// MintTaskQueued confirms a server-side reward request was materialized.
type MintTaskQueued struct {
	TaskID           string `json:"task_id"`
	RewardType       string `json:"reward_type"`
	PlayerID         int64  `json:"player_id"`
	PlayerSuiAddress string `json:"player_sui_address"`
}

// Error is a generic failure notification.
type Error struct {
	Error         string `json:"error"`
	TransactionID string `json:"transaction_id,omitempty"`
}
