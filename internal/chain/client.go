package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPC is the JSON-RPC 2.0 surface the gateway needs. Satisfied by
// *rpc.Client; tests substitute a canned implementation.
type RPC interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// Dial connects to a fullnode JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*rpc.Client, error) {
	return rpc.DialContext(ctx, url)
}

// Coin is one gas coin owned by the sponsor.
type Coin struct {
	CoinObjectID string `json:"coinObjectId"`
	Balance      string `json:"balance"`
}

type coinPage struct {
	Data []Coin `json:"data"`
}

type txBytesResult struct {
	TxBytes string `json:"txBytes"`
}

// ExecutionStatus reports whether a transaction executed successfully.
type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Effects is the subset of transaction effects the gateway inspects.
type Effects struct {
	Status ExecutionStatus `json:"status"`
}

// ObjectChange describes one object touched by a transaction.
type ObjectChange struct {
	Type       string `json:"type"`
	ObjectType string `json:"objectType"`
	ObjectID   string `json:"objectId"`
}

// ChainEvent is one emitted move event with its parsed body.
type ChainEvent struct {
	Type       string                 `json:"type"`
	ParsedJSON map[string]interface{} `json:"parsedJson"`
}

// TxBlock is a transaction block as returned by the fullnode.
type TxBlock struct {
	Digest        string         `json:"digest"`
	Effects       *Effects       `json:"effects"`
	ObjectChanges []ObjectChange `json:"objectChanges"`
	Events        []ChainEvent   `json:"events"`
}
