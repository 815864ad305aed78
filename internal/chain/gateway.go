// Package chain builds, sponsors, submits and inspects on-chain
// transactions for queue intents.
package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/chesschain/queue-api/internal/models"
)

// Shared system clock object.
const clockObjectID = "0x6"

const suiCoinType = "0x2::sui::SUI"

// MoveCall is a pure description of one contract call, independent of gas
// and signing concerns.
type MoveCall struct {
	Module   string
	Function string
	TypeArgs []string
	Args     []interface{}
}

// Config configures a Gateway.
type Config struct {
	PackageID    string
	RegistryID   string
	GasBudget    uint64
	PollInterval time.Duration
	PollAttempts int
}

type Gateway struct {
	rpc          RPC
	sponsor      *Sponsor
	packageID    string
	registryID   string
	gasBudget    uint64
	pollInterval time.Duration
	pollAttempts int
	logger       *zap.SugaredLogger
}

func NewGateway(rpc RPC, sponsor *Sponsor, cfg Config, logger *zap.SugaredLogger) *Gateway {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 15
	}
	if cfg.GasBudget == 0 {
		cfg.GasBudget = 100_000_000
	}
	return &Gateway{
		rpc:          rpc,
		sponsor:      sponsor,
		packageID:    cfg.PackageID,
		registryID:   cfg.RegistryID,
		gasBudget:    cfg.GasBudget,
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
		logger:       logger,
	}
}

// Sponsor exposes the gateway's signing account.
func (g *Gateway) Sponsor() *Sponsor {
	return g.sponsor
}

// Build constructs the contract call for an intent. Pure: no I/O.
func (g *Gateway) Build(in *models.Intent) (*MoveCall, error) {
	payload, err := in.DecodePayload()
	if err != nil {
		return nil, err
	}

	switch p := payload.(type) {
	case *models.CreateGamePayload:
		return &MoveCall{
			Module:   "game",
			Function: "create_game",
			Args:     []interface{}{p.Mode, p.Difficulty, clockObjectID},
		}, nil

	case *models.MakeMovePayload:
		if p.GameObjectID == "" {
			return nil, fmt.Errorf("intent %s has no game object id", in.ID)
		}
		return &MoveCall{
			Module:   "game",
			Function: "make_move",
			Args:     []interface{}{p.GameObjectID, p.IsComputer, p.San, p.Fen, p.MoveHash, clockObjectID},
		}, nil

	case *models.EndGamePayload:
		if p.GameObjectID == "" {
			return nil, fmt.Errorf("intent %s has no game object id", in.ID)
		}
		// option<address> is a zero- or one-element vector.
		winner := []string{}
		if p.Winner != nil && *p.Winner != "" {
			winner = append(winner, *p.Winner)
		}
		return &MoveCall{
			Module:   "game",
			Function: "end_game",
			Args:     []interface{}{p.GameObjectID, winner, p.Result, p.FinalFen, clockObjectID},
		}, nil

	case *models.MintBadgePayload:
		registry := p.RegistryObjectID
		if registry == "" {
			registry = g.registryID
		}
		return &MoveCall{
			Module:   "badge",
			Function: "mint_badge",
			Args:     []interface{}{registry, p.RecipientAddress, p.BadgeType, p.Name, p.Description, p.SourceURL},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported intent kind: %s", in.Kind)
	}
}

// BuildSetAuthorizedMinter is administrative, used only by the out-of-band
// repair utility.
func (g *Gateway) BuildSetAuthorizedMinter(registry, newMinter string) *MoveCall {
	return &MoveCall{
		Module:   "badge",
		Function: "set_authorized_minter",
		Args:     []interface{}{registry, newMinter},
	}
}

// Submit attaches a sponsor-owned gas coin, signs and broadcasts the call.
// Returns the transaction digest. The chain's execution error string, when
// present, is returned verbatim so the classifier upstream can match on it.
func (g *Gateway) Submit(ctx context.Context, call *MoveCall) (string, error) {
	var coins coinPage
	err := g.rpc.CallContext(ctx, &coins, "suix_getCoins", g.sponsor.Address, suiCoinType, nil, 10)
	if err != nil {
		return "", fmt.Errorf("fetch sponsor gas coins: %w", err)
	}
	if len(coins.Data) == 0 {
		return "", fmt.Errorf("sponsor %s has no gas coins", g.sponsor.Address)
	}
	gasCoin := coins.Data[0].CoinObjectID

	var built txBytesResult
	err = g.rpc.CallContext(ctx, &built, "unsafe_moveCall",
		g.sponsor.Address,
		g.packageID,
		call.Module,
		call.Function,
		call.TypeArgs,
		call.Args,
		gasCoin,
		strconv.FormatUint(g.gasBudget, 10),
	)
	if err != nil {
		return "", fmt.Errorf("build %s::%s: %w", call.Module, call.Function, err)
	}

	raw, err := base64.StdEncoding.DecodeString(built.TxBytes)
	if err != nil {
		return "", fmt.Errorf("decode tx bytes: %w", err)
	}
	signature := g.sponsor.SignTransaction(raw)

	var result TxBlock
	err = g.rpc.CallContext(ctx, &result, "sui_executeTransactionBlock",
		built.TxBytes,
		[]string{signature},
		map[string]bool{"showEffects": true},
		"WaitForLocalExecution",
	)
	if err != nil {
		return "", fmt.Errorf("execute %s::%s: %w", call.Module, call.Function, err)
	}

	if result.Effects != nil && result.Effects.Status.Status != "success" {
		if result.Effects.Status.Error != "" {
			return "", errors.New(result.Effects.Status.Error)
		}
		return "", fmt.Errorf("execution status %q", result.Effects.Status.Status)
	}

	g.logger.Infow("Transaction submitted",
		"module", call.Module,
		"function", call.Function,
		"digest", result.Digest,
	)
	return result.Digest, nil
}

var errNotFound = errors.New("created object not found yet")

// WaitAndExtract polls for the transaction's effects and extracts the id of
// the newly created object matching typePattern. Polls up to PollAttempts
// at PollInterval. Returns ("", nil) when the cap is reached without a
// match; the submit already succeeded, so the caller only loses the
// reconciliation step.
func (g *Gateway) WaitAndExtract(ctx context.Context, digest, typePattern string) (string, error) {
	var objectID string

	operation := func() error {
		var block TxBlock
		err := g.rpc.CallContext(ctx, &block, "sui_getTransactionBlock", digest, map[string]bool{
			"showEffects":       true,
			"showObjectChanges": true,
			"showEvents":        true,
		})
		if err != nil {
			g.logger.Debugw("Effects not readable yet", "digest", digest, "error", err)
			return err
		}
		if id := extractObjectID(&block, typePattern); id != "" {
			objectID = id
			return nil
		}
		return errNotFound
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(g.pollInterval), uint64(g.pollAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		g.logger.Warnw("No created object extracted", "digest", digest, "pattern", typePattern, "error", err)
		return "", nil
	}
	return objectID, nil
}

// extractObjectID applies the match rules in order: created objects by type
// string, then the GameCreated / BadgeMinted event fallbacks.
func extractObjectID(block *TxBlock, typePattern string) string {
	for _, change := range block.ObjectChanges {
		if change.Type != "created" {
			continue
		}
		if typeMatches(change.ObjectType, typePattern) {
			return change.ObjectID
		}
	}

	pattern := strings.ToLower(typePattern)
	for _, ev := range block.Events {
		if strings.Contains(pattern, "game") && strings.Contains(ev.Type, "GameCreated") {
			if id, ok := ev.ParsedJSON["game_id"].(string); ok && id != "" {
				return id
			}
		}
		if strings.Contains(pattern, "badge") && strings.Contains(ev.Type, "BadgeMinted") {
			if id, ok := ev.ParsedJSON["badge_id"].(string); ok && id != "" {
				return id
			}
		}
	}
	return ""
}

// typeMatches compares a fully-qualified object type against the requested
// pattern, case-insensitively, with a trivial match on the "game"/"badge"
// markers when both sides carry one.
func typeMatches(objectType, pattern string) bool {
	t := strings.ToLower(objectType)
	p := strings.ToLower(pattern)
	if p == "" || t == "" {
		return false
	}
	if strings.Contains(t, p) || strings.HasSuffix(t, p) {
		return true
	}
	for _, marker := range []string{"game", "badge"} {
		if strings.Contains(t, marker) && strings.Contains(p, marker) {
			return true
		}
	}
	return false
}
