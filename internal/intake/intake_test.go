package intake

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/chesschain/queue-api/internal/events"
	"github.com/chesschain/queue-api/internal/models"
	"github.com/chesschain/queue-api/internal/rewards"
)

type mockQueueStore struct {
	enqueued  []*models.Intent
	inQueue   bool
	playerID  int64
	hasPlayer bool
}

func (m *mockQueueStore) Enqueue(_ context.Context, in *models.Intent) error {
	m.enqueued = append(m.enqueued, in)
	return nil
}

func (m *mockQueueStore) BadgeInQueue(_ context.Context, _ string, _ int64, _ string) (bool, error) {
	return m.inQueue, nil
}

func (m *mockQueueStore) PlayerIDByAddress(_ context.Context, _ string) (int64, bool, error) {
	return m.playerID, m.hasPlayer, nil
}

type mockEngine struct {
	entry *rewards.CatalogEntry
}

func (m *mockEngine) Decide(_ context.Context, _ string, _ rewards.CheckKind) (*rewards.CatalogEntry, error) {
	return m.entry, nil
}

func newTestService(st *mockQueueStore, eng *mockEngine, bus events.Bus) *Service {
	return New(st, eng, bus, zap.NewNop().Sugar())
}

func TestCreateGameQueued(t *testing.T) {
	st := &mockQueueStore{}
	bus := events.NewMemoryBus()
	svc := newTestService(st, &mockEngine{}, bus)

	req := &CreateGameRequest{TransactionID: "tx-1", GameID: 7, PlayerAddress: "0xA"}
	req.Data.Mode = 0
	req.Data.Difficulty = 2

	ack, err := svc.CreateGame(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if ack.ID != "tx-1" || ack.Status != "queued" {
		t.Errorf("ack = %+v", ack)
	}
	if len(st.enqueued) != 1 {
		t.Fatalf("enqueued %d rows", len(st.enqueued))
	}
	in := st.enqueued[0]
	if in.Kind != models.KindCreateGame || in.Status != models.StatusPending || in.GameRef == nil || *in.GameRef != 7 {
		t.Errorf("intent = %+v", in)
	}
	if got := bus.ByEvent(events.EventQueued); len(got) != 1 || got[0].Room != "player:0xA" {
		t.Errorf("queued events = %+v", got)
	}
}

func TestCreateGameValidation(t *testing.T) {
	svc := newTestService(&mockQueueStore{}, &mockEngine{}, events.NewMemoryBus())

	// Missing game_id and player_address.
	req := &CreateGameRequest{}
	_, err := svc.CreateGame(context.Background(), req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "invalid create_game request") {
		t.Errorf("error = %v", err)
	}
	var invalid *InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Errorf("error %v is not an InvalidRequestError", err)
	}

	// Difficulty out of range.
	req = &CreateGameRequest{TransactionID: "tx", GameID: 1, PlayerAddress: "0xA"}
	req.Data.Difficulty = 9
	if _, err := svc.CreateGame(context.Background(), req); err == nil {
		t.Error("expected validation error for difficulty")
	}
}

func TestMakeMoveGeneratesID(t *testing.T) {
	st := &mockQueueStore{}
	svc := newTestService(st, &mockEngine{}, events.NewMemoryBus())

	req := &MakeMoveRequest{PlayerAddress: "0xA"}
	req.Data.GameObjectID = "0xgame"
	req.Data.San = "e4"
	req.Data.Fen = "fen"
	req.Data.MoveHash = "h"

	ack, err := svc.MakeMove(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if ack.ID == "" {
		t.Error("blank transaction_id should get a generated id")
	}
	if st.enqueued[0].Status != models.StatusPending {
		t.Errorf("status = %s", st.enqueued[0].Status)
	}
}

func TestMakeMoveWaitingForParent(t *testing.T) {
	st := &mockQueueStore{}
	bus := events.NewMemoryBus()
	svc := newTestService(st, &mockEngine{}, bus)

	gameID := int64(7)
	req := &MakeMoveRequest{TransactionID: "tx-2", PlayerAddress: "0xA", Status: StatusWaitingIndicator}
	req.Data.San = "e4"
	req.Data.Fen = "fen"
	req.Data.MoveHash = "h"
	req.Data.GameID = &gameID

	ack, err := svc.MakeMove(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if ack.Status != StatusWaitingIndicator {
		t.Errorf("ack status = %s, want %s", ack.Status, StatusWaitingIndicator)
	}

	in := st.enqueued[0]
	if in.Status != models.StatusWaitingForParentID {
		t.Errorf("row status = %s, want waiting", in.Status)
	}
	if in.GameRef == nil || *in.GameRef != 7 {
		t.Errorf("game ref = %v, want 7", in.GameRef)
	}

	// The ack event mirrors the parked status.
	q := bus.ByEvent(events.EventQueued)
	if len(q) != 1 || q[0].Payload.(events.Queued).Status != StatusWaitingIndicator {
		t.Errorf("queued events = %+v", q)
	}
}

func TestMakeMoveWaitingRequiresGameID(t *testing.T) {
	svc := newTestService(&mockQueueStore{}, &mockEngine{}, events.NewMemoryBus())

	req := &MakeMoveRequest{TransactionID: "tx", PlayerAddress: "0xA", Status: StatusWaitingIndicator}
	req.Data.San = "e4"
	req.Data.Fen = "fen"
	req.Data.MoveHash = "h"

	if _, err := svc.MakeMove(context.Background(), req); err == nil {
		t.Error("expected error: waiting move without game_id")
	}
}

func TestMakeMoveRequiresObjectIDWhenNotWaiting(t *testing.T) {
	svc := newTestService(&mockQueueStore{}, &mockEngine{}, events.NewMemoryBus())

	req := &MakeMoveRequest{TransactionID: "tx", PlayerAddress: "0xA"}
	req.Data.San = "e4"
	req.Data.Fen = "fen"
	req.Data.MoveHash = "h"

	if _, err := svc.MakeMove(context.Background(), req); err == nil {
		t.Error("expected error: pending move without game_object_id")
	}
}

func TestEndGameDraw(t *testing.T) {
	st := &mockQueueStore{}
	svc := newTestService(st, &mockEngine{}, events.NewMemoryBus())

	req := &EndGameRequest{TransactionID: "tx-3", PlayerAddress: "0xA"}
	req.Data.GameObjectID = "0xgame"
	req.Data.Result = "1/2-1/2"
	req.Data.FinalFen = "fen"

	if _, err := svc.EndGame(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	var p models.EndGamePayload
	if err := json.Unmarshal(st.enqueued[0].Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.Winner != nil {
		t.Errorf("winner = %v, want nil on draw", *p.Winner)
	}
	if p.Result != "1/2-1/2" {
		t.Errorf("result = %s", p.Result)
	}
}

func TestEndGameRejectsBogusResult(t *testing.T) {
	svc := newTestService(&mockQueueStore{}, &mockEngine{}, events.NewMemoryBus())

	req := &EndGameRequest{TransactionID: "tx", PlayerAddress: "0xA"}
	req.Data.GameObjectID = "0xgame"
	req.Data.Result = "2-0"
	req.Data.FinalFen = "fen"

	if _, err := svc.EndGame(context.Background(), req); err == nil {
		t.Error("expected validation error for result")
	}
}

func mintReq() *MintBadgeRequest {
	req := &MintBadgeRequest{TransactionID: "tx-4", PlayerAddress: "0xA", PlayerID: 7}
	req.Data.RecipientAddress = "0xA"
	req.Data.BadgeType = "wins_1"
	req.Data.Name = "First Victory"
	req.Data.SourceURL = "https://chesschain.io/badges/wins_1.png"
	return req
}

func TestMintBadgeQueued(t *testing.T) {
	st := &mockQueueStore{}
	bus := events.NewMemoryBus()
	svc := newTestService(st, &mockEngine{}, bus)

	ack, err := svc.MintBadge(context.Background(), mintReq())
	if err != nil {
		t.Fatal(err)
	}
	if ack.Status != "queued" {
		t.Errorf("ack = %+v", ack)
	}
	in := st.enqueued[0]
	if in.Kind != models.KindMintBadge || in.PlayerRef == nil || *in.PlayerRef != 7 {
		t.Errorf("intent = %+v", in)
	}
}

func TestMintBadgeDuplicateSilentlyDropped(t *testing.T) {
	st := &mockQueueStore{inQueue: true}
	bus := events.NewMemoryBus()
	svc := newTestService(st, &mockEngine{}, bus)

	ack, err := svc.MintBadge(context.Background(), mintReq())
	if err != nil {
		t.Fatal(err)
	}
	if ack.Status != "duplicate" {
		t.Errorf("ack = %+v, want duplicate", ack)
	}
	if len(st.enqueued) != 0 {
		t.Error("duplicate mint must not enqueue a row")
	}
	if len(bus.Events()) != 0 {
		t.Errorf("duplicate mint must stay silent, got %+v", bus.Events())
	}
}

func TestRequestRewardQueuesResolvedBadge(t *testing.T) {
	st := &mockQueueStore{playerID: 7, hasPlayer: true}
	bus := events.NewMemoryBus()
	entry := &rewards.CatalogEntry{
		Check:     rewards.CheckWins,
		BadgeType: "wins_10",
		Name:      "Ten Victories",
		SourceURL: "https://chesschain.io/badges/wins_10.png",
	}
	svc := newTestService(st, &mockEngine{entry: entry}, bus)

	ack, err := svc.RequestReward(context.Background(), &NFTMintRequest{
		PlayerID:         7,
		PlayerSuiAddress: "0xA",
		RewardType:       "wins",
	})
	if err != nil {
		t.Fatal(err)
	}
	if ack.Status != "queued" || ack.ID == "" {
		t.Errorf("ack = %+v", ack)
	}

	var p models.MintBadgePayload
	if err := json.Unmarshal(st.enqueued[0].Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.BadgeType != "wins_10" || p.RecipientAddress != "0xA" {
		t.Errorf("payload = %+v", p)
	}

	// The event carries the resolved tier, not the requested kind.
	evts := bus.ByEvent(events.EventMintTaskQueued)
	if len(evts) != 1 {
		t.Fatalf("mint-task-queued events = %d, want 1", len(evts))
	}
	got := evts[0].Payload.(events.MintTaskQueued)
	if got.RewardType != "wins_10" || got.PlayerID != 7 || got.TaskID != ack.ID {
		t.Errorf("event = %+v", got)
	}
}

func TestRequestRewardNotEligible(t *testing.T) {
	st := &mockQueueStore{playerID: 7, hasPlayer: true}
	bus := events.NewMemoryBus()
	svc := newTestService(st, &mockEngine{entry: nil}, bus)

	ack, err := svc.RequestReward(context.Background(), &NFTMintRequest{
		PlayerID:         7,
		PlayerSuiAddress: "0xA",
		RewardType:       "first_game",
	})
	if err != nil {
		t.Fatal(err)
	}
	if ack.Status != "not_eligible" {
		t.Errorf("ack = %+v, want not_eligible", ack)
	}
	if len(st.enqueued) != 0 || len(bus.Events()) != 0 {
		t.Error("ineligible request must not enqueue or emit")
	}
}

func TestRequestRewardUnknownPlayer(t *testing.T) {
	svc := newTestService(&mockQueueStore{hasPlayer: false}, &mockEngine{}, events.NewMemoryBus())

	_, err := svc.RequestReward(context.Background(), &NFTMintRequest{
		PlayerID:         7,
		PlayerSuiAddress: "0xdead",
		RewardType:       "wins",
	})
	if err == nil {
		t.Fatal("expected error for unknown player")
	}
	// A caller mistake, not a server fault.
	var invalid *InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Errorf("error %v is not an InvalidRequestError", err)
	}
}

func TestRequestRewardRejectsUnknownKind(t *testing.T) {
	svc := newTestService(&mockQueueStore{playerID: 7, hasPlayer: true}, &mockEngine{}, events.NewMemoryBus())

	if _, err := svc.RequestReward(context.Background(), &NFTMintRequest{
		PlayerID:         7,
		PlayerSuiAddress: "0xA",
		RewardType:       "streak",
	}); err == nil {
		t.Error("expected validation error for reward_type")
	}
}

func TestRequestRewardDuplicate(t *testing.T) {
	st := &mockQueueStore{playerID: 7, hasPlayer: true, inQueue: true}
	bus := events.NewMemoryBus()
	entry := &rewards.CatalogEntry{Check: rewards.CheckWins, BadgeType: "wins_1", Name: "First Victory"}
	svc := newTestService(st, &mockEngine{entry: entry}, bus)

	ack, err := svc.RequestReward(context.Background(), &NFTMintRequest{
		PlayerID:         7,
		PlayerSuiAddress: "0xA",
		RewardType:       "wins",
	})
	if err != nil {
		t.Fatal(err)
	}
	if ack.Status != "duplicate" {
		t.Errorf("ack = %+v, want duplicate", ack)
	}
	if len(st.enqueued) != 0 || len(bus.Events()) != 0 {
		t.Error("duplicate reward must not enqueue or emit")
	}
}
