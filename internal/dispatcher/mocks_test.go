package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chesschain/queue-api/internal/chain"
	"github.com/chesschain/queue-api/internal/models"
)

// memStore is an in-memory Store that preserves queue semantics: FIFO per
// actor, claim transitions, retention rules. It also asserts the
// one-processing-row-per-actor invariant on every claim.
type memStore struct {
	mu        sync.Mutex
	seq       int
	intents   map[string]*models.Intent
	order     []string
	completed []string
	deleted   []string
	games     map[int64]string
	rewards   map[string]string // "player/badge" -> object id
	history   []string          // "op:id" trail

	processingViolations int
}

func newMemStore() *memStore {
	return &memStore{
		intents: make(map[string]*models.Intent),
		games:   make(map[int64]string),
		rewards: make(map[string]string),
	}
}

func (m *memStore) add(in *models.Intent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	cp := *in
	if cp.Status == "" {
		cp.Status = models.StatusPending
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Microsecond)
	}
	m.intents[cp.ID] = &cp
	m.order = append(m.order, cp.ID)
}

func (m *memStore) get(id string) *models.Intent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.intents[id]; ok {
		cp := *in
		return &cp
	}
	return nil
}

func (m *memStore) record(op, id string) {
	m.history = append(m.history, op+":"+id)
}

func (m *memStore) ClaimNext(ctx context.Context, actor string) (*models.Intent, error) {
	// Mirrors pgx: queries on a cancelled context fail.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		in, ok := m.intents[id]
		if ok && in.Actor == actor && in.Status == models.StatusProcessing {
			m.processingViolations++
		}
	}

	for _, id := range m.order {
		in, ok := m.intents[id]
		if !ok || in.Actor != actor || in.Status != models.StatusPending {
			continue
		}
		in.Status = models.StatusProcessing
		m.record("claim", id)
		cp := *in
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListActiveActors(_ context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var actors []string
	for _, id := range m.order {
		in, ok := m.intents[id]
		if !ok || in.Status != models.StatusPending || in.Actor == "" || seen[in.Actor] {
			continue
		}
		seen[in.Actor] = true
		actors = append(actors, in.Actor)
		if len(actors) >= limit {
			break
		}
	}
	return actors, nil
}

func (m *memStore) MarkCompleted(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.intents[id]; ok {
		in.Status = models.StatusCompleted
	}
	m.completed = append(m.completed, id)
	m.record("completed", id)
	return nil
}

func (m *memStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.intents[id]; ok {
		in.Status = models.StatusFailed
		in.Error = &errMsg
	}
	m.record("failed", id)
	return nil
}

func (m *memStore) RequeuePending(ctx context.Context, id, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.intents[id]; ok {
		in.Status = models.StatusPending
		in.Error = &errMsg
	}
	m.record("requeue", id)
	return nil
}

func (m *memStore) IncrementRetries(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.intents[id]; ok {
		in.Retries++
	}
	return nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.intents, id)
	m.deleted = append(m.deleted, id)
	m.record("delete", id)
	return nil
}

func (m *memStore) SetGameObjectID(ctx context.Context, gameID int64, objectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[gameID] = objectID
	return nil
}

func (m *memStore) UpsertReward(ctx context.Context, playerID int64, badgeType, objectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards[fmt.Sprintf("%d/%s", playerID, badgeType)] = objectID
	return nil
}

func (m *memStore) ListWaitingForGame(_ context.Context, gameID int64) ([]*models.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Intent
	for _, id := range m.order {
		in, ok := m.intents[id]
		if !ok || in.Status != models.StatusWaitingForParentID {
			continue
		}
		if in.GameRef != nil && *in.GameRef == gameID {
			cp := *in
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) UnblockWaiting(ctx context.Context, id, objectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[id]
	if !ok || in.Status != models.StatusWaitingForParentID {
		return nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(in.Payload, &payload); err != nil {
		return err
	}
	payload["game_object_id"] = objectID
	raw, _ := json.Marshal(payload)
	in.Payload = raw
	in.Status = models.StatusPending
	m.record("unblock", id)
	return nil
}

// GCOld mirrors the SQL predicates: terminal status and older than 24h.
func (m *memStore) GCOld(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-24 * time.Hour)
	var n int64
	for id, in := range m.intents {
		if in.Status != models.StatusCompleted && in.Status != models.StatusFailed {
			continue
		}
		if !in.CreatedAt.Before(cutoff) {
			continue
		}
		delete(m.intents, id)
		m.record("gc", id)
		n++
	}
	return n, nil
}

func (m *memStore) QueueDepth(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, in := range m.intents {
		if in.Status == models.StatusPending {
			n++
		}
	}
	return n, nil
}

// mockGateway substitutes the chain with canned behavior.
type mockGateway struct {
	BuildFunc  func(in *models.Intent) (*chain.MoveCall, error)
	SubmitFunc func(ctx context.Context, call *chain.MoveCall) (string, error)
	WaitFunc   func(ctx context.Context, digest, pattern string) (string, error)
}

func (g *mockGateway) Build(in *models.Intent) (*chain.MoveCall, error) {
	if g.BuildFunc != nil {
		return g.BuildFunc(in)
	}
	return &chain.MoveCall{Module: "game", Function: "noop"}, nil
}

func (g *mockGateway) Submit(ctx context.Context, call *chain.MoveCall) (string, error) {
	if g.SubmitFunc != nil {
		return g.SubmitFunc(ctx, call)
	}
	return "digest", nil
}

func (g *mockGateway) WaitAndExtract(ctx context.Context, digest, pattern string) (string, error) {
	if g.WaitFunc != nil {
		return g.WaitFunc(ctx, digest, pattern)
	}
	return "", nil
}
