// Package dispatcher drains the durable intent queue: one worker per actor,
// strictly serialized within an actor, parallel across actors.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chesschain/queue-api/internal/chain"
	"github.com/chesschain/queue-api/internal/events"
	"github.com/chesschain/queue-api/internal/models"
)

// Store is the queue and reconciliation surface the dispatcher drives.
type Store interface {
	ClaimNext(ctx context.Context, actor string) (*models.Intent, error)
	ListActiveActors(ctx context.Context, limit int) ([]string, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	RequeuePending(ctx context.Context, id, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	SetGameObjectID(ctx context.Context, gameID int64, objectID string) error
	UpsertReward(ctx context.Context, playerID int64, badgeType, objectID string) error
	ListWaitingForGame(ctx context.Context, gameID int64) ([]*models.Intent, error)
	UnblockWaiting(ctx context.Context, id, objectID string) error
	GCOld(ctx context.Context) (int64, error)
	QueueDepth(ctx context.Context) (int64, error)
}

// Gateway is the chain surface the processor drives.
type Gateway interface {
	Build(in *models.Intent) (*chain.MoveCall, error)
	Submit(ctx context.Context, call *chain.MoveCall) (string, error)
	WaitAndExtract(ctx context.Context, digest, typePattern string) (string, error)
}

// Config configures the dispatcher loop.
type Config struct {
	Interval   time.Duration // scan period
	RetryDelay time.Duration // backoff base
	MaxRetries int
	ActorLimit int
	GCInterval time.Duration
}

type Dispatcher struct {
	store   Store
	gateway Gateway
	bus     events.Bus
	cfg     Config
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	inflight map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(store Store, gateway Gateway, bus events.Bus, cfg Config, logger *zap.SugaredLogger) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ActorLimit <= 0 {
		cfg.ActorLimit = 100
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = time.Hour
	}
	return &Dispatcher{
		store:    store,
		gateway:  gateway,
		bus:      bus,
		cfg:      cfg,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Start launches the scan, GC and depth-reporter loops.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.scanLoop()
	d.wg.Add(1)
	go d.gcLoop()
	go d.reportQueueDepth()

	d.logger.Infow("Dispatcher started",
		"interval", d.cfg.Interval,
		"maxRetries", d.cfg.MaxRetries,
		"retryDelay", d.cfg.RetryDelay,
	)
}

// Stop cancels scheduling and waits for in-flight workers to finish their
// current intent attempt.
func (d *Dispatcher) Stop() {
	d.logger.Info("Stopping dispatcher...")
	d.cancel()
	d.wg.Wait()
	d.logger.Info("Dispatcher stopped")
}

func (d *Dispatcher) scanLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.scan()
		case <-d.ctx.Done():
			return
		}
	}
}

// scan fans out at most one worker per actor with pending work. Unhandled
// scan errors are logged and the next tick continues.
func (d *Dispatcher) scan() {
	actors, err := d.store.ListActiveActors(d.ctx, d.cfg.ActorLimit)
	if err != nil {
		if d.ctx.Err() == nil {
			d.logger.Errorw("Failed to list active actors", "error", err)
		}
		return
	}

	for _, actor := range actors {
		if !d.acquire(actor) {
			continue
		}
		d.wg.Add(1)
		activeWorkers.Inc()
		go func(actor string) {
			defer d.wg.Done()
			defer activeWorkers.Dec()
			defer d.release(actor)
			defer func() {
				if r := recover(); r != nil {
					d.logger.Errorw("Worker panic", "actor", actor, "error", r)
				}
			}()
			d.drainActor(actor)
		}(actor)
	}
}

// acquire test-and-inserts the actor into the in-flight set. This is the
// process-local single-flight layer; the database claim is the
// authoritative one.
func (d *Dispatcher) acquire(actor string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[actor]; busy {
		return false
	}
	d.inflight[actor] = struct{}{}
	return true
}

func (d *Dispatcher) release(actor string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, actor)
}

// drainActor claims and processes the actor's queue until it is empty or
// shutdown is requested. Shutdown only stops new claims: the claimed
// attempt runs on a context that survives cancellation, because a
// submitted transaction is already paid for and its store writes must
// land even while the process is stopping.
func (d *Dispatcher) drainActor(actor string) {
	actx := context.WithoutCancel(d.ctx)

	for {
		if d.ctx.Err() != nil {
			return
		}

		in, err := d.store.ClaimNext(d.ctx, actor)
		if err != nil {
			if d.ctx.Err() == nil {
				d.logger.Errorw("Claim failed", "actor", actor, "error", err)
			}
			return
		}
		if in == nil {
			return
		}

		d.publish(actx, in.Actor, events.EventProcessing, events.Processing{
			ID:        in.ID,
			Status:    "processing",
			Timestamp: time.Now().UTC(),
		})

		if err := d.process(actx, in); err != nil {
			d.handleFailure(actx, in, err)
			continue
		}

		if err := d.store.MarkCompleted(actx, in.ID); err != nil {
			d.logger.Errorw("Failed to mark intent completed", "id", in.ID, "error", err)
		}
		// Completed rows are not retained.
		if err := d.store.Delete(actx, in.ID); err != nil {
			d.logger.Errorw("Failed to delete completed intent", "id", in.ID, "error", err)
		}
		intentsProcessed.Inc()
	}
}

// handleFailure applies the retry policy: bounded retries with linear,
// kind-sensitive backoff, suppression of non-retriable classes, and
// retention of failed MintBadge rows as a paper trail.
func (d *Dispatcher) handleFailure(ctx context.Context, in *models.Intent, procErr error) {
	if err := d.store.IncrementRetries(ctx, in.ID); err != nil {
		d.logger.Errorw("Failed to increment retries", "id", in.ID, "error", err)
	}
	attempt := in.Retries + 1

	d.logger.Warnw("Intent attempt failed",
		"id", in.ID,
		"kind", in.Kind,
		"actor", in.Actor,
		"attempt", attempt,
		"class", Classify(procErr),
		"error", procErr,
	)

	if attempt >= d.cfg.MaxRetries {
		if err := d.store.MarkFailed(ctx, in.ID, procErr.Error()); err != nil {
			d.logger.Errorw("Failed to mark intent failed", "id", in.ID, "error", err)
		}
		intentsFailed.Inc()

		if !Suppressed(in.Kind, procErr) {
			d.publish(ctx, in.Actor, events.EventResult, events.Result{
				ID:        in.ID,
				Status:    "error",
				Error:     procErr.Error(),
				Timestamp: time.Now().UTC(),
			})
			d.publish(ctx, in.Actor, events.EventError, events.Error{
				Error:         procErr.Error(),
				TransactionID: in.ID,
			})
		}
		// Failed MintBadge rows stay visible for support.
		if in.Kind != models.KindMintBadge {
			if err := d.store.Delete(ctx, in.ID); err != nil {
				d.logger.Errorw("Failed to delete failed intent", "id", in.ID, "error", err)
			}
		}
		return
	}

	if err := d.store.RequeuePending(ctx, in.ID, procErr.Error()); err != nil {
		d.logger.Errorw("Failed to requeue intent", "id", in.ID, "error", err)
	}
	intentsRetried.Inc()

	d.sleep(RetryBackoff(in.Kind, procErr, attempt, d.cfg.RetryDelay))
}

// sleep waits for the backoff period unless shutdown interrupts it.
func (d *Dispatcher) sleep(delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-d.ctx.Done():
	}
}

func (d *Dispatcher) publish(ctx context.Context, actor, event string, payload interface{}) {
	if actor == "" {
		return
	}
	if err := d.bus.Publish(ctx, events.Room(actor), event, payload); err != nil {
		d.logger.Warnw("Failed to publish event", "actor", actor, "event", event, "error", err)
	}
}

func (d *Dispatcher) gcLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := d.store.GCOld(d.ctx)
			if err != nil {
				d.logger.Errorw("Queue GC failed", "error", err)
				continue
			}
			if n > 0 {
				d.logger.Infow("Queue GC removed old rows", "count", n)
			}
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) reportQueueDepth() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := d.store.QueueDepth(d.ctx); err == nil {
				queueDepth.Set(float64(n))
			}
		case <-d.ctx.Done():
			return
		}
	}
}
