package handlers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chesschain/queue-api/internal/intake"
	"github.com/chesschain/queue-api/internal/models"
)

// MaxBodySize limits the size of request bodies to 1MB
const MaxBodySize = 1048576

// Intake is the intent-acceptance surface the transaction endpoints use.
type Intake interface {
	CreateGame(ctx context.Context, req *intake.CreateGameRequest) (*intake.Ack, error)
	MakeMove(ctx context.Context, req *intake.MakeMoveRequest) (*intake.Ack, error)
	EndGame(ctx context.Context, req *intake.EndGameRequest) (*intake.Ack, error)
	MintBadge(ctx context.Context, req *intake.MintBadgeRequest) (*intake.Ack, error)
	RequestReward(ctx context.Context, req *intake.NFTMintRequest) (*intake.Ack, error)
}

// QueueReader exposes the support views over the queue.
type QueueReader interface {
	FailedMintBadges(ctx context.Context, limit int) ([]*models.Intent, error)
}

type Config struct {
	Intake   Intake
	Queue    QueueReader
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Logger   *zap.Logger
}

type Handler struct {
	intake Intake
	queue  QueueReader
	pg     *pgxpool.Pool
	redis  *redis.Client
	logger *zap.SugaredLogger
}

func New(cfg Config) *Handler {
	return &Handler{
		intake: cfg.Intake,
		queue:  cfg.Queue,
		pg:     cfg.Postgres,
		redis:  cfg.Redis,
		logger: cfg.Logger.Sugar(),
	}
}
