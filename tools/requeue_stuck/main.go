// Command requeue_stuck resets queue rows stranded in processing after a
// dispatcher crash back to pending. Run it manually, or from cron with a
// threshold comfortably above the longest expected intent attempt.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/chesschain/queue-api/internal/store"
)

func main() {
	olderThan := flag.Duration("older", 10*time.Minute, "reset processing rows untouched for at least this long")
	flag.Parse()

	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "POSTGRES_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := pgxpool.New(ctx, url)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer pg.Close()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	st := store.New(pg, logger.Sugar())
	n, err := st.RequeueStuck(ctx, *olderThan)
	if err != nil {
		fmt.Fprintln(os.Stderr, "requeue:", err)
		os.Exit(1)
	}
	fmt.Printf("requeued %d stuck rows (older than %s)\n", n, *olderThan)
}
