// Command fix_minter points the badge registry's authorized minter at a new
// address. Used out of band when badge mints abort with an authorization
// error because the registry still references an old sponsor account.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/chesschain/queue-api/internal/chain"
	"github.com/chesschain/queue-api/internal/config"
)

func main() {
	minter := flag.String("minter", "", "new authorized minter address (defaults to the sponsor address)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	sponsor, err := chain.LoadSponsor(cfg.SponsorSecret)
	if err != nil {
		sugar.Fatalw("Failed to load sponsor key", "error", err)
	}

	target := *minter
	if target == "" {
		target = sponsor.Address
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	rpcClient, err := chain.Dial(ctx, cfg.SuiRPCURL)
	if err != nil {
		sugar.Fatalw("Failed to dial fullnode", "url", cfg.SuiRPCURL, "error", err)
	}
	defer rpcClient.Close()

	gateway := chain.NewGateway(rpcClient, sponsor, chain.Config{
		PackageID:  cfg.PackageID,
		RegistryID: cfg.RegistryID,
		GasBudget:  cfg.GasBudget,
	}, sugar)

	call := gateway.BuildSetAuthorizedMinter(cfg.RegistryID, target)
	digest, err := gateway.Submit(ctx, call)
	if err != nil {
		sugar.Fatalw("Failed to set authorized minter", "error", err)
	}
	fmt.Printf("authorized minter set to %s (digest %s)\n", target, digest)
}
