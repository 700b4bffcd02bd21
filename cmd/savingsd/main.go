package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"solsavings/config"
	"solsavings/core/pricing"
	"solsavings/core/state"
	"solsavings/crypto"
	nativecommon "solsavings/native/common"
	"solsavings/native/lending"
	"solsavings/observability/logging"
	"solsavings/rpc"
	"solsavings/rpc/modules"
	"solsavings/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Options{
		Service:    "savingsd",
		Env:        cfg.Log.Env,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	usdcVault := crypto.ModuleAddress("usdc-vault")
	collateralVault := crypto.ModuleAddress("collateral-vault")
	if err := manager.EnsureGenesis(usdcVault, cfg.InitialUSDCSupply); err != nil {
		logger.Error("failed to seed debt-asset vault", "error", err)
		os.Exit(1)
	}

	var oracle lending.PriceOracle
	if cfg.Oracle.URL != "" {
		oracle = pricing.NewHTTPFeed(cfg.Oracle.URL, time.Duration(cfg.Oracle.MaxAgeSeconds)*time.Second)
		logger.Info("using http price feed", "url", cfg.Oracle.URL)
	} else {
		oracle = pricing.NewStaticFeed(cfg.Oracle.StaticPrice, cfg.Oracle.StaticScale)
		logger.Info("using static price feed", "price", cfg.Oracle.StaticPrice, "scale", cfg.Oracle.StaticScale)
	}

	engine := lending.NewEngine(usdcVault, collateralVault)
	engine.SetState(manager)
	engine.SetTransferGateway(manager)
	engine.SetOracle(oracle)
	if pauses := cfg.Pauses(); pauses != nil {
		engine.SetPauses(nativecommon.StaticPauses(pauses))
		logger.Warn("some ledger actions are paused", "actions", cfg.PausedActions)
	}

	module := modules.NewLendingModule(manager, engine)
	server := rpc.NewServer(module, rpc.ServerConfig{
		AuthToken: os.Getenv("SAV_RPC_TOKEN"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting savings ledger daemon",
		"listen", cfg.ListenAddress,
		"data_dir", cfg.DataDir,
		"usdc_vault", usdcVault.String(),
		"collateral_vault", collateralVault.String(),
	)
	if err := server.Start(ctx, cfg.ListenAddress); err != nil {
		logger.Error("rpc server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
