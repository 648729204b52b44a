package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"peerlend/config"
	"peerlend/core/events"
	"peerlend/core/state"
	"peerlend/crypto"
	nativecommon "peerlend/native/common"
	"peerlend/native/loan"
	"peerlend/native/pool"
	"peerlend/native/registry"
	"peerlend/observability/logging"
	"peerlend/rpc"
	"peerlend/storage"
)

const (
	envEnv        = "PEERLEND_ENV"
	adminAddrsEnv = "PEERLEND_ADMIN_ADDRESSES"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memStore := flag.Bool("mem", false, "DEV ONLY: use an in-memory store instead of LevelDB")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envEnv))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Env
	}

	var logSink io.Writer = os.Stdout
	if strings.TrimSpace(cfg.LogFile) != "" {
		logSink = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	logger := logging.SetupWithWriter("lendingd", env, logSink)

	var db storage.Database
	if *memStore {
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			panic(fmt.Sprintf("Failed to open database: %v", err))
		}
		defer ldb.Close()
		db = ldb
	}

	manager := state.NewManager(db)
	emitter := events.NewLogEmitter(logger)

	loans := loan.NewEngine(cfg.Loan)
	loans.SetState(manager)
	loans.SetPauses(manager)
	loans.SetEmitter(emitter)
	loans.SetVault(nativecommon.ModuleAddress("loan-vault"))
	loans.SetFeeTreasury(nativecommon.ModuleAddress("fee-treasury"))

	reg := registry.NewRegistry()
	reg.SetState(manager)
	reg.SetPauses(manager)
	reg.SetEmitter(emitter)

	poolEngine := pool.NewEngine()
	poolEngine.SetState(manager)
	poolEngine.SetPauses(manager)
	poolEngine.SetEmitter(emitter)
	poolEngine.SetModuleAddress(nativecommon.ModuleAddress("pool"))
	poolEngine.SetLoanDirectory(reg)
	poolEngine.SetLoanFunder(loans)
	loans.SetReturnsHandler(poolEngine.ModuleAddress(), poolEngine)

	if err := seedPool(manager, poolEngine, cfg.Pool); err != nil {
		logger.Error("Failed to seed pool state", slog.Any("error", err))
		os.Exit(1)
	}
	if err := seedAdmins(manager, logger); err != nil {
		logger.Error("Failed to seed admin roles", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(loans, poolEngine, reg, logger)
	logger.Info("lendingd ready",
		slog.String("listen", cfg.ListenAddress),
		slog.String("data_dir", cfg.DataDir),
	)
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// seedPool persists the configured settings on first boot and grants the pool
// module account the verified capability so it can contribute to loans.
func seedPool(manager *state.Manager, engine *pool.Engine, settings pool.Settings) error {
	existing, err := manager.PoolGet()
	if err != nil {
		return err
	}
	if existing == nil {
		if err := manager.PoolPut(pool.NewState(settings)); err != nil {
			return err
		}
	}
	addr := engine.ModuleAddress()
	return manager.SetRole(nativecommon.RoleVerified, addr[:])
}

// seedAdmins grants the loan-admin role to every bech32 address listed in the
// environment. The list only grows: revocation is an operator action through
// state tooling, not an env change.
func seedAdmins(manager *state.Manager, logger *slog.Logger) error {
	raw := strings.TrimSpace(os.Getenv(adminAddrsEnv))
	if raw == "" {
		return nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		addr, err := crypto.DecodeAddress(entry)
		if err != nil {
			return fmt.Errorf("invalid admin address %q: %w", entry, err)
		}
		if err := manager.SetRole(nativecommon.RoleLoanAdmin, addr.Bytes()); err != nil {
			return err
		}
		logger.Info("granted loan admin role", slog.String("address", entry))
	}
	return nil
}
