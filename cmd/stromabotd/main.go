// Command stromabotd runs a single trust-mesh replica: one cooperative
// event loop bound to one group_id, consuming the state-overlay, chat, and
// storage-out interfaces described in spec.md §6.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stroma/codec"
	"stroma/config"
	"stroma/identity"
	"stroma/internal/adminhttp"
	"stroma/keyring"
	"stroma/observability/logging"
	"stroma/observability/metrics"
	"stroma/observability/tracing"
	"stroma/persistence/registrystore"
	"stroma/runtime"
	"stroma/trust"
)

// loadOrCreateIdentityKey loads this bot's persisted secp256k1 identity key
// from its keystore file, generating and saving a fresh one on first run.
func loadOrCreateIdentityKey(path, passphrase string) (*identity.IdentityKey, error) {
	key, err := identity.LoadIdentityKeystore(path, passphrase)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load identity keystore: %w", err)
	}
	key, err = identity.GenerateIdentityKey()
	if err != nil {
		return nil, fmt.Errorf("generate identity key: %w", err)
	}
	if err := identity.SaveIdentityKeystore(path, key, passphrase); err != nil {
		return nil, fmt.Errorf("save identity keystore: %w", err)
	}
	return key, nil
}

func main() {
	configFile := flag.String("config", "./stroma.toml", "Path to the operator configuration file")
	adminSecret := flag.String("admin-secret", os.Getenv("STROMA_ADMIN_SECRET"), "HS256 secret for the admin HTTP surface (empty disables auth)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.Setup("stromabotd", cfg.LogFile, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{ServiceName: "stromabotd"})
	if err != nil {
		logger.Error("telemetry init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	mnemonic, err := config.ReadMnemonic(cfg.MnemonicFile)
	if err != nil {
		logger.Error("failed to read mnemonic", slog.String("error", err.Error()))
		os.Exit(1)
	}
	kr, err := keyring.FromMnemonic(mnemonic)
	if err != nil {
		logger.Error("failed to derive keyring", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	identityKey, err := loadOrCreateIdentityKey(cfg.IdentityKeystorePath, cfg.IdentityKeyPassphrase)
	if err != nil {
		logger.Error("failed to load identity key", slog.String("error", err.Error()))
		os.Exit(1)
	}

	overlay := newLoopbackOverlay()
	chat := newLoopbackChat()

	storage, err := newDiskStorage(cfg.StorePath)
	if err != nil {
		logger.Error("failed to open local chunk store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	registryDB, err := registrystore.OpenSQLite(cfg.RegistryDBPath)
	if err != nil {
		logger.Error("failed to open registry store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer registryDB.Close()
	registry := newSQLRegistry(registryDB)

	groupKey, err := codec.Encode("runtime.group", cfg.GroupID)
	if err != nil {
		logger.Error("failed to derive contract id", slog.String("error", err.Error()))
		os.Exit(1)
	}
	contractID := codec.ContentHash(groupKey)

	replica := runtime.NewReplica(contractID, trust.DefaultGroupConfig(), kr, identityKey, overlay, chat, storage, registry, cfg.GroupID)
	replica.HealthInterval = time.Duration(cfg.HealthCheckSecs) * time.Second

	pool := runtime.NewWorkerPool(ctx, 4, 16)
	defer pool.Close()

	auth := adminhttp.NewAuthenticator(adminhttp.AuthConfig{
		Enabled:    *adminSecret != "",
		HMACSecret: *adminSecret,
		Issuer:     "stromabotd",
	}, logger)
	adminServer := &http.Server{
		Addr: cfg.AdminListenAddr,
		Handler: adminhttp.New(auth, func() (bool, string) {
			return replica.Contract != nil, "ok"
		}),
	}
	go func() {
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin http server failed", slog.String("error", err.Error()))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = adminServer.Shutdown(shutdownCtx)
	}()

	metrics.Registry().SetDVR(0)

	logger.Info("stromabotd starting", slog.String("group_id", cfg.GroupID), slog.String("admin_addr", cfg.AdminListenAddr))
	if err := replica.Run(ctx, pool); err != nil {
		logger.Error("replica loop exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("stromabotd shut down cleanly")
}
