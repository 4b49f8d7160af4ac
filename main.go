package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"travel-expense/config"
	"travel-expense/logging"
)

func main() {
	cli := kingpin.New("travel-expense", "Travel Expense Manager API")
	envFile := cli.Flag("env-file", "Path to a dotenv file").Default(".env").String()
	configFile := cli.Flag("config", "Path to an optional YAML configuration file").String()
	addr := cli.Flag("addr", "Listen address, overrides host and port").String()

	kingpin.MustParse(cli.Parse(os.Args[1:]))

	if _, err := config.Init(config.Options{EnvFile: *envFile, ConfigFile: *configFile}); err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	settings := config.Get()

	logger, err := logging.New(settings.Debug)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	if settings.UsesDefaultSecret() {
		logger.Warn("secret_key is the built-in default, set SECRET_KEY before deploying")
	}

	srv, err := newServer(context.Background(), settings, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer srv.Close()

	listenAddr := settings.Addr()
	if *addr != "" {
		listenAddr = *addr
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", listenAddr), zap.String("version", settings.AppVersion))
		listenErr <- srv.app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-listenErr:
		logger.Error("server stopped", zap.Error(err))
		return
	case <-quit:
	}
	logger.Info("shutting down server")

	if err := srv.app.ShutdownWithTimeout(settings.ShutdownTimeout()); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
