package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ptattershall/pjais/internal/profile"
	"github.com/ptattershall/pjais/memory"
	"github.com/ptattershall/pjais/memory/embed"
	"github.com/ptattershall/pjais/server"
	"github.com/ptattershall/pjais/store"
	"github.com/ptattershall/pjais/store/db"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "pjais",
	Short: "Tiered persona memory engine",
	RunE:  run,
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8230)
	viper.SetDefault("data", "")

	rootCmd.PersistentFlags().String("mode", "demo", `mode of the server: "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the server")
	rootCmd.PersistentFlags().Int("port", 8230, "port of the server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver: "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("pjais")
	viper.AutomaticEnv()
}

func run(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version,
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	driver, err := db.NewDBDriver(p)
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	storeInstance := store.New(driver, p)
	if err := storeInstance.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	var embedService embed.Service
	var embedCache *embed.Cache
	if p.IsEmbeddingEnabled() {
		embedService, err = embed.NewService(&embed.Config{
			Provider:   p.EmbeddingProvider,
			Model:      p.EmbeddingModel,
			Dimensions: p.EmbeddingDimensions,
			APIKey:     p.EmbeddingAPIKey,
			BaseURL:    p.EmbeddingBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create embedding service: %w", err)
		}
		embedCache = embed.NewCache(embedService, embed.DefaultCacheConfig())
		slog.Info("embeddings enabled", "provider", p.EmbeddingProvider, "model", p.EmbeddingModel)
	} else {
		slog.Info("embeddings disabled, semantic features unavailable")
	}

	manager := memory.NewManager(storeInstance, embedCache, memory.DefaultConfig())

	srv, err := server.NewServer(ctx, p, storeInstance, manager, embedService)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")
	cancel()
	srv.Shutdown(context.Background())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
