package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suPer8Hu/ai-chat-backend/internal/config"
	"github.com/suPer8Hu/ai-chat-backend/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:          "server",
	Short:        "AI chat backend",
	SilenceUsage: true,
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}
	cfg := config.Load()

	log, err := logger.New(logger.Options{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		Dir:      cfg.LogDir,
		FileName: "server.log",
		ShowLine: cfg.Debug,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	serve := newServeCmd(cfg, log)
	rootCmd.AddCommand(serve, newMigrateCmd(cfg, log))
	// bare "server" runs serve
	rootCmd.RunE = serve.RunE
	rootCmd.Flags().AddFlagSet(serve.Flags())

	if err := rootCmd.Execute(); err != nil {
		log.Error("exit", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}
