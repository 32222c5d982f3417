package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/quillway/quillway/internal/config"
	"github.com/quillway/quillway/internal/version"
)

func setupLogger() *slog.Logger {
	// Use sensible defaults: info level, text format
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

func printStartupBanner(cfg *config.Config) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "Quillway %s - Completion Orchestration Service\n", version.Version)
	fmt.Fprintln(os.Stderr, "════════════════════════════════════════════════")
	fmt.Fprintf(os.Stderr, "Stream API: http://localhost%s/v1/completion/stream\n", cfg.ServerPort)
	fmt.Fprintf(os.Stderr, "Batch API:  http://localhost%s/v1/batch\n", cfg.ServerPort)
	fmt.Fprintf(os.Stderr, "Humanizer:  http://localhost%s/v1/humanize\n", cfg.ServerPort)
	fmt.Fprintf(os.Stderr, "Data:       %s\n", config.DataDir())
	for name := range cfg.Providers {
		fmt.Fprintf(os.Stderr, "Provider:   %s\n", name)
	}
	fmt.Fprintln(os.Stderr, "════════════════════════════════════════════════")
	fmt.Fprintf(os.Stderr, "\n")
}
