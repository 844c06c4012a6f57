package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clickread/internal/api"
	"github.com/jackzampolin/clickread/internal/config"
	"github.com/jackzampolin/clickread/internal/home"
	"github.com/jackzampolin/clickread/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "clickread",
	Short: "Annotate scanned picture-book pages with clickable regions",
	Long: `clickread manages the region annotations of scanned picture books.

Each book is a JSON record of rectangular regions drawn over its page
images. A region carries text, a category (Word, Sentence or Full Text),
a translation and optional audio references, which a reading app uses to
make the page clickable.

Books can be edited offline (clickread book, clickread region) or through
the HTTP service (clickread serve, clickread api).`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: <home>/config.yaml, ./config.yaml or ~/.clickread/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "clickread home directory (default: ~/.clickread)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or text",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, err := api.ParseOutputFormat(outputFormat); err != nil {
			return err
		}
		api.SetOutputFormat(outputFormat)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger returns the text logger configured by --log-level. Offline
// commands log to stderr so their output stays parseable.
func newLogger(w *os.File) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// loadConfig opens the config manager. Without --config the home's
// config.yaml is used when it exists.
func loadConfig(h *home.Dir, logger *slog.Logger) (*config.Manager, error) {
	file := cfgFile
	if file == "" && h.ConfigExists() {
		file = h.ConfigPath()
	}
	mgr, err := config.NewManager(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	mgr.SetLogger(logger)
	return mgr, nil
}
