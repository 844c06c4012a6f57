package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clickread/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clickread server",
	Long: `Start the clickread HTTP server.

The server opens the books in the home directory on demand and writes
every change back to the book's JSON file before responding. The config
file is watched; translator settings take effect without a restart.

The server provides:
  - /health                                   - Basic server health check
  - /status                                   - Home, book count and translator
  - /api/books/...                            - Books, pages and regions
  - /api/translate                            - Translation suggestions

Examples:
  clickread serve                    # Start on the configured port (default 8080)
  clickread serve --port 3000        # Start on custom port
  clickread serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := newLogger(os.Stdout)

		// Get home directory
		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := loadConfig(h, logger)
		if err != nil {
			return err
		}
		mgr.WatchConfig()

		// Flags win over the config file
		cfg := mgr.Get()
		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") || host == "" {
			host = serveHost
		}
		if cmd.Flags().Changed("port") || port == "" {
			port = servePort
		}

		// Create server
		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
