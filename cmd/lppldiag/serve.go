package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/lppldiag/internal/httpapi"
	"github.com/sawpanic/lppldiag/internal/priceseries"
)

func newServeCmd() *cobra.Command {
	var port int
	var csvPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the diagnose() HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions()
			if err != nil {
				return err
			}
			initLogging(opts)

			if csvPath == "" {
				return fmt.Errorf("%s: --source-csv is required (no live price provider is wired in this build)", appName)
			}

			facade, cleanup, err := buildFacade(cmd.Context(), opts, priceseries.CSVSource{Path: csvPath})
			if err != nil {
				return err
			}
			defer cleanup()

			serverCfg := httpapi.DefaultServerConfig()
			if port > 0 {
				serverCfg.Addr = fmt.Sprintf("127.0.0.1:%d", port)
			} else if opts.HTTPAddr != "" {
				serverCfg.Addr = opts.HTTPAddr
			}

			server := httpapi.NewServer(facade, serverCfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return fmt.Errorf("%s: serve: %w", appName, err)
				}
				return nil
			case <-ctx.Done():
				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP bind port (overrides config's http_addr)")
	cmd.Flags().StringVar(&csvPath, "source-csv", "", "path to a date,close CSV file to diagnose")

	return cmd
}
