package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sawpanic/lppldiag/internal/breaker"
	"github.com/sawpanic/lppldiag/internal/cache/postgres"
	"github.com/sawpanic/lppldiag/internal/cache/rediscache"
	"github.com/sawpanic/lppldiag/internal/config"
	"github.com/sawpanic/lppldiag/internal/diagnose"
	"github.com/sawpanic/lppldiag/internal/metrics"
	"github.com/sawpanic/lppldiag/internal/priceseries"
)

func newDiagnoseCmd() *cobra.Command {
	var force bool
	var endStr string
	var csvPath string

	cmd := &cobra.Command{
		Use:   "diagnose SYMBOL",
		Short: "Run the diagnose() operation for a single symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := args[0]

			opts, err := loadOptions()
			if err != nil {
				return err
			}
			initLogging(opts)

			var endDate *time.Time
			if endStr != "" {
				parsed, err := time.Parse("2006-01-02", endStr)
				if err != nil {
					return fmt.Errorf("%s: --end must be YYYY-MM-DD: %w", appName, err)
				}
				endDate = &parsed
			}

			if csvPath == "" {
				return fmt.Errorf("%s: --source-csv is required (no live price provider is wired in this build)", appName)
			}

			facade, cleanup, err := buildFacade(cmd.Context(), opts, priceseries.CSVSource{Path: csvPath})
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := facade.Diagnose(cmd.Context(), symbol, endDate, force)
			if err != nil {
				return fmt.Errorf("%s: diagnose %s: %w", appName, symbol, err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "bypass the result cache and force a recompute")
	cmd.Flags().StringVar(&endStr, "end", "", "analyze as of this date (YYYY-MM-DD), defaults to the series' last date")
	cmd.Flags().StringVar(&csvPath, "source-csv", "", "path to a date,close CSV file to diagnose")

	return cmd
}

// buildFacade wires a diagnose.Facade from the resolved Options, grounded on
// the teacher's pattern of constructing provider/cache/breaker instances
// once per process in main and handing them to the application layer.
func buildFacade(ctx context.Context, opts config.Options, source priceseries.PriceSource) (*diagnose.Facade, func(), error) {
	facade := &diagnose.Facade{
		Source: source,
		Options: diagnose.Options{
			WindowMin:      opts.WindowMin,
			WindowMax:      opts.WindowMax,
			WindowStep:     opts.WindowStep,
			ForecastDays:   opts.ForecastDays,
			TimeoutSeconds: opts.TimeoutSeconds,
			Workers:        opts.Workers,
			RNGSeed:        opts.RNGSeed,
			RMSECeiling:    opts.RMSECeiling,
		},
	}

	cleanup := func() {}

	if opts.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, cleanup, fmt.Errorf("%s: %w", appName, err)
		}
		facade.Store = postgres.New(db, 5*time.Second)
		prevCleanup := cleanup
		cleanup = func() { prevCleanup(); db.Close() }
	}

	if opts.RedisAddr != "" {
		hint := rediscache.New(rediscache.Config{
			Addr:              opts.RedisAddr,
			DB:                opts.RedisDB,
			DefaultTTLSeconds: opts.RedisTTLSeconds,
		})
		facade.Hint = hint
		prevCleanup := cleanup
		cleanup = func() { prevCleanup(); hint.Close() }
	}

	facade.Breaker = breaker.New(breaker.DefaultConfig("price-source"))
	facade.Metrics = metrics.NewCollector(prometheus.DefaultRegisterer)

	return facade, cleanup, nil
}
