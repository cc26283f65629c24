// Command lppldiag is the LPPL bubble diagnostic engine's CLI, grounded on
// the teacher's cmd/cryptorun/main.go command tree: a root command plus
// subcommands, zerolog console-writer bootstrap, persistent config flag.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/lppldiag/internal/config"
	"github.com/sawpanic/lppldiag/internal/logging"
)

const appName = "lppldiag"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "LPPL/JLS bubble diagnostic engine",
		Long: `lppldiag fits the Johansen-Ledoit-Sornette log-periodic power law
model across a ladder of trailing windows and reports a confidence
indicator for whether a price series is in a bubble regime.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML options file (optional, defaults otherwise)")

	rootCmd.AddCommand(newDiagnoseCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("lppldiag failed")
		os.Exit(1)
	}
}

func loadOptions() (config.Options, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	opts, err := config.Load(configPath)
	if err != nil {
		return config.Options{}, fmt.Errorf("%s: %w", appName, err)
	}
	return opts, nil
}

func initLogging(opts config.Options) {
	logging.Init(opts.LogLevel, true)
}
