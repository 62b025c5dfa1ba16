package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "daypick"
	version = "v0.4.0"
)

// Date flags bind here; zero means the flag was not passed.
var (
	scanDate      time.Time
	demoDate      time.Time
	fetchDate     time.Time
	backtestStart time.Time
	backtestEnd   time.Time
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Taiwan day-trading candidate picker",
		Version: version,
		Long: `daypick scans Taiwan listed and OTC close quotes for next-day trading
candidates. One daily snapshot feeds sector aggregation, leader detection
and follower scoring; survivors come out sized against the configured
risk caps.

Subcommands cover fetching quotes, scanning a date, replaying history,
generating a synthetic demo market and serving the monitor endpoints.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (YAML); built-in defaults when empty")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Pick candidates for one trade date",
		Long:  "Loads local market history, runs the selection pipeline and writes the run artifacts",
		RunE:  runScan,
	}
	scanCmd.Flags().Var(newDateValue(&scanDate), "date", "Trade date (YYYY-MM-DD), defaults to today")
	scanCmd.Flags().String("data-dir", "", "Market history directory (default from config)")
	scanCmd.Flags().String("out", "", "Artifact directory (default from config)")
	scanCmd.Flags().Int("history-days", 60, "Day files to load back from the trade date")
	scanCmd.Flags().String("sector-mode", "themes", "Sector source (industry|themes)")
	scanCmd.Flags().String("pg-dsn", "", "Postgres DSN for the candidate archive (default from config)")
	scanCmd.Flags().String("redis-addr", "", "Redis address for the day cache (default from config)")

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Scan a seeded synthetic market",
		Long:  "Generates a deterministic synthetic market and runs the full pipeline against its last day",
		RunE:  runDemo,
	}
	demoCmd.Flags().Var(newDateValue(&demoDate), "date", "Trade date (YYYY-MM-DD), defaults to today")
	demoCmd.Flags().Int("stocks", 220, "Synthetic stocks to generate")
	demoCmd.Flags().Int("sectors", 12, "Synthetic sectors to spread them over")
	demoCmd.Flags().Int("days", 40, "History days to simulate")
	demoCmd.Flags().Int64("seed", 7, "Random seed")
	demoCmd.Flags().String("out", "", "Artifact directory (default from config)")

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the selection loop over local history",
		Long:  "Runs the pipeline date by date, enters the sized candidates and tracks the equity curve",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().Var(newDateValue(&backtestStart), "start", "First entry date (YYYY-MM-DD), defaults to the earliest day file")
	backtestCmd.Flags().Var(newDateValue(&backtestEnd), "end", "Last entry date (YYYY-MM-DD), defaults to the latest day file")
	backtestCmd.Flags().Int("hold", 1, "Trading days between entry and exit close")
	backtestCmd.Flags().Int("max-positions", 5, "Positions entered per date")
	backtestCmd.Flags().String("data-dir", "", "Market history directory (default from config)")
	backtestCmd.Flags().String("out", "", "Artifact directory (default from config)")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one day of close quotes",
		Long:  "Pulls the TWSE and TPEX daily close tables and writes the merged day file",
		RunE:  runFetch,
	}
	fetchCmd.Flags().Var(newDateValue(&fetchDate), "date", "Trade date (YYYY-MM-DD), defaults to today")
	fetchCmd.Flags().String("out-dir", "", "Market history directory (default from config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the monitor endpoints",
		Long:  "Starts the HTTP monitor with health, metrics and on-demand scan endpoints",
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().String("data-dir", "", "Market history directory (default from config)")
	serveCmd.Flags().Int("history-days", 60, "Day files to load per scan")
	serveCmd.Flags().String("sector-mode", "themes", "Sector source (industry|themes)")

	rootCmd.AddCommand(fetchCmd)    // Data acquisition
	rootCmd.AddCommand(scanCmd)     // Daily selection
	rootCmd.AddCommand(demoCmd)     // Synthetic walkthrough
	rootCmd.AddCommand(backtestCmd) // Historical replay
	rootCmd.AddCommand(serveCmd)    // Monitoring

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
