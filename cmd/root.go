package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TruWeaveTrader/cointeg/internal/cache"
	"github.com/TruWeaveTrader/cointeg/internal/config"
	"github.com/TruWeaveTrader/cointeg/internal/marketdata"
	"github.com/TruWeaveTrader/cointeg/internal/models"
)

var (
	// Global instances
	cfg       *config.Config
	dataCache *cache.Cache
	logger    *zap.Logger
)

var errNoData = errors.New("no price file given: use --data or data.path")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cointeg",
	Short: "Cointegration mean-reversion research tool",
	Long: `cointeg estimates cointegrating relationships between price series
with the Johansen procedure, checks stationarity with the augmented
Dickey-Fuller test, and backtests a scaled mean-reversion strategy on
the resulting spread.`,
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
	rootCmd.PersistentFlags().String("data", "", "price CSV file (timestamp,SYM1,SYM2,...)")
	rootCmd.PersistentFlags().StringSlice("symbols", nil, "columns to use, in order (default all)")
	rootCmd.PersistentFlags().String("timezone", "", "zone for timestamps without offset")
}

// initConfig sets up the logger before any command runs.
func initConfig() {
	// Configure logger: default INFO, DEBUG if DEBUG env is truthy or --verbose
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	if v := os.Getenv("DEBUG"); v == "true" || v == "1" || v == "yes" {
		verbose = true
	}

	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	var err error
	logger, err = zcfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
}

// initializeApp sets up all dependencies
func initializeApp(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags win over file and environment
	if cmd.Flags().Changed("data") {
		cfg.DataPath, _ = cmd.Flags().GetString("data")
	}
	if cmd.Flags().Changed("symbols") {
		cfg.Symbols, _ = cmd.Flags().GetStringSlice("symbols")
	}
	if cmd.Flags().Changed("timezone") {
		name, _ := cmd.Flags().GetString("timezone")
		if cfg.Location, err = time.LoadLocation(name); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}

	dataCache = cache.NewCache(cfg.CacheTTL)

	logger.Debug("configuration loaded",
		zap.String("config", configPath),
		zap.String("data", cfg.DataPath),
		zap.Strings("symbols", cfg.Symbols),
		zap.Duration("cache_ttl", cfg.CacheTTL))
	return nil
}

// loadPrices reads the configured price file
func loadPrices() (*models.PriceMatrix, error) {
	if cfg.DataPath == "" {
		return nil, errNoData
	}
	return marketdata.NewLoader(cfg.Location, logger).LoadCSV(cfg.DataPath, cfg.Symbols)
}

// timeFlag parses an optional timestamp flag in the configured zone
func timeFlag(cmd *cobra.Command, name string, dst *time.Time) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	s, _ := cmd.Flags().GetString(name)
	ts, err := models.ParseTimestamp(s, cfg.Location)
	if err != nil {
		return fmt.Errorf("--%s: %w", name, err)
	}
	*dst = ts
	return nil
}
