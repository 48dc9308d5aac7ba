package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TruWeaveTrader/cointeg/internal/backtest"
	"github.com/TruWeaveTrader/cointeg/internal/config"
	"github.com/TruWeaveTrader/cointeg/internal/report"
	"github.com/TruWeaveTrader/cointeg/internal/scaling"
	"github.com/TruWeaveTrader/cointeg/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(btCmd) // Alias

	for _, c := range []*cobra.Command{backtestCmd, btCmd} {
		c.Flags().String("xlsx", "", "write the full run to this workbook")
		c.Flags().Int("steps", 20, "number of trailing steps to print (0 for all)")
		c.Flags().String("calibration-start", "", "first calibration timestamp")
		c.Flags().String("calibration-end", "", "first timestamp after calibration")
		c.Flags().String("backtest-start", "", "first backtest timestamp")
		c.Flags().String("backtest-end", "", "first timestamp after the backtest")
		c.Flags().String("reference", "", "band centre: static or rolling")
		c.Flags().Int("limit", scaling.NoLimit, "largest absolute scaling level (-1 for none, 0 stays flat)")
	}
}

var btCmd = &cobra.Command{
	Use:   "bt",
	Short: "Run a backtest (alias for backtest)",
	Args:  cobra.NoArgs,
	RunE:  runBacktest,
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Calibrate and backtest a cointegration spread",
	Long: `Fits a cointegration vector on the calibration window, derives the
half-life and band step from the calibration spread, then trades the
spread through the scaling bands over the backtest window and reports
positions and P&L.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func runBacktest(cmd *cobra.Command, args []string) error {
	start := time.Now()

	bt := cfg.Backtest
	windows := []struct {
		flag string
		dst  *time.Time
	}{
		{"calibration-start", &bt.CalibrationStart},
		{"calibration-end", &bt.CalibrationEnd},
		{"backtest-start", &bt.BacktestStart},
		{"backtest-end", &bt.BacktestEnd},
	}
	for _, w := range windows {
		if err := timeFlag(cmd, w.flag, w.dst); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("reference") {
		bt.ReferenceMode, _ = cmd.Flags().GetString("reference")
	}
	if cmd.Flags().Changed("limit") {
		bt.Limit, _ = cmd.Flags().GetInt("limit")
	}
	if err := bt.Validate(); err != nil {
		return err
	}

	prices, err := loadPrices()
	if err != nil {
		return err
	}

	res, err := backtest.NewRunner(bt, dataCache, logger).Run(prices)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	steps, _ := cmd.Flags().GetInt("steps")
	fmt.Println(formatters.FormatBacktestSummary(res))
	fmt.Println(formatters.FormatPositionsTable(res))
	fmt.Println(formatters.FormatStepsTable(res, steps))

	if res.Calibration.NotStationary {
		fmt.Println(formatters.ColorYellow.Sprint("⚠️  Calibration spread failed the stationarity test at " + bt.Significance.String()))
	}

	path := cfg.XLSXPath
	if cmd.Flags().Changed("xlsx") {
		path, _ = cmd.Flags().GetString("xlsx")
	}
	if path != "" {
		if err := report.WriteXLSX(path, res); err != nil {
			return err
		}
		fmt.Printf("📄 Report written to %s\n", path)
	}

	stats := dataCache.GetStats()
	logger.Debug("backtest complete",
		zap.String("reference", referenceLabel(bt)),
		zap.Int("steps", len(res.Steps)),
		zap.Int64("cache_hits", stats.Hits),
		zap.Int64("cache_misses", stats.Misses))

	fmt.Printf("\n⏱  %d steps, %d trades • %dms\n", len(res.Steps), res.TradeCount, time.Since(start).Milliseconds())
	return nil
}

func referenceLabel(bt config.Backtest) string {
	if bt.ReferenceMode == config.ReferenceRolling {
		return "rolling half-life window"
	}
	return "calibration mean"
}
