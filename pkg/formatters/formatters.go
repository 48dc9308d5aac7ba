package formatters

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/TruWeaveTrader/cointeg/internal/adf"
	"github.com/TruWeaveTrader/cointeg/internal/backtest"
	"github.com/TruWeaveTrader/cointeg/internal/johansen"
	"github.com/TruWeaveTrader/cointeg/internal/models"
)

// Colors for different values
var (
	ColorGreen  = text.FgGreen
	ColorRed    = text.FgRed
	ColorYellow = text.FgYellow
	ColorBlue   = text.FgCyan
	ColorWhite  = text.FgWhite
	ColorGray   = text.FgHiBlack
)

// FormatDollarAmount formats a dollar amount with appropriate color
func FormatDollarAmount(amount decimal.Decimal) string {
	amountStr := fmt.Sprintf("$%.2f", amount.Abs().InexactFloat64())

	if amount.IsNegative() {
		return ColorRed.Sprint("-" + amountStr)
	}
	return ColorGreen.Sprint(amountStr)
}

// FormatLevel colors a scaling level by sign
func FormatLevel(level int) string {
	s := fmt.Sprintf("%+d", level)
	switch {
	case level > 0:
		return ColorGreen.Sprint(s)
	case level < 0:
		return ColorRed.Sprint(s)
	}
	return ColorGray.Sprint("0")
}

// FormatDate formats a timestamp for display, dropping midnight times
func FormatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

func criticalCells(cv johansen.CriticalValues) []interface{} {
	if !cv.Available() {
		na := ColorGray.Sprint("n/a")
		return []interface{}{na, na, na}
	}
	return []interface{}{
		fmt.Sprintf("%.4f", cv[0]),
		fmt.Sprintf("%.4f", cv[1]),
		fmt.Sprintf("%.4f", cv[2]),
	}
}

// FormatJohansen renders the test statistics and the cointegration vectors
func FormatJohansen(symbols []string, res *johansen.Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Johansen (lags=%d, %s) - %d cointegration vector(s)",
		res.Lags, res.Significance, res.CountCointegrationVectors))

	t.AppendHeader(table.Row{"H0", "Eigenvalue", "Trace", "90%", "95%", "99%", "Max Eig", "90%", "95%", "99%"})
	for i, ev := range res.Eigenvalues {
		trace := fmt.Sprintf("%.4f", res.TraceStatistics[i])
		if i < res.CountCointegrationVectors {
			trace = ColorGreen.Sprint(trace)
		}
		row := table.Row{fmt.Sprintf("r <= %d", i), fmt.Sprintf("%.6f", ev), trace}
		row = append(row, criticalCells(res.TraceCriticalValues[i])...)
		row = append(row, fmt.Sprintf("%.4f", res.MaxEigenStatistics[i]))
		row = append(row, criticalCells(res.MaxEigenCriticalValues[i])...)
		t.AppendRow(row)
	}

	var parts []string
	parts = append(parts, t.Render())

	if res.CountCointegrationVectors > 0 {
		v := table.NewWriter()
		v.SetStyle(table.StyleLight)
		header := table.Row{"Symbol"}
		for i := 0; i < res.CountCointegrationVectors; i++ {
			header = append(header, fmt.Sprintf("v%d", i), fmt.Sprintf("v%d / -v%d[0]", i, i))
		}
		v.AppendHeader(header)
		for j, sym := range symbols {
			row := table.Row{sym}
			for i := 0; i < res.CountCointegrationVectors; i++ {
				vec := res.Vector(i)
				row = append(row, fmt.Sprintf("%.6f", vec[j]), fmt.Sprintf("%.6f", johansen.Normalize(vec, 0)[j]))
			}
			v.AppendRow(row)
		}
		parts = append(parts, v.Render())
	}
	if res.Degraded() {
		parts = append(parts, ColorYellow.Sprint("warning: critical values unavailable for some relation counts"))
	}
	return strings.Join(parts, "\n")
}

// StationarityRow is one line of an ADF report
type StationarityRow struct {
	Name   string
	Result *adf.Result
	Err    error
}

// FormatStationarity renders ADF results, classifying each row at sig
func FormatStationarity(rows []StationarityRow, sig models.Significance) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Series", "ADF", "Lag", "Nobs", "90%", "95%", "99%", "Verdict @ " + sig.String()})

	for _, r := range rows {
		if r.Err != nil {
			t.AppendRow(table.Row{r.Name, ColorRed.Sprint(TruncateString(r.Err.Error(), 60)), "", "", "", "", "", ""})
			continue
		}
		res := r.Result
		verdict := ColorGreen.Sprint("stationary")
		if res.NotStationary(sig) {
			verdict = ColorRed.Sprint("not stationary")
		}
		t.AppendRow(table.Row{
			r.Name,
			fmt.Sprintf("%.4f", res.Statistic),
			res.UsedLag,
			res.Nobs,
			fmt.Sprintf("%.4f", res.CriticalValues[0]),
			fmt.Sprintf("%.4f", res.CriticalValues[1]),
			fmt.Sprintf("%.4f", res.CriticalValues[2]),
			verdict,
		})
	}

	if len(rows) == 0 {
		t.AppendRow(table.Row{"No series", "", "", "", "", "", "", ""})
	}
	return t.Render()
}

// FormatBacktestSummary creates a pretty backtest summary
func FormatBacktestSummary(res *backtest.Result) string {
	cal := res.Calibration
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendRow(table.Row{"Calibration", fmt.Sprintf("%s - %s (%d days)", FormatDate(cal.Start), FormatDate(cal.End), cal.Observations)})
	t.AppendRow(table.Row{"Cointegration Vectors", cal.Johansen.CountCointegrationVectors})
	t.AppendRow(table.Row{"Half-life", fmt.Sprintf("%d periods", cal.HalfLife)})
	t.AppendRow(table.Row{"Reference", fmt.Sprintf("%.4f", cal.Reference)})
	t.AppendRow(table.Row{"Step Size", fmt.Sprintf("%.4f", cal.StepSize)})
	if cal.Stationarity != nil {
		verdict := ColorGreen.Sprint("stationary")
		if cal.NotStationary {
			verdict = ColorRed.Sprint("not stationary")
		}
		t.AppendRow(table.Row{"Signal ADF", fmt.Sprintf("%.4f (%s)", cal.Stationarity.Statistic, verdict)})
	}
	t.AppendSeparator()
	if n := len(res.Steps); n > 0 {
		t.AppendRow(table.Row{"Backtest", fmt.Sprintf("%s - %s (%d days)", FormatDate(res.Steps[0].Timestamp), FormatDate(res.Steps[n-1].Timestamp), n)})
		t.AppendRow(table.Row{"Final Level", FormatLevel(res.Steps[n-1].Band.Level)})
	}
	t.AppendRow(table.Row{"Trades", res.TradeCount})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Realized P&L", FormatDollarAmount(res.RealizedPnL)})
	t.AppendRow(table.Row{"Unrealized P&L", FormatDollarAmount(res.UnrealizedPnL)})
	t.AppendRow(table.Row{"Total P&L", FormatDollarAmount(res.TotalPnL)})

	return t.Render()
}

// FormatPositionsTable creates a pretty positions table marked at the last step
func FormatPositionsTable(res *backtest.Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{
		"Symbol", "Vector", "Qty", "Avg Cost", "Last", "Realized", "Unrealized", "Fills"})

	var last *backtest.Step
	if n := len(res.Steps); n > 0 {
		last = &res.Steps[n-1]
	}

	for j, pos := range res.Positions {
		avg := "-"
		if p, err := pos.Account.AveragePrice(); err == nil {
			avg = fmt.Sprintf("$%.2f", p.InexactFloat64())
		}
		price := "-"
		unrealized := decimal.Zero
		if last != nil {
			mark := decimal.NewFromFloat(last.Prices[j])
			price = fmt.Sprintf("$%.2f", last.Prices[j])
			unrealized = pos.Account.UnrealizedPnL(mark)
		}

		t.AppendRow(table.Row{
			pos.Symbol,
			fmt.Sprintf("%.6f", res.Calibration.Vector[j]),
			pos.Account.Quantity.String(),
			avg,
			price,
			FormatDollarAmount(pos.Account.RealizedPnL),
			FormatDollarAmount(unrealized),
			len(pos.Fills),
		})
	}

	// Footer
	t.AppendSeparator()
	t.AppendRow(table.Row{
		"TOTAL", "", "", "", "",
		FormatDollarAmount(res.RealizedPnL),
		FormatDollarAmount(res.UnrealizedPnL),
		res.TradeCount,
	})

	return t.Render()
}

// FormatStepsTable renders the last n steps, or all of them when n <= 0
func FormatStepsTable(res *backtest.Result, n int) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	header := table.Row{"Date", "Signal", "Band", "Level"}
	for _, sym := range res.Symbols {
		header = append(header, sym)
	}
	header = append(header, "P&L")
	t.AppendHeader(header)

	steps := res.Steps
	if n > 0 && len(steps) > n {
		steps = steps[len(steps)-n:]
	}
	for _, s := range steps {
		row := table.Row{
			FormatDate(s.Timestamp),
			fmt.Sprintf("%.4f", s.Signal),
			fmt.Sprintf("[%.3f, %.3f]", s.Band.BandInf, s.Band.BandSup),
			FormatLevel(s.Band.Level),
		}
		for j := range res.Symbols {
			row = append(row, s.Shares[j])
		}
		row = append(row, FormatDollarAmount(s.Total))
		t.AppendRow(row)
	}

	if len(steps) == 0 {
		t.AppendRow(table.Row{"No steps"})
	}
	return t.Render()
}

// TruncateString truncates a string to specified length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
