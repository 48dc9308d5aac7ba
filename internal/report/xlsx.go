// Package report exports backtest results to spreadsheets.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/TruWeaveTrader/cointeg/internal/backtest"
)

// Sheet names in the order they are written
const (
	SheetSummary       = "Summary"
	SheetCointegration = "Cointegration"
	SheetSignal        = "Signal"
	SheetPositions     = "Positions"
	SheetPnL           = "PnL"
)

const timeLayout = "2006-01-02 15:04:05"

// WriteXLSX saves res as a workbook at path
func WriteXLSX(path string, res *backtest.Result) error {
	f, err := build(res)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Write streams the workbook to w
func Write(w io.Writer, res *backtest.Result) error {
	f, err := build(res)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func build(res *backtest.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetCointegration, SheetSignal, SheetPositions, SheetPnL} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	writers := []struct {
		sheet string
		rows  [][]interface{}
	}{
		{SheetSummary, summaryRows(res)},
		{SheetCointegration, cointegrationRows(res)},
		{SheetSignal, signalRows(res)},
		{SheetPositions, positionRows(res)},
		{SheetPnL, pnlRows(res)},
	}
	for _, w := range writers {
		if err := writeRows(f, w.sheet, w.rows); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", w.sheet, err)
		}
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func summaryRows(res *backtest.Result) [][]interface{} {
	cal := res.Calibration
	rows := [][]interface{}{
		{"Field", "Value"},
		{"Run", res.RunID},
		{"Calibration start", cal.Start.Format(timeLayout)},
		{"Calibration end", cal.End.Format(timeLayout)},
		{"Calibration observations", cal.Observations},
		{"Cointegration vectors", cal.Johansen.CountCointegrationVectors},
		{"Significance", cal.Johansen.Significance.String()},
		{"Half-life", cal.HalfLife},
		{"Reference", cal.Reference},
		{"Step size", cal.StepSize},
		{"Steps", len(res.Steps)},
		{"Trades", res.TradeCount},
		{"Realized P&L", res.RealizedPnL.InexactFloat64()},
		{"Unrealized P&L", res.UnrealizedPnL.InexactFloat64()},
		{"Total P&L", res.TotalPnL.InexactFloat64()},
	}
	if st := cal.Stationarity; st != nil {
		rows = append(rows,
			[]interface{}{"ADF statistic", st.Statistic},
			[]interface{}{"ADF used lag", st.UsedLag},
			[]interface{}{"Signal not stationary", cal.NotStationary},
		)
	}
	return rows
}

func cointegrationRows(res *backtest.Result) [][]interface{} {
	j := res.Calibration.Johansen
	rows := [][]interface{}{{
		"Relations", "Eigenvalue", "Trace", "Trace 90%", "Trace 95%", "Trace 99%",
		"Max eigen", "Max eigen 90%", "Max eigen 95%", "Max eigen 99%",
	}}
	for i, ev := range j.Eigenvalues {
		tcv, ecv := j.TraceCriticalValues[i], j.MaxEigenCriticalValues[i]
		rows = append(rows, []interface{}{
			fmt.Sprintf("r <= %d", i), ev, j.TraceStatistics[i], tcv[0], tcv[1], tcv[2],
			j.MaxEigenStatistics[i], ecv[0], ecv[1], ecv[2],
		})
	}

	rows = append(rows, []interface{}{})
	rows = append(rows, []interface{}{"Symbol", "Vector", "Hedge ratio"})
	for i, sym := range res.Symbols {
		rows = append(rows, []interface{}{sym, res.Calibration.Vector[i], res.Calibration.HedgeRatios[i]})
	}
	return rows
}

func signalRows(res *backtest.Result) [][]interface{} {
	rows := [][]interface{}{{"Timestamp", "Signal", "Reference", "Step size", "Level", "Band inf", "Band mid", "Band sup"}}
	for _, s := range res.Steps {
		rows = append(rows, []interface{}{
			s.Timestamp.Format(timeLayout), s.Signal, s.Reference, s.StepSize,
			s.Band.Level, s.Band.BandInf, s.Band.BandMid, s.Band.BandSup,
		})
	}
	return rows
}

func positionRows(res *backtest.Result) [][]interface{} {
	header := []interface{}{"Timestamp"}
	for _, sym := range res.Symbols {
		header = append(header, sym+" price", sym+" shares", sym+" fill")
	}
	rows := [][]interface{}{header}
	for _, s := range res.Steps {
		row := []interface{}{s.Timestamp.Format(timeLayout)}
		for j := range res.Symbols {
			row = append(row, s.Prices[j], s.Shares[j], s.Fills[j])
		}
		rows = append(rows, row)
	}
	return rows
}

func pnlRows(res *backtest.Result) [][]interface{} {
	header := []interface{}{"Timestamp"}
	for _, sym := range res.Symbols {
		header = append(header, sym+" realized", sym+" unrealized")
	}
	header = append(header, "Realized", "Unrealized", "Total")
	rows := [][]interface{}{header}
	for _, s := range res.Steps {
		row := []interface{}{s.Timestamp.Format(timeLayout)}
		for j := range res.Symbols {
			row = append(row, s.Realized[j].InexactFloat64(), s.Unrealized[j].InexactFloat64())
		}
		row = append(row, s.RealizedTotal.InexactFloat64(), s.UnrealizedTotal.InexactFloat64(), s.Total.InexactFloat64())
		rows = append(rows, row)
	}
	return rows
}
