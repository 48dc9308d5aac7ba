// Package marketdata loads price matrices from local CSV files.
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TruWeaveTrader/cointeg/internal/models"
)

var (
	ErrBadHeader     = errors.New("csv header must be timestamp followed by symbols")
	ErrUnknownSymbol = errors.New("symbol not present in file")
)

// Loader reads price files. Timestamps without a zone are read in Location.
type Loader struct {
	Location *time.Location
	logger   *zap.Logger
}

// NewLoader creates a loader; nil arguments mean UTC and no logging
func NewLoader(loc *time.Location, logger *zap.Logger) *Loader {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{Location: loc, logger: logger.With(zap.String("component", "marketdata"))}
}

// LoadCSV opens path and reads it with Read
func (l *Loader) LoadCSV(path string, symbols []string) (*models.PriceMatrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price file: %w", err)
	}
	defer file.Close()

	m, err := l.Read(file, symbols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Info("prices loaded",
		zap.String("path", path),
		zap.Strings("symbols", m.Symbols),
		zap.Int("rows", m.Rows()))
	return m, nil
}

// Read parses "timestamp,SYM1,SYM2,..." rows. Only the requested symbols are
// kept, in the requested order; nil keeps every column. Empty, NaN and NA
// cells are missing values. Rows are sorted by time and rows sharing a
// timestamp are merged, later non-missing values winning.
func (l *Loader) Read(r io.Reader, symbols []string) (*models.PriceMatrix, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) < 2 {
		return nil, ErrBadHeader
	}

	columns := make(map[string]int, len(header)-1)
	for i, name := range header[1:] {
		columns[strings.TrimSpace(name)] = i + 1
	}
	if len(symbols) == 0 {
		for _, name := range header[1:] {
			symbols = append(symbols, strings.TrimSpace(name))
		}
	}
	pick := make([]int, len(symbols))
	for j, sym := range symbols {
		col, ok := columns[sym]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, sym)
		}
		pick[j] = col
	}

	type row struct {
		ts     time.Time
		values []float64
	}
	var rows []row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		ts, err := models.ParseTimestamp(record[0], l.Location)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values := make([]float64, len(pick))
		for j, col := range pick {
			if values[j], err = parsePrice(record[col]); err != nil {
				return nil, fmt.Errorf("line %d, %s: %w", line, symbols[j], err)
			}
		}
		rows = append(rows, row{ts: ts, values: values})
	}

	sort.SliceStable(rows, func(a, b int) bool { return rows[a].ts.Before(rows[b].ts) })

	var index []time.Time
	var values [][]float64
	merged := 0
	for _, rw := range rows {
		if n := len(index); n > 0 && index[n-1].Equal(rw.ts) {
			prev := values[n-1]
			for j, v := range rw.values {
				if !math.IsNaN(v) {
					prev[j] = v
				}
			}
			merged++
			continue
		}
		index = append(index, rw.ts)
		values = append(values, rw.values)
	}
	if merged > 0 {
		l.logger.Debug("merged duplicate timestamps", zap.Int("rows", merged))
	}

	return models.NewPriceMatrix(symbols, index, values)
}

func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
