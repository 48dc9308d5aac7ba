package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/TruWeaveTrader/cointeg/internal/adf"
	"github.com/TruWeaveTrader/cointeg/internal/models"
	"github.com/TruWeaveTrader/cointeg/internal/scaling"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Reference modes for the band centre
const (
	ReferenceStatic  = "static"
	ReferenceRolling = "rolling"
)

// Config holds all application configuration
type Config struct {
	// Data
	DataPath string
	Symbols  []string
	Location *time.Location

	// Performance
	CacheTTL time.Duration

	// Output
	XLSXPath string

	Backtest Backtest
}

// Backtest parameterises one calibration/backtest run
type Backtest struct {
	// Windows are [start, end); a zero bound is open
	CalibrationStart time.Time
	CalibrationEnd   time.Time
	BacktestStart    time.Time
	BacktestEnd      time.Time

	// Cointegration
	Lags         int                 `validate:"min=1"`
	Significance models.Significance `validate:"significance"`
	VectorIndex  int                 `validate:"min=0"`

	// Position sizing
	TradeScale     float64 `validate:"gt=0"`
	BandMultiplier float64 `validate:"gt=0"`
	Limit          int     `validate:"min=-1"` // scaling.NoLimit or a level bound
	Direction      float64 `validate:"direction"`
	ReferenceMode  string  `validate:"oneof=static rolling"`

	// Diagnostics
	ADF adf.Config
}

// DefaultBacktest returns the parameters used when nothing is configured
func DefaultBacktest() Backtest {
	return Backtest{
		Lags:           1,
		Significance:   models.Significance95,
		TradeScale:     100,
		BandMultiplier: 1,
		Limit:          scaling.NoLimit,
		Direction:      -1,
		ReferenceMode:  ReferenceStatic,
		ADF:            adf.DefaultConfig(),
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultBacktest()

	v.SetDefault("data.path", "")
	v.SetDefault("data.symbols", []string{})
	v.SetDefault("data.timezone", "UTC")
	v.SetDefault("cache.ttl", "30m")
	v.SetDefault("report.xlsx", "")

	v.SetDefault("calibration.start", "")
	v.SetDefault("calibration.end", "")
	v.SetDefault("backtest.start", "")
	v.SetDefault("backtest.end", "")

	v.SetDefault("johansen.lags", d.Lags)
	v.SetDefault("johansen.significance", d.Significance.String())
	v.SetDefault("johansen.vector", d.VectorIndex)

	v.SetDefault("scaling.trade_scale", d.TradeScale)
	v.SetDefault("scaling.band_multiplier", d.BandMultiplier)
	v.SetDefault("scaling.limit", d.Limit)
	v.SetDefault("scaling.direction", d.Direction)
	v.SetDefault("scaling.reference", d.ReferenceMode)

	v.SetDefault("adf.max_lag", d.ADF.MaxLag)
	v.SetDefault("adf.regression", string(d.ADF.Regression))
	v.SetDefault("adf.autolag", string(d.ADF.Autolag))
}

// Load reads .env, the optional config file at path and COINTEG_* environment
// variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("COINTEG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString("data.timezone"))
	if err != nil {
		return nil, fmt.Errorf("%w: timezone: %v", ErrInvalidConfig, err)
	}

	cfg := &Config{
		DataPath: v.GetString("data.path"),
		Symbols:  splitList(v.GetStringSlice("data.symbols")),
		Location: loc,
		CacheTTL: v.GetDuration("cache.ttl"),
		XLSXPath: v.GetString("report.xlsx"),
	}

	bt := Backtest{
		Lags:           v.GetInt("johansen.lags"),
		VectorIndex:    v.GetInt("johansen.vector"),
		TradeScale:     v.GetFloat64("scaling.trade_scale"),
		BandMultiplier: v.GetFloat64("scaling.band_multiplier"),
		Limit:          v.GetInt("scaling.limit"),
		Direction:      v.GetFloat64("scaling.direction"),
		ReferenceMode:  strings.ToLower(v.GetString("scaling.reference")),
		ADF:            adf.Config{MaxLag: v.GetInt("adf.max_lag")},
	}

	if bt.Significance, err = models.ParseSignificance(v.GetString("johansen.significance")); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if bt.ADF.Regression, err = adf.ParseRegression(v.GetString("adf.regression")); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if bt.ADF.Autolag, err = adf.ParseCriterion(v.GetString("adf.autolag")); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	bounds := []struct {
		key string
		dst *time.Time
	}{
		{"calibration.start", &bt.CalibrationStart},
		{"calibration.end", &bt.CalibrationEnd},
		{"backtest.start", &bt.BacktestStart},
		{"backtest.end", &bt.BacktestEnd},
	}
	for _, b := range bounds {
		s := v.GetString(b.key)
		if s == "" {
			continue
		}
		ts, err := models.ParseTimestamp(s, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, b.key, err)
		}
		*b.dst = ts
	}

	cfg.Backtest = bt
	if err := cfg.Backtest.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts both YAML lists and a comma separated env value
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, s := range strings.Split(item, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("significance", func(fl validator.FieldLevel) bool {
		return models.Significance(fl.Field().Int()).Valid()
	})
	v.RegisterValidation("direction", func(fl validator.FieldLevel) bool {
		d := fl.Field().Float()
		return d == 1 || d == -1
	})
	return v
}

// Validate rejects parameters that would make a run meaningless
func (b *Backtest) Validate() error {
	if err := validate.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s fails %s%s, got %v", ErrInvalidConfig, fe.Field(), fe.Tag(), param(fe.Param()), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !b.CalibrationStart.IsZero() && !b.CalibrationEnd.IsZero() && !b.CalibrationEnd.After(b.CalibrationStart) {
		return fmt.Errorf("%w: calibration window ends before it starts", ErrInvalidConfig)
	}
	if !b.BacktestStart.IsZero() && !b.BacktestEnd.IsZero() && !b.BacktestEnd.After(b.BacktestStart) {
		return fmt.Errorf("%w: backtest window ends before it starts", ErrInvalidConfig)
	}
	if err := b.ADF.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func param(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}
