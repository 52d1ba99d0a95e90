// Package config loads process configuration from the environment, an
// optional .env file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"contabil/internal/core/retry"
	"contabil/internal/domain/accounts"
	"contabil/internal/domain/ledger"
	"contabil/internal/domain/vat"
)

// Keys understood by Load.
const (
	KeyDatabaseURL          = "DATABASE_URL"
	KeyLogLevel             = "LOG_LEVEL"
	KeyAppEnv               = "APP_ENV"
	KeyDBMaxConns           = "DB_MAX_CONNS"
	KeyTxStatementTimeout   = "TX_STATEMENT_TIMEOUT"
	KeyTxLockTimeout        = "TX_LOCK_TIMEOUT"
	KeyRetryMaxAttempts     = "RETRY_MAX_ATTEMPTS"
	KeyRetryInitialInterval = "RETRY_INITIAL_INTERVAL"
	KeyRetryMaxInterval     = "RETRY_MAX_INTERVAL"
	KeyBaseCurrency         = "BASE_CURRENCY"
	KeyJournalSeries        = "JOURNAL_SERIES"
	KeyVatJournalSeries     = "VAT_JOURNAL_SERIES"
	KeyVatDeferredAccount   = "VAT_DEFERRED_ACCOUNT"
	KeyVatCollectedAccount  = "VAT_COLLECTED_ACCOUNT"
	KeyVatDeductibleAccount = "VAT_DEDUCTIBLE_ACCOUNT"
	KeyVatRoundingPlaces    = "VAT_ROUNDING_PLACES"
	KeyChartFile            = "CHART_FILE"
	KeyKafkaBrokers         = "KAFKA_BROKERS"
	KeyKafkaTopic           = "KAFKA_TOPIC"
	KeyOutboxPollInterval   = "OUTBOX_POLL_INTERVAL"
	KeyOutboxBatchSize      = "OUTBOX_BATCH_SIZE"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"database-url": KeyDatabaseURL,
	"log-level":    KeyLogLevel,
	"env":          KeyAppEnv,
	"chart-file":   KeyChartFile,
}

// Database configures the PostgreSQL pool and transactions.
type Database struct {
	URL              string
	MaxConns         int32
	StatementTimeout time.Duration
	LockTimeout      time.Duration
}

// Kafka configures the outbox relay target.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Outbox configures the relay loop.
type Outbox struct {
	PollInterval time.Duration
	BatchSize    int
}

// Config is the resolved process configuration.
type Config struct {
	AppEnv    string
	LogLevel  string
	Database  Database
	Retry     retry.Policy
	Ledger    ledger.Config
	VAT       vat.Config
	ChartFile string
	Kafka     Kafka
	Outbox    Outbox
}

// Development reports whether the process runs in development mode.
func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

// Flags declares the flags shared by every command.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("database-url", "", "PostgreSQL connection string")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("env", "", "application environment")
	fs.String("chart-file", "", "chart of accounts file (YAML or JSON)")
	return fs
}

func setDefaults(v *viper.Viper) {
	ledgerDefaults := ledger.DefaultConfig()
	vatDefaults := vat.DefaultConfig()
	retryDefaults := retry.DefaultPolicy()

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyAppEnv, "development")
	v.SetDefault(KeyDBMaxConns, 20)
	v.SetDefault(KeyTxStatementTimeout, "30s")
	v.SetDefault(KeyTxLockTimeout, "5s")
	v.SetDefault(KeyRetryMaxAttempts, retryDefaults.MaxAttempts)
	v.SetDefault(KeyRetryInitialInterval, retryDefaults.InitialInterval)
	v.SetDefault(KeyRetryMaxInterval, retryDefaults.MaxInterval)
	v.SetDefault(KeyBaseCurrency, ledgerDefaults.BaseCurrency)
	v.SetDefault(KeyJournalSeries, ledgerDefaults.JournalSeries)
	v.SetDefault(KeyVatJournalSeries, vatDefaults.JournalSeries)
	v.SetDefault(KeyVatDeferredAccount, vatDefaults.DeferredAccount)
	v.SetDefault(KeyVatCollectedAccount, vatDefaults.CollectedAccount)
	v.SetDefault(KeyVatDeductibleAccount, vatDefaults.DeductibleAccount)
	v.SetDefault(KeyVatRoundingPlaces, vatDefaults.RoundingPlaces)
	v.SetDefault(KeyKafkaBrokers, "localhost:9092")
	v.SetDefault(KeyKafkaTopic, "contabil.events")
	v.SetDefault(KeyOutboxPollInterval, "500ms")
	v.SetDefault(KeyOutboxBatchSize, 100)
}

// Load resolves configuration. Precedence: flags, environment, .env file,
// defaults. flags may be nil; parsed flags that were set override the
// environment.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		AppEnv:   v.GetString(KeyAppEnv),
		LogLevel: v.GetString(KeyLogLevel),
		Database: Database{
			URL:              v.GetString(KeyDatabaseURL),
			MaxConns:         v.GetInt32(KeyDBMaxConns),
			StatementTimeout: v.GetDuration(KeyTxStatementTimeout),
			LockTimeout:      v.GetDuration(KeyTxLockTimeout),
		},
		Retry: retry.Policy{
			MaxAttempts:     v.GetUint(KeyRetryMaxAttempts),
			InitialInterval: v.GetDuration(KeyRetryInitialInterval),
			MaxInterval:     v.GetDuration(KeyRetryMaxInterval),
		},
		Ledger: ledger.Config{
			BaseCurrency:  strings.ToUpper(v.GetString(KeyBaseCurrency)),
			JournalSeries: v.GetString(KeyJournalSeries),
		},
		VAT: vat.Config{
			DeferredAccount:   v.GetString(KeyVatDeferredAccount),
			CollectedAccount:  v.GetString(KeyVatCollectedAccount),
			DeductibleAccount: v.GetString(KeyVatDeductibleAccount),
			RoundingPlaces:    v.GetInt32(KeyVatRoundingPlaces),
			JournalSeries:     v.GetString(KeyVatJournalSeries),
			BaseCurrency:      strings.ToUpper(v.GetString(KeyBaseCurrency)),
		},
		ChartFile: v.GetString(KeyChartFile),
		Kafka: Kafka{
			Brokers: splitList(v.GetString(KeyKafkaBrokers)),
			Topic:   v.GetString(KeyKafkaTopic),
		},
		Outbox: Outbox{
			PollInterval: v.GetDuration(KeyOutboxPollInterval),
			BatchSize:    v.GetInt(KeyOutboxBatchSize),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Retry.MaxAttempts == 0 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyRetryMaxAttempts))
	}
	if c.VAT.RoundingPlaces < 0 || c.VAT.RoundingPlaces > 4 {
		errs = append(errs, fmt.Errorf("%s must be between 0 and 4", KeyVatRoundingPlaces))
	}
	if len(c.Ledger.BaseCurrency) != 3 {
		errs = append(errs, fmt.Errorf("%s must be an ISO 4217 code", KeyBaseCurrency))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyOutboxBatchSize))
	}
	return errors.Join(errs...)
}

// RequireDatabase fails when no connection string is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("%s is not set", KeyDatabaseURL)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// chartFile is the layout of a chart of accounts file.
type chartFile struct {
	Accounts []accounts.Account `mapstructure:"accounts"`
}

// LoadChart returns the built-in chart, extended with the accounts listed in
// path when path is not empty. The file format follows its extension.
func LoadChart(path string) (*accounts.StaticChart, error) {
	chart, err := accounts.NewStaticChart(accounts.DefaultAccounts())
	if err != nil {
		return nil, fmt.Errorf("default chart: %w", err)
	}
	if path == "" {
		return chart, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read chart file: %w", err)
	}
	var f chartFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode chart file: %w", err)
	}
	if err := chart.Merge(f.Accounts); err != nil {
		return nil, fmt.Errorf("chart file %s: %w", path, err)
	}
	return chart, nil
}
