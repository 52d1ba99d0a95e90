package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/domain/accounts"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.True(t, cfg.Development())
	assert.Equal(t, "RON", cfg.Ledger.BaseCurrency)
	assert.Equal(t, "NC", cfg.Ledger.JournalSeries)
	assert.Equal(t, "4428", cfg.VAT.DeferredAccount)
	assert.Equal(t, "4427", cfg.VAT.CollectedAccount)
	assert.Equal(t, "4426", cfg.VAT.DeductibleAccount)
	assert.Equal(t, int32(2), cfg.VAT.RoundingPlaces)
	assert.Equal(t, "TVAI", cfg.VAT.JournalSeries)
	assert.Equal(t, "RON", cfg.VAT.BaseCurrency)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.EqualValues(t, 5, cfg.Retry.MaxAttempts)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv(KeyDatabaseURL, "postgres://localhost/contabil")
	t.Setenv(KeyBaseCurrency, "eur")
	t.Setenv(KeyTxLockTimeout, "2s")
	t.Setenv(KeyKafkaBrokers, "k1:9092, k2:9092")
	t.Setenv(KeyVatRoundingPlaces, "4")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/contabil", cfg.Database.URL)
	assert.NoError(t, cfg.RequireDatabase())
	assert.Equal(t, "EUR", cfg.Ledger.BaseCurrency)
	assert.Equal(t, "EUR", cfg.VAT.BaseCurrency)
	assert.Equal(t, 2*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int32(4), cfg.VAT.RoundingPlaces)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv(KeyDatabaseURL, "postgres://env/db")
	t.Setenv(KeyLogLevel, "warn")

	fs := Flags("test")
	require.NoError(t, fs.Parse([]string{"--database-url", "postgres://flag/db"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag/db", cfg.Database.URL)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv(KeyVatRoundingPlaces, "7")
	t.Setenv(KeyRetryMaxAttempts, "0")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyVatRoundingPlaces)
	assert.Contains(t, err.Error(), KeyRetryMaxAttempts)
}

func TestRequireDatabase(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireDatabase())
}

func TestLoadChart_Default(t *testing.T) {
	chart, err := LoadChart("")
	require.NoError(t, err)

	acc, err := chart.Resolve(context.Background(), id.New(), "4111.00023")
	require.NoError(t, err)
	assert.Equal(t, "4111", acc.Code)
}

func TestLoadChart_File(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "chart.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
accounts:
  - code: "6588"
    name: Alte cheltuieli de exploatare
  - code: "8039"
    name: Alte valori in afara bilantului
    function: X
`), 0o600))

	chart, err := LoadChart(yamlPath)
	require.NoError(t, err)

	acc, err := chart.Resolve(context.Background(), id.New(), "6588")
	require.NoError(t, err)
	assert.Equal(t, accounts.FunctionActive, acc.Function)

	acc, err = chart.Resolve(context.Background(), id.New(), "8039")
	require.NoError(t, err)
	assert.Equal(t, accounts.FunctionOffBalance, acc.Function)

	jsonPath := filepath.Join(dir, "chart.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"accounts":[{"code":"6588.01","name":"x"}]}`), 0o600))
	_, err = LoadChart(jsonPath)
	assert.Error(t, err, "analytic codes cannot be configured")
}

func TestLoadChart_UnknownAccountStillRejected(t *testing.T) {
	chart, err := LoadChart("")
	require.NoError(t, err)

	_, err = chart.Resolve(context.Background(), id.New(), "6588")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAccount))
}
