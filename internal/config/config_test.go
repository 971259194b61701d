package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/planner/internal/tracker"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("STORAGE_DRIVER", "")

	cfg := Load()
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, DriverPostgres, cfg.StorageDriver)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/planner.db")
	t.Setenv("KAFKA_BROKERS", " a:9092 , ,b:9092")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("DLQ_BASE_DELAY", "5s")

	cfg := Load()
	require.Equal(t, DriverSQLite, cfg.StorageDriver)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, 5*time.Second, cfg.DLQBaseDelay)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Config{StorageDriver: "redis", OutboxBatchSize: 0}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "STORAGE_DRIVER")
	require.Contains(t, err.Error(), "OUTBOX_BATCH_SIZE")
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestParseLabelsOverridesDefaults(t *testing.T) {
	labels, err := ParseLabels([]byte("[labels]\nDAILY = \"Every day\"\nonce = \"One-off\"\n"))
	require.NoError(t, err)
	require.Equal(t, "Every day", labels.Label(tracker.Daily))
	require.Equal(t, "One-off", labels.Label(tracker.Once))
	require.Equal(t, "Semanales", labels.Label(tracker.Weekly))

	_, err = ParseLabels([]byte("[labels]\nYEARLY = \"Anuales\"\n"))
	require.Error(t, err)
}

func TestLoadLabelsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.toml")
	require.NoError(t, os.WriteFile(path, []byte("[labels]\nMONTHLY = \"Monthly\"\n"), 0o600))

	labels, err := Config{LabelsFile: path}.LoadLabels()
	require.NoError(t, err)
	require.Equal(t, "Monthly", labels[tracker.Monthly])

	labels, err = Config{}.LoadLabels()
	require.NoError(t, err)
	require.Equal(t, tracker.DefaultLabels(), labels)
}
