package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// newFlagSet mirrors the flags the command registers.
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	fs.String("store", "memory", "")
	fs.String("endpoint", "", "")
	fs.String("api-key", "", "")
	fs.String("access-key", "", "")
	fs.String("secret-key", "", "")
	fs.Bool("secure", true, "")
	fs.String("bucket", "", "")
	fs.String("prefix", "", "")

	fs.String("input", "", "")
	fs.Int("max-workers", 5, "")
	fs.Int("batch-size", 100, "")
	fs.Int("max-concurrent-batches", 4, "")
	fs.Int("retry-attempts", 3, "")
	fs.Int("retry-delay-ms", 500, "")
	fs.Int("max-retry-delay-ms", 30000, "")
	fs.Int("timeout-per-item-ms", 30000, "")
	fs.Bool("dedup", true, "")
	fs.Int("progress-interval-ms", 30000, "")
	fs.Bool("retry-unknown", false, "")
	fs.Bool("drain-on-cancel", true, "")
	fs.Bool("dry-run", false, "")
	fs.String("journal", "", "")
	fs.String("retry-failed", "", "")
	fs.String("report", "", "")
	fs.String("metrics-addr", "", "")
	fs.String("log-level", "info", "")

	return fs
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	fs := newFlagSet()
	require.NoError(t, fs.Set("endpoint", "https://memories.example.com"))
	require.NoError(t, fs.Set("input", "records.jsonl"))

	cfg, err := Load("", fs)
	require.NoError(t, err)

	require.Equal(t, "memory", cfg.Store.Backend)
	require.Equal(t, "https://memories.example.com", cfg.Store.Endpoint)
	require.True(t, cfg.Store.Secure)
	require.Equal(t, "records.jsonl", cfg.Upload.Input)
	require.Equal(t, 5, cfg.Upload.MaxWorkers)
	require.Equal(t, 100, cfg.Upload.BatchSize)
	require.Equal(t, 4, cfg.Upload.MaxConcurrentBatches)
	require.Equal(t, 3, cfg.Upload.RetryAttempts)
	require.Equal(t, 500, cfg.Upload.RetryDelayMs)
	require.Equal(t, 30000, cfg.Upload.MaxRetryDelayMs)
	require.Equal(t, 30000, cfg.Upload.TimeoutPerItemMs)
	require.True(t, cfg.Upload.DedupEnabled)
	require.Equal(t, 30000, cfg.Upload.ProgressIntervalMs)
	require.False(t, cfg.Upload.RetryUnknown)
	require.True(t, cfg.Upload.DrainOnCancel)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
store:
  backend: s3
  endpoint: s3.example.com
  access_key: ak
  secret_key: sk
  bucket: mail
  prefix: memories
upload:
  input: records.jsonl
  max_workers: 8
  batch_size: 50
  dedup: false
log_level: debug
`)

	cfg, err := Load(path, newFlagSet())
	require.NoError(t, err)

	require.Equal(t, "s3", cfg.Store.Backend)
	require.Equal(t, "s3.example.com", cfg.Store.Endpoint)
	require.Equal(t, "mail", cfg.Store.Bucket)
	require.Equal(t, "memories", cfg.Store.Prefix)
	require.Equal(t, 8, cfg.Upload.MaxWorkers)
	require.Equal(t, 50, cfg.Upload.BatchSize)
	require.False(t, cfg.Upload.DedupEnabled)
	// Values the file does not set keep their defaults.
	require.Equal(t, 4, cfg.Upload.MaxConcurrentBatches)
	require.True(t, cfg.Store.Secure)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `
store:
  endpoint: file.example.com
upload:
  input: file.jsonl
  max_workers: 8
`)

	fs := newFlagSet()
	require.NoError(t, fs.Set("endpoint", "flag.example.com"))
	require.NoError(t, fs.Set("max-workers", "12"))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	require.Equal(t, "flag.example.com", cfg.Store.Endpoint)
	require.Equal(t, 12, cfg.Upload.MaxWorkers)
	// Untouched flags do not clobber file values.
	require.Equal(t, "file.jsonl", cfg.Upload.Input)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]string
		wantErr string
	}{
		{
			name:    "missing endpoint",
			set:     map[string]string{"input": "records.jsonl"},
			wantErr: "store endpoint is required",
		},
		{
			name:    "missing input",
			set:     map[string]string{"endpoint": "x.example.com"},
			wantErr: "input file is required",
		},
		{
			name:    "unknown backend",
			set:     map[string]string{"store": "tape", "endpoint": "x.example.com", "input": "records.jsonl"},
			wantErr: "unknown store backend",
		},
		{
			name:    "s3 missing access key",
			set:     map[string]string{"store": "s3", "endpoint": "x.example.com", "input": "records.jsonl"},
			wantErr: "access key is required",
		},
		{
			name: "s3 missing bucket",
			set: map[string]string{
				"store": "s3", "endpoint": "x.example.com", "access-key": "ak", "secret-key": "sk", "input": "records.jsonl",
			},
			wantErr: "bucket is required",
		},
		{
			name:    "retry-failed requires journal",
			set:     map[string]string{"endpoint": "x.example.com", "retry-failed": "last"},
			wantErr: "retry-failed requires a journal",
		},
		{
			name:    "zero workers",
			set:     map[string]string{"endpoint": "x.example.com", "input": "records.jsonl", "max-workers": "0"},
			wantErr: "max workers must be positive",
		},
		{
			name:    "zero batch size",
			set:     map[string]string{"endpoint": "x.example.com", "input": "records.jsonl", "batch-size": "0"},
			wantErr: "batch size must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFlagSet()
			for k, v := range tt.set {
				require.NoError(t, fs.Set(k, v))
			}

			_, err := Load("", fs)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_RetryFailedNeedsNoInput(t *testing.T) {
	fs := newFlagSet()
	require.NoError(t, fs.Set("endpoint", "memories.example.com"))
	require.NoError(t, fs.Set("journal", "journal.db"))
	require.NoError(t, fs.Set("retry-failed", "last"))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	require.Empty(t, cfg.Upload.Input)
	require.Equal(t, "last", cfg.Upload.RetryFailed)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), newFlagSet())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config file")
}
