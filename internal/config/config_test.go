package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_DISABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.Equal(t, uint64(5), cfg.RegenerateMaxRetries)
	assert.Equal(t, "lorem", cfg.DefaultProvider)
	assert.Equal(t, AttachmentsDisabled, cfg.AttachmentsBackend)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoad_DerivesJWKSURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://example.supabase.co/auth/v1/.well-known/jwks.json", cfg.SupabaseJWKSURL)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "postgres without url",
			env:  map[string]string{"STORE_DRIVER": "postgres", "AUTH_DISABLED": "true"},
		},
		{
			name: "unknown store",
			env:  map[string]string{"STORE_DRIVER": "sqlite", "AUTH_DISABLED": "true"},
		},
		{
			name: "s3 without bucket",
			env:  map[string]string{"STORE_DRIVER": "memory", "AUTH_DISABLED": "true", "ATTACHMENTS_BACKEND": "s3"},
		},
		{
			name: "auth disabled in prod",
			env:  map[string]string{"STORE_DRIVER": "memory", "AUTH_DISABLED": "true", "ENVIRONMENT": "prod"},
		},
		{
			name: "auth enabled without jwks",
			env:  map[string]string{"STORE_DRIVER": "memory"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN", "prod"))
	assert.Equal(t, slog.LevelDebug, parseLevel("", "dev"))
	assert.Equal(t, slog.LevelInfo, parseLevel("", "prod"))
}

func TestSetupLogFile_CleansUpOldFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"parley-2020-01-01T00-00-00.log", "parley-2020-01-02T00-00-00.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	f, err := SetupLogFile(dir, 2)
	require.NoError(t, err)
	defer f.Close()

	files, err := filepath.Glob(filepath.Join(dir, "parley-*.log"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.NotContains(t, files, filepath.Join(dir, "parley-2020-01-01T00-00-00.log"))
}
