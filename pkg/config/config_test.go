// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/samizdat/pkg/storage"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "samizdatd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadEmptyPath(t *testing.T) {
	require := require.New(t)

	cfg, err := Load("")
	require.NoError(err)
	require.Equal(Default(), cfg)
}

func TestLoadNormalizes(t *testing.T) {
	require := require.New(t)
	path := writeConfig(t, `
api:
  listen: " :7000 "
  mode: " DEBUG "
  cors_origins:
    - " https://screens.example "
    - " "
storage:
  backend: Bolt
  path: " /var/lib/samizdat/state.db "
log:
  level: WARN
`)
	cfg, err := Load(path)
	require.NoError(err)
	require.Equal(":7000", cfg.API.Listen)
	require.Equal(ModeDebug, cfg.API.Mode)
	require.Equal([]string{"https://screens.example"}, cfg.API.CORSOrigins)
	require.Equal(DefaultAdminListen, cfg.Admin.Listen)
	require.Equal(storage.BackendBolt, cfg.Storage.Backend)
	require.Equal("/var/lib/samizdat/state.db", cfg.Storage.Path)
	require.Equal("warn", cfg.Log.Level)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{
			name:     "bolt without path",
			contents: "storage:\n  backend: bolt\n",
		},
		{
			name:     "postgres without dsn",
			contents: "storage:\n  backend: postgres\n",
		},
		{
			name:     "unknown backend",
			contents: "storage:\n  backend: leveldb\n",
		},
		{
			name:     "unknown mode",
			contents: "api:\n  mode: turbo\n",
		},
		{
			name:     "shared listener",
			contents: "api:\n  listen: \":9000\"\nadmin:\n  listen: \":9000\"\n",
		},
		{
			name:     "bad log level",
			contents: "log:\n  level: chatty\n",
		},
		{
			name:     "unknown field",
			contents: "api:\n  port: 80\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.contents))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFinalizeAfterOverride(t *testing.T) {
	require := require.New(t)

	cfg := Default()
	cfg.Storage.Backend = storage.BackendPostgres
	require.Error(cfg.Finalize())

	cfg.Storage.DSN = "postgres://samizdat@localhost/samizdat"
	require.NoError(cfg.Finalize())
}
