package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/billr/internal/entries"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"PAYMO_API_KEY", "TRELLO_KEY", "KEY", "TRELLO_TOKEN", "TOKEN", "EXCLUDED_PROJECTS",
		"VOUCHER_STATUS_IDS", "HEADCOUNT", "BILLR_STORE_BACKEND", "BILLR_POSTGRES_DSN",
		"DAILY_BOARD_ID", "BILLR_LOG_LEVEL", "BILLR_MARKER_PATTERN",
	} {
		t.Setenv(k, "")
	}
	return home
}

func TestLoad_FirstRunWritesTemplate(t *testing.T) {
	home := setHome(t)

	cfg, err := Load("")
	require.NoError(t, err)

	path := filepath.Join(home, ".billr", "config.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configTemplate, string(data))

	assert.Equal(t, filepath.Join(home, ".billr"), cfg.Store.Dir)
	assert.Equal(t, DefaultHeadcount, cfg.Report.Headcount)
	assert.Equal(t, "file", cfg.Store.Backend)
}

func TestTemplateMatchesDefaults(t *testing.T) {
	home := setHome(t)
	path := filepath.Join(home, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(configTemplate), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Defaults(filepath.Join(home, ".billr"))
	want.Store.SQLitePath = filepath.Join(home, ".billr", "billr.db")
	assert.Equal(t, want.Reconcile, cfg.Reconcile)
	assert.Equal(t, want.Sheets, cfg.Sheets)
	assert.Equal(t, want.Store, cfg.Store)
	assert.Equal(t, want.Log, cfg.Log)
	assert.Equal(t, want.Report.Headcount, cfg.Report.Headcount)
	assert.Equal(t, entries.DefaultMarkerPattern, cfg.Reconcile.MarkerPattern)
}

func TestLoad_FileValues(t *testing.T) {
	home := setHome(t)
	path := filepath.Join(home, "billr.json")
	require.NoError(t, os.WriteFile(path, []byte(`// custom
{
  "trello": {"daily_board_id": "b1"},
  // pacing
  "reconcile": {"pace_interval": "2s", "retry_attempts": 5},
  "report": {"excluded_projects": [4, 5], "headcount": 7},
  "store": {"backend": "sqlite", "dir": "/var/lib/billr"}
}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "b1", cfg.Trello.DailyBoardID)
	assert.Equal(t, Duration(2*time.Second), cfg.Reconcile.PaceInterval)
	assert.Equal(t, 5, cfg.Reconcile.RetryAttempts)
	assert.Equal(t, []int64{4, 5}, cfg.Report.ExcludedProjects)
	assert.Equal(t, 7, cfg.Report.Headcount)
	assert.Equal(t, "/var/lib/billr/billr.db", cfg.Store.SQLitePath)
	assert.Equal(t, "New Tasks", cfg.Trello.NewTasksList)
}

func TestLoad_SQLitePathFollowsDir(t *testing.T) {
	home := setHome(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"default dir", `{}`, filepath.Join(home, ".billr", "billr.db")},
		{"custom dir", `{"store": {"dir": "/srv/billr"}}`, "/srv/billr/billr.db"},
		{"explicit path", `{"store": {"dir": "/srv/billr", "sqlite_path": "/data/cache.db"}}`, "/data/cache.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(home, "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Store.SQLitePath)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := setHome(t)
	path := filepath.Join(home, "billr.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"report": {"excluded_projects": [1], "headcount": 3}}`), 0o600))

	t.Setenv("PAYMO_API_KEY", "pk")
	t.Setenv("KEY", "legacy-key")
	t.Setenv("TRELLO_TOKEN", "tt")
	t.Setenv("EXCLUDED_PROJECTS", "10, 20,")
	t.Setenv("VOUCHER_STATUS_IDS", "5")
	t.Setenv("HEADCOUNT", "12")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pk", cfg.Paymo.APIKey)
	assert.Equal(t, "legacy-key", cfg.Trello.Key)
	assert.Equal(t, "tt", cfg.Trello.Token)
	assert.Equal(t, []int64{10, 20}, cfg.Report.ExcludedProjects)
	assert.Equal(t, []int64{5}, cfg.Report.VoucherStatusIDs)
	assert.Equal(t, 12, cfg.Report.Headcount)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{"broken json", `{"report": `, nil},
		{"bad duration", `{"reconcile": {"retry_delay": "soon"}}`, nil},
		{"numeric duration", `{"reconcile": {"retry_delay": 5}}`, nil},
		{"bad id list", `{}`, map[string]string{"EXCLUDED_PROJECTS": "1,x"}},
		{"bad headcount", `{}`, map[string]string{"HEADCOUNT": "many"}},
		{"unknown backend", `{"store": {"backend": "redis"}}`, nil},
		{"postgres without dsn", `{"store": {"backend": "postgres"}}`, nil},
		{"bad marker", `{"reconcile": {"marker_pattern": "("}}`, nil},
		{"negative headcount", `{"report": {"headcount": -1}}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := setHome(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(home, "billr.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestStripLineComments(t *testing.T) {
	in := "// head\n{\n  // note\n  \"a\": \"http://x\"\n}\n"
	assert.Equal(t, "{\n  \"a\": \"http://x\"\n}\n\n", string(stripLineComments([]byte(in))))
}
