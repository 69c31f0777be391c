// Package config loads billr settings from ~/.billr/config.json, a .env file
// and the environment. Secrets are only ever read from the environment.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tiliavir/billr/internal/entries"
	"github.com/Tiliavir/billr/internal/pacer"
	"github.com/Tiliavir/billr/internal/report"
	"github.com/Tiliavir/billr/internal/retry"
	"github.com/Tiliavir/billr/internal/storage"
)

// Config is the root configuration. The file supports single-line //
// comments for documentation purposes.
type Config struct {
	Paymo     PaymoConfig     `json:"paymo"`
	Trello    TrelloConfig    `json:"trello"`
	Sheets    SheetsConfig    `json:"sheets"`
	Slack     SlackConfig     `json:"-"`
	Report    ReportConfig    `json:"report"`
	Reconcile ReconcileConfig `json:"reconcile"`
	Store     StoreConfig     `json:"store"`
	Log       LogConfig       `json:"log"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// PaymoConfig locates the time-tracking API.
type PaymoConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"-"`
}

// TrelloConfig names the boards and lists the report reads.
type TrelloConfig struct {
	BaseURL      string `json:"base_url"`
	DailyBoardID string `json:"daily_board_id"`
	DoneBoardID  string `json:"done_board_id"`
	DoneListID   string `json:"done_list_id"`
	NewTasksList string `json:"new_tasks_list"`
	Key          string `json:"-"`
	Token        string `json:"-"`
}

// SheetsConfig locates the report spreadsheet and its credentials.
type SheetsConfig struct {
	BaseURL       string `json:"base_url"`
	SpreadsheetID string `json:"spreadsheet_id"`
	OverallSheet  string `json:"overall_sheet"`
	DailySheet    string `json:"daily_sheet"`
	// CredentialsFile is a service-account JSON file, used when the base64
	// environment variable is unset.
	CredentialsFile   string `json:"credentials_file"`
	CredentialsBase64 string `json:"-"`
}

// SlackConfig holds the chat webhook; it is only read from the environment.
type SlackConfig struct {
	WebhookURL string
}

// ReportConfig selects the project sets and headcount of the report.
type ReportConfig struct {
	ExcludedProjects []int64 `json:"excluded_projects"`
	VoucherStatusIDs []int64 `json:"voucher_status_ids"`
	Headcount        int     `json:"headcount"`
}

// ReconcileConfig tunes retries, pacing and the invoiceable marker.
type ReconcileConfig struct {
	RetryAttempts int      `json:"retry_attempts"`
	RetryDelay    Duration `json:"retry_delay"`
	PaceInterval  Duration `json:"pace_interval"`
	MarkerPattern string   `json:"marker_pattern"`
}

// StoreConfig selects the durable cache backend.
type StoreConfig struct {
	Backend     string `json:"backend"`
	Dir         string `json:"dir"`
	SQLitePath  string `json:"sqlite_path"`
	PostgresDSN string `json:"-"`
}

// LogConfig sets the log level and optional rotating log file.
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// MetricsConfig names the node-exporter textfile, if any.
type MetricsConfig struct {
	Textfile string `json:"textfile"`
}

// Duration is a time.Duration written as a string such as "500ms".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"1s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

const (
	DefaultOverallSheet = "Overall stats"
	DefaultDailySheet   = "Daily stats"
	DefaultHeadcount    = 19
	DefaultLogLevel     = "info"
)

// Defaults returns a Config pre-filled with the built-in defaults. Paths are
// relative to dataDir.
func Defaults(dataDir string) Config {
	return Config{
		Trello: TrelloConfig{NewTasksList: report.DefaultNewTasksList},
		Sheets: SheetsConfig{
			OverallSheet: DefaultOverallSheet,
			DailySheet:   DefaultDailySheet,
		},
		Report: ReportConfig{Headcount: DefaultHeadcount},
		Reconcile: ReconcileConfig{
			RetryAttempts: retry.DefaultAttempts,
			RetryDelay:    Duration(retry.DefaultDelay),
			PaceInterval:  Duration(pacer.DefaultInterval),
			MarkerPattern: entries.DefaultMarkerPattern,
		},
		// SQLitePath is derived from the final Dir in fillDefaults.
		Store: StoreConfig{
			Backend: storage.BackendFile,
			Dir:     dataDir,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing.
const configTemplate = `// billr configuration - ~/.billr/config.json
//
// Secrets are never read from this file. Set them in the environment or in
// a .env file in the working directory:
//   PAYMO_API_KEY, TRELLO_KEY, TRELLO_TOKEN,
//   GOOGLE_APPLICATION_CREDENTIALS_BASE64, SLACK_WEBHOOK_URL,
//   BILLR_POSTGRES_DSN
{
  "paymo": {
    // Leave empty for the public API.
    "base_url": ""
  },

  "trello": {
    "base_url": "",
    // Board whose cards are worked on during the week.
    "daily_board_id": "",
    // Board and list that finished cards are moved to.
    "done_board_id": "",
    "done_list_id": "",
    // List on the daily board that new cards arrive in.
    "new_tasks_list": "New Tasks"
  },

  "sheets": {
    "base_url": "",
    "spreadsheet_id": "",
    "overall_sheet": "Overall stats",
    "daily_sheet": "Daily stats",
    // Service-account JSON, used when GOOGLE_APPLICATION_CREDENTIALS_BASE64 is unset.
    "credentials_file": ""
  },

  "report": {
    // Projects never counted as board billable time.
    "excluded_projects": [],
    // Project status ids marking voucher projects.
    "voucher_status_ids": [],
    // People the total billable time is divided by.
    "headcount": 19
  },

  "reconcile": {
    "retry_attempts": 3,
    // Pause after the last failed attempt.
    "retry_delay": "1s",
    // Minimum gap between two projects' entry fetches.
    "pace_interval": "500ms",
    // Reference link that makes a time entry invoiceable. The first group
    // captures the card short link.
    "marker_pattern": "trello\\.com/c/([a-zA-Z0-9]+)"
  },

  "store": {
    // file, sqlite, postgres or memory
    "backend": "file",
    // Empty means ~/.billr
    "dir": "",
    "sqlite_path": ""
  },

  "log": {
    // debug, info, warn or error
    "level": "info",
    // Optional rotating log file.
    "file": ""
  },

  "metrics": {
    // Prometheus textfile written after every run; empty disables it.
    "textfile": ""
  }
}
`

// DataDir returns ~/.billr.
func DataDir() (string, error) {
	return storage.BaseDir()
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads the config file at path (empty means ~/.billr/config.json),
// creating it with annotated defaults on first run, then applies .env and
// environment overrides.
func Load(path string) (Config, error) {
	dataDir, err := DataDir()
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		path = filepath.Join(dataDir, "config.json")
	}
	cfg := Defaults(dataDir)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := json.Unmarshal(stripLineComments(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.fillDefaults(dataDir)
	return cfg, cfg.Validate()
}

// applyEnv overlays environment variables on the file settings.
func (c *Config) applyEnv() error {
	c.Paymo.APIKey = getEnv("PAYMO_API_KEY", c.Paymo.APIKey)
	c.Paymo.BaseURL = getEnv("PAYMO_API_URL", c.Paymo.BaseURL)

	c.Trello.Key = getEnv("TRELLO_KEY", getEnv("KEY", c.Trello.Key))
	c.Trello.Token = getEnv("TRELLO_TOKEN", getEnv("TOKEN", c.Trello.Token))
	c.Trello.DailyBoardID = getEnv("DAILY_BOARD_ID", c.Trello.DailyBoardID)
	c.Trello.DoneBoardID = getEnv("DONE_BOARD_ID", c.Trello.DoneBoardID)
	c.Trello.DoneListID = getEnv("DONE_LIST_ID", c.Trello.DoneListID)

	c.Sheets.SpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.Sheets.SpreadsheetID)
	c.Sheets.CredentialsBase64 = getEnv("GOOGLE_APPLICATION_CREDENTIALS_BASE64", c.Sheets.CredentialsBase64)

	c.Slack.WebhookURL = getEnv("SLACK_WEBHOOK_URL", c.Slack.WebhookURL)

	c.Store.Backend = getEnv("BILLR_STORE_BACKEND", c.Store.Backend)
	c.Store.PostgresDSN = getEnv("BILLR_POSTGRES_DSN", c.Store.PostgresDSN)
	c.Log.Level = getEnv("BILLR_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("BILLR_LOG_FILE", c.Log.File)
	c.Metrics.Textfile = getEnv("BILLR_METRICS_TEXTFILE", c.Metrics.Textfile)
	c.Reconcile.MarkerPattern = getEnv("BILLR_MARKER_PATTERN", c.Reconcile.MarkerPattern)

	var err error
	if c.Report.ExcludedProjects, err = getEnvIDs("EXCLUDED_PROJECTS", c.Report.ExcludedProjects); err != nil {
		return err
	}
	if c.Report.VoucherStatusIDs, err = getEnvIDs("VOUCHER_STATUS_IDS", c.Report.VoucherStatusIDs); err != nil {
		return err
	}
	if v := os.Getenv("HEADCOUNT"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("HEADCOUNT: %w", err)
		}
		c.Report.Headcount = n
	}
	return nil
}

// fillDefaults replaces zero values a partially filled file left behind.
func (c *Config) fillDefaults(dataDir string) {
	d := Defaults(dataDir)
	if c.Store.Backend == "" {
		c.Store.Backend = d.Store.Backend
	}
	if c.Store.Dir == "" {
		c.Store.Dir = d.Store.Dir
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = filepath.Join(c.Store.Dir, "billr.db")
	}
	if c.Sheets.OverallSheet == "" {
		c.Sheets.OverallSheet = d.Sheets.OverallSheet
	}
	if c.Sheets.DailySheet == "" {
		c.Sheets.DailySheet = d.Sheets.DailySheet
	}
	if c.Trello.NewTasksList == "" {
		c.Trello.NewTasksList = d.Trello.NewTasksList
	}
	if c.Reconcile.RetryAttempts == 0 {
		c.Reconcile.RetryAttempts = d.Reconcile.RetryAttempts
	}
	if c.Reconcile.MarkerPattern == "" {
		c.Reconcile.MarkerPattern = d.Reconcile.MarkerPattern
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// Validate reports settings no command can run with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case storage.BackendFile, storage.BackendSQLite, storage.BackendMemory:
	case storage.BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store backend postgres needs BILLR_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Report.Headcount < 0 {
		return fmt.Errorf("headcount must not be negative, got %d", c.Report.Headcount)
	}
	if c.Reconcile.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1, got %d", c.Reconcile.RetryAttempts)
	}
	if _, err := entries.NewMarker(c.Reconcile.MarkerPattern); err != nil {
		return err
	}
	return nil
}

// StorageOptions returns the options for storage.Open.
func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:     c.Store.Backend,
		Dir:         c.Store.Dir,
		SQLitePath:  c.Store.SQLitePath,
		PostgresDSN: c.Store.PostgresDSN,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvIDs parses a comma-separated id list such as "12,34".
func getEnvIDs(key string, fallback []int64) ([]int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
