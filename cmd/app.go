package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/billr/internal/config"
	"github.com/Tiliavir/billr/internal/entries"
	"github.com/Tiliavir/billr/internal/logger"
	"github.com/Tiliavir/billr/internal/metrics"
	"github.com/Tiliavir/billr/internal/pacer"
	"github.com/Tiliavir/billr/internal/paymo"
	"github.com/Tiliavir/billr/internal/projectcache"
	"github.com/Tiliavir/billr/internal/reconcile"
	"github.com/Tiliavir/billr/internal/report"
	"github.com/Tiliavir/billr/internal/retry"
	"github.com/Tiliavir/billr/internal/sheets"
	"github.com/Tiliavir/billr/internal/slack"
	"github.com/Tiliavir/billr/internal/storage"
	"github.com/Tiliavir/billr/internal/trello"
)

// app wires the collaborators of one command run.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	store   storage.Store
	marker  entries.Marker

	closeLog   func()
	closeStore func() error
}

// newApp loads configuration and opens the store. Configuration and storage
// failures end the process with exit code 2.
func newApp(ctx context.Context) *app {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, closeLog, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log = log.With(zap.String("run_id", uuid.NewString()))

	store, closeStore, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		log.Error("opening store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
		closeLog()
		os.Exit(2)
	}

	// Validated by config.Load.
	marker, _ := entries.NewMarker(cfg.Reconcile.MarkerPattern)

	return &app{
		cfg:        cfg,
		log:        log,
		metrics:    metrics.New(),
		store:      store,
		marker:     marker,
		closeLog:   closeLog,
		closeStore: closeStore,
	}
}

// close writes the metrics textfile and releases resources.
func (a *app) close() {
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.log.Warn("metrics textfile not written", zap.String("path", path), zap.Error(err))
		}
	}
	if err := a.closeStore(); err != nil {
		a.log.Warn("closing store", zap.Error(err))
	}
	a.closeLog()
}

func (a *app) policy() retry.Policy {
	p := retry.DefaultPolicy(a.log)
	p.Attempts = a.cfg.Reconcile.RetryAttempts
	p.Delay = time.Duration(a.cfg.Reconcile.RetryDelay)
	p.OnAttempt = a.metrics.ObserveAttempt
	return p
}

func (a *app) paymo() (*paymo.Client, error) {
	if a.cfg.Paymo.APIKey == "" {
		return nil, errors.New("PAYMO_API_KEY is not set")
	}
	return paymo.NewClient(a.cfg.Paymo.BaseURL, a.cfg.Paymo.APIKey, a.log), nil
}

func (a *app) trello() (*trello.Client, error) {
	if a.cfg.Trello.Key == "" || a.cfg.Trello.Token == "" {
		return nil, errors.New("TRELLO_KEY and TRELLO_TOKEN must be set")
	}
	return trello.NewClient(a.cfg.Trello.BaseURL, a.cfg.Trello.Key, a.cfg.Trello.Token, a.log), nil
}

func (a *app) sheets(ctx context.Context) (*sheets.Client, error) {
	sc := a.cfg.Sheets
	if sc.SpreadsheetID == "" {
		return nil, errors.New("no spreadsheet id configured (GOOGLE_SPREADSHEET_ID)")
	}
	var (
		ts  oauth2.TokenSource
		err error
	)
	switch {
	case sc.CredentialsBase64 != "":
		ts, err = sheets.TokenSourceFromBase64(ctx, sc.CredentialsBase64)
	case sc.CredentialsFile != "":
		ts, err = sheets.TokenSourceFromFile(ctx, sc.CredentialsFile)
	default:
		return nil, errors.New("GOOGLE_APPLICATION_CREDENTIALS_BASE64 is not set")
	}
	if err != nil {
		return nil, err
	}
	return sheets.NewClient(ctx, sc.BaseURL, sc.SpreadsheetID, ts, a.log), nil
}

func (a *app) projectCache(client *paymo.Client) *projectcache.Cache {
	return projectcache.New(a.store, client, a.policy(), a.metrics, a.log)
}

func (a *app) reconciler(cache *projectcache.Cache, client *paymo.Client) *reconcile.Reconciler {
	return &reconcile.Reconciler{
		Budgets: cache,
		Entries: client,
		Policy:  a.policy(),
		Pacer:   pacer.NewInterval(time.Duration(a.cfg.Reconcile.PaceInterval)),
		Marker:  a.marker,
		Metrics: a.metrics,
		Log:     a.log,
	}
}

// assembler builds the report assembler. Without dryRun the spreadsheet
// must be configured.
func (a *app) assembler(ctx context.Context, dryRun bool) (*report.Assembler, error) {
	pc, err := a.paymo()
	if err != nil {
		return nil, err
	}
	tc, err := a.trello()
	if err != nil {
		return nil, err
	}
	cache := a.projectCache(pc)

	asm := &report.Assembler{
		Entries:    pc,
		Cards:      tc,
		Projects:   cache,
		Reconciler: a.reconciler(cache, pc),
		Policy:     a.policy(),
		Pacer:      pacer.NewInterval(time.Duration(a.cfg.Reconcile.PaceInterval)),
		Marker:     a.marker,
		Metrics:    a.metrics,
		Log:        a.log,
		Options: report.Options{
			DailyBoardID:     a.cfg.Trello.DailyBoardID,
			DoneBoardID:      a.cfg.Trello.DoneBoardID,
			DoneListID:       a.cfg.Trello.DoneListID,
			NewTasksList:     a.cfg.Trello.NewTasksList,
			OverallSheet:     a.cfg.Sheets.OverallSheet,
			DailySheet:       a.cfg.Sheets.DailySheet,
			ExcludedProjects: a.cfg.Report.ExcludedProjects,
			VoucherStatusIDs: a.cfg.Report.VoucherStatusIDs,
			Headcount:        a.cfg.Report.Headcount,
			DryRun:           dryRun,
		},
	}
	if !dryRun {
		sc, err := a.sheets(ctx)
		if err != nil {
			return nil, err
		}
		asm.Sheets = sc
		if url := a.cfg.Slack.WebhookURL; url != "" {
			asm.Notifier = slack.NewNotifier(url)
		}
	}
	return asm, nil
}
