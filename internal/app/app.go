// Package app assembles the pipeline and its collaborators from configuration.
// Every binary builds the same graph; only the transports around it differ.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/labaccess-backend/internal/badges"
	"github.com/angelmondragon/labaccess-backend/internal/messages"
	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/internal/runs"
	"github.com/angelmondragon/labaccess-backend/internal/trigger"
	"github.com/angelmondragon/labaccess-backend/internal/workbook"
	"github.com/angelmondragon/labaccess-backend/internal/workspace/calendar"
	"github.com/angelmondragon/labaccess-backend/internal/workspace/drive"
	"github.com/angelmondragon/labaccess-backend/internal/workspace/forms"
	"github.com/angelmondragon/labaccess-backend/internal/workspace/gmail"
	sheetsapi "github.com/angelmondragon/labaccess-backend/internal/workspace/sheets"
	"github.com/angelmondragon/labaccess-backend/pkg/config"
	"github.com/angelmondragon/labaccess-backend/pkg/db"
	"github.com/angelmondragon/labaccess-backend/pkg/idempotency"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
	"github.com/angelmondragon/labaccess-backend/pkg/metrics"
	"github.com/angelmondragon/labaccess-backend/pkg/migrate"
	"github.com/angelmondragon/labaccess-backend/pkg/qrcode"
	"github.com/angelmondragon/labaccess-backend/pkg/redis"
	"github.com/angelmondragon/labaccess-backend/pkg/storage/gcs"
)

const pipelineLockName = "pipeline"

// App holds the assembled service graph.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.PipelineMetrics

	DB    *db.Client
	Redis *redis.Client
	GCS   *gcs.Client

	Sheets   pipeline.SheetStore
	Workbook *workbook.Store
	Pipeline *pipeline.Pipeline
	Trigger  *trigger.Handler
	// Dedupe is nil when redis is not configured.
	Dedupe   *idempotency.Manager
	Verifier *badges.Verifier
	Runs     runs.Repository

	closers []func() error
}

// Build connects every dependency named by cfg. On error everything opened
// so far is closed.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logg}
	built, err := a.build(ctx, cfg, logg)
	if err != nil {
		if closeErr := a.Close(); closeErr != nil {
			logg.Error(ctx, "release partially built app", closeErr)
		}
		return nil, err
	}
	return built, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*App, error) {

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewPipelineMetrics(a.Registry)

	a.DB, err = db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	a.closers = append(a.closers, a.DB.Close)
	if err := migrate.MaybeRunDev(ctx, cfg, logg, a.DB); err != nil {
		return nil, fmt.Errorf("run dev migrations: %w", err)
	}

	if cfg.Redis.Enabled() {
		a.Redis, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		a.closers = append(a.closers, a.Redis.Close)
	}

	ws, err := a.workspace(ctx, cfg, loc)
	if err != nil {
		return nil, err
	}
	a.Sheets = ws.sheets

	renderer, err := messages.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("load message templates: %w", err)
	}
	dispatcher, err := messages.NewDispatcher(ws.mailer, renderer,
		messages.WithSender(cfg.Mail.Sender),
		messages.WithSMSGateway(cfg.Mail.SMSGateway),
	)
	if err != nil {
		return nil, err
	}

	store, err := a.badgeStore(ctx, cfg, ws)
	if err != nil {
		return nil, err
	}
	registry := badges.NewRegistry(a.DB.DB())
	qrOpts := []qrcode.Option{qrcode.WithBaseURL(cfg.QR.BaseURL)}
	if cfg.QR.Timeout > 0 {
		qrOpts = append(qrOpts, qrcode.WithHTTPClient(&http.Client{Timeout: cfg.QR.Timeout}))
	}
	generator, err := badges.NewGenerator(badges.GeneratorParams{
		QR:       qrcode.NewClient(qrOpts...),
		Store:    store,
		Recorder: registry,
		Size:     cfg.QR.Size,
	})
	if err != nil {
		return nil, err
	}
	a.Verifier = badges.NewVerifier(registry)

	a.Runs = runs.NewRepository(a.DB.DB())

	var lock pipeline.Locker
	if cfg.Pipeline.UsesRedisLock() {
		if a.Redis == nil {
			return nil, fmt.Errorf("redis lock requires %s", config.EnvRedisURL)
		}
		lock, err = pipeline.NewRedisLock(a.Redis, a.Redis.LockKey(pipelineLockName), cfg.Pipeline.LockTTL)
		if err != nil {
			return nil, err
		}
	}

	params := pipeline.Params{
		Logger:      logg,
		Sheets:      ws.sheets,
		Calendar:    ws.calendar,
		Notifier:    dispatcher,
		Badges:      generator,
		Runs:        runs.NewRecorder(a.Runs),
		Metrics:     a.Metrics,
		Lock:        lock,
		Location:    loc,
		UserSheet:   cfg.Sheets.UserSheet,
		BasketSheet: cfg.Sheets.BasketSheet,
		FormIDs: map[string]string{
			cfg.Sheets.UserSheet:   cfg.Sheets.UserFormID,
			cfg.Sheets.BasketSheet: cfg.Sheets.BasketFormID,
		},
		LinkBase:  cfg.Sheets.DirectoryLinkBase,
		BadgeSize: cfg.QR.Size,
	}
	if ws.forms != nil {
		params.Forms = ws.forms
	}
	a.Pipeline, err = pipeline.New(params)
	if err != nil {
		return nil, err
	}

	handlerParams := trigger.HandlerParams{Pipeline: a.Pipeline, Metrics: a.Metrics, Logger: logg}
	if a.Redis != nil {
		a.Dedupe, err = idempotency.NewManager(a.Redis, cfg.Eventing.IdempotencyTTL)
		if err != nil {
			return nil, err
		}
		handlerParams.Dedupe = a.Dedupe
	}
	a.Trigger, err = trigger.NewHandler(handlerParams)
	if err != nil {
		return nil, err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"sheets_backend": cfg.Sheets.Backend,
		"badge_store":    cfg.Badges.Store,
		"pipeline_lock":  cfg.Pipeline.Lock,
		"dedupe":         a.Redis != nil,
	}), "pipeline assembled")
	return a, nil
}

type workspace struct {
	sheets   pipeline.SheetStore
	calendar pipeline.Calendar
	forms    *forms.Client
	mailer   messages.Mailer
}

func (a *App) workspace(ctx context.Context, cfg *config.Config, loc *time.Location) (*workspace, error) {
	if cfg.Sheets.IsWorkbook() {
		wb, err := workbook.Open(cfg.Sheets.WorkbookPath, loc)
		if err != nil {
			return nil, err
		}
		a.Workbook = wb
		a.closers = append(a.closers, wb.Close)
		if err := wb.EnsureSheet(cfg.Sheets.UserSheet, workbook.UserHeader); err != nil {
			return nil, fmt.Errorf("prepare user sheet: %w", err)
		}
		if err := wb.EnsureSheet(cfg.Sheets.BasketSheet, workbook.BasketHeader); err != nil {
			return nil, fmt.Errorf("prepare basket sheet: %w", err)
		}
		cal, err := workbook.NewCalendarFile(cfg.Calendar.ICSPath)
		if err != nil {
			return nil, err
		}
		outbox, err := workbook.NewOutbox(cfg.Mail.OutboxDir)
		if err != nil {
			return nil, err
		}
		return &workspace{sheets: wb, calendar: cal, mailer: outbox}, nil
	}

	sheets, err := sheetsapi.New(ctx, cfg.GCP, cfg.Google)
	if err != nil {
		return nil, fmt.Errorf("bootstrap sheets: %w", err)
	}
	cal, err := calendar.New(ctx, cfg.GCP, cfg.Google, cfg.Calendar)
	if err != nil {
		return nil, fmt.Errorf("bootstrap calendar: %w", err)
	}
	mailer, err := gmail.New(ctx, cfg.GCP, cfg.Google, cfg.Mail)
	if err != nil {
		return nil, fmt.Errorf("bootstrap gmail: %w", err)
	}
	ws := &workspace{sheets: sheets, calendar: cal, mailer: mailer}
	if cfg.Google.ScriptID != "" {
		ws.forms, err = forms.New(ctx, cfg.GCP, cfg.Google)
		if err != nil {
			return nil, fmt.Errorf("bootstrap forms: %w", err)
		}
	} else {
		a.Logger.Warn(ctx, "no apps script configured, form responses will not be cleared")
	}
	return ws, nil
}

func (a *App) badgeStore(ctx context.Context, cfg *config.Config, ws *workspace) (badges.Store, error) {
	switch {
	case cfg.Badges.UsesDir():
		return badges.NewDirStore(cfg.Badges.Dir)
	case cfg.Badges.UsesGCS():
		client, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap gcs: %w", err)
		}
		a.GCS = client
		a.closers = append(a.closers, client.Close)
		return badges.NewGCSStore(client.BucketHandle(cfg.GCS.BucketName), cfg.Badges.GCSPrefix)
	default:
		return drive.New(ctx, cfg.GCP, cfg.Google, cfg.Badges)
	}
}

// Close releases every opened client, newest first.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
