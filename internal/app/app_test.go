package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/labaccess-backend/pkg/config"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
)

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		App: config.AppConfig{Env: config.AppEnvDev, TimeZone: "UTC"},
		DB: config.DBConfig{
			Driver: config.DBDriverSQLite,
			DSN:    "file:" + filepath.Join(dir, "audit.db"),
		},
		Sheets: config.SheetsConfig{
			Backend:      config.SheetsBackendWorkbook,
			WorkbookPath: filepath.Join(dir, "labaccess.xlsx"),
			UserSheet:    "New User Registration",
			BasketSheet:  "Basket Assignment",
		},
		Calendar: config.CalendarConfig{ICSPath: filepath.Join(dir, "labaccess.ics")},
		Mail:     config.MailConfig{Sender: "lab@example.com", OutboxDir: filepath.Join(dir, "outbox")},
		QR:       config.QRConfig{BaseURL: "http://127.0.0.1:0/", Size: 255},
		Badges:   config.BadgesConfig{Store: config.BadgeStoreDir, Dir: filepath.Join(dir, "badges")},
		Pipeline: config.PipelineConfig{Lock: config.PipelineLockLocal},
	}
}

func TestBuildOfflineWorkspace(t *testing.T) {
	cfg := offlineConfig(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	a, err := Build(context.Background(), cfg, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NotNil(t, a.Workbook)
	require.NotNil(t, a.Pipeline)
	require.NotNil(t, a.Trigger)
	require.NotNil(t, a.Verifier)
	require.Nil(t, a.Redis)

	require.ElementsMatch(t, []string{cfg.Sheets.UserSheet, cfg.Sheets.BasketSheet}, a.Pipeline.Sheets())

	last, err := a.Sheets.LastRow(context.Background(), cfg.Sheets.UserSheet)
	require.NoError(t, err)
	require.Equal(t, 1, last)
}

func TestBuildRejectsRedisLockWithoutRedis(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Pipeline.Lock = config.PipelineLockRedis
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	a, err := Build(context.Background(), cfg, logg)
	require.Error(t, err)
	require.Nil(t, a)
}

func TestCloseIsIdempotent(t *testing.T) {
	calls := 0
	a := &App{closers: []func() error{func() error { calls++; return nil }}}
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.Equal(t, 1, calls)
}
