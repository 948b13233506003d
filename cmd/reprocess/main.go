package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/labaccess-backend/internal/app"
	"github.com/angelmondragon/labaccess-backend/internal/trigger"
	"github.com/angelmondragon/labaccess-backend/pkg/config"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
	"github.com/angelmondragon/labaccess-backend/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "reprocess"})

	_ = godotenv.Load()

	sheet := flag.String("sheet", "", "sheet to act on (defaults to the user sheet)")
	row := flag.Int("row", 0, "1-based row number; 0 selects the last row")
	publishOnly := flag.Bool("publish", false, "enqueue the row for the worker instead of processing it here")
	export := flag.Bool("export", false, "print processed registrations from the user sheet as JSON")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	cfg.Service.Kind = "reprocess"

	logg = logger.New(logger.Options{
		ServiceName: "reprocess",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	if *sheet == "" {
		*sheet = cfg.Sheets.UserSheet
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "sheet": *sheet})

	a, err := app.Build(ctx, cfg, logg)
	requireResource(ctx, logg, "pipeline", err)
	defer func() {
		if err := a.Close(); err != nil {
			logg.Error(ctx, "error closing dependencies", err)
		}
	}()

	if *export {
		summary, err := exportUsers(ctx, a.Sheets, cfg.Sheets.UserSheet, os.Stdout)
		requireResource(ctx, logg, "export", err)
		for _, skipped := range summary.Skipped {
			logg.Warn(logg.WithFields(ctx, map[string]any{"row": skipped.Row, "reason": skipped.Reason}), "marker skipped")
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"users":   summary.Exported,
			"skipped": len(summary.Skipped),
		}), "export complete")
		return
	}

	rowNum, err := target(ctx, a.Sheets, *sheet, *row)
	requireResource(ctx, logg, "row", err)
	ctx = logg.WithField(ctx, "row", rowNum)

	if *publishOnly {
		client, err := pubsub.NewPublisherClient(ctx, cfg.GCP, cfg.PubSub)
		requireResource(ctx, logg, "pubsub", err)
		defer func() {
			if err := client.Close(); err != nil {
				logg.Error(ctx, "failed to close pubsub client", err)
			}
		}()
		topic := client.SubmissionPublisher()
		if topic == nil {
			requireResource(ctx, logg, "submission topic", fmt.Errorf("topic not configured"))
		}
		defer topic.Stop()

		event := trigger.Event{
			EventID: uuid.NewString(),
			Sheet:   *sheet,
			Row:     rowNum,
			FormID:  cfg.Sheets.FormID(*sheet),
		}
		id, err := publish(ctx, &gcpPublisher{Publisher: topic}, event)
		requireResource(ctx, logg, "publish", err)
		logg.Info(logg.WithFields(ctx, map[string]any{"event_id": event.EventID, "message_id": id}), "submission enqueued")
		return
	}

	res, err := runLocal(ctx, a.Pipeline, *sheet, rowNum, cfg.Sheets.FormID(*sheet))
	if res != nil {
		out := map[string]any{"runId": res.RunID, "kind": res.Kind, "stage": res.Stage, "row": res.Row}
		_ = json.NewEncoder(os.Stdout).Encode(out)
	}
	requireResource(ctx, logg, "pipeline run", err)
	logg.Info(ctx, "reprocess complete")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
