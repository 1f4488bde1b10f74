package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/showshelf/showshelf/internal/catalog"
	"github.com/showshelf/showshelf/internal/config"
	"github.com/showshelf/showshelf/internal/page"
	"github.com/showshelf/showshelf/internal/ratings"
	"github.com/showshelf/showshelf/internal/service"
	"github.com/showshelf/showshelf/internal/shell"
	"github.com/showshelf/showshelf/internal/store"
	"github.com/showshelf/showshelf/pkg/log"
)

func main() {
	_ = godotenv.Load()

	// Two-step load: the data directory comes from the environment, the
	// user-editable settings live inside it.
	baseCfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("failed to load configuration: %v", err)
	}
	settingsPath := baseCfg.Storage.SettingsPath()
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		log.Fatal("failed to load settings: %v", err)
	}
	cfg, err := config.NewFromEnv(config.WithSettings(settings))
	if err != nil {
		log.Fatal("failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))

	// First run: persist the defaults so the user has a file to edit.
	if _, statErr := os.Stat(settingsPath); os.IsNotExist(statErr) {
		if err := config.SaveSettings(settingsPath, settings); err != nil {
			log.Warn("could not write settings file: %v", err)
		}
	}

	client, err := catalog.NewClient(cfg.Catalog)
	if err != nil {
		log.Fatal("failed to build catalog client: %v", err)
	}
	st, err := store.NewSQLiteStore(cfg.Storage.DBPath())
	if err != nil {
		log.Fatal("failed to open cache: %v", err)
	}
	defer st.Close()

	svc := service.New(cfg, settings, client, ratings.NewClient(cfg.Ratings), st, page.NewGenerator(cfg.Page))

	command := "shell"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx := context.Background()
	switch command {
	case "shell":
		if err := shell.New(svc, os.Stdin, os.Stdout).Run(ctx); err != nil {
			log.Fatal("shell: %v", err)
		}
	case "generate":
		if err := svc.GeneratePage(ctx); err != nil {
			log.Fatal("generate: %v", err)
		}
		log.Info("page written to %s", settings.OutputFile)
	case "refresh":
		ok, failed, err := svc.RefreshAll(ctx)
		if err != nil {
			log.Fatal("refresh: %v", err)
		}
		log.Info("refreshed %d, failed %d", ok, failed)
	case "backup":
		dest, err := svc.Backup(ctx)
		if err != nil {
			log.Fatal("backup: %v", err)
		}
		log.Info("backup written to %s", dest)
	case "watch":
		runWatch(ctx, svc, cfg.Refresh.CronExpr)
	default:
		fmt.Fprintf(os.Stderr, "usage: showshelf [shell|generate|refresh|backup|watch]\n")
		os.Exit(2)
	}
}

// runWatch refreshes the shelf, regenerates the page and snapshots the
// database on the configured schedule.
func runWatch(ctx context.Context, svc *service.Service, cronExpr string) {
	c := cron.New()
	_, err := c.AddFunc(cronExpr, func() {
		ok, failed, err := svc.RefreshAll(ctx)
		if err != nil {
			log.Error("scheduled refresh: %v", err)
			return
		}
		log.Info("scheduled refresh: %d ok, %d failed", ok, failed)

		if err := svc.GeneratePage(ctx); err != nil {
			log.Error("scheduled generate: %v", err)
		}
		if _, err := svc.Backup(ctx); err != nil {
			log.Error("scheduled backup: %v", err)
		}
	})
	if err != nil {
		log.Fatal("invalid refresh schedule %q: %v", cronExpr, err)
	}
	log.Info("watching on schedule %q", cronExpr)
	c.Run()
}
