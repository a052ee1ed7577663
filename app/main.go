package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexfeed/lexfeed/app/api"
	"github.com/lexfeed/lexfeed/app/cfg"
	"github.com/lexfeed/lexfeed/app/content"
	"github.com/lexfeed/lexfeed/app/database"
	"github.com/lexfeed/lexfeed/app/enrich"
	"github.com/lexfeed/lexfeed/app/feed"
	"github.com/lexfeed/lexfeed/app/newsletter"
	"github.com/lexfeed/lexfeed/app/site"
	"github.com/lexfeed/lexfeed/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was requested.
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting LexFeed", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	migrationVersion, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run database migrations", "error", err.Error())
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", migrationVersion, "dirty", dirty)

	sources := database.NewSourceRepository(db)
	articles := database.NewArticleRepository(db)
	store := database.NewContentRepository(db)

	if cfg.MigrateLegacyRequested() {
		code := runLegacyMigration(db, articles, store)
		db.Close()
		os.Exit(code)
	}

	sourceCache := feed.NewSourceCache(appCfg.SourcesDir)
	if err := sourceCache.Run(); err != nil {
		slog.Error("Failed to load source configurations", "error", err.Error())
		os.Exit(1)
	}
	slog.Info("Source configurations loaded", "dir", appCfg.SourcesDir, "count", sourceCache.GetConfigCount())

	extractor := feed.NewExtractor(appCfg.UserAgent)
	collector := feed.NewCollector(sources, articles, sourceCache, extractor, appCfg.UserAgent)

	mode := content.ModeLenient
	if appCfg.StrictValidation {
		mode = content.ModeStrict
	}
	llmClient := enrich.NewClient(appCfg.LLMBaseURL, appCfg.LLMAPIKey, appCfg.LLMModel)
	processor := enrich.NewProcessor(articles, store, llmClient, content.NewValidator(mode),
		appCfg.BatchSize, appCfg.MaxFailures)

	siteGenerator, err := site.NewGenerator(articles, store, appCfg.SiteDir, appCfg.BaseUrl)
	if err != nil {
		slog.Error("Failed to initialize site generator", "error", err.Error())
		os.Exit(1)
	}

	sender := newsletter.NewSender(articles, store, newsletter.NewClient(appCfg.ButtondownAPIKey), appCfg.BaseUrl)

	scheduler := tasks.NewScheduler(sourceCache, sources, articles, collector, processor, siteGenerator)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)

	handler := api.NewHandler(articles, store, sources, scheduler, processor, sender)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err.Error())
	}

	slog.Info("Shutdown complete")
}

// runLegacyMigration imports the deprecated wide-table rows into the
// normalized content tables, marks the affected articles processed, and
// exits. Safe to run repeatedly.
func runLegacyMigration(db *database.DB, articles database.ArticleRepository, store database.ContentRepository) int {
	legacy := database.NewLegacyRepository(db)

	rows, err := legacy.GetLegacyRows()
	if err != nil {
		slog.Error("Failed to read legacy rows", "error", err.Error())
		return 1
	}

	if len(rows) == 0 {
		slog.Info("No legacy rows to migrate")
		return 0
	}

	migrated, failed := 0, 0
	for _, row := range rows {
		if err := store.MigrateLegacyRow(row, content.Difficulties, content.Languages); err != nil {
			slog.Error("Failed to migrate legacy row", "article_id", row.ArticleID, "error", err.Error())
			failed++
			continue
		}

		if err := articles.RecordSuccess(row.ArticleID, time.Now().UTC()); err != nil {
			slog.Error("Failed to mark migrated article processed", "article_id", row.ArticleID, "error", err.Error())
			failed++
			continue
		}

		migrated++
	}

	slog.Info("Legacy migration finished", "migrated", migrated, "failed", failed, "total", len(rows))

	if failed > 0 {
		return 1
	}
	return 0
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
