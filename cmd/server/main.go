package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/goland-group/aguimock/internal/config"
	"github.com/goland-group/aguimock/internal/feedback"
	"github.com/goland-group/aguimock/internal/logger"
	"github.com/goland-group/aguimock/internal/qa"
	"github.com/goland-group/aguimock/internal/server"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	configFlag := flag.String("config", "", "Path to aguimock.jsonc (default: built-in settings)")
	addrFlag := flag.String("addr", "", "Listen address, overrides config")
	qaFlag := flag.String("qa", "", "Path to a Q&A JSON file, overrides config")
	flag.Parse()

	if *showVersion {
		fmt.Printf("aguimock %s\n", Version)
		os.Exit(0)
	}

	// Load configuration
	cfg := config.Default()
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
	}
	if *addrFlag != "" {
		cfg.Server.Address = *addrFlag
	}
	if *qaFlag != "" {
		cfg.Server.QAPath = *qaFlag
	}

	// Initialize loggers
	if err := logger.Init(cfg.Server.LogDir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Close() }()
	if err := logger.InitSlog(cfg.Server.LogDir, cfg.Server.LogFormat == "json"); err != nil {
		log.Fatalf("Failed to initialize structured logger: %v", err)
	}
	defer func() { _ = logger.CloseSlog() }()

	logger.Println("🤖 aguimock - Mock AG-UI Agent Server")
	logger.Println("")

	// Load the knowledge base
	var qaStore *qa.Store
	var err error
	if cfg.Server.QAPath != "" {
		qaStore, err = qa.NewStore(cfg.Server.QAPath)
		if err != nil {
			logger.Fatalf("Failed to load Q&A data from %s: %v", cfg.Server.QAPath, err)
		}
		logger.Printf("📚 Loaded %d Q&A entries from %s", qaStore.Len(), cfg.Server.QAPath)
	} else {
		qaStore, err = qa.NewEmbeddedStore()
		if err != nil {
			logger.Fatalf("Failed to load embedded Q&A data: %v", err)
		}
		logger.Printf("📚 Loaded %d embedded Q&A entries", qaStore.Len())
	}

	// Initialize feedback store
	fbStore, err := feedback.NewStore(cfg.Server.DataDir)
	if err != nil {
		logger.Fatalf("Failed to initialize feedback store: %v", err)
	}
	defer func() { _ = fbStore.Close() }()
	logger.Printf("💾 Feedback database: %s/feedback.db", cfg.Server.DataDir)

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(&cfg.Server, qaStore, fbStore, logger.Slog())
	router := srv.Router()

	// Scheduled maintenance
	scheduler := cron.New()
	if cfg.Server.QAPath != "" && cfg.Server.QAReloadCron != "" {
		_, err := scheduler.AddFunc(cfg.Server.QAReloadCron, func() {
			if err := qaStore.Reload(); err != nil {
				logger.Error("Q&A reload failed: %v", err)
				return
			}
			logger.Printf("📚 Reloaded Q&A data (%d entries)", qaStore.Len())
		})
		if err != nil {
			logger.Fatalf("Invalid qa_reload_cron %q: %v", cfg.Server.QAReloadCron, err)
		}
		logger.Printf("🔄 Q&A reload scheduled: %s", cfg.Server.QAReloadCron)
	}
	if _, err := scheduler.AddFunc("0 3 * * *", func() {
		srv.Limiter().Reset()
		if cfg.Server.FeedbackRetentionDays > 0 {
			cutoff := time.Now().AddDate(0, 0, -cfg.Server.FeedbackRetentionDays)
			pruned, err := fbStore.PruneOlderThan(cutoff)
			if err != nil {
				logger.Error("Feedback pruning failed: %v", err)
				return
			}
			if pruned > 0 {
				logger.Printf("🧹 Pruned %d feedback rows older than %d days", pruned, cfg.Server.FeedbackRetentionDays)
			}
		}
	}); err != nil {
		logger.Fatalf("Failed to schedule maintenance: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	logger.Println("🚀 Starting mock agent server...")
	logger.Printf("📡 Listening on %s", cfg.Server.Address)
	logger.Printf("📝 Logs directory: %s", cfg.Server.LogDir)
	logger.Println("")

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		logger.Fatalf("Server error: %v", err)
	case sig := <-shutdownChan:
		logger.Printf("⚠️  Received signal %v, initiating graceful shutdown...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error: %v", err)
		}

		scheduler.Stop()
		_ = fbStore.Close()
		logger.Println("✅ Shutdown complete")
	}
}
