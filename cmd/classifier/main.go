package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/saksham1508/CyberSentinelAI/internal/api"
	"github.com/saksham1508/CyberSentinelAI/internal/assets"
	"github.com/saksham1508/CyberSentinelAI/internal/config"
	"github.com/saksham1508/CyberSentinelAI/internal/explain"
	"github.com/saksham1508/CyberSentinelAI/internal/ingest"
	"github.com/saksham1508/CyberSentinelAI/internal/metrics"
	"github.com/saksham1508/CyberSentinelAI/internal/model"
	"github.com/saksham1508/CyberSentinelAI/internal/pipeline"
	"github.com/saksham1508/CyberSentinelAI/internal/profiler"
	"github.com/saksham1508/CyberSentinelAI/internal/response"
	"github.com/saksham1508/CyberSentinelAI/internal/rules"
	"github.com/saksham1508/CyberSentinelAI/internal/scoring"
	"github.com/saksham1508/CyberSentinelAI/internal/store"
)

func main() {
	logLevel := slog.LevelInfo
	if strings.EqualFold(getEnv("CLASSIFIER_LOG_LEVEL", "info"), "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("Starting CyberSentinel Classifier Service")

	httpAddr := getEnv("CLASSIFIER_HTTP_ADDR", ":8080")
	natsURL := getEnv("CLASSIFIER_NATS_URL", "nats://localhost:4222")
	rulesDir := getEnv("CLASSIFIER_RULES_DIR", "rules.d")
	storeBackend := strings.ToLower(getEnv("CLASSIFIER_STORE", "memory"))
	scanIntervalSec := getEnvInt("CLASSIFIER_SCAN_INTERVAL_SEC", 30)
	maxProfiles := getEnvInt("CLASSIFIER_MAX_PROFILES", 10000)
	dedupeCap := getEnvInt("CLASSIFIER_INCIDENT_DEDUPE_CAP", 100000)
	bufferCap := getEnvInt("CLASSIFIER_CANDIDATE_BUFFER", 10000)

	logger.Info("Configuration loaded",
		"http_addr", httpAddr,
		"nats_url", natsURL,
		"rules_dir", rulesDir,
		"store", storeBackend,
		"scan_interval_sec", scanIntervalSec,
		"max_profiles", maxProfiles)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nc, err := nats.Connect(natsURL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()
	logger.Info("Connected to NATS")

	configManager := config.NewManager(nc, logger)
	envDefaults := &config.Snapshot{
		AIEnabled:             getEnvBool("AI_ENABLED", true),
		AlertOnHighSeverity:   getEnvBool("ALERT_ON_HIGH_SEVERITY", true),
		AlertOnMediumSeverity: getEnvBool("ALERT_ON_MEDIUM_SEVERITY", false),
		ScanIntervalSeconds:   scanIntervalSec,
		MaxProfiles:           maxProfiles,
		IncidentDedupeCap:     dedupeCap,
	}
	if err := configManager.Initialize(ctx, envDefaults); err != nil {
		logger.Warn("Configuration live updates unavailable, using environment defaults", "error", err)
	}

	prometheusMetrics := metrics.NewMetrics()

	threatStore, incidentStore, closeStores := buildStores(ctx, storeBackend, dedupeCap, logger)
	defer closeStores()

	behavioral, err := profiler.New(maxProfiles, nil, logger)
	if err != nil {
		logger.Error("Failed to initialize behavioral profiler", "error", err)
		os.Exit(1)
	}
	scorer := scoring.NewAnomalyScorer(scoring.NewHeuristicClassifier(), logger)
	engine := rules.NewEngine(logger, prometheusMetrics)

	extraRules, err := rules.NewLoader(rulesDir, logger).Load()
	if err != nil {
		logger.Error("Failed to load extra rules", "error", err)
		os.Exit(1)
	}
	for _, rule := range extraRules {
		if err := engine.Add(rule); err != nil {
			logger.Error("Skipping extra rule", "rule_id", rule.ID, "error", err)
		}
	}

	assessor := assets.NewAssessor(nil, logger)
	auditor := explain.NewAuditor(logger)
	orchestrator := response.NewOrchestrator(incidentStore, logger, prometheusMetrics)
	publisher := ingest.NewPublisher(nc, logger)

	classificationPipeline := pipeline.New(
		scorer, behavioral, engine, assessor, auditor, orchestrator,
		threatStore, configManager, publisher, logger, prometheusMetrics)

	validator, err := ingest.NewValidator()
	if err != nil {
		logger.Error("Failed to compile candidate schema", "error", err)
		os.Exit(1)
	}

	buffer := ingest.NewBuffer(bufferCap)
	subscriber := ingest.NewSubscriber(nc, validator, func(_ context.Context, candidates []model.Threat) error {
		buffer.Add(candidates)
		return nil
	}, logger, prometheusMetrics)

	scheduler := pipeline.NewScheduler(logger, prometheusMetrics)
	scheduler.Register("threat-scan", time.Duration(scanIntervalSec)*time.Second, func(ctx context.Context) error {
		return pipeline.CollectAndRun(ctx, classificationPipeline, []pipeline.Source{buffer}, logger)
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := api.NewServer(threatStore, incidentStore, engine, auditor, assessor,
		classificationPipeline, validator, logger)
	httpServer := &http.Server{Addr: httpAddr, Handler: server.Handler()}

	go func() {
		logger.Info("Starting HTTP server", "addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		logger.Info("Starting candidate subscriber")
		if err := subscriber.Subscribe(ctx); err != nil {
			logger.Error("Candidate subscriber error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Classifier service started successfully")
	<-sigChan

	logger.Info("Shutting down classifier service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("Classifier service stopped")
}

func buildStores(ctx context.Context, backend string, dedupeCap int, logger *slog.Logger) (store.ThreatStore, store.IncidentStore, func()) {
	if backend == "postgres" {
		pg, err := store.NewPostgresStore(
			getEnv("CLASSIFIER_PG_HOST", "localhost"),
			getEnv("CLASSIFIER_PG_PORT", "5432"),
			getEnv("CLASSIFIER_PG_USER", "classifier"),
			getEnv("CLASSIFIER_PG_PASSWORD", "classifier"),
			getEnv("CLASSIFIER_PG_DBNAME", "cybersentinel"),
			logger)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		if err := pg.InitSchema(ctx); err != nil {
			logger.Error("Failed to initialize schema", "error", err)
			os.Exit(1)
		}
		logger.Info("PostgreSQL store initialized")
		return pg, pg, func() { pg.Close() }
	}
	logger.Info("In-memory store initialized")
	return store.NewMemoryThreatStore(), store.NewMemoryIncidentStore(dedupeCap), func() {}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.EqualFold(value, "true")
	}
	return defaultValue
}
