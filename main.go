package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	apihttp "github.com/trakrf/platform/internal/api/http"
	"github.com/trakrf/platform/internal/audit"
	"github.com/trakrf/platform/internal/auth"
	importerapp "github.com/trakrf/platform/internal/importer/application"
	importerpg "github.com/trakrf/platform/internal/importer/infrastructure/postgres"
	importerhttp "github.com/trakrf/platform/internal/importer/interfaces/http"
	importernotify "github.com/trakrf/platform/internal/importer/notify"
	invapp "github.com/trakrf/platform/internal/inventory/application"
	inventory "github.com/trakrf/platform/internal/inventory/domain"
	invpg "github.com/trakrf/platform/internal/inventory/infrastructure/postgres"
	invhttp "github.com/trakrf/platform/internal/inventory/interfaces/http"
	"github.com/trakrf/platform/internal/observability/metrics"
	scanapp "github.com/trakrf/platform/internal/scan/application"
	scanpg "github.com/trakrf/platform/internal/scan/infrastructure/postgres"
	scanhttp "github.com/trakrf/platform/internal/scan/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	store, err := invpg.NewStore(db)
	if err != nil {
		logger.Fatalf("inventory store error: %v", err)
	}
	creation, err := invapp.NewCreationService(store)
	if err != nil {
		logger.Fatalf("creation service error: %v", err)
	}
	views, err := invapp.NewViewAssembler(store.Entities(), store.Identifiers())
	if err != nil {
		logger.Fatalf("view assembler error: %v", err)
	}
	entityService, err := invapp.NewEntityService(store)
	if err != nil {
		logger.Fatalf("entity service error: %v", err)
	}
	identifierService, err := invapp.NewIdentifierService(store.Entities(), store.Identifiers())
	if err != nil {
		logger.Fatalf("identifier service error: %v", err)
	}

	assetHandler, err := invhttp.NewEntityHandler(inventory.KindAsset, creation, views, entityService, identifierService, auditRepo)
	if err != nil {
		logger.Fatalf("asset handler error: %v", err)
	}
	locationHandler, err := invhttp.NewEntityHandler(inventory.KindLocation, creation, views, entityService, identifierService, auditRepo)
	if err != nil {
		logger.Fatalf("location handler error: %v", err)
	}
	identifierHandler, err := invhttp.NewIdentifierHandler(identifierService, auditRepo)
	if err != nil {
		logger.Fatalf("identifier handler error: %v", err)
	}

	importCfg, err := importerapp.LoadConfig()
	if err != nil {
		logger.Fatalf("import config error: %v", err)
	}
	jobRepo := importerpg.NewJobRepository(db)
	importService, err := importerapp.NewService(jobRepo, importCfg, logger)
	if err != nil {
		logger.Fatalf("import service error: %v", err)
	}
	var importNotifier importernotify.Notifier
	if importCfg.WebhookURL != "" {
		importNotifier = importernotify.NewWebhookNotifier(importCfg.WebhookURL)
	}
	runner, err := importerapp.NewRunner(jobRepo, store.Entities(), store.Identifiers(), importCfg, importNotifier, logger, importService.WakeChan())
	if err != nil {
		logger.Fatalf("import runner error: %v", err)
	}
	importHandler, err := importerhttp.NewImportHandler(importService, auditRepo)
	if err != nil {
		logger.Fatalf("import handler error: %v", err)
	}

	movementRepo := scanpg.NewMovementRepository(db)
	scanService, err := scanapp.NewService(store.Entities(), store.Identifiers(), movementRepo, logger)
	if err != nil {
		logger.Fatalf("scan service error: %v", err)
	}
	ingestHandler, err := scanhttp.NewIngestHandler(scanService, auditRepo, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	movementHandler, err := scanhttp.NewMovementHandler(scanService)
	if err != nil {
		logger.Fatalf("movement handler error: %v", err)
	}

	go runner.Start(context.Background())

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	assetRoutes := assetRouter(assetHandler, movementHandler)

	mux := http.NewServeMux()
	mux.Handle("/ingest/scan", ingestAuth.Wrap(ingestHandler))
	mux.Handle(assetHandler.BasePath(), assetRoutes)
	mux.Handle(assetHandler.BasePath()+"/", assetRoutes)
	mux.Handle(locationHandler.BasePath(), locationHandler)
	mux.Handle(locationHandler.BasePath()+"/", locationHandler)
	mux.Handle("/api/v1/identifiers/", identifierHandler)
	mux.Handle("/api/v1/imports", importHandler)
	mux.Handle("/api/v1/imports/", importHandler)
	mux.Handle("/api/v1/exports/entities.csv", apihttp.NewExportEntitiesCSVHandler(db))
	mux.Handle("/api/v1/exports/entities.xlsx", apihttp.NewExportEntitiesXLSXHandler(db))
	mux.Handle("/api/v1/exports/entities.pdf", apihttp.NewExportEntitiesPDFHandler(db))
	mux.Handle("/api/v1/summary", apihttp.NewSummaryHandler(db))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

// assetRouter sends movement listings to the scan context and every
// other asset path to the register handler.
func assetRouter(entities http.Handler, movements http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/movements") {
			movements.ServeHTTP(w, r)
			return
		}
		entities.ServeHTTP(w, r)
	})
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	JWTSecret         string
	IngestSecret      string
	IngestSkewSeconds int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
