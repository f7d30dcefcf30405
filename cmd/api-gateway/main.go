package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/railmadad/complaint-api/api/swagger"
	"github.com/railmadad/complaint-api/internal/gemini"
	"github.com/railmadad/complaint-api/internal/handler"
	"github.com/railmadad/complaint-api/internal/middleware"
	"github.com/railmadad/complaint-api/internal/mlclient"
	"github.com/railmadad/complaint-api/internal/models"
	"github.com/railmadad/complaint-api/internal/ocr"
	"github.com/railmadad/complaint-api/internal/repository"
	"github.com/railmadad/complaint-api/internal/service"
	"github.com/railmadad/complaint-api/pkg/cache"
	"github.com/railmadad/complaint-api/pkg/config"
	"github.com/railmadad/complaint-api/pkg/database"
	"github.com/railmadad/complaint-api/pkg/export"
	"github.com/railmadad/complaint-api/pkg/logger"
	corsmiddleware "github.com/railmadad/complaint-api/pkg/middleware/cors"
	reqidmiddleware "github.com/railmadad/complaint-api/pkg/middleware/requestid"
	"github.com/railmadad/complaint-api/pkg/storage"
)

// @title Rail Madad Complaint API
// @version 1.0.0
// @description Railway passenger complaint intake, classification and triage
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type classifierBackend interface {
	Classify(ctx context.Context, image []byte, mimeType, text string) (*models.Classification, error)
}

type stationFinder interface {
	Nearest(ctx context.Context, lat, lon, radiusKm float64) (*models.StationMatch, error)
}

type textReader interface {
	ReadText(ctx context.Context, data []byte, mimeType string) (string, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx := context.Background()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(db, logr); err != nil {
		logr.Fatal("failed to migrate database", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and geo index disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Insights.CacheTTL, logr)

	catalog, err := repository.LoadStationCatalog(cfg.Stations.JSONPath)
	if err != nil {
		logr.Fatal("failed to load station catalog", zap.String("path", cfg.Stations.JSONPath), zap.Error(err))
	}
	locator := stationLocator(ctx, cfg, redisClient, catalog, logr)

	var geminiClient *gemini.Client
	if cfg.Gemini.APIKey != "" {
		geminiClient, err = gemini.NewClient(ctx, gemini.Config{APIKey: cfg.Gemini.APIKey, ModelName: cfg.Gemini.Model}, logr)
		if err != nil {
			logr.Fatal("failed to init gemini client", zap.Error(err))
		}
		defer geminiClient.Close() //nolint:errcheck
	}

	images, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Fatal("failed to prepare upload directory", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	links := service.NewImageLinker(signer, cfg.APIPrefix, logr)

	userRepo := repository.NewUserRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)

	authSvc := service.NewAuthService(userRepo, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	if err := authSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword, cfg.Bootstrap.AdminName); err != nil {
		logr.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	locationSvc := service.NewLocationService(locator, service.LocationConfig{
		SearchRadiusKm: cfg.Stations.SearchRadiusKm,
		Timeout:        cfg.Stations.Timeout,
	}, metrics, logr)
	ticketSvc := service.NewTicketService(ticketReader(cfg, geminiClient, logr), service.TicketConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		Timeout:          cfg.OCR.Timeout,
	}, metrics, logr)
	classifierSvc := service.NewClassifierService(classifier(cfg, geminiClient, logr), cfg.Classifier.Timeout, metrics, logr)

	complaintSvc := service.NewComplaintService(
		complaintRepo,
		classifierSvc,
		locationSvc,
		ticketSvc,
		images,
		links,
		cacheSvc,
		metrics,
		service.ComplaintConfig{
			MaxImageBytes:     cfg.Uploads.MaxFileSizeBytes,
			AllowedImageMIMEs: cfg.Uploads.AllowedImageMIMEs,
		},
		logr,
	)
	if cfg.Bootstrap.AnonymousSubmission {
		guest, err := authSvc.EnsureGuest(ctx, cfg.Bootstrap.GuestEmail)
		if err != nil {
			logr.Fatal("failed to bootstrap guest account", zap.Error(err))
		}
		complaintSvc.SetGuestOwner(guest)
	}
	predictionSvc := service.NewPredictionService(
		mlclient.NewClient(cfg.Classifier.MLServiceURL, cfg.Classifier.Timeout),
		cfg.Classifier.Timeout,
		service.ComplaintConfig{MaxImageBytes: cfg.Uploads.MaxFileSizeBytes, AllowedImageMIMEs: cfg.Uploads.AllowedImageMIMEs},
		metrics,
		logr,
	)
	workflowSvc := service.NewWorkflowService(complaintRepo, links, cacheSvc, metrics, logr)
	querySvc := service.NewQueryService(complaintRepo, links, cacheSvc, cfg.Insights.CacheTTL, logr)
	exportSvc := service.NewExportService(complaintRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	readiness := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		readiness["redis"] = cache.PingCheck(redisClient)
	}
	metricsHandler := handler.NewMetricsHandler(metrics, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Location:  handler.NewLocationHandler(locationSvc),
		Ticket:    handler.NewTicketHandler(ticketSvc, cfg.Uploads.MaxFileSizeBytes),
		Complaint: handler.NewComplaintHandler(complaintSvc, querySvc, cfg.Uploads.MaxFileSizeBytes),
		ML:        handler.NewMLHandler(predictionSvc, cfg.Uploads.MaxFileSizeBytes),
		Admin:     handler.NewAdminHandler(querySvc, workflowSvc, exportSvc),
	}, middleware.JWT(authSvc), middleware.OptionalJWT(authSvc))

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// stationLocator prefers the Redis geo index when enabled and seeded.
func stationLocator(ctx context.Context, cfg *config.Config, client *redis.Client, catalog *repository.StationCatalog, logr *zap.Logger) stationFinder {
	if !cfg.Stations.GeoIndexEnabled || client == nil {
		return catalog
	}
	index := repository.NewStationGeoIndex(client, catalog, logr)
	seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := index.Seed(seedCtx); err != nil {
		logr.Warn("station geo index seed failed, using in-memory catalog", zap.Error(err))
		return catalog
	}
	return index
}

func classifier(cfg *config.Config, geminiClient *gemini.Client, logr *zap.Logger) classifierBackend {
	switch cfg.Classifier.Backend {
	case config.ClassifierML:
		logr.Info("classifier backend selected", zap.String("backend", "ml"), zap.String("url", cfg.Classifier.MLServiceURL))
		return service.NewModelClassifier(mlclient.NewClient(cfg.Classifier.MLServiceURL, cfg.Classifier.Timeout), cfg.Classifier.MinConfidence)
	default:
		if geminiClient == nil {
			logr.Warn("GEMINI_API_KEY not set, complaint classification is unavailable")
			return nil
		}
		logr.Info("classifier backend selected", zap.String("backend", "gemini"))
		return geminiClient
	}
}

func ticketReader(cfg *config.Config, geminiClient *gemini.Client, logr *zap.Logger) textReader {
	switch cfg.OCR.Engine {
	case config.OCREngineHTTP:
		return ocr.NewClient(cfg.OCR.ServiceURL, cfg.OCR.Timeout)
	default:
		if geminiClient == nil {
			logr.Warn("GEMINI_API_KEY not set, ticket extraction is unavailable")
			return nil
		}
		return geminiClient
	}
}
