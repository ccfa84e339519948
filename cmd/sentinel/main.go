package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/jmerrifield20/ThreatSentinel/internal/alerts"
	"github.com/jmerrifield20/ThreatSentinel/internal/api/handler"
	"github.com/jmerrifield20/ThreatSentinel/internal/email"
	"github.com/jmerrifield20/ThreatSentinel/internal/identity"
	"github.com/jmerrifield20/ThreatSentinel/internal/ingest"
	"github.com/jmerrifield20/ThreatSentinel/internal/journal"
	"github.com/jmerrifield20/ThreatSentinel/internal/probe"
	"github.com/jmerrifield20/ThreatSentinel/internal/reputation"
	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

// grpcHealthService is the service name reported by the gRPC health server.
const grpcHealthService = "sentinel.v1.Sentinel"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("sentinel exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("sentinel")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("sentinel.port", 8080)
	viper.SetDefault("sentinel.grpc_port", 9090)
	viper.SetDefault("sentinel.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("sentinel.rate_limit_rps", 20)
	viper.SetDefault("sentinel.max_body_bytes", ingest.MaxBodyBytes)
	viper.SetDefault("sentinel.admin_secret_hash", "")
	viper.SetDefault("sentinel.token_secret", "")
	viper.SetDefault("sentinel.token_ttl", "8h")
	viper.SetDefault("detection.frequency_threshold", threat.DefaultFrequencyThreshold)
	viper.SetDefault("detection.sigma_multiplier", threat.DefaultSigmaMultiplier)
	viper.SetDefault("detection.enrichment_enabled", false)
	viper.SetDefault("reputation.base_url", "https://api.abuseipdb.com")
	viper.SetDefault("reputation.api_key", "")
	viper.SetDefault("reputation.timeout", "5s")
	viper.SetDefault("reputation.cache_ttl", "15m")
	viper.SetDefault("reputation.max_age_days", 90)
	viper.SetDefault("probe.timeout", "2s")
	viper.SetDefault("probe.concurrency", 32)
	viper.SetDefault("alerts.webhook_urls", []string{})
	viper.SetDefault("alerts.webhook_secret", "")
	viper.SetDefault("alerts.min_severity", string(threat.SeverityHigh))
	viper.SetDefault("alerts.email_to", []string{})
	viper.SetDefault("alerts.concurrency", 8)
	viper.SetDefault("email.smtp_host", "")
	viper.SetDefault("email.smtp_port", 587)
	viper.SetDefault("email.smtp_username", "")
	viper.SetDefault("email.smtp_password", "")
	viper.SetDefault("email.from_address", "sentinel@localhost")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Detection engine ─────────────────────────────────────────────────────
	engine := threat.New(threat.Config{
		FrequencyThreshold: viper.GetInt("detection.frequency_threshold"),
		SigmaMultiplier:    viper.GetFloat64("detection.sigma_multiplier"),
	}, logger.Named("engine"))

	// ── Reputation collaborator ──────────────────────────────────────────────
	cacheTTL := viper.GetDuration("reputation.cache_ttl")
	rep := reputation.New(reputation.Config{
		BaseURL:    viper.GetString("reputation.base_url"),
		APIKey:     viper.GetString("reputation.api_key"),
		Timeout:    viper.GetDuration("reputation.timeout"),
		CacheTTL:   cacheTTL,
		MaxAgeDays: viper.GetInt("reputation.max_age_days"),
	}, logger.Named("reputation"))
	rep.SetMetricsRecord(handler.RecordReputationLookup)
	rep.SetStateChange(handler.RecordCircuitState)
	rep.SetCacheSizeRecord(handler.RecordReputationCacheSize)
	rep.StartCacheEviction(ctx, cacheTTL)

	if viper.GetBool("detection.enrichment_enabled") {
		if viper.GetString("reputation.api_key") == "" {
			logger.Warn("enrichment enabled without reputation.api_key; lookups will likely be rejected")
		}
		engine.SetAnalyzer(rep)
		logger.Info("external enrichment enabled", zap.String("provider", reputation.ProviderName))
	}

	// ── Port probe ───────────────────────────────────────────────────────────
	scanner := probe.New(probe.Config{
		Timeout:     viper.GetDuration("probe.timeout"),
		Concurrency: viper.GetInt("probe.concurrency"),
	}, logger.Named("probe"))
	scanner.SetMetricsRecord(handler.RecordProbe)

	// ── Security journal ─────────────────────────────────────────────────────
	securityLog := journal.New()

	// ── Admin identity ───────────────────────────────────────────────────────
	auth, err := newAuthority(logger)
	if err != nil {
		return err
	}

	// ── Alerts ───────────────────────────────────────────────────────────────
	mailer := email.New(email.Config{
		Host:     viper.GetString("email.smtp_host"),
		Port:     viper.GetInt("email.smtp_port"),
		Username: viper.GetString("email.smtp_username"),
		Password: viper.GetString("email.smtp_password"),
		From:     viper.GetString("email.from_address"),
	}, logger.Named("email"))

	dispatcher := alerts.New(alerts.Config{
		WebhookURLs: viper.GetStringSlice("alerts.webhook_urls"),
		Secret:      viper.GetString("alerts.webhook_secret"),
		MinSeverity: threat.Severity(strings.ToUpper(viper.GetString("alerts.min_severity"))),
		EmailTo:     viper.GetStringSlice("alerts.email_to"),
		Concurrency: viper.GetInt("alerts.concurrency"),
	}, mailer, logger.Named("alerts"))
	dispatcher.SetMetricsRecorder(handler.RecordAlertDelivery)

	// ── Handlers ─────────────────────────────────────────────────────────────
	threatHandler := handler.NewThreatHandler(engine, auth, logger)
	threatHandler.SetNotifier(dispatcher)
	threatHandler.SetAuditJournal(securityLog)

	scanHandler := handler.NewScanHandler(scanner, auth, logger)
	scanHandler.SetAuditJournal(securityLog)

	reputationHandler := handler.NewReputationHandler(rep, logger)
	securityLogHandler := handler.NewSecurityLogHandler(securityLog, auth, logger)
	adminHandler := handler.NewAdminHandler(auth, logger)

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("sentinel.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	})

	maxBody := viper.GetInt64("sentinel.max_body_bytes")
	if maxBody <= 0 || maxBody > ingest.MaxBodyBytes {
		logger.Warn("sentinel.max_body_bytes out of range, using the batch limit",
			zap.Int64("configured", maxBody), zap.Int("limit", ingest.MaxBodyBytes))
		maxBody = ingest.MaxBodyBytes
	}
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
		c.Next()
	})

	if rps := viper.GetFloat64("sentinel.rate_limit_rps"); rps > 0 {
		router.Use(handler.RateLimiter(rps, int(rps*2)))
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": engine.Stats()})
	})
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	threatHandler.Register(v1)
	reputationHandler.Register(v1)
	scanHandler.Register(v1)
	securityLogHandler.Register(v1)
	adminHandler.Register(v1)

	// ── gRPC health server ───────────────────────────────────────────────────
	grpcPort := viper.GetInt("sentinel.grpc_port")
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return fmt.Errorf("gRPC listen on :%d: %w", grpcPort, err)
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	healthSvc := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSvc)
	healthSvc.SetServingStatus(grpcHealthService, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	// ── Start servers ────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	httpPort := viper.GetInt("sentinel.port")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("sentinel HTTP listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("sentinel gRPC health listening", zap.Int("port", grpcPort))
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Fatal("gRPC serve error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down sentinel...")
	healthSvc.Shutdown()
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()
	dispatcher.Wait()

	stats := engine.Stats()
	logger.Info("sentinel stopped",
		zap.Int("tracked_sources", stats.TrackedSources),
		zap.Int("threats_total", stats.ThreatsTotal),
	)
	return nil
}

// newAuthority builds the admin token authority. Without a configured token
// secret an ephemeral key is generated, so issued tokens do not survive a
// restart.
func newAuthority(logger *zap.Logger) (*identity.Authority, error) {
	key := []byte(viper.GetString("sentinel.token_secret"))
	if len(key) == 0 {
		k, err := identity.RandomKey(identity.MinSigningKeyLen)
		if err != nil {
			return nil, fmt.Errorf("generate token key: %w", err)
		}
		key = k
		logger.Warn("sentinel.token_secret not set; using an ephemeral signing key")
	}

	hash := viper.GetString("sentinel.admin_secret_hash")
	if hash == "" {
		logger.Warn("sentinel.admin_secret_hash not set; admin endpoints are disabled")
	}

	auth, err := identity.NewAuthority(identity.AuthorityConfig{
		SecretHash: hash,
		SigningKey: key,
		TTL:        viper.GetDuration("sentinel.token_ttl"),
	})
	if err != nil {
		return nil, fmt.Errorf("admin authority: %w", err)
	}
	return auth, nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// loggingInterceptor returns a gRPC unary server interceptor that logs each call.
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := h(ctx, req)
		logger.Debug("grpc",
			zap.String("method", info.FullMethod),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return resp, err
	}
}
