package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"github.com/xanchor-io/xanchor/internal/anchor/handler"
	"github.com/xanchor-io/xanchor/internal/anchor/service"
	"github.com/xanchor-io/xanchor/internal/anchorlog"
	"github.com/xanchor-io/xanchor/internal/health"
	"github.com/xanchor-io/xanchor/internal/xrpl"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("anchord exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("anchord")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("server.auth_secret", "")
	viper.SetDefault("server.max_upload_bytes", 32<<20)
	viper.SetDefault("ledger.endpoint", "wss://xahau-test.net/")
	viper.SetDefault("ledger.seed", "")
	viper.SetDefault("ledger.connect_timeout", "10s")
	viper.SetDefault("ledger.op_timeout", "15s")
	viper.SetDefault("ledger.dial_retries", 3)
	viper.SetDefault("ledger.pool_size", 0)
	viper.SetDefault("database.url", "")
	viper.SetDefault("health.check_interval", "1m")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Signing identity ─────────────────────────────────────────────────────
	seed := viper.GetString("ledger.seed")
	if seed == "" {
		return errors.New("ledger.seed is required (set LEDGER_SEED)")
	}
	keys, err := xrpl.ParseSeed(seed)
	if err != nil {
		return fmt.Errorf("load signing identity: %w", err)
	}
	logger.Info("signing identity loaded", zap.String("account", keys.Address()))

	// ── Anchor log (Postgres when configured, in-memory otherwise) ──────────
	var alog anchorlog.Log
	var db *pgxpool.Pool
	startCtx := context.Background()

	if dbURL := viper.GetString("database.url"); dbURL != "" {
		db, err = pgxpool.New(startCtx, dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer db.Close()

		if err := db.Ping(startCtx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
		alog = anchorlog.NewPostgresLog(db, logger)
	} else {
		logger.Warn("database.url not set — anchor log is in-memory and not durable")
		alog = anchorlog.New()
	}

	if err := alog.Verify(startCtx); err != nil {
		logger.Warn("anchor log integrity check FAILED", zap.Error(err))
	} else {
		n, _ := alog.Len(startCtx)
		root, _ := alog.Root(startCtx)
		logger.Info("anchor log verified",
			zap.Int("entries", n),
			zap.String("root", root),
		)
	}

	// ── Ledger dialer (optionally pooled) ────────────────────────────────────
	ledgerCfg := xrpl.Config{
		Endpoint:       viper.GetString("ledger.endpoint"),
		ConnectTimeout: viper.GetDuration("ledger.connect_timeout"),
		OpTimeout:      viper.GetDuration("ledger.op_timeout"),
		DialRetries:    uint64(viper.GetInt("ledger.dial_retries")),
	}

	var dialer xrpl.Dialer = xrpl.NewNodeDialer(ledgerCfg, logger)
	var pool *xrpl.Pool
	if size := viper.GetInt("ledger.pool_size"); size > 0 {
		pool = xrpl.NewPool(dialer, size, logger)
		dialer = pool
		logger.Info("ledger session pooling enabled", zap.Int("max_idle", size))
	}

	// ── Wire up layers ────────────────────────────────────────────────────────
	anchorSvc := service.NewAnchorService(dialer, keys, alog, logger)
	verifySvc := service.NewVerificationService(dialer, keys.Address(), logger)

	anchorHandler := handler.NewAnchorHandler(anchorSvc, verifySvc, logger)
	logHandler := handler.NewLogHandler(alog, logger)

	var dbPinger health.DBPinger
	if db != nil {
		dbPinger = db
	}
	checker := health.New(dialer, dbPinger, health.Config{
		CheckInterval: viper.GetDuration("health.check_interval"),
	}, logger)
	checker.SetMetricsRecord(handler.RecordLedgerProbe)

	// ── HTTP Router ───────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("server.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:  corsOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Upload size cap
	maxUpload := viper.GetInt64("server.max_upload_bytes")
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)
		c.Next()
	})

	if rps := viper.GetInt("server.rate_limit_rps"); rps > 0 {
		router.Use(handler.RateLimiter(rps, rps*2))
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		status := checker.Status()
		code := http.StatusOK
		if !status.LedgerOK || !status.DatabaseOK {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	router.GET("/metrics", handler.MetricsEndpoint())

	// API v1 — anchoring is auth-gated when a secret is configured,
	// verification and the audit log stay public.
	v1 := router.Group("/api/v1")
	anchorHandler.Register(v1, handler.BearerAuth(viper.GetString("server.auth_secret")))
	logHandler.Register(v1)

	// ── Serve ─────────────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	checkerQuit := make(chan os.Signal)
	go checker.Start(checkerQuit)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("server.port")),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("anchord HTTP listening", zap.Int("port", viper.GetInt("server.port")))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down anchord...")
	close(checkerQuit)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	if pool != nil {
		pool.Shutdown()
	}

	logger.Info("anchord stopped")
	return nil
}

// requestLogger returns a gin middleware that logs each request with zap.
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
