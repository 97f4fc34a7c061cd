package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "civil-erp/api/swagger" // swagger docs
	"civil-erp/internal/config"
	"civil-erp/internal/database"
	"civil-erp/internal/handler"
	"civil-erp/internal/logger"
	"civil-erp/internal/metrics"
	"civil-erp/internal/middleware"
	"civil-erp/internal/nic"
	"civil-erp/internal/repository"
	"civil-erp/internal/scheduler"
	"civil-erp/internal/service"
	"civil-erp/internal/websocket"
	"civil-erp/pkg/secret"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const shutdownTimeout = 10 * time.Second

// @title           Civil ERP API
// @version         1.0
// @description     Access control and GST e-invoicing for a construction ERP.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	bootLog := logger.New("info", "text")
	cfg, err := config.Load(bootLog)
	if err != nil {
		bootLog.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DSN(), log)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("database migration failed")
	}
	log.Info("connected to PostgreSQL")

	cipher, err := secret.NewCipher(cfg.CredentialsKey)
	if err != nil {
		log.WithError(err).Fatal("invalid credentials key")
	}
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsHub := websocket.NewHub(cfg.CORSOrigins, log)
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	einvoiceRepo := repository.NewEInvoiceRepository(db)
	gstRepo := repository.NewGSTCredentialRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	nicClient := nic.NewClient(cipher, nic.Timeouts{
		Auth:   cfg.NIC.AuthTimeout,
		Submit: cfg.NIC.SubmitTimeout,
		Cancel: cfg.NIC.CancelTimeout,
	}, m, log.WithField("component", "nic"))

	provider := service.NewCredentialProvider(gstRepo, m, log)
	if err := provider.Reload(ctx); err != nil {
		log.WithError(err).Warn("GST credentials unavailable at startup, e-invoicing runs in test mode")
	}

	auditService := service.NewAuditService(auditRepo, log)
	resolver := service.NewPermissionResolver(roleRepo)
	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	userService := service.NewUserService(userRepo, resolver, tokens)
	roleService := service.NewRoleService(roleRepo, userRepo, txManager, auditService, log)
	gstService := service.NewGSTSettingsService(gstRepo, provider, cipher, nicClient, auditService)
	einvoiceService := service.NewEInvoiceService(einvoiceRepo, provider, nicClient, auditService, wsHub, m, log)

	guard := middleware.NewGuard(userRepo, resolver, tokens, m)

	authHandler := handler.NewAuthHandler(userService, guard, cfg.JWTTTL, cfg.IsRelease())
	roleHandler := handler.NewRoleHandler(roleService, guard)
	settingsHandler := handler.NewSettingsHandler(gstService, guard)
	einvoiceHandler := handler.NewEInvoiceHandler(einvoiceService, guard)
	auditHandler := handler.NewAuditHandler(auditService, guard)

	jobs := scheduler.New(log)
	if err := jobs.AddReload(cfg.CredentialReloadSchedule, "gst-credentials", provider); err != nil {
		log.WithError(err).Fatal("invalid CREDENTIAL_RELOAD_SCHEDULE")
	}
	jobs.Start()

	router := gin.New()
	router.Use(gin.Recovery(), logger.RequestLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, guard, middleware.AccessTokenCookie)
	})

	api := router.Group("")
	authHandler.RegisterRoutes(api)
	roleHandler.RegisterRoutes(api)
	settingsHandler.RegisterRoutes(api)
	einvoiceHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	jobs.Stop(shutdownCtx)
}
