package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bikerental/internal/config"
	"bikerental/internal/database"
	"bikerental/internal/middleware"
	"bikerental/internal/modules/auth"
	"bikerental/internal/modules/bike"
	"bikerental/internal/modules/booking"
	"bikerental/internal/modules/payment"
	"bikerental/internal/modules/user"
	"bikerental/internal/pkg/cache"
	jwtsvc "bikerental/internal/pkg/jwt"
	"bikerental/internal/pkg/storage"
	"bikerental/internal/repository"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if !cfg.IsProdLike() {
		log.SetLevel(logrus.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var kv cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("redis connection failed")
		}
		defer rc.Close()
		kv = rc
		log.Info("using redis cache")
	}

	var store storage.Storage
	if cfg.S3Bucket != "" {
		s3, err := storage.NewS3(cfg.S3Region, cfg.S3Bucket, cfg.S3PublicURL)
		if err != nil {
			log.WithError(err).Fatal("s3 setup failed")
		}
		store = s3
	} else {
		local, err := storage.NewLocal(cfg.UploadDir, cfg.PublicBaseURL+"/uploads")
		if err != nil {
			log.WithError(err).Fatal("upload dir setup failed")
		}
		store = local
	}

	debug := !cfg.IsProdLike()
	tokens := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)

	userRepo := repository.NewUserRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	bikeRepo := repository.NewBikeRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	authHandler := auth.NewHandler(auth.NewService(userRepo, tokens, log))
	userHandler := user.NewHandler(user.NewService(userRepo, addressRepo), debug)

	bikeService := bike.NewService(bikeRepo, bookingRepo, kv, cfg.BusySlotCacheTTL, store, log)
	bikeHandler := bike.NewHandler(bikeService, debug)

	hub := booking.NewHub(log)
	defer hub.Close()

	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.CheckoutSuccessURL,
		CancelURL:     cfg.CheckoutCancelURL,
	}, log)

	bookingService := booking.NewService(booking.Deps{
		Bookings: bookingRepo,
		Users:    userRepo,
		Gateway:  gateway,
		Events:   kv,
		Slots:    bikeService,
		Notifier: hub,
		Invoices: booking.NewInvoiceRenderer(cfg.CompanyName, cfg.Currency),
		Log:      log,
	}, booking.Config{
		PaymentWindow: cfg.BookingPaymentWindow,
		Currency:      cfg.Currency,
	})
	bookingHandler := booking.NewHandler(bookingService, debug)

	sweeper := booking.NewSweeper(bookingService, cfg.BookingSweepInterval, log)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorLogger(log))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.S3Bucket == "" {
		r.Static("/uploads", cfg.UploadDir)
	}
	booking.NewWSHandler(hub, tokens, cfg.AllowedOrigins).RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)
		bikeHandler.RegisterPublicRoutes(v1)
		bookingHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(tokens))
		{
			authHandler.RegisterProtectedRoutes(protected)
			userHandler.RegisterProtectedRoutes(protected)
			bikeHandler.RegisterOwnerRoutes(protected)
			bookingHandler.RegisterProtectedRoutes(protected)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly())
		{
			userHandler.RegisterAdminRoutes(admin)
			bookingHandler.RegisterAdminRoutes(admin)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
