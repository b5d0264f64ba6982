package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/gridvolt/auth-service/internal/app"
	"github.com/gridvolt/auth-service/internal/cache"
	"github.com/gridvolt/auth-service/internal/config"
	"github.com/gridvolt/auth-service/internal/controllers"
	"github.com/gridvolt/auth-service/internal/middleware"
	"github.com/gridvolt/auth-service/internal/notify"
	"github.com/gridvolt/auth-service/internal/repositories"
	"github.com/gridvolt/auth-service/internal/services"
	"github.com/gridvolt/auth-service/internal/utils"
)

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize application:", err)
	}
	defer application.Close()

	//----------------------------------------------------------------------
	// Repositories
	//----------------------------------------------------------------------
	userRepo := repositories.NewUserRepository(application.DB)
	loginRepo := repositories.NewLoginAttemptsRepository(application.DB)
	tokenRepo := repositories.NewTokenRepository(application.DB)
	resetCodeRepo := repositories.NewResetCodeRepository(application.DB)

	//----------------------------------------------------------------------
	// Blacklist store: Redis when configured, in-process otherwise
	//----------------------------------------------------------------------
	var blacklist cache.BlacklistStore
	if application.Redis != nil {
		blacklist = cache.NewRedisBlacklist(application.Redis)
	} else {
		utils.Logger.Warn("REDIS_URL not set; using in-process token blacklist")
		mem := cache.NewMemoryBlacklist(time.Minute)
		defer mem.Close()
		blacklist = mem
	}

	//----------------------------------------------------------------------
	// Notifiers
	//----------------------------------------------------------------------
	var emailNotifier notify.Notifier = notify.NewLogNotifier()
	if cfg.SendGridAPIKey != "" {
		emailNotifier = notify.NewSendGridNotifier(
			cfg.SendGridAPIKey,
			config.AppName,
			cfg.SendGridFrom,
			cfg.LDFlag_SendgridSandboxMode,
		)
	}
	var smsNotifier notify.Notifier = notify.NewLogNotifier()
	if cfg.TwilioAccountSID != "" {
		smsNotifier = notify.NewTwilioNotifier(
			cfg.TwilioAccountSID,
			cfg.TwilioAuthToken,
			cfg.TwilioFromPhone,
		)
	}

	//----------------------------------------------------------------------
	// Services
	//----------------------------------------------------------------------
	hasher := utils.NewBcryptHasher()
	codec := services.NewTokenCodec(cfg)

	sessionService := services.NewSessionService(
		userRepo,
		loginRepo,
		tokenRepo,
		blacklist,
		codec,
		hasher,
		cfg,
	)

	resetService := services.NewPasswordResetService(
		userRepo,
		resetCodeRepo,
		tokenRepo,
		emailNotifier,
		smsNotifier,
		hasher,
		cfg,
	)

	cleanupService := services.NewCleanupService(tokenRepo, resetCodeRepo, loginRepo)

	//----------------------------------------------------------------------
	// Controllers
	//----------------------------------------------------------------------
	authController := controllers.NewAuthController(sessionService, cfg)
	resetController := controllers.NewPasswordResetController(resetService)
	healthController := controllers.NewHealthController(application)

	//----------------------------------------------------------------------
	// Router & Endpoints
	//----------------------------------------------------------------------
	router := mux.NewRouter()

	// Health
	router.HandleFunc("/health", healthController.HealthCheckHandler).Methods("GET")

	// /auth/v1
	authRouter := router.PathPrefix("/auth").Subrouter()
	v1Router := authRouter.PathPrefix("/v1").Subrouter()

	// Role-scoped login surfaces
	v1Router.HandleFunc("/admin/login", authController.LoginAdmin).Methods("POST")
	v1Router.HandleFunc("/installer/login", authController.LoginInstaller).Methods("POST")
	v1Router.HandleFunc("/user/login", authController.LoginUser).Methods("POST")

	// Refresh and logout accept an expired access token, so they sit
	// outside the gate; the service layer verifies the signature itself.
	v1Router.HandleFunc("/refresh_token", authController.RefreshToken).Methods("POST")
	v1Router.HandleFunc("/logout", authController.Logout).Methods("POST")

	// Password reset
	v1Router.HandleFunc("/password/request_reset", resetController.RequestReset).Methods("POST")
	v1Router.HandleFunc("/password/confirm_reset", resetController.ConfirmReset).Methods("POST")

	// Protected endpoints require a live, non-blacklisted token
	protected := v1Router.PathPrefix("/session").Subrouter()
	protected.Use(middleware.RequireAuth(codec, blacklist))
	protected.HandleFunc("", authController.SessionInfo).Methods("GET")

	//----------------------------------------------------------------------
	// Setup daily cleanup via cron
	//----------------------------------------------------------------------
	c := cron.New()

	_, schErr := c.AddFunc("0 3 * * *", func() {
		if e := cleanupService.CleanupDaily(context.Background()); e != nil {
			utils.Logger.WithError(e).Error("Scheduled auth cleanup failed")
		}
	})
	if schErr != nil {
		utils.Logger.WithError(schErr).Fatal("Failed to schedule auth cleanup job")
	}

	c.Start()
	defer c.Stop()

	co := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AppUrl},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := http.ListenAndServe(":"+cfg.AppPort, co.Handler(router)); err != nil {
		utils.Logger.Fatal("Failed to start server:", err)
	}
}
