package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"soluxe-backend/internal/config"
	"soluxe-backend/internal/handlers"
	"soluxe-backend/internal/logger"
	"soluxe-backend/internal/middleware"
	"soluxe-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// Fall back to real environment variables.
	}

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.LogLevel)

	store, err := services.NewRedisStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer store.Close()

	clock := services.NewClock()
	jwtService := services.NewJWTService(cfg)
	chainClient := services.NewSolanaClient(cfg.SolanaRPCURL)

	authService := services.NewWalletAuthService(store, jwtService, chainClient, clock, log)

	ledger := services.NewLedger(store, clock, log)
	rates := services.NewRateTable()
	affiliates := services.NewAffiliateService(ledger, cfg.AffiliateRate, log)
	reconciler := services.NewReconciler(store, ledger, rates, affiliates, clock, log)

	bus := services.NewEventBus(64, log)
	engine := services.NewRoundEngine(store, ledger, bus, clock, services.RoundConfig{
		BettingWindow: cfg.BettingWindow,
		ResolveWindow: cfg.ResolveWindow,
		SettleDelay:   cfg.SettleDelay,
		HistoryLimit:  cfg.HistoryLimit,
	}, log)
	engine.Start()
	defer engine.Stop()

	authHandler := handlers.NewAuthHandler(authService, log)
	userHandler := handlers.NewUserHandler(store, log)
	gameHandler := handlers.NewGameHandler(engine, store, log)
	wsHandler := handlers.NewWebSocketHandler(engine, store, bus, log)
	callbackHandler := handlers.NewCallbackHandler(reconciler, log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/solana/nonce", authHandler.RequestNonce)
	router.POST("/auth/solana/verify", authHandler.Verify)

	// Provider callbacks are authenticated by obscurity of the endpoint plus
	// transaction-id idempotency, matching the provider integration.
	router.POST("/api/callback/oxapay", callbackHandler.HandleOxapay)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.PUT("/auth/solana/profile", authHandler.UpdateProfile)
		protected.GET("/auth/solana/balance", authHandler.GetBalance)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		games := protected.Group("/games/roulette")
		{
			games.POST("/bet", gameHandler.PlaceBet)
			games.GET("/current", gameHandler.GetCurrentRound)
			games.GET("/history", gameHandler.GetHistory)
			games.GET("/verify", gameHandler.VerifyRound)
		}
	}

	log.Info().Str("port", cfg.Port).Msg("Server starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
