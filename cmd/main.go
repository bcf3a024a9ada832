package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"vault-betting/internal/auth"
	"vault-betting/internal/blockchain"
	"vault-betting/internal/config"
	"vault-betting/internal/database"
	"vault-betting/internal/handlers"
	"vault-betting/internal/jobs"
	"vault-betting/internal/repository"
	"vault-betting/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Solana client and the vault program binding
	solanaClient := blockchain.NewSolanaClient(cfg.Solana.Network, cfg.Solana.ServerPrivateKey)
	vaultProgram, err := blockchain.NewVaultProgram(solanaClient, cfg.Solana.VaultProgramID)
	if err != nil {
		log.Fatalf("Failed to initialize vault program: %v", err)
	}

	// Initialize repository and services
	repo := repository.NewRepository(database.GetDB())
	settlementService := services.NewSettlementService(repo)

	diceSource, err := services.NewFairDiceSource(cfg.App.DiceServerSeed)
	if err != nil {
		log.Fatalf("Failed to initialize dice source: %v", err)
	}
	log.Printf("Dice fairness commitment: %s", diceSource.ServerSeedHash())

	authService := services.NewAuthService(database.GetDB())
	betService := services.NewBetService(repo, settlementService, vaultProgram, cfg.App.BetExpiry)
	gameService := services.NewGameService(repo, settlementService, vaultProgram, diceSource,
		cfg.App.GameExpiry, cfg.App.GameStallTimeout)
	groupBetService := services.NewGroupBetService(repo, settlementService, vaultProgram)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(authService, repo)
	betHandler := handlers.NewBetHandler(betService, vaultProgram)
	gameHandler := handlers.NewGameHandler(gameService, vaultProgram, diceSource)
	groupBetHandler := handlers.NewGroupBetHandler(groupBetService)
	chainHandler := handlers.NewChainHandler(solanaClient, repo)

	// Start the maintenance sweeper
	sweeper := jobs.NewSweeper(repo, betService, gameService, groupBetService,
		cfg.App.SweepInterval, cfg.App.BetExpiry, cfg.App.GameStallTimeout)
	go sweeper.Start()

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite dev server
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/wallet", authHandler.WalletLogin)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	// Authenticated /auth/me route
	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// Public routes
	router.GET("/api/bets/:bet_id", betHandler.GetBet)
	router.GET("/api/bets/:bet_id/group-bets", groupBetHandler.GetGroupBets)
	router.GET("/api/bets/:bet_id/ledger", chainHandler.GetBetLedger)
	router.GET("/api/games/open", gameHandler.GetOpenGames)
	router.GET("/api/games/fairness", gameHandler.GetFairness)
	router.GET("/api/games/:game_id", gameHandler.GetGame)
	router.GET("/api/games/:game_id/ledger", chainHandler.GetGameLedger)
	router.GET("/api/users/:wallet/stats", userHandler.GetStats)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// User endpoints
		api.GET("/user/profile", userHandler.GetProfile)
		api.PUT("/user/nickname", userHandler.UpdateNickname)
		api.GET("/wallet/balance", chainHandler.GetWalletBalance)

		// Two-party bet endpoints
		api.POST("/bets", betHandler.CreateBet)
		api.GET("/bets", betHandler.GetMyBets)
		api.GET("/bets/:bet_id/deposit-instruction", betHandler.GetDepositInstruction)
		api.POST("/bets/:bet_id/deposit", betHandler.DepositFunds)
		api.POST("/bets/:bet_id/declare-winner", betHandler.DeclareWinner)
		api.POST("/bets/:bet_id/withdraw", betHandler.Withdraw)
		api.POST("/bets/:bet_id/arbiter-fee", betHandler.PayArbiterFee)
		api.POST("/bets/:bet_id/refund", betHandler.Refund)

		// Group bet endpoints
		api.POST("/bets/:bet_id/group-bets", groupBetHandler.PlaceGroupBet)
		api.POST("/bets/:bet_id/group-bets/settle", groupBetHandler.SettleGroupBets)

		// Dice game endpoints
		api.POST("/games", gameHandler.CreateGame)
		api.GET("/games/:game_id/join-instruction", gameHandler.GetJoinInstruction)
		api.POST("/games/:game_id/join", gameHandler.JoinGame)
		api.POST("/games/:game_id/start", gameHandler.StartGame)
		api.POST("/games/:game_id/roll", gameHandler.RollDice)
		api.POST("/games/:game_id/finalize", gameHandler.FinalizeGame)
		api.POST("/games/:game_id/claim", gameHandler.ClaimPrize)
		api.POST("/games/:game_id/emergency-withdraw", gameHandler.EmergencyWithdraw)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)
		log.Printf("Wallet auth: POST http://localhost:%s/auth/wallet", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	sweeper.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
