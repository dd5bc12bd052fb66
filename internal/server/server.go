package server

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"quantspin/internal/cache"
	"quantspin/internal/database"
	"quantspin/internal/game"
	"quantspin/internal/price"
	"quantspin/internal/store"
	"quantspin/internal/wallet"
)

type FiberServer struct {
	*fiber.App

	db           database.Service
	cache        cache.Service
	kv           store.KV
	priceService *price.Service
	spinEngine   *game.SpinEngine
	spinLedger   *game.SpinLedger
	tracker      *game.ReferralTracker
	roundManager *game.RoundManager
	gameHub      *game.Hub
	gameFactory  *game.GameFactory
	wallets      *walletRegistry
}

func New() *FiberServer {
	db := database.New()

	// Redis is preferred but optional; everything degrades to in-memory
	// stores for local runs.
	redisService := cache.New()
	var kv store.KV
	if redisService != nil {
		kv = store.NewRedisKV(redisService.GetClient(), "quantspin:")
	} else {
		kv = store.NewMemoryKV()
	}

	hub := game.NewHub()
	priceService := price.New()

	spinEngine := game.NewSpinEngine(kv, hub, game.CryptoSource{})
	spinLedger := game.NewSpinLedger(kv)
	tracker := game.NewReferralTracker(kv, db)
	roundManager := game.NewRoundManager(hub, priceService)

	factory := game.NewGameFactory(hub)
	factory.RegisterEngine(spinEngine)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "quantspin",
			AppName:       "quantspin",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:           db,
		cache:        redisService,
		kv:           kv,
		priceService: priceService,
		spinEngine:   spinEngine,
		spinLedger:   spinLedger,
		tracker:      tracker,
		roundManager: roundManager,
		gameHub:      hub,
		gameFactory:  factory,
		wallets:      newWalletRegistry(simProviderFromEnv(), kv),
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	go hub.Run()
	roundManager.Start()

	if err := factory.StartAll(); err != nil {
		log.Printf("[SERVER] Failed to start game engines: %v", err)
	}

	log.Println("[SERVER] Round manager and game engines started")

	return server
}

// simProviderFromEnv builds the simulated wallet bridge when
// WALLET_SIM_ACCOUNTS is set (comma separated); sessions created without it
// report the missing-provider error on connect.
func simProviderFromEnv() wallet.Provider {
	raw := os.Getenv("WALLET_SIM_ACCOUNTS")
	if raw == "" {
		return nil
	}
	accounts := strings.Split(raw, ",")
	chainID := os.Getenv("WALLET_SIM_CHAIN")
	if chainID == "" {
		chainID = "0x38"
	}
	return wallet.NewSimProvider(accounts, chainID)
}

// Shutdown gracefully shuts down the server and game components
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.roundManager != nil {
		s.roundManager.Stop()
	}

	if s.gameFactory != nil {
		if err := s.gameFactory.StopAll(); err != nil {
			log.Printf("[SERVER] Error stopping game engines: %v", err)
		}
	}

	if s.wallets != nil {
		s.wallets.Close()
	}

	if s.gameHub != nil {
		s.gameHub.Stop()
	}

	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
