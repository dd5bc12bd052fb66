package server

import (
	"encoding/json"
	"log"
	"runtime"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func (s *FiberServer) RegisterFiberRoutes() {
	// Apply CORS middleware
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	// Basic routes
	s.App.Get("/health", s.healthHandler)

	// Marketing-site surface kept flat to match the frontend paths
	s.App.Get("/api/price", s.priceHandler)
	s.App.Post("/api/referral/track", s.trackReferralHandler)
	s.App.Get("/api/referral/stats", s.referralStatsHandler)

	api := s.App.Group("/api/v1")

	api.Get("/spin/state", s.spinStateHandler)
	api.Post("/spin/execute", s.executeSpinHandler)
	api.Post("/spin/challenge", s.challengeHandler)
	api.Post("/spin/validate", s.validateSpinHandler)
	api.Post("/spin/claim", s.claimSpinHandler)
	api.Get("/spin/claim-status/:spinId", s.claimStatusHandler)

	api.Get("/prediction/state", s.predictionStateHandler)
	api.Post("/prediction/enter", s.enterPredictionHandler)

	api.Post("/wallet/connect", s.walletConnectHandler)
	api.Post("/wallet/disconnect", s.walletDisconnectHandler)
	api.Get("/wallet/state", s.walletStateHandler)
	api.Post("/wallet/switch-network", s.walletSwitchHandler)

	// WebSocket route
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	cacheHealth := map[string]string{"status": "in-memory"}
	if s.cache != nil {
		cacheHealth = s.cache.Health()
	}

	health := fiber.Map{
		"database": s.db.Health(),
		"cache":    cacheHealth,
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.gameHub.GetClientCount(),
		},
		"runtime": fiber.Map{
			"alloc_mb":   mem.Alloc / 1024 / 1024,
			"sys_mb":     mem.Sys / 1024 / 1024,
			"num_gc":     mem.NumGC,
			"goroutines": runtime.NumGoroutine(),
			"num_cpu":    runtime.NumCPU(),
		},
	}
	return c.JSON(health)
}

// gameWebSocketHandler handles WebSocket connections for real-time round and
// spin updates
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	// Extract user ID from query params
	userID := conn.Query("user_id", "anonymous")

	log.Printf("[WS] New connection from user: %s", userID)

	// Register client with hub
	s.gameHub.RegisterClient(conn, userID)

	// Send initial state
	currentState := s.roundManager.GetCurrentRound()
	if currentState != nil {
		stateJSON, _ := json.Marshal(map[string]interface{}{
			"type": "initial_state",
			"data": currentState,
		})
		conn.WriteMessage(websocket.TextMessage, stateJSON)
	}

	// Handle incoming messages
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for user %s: %v", userID, err)
			s.gameHub.UnregisterClient(conn)
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var clientMsg map[string]interface{}
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			continue
		}

		msgType, ok := clientMsg["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "get_state":
			stateJSON, _ := json.Marshal(map[string]interface{}{
				"type": "round_state",
				"data": s.roundManager.GetCurrentRound(),
			})
			conn.WriteMessage(websocket.TextMessage, stateJSON)

		case "ping":
			pongJSON, _ := json.Marshal(map[string]string{"type": "pong"})
			conn.WriteMessage(websocket.TextMessage, pongJSON)
		}
	}
}
