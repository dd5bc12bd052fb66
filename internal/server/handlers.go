package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"quantspin/internal/game"
	"quantspin/internal/wallet"
)

// priceHandler serves the cached upstream price. Fetch failures fall back to
// the last cached value inside the price service; an error here means no
// price was ever fetched.
func (s *FiberServer) priceHandler(c *fiber.Ctx) error {
	price, err := s.priceService.CurrentPrice(c.Context())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error":   "Failed to fetch price",
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"price": price})
}

// trackReferralHandler credits a referral code for a new signup
func (s *FiberServer) trackReferralHandler(c *fiber.Ctx) error {
	var req struct {
		ReferralCode string `json:"referralCode"`
		NewUserID    string `json:"newUserId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ReferralCode == "" || req.NewUserID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "referralCode and newUserId are required",
		})
	}

	if err := s.tracker.Track(c.Context(), req.ReferralCode, req.NewUserID); err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to track referral",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Referral tracked",
	})
}

func (s *FiberServer) referralStatsHandler(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "userId is required",
		})
	}

	stats, err := s.tracker.StatsFor(c.Context(), userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load referral stats",
		})
	}
	return c.JSON(stats)
}

// spinStateHandler returns the caller's spin session snapshot
func (s *FiberServer) spinStateHandler(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "userId is required",
		})
	}

	state := s.spinEngine.Session(userID)
	return c.JSON(fiber.Map{
		"state":      state,
		"has_played": s.spinEngine.HasPlayed(c.Context(), userID),
	})
}

// executeSpinHandler runs one wheel spin for the user
func (s *FiberServer) executeSpinHandler(c *fiber.Ctx) error {
	var req game.SpinRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	resp, err := s.spinEngine.PlaceBet(c.Context(), req)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	spinResp := resp.(game.SpinResponse)
	if !spinResp.Success {
		return c.Status(400).JSON(spinResp)
	}
	return c.JSON(spinResp)
}

// challengeHandler runs the double-or-nothing step on a won prize
func (s *FiberServer) challengeHandler(c *fiber.Ctx) error {
	var req game.ChallengeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := s.spinEngine.ProcessAction(c.Context(), "double", req)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	challengeResp := resp.(game.ChallengeResponse)
	if !challengeResp.Success {
		return c.Status(400).JSON(challengeResp)
	}
	return c.JSON(challengeResp)
}

// validateSpinHandler records a spin with the claim ledger
func (s *FiberServer) validateSpinHandler(c *fiber.Ctx) error {
	var req game.ValidateSpinRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp := s.spinLedger.Validate(c.Context(), req)
	if !resp.Success {
		return c.Status(400).JSON(resp)
	}
	return c.JSON(resp)
}

// claimSpinHandler confirms a previously validated spin
func (s *FiberServer) claimSpinHandler(c *fiber.Ctx) error {
	var req game.ClaimSpinRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp := s.spinLedger.Claim(c.Context(), req)
	if !resp.Success {
		return c.Status(400).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) claimStatusHandler(c *fiber.Ctx) error {
	spinID := c.Params("spinId")
	if spinID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "spinId is required",
		})
	}

	status, err := s.spinLedger.Status(c.Context(), spinID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "Spin not found",
		})
	}
	return c.JSON(fiber.Map{
		"spinId": spinID,
		"status": status,
	})
}

// predictionStateHandler returns the current round, 404 before the first
// round locks a price
func (s *FiberServer) predictionStateHandler(c *fiber.Ctx) error {
	state := s.roundManager.GetCurrentRound()
	if state == nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "No active round",
		})
	}
	return c.JSON(state)
}

func (s *FiberServer) enterPredictionHandler(c *fiber.Ctx) error {
	var req game.PredictionEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	resp := s.roundManager.EnterPrediction(req)
	if !resp.Success {
		return c.Status(400).JSON(resp)
	}
	return c.JSON(resp)
}

// Wallet handlers operate on the per-user session registry.

func (s *FiberServer) walletConnectHandler(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	session := s.wallets.session(req.UserID)
	if err := session.Connect(c.Context()); err != nil {
		status := 502
		if errors.Is(err, wallet.ErrNoProvider) {
			status = 503
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(session.State())
}

func (s *FiberServer) walletDisconnectHandler(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	session := s.wallets.session(req.UserID)
	session.Disconnect(c.Context())
	return c.JSON(fiber.Map{
		"success": true,
		"state":   session.State(),
	})
}

func (s *FiberServer) walletStateHandler(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "userId is required",
		})
	}

	session := s.wallets.session(userID)
	return c.JSON(fiber.Map{
		"state":                session.State(),
		"previously_connected": session.PreviouslyConnected(c.Context()),
	})
}

func (s *FiberServer) walletSwitchHandler(c *fiber.Ctx) error {
	var req struct {
		UserID string             `json:"user_id"`
		Chain  wallet.ChainParams `json:"chain"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}
	if req.Chain.ChainID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "chain.chainId is required",
		})
	}

	session := s.wallets.session(req.UserID)
	if err := session.SwitchNetwork(c.Context(), req.Chain); err != nil {
		return c.Status(502).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(session.State())
}
