package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type purchaseRequest struct {
	Network         string `json:"network"`
	Phone           string `json:"phone"`
	Amount          uint   `json:"amount"`
	AirtimeType     string `json:"airtime_type"`
	PlanCode        string `json:"plan_code"`
	CableProvider   string `json:"cable_provider"`
	SmartcardNumber string `json:"smartcard_number"`
	Disco           string `json:"disco"`
	MeterNumber     string `json:"meter_number"`
	MeterType       string `json:"meter_type"`
	ExamProvider    string `json:"exam_provider"`
	Quantity        int    `json:"quantity"`
	Reference       string `json:"reference" binding:"required"`
}

type verifyRequest struct {
	CableProvider   string `json:"cable_provider"`
	SmartcardNumber string `json:"smartcard_number"`
	Disco           string `json:"disco"`
	MeterNumber     string `json:"meter_number"`
	MeterType       string `json:"meter_type"`
}

// MockProvider simulates an upstream VTU vendor. Delivery rate and
// latency are tunable at runtime so failure paths can be exercised.
type MockProvider struct {
	mu           sync.Mutex
	successRate  float64
	minDelay     time.Duration
	maxDelay     time.Duration
	providerID   string
	rng          *rand.Rand
	transactions map[string]bool // reference -> delivered
}

func NewMockProvider(successRate float64, minDelay, maxDelay time.Duration) *MockProvider {
	return &MockProvider{
		successRate:  successRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		providerID:   "MOCK_VTU_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		transactions: make(map[string]bool),
	}
}

func (m *MockProvider) randomDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) shouldSucceed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.successRate
}

func (m *MockProvider) record(reference string, delivered bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[reference] = delivered
}

func (m *MockProvider) lookup(reference string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delivered, ok := m.transactions[reference]
	return delivered, ok
}

func (m *MockProvider) randomDeclineMessage() string {
	messages := []string{
		"insufficient airtime stock",
		"network operator rejected the request",
		"destination temporarily barred",
		"vendor balance too low",
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return messages[m.rng.Intn(len(messages))]
}

type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) purchase(c *gin.Context, service string, extra func(gin.H, *purchaseRequest)) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "invalid request: " + err.Error(),
		})
		return
	}

	time.Sleep(h.provider.randomDelay())

	if !h.provider.shouldSucceed() {
		msg := h.provider.randomDeclineMessage()
		h.provider.record(req.Reference, false)
		log.Warn().
			Str("service", service).
			Str("reference", req.Reference).
			Str("message", msg).
			Msg("purchase declined")
		c.JSON(http.StatusOK, gin.H{
			"success":   false,
			"message":   msg,
			"reference": req.Reference,
		})
		return
	}

	h.provider.record(req.Reference, true)
	log.Info().
		Str("service", service).
		Str("reference", req.Reference).
		Msg("purchase delivered")

	body := gin.H{
		"success":     true,
		"message":     "successful",
		"reference":   req.Reference,
		"provider_id": h.provider.providerID,
	}
	if extra != nil {
		extra(body, &req)
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) PurchaseAirtime(c *gin.Context) {
	h.purchase(c, "airtime", nil)
}

func (h *Handler) PurchaseData(c *gin.Context) {
	h.purchase(c, "data", func(body gin.H, req *purchaseRequest) {
		body["plan_code"] = req.PlanCode
	})
}

func (h *Handler) PurchaseCable(c *gin.Context) {
	h.purchase(c, "cable", func(body gin.H, req *purchaseRequest) {
		body["plan_code"] = req.PlanCode
		body["smartcard_number"] = req.SmartcardNumber
	})
}

func (h *Handler) PurchaseElectricity(c *gin.Context) {
	h.purchase(c, "electricity", func(body gin.H, req *purchaseRequest) {
		body["token"] = fmt.Sprintf("%04d-%04d-%04d-%04d",
			rand.Intn(10000), rand.Intn(10000), rand.Intn(10000), rand.Intn(10000))
		body["units"] = float64(req.Amount) / 6500.0
	})
}

func (h *Handler) PurchaseExamPin(c *gin.Context) {
	h.purchase(c, "exam-pin", func(body gin.H, req *purchaseRequest) {
		quantity := req.Quantity
		if quantity < 1 {
			quantity = 1
		}
		pins := make([]string, quantity)
		for i := range pins {
			pins[i] = fmt.Sprintf("%012d", rand.Int63n(1_000_000_000_000))
		}
		body["pins"] = pins
	})
}

func (h *Handler) VerifyCableAccount(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SmartcardNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "smartcard_number is required",
		})
		return
	}

	// Smartcards ending in 0 are treated as unknown accounts.
	if req.SmartcardNumber[len(req.SmartcardNumber)-1] == '0' {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "smartcard not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"customer_name": "JOHN DOE",
	})
}

func (h *Handler) VerifyElectricityMeter(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MeterNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "meter_number is required",
		})
		return
	}

	if req.MeterNumber[len(req.MeterNumber)-1] == '0' {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "meter not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"customer_name":    "JANE DOE",
		"customer_address": "1 Marina Road, Lagos",
	})
}

func (h *Handler) TransactionStatus(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "reference is required",
		})
		return
	}

	delivered, ok := h.provider.lookup(reference)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"success":   false,
			"message":   "transaction not found",
			"reference": reference,
		})
		return
	}

	status := "delivered"
	if !delivered {
		status = "failed"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   delivered,
		"status":    status,
		"reference": reference,
	})
}

func (h *Handler) Balance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": 25_000_000,
	})
}

func (h *Handler) Networks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": []gin.H{
		{"id": "mtn", "name": "MTN"},
		{"id": "glo", "name": "Glo"},
		{"id": "airtel", "name": "Airtel"},
		{"id": "9mobile", "name": "9mobile"},
	}})
}

func (h *Handler) CableProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": []gin.H{
		{"id": "dstv", "name": "DStv"},
		{"id": "gotv", "name": "GOtv"},
		{"id": "startimes", "name": "StarTimes"},
	}})
}

func (h *Handler) CablePlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": []gin.H{
		{"code": "DSTV-PADI", "name": "DStv Padi", "price": 360000},
		{"code": "DSTV-YANGA", "name": "DStv Yanga", "price": 510000},
		{"code": "DSTV-COMPACT", "name": "DStv Compact", "price": 1250000},
	}})
}

func (h *Handler) ElectricityProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": []gin.H{
		{"id": "ikeja-electric", "name": "Ikeja Electric"},
		{"id": "eko-electric", "name": "Eko Electricity"},
		{"id": "abuja-electric", "name": "Abuja Electricity"},
	}})
}

func (h *Handler) ExamProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": []gin.H{
		{"id": "waec", "name": "WAEC"},
		{"id": "neco", "name": "NECO"},
		{"id": "jamb", "name": "JAMB"},
	}})
}

// UpdateConfig allows changing the success rate at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var cfg struct {
		SuccessRate *float64 `json:"success_rate"`
	}

	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "invalid request: " + err.Error(),
		})
		return
	}

	if cfg.SuccessRate != nil && *cfg.SuccessRate >= 0 && *cfg.SuccessRate <= 1.0 {
		h.provider.mu.Lock()
		h.provider.successRate = *cfg.SuccessRate
		h.provider.mu.Unlock()
		log.Info().Float64("rate", *cfg.SuccessRate).Msg("updated success rate")
	}

	h.provider.mu.Lock()
	rate := h.provider.successRate
	h.provider.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"success_rate": rate,
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"provider_id": h.provider.providerID,
		"timestamp":   time.Now(),
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/airtime", handler.PurchaseAirtime)
		v1.POST("/data", handler.PurchaseData)
		v1.POST("/cable", handler.PurchaseCable)
		v1.POST("/cable/verify", handler.VerifyCableAccount)
		v1.POST("/electricity", handler.PurchaseElectricity)
		v1.POST("/electricity/verify", handler.VerifyElectricityMeter)
		v1.POST("/exam-pin", handler.PurchaseExamPin)
		v1.GET("/transactions/:reference", handler.TransactionStatus)
		v1.GET("/balance", handler.Balance)
		v1.GET("/networks", handler.Networks)
		v1.GET("/cable/providers", handler.CableProviders)
		v1.GET("/cable/plans", handler.CablePlans)
		v1.GET("/electricity/providers", handler.ElectricityProviders)
		v1.GET("/exam-pin/providers", handler.ExamProviders)
		v1.PUT("/config", handler.UpdateConfig)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	successRate := getEnvFloat("SUCCESS_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 200*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 2*time.Second)

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting mock VTU provider")

	provider := NewMockProvider(successRate, minDelay, maxDelay)
	handler := NewHandler(provider)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
