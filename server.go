package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/moneymap/fintrack_backend/config"
	"github.com/moneymap/fintrack_backend/models"
	"github.com/moneymap/fintrack_backend/utils"
	"github.com/moneymap/fintrack_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = "8080"

var tracer = otel.Tracer("fintrack-backend")

var validate = validator.New()

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// PubSubPushEnvelope is the push-delivery wrapper Cloud Scheduler / Pub/Sub
// wraps around the tick payload.
type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// ownerContext stamps the path owner into the request context so the owner
// guard scopes every query below this handler.
func ownerContext(c *gin.Context) (context.Context, string, bool) {
	userId := strings.TrimSpace(c.Param("userId"))
	if userId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
		return nil, "", false
	}
	ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
	return ctx, userId, true
}

func entityId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func clearTrendCache(logger *logrus.Logger, userId string) {
	if err := utils.ClearRedisList[workflow.MonthlyBudgetPoint](userId); err != nil {
		config.LogError(logger, "server.go", "clearTrendCache", "ClearRedisList", userId, err)
	}
}

func createBudgetHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, userId, ok := ownerContext(c)
		if !ok {
			return
		}

		var input models.NewBudget
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validate.Struct(input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		budget, err := models.CreateBudget(ctx, &input)
		if err != nil {
			config.LogError(logger, "server.go", "createBudgetHandler", "CreateBudget", input, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		clearTrendCache(logger, userId)
		c.JSON(http.StatusCreated, budget)
	}
}

func updateBudgetHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, userId, ok := ownerContext(c)
		if !ok {
			return
		}
		id, ok := entityId(c)
		if !ok {
			return
		}

		var input models.NewBudget
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validate.Struct(input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		budget, err := models.UpdateBudget(ctx, id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			config.LogError(logger, "server.go", "updateBudgetHandler", "UpdateBudget", id, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		clearTrendCache(logger, userId)
		c.JSON(http.StatusOK, budget)
	}
}

func deleteBudgetHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, userId, ok := ownerContext(c)
		if !ok {
			return
		}
		id, ok := entityId(c)
		if !ok {
			return
		}

		budget, err := models.DeleteBudget(ctx, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			config.LogError(logger, "server.go", "deleteBudgetHandler", "DeleteBudget", id, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		clearTrendCache(logger, userId)
		c.JSON(http.StatusOK, budget)
	}
}

func getBudgetHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := ownerContext(c)
		if !ok {
			return
		}
		id, ok := entityId(c)
		if !ok {
			return
		}

		budget, err := models.GetBudget(ctx, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			config.LogError(logger, "server.go", "getBudgetHandler", "GetBudget", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read budget"})
			return
		}
		c.JSON(http.StatusOK, budget)
	}
}

func listBudgetsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := ownerContext(c)
		if !ok {
			return
		}

		var name *string
		if q := strings.TrimSpace(c.Query("name")); q != "" {
			name = &q
		}

		budgets, err := models.GetBudgets(ctx, name)
		if err != nil {
			config.LogError(logger, "server.go", "listBudgetsHandler", "GetBudgets", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list budgets"})
			return
		}
		c.JSON(http.StatusOK, budgets)
	}
}

func createIncomeHandler(logger *logrus.Logger, clock workflow.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := ownerContext(c)
		if !ok {
			return
		}

		var input models.NewIncome
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validate.Struct(input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		income, err := models.CreateIncome(ctx, &input, clock.Now())
		if err != nil {
			config.LogError(logger, "server.go", "createIncomeHandler", "CreateIncome", input, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, income)
	}
}

func listIncomesHandler(logger *logrus.Logger, clock workflow.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := ownerContext(c)
		if !ok {
			return
		}

		incomes, err := models.GetIncomes(ctx, clock.Now())
		if err != nil {
			config.LogError(logger, "server.go", "listIncomesHandler", "GetIncomes", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list incomes"})
			return
		}
		c.JSON(http.StatusOK, incomes)
	}
}

func getIncomeHandler(logger *logrus.Logger, clock workflow.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := ownerContext(c)
		if !ok {
			return
		}
		id, ok := entityId(c)
		if !ok {
			return
		}

		income, err := models.GetIncome(ctx, id, clock.Now())
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			config.LogError(logger, "server.go", "getIncomeHandler", "GetIncome", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read income"})
			return
		}
		c.JSON(http.StatusOK, income)
	}
}

func deleteIncomeHandler(logger *logrus.Logger, clock workflow.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := ownerContext(c)
		if !ok {
			return
		}
		id, ok := entityId(c)
		if !ok {
			return
		}

		income, err := models.DeleteIncome(ctx, id, clock.Now())
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			config.LogError(logger, "server.go", "deleteIncomeHandler", "DeleteIncome", id, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, income)
	}
}

func listTransactionsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, ok := ownerContext(c)
		if !ok {
			return
		}

		transactions, err := models.GetEntryTransactions(ctx)
		if err != nil {
			config.LogError(logger, "server.go", "listTransactionsHandler", "GetEntryTransactions", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list transactions"})
			return
		}
		c.JSON(http.StatusOK, transactions)
	}
}

// projectTrendForUser computes (or retrieves the cached) trend series.
func projectTrendForUser(ctx context.Context, logger *logrus.Logger, userId string, clock workflow.Clock) ([]workflow.MonthlyBudgetPoint, error) {
	if config.TrendCacheEnabled() {
		cached, err := utils.RetrieveRedisList[workflow.MonthlyBudgetPoint](userId)
		if err != nil {
			config.LogError(logger, "server.go", "projectTrendForUser", "RetrieveRedisList", userId, err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	budgets, err := models.GetBudgets(ctx, nil)
	if err != nil {
		return nil, err
	}
	series := workflow.ProjectBudgetTrend(budgets, clock.Now())

	if config.TrendCacheEnabled() {
		if err := utils.StoreRedisList[workflow.MonthlyBudgetPoint](series, userId); err != nil {
			config.LogError(logger, "server.go", "projectTrendForUser", "StoreRedisList", userId, err)
		}
	}
	return series, nil
}

func budgetTrendHandler(logger *logrus.Logger, clock workflow.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, userId, ok := ownerContext(c)
		if !ok {
			return
		}

		series, err := projectTrendForUser(ctx, logger, userId, clock)
		if err != nil {
			config.LogError(logger, "server.go", "budgetTrendHandler", "projectTrendForUser", userId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute budget trend"})
			return
		}

		response := gin.H{"series": series}
		if pct, ok := workflow.TrendPercentage(series); ok {
			response["trend_percentage"] = pct
		}
		c.JSON(http.StatusOK, response)
	}
}

func budgetTrendExportHandler(logger *logrus.Logger, clock workflow.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, userId, ok := ownerContext(c)
		if !ok {
			return
		}

		series, err := projectTrendForUser(ctx, logger, userId, clock)
		if err != nil {
			config.LogError(logger, "server.go", "budgetTrendExportHandler", "projectTrendForUser", userId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute budget trend"})
			return
		}

		f, err := workflow.ExportBudgetTrendXLSX(series)
		if err != nil {
			config.LogError(logger, "server.go", "budgetTrendExportHandler", "ExportBudgetTrendXLSX", userId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not render export"})
			return
		}

		c.Header("Content-Disposition", `attachment; filename="budget-trend.xlsx"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(logger, "server.go", "budgetTrendExportHandler", "Write", userId, err)
		}
	}
}

// expirationSweepHandler is the external trigger seam: Cloud Scheduler (via
// Pub/Sub push) or a plain cron POST lands here once per day.
func expirationSweepHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "expiration-sweep")
		defer span.End()

		// Push envelope is optional; a bare POST from an internal cron is
		// a valid tick too. Malformed bodies are acked to avoid infinite
		// redelivery.
		var envelope PubSubPushEnvelope
		_ = c.ShouldBindJSON(&envelope)

		result := runExpirationSweep(ctx, logger, "push-"+envelope.Message.ID)

		logger.WithFields(logrus.Fields{
			"module":    "server.go",
			"processed": len(result.Retired),
			"failed":    len(result.Failures),
			"trace_id":  trace.SpanFromContext(ctx).SpanContext().TraceID().String(),
		}).Info("expiration sweep tick handled")

		c.Status(http.StatusNoContent)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func registerRoutes(r *gin.Engine, logger *logrus.Logger, clock workflow.Clock) {
	users := r.Group("/v1/users/:userId")
	{
		users.POST("/budgets", createBudgetHandler(logger))
		users.GET("/budgets", listBudgetsHandler(logger))
		users.GET("/budgets/:id", getBudgetHandler(logger))
		users.PUT("/budgets/:id", updateBudgetHandler(logger))
		users.DELETE("/budgets/:id", deleteBudgetHandler(logger))

		users.POST("/incomes", createIncomeHandler(logger, clock))
		users.GET("/incomes", listIncomesHandler(logger, clock))
		users.GET("/incomes/:id", getIncomeHandler(logger, clock))
		users.DELETE("/incomes/:id", deleteIncomeHandler(logger, clock))

		users.GET("/transactions", listTransactionsHandler(logger))

		users.GET("/budget-trend", budgetTrendHandler(logger, clock))
		users.GET("/budget-trend/export", budgetTrendExportHandler(logger, clock))
	}
	r.POST("/jobs/expiration-sweep", expirationSweepHandler(logger))
	r.NoRoute(customNotFoundHandler)
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	clock := workflow.SystemClock{}

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r, logger, clock)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start the direct sweep processor (safety net when no external cron is wired).
	processorCtx, cancelProcessor := context.WithCancel(context.Background())
	defer cancelProcessor()
	if shouldRunDirectSweepProcessor() {
		go NewDirectSweepProcessor(logger).Run(processorCtx)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelProcessor()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
