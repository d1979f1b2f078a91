package main

import (
	"io"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/moneymap/fintrack_backend/workflow"
	"github.com/sirupsen/logrus"
)

func quietTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRegisterRoutes_RestSurface(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r, quietTestLogger(), workflow.SystemClock{})

	registered := make(map[string]bool)
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	want := []string{
		"POST /v1/users/:userId/budgets",
		"GET /v1/users/:userId/budgets",
		"GET /v1/users/:userId/budgets/:id",
		"PUT /v1/users/:userId/budgets/:id",
		"DELETE /v1/users/:userId/budgets/:id",
		"POST /v1/users/:userId/incomes",
		"GET /v1/users/:userId/incomes",
		"GET /v1/users/:userId/incomes/:id",
		"DELETE /v1/users/:userId/incomes/:id",
		"GET /v1/users/:userId/transactions",
		"GET /v1/users/:userId/budget-trend",
		"GET /v1/users/:userId/budget-trend/export",
		"POST /jobs/expiration-sweep",
	}
	for _, key := range want {
		if !registered[key] {
			t.Fatalf("route %s not registered", key)
		}
	}
}
