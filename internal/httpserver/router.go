package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milk-delivery/internal/metrics"
	"milk-delivery/internal/service/delivery"
	"milk-delivery/internal/service/session"
)

type storeRegistry interface {
	Store(ctx context.Context, ownerID string) *delivery.Store
}

type authService interface {
	Login(ctx context.Context, in session.LoginInput) (*session.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (session.Principal, error)
}

// Deps are the services the router dispatches to.
type Deps struct {
	Stores      storeRegistry
	Auth        authService
	ReadyChecks map[string]func(context.Context) error
	Metrics     *metrics.HTTP
	MetricsPage http.Handler
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(log *zap.SugaredLogger, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestID(), requestLogger(log), requestMetrics(deps.Metrics), gin.Recovery())
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.ReadyChecks))
	if deps.MetricsPage != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsPage))
	}

	h := &handlers{stores: deps.Stores, auth: deps.Auth, log: log}

	v1 := router.Group("/v1")
	v1.POST("/auth/login", h.login)

	authed := v1.Group("")
	authed.Use(authMiddleware(deps.Auth))
	authed.POST("/auth/logout", h.logout)
	authed.GET("/me", h.me)
	authed.GET("/status", h.status)
	authed.POST("/refresh", h.refresh)

	owner := requireRole(session.RoleOwner)
	ownerOrAgent := requireRole(session.RoleOwner, session.RoleAgent)
	ownerOrCustomer := requireRole(session.RoleOwner, session.RoleCustomer)

	authed.GET("/customers", ownerOrAgent, h.listCustomers)
	authed.GET("/customers/:id", ownerOrAgent, h.getCustomer)
	authed.GET("/agents", owner, h.listAgents)
	authed.GET("/agents/:id", owner, h.getAgent)

	authed.GET("/assignments", h.listAssignments)
	authed.POST("/assignments", owner, h.assignWork)
	authed.PATCH("/assignments/:id/delivered", ownerOrAgent, h.toggleDelivered)
	authed.PATCH("/assignments/:id/liters", ownerOrAgent, h.updateLiters)

	reports := authed.Group("/reports")
	reports.GET("/shift", h.shiftReport)
	reports.GET("/agents", ownerOrAgent, h.agentsReport)
	reports.GET("/daily-sell", owner, h.dailySellReport)
	reports.GET("/bills", ownerOrCustomer, h.billsReport)
	reports.POST("/bulk-sell", owner, h.bulkSell)
	reports.POST("/pickup", ownerOrAgent, h.pickup)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
