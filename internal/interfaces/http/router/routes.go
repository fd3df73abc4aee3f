package router

import (
	"github.com/faasbill/backend/internal/interfaces/http/handler"
	"github.com/faasbill/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/faasbill/backend/docs"
)

// Handlers groups the HTTP handlers of the billing API
type Handlers struct {
	Health  *handler.HealthHandler
	Tenant  *handler.TenantHandler
	Service *handler.ServiceHandler
	Plan    *handler.PricingPlanHandler
	Usage   *handler.UsageHandler
	Billing *handler.BillingHandler
}

// RouteOptions tunes per-route limits
type RouteOptions struct {
	// MaxBodySize bounds JSON bodies; zero disables the limit
	MaxBodySize int64
	// MaxUploadSize bounds POST /services, which may carry an artifact
	MaxUploadSize int64
	// IngestLimiter throttles POST /usage-events per client IP; nil disables it
	IngestLimiter *middleware.RateLimiter
	// Swagger serves the OpenAPI UI at /swagger
	Swagger bool
}

// Register mounts /health, the optional Swagger UI and every /api/v1 route
func Register(engine *gin.Engine, h Handlers, opts RouteOptions) *Router {
	engine.GET("/health", h.Health.Health)
	if opts.Swagger {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	body := middleware.BodyLimit(opts.MaxBodySize)

	health := NewDomainGroup("health", "/health").
		GET("", h.Health.Health)

	tenants := NewDomainGroup("tenants", "/tenants").Use(body).
		GET("", h.Tenant.List).
		POST("", h.Tenant.Create).
		GET("/:id", h.Tenant.Get).
		PUT("/:id", h.Tenant.Rename).
		GET("/:id/pricing-plan", h.Tenant.GetPricingPlan).
		PUT("/:id/pricing-plan", h.Tenant.AssignPricingPlan)

	// uploads get their own, larger limit
	services := NewDomainGroup("services", "/services").
		GET("", h.Service.List).
		POST("", middleware.BodyLimit(opts.MaxUploadSize), h.Service.Create).
		GET("/:id", h.Service.Get).
		GET("/:id/artifact", h.Service.DownloadArtifact)

	plans := NewDomainGroup("pricing-plans", "/pricing-plans").Use(body).
		GET("", h.Plan.List).
		POST("", h.Plan.Create)

	ingest := []gin.HandlerFunc{h.Usage.Ingest}
	if opts.IngestLimiter != nil {
		ingest = append([]gin.HandlerFunc{middleware.RateLimit(opts.IngestLimiter)}, ingest...)
	}
	events := NewDomainGroup("usage-events", "/usage-events").Use(body).
		POST("", ingest...)

	aggregates := NewDomainGroup("usage-aggregates", "/usage-aggregates").Use(body).
		GET("", h.Usage.ListAggregates).
		POST("/close", h.Usage.CloseWindows)

	billing := NewDomainGroup("billing", "/billing").Use(body).
		POST("/calculate", h.Billing.Calculate).
		POST("/generate", h.Billing.Generate)

	bills := NewDomainGroup("bills", "/bills").Use(body).
		GET("", h.Billing.ListBills).
		GET("/:id", h.Billing.GetBill).
		POST("/:id/payments", h.Billing.CreatePayment).
		GET("/:id/payment", h.Billing.GetPaymentForBill)

	payments := NewDomainGroup("payments", "/payments").Use(body).
		GET("/:id", h.Billing.GetPayment).
		POST("/:id/pay", h.Billing.Pay).
		POST("/:id/reconcile", h.Billing.Reconcile)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(health, tenants, services, plans, events, aggregates, billing, bills, payments)
	r.Setup()
	return r
}
