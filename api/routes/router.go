package routes

import (
	"context"
	"net/http"
	"time"

	"stagepass/internal/auth"
	"stagepass/internal/checkout"
	"stagepass/internal/events"
	"stagepass/internal/inventory"
	"stagepass/internal/notifications"
	"stagepass/internal/orders"
	"stagepass/internal/payments"
	"stagepass/internal/refunds"
	"stagepass/internal/shared/config"
	"stagepass/internal/shared/database"
	"stagepass/internal/shared/middleware"
	"stagepass/internal/tickets"
	"stagepass/pkg/cache"
	"stagepass/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	db       *database.DB
	producer notifications.OrderEventProducer

	// services shared across route groups
	eventService     events.Service
	inventoryService inventory.Service
	orderService     orders.Service
	paymentService   payments.Service
	ticketService    tickets.Service
	checkoutService  checkout.Service

	reclaimer *checkout.Reclaimer
}

// NewRouter creates a new router instance. The producer is owned by the
// caller; pass a NoopProducer when Kafka is disabled.
func NewRouter(cfg *config.Config, db *database.DB, producer notifications.OrderEventProducer) *Router {
	return &Router{
		config:   cfg,
		db:       db,
		producer: producer,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupServices()

	r.setupHealthRoutes(engine)

	engine.GET("/metrics", metrics.Handler())
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupAuthRoutes(api)

		events.SetupEventRoutes(api, events.NewController(r.eventService))
		inventory.SetupInventoryRoutes(api, inventory.NewController(r.inventoryService))
		orders.SetupOrderRoutes(api, orders.NewController(r.orderService))
		tickets.SetupTicketRoutes(api, tickets.NewController(r.ticketService))
		checkout.SetupCheckoutRoutes(api, checkout.NewController(r.checkoutService))

		// gateway callbacks land on the checkout pipeline
		payments.SetupPaymentRoutes(api, payments.NewController(r.paymentService, r.checkoutService))

		r.setupAdminRoutes(api)
	}
}

// setupServices builds the service graph. Construction order follows the
// dependency direction: catalog and inventory first, then orders/payments,
// then the checkout orchestrator that ties them together.
func (r *Router) setupServices() {
	pg := r.db.GetPostgreSQL()

	var cacheSvc cache.Service
	if r.db.Redis != nil {
		cacheSvc = cache.NewService(r.db.Redis)
	}

	r.eventService = events.NewService(events.NewRepository(pg), cacheSvc)

	holdStore := inventory.NewHoldStore(r.db.Redis)
	r.inventoryService = inventory.NewService(
		inventory.NewRepository(pg), holdStore, r.config.Redis.SeatHoldTTL)

	r.orderService = orders.NewService(
		orders.NewRepository(pg),
		r.config.Checkout.PriceTolerance,
		r.config.Checkout.TempUserLifetime)

	cardlink := payments.NewCardlinkClient(&r.config.Payment)
	r.paymentService = payments.NewService(payments.NewRepository(pg), &r.config.Payment, cardlink)

	signer := tickets.NewQRSigner(r.config.Ticket.SigningSecret, r.config.Ticket.QRSize)
	r.ticketService = tickets.NewService(
		tickets.NewRepository(pg),
		&ticketOrderReader{orders: r.orderService},
		&ticketEventReader{events: r.eventService},
		signer)

	r.checkoutService = checkout.NewService(
		r.eventService,
		r.inventoryService,
		r.orderService,
		r.paymentService,
		r.ticketService,
		r.producer,
		&r.config.Payment)
}

// StartReclaimer launches the abandoned-order sweeper. Call StopReclaimer
// during shutdown.
func (r *Router) StartReclaimer(ctx context.Context) {
	r.reclaimer = checkout.NewReclaimer(r.checkoutService, r.orderService, &r.config.Checkout)
	r.reclaimer.Start(ctx)
}

func (r *Router) StopReclaimer() {
	if r.reclaimer != nil {
		r.reclaimer.Stop()
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "stagepass-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "stagepass-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})
}

// setupAuthRoutes configures staff authentication routes
func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	authRepo := auth.NewRepository(r.db.GetPostgreSQL())
	authService := auth.NewService(authRepo, r.config)
	authController := auth.NewController(authService)
	authRouter := auth.NewRouter(authController, r.config)

	authRouter.SetupRoutes(rg)

	// The admin console posts here; same handler as /auth/login
	rg.POST("/admin/login", authController.Login)
}

// setupAdminRoutes configures the staff-only surface. Everything under
// /admin requires an admin token.
func (r *Router) setupAdminRoutes(rg *gin.RouterGroup) {
	refundService := refunds.NewService(
		r.orderService,
		r.paymentService,
		r.ticketService,
		r.inventoryService,
		r.eventService,
		r.producer)

	admin := rg.Group("/admin")
	admin.Use(middleware.JWTAuthWithConfig(r.config), middleware.RequireAdmin())
	{
		refunds.SetupRefundRoutes(admin, refunds.NewController(refundService))
	}
}

// ticketOrderReader adapts the order service to what ticket issuance needs
type ticketOrderReader struct {
	orders orders.Service
}

func (a *ticketOrderReader) OrderInfo(ctx context.Context, orderID uuid.UUID) (*tickets.OrderInfo, error) {
	order, err := a.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	info := &tickets.OrderInfo{
		Reference: order.Reference,
		Status:    order.Status,
		EventID:   order.EventID,
		Currency:  order.Currency,
	}
	if order.User != nil {
		info.BuyerName = order.User.Name
	}
	return info, nil
}

// ticketEventReader adapts the event catalog to the ticket header
type ticketEventReader struct {
	events events.Service
}

func (a *ticketEventReader) EventInfo(ctx context.Context, eventID uuid.UUID) (*tickets.EventInfo, error) {
	event, err := a.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return &tickets.EventInfo{
		Name:      event.Name,
		VenueName: event.VenueName,
		StartsAt:  event.StartsAt,
	}, nil
}
