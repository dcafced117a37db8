package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts requests by method, path template and status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagepass_http_requests_total",
		Help: "HTTP requests processed, by method, route and status code.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency per route
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stagepass_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// OrdersCreated counts pending orders opened by checkout
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagepass_orders_created_total",
		Help: "Pending orders created by checkout.",
	})

	// SeatConflicts counts checkout attempts lost to a seat race
	SeatConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagepass_seat_conflicts_total",
		Help: "Checkout attempts rejected because a seat was taken.",
	})

	// Settlements counts applied payment settlements by outcome
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagepass_settlements_total",
		Help: "Payment settlements applied, by outcome.",
	}, []string{"outcome"})

	// SettlementReplays counts duplicate webhook deliveries absorbed
	SettlementReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagepass_settlement_replays_total",
		Help: "Duplicate payment callbacks absorbed as no-ops.",
	})

	// Refunds counts processed refunds by scope
	Refunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagepass_refunds_total",
		Help: "Refunds processed, by scope (full or partial).",
	}, []string{"scope"})

	// TicketsIssued counts tickets issued
	TicketsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagepass_tickets_issued_total",
		Help: "Tickets issued for paid orders.",
	})

	// OrdersReclaimed counts abandoned orders cancelled by the reclaimer
	OrdersReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagepass_orders_reclaimed_total",
		Help: "Abandoned orders cancelled by the background reclaimer.",
	})
)

// Handler returns the /metrics endpoint handler
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records request counts and latency per route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
