package inventory

import (
	"net/http"

	"stagepass/internal/shared/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// GetSeatMap handles GET /api/v1/events/:id/seats
func (c *Controller) GetSeatMap(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	seatMap, err := c.service.GetSeatMap(ctx.Request.Context(), eventID)
	if err != nil {
		ctx.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Seat map retrieved successfully",
		"data":    seatMap,
	})
}

// HoldSeats handles POST /api/v1/seats/hold
func (c *Controller) HoldSeats(ctx *gin.Context) {
	var req SeatHoldRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	hold, err := c.service.HoldSeats(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Seats held successfully",
		"data":    hold,
	})
}

// ReleaseHold handles DELETE /api/v1/seats/hold/:holdId
func (c *Controller) ReleaseHold(ctx *gin.Context) {
	holdID := ctx.Param("holdId")
	if holdID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Hold ID is required"})
		return
	}

	if err := c.service.ReleaseHold(ctx.Request.Context(), holdID); err != nil {
		ctx.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Hold released successfully"})
}

// SetupInventoryRoutes configures seat map and hold routes
func SetupInventoryRoutes(rg *gin.RouterGroup, controller *Controller) {
	rg.GET("/events/:id/seats", controller.GetSeatMap)

	seats := rg.Group("/seats")
	{
		seats.POST("/hold", controller.HoldSeats)
		seats.DELETE("/hold/:holdId", controller.ReleaseHold)
	}
}
