package events

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

// ListEvents handles GET /api/v1/events
func (c *Controller) ListEvents(ctx *gin.Context) {
	events, err := c.service.ListEvents(ctx.Request.Context())
	if err != nil {
		ctx.JSON(apperr.HTTPStatus(err), gin.H{"error": "Failed to list events"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Events retrieved successfully",
		"data":    gin.H{"events": events, "count": len(events)},
	})
}

// GetEvent handles GET /api/v1/events/:id
func (c *Controller) GetEvent(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	event, err := c.service.GetEvent(ctx.Request.Context(), eventID)
	if err != nil {
		ctx.JSON(apperr.HTTPStatus(err), gin.H{"error": "Event not found"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Event retrieved successfully",
		"data":    event,
	})
}

// SetupEventRoutes configures event routes
func SetupEventRoutes(rg *gin.RouterGroup, controller *Controller) {
	events := rg.Group("/events")
	{
		events.GET("", controller.ListEvents)
		events.GET("/:id", controller.GetEvent)
	}
}
