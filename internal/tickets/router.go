package tickets

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

// GetOrderTickets handles GET /api/v1/orders/:id/tickets. Pass ?format=pdf
// for the printable bundle.
func (c *Controller) GetOrderTickets(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	if ctx.Query("format") == "pdf" {
		pdfBytes, filename, err := c.service.BundlePDF(ctx.Request.Context(), orderID)
		if err != nil {
			ctx.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		ctx.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		ctx.Data(http.StatusOK, "application/pdf", pdfBytes)
		return
	}

	list, err := c.service.TicketsForOrder(ctx.Request.Context(), orderID)
	if err != nil {
		ctx.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Tickets retrieved successfully",
		"data":    gin.H{"tickets": list, "count": len(list)},
	})
}

// GetTicketQR handles GET /api/v1/tickets/:id/qr
func (c *Controller) GetTicketQR(ctx *gin.Context) {
	ticketID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ticket ID"})
		return
	}

	png, err := c.service.TicketQR(ctx.Request.Context(), ticketID)
	if err != nil {
		ctx.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	ctx.Data(http.StatusOK, "image/png", png)
}

// SetupTicketRoutes configures ticket routes
func SetupTicketRoutes(rg *gin.RouterGroup, controller *Controller) {
	rg.GET("/orders/:id/tickets", controller.GetOrderTickets)

	ticketsGroup := rg.Group("/tickets")
	{
		ticketsGroup.GET("/:id/qr", controller.GetTicketQR)
	}
}
