package handlers

import (
	"net/http"

	"storefront-svc/models"
	"storefront-svc/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orders *service.OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), currentUser(c), service.CreateOrderInput{
		ShippingAddress: req.ShippingAddress,
		CouponCode:      req.CouponCode,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	result, err := h.orders.CancelOrder(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	resp := models.CancelOrderResponse{
		Message: "Order cancelled successfully",
		Order:   result.Order,
	}
	if r := result.Refund; r != nil {
		resp.Message = "Order cancelled successfully. Refund has been initiated."
		resp.Refund = &models.RefundSummary{
			ID:            r.ID,
			Amount:        r.Amount,
			Status:        r.Status,
			EstimatedDays: service.RefundEstimatedDays,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) ReturnEligibility(c *gin.Context) {
	elig, err := h.orders.CheckReturnEligibility(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, elig)
}

func (h *OrderHandler) RequestReturn(c *gin.Context) {
	var req models.RequestReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	ret, err := h.orders.RequestReturn(c.Request.Context(), currentUser(c), c.Param("id"), service.ReturnInput{
		Type:   req.Type,
		Reason: req.Reason,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"returnRequest": ret})
}
