package handlers

import (
	"net/http"
	"strconv"

	"storefront-svc/models"
	"storefront-svc/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	orders  *service.OrderService
	returns *service.ReturnService
	admin   *service.AdminService
	logger  *zap.Logger
}

func NewAdminHandler(orders *service.OrderService, returns *service.ReturnService, admin *service.AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, returns: returns, admin: admin, logger: logger}
}

func (h *AdminHandler) ListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	orders, err := h.orders.ListAllOrders(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *AdminHandler) UpdateShipping(c *gin.Context) {
	var req models.UpdateShippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	order, err := h.orders.UpdateShipping(c.Request.Context(), c.Param("id"), service.ShippingUpdate{
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
		ShippedAt:      req.ShippedAt,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *AdminHandler) MarkDelivered(c *gin.Context) {
	var req models.MarkDeliveredRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	}

	order, err := h.orders.MarkDelivered(c.Request.Context(), c.Param("id"), req.DeliveredAt)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *AdminHandler) ListReturns(c *gin.Context) {
	returns, err := h.returns.ListReturns(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if returns == nil {
		returns = []models.OrderReturn{}
	}
	c.JSON(http.StatusOK, returns)
}

func (h *AdminHandler) UpdateReturnStatus(c *gin.Context) {
	var req models.UpdateReturnStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	decision, err := h.returns.UpdateReturnStatus(c.Request.Context(), c.Param("id"), req.Status, req.AdminNotes)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"returnRequest": decision.Return,
		"refund":        decision.Refund,
	})
}

func (h *AdminHandler) ListRefunds(c *gin.Context) {
	refunds, err := h.returns.ListRefunds(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if refunds == nil {
		refunds = []models.Refund{}
	}
	c.JSON(http.StatusOK, refunds)
}

func (h *AdminHandler) ProcessRefund(c *gin.Context) {
	var req models.ProcessRefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	}

	refund, err := h.returns.ProcessRefund(c.Request.Context(), c.Param("id"), req.Method, req.TransactionID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, refund)
}

func (h *AdminHandler) CompleteRefund(c *gin.Context) {
	var req models.CompleteRefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	}

	refund, err := h.returns.CompleteRefund(c.Request.Context(), c.Param("id"), req.TransactionID, req.Notes)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, refund)
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
