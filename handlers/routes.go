package handlers

import (
	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Services struct {
	Coupons  *service.CouponService
	Orders   *service.OrderService
	Payments *service.PaymentService
	Returns  *service.ReturnService
	Cart     *service.CartService
	Catalog  *service.CatalogService
	Admin    *service.AdminService
}

// RegisterRoutes mounts the REST API. Everything except the catalog reads
// requires a bearer token; /admin and coupon management require the admin role.
func RegisterRoutes(router gin.IRouter, svc Services, jwtSecret []byte, logger *zap.Logger) {
	products := NewProductHandler(svc.Catalog, logger)
	router.GET("/products", products.GetProducts)
	router.GET("/products/:id", products.GetProduct)

	auth := router.Group("/", middleware.AuthMiddleware(jwtSecret))
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	coupons := NewCouponHandler(svc.Coupons, logger)
	auth.POST("/coupons/apply", coupons.ApplyCoupon)
	auth.POST("/coupons", adminOnly, coupons.CreateCoupon)
	auth.GET("/coupons", adminOnly, coupons.ListCoupons)
	auth.DELETE("/coupons/:id", adminOnly, coupons.DeleteCoupon)

	cart := NewCartHandler(svc.Cart, logger)
	auth.GET("/cart", cart.GetCart)
	auth.POST("/cart/items", cart.AddItem)
	auth.PUT("/cart/items/:id", cart.UpdateItem)
	auth.DELETE("/cart/items/:id", cart.RemoveItem)

	orders := NewOrderHandler(svc.Orders, logger)
	auth.POST("/orders", orders.CreateOrder)
	auth.GET("/orders", orders.ListOrders)
	auth.GET("/orders/:id", orders.GetOrder)
	auth.POST("/orders/:id/cancel", orders.CancelOrder)
	auth.GET("/orders/:id/return-eligibility", orders.ReturnEligibility)
	auth.POST("/orders/:id/return", orders.RequestReturn)

	payments := NewPaymentHandler(svc.Payments, logger)
	auth.POST("/payment/create-order", payments.CreatePaymentOrder)
	auth.POST("/payment/verify", payments.VerifyPayment)

	admin := NewAdminHandler(svc.Orders, svc.Returns, svc.Admin, logger)
	adminGroup := auth.Group("/admin", adminOnly)
	adminGroup.GET("/orders", admin.ListOrders)
	adminGroup.PATCH("/orders/:id/shipping", admin.UpdateShipping)
	adminGroup.PATCH("/orders/:id/delivery", admin.MarkDelivered)
	adminGroup.GET("/returns", admin.ListReturns)
	adminGroup.PATCH("/returns/:id/status", admin.UpdateReturnStatus)
	adminGroup.GET("/refunds", admin.ListRefunds)
	adminGroup.POST("/refunds/:id/process", admin.ProcessRefund)
	adminGroup.POST("/refunds/:id/complete", admin.CompleteRefund)
	adminGroup.GET("/stats", admin.Stats)
}
