package handler

import (
	"net/http"

	"chronora/internal/model"
	"chronora/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// placeOrderHandler handles POST /api/orders, checking out the caller's cart
func placeOrderHandler(svc *service.OrderService, carts *service.CartService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req model.PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, "invalid request body")
			return
		}

		lines, err := carts.Lines(c.Request.Context(), userID)
		if err != nil {
			fail(c, log, err)
			return
		}

		resp, err := svc.PlaceOrder(c.Request.Context(), userID, service.PlaceOrderInput{
			Lines:         lines,
			Address:       req.Address,
			PaymentMethod: req.PaymentMethod,
			CouponCode:    req.CouponCode,
		})
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusCreated, "order placed", resp)
	}
}

// verifyPaymentHandler handles POST /api/orders/:id/payment/verify
func verifyPaymentHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		orderID, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req model.VerifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, "invalid request body")
			return
		}

		order, err := svc.VerifyPayment(c.Request.Context(), userID, orderID, &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "payment verified", order)
	}
}

// listMyOrdersHandler handles GET /api/orders
func listMyOrdersHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		orders, err := svc.ListUserOrders(c.Request.Context(), userID)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "orders loaded", orders)
	}
}

// getOrderHandler handles GET /api/orders/:id
func getOrderHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		orderID, ok := pathID(c, "id")
		if !ok {
			return
		}
		order, err := svc.GetOrder(c.Request.Context(), userID, orderID)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "order loaded", order)
	}
}

// requestCancelHandler handles POST /api/orders/:id/cancel
func requestCancelHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		orderID, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req model.ReasonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.RequestCancel(c.Request.Context(), userID, orderID, req.Reason)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "cancellation requested", result)
	}
}

// cancelItemHandler handles POST /api/orders/:id/items/:index/cancel
func cancelItemHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		orderID, ok := pathID(c, "id")
		if !ok {
			return
		}
		index, ok := itemIndex(c)
		if !ok {
			return
		}
		var req model.ReasonRequest
		_ = c.ShouldBindJSON(&req)

		result, err := svc.CancelItem(c.Request.Context(), userID, orderID, index, req.Reason)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "item cancelled", result)
	}
}

// requestReturnHandler handles POST /api/orders/:id/items/:index/return
func requestReturnHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		orderID, ok := pathID(c, "id")
		if !ok {
			return
		}
		index, ok := itemIndex(c)
		if !ok {
			return
		}
		var req model.ReasonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.RequestReturn(c.Request.Context(), userID, orderID, index, req.Reason)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "return requested", result)
	}
}
