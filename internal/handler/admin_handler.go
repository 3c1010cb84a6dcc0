package handler

import (
	"context"
	"net/http"

	"chronora/internal/model"
	"chronora/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// listOrdersHandler handles GET /api/admin/orders?status=
func listOrdersHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.ListOrders(c.Request.Context(), c.Query("status"))
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "orders loaded", orders)
	}
}

// getOrderAdminHandler handles GET /api/admin/orders/:id
func getOrderAdminHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := pathID(c, "id")
		if !ok {
			return
		}
		order, err := svc.GetOrderAdmin(c.Request.Context(), orderID)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "order loaded", order)
	}
}

// updateOrderStatusHandler handles PATCH /api/admin/orders/:id/status
func updateOrderStatusHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req model.StatusUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.UpdateOrderStatus(c.Request.Context(), orderID, req.Status, req.Reason, actor(c))
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "order status updated", result)
	}
}

// updateItemStatusHandler handles PATCH /api/admin/orders/:id/items/:index/status
func updateItemStatusHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := pathID(c, "id")
		if !ok {
			return
		}
		index, ok := itemIndex(c)
		if !ok {
			return
		}
		var req model.StatusUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.UpdateItemStatus(c.Request.Context(), orderID, index, req.Status, req.Reason, actor(c))
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "item status updated", result)
	}
}

type orderDecision func(ctx context.Context, orderID primitive.ObjectID, reason, actor string) (*model.TransitionResult, error)

type itemDecision func(ctx context.Context, orderID primitive.ObjectID, index int, reason, actor string) (*model.TransitionResult, error)

// decideOrder wraps an admin decision taking an optional reason
func decideOrder(decide orderDecision, message string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req model.ReasonRequest
		_ = c.ShouldBindJSON(&req)

		result, err := decide(c.Request.Context(), orderID, req.Reason, actor(c))
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, message, result)
	}
}

func decideItem(decide itemDecision, message string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
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

		result, err := decide(c.Request.Context(), orderID, index, req.Reason, actor(c))
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, message, result)
	}
}

func approveCancelHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return decideOrder(svc.ApproveCancel, "cancellation approved", log)
}

func rejectCancelHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return decideOrder(svc.RejectCancel, "cancellation rejected", log)
}

func approveReturnHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return decideItem(svc.ApproveReturn, "return approved", log)
}

func rejectReturnHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return decideItem(svc.RejectReturn, "return rejected", log)
}

func markReturnedHandler(svc *service.OrderService, log *logrus.Logger) gin.HandlerFunc {
	return decideItem(svc.MarkReturned, "item returned", log)
}
