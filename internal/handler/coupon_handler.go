package handler

import (
	"net/http"

	"chronora/internal/model"
	"chronora/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// createCouponHandler handles POST /api/admin/coupons
func createCouponHandler(svc *service.CouponService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.CreateCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, "invalid request body")
			return
		}

		coupon, err := svc.CreateCoupon(c.Request.Context(), &req)
		if err != nil {
			fail(c, log, err)
			return
		}

		success(c, http.StatusCreated, "coupon created", coupon)
	}
}

// applyCouponHandler handles POST /api/coupons/apply against the caller's cart
func applyCouponHandler(svc *service.CouponService, carts *service.CartService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req model.ApplyCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, "invalid request body")
			return
		}

		summary, err := carts.Summary(c.Request.Context(), userID)
		if err != nil {
			fail(c, log, err)
			return
		}
		if summary.Subtotal <= 0 {
			failure(c, http.StatusBadRequest, "cart is empty")
			return
		}

		preview, err := svc.ApplyCoupon(c.Request.Context(), req.Code, userID, summary.Subtotal)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "coupon applied", preview)
	}
}

// listCouponsHandler handles GET /api/coupons
func listCouponsHandler(svc *service.CouponService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		coupons, err := svc.ListAvailable(c.Request.Context(), userID)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "coupons loaded", coupons)
	}
}

// listAllCouponsHandler handles GET /api/admin/coupons
func listAllCouponsHandler(svc *service.CouponService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		coupons, err := svc.ListCoupons(c.Request.Context())
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "coupons loaded", coupons)
	}
}
