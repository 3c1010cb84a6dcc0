package handler

import (
	"net/http"

	"chronora/internal/model"
	"chronora/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// getPriceHandler handles GET /api/products/:id/price?variant_id=
func getPriceHandler(svc *service.PricingService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := pathID(c, "id")
		if !ok {
			return
		}
		var variantID *primitive.ObjectID
		if raw := c.Query("variant_id"); raw != "" {
			id, err := primitive.ObjectIDFromHex(raw)
			if err != nil {
				failure(c, http.StatusBadRequest, "invalid variant id")
				return
			}
			variantID = &id
		}

		quote, err := svc.Quote(c.Request.Context(), productID, variantID)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "price resolved", quote)
	}
}

// getCartHandler handles GET /api/cart
func getCartHandler(svc *service.CartService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		summary, err := svc.Summary(c.Request.Context(), userID)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "cart loaded", summary)
	}
}

// setCartItemHandler handles PUT /api/cart/items
func setCartItemHandler(svc *service.CartService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req model.CartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := svc.SetItem(c.Request.Context(), userID, &req); err != nil {
			fail(c, log, err)
			return
		}
		summary, err := svc.Summary(c.Request.Context(), userID)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "cart updated", summary)
	}
}

// getWalletHandler handles GET /api/wallet
func getWalletHandler(svc *service.WalletService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		wallet, err := svc.GetWallet(c.Request.Context(), userID)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusOK, "wallet loaded", wallet)
	}
}

// createOfferHandler handles POST /api/admin/offers
func createOfferHandler(svc *service.OfferService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.CreateOfferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, "invalid request body")
			return
		}
		offer, err := svc.CreateOffer(c.Request.Context(), &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		success(c, http.StatusCreated, "offer created", offer)
	}
}
