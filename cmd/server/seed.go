package main

import (
	"time"

	"chronora/internal/auth"
	"chronora/internal/model"
	"chronora/internal/repository/memory"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// seedDemo fills the in-memory store with one watch, a customer and an admin
// and logs tokens for both so the API can be tried locally
func seedDemo(store *memory.Store, tokens *auth.Manager, log *logrus.Logger) {
	now := time.Now()
	productID := store.PutProduct(model.Product{
		Name:       "Chronora Diver 300",
		Price:      1500,
		CategoryID: primitive.NewObjectID(),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	variantID := store.PutVariant(model.Variant{
		ProductID: productID,
		Color:     "black",
		Stock:     10,
		CreatedAt: now,
		UpdatedAt: now,
	})
	userID := store.PutUser(model.User{
		Name:      "Demo Customer",
		Email:     "customer@example.com",
		Wallet:    model.Wallet{Balance: 5000},
		CreatedAt: now,
	})
	adminID := primitive.NewObjectID()

	userToken, err := tokens.GenerateToken(userID.Hex(), auth.RoleUser)
	if err != nil {
		log.Errorf("Seed: failed to sign customer token: %v", err)
		return
	}
	adminToken, err := tokens.GenerateToken(adminID.Hex(), auth.RoleAdmin)
	if err != nil {
		log.Errorf("Seed: failed to sign admin token: %v", err)
		return
	}

	log.WithFields(logrus.Fields{
		"product_id":  productID.Hex(),
		"variant_id":  variantID.Hex(),
		"user_id":     userID.Hex(),
		"user_token":  userToken,
		"admin_token": adminToken,
	}).Info("Seeded demo catalog")
}
