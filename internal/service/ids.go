package service

import (
	"strings"

	"github.com/google/uuid"
)

// newOrderCode returns a short human-readable code such as ORD-3F9A1C07B2
func newOrderCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(raw[:10])
}

func newTransactionID() string {
	return uuid.NewString()
}
