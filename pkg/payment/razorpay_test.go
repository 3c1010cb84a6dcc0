package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "test_secret"
	sig := Signature(secret, "order_123", "pay_456")

	tests := []struct {
		name      string
		secret    string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid", secret, "order_123", "pay_456", sig, true},
		{"wrong payment", secret, "order_123", "pay_999", sig, false},
		{"wrong order", secret, "order_999", "pay_456", sig, false},
		{"wrong secret", "other", "order_123", "pay_456", sig, false},
		{"empty signature", secret, "order_123", "pay_456", "", false},
		{"empty secret", "", "order_123", "pay_456", sig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(tt.secret, tt.orderID, tt.paymentID, tt.signature))
		})
	}
}

func TestSignatureIsHexSHA256(t *testing.T) {
	sig := Signature("k", "a", "b")
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, Signature("k", "a", "b"))
}

func TestToSubunits(t *testing.T) {
	assert.Equal(t, int64(120000), ToSubunits(1200))
	assert.Equal(t, int64(1999), ToSubunits(19.99))
	assert.Equal(t, int64(10), ToSubunits(0.1))
	assert.Equal(t, int64(0), ToSubunits(0))
}

func TestRazorpayVerifyUsesSecret(t *testing.T) {
	gw := NewRazorpay("rzp_test_key", "s3cret")
	assert.Equal(t, "rzp_test_key", gw.KeyID())
	assert.True(t, gw.VerifySignature("order_1", "pay_1", Signature("s3cret", "order_1", "pay_1")))
	assert.False(t, gw.VerifySignature("order_1", "pay_1", Signature("other", "order_1", "pay_1")))
}
