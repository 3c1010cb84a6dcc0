package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
)

// Gateway is the subset of the payment provider the order core relies on
type Gateway interface {
	// CreateOrder registers an amount (in currency units) with the provider
	// and returns the provider's order id
	CreateOrder(ctx context.Context, amount float64, currency, receipt string) (string, error)

	// VerifySignature checks the checkout callback signature
	VerifySignature(gatewayOrderID, paymentID, signature string) bool

	// Refund returns amount of a captured payment and yields the refund id
	Refund(ctx context.Context, paymentID string, amount float64) (string, error)

	// KeyID is the public key handed to the checkout widget
	KeyID() string
}

// Razorpay implements Gateway with the official client
type Razorpay struct {
	client *razorpay.Client
	keyID  string
	secret string
}

func NewRazorpay(keyID, keySecret string) *Razorpay {
	return &Razorpay{
		client: razorpay.NewClient(keyID, keySecret),
		keyID:  keyID,
		secret: keySecret,
	}
}

func (r *Razorpay) KeyID() string { return r.keyID }

func (r *Razorpay) CreateOrder(ctx context.Context, amount float64, currency, receipt string) (string, error) {
	data := map[string]interface{}{
		"amount":   ToSubunits(amount),
		"currency": currency,
		"receipt":  receipt,
	}
	body, err := call(ctx, func() (map[string]interface{}, error) {
		return r.client.Order.Create(data, nil)
	})
	if err != nil {
		return "", fmt.Errorf("razorpay create order: %w", err)
	}
	id, ok := body["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("razorpay create order: response has no id")
	}
	return id, nil
}

func (r *Razorpay) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return VerifySignature(r.secret, gatewayOrderID, paymentID, signature)
}

func (r *Razorpay) Refund(ctx context.Context, paymentID string, amount float64) (string, error) {
	body, err := call(ctx, func() (map[string]interface{}, error) {
		return r.client.Payment.Refund(paymentID, int(ToSubunits(amount)), nil, nil)
	})
	if err != nil {
		return "", fmt.Errorf("razorpay refund: %w", err)
	}
	id, _ := body["id"].(string)
	return id, nil
}

// call runs a blocking client request and gives up when ctx is done
func call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.body, res.err
	}
}

// Signature returns the hex HMAC-SHA256 of "orderID|paymentID" under secret
func Signature(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time
func VerifySignature(secret, gatewayOrderID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Signature(secret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ToSubunits converts a currency amount to the smallest unit (paise)
func ToSubunits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
