package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Address is copied into the order at checkout; later edits to the user's
// address book do not affect placed orders.
type Address struct {
	Name    string `bson:"name" json:"name" binding:"required"`
	Phone   string `bson:"phone" json:"phone" binding:"required"`
	Line1   string `bson:"line1" json:"line1" binding:"required"`
	Line2   string `bson:"line2,omitempty" json:"line2,omitempty"`
	City    string `bson:"city" json:"city" binding:"required"`
	State   string `bson:"state" json:"state" binding:"required"`
	Pincode string `bson:"pincode" json:"pincode" binding:"required"`
	Country string `bson:"country" json:"country"`
}

// ItemTimeline records when an item entered each status. A set CancelledAt or
// ReturnedAt means the item's stock has already been released.
type ItemTimeline struct {
	ConfirmedAt       *time.Time `bson:"confirmed_at,omitempty" json:"confirmed_at,omitempty"`
	ProcessingAt      *time.Time `bson:"processing_at,omitempty" json:"processing_at,omitempty"`
	ShippedAt         *time.Time `bson:"shipped_at,omitempty" json:"shipped_at,omitempty"`
	OutForDeliveryAt  *time.Time `bson:"out_for_delivery_at,omitempty" json:"out_for_delivery_at,omitempty"`
	DeliveredAt       *time.Time `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	CancelledAt       *time.Time `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	ReturnRequestedAt *time.Time `bson:"return_requested_at,omitempty" json:"return_requested_at,omitempty"`
	ReturnApprovedAt  *time.Time `bson:"return_approved_at,omitempty" json:"return_approved_at,omitempty"`
	ReturnRejectedAt  *time.Time `bson:"return_rejected_at,omitempty" json:"return_rejected_at,omitempty"`
	ReturnedAt        *time.Time `bson:"returned_at,omitempty" json:"returned_at,omitempty"`
}

// Mark stamps the timestamp belonging to status
func (t *ItemTimeline) Mark(status OrderStatus, at time.Time) {
	ts := at
	switch status {
	case StatusConfirmed:
		t.ConfirmedAt = &ts
	case StatusProcessing:
		t.ProcessingAt = &ts
	case StatusShipped:
		t.ShippedAt = &ts
	case StatusOutForDelivery:
		t.OutForDeliveryAt = &ts
	case StatusDelivered:
		t.DeliveredAt = &ts
	case StatusCancelled:
		t.CancelledAt = &ts
	case StatusReturnRequested:
		t.ReturnRequestedAt = &ts
	case StatusReturnApproved:
		t.ReturnApprovedAt = &ts
	case StatusReturnRejected:
		t.ReturnRejectedAt = &ts
	case StatusReturned:
		t.ReturnedAt = &ts
	}
}

type RefundMethod string

const (
	RefundNone     RefundMethod = "none"
	RefundWallet   RefundMethod = "wallet"
	RefundRazorpay RefundMethod = "razorpay"
)

// ItemRefund records the settlement of a cancelled or returned item
type ItemRefund struct {
	Amount     float64      `bson:"amount" json:"amount"`
	Method     RefundMethod `bson:"method" json:"method"`
	RefundID   string       `bson:"refund_id,omitempty" json:"refund_id,omitempty"`
	RefundedAt time.Time    `bson:"refunded_at" json:"refunded_at"`
}

// OrderItem is a line of an order; it is embedded in the order document
type OrderItem struct {
	ProductID          primitive.ObjectID  `bson:"product_id" json:"product_id"`
	VariantID          primitive.ObjectID  `bson:"variant_id" json:"variant_id"`
	Name               string              `bson:"name" json:"name"`
	Color              string              `bson:"color" json:"color"`
	Quantity           int                 `bson:"quantity" json:"quantity"`
	Price              float64             `bson:"price" json:"price"`
	OriginalPrice      float64             `bson:"original_price" json:"original_price"`
	OfferID            *primitive.ObjectID `bson:"offer_id,omitempty" json:"offer_id,omitempty"`
	Status             OrderStatus         `bson:"status" json:"status"`
	Timeline           ItemTimeline        `bson:"timeline" json:"timeline"`
	CancelReason       string              `bson:"cancel_reason,omitempty" json:"cancel_reason,omitempty"`
	ReturnReason       string              `bson:"return_reason,omitempty" json:"return_reason,omitempty"`
	ReturnRejectReason string              `bson:"return_reject_reason,omitempty" json:"return_reject_reason,omitempty"`
	Refund             *ItemRefund         `bson:"refund,omitempty" json:"refund,omitempty"`
}

// Subtotal is the item's pre-coupon amount
func (i *OrderItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// Active reports whether the item is still part of the fulfilment
func (i *OrderItem) Active() bool {
	return i.Status != StatusCancelled && i.Status != StatusReturned
}

// StatusChange is one entry of the append-only audit trail
type StatusChange struct {
	Status         OrderStatus `bson:"status" json:"status"`
	PreviousStatus OrderStatus `bson:"previous_status" json:"previous_status"`
	ItemIndex      *int        `bson:"item_index,omitempty" json:"item_index,omitempty"`
	Reason         string      `bson:"reason" json:"reason"`
	Actor          string      `bson:"actor" json:"actor"`
	ChangedAt      time.Time   `bson:"changed_at" json:"changed_at"`
}

// Order is the root document of a checkout
type Order struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	Code           string              `bson:"code" json:"code"`
	UserID         primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Items          []OrderItem         `bson:"items" json:"items"`
	Status         OrderStatus         `bson:"status" json:"status"`
	PaymentMethod  PaymentMethod       `bson:"payment_method" json:"payment_method"`
	PaymentStatus  PaymentStatus       `bson:"payment_status" json:"payment_status"`
	GatewayOrderID string              `bson:"gateway_order_id,omitempty" json:"gateway_order_id,omitempty"`
	PaymentID      string              `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	Address        Address             `bson:"address" json:"address"`
	Subtotal       float64             `bson:"subtotal" json:"subtotal"`
	DeliveryCharge float64             `bson:"delivery_charge" json:"delivery_charge"`
	Discount       float64             `bson:"discount" json:"discount"`
	TotalAmount    float64             `bson:"total_amount" json:"total_amount"`
	CouponCode     string              `bson:"coupon_code,omitempty" json:"coupon_code,omitempty"`
	CouponID       *primitive.ObjectID `bson:"coupon_id,omitempty" json:"-"`
	RefundedAmount float64             `bson:"refunded_amount" json:"refunded_amount"`
	StatusHistory  []StatusChange      `bson:"status_history" json:"status_history"`
	Version        int64               `bson:"version" json:"-"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updated_at"`
}

// Record appends a history entry. Entries are never edited or removed.
func (o *Order) Record(prev, next OrderStatus, itemIndex *int, reason, actor string, at time.Time) {
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		Status:         next,
		PreviousStatus: prev,
		ItemIndex:      itemIndex,
		Reason:         reason,
		Actor:          actor,
		ChangedAt:      at,
	})
}

// LastEntryInto returns the most recent history entry that moved the order into status
func (o *Order) LastEntryInto(status OrderStatus) (StatusChange, bool) {
	for i := len(o.StatusHistory) - 1; i >= 0; i-- {
		if o.StatusHistory[i].Status == status {
			return o.StatusHistory[i], true
		}
	}
	return StatusChange{}, false
}

// Clone returns a deep copy, used for snapshots before a mutation
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		if it.Refund != nil {
			r := *it.Refund
			it.Refund = &r
		}
		c.Items[i] = it
	}
	c.StatusHistory = append([]StatusChange{}, o.StatusHistory...)
	if o.CouponID != nil {
		id := *o.CouponID
		c.CouponID = &id
	}
	return &c
}

// ItemsTotal is the sum of all item subtotals before the coupon discount
func (o *Order) ItemsTotal() float64 {
	var total float64
	for i := range o.Items {
		total += o.Items[i].Subtotal()
	}
	return total
}

// PlaceOrderRequest represents the checkout request body
type PlaceOrderRequest struct {
	Address       Address `json:"address" binding:"required"`
	PaymentMethod string  `json:"payment_method" binding:"required"`
	CouponCode    string  `json:"coupon_code"`
}

// PlaceOrderResponse is returned after a successful checkout
type PlaceOrderResponse struct {
	OrderID        string  `json:"order_id"`
	OrderCode      string  `json:"order_code"`
	TotalAmount    float64 `json:"total_amount"`
	Status         string  `json:"status"`
	PaymentStatus  string  `json:"payment_status"`
	GatewayOrderID string  `json:"gateway_order_id,omitempty"`
	GatewayKeyID   string  `json:"gateway_key_id,omitempty"`
	Currency       string  `json:"currency"`
}

// VerifyPaymentRequest carries the gateway callback fields
type VerifyPaymentRequest struct {
	GatewayOrderID string `json:"razorpay_order_id" binding:"required"`
	PaymentID      string `json:"razorpay_payment_id" binding:"required"`
	Signature      string `json:"razorpay_signature" binding:"required"`
}

// StatusUpdateRequest represents an admin status change
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// ReasonRequest is used by cancel/return/reject calls
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// RefundResult describes the settlement of one item
type RefundResult struct {
	ItemIndex int          `json:"item_index"`
	Amount    float64      `json:"amount"`
	Method    RefundMethod `json:"method"`
	RefundID  string       `json:"refund_id,omitempty"`
}

// TransitionResult is returned by lifecycle operations
type TransitionResult struct {
	OrderID      string         `json:"order_id"`
	Status       OrderStatus    `json:"status"`
	RefundAmount float64        `json:"refund_amount"`
	Refunds      []RefundResult `json:"refunds,omitempty"`
}
