package model

import "strings"

// OrderStatus is used for both orders and their line items
type OrderStatus string

const (
	StatusPending            OrderStatus = "Pending"
	StatusConfirmed          OrderStatus = "Confirmed"
	StatusProcessing         OrderStatus = "Processing"
	StatusShipped            OrderStatus = "Shipped"
	StatusOutForDelivery     OrderStatus = "Out for Delivery"
	StatusDelivered          OrderStatus = "Delivered"
	StatusCancelRequested    OrderStatus = "CancelRequested"
	StatusReturnRequested    OrderStatus = "ReturnRequested"
	StatusReturnRejected     OrderStatus = "ReturnRejected"
	StatusReturnApproved     OrderStatus = "ReturnApproved"
	StatusCancelled          OrderStatus = "Cancelled"
	StatusReturned           OrderStatus = "Returned"
	StatusPartiallyCancelled OrderStatus = "Partially Cancelled"
	StatusPartiallyReturned  OrderStatus = "Partially Returned"
	StatusPartiallyDelivered OrderStatus = "Partially Delivered"
)

// ForwardSequence is the fulfilment order admins may only move forward through
var ForwardSequence = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
}

var allStatuses = []OrderStatus{
	StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusOutForDelivery,
	StatusDelivered, StatusCancelRequested, StatusReturnRequested, StatusReturnRejected,
	StatusReturnApproved, StatusCancelled, StatusReturned, StatusPartiallyCancelled,
	StatusPartiallyReturned, StatusPartiallyDelivered,
}

var statusLookup = func() map[string]OrderStatus {
	m := make(map[string]OrderStatus, len(allStatuses))
	for _, s := range allStatuses {
		m[statusKey(string(s))] = s
	}
	// spelling used by older clients
	m[statusKey("Canceled")] = StatusCancelled
	return m
}()

func statusKey(s string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}

// ParseStatus normalizes free-form input ("cancel requested", "OUT_FOR_DELIVERY") to
// the canonical status.
func ParseStatus(s string) (OrderStatus, bool) {
	st, ok := statusLookup[statusKey(s)]
	return st, ok
}

// ForwardIndex returns the position of s in ForwardSequence, or -1
func ForwardIndex(s OrderStatus) int {
	for i, f := range ForwardSequence {
		if f == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further transition may start from s
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusReturned
}

type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "cod"
	PaymentWallet   PaymentMethod = "wallet"
	PaymentRazorpay PaymentMethod = "razorpay"
)

// ParsePaymentMethod accepts the method in any letter case
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(s))) {
	case PaymentCOD:
		return PaymentCOD, true
	case PaymentWallet:
		return PaymentWallet, true
	case PaymentRazorpay:
		return PaymentRazorpay, true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "Pending"
	PaymentPaid              PaymentStatus = "Paid"
	PaymentFailed            PaymentStatus = "Failed"
	PaymentPartiallyRefunded PaymentStatus = "Partially Refunded"
	PaymentRefunded          PaymentStatus = "Refunded"
)

// Captured reports whether money was collected from the customer
func (p PaymentStatus) Captured() bool {
	return p == PaymentPaid || p == PaymentPartiallyRefunded || p == PaymentRefunded
}
