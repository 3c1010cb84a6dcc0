package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the transport layer
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExternal:
		return "external_service"
	default:
		return "internal"
	}
}

// Error is a business error carrying a user-facing message
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func NotFound(msg string) *Error   { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error   { return &Error{Kind: KindConflict, Message: msg} }
func External(msg string) *Error   { return &Error{Kind: KindExternal, Message: msg} }

func Validationf(format string, args ...interface{}) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// Domain errors
var (
	ErrInvalidID      = Validation("invalid id")
	ErrInvalidRequest = Validation("invalid request body")

	ErrProductNotFound = NotFound("product not found")
	ErrVariantNotFound = NotFound("variant not found")
	ErrProductBlocked  = Validation("product is not available")
	ErrOutOfStock      = Conflict("insufficient stock")

	ErrOfferInvalid = Validation("invalid offer")

	ErrCouponNotFound      = NotFound("coupon not found")
	ErrCouponAlreadyExists = Conflict("coupon already exists")
	ErrCouponInactive      = Validation("coupon is not active")
	ErrCouponNotStarted    = Validation("coupon is not valid yet")
	ErrCouponExpired       = Validation("coupon has expired")
	ErrCouponNotAllowed    = Validation("coupon is not available for this user")
	ErrCouponMinPurchase   = Validation("cart total is below the coupon minimum purchase")
	ErrCouponUserLimit     = Conflict("coupon usage limit reached for this user")
	ErrCouponExhausted     = Conflict("coupon usage limit reached")

	ErrUserNotFound        = NotFound("user not found")
	ErrUserBlocked         = Validation("account is blocked")
	ErrInsufficientBalance = Conflict("insufficient wallet balance")

	ErrCartEmpty             = Validation("cart is empty")
	ErrInvalidPaymentMethod  = Validation("invalid payment method")
	ErrCODLimitExceeded      = Validation("cash on delivery is not available for this order amount")
	ErrOrderNotFound         = NotFound("order not found")
	ErrItemNotFound          = NotFound("order item not found")
	ErrInvalidStatus         = Validation("invalid order status")
	ErrInvalidTransition     = Conflict("invalid status transition")
	ErrOrderClosed           = Conflict("order is already closed")
	ErrPendingRequest        = Conflict("order has a pending cancel or return request")
	ErrNoPendingRequest      = Conflict("no matching pending request")
	ErrItemNotCancellable    = Conflict("item can no longer be cancelled")
	ErrItemNotReturnable     = Conflict("item is not eligible for return")
	ErrAlreadyCancelled      = Conflict("item is already cancelled")
	ErrAlreadyReturned       = Conflict("item is already returned")
	ErrReturnAlreadyHandled  = Conflict("return was already requested for this item")
	ErrConcurrentUpdate      = Conflict("order was modified concurrently, retry")
	ErrPaymentNotPending     = Conflict("payment is not awaiting verification")
	ErrPaymentVerification   = Validation("payment verification failed")
	ErrPaymentIncomplete     = Conflict("payment has not been completed for this order")
	ErrGatewayUnavailable    = External("payment gateway unavailable")
)

// KindOf returns the kind of err, KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err onto a response status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Is re-exports errors.Is so callers need a single import
func Is(err, target error) bool { return errors.Is(err, target) }
