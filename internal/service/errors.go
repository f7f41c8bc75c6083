package service

import "errors"

// Domain rule violations.  Handlers answer these with 400 and the message.
var (
	ErrHardNotAvailable    = errors.New("Hard copy not available")
	ErrSoftNotAvailable    = errors.New("Soft copy not available")
	ErrRentalNotAvailable  = errors.New("Rental not available")
	ErrRentalTooLong       = errors.New("rental duration exceeds the maximum number of weeks")
	ErrInvalidPaymentType  = errors.New("invalid payment type")
	ErrInvalidMethod       = errors.New("invalid payment method")
	ErrInvalidBookType     = errors.New("invalid book type")
	ErrNotRefundable       = errors.New("only completed payments can be refunded")
	ErrPaymentNotCompleted = errors.New("payment is not completed")
	ErrRentalWithoutEnd    = errors.New("rental payment has no end date")
)

// ErrDemoDisabled is returned by the synchronous demo path outside test mode.
var ErrDemoDisabled = errors.New("demo payments are only available in test mode")

// ErrGateway marks failures reported by the payment provider.  The concrete
// error is a *GatewayError whose message is safe to return to clients.
var ErrGateway = errors.New("payment gateway error")

// GatewayError carries the client-safe message of a provider failure.
type GatewayError struct {
	Message    string
	StatusCode int
}

func (e *GatewayError) Error() string { return e.Message }

// Is lets errors.Is(err, ErrGateway) match.
func (e *GatewayError) Is(target error) bool { return target == ErrGateway }
