package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment types as stored in payments.payment_type.
const (
	PaymentTypePurchaseHard = "purchase_hard"
	PaymentTypePurchaseSoft = "purchase_soft"
	PaymentTypeRental       = "rental"
)

// MaxRentalWeeks caps a single rental.
const MaxRentalWeeks = 52

// Payment statuses.  completed and refunded are terminal for the gateway
// flow; a failed payment may still be completed by a late confirmation.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Currencies handled by the ledger.  Books are priced in the settlement
// currency; the payer is charged in the local currency.
const (
	CurrencyUSD = "USD"
	CurrencyETB = "ETB"

	SettlementCurrency = CurrencyUSD
	LocalCurrency      = CurrencyETB
)

// Payment methods accepted by payments.payment_method.
var PaymentMethods = []string{
	"telebir", "cbe_bir", "hellocash", "dashen", "awash", "amole", "stripe", "paypal", "chapa",
}

// ValidPaymentMethod reports whether m is one of PaymentMethods.
func ValidPaymentMethod(m string) bool {
	for _, v := range PaymentMethods {
		if v == m {
			return true
		}
	}
	return false
}

// Payment mirrors a row in the `payments` table: a single attempt to pay for
// one (user, book, payment type).  Rows are created once per checkout and are
// only ever mutated to advance Status or attach gateway metadata.
type Payment struct {
	ID                  uint64          // payments.id
	UserID              *uint64         // payments.user_id (nullable for anonymous checkout)
	BookID              uint64          // payments.book_id
	PaymentType         string          // payments.payment_type
	Amount              decimal.Decimal // payments.amount (settlement currency)
	Currency            string          // payments.currency
	LocalAmount         decimal.Decimal // payments.local_amount
	LocalCurrency       string          // payments.local_currency
	ExchangeRate        decimal.Decimal // payments.exchange_rate used for LocalAmount
	PaymentMethod       string          // payments.payment_method
	TransactionID       string          // payments.transaction_id (unique tx_ref)
	Status              string          // payments.status
	GatewayReference    *string         // payments.gateway_reference
	CheckoutURL         *string         // payments.checkout_url
	CustomerEmail       string          // payments.customer_email
	CustomerName        string          // payments.customer_name
	PhoneNumber         *string         // payments.phone_number
	RentalDurationWeeks *int            // payments.rental_duration_weeks
	RentalStartDate     *time.Time      // payments.rental_start_date
	RentalEndDate       *time.Time      // payments.rental_end_date
	CreatedAt           time.Time       // payments.created_at
	UpdatedAt           time.Time       // payments.updated_at
}

// IsRental reports whether the payment buys a time-bounded rental.
func (p Payment) IsRental() bool { return p.PaymentType == PaymentTypeRental }

// PurchaseType maps the payment type onto the entitlement kind it grants.
func (p Payment) PurchaseType() string {
	switch p.PaymentType {
	case PaymentTypePurchaseHard:
		return PurchaseTypeHard
	case PaymentTypeRental:
		return PurchaseTypeRental
	default:
		return PurchaseTypeSoft
	}
}

// PaymentEvent mirrors `payment_events`, one row per accepted webhook
// delivery.  The unique key (tx_ref, status, reference) makes replays
// detectable with INSERT IGNORE.
type PaymentEvent struct {
	ID         uint64
	TxRef      string
	Status     string
	Reference  string
	Payload    string
	ReceivedAt time.Time
}
