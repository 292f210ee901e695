package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

type PaymentMethod string

const (
	MethodCash       PaymentMethod = "cash"
	MethodCreditCard PaymentMethod = "credit_card"
	MethodDebitCard  PaymentMethod = "debit_card"
	MethodPix        PaymentMethod = "pix"
	MethodInsurance  PaymentMethod = "insurance"
	MethodPending    PaymentMethod = "pending"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case MethodCash, MethodCreditCard, MethodDebitCard, MethodPix, MethodInsurance, MethodPending:
		return m, nil
	case "":
		return MethodPending, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
}

// Invoice is the billing record attached to one booking.
type Invoice struct {
	BookingID     uuid.UUID       `json:"booking_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Paid          bool            `json:"paid"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate rejects amounts below zero and unknown methods.
func (i Invoice) Validate() error {
	if i.Amount.IsNegative() {
		return errors.New("invoice amount cannot be negative")
	}
	if _, err := ParsePaymentMethod(string(i.PaymentMethod)); err != nil {
		return err
	}
	return nil
}
