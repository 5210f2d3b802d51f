package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus enumerates verified payment outcomes.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Valid checks if the PaymentStatus value is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// Payment records a processed gateway transaction. Reference is the gateway
// transaction reference and is unique; replays of the same reference are no-ops.
type Payment struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	Reference string        `json:"reference" db:"reference"`
	Username  string        `json:"username" db:"username"`
	Email     string        `json:"email" db:"email"`
	Amount    int64         `json:"amount" db:"amount"`
	Currency  string        `json:"currency" db:"currency"`
	Plan      Plan          `json:"plan" db:"plan"`
	Status    PaymentStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
