package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Plan enumerates the purchasable access plans.
type Plan string

const (
	PlanThreeMonths Plan = "3"
	PlanSevenMonths Plan = "7"
)

// Valid checks if the Plan value is one of the known plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanThreeMonths, PlanSevenMonths:
		return true
	default:
		return false
	}
}

// SubscriptionDays returns the subscription length granted by the plan.
func (p Plan) SubscriptionDays() int {
	switch p {
	case PlanSevenMonths:
		return 210
	default:
		return 90
	}
}

// AccessCode is a single-use six digit code minted after a verified payment.
type AccessCode struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Code      string     `json:"code" db:"code"`
	Plan      Plan       `json:"plan" db:"plan"`
	Username  string     `json:"username" db:"username"`
	Used      bool       `json:"used" db:"used"`
	UsedBy    *string    `json:"used_by,omitempty" db:"used_by"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	Reference string     `json:"reference" db:"reference"`
}

// RedeemCodeRequest represents parameters to redeem an access code.
type RedeemCodeRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// Validate validates RedeemCodeRequest.
func (r *RedeemCodeRequest) Validate() error {
	if r.Username == "" {
		return errors.New("username is required")
	}
	if len(r.Code) != 6 {
		return errors.New("code must be 6 digits")
	}
	for _, c := range r.Code {
		if c < '0' || c > '9' {
			return errors.New("code must be 6 digits")
		}
	}
	return nil
}
