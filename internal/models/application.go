package models

import "time"

const (
	ApplicationPending   = "pending"
	ApplicationApproved  = "approved"
	ApplicationDeclined  = "declined"
	ApplicationCancelled = "cancelled"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentRefunded  = "refunded"
)

const (
	TrainingNotStarted = "not_started"
	TrainingOngoing    = "ongoing"
	TrainingCompleted  = "completed"
)

type Application struct {
	ID                   int64      `json:"application_id"`
	UserID               int64      `json:"user_id"`
	PackageID            int64      `json:"package_id"`
	CoachID              int64      `json:"coach_id"`
	Name                 string     `json:"name"`
	Nickname             *string    `json:"nickname"`
	Sex                  string     `json:"sex"`
	Age                  int        `json:"age"`
	DateOfBirth          time.Time  `json:"date_of_birth"`
	Email                string     `json:"email"`
	Facebook             *string    `json:"facebook"`
	Address              *string    `json:"address"`
	Goal                 string     `json:"goal"`
	Weight               *float64   `json:"weight"`
	Height               *float64   `json:"height"`
	WaiverAccepted       bool       `json:"waiver_accepted"`
	PaymentStatus        string     `json:"payment_status"`
	PaymentLinkID        *string    `json:"payment_link_id"`
	PaymentCheckoutURL   *string    `json:"payment_checkout_url"`
	PaymentTransactionID *string    `json:"payment_transaction_id"`
	PaidAt               *time.Time `json:"paid_at"`
	ApplicationStatus    string     `json:"application_status"`
	TrainingStatus       *string    `json:"training_status"`
	SubmittedAt          time.Time  `json:"submitted_at"`
	ReviewedAt           *time.Time `json:"reviewed_at"`
	ReviewedBy           *int64     `json:"reviewed_by"`
	CancelledAt          *time.Time `json:"cancelled_at"`
	CancelledBy          *int64     `json:"cancelled_by"`
}

// Refundable reports whether a captured payment exists that can be refunded.
func (a *Application) Refundable() bool {
	return a.PaymentStatus == PaymentCompleted &&
		a.PaymentTransactionID != nil && *a.PaymentTransactionID != ""
}

type ApplicationDetail struct {
	Application
	PackageTitle string `json:"package_title"`
	PackagePrice string `json:"package_price"`
}
