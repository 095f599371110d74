package models

import "time"

const (
	EventApplicationSubmitted = "application.submitted"
	EventPaymentCompleted     = "application.payment_completed"
	EventApplicationApproved  = "application.approved"
	EventApplicationDeclined  = "application.declined"
	EventApplicationCancelled = "application.cancelled"
	EventTrainingUpdated      = "application.training_updated"
)

// ApplicationEvent is pushed to the owning user's websocket clients.
type ApplicationEvent struct {
	Type              string    `json:"type"`
	ApplicationID     int64     `json:"application_id"`
	UserID            int64     `json:"user_id"`
	ApplicationStatus string    `json:"application_status"`
	PaymentStatus     string    `json:"payment_status"`
	TrainingStatus    *string   `json:"training_status,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

func NewApplicationEvent(eventType string, app *Application) ApplicationEvent {
	return ApplicationEvent{
		Type:              eventType,
		ApplicationID:     app.ID,
		UserID:            app.UserID,
		ApplicationStatus: app.ApplicationStatus,
		PaymentStatus:     app.PaymentStatus,
		TrainingStatus:    app.TrainingStatus,
		OccurredAt:        time.Now().UTC(),
	}
}
