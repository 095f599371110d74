package models

import "time"

type TrainingSession struct {
	ID            int64     `json:"session_id"`
	ApplicationID int64     `json:"application_id"`
	UserID        int64     `json:"user_id"`
	CoachID       int64     `json:"coach_id"`
	SessionDate   time.Time `json:"session_date"`
	UserWeight    *float64  `json:"user_weight"`
	Notes         *string   `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}
