package repository

import (
	"context"
	"time"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
)

type CreateTrainingSessionInput struct {
	ApplicationID int64
	UserID        int64
	CoachID       int64
	SessionDate   time.Time
	UserWeight    *float64
	Notes         *string
}

type TrainingSessionRepository struct {
	db DBTX
}

func NewTrainingSessionRepository(db DBTX) *TrainingSessionRepository {
	return &TrainingSessionRepository{db: db}
}

func (r *TrainingSessionRepository) Create(
	ctx context.Context,
	input CreateTrainingSessionInput,
) (*models.TrainingSession, error) {
	query := `
		INSERT INTO training_sessions (application_id, user_id, coach_id, session_date, user_weight, notes)
		VALUES ($1, $2, $3, $4::date, $5, $6)
		RETURNING session_id, application_id, user_id, coach_id, session_date, user_weight, notes, created_at
	`
	var session models.TrainingSession
	err := r.db.QueryRow(
		ctx,
		query,
		input.ApplicationID,
		input.UserID,
		input.CoachID,
		input.SessionDate.Format(time.DateOnly),
		input.UserWeight,
		input.Notes,
	).Scan(
		&session.ID,
		&session.ApplicationID,
		&session.UserID,
		&session.CoachID,
		&session.SessionDate,
		&session.UserWeight,
		&session.Notes,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *TrainingSessionRepository) ExistsOnDate(
	ctx context.Context,
	applicationID int64,
	day time.Time,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM training_sessions
			WHERE application_id = $1 AND session_date = $2::date
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, applicationID, day.Format(time.DateOnly)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *TrainingSessionRepository) ListByApplication(
	ctx context.Context,
	applicationID int64,
) ([]models.TrainingSession, error) {
	query := `
		SELECT session_id, application_id, user_id, coach_id, session_date, user_weight, notes, created_at
		FROM training_sessions
		WHERE application_id = $1
		ORDER BY session_date DESC, session_id DESC
	`
	rows, err := r.db.Query(ctx, query, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.TrainingSession, 0)
	for rows.Next() {
		var session models.TrainingSession
		if err := rows.Scan(
			&session.ID,
			&session.ApplicationID,
			&session.UserID,
			&session.CoachID,
			&session.SessionDate,
			&session.UserWeight,
			&session.Notes,
			&session.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}
