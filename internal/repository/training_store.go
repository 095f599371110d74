package repository

import (
	"context"
	"errors"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
	"github.com/jackc/pgx/v5"
)

// TrainingStore groups the writes of the training tracker that must commit together.
type TrainingStore struct {
	db TxBeginner
}

func NewTrainingStore(db TxBeginner) *TrainingStore {
	return &TrainingStore{db: db}
}

// RecordSession locks the application row, runs guard against it, inserts the
// session and moves training_status from not_started to ongoing in one transaction.
func (s *TrainingStore) RecordSession(
	ctx context.Context,
	input CreateTrainingSessionInput,
	guard func(app *models.Application) error,
) (*models.TrainingSession, *models.Application, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txApplicationRepo := NewApplicationRepository(tx)
	txSessionRepo := NewTrainingSessionRepository(tx)

	app, err := txApplicationRepo.GetByIDForUpdate(ctx, input.ApplicationID)
	if err != nil {
		return nil, nil, err
	}
	if guard != nil {
		if err := guard(app); err != nil {
			return nil, nil, err
		}
	}

	input.UserID = app.UserID
	input.CoachID = app.CoachID
	session, err := txSessionRepo.Create(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	if app.TrainingStatus != nil && *app.TrainingStatus == models.TrainingNotStarted {
		advanced, err := txApplicationRepo.UpdateTrainingStatusIfCurrent(
			ctx,
			app.ID,
			models.TrainingNotStarted,
			models.TrainingOngoing,
		)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, err
		}
		if err == nil {
			app = advanced
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return session, app, nil
}
