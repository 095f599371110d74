package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
	"github.com/VincentPrime/endlessgrindbackend/internal/repository"
	"github.com/jackc/pgx/v5"
)

type trainingApplicationStore interface {
	GetByID(ctx context.Context, applicationID int64) (*models.Application, error)
	UpdateTrainingStatusIfCurrent(ctx context.Context, applicationID int64, currentStatus string, nextStatus string) (*models.Application, error)
}

type trainingSessionStore interface {
	ExistsOnDate(ctx context.Context, applicationID int64, day time.Time) (bool, error)
	ListByApplication(ctx context.Context, applicationID int64) ([]models.TrainingSession, error)
}

type sessionRecorder interface {
	RecordSession(
		ctx context.Context,
		input repository.CreateTrainingSessionInput,
		guard func(app *models.Application) error,
	) (*models.TrainingSession, *models.Application, error)
}

type TrainingService struct {
	applications trainingApplicationStore
	sessions     trainingSessionStore
	recorder     sessionRecorder
	notifier     Notifier
	location     *time.Location
	now          func() time.Time
}

func NewTrainingService(
	applications trainingApplicationStore,
	sessions trainingSessionStore,
	recorder sessionRecorder,
	notifier Notifier,
	location *time.Location,
) *TrainingService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if location == nil {
		location = time.Local
	}
	return &TrainingService{
		applications: applications,
		sessions:     sessions,
		recorder:     recorder,
		notifier:     notifier,
		location:     location,
		now:          time.Now,
	}
}

type LogSessionInput struct {
	Weight *float64
	Notes  *string
}

type TrainingSessionResult struct {
	Session        *models.TrainingSession `json:"session"`
	TrainingStatus string                  `json:"training_status"`
}

// LogSession records today's session for an approved application.
func (s *TrainingService) LogSession(
	ctx context.Context,
	actor Actor,
	applicationID int64,
	input LogSessionInput,
) (*TrainingSessionResult, error) {
	if !actor.valid() {
		return nil, ErrUnauthorized
	}
	if input.Weight != nil && *input.Weight <= 0 {
		return nil, invalidField("weight", "must be greater than 0")
	}
	if input.Notes != nil && strings.TrimSpace(*input.Notes) == "" {
		return nil, invalidField("notes", "must not be empty")
	}

	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, translateNotFound(err, "application")
	}
	guard := func(app *models.Application) error {
		if err := s.checkCoach(actor, app); err != nil {
			return err
		}
		if training := trainingStatus(app); training == models.TrainingCompleted {
			return fmt.Errorf("%w: training is already completed", ErrInvalidStateTransition)
		}
		return nil
	}
	if err := guard(app); err != nil {
		return nil, err
	}

	today := s.today()
	exists, err := s.sessions.ExistsOnDate(ctx, applicationID, today)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: a session was already logged today", ErrConflict)
	}

	var notes *string
	if input.Notes != nil {
		trimmed := strings.TrimSpace(*input.Notes)
		notes = &trimmed
	}

	session, updated, err := s.recorder.RecordSession(ctx, repository.CreateTrainingSessionInput{
		ApplicationID: applicationID,
		SessionDate:   today,
		UserWeight:    input.Weight,
		Notes:         notes,
	}, guard)
	if err != nil {
		switch {
		case repository.IsUniqueViolation(err):
			return nil, fmt.Errorf("%w: a session was already logged today", ErrConflict)
		case errors.Is(err, pgx.ErrNoRows):
			return nil, translateNotFound(err, "application")
		}
		return nil, err
	}

	status := trainingStatus(updated)
	slog.InfoContext(ctx, "training session logged",
		"application_id", applicationID,
		"session_id", session.ID,
		"coach_id", actor.UserID,
		"training_status", status,
	)
	if trainingStatus(app) != status {
		s.notifier.PublishApplicationEvent(models.NewApplicationEvent(models.EventTrainingUpdated, updated))
	}

	return &TrainingSessionResult{Session: session, TrainingStatus: status}, nil
}

// CompleteProgram ends training for an application. The transition is final.
func (s *TrainingService) CompleteProgram(ctx context.Context, actor Actor, applicationID int64) (*models.Application, error) {
	if !actor.valid() {
		return nil, ErrUnauthorized
	}

	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, translateNotFound(err, "application")
	}
	if err := s.checkCoach(actor, app); err != nil {
		return nil, err
	}

	current := trainingStatus(app)
	if current == models.TrainingCompleted {
		return nil, fmt.Errorf("%w: training is already completed", ErrConflict)
	}

	updated, err := s.applications.UpdateTrainingStatusIfCurrent(ctx, applicationID, current, models.TrainingCompleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: application changed concurrently", ErrInvalidStateTransition)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "training completed",
		"application_id", applicationID,
		"coach_id", actor.UserID,
		"previous_status", current,
	)
	s.notifier.PublishApplicationEvent(models.NewApplicationEvent(models.EventTrainingUpdated, updated))
	return updated, nil
}

// SessionHistory lists an application's sessions, newest first.
func (s *TrainingService) SessionHistory(ctx context.Context, actor Actor, applicationID int64) ([]models.TrainingSession, error) {
	if !actor.valid() {
		return nil, ErrUnauthorized
	}

	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, translateNotFound(err, "application")
	}
	if !actor.IsAdmin() && app.UserID != actor.UserID && app.CoachID != actor.UserID {
		return nil, ErrUnauthorized
	}

	return s.sessions.ListByApplication(ctx, applicationID)
}

// checkCoach enforces that an admin or the assigned coach acts on an approved application.
func (s *TrainingService) checkCoach(actor Actor, app *models.Application) error {
	if !actor.IsAdmin() && (!actor.IsCoach() || app.CoachID != actor.UserID) {
		return ErrUnauthorized
	}
	if app.ApplicationStatus != models.ApplicationApproved {
		return fmt.Errorf("%w: application is not approved", ErrInvalidStateTransition)
	}
	return nil
}

func (s *TrainingService) today() time.Time {
	now := s.now().In(s.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
}

func trainingStatus(app *models.Application) string {
	if app == nil || app.TrainingStatus == nil {
		return models.TrainingNotStarted
	}
	return *app.TrainingStatus
}
