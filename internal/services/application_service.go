package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
	"github.com/VincentPrime/endlessgrindbackend/internal/repository"
	"github.com/jackc/pgx/v5"
)

const refundReason = "requested_by_customer"

type applicationStore interface {
	Create(ctx context.Context, input repository.CreateApplicationInput) (*models.Application, error)
	GetByID(ctx context.Context, applicationID int64) (*models.Application, error)
	HasActiveForUser(ctx context.Context, userID int64) (bool, error)
	LatestForUser(ctx context.Context, userID int64) (*models.ApplicationDetail, error)
	Delete(ctx context.Context, applicationID int64) error
	AttachPaymentLink(ctx context.Context, applicationID int64, linkID string, checkoutURL string) (*models.Application, error)
	MarkPaidByLink(ctx context.Context, linkID string, transactionID string) (*models.Application, error)
	ApproveIfCurrent(ctx context.Context, applicationID int64, currentStatus string, reviewerID int64) (*models.Application, error)
	DeclineIfCurrent(ctx context.Context, applicationID int64, currentStatus string, reviewerID int64, refunded bool) (*models.Application, error)
	CancelIfCurrent(ctx context.Context, applicationID int64, currentStatus string, actorID int64, refunded bool) (*models.Application, error)
}

type packageReader interface {
	GetByID(ctx context.Context, packageID int64) (*models.Package, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type ApplicationService struct {
	applications applicationStore
	packages     packageReader
	users        userReader
	gateway      PaymentGateway
	notifier     Notifier
}

func NewApplicationService(
	applications applicationStore,
	packages packageReader,
	users userReader,
	gateway PaymentGateway,
	notifier Notifier,
) *ApplicationService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ApplicationService{
		applications: applications,
		packages:     packages,
		users:        users,
		gateway:      gateway,
		notifier:     notifier,
	}
}

type SubmitApplicationInput struct {
	PackageID      int64
	CoachID        int64
	Name           string
	Nickname       *string
	Sex            string
	Age            int
	DateOfBirth    string
	Email          string
	Facebook       *string
	Address        *string
	Goal           string
	Weight         *float64
	Height         *float64
	WaiverAccepted bool
}

type SubmitResult struct {
	ApplicationID int64  `json:"application_id"`
	PaymentURL    string `json:"payment_url"`
	Amount        string `json:"amount"`
	AmountMinor   int64  `json:"amount_minor"`
}

type CancelResult struct {
	RefundInitiated bool `json:"refund_initiated"`
}

// Submit validates the intake, stores a pending application and opens a
// payment link for it. A failure after the insert rolls the row back.
func (s *ApplicationService) Submit(
	ctx context.Context,
	actor Actor,
	input SubmitApplicationInput,
) (*SubmitResult, error) {
	if !actor.valid() {
		return nil, ErrUnauthorized
	}
	create, err := validateSubmission(actor.UserID, input)
	if err != nil {
		return nil, err
	}

	active, err := s.applications.HasActiveForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf("%w: an active application already exists", ErrConflict)
	}

	pkg, err := s.packages.GetByID(ctx, create.PackageID)
	if err != nil {
		return nil, translateNotFound(err, "package")
	}

	coach, err := s.users.GetByID(ctx, create.CoachID)
	if err != nil {
		return nil, translateNotFound(err, "coach")
	}
	if coach.Role != models.RoleCoach {
		return nil, fmt.Errorf("%w: coach", ErrNotFound)
	}

	amountMinor := pkg.PriceMinorUnits()
	var (
		app  *models.Application
		link *PaymentLink
	)

	submission := newSaga("submit_application",
		sagaStep{
			name: "insert_application",
			execute: func(ctx context.Context) error {
				created, err := s.applications.Create(ctx, create)
				if err != nil {
					switch {
					case repository.IsUniqueViolation(err):
						return fmt.Errorf("%w: an active application already exists", ErrConflict)
					case repository.IsForeignKeyViolation(err):
						return fmt.Errorf("%w: referenced user, coach or package", ErrNotFound)
					}
					return err
				}
				app = created
				return nil
			},
			compensate: func(ctx context.Context) error {
				if err := s.applications.Delete(ctx, app.ID); err != nil {
					return fmt.Errorf("delete application %d: %w", app.ID, err)
				}
				slog.InfoContext(ctx, "rolled back application", "application_id", app.ID)
				return nil
			},
		},
		sagaStep{
			name: "create_payment_link",
			execute: func(ctx context.Context) error {
				created, err := s.gateway.CreatePaymentLink(ctx, PaymentLinkRequest{
					AmountMinor: amountMinor,
					Description: "Gym Membership - " + pkg.Title,
					Remarks:     "Application ID: " + strconv.FormatInt(app.ID, 10),
					Metadata: map[string]string{
						"application_id": strconv.FormatInt(app.ID, 10),
						"user_id":        strconv.FormatInt(actor.UserID, 10),
						"package_id":     strconv.FormatInt(pkg.ID, 10),
					},
				})
				if err != nil {
					return err
				}
				link = created
				return nil
			},
			compensate: func(ctx context.Context) error {
				return s.gateway.ArchivePaymentLink(ctx, link.ID)
			},
		},
		sagaStep{
			name: "attach_payment_link",
			execute: func(ctx context.Context) error {
				updated, err := s.applications.AttachPaymentLink(ctx, app.ID, link.ID, link.CheckoutURL)
				if err != nil {
					return err
				}
				app = updated
				return nil
			},
		},
	)

	if err := submission.run(ctx); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "application submitted",
		"application_id", app.ID,
		"user_id", actor.UserID,
		"payment_link_id", link.ID,
		"amount_minor", amountMinor,
	)
	s.notifier.PublishApplicationEvent(models.NewApplicationEvent(models.EventApplicationSubmitted, app))

	return &SubmitResult{
		ApplicationID: app.ID,
		PaymentURL:    link.CheckoutURL,
		Amount:        pkg.Price.StringFixed(2),
		AmountMinor:   amountMinor,
	}, nil
}

// Cancel withdraws the actor's own pending application.
func (s *ApplicationService) Cancel(ctx context.Context, actor Actor, applicationID int64) (*CancelResult, error) {
	if !actor.valid() {
		return nil, ErrUnauthorized
	}

	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, translateNotFound(err, "application")
	}
	if app.UserID != actor.UserID {
		return nil, ErrUnauthorized
	}
	switch app.ApplicationStatus {
	case models.ApplicationPending:
	case models.ApplicationApproved:
		return nil, fmt.Errorf("%w: approved applications can only be withdrawn by staff", ErrInvalidStateTransition)
	default:
		return nil, fmt.Errorf("%w: application is already %s", ErrInvalidStateTransition, app.ApplicationStatus)
	}

	return s.cancel(ctx, actor, app, "cancelled by member")
}

// AdminCancel withdraws any application that is not already cancelled.
func (s *ApplicationService) AdminCancel(ctx context.Context, actor Actor, applicationID int64) (*CancelResult, error) {
	if !actor.valid() || !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}

	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, translateNotFound(err, "application")
	}
	if app.ApplicationStatus == models.ApplicationCancelled {
		return nil, fmt.Errorf("%w: application is already cancelled", ErrInvalidStateTransition)
	}

	return s.cancel(ctx, actor, app, "cancelled by staff")
}

func (s *ApplicationService) cancel(
	ctx context.Context,
	actor Actor,
	app *models.Application,
	note string,
) (*CancelResult, error) {
	refunded := s.refundIfPaid(ctx, app, note)

	updated, err := s.applications.CancelIfCurrent(ctx, app.ID, app.ApplicationStatus, actor.UserID, refunded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if refunded {
				slog.ErrorContext(ctx, "refund issued but application changed concurrently",
					"application_id", app.ID,
				)
			}
			return nil, fmt.Errorf("%w: application changed concurrently", ErrInvalidStateTransition)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "application cancelled",
		"application_id", updated.ID,
		"actor_id", actor.UserID,
		"role", actor.Role,
		"refunded", refunded,
	)
	s.notifier.PublishApplicationEvent(models.NewApplicationEvent(models.EventApplicationCancelled, updated))

	return &CancelResult{RefundInitiated: refunded}, nil
}

// Approve accepts a pending application, or reverses an earlier decline.
// Payment status is not consulted.
func (s *ApplicationService) Approve(ctx context.Context, actor Actor, applicationID int64) (*models.Application, error) {
	if !actor.valid() || !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}

	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, translateNotFound(err, "application")
	}
	if err := approvable(app); err != nil {
		return nil, err
	}

	updated, err := s.applications.ApproveIfCurrent(ctx, applicationID, app.ApplicationStatus, actor.UserID)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user already has an active application", ErrConflict)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		current, getErr := s.applications.GetByID(ctx, applicationID)
		if getErr != nil {
			return nil, translateNotFound(getErr, "application")
		}
		if err := approvable(current); err != nil {
			return nil, err
		}
		return nil, ErrInvalidStateTransition
	}

	slog.InfoContext(ctx, "application approved",
		"application_id", updated.ID,
		"previous_status", app.ApplicationStatus,
		"reviewed_by", actor.UserID,
		"payment_status", updated.PaymentStatus,
	)
	s.notifier.PublishApplicationEvent(models.NewApplicationEvent(models.EventApplicationApproved, updated))
	return updated, nil
}

func approvable(app *models.Application) error {
	switch app.ApplicationStatus {
	case models.ApplicationPending, models.ApplicationDeclined:
		return nil
	case models.ApplicationApproved:
		return fmt.Errorf("%w: application is already approved", ErrConflict)
	default:
		return fmt.Errorf("%w: application is %s", ErrInvalidStateTransition, app.ApplicationStatus)
	}
}

// Decline rejects a pending application. Declining an approved application is
// allowed as a staff override, and declining again retries a refund that
// failed the first time.
func (s *ApplicationService) Decline(ctx context.Context, actor Actor, applicationID int64) (*CancelResult, error) {
	if !actor.valid() || !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}

	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, translateNotFound(err, "application")
	}
	switch app.ApplicationStatus {
	case models.ApplicationPending, models.ApplicationApproved, models.ApplicationDeclined:
	default:
		return nil, fmt.Errorf("%w: application is %s", ErrInvalidStateTransition, app.ApplicationStatus)
	}

	refunded := s.refundIfPaid(ctx, app, "declined by staff")

	updated, err := s.applications.DeclineIfCurrent(ctx, app.ID, app.ApplicationStatus, actor.UserID, refunded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if refunded {
				slog.ErrorContext(ctx, "refund issued but application changed concurrently",
					"application_id", app.ID,
				)
			}
			return nil, fmt.Errorf("%w: application changed concurrently", ErrInvalidStateTransition)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "application declined",
		"application_id", updated.ID,
		"previous_status", app.ApplicationStatus,
		"reviewed_by", actor.UserID,
		"refunded", refunded,
	)
	s.notifier.PublishApplicationEvent(models.NewApplicationEvent(models.EventApplicationDeclined, updated))

	return &CancelResult{RefundInitiated: refunded}, nil
}

// ReconcilePayment applies a "payment link paid" notification. Unknown links and
// links that were already reconciled are ignored.
func (s *ApplicationService) ReconcilePayment(ctx context.Context, linkID string, transactionID string) error {
	linkID = strings.TrimSpace(linkID)
	transactionID = strings.TrimSpace(transactionID)
	if linkID == "" {
		return invalidField("payment_link_id", "is required")
	}
	if transactionID == "" {
		return invalidField("payment_id", "is required")
	}

	app, err := s.applications.MarkPaidByLink(ctx, linkID, transactionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.InfoContext(ctx, "no pending payment for link", "payment_link_id", linkID)
			return nil
		}
		return err
	}

	if app.ApplicationStatus == models.ApplicationCancelled || app.ApplicationStatus == models.ApplicationDeclined {
		slog.WarnContext(ctx, "payment captured for closed application, manual refund required",
			"application_id", app.ID,
			"application_status", app.ApplicationStatus,
			"payment_transaction_id", transactionID,
		)
	} else {
		slog.InfoContext(ctx, "payment reconciled",
			"application_id", app.ID,
			"payment_link_id", linkID,
			"payment_transaction_id", transactionID,
		)
	}
	s.notifier.PublishApplicationEvent(models.NewApplicationEvent(models.EventPaymentCompleted, app))
	return nil
}

func (s *ApplicationService) GetMyApplication(ctx context.Context, actor Actor) (*models.ApplicationDetail, error) {
	if !actor.valid() {
		return nil, ErrUnauthorized
	}
	detail, err := s.applications.LatestForUser(ctx, actor.UserID)
	if err != nil {
		return nil, translateNotFound(err, "application")
	}
	return detail, nil
}

// refundIfPaid issues at most one refund for the full package price. Failures
// are logged and reported as false so the status change can still proceed.
func (s *ApplicationService) refundIfPaid(ctx context.Context, app *models.Application, note string) bool {
	if !app.Refundable() {
		return false
	}

	pkg, err := s.packages.GetByID(ctx, app.PackageID)
	if err != nil {
		slog.ErrorContext(ctx, "refund skipped, package lookup failed",
			"application_id", app.ID,
			"package_id", app.PackageID,
			"error", err,
		)
		return false
	}

	refund, err := s.gateway.CreateRefund(ctx, RefundRequest{
		PaymentID:   *app.PaymentTransactionID,
		AmountMinor: pkg.PriceMinorUnits(),
		Reason:      refundReason,
		Notes:       fmt.Sprintf("Application %d %s", app.ID, note),
	})
	if err != nil {
		attrs := []any{
			"application_id", app.ID,
			"payment_transaction_id", *app.PaymentTransactionID,
			"error", err,
		}
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.Detail != nil {
			attrs = append(attrs, "detail", gwErr.Detail)
		}
		slog.ErrorContext(ctx, "refund failed, manual reconciliation required", attrs...)
		return false
	}

	slog.InfoContext(ctx, "refund created",
		"application_id", app.ID,
		"refund_id", refund.ID,
		"amount_minor", pkg.PriceMinorUnits(),
	)
	return true
}

func validateSubmission(userID int64, input SubmitApplicationInput) (repository.CreateApplicationInput, error) {
	var out repository.CreateApplicationInput

	if !input.WaiverAccepted {
		return out, invalidField("waiver_accepted", "must be accepted")
	}
	if input.PackageID <= 0 {
		return out, invalidField("package_id", "is required")
	}
	if input.CoachID <= 0 {
		return out, invalidField("coach_id", "is required")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return out, invalidField("name", "is required")
	}
	sex := strings.TrimSpace(input.Sex)
	if sex == "" {
		return out, invalidField("sex", "is required")
	}
	if input.Age <= 0 || input.Age > 120 {
		return out, invalidField("age", "must be between 1 and 120")
	}

	dob, err := time.Parse(time.DateOnly, strings.TrimSpace(input.DateOfBirth))
	if err != nil {
		return out, invalidField("date_of_birth", "must be a YYYY-MM-DD date")
	}
	if !dob.Before(time.Now()) {
		return out, invalidField("date_of_birth", "must be in the past")
	}

	email, err := mail.ParseAddress(strings.TrimSpace(input.Email))
	if err != nil {
		return out, invalidField("email", "is not a valid address")
	}
	goal := strings.TrimSpace(input.Goal)
	if goal == "" {
		return out, invalidField("goal", "is required")
	}
	if input.Weight != nil && *input.Weight <= 0 {
		return out, invalidField("weight", "must be greater than 0")
	}
	if input.Height != nil && *input.Height <= 0 {
		return out, invalidField("height", "must be greater than 0")
	}

	return repository.CreateApplicationInput{
		UserID:         userID,
		PackageID:      input.PackageID,
		CoachID:        input.CoachID,
		Name:           name,
		Nickname:       optionalText(input.Nickname),
		Sex:            sex,
		Age:            input.Age,
		DateOfBirth:    dob,
		Email:          strings.ToLower(email.Address),
		Facebook:       optionalText(input.Facebook),
		Address:        optionalText(input.Address),
		Goal:           goal,
		Weight:         input.Weight,
		Height:         input.Height,
		WaiverAccepted: true,
	}, nil
}

func optionalText(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func translateNotFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
