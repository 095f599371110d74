package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
)

const applicationColumns = `
	application_id, user_id, package_id, coach_id, name, nickname, sex, age,
	date_of_birth, email, facebook, address, goal, weight, height, waiver_accepted,
	payment_status, payment_link_id, payment_checkout_url, payment_transaction_id, paid_at,
	application_status, training_status, submitted_at, reviewed_at, reviewed_by,
	cancelled_at, cancelled_by
`

type CreateApplicationInput struct {
	UserID         int64
	PackageID      int64
	CoachID        int64
	Name           string
	Nickname       *string
	Sex            string
	Age            int
	DateOfBirth    time.Time
	Email          string
	Facebook       *string
	Address        *string
	Goal           string
	Weight         *float64
	Height         *float64
	WaiverAccepted bool
}

type ApplicationRepository struct {
	db DBTX
}

func NewApplicationRepository(db DBTX) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(
	ctx context.Context,
	input CreateApplicationInput,
) (*models.Application, error) {
	query := fmt.Sprintf(`
		INSERT INTO applications (
			user_id, package_id, coach_id, name, nickname, sex, age, date_of_birth,
			email, facebook, address, goal, weight, height, waiver_accepted,
			payment_status, application_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 'pending', 'pending')
		RETURNING %s
	`, applicationColumns)

	return scanApplication(r.db.QueryRow(
		ctx,
		query,
		input.UserID,
		input.PackageID,
		input.CoachID,
		input.Name,
		input.Nickname,
		input.Sex,
		input.Age,
		input.DateOfBirth,
		input.Email,
		input.Facebook,
		input.Address,
		input.Goal,
		input.Weight,
		input.Height,
		input.WaiverAccepted,
	))
}

func (r *ApplicationRepository) GetByID(ctx context.Context, applicationID int64) (*models.Application, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM applications
		WHERE application_id = $1
	`, applicationColumns)
	return scanApplication(r.db.QueryRow(ctx, query, applicationID))
}

func (r *ApplicationRepository) GetByIDForUpdate(ctx context.Context, applicationID int64) (*models.Application, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM applications
		WHERE application_id = $1
		FOR UPDATE
	`, applicationColumns)
	return scanApplication(r.db.QueryRow(ctx, query, applicationID))
}

func (r *ApplicationRepository) HasActiveForUser(ctx context.Context, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM applications
			WHERE user_id = $1
			  AND application_status IN ('pending', 'approved')
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// LatestForUser returns the most recent application of a user joined with its package.
func (r *ApplicationRepository) LatestForUser(ctx context.Context, userID int64) (*models.ApplicationDetail, error) {
	query := `
		SELECT a.application_id, a.user_id, a.package_id, a.coach_id, a.name, a.nickname, a.sex, a.age,
			a.date_of_birth, a.email, a.facebook, a.address, a.goal, a.weight, a.height, a.waiver_accepted,
			a.payment_status, a.payment_link_id, a.payment_checkout_url, a.payment_transaction_id, a.paid_at,
			a.application_status, a.training_status, a.submitted_at, a.reviewed_at, a.reviewed_by,
			a.cancelled_at, a.cancelled_by,
			p.title, p.price::text
		FROM applications a
		JOIN packages p ON p.package_id = a.package_id
		WHERE a.user_id = $1
		ORDER BY a.submitted_at DESC, a.application_id DESC
		LIMIT 1
	`
	var detail models.ApplicationDetail
	dest := append(applicationDest(&detail.Application), &detail.PackageTitle, &detail.PackagePrice)
	if err := r.db.QueryRow(ctx, query, userID).Scan(dest...); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Delete physically removes a row. Only the submit rollback uses it.
func (r *ApplicationRepository) Delete(ctx context.Context, applicationID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM applications WHERE application_id = $1`, applicationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("application %d: no row deleted", applicationID)
	}
	return nil
}

func (r *ApplicationRepository) AttachPaymentLink(
	ctx context.Context,
	applicationID int64,
	linkID string,
	checkoutURL string,
) (*models.Application, error) {
	query := fmt.Sprintf(`
		UPDATE applications
		SET payment_link_id = $2, payment_checkout_url = $3
		WHERE application_id = $1
		RETURNING %s
	`, applicationColumns)
	return scanApplication(r.db.QueryRow(ctx, query, applicationID, linkID, checkoutURL))
}

// MarkPaidByLink records a captured payment. Rows already past pending are left
// untouched, so the call returns pgx.ErrNoRows on redelivery.
func (r *ApplicationRepository) MarkPaidByLink(
	ctx context.Context,
	linkID string,
	transactionID string,
) (*models.Application, error) {
	query := fmt.Sprintf(`
		UPDATE applications
		SET payment_status = 'completed', payment_transaction_id = $2, paid_at = NOW()
		WHERE payment_link_id = $1 AND payment_status = 'pending'
		RETURNING %s
	`, applicationColumns)
	return scanApplication(r.db.QueryRow(ctx, query, linkID, transactionID))
}

// ApproveIfCurrent approves the application only while it still has
// currentStatus. Approving a declined row can hit the one-active-per-user index.
func (r *ApplicationRepository) ApproveIfCurrent(
	ctx context.Context,
	applicationID int64,
	currentStatus string,
	reviewerID int64,
) (*models.Application, error) {
	query := fmt.Sprintf(`
		UPDATE applications
		SET application_status = 'approved',
			training_status = 'not_started',
			reviewed_at = NOW(),
			reviewed_by = $3
		WHERE application_id = $1 AND application_status = $2
		RETURNING %s
	`, applicationColumns)
	return scanApplication(r.db.QueryRow(ctx, query, applicationID, currentStatus, reviewerID))
}

func (r *ApplicationRepository) DeclineIfCurrent(
	ctx context.Context,
	applicationID int64,
	currentStatus string,
	reviewerID int64,
	refunded bool,
) (*models.Application, error) {
	query := fmt.Sprintf(`
		UPDATE applications
		SET application_status = 'declined',
			reviewed_at = NOW(),
			reviewed_by = $3,
			payment_status = CASE
				WHEN $4::boolean AND payment_status = 'completed' THEN 'refunded'
				ELSE payment_status
			END
		WHERE application_id = $1 AND application_status = $2
		RETURNING %s
	`, applicationColumns)
	return scanApplication(r.db.QueryRow(ctx, query, applicationID, currentStatus, reviewerID, refunded))
}

func (r *ApplicationRepository) CancelIfCurrent(
	ctx context.Context,
	applicationID int64,
	currentStatus string,
	actorID int64,
	refunded bool,
) (*models.Application, error) {
	query := fmt.Sprintf(`
		UPDATE applications
		SET application_status = 'cancelled',
			cancelled_at = NOW(),
			cancelled_by = $3,
			payment_status = CASE
				WHEN $4::boolean AND payment_status = 'completed' THEN 'refunded'
				ELSE payment_status
			END
		WHERE application_id = $1 AND application_status = $2
		RETURNING %s
	`, applicationColumns)
	return scanApplication(r.db.QueryRow(ctx, query, applicationID, currentStatus, actorID, refunded))
}

func (r *ApplicationRepository) UpdateTrainingStatusIfCurrent(
	ctx context.Context,
	applicationID int64,
	currentStatus string,
	nextStatus string,
) (*models.Application, error) {
	query := fmt.Sprintf(`
		UPDATE applications
		SET training_status = $3
		WHERE application_id = $1
		  AND application_status = 'approved'
		  AND training_status = $2
		RETURNING %s
	`, applicationColumns)
	return scanApplication(r.db.QueryRow(ctx, query, applicationID, currentStatus, nextStatus))
}

func applicationDest(app *models.Application) []any {
	return []any{
		&app.ID,
		&app.UserID,
		&app.PackageID,
		&app.CoachID,
		&app.Name,
		&app.Nickname,
		&app.Sex,
		&app.Age,
		&app.DateOfBirth,
		&app.Email,
		&app.Facebook,
		&app.Address,
		&app.Goal,
		&app.Weight,
		&app.Height,
		&app.WaiverAccepted,
		&app.PaymentStatus,
		&app.PaymentLinkID,
		&app.PaymentCheckoutURL,
		&app.PaymentTransactionID,
		&app.PaidAt,
		&app.ApplicationStatus,
		&app.TrainingStatus,
		&app.SubmittedAt,
		&app.ReviewedAt,
		&app.ReviewedBy,
		&app.CancelledAt,
		&app.CancelledBy,
	}
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var app models.Application
	if err := row.Scan(applicationDest(&app)...); err != nil {
		return nil, err
	}
	return &app, nil
}
