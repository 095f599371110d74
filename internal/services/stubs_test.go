package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
	"github.com/VincentPrime/endlessgrindbackend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// memoryApplicationStore mimics the applications table, including the partial
// unique index on active applications per user.
type memoryApplicationStore struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]*models.Application
	creates   int
	deletes   int
	deleteErr error
	attachErr error
	// beforeInsert runs outside the lock to widen race windows in tests.
	beforeInsert func()
}

func newMemoryApplicationStore() *memoryApplicationStore {
	return &memoryApplicationStore{rows: make(map[int64]*models.Application)}
}

func (s *memoryApplicationStore) put(app models.Application) *models.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app.ID == 0 {
		s.nextID++
		app.ID = s.nextID
	} else if app.ID > s.nextID {
		s.nextID = app.ID
	}
	s.rows[app.ID] = &app
	return clone(&app)
}

func (s *memoryApplicationStore) get(id int64) *models.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		return clone(row)
	}
	return nil
}

func (s *memoryApplicationStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// blocksSubmission mirrors the applications_one_active_per_user partial index.
func blocksSubmission(row *models.Application) bool {
	return row.ApplicationStatus == models.ApplicationPending || row.ApplicationStatus == models.ApplicationApproved
}

func clone(app *models.Application) *models.Application {
	copied := *app
	return &copied
}

func (s *memoryApplicationStore) Create(_ context.Context, input repository.CreateApplicationInput) (*models.Application, error) {
	if s.beforeInsert != nil {
		s.beforeInsert()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.UserID == input.UserID && blocksSubmission(row) {
			return nil, &pgconn.PgError{Code: "23505", ConstraintName: "applications_one_active_per_user"}
		}
	}
	s.nextID++
	s.creates++
	app := &models.Application{
		ID:                s.nextID,
		UserID:            input.UserID,
		PackageID:         input.PackageID,
		CoachID:           input.CoachID,
		Name:              input.Name,
		Email:             input.Email,
		Goal:              input.Goal,
		WaiverAccepted:    input.WaiverAccepted,
		PaymentStatus:     models.PaymentPending,
		ApplicationStatus: models.ApplicationPending,
		SubmittedAt:       time.Now().UTC(),
	}
	s.rows[app.ID] = app
	return clone(app), nil
}

func (s *memoryApplicationStore) GetByID(_ context.Context, id int64) (*models.Application, error) {
	if row := s.get(id); row != nil {
		return row, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *memoryApplicationStore) HasActiveForUser(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.UserID == userID && blocksSubmission(row) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryApplicationStore) LatestForUser(_ context.Context, userID int64) (*models.ApplicationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Application
	for _, row := range s.rows {
		if row.UserID == userID && (latest == nil || row.ID > latest.ID) {
			latest = row
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	return &models.ApplicationDetail{Application: *latest}, nil
}

func (s *memoryApplicationStore) Delete(_ context.Context, id int64) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return errors.New("no row deleted")
	}
	delete(s.rows, id)
	s.deletes++
	return nil
}

func (s *memoryApplicationStore) AttachPaymentLink(_ context.Context, id int64, linkID string, checkoutURL string) (*models.Application, error) {
	if s.attachErr != nil {
		return nil, s.attachErr
	}
	return s.update(func(row *models.Application) bool {
		if row.ID != id {
			return false
		}
		row.PaymentLinkID = &linkID
		row.PaymentCheckoutURL = &checkoutURL
		return true
	})
}

func (s *memoryApplicationStore) MarkPaidByLink(_ context.Context, linkID string, transactionID string) (*models.Application, error) {
	return s.update(func(row *models.Application) bool {
		if row.PaymentLinkID == nil || *row.PaymentLinkID != linkID || row.PaymentStatus != models.PaymentPending {
			return false
		}
		now := time.Now().UTC()
		row.PaymentStatus = models.PaymentCompleted
		row.PaymentTransactionID = &transactionID
		row.PaidAt = &now
		return true
	})
}

func (s *memoryApplicationStore) ApproveIfCurrent(_ context.Context, id int64, current string, reviewerID int64) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.ApplicationStatus != current {
		return nil, pgx.ErrNoRows
	}
	for _, other := range s.rows {
		if other.ID != id && other.UserID == row.UserID && blocksSubmission(other) {
			return nil, &pgconn.PgError{Code: "23505", ConstraintName: "applications_one_active_per_user"}
		}
	}
	now := time.Now().UTC()
	training := models.TrainingNotStarted
	row.ApplicationStatus = models.ApplicationApproved
	row.TrainingStatus = &training
	row.ReviewedAt = &now
	row.ReviewedBy = &reviewerID
	return clone(row), nil
}

func (s *memoryApplicationStore) DeclineIfCurrent(_ context.Context, id int64, current string, reviewerID int64, refunded bool) (*models.Application, error) {
	return s.update(func(row *models.Application) bool {
		if row.ID != id || row.ApplicationStatus != current {
			return false
		}
		now := time.Now().UTC()
		row.ApplicationStatus = models.ApplicationDeclined
		row.ReviewedAt = &now
		row.ReviewedBy = &reviewerID
		if refunded && row.PaymentStatus == models.PaymentCompleted {
			row.PaymentStatus = models.PaymentRefunded
		}
		return true
	})
}

func (s *memoryApplicationStore) CancelIfCurrent(_ context.Context, id int64, current string, actorID int64, refunded bool) (*models.Application, error) {
	return s.update(func(row *models.Application) bool {
		if row.ID != id || row.ApplicationStatus != current {
			return false
		}
		now := time.Now().UTC()
		row.ApplicationStatus = models.ApplicationCancelled
		row.CancelledAt = &now
		row.CancelledBy = &actorID
		if refunded && row.PaymentStatus == models.PaymentCompleted {
			row.PaymentStatus = models.PaymentRefunded
		}
		return true
	})
}

func (s *memoryApplicationStore) UpdateTrainingStatusIfCurrent(_ context.Context, id int64, current string, next string) (*models.Application, error) {
	return s.update(func(row *models.Application) bool {
		if row.ID != id || row.ApplicationStatus != models.ApplicationApproved ||
			row.TrainingStatus == nil || *row.TrainingStatus != current {
			return false
		}
		row.TrainingStatus = &next
		return true
	})
}

func (s *memoryApplicationStore) update(apply func(row *models.Application) bool) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if apply(row) {
			return clone(row), nil
		}
	}
	return nil, pgx.ErrNoRows
}

type stubPackageReader struct {
	packages map[int64]*models.Package
}

func newStubPackageReader(id int64, title string, price string) *stubPackageReader {
	return &stubPackageReader{packages: map[int64]*models.Package{
		id: {ID: id, Title: title, Price: decimal.RequireFromString(price)},
	}}
}

func (r *stubPackageReader) GetByID(_ context.Context, id int64) (*models.Package, error) {
	if pkg, ok := r.packages[id]; ok {
		copied := *pkg
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

type stubUserReader struct {
	users map[int64]*models.User
}

func (r *stubUserReader) GetByID(_ context.Context, id int64) (*models.User, error) {
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return nil, pgx.ErrNoRows
}

type stubGateway struct {
	mu          sync.Mutex
	linkErr     error
	refundErr   error
	archiveErr  error
	linkCalls   []PaymentLinkRequest
	refundCalls []RefundRequest
	archived    []string
}

func (g *stubGateway) CreatePaymentLink(_ context.Context, req PaymentLinkRequest) (*PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.linkCalls = append(g.linkCalls, req)
	if g.linkErr != nil {
		return nil, g.linkErr
	}
	return &PaymentLink{
		ID:          "link_" + req.Metadata["application_id"],
		CheckoutURL: "https://pm.link/checkout/" + req.Metadata["application_id"],
	}, nil
}

func (g *stubGateway) CreateRefund(_ context.Context, req RefundRequest) (*Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls = append(g.refundCalls, req)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &Refund{ID: "ref_1", Status: "pending"}, nil
}

func (g *stubGateway) ArchivePaymentLink(_ context.Context, linkID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.archived = append(g.archived, linkID)
	return g.archiveErr
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.ApplicationEvent
}

func (n *recordingNotifier) PublishApplicationEvent(event models.ApplicationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, event := range n.events {
		out = append(out, event.Type)
	}
	return out
}
