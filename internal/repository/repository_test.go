package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("scan arity mismatch")
	}
	for i := range dest {
		switch target := dest[i].(type) {
		case *int64:
			*target = r.values[i].(int64)
		case *bool:
			*target = r.values[i].(bool)
		case *string:
			*target = r.values[i].(string)
		case **string:
			*target = r.values[i].(*string)
		case *time.Time:
			*target = r.values[i].(time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type stubDBTX struct {
	queryRowFn func(ctx context.Context, query string, args ...any) stubRow
	execTag    pgconn.CommandTag
	execErr    error
	lastQuery  string
	lastArgs   []any
}

func (db *stubDBTX) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	db.lastQuery = query
	db.lastArgs = args
	return db.execTag, db.execErr
}

func (db *stubDBTX) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (db *stubDBTX) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	db.lastQuery = query
	db.lastArgs = args
	return db.queryRowFn(ctx, query, args...)
}

var testTime = time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

func TestPackageRepositoryParsesNumericPrice(t *testing.T) {
	db := &stubDBTX{
		queryRowFn: func(_ context.Context, _ string, _ ...any) stubRow {
			return stubRow{values: []any{int64(3), "Monthly", (*string)(nil), (*string)(nil), "1500.00", testTime}}
		},
	}

	pkg, err := NewPackageRepository(db).GetByID(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if pkg.Price.String() != "1500" {
		t.Fatalf("expected price 1500, got %s", pkg.Price.String())
	}
	if pkg.PriceMinorUnits() != 150000 {
		t.Fatalf("expected 150000 minor units, got %d", pkg.PriceMinorUnits())
	}
	if !strings.Contains(db.lastQuery, "price::text") {
		t.Fatalf("expected price to be selected as text, got %q", db.lastQuery)
	}
}

func TestPackageRepositoryPassesNoRowsThrough(t *testing.T) {
	db := &stubDBTX{
		queryRowFn: func(_ context.Context, _ string, _ ...any) stubRow {
			return stubRow{err: pgx.ErrNoRows}
		},
	}

	_, err := NewPackageRepository(db).GetByID(context.Background(), 99)
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestApplicationRepositoryMarkPaidOnlyTouchesPendingPayments(t *testing.T) {
	db := &stubDBTX{
		queryRowFn: func(_ context.Context, _ string, _ ...any) stubRow {
			return stubRow{err: pgx.ErrNoRows}
		},
	}

	_, err := NewApplicationRepository(db).MarkPaidByLink(context.Background(), "link_abc", "pay_123")
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
	if !strings.Contains(db.lastQuery, "payment_link_id = $1 AND payment_status = 'pending'") {
		t.Fatalf("expected conditional update, got %q", db.lastQuery)
	}
	if len(db.lastArgs) != 2 || db.lastArgs[0] != "link_abc" || db.lastArgs[1] != "pay_123" {
		t.Fatalf("unexpected args: %+v", db.lastArgs)
	}
}

func TestApplicationRepositoryDeleteReportsMissingRow(t *testing.T) {
	db := &stubDBTX{execTag: pgconn.NewCommandTag("DELETE 0")}

	if err := NewApplicationRepository(db).Delete(context.Background(), 5); err == nil {
		t.Fatalf("expected error when nothing was deleted")
	}

	db.execTag = pgconn.NewCommandTag("DELETE 1")
	if err := NewApplicationRepository(db).Delete(context.Background(), 5); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if db.lastArgs[0] != int64(5) {
		t.Fatalf("expected application id 5, got %v", db.lastArgs[0])
	}
}

func TestTrainingSessionRepositoryExistsOnDateUsesCalendarDay(t *testing.T) {
	db := &stubDBTX{
		queryRowFn: func(_ context.Context, _ string, _ ...any) stubRow {
			return stubRow{values: []any{true}}
		},
	}
	manila := time.FixedZone("PHT", 8*60*60)
	day := time.Date(2030, 6, 1, 23, 30, 0, 0, manila)

	exists, err := NewTrainingSessionRepository(db).ExistsOnDate(context.Background(), 12, day)
	if err != nil {
		t.Fatalf("ExistsOnDate: %v", err)
	}
	if !exists {
		t.Fatalf("expected exists to be true")
	}
	if db.lastArgs[1] != "2030-06-01" {
		t.Fatalf("expected local calendar date, got %v", db.lastArgs[1])
	}
}

func TestPgErrorClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	foreignKey := &pgconn.PgError{Code: "23503"}

	if !IsUniqueViolation(unique) || IsUniqueViolation(foreignKey) {
		t.Fatalf("unique violation misclassified")
	}
	if !IsForeignKeyViolation(foreignKey) || IsForeignKeyViolation(unique) {
		t.Fatalf("foreign key violation misclassified")
	}
	wrapped := errors.Join(errors.New("insert application"), unique)
	if !IsUniqueViolation(wrapped) {
		t.Fatalf("expected wrapped unique violation to be detected")
	}
	if IsUniqueViolation(nil) {
		t.Fatalf("nil must not be a unique violation")
	}
}

func TestApplicationDestMatchesColumnList(t *testing.T) {
	columns := strings.Split(strings.TrimSpace(applicationColumns), ",")
	if got, want := len(applicationDest(&models.Application{})), len(columns); got != want {
		t.Fatalf("expected %d scan targets, got %d", want, got)
	}
}
