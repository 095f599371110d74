package repository

import (
	"context"
	"fmt"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
	"github.com/shopspring/decimal"
)

type PackageRepository struct {
	db DBTX
}

func NewPackageRepository(db DBTX) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) GetByID(ctx context.Context, packageID int64) (*models.Package, error) {
	query := `
		SELECT package_id, title, description, picture, price::text, created_at
		FROM packages
		WHERE package_id = $1
	`
	var (
		pkg   models.Package
		price string
	)
	err := r.db.QueryRow(ctx, query, packageID).Scan(
		&pkg.ID,
		&pkg.Title,
		&pkg.Description,
		&pkg.Picture,
		&price,
		&pkg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	pkg.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price of package %d: %w", packageID, err)
	}
	return &pkg, nil
}
