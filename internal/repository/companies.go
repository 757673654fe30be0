package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
)

func (r *Repository) HasAnyCompany(ctx context.Context) (bool, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	exists := false
	query := `SELECT EXISTS (SELECT 1 FROM companies)`
	if err := r.dbpool.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

func (r *Repository) GetCompanyByName(ctx context.Context, name string) (*domain.Company, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT id, code, logo, created_at
		FROM companies WHERE name = $1
	`

	company := &domain.Company{
		Name: name,
	}

	dst := []any{&company.ID, &company.Code, &company.Logo, &company.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, name).Scan(dst...); err != nil {
		return nil, notFound(err)
	}

	return company, nil
}

func (r *Repository) CompanyCodeExists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	exists := false
	query := `SELECT EXISTS (SELECT 1 FROM companies WHERE code = $1)`
	if err := r.dbpool.QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}
