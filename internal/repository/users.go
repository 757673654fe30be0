package repository

import (
	"context"
	"database/sql"

	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
)

const userColumns = `
	u.id, u.email, u.password_hash, u.first_name, u.last_name, u.role,
	u.avatar, u.phone, u.department, u.position, u.employee_id, u.company_id,
	u.created_at, u.updated_at,
	c.name, c.code, c.logo
`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser 读取 userColumns 对应的一行，LEFT JOIN 不到公司时 Company 为 nil
func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var companyName, companyCode sql.NullString
	var companyLogo *string

	dst := []any{
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Role,
		&user.Avatar, &user.Phone, &user.Department, &user.Position, &user.EmployeeID, &user.CompanyID,
		&user.CreatedAt, &user.UpdatedAt,
		&companyName, &companyCode, &companyLogo,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if user.CompanyID != nil && companyCode.Valid {
		user.Company = &domain.CompanySummary{
			ID:   *user.CompanyID,
			Name: companyName.String,
			Code: companyCode.String,
			Logo: companyLogo,
		}
	}

	return user, nil
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users u LEFT JOIN companies c ON c.id = u.company_id ` + where

	user, err := scanUser(r.dbpool.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, notFound(err)
	}

	return user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getUser(ctx, `WHERE u.id = $1`, id)
}

// GetUserByLoginID 同时按邮箱和工号查找，两者都命中时优先邮箱
func (r *Repository) GetUserByLoginID(ctx context.Context, loginID string) (*domain.User, error) {
	return r.getUser(ctx, `WHERE u.email = $1 OR u.employee_id = $1 ORDER BY (u.email = $1) DESC LIMIT 1`, loginID)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, `WHERE u.email = $1`, email)
}

func (r *Repository) CheckEmailIfExists(ctx context.Context, email string) (bool, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	isExists := false
	query := `
		SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)
	`
	if err := r.dbpool.QueryRowContext(ctx, query, email).Scan(&isExists); err != nil {
		return false, err
	}

	return isExists, nil
}

// GetAllUsers 按创建时间倒序返回用户，companyID 为 nil 时不按公司过滤
func (r *Repository) GetAllUsers(ctx context.Context, companyID *string) ([]*domain.User, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT ` + userColumns + `
		FROM users u LEFT JOIN companies c ON c.id = u.company_id
		WHERE $1::uuid IS NULL OR u.company_id = $1::uuid
		ORDER BY u.created_at DESC
	`

	rows, err := r.dbpool.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *Repository) UpdateUserPassword(ctx context.Context, userID string, passwordHash string) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		UPDATE users
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.dbpool.ExecContext(ctx, query, passwordHash, userID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}
