package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
)

// 注册首个租户时使用的事务级 advisory lock
const firstTenantLockKey = 0x776f726b7a656e

// CreateAccount 在同一个事务中写入公司（如果是新公司）、用户和员工记录
func (r *Repository) CreateAccount(ctx context.Context, account *domain.Account) error {
	ctx, cancel := r.txContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if account.FirstTenant {
		// 两个并发注册请求在这里串行化，后到的一方会看到已经存在的公司
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, firstTenantLockKey); err != nil {
			return err
		}

		exists := false
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM companies)`).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return domain.ErrRegistrationClosed
		}
	}

	if account.NewCompany {
		c := account.Company
		query := `
			INSERT INTO companies (id, name, code, logo)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`
		if err := tx.QueryRowContext(ctx, query, c.ID, c.Name, c.Code, c.Logo).Scan(&c.CreatedAt); err != nil {
			return uniqueViolation(err)
		}
	}

	u := account.User
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, avatar, phone, department, position, employee_id, company_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	args := []any{u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role), u.Avatar, u.Phone, u.Department, u.Position, u.EmployeeID, u.CompanyID}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return uniqueViolation(err)
	}

	if e := account.Employee; e != nil {
		query := `
			INSERT INTO employees (id, employee_id, user_id, email, first_name, last_name, phone, department, position, status, hire_date, salary, company_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING created_at
		`
		args := []any{e.ID, e.EmployeeID, e.UserID, e.Email, e.FirstName, e.LastName, e.Phone, e.Department, e.Position, string(e.Status), e.HireDate, e.Salary, e.CompanyID}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&e.CreatedAt); err != nil {
			return uniqueViolation(err)
		}
	}

	return tx.Commit()
}

// EmployeeIDExists 同时检查 users 和 employees 两张表
func (r *Repository) EmployeeIDExists(ctx context.Context, employeeID string) (bool, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	exists := false
	query := `
		SELECT EXISTS (SELECT 1 FROM users WHERE employee_id = $1)
		    OR EXISTS (SELECT 1 FROM employees WHERE employee_id = $1)
	`
	if err := r.dbpool.QueryRowContext(ctx, query, employeeID).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

func (r *Repository) CountEmployeeIDsWithPrefix(ctx context.Context, companyID string, prefix string) (int, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	count := 0
	query := `
		SELECT COUNT(*) FROM employees
		WHERE company_id = $1 AND employee_id LIKE $2 || '%'
	`
	if err := r.dbpool.QueryRowContext(ctx, query, companyID, prefix).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}
