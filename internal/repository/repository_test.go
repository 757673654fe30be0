package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/config"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	cfg := &config.Config{}
	cfg.Database.QueryTimeout = 5
	cfg.Database.TransactionTimeout = 5
	return NewRepository(cfg, db), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func strPtr(s string) *string { return &s }

func newAccount(firstTenant bool) *domain.Account {
	department, position := "General", "Owner"
	company := &domain.Company{ID: "c-1", Name: "Acme Corp", Code: "AC"}
	user := &domain.User{
		ID:           "u-1",
		Email:        "jane@acme.com",
		PasswordHash: "hash",
		FirstName:    "Jane",
		LastName:     "Doe",
		Role:         domain.RoleAdmin,
		Department:   &department,
		Position:     &position,
		EmployeeID:   strPtr("ACJADO20240001"),
		CompanyID:    &company.ID,
	}
	return &domain.Account{
		Company:     company,
		NewCompany:  true,
		FirstTenant: firstTenant,
		User:        user,
		Employee: &domain.Employee{
			ID:         "e-1",
			EmployeeID: "ACJADO20240001",
			UserID:     user.ID,
			Email:      user.Email,
			FirstName:  "Jane",
			LastName:   "Doe",
			Department: department,
			Position:   position,
			Status:     domain.EmployeeStatusActive,
			HireDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			CompanyID:  company.ID,
		},
	}
}

func TestCreateAccountWritesAllRecords(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	account := newAccount(true)

	mock.ExpectBegin()
	mock.ExpectExec(q("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(firstTenantLockKey).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("SELECT EXISTS (SELECT 1 FROM companies)")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(q("INSERT INTO companies")).
		WithArgs("c-1", "Acme Corp", "AC", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery(q("INSERT INTO users")).
		WithArgs("u-1", "jane@acme.com", "hash", "Jane", "Doe", "admin", nil, nil, "General", "Owner", "ACJADO20240001", "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery(q("INSERT INTO employees")).
		WithArgs("e-1", "ACJADO20240001", "u-1", "jane@acme.com", "Jane", "Doe", nil, "General", "Owner", "active", account.Employee.HireDate, 0.0, "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateAccount(context.Background(), account))
	require.Equal(t, now, account.Company.CreatedAt)
	require.Equal(t, now, account.User.CreatedAt)
	require.Equal(t, now, account.Employee.CreatedAt)
}

func TestCreateAccountRegistrationClosed(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("SELECT EXISTS (SELECT 1 FROM companies)")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.CreateAccount(context.Background(), newAccount(true))
	require.ErrorIs(t, err, domain.ErrRegistrationClosed)
}

func TestCreateAccountMapsUniqueViolations(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{"users_email_key", domain.ErrEmailTaken},
		{"users_employee_id_key", domain.ErrEmployeeIDTaken},
		{"employees_employee_id_key", domain.ErrEmployeeIDTaken},
	}

	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			account := newAccount(false)
			account.NewCompany = false

			pgErr := &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: tc.constraint}

			mock.ExpectBegin()
			if tc.constraint == "employees_employee_id_key" {
				mock.ExpectQuery(q("INSERT INTO users")).
					WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
				mock.ExpectQuery(q("INSERT INTO employees")).WillReturnError(pgErr)
			} else {
				mock.ExpectQuery(q("INSERT INTO users")).WillReturnError(pgErr)
			}
			mock.ExpectRollback()

			err := repo.CreateAccount(context.Background(), account)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreateAccountCompanyCodeTaken(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO companies")).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "companies_code_key"})
	mock.ExpectRollback()

	err := repo.CreateAccount(context.Background(), newAccount(false))
	require.ErrorIs(t, err, domain.ErrCompanyCodeTaken)
}

func TestUniqueViolationPassesThroughOtherErrors(t *testing.T) {
	other := &pgconn.PgError{Code: "23503", ConstraintName: "users_company_id_fkey"}
	require.Same(t, other, uniqueViolation(other))

	unknown := &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "something_else"}
	require.Same(t, unknown, uniqueViolation(unknown))

	plain := errors.New("boom")
	require.Equal(t, plain, uniqueViolation(plain))
}

var userRowColumns = []string{
	"id", "email", "password_hash", "first_name", "last_name", "role",
	"avatar", "phone", "department", "position", "employee_id", "company_id",
	"created_at", "updated_at",
	"name", "code", "logo",
}

func TestGetUserByLoginID(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	mock.ExpectQuery(q("WHERE u.email = $1 OR u.employee_id = $1 ORDER BY (u.email = $1) DESC LIMIT 1")).
		WithArgs("ACJADO20240001").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"u-1", "jane@acme.com", "hash", "Jane", "Doe", "admin",
			nil, "+1 555", "General", "Owner", "ACJADO20240001", "c-1",
			now, now,
			"Acme Corp", "AC", nil,
		))

	user, err := repo.GetUserByLoginID(context.Background(), "ACJADO20240001")
	require.NoError(t, err)
	require.Equal(t, "u-1", user.ID)
	require.Equal(t, domain.RoleAdmin, user.Role)
	require.Nil(t, user.Avatar)
	require.Equal(t, "+1 555", *user.Phone)
	require.Equal(t, "ACJADO20240001", *user.EmployeeID)
	require.NotNil(t, user.Company)
	require.Equal(t, "c-1", user.Company.ID)
	require.Equal(t, "AC", user.Company.Code)
	require.Nil(t, user.Company.Logo)
}

func TestGetUserWithoutCompany(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	mock.ExpectQuery(q("WHERE u.id = $1")).
		WithArgs("root").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"root", "root@workzen.io", "hash", "Root", "Admin", "admin",
			nil, nil, nil, nil, nil, nil,
			now, now,
			nil, nil, nil,
		))

	user, err := repo.GetUserByID(context.Background(), "root")
	require.NoError(t, err)
	require.Nil(t, user.CompanyID)
	require.Nil(t, user.Company)
	require.Nil(t, user.EmployeeID)
}

func TestGetUserNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(q("WHERE u.email = $1")).
		WithArgs("nobody@acme.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByEmail(context.Background(), "nobody@acme.com")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestGetAllUsers(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()
	companyID := "c-1"

	mock.ExpectQuery(q("ORDER BY u.created_at DESC")).
		WithArgs(companyID).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u-2", "john@acme.com", "hash", "John", "Smith", "employee",
				nil, nil, nil, nil, "ACJOSM20240001", "c-1", now, now, "Acme Corp", "AC", nil).
			AddRow("u-1", "jane@acme.com", "hash", "Jane", "Doe", "admin",
				nil, nil, nil, nil, "ACJADO20240001", "c-1", now.Add(-time.Hour), now, "Acme Corp", "AC", nil))

	users, err := repo.GetAllUsers(context.Background(), &companyID)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "u-2", users[0].ID)
	require.Equal(t, domain.RoleEmployee, users[0].Role)
	require.Equal(t, "u-1", users[1].ID)
}

func TestUpdateUserPasswordNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(q("UPDATE users")).
		WithArgs("new-hash", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateUserPassword(context.Background(), "missing", "new-hash")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestEmployeeIDQueries(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM employees")).
		WithArgs("c-1", "ACJADO2024").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(q("FROM employees WHERE employee_id = $1")).
		WithArgs("ACJADO20240004").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	count, err := repo.CountEmployeeIDsWithPrefix(context.Background(), "c-1", "ACJADO2024")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	exists, err := repo.EmployeeIDExists(context.Background(), "ACJADO20240004")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()
	expires := now.Add(7 * 24 * time.Hour)

	mock.ExpectQuery(q("INSERT INTO refresh_tokens")).
		WithArgs("tok", "u-1", expires).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery(q("FROM refresh_tokens WHERE token = $1")).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "created_at"}).AddRow("u-1", expires, now))
	mock.ExpectExec(q("DELETE FROM refresh_tokens WHERE token = $1")).
		WithArgs("tok").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("FROM refresh_tokens WHERE token = $1")).
		WithArgs("tok").
		WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	require.NoError(t, repo.CreateRefreshToken(ctx, &domain.RefreshToken{Token: "tok", UserID: "u-1", ExpiresAt: expires}))

	record, err := repo.GetRefreshToken(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "u-1", record.UserID)
	require.Equal(t, expires, record.ExpiresAt)

	require.NoError(t, repo.DeleteRefreshToken(ctx, "tok"))

	_, err = repo.GetRefreshToken(ctx, "tok")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

const consumeResetToken = "DELETE FROM password_reset_tokens WHERE token = $1 AND expires_at > NOW() RETURNING user_id"

func TestResetPasswordRevokesTokens(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(consumeResetToken)).
		WithArgs("reset-tok").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u-1"))
	mock.ExpectExec(q("UPDATE users SET password_hash = $1")).
		WithArgs("new-hash", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM password_reset_tokens WHERE user_id = $1")).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("DELETE FROM refresh_tokens WHERE user_id = $1")).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.ResetPassword(context.Background(), "reset-tok", "new-hash"))
}

func TestResetPasswordRejectsConsumedOrExpiredToken(t *testing.T) {
	repo, mock := newMockRepository(t)

	// 已被使用、已过期或被并发请求先一步删除的令牌都查不到行
	mock.ExpectBegin()
	mock.ExpectQuery(q(consumeResetToken)).
		WithArgs("used-tok").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectRollback()

	err := repo.ResetPassword(context.Background(), "used-tok", "new-hash")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestResetPasswordRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(consumeResetToken)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u-1"))
	mock.ExpectExec(q("UPDATE users SET password_hash = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM password_reset_tokens WHERE user_id = $1")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	require.Error(t, repo.ResetPassword(context.Background(), "reset-tok", "new-hash"))
}

func TestRunMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		require.Equal(t, ".", dir)
		return nil
	}
	require.NoError(t, RunMigrations(context.Background(), db))

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	require.EqualError(t, RunMigrations(context.Background(), db), "boom")
}
