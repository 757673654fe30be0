// Package seed 向已有公司批量写入演示员工，供本地开发和演示环境使用
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/auth"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/identifier"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/utils"
)

const maxAttempts = 5

type Store interface {
	GetCompanyByName(ctx context.Context, name string) (*domain.Company, error)
	CreateAccount(ctx context.Context, account *domain.Account) error
}

type Seeder struct {
	store       Store
	ids         *identifier.Generator
	emailDomain string
	logger      *slog.Logger
	now         func() time.Time
}

func NewSeeder(store Store, ids *identifier.Generator, emailDomain string, logger *slog.Logger) *Seeder {
	return &Seeder{
		store:       store,
		ids:         ids,
		emailDomain: emailDomain,
		logger:      logger,
		now:         time.Now,
	}
}

// SeedEmployees 向 companyName 写入 n 个随机员工，所有人使用同一个初始密码，返回成功写入的数量
func (s *Seeder) SeedEmployees(ctx context.Context, companyName string, n int, password string) (int, error) {
	if n <= 0 {
		return 0, errors.New("employee count must be positive")
	}
	if len(password) < auth.MinPasswordLength {
		return 0, fmt.Errorf("seed password must be at least %d characters", auth.MinPasswordLength)
	}

	company, err := s.store.GetCompanyByName(ctx, companyName)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return 0, fmt.Errorf("company %q does not exist, register it first", companyName)
		}
		return 0, fmt.Errorf("find company: %w", err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	created := 0
	for i := 0; i < n; i++ {
		user, err := s.createEmployee(ctx, company, passwordHash)
		if err != nil {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			s.logger.Error("无法插入员工", slog.String("error", err.Error()))
			continue
		}

		s.logger.Info("插入员工成功", slog.String("employee_id", user.LoginID()), slog.String("email", user.Email))
		created++
	}

	return created, nil
}

func (s *Seeder) createEmployee(ctx context.Context, company *domain.Company, passwordHash string) (*domain.User, error) {
	hireDate := s.now()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		p := utils.GenerateRandomPerson(s.emailDomain)

		employeeID, err := s.ids.GenerateEmployeeID(ctx, company.Code, p.FirstName, p.LastName, hireDate, company.ID)
		if err != nil {
			return nil, fmt.Errorf("generate employee id: %w", err)
		}

		user := &domain.User{
			ID:           uuid.NewString(),
			Email:        p.Email,
			PasswordHash: passwordHash,
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			Role:         p.Role,
			Phone:        &p.Phone,
			Department:   &p.Department,
			Position:     &p.Position,
			EmployeeID:   &employeeID,
			CompanyID:    &company.ID,
		}
		employee := &domain.Employee{
			ID:         uuid.NewString(),
			EmployeeID: employeeID,
			UserID:     user.ID,
			Email:      p.Email,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			Phone:      user.Phone,
			Department: p.Department,
			Position:   p.Position,
			Status:     domain.EmployeeStatusActive,
			HireDate:   hireDate,
			CompanyID:  company.ID,
		}

		err = s.store.CreateAccount(ctx, &domain.Account{
			Company:  company,
			User:     user,
			Employee: employee,
		})
		switch {
		case err == nil:
			return user, nil
		case errors.Is(err, domain.ErrEmployeeIDTaken), errors.Is(err, domain.ErrEmailTaken):
			// 随机生成的邮箱或工号撞车，换一个人重试
			continue
		default:
			return nil, fmt.Errorf("create account: %w", err)
		}
	}

	return nil, fmt.Errorf("create account: gave up after %d attempts", maxAttempts)
}
