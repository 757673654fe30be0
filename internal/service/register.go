package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/auth"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/metrics"
)

const (
	maxRegisterAttempts = 5

	registrationClosedMessage = "Registration is disabled. Please contact your HR or Admin to create an account."

	ownerDepartment = "General"
	ownerPosition   = "Owner"
)

type RegisterInput struct {
	CompanyName string `json:"companyName"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	CompanyLogo string `json:"companyLogo"`
}

// splitName 按空白拆分全名，只有一个单词时名和姓相同
func splitName(fullName string) (string, string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "", ""
	}

	firstName := parts[0]
	lastName := strings.Join(parts[1:], " ")
	if lastName == "" {
		lastName = firstName
	}

	return firstName, lastName
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// RegisterInitialAdmin 注册系统中的第一家公司及其管理员。
// 只要系统里已经有公司，不论输入是否合法都返回 Forbidden。
func (s *Service) RegisterInitialAdmin(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	exists, err := s.store.HasAnyCompany(ctx)
	if err != nil {
		return nil, fmt.Errorf("check companies: %w", err)
	}
	if exists {
		metrics.AuthEvents.WithLabelValues("register", "rejected").Inc()
		return nil, domain.NewError(domain.KindForbidden, registrationClosedMessage)
	}

	companyName := strings.TrimSpace(in.CompanyName)
	if utf8.RuneCountInString(companyName) < 2 {
		return nil, domain.NewError(domain.KindValidation, "Company name is required and must be at least 2 characters")
	}

	firstName, lastName := splitName(in.Name)
	if utf8.RuneCountInString(firstName) < 2 || utf8.RuneCountInString(lastName) < 2 {
		return nil, domain.NewError(domain.KindValidation, "First name and last name must each be at least 2 characters long")
	}

	email := strings.TrimSpace(in.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, domain.NewError(domain.KindValidation, "A valid email address is required")
	}

	if len(in.Password) < auth.MinPasswordLength {
		return nil, domain.NewError(domain.KindValidation, "Password must be at least 8 characters long")
	}

	taken, err := s.store.CheckEmailIfExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, domain.NewError(domain.KindConflict, "User with this email already exists")
	}

	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// 查找或创建公司
	company, err := s.store.GetCompanyByName(ctx, companyName)
	newCompany := false
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRecordNotFound):
		newCompany = true
		code, err := s.ids.GenerateCompanyCode(ctx, companyName)
		if err != nil {
			return nil, fmt.Errorf("generate company code: %w", err)
		}
		company = &domain.Company{
			ID:   uuid.NewString(),
			Name: companyName,
			Code: code,
			Logo: optional(in.CompanyLogo),
		}
	default:
		return nil, fmt.Errorf("find company: %w", err)
	}

	hireDate := s.now()
	department, position := ownerDepartment, ownerPosition

	var user *domain.User
	for attempt := 1; ; attempt++ {
		if attempt > maxRegisterAttempts {
			return nil, fmt.Errorf("create account: gave up after %d attempts", maxRegisterAttempts)
		}

		// 工号就是登录 ID，user 和 employee 使用同一个值
		employeeID, err := s.ids.GenerateEmployeeID(ctx, company.Code, firstName, lastName, hireDate, company.ID)
		if err != nil {
			return nil, fmt.Errorf("generate employee id: %w", err)
		}

		user = &domain.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    firstName,
			LastName:     lastName,
			Role:         domain.RoleAdmin,
			Phone:        optional(in.Phone),
			Department:   &department,
			Position:     &position,
			EmployeeID:   &employeeID,
			CompanyID:    &company.ID,
		}
		employee := &domain.Employee{
			ID:         uuid.NewString(),
			EmployeeID: employeeID,
			UserID:     user.ID,
			Email:      email,
			FirstName:  firstName,
			LastName:   lastName,
			Phone:      user.Phone,
			Department: department,
			Position:   position,
			Status:     domain.EmployeeStatusActive,
			HireDate:   hireDate,
			Salary:     0,
			CompanyID:  company.ID,
		}

		err = s.store.CreateAccount(ctx, &domain.Account{
			Company:     company,
			NewCompany:  newCompany,
			FirstTenant: true,
			User:        user,
			Employee:    employee,
		})
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrCompanyCodeTaken):
			// 并发注册抢走了这个代码，换用带时间后缀的备用代码
			company.Code = s.ids.FallbackCompanyCode(companyName)
			continue
		case errors.Is(err, domain.ErrEmployeeIDTaken):
			continue
		case errors.Is(err, domain.ErrEmailTaken):
			return nil, domain.NewError(domain.KindConflict, "User with this email already exists")
		case errors.Is(err, domain.ErrRegistrationClosed), errors.Is(err, domain.ErrCompanyNameTaken):
			metrics.AuthEvents.WithLabelValues("register", "rejected").Inc()
			return nil, domain.NewError(domain.KindForbidden, registrationClosedMessage)
		default:
			return nil, fmt.Errorf("create account: %w", err)
		}
		break
	}

	user.Company = company.Summary()

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	metrics.AuthEvents.WithLabelValues("register", "success").Inc()
	return result, nil
}
