// Package memstore is an in-memory implementation of the persistence
// contract, with the same uniqueness rules as the PostgreSQL schema.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
)

type Store struct {
	mu            sync.Mutex
	companies     map[string]*domain.Company
	users         map[string]*domain.User
	employees     map[string]*domain.Employee
	refreshTokens map[string]*domain.RefreshToken
	resetTokens   map[string]*domain.PasswordResetToken
	now           func() time.Time
}

func New() *Store {
	return &Store{
		companies:     map[string]*domain.Company{},
		users:         map[string]*domain.User{},
		employees:     map[string]*domain.Employee{},
		refreshTokens: map[string]*domain.RefreshToken{},
		resetTokens:   map[string]*domain.PasswordResetToken{},
		now:           time.Now,
	}
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (s *Store) HasAnyCompany(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.companies) > 0, nil
}

func (s *Store) GetCompanyByName(_ context.Context, name string) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if c.Name == name {
			cc := *c
			return &cc, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (s *Store) CompanyCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) EmployeeIDExists(_ context.Context, employeeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.employeeIDExistsLocked(employeeID), nil
}

func (s *Store) employeeIDExistsLocked(employeeID string) bool {
	for _, u := range s.users {
		if u.EmployeeID != nil && *u.EmployeeID == employeeID {
			return true
		}
	}
	for _, e := range s.employees {
		if e.EmployeeID == employeeID {
			return true
		}
	}
	return false
}

func (s *Store) CountEmployeeIDsWithPrefix(_ context.Context, companyID string, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.employees {
		if e.CompanyID == companyID && strings.HasPrefix(e.EmployeeID, prefix) {
			n++
		}
	}
	return n, nil
}

// CreateAccount 要么写入全部记录，要么什么都不写
func (s *Store) CreateAccount(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.FirstTenant && len(s.companies) > 0 {
		return domain.ErrRegistrationClosed
	}

	if account.NewCompany {
		for _, c := range s.companies {
			if c.Name == account.Company.Name {
				return domain.ErrCompanyNameTaken
			}
			if c.Code == account.Company.Code {
				return domain.ErrCompanyCodeTaken
			}
		}
	}

	for _, u := range s.users {
		if u.Email == account.User.Email {
			return domain.ErrEmailTaken
		}
	}
	if account.User.EmployeeID != nil && s.employeeIDExistsLocked(*account.User.EmployeeID) {
		return domain.ErrEmployeeIDTaken
	}

	now := s.now()
	if account.NewCompany {
		account.Company.CreatedAt = now
		c := *account.Company
		s.companies[c.ID] = &c
	}

	account.User.CreatedAt = now
	account.User.UpdatedAt = now
	u := copyUser(account.User)
	u.Company = nil
	s.users[u.ID] = u

	if account.Employee != nil {
		account.Employee.CreatedAt = now
		e := *account.Employee
		s.employees[e.ID] = &e
	}

	return nil
}

func (s *Store) withCompanyLocked(u *domain.User) *domain.User {
	c := copyUser(u)
	if c.CompanyID != nil {
		if company, ok := s.companies[*c.CompanyID]; ok {
			c.Company = company.Summary()
		}
	}
	return c
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return s.withCompanyLocked(u), nil
}

// GetUserByLoginID 先按邮箱匹配，再按工号匹配
func (s *Store) GetUserByLoginID(_ context.Context, loginID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == loginID {
			return s.withCompanyLocked(u), nil
		}
	}
	for _, u := range s.users {
		if u.EmployeeID != nil && *u.EmployeeID == loginID {
			return s.withCompanyLocked(u), nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return s.withCompanyLocked(u), nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (s *Store) CheckEmailIfExists(ctx context.Context, email string) (bool, error) {
	_, err := s.GetUserByEmail(ctx, email)
	return err == nil, nil
}

func (s *Store) GetAllUsers(_ context.Context, companyID *string) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*domain.User, 0)
	for _, u := range s.users {
		if companyID != nil && (u.CompanyID == nil || *u.CompanyID != *companyID) {
			continue
		}
		users = append(users, copyUser(u))
	}

	slices.SortStableFunc(users, func(a, b *domain.User) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, userID string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) CreateRefreshToken(_ context.Context, token *domain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *token
	t.CreatedAt = s.now()
	s.refreshTokens[t.Token] = &t
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, token string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refreshTokens[token]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	c := *t
	return &c, nil
}

func (s *Store) DeleteRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshTokens, token)
	return nil
}

func (s *Store) CreatePasswordResetToken(_ context.Context, token *domain.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *token
	t.CreatedAt = s.now()
	s.resetTokens[t.Token] = &t
	return nil
}

// ResetPassword 在同一把锁内校验并消费令牌
func (s *Store) ResetPassword(_ context.Context, token string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.resetTokens[token]
	if !ok || t.Expired(s.now()) {
		return domain.ErrRecordNotFound
	}
	userID := t.UserID

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now()

	for k, t := range s.resetTokens {
		if t.UserID == userID {
			delete(s.resetTokens, k)
		}
	}
	for k, t := range s.refreshTokens {
		if t.UserID == userID {
			delete(s.refreshTokens, k)
		}
	}
	return nil
}

// SetClock 替换写入时间戳使用的时钟
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Counts 返回公司、用户、员工记录的数量
func (s *Store) Counts() (companies, users, employees int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.companies), len(s.users), len(s.employees)
}

// PutUser 直接写入一个用户，测试中用来准备其他租户的数据
func (s *Store) PutUser(u *domain.User, company *domain.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if company != nil {
		c := *company
		s.companies[c.ID] = &c
	}
	s.users[u.ID] = copyUser(u)
}

// RefreshTokenCount 返回某个用户当前持有的刷新令牌数量
func (s *Store) RefreshTokenCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.refreshTokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// ResetTokens 返回某个用户的全部重置令牌
func (s *Store) ResetTokens(userID string) []*domain.PasswordResetToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := make([]*domain.PasswordResetToken, 0)
	for _, t := range s.resetTokens {
		if t.UserID == userID {
			c := *t
			tokens = append(tokens, &c)
		}
	}
	return tokens
}
