package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/auth"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/identifier"
)

type Store interface {
	identifier.Store

	HasAnyCompany(ctx context.Context) (bool, error)
	GetCompanyByName(ctx context.Context, name string) (*domain.Company, error)
	CreateAccount(ctx context.Context, account *domain.Account) error

	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByLoginID(ctx context.Context, loginID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CheckEmailIfExists(ctx context.Context, email string) (bool, error)
	GetAllUsers(ctx context.Context, companyID *string) ([]*domain.User, error)
	UpdateUserPassword(ctx context.Context, userID string, passwordHash string) error

	CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error

	CreatePasswordResetToken(ctx context.Context, token *domain.PasswordResetToken) error
	// ResetPassword 在一个事务中消费未过期的重置令牌、更新令牌所属用户的密码，
	// 并删除该用户所有的重置令牌和刷新令牌。令牌不存在或已过期时返回 domain.ErrRecordNotFound
	ResetPassword(ctx context.Context, token string, passwordHash string) error
}

// Notifier 负责投递邮件。调用方只做尽力而为的投递，失败不会影响原操作
type Notifier interface {
	SendCredentialEmail(ctx context.Context, email, loginID, message, firstName, resetToken string) error
	SendPasswordResetEmail(ctx context.Context, email, firstName, resetToken string) error
}

type Service struct {
	store    Store
	tokens   *auth.TokenCodec
	ids      *identifier.Generator
	notifier Notifier
	validate *validator.Validate
	resetTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func New(store Store, tokens *auth.TokenCodec, ids *identifier.Generator, notifier Notifier, resetTTL time.Duration) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		ids:      ids,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		resetTTL: resetTTL,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

type AuthResult struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *domain.User `json:"user"`
}
