package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sysu-ecnc-dev/workzen/backend/internal/auth"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/metrics"
)

const invalidCredentialsMessage = "Invalid login ID or password"

// 用户不存在时也做一次 bcrypt 比较，使两种失败的耗时一致
var dummyHash = sync.OnceValue(func() string {
	hash, _ := auth.HashPassword("workzen-dummy-password")
	return hash
})

func (s *Service) Login(ctx context.Context, loginID string, password string) (*AuthResult, error) {
	loginID = strings.TrimSpace(loginID)
	if loginID == "" || password == "" {
		return nil, domain.NewError(domain.KindValidation, "Login ID and password are required")
	}

	user, err := s.store.GetUserByLoginID(ctx, loginID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			_, _ = auth.ComparePassword(password, dummyHash())
			metrics.AuthEvents.WithLabelValues("login", "rejected").Inc()
			return nil, domain.NewError(domain.KindUnauthorized, invalidCredentialsMessage)
		default:
			return nil, fmt.Errorf("find user by login id: %w", err)
		}
	}

	ok, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		metrics.AuthEvents.WithLabelValues("login", "rejected").Inc()
		return nil, domain.NewError(domain.KindUnauthorized, invalidCredentialsMessage)
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	metrics.AuthEvents.WithLabelValues("login", "success").Inc()
	return result, nil
}

// Logout 删除对应的刷新令牌记录，记录不存在时同样视为成功
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}

	if err := s.store.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	metrics.AuthEvents.WithLabelValues("logout", "success").Inc()
	return nil
}

// Refresh 只签发新的 access token，refresh token 本身不轮换
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("refresh", "rejected").Inc()
		return "", domain.NewError(domain.KindUnauthorized, "Invalid refresh token")
	}

	record, err := s.store.GetRefreshToken(ctx, refreshToken)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return "", fmt.Errorf("find refresh token: %w", err)
	}
	if record == nil || record.Expired(s.now()) || record.UserID != userID {
		metrics.AuthEvents.WithLabelValues("refresh", "rejected").Inc()
		return "", domain.NewError(domain.KindUnauthorized, "Refresh token expired or invalid")
	}

	accessToken, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}

	metrics.AuthEvents.WithLabelValues("refresh", "success").Inc()
	return accessToken, nil
}

// Authenticate 校验 access token 并加载对应用户，供认证中间件使用
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	userID, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, domain.NewError(domain.KindUnauthorized, "Invalid or expired token")
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			return nil, domain.NewError(domain.KindUnauthorized, "User not found")
		default:
			return nil, fmt.Errorf("find user by id: %w", err)
		}
	}

	return user, nil
}

func (s *Service) issueSession(ctx context.Context, user *domain.User) (*AuthResult, error) {
	accessToken, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := s.store.CreateRefreshToken(ctx, &domain.RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.tokens.RefreshTTL()),
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}
