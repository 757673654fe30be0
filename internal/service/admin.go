package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/auth"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/metrics"
)

const credentialResetMessage = "Your password has been reset. Please use the link below to set a new password."

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) ListUsers(ctx context.Context, actor *domain.User) ([]*domain.User, error) {
	users, err := s.store.GetAllUsers(ctx, actor.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser 按 id 查找用户。id 不是合法的 UUID 时不可能存在对应的用户，直接返回 NotFound
func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, domain.NewError(domain.KindNotFound, "User not found")
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			return nil, domain.NewError(domain.KindNotFound, "User not found")
		default:
			return nil, fmt.Errorf("find user by id: %w", err)
		}
	}
	return user, nil
}

// AdminSendCredentials 为目标用户生成一小时有效的重置令牌并发送账户凭据邮件。
// 邮件发送失败只记录日志，令牌依然有效。
func (s *Service) AdminSendCredentials(ctx context.Context, targetUserID string, actor *domain.User) error {
	user, err := s.GetUser(ctx, targetUserID)
	if err != nil {
		return err
	}

	if !user.ManageableBy(actor) {
		return domain.NewError(domain.KindForbidden, "You can only send credentials to users in your company")
	}

	token, err := s.issueResetToken(ctx, user)
	if err != nil {
		return err
	}

	if err := s.notifier.SendCredentialEmail(ctx, user.Email, user.LoginID(), credentialResetMessage, user.FirstName, token); err != nil {
		metrics.MailDispatchFailures.WithLabelValues(domain.MailTypeAccountCredentials).Inc()
		s.logger.Error("无法发送账户凭据邮件", "userId", user.ID, "error", err)
	}

	metrics.AuthEvents.WithLabelValues("send_credentials", "success").Inc()
	return nil
}

// AdminUpdatePassword 由管理员直接覆盖目标用户的密码，不校验旧密码
func (s *Service) AdminUpdatePassword(ctx context.Context, targetUserID string, newPassword string, actor *domain.User) error {
	if len(newPassword) < auth.MinPasswordLength {
		return domain.NewError(domain.KindValidation, "Password must be at least 8 characters long")
	}

	user, err := s.GetUser(ctx, targetUserID)
	if err != nil {
		return err
	}

	if !user.ManageableBy(actor) {
		return domain.NewError(domain.KindForbidden, "You can only update passwords for users in your company")
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.UpdateUserPassword(ctx, user.ID, passwordHash); err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			return domain.NewError(domain.KindNotFound, "User not found")
		default:
			return fmt.Errorf("update password: %w", err)
		}
	}

	metrics.AuthEvents.WithLabelValues("admin_update_password", "success").Inc()
	return nil
}

// RequestPasswordReset 是用户自助的忘记密码流程。
// 邮箱不存在时同样返回成功，防止接口被用来探测账户。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.NewError(domain.KindValidation, "Email is required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			return nil
		default:
			return fmt.Errorf("find user by email: %w", err)
		}
	}

	token, err := s.issueResetToken(ctx, user)
	if err != nil {
		return err
	}

	if err := s.notifier.SendPasswordResetEmail(ctx, user.Email, user.FirstName, token); err != nil {
		metrics.MailDispatchFailures.WithLabelValues(domain.MailTypePasswordReset).Inc()
		s.logger.Error("无法发送重置密码邮件", "userId", user.ID, "error", err)
	}

	metrics.AuthEvents.WithLabelValues("request_password_reset", "success").Inc()
	return nil
}

// ResetPassword 消费重置令牌并设置新密码。令牌只能使用一次，成功后该用户的所有会话都会失效。
func (s *Service) ResetPassword(ctx context.Context, token string, newPassword string) error {
	if len(newPassword) < auth.MinPasswordLength {
		return domain.NewError(domain.KindValidation, "Password must be at least 8 characters long")
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// 令牌的校验和删除在同一个事务里完成，并发的两次请求只有一次能成功
	if err := s.store.ResetPassword(ctx, strings.TrimSpace(token), passwordHash); err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			metrics.AuthEvents.WithLabelValues("reset_password", "rejected").Inc()
			return domain.NewError(domain.KindValidation, "Reset token is invalid or has expired")
		default:
			return fmt.Errorf("reset password: %w", err)
		}
	}

	metrics.AuthEvents.WithLabelValues("reset_password", "success").Inc()
	return nil
}

func (s *Service) issueResetToken(ctx context.Context, user *domain.User) (string, error) {
	token, err := newResetToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	if err := s.store.CreatePasswordResetToken(ctx, &domain.PasswordResetToken{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: s.now().Add(s.resetTTL),
	}); err != nil {
		return "", fmt.Errorf("store password reset token: %w", err)
	}

	return token, nil
}
