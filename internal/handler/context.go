package handler

import (
	"context"

	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
)

type ContextKey string

var UserCtx ContextKey = "user"

func withUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, UserCtx, user)
}

// currentUser 返回 auth 中间件放入的当前用户
func currentUser(ctx context.Context) *domain.User {
	user, _ := ctx.Value(UserCtx).(*domain.User)
	return user
}
