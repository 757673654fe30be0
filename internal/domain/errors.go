package domain

import (
	"errors"
	"fmt"
)

// 存储层返回的哨兵错误
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrEmployeeIDTaken  = errors.New("employee id already taken")
	ErrCompanyCodeTaken = errors.New("company code already taken")
	ErrCompanyNameTaken = errors.New("company name already taken")
	// ErrRegistrationClosed 表示写入首个租户时发现已经存在公司
	ErrRegistrationClosed = errors.New("registration closed")
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "Validation Error"
	KindUnauthorized ErrorKind = "Unauthorized"
	KindForbidden    ErrorKind = "Forbidden"
	KindNotFound     ErrorKind = "Not Found"
	KindConflict     ErrorKind = "Conflict"
)

// Error 是可以直接展示给客户端的业务错误
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// IsKind 判断 err 是否为指定类型的业务错误
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
