package domain

import (
	"time"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleHR       Role = "hr"
	RoleEmployee Role = "employee"
)

// User 是登录身份，EmployeeID 即登录 ID
type User struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	Role         Role            `json:"role"`
	Avatar       *string         `json:"avatar"`
	Phone        *string         `json:"phone"`
	Department   *string         `json:"department"`
	Position     *string         `json:"position"`
	EmployeeID   *string         `json:"employeeId"`
	CompanyID    *string         `json:"companyId"`
	Company      *CompanySummary `json:"company,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// LoginID 返回发给用户的登录 ID，没有工号时退回到邮箱
func (u *User) LoginID() string {
	if u.EmployeeID != nil && *u.EmployeeID != "" {
		return *u.EmployeeID
	}
	return u.Email
}

// ManageableBy 判断 actor 是否有权操作 u：没有公司归属的管理员可以操作任何人
func (u *User) ManageableBy(actor *User) bool {
	if actor.CompanyID == nil {
		return true
	}
	return u.CompanyID != nil && *u.CompanyID == *actor.CompanyID
}
