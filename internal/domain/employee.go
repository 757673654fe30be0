package domain

import "time"

type EmployeeStatus string

const (
	EmployeeStatusActive   EmployeeStatus = "active"
	EmployeeStatusInactive EmployeeStatus = "inactive"
)

// Employee 与 User 一一对应，EmployeeID 必须与 User.EmployeeID 完全一致
type Employee struct {
	ID         string         `json:"id"`
	EmployeeID string         `json:"employeeId"`
	UserID     string         `json:"userId"`
	Email      string         `json:"email"`
	FirstName  string         `json:"firstName"`
	LastName   string         `json:"lastName"`
	Phone      *string        `json:"phone"`
	Department string         `json:"department"`
	Position   string         `json:"position"`
	Status     EmployeeStatus `json:"status"`
	HireDate   time.Time      `json:"hireDate"`
	Salary     float64        `json:"salary"`
	CompanyID  string         `json:"companyId"`
	CreatedAt  time.Time      `json:"createdAt"`
}
