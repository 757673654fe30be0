package domain

// Account 是一次注册需要原子写入的全部记录
type Account struct {
	Company    *Company
	NewCompany bool
	// FirstTenant 为 true 时，写入前必须确认系统中还没有任何公司
	FirstTenant bool
	User        *User
	Employee    *Employee
}
