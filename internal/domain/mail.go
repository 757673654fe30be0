package domain

const (
	MailTypeAccountCredentials = "account_credentials"
	MailTypePasswordReset      = "password_reset"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type AccountCredentialsMailData struct {
	FirstName string `json:"firstName"`
	Email     string `json:"email"`
	LoginID   string `json:"loginId"`
	Message   string `json:"message"`
	ResetLink string `json:"resetLink"`
}

type PasswordResetMailData struct {
	FirstName  string `json:"firstName"`
	ResetLink  string `json:"resetLink"`
	Expiration int    `json:"expiration"`
}
