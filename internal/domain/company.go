package domain

import "time"

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Logo      *string   `json:"logo"`
	CreatedAt time.Time `json:"createdAt"`
}

type CompanySummary struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Code string  `json:"code"`
	Logo *string `json:"logo"`
}

func (c *Company) Summary() *CompanySummary {
	return &CompanySummary{
		ID:   c.ID,
		Name: c.Name,
		Code: c.Code,
		Logo: c.Logo,
	}
}
