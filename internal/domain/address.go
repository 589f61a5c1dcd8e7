package domain

import "time"

type Address struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	UserID     int64     `json:"user_id" gorm:"index;not null"`
	Label      string    `json:"label,omitempty"`
	Street     string    `json:"street" validate:"required"`
	City       string    `json:"city" validate:"required"`
	State      string    `json:"state,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	Country    string    `json:"country" validate:"required"`
	IsPrimary  bool      `json:"is_primary" gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OneLine renders the address the way it is printed on invoices.
func (a Address) OneLine() string {
	out := a.Street
	for _, part := range []string{a.City, a.State, a.PostalCode, a.Country} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}
