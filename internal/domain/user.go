package domain

import "time"

type UserRole string

const (
	RoleRenter UserRole = "renter"
	RoleOwner  UserRole = "owner"
	RoleAdmin  UserRole = "admin"
)

type User struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null" validate:"required,email"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Role         UserRole  `json:"role" gorm:"type:varchar(20);not null;default:renter"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Addresses []Address `json:"addresses,omitempty" gorm:"foreignKey:UserID"`
}

func (u User) CursorID() int64 { return u.ID }

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }
