package domain

import "time"

type BikeStatus string

const (
	BikeAvailable   BikeStatus = "available"
	BikeUnavailable BikeStatus = "unavailable"
	BikeMaintenance BikeStatus = "maintenance"
)

type BikeType string

const (
	BikeCity     BikeType = "city"
	BikeMountain BikeType = "mountain"
	BikeRoad     BikeType = "road"
	BikeElectric BikeType = "electric"
	BikeKids     BikeType = "kids"
)

type Bike struct {
	ID          int64      `json:"id" gorm:"primaryKey"`
	OwnerID     int64      `json:"owner_id" gorm:"index;not null"`
	Name        string     `json:"name" gorm:"not null" validate:"required"`
	Brand       string     `json:"brand,omitempty"`
	Model       string     `json:"model,omitempty"`
	Type        BikeType   `json:"type" gorm:"type:varchar(20)"`
	Description string     `json:"description,omitempty" gorm:"type:text"`
	Location    string     `json:"location,omitempty" gorm:"index"`
	PricePerDay float64    `json:"price_per_day" validate:"gte=0"`
	Status      BikeStatus `json:"status" gorm:"type:varchar(20);not null;default:available"`
	ImageURL    string     `json:"image_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Owner *User `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}

func (b Bike) CursorID() int64 { return b.ID }

func (b *Bike) IsAvailable() bool { return b != nil && b.Status == BikeAvailable }
